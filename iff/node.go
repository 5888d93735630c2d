package iff

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// Node is a generic decoded form or chunk, used by tools that walk documents
// without knowing their schema.
type Node struct {
	Tag      Tag     `json:"tag" yaml:"tag"`
	Form     bool    `json:"form" yaml:"form"`
	Version  Tag     `json:"version,omitempty" yaml:"version,omitempty"`
	Offset   int     `json:"offset" yaml:"-"`
	Children []*Node `json:"children,omitempty" yaml:"children,omitempty"`
	Data     []byte  `json:"data,omitempty" yaml:"data,omitempty"`
}

var (
	formTagsMu sync.RWMutex
	formTags   = make(map[Tag]bool)
)

// RegisterFormTag marks tags as forms for ParseTree. Nothing in the byte stream
// separates a form from a chunk, so schema packages register the form tags
// they know in init.
func RegisterFormTag(tags ...string) {
	formTagsMu.Lock()
	defer formTagsMu.Unlock()
	for _, t := range tags {
		formTags[NewTag(t)] = true
	}
}

func IsFormTag(t Tag) bool {
	formTagsMu.RLock()
	defer formTagsMu.RUnlock()
	return formTags[t]
}

func FormTags() []string {
	formTagsMu.RLock()
	defer formTagsMu.RUnlock()
	list := make([]string, 0, len(formTags))
	for t := range formTags {
		list = append(list, t.String())
	}
	sort.Strings(list)
	return list
}

// looksLikeForm guesses whether an unregistered payload is a version followed
// by one or more well formed children with printable tags.
func looksLikeForm(payload []byte) bool {
	if len(payload) <= versionSize {
		return false
	}
	var version Tag
	copy(version[:], payload)
	if !version.Printable() {
		return false
	}
	for p := versionSize; p < len(payload); {
		if p+headerSize > len(payload) {
			return false
		}
		length := int(Uint32(payload[p:]))
		var tag Tag
		copy(tag[:], payload[p+4:])
		if !tag.Printable() || length < 0 || p+headerSize+length > len(payload) {
			return false
		}
		p += headerSize + length
	}
	return true
}

// ParseTree decodes a whole document. The root is always a form and must span
// the entire buffer.
func ParseTree(data []byte) (*Node, error) {
	r := NewReader(data)
	root, err := parseForm(r)
	if err != nil {
		return nil, err
	}
	if !r.AtEnd() {
		return nil, Structuralf(r.Offset(), "%d trailing byte(s) after root form", r.Remaining())
	}
	return root, nil
}

func parseForm(r *Reader) (*Node, error) {
	offset := r.Offset()
	tag, version, err := r.EnterForm()
	if err != nil {
		if err == ErrEndOfScope {
			return nil, Structuralf(offset, "empty document")
		}
		return nil, err
	}
	n := &Node{Tag: tag, Form: true, Version: version, Offset: offset}
	for {
		tag, err := r.PeekTag()
		if err == ErrEndOfScope {
			break
		}
		if err != nil {
			return nil, err
		}
		var child *Node
		if IsFormTag(tag) || looksLikeForm(r.childPayload()) {
			child, err = parseForm(r)
		} else {
			child, err = parseChunk(r)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "in form %q", n.Tag.String())
		}
		n.Children = append(n.Children, child)
	}
	return n, r.ExitForm()
}

func parseChunk(r *Reader) (*Node, error) {
	offset := r.Offset()
	tag, size, err := r.EnterChunk()
	if err != nil {
		return nil, err
	}
	n := &Node{Tag: tag, Offset: offset, Data: r.ReadBytes(size)}
	return n, r.ExitChunk()
}

// childPayload returns the payload of the next child, which must have a valid header.
func (r *Reader) childPayload() []byte {
	length, _, err := r.headerAt(r.pos)
	if err != nil {
		return nil
	}
	start := r.pos + headerSize
	return r.data[start : start+length]
}

// Encode writes the node and its subtree.
func (n *Node) Encode(w *Writer) {
	if n.Form {
		w.BeginForm(n.Tag, n.Version)
		for _, c := range n.Children {
			c.Encode(w)
		}
		w.EndForm()
	} else {
		w.BeginChunk(n.Tag)
		w.WriteBytes(n.Data)
		w.EndChunk()
	}
}

// Bytes encodes the node as a standalone document.
func (n *Node) Bytes() ([]byte, error) {
	w := NewWriter()
	n.Encode(w)
	return w.Bytes()
}

// Size returns the encoded size of the node including its header.
func (n *Node) Size() int {
	if !n.Form {
		return headerSize + len(n.Data)
	}
	size := headerSize + versionSize
	for _, c := range n.Children {
		size += c.Size()
	}
	return size
}

// Walk calls fn for the node and every descendant, parents first.
func (n *Node) Walk(fn func(n *Node, depth int) error) error {
	return n.walk(fn, 0)
}

func (n *Node) walk(fn func(n *Node, depth int) error, depth int) error {
	if err := fn(n, depth); err != nil {
		return err
	}
	for _, c := range n.Children {
		if err := c.walk(fn, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// Child returns the first direct child tagged tag.
func (n *Node) Child(tag string) *Node {
	t := NewTag(tag)
	for _, c := range n.Children {
		if c.Tag == t {
			return c
		}
	}
	return nil
}

// Find follows a path of tags from n.
func (n *Node) Find(path ...string) *Node {
	cur := n
	for _, p := range path {
		if cur = cur.Child(p); cur == nil {
			return nil
		}
	}
	return cur
}
