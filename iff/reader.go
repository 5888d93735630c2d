package iff

import (
	"bytes"

	"github.com/pkg/errors"
)

type readScope struct {
	kind  scopeKind
	tag   Tag
	start int
	end   int
}

// Reader walks a document with a cursor. Entering a form or chunk pushes a
// scope bounding every later read; exiting jumps to the scope end, skipping
// whatever the caller did not read.
//
// Primitive reads do not return errors. The first failure is kept and reported
// by Err and by the next Exit call; reads after it return zero values.
type Reader struct {
	data   []byte
	pos    int
	scopes []readScope
	opts   options
	err    error
}

func NewReader(data []byte, opts ...Option) *Reader {
	return &Reader{
		data: data,
		opts: buildOptions(opts),
	}
}

func (r *Reader) Offset() int { return r.pos }

func (r *Reader) Depth() int { return len(r.scopes) }

func (r *Reader) Err() error { return r.err }

func (r *Reader) limit() int {
	if len(r.scopes) == 0 {
		return len(r.data)
	}
	return r.scopes[len(r.scopes)-1].end
}

// Remaining returns the unread byte count of the innermost scope.
func (r *Reader) Remaining() int { return r.limit() - r.pos }

func (r *Reader) AtEnd() bool { return r.pos >= r.limit() }

// headerAt decodes the node header at offset p of the current scope.
func (r *Reader) headerAt(p int) (length int, tag Tag, err error) {
	limit := r.limit()
	if p == limit {
		return 0, tag, ErrEndOfScope
	}
	if p+headerSize > limit {
		return 0, tag, Structuralf(p, "truncated header, %d byte(s) left in scope", limit-p)
	}
	length = int(Uint32(r.data[p:]))
	copy(tag[:], r.data[p+4:p+8])
	if length < 0 || p+headerSize+length > limit {
		return 0, tag, Structuralf(p, "%q length %d overruns scope end 0x%x", tag.String(), length, limit)
	}
	return length, tag, nil
}

// PeekTag returns the tag of the next child without consuming it.
func (r *Reader) PeekTag() (Tag, error) {
	_, tag, err := r.headerAt(r.pos)
	return tag, err
}

// HasSibling reports whether a node tagged tag exists between the cursor and
// the end of the current scope. The cursor does not move. A malformed header
// met on the way is returned as an error, not reported as absence.
func (r *Reader) HasSibling(tag Tag) (bool, error) {
	for p := r.pos; ; {
		length, t, err := r.headerAt(p)
		if err == ErrEndOfScope {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if t == tag {
			return true, nil
		}
		p += headerSize + length
	}
}

func (r *Reader) EnterForm() (tag, version Tag, err error) {
	length, tag, err := r.headerAt(r.pos)
	if err != nil {
		return tag, version, err
	}
	if length < versionSize {
		return tag, version, Structuralf(r.pos, "form %q length %d is shorter than its version", tag.String(), length)
	}
	copy(version[:], r.data[r.pos+headerSize:])
	r.scopes = append(r.scopes, readScope{
		kind:  kindForm,
		tag:   tag,
		start: r.pos,
		end:   r.pos + headerSize + length,
	})
	r.pos += headerSize + versionSize
	return tag, version, nil
}

func (r *Reader) EnterChunk() (tag Tag, size int, err error) {
	size, tag, err = r.headerAt(r.pos)
	if err != nil {
		return tag, 0, err
	}
	r.scopes = append(r.scopes, readScope{
		kind:  kindChunk,
		tag:   tag,
		start: r.pos,
		end:   r.pos + headerSize + size,
	})
	r.pos += headerSize
	return tag, size, nil
}

func (r *Reader) expect(tag Tag) error {
	actual, err := r.PeekTag()
	if err == ErrEndOfScope {
		return &SchemaMismatchError{Expected: tag, Offset: r.pos}
	}
	if err != nil {
		return err
	}
	if actual != tag {
		return &SchemaMismatchError{Expected: tag, Actual: actual, Offset: r.pos}
	}
	return nil
}

// EnterFormTag enters the next child if it is tagged tag. On mismatch the
// cursor stays where it was.
func (r *Reader) EnterFormTag(tag Tag) (version Tag, err error) {
	if err := r.expect(tag); err != nil {
		return version, err
	}
	_, version, err = r.EnterForm()
	return version, err
}

func (r *Reader) EnterChunkTag(tag Tag) (size int, err error) {
	if err := r.expect(tag); err != nil {
		return 0, err
	}
	_, size, err = r.EnterChunk()
	return size, err
}

// Skip steps over the next child without entering it.
func (r *Reader) Skip() (Tag, error) {
	length, tag, err := r.headerAt(r.pos)
	if err != nil {
		return tag, err
	}
	r.pos += headerSize + length
	return tag, nil
}

// Payload returns the unread bytes of the innermost scope without consuming them.
func (r *Reader) Payload() []byte {
	return r.data[r.pos:r.limit()]
}

func (r *Reader) exit(kind scopeKind) error {
	if len(r.scopes) == 0 {
		return Structuralf(r.pos, "exit %v with no open scope", kind)
	}
	top := r.scopes[len(r.scopes)-1]
	if top.kind != kind {
		return Structuralf(r.pos, "exit %v while inside %v %q", kind, top.kind, top.tag.String())
	}
	r.scopes = r.scopes[:len(r.scopes)-1]
	r.pos = top.end
	if r.err != nil {
		return errors.Wrapf(r.err, "%v %q at 0x%x", kind, top.tag.String(), top.start)
	}
	return nil
}

func (r *Reader) ExitForm() error  { return r.exit(kindForm) }
func (r *Reader) ExitChunk() error { return r.exit(kindChunk) }

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.pos+n > r.limit() {
		r.err = Structuralf(r.pos, "read of %d byte(s) past scope end 0x%x", n, r.limit())
		return nil
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (r *Reader) ReadInt8() int8 {
	if b := r.take(1); b != nil {
		return int8(b[0])
	}
	return 0
}

func (r *Reader) ReadUint8() uint8 {
	if b := r.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (r *Reader) ReadBool() bool {
	return r.ReadUint8() != 0
}

func (r *Reader) ReadInt16() int16 {
	if b := r.take(2); b != nil {
		return Int16(b)
	}
	return 0
}

func (r *Reader) ReadUint16() uint16 {
	if b := r.take(2); b != nil {
		return Uint16(b)
	}
	return 0
}

func (r *Reader) ReadInt32() int32 {
	if b := r.take(4); b != nil {
		return Int32(b)
	}
	return 0
}

func (r *Reader) ReadUint32() uint32 {
	if b := r.take(4); b != nil {
		return Uint32(b)
	}
	return 0
}

func (r *Reader) ReadFloat() float32 {
	if b := r.take(4); b != nil {
		return Float(b)
	}
	return 0
}

func (r *Reader) ReadVec2() (v [2]float32) {
	for i := range v {
		v[i] = r.ReadFloat()
	}
	return v
}

func (r *Reader) ReadVec3() (v [3]float32) {
	for i := range v {
		v[i] = r.ReadFloat()
	}
	return v
}

func (r *Reader) ReadVec4() (v [4]float32) {
	for i := range v {
		v[i] = r.ReadFloat()
	}
	return v
}

func (r *Reader) ReadTag() (t Tag) {
	if b := r.take(4); b != nil {
		copy(t[:], b)
	}
	return t
}

// ReadBytes returns a copy of the next n bytes.
func (r *Reader) ReadBytes(n int) []byte {
	b := r.take(n)
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

func (r *Reader) ReadString() string {
	if r.err != nil {
		return ""
	}
	end := bytes.IndexByte(r.data[r.pos:r.limit()], 0)
	if end < 0 {
		r.err = Structuralf(r.pos, "unterminated string")
		return ""
	}
	raw := r.take(end + 1)[:end]
	if r.opts.enc != nil {
		decoded, err := r.opts.enc.NewDecoder().Bytes(raw)
		if err != nil {
			r.err = errors.Wrapf(err, "Failed to decode string at 0x%x", r.pos-end-1)
			return ""
		}
		return string(decoded)
	}
	return string(raw)
}

// ReadStrings reads strings until the end of the current scope.
func (r *Reader) ReadStrings() []string {
	var list []string
	for r.err == nil && !r.AtEnd() {
		list = append(list, r.ReadString())
	}
	return list
}
