package iff

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

type scopeKind uint8

const (
	kindForm scopeKind = iota
	kindChunk
)

func (k scopeKind) String() string {
	if k == kindForm {
		return "form"
	}
	return "chunk"
}

type writeScope struct {
	kind     scopeKind
	tag      Tag
	lengthAt int
}

// Writer builds a document in memory. Lengths are reserved when a scope opens
// and backpatched when it closes, so the buffer only ever grows.
//
// Misuse of the open/close discipline is a programming error and panics.
type Writer struct {
	buf   []byte
	stack []writeScope
	opts  options
	err   error
}

func NewWriter(opts ...Option) *Writer {
	return &Writer{
		buf:  make([]byte, 0, 4096),
		opts: buildOptions(opts),
	}
}

func (w *Writer) open(kind scopeKind, tag Tag) {
	w.stack = append(w.stack, writeScope{kind: kind, tag: tag, lengthAt: len(w.buf)})
	w.buf = append(w.buf, 0, 0, 0, 0)
	w.buf = append(w.buf, tag[:]...)
}

func (w *Writer) close(kind scopeKind) {
	if len(w.stack) == 0 {
		panic(fmt.Sprintf("iff: end %v with no open scope", kind))
	}
	top := w.stack[len(w.stack)-1]
	if top.kind != kind {
		panic(fmt.Sprintf("iff: end %v while %v %q is open", kind, top.kind, top.tag.String()))
	}
	w.stack = w.stack[:len(w.stack)-1]

	// length counts everything after the tag
	length := len(w.buf) - top.lengthAt - headerSize
	binary.LittleEndian.PutUint32(w.buf[top.lengthAt:], uint32(length))
}

func (w *Writer) BeginForm(tag, version Tag) {
	if len(w.stack) != 0 && w.stack[len(w.stack)-1].kind == kindChunk {
		panic(fmt.Sprintf("iff: form %q opened inside chunk %q", tag.String(), w.stack[len(w.stack)-1].tag.String()))
	}
	w.open(kindForm, tag)
	w.buf = append(w.buf, version[:]...)
}

func (w *Writer) EndForm() { w.close(kindForm) }

func (w *Writer) BeginChunk(tag Tag) {
	if len(w.stack) != 0 && w.stack[len(w.stack)-1].kind == kindChunk {
		panic(fmt.Sprintf("iff: chunk %q opened inside chunk %q", tag.String(), w.stack[len(w.stack)-1].tag.String()))
	}
	w.open(kindChunk, tag)
}

func (w *Writer) EndChunk() { w.close(kindChunk) }

// Depth returns the number of open scopes.
func (w *Writer) Depth() int { return len(w.stack) }

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

func (w *Writer) payload() {
	if len(w.stack) == 0 || w.stack[len(w.stack)-1].kind != kindChunk {
		panic("iff: primitive written outside of a chunk")
	}
}

func (w *Writer) WriteInt8(v int8)   { w.payload(); w.buf = AppendInt8(w.buf, v) }
func (w *Writer) WriteUint8(v uint8) { w.payload(); w.buf = AppendUint8(w.buf, v) }
func (w *Writer) WriteInt16(v int16) { w.payload(); w.buf = AppendInt16(w.buf, v) }
func (w *Writer) WriteUint16(v uint16) {
	w.payload()
	w.buf = AppendUint16(w.buf, v)
}
func (w *Writer) WriteInt32(v int32) { w.payload(); w.buf = AppendInt32(w.buf, v) }
func (w *Writer) WriteUint32(v uint32) {
	w.payload()
	w.buf = AppendUint32(w.buf, v)
}
func (w *Writer) WriteFloat(v float32)   { w.payload(); w.buf = AppendFloat(w.buf, v) }
func (w *Writer) WriteVec2(v [2]float32) { w.payload(); w.buf = AppendVec2(w.buf, v) }
func (w *Writer) WriteVec3(v [3]float32) { w.payload(); w.buf = AppendVec3(w.buf, v) }
func (w *Writer) WriteVec4(v [4]float32) { w.payload(); w.buf = AppendVec4(w.buf, v) }
func (w *Writer) WriteBool(v bool)       { w.payload(); w.buf = AppendBool(w.buf, v) }
func (w *Writer) WriteBytes(b []byte)    { w.payload(); w.buf = append(w.buf, b...) }
func (w *Writer) WriteTag(t Tag)         { w.payload(); w.buf = append(w.buf, t[:]...) }
func (w *Writer) WriteStrings(s ...string) {
	for _, v := range s {
		w.WriteString(v)
	}
}

func (w *Writer) WriteString(s string) {
	w.payload()
	if w.opts.enc != nil {
		encoded, err := w.opts.enc.NewEncoder().String(s)
		if err != nil {
			if w.err == nil {
				w.err = errors.Wrapf(err, "Failed to encode string %q", s)
			}
			encoded = s
		}
		s = encoded
	}
	w.buf = AppendString(w.buf, s)
}

// Bytes returns the finished document. The writer must have no open scopes.
func (w *Writer) Bytes() ([]byte, error) {
	if len(w.stack) != 0 {
		top := w.stack[len(w.stack)-1]
		return nil, Structuralf(top.lengthAt, "%d scope(s) still open, innermost %v %q",
			len(w.stack), top.kind, top.tag.String())
	}
	if w.err != nil {
		return nil, w.err
	}
	return w.buf, nil
}

func (w *Writer) WriteTo(out io.Writer) (int64, error) {
	b, err := w.Bytes()
	if err != nil {
		return 0, err
	}
	n, err := out.Write(b)
	return int64(n), err
}

// Finalize stores the document at path. The data goes to a temporary file in
// the same directory first and is renamed over path only after a complete
// write, so a failure never leaves a partial file behind.
func (w *Writer) Finalize(path string) error {
	b, err := w.Bytes()
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, b)
}

// WriteFileAtomic replaces path with data through a temporary file. An existing
// file keeps its permissions, a new one is created 0644.
func WriteFileAtomic(path string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.Wrapf(err, "Failed to create temp file for %q", path)
	}
	tmpName := f.Name()
	mode := os.FileMode(0644)
	if fi, err := os.Stat(path); err == nil {
		mode = fi.Mode().Perm()
	}
	if err := f.Chmod(mode); err != nil {
		f.Close()
		os.Remove(tmpName)
		return errors.Wrapf(err, "Failed to set mode of %q", tmpName)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpName)
		return errors.Wrapf(err, "Failed to write %q", path)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(err, "Failed to close %q", tmpName)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(err, "Failed to rename %q to %q", tmpName, path)
	}
	return nil
}
