package vfs

import (
	"io"
)

// Element must hold only metadata (the name) until List, Open or GetElement
// is called on it.
type Element interface {
	Init(parent Directory)
	Name() string
	IsDirectory() bool
}

type File interface {
	Element
	Size() int64
	Open(readonly bool) error
	Close() error
	Reader() (*io.SectionReader, error)
	// Copy replaces the file content with src in one step.
	Copy(src io.Reader) error
}

type Directory interface {
	Element
	List() ([]string, error)
	GetElement(name string) (Element, error)
	Add(e Element) error
	Remove(name string) error
}
