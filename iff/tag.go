package iff

import (
	"github.com/pkg/errors"
)

// Tag is the four character identifier of a form or chunk.
type Tag [4]byte

func NewTag(s string) Tag {
	t, err := ParseTag(s)
	if err != nil {
		panic(err)
	}
	return t
}

func ParseTag(s string) (Tag, error) {
	var t Tag
	if len(s) != len(t) {
		return t, errors.Errorf("tag %q must be exactly 4 bytes, got %d", s, len(s))
	}
	copy(t[:], s)
	return t, nil
}

func (t Tag) String() string { return string(t[:]) }

func (t Tag) IsZero() bool { return t == Tag{} }

// Printable reports whether every byte is an ascii letter, digit, space or underscore.
func (t Tag) Printable() bool {
	for _, c := range t {
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == ' ', c == '_':
		default:
			return false
		}
	}
	return true
}

func (t Tag) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Tag) UnmarshalText(b []byte) error {
	v, err := ParseTag(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
