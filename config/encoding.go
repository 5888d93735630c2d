package config

import (
	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

const EncodingUTF8 = "UTF-8"

// currentEncoding is nil for utf-8, which needs no transcoding.
var currentEncoding encoding.Encoding

// SetEncoding selects the charset of strings stored in asset files.
// Legacy exports sometimes carry single byte code pages in paths.
func SetEncoding(name string) error {
	if name == "" || name == EncodingUTF8 {
		currentEncoding = nil
		return nil
	}
	for _, enc := range charmap.All {
		if cm, ok := enc.(*charmap.Charmap); ok {
			if cm.String() == name {
				currentEncoding = cm
				return nil
			}
		}
	}
	return errors.Errorf("Failed to find encoding %q", name)
}

func ListEncodings() []string {
	list := []string{EncodingUTF8}
	for _, enc := range charmap.All {
		if cm, ok := enc.(*charmap.Charmap); ok {
			list = append(list, cm.String())
		}
	}
	return list
}

func GetEncoding() encoding.Encoding {
	return currentEncoding
}
