package utils

import (
	"bytes"
	"fmt"
	"io"

	"github.com/davecgh/go-spew/spew"
)

var spewConfig *spew.ConfigState

func init() {
	spewConfig = spew.NewDefaultConfig()
	spewConfig.DisableCapacities = true
	spewConfig.DisablePointerAddresses = true
	spewConfig.SortKeys = true
}

func FDump(w io.Writer, a ...interface{}) {
	spewConfig.Fdump(w, a...)
}

// DumpToOneLineString shows printable ascii as is and escapes everything else.
func DumpToOneLineString(buf []byte) string {
	var out bytes.Buffer

	for _, b := range buf {
		if b >= 0x20 && b < 0x7f {
			out.WriteByte(b)
		} else {
			out.WriteString(fmt.Sprintf("\\x%.2x", b))
		}
	}

	return out.String()
}
