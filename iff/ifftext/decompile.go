package ifftext

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/swgtools/swg_asset_browser/iff"
)

const hexLineBytes = 32

// Decompile renders a binary document as text. Chunk payloads are written as
// hex blocks since their field layout is unknown at this level.
func Decompile(data []byte) ([]byte, error) {
	root, err := iff.ParseTree(data)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	writeNode(&buf, root, 0)
	return buf.Bytes(), nil
}

func writeNode(buf *bytes.Buffer, n *iff.Node, depth int) {
	pad := strings.Repeat("\t", depth)
	if n.Form {
		fmt.Fprintf(buf, "%sform %s %s {\n", pad, quoteTag(n.Tag), quoteTag(n.Version))
		for _, c := range n.Children {
			writeNode(buf, c, depth+1)
		}
		fmt.Fprintf(buf, "%s}\n", pad)
		return
	}
	if len(n.Data) == 0 {
		fmt.Fprintf(buf, "%schunk %s {}\n", pad, quoteTag(n.Tag))
		return
	}
	fmt.Fprintf(buf, "%schunk %s { // %d bytes\n", pad, quoteTag(n.Tag), len(n.Data))
	for off := 0; off < len(n.Data); off += hexLineBytes {
		end := off + hexLineBytes
		if end > len(n.Data) {
			end = len(n.Data)
		}
		fmt.Fprintf(buf, "%s\thex %q\n", pad, hex.EncodeToString(n.Data[off:end]))
	}
	fmt.Fprintf(buf, "%s}\n", pad)
}

func quoteTag(t iff.Tag) string {
	return strconv.Quote(t.String())
}
