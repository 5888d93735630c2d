package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/swgtools/swg_asset_browser/iff"
	"github.com/swgtools/swg_asset_browser/utils"

	_ "github.com/swgtools/swg_asset_browser/formats/ans"
	_ "github.com/swgtools/swg_asset_browser/formats/extent"
	_ "github.com/swgtools/swg_asset_browser/formats/lmg"
	_ "github.com/swgtools/swg_asset_browser/formats/sat"
	_ "github.com/swgtools/swg_asset_browser/formats/skt"
)

type styles struct {
	form, chunk, version, meta, data lipgloss.Style
}

func newStyles(color bool) styles {
	if !color {
		plain := lipgloss.NewStyle()
		return styles{plain, plain, plain, plain, plain}
	}
	return styles{
		form:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4")),
		chunk:   lipgloss.NewStyle().Foreground(lipgloss.Color("#98FB98")),
		version: lipgloss.NewStyle().Foreground(lipgloss.Color("#87CEEB")),
		meta:    lipgloss.NewStyle().Foreground(lipgloss.Color("#666666")),
		data:    lipgloss.NewStyle().Foreground(lipgloss.Color("#FAFAFA")),
	}
}

// dumpTree prints one line per node. Chunk payloads are previewed up to
// preview bytes, nothing is shown when preview is 0.
func dumpTree(w io.Writer, root *iff.Node, st styles, preview int) error {
	return root.Walk(func(n *iff.Node, depth int) error {
		indent := strings.Repeat("  ", depth)
		var line string
		if n.Form {
			line = fmt.Sprintf("%s%s %s %s", indent,
				st.form.Render("FORM "+n.Tag.String()),
				st.version.Render(n.Version.String()),
				st.meta.Render(fmt.Sprintf("@%#x size %d", n.Offset, n.Size())))
		} else {
			line = fmt.Sprintf("%s%s %s", indent,
				st.chunk.Render(n.Tag.String()),
				st.meta.Render(fmt.Sprintf("@%#x %d bytes", n.Offset, len(n.Data))))
			if preview > 0 && len(n.Data) > 0 {
				data := n.Data
				suffix := ""
				if len(data) > preview {
					data, suffix = data[:preview], "..."
				}
				line += " " + st.data.Render(utils.DumpToOneLineString(data)+suffix)
			}
		}
		_, err := fmt.Fprintln(w, line)
		return err
	})
}

func main() {
	var spewMode, noColor bool
	var preview int
	flag.BoolVar(&spewMode, "spew", false, "Dump the parsed node structure with spew")
	flag.BoolVar(&noColor, "nocolor", false, "Disable colors")
	flag.IntVar(&preview, "preview", 32, "Chunk bytes to preview, 0 to disable")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: iffdump [flags] file.iff...")
		flag.PrintDefaults()
		os.Exit(2)
	}

	color := !noColor && term.IsTerminal(int(os.Stdout.Fd()))
	st := newStyles(color)
	failed := false
	for _, path := range flag.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Printf("%v", err)
			failed = true
			continue
		}
		root, err := iff.ParseTree(data)
		if err != nil {
			log.Printf("%s: %v", path, err)
			failed = true
			continue
		}
		if flag.NArg() > 1 {
			fmt.Println(st.meta.Render("# " + path))
		}
		if spewMode {
			utils.FDump(os.Stdout, root)
			continue
		}
		if err := dumpTree(os.Stdout, root, st, preview); err != nil {
			log.Fatal(err)
		}
	}
	if failed {
		os.Exit(1)
	}
}
