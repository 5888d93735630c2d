// Package pal reads and writes RIFF palettes used to tint customizable
// appearances.
//
//	"RIFF" u32 size "PAL " "data" u32 data size
//	u16 version (0x0300) i16 color count
//	count x { r, g, b, flags uint8 }
package pal

import (
	"bytes"
	"image"
	"image/color"
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/HugoSmits86/nativewebp"
	"github.com/pkg/errors"
	"golang.org/x/image/draw"

	"github.com/swgtools/swg_asset_browser/iff"
	"github.com/swgtools/swg_asset_browser/pack"
	"github.com/swgtools/swg_asset_browser/webutils"
)

const (
	headerSize = 22
	version    = 0x0300
)

type Entry struct {
	R     uint8 `json:"r"`
	G     uint8 `json:"g"`
	B     uint8 `json:"b"`
	Flags uint8 `json:"flags"`
}

func (e Entry) RGBA() color.RGBA {
	return color.RGBA{R: e.R, G: e.G, B: e.B, A: 0xff}
}

type Palette struct {
	Entries []Entry `json:"entries"`
}

func Decode(data []byte) (*Palette, error) {
	if len(data) < headerSize+2 {
		return nil, iff.Structuralf(0, "palette of %d bytes is shorter than its header", len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "PAL " {
		return nil, iff.Structuralf(0, "not a RIFF palette")
	}
	count := int(iff.Int16(data[headerSize:]))
	if count < 0 {
		return nil, iff.Structuralf(headerSize, "negative color count %d", count)
	}
	if need := headerSize + 2 + count*4; len(data) < need {
		return nil, iff.Structuralf(len(data), "palette holds %d colors but only %d bytes", count, len(data))
	}
	p := &Palette{Entries: make([]Entry, count)}
	for i := range p.Entries {
		b := data[headerSize+2+i*4:]
		p.Entries[i] = Entry{R: b[0], G: b[1], B: b[2], Flags: b[3]}
	}
	return p, nil
}

func Encode(p *Palette) ([]byte, error) {
	if len(p.Entries) > 0x7fff {
		return nil, errors.Errorf("Too many colors: %d", len(p.Entries))
	}
	dataSize := 4 + 4*len(p.Entries)
	buf := make([]byte, 0, 20+dataSize)
	buf = append(buf, "RIFF"...)
	buf = iff.AppendUint32(buf, uint32(12+dataSize))
	buf = append(buf, "PAL data"...)
	buf = iff.AppendUint32(buf, uint32(dataSize))
	buf = iff.AppendUint16(buf, version)
	buf = iff.AppendInt16(buf, int16(len(p.Entries)))
	for _, e := range p.Entries {
		buf = append(buf, e.R, e.G, e.B, e.Flags)
	}
	return buf, nil
}

func Load(path string) (*Palette, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to read %q", path)
	}
	p, err := Decode(data)
	return p, errors.Wrapf(err, "Failed to decode %q", path)
}

func Save(p *Palette, path string) error {
	data, err := Encode(p)
	if err != nil {
		return err
	}
	return iff.WriteFileAtomic(path, data)
}

// Swatch draws the palette as a grid of cellSize square cells, columns wide.
func (p *Palette) Swatch(cellSize, columns int) image.Image {
	if columns <= 0 {
		columns = 16
	}
	if cellSize <= 0 {
		cellSize = 1
	}
	rows := (len(p.Entries) + columns - 1) / columns
	if rows == 0 {
		rows = 1
	}
	small := image.NewRGBA(image.Rect(0, 0, columns, rows))
	for i, e := range p.Entries {
		small.SetRGBA(i%columns, i/columns, e.RGBA())
	}
	if cellSize == 1 {
		return small
	}
	big := image.NewRGBA(image.Rect(0, 0, columns*cellSize, rows*cellSize))
	draw.NearestNeighbor.Scale(big, big.Bounds(), small, small.Bounds(), draw.Src, nil)
	return big
}

func (p *Palette) WriteWebP(w io.Writer, cellSize, columns int) error {
	if err := nativewebp.Encode(w, p.Swatch(cellSize, columns), nil); err != nil {
		return errors.Wrapf(err, "Failed to encode webp")
	}
	return nil
}

// File is the loaded form of a .pal file in the browser.
type File struct {
	Palette
	Name string `json:"name"`
}

func (f *File) HttpAction(ctx *pack.Context, w http.ResponseWriter, r *http.Request, action string) {
	switch action {
	case "webp":
		cell, columns := 16, 16
		if v := r.URL.Query().Get("cell"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				webutils.WriteError(w, errors.Wrapf(err, "Invalid cell size %q", v))
				return
			}
			cell = n
		}
		var buf bytes.Buffer
		if err := f.WriteWebP(&buf, cell, columns); err != nil {
			webutils.WriteError(w, err)
			return
		}
		webutils.WriteFile(w, &buf, ctx.BaseName()+".webp")
	default:
		webutils.WriteError(w, errors.Errorf("Unknown action %q", action))
	}
}

func load(ctx *pack.Context, data []byte) (interface{}, error) {
	p, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return &File{Palette: *p, Name: ctx.BaseName()}, nil
}

func init() {
	pack.SetHandler(".pal", load)
}
