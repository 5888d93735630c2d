// Package extent holds collision extents: a closed set of shapes, each with
// its own container layout.
//
//	XNNN                       empty chunk, no extent
//	FORM EXSP/0001 { SPHR }    vec3 center, float radius
//	FORM EXBX/0001 { EXSP, BOX }  bounding sphere, vec3 max, vec3 min
//	FORM XCYL/0000 { CYLN }    vec3 base, float radius, float height
//	FORM CMSH/0000 { FORM IDTL/0000 { VERT vec3s, INDX int32s } }
//	FORM CPST/0000 { extents }
//	FORM CMPT/0000 { extent }
//	FORM DTAL/0000 { INFO int32 count, broad extent, detail extent }
package extent

import (
	"encoding/json"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/swgtools/swg_asset_browser/iff"
	"github.com/swgtools/swg_asset_browser/pack"
)

var (
	tagXNNN = iff.NewTag("XNNN")
	tagEXSP = iff.NewTag("EXSP")
	tagSPHR = iff.NewTag("SPHR")
	tagEXBX = iff.NewTag("EXBX")
	tagBOX  = iff.NewTag("BOX ")
	tagXCYL = iff.NewTag("XCYL")
	tagCYLN = iff.NewTag("CYLN")
	tagCMSH = iff.NewTag("CMSH")
	tagIDTL = iff.NewTag("IDTL")
	tagVERT = iff.NewTag("VERT")
	tagINDX = iff.NewTag("INDX")
	tagCPST = iff.NewTag("CPST")
	tagCMPT = iff.NewTag("CMPT")
	tagDTAL = iff.NewTag("DTAL")
	tagINFO = iff.NewTag("INFO")

	version0000 = iff.NewTag("0000")
	version0001 = iff.NewTag("0001")
)

// Extent is one of Null, Sphere, Box, Cylinder, Mesh, Composite, Component
// or Detail.
type Extent interface {
	extent()
}

type Null struct{}

type Sphere struct {
	Center [3]float32 `json:"center"`
	Radius float32    `json:"radius"`
}

// Box is axis aligned.
type Box struct {
	Min [3]float32 `json:"min"`
	Max [3]float32 `json:"max"`
}

// Cylinder stands on Base along +Y.
type Cylinder struct {
	Base   [3]float32 `json:"base"`
	Radius float32    `json:"radius"`
	Height float32    `json:"height"`
}

type Mesh struct {
	Vertices  [][3]float32 `json:"vertices"`
	Triangles [][3]int32   `json:"triangles"`
}

type Composite struct {
	Extents []Extent `json:"extents"`
}

type Component struct {
	Extent Extent `json:"extent"`
}

// Detail tests Broad first and Detail only on a broad hit.
type Detail struct {
	Broad  Extent `json:"broad"`
	Detail Extent `json:"detail"`
}

func (Null) extent()      {}
func (Sphere) extent()    {}
func (Box) extent()       {}
func (Cylinder) extent()  {}
func (Mesh) extent()      {}
func (Composite) extent() {}
func (Component) extent() {}
func (Detail) extent()    {}

// Kind names the variant of e.
func Kind(e Extent) string {
	switch e.(type) {
	case nil, Null:
		return "null"
	case Sphere:
		return "sphere"
	case Box:
		return "box"
	case Cylinder:
		return "cylinder"
	case Mesh:
		return "mesh"
	case Composite:
		return "composite"
	case Component:
		return "component"
	case Detail:
		return "detail"
	}
	return "unknown"
}

// BoxFromCenterScale builds the box spanning center ± scale.
func BoxFromCenterScale(center, scale [3]float32) Box {
	var b Box
	for i := range center {
		s := float32(math.Abs(float64(scale[i])))
		b.Min[i] = center[i] - s
		b.Max[i] = center[i] + s
	}
	return b
}

func (b Box) Center() [3]float32 {
	return mgl32.Vec3(b.Min).Add(mgl32.Vec3(b.Max)).Mul(0.5)
}

// Size returns the half extents, the scale BoxFromCenterScale takes.
func (b Box) Size() [3]float32 {
	return mgl32.Vec3(b.Max).Sub(mgl32.Vec3(b.Min)).Mul(0.5)
}

// Sphere returns the bounding sphere stored alongside the box.
func (b Box) Sphere() Sphere {
	return Sphere{Center: b.Center(), Radius: mgl32.Vec3(b.Size()).Len()}
}

// Write emits e at the writer's current position.
func Write(w *iff.Writer, e Extent) error {
	switch e := e.(type) {
	case nil, Null:
		w.BeginChunk(tagXNNN)
		w.EndChunk()
	case Sphere:
		writeSphere(w, e)
	case Box:
		w.BeginForm(tagEXBX, version0001)
		writeSphere(w, e.Sphere())
		w.BeginChunk(tagBOX)
		w.WriteVec3(e.Max)
		w.WriteVec3(e.Min)
		w.EndChunk()
		w.EndForm()
	case Cylinder:
		w.BeginForm(tagXCYL, version0000)
		w.BeginChunk(tagCYLN)
		w.WriteVec3(e.Base)
		w.WriteFloat(e.Radius)
		w.WriteFloat(e.Height)
		w.EndChunk()
		w.EndForm()
	case Mesh:
		for i, t := range e.Triangles {
			for _, v := range t {
				if v < 0 || int(v) >= len(e.Vertices) {
					return errors.Errorf("Triangle %d references vertex %d of %d", i, v, len(e.Vertices))
				}
			}
		}
		w.BeginForm(tagCMSH, version0000)
		w.BeginForm(tagIDTL, version0000)
		w.BeginChunk(tagVERT)
		for _, v := range e.Vertices {
			w.WriteVec3(v)
		}
		w.EndChunk()
		w.BeginChunk(tagINDX)
		for _, t := range e.Triangles {
			for _, v := range t {
				w.WriteInt32(v)
			}
		}
		w.EndChunk()
		w.EndForm()
		w.EndForm()
	case Composite:
		w.BeginForm(tagCPST, version0000)
		for i, child := range e.Extents {
			if err := Write(w, child); err != nil {
				return errors.Wrapf(err, "composite child %d", i)
			}
		}
		w.EndForm()
	case Component:
		w.BeginForm(tagCMPT, version0000)
		if err := Write(w, e.Extent); err != nil {
			return errors.Wrapf(err, "component")
		}
		w.EndForm()
	case Detail:
		w.BeginForm(tagDTAL, version0000)
		w.BeginChunk(tagINFO)
		w.WriteInt32(2)
		w.EndChunk()
		if err := Write(w, e.Broad); err != nil {
			return errors.Wrapf(err, "broad extent")
		}
		if err := Write(w, e.Detail); err != nil {
			return errors.Wrapf(err, "detail extent")
		}
		w.EndForm()
	default:
		return errors.Errorf("Unknown extent %T", e)
	}
	return nil
}

func writeSphere(w *iff.Writer, s Sphere) {
	w.BeginForm(tagEXSP, version0001)
	w.BeginChunk(tagSPHR)
	w.WriteVec3(s.Center)
	w.WriteFloat(s.Radius)
	w.EndChunk()
	w.EndForm()
}

func Encode(e Extent, opts ...iff.Option) ([]byte, error) {
	w := iff.NewWriter(opts...)
	if err := Write(w, e); err != nil {
		return nil, err
	}
	return w.Bytes()
}

func enterForm(r *iff.Reader, tag, version iff.Tag) error {
	v, err := r.EnterFormTag(tag)
	if err != nil {
		return err
	}
	if v != version {
		return iff.Structuralf(r.Offset(), "unsupported %v version %q", tag, v.String())
	}
	return nil
}

// Read decodes the extent starting at the reader's cursor.
func Read(r *iff.Reader) (Extent, error) {
	tag, err := r.PeekTag()
	if err != nil {
		return nil, err
	}
	switch tag {
	case tagXNNN:
		if _, err := r.Skip(); err != nil {
			return nil, err
		}
		return Null{}, nil
	case tagEXSP:
		return readSphere(r)
	case tagEXBX:
		if err := enterForm(r, tagEXBX, version0001); err != nil {
			return nil, err
		}
		if _, err := readSphere(r); err != nil {
			return nil, err
		}
		if _, err := r.EnterChunkTag(tagBOX); err != nil {
			return nil, err
		}
		var b Box
		b.Max = r.ReadVec3()
		b.Min = r.ReadVec3()
		if err := r.ExitChunk(); err != nil {
			return nil, err
		}
		return b, r.ExitForm()
	case tagXCYL:
		if err := enterForm(r, tagXCYL, version0000); err != nil {
			return nil, err
		}
		if _, err := r.EnterChunkTag(tagCYLN); err != nil {
			return nil, err
		}
		c := Cylinder{Base: r.ReadVec3(), Radius: r.ReadFloat(), Height: r.ReadFloat()}
		if err := r.ExitChunk(); err != nil {
			return nil, err
		}
		return c, r.ExitForm()
	case tagCMSH:
		return readMesh(r)
	case tagCPST:
		if err := enterForm(r, tagCPST, version0000); err != nil {
			return nil, err
		}
		var c Composite
		for !r.AtEnd() {
			child, err := Read(r)
			if err != nil {
				return nil, errors.Wrapf(err, "composite child %d", len(c.Extents))
			}
			c.Extents = append(c.Extents, child)
		}
		return c, r.ExitForm()
	case tagCMPT:
		if err := enterForm(r, tagCMPT, version0000); err != nil {
			return nil, err
		}
		child, err := Read(r)
		if err != nil {
			return nil, errors.Wrapf(err, "component")
		}
		return Component{Extent: child}, r.ExitForm()
	case tagDTAL:
		if err := enterForm(r, tagDTAL, version0000); err != nil {
			return nil, err
		}
		if _, err := r.EnterChunkTag(tagINFO); err != nil {
			return nil, err
		}
		if n := r.ReadInt32(); n != 2 && r.Err() == nil {
			return nil, iff.Structuralf(r.Offset(), "detail extent holds %d children, expected 2", n)
		}
		if err := r.ExitChunk(); err != nil {
			return nil, err
		}
		var d Detail
		if d.Broad, err = Read(r); err != nil {
			return nil, errors.Wrapf(err, "broad extent")
		}
		if d.Detail, err = Read(r); err != nil {
			return nil, errors.Wrapf(err, "detail extent")
		}
		return d, r.ExitForm()
	}
	return nil, &iff.SchemaMismatchError{Expected: tagEXSP, Actual: tag, Offset: r.Offset()}
}

func readSphere(r *iff.Reader) (Sphere, error) {
	var s Sphere
	if err := enterForm(r, tagEXSP, version0001); err != nil {
		return s, err
	}
	if _, err := r.EnterChunkTag(tagSPHR); err != nil {
		return s, err
	}
	s.Center = r.ReadVec3()
	s.Radius = r.ReadFloat()
	if err := r.ExitChunk(); err != nil {
		return s, err
	}
	return s, r.ExitForm()
}

func readMesh(r *iff.Reader) (Mesh, error) {
	var m Mesh
	if err := enterForm(r, tagCMSH, version0000); err != nil {
		return m, err
	}
	if err := enterForm(r, tagIDTL, version0000); err != nil {
		return m, err
	}
	size, err := r.EnterChunkTag(tagVERT)
	if err != nil {
		return m, err
	}
	if size%12 != 0 {
		return m, iff.Structuralf(r.Offset(), "VERT size %d is not a multiple of 12", size)
	}
	m.Vertices = make([][3]float32, size/12)
	for i := range m.Vertices {
		m.Vertices[i] = r.ReadVec3()
	}
	if err := r.ExitChunk(); err != nil {
		return m, err
	}
	if size, err = r.EnterChunkTag(tagINDX); err != nil {
		return m, err
	}
	if size%12 != 0 {
		return m, iff.Structuralf(r.Offset(), "INDX size %d is not a multiple of 12", size)
	}
	m.Triangles = make([][3]int32, size/12)
	for i := range m.Triangles {
		for k := range m.Triangles[i] {
			m.Triangles[i][k] = r.ReadInt32()
		}
	}
	if err := r.ExitChunk(); err != nil {
		return m, err
	}
	if err := r.ExitForm(); err != nil {
		return m, err
	}
	return m, r.ExitForm()
}

func Decode(data []byte, opts ...iff.Option) (Extent, error) {
	r := iff.NewReader(data, opts...)
	e, err := Read(r)
	if err != nil {
		return nil, err
	}
	if !r.AtEnd() {
		return nil, iff.Structuralf(r.Offset(), "trailing data after extent")
	}
	return e, nil
}

// File is a loaded .ext file.
type File struct {
	Extent Extent
}

func (f *File) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind   string `json:"kind"`
		Extent Extent `json:"extent"`
	}{Kind(f.Extent), f.Extent})
}

func load(ctx *pack.Context, data []byte) (interface{}, error) {
	e, err := Decode(data, ctx.Options()...)
	if err != nil {
		return nil, err
	}
	return &File{Extent: e}, nil
}

func init() {
	iff.RegisterFormTag("EXSP", "EXBX", "XCYL", "CMSH", "IDTL", "CPST", "CMPT", "DTAL")
	pack.SetHandler(".ext", load)
}
