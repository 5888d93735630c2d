package extent

import (
	"bytes"
	"math"
	"reflect"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/qmuntal/gltf"

	"github.com/swgtools/swg_asset_browser/iff"
	"github.com/swgtools/swg_asset_browser/skeleton"
	"github.com/swgtools/swg_asset_browser/utils/gltfutils"
)

var (
	sphere   = Sphere{Center: [3]float32{1, 2, 3}, Radius: 0.5}
	box      = BoxFromCenterScale([3]float32{0, 1, 0}, [3]float32{2, 1, 0.5})
	cylinder = Cylinder{Base: [3]float32{0, 0, 1}, Radius: 0.25, Height: 2}
	mesh     = Mesh{
		Vertices:  [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1}},
		Triangles: [][3]int32{{0, 1, 2}, {0, 2, 3}},
	}
)

func samples() map[string]Extent {
	return map[string]Extent{
		"null":      Null{},
		"sphere":    sphere,
		"box":       box,
		"cylinder":  cylinder,
		"mesh":      mesh,
		"composite": Composite{Extents: []Extent{sphere, box}},
		"component": Component{Extent: Composite{Extents: []Extent{cylinder, mesh}}},
		"detail":    Detail{Broad: sphere, Detail: Component{Extent: Composite{Extents: []Extent{box, Null{}}}}},
	}
}

func TestRoundTrip(t *testing.T) {
	for name, e := range samples() {
		t.Run(name, func(t *testing.T) {
			data, err := Encode(e)
			if err != nil {
				t.Fatal(err)
			}
			decoded, err := Decode(data)
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(decoded, e) {
				t.Errorf("decoded:\n%s\nwant:\n%s", spew.Sdump(decoded), spew.Sdump(e))
			}
			if Kind(decoded) != name {
				t.Errorf("kind %q", Kind(decoded))
			}
			again, _ := Encode(decoded)
			if !bytes.Equal(again, data) {
				t.Errorf("re-encoding differs")
			}
			if _, err := iff.ParseTree(data); err != nil && name != "null" {
				t.Errorf("tree: %v", err)
			}
		})
	}
}

func TestBoxLayout(t *testing.T) {
	data, err := Encode(box)
	if err != nil {
		t.Fatal(err)
	}
	root, err := iff.ParseTree(data)
	if err != nil {
		t.Fatal(err)
	}
	if root.Tag.String() != "EXBX" || root.Version.String() != "0001" {
		t.Fatalf("root %v/%v", root.Tag, root.Version)
	}
	sphr := root.Find("EXSP", "SPHR")
	if sphr == nil {
		t.Fatalf("no bounding sphere in %s", spew.Sdump(root))
	}
	r := iff.Float(sphr.Data[12:])
	if want := float32(math.Sqrt(4 + 1 + 0.25)); math.Abs(float64(r-want)) > 1e-6 {
		t.Errorf("bounding radius %v, want %v", r, want)
	}
	boxChunk := root.Child("BOX ")
	if got := [3]float32{iff.Float(boxChunk.Data), iff.Float(boxChunk.Data[4:]), iff.Float(boxChunk.Data[8:])}; got != box.Max {
		t.Errorf("BOX starts with %v, want max %v", got, box.Max)
	}
}

func TestBoxHelpers(t *testing.T) {
	b := BoxFromCenterScale([3]float32{1, 1, 1}, [3]float32{-1, 2, 3})
	if b.Min != [3]float32{0, -1, -2} || b.Max != [3]float32{2, 3, 4} {
		t.Errorf("box %+v", b)
	}
	if b.Center() != [3]float32{1, 1, 1} || b.Size() != [3]float32{1, 2, 3} {
		t.Errorf("center %v size %v", b.Center(), b.Size())
	}
}

func TestEncodeErrors(t *testing.T) {
	bad := Mesh{Vertices: [][3]float32{{0, 0, 0}}, Triangles: [][3]int32{{0, 0, 1}}}
	if _, err := Encode(Composite{Extents: []Extent{bad}}); err == nil {
		t.Errorf("out of range triangle accepted")
	}
}

func TestDecodeErrors(t *testing.T) {
	w := iff.NewWriter()
	w.BeginForm(iff.NewTag("SMAT"), iff.NewTag("0003"))
	w.EndForm()
	unknown, _ := w.Bytes()
	if _, err := Decode(unknown); !iff.IsSchemaMismatch(err) {
		t.Errorf("unknown root: %v", err)
	}

	w = iff.NewWriter()
	w.BeginForm(tagDTAL, version0000)
	w.BeginChunk(tagINFO)
	w.WriteInt32(3)
	w.EndChunk()
	w.EndForm()
	detail, _ := w.Bytes()
	if _, err := Decode(detail); !iff.IsStructural(err) {
		t.Errorf("bad detail count: %v", err)
	}

	w = iff.NewWriter()
	w.BeginForm(tagCMSH, version0000)
	w.BeginForm(tagIDTL, version0000)
	w.BeginChunk(tagVERT)
	w.WriteFloat(1)
	w.EndChunk()
	w.EndForm()
	w.EndForm()
	verts, _ := w.Bytes()
	if _, err := Decode(verts); !iff.IsStructural(err) {
		t.Errorf("bad VERT size: %v", err)
	}
}

func near(a, b Extent) bool {
	const tol = 1e-4
	vec := func(x, y [3]float32) bool {
		for i := range x {
			if math.Abs(float64(x[i]-y[i])) > tol {
				return false
			}
		}
		return true
	}
	f := func(x, y float32) bool { return math.Abs(float64(x-y)) <= tol }
	switch a := a.(type) {
	case Null:
		_, ok := b.(Null)
		return ok
	case Sphere:
		b, ok := b.(Sphere)
		return ok && vec(a.Center, b.Center) && f(a.Radius, b.Radius)
	case Box:
		b, ok := b.(Box)
		return ok && vec(a.Min, b.Min) && vec(a.Max, b.Max)
	case Cylinder:
		b, ok := b.(Cylinder)
		return ok && vec(a.Base, b.Base) && f(a.Radius, b.Radius) && f(a.Height, b.Height)
	case Mesh:
		b, ok := b.(Mesh)
		if !ok || len(a.Vertices) != len(b.Vertices) || !reflect.DeepEqual(a.Triangles, b.Triangles) {
			return false
		}
		for i := range a.Vertices {
			if !vec(a.Vertices[i], b.Vertices[i]) {
				return false
			}
		}
		return true
	case Composite:
		b, ok := b.(Composite)
		if !ok || len(a.Extents) != len(b.Extents) {
			return false
		}
		for i := range a.Extents {
			if !near(a.Extents[i], b.Extents[i]) {
				return false
			}
		}
		return true
	case Component:
		b, ok := b.(Component)
		return ok && near(a.Extent, b.Extent)
	case Detail:
		b, ok := b.(Detail)
		return ok && near(a.Broad, b.Broad) && near(a.Detail, b.Detail)
	}
	return false
}

func TestGLTFRoundTrip(t *testing.T) {
	for _, mirror := range []bool{false, true} {
		convention := skeleton.Convention{MirrorX: mirror}
		for name, e := range map[string]Extent{
			"sphere":    sphere,
			"mesh":      mesh,
			"component": Component{Extent: Composite{Extents: []Extent{box, cylinder}}},
			"detail":    Detail{Broad: sphere, Detail: Component{Extent: Composite{Extents: []Extent{box, mesh}}}},
		} {
			doc, err := ExportGLTF(e, convention)
			if err != nil {
				t.Fatal(err)
			}
			var buf bytes.Buffer
			if err := gltfutils.ExportBinary(&buf, doc); err != nil {
				t.Fatal(err)
			}
			loaded, err := gltfutils.Decode(&buf)
			if err != nil {
				t.Fatal(err)
			}
			got, err := ImportGLTF(loaded, convention)
			if err != nil {
				t.Fatal(err)
			}
			if !near(got, e) {
				t.Errorf("%s mirror=%v:\n%s\nwant:\n%s", name, mirror, spew.Sdump(got), spew.Sdump(e))
			}
		}
	}
}

func TestImportByName(t *testing.T) {
	doc := gltfutils.NewDocument()
	for _, n := range []string{"Cyln.001", "camera", "Sphere"} {
		gltfutils.AddNode(doc, &gltf.Node{Name: n})
	}
	got, err := ImportGLTF(doc, skeleton.Convention{})
	if err != nil {
		t.Fatal(err)
	}
	want := Component{Extent: Composite{Extents: []Extent{
		Cylinder{Base: [3]float32{0, -0.5, 0}, Radius: 1, Height: 1},
		Sphere{Radius: 1},
	}}}
	if !near(got, want) {
		t.Errorf("imported %s", spew.Sdump(got))
	}
}
