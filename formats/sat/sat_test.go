package sat

import (
	"bytes"
	"encoding/binary"
	"reflect"
	"testing"

	"github.com/davecgh/go-spew/spew"

	"github.com/swgtools/swg_asset_browser/formats/lmg"
	"github.com/swgtools/swg_asset_browser/formats/skt"
	"github.com/swgtools/swg_asset_browser/iff"
	"github.com/swgtools/swg_asset_browser/skeleton"
	"github.com/swgtools/swg_asset_browser/vfs"
)

func TestBuild(t *testing.T) {
	a := Build("hum_m.sat", []string{"hum_m_body.lmg", "hum_m_head"}, []string{"all_b.skt", "face"},
		map[string]string{"all_b": "appearance/lat/hum_m.lat"})
	want := &Appearance{
		Name:                "hum_m",
		MeshGroups:          []string{"appearance/mesh/hum_m_body.lmg", "appearance/mesh/hum_m_head.lmg"},
		Skeletons:           []SkeletonRef{{Path: "appearance/skeleton/all_b.skt"}, {Path: "appearance/skeleton/face.skt"}},
		AnimationController: true,
		AnimationTables: []AnimationTable{
			{Skeleton: "appearance/skeleton/all_b.skt", Table: "appearance/lat/hum_m.lat"},
			{Skeleton: "appearance/skeleton/face.skt"},
		},
	}
	if !reflect.DeepEqual(a, want) {
		t.Errorf("built:\n%s", spew.Sdump(a))
	}
}

func TestRoundTrip(t *testing.T) {
	a := Build("x", []string{"a"}, []string{"b", "c"}, map[string]string{"c": "appearance/lat/c.lat"})
	a.Name = ""
	a.Skeletons[1].Attachment = "head"
	data, err := Encode(a)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(decoded, a) {
		t.Errorf("decoded:\n%s\nwant:\n%s", spew.Sdump(decoded), spew.Sdump(a))
	}
	again, _ := Encode(decoded)
	if !bytes.Equal(again, data) {
		t.Errorf("re-encoding differs")
	}

	root, err := iff.ParseTree(data)
	if err != nil {
		t.Fatal(err)
	}
	var tags []string
	for _, c := range root.Children {
		tags = append(tags, c.Tag.String())
	}
	if !reflect.DeepEqual(tags, []string{"INFO", "MSGN", "SKTI", "LATX"}) {
		t.Errorf("children %v", tags)
	}
	if info := root.Child("INFO"); !bytes.Equal(info.Data, []byte{1, 0, 0, 0, 2, 0, 0, 0, 1}) {
		t.Errorf("INFO % x", info.Data)
	}
}

func TestDecodeWithoutTables(t *testing.T) {
	w := iff.NewWriter()
	w.BeginForm(tagSMAT, version0003)
	w.BeginChunk(tagINFO)
	w.WriteInt32(0)
	w.WriteInt32(1)
	w.WriteBool(false)
	w.EndChunk()
	w.BeginChunk(tagMSGN)
	w.EndChunk()
	w.BeginChunk(tagSKTI)
	w.WriteStrings("appearance/skeleton/a.skt", "")
	w.EndChunk()
	w.EndForm()
	data, _ := w.Bytes()

	a, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(a.Skeletons) != 1 || a.AnimationTables != nil || a.AnimationController {
		t.Errorf("decoded %s", spew.Sdump(a))
	}
}

func TestDecodeErrors(t *testing.T) {
	w := iff.NewWriter()
	w.BeginForm(tagSMAT, version0003)
	w.BeginChunk(tagINFO)
	w.WriteInt32(2)
	w.WriteInt32(0)
	w.WriteBool(true)
	w.EndChunk()
	w.BeginChunk(tagMSGN)
	w.WriteString("appearance/mesh/a.lmg")
	w.EndChunk()
	w.BeginChunk(tagSKTI)
	w.EndChunk()
	w.EndForm()
	short, _ := w.Bytes()
	if _, err := Decode(short); !iff.IsStructural(err) {
		t.Errorf("short MSGN: %v", err)
	}

	w = iff.NewWriter()
	w.BeginForm(tagSMAT, iff.NewTag("0002"))
	w.EndForm()
	old, _ := w.Bytes()
	if _, err := Decode(old); !iff.IsStructural(err) {
		t.Errorf("old version: %v", err)
	}
}

func TestResolveReferences(t *testing.T) {
	root := vfs.NewDirectoryDriver(t.TempDir())
	if err := vfs.WriteFile(root, "appearance/skeleton/b.skt", []byte{0}); err != nil {
		t.Fatal(err)
	}
	a := Build("x", []string{"a"}, []string{"b"}, map[string]string{"b": `appearance\lat\b.lat`})
	missing, err := a.ResolveReferences(root)
	if err != nil {
		t.Fatal(err)
	}
	var paths []string
	for _, m := range missing {
		paths = append(paths, m.Path)
	}
	if !reflect.DeepEqual(paths, []string{"appearance/mesh/a.lmg", `appearance\lat\b.lat`}) {
		t.Errorf("missing %q", paths)
	}
	// references stay as stored
	if a.AnimationTables[0].Table != `appearance\lat\b.lat` {
		t.Errorf("table rewritten to %q", a.AnimationTables[0].Table)
	}
}

func TestBundleWrite(t *testing.T) {
	root := vfs.NewDirectoryDriver(t.TempDir())
	b := &Bundle{
		Name:   "creature",
		Meshes: []MeshPart{{Name: "creature_body", Group: lmg.Build("creature_body_l0")}},
		Skeletons: []SkeletonPart{{
			Name: "creature",
			Asset: &skeleton.Asset{Levels: []skeleton.Level{{Joints: []skeleton.Joint{
				skeleton.NewJoint("root", -1, [3]float32{}),
			}}}},
			AnimationTable: "appearance/lat/creature.lat",
		}},
	}
	if err := b.Write(root); err != nil {
		t.Fatal(err)
	}

	data, err := vfs.ReadFile(root, b.AppearancePath())
	if err != nil {
		t.Fatal(err)
	}
	a, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	missing, err := a.ResolveReferences(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(missing) != 1 || missing[0].Path != "appearance/lat/creature.lat" {
		t.Errorf("missing %v", missing)
	}

	sktData, err := vfs.ReadFile(root, "appearance/skeleton/creature.skt")
	if err != nil {
		t.Fatal(err)
	}
	asset, err := skt.Decode(sktData)
	if err != nil {
		t.Fatal(err)
	}
	if asset.Levels[0].Joints[0].Name != "root" {
		t.Errorf("skeleton %s", spew.Sdump(asset))
	}
}

func TestCorruptTableLength(t *testing.T) {
	a := Build("x", []string{"a"}, []string{"b"}, map[string]string{"b": "appearance/lat/b.lat"})
	data, err := Encode(a)
	if err != nil {
		t.Fatal(err)
	}
	i := bytes.Index(data, []byte("LATX"))
	if i < 4 {
		t.Fatal("LATX not found")
	}
	binary.LittleEndian.PutUint32(data[i-4:], 0x7fffff00)
	decoded, err := Decode(data)
	if !iff.IsStructural(err) {
		t.Errorf("decoded %s with error %v", spew.Sdump(decoded), err)
	}
}
