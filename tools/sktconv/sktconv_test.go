package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"go.uber.org/zap"

	"github.com/swgtools/swg_asset_browser/formats/skt"
	"github.com/swgtools/swg_asset_browser/skeleton"
)

func TestConvertChain(t *testing.T) {
	dir := t.TempDir()
	asset := &skeleton.Asset{Levels: []skeleton.Level{{Joints: []skeleton.Joint{
		skeleton.NewJoint("root", -1, [3]float32{0, 0, 0}),
		skeleton.NewJoint("spine", 0, [3]float32{0, 1, 0}),
		skeleton.NewJoint("head", 1, [3]float32{0, 0.5, 0}),
	}}}}
	src := filepath.Join(dir, "body.skt")
	if err := skt.Save(asset, src); err != nil {
		t.Fatal(err)
	}

	step := func(in, out string) {
		t.Helper()
		j := &job{input: in, output: out, settings: skt.DefaultSettings(), logger: zap.NewNop()}
		if err := j.run(); err != nil {
			t.Fatalf("%s -> %s: %v", in, out, err)
		}
	}
	yamlPath := filepath.Join(dir, "body.yaml")
	back := filepath.Join(dir, "back.skt")
	step(src, yamlPath)
	step(yamlPath, back)

	got, err := skt.Load(back)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got.Levels, asset.Levels) {
		t.Errorf("levels changed through yaml: %+v", got.Levels)
	}

	glb := filepath.Join(dir, "body.glb")
	step(src, glb)
	if st, err := os.Stat(glb); err != nil || st.Size() == 0 {
		t.Fatalf("glb: %v", err)
	}
	fromGlb := filepath.Join(dir, "from_glb.skt")
	step(glb, fromGlb)
	imported, err := skt.Load(fromGlb)
	if err != nil {
		t.Fatal(err)
	}
	if len(imported.Levels) != 1 || len(imported.Levels[0].Joints) != 3 {
		t.Errorf("imported %+v", imported)
	}

	j := &job{input: src, output: filepath.Join(dir, "x.obj"), settings: skt.DefaultSettings(), logger: zap.NewNop()}
	if err := j.run(); err == nil {
		t.Errorf("unknown output accepted")
	}
}
