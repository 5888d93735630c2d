package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), DefaultFileName), true)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Skeleton.Order != "pre_bind_post" || cfg.Skeleton.TailFraction != 0.5 {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), false); err == nil {
		t.Errorf("missing file accepted")
	}
}

func TestLoadOverridesAndResolve(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFileName)
	data := `
asset_root: assets
encoding: Windows 1252
skeleton:
  order: post_bind_pre
  mirror_x: false
  tail_fraction: 0
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path, false)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.AssetRoot != filepath.Join(dir, "assets") {
		t.Errorf("asset root %q", cfg.AssetRoot)
	}
	if cfg.Skeleton.Order != "post_bind_pre" || cfg.Skeleton.MirrorX {
		t.Errorf("skeleton section not applied: %+v", cfg.Skeleton)
	}

	if err := cfg.Resolve(Flags{Listen: ":9000"}); err != nil {
		t.Fatal(err)
	}
	defer SetEncoding(EncodingUTF8)
	if cfg.Listen != ":9000" {
		t.Errorf("listen flag ignored")
	}
	if cfg.Skeleton.TailFraction != 0.5 {
		t.Errorf("zero tail fraction not defaulted")
	}
	if GetEncoding() == nil {
		t.Errorf("Windows 1252 not activated")
	}

	cfg.Encoding = "klingon"
	if err := cfg.Resolve(Flags{}); err == nil {
		t.Errorf("unknown encoding accepted")
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	cfg := Default()
	cfg.Skeleton.Allocation = "fold"
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path, false)
	if err != nil {
		t.Fatal(err)
	}
	loaded.AssetRoot = cfg.AssetRoot
	if loaded != cfg {
		t.Errorf("saved %+v, loaded %+v", cfg, loaded)
	}
}
