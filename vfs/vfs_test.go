package vfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"

	"github.com/swgtools/swg_asset_browser/iff"
)

func TestCleanPath(t *testing.T) {
	for in, want := range map[string]string{
		`appearance\skeleton\all_b.skt`: "appearance/skeleton/all_b.skt",
		"/appearance//mesh/a.lmg":       "appearance/mesh/a.lmg",
		"":                              "",
		"a/../b.sat":                    "b.sat",
	} {
		if got := CleanPath(in); got != want {
			t.Errorf("CleanPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDirectoryDriver(t *testing.T) {
	root := t.TempDir()
	d := NewDirectoryDriver(root)

	if err := WriteFile(d, "appearance/skeleton/a.skt", []byte("skt")); err != nil {
		t.Fatal(err)
	}
	if err := WriteFile(d, "appearance/a.sat", []byte("sat")); err != nil {
		t.Fatal(err)
	}
	// climbing out of the root lands inside it
	if err := WriteFile(d, "../../escape.txt", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(root, "escape.txt")); err != nil {
		t.Errorf("escaping name not kept inside root: %v", err)
	}

	files, err := d.ListRecursive()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"appearance/a.sat", "appearance/skeleton/a.skt", "escape.txt"}
	if len(files) != len(want) {
		t.Fatalf("files %v", files)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("files[%d] = %q, want %q", i, files[i], want[i])
		}
	}

	data, err := ReadFile(d, `appearance\skeleton\a.skt`)
	if err != nil || string(data) != "skt" {
		t.Errorf("ReadFile: %q %v", data, err)
	}

	if _, err := FindFile(d, `appearance\skeleton\a.skt`); err != nil {
		t.Errorf("FindFile: %v", err)
	}
	_, err = FindFile(d, "appearance/mesh/missing.lmg")
	var nf *iff.ResourceNotFoundError
	if !errors.As(err, &nf) || nf.Path != "appearance/mesh/missing.lmg" {
		t.Errorf("expected resource not found, got %v", err)
	}
	if _, err := FindFile(d, "appearance"); err == nil {
		t.Errorf("directory returned as file")
	}
}
