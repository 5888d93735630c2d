package web

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/swgtools/swg_asset_browser/config"
	"github.com/swgtools/swg_asset_browser/formats/lmg"
	"github.com/swgtools/swg_asset_browser/vfs"
)

func newServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	root := vfs.NewDirectoryDriver(t.TempDir())
	data, err := lmg.Encode(lmg.Build("body_a", "body_b"))
	if err != nil {
		t.Fatal(err)
	}
	if err := vfs.WriteFile(root, "appearance/mesh/body.lmg", data); err != nil {
		t.Fatal(err)
	}
	if err := vfs.WriteFile(root, "appearance/mesh/body_a.mgn", []byte("mesh")); err != nil {
		t.Fatal(err)
	}
	s := &Server{Root: root, Config: config.Default()}
	return s, s.Router("")
}

func get(t *testing.T, h http.Handler, url string, v interface{}) int {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
	if v != nil && rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
			t.Fatalf("%s: %v: %s", url, err, rec.Body.String())
		}
	}
	return rec.Code
}

func TestListing(t *testing.T) {
	_, h := newServer(t)
	var listing packListing
	if code := get(t, h, "/json/pack", &listing); code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	want := []string{"appearance/mesh/body.lmg", "appearance/mesh/body_a.mgn"}
	if !reflect.DeepEqual(listing.Files, want) {
		t.Errorf("files %v", listing.Files)
	}
	found := false
	for _, ext := range listing.Extensions {
		found = found || ext == ".lmg"
	}
	if !found {
		t.Errorf("extensions %v", listing.Extensions)
	}
}

func TestAssetJSON(t *testing.T) {
	_, h := newServer(t)
	var g lmg.Group
	if code := get(t, h, "/json/pack/appearance/mesh/body.lmg", &g); code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	if !reflect.DeepEqual(g.Meshes, lmg.Build("body_a", "body_b").Meshes) {
		t.Errorf("meshes %v", g.Meshes)
	}
	if code := get(t, h, "/json/pack/appearance/mesh/none.lmg", nil); code != http.StatusNotFound {
		t.Errorf("missing asset status %d", code)
	}
}

func TestTree(t *testing.T) {
	_, h := newServer(t)
	var tree struct {
		Name string `json:"name"`
		Root struct {
			Children []json.RawMessage `json:"children"`
		} `json:"root"`
	}
	if code := get(t, h, "/json/tree/appearance/mesh/body.lmg", &tree); code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	if tree.Name != "appearance/mesh/body.lmg" || len(tree.Root.Children) != 3 {
		t.Errorf("tree %+v", tree)
	}
	if code := get(t, h, "/json/tree/appearance/mesh/body_a.mgn", nil); code != http.StatusBadRequest {
		t.Errorf("non container status %d", code)
	}
}

func TestAction(t *testing.T) {
	_, h := newServer(t)
	var missing []struct {
		Path string `json:"path"`
	}
	if code := get(t, h, "/action/references/appearance/mesh/body.lmg", &missing); code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	if len(missing) != 1 || missing[0].Path != "appearance/mesh/body_b.mgn" {
		t.Errorf("missing %+v", missing)
	}
	if code := get(t, h, "/action/bogus/appearance/mesh/body.lmg", nil); code != http.StatusBadRequest {
		t.Errorf("unknown action status %d", code)
	}
}

func TestDumpAndUpload(t *testing.T) {
	s, h := newServer(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dump/pack/appearance/mesh/body_a.mgn", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "mesh" {
		t.Fatalf("dump %d %q", rec.Code, rec.Body.String())
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("data", "x.mgn")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte("new mesh"))
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/upload/pack/appearance/mesh/body_b.mgn", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload %d %s", rec.Code, rec.Body.String())
	}
	data, err := vfs.ReadFile(s.Root, "appearance/mesh/body_b.mgn")
	if err != nil || string(data) != "new mesh" {
		t.Errorf("stored %q, %v", data, err)
	}
}
