// Package lmg reads and writes mesh LOD groups, the list of per level meshes
// of an appearance.
//
//	FORM MLOD/0000
//	  INFO int16 mesh count
//	  NAME string mesh path (one chunk per mesh, most detailed first)
package lmg

import (
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/pkg/errors"

	"github.com/swgtools/swg_asset_browser/formats"
	"github.com/swgtools/swg_asset_browser/iff"
	"github.com/swgtools/swg_asset_browser/pack"
	"github.com/swgtools/swg_asset_browser/vfs"
	"github.com/swgtools/swg_asset_browser/webutils"
)

var (
	tagMLOD = iff.NewTag("MLOD")
	tagINFO = iff.NewTag("INFO")
	tagNAME = iff.NewTag("NAME")

	version0000 = iff.NewTag("0000")
)

const MeshDir = "appearance/mesh/"

type Group struct {
	Meshes []string `json:"meshes" yaml:"meshes"`
}

// MeshPath is the stored reference of a mesh generator called name.
func MeshPath(name string) string {
	return MeshDir + strings.TrimSuffix(name, path.Ext(name)) + ".mgn"
}

// Build makes a group referencing one mesh generator per name.
func Build(names ...string) *Group {
	g := &Group{Meshes: make([]string, len(names))}
	for i, n := range names {
		g.Meshes[i] = MeshPath(n)
	}
	return g
}

func Decode(data []byte, opts ...iff.Option) (*Group, error) {
	r := iff.NewReader(data, opts...)
	version, err := r.EnterFormTag(tagMLOD)
	if err != nil {
		return nil, err
	}
	if version != version0000 {
		return nil, iff.Structuralf(0, "unsupported MLOD version %q", version.String())
	}
	if _, err := r.EnterChunkTag(tagINFO); err != nil {
		return nil, err
	}
	count := int(r.ReadInt16())
	if err := r.ExitChunk(); err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, iff.Structuralf(r.Offset(), "negative mesh count %d", count)
	}

	g := &Group{Meshes: make([]string, 0, count)}
	for i := 0; i < count; i++ {
		if _, err := r.EnterChunkTag(tagNAME); err != nil {
			return nil, errors.Wrapf(err, "mesh %d", i)
		}
		g.Meshes = append(g.Meshes, r.ReadString())
		if err := r.ExitChunk(); err != nil {
			return nil, err
		}
	}
	return g, r.ExitForm()
}

func Encode(g *Group, opts ...iff.Option) ([]byte, error) {
	if len(g.Meshes) > 0x7fff {
		return nil, errors.Errorf("Too many meshes: %d", len(g.Meshes))
	}
	w := iff.NewWriter(opts...)
	w.BeginForm(tagMLOD, version0000)
	w.BeginChunk(tagINFO)
	w.WriteInt16(int16(len(g.Meshes)))
	w.EndChunk()
	for _, m := range g.Meshes {
		w.BeginChunk(tagNAME)
		w.WriteString(m)
		w.EndChunk()
	}
	w.EndForm()
	return w.Bytes()
}

func Load(path string, opts ...iff.Option) (*Group, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to read %q", path)
	}
	g, err := Decode(data, opts...)
	return g, errors.Wrapf(err, "Failed to decode %q", path)
}

func Save(g *Group, path string, opts ...iff.Option) error {
	data, err := Encode(g, opts...)
	if err != nil {
		return err
	}
	return iff.WriteFileAtomic(path, data)
}

// References reports the meshes missing under root.
func (g *Group) References(root vfs.Directory) ([]*iff.ResourceNotFoundError, error) {
	return formats.ResolveReferences(root, g.Meshes)
}

func (g *Group) HttpAction(ctx *pack.Context, w http.ResponseWriter, r *http.Request, action string) {
	switch action {
	case "references":
		missing, err := g.References(ctx.Root)
		if err != nil {
			webutils.WriteError(w, err)
			return
		}
		webutils.WriteJson(w, missing)
	default:
		webutils.WriteError(w, errors.Errorf("Unknown action %q", action))
	}
}

func load(ctx *pack.Context, data []byte) (interface{}, error) {
	return Decode(data, ctx.Options()...)
}

func init() {
	iff.RegisterFormTag("MLOD")
	pack.SetHandler(".lmg", load)
}
