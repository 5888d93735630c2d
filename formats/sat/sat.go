// Package sat reads and writes skeletal appearance templates, which tie mesh
// LOD groups, skeletons and logical animation tables together.
//
//	FORM SMAT/0003
//	  INFO int32 mesh group count, int32 skeleton count, bool animation controller
//	  MSGN strings, one mesh group path each
//	  SKTI string pairs: skeleton path, attachment transform
//	  LATX int16 count, then string pairs: skeleton path, animation table path
package sat

import (
	"os"
	"path"
	"strings"

	"github.com/pkg/errors"

	"github.com/swgtools/swg_asset_browser/formats"
	"github.com/swgtools/swg_asset_browser/iff"
	"github.com/swgtools/swg_asset_browser/pack"
	"github.com/swgtools/swg_asset_browser/vfs"
)

var (
	tagSMAT = iff.NewTag("SMAT")
	tagINFO = iff.NewTag("INFO")
	tagMSGN = iff.NewTag("MSGN")
	tagSKTI = iff.NewTag("SKTI")
	tagLATX = iff.NewTag("LATX")

	version0003 = iff.NewTag("0003")
)

const SkeletonDir = "appearance/skeleton/"

// SkeletonRef names a skeleton and the transform of the parent skeleton it
// hangs from. The first skeleton has no attachment.
type SkeletonRef struct {
	Path       string `json:"path" yaml:"path"`
	Attachment string `json:"attachment" yaml:"attachment"`
}

// AnimationTable pairs a skeleton with its logical animation table.
type AnimationTable struct {
	Skeleton string `json:"skeleton" yaml:"skeleton"`
	Table    string `json:"table" yaml:"table"`
}

type Appearance struct {
	Name                string           `json:"name" yaml:"-"`
	MeshGroups          []string         `json:"mesh_groups" yaml:"mesh_groups"`
	Skeletons           []SkeletonRef    `json:"skeletons" yaml:"skeletons"`
	AnimationController bool             `json:"animation_controller" yaml:"animation_controller"`
	AnimationTables     []AnimationTable `json:"animation_tables" yaml:"animation_tables"`
}

func trimExt(name string) string {
	name = path.Base(name)
	if i := strings.IndexByte(name, '.'); i > 0 {
		return name[:i]
	}
	return name
}

func MeshGroupPath(name string) string { return "appearance/mesh/" + trimExt(name) + ".lmg" }
func SkeletonPath(name string) string  { return SkeletonDir + trimExt(name) + ".skt" }

// Build makes an appearance over the named mesh groups and skeletons. tables
// maps a skeleton name to its animation table; skeletons without one get an
// empty table. The animation controller is enabled.
func Build(name string, lmgs, skts []string, tables map[string]string) *Appearance {
	a := &Appearance{Name: trimExt(name), AnimationController: true}
	for _, n := range lmgs {
		a.MeshGroups = append(a.MeshGroups, MeshGroupPath(n))
	}
	for _, n := range skts {
		p := SkeletonPath(n)
		a.Skeletons = append(a.Skeletons, SkeletonRef{Path: p})
		a.AnimationTables = append(a.AnimationTables, AnimationTable{Skeleton: p, Table: tables[trimExt(n)]})
	}
	return a
}

func Decode(data []byte, opts ...iff.Option) (*Appearance, error) {
	r := iff.NewReader(data, opts...)
	version, err := r.EnterFormTag(tagSMAT)
	if err != nil {
		return nil, err
	}
	if version != version0003 {
		return nil, iff.Structuralf(0, "unsupported SMAT version %q", version.String())
	}

	if _, err := r.EnterChunkTag(tagINFO); err != nil {
		return nil, err
	}
	meshCount := int(r.ReadInt32())
	skeletonCount := int(r.ReadInt32())
	a := &Appearance{AnimationController: r.ReadBool()}
	if err := r.ExitChunk(); err != nil {
		return nil, err
	}
	if meshCount < 0 || skeletonCount < 0 {
		return nil, iff.Structuralf(r.Offset(), "negative counts %d/%d", meshCount, skeletonCount)
	}

	if _, err := r.EnterChunkTag(tagMSGN); err != nil {
		return nil, err
	}
	for i := 0; i < meshCount && r.Err() == nil; i++ {
		a.MeshGroups = append(a.MeshGroups, r.ReadString())
	}
	if err := r.ExitChunk(); err != nil {
		return nil, errors.Wrapf(err, "MSGN")
	}

	if _, err := r.EnterChunkTag(tagSKTI); err != nil {
		return nil, err
	}
	for i := 0; i < skeletonCount && r.Err() == nil; i++ {
		a.Skeletons = append(a.Skeletons, SkeletonRef{Path: r.ReadString(), Attachment: r.ReadString()})
	}
	if err := r.ExitChunk(); err != nil {
		return nil, errors.Wrapf(err, "SKTI")
	}

	hasLATX, err := r.HasSibling(tagLATX)
	if err != nil {
		return nil, errors.Wrapf(err, "LATX")
	}
	if hasLATX {
		if _, err := r.EnterChunkTag(tagLATX); err != nil {
			return nil, err
		}
		n := int(r.ReadInt16())
		for i := 0; i < n && r.Err() == nil; i++ {
			a.AnimationTables = append(a.AnimationTables, AnimationTable{Skeleton: r.ReadString(), Table: r.ReadString()})
		}
		if err := r.ExitChunk(); err != nil {
			return nil, errors.Wrapf(err, "LATX")
		}
	}
	return a, r.ExitForm()
}

func Encode(a *Appearance, opts ...iff.Option) ([]byte, error) {
	if len(a.AnimationTables) > 0x7fff {
		return nil, errors.Errorf("Too many animation tables: %d", len(a.AnimationTables))
	}
	w := iff.NewWriter(opts...)
	w.BeginForm(tagSMAT, version0003)

	w.BeginChunk(tagINFO)
	w.WriteInt32(int32(len(a.MeshGroups)))
	w.WriteInt32(int32(len(a.Skeletons)))
	w.WriteBool(a.AnimationController)
	w.EndChunk()

	w.BeginChunk(tagMSGN)
	w.WriteStrings(a.MeshGroups...)
	w.EndChunk()

	w.BeginChunk(tagSKTI)
	for _, s := range a.Skeletons {
		w.WriteStrings(s.Path, s.Attachment)
	}
	w.EndChunk()

	w.BeginChunk(tagLATX)
	w.WriteInt16(int16(len(a.AnimationTables)))
	for _, t := range a.AnimationTables {
		w.WriteStrings(t.Skeleton, t.Table)
	}
	w.EndChunk()

	w.EndForm()
	return w.Bytes()
}

func Load(path string, opts ...iff.Option) (*Appearance, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to read %q", path)
	}
	a, err := Decode(data, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to decode %q", path)
	}
	a.Name = trimExt(path)
	return a, nil
}

func Save(a *Appearance, path string, opts ...iff.Option) error {
	data, err := Encode(a, opts...)
	if err != nil {
		return err
	}
	return iff.WriteFileAtomic(path, data)
}

// References lists every stored path: mesh groups, skeletons and the non
// empty animation tables.
func (a *Appearance) References() []string {
	refs := append([]string(nil), a.MeshGroups...)
	for _, s := range a.Skeletons {
		refs = append(refs, s.Path)
	}
	for _, t := range a.AnimationTables {
		if t.Table != "" {
			refs = append(refs, t.Table)
		}
	}
	return refs
}

// ResolveReferences reports the references missing under root. They are
// logged and kept in the appearance unchanged.
func (a *Appearance) ResolveReferences(root vfs.Directory) ([]*iff.ResourceNotFoundError, error) {
	return formats.ResolveReferences(root, a.References())
}

func load(ctx *pack.Context, data []byte) (interface{}, error) {
	a, err := Decode(data, ctx.Options()...)
	if err != nil {
		return nil, err
	}
	a.Name = ctx.BaseName()
	return a, nil
}

func init() {
	iff.RegisterFormTag("SMAT")
	pack.SetHandler(".sat", load)
}
