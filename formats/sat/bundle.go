package sat

import (
	"net/http"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/swgtools/swg_asset_browser/formats"
	"github.com/swgtools/swg_asset_browser/formats/lmg"
	"github.com/swgtools/swg_asset_browser/formats/skt"
	"github.com/swgtools/swg_asset_browser/iff"
	"github.com/swgtools/swg_asset_browser/pack"
	"github.com/swgtools/swg_asset_browser/skeleton"
	"github.com/swgtools/swg_asset_browser/vfs"
	"github.com/swgtools/swg_asset_browser/webutils"
)

type MeshPart struct {
	Name  string
	Group *lmg.Group
}

type SkeletonPart struct {
	Name           string
	Asset          *skeleton.Asset
	AnimationTable string
}

// Bundle is an appearance together with the mesh groups and skeletons it
// references, written out in one go.
type Bundle struct {
	Name      string
	Meshes    []MeshPart
	Skeletons []SkeletonPart
}

func (b *Bundle) Appearance() *Appearance {
	lmgs := make([]string, len(b.Meshes))
	for i, m := range b.Meshes {
		lmgs[i] = m.Name
	}
	skts := make([]string, len(b.Skeletons))
	tables := make(map[string]string)
	for i, s := range b.Skeletons {
		skts[i] = s.Name
		if s.AnimationTable != "" {
			tables[trimExt(s.Name)] = s.AnimationTable
		}
	}
	return Build(b.Name, lmgs, skts, tables)
}

// AppearancePath is where Write stores the appearance itself.
func (b *Bundle) AppearancePath() string {
	return "appearance/" + trimExt(b.Name) + ".sat"
}

// Write stores the appearance under root along with every part that carries
// content. Parts without content are only referenced.
func (b *Bundle) Write(root vfs.Directory, opts ...iff.Option) error {
	for _, m := range b.Meshes {
		if m.Group == nil {
			continue
		}
		data, err := lmg.Encode(m.Group, opts...)
		if err != nil {
			return errors.Wrapf(err, "Mesh group %q", m.Name)
		}
		if err := vfs.WriteFile(root, MeshGroupPath(m.Name), data); err != nil {
			return err
		}
	}
	for _, s := range b.Skeletons {
		if s.Asset == nil {
			continue
		}
		data, err := skt.Encode(s.Asset, opts...)
		if err != nil {
			return errors.Wrapf(err, "Skeleton %q", s.Name)
		}
		if err := vfs.WriteFile(root, SkeletonPath(s.Name), data); err != nil {
			return err
		}
	}

	data, err := Encode(b.Appearance(), opts...)
	if err != nil {
		return err
	}
	if err := vfs.WriteFile(root, b.AppearancePath(), data); err != nil {
		return err
	}
	formats.Logger().Info("wrote appearance", zap.String("path", b.AppearancePath()),
		zap.Int("meshes", len(b.Meshes)), zap.Int("skeletons", len(b.Skeletons)))
	return nil
}

func (a *Appearance) HttpAction(ctx *pack.Context, w http.ResponseWriter, r *http.Request, action string) {
	switch action {
	case "references":
		missing, err := a.ResolveReferences(ctx.Root)
		if err != nil {
			webutils.WriteError(w, err)
			return
		}
		webutils.WriteJson(w, missing)
	default:
		webutils.WriteError(w, errors.Errorf("Unknown action %q", action))
	}
}
