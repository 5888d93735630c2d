package skt

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/pkg/errors"

	"github.com/swgtools/swg_asset_browser/pack"
	"github.com/swgtools/swg_asset_browser/skeleton"
	"github.com/swgtools/swg_asset_browser/status"
	"github.com/swgtools/swg_asset_browser/utils/gltfutils"
	"github.com/swgtools/swg_asset_browser/vfs"
	"github.com/swgtools/swg_asset_browser/webutils"
)

type boneView struct {
	Name      string     `json:"name"`
	Parent    int        `json:"parent"`
	Head      [3]float64 `json:"head"`
	Tail      [3]float64 `json:"tail"`
	Roll      float64    `json:"roll"`
	Connected bool       `json:"connected"`
}

type bonesResponse struct {
	Bones    []boneView `json:"bones"`
	Warnings []string   `json:"warnings,omitempty"`
}

func errorStrings(errs []error) []string {
	list := make([]string, len(errs))
	for i, err := range errs {
		list[i] = err.Error()
	}
	return list
}

// Bones resolves one level in host space and returns its bone chain.
func (s *Skeleton) Bones(lod int, settings Settings) ([]skeleton.Bone, []error, error) {
	joints, err := levelJoints(&s.Asset, lod)
	if err != nil {
		return nil, nil, err
	}
	host := settings.Convention.Joints(joints)
	pose, err := skeleton.Compose(host, settings.Compose)
	if err != nil {
		return nil, nil, err
	}
	bones, warnings := skeleton.BoneChain(host, pose, settings.Chain)
	return bones, append(pose.Warnings, warnings...), nil
}

func (s *Skeleton) save(ctx *pack.Context) error {
	data, err := Encode(&s.Asset, ctx.Options()...)
	if err != nil {
		return errors.Wrapf(err, "Failed to encode skeleton")
	}
	if err := vfs.WriteFile(ctx.Root, ctx.Name, data); err != nil {
		return errors.Wrapf(err, "Failed to write %q", ctx.Name)
	}
	status.Info("Saved skeleton %q (%d levels)", ctx.Name, len(s.Levels))
	return nil
}

func (s *Skeleton) HttpAction(ctx *pack.Context, w http.ResponseWriter, r *http.Request, action string) {
	settings, err := SettingsFromConfig(ctx.Config.Skeleton)
	if err != nil {
		webutils.WriteError(w, err)
		return
	}
	lod := 0
	if v := r.URL.Query().Get("lod"); v != "" {
		if lod, err = strconv.Atoi(v); err != nil {
			webutils.WriteError(w, errors.Wrapf(err, "Invalid lod %q", v))
			return
		}
	}
	fileName := fmt.Sprintf("%s_l%d", ctx.BaseName(), lod)

	switch action {
	case "bones":
		bones, warnings, err := s.Bones(lod, settings)
		if err != nil {
			webutils.WriteError(w, err)
			return
		}
		resp := bonesResponse{Bones: make([]boneView, len(bones)), Warnings: errorStrings(warnings)}
		for i, b := range bones {
			resp.Bones[i] = boneView{
				Name: b.Name, Parent: b.Parent, Head: b.Head, Tail: b.Tail,
				Roll: b.Roll, Connected: b.Connected,
			}
		}
		webutils.WriteJson(w, resp)
	case "glb":
		var buf bytes.Buffer
		warnings, err := s.ExportGLB(&buf, lod, settings)
		if err != nil {
			webutils.WriteError(w, errors.Wrapf(err, "Failed to export glb"))
			return
		}
		if len(warnings) != 0 {
			status.Error("%d joint(s) of %q needed numeric fallbacks", len(warnings), ctx.Name)
		}
		webutils.WriteFile(w, &buf, fileName+".glb")
	case "fbx":
		f, _, err := s.ExportFbxDefault(lod, settings)
		if err != nil {
			webutils.WriteError(w, errors.Wrapf(err, "Failed to export fbx"))
			return
		}
		var buf bytes.Buffer
		if err := f.Write(&buf); err != nil {
			webutils.WriteError(w, errors.Wrapf(err, "Failed to write fbx"))
			return
		}
		webutils.WriteFile(w, &buf, fileName+".fbx")
	case "asyaml":
		data, err := s.YAML()
		if err != nil {
			webutils.WriteError(w, err)
			return
		}
		webutils.WriteFile(w, bytes.NewReader(data), ctx.BaseName()+".yaml")
	case "fromyaml":
		data, err := webutils.ReadFormFile(r, "data")
		if err != nil {
			webutils.WriteError(w, err)
			return
		}
		asset, err := DecodeYAML(bytes.NewReader(data))
		if err != nil {
			webutils.WriteError(w, err)
			return
		}
		s.Levels = asset.Levels
		if err := s.save(ctx); err != nil {
			webutils.WriteError(w, err)
			return
		}
		webutils.WriteJson(w, s)
	case "fromglb":
		data, err := webutils.ReadFormFile(r, "data")
		if err != nil {
			webutils.WriteError(w, err)
			return
		}
		doc, err := gltfutils.Decode(bytes.NewReader(data))
		if err != nil {
			webutils.WriteError(w, err)
			return
		}
		level, warnings, err := ImportGLTF(doc, settings)
		if err != nil {
			webutils.WriteError(w, errors.Wrapf(err, "Failed to import glb"))
			return
		}
		if lod > len(s.Levels) {
			webutils.WriteError(w, errors.Errorf("Level %d out of range, skeleton has %d", lod, len(s.Levels)))
			return
		} else if lod == len(s.Levels) {
			s.Levels = append(s.Levels, *level)
		} else {
			s.Levels[lod] = *level
		}
		if len(warnings) != 0 {
			status.Error("%d joint(s) of %q needed numeric fallbacks", len(warnings), ctx.Name)
		}
		if err := s.save(ctx); err != nil {
			webutils.WriteError(w, err)
			return
		}
		webutils.WriteJson(w, s)
	default:
		webutils.WriteError(w, errors.Errorf("Unknown action %q", action))
	}
}
