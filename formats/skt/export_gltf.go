package skt

import (
	"io"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"

	"github.com/swgtools/swg_asset_browser/skeleton"
	"github.com/swgtools/swg_asset_browser/utils"
	"github.com/swgtools/swg_asset_browser/utils/gltfutils"
)

// jointExtras keeps the stored slots of a joint on its glTF node so an
// import can restore the pre and post rotations.
type jointExtras struct {
	Index         int        `json:"index"`
	Parent        int32      `json:"parent"`
	PreRotation   [4]float32 `json:"pre_rotation"`
	BindRotation  [4]float32 `json:"bind_rotation"`
	PostRotation  [4]float32 `json:"post_rotation"`
	RotationOrder int32      `json:"rotation_order"`
}

type nodeExtras struct {
	SWG *jointExtras `json:"swg_joint,omitempty"`
}

func levelJoints(asset *skeleton.Asset, lod int) ([]skeleton.Joint, error) {
	if lod < 0 || lod >= len(asset.Levels) {
		return nil, errors.Errorf("Level %d out of range, skeleton has %d", lod, len(asset.Levels))
	}
	return asset.Levels[lod].Joints, nil
}

// ExportGLTF materializes one level as a glTF node hierarchy with a skin
// listing every joint. Node transforms are parent relative and converted with
// the settings' convention.
func ExportGLTF(asset *skeleton.Asset, lod int, settings Settings) (*gltf.Document, []error, error) {
	joints, err := levelJoints(asset, lod)
	if err != nil {
		return nil, nil, err
	}
	pose, err := skeleton.Compose(joints, settings.Compose)
	if err != nil {
		return nil, nil, err
	}

	doc := gltfutils.NewDocument()
	skin := &gltf.Skin{Name: asset.Name}
	for i := range joints {
		j := &joints[i]
		rot := settings.Convention.Rotation(mgl64.Mat4ToQuat(pose.Local[i]).Normalize())
		n := &gltf.Node{
			Name:        j.Name,
			Translation: settings.Convention.Translation(j.Translation),
			Rotation:    utils.QuatToXYZW(rot),
			Scale:       gltf.DefaultScale,
		}
		gltfutils.SetExtras(n, nodeExtras{SWG: &jointExtras{
			Index:         i,
			Parent:        j.Parent,
			PreRotation:   j.PreRotation,
			BindRotation:  j.BindRotation,
			PostRotation:  j.PostRotation,
			RotationOrder: j.RotationOrder,
		}})
		skin.Joints = append(skin.Joints, gltfutils.AddNode(doc, n))
	}
	for i := range joints {
		if p := joints[i].Parent; p >= 0 {
			doc.Nodes[p].Children = append(doc.Nodes[p].Children, uint32(i))
		}
	}
	doc.Skins = append(doc.Skins, skin)
	return doc, pose.Warnings, nil
}

func (s *Skeleton) ExportGLB(w io.Writer, lod int, settings Settings) ([]error, error) {
	doc, warnings, err := ExportGLTF(&s.Asset, lod, settings)
	if err != nil {
		return nil, err
	}
	return warnings, gltfutils.ExportBinary(w, doc)
}
