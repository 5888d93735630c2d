package skt

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/mogaika/fbx/builders/bfbx73"

	"github.com/swgtools/swg_asset_browser/skeleton"
	"github.com/swgtools/swg_asset_browser/utils"
	"github.com/swgtools/swg_asset_browser/utils/fbxbuilder"
)

type FbxExporter struct {
	FbxModelId int64
	Joints     []int64
}

// ExportFbx adds one level as a LimbNode hierarchy under a Null model named
// after the asset.
func ExportFbx(asset *skeleton.Asset, lod int, settings Settings, f *fbxbuilder.Builder) (*FbxExporter, []error, error) {
	joints, err := levelJoints(asset, lod)
	if err != nil {
		return nil, nil, err
	}
	pose, err := skeleton.Compose(joints, settings.Compose)
	if err != nil {
		return nil, nil, err
	}

	fe := &FbxExporter{
		FbxModelId: f.NewID(),
		Joints:     make([]int64, len(joints)),
	}
	name := asset.Name
	if name == "" {
		name = "skeleton"
	}

	model := bfbx73.Model(fe.FbxModelId, name+"\x00\x01Model", "Null").AddNodes(
		bfbx73.Version(232),
		bfbx73.Properties70(),
		bfbx73.Shading(true),
		bfbx73.Culling("CullingOff"),
	)
	nodeAttribute := bfbx73.NodeAttribute(f.NewID(), name+"\x00\x01NodeAttribute", "Null").AddNodes(
		bfbx73.TypeFlags("Null"),
	)
	f.AddObjects(model, nodeAttribute)
	f.Connect(nodeAttribute.Properties[0].(int64), fe.FbxModelId)

	for i := range joints {
		fe.Joints[i] = f.NewID()
	}

	for i := range joints {
		j := &joints[i]
		pos := settings.Convention.Translation(j.Translation)
		rot := settings.Convention.Rotation(mgl64.Mat4ToQuat(pose.Local[i]).Normalize())
		rotation := utils.RadiansToDegreeV3(utils.QuatToEuler(rot))

		limb := bfbx73.Model(fe.Joints[i], j.Name+"\x00\x01Model", "LimbNode").AddNodes(
			bfbx73.Version(232),
			bfbx73.Properties70().AddNodes(
				bfbx73.P("Lcl Translation", "Lcl Translation", "", "A+",
					float64(pos[0]), float64(pos[1]), float64(pos[2])),
				bfbx73.P("Lcl Rotation", "Lcl Rotation", "", "A+",
					rotation[0], rotation[1], rotation[2]),
			),
			bfbx73.Shading(true),
			bfbx73.Culling("CullingOff"),
		)
		attribute := bfbx73.NodeAttribute(f.NewID(), j.Name+"\x00\x01NodeAttribute", "LimbNode").AddNodes(
			bfbx73.TypeFlags("Skeleton"),
		)
		f.AddObjects(limb, attribute)

		parent := fe.FbxModelId
		if j.Parent >= 0 {
			parent = fe.Joints[j.Parent]
		}
		f.Connect(attribute.Properties[0].(int64), fe.Joints[i])
		f.Connect(fe.Joints[i], parent)
	}

	f.Cache(asset.Name, fe)
	return fe, pose.Warnings, nil
}

// ExportFbxDefault builds a standalone scene for one level.
func (s *Skeleton) ExportFbxDefault(lod int, settings Settings) (*fbxbuilder.Builder, []error, error) {
	f := fbxbuilder.New(s.Name + ".fbx")
	fe, warnings, err := ExportFbx(&s.Asset, lod, settings, f)
	if err != nil {
		return nil, nil, err
	}
	f.Connect(fe.FbxModelId, 0)
	return f, warnings, nil
}
