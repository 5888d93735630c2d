package skt

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"go.uber.org/zap"

	"github.com/swgtools/swg_asset_browser/formats"
	"github.com/swgtools/swg_asset_browser/skeleton"
	"github.com/swgtools/swg_asset_browser/utils"
	"github.com/swgtools/swg_asset_browser/utils/gltfutils"
)

// ImportGLTF flattens the joints of the first skin of doc, or every node when
// the document has no skin, into a skeleton level. Parents outside the joint
// set are skipped over; their transforms still apply. Unnamed nodes get
// generated names.
func ImportGLTF(doc *gltf.Document, settings Settings) (*skeleton.Level, []error, error) {
	parents, err := gltfutils.ParentIndices(doc)
	if err != nil {
		return nil, nil, err
	}
	world, err := gltfutils.WorldMatrices(doc)
	if err != nil {
		return nil, nil, err
	}

	var nodes []int
	if len(doc.Skins) != 0 {
		for _, n := range doc.Skins[0].Joints {
			if int(n) >= len(doc.Nodes) {
				return nil, nil, errors.Errorf("Skin references missing node %d", n)
			}
			nodes = append(nodes, int(n))
		}
	} else {
		for i := range doc.Nodes {
			nodes = append(nodes, i)
		}
	}
	if len(nodes) == 0 {
		return nil, nil, errors.Errorf("Document has no nodes")
	}

	jointOf := make(map[int]int32, len(nodes))
	for iJoint, n := range nodes {
		jointOf[n] = int32(iJoint)
	}

	var names utils.RandomNameGenerator
	for _, n := range nodes {
		if doc.Nodes[n].Name != "" {
			names.Reserve(doc.Nodes[n].Name)
		}
	}

	joints := make([]skeleton.Joint, len(nodes))
	worlds := make([]mgl64.Mat4, len(nodes))
	for iJoint, n := range nodes {
		node := doc.Nodes[n]
		parent := int32(-1)
		for p := parents[n]; p >= 0; p = parents[p] {
			if jp, ok := jointOf[p]; ok {
				parent = jp
				break
			}
		}

		name := node.Name
		if name == "" {
			name = names.RandomName()
			formats.Logger().Info("naming unnamed node", zap.Int("node", n), zap.String("name", name))
		}
		j := skeleton.NewJoint(name, parent, [3]float32{})

		var extras nodeExtras
		if ok, err := gltfutils.GetExtras(node, &extras); err != nil {
			formats.Logger().Warn("ignoring node extras", zap.Int("node", n), zap.Error(err))
		} else if ok && extras.SWG != nil {
			j.PreRotation = extras.SWG.PreRotation
			j.BindRotation = extras.SWG.BindRotation
			j.PostRotation = extras.SWG.PostRotation
			j.RotationOrder = extras.SWG.RotationOrder
		}
		joints[iJoint] = j
		worlds[iJoint] = settings.Convention.Matrix(world[n])
	}

	flat, warnings, err := skeleton.Flatten(joints, worlds, settings.Compose, settings.Allocation)
	if err != nil {
		return nil, nil, err
	}
	return &skeleton.Level{Joints: flat}, warnings, nil
}
