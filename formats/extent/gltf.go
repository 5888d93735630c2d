package extent

import (
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"go.uber.org/zap"

	"github.com/swgtools/swg_asset_browser/formats"
	"github.com/swgtools/swg_asset_browser/skeleton"
	"github.com/swgtools/swg_asset_browser/utils"
	"github.com/swgtools/swg_asset_browser/utils/gltfutils"
)

type extentExtras struct {
	Kind       string `json:"kind"`
	Broadphase bool   `json:"broadphase,omitempty"`
}

type nodeExtras struct {
	SWG *extentExtras `json:"swg_extent"`
}

type exporter struct {
	doc        *gltf.Document
	convention skeleton.Convention
}

func (ex *exporter) shape(parent uint32, name string, broadphase bool, translation, scale [3]float32) *gltf.Node {
	n := &gltf.Node{
		Name:        name,
		Translation: ex.convention.Translation(translation),
		Rotation:    gltf.DefaultRotation,
		Scale:       scale,
	}
	gltfutils.SetExtras(n, nodeExtras{SWG: &extentExtras{Kind: strings.ToLower(name), Broadphase: broadphase}})
	ex.doc.Nodes[parent].Children = append(ex.doc.Nodes[parent].Children, gltfutils.AddNode(ex.doc, n))
	return n
}

func (ex *exporter) add(parent uint32, e Extent, broadphase bool) error {
	switch e := e.(type) {
	case nil, Null:
	case Sphere:
		ex.shape(parent, "Sphere", broadphase, e.Center, [3]float32{e.Radius, e.Radius, e.Radius})
	case Box:
		ex.shape(parent, "Box", broadphase, e.Center(), e.Size())
	case Cylinder:
		center := e.Base
		center[1] += e.Height / 2
		ex.shape(parent, "Cylinder", broadphase, center, [3]float32{e.Radius, e.Height, e.Radius})
	case Mesh:
		positions := make([][3]float32, len(e.Vertices))
		for i, v := range e.Vertices {
			positions[i] = ex.convention.Translation(v)
		}
		indices := make([]uint32, 0, len(e.Triangles)*3)
		for _, t := range e.Triangles {
			if ex.convention.MirrorX {
				t[0], t[2] = t[2], t[0]
			}
			for _, v := range t {
				indices = append(indices, uint32(v))
			}
		}
		ex.doc.Meshes = append(ex.doc.Meshes, &gltf.Mesh{
			Name: "Mesh",
			Primitives: []*gltf.Primitive{{
				Attributes: map[string]uint32{gltf.POSITION: modeler.WritePosition(ex.doc, positions)},
				Indices:    gltf.Index(modeler.WriteIndices(ex.doc, indices)),
				Mode:       gltf.PrimitiveTriangles,
			}},
		})
		n := ex.shape(parent, "Mesh", broadphase, [3]float32{}, gltf.DefaultScale)
		n.Mesh = gltf.Index(uint32(len(ex.doc.Meshes) - 1))
	case Composite:
		for _, child := range e.Extents {
			if err := ex.add(parent, child, broadphase); err != nil {
				return err
			}
		}
	case Component:
		return ex.add(parent, e.Extent, broadphase)
	case Detail:
		if err := ex.add(parent, e.Broad, true); err != nil {
			return err
		}
		return ex.add(parent, e.Detail, false)
	default:
		return errors.Errorf("Unknown extent %T", e)
	}
	return nil
}

// ExportGLTF lays e out as a flat list of shape nodes under a "collision"
// root. Unit sphere, cube and cylinder nodes carry the size in their scale.
// Shapes of the broad test of a detail extent are flagged in the extras.
func ExportGLTF(e Extent, convention skeleton.Convention) (*gltf.Document, error) {
	ex := &exporter{doc: gltfutils.NewDocument(), convention: convention}
	root := gltfutils.AddNode(ex.doc, &gltf.Node{Name: "collision"})
	if err := ex.add(root, e, false); err != nil {
		return nil, err
	}
	return ex.doc, nil
}

func decompose(m mgl64.Mat4) (translation, scale [3]float32) {
	translation = utils.Vec3To32(m.Col(3).Vec3())
	for i := 0; i < 3; i++ {
		scale[i] = float32(m.Col(i).Vec3().Len())
	}
	return translation, scale
}

func readMeshNode(doc *gltf.Document, n *gltf.Node, world mgl64.Mat4, convention skeleton.Convention) (Mesh, error) {
	var m Mesh
	if n.Mesh == nil || int(*n.Mesh) >= len(doc.Meshes) {
		return m, errors.Errorf("Node %q has no mesh", n.Name)
	}
	for _, p := range doc.Meshes[*n.Mesh].Primitives {
		pos, ok := p.Attributes[gltf.POSITION]
		if !ok || p.Indices == nil || int(pos) >= len(doc.Accessors) || int(*p.Indices) >= len(doc.Accessors) {
			formats.Logger().Warn("skipping primitive without positions or indices", zap.String("node", n.Name))
			continue
		}
		positions, err := modeler.ReadPosition(doc, doc.Accessors[pos], nil)
		if err != nil {
			return m, errors.Wrapf(err, "Failed to read positions of %q", n.Name)
		}
		indices, err := modeler.ReadIndices(doc, doc.Accessors[*p.Indices], nil)
		if err != nil {
			return m, errors.Wrapf(err, "Failed to read indices of %q", n.Name)
		}
		base := int32(len(m.Vertices))
		for _, v := range positions {
			m.Vertices = append(m.Vertices, convention.Translation(utils.Vec3To32(world.Mul4x1(utils.Vec3To64(v).Vec4(1)).Vec3())))
		}
		for i := 0; i+2 < len(indices); i += 3 {
			t := [3]int32{base + int32(indices[i]), base + int32(indices[i+1]), base + int32(indices[i+2])}
			if convention.MirrorX {
				t[0], t[2] = t[2], t[0]
			}
			m.Triangles = append(m.Triangles, t)
		}
	}
	return m, nil
}

// ImportGLTF rebuilds an extent from the shape nodes of doc, recognized by
// their extras or, failing that, by a "sphere", "box", "cyln" or "cylinder"
// name prefix; other nodes with a mesh become mesh extents. One shape stands
// alone, several form a component, and broadphase shapes turn the result into
// a detail extent.
func ImportGLTF(doc *gltf.Document, convention skeleton.Convention) (Extent, error) {
	world, err := gltfutils.WorldMatrices(doc)
	if err != nil {
		return nil, err
	}

	var broad, other []Extent
	for i, n := range doc.Nodes {
		var extras nodeExtras
		kind := ""
		broadphase := false
		if ok, err := gltfutils.GetExtras(n, &extras); err != nil {
			formats.Logger().Warn("ignoring node extras", zap.Int("node", i), zap.Error(err))
		} else if ok && extras.SWG != nil {
			kind, broadphase = extras.SWG.Kind, extras.SWG.Broadphase
		}
		if kind == "" {
			name := strings.ToLower(n.Name)
			for _, prefix := range []string{"sphere", "box", "cylinder", "cyln"} {
				if strings.HasPrefix(name, prefix) {
					kind = prefix
					break
				}
			}
			if kind == "cyln" {
				kind = "cylinder"
			}
			if kind == "" && n.Mesh != nil {
				kind = "mesh"
			}
		}

		translation, scale := decompose(convention.Matrix(world[i]))
		var e Extent
		switch kind {
		case "":
			continue
		case "sphere":
			e = Sphere{Center: translation, Radius: scale[1]}
		case "box":
			e = BoxFromCenterScale(translation, scale)
		case "cylinder":
			base := translation
			base[1] -= scale[1] / 2
			e = Cylinder{Base: base, Radius: scale[0], Height: scale[1]}
		case "mesh":
			if e, err = readMeshNode(doc, n, world[i], convention); err != nil {
				return nil, err
			}
		default:
			formats.Logger().Warn("unhandled collision node", zap.String("node", n.Name), zap.String("kind", kind))
			continue
		}
		if broadphase {
			broad = append(broad, e)
		} else {
			other = append(other, e)
		}
	}

	group := func(list []Extent) Extent {
		switch len(list) {
		case 0:
			return Null{}
		case 1:
			return list[0]
		}
		return Component{Extent: Composite{Extents: list}}
	}
	if len(broad) != 0 {
		return Detail{Broad: group(broad), Detail: group(other)}, nil
	}
	return group(other), nil
}
