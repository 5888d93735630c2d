package gltfutils

import (
	"encoding/json"
	"io"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"

	"github.com/swgtools/swg_asset_browser/utils"
)

func NewDocument() *gltf.Document {
	doc := gltf.NewDocument()
	doc.Asset.Generator = "swg_asset_browser"
	return doc
}

// AddNode appends n and returns its index.
func AddNode(doc *gltf.Document, n *gltf.Node) uint32 {
	doc.Nodes = append(doc.Nodes, n)
	return uint32(len(doc.Nodes) - 1)
}

// ParentIndices returns the parent node index of every node, -1 for roots.
func ParentIndices(doc *gltf.Document) ([]int, error) {
	parents := make([]int, len(doc.Nodes))
	for i := range parents {
		parents[i] = -1
	}
	for iNode, n := range doc.Nodes {
		for _, c := range n.Children {
			if int(c) >= len(doc.Nodes) {
				return nil, errors.Errorf("Node %d references missing child %d", iNode, c)
			}
			if parents[c] != -1 {
				return nil, errors.Errorf("Node %d has two parents (%d and %d)", c, parents[c], iNode)
			}
			parents[c] = iNode
		}
	}
	return parents, nil
}

// LocalMatrix returns the transform of n relative to its parent. Scale is
// included as stored.
func LocalMatrix(n *gltf.Node) mgl64.Mat4 {
	if m := n.MatrixOrDefault(); m != gltf.DefaultMatrix {
		return utils.Mat4To64(m)
	}
	t := n.TranslationOrDefault()
	r := utils.QuatFromXYZW(n.RotationOrDefault()).Normalize()
	s := n.ScaleOrDefault()
	return mgl64.Translate3D(float64(t[0]), float64(t[1]), float64(t[2])).
		Mul4(r.Mat4()).
		Mul4(mgl64.Scale3D(float64(s[0]), float64(s[1]), float64(s[2])))
}

// WorldMatrices returns the scene space transform of every node.
func WorldMatrices(doc *gltf.Document) ([]mgl64.Mat4, error) {
	parents, err := ParentIndices(doc)
	if err != nil {
		return nil, err
	}
	world := make([]mgl64.Mat4, len(doc.Nodes))
	resolved := make([]bool, len(doc.Nodes))
	visiting := make([]bool, len(doc.Nodes))
	var resolve func(i int) error
	resolve = func(i int) error {
		if resolved[i] {
			return nil
		}
		if visiting[i] {
			return errors.Errorf("Node %d is its own ancestor", i)
		}
		visiting[i] = true
		world[i] = LocalMatrix(doc.Nodes[i])
		if p := parents[i]; p >= 0 {
			if err := resolve(p); err != nil {
				return err
			}
			world[i] = world[p].Mul4(world[i])
		}
		resolved[i] = true
		return nil
	}
	for i := range doc.Nodes {
		if err := resolve(i); err != nil {
			return nil, err
		}
	}
	return world, nil
}

// SetExtras stores v as the extras object of n.
func SetExtras(n *gltf.Node, v interface{}) {
	n.Extras = v
}

// GetExtras decodes the extras of n into v. It reports false when n has none.
func GetExtras(n *gltf.Node, v interface{}) (bool, error) {
	if n.Extras == nil {
		return false, nil
	}
	raw, err := json.Marshal(n.Extras)
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, errors.Wrapf(err, "Node %q has unexpected extras", n.Name)
	}
	return true, nil
}

// ExportBinary writes doc as glb. Nodes without a parent become the roots of
// the default scene.
func ExportBinary(w io.Writer, doc *gltf.Document) error {
	parents, err := ParentIndices(doc)
	if err != nil {
		return err
	}
	doc.Scenes[0].Nodes = doc.Scenes[0].Nodes[:0]
	for iNode, parent := range parents {
		if parent == -1 {
			doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, uint32(iNode))
		}
	}

	encoder := gltf.NewEncoder(w)
	encoder.AsBinary = true
	return encoder.Encode(doc)
}

// Decode reads a gltf or glb document. External buffers are not resolved.
func Decode(r io.Reader) (*gltf.Document, error) {
	doc := new(gltf.Document)
	if err := gltf.NewDecoder(r).Decode(doc); err != nil {
		return nil, errors.Wrapf(err, "Failed to decode gltf")
	}
	return doc, nil
}
