package skeleton

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Quat is a stored quaternion in w, x, y, z order.
type Quat [4]float32

var IdentityQuat = Quat{1, 0, 0, 0}

func QuatFromMgl(q mgl64.Quat) Quat {
	return Quat{float32(q.W), float32(q.V[0]), float32(q.V[1]), float32(q.V[2])}
}

func (q Quat) Mgl() mgl64.Quat {
	return mgl64.Quat{W: float64(q[0]), V: mgl64.Vec3{float64(q[1]), float64(q[2]), float64(q[3])}}
}

// IsZero reports an all zero quaternion, which files use for "unset".
func (q Quat) IsZero() bool { return q == Quat{} }

// Joint is one bind pose entry as it is persisted.
type Joint struct {
	Name          string     `json:"name" yaml:"name"`
	Parent        int32      `json:"parent" yaml:"parent"`
	Translation   [3]float32 `json:"translation" yaml:"translation,flow"`
	PreRotation   Quat       `json:"pre_rotation" yaml:"pre_rotation,flow"`
	BindRotation  Quat       `json:"bind_rotation" yaml:"bind_rotation,flow"`
	PostRotation  Quat       `json:"post_rotation" yaml:"post_rotation,flow"`
	RotationOrder int32      `json:"rotation_order" yaml:"rotation_order"`
}

func NewJoint(name string, parent int32, translation [3]float32) Joint {
	return Joint{
		Name:         name,
		Parent:       parent,
		Translation:  translation,
		PreRotation:  IdentityQuat,
		BindRotation: IdentityQuat,
		PostRotation: IdentityQuat,
	}
}

func (j *Joint) IsRoot() bool { return j.Parent < 0 }

// Level is one level of detail of a skeleton.
type Level struct {
	Joints []Joint `json:"joints" yaml:"joints"`
}

// Asset holds every level of a skeleton, most detailed first.
type Asset struct {
	Name   string  `json:"name,omitempty" yaml:"name,omitempty"`
	Levels []Level `json:"levels" yaml:"levels"`
}

func (l *Level) Index(name string) int {
	for i := range l.Joints {
		if l.Joints[i].Name == name {
			return i
		}
	}
	return -1
}

func (l *Level) Names() []string {
	names := make([]string, len(l.Joints))
	for i := range l.Joints {
		names[i] = l.Joints[i].Name
	}
	return names
}

// Children returns the child indices of every joint. Joints may be stored in
// any order, so children are found by scanning parent indices.
func Children(joints []Joint) [][]int {
	children := make([][]int, len(joints))
	for i := range joints {
		if p := joints[i].Parent; p >= 0 && int(p) < len(joints) {
			children[p] = append(children[p], i)
		}
	}
	return children
}

func Roots(joints []Joint) []int {
	var roots []int
	for i := range joints {
		if joints[i].Parent < 0 {
			roots = append(roots, i)
		}
	}
	return roots
}

// Validate checks that parent indices are in range and form a forest.
func Validate(joints []Joint) error {
	for i := range joints {
		p := joints[i].Parent
		switch {
		case p < -1:
			return &HierarchyError{Joint: i, Parent: p, Reason: "negative parent other than -1"}
		case int(p) >= len(joints):
			return &HierarchyError{Joint: i, Parent: p, Reason: "parent out of range"}
		case int(p) == i:
			return &HierarchyError{Joint: i, Parent: p, Reason: "joint is its own parent"}
		}
	}
	order := TraversalOrder(joints)
	if len(order) != len(joints) {
		seen := make([]bool, len(joints))
		for _, i := range order {
			seen[i] = true
		}
		for i, ok := range seen {
			if !ok {
				return &HierarchyError{Joint: i, Parent: joints[i].Parent, Reason: "joint is part of a parent cycle"}
			}
		}
	}
	return nil
}

// TraversalOrder returns joint indices depth first from every root, so each
// parent comes before its children. Joints on a cycle are not reached.
func TraversalOrder(joints []Joint) []int {
	children := Children(joints)
	order := make([]int, 0, len(joints))
	stack := make([]int, 0, len(joints))
	roots := Roots(joints)
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, roots[i])
	}
	for len(stack) != 0 {
		j := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		order = append(order, j)
		c := children[j]
		for i := len(c) - 1; i >= 0; i-- {
			stack = append(stack, c[i])
		}
	}
	return order
}
