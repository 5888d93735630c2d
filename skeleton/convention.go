package skeleton

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Convention converts between file space and a host scene's axes. The
// composer always works in file space; hosts apply the convention when
// materializing nodes. Every conversion is its own inverse.
type Convention struct {
	// MirrorX negates the X axis.
	MirrorX bool
}

func (c Convention) Translation(v [3]float32) [3]float32 {
	if c.MirrorX {
		v[0] = -v[0]
	}
	return v
}

func (c Convention) Vec3(v mgl64.Vec3) mgl64.Vec3 {
	if c.MirrorX {
		v[0] = -v[0]
	}
	return v
}

// Rotation mirrors a rotation across the YZ plane, keeping w, x and negating y, z.
func (c Convention) Rotation(q mgl64.Quat) mgl64.Quat {
	if c.MirrorX {
		return mgl64.Quat{W: q.W, V: mgl64.Vec3{q.V[0], -q.V[1], -q.V[2]}}
	}
	return q
}

// Matrix returns S·m·S with S the mirror matrix.
func (c Convention) Matrix(m mgl64.Mat4) mgl64.Mat4 {
	if !c.MirrorX {
		return m
	}
	s := mgl64.Scale3D(-1, 1, 1)
	return s.Mul4(m).Mul4(s)
}

func (c Convention) Joint(j Joint) Joint {
	if !c.MirrorX {
		return j
	}
	j.Translation = c.Translation(j.Translation)
	j.PreRotation = QuatFromMgl(c.Rotation(j.PreRotation.Mgl()))
	j.BindRotation = QuatFromMgl(c.Rotation(j.BindRotation.Mgl()))
	j.PostRotation = QuatFromMgl(c.Rotation(j.PostRotation.Mgl()))
	return j
}

func (c Convention) Joints(joints []Joint) []Joint {
	out := make([]Joint, len(joints))
	for i := range joints {
		out[i] = c.Joint(joints[i])
	}
	return out
}
