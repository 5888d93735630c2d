package skeleton

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Local is a parent relative transform split back into stored components.
type Local struct {
	Translation [3]float32
	Rotation    mgl64.Quat
}

const scaleEpsilon = 1e-9

// rotationOf extracts the rotation of m, dropping any scale.
func rotationOf(m mgl64.Mat4) (mgl64.Quat, bool) {
	cols := [3]mgl64.Vec3{m.Col(0).Vec3(), m.Col(1).Vec3(), m.Col(2).Vec3()}
	for i, c := range cols {
		l := c.Len()
		if l < scaleEpsilon || math.IsNaN(l) || math.IsInf(l, 0) {
			return mgl64.QuatIdent(), false
		}
		cols[i] = c.Mul(1 / l)
	}
	r := mgl64.Mat4FromCols(cols[0].Vec4(0), cols[1].Vec4(0), cols[2].Vec4(0), mgl64.Vec4{0, 0, 0, 1})
	return mgl64.Mat4ToQuat(r).Normalize(), true
}

// Canonical normalizes q, puts it in the w >= 0 hemisphere and turns rotations
// within epsilon of identity into exact identity.
func Canonical(q mgl64.Quat, epsilon float64) mgl64.Quat {
	q = q.Normalize()
	if q.W < 0 {
		q = q.Scale(-1)
	}
	if q.V.Len() <= epsilon {
		return mgl64.QuatIdent()
	}
	return q
}

// inverse returns the inverse of a world transform, using the transposed
// rotation for rigid transforms and a general inverse otherwise.
func inverse(m mgl64.Mat4) (mgl64.Mat4, bool) {
	det := m.Det()
	if math.Abs(det) < scaleEpsilon || math.IsNaN(det) {
		return mgl64.Ident4(), false
	}
	if math.Abs(det-1) < 1e-9 {
		r := m.Mat3().Transpose()
		t := r.Mul3x1(m.Col(3).Vec3()).Mul(-1)
		return mgl64.Mat4FromCols(
			r.Col(0).Vec4(0), r.Col(1).Vec4(0), r.Col(2).Vec4(0), t.Vec4(1)), true
	}
	return m.Inv(), true
}

// Decompose turns world transforms back into parent relative translations and
// rotations. Joints are visited parents first. Singular matrices fall back to
// identity and are reported as warnings.
func Decompose(joints []Joint, world []mgl64.Mat4, opts Options) ([]Local, []error, error) {
	if len(world) != len(joints) {
		return nil, nil, errors.Errorf("Got %d world transforms for %d joints", len(world), len(joints))
	}
	if err := Validate(joints); err != nil {
		return nil, nil, errors.Wrap(err, "Invalid hierarchy")
	}

	locals := make([]Local, len(joints))
	var warnings []error
	warn := func(i int, reason, fallback string) {
		err := &NumericDomainError{Joint: i, Name: joints[i].Name, Reason: reason, Fallback: fallback}
		warnings = append(warnings, err)
		Logger().Warn("degenerate world transform", zap.Int("joint", i), zap.Error(err))
	}

	for _, i := range TraversalOrder(joints) {
		local := world[i]
		if p := joints[i].Parent; p >= 0 {
			inv, ok := inverse(world[p])
			if !ok {
				warn(i, "parent world transform is singular", "parent treated as identity")
			}
			local = inv.Mul4(world[i])
		}

		t := local.Col(3).Vec3()
		locals[i].Translation = [3]float32{float32(t[0]), float32(t[1]), float32(t[2])}
		rot, ok := rotationOf(local)
		if !ok {
			warn(i, "local rotation axes are degenerate", "identity rotation")
		}
		locals[i].Rotation = Canonical(rot, opts.IdentityEpsilon)
	}
	return locals, warnings, nil
}

// Allocation decides how a decomposed rotation is split into the stored
// pre, bind and post slots. It is chosen per target format.
type Allocation int

const (
	// AllocatePreserve keeps the existing pre and post rotations and solves
	// for bind.
	AllocatePreserve Allocation = iota
	// AllocateFold stores the whole rotation in bind with identity pre and post.
	AllocateFold
)

func ParseAllocation(s string) (Allocation, error) {
	switch s {
	case "", "preserve":
		return AllocatePreserve, nil
	case "fold":
		return AllocateFold, nil
	}
	return 0, errors.Errorf("Unknown rotation allocation %q", s)
}

func (a Allocation) String() string {
	if a == AllocateFold {
		return "fold"
	}
	return "preserve"
}

// Apply writes local into a copy of j according to the allocation policy.
func (a Allocation) Apply(j Joint, local Local, opts Options) Joint {
	j.Translation = local.Translation
	if a == AllocateFold {
		j.PreRotation = IdentityQuat
		j.PostRotation = IdentityQuat
		j.BindRotation = QuatFromMgl(Canonical(local.Rotation, opts.IdentityEpsilon))
		return j
	}

	pre, ok := finiteQuat(j.PreRotation)
	if !ok {
		j.PreRotation = IdentityQuat
	}
	post, ok := finiteQuat(j.PostRotation)
	if !ok {
		j.PostRotation = IdentityQuat
	}
	var bind mgl64.Quat
	if opts.Order == OrderPostBindPre {
		bind = post.Inverse().Mul(local.Rotation).Mul(pre.Inverse())
	} else {
		bind = pre.Inverse().Mul(local.Rotation).Mul(post.Inverse())
	}
	bind = bind.Normalize()

	// keep the sign of the stored bind rotation so untouched joints write back the same values
	if old, ok := finiteQuat(j.BindRotation); ok && old.Dot(bind) < 0 {
		bind = bind.Scale(-1)
	}
	if bind.V.Len() <= opts.IdentityEpsilon {
		if bind.W < 0 {
			bind = mgl64.Quat{W: -1}
		} else {
			bind = mgl64.QuatIdent()
		}
	}
	j.BindRotation = QuatFromMgl(bind)
	return j
}

// Flatten recomputes stored joints from edited world transforms. Names,
// parents and rotation orders come from joints.
func Flatten(joints []Joint, world []mgl64.Mat4, opts Options, alloc Allocation) ([]Joint, []error, error) {
	locals, warnings, err := Decompose(joints, world, opts)
	if err != nil {
		return nil, nil, err
	}
	out := make([]Joint, len(joints))
	for i := range joints {
		out[i] = alloc.Apply(joints[i], locals[i], opts)
	}
	return out, warnings, nil
}
