package skeleton

import (
	"math"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Order is the sequence in which the three stored rotations combine into the
// local joint rotation. It is a per format contract and must be the same on
// decode and encode.
type Order int

const (
	// OrderPreBindPost composes pre·bind·post. Skeleton files use this order.
	OrderPreBindPost Order = iota
	OrderPostBindPre
)

func ParseOrder(s string) (Order, error) {
	switch s {
	case "", "pre_bind_post":
		return OrderPreBindPost, nil
	case "post_bind_pre":
		return OrderPostBindPre, nil
	}
	return 0, errors.Errorf("Unknown rotation order %q", s)
}

func (o Order) String() string {
	if o == OrderPostBindPre {
		return "post_bind_pre"
	}
	return "pre_bind_post"
}

func (o Order) Compose(pre, bind, post mgl64.Quat) mgl64.Quat {
	if o == OrderPostBindPre {
		return post.Mul(bind).Mul(pre).Normalize()
	}
	return pre.Mul(bind).Mul(post).Normalize()
}

type Options struct {
	Order Order
	// IdentityEpsilon is the distance from identity under which a decomposed
	// rotation is stored as exact identity.
	IdentityEpsilon float64
}

func DefaultOptions() Options {
	return Options{
		Order:           OrderPreBindPost,
		IdentityEpsilon: 1e-6,
	}
}

// Pose is the resolved hierarchy of a joint array.
type Pose struct {
	Local []mgl64.Mat4
	World []mgl64.Mat4
	// Order lists joints parents first.
	Order    []int
	Warnings []error
}

func (p *Pose) Head(i int) mgl64.Vec3 {
	return p.World[i].Col(3).Vec3()
}

func (p *Pose) WorldRotation(i int) mgl64.Quat {
	return mgl64.Mat4ToQuat(p.World[i]).Normalize()
}

// finiteQuat returns q as a unit quaternion, or identity when q is zero or
// not finite.
func finiteQuat(q Quat) (mgl64.Quat, bool) {
	m := q.Mgl()
	l := m.Len()
	if l == 0 || math.IsNaN(l) || math.IsInf(l, 0) {
		return mgl64.QuatIdent(), false
	}
	return m.Normalize(), true
}

// LocalRotation returns the composed local rotation of j. Degenerate stored
// quaternions are replaced by identity and reported.
func LocalRotation(j *Joint, order Order) (mgl64.Quat, error) {
	var bad []string
	pre, ok := finiteQuat(j.PreRotation)
	if !ok {
		bad = append(bad, "pre")
	}
	bind, ok := finiteQuat(j.BindRotation)
	if !ok {
		bad = append(bad, "bind")
	}
	post, ok := finiteQuat(j.PostRotation)
	if !ok {
		bad = append(bad, "post")
	}
	var err error
	if len(bad) != 0 {
		err = &NumericDomainError{
			Name:     j.Name,
			Reason:   "zero or non finite " + strings.Join(bad, "/") + " rotation",
			Fallback: "identity",
		}
	}
	return order.Compose(pre, bind, post), err
}

// LocalMatrix returns T(translation)·R(rotation).
func LocalMatrix(translation [3]float32, rotation mgl64.Quat) mgl64.Mat4 {
	t := mgl64.Translate3D(float64(translation[0]), float64(translation[1]), float64(translation[2]))
	return t.Mul4(rotation.Mat4())
}

// Compose resolves world transforms of every joint. Array order does not
// matter; the joints only have to form a forest.
func Compose(joints []Joint, opts Options) (*Pose, error) {
	if err := Validate(joints); err != nil {
		return nil, errors.Wrap(err, "Invalid hierarchy")
	}

	pose := &Pose{
		Local: make([]mgl64.Mat4, len(joints)),
		World: make([]mgl64.Mat4, len(joints)),
		Order: TraversalOrder(joints),
	}
	for _, i := range pose.Order {
		j := &joints[i]
		rot, err := LocalRotation(j, opts.Order)
		if err != nil {
			err.(*NumericDomainError).Joint = i
			pose.Warnings = append(pose.Warnings, err)
			Logger().Warn("degenerate joint rotation", zap.Int("joint", i), zap.String("name", j.Name), zap.Error(err))
		}
		pose.Local[i] = LocalMatrix(j.Translation, rot)
		if j.IsRoot() {
			pose.World[i] = pose.Local[i]
		} else {
			pose.World[i] = pose.World[j.Parent].Mul4(pose.Local[i])
		}
	}
	return pose, nil
}
