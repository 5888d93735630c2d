package skeleton

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"
)

// Bone is the display form of a joint used by authoring tools: a segment from
// head to tail with a roll around it. It is derived from a Pose and never
// written back.
type Bone struct {
	Name      string
	Parent    int
	Head      mgl64.Vec3
	Tail      mgl64.Vec3
	Roll      float64
	Connected bool
}

type ChainOptions struct {
	// TailFraction scales the parent segment when extending a leaf.
	TailFraction float64
	// DefaultTail is the head to tail offset when no direction can be derived.
	DefaultTail mgl64.Vec3
	Epsilon     float64
}

func DefaultChainOptions() ChainOptions {
	return ChainOptions{
		TailFraction: 0.5,
		DefaultTail:  mgl64.Vec3{0, 0, 0.05},
		Epsilon:      1e-6,
	}
}

var (
	axisX = mgl64.Vec3{1, 0, 0}
	axisY = mgl64.Vec3{0, 1, 0}
)

// BoneChain synthesizes bones from a resolved pose. Degenerate segments get
// the default tail offset and a NumericDomainError in the returned warnings.
func BoneChain(joints []Joint, pose *Pose, opts ChainOptions) ([]Bone, []error) {
	children := Children(joints)
	bones := make([]Bone, len(joints))
	var warnings []error
	warn := func(i int, reason string) {
		err := &NumericDomainError{Joint: i, Name: joints[i].Name, Reason: reason, Fallback: "default tail offset"}
		warnings = append(warnings, err)
		Logger().Debug("bone tail fallback", zap.Int("joint", i), zap.Error(err))
	}

	for i := range joints {
		head := pose.Head(i)
		b := Bone{Name: joints[i].Name, Parent: int(joints[i].Parent), Head: head}

		switch c := children[i]; {
		case len(c) != 0:
			var centroid mgl64.Vec3
			for _, ci := range c {
				centroid = centroid.Add(pose.Head(ci))
			}
			centroid = centroid.Mul(1 / float64(len(c)))
			if centroid.Sub(head).Len() <= opts.Epsilon {
				warn(i, "children centroid coincides with head")
				b.Tail = head.Add(opts.DefaultTail)
			} else {
				b.Tail = centroid
				b.Connected = len(c) == 1
			}
		case joints[i].Parent >= 0:
			dir := head.Sub(pose.Head(int(joints[i].Parent)))
			if dir.Len() <= opts.Epsilon {
				warn(i, "leaf has zero length parent segment")
				b.Tail = head.Add(opts.DefaultTail)
			} else {
				b.Tail = head.Add(dir.Mul(opts.TailFraction))
			}
		default:
			warn(i, "joint has neither parent nor children")
			b.Tail = head.Add(opts.DefaultTail)
		}

		b.Roll = roll(pose.WorldRotation(i), b.Tail.Sub(b.Head), opts.Epsilon)
		bones[i] = b
	}
	return bones, warnings
}

// roll is the signed angle around dir from the X axis of the shortest arc
// frame taking +Y onto dir to the joint's own X axis.
func roll(world mgl64.Quat, dir mgl64.Vec3, epsilon float64) float64 {
	if dir.Len() <= epsilon {
		return 0
	}
	dir = dir.Normalize()
	refX := mgl64.QuatBetweenVectors(axisY, dir).Rotate(axisX)
	jointX := world.Rotate(axisX)
	jointX = jointX.Sub(dir.Mul(jointX.Dot(dir)))
	if jointX.Len() <= epsilon {
		return 0
	}
	return math.Atan2(refX.Cross(jointX).Dot(dir), refX.Dot(jointX))
}

// BoneMatrix rebuilds a world transform from a bone: Y along head to tail,
// rolled around it, positioned at head.
func BoneMatrix(b Bone) mgl64.Mat4 {
	dir := b.Tail.Sub(b.Head)
	rot := mgl64.QuatIdent()
	if dir.Len() > 0 {
		rot = mgl64.QuatBetweenVectors(axisY, dir.Normalize())
		rot = mgl64.QuatRotate(b.Roll, dir.Normalize()).Mul(rot)
	}
	return mgl64.Translate3D(b.Head[0], b.Head[1], b.Head[2]).Mul4(rot.Mat4())
}
