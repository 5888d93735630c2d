package skeleton

import (
	"math"
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"

	"github.com/swgtools/swg_asset_browser/utils"
)

const epsilon = 1e-5

func randomQuat(rnd *rand.Rand) Quat {
	axis := mgl64.Vec3{rnd.Float64()*2 - 1, rnd.Float64()*2 - 1, rnd.Float64()*2 - 1}
	if axis.Len() < 1e-3 {
		axis = mgl64.Vec3{0, 0, 1}
	}
	q := mgl64.QuatRotate(rnd.Float64()*2*math.Pi-math.Pi, axis.Normalize())
	if q.W < 0 {
		q = q.Scale(-1)
	}
	return QuatFromMgl(q)
}

func randomJoint(rnd *rand.Rand, names *utils.RandomNameGenerator, parent int32) Joint {
	j := NewJoint(names.RandomName(), parent, [3]float32{
		float32(rnd.Float64()*2 - 1), float32(rnd.Float64()*2 - 1), float32(rnd.Float64()*2 - 1)})
	j.PreRotation = randomQuat(rnd)
	j.BindRotation = randomQuat(rnd)
	j.PostRotation = randomQuat(rnd)
	return j
}

func singleJoint(rnd *rand.Rand, names *utils.RandomNameGenerator, _ int) []Joint {
	return []Joint{randomJoint(rnd, names, -1)}
}

func siblings(rnd *rand.Rand, names *utils.RandomNameGenerator, n int) []Joint {
	joints := []Joint{randomJoint(rnd, names, -1)}
	for i := 0; i < n; i++ {
		joints = append(joints, randomJoint(rnd, names, 0))
	}
	return joints
}

func chain(rnd *rand.Rand, names *utils.RandomNameGenerator, n int) []Joint {
	joints := []Joint{randomJoint(rnd, names, -1)}
	for i := 1; i < n; i++ {
		joints = append(joints, randomJoint(rnd, names, int32(i-1)))
	}
	return joints
}

func sameRotation(a, b Quat) bool {
	qa, qb := a.Mgl(), b.Mgl()
	return math.Abs(qa.Dot(qb)) > 1-epsilon
}

func approxMat(a, b mgl64.Mat4, tol float64) bool {
	for i := range a {
		if math.Abs(a[i]-b[i]) > tol {
			return false
		}
	}
	return true
}

func approxVec(a, b mgl64.Vec3, tol float64) bool {
	for i := range a {
		if math.Abs(a[i]-b[i]) > tol {
			return false
		}
	}
	return true
}

func sameVec(a, b [3]float32) bool {
	for i := range a {
		if math.Abs(float64(a[i]-b[i])) > epsilon {
			return false
		}
	}
	return true
}

func TestComposeDecomposeIdempotent(t *testing.T) {
	var names utils.RandomNameGenerator
	rnd := rand.New(rand.NewSource(1))
	opts := DefaultOptions()

	for _, tc := range []struct {
		name  string
		build func(*rand.Rand, *utils.RandomNameGenerator, int) []Joint
		n     int
	}{
		{"one joint", singleJoint, 1},
		{"siblings", siblings, 32},
		{"deep chain", chain, 64},
	} {
		joints := tc.build(rnd, &names, tc.n)
		pose, err := Compose(joints, opts)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}

		flat, warnings, err := Flatten(joints, pose.World, opts, AllocatePreserve)
		if err != nil || len(warnings) != 0 {
			t.Fatalf("%s: %v %v", tc.name, err, warnings)
		}
		for i := range joints {
			in, out := joints[i], flat[i]
			if in.Name != out.Name || in.Parent != out.Parent {
				t.Errorf("%s: joint %d identity changed", tc.name, i)
			}
			if !sameVec(in.Translation, out.Translation) {
				t.Errorf("%s: joint %d translation %v -> %v", tc.name, i, in.Translation, out.Translation)
			}
			if !sameRotation(in.PreRotation, out.PreRotation) || !sameRotation(in.PostRotation, out.PostRotation) {
				t.Errorf("%s: joint %d pre/post changed", tc.name, i)
			}
			if !sameRotation(in.BindRotation, out.BindRotation) {
				t.Errorf("%s: joint %d bind %v -> %v", tc.name, i, in.BindRotation, out.BindRotation)
			}
		}

		folded, _, err := Flatten(joints, pose.World, opts, AllocateFold)
		if err != nil {
			t.Fatal(err)
		}
		again, err := Compose(folded, opts)
		if err != nil {
			t.Fatal(err)
		}
		for i := range joints {
			if folded[i].PreRotation != IdentityQuat || folded[i].PostRotation != IdentityQuat {
				t.Errorf("%s: fold left pre/post on joint %d", tc.name, i)
			}
			if !approxMat(again.World[i], pose.World[i], 1e-4) {
				t.Errorf("%s: folded joint %d world differs", tc.name, i)
			}
		}
	}
}

func TestDegenerateInputs(t *testing.T) {
	opts := DefaultOptions()

	pose, err := Compose([]Joint{NewJoint("root", -1, [3]float32{})}, opts)
	if err != nil {
		t.Fatal(err)
	}
	if !approxMat(pose.World[0], mgl64.Ident4(), 0) {
		t.Errorf("lone root world %v", pose.World[0])
	}

	pose, err = Compose([]Joint{
		NewJoint("root", -1, [3]float32{1, 0, 0}),
		NewJoint("child", 0, [3]float32{0, 1, 0}),
	}, opts)
	if err != nil {
		t.Fatal(err)
	}
	if head := pose.Head(1); !approxVec(head, mgl64.Vec3{1, 1, 0}, 1e-12) {
		t.Errorf("child head %v", head)
	}
}

func TestChildBeforeParent(t *testing.T) {
	rot := QuatFromMgl(mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 0, 1}))
	ordered := []Joint{
		NewJoint("root", -1, [3]float32{1, 0, 0}),
		NewJoint("mid", 0, [3]float32{0, 2, 0}),
		NewJoint("tip", 1, [3]float32{3, 0, 0}),
	}
	ordered[1].BindRotation = rot

	// same hierarchy stored tip, mid, root
	shuffled := []Joint{ordered[2], ordered[1], ordered[0]}
	shuffled[0].Parent = 1
	shuffled[1].Parent = 2
	shuffled[2].Parent = -1

	a, err := Compose(ordered, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	b, err := Compose(shuffled, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	for i, j := range []int{2, 1, 0} {
		if !approxMat(a.World[i], b.World[j], 1e-12) {
			t.Errorf("joint %q differs between orders", ordered[i].Name)
		}
	}
	// mid is rotated 90 degrees around z, so tip's +x offset turns into +y
	if head := b.Head(0); !approxVec(head, mgl64.Vec3{1, 5, 0}, 1e-6) {
		t.Errorf("tip head %v", head)
	}
}

func TestInvalidHierarchy(t *testing.T) {
	for _, tc := range []struct {
		name    string
		parents []int32
	}{
		{"out of range", []int32{-1, 5}},
		{"self parent", []int32{-1, 1}},
		{"below minus one", []int32{-2}},
		{"cycle", []int32{-1, 2, 1}},
	} {
		joints := make([]Joint, len(tc.parents))
		for i, p := range tc.parents {
			joints[i] = NewJoint("j", p, [3]float32{})
		}
		_, err := Compose(joints, DefaultOptions())
		var he *HierarchyError
		if !errors.As(err, &he) {
			t.Errorf("%s: expected hierarchy error, got %v", tc.name, err)
		}
	}
}

func TestIdentitySnap(t *testing.T) {
	joints := []Joint{NewJoint("root", -1, [3]float32{}), NewJoint("child", 0, [3]float32{0, 1, 0})}
	noise := mgl64.QuatRotate(1e-9, mgl64.Vec3{1, 0, 0}).Mat4()
	world := []mgl64.Mat4{mgl64.Ident4(), mgl64.Translate3D(0, 1, 0).Mul4(noise)}

	locals, _, err := Decompose(joints, world, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if locals[1].Rotation != mgl64.QuatIdent() {
		t.Errorf("near identity rotation not snapped: %v", locals[1].Rotation)
	}
}

func TestSingularParent(t *testing.T) {
	joints := []Joint{NewJoint("root", -1, [3]float32{}), NewJoint("child", 0, [3]float32{0, 1, 0})}
	world := []mgl64.Mat4{mgl64.Scale3D(0, 0, 0), mgl64.Translate3D(0, 1, 0)}

	locals, warnings, err := Decompose(joints, world, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if len(warnings) == 0 {
		t.Fatalf("no warning for singular parent")
	}
	var nde *NumericDomainError
	if !errors.As(warnings[0], &nde) {
		t.Errorf("unexpected warning type %T", warnings[0])
	}
	if !sameVec(locals[1].Translation, [3]float32{0, 1, 0}) {
		t.Errorf("fallback translation %v", locals[1].Translation)
	}
}

func TestZeroQuaternionFallsBack(t *testing.T) {
	j := NewJoint("root", -1, [3]float32{})
	j.BindRotation = Quat{}
	pose, err := Compose([]Joint{j}, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if len(pose.Warnings) != 1 {
		t.Errorf("expected one warning, got %v", pose.Warnings)
	}
	if !approxMat(pose.World[0], mgl64.Ident4(), 1e-12) {
		t.Errorf("zero quaternion not treated as identity")
	}
}

func TestOrders(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	pre, bind, post := randomQuat(rnd).Mgl(), randomQuat(rnd).Mgl(), randomQuat(rnd).Mgl()
	a := OrderPreBindPost.Compose(pre, bind, post)
	b := OrderPostBindPre.Compose(post, bind, pre)
	if !a.OrientationEqualThreshold(b, 1e-9) {
		t.Errorf("swapping slots should match swapping order")
	}

	var names utils.RandomNameGenerator
	joints := chain(rnd, &names, 8)
	opts := Options{Order: OrderPostBindPre, IdentityEpsilon: 1e-6}
	pose, err := Compose(joints, opts)
	if err != nil {
		t.Fatal(err)
	}
	flat, _, err := Flatten(joints, pose.World, opts, AllocatePreserve)
	if err != nil {
		t.Fatal(err)
	}
	for i := range joints {
		if !sameRotation(joints[i].BindRotation, flat[i].BindRotation) {
			t.Errorf("post_bind_pre joint %d bind changed", i)
		}
	}

	for _, s := range []string{"pre_bind_post", "post_bind_pre"} {
		o, err := ParseOrder(s)
		if err != nil || o.String() != s {
			t.Errorf("ParseOrder(%q) = %v, %v", s, o, err)
		}
	}
	if _, err := ParseOrder("bind"); err == nil {
		t.Errorf("bad order accepted")
	}
}

func TestConventionMirror(t *testing.T) {
	var names utils.RandomNameGenerator
	rnd := rand.New(rand.NewSource(3))
	joints := chain(rnd, &names, 10)
	conv := Convention{MirrorX: true}

	pose, err := Compose(joints, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	mirrored, err := Compose(conv.Joints(joints), DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	for i := range joints {
		if !approxMat(mirrored.World[i], conv.Matrix(pose.World[i]), 1e-5) {
			t.Errorf("joint %d: mirrored composition differs", i)
		}
		back := conv.Joint(conv.Joint(joints[i]))
		if back != joints[i] {
			t.Errorf("joint %d: mirror is not an involution", i)
		}
	}
}
