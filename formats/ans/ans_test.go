package ans

import (
	"bytes"
	"encoding/binary"
	"reflect"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/swgtools/swg_asset_browser/iff"
	"github.com/swgtools/swg_asset_browser/skeleton"
)

func sample(kind Kind) *Animation {
	a := &Animation{
		Kind:      kind,
		FPS:       30,
		LastFrame: 10,
		Transforms: []TransformInfo{
			{Name: "root", HasAnimatedRotation: true, RotationChannel: 0, TranslationMask: AnimatedY, TranslationChannels: [3]int32{0, 0, 1}},
			{Name: "spine", RotationChannel: 0},
		},
		StaticRotations:     []StaticRotation{{Rotation: skeleton.IdentityQuat}},
		TranslationChannels: []TranslationChannel{{Keys: []TranslationKey{{Frame: 0, Value: 0.5}, {Frame: 10, Value: 1.5}}}},
		StaticTranslations:  []float32{0, 0.25},
		Messages:            []Message{{Name: "footstep", Frames: []int16{3, 8}}},
		Locomotion: Locomotion{
			AverageSpeed: 1.25,
			Translations: []LocomotionKey{{Frame: 0}, {Frame: 10, Translation: [3]float32{0, 0, 2}}},
		},
	}
	if kind == Keyframe {
		a.RotationChannels = []RotationChannel{{Keys: []RotationKey{
			{Frame: 0, Rotation: skeleton.IdentityQuat},
			{Frame: 10, Rotation: skeleton.Quat{0.7071068, 0, 0.7071068, 0}},
		}}}
		a.Locomotion.Rotations = RotationChannel{Keys: []RotationKey{{Frame: 0, Rotation: skeleton.IdentityQuat}}}
	} else {
		a.RotationChannels = []RotationChannel{{Format: [3]uint8{1, 2, 3}, Keys: []RotationKey{
			{Frame: 0, Packed: 0xdeadbeef},
			{Frame: 10, Packed: 0x01020304},
		}}}
		a.StaticRotations = []StaticRotation{{Format: [3]uint8{4, 5, 6}, Packed: 0xcafe}}
		a.Locomotion.Rotations = RotationChannel{Format: [3]uint8{7, 8, 9}, Keys: []RotationKey{{Frame: 2, Packed: 42}}}
	}
	return a
}

func TestRoundTrip(t *testing.T) {
	for _, kind := range []Kind{Keyframe, Compressed} {
		t.Run(kind.String(), func(t *testing.T) {
			a := sample(kind)
			if err := a.Validate(); err != nil {
				t.Fatalf("sample is invalid: %v", err)
			}
			data, err := Encode(a)
			if err != nil {
				t.Fatal(err)
			}
			decoded, err := Decode(data)
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(decoded, a) {
				t.Errorf("decoded:\n%s\nwant:\n%s", spew.Sdump(decoded), spew.Sdump(a))
			}
			again, err := Encode(decoded)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(again, data) {
				t.Errorf("re-encoding is not byte exact")
			}

			root, err := iff.ParseTree(data)
			if err != nil {
				t.Fatal(err)
			}
			for _, form := range []string{"XFRM", "AROT", "ATRN", "MSGS"} {
				if n := root.Child(form); n == nil || !n.Form {
					t.Errorf("%s is not a form in %s", form, spew.Sdump(root))
				}
			}
		})
	}
}

func TestCompressedLayout(t *testing.T) {
	data, err := Encode(sample(Compressed))
	if err != nil {
		t.Fatal(err)
	}
	root, err := iff.ParseTree(data)
	if err != nil {
		t.Fatal(err)
	}
	if root.Tag.String() != "CKAT" || root.Version.String() != "0001" {
		t.Fatalf("root %v/%v", root.Tag, root.Version)
	}
	// fps + six int16 counts
	if info := root.Child("INFO"); len(info.Data) != 4+6*2 {
		t.Errorf("INFO is %d bytes", len(info.Data))
	}
	xfin := root.Find("XFRM", "XFIN")
	// "root\0" + has rotation + int16 channel + uint8 mask + 3 x int16
	if want := 5 + 1 + 2 + 1 + 6; len(xfin.Data) != want {
		t.Errorf("XFIN is %d bytes, want %d", len(xfin.Data), want)
	}
	if root.Child("LOCR") != nil || len(root.Children) == 0 || root.Children[len(root.Children)-1].Tag.String() != "QCHN" {
		t.Errorf("compressed locomotion rotation must be a trailing QCHN")
	}
}

func TestZeroInfoCounts(t *testing.T) {
	// files from older exporters leave INFO counts at zero
	a := sample(Keyframe)
	data, err := Encode(a)
	if err != nil {
		t.Fatal(err)
	}
	root, err := iff.ParseTree(data)
	if err != nil {
		t.Fatal(err)
	}
	info := root.Child("INFO")
	for i := 8; i < len(info.Data); i++ {
		info.Data[i] = 0
	}
	patched, err := root.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := Decode(patched)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(decoded, a) {
		t.Errorf("content should not depend on INFO counts")
	}
}

func TestDecodeErrors(t *testing.T) {
	w := iff.NewWriter()
	w.BeginForm(tagKFAT, version0003)
	w.BeginChunk(tagINFO)
	w.WriteFloat(30)
	w.EndChunk()
	w.EndForm()
	shortInfo, _ := w.Bytes()

	w = iff.NewWriter()
	w.BeginForm(tagKFAT, version0001)
	w.EndForm()
	badVersion, _ := w.Bytes()

	w = iff.NewWriter()
	w.BeginForm(iff.NewTag("SLOD"), version0000)
	w.EndForm()
	wrongRoot, _ := w.Bytes()

	for _, tc := range []struct {
		name       string
		data       []byte
		structural bool
	}{
		{"short info", shortInfo, true},
		{"bad version", badVersion, true},
		{"wrong root", wrongRoot, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(tc.data)
			if err == nil {
				t.Fatal("expected error")
			}
			if tc.structural != iff.IsStructural(err) {
				t.Errorf("unexpected error class: %v", err)
			}
			if !tc.structural && !iff.IsSchemaMismatch(err) {
				t.Errorf("expected schema mismatch, got %v", err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	a := sample(Keyframe)
	a.Transforms[0].RotationChannel = 3
	a.Transforms[1].TranslationMask = AnimatedX | AnimatedZ
	a.Transforms[1].TranslationChannels = [3]int32{-1, 1, 0}
	a.Messages[0].Frames = append(a.Messages[0].Frames, 11)

	errs := multierr.Errors(a.Validate())
	if len(errs) != 3 {
		t.Fatalf("got %d errors: %v", len(errs), errs)
	}
	var ce *ChannelError
	if !errors.As(errs[0], &ce) || ce.Transform != "root" || ce.Index != 3 || ce.Count != 1 {
		t.Errorf("first error %v", errs[0])
	}
	if !errors.As(errs[1], &ce) || ce.Transform != "spine" || ce.Index != -1 {
		t.Errorf("second error %v", errs[1])
	}
}

func TestMissingJoints(t *testing.T) {
	a := sample(Keyframe)
	joints := []skeleton.Joint{skeleton.NewJoint("root", -1, [3]float32{})}
	if got := a.MissingJoints(joints); !reflect.DeepEqual(got, []string{"spine"}) {
		t.Errorf("missing %v", got)
	}
}

func TestCorruptOptionalLength(t *testing.T) {
	for _, tag := range []string{"MSGS", "LOCT"} {
		t.Run(tag, func(t *testing.T) {
			data, err := Encode(sample(Keyframe))
			if err != nil {
				t.Fatal(err)
			}
			i := bytes.Index(data, []byte(tag))
			if i < 4 {
				t.Fatalf("%s not found", tag)
			}
			binary.LittleEndian.PutUint32(data[i-4:], 0x7fffff00)
			a, err := Decode(data)
			if !iff.IsStructural(err) {
				t.Errorf("decoded %s with error %v", spew.Sdump(a), err)
			}
		})
	}
}

func TestEncodeRange(t *testing.T) {
	for _, tc := range []struct {
		name   string
		kind   Kind
		modify func(a *Animation)
		ok     bool
	}{
		{"wide key frame", Keyframe, func(a *Animation) { a.TranslationChannels[0].Keys[1].Frame = 40000 }, true},
		{"short key frame", Compressed, func(a *Animation) { a.TranslationChannels[0].Keys[1].Frame = 40000 }, false},
		{"rotation channel", Compressed, func(a *Animation) { a.Transforms[0].RotationChannel = 70000 }, false},
		{"translation channel", Compressed, func(a *Animation) { a.Transforms[0].TranslationChannels[2] = -40000 }, false},
		{"mask", Compressed, func(a *Animation) { a.Transforms[0].TranslationMask = 0x100 }, false},
		{"packed frame", Compressed, func(a *Animation) { a.RotationChannels[0].Keys[1].Frame = 1e6 }, false},
		{"locomotion frame", Keyframe, func(a *Animation) { a.Locomotion.Rotations.Keys[0].Frame = -1e6 }, false},
		{"negative last frame", Keyframe, func(a *Animation) { a.LastFrame = -1 }, false},
		{"message frames", Keyframe, func(a *Animation) { a.Messages[0].Frames = make([]int16, 1<<15) }, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			a := sample(tc.kind)
			tc.modify(a)
			data, err := Encode(a)
			if tc.ok != (err == nil) {
				t.Fatalf("Encode: %v", err)
			}
			if !tc.ok {
				return
			}
			decoded, err := Decode(data)
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(decoded.TranslationChannels, a.TranslationChannels) {
				t.Errorf("translation channels:\n%s", spew.Sdump(decoded.TranslationChannels))
			}
		})
	}
}
