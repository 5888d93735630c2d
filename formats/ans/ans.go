// Package ans reads and writes skeletal animations, both the keyframe
// (KFAT/0003) and the compressed (CKAT/0001) layout. Compressed rotations are
// kept packed; nothing here decompresses them.
package ans

import (
	"math"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/swgtools/swg_asset_browser/formats"
	"github.com/swgtools/swg_asset_browser/iff"
	"github.com/swgtools/swg_asset_browser/pack"
	"github.com/swgtools/swg_asset_browser/skeleton"
)

var (
	tagKFAT = iff.NewTag("KFAT")
	tagCKAT = iff.NewTag("CKAT")
	tagINFO = iff.NewTag("INFO")
	tagXFRM = iff.NewTag("XFRM")
	tagXFIN = iff.NewTag("XFIN")
	tagAROT = iff.NewTag("AROT")
	tagQCHN = iff.NewTag("QCHN")
	tagSROT = iff.NewTag("SROT")
	tagATRN = iff.NewTag("ATRN")
	tagCHNL = iff.NewTag("CHNL")
	tagSTRN = iff.NewTag("STRN")
	tagMSGS = iff.NewTag("MSGS")
	tagMESG = iff.NewTag("MESG")
	tagLOCT = iff.NewTag("LOCT")
	tagLOCR = iff.NewTag("LOCR")

	version0000 = iff.NewTag("0000")
	version0001 = iff.NewTag("0001")
	version0003 = iff.NewTag("0003")
)

type Kind int

const (
	Keyframe Kind = iota
	Compressed
)

func (k Kind) String() string {
	if k == Compressed {
		return "CKAT"
	}
	return "KFAT"
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "KFAT":
		*k = Keyframe
	case "CKAT":
		*k = Compressed
	default:
		return errors.Errorf("Unknown animation kind %q", b)
	}
	return nil
}

// Translation mask bits of a transform. A set bit means the axis reads an
// animated channel, a clear bit a static value.
const (
	AnimatedX uint32 = 1 << iota
	AnimatedY
	AnimatedZ
)

// TransformInfo binds one joint to its rotation and translation sources.
type TransformInfo struct {
	Name                string   `json:"name" yaml:"name"`
	HasAnimatedRotation bool     `json:"has_animated_rotation" yaml:"has_animated_rotation"`
	RotationChannel     int32    `json:"rotation_channel" yaml:"rotation_channel"`
	TranslationMask     uint32   `json:"translation_mask" yaml:"translation_mask"`
	TranslationChannels [3]int32 `json:"translation_channels" yaml:"translation_channels,flow"`
}

// RotationKey holds either a plain rotation (keyframe layout) or a packed
// one (compressed layout).
type RotationKey struct {
	Frame    float32       `json:"frame" yaml:"frame"`
	Rotation skeleton.Quat `json:"rotation" yaml:"rotation,flow"`
	Packed   uint32        `json:"packed,omitempty" yaml:"packed,omitempty"`
}

type RotationChannel struct {
	// Format is the per axis compression format, compressed layout only.
	Format [3]uint8      `json:"format" yaml:"format,flow"`
	Keys   []RotationKey `json:"keys" yaml:"keys"`
}

type StaticRotation struct {
	Format   [3]uint8      `json:"format" yaml:"format,flow"`
	Rotation skeleton.Quat `json:"rotation" yaml:"rotation,flow"`
	Packed   uint32        `json:"packed,omitempty" yaml:"packed,omitempty"`
}

type TranslationKey struct {
	Frame int32   `json:"frame" yaml:"frame"`
	Value float32 `json:"value" yaml:"value"`
}

type TranslationChannel struct {
	Keys []TranslationKey `json:"keys" yaml:"keys,flow"`
}

// Message is a named signal fired on the listed frames.
type Message struct {
	Name   string  `json:"name" yaml:"name"`
	Frames []int16 `json:"frames" yaml:"frames,flow"`
}

type LocomotionKey struct {
	Frame       int16      `json:"frame" yaml:"frame"`
	Translation [3]float32 `json:"translation" yaml:"translation,flow"`
}

type Locomotion struct {
	AverageSpeed float32         `json:"average_speed" yaml:"average_speed"`
	Translations []LocomotionKey `json:"translations" yaml:"translations"`
	Rotations    RotationChannel `json:"rotations" yaml:"rotations"`
}

type Animation struct {
	Kind                Kind                 `json:"kind" yaml:"kind"`
	FPS                 float32              `json:"fps" yaml:"fps"`
	LastFrame           int32                `json:"last_frame" yaml:"last_frame"`
	Transforms          []TransformInfo      `json:"transforms" yaml:"transforms"`
	RotationChannels    []RotationChannel    `json:"rotation_channels" yaml:"rotation_channels"`
	StaticRotations     []StaticRotation     `json:"static_rotations" yaml:"static_rotations"`
	TranslationChannels []TranslationChannel `json:"translation_channels" yaml:"translation_channels"`
	StaticTranslations  []float32            `json:"static_translations" yaml:"static_translations,flow"`
	Messages            []Message            `json:"messages" yaml:"messages"`
	Locomotion          Locomotion           `json:"locomotion" yaml:"locomotion"`
}

// counter reads and writes the count fields, which are int32 in the keyframe
// layout and int16 in the compressed one.
type counter struct{ wide bool }

func (c counter) read(r *iff.Reader) int {
	if c.wide {
		return int(r.ReadInt32())
	}
	return int(r.ReadInt16())
}

func (c counter) write(w *iff.Writer, v int) {
	if c.wide {
		w.WriteInt32(int32(v))
	} else {
		w.WriteInt16(int16(v))
	}
}

func (c counter) fits(v int) bool {
	if c.wide {
		return v <= math.MaxInt32
	}
	return v <= math.MaxInt16
}

// holds reports whether the signed value v survives a write with c.
func (c counter) holds(v int64) bool {
	if c.wide {
		return v >= math.MinInt32 && v <= math.MaxInt32
	}
	return v >= math.MinInt16 && v <= math.MaxInt16
}

func countMismatch(what string, info, actual int) {
	if info != actual {
		formats.Logger().Warn("animation INFO count disagrees with content",
			zap.String("what", what), zap.Int("info", info), zap.Int("actual", actual))
	}
}

func Decode(data []byte, opts ...iff.Option) (*Animation, error) {
	r := iff.NewReader(data, opts...)
	tag, err := r.PeekTag()
	if err != nil {
		if errors.Is(err, iff.ErrEndOfScope) {
			return nil, &iff.SchemaMismatchError{Expected: tagKFAT}
		}
		return nil, err
	}

	a := &Animation{}
	var expectVersion iff.Tag
	switch tag {
	case tagKFAT:
		a.Kind, expectVersion = Keyframe, version0003
	case tagCKAT:
		a.Kind, expectVersion = Compressed, version0001
	default:
		return nil, &iff.SchemaMismatchError{Expected: tagKFAT, Actual: tag}
	}
	version, err := r.EnterFormTag(tag)
	if err != nil {
		return nil, err
	}
	if version != expectVersion {
		return nil, iff.Structuralf(0, "unsupported %v version %q", tag, version.String())
	}
	c := counter{wide: a.Kind == Keyframe}

	if _, err := r.EnterChunkTag(tagINFO); err != nil {
		return nil, err
	}
	a.FPS = r.ReadFloat()
	a.LastFrame = int32(c.read(r))
	var infoCounts [5]int
	for i := range infoCounts {
		infoCounts[i] = c.read(r)
	}
	if err := r.ExitChunk(); err != nil {
		return nil, err
	}

	steps := []func(*iff.Reader, *Animation) error{
		decodeTransforms, decodeRotationChannels, decodeStaticRotations,
		decodeTranslationChannels, decodeStaticTranslations, decodeMessages, decodeLocomotion,
	}
	for _, step := range steps {
		if err := step(r, a); err != nil {
			return nil, errors.Wrapf(err, "%v", a.Kind)
		}
	}
	if err := r.ExitForm(); err != nil {
		return nil, err
	}

	countMismatch("transforms", infoCounts[0], len(a.Transforms))
	countMismatch("rotation channels", infoCounts[1], len(a.RotationChannels))
	countMismatch("static rotations", infoCounts[2], len(a.StaticRotations))
	countMismatch("translation channels", infoCounts[3], len(a.TranslationChannels))
	countMismatch("static translations", infoCounts[4], len(a.StaticTranslations))
	return a, nil
}

// eachChunk enters the form tagged form and calls fn inside every chunk
// tagged chunk.
func eachChunk(r *iff.Reader, form, chunk iff.Tag, fn func() error) error {
	if _, err := r.EnterFormTag(form); err != nil {
		return err
	}
	if err := chunks(r, form, chunk, fn); err != nil {
		return err
	}
	return r.ExitForm()
}

// chunks calls fn inside every remaining chunk tagged chunk of the current
// form, skipping other children.
func chunks(r *iff.Reader, form, chunk iff.Tag, fn func() error) error {
	for !r.AtEnd() {
		tag, err := r.PeekTag()
		if err != nil {
			return err
		}
		if tag != chunk {
			formats.Logger().Debug("skipping unknown child", zap.Stringer("form", form), zap.Stringer("tag", tag))
			if _, err := r.Skip(); err != nil {
				return err
			}
			continue
		}
		if _, _, err := r.EnterChunk(); err != nil {
			return err
		}
		if err := fn(); err != nil {
			return err
		}
		if err := r.ExitChunk(); err != nil {
			return err
		}
	}
	return nil
}

func decodeTransforms(r *iff.Reader, a *Animation) error {
	return eachChunk(r, tagXFRM, tagXFIN, func() error {
		var t TransformInfo
		t.Name = r.ReadString()
		t.HasAnimatedRotation = r.ReadInt8() != 0
		if a.Kind == Keyframe {
			t.RotationChannel = r.ReadInt32()
			t.TranslationMask = r.ReadUint32()
			for i := range t.TranslationChannels {
				t.TranslationChannels[i] = r.ReadInt32()
			}
		} else {
			t.RotationChannel = int32(r.ReadInt16())
			t.TranslationMask = uint32(r.ReadUint8())
			for i := range t.TranslationChannels {
				t.TranslationChannels[i] = int32(r.ReadInt16())
			}
		}
		a.Transforms = append(a.Transforms, t)
		return nil
	})
}

func readFormat(r *iff.Reader) (f [3]uint8) {
	for i := range f {
		f[i] = r.ReadUint8()
	}
	return f
}

func writeFormat(w *iff.Writer, f [3]uint8) {
	for _, b := range f {
		w.WriteUint8(b)
	}
}

// readPackedChannel reads count, formats and packed keys of a compressed
// rotation channel.
func readPackedChannel(r *iff.Reader, c counter) (ch RotationChannel, err error) {
	n := c.read(r)
	if n < 0 {
		return ch, iff.Structuralf(r.Offset(), "negative key count %d", n)
	}
	ch.Format = readFormat(r)
	for k := 0; k < n && r.Err() == nil; k++ {
		frame := r.ReadInt16()
		ch.Keys = append(ch.Keys, RotationKey{Frame: float32(frame), Packed: r.ReadUint32()})
	}
	return ch, r.Err()
}

func writePackedChannel(w *iff.Writer, c counter, ch *RotationChannel) {
	c.write(w, len(ch.Keys))
	writeFormat(w, ch.Format)
	for _, k := range ch.Keys {
		w.WriteInt16(int16(math.Round(float64(k.Frame))))
		w.WriteUint32(k.Packed)
	}
}

func decodeRotationChannels(r *iff.Reader, a *Animation) error {
	return eachChunk(r, tagAROT, tagQCHN, func() error {
		if a.Kind == Compressed {
			// animated channels always carry an int32 key count
			ch, err := readPackedChannel(r, counter{wide: true})
			a.RotationChannels = append(a.RotationChannels, ch)
			return err
		}
		var ch RotationChannel
		n := int(r.ReadInt32())
		if n < 0 {
			return iff.Structuralf(r.Offset(), "negative key count %d", n)
		}
		for k := 0; k < n && r.Err() == nil; k++ {
			ch.Keys = append(ch.Keys, RotationKey{Frame: r.ReadFloat(), Rotation: skeleton.Quat(r.ReadVec4())})
		}
		a.RotationChannels = append(a.RotationChannels, ch)
		return r.Err()
	})
}

func decodeStaticRotations(r *iff.Reader, a *Animation) error {
	if _, err := r.EnterChunkTag(tagSROT); err != nil {
		return err
	}
	for r.Err() == nil && !r.AtEnd() {
		var s StaticRotation
		if a.Kind == Compressed {
			s.Format = readFormat(r)
			s.Packed = r.ReadUint32()
		} else {
			s.Rotation = skeleton.Quat(r.ReadVec4())
		}
		a.StaticRotations = append(a.StaticRotations, s)
	}
	return r.ExitChunk()
}

func decodeTranslationChannels(r *iff.Reader, a *Animation) error {
	c := counter{wide: a.Kind == Keyframe}
	return eachChunk(r, tagATRN, tagCHNL, func() error {
		var ch TranslationChannel
		n := c.read(r)
		if n < 0 {
			return iff.Structuralf(r.Offset(), "negative key count %d", n)
		}
		for k := 0; k < n && r.Err() == nil; k++ {
			key := TranslationKey{Frame: int32(c.read(r))}
			key.Value = r.ReadFloat()
			ch.Keys = append(ch.Keys, key)
		}
		a.TranslationChannels = append(a.TranslationChannels, ch)
		return r.Err()
	})
}

func decodeStaticTranslations(r *iff.Reader, a *Animation) error {
	if _, err := r.EnterChunkTag(tagSTRN); err != nil {
		return err
	}
	for r.Err() == nil && !r.AtEnd() {
		a.StaticTranslations = append(a.StaticTranslations, r.ReadFloat())
	}
	return r.ExitChunk()
}

func decodeMessages(r *iff.Reader, a *Animation) error {
	if ok, err := r.HasSibling(tagMSGS); err != nil || !ok {
		return err
	}
	if _, err := r.EnterFormTag(tagMSGS); err != nil {
		return err
	}
	if _, err := r.EnterChunkTag(tagINFO); err != nil {
		return err
	}
	count := int(r.ReadInt16())
	if err := r.ExitChunk(); err != nil {
		return err
	}
	err := chunks(r, tagMSGS, tagMESG, func() error {
		n := int(r.ReadInt16())
		m := Message{Name: r.ReadString()}
		for k := 0; k < n && r.Err() == nil; k++ {
			m.Frames = append(m.Frames, r.ReadInt16())
		}
		a.Messages = append(a.Messages, m)
		return nil
	})
	if err != nil {
		return err
	}
	countMismatch("messages", count, len(a.Messages))
	return r.ExitForm()
}

func decodeLocomotion(r *iff.Reader, a *Animation) error {
	hasLOCT, err := r.HasSibling(tagLOCT)
	if err != nil {
		return err
	}
	if hasLOCT {
		if _, err := r.EnterChunkTag(tagLOCT); err != nil {
			return err
		}
		a.Locomotion.AverageSpeed = r.ReadFloat()
		n := int(r.ReadInt16())
		for k := 0; k < n && r.Err() == nil; k++ {
			key := LocomotionKey{Frame: r.ReadInt16()}
			key.Translation = r.ReadVec3()
			a.Locomotion.Translations = append(a.Locomotion.Translations, key)
		}
		if err := r.ExitChunk(); err != nil {
			return err
		}
	}

	if a.Kind == Compressed {
		if ok, err := r.HasSibling(tagQCHN); err != nil || !ok {
			return err
		}
		if _, err := r.EnterChunkTag(tagQCHN); err != nil {
			return err
		}
		ch, err := readPackedChannel(r, counter{})
		if err != nil {
			return err
		}
		a.Locomotion.Rotations = ch
		return r.ExitChunk()
	}

	if ok, err := r.HasSibling(tagLOCR); err != nil || !ok {
		return err
	}
	if _, err := r.EnterChunkTag(tagLOCR); err != nil {
		return err
	}
	n := int(r.ReadInt16())
	for k := 0; k < n && r.Err() == nil; k++ {
		frame := r.ReadInt16()
		a.Locomotion.Rotations.Keys = append(a.Locomotion.Rotations.Keys,
			RotationKey{Frame: float32(frame), Rotation: skeleton.Quat(r.ReadVec4())})
	}
	return r.ExitChunk()
}

func (a *Animation) checkCounts() error {
	c := counter{wide: a.Kind == Keyframe}
	for _, v := range []struct {
		what string
		n    int
	}{
		{"last frame", int(a.LastFrame)},
		{"transforms", len(a.Transforms)},
		{"rotation channels", len(a.RotationChannels)},
		{"static rotations", len(a.StaticRotations)},
		{"translation channels", len(a.TranslationChannels)},
		{"static translations", len(a.StaticTranslations)},
	} {
		if !c.fits(v.n) {
			return errors.Errorf("Too many %s for %v: %d", v.what, a.Kind, v.n)
		}
	}
	short := counter{}
	if !short.fits(len(a.Messages)) || !short.fits(len(a.Locomotion.Translations)) || !short.fits(len(a.Locomotion.Rotations.Keys)) {
		return errors.Errorf("Too many messages or locomotion keys")
	}
	if a.LastFrame < 0 {
		return errors.Errorf("Negative last frame %d", a.LastFrame)
	}

	if a.Kind == Compressed {
		for _, t := range a.Transforms {
			if !short.holds(int64(t.RotationChannel)) {
				return errors.Errorf("Transform %q rotation channel %d out of int16 range", t.Name, t.RotationChannel)
			}
			if t.TranslationMask > math.MaxUint8 {
				return errors.Errorf("Transform %q translation mask 0x%x out of uint8 range", t.Name, t.TranslationMask)
			}
			for _, ch := range t.TranslationChannels {
				if !short.holds(int64(ch)) {
					return errors.Errorf("Transform %q translation channel %d out of int16 range", t.Name, ch)
				}
			}
		}
		for i, ch := range a.RotationChannels {
			if err := checkPackedFrames(ch.Keys); err != nil {
				return errors.Wrapf(err, "Rotation channel %d", i)
			}
		}
	}
	for i, ch := range a.TranslationChannels {
		for _, k := range ch.Keys {
			if !c.holds(int64(k.Frame)) {
				return errors.Errorf("Translation channel %d key frame %d out of range for %v", i, k.Frame, a.Kind)
			}
		}
	}
	for _, m := range a.Messages {
		if !short.fits(len(m.Frames)) {
			return errors.Errorf("Message %q has too many frames: %d", m.Name, len(m.Frames))
		}
	}
	return errors.Wrapf(checkPackedFrames(a.Locomotion.Rotations.Keys), "Locomotion rotations")
}

// checkPackedFrames checks key frames stored as rounded int16 values.
func checkPackedFrames(keys []RotationKey) error {
	for _, k := range keys {
		f := math.Round(float64(k.Frame))
		if math.IsNaN(f) || f < math.MinInt16 || f > math.MaxInt16 {
			return errors.Errorf("key frame %v out of int16 range", k.Frame)
		}
	}
	return nil
}

// Encode writes a in the layout selected by a.Kind.
func Encode(a *Animation, opts ...iff.Option) ([]byte, error) {
	if err := a.checkCounts(); err != nil {
		return nil, err
	}
	c := counter{wide: a.Kind == Keyframe}
	w := iff.NewWriter(opts...)

	if a.Kind == Compressed {
		w.BeginForm(tagCKAT, version0001)
	} else {
		w.BeginForm(tagKFAT, version0003)
	}

	w.BeginChunk(tagINFO)
	w.WriteFloat(a.FPS)
	c.write(w, int(a.LastFrame))
	for _, n := range []int{len(a.Transforms), len(a.RotationChannels), len(a.StaticRotations),
		len(a.TranslationChannels), len(a.StaticTranslations)} {
		c.write(w, n)
	}
	w.EndChunk()

	w.BeginForm(tagXFRM, version0000)
	for _, t := range a.Transforms {
		w.BeginChunk(tagXFIN)
		w.WriteString(t.Name)
		if t.HasAnimatedRotation {
			w.WriteInt8(1)
		} else {
			w.WriteInt8(0)
		}
		if a.Kind == Keyframe {
			w.WriteInt32(t.RotationChannel)
			w.WriteUint32(t.TranslationMask)
			for _, ch := range t.TranslationChannels {
				w.WriteInt32(ch)
			}
		} else {
			w.WriteInt16(int16(t.RotationChannel))
			w.WriteUint8(uint8(t.TranslationMask))
			for _, ch := range t.TranslationChannels {
				w.WriteInt16(int16(ch))
			}
		}
		w.EndChunk()
	}
	w.EndForm()

	w.BeginForm(tagAROT, version0000)
	for i := range a.RotationChannels {
		ch := &a.RotationChannels[i]
		w.BeginChunk(tagQCHN)
		if a.Kind == Compressed {
			writePackedChannel(w, counter{wide: true}, ch)
		} else {
			w.WriteInt32(int32(len(ch.Keys)))
			for _, k := range ch.Keys {
				w.WriteFloat(k.Frame)
				w.WriteVec4(k.Rotation)
			}
		}
		w.EndChunk()
	}
	w.EndForm()

	w.BeginChunk(tagSROT)
	for _, s := range a.StaticRotations {
		if a.Kind == Compressed {
			writeFormat(w, s.Format)
			w.WriteUint32(s.Packed)
		} else {
			w.WriteVec4(s.Rotation)
		}
	}
	w.EndChunk()

	w.BeginForm(tagATRN, version0000)
	for _, ch := range a.TranslationChannels {
		w.BeginChunk(tagCHNL)
		c.write(w, len(ch.Keys))
		for _, k := range ch.Keys {
			c.write(w, int(k.Frame))
			w.WriteFloat(k.Value)
		}
		w.EndChunk()
	}
	w.EndForm()

	w.BeginChunk(tagSTRN)
	for _, v := range a.StaticTranslations {
		w.WriteFloat(v)
	}
	w.EndChunk()

	w.BeginForm(tagMSGS, version0000)
	w.BeginChunk(tagINFO)
	w.WriteInt16(int16(len(a.Messages)))
	w.EndChunk()
	for _, m := range a.Messages {
		w.BeginChunk(tagMESG)
		w.WriteInt16(int16(len(m.Frames)))
		w.WriteString(m.Name)
		for _, f := range m.Frames {
			w.WriteInt16(f)
		}
		w.EndChunk()
	}
	w.EndForm()

	loco := &a.Locomotion
	w.BeginChunk(tagLOCT)
	w.WriteFloat(loco.AverageSpeed)
	w.WriteInt16(int16(len(loco.Translations)))
	for _, k := range loco.Translations {
		w.WriteInt16(k.Frame)
		w.WriteVec3(k.Translation)
	}
	w.EndChunk()

	if a.Kind == Compressed {
		w.BeginChunk(tagQCHN)
		writePackedChannel(w, counter{}, &loco.Rotations)
	} else {
		w.BeginChunk(tagLOCR)
		w.WriteInt16(int16(len(loco.Rotations.Keys)))
		for _, k := range loco.Rotations.Keys {
			w.WriteInt16(int16(math.Round(float64(k.Frame))))
			w.WriteVec4(k.Rotation)
		}
	}
	w.EndChunk()

	w.EndForm()
	return w.Bytes()
}

func load(ctx *pack.Context, data []byte) (interface{}, error) {
	return Decode(data, ctx.Options()...)
}

func init() {
	iff.RegisterFormTag("KFAT", "CKAT", "XFRM", "AROT", "ATRN", "MSGS")
	pack.SetHandler(".ans", load)
}
