// Package skt reads and writes skeleton templates.
//
//	FORM SLOD/0000
//	  INFO  int16 level count
//	  FORM SKTM/0002 (one per level, most detailed first)
//	    INFO int32 joint count
//	    NAME strings
//	    PRNT int32 parent index, -1 for roots
//	    RPRE vec4 pre rotation (w, x, y, z)
//	    RPST vec4 post rotation
//	    BPTR vec3 bind translation
//	    BPRO vec4 bind rotation
//	    JROR int32 rotation order (absent in 0001)
//
// Chunks of a SKTM form may come in any order. A file may also hold a bare
// SKTM form without the SLOD wrapper.
package skt

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
	tagSLOD = iff.NewTag("SLOD")
	tagSKTM = iff.NewTag("SKTM")
	tagINFO = iff.NewTag("INFO")
	tagNAME = iff.NewTag("NAME")
	tagPRNT = iff.NewTag("PRNT")
	tagRPRE = iff.NewTag("RPRE")
	tagRPST = iff.NewTag("RPST")
	tagBPTR = iff.NewTag("BPTR")
	tagBPRO = iff.NewTag("BPRO")
	tagJROR = iff.NewTag("JROR")

	versionSLOD = iff.NewTag("0000")
	versionSKTM = iff.NewTag("0002")
	version0001 = iff.NewTag("0001")
)

// Skeleton is the loaded form of a .skt file.
type Skeleton struct {
	skeleton.Asset
}

func Decode(data []byte, opts ...iff.Option) (*skeleton.Asset, error) {
	r := iff.NewReader(data, opts...)
	tag, err := r.PeekTag()
	if err != nil {
		if errors.Is(err, iff.ErrEndOfScope) {
			return nil, &iff.SchemaMismatchError{Expected: tagSLOD, Offset: 0}
		}
		return nil, err
	}

	asset := &skeleton.Asset{}
	switch tag {
	case tagSKTM:
		joints, err := decodeSKTM(r)
		if err != nil {
			return nil, err
		}
		asset.Levels = append(asset.Levels, skeleton.Level{Joints: joints})
		return asset, nil
	case tagSLOD:
	default:
		return nil, &iff.SchemaMismatchError{Expected: tagSLOD, Actual: tag, Offset: 0}
	}

	if _, err := r.EnterFormTag(tagSLOD); err != nil {
		return nil, err
	}
	if _, err := r.EnterChunkTag(tagINFO); err != nil {
		return nil, errors.Wrapf(err, "SLOD")
	}
	count := int(r.ReadInt16())
	if err := r.ExitChunk(); err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, iff.Structuralf(r.Offset(), "negative level count %d", count)
	}

	for i := 0; i < count; i++ {
		joints, err := decodeSKTM(r)
		if err != nil {
			return nil, errors.Wrapf(err, "level %d", i)
		}
		asset.Levels = append(asset.Levels, skeleton.Level{Joints: joints})
	}
	if err := r.ExitForm(); err != nil {
		return nil, err
	}
	return asset, nil
}

type sktmChunks struct {
	count     int
	names     []string
	parents   []int32
	pre, post []skeleton.Quat
	bindT     [][3]float32
	bindR     []skeleton.Quat
	orders    []int32
	seen      map[iff.Tag]bool
}

func readQuats(r *iff.Reader) (list []skeleton.Quat) {
	for r.Err() == nil && !r.AtEnd() {
		list = append(list, skeleton.Quat(r.ReadVec4()))
	}
	return list
}

func readInt32s(r *iff.Reader) (list []int32) {
	for r.Err() == nil && !r.AtEnd() {
		list = append(list, r.ReadInt32())
	}
	return list
}

func decodeSKTM(r *iff.Reader) ([]skeleton.Joint, error) {
	start := r.Offset()
	version, err := r.EnterFormTag(tagSKTM)
	if err != nil {
		return nil, err
	}
	if version != versionSKTM && version != version0001 {
		return nil, iff.Structuralf(start, "unsupported SKTM version %q", version.String())
	}

	c := sktmChunks{count: -1, seen: make(map[iff.Tag]bool)}
	for {
		tag, _, err := r.EnterChunk()
		if errors.Is(err, iff.ErrEndOfScope) {
			break
		} else if err != nil {
			return nil, err
		}
		c.seen[tag] = true
		switch tag {
		case tagINFO:
			c.count = int(r.ReadInt32())
		case tagNAME:
			c.names = r.ReadStrings()
		case tagPRNT:
			c.parents = readInt32s(r)
		case tagRPRE:
			c.pre = readQuats(r)
		case tagRPST:
			c.post = readQuats(r)
		case tagBPTR:
			for r.Err() == nil && !r.AtEnd() {
				c.bindT = append(c.bindT, r.ReadVec3())
			}
		case tagBPRO:
			c.bindR = readQuats(r)
		case tagJROR:
			c.orders = readInt32s(r)
		default:
			formats.Logger().Debug("SKTM: skipping unknown chunk", zap.Stringer("tag", tag))
		}
		if err := r.ExitChunk(); err != nil {
			return nil, err
		}
	}
	if err := r.ExitForm(); err != nil {
		return nil, err
	}

	required := []iff.Tag{tagINFO, tagNAME, tagPRNT, tagRPRE, tagRPST, tagBPTR, tagBPRO}
	if version == versionSKTM {
		required = append(required, tagJROR)
	}
	for _, t := range required {
		if !c.seen[t] {
			return nil, &iff.SchemaMismatchError{Expected: t, Offset: start}
		}
	}
	if c.count < 0 {
		return nil, iff.Structuralf(start, "negative joint count %d", c.count)
	}

	type entries struct {
		tag iff.Tag
		n   int
	}
	lengths := []entries{
		{tagNAME, len(c.names)}, {tagPRNT, len(c.parents)}, {tagRPRE, len(c.pre)},
		{tagRPST, len(c.post)}, {tagBPTR, len(c.bindT)}, {tagBPRO, len(c.bindR)},
	}
	if version == versionSKTM {
		lengths = append(lengths, entries{tagJROR, len(c.orders)})
	}
	for _, l := range lengths {
		if l.n != c.count {
			return nil, iff.Structuralf(start, "%s holds %d entries, INFO says %d", l.tag.String(), l.n, c.count)
		}
	}

	joints := make([]skeleton.Joint, c.count)
	for i := range joints {
		joints[i] = skeleton.Joint{
			Name:         c.names[i],
			Parent:       c.parents[i],
			Translation:  c.bindT[i],
			PreRotation:  c.pre[i],
			BindRotation: c.bindR[i],
			PostRotation: c.post[i],
		}
		if c.orders != nil {
			joints[i].RotationOrder = c.orders[i]
		}
	}
	return joints, nil
}

// Encode writes asset as SLOD/0000 with one SKTM/0002 per level.
func Encode(asset *skeleton.Asset, opts ...iff.Option) ([]byte, error) {
	if len(asset.Levels) > math.MaxInt16 {
		return nil, errors.Errorf("Too many levels: %d", len(asset.Levels))
	}
	for i := range asset.Levels {
		if err := skeleton.Validate(asset.Levels[i].Joints); err != nil {
			return nil, errors.Wrapf(err, "level %d", i)
		}
	}

	w := iff.NewWriter(opts...)
	w.BeginForm(tagSLOD, versionSLOD)
	w.BeginChunk(tagINFO)
	w.WriteInt16(int16(len(asset.Levels)))
	w.EndChunk()
	for i := range asset.Levels {
		encodeSKTM(w, asset.Levels[i].Joints)
	}
	w.EndForm()
	return w.Bytes()
}

func encodeSKTM(w *iff.Writer, joints []skeleton.Joint) {
	quats := func(tag iff.Tag, get func(j *skeleton.Joint) skeleton.Quat) {
		w.BeginChunk(tag)
		for i := range joints {
			w.WriteVec4(get(&joints[i]))
		}
		w.EndChunk()
	}

	w.BeginForm(tagSKTM, versionSKTM)

	w.BeginChunk(tagINFO)
	w.WriteInt32(int32(len(joints)))
	w.EndChunk()

	w.BeginChunk(tagNAME)
	for i := range joints {
		w.WriteString(joints[i].Name)
	}
	w.EndChunk()

	w.BeginChunk(tagPRNT)
	for i := range joints {
		w.WriteInt32(joints[i].Parent)
	}
	w.EndChunk()

	quats(tagRPRE, func(j *skeleton.Joint) skeleton.Quat { return j.PreRotation })
	quats(tagRPST, func(j *skeleton.Joint) skeleton.Quat { return j.PostRotation })

	w.BeginChunk(tagBPTR)
	for i := range joints {
		w.WriteVec3(joints[i].Translation)
	}
	w.EndChunk()

	quats(tagBPRO, func(j *skeleton.Joint) skeleton.Quat { return j.BindRotation })

	w.BeginChunk(tagJROR)
	for i := range joints {
		w.WriteInt32(joints[i].RotationOrder)
	}
	w.EndChunk()

	w.EndForm()
}

func load(ctx *pack.Context, data []byte) (interface{}, error) {
	asset, err := Decode(data, ctx.Options()...)
	if err != nil {
		return nil, err
	}
	asset.Name = ctx.BaseName()
	return &Skeleton{Asset: *asset}, nil
}

func init() {
	iff.RegisterFormTag("SLOD", "SKTM")
	pack.SetHandler(".skt", load)
}
