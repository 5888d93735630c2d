package skt

import (
	"os"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"

	"github.com/swgtools/swg_asset_browser/config"
	"github.com/swgtools/swg_asset_browser/iff"
	"github.com/swgtools/swg_asset_browser/skeleton"
)

// Settings gathers the transform conventions used when a skeleton leaves or
// enters the file format.
type Settings struct {
	Compose    skeleton.Options
	Convention skeleton.Convention
	Allocation skeleton.Allocation
	Chain      skeleton.ChainOptions
}

func DefaultSettings() Settings {
	return Settings{
		Compose:    skeleton.DefaultOptions(),
		Convention: skeleton.Convention{MirrorX: true},
		Allocation: skeleton.AllocatePreserve,
		Chain:      skeleton.DefaultChainOptions(),
	}
}

func SettingsFromConfig(cfg config.Skeleton) (Settings, error) {
	s := DefaultSettings()
	if cfg.Order != "" {
		order, err := skeleton.ParseOrder(cfg.Order)
		if err != nil {
			return s, err
		}
		s.Compose.Order = order
	}
	if cfg.Allocation != "" {
		alloc, err := skeleton.ParseAllocation(cfg.Allocation)
		if err != nil {
			return s, err
		}
		s.Allocation = alloc
	}
	if cfg.IdentityEpsilon > 0 {
		s.Compose.IdentityEpsilon = cfg.IdentityEpsilon
		s.Chain.Epsilon = cfg.IdentityEpsilon
	}
	if cfg.TailFraction > 0 {
		s.Chain.TailFraction = cfg.TailFraction
	}
	if cfg.DefaultTail != ([3]float64{}) {
		s.Chain.DefaultTail = mgl64.Vec3(cfg.DefaultTail)
	}
	s.Convention.MirrorX = cfg.MirrorX
	return s, nil
}

func Load(path string, opts ...iff.Option) (*skeleton.Asset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to read %q", path)
	}
	asset, err := Decode(data, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to decode %q", path)
	}
	return asset, nil
}

// Save encodes asset and replaces path with it atomically.
func Save(asset *skeleton.Asset, path string, opts ...iff.Option) error {
	data, err := Encode(asset, opts...)
	if err != nil {
		return err
	}
	return iff.WriteFileAtomic(path, data)
}
