package skt

import (
	"bytes"
	"io"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/swgtools/swg_asset_browser/skeleton"
)

// EncodeYAML writes the editable text form of asset.
func EncodeYAML(w io.Writer, asset *skeleton.Asset) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(asset); err != nil {
		return errors.Wrapf(err, "Failed to marshal yaml")
	}
	return errors.Wrapf(enc.Close(), "Failed to close yaml encoder")
}

// DecodeYAML parses the text form and checks every level's hierarchy.
// Quaternions left out of the text default to identity.
func DecodeYAML(r io.Reader) (*skeleton.Asset, error) {
	var asset skeleton.Asset
	if err := yaml.NewDecoder(r).Decode(&asset); err != nil {
		return nil, errors.Wrapf(err, "Failed to unmarshal yaml")
	}
	for iLevel := range asset.Levels {
		joints := asset.Levels[iLevel].Joints
		for i := range joints {
			for _, q := range []*skeleton.Quat{&joints[i].PreRotation, &joints[i].BindRotation, &joints[i].PostRotation} {
				if q.IsZero() {
					*q = skeleton.IdentityQuat
				}
			}
		}
		if err := skeleton.Validate(joints); err != nil {
			return nil, errors.Wrapf(err, "level %d", iLevel)
		}
	}
	return &asset, nil
}

func (s *Skeleton) YAML() ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeYAML(&buf, &s.Asset); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
