package ans

import (
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/swgtools/swg_asset_browser/skeleton"
)

// ChannelError reports a transform pointing at a channel that does not exist.
type ChannelError struct {
	Transform string
	Source    string
	Index     int32
	Count     int
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("transform %q: %s index %d out of range [0, %d)", e.Transform, e.Source, e.Index, e.Count)
}

// Validate checks every channel index of the transforms against the channel
// lists. All problems are returned, combined with multierr.
func (a *Animation) Validate() error {
	var err error
	check := func(t *TransformInfo, source string, index int32, count int) {
		if index < 0 || int(index) >= count {
			err = multierr.Append(err, &ChannelError{Transform: t.Name, Source: source, Index: index, Count: count})
		}
	}

	for i := range a.Transforms {
		t := &a.Transforms[i]
		if t.HasAnimatedRotation {
			check(t, "rotation channel", t.RotationChannel, len(a.RotationChannels))
		} else {
			check(t, "static rotation", t.RotationChannel, len(a.StaticRotations))
		}
		for axis, bit := range []uint32{AnimatedX, AnimatedY, AnimatedZ} {
			name := string("xyz"[axis])
			if t.TranslationMask&bit != 0 {
				check(t, name+" translation channel", t.TranslationChannels[axis], len(a.TranslationChannels))
			} else {
				check(t, name+" static translation", t.TranslationChannels[axis], len(a.StaticTranslations))
			}
		}
	}

	for i, m := range a.Messages {
		for _, f := range m.Frames {
			if int32(f) < 0 || int32(f) > a.LastFrame {
				err = multierr.Append(err, errors.Errorf("message %d %q: frame %d outside [0, %d]", i, m.Name, f, a.LastFrame))
			}
		}
	}
	return err
}

// Joints returns the joint names the animation drives, in transform order.
func (a *Animation) Joints() []string {
	names := make([]string, len(a.Transforms))
	for i := range a.Transforms {
		names[i] = a.Transforms[i].Name
	}
	return names
}

// MissingJoints lists the driven joints that joints does not contain.
func (a *Animation) MissingJoints(joints []skeleton.Joint) []string {
	level := skeleton.Level{Joints: joints}
	var missing []string
	for _, name := range a.Joints() {
		if level.Index(name) < 0 {
			missing = append(missing, name)
		}
	}
	return missing
}
