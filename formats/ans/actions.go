package ans

import (
	"bytes"
	"net/http"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/swgtools/swg_asset_browser/iff"
	"github.com/swgtools/swg_asset_browser/pack"
	"github.com/swgtools/swg_asset_browser/status"
	"github.com/swgtools/swg_asset_browser/vfs"
	"github.com/swgtools/swg_asset_browser/webutils"
)

func Load(path string, opts ...iff.Option) (*Animation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to read %q", path)
	}
	a, err := Decode(data, opts...)
	return a, errors.Wrapf(err, "Failed to decode %q", path)
}

func Save(a *Animation, path string, opts ...iff.Option) error {
	data, err := Encode(a, opts...)
	if err != nil {
		return err
	}
	return iff.WriteFileAtomic(path, data)
}

func (a *Animation) HttpAction(ctx *pack.Context, w http.ResponseWriter, r *http.Request, action string) {
	switch action {
	case "validate":
		var problems []string
		if err := a.Validate(); err != nil {
			problems = append(problems, err.Error())
		}
		webutils.WriteJson(w, map[string]interface{}{"problems": problems})
	case "asyaml":
		var buffer bytes.Buffer
		enc := yaml.NewEncoder(&buffer)
		enc.SetIndent(2)
		if err := enc.Encode(a); err != nil {
			webutils.WriteError(w, errors.Wrapf(err, "Failed to marshal yaml"))
			return
		}
		if err := enc.Close(); err != nil {
			webutils.WriteError(w, errors.Wrapf(err, "Failed to close yaml encoder"))
			return
		}
		webutils.WriteFile(w, &buffer, ctx.BaseName()+".yaml")
	case "fromyaml":
		data, err := webutils.ReadFormFile(r, "data")
		if err != nil {
			webutils.WriteError(w, err)
			return
		}
		var fake Animation
		if err := yaml.Unmarshal(data, &fake); err != nil {
			webutils.WriteError(w, errors.Wrapf(err, "Failed to unmarshal yaml"))
			return
		}
		if err := fake.Validate(); err != nil {
			webutils.WriteError(w, err)
			return
		}
		bin, err := Encode(&fake, ctx.Options()...)
		if err != nil {
			webutils.WriteError(w, errors.Wrapf(err, "Failed to produce binary"))
			return
		}
		if err := vfs.WriteFile(ctx.Root, ctx.Name, bin); err != nil {
			webutils.WriteError(w, err)
			return
		}
		*a = fake
		status.Info("Saved animation %q", ctx.Name)
		webutils.WriteJson(w, a)
	default:
		webutils.WriteError(w, errors.Errorf("Unknown action %q", action))
	}
}
