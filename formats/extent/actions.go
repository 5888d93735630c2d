package extent

import (
	"bytes"
	"net/http"

	"github.com/pkg/errors"

	"github.com/swgtools/swg_asset_browser/pack"
	"github.com/swgtools/swg_asset_browser/skeleton"
	"github.com/swgtools/swg_asset_browser/status"
	"github.com/swgtools/swg_asset_browser/utils/gltfutils"
	"github.com/swgtools/swg_asset_browser/vfs"
	"github.com/swgtools/swg_asset_browser/webutils"
)

func (f *File) HttpAction(ctx *pack.Context, w http.ResponseWriter, r *http.Request, action string) {
	convention := skeleton.Convention{MirrorX: ctx.Config.Skeleton.MirrorX}
	switch action {
	case "glb":
		doc, err := ExportGLTF(f.Extent, convention)
		if err != nil {
			webutils.WriteError(w, err)
			return
		}
		var buf bytes.Buffer
		if err := gltfutils.ExportBinary(&buf, doc); err != nil {
			webutils.WriteError(w, errors.Wrapf(err, "Failed to export glb"))
			return
		}
		webutils.WriteFile(w, &buf, ctx.BaseName()+".glb")
	case "fromglb":
		data, err := webutils.ReadFormFile(r, "data")
		if err != nil {
			webutils.WriteError(w, err)
			return
		}
		doc, err := gltfutils.Decode(bytes.NewReader(data))
		if err != nil {
			webutils.WriteError(w, err)
			return
		}
		e, err := ImportGLTF(doc, convention)
		if err != nil {
			webutils.WriteError(w, errors.Wrapf(err, "Failed to import glb"))
			return
		}
		bin, err := Encode(e, ctx.Options()...)
		if err != nil {
			webutils.WriteError(w, err)
			return
		}
		if err := vfs.WriteFile(ctx.Root, ctx.Name, bin); err != nil {
			webutils.WriteError(w, err)
			return
		}
		f.Extent = e
		status.Info("Saved %s extent %q", Kind(e), ctx.Name)
		webutils.WriteJson(w, f)
	default:
		webutils.WriteError(w, errors.Errorf("Unknown action %q", action))
	}
}
