package formats

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/swgtools/swg_asset_browser/iff"
	"github.com/swgtools/swg_asset_browser/vfs"
)

// ResolveReferences looks every stored path up under root. Missing ones are
// logged and returned; the references themselves stay as they are. Lookup
// failures other than a missing file are returned as err.
func ResolveReferences(root vfs.Directory, refs []string) (missing []*iff.ResourceNotFoundError, err error) {
	for _, ref := range refs {
		if _, ferr := vfs.FindFile(root, ref); ferr != nil {
			var nf *iff.ResourceNotFoundError
			if !errors.As(ferr, &nf) {
				return missing, errors.Wrapf(ferr, "Failed to look up %q", ref)
			}
			Logger().Warn("unresolved reference", zap.String("path", nf.Path), zap.String("root", nf.Root))
			missing = append(missing, nf)
		}
	}
	return missing, nil
}
