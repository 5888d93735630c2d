package vfs

import (
	"bytes"
	"io"
	"path"
	"strings"

	"github.com/pkg/errors"

	"github.com/swgtools/swg_asset_browser/iff"
)

// CleanPath normalizes an asset reference as stored in files: backslashes
// become slashes and leading separators are dropped.
func CleanPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.TrimLeft(p, "/")
	if p == "" {
		return ""
	}
	return path.Clean(p)
}

func OpenFileAndGetReader(f File, readonly bool) (*io.SectionReader, error) {
	if err := f.Open(readonly); err != nil {
		return nil, errors.Wrapf(err, "Cannot open file %q", f.Name())
	}
	r, err := f.Reader()
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "Cannot get file %q reader", f.Name())
	}
	return r, nil
}

func OpenFileAndCopy(f File, src io.Reader) error {
	return errors.Wrapf(f.Copy(src), "Cannot copy data to file %q", f.Name())
}

func DirectoryGetFile(d Directory, name string) (File, error) {
	e, err := d.GetElement(name)
	if err != nil {
		return nil, err
	}
	if e.IsDirectory() {
		return nil, errors.Errorf("File %q is directory, not a file!", name)
	}
	return e.(File), nil
}

// ReadFile returns the whole content of name.
func ReadFile(d Directory, name string) ([]byte, error) {
	f, err := DirectoryGetFile(d, name)
	if err != nil {
		return nil, err
	}
	r, err := OpenFileAndGetReader(f, true)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data := make([]byte, r.Size())
	if _, err := r.ReadAt(data, 0); err != nil && err != io.EOF {
		return nil, errors.Wrapf(err, "Failed to read %q", name)
	}
	return data, nil
}

// WriteFile creates or replaces name with data.
func WriteFile(d Directory, name string, data []byte) error {
	if w, ok := d.(interface {
		WriteFile(name string, data []byte) error
	}); ok {
		return w.WriteFile(name, data)
	}
	f, err := DirectoryGetFile(d, name)
	if err != nil {
		return err
	}
	return OpenFileAndCopy(f, bytes.NewReader(data))
}

// FindFile checks that a stored reference exists under d. A missing file is
// reported as *iff.ResourceNotFoundError.
func FindFile(d Directory, ref string) (File, error) {
	clean := CleanPath(ref)
	if clean == "" {
		return nil, &iff.ResourceNotFoundError{Path: ref}
	}
	f, err := DirectoryGetFile(d, clean)
	if err != nil {
		var nf *iff.ResourceNotFoundError
		if errors.As(err, &nf) {
			nf.Path = ref
		}
		return nil, err
	}
	return f, nil
}
