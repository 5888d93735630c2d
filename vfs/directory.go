package vfs

import (
	"bytes"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/swgtools/swg_asset_browser/iff"
)

// DirectoryDriver exposes an asset root on disk. Element names are slash
// separated paths relative to the driver and may not leave it.
type DirectoryDriver struct {
	path string
}

func NewDirectoryDriver(path string) *DirectoryDriver {
	return &DirectoryDriver{path: path}
}

func (dd *DirectoryDriver) Init(parent Directory) {}

func (dd *DirectoryDriver) Name() string {
	return filepath.Base(dd.path)
}

func (dd *DirectoryDriver) IsDirectory() bool {
	return true
}

func (dd *DirectoryDriver) Path() string {
	return dd.path
}

// resolve maps a relative asset name to a path on disk. Rooting the name
// before cleaning keeps ".." from climbing out of the driver.
func (dd *DirectoryDriver) resolve(name string) string {
	clean := path.Clean("/" + CleanPath(name))
	return filepath.Join(dd.path, filepath.FromSlash(strings.TrimPrefix(clean, "/")))
}

func (dd *DirectoryDriver) List() ([]string, error) {
	entries, err := os.ReadDir(dd.path)
	if err != nil {
		return nil, errors.Wrapf(err, "Error getting directory %q info", dd.path)
	}
	result := make([]string, 0, len(entries))
	for _, e := range entries {
		result = append(result, e.Name())
	}
	return result, nil
}

// ListRecursive returns every regular file under the driver as a slash
// separated relative path, sorted.
func (dd *DirectoryDriver) ListRecursive() ([]string, error) {
	var result []string
	err := filepath.WalkDir(dd.path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != dd.path && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(dd.path, p)
		if err != nil {
			return err
		}
		result = append(result, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to walk %q", dd.path)
	}
	sort.Strings(result)
	return result, nil
}

func (dd *DirectoryDriver) GetElement(name string) (Element, error) {
	newPath := dd.resolve(name)
	s, err := os.Stat(newPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &iff.ResourceNotFoundError{Path: name, Root: dd.path}
		}
		return nil, errors.Wrapf(err, "Stat error")
	}
	var e Element
	if s.IsDir() {
		e = NewDirectoryDriver(newPath)
	} else {
		e = NewDirectoryDriverFile(newPath)
	}
	e.Init(dd)
	return e, nil
}

func (dd *DirectoryDriver) Add(e Element) error {
	if e.IsDirectory() {
		return os.MkdirAll(dd.resolve(e.Name()), os.ModePerm)
	}
	return dd.WriteFile(e.Name(), nil)
}

// WriteFile creates or replaces name, creating parent directories as needed.
func (dd *DirectoryDriver) WriteFile(name string, data []byte) error {
	p := dd.resolve(name)
	if err := os.MkdirAll(filepath.Dir(p), os.ModePerm); err != nil {
		return errors.Wrapf(err, "Failed to create parent of %q", p)
	}
	return iff.WriteFileAtomic(p, data)
}

func (dd *DirectoryDriver) Remove(name string) error {
	return os.Remove(dd.resolve(name))
}

type DirectoryDriverFile struct {
	path string
	f    *os.File
}

func NewDirectoryDriverFile(path string) *DirectoryDriverFile {
	return &DirectoryDriverFile{path: path}
}

func (ddf *DirectoryDriverFile) Init(parent Directory) {}

func (ddf *DirectoryDriverFile) Name() string {
	return filepath.Base(ddf.path)
}

func (ddf *DirectoryDriverFile) Path() string {
	return ddf.path
}

func (ddf *DirectoryDriverFile) IsDirectory() bool {
	return false
}

func (ddf *DirectoryDriverFile) Size() int64 {
	if stat, err := os.Stat(ddf.path); err != nil {
		return 0
	} else {
		return stat.Size()
	}
}

func (ddf *DirectoryDriverFile) Open(readonly bool) error {
	if ddf.f != nil {
		return errors.Errorf("File %q already opened", ddf.path)
	}
	flags := os.O_RDONLY
	if !readonly {
		flags = os.O_RDWR
	}
	f, err := os.OpenFile(ddf.path, flags, 0)
	if err != nil {
		return errors.Wrapf(err, "os.Open(%q)", ddf.path)
	}
	ddf.f = f
	return nil
}

func (ddf *DirectoryDriverFile) Close() error {
	if ddf.f != nil {
		if err := ddf.f.Close(); err != nil {
			return errors.Wrapf(err, "os.File.Close()")
		}
		ddf.f = nil
	}
	return nil
}

func (ddf *DirectoryDriverFile) Reader() (*io.SectionReader, error) {
	if ddf.f == nil {
		return nil, errors.Errorf("First you need to open file")
	}
	return io.NewSectionReader(ddf.f, 0, ddf.Size()), nil
}

// Copy buffers src and replaces the file atomically.
func (ddf *DirectoryDriverFile) Copy(src io.Reader) error {
	ddf.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, src); err != nil {
		return errors.Wrapf(err, "Failed to read source for %q", ddf.path)
	}
	return iff.WriteFileAtomic(ddf.path, buf.Bytes())
}
