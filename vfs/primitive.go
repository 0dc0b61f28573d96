package vfs

import (
	"errors"
	"fmt"
	"os"
	"path"

	"github.com/spf13/afero"
	"github.com/user-none/emweb/emuerr"
)

// Primitive is the filesystem object a core exposes. Its semantics follow
// the Emscripten FS: CreateDataFile and WriteFile never create missing
// parent directories.
type Primitive interface {
	MkdirTree(dir string) error
	CreateDataFile(parent, name string, data []byte, canRead, canWrite bool) error
	ReadFile(p string) ([]byte, error)
	WriteFile(p string, data []byte) error
	Unlink(p string) error
	Exists(p string) bool
}

// AferoPrimitive implements Primitive on an afero filesystem.
type AferoPrimitive struct {
	fs afero.Fs
}

// NewMemPrimitive returns a primitive backed by an in-memory filesystem.
func NewMemPrimitive() *AferoPrimitive {
	return NewAferoPrimitive(afero.NewMemMapFs())
}

// NewAferoPrimitive returns a primitive backed by fs.
func NewAferoPrimitive(fs afero.Fs) *AferoPrimitive {
	return &AferoPrimitive{fs: fs}
}

// Fs returns the underlying filesystem.
func (p *AferoPrimitive) Fs() afero.Fs { return p.fs }

// MkdirTree creates dir and all missing parents.
func (p *AferoPrimitive) MkdirTree(dir string) error {
	return p.fs.MkdirAll(dir, 0o755)
}

// CreateDataFile creates parent/name with data. The parent must exist.
func (p *AferoPrimitive) CreateDataFile(parent, name string, data []byte, canRead, canWrite bool) error {
	target := path.Join(parent, name)
	if err := p.requireParent(target); err != nil {
		return err
	}

	mode := os.FileMode(0)
	if canRead {
		mode |= 0o444
	}
	if canWrite {
		mode |= 0o222
	}
	return afero.WriteFile(p.fs, target, data, mode)
}

// ReadFile returns the content of a file.
func (p *AferoPrimitive) ReadFile(name string) ([]byte, error) {
	data, err := afero.ReadFile(p.fs, name)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", emuerr.ErrNotFound, name)
	}
	return data, err
}

// WriteFile replaces the content of a file. The parent must exist.
func (p *AferoPrimitive) WriteFile(name string, data []byte) error {
	if err := p.requireParent(name); err != nil {
		return err
	}
	return afero.WriteFile(p.fs, name, data, 0o666)
}

// Unlink removes a file.
func (p *AferoPrimitive) Unlink(name string) error {
	return p.fs.Remove(name)
}

// Exists reports whether a file or directory exists.
func (p *AferoPrimitive) Exists(name string) bool {
	ok, err := afero.Exists(p.fs, name)
	return err == nil && ok
}

// requireParent fails like Emscripten does when the parent directory of a
// new file is missing. afero's memory filesystem would create it.
func (p *AferoPrimitive) requireParent(name string) error {
	dir := path.Dir(name)
	ok, err := afero.DirExists(p.fs, dir)
	if err != nil {
		return fmt.Errorf("checking %s: %w", dir, err)
	}
	if !ok {
		return fmt.Errorf("%w: directory %s", emuerr.ErrNotFound, dir)
	}
	return nil
}
