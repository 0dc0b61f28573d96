// Package vfs stages files into a core's in-memory filesystem and reads
// back what the core writes.
package vfs

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/retroenv/retrogolib/log"
	"github.com/user-none/emweb/emuerr"
	"github.com/user-none/emweb/resolvable"
	"gopkg.in/ini.v1"
)

// iniSentinel marks value boundaries before serialization so every value
// ends up double quoted, which is what RetroArch expects.
const iniSentinel = "__"

// FS wraps a core filesystem.
type FS struct {
	prim   Primitive
	layout Layout
	logger *log.Logger

	fileBackoff  Backoff
	readyBackoff Backoff
	resolveOpts  []resolvable.Option

	// staging goes through a temporary file at the root, which must not be
	// shared by two writes at once.
	stageMu sync.Mutex
}

// Option configures an FS.
type Option func(*FS)

// WithLayout overrides the directory layout.
func WithLayout(l Layout) Option {
	return func(fs *FS) { fs.layout = l }
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(fs *FS) { fs.logger = logger }
}

// WithFileBackoff overrides the schedule used by WaitForFile.
func WithFileBackoff(b Backoff) Option {
	return func(fs *FS) { fs.fileBackoff = b }
}

// WithReadyBackoff overrides the schedule used by Prepare.
func WithReadyBackoff(b Backoff) Option {
	return func(fs *FS) { fs.readyBackoff = b }
}

// WithResolveOptions passes options to resolvable.Resolve when WriteFile
// gets content that is not resolved yet.
func WithResolveOptions(opts ...resolvable.Option) Option {
	return func(fs *FS) { fs.resolveOpts = append(fs.resolveOpts, opts...) }
}

// New returns an FS operating on prim.
func New(prim Primitive, opts ...Option) *FS {
	fs := &FS{
		prim:         prim,
		layout:       DefaultLayout(),
		fileBackoff:  FileBackoff,
		readyBackoff: ReadyBackoff,
	}
	for _, opt := range opts {
		opt(fs)
	}
	if fs.logger == nil {
		fs.logger = log.NewWithConfig(log.DefaultConfig())
	}
	return fs
}

// Layout returns the directory layout.
func (fs *FS) Layout() Layout { return fs.layout }

// Primitive returns the wrapped core filesystem.
func (fs *FS) Primitive() Primitive { return fs.prim }

// MkdirTree creates dir and all missing parents.
func (fs *FS) MkdirTree(dir string) error {
	if err := fs.prim.MkdirTree(dir); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	return nil
}

// WriteFile stores content at target, creating its directory. Content is
// anything resolvable.Resolve accepts.
//
// The core filesystem only accepts new data files through its data file
// API, so the content is created at the root first, read back, and then
// moved into place.
func (fs *FS) WriteFile(ctx context.Context, target string, content any) error {
	file, err := resolvable.Resolve(ctx, content, fs.resolveOpts...)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", target, err)
	}

	fs.stageMu.Lock()
	defer fs.stageMu.Unlock()

	name := path.Base(target)
	temp := path.Join("/", name)
	if err := fs.prim.CreateDataFile("/", name, file.Bytes(), true, false); err != nil {
		return fmt.Errorf("creating data file %s: %w", temp, err)
	}
	if temp != target {
		defer fs.removeStaged(temp)
	}
	data, err := fs.prim.ReadFile(temp)
	if err != nil {
		return fmt.Errorf("reading data file %s: %w", temp, err)
	}
	if err := fs.MkdirTree(path.Dir(target)); err != nil {
		return err
	}
	if err := fs.prim.WriteFile(target, data); err != nil {
		return fmt.Errorf("writing file %s: %w", target, err)
	}
	return nil
}

func (fs *FS) removeStaged(temp string) {
	if err := fs.prim.Unlink(temp); err != nil {
		fs.logger.Debug("Removing staging file failed", log.String("path", temp), log.Err(err))
	}
}

// WriteINI serializes cfg as key = "value" lines and writes it to target.
// An empty config leaves the filesystem untouched. Nil values are skipped.
func (fs *FS) WriteINI(ctx context.Context, target string, cfg map[string]any) error {
	if len(cfg) == 0 {
		return nil
	}
	text, err := FormatINI(cfg)
	if err != nil {
		return fmt.Errorf("formatting %s: %w", target, err)
	}
	return fs.WriteFile(ctx, target, resolvable.Text(text))
}

// FormatINI renders cfg with every value double quoted, keys sorted.
func FormatINI(cfg map[string]any) (string, error) {
	file := ini.Empty(ini.LoadOptions{IgnoreInlineComment: true})
	section := file.Section("")
	for _, key := range slices.Sorted(maps.Keys(cfg)) {
		value := cfg[key]
		if value == nil {
			continue
		}
		quoted := iniSentinel + fmt.Sprint(value) + iniSentinel
		if _, err := section.NewKey(key, quoted); err != nil {
			return "", fmt.Errorf("adding key %s: %w", key, err)
		}
	}

	var buf bytes.Buffer
	if _, err := file.WriteTo(&buf); err != nil {
		return "", err
	}
	return strings.ReplaceAll(buf.String(), iniSentinel, `"`), nil
}

// ParseINI reads a RetroArch style config into a flat key value map.
// Surrounding quotes are removed.
func ParseINI(text string) (map[string]string, error) {
	file, err := ini.LoadSources(ini.LoadOptions{IgnoreInlineComment: true}, []byte(text))
	if err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return file.Section("").KeysHash(), nil
}

// ReadFile returns the content of a file.
func (fs *FS) ReadFile(p string) ([]byte, error) {
	return fs.prim.ReadFile(p)
}

// ReadText returns the content of a file as UTF-8 text.
func (fs *FS) ReadText(p string) (string, error) {
	data, err := fs.prim.ReadFile(p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Exists reports whether p exists.
func (fs *FS) Exists(p string) bool {
	return fs.prim.Exists(p)
}

// Unlink removes a file. Missing files are not an error.
func (fs *FS) Unlink(p string) {
	if !fs.prim.Exists(p) {
		return
	}
	if err := fs.prim.Unlink(p); err != nil {
		fs.logger.Debug("Removing file failed", log.String("path", p), log.Err(err))
	}
}

// WaitForFile polls p until two consecutive reads return the same non zero
// size and returns the last content. Read failures count as attempts with
// nothing observed.
func (fs *FS) WaitForFile(ctx context.Context, p string) ([]byte, error) {
	var last []byte
	err := Poll(ctx, fs.fileBackoff, func(int) (bool, error) {
		data, err := fs.prim.ReadFile(p)
		if err != nil {
			fs.logger.Debug("File not readable yet", log.String("path", p), log.Err(err))
			return false, nil
		}
		stable := last != nil && len(last) > 0 && len(last) == len(data)
		last = data
		return stable, nil
	})
	if err != nil {
		return nil, fmt.Errorf("waiting for %s: %w", p, err)
	}
	return last, nil
}

// Prepare creates the standard directories and waits a bounded time for
// ready to report true. The core is started even when it never does.
func (fs *FS) Prepare(ctx context.Context, ready func() bool) error {
	for _, dir := range fs.layout.Dirs() {
		if err := fs.MkdirTree(dir); err != nil {
			return err
		}
	}
	if ready == nil || ready() {
		return nil
	}

	err := Poll(ctx, fs.readyBackoff, func(int) (bool, error) {
		return ready(), nil
	})
	if err == nil {
		return nil
	}
	if aborted := emuerr.CheckAborted(ctx); aborted != nil {
		return aborted
	}
	fs.logger.Debug("Core execution handle not ready, continuing")
	return nil
}
