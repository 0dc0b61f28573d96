package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/retroenv/retrogolib/log"
	"github.com/spf13/afero"
	"github.com/user-none/emweb/adapter"
	"github.com/user-none/emweb/emuerr"
	"github.com/user-none/emweb/emulator"
	"github.com/user-none/emweb/options"
	"github.com/user-none/emweb/resolvable"
	"github.com/user-none/emweb/vfs"
)

const shutdownTimeout = 5 * time.Second

// ServePrefix is the path staged launches are served below.
const ServePrefix = "/v01/emulator/"

// Runner stages launches into a directory on disk.
type Runner struct {
	logger   *log.Logger
	defaults options.Defaults
	fs       afero.Fs
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithDefaults sets the defaults options are layered over.
func WithDefaults(d options.Defaults) RunnerOption {
	return func(r *Runner) { r.defaults = d }
}

// WithFs sets the filesystem local paths are read from and output is
// written to.
func WithFs(fs afero.Fs) RunnerOption {
	return func(r *Runner) { r.fs = fs }
}

// NewRunner creates a runner reading and writing the OS filesystem.
func NewRunner(logger *log.Logger, opts ...RunnerOption) *Runner {
	r := &Runner{
		logger:   logger,
		defaults: options.DefaultConfig(),
		fs:       afero.NewOsFs(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the command selected by opts.
func (r *Runner) Run(ctx context.Context, opts Options) error {
	if opts.ListCores {
		r.listCores()
		return nil
	}
	if err := r.Stage(ctx, opts); err != nil {
		return err
	}
	if opts.Serve == "" {
		return nil
	}
	return r.Serve(ctx, opts.Serve, opts.Output)
}

func (r *Runner) listCores() {
	for _, id := range adapter.IDs() {
		r.logger.Info("Core",
			log.String("id", id),
			log.String("name", adapter.CanonicalName(id)),
			log.String("extensions", strings.Join(adapter.Extensions(id), ",")))
	}
}

// Stage resolves opts and writes the filesystem the core would boot from
// below opts.Output, together with the core files.
func (r *Runner) Stage(ctx context.Context, opts Options) error {
	launch, err := r.launchOptions(opts)
	if err != nil {
		return err
	}

	res, err := options.Resolve(ctx, r.defaults.Apply(launch))
	if err != nil {
		return fmt.Errorf("resolving launch: %w", err)
	}
	defer res.Dispose()

	if err := r.fs.MkdirAll(opts.Output, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	out := afero.NewBasePathFs(r.fs, opts.Output)
	fs := vfs.New(vfs.NewAferoPrimitive(out), vfs.WithLogger(r.logger))

	if err := fs.Prepare(ctx, nil); err != nil {
		return err
	}
	if err := emulator.Stage(ctx, fs, res); err != nil {
		return fmt.Errorf("staging files: %w", err)
	}

	for _, f := range []*resolvable.File{res.Core.JS, res.Core.WASM} {
		if f == nil {
			continue
		}
		target := res.Core.Name + f.Extension()
		if err := afero.WriteFile(out, target, f.Bytes(), 0o644); err != nil {
			return fmt.Errorf("writing core file %s: %w", target, err)
		}
	}

	r.logger.Info("Launch staged",
		log.String("core", res.Core.Name),
		log.Int("roms", len(res.ROM)),
		log.String("output", opts.Output))
	return nil
}

func (r *Runner) launchOptions(opts Options) (options.LaunchOptions, error) {
	launch := options.LaunchOptions{
		Shader:          opts.Shader,
		EmulatorConfig:  opts.EmulatorConfig,
		CoreConfig:      opts.CoreConfig,
		ExtractArchives: opts.Extract,
		Logger:          r.logger,
	}

	core, err := r.core(opts.Core)
	if err != nil {
		return launch, err
	}
	launch.Core = core

	if launch.ROM, err = r.files(opts.ROMs); err != nil {
		return launch, err
	}
	if launch.BIOS, err = r.files(opts.BIOS); err != nil {
		return launch, err
	}
	if opts.State != "" {
		if launch.State, err = r.file(opts.State); err != nil {
			return launch, err
		}
	}
	if opts.SRAM != "" {
		if launch.SRAM, err = r.file(opts.SRAM); err != nil {
			return launch, err
		}
	}
	return launch, nil
}

// core reads a local core script and its binary, or passes a core id on
// to the CDN resolvers. A core given by URL has its binary next to it.
func (r *Runner) core(core string) (any, error) {
	if filepath.Ext(core) != ".js" {
		return core, nil
	}
	name := strings.TrimSuffix(path.Base(core), ".js")
	files := options.CoreFiles{Name: strings.TrimSuffix(name, "_libretro")}
	wasmPath := strings.TrimSuffix(core, ".js") + ".wasm"

	if isURL(core) {
		files.JS, files.WASM = core, wasmPath
		return files, nil
	}
	for _, f := range []struct {
		path string
		dst  *any
	}{{core, &files.JS}, {wasmPath, &files.WASM}} {
		data, err := afero.ReadFile(r.fs, f.path)
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: core file %s: %w", emuerr.ErrNotFound, f.path, err)
		}
		if err != nil {
			return nil, fmt.Errorf("reading core file %s: %w", f.path, err)
		}
		*f.dst = resolvable.Named{Name: filepath.Base(f.path), Content: resolvable.Bytes(data)}
	}
	return files, nil
}

func (r *Runner) files(paths []string) (any, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	specs := make([]any, 0, len(paths))
	for _, p := range paths {
		spec, err := r.file(p)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// file loads an existing local file. Anything else is left for the
// resolvers, as a URL or a name on the content CDN.
func (r *Runner) file(p string) (any, error) {
	if isURL(p) {
		return p, nil
	}
	data, err := afero.ReadFile(r.fs, p)
	switch {
	case err == nil:
		return resolvable.Named{Name: filepath.Base(p), Content: resolvable.Bytes(data)}, nil
	case errors.Is(err, os.ErrNotExist):
		return p, nil
	default:
		return nil, fmt.Errorf("reading %s: %w", p, err)
	}
}

func isURL(s string) bool {
	return strings.Contains(s, "://") || strings.HasPrefix(s, "data:")
}

// Serve serves dir on addr until ctx is done.
func (r *Runner) Serve(ctx context.Context, addr, dir string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           Handler(afero.NewBasePathFs(r.fs, dir)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		r.logger.Info("Serving staged launch", log.String("address", addr), log.String("dir", dir))
		errs <- server.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	r.logger.Info("Server stopped")
	return nil
}

// Handler serves fs below ServePrefix and redirects the root there.
// WebAssembly binaries are sent with their MIME type so browsers can
// compile them while streaming.
func Handler(fs afero.Fs) http.Handler {
	files := http.FileServer(afero.NewHttpFs(fs))
	mux := http.NewServeMux()
	mux.Handle(ServePrefix, http.StripPrefix(strings.TrimSuffix(ServePrefix, "/"),
		http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if path.Ext(req.URL.Path) == ".wasm" {
				w.Header().Set("Content-Type", "application/wasm")
			}
			files.ServeHTTP(w, req)
		})))
	mux.Handle("/{$}", http.RedirectHandler(ServePrefix, http.StatusFound))
	return mux
}
