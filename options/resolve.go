package options

import (
	"context"
	"fmt"
	"strings"

	"github.com/retroenv/retrogolib/log"
	"github.com/user-none/emweb/adapter"
	"github.com/user-none/emweb/emuerr"
	"github.com/user-none/emweb/resolvable"
	"github.com/user-none/emweb/romloader"
	"github.com/user-none/emweb/surface"
	"golang.org/x/sync/errgroup"
)

// Core is a resolved core: its loader script, its binary and its id.
type Core struct {
	JS   *resolvable.File
	WASM *resolvable.File
	Name string
}

// Resolved is a launch with every file materialized.
type Resolved struct {
	Options LaunchOptions

	Core   Core
	ROM    []*resolvable.File
	BIOS   []*resolvable.File
	Shader []*resolvable.File
	State  *resolvable.File
	SRAM   *resolvable.File

	EmulatorConfig map[string]any
	CoreConfig     map[string]any

	Surface surface.Surface
	Style   map[string]string
	Logger  *log.Logger
}

// Files returns every resolved file.
func (r *Resolved) Files() []*resolvable.File {
	files := []*resolvable.File{r.Core.JS, r.Core.WASM, r.State, r.SRAM}
	files = append(files, r.ROM...)
	files = append(files, r.BIOS...)
	files = append(files, r.Shader...)

	out := files[:0]
	for _, f := range files {
		if f != nil {
			out = append(out, f)
		}
	}
	return out
}

// Dispose releases the object URLs of all files.
func (r *Resolved) Dispose() {
	for _, f := range r.Files() {
		f.Dispose()
	}
}

// Resolve turns merged options into concrete files. All files are
// resolved concurrently; the first failure cancels the rest.
func Resolve(ctx context.Context, opts LaunchOptions) (*Resolved, error) {
	if err := emuerr.CheckAborted(ctx); err != nil {
		return nil, err
	}
	if opts.Core == nil {
		return nil, fmt.Errorf("%w: no core given", emuerr.ErrInvalidInput)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.NewWithConfig(log.DefaultConfig())
	}

	s, err := resolveSurface(opts)
	if err != nil {
		return nil, err
	}

	r := &Resolved{
		Options:        opts,
		EmulatorConfig: Merge(nil, opts.EmulatorConfig),
		CoreConfig:     Merge(nil, opts.CoreConfig),
		Surface:        s,
		Style:          Style(opts.Target != "" || opts.Surface != nil, opts.Style),
		Logger:         logger,
	}
	res := resolver{opts: &r.Options, logger: logger}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		core, err := res.core(gctx)
		r.Core = core
		return err
	})
	g.Go(func() error {
		files, err := res.list(gctx, opts.ROM, opts.ResolveROM, "rom")
		if err == nil && opts.ExtractArchives {
			files, err = res.extract(files)
		}
		r.ROM = files
		return err
	})
	g.Go(func() error {
		files, err := res.list(gctx, opts.BIOS, opts.ResolveBIOS, "bios")
		r.BIOS = files
		return err
	})
	g.Go(func() error {
		files, err := res.shader(gctx)
		r.Shader = files
		return err
	})
	g.Go(func() error {
		f, err := res.single(gctx, opts.State, "state")
		r.State = f
		return err
	})
	g.Go(func() error {
		f, err := res.single(gctx, opts.SRAM, "sram")
		r.SRAM = f
		return err
	})

	if err := g.Wait(); err != nil {
		r.Dispose()
		if abortErr := emuerr.CheckAborted(ctx); abortErr != nil {
			return nil, abortErr
		}
		return nil, err
	}
	if err := emuerr.CheckAborted(ctx); err != nil {
		return nil, err
	}

	s.SetID(surface.CanvasID)
	logger.Debug("Launch resolved",
		log.String("core", r.Core.Name),
		log.Int("roms", len(r.ROM)),
		log.Int("bios", len(r.BIOS)),
		log.Int("shaders", len(r.Shader)))
	return r, nil
}

// resolveSurface finds or creates the rendering target.
func resolveSurface(opts LaunchOptions) (surface.Surface, error) {
	if opts.Surface != nil {
		if !opts.Surface.IsCanvas() {
			return nil, fmt.Errorf("%w: surface is not a canvas", emuerr.ErrInvalidInput)
		}
		return opts.Surface, nil
	}
	if opts.Document == nil {
		return nil, fmt.Errorf("%w: no document", emuerr.ErrInvalidInput)
	}
	if opts.Target == "" {
		return opts.Document.CreateCanvas(), nil
	}

	matches := opts.Document.Query(opts.Target)
	if len(matches) != 1 {
		return nil, fmt.Errorf("%w: %d elements match %q", emuerr.ErrNotFound, len(matches), opts.Target)
	}
	if !matches[0].IsCanvas() {
		return nil, fmt.Errorf("%w: element %q is not a canvas", emuerr.ErrNotFound, opts.Target)
	}
	return matches[0], nil
}

type resolver struct {
	opts   *LaunchOptions
	logger *log.Logger
}

func (r resolver) fileOptions(extra ...resolvable.Option) []resolvable.Option {
	var opts []resolvable.Option
	if r.opts.Fetcher != nil {
		opts = append(opts, resolvable.WithFetcher(r.opts.Fetcher))
	}
	return append(opts, extra...)
}

// via runs a resolver on string specs. Other specs are resolved directly.
func (r resolver) via(ctx context.Context, raw any, fn Resolver) (any, error) {
	if fn == nil {
		return raw, nil
	}
	if _, ok := raw.(string); !ok {
		return raw, nil
	}
	v, err := fn(ctx, raw, r.opts)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return raw, nil
	}
	return v, nil
}

func (r resolver) core(ctx context.Context) (Core, error) {
	var files *CoreFiles
	switch c := r.opts.Core.(type) {
	case CoreFiles:
		files = &c
	case *CoreFiles:
		files = c
	}

	if files != nil {
		if files.Name == "" {
			return Core{}, fmt.Errorf("%w: core files without a name", emuerr.ErrInvalidInput)
		}
		js, wasm, err := r.pair(ctx, files.JS, files.WASM)
		return Core{JS: js, WASM: wasm, Name: files.Name}, err
	}

	jsSpec, err := r.viaAny(ctx, r.opts.Core, r.opts.ResolveCoreJS)
	if err != nil {
		return Core{}, fmt.Errorf("resolving core script: %w", err)
	}
	wasmSpec, err := r.viaAny(ctx, r.opts.Core, r.opts.ResolveCoreWASM)
	if err != nil {
		return Core{}, fmt.Errorf("resolving core binary: %w", err)
	}
	js, wasm, err := r.pair(ctx, jsSpec, wasmSpec)
	if err != nil {
		return Core{}, err
	}

	name, ok := r.opts.Core.(string)
	if !ok {
		name = strings.TrimSuffix(js.BaseName(), "_libretro")
	}
	return Core{JS: js, WASM: wasm, Name: name}, nil
}

// viaAny runs a core resolver on any spec, as the core id is not
// necessarily a string.
func (r resolver) viaAny(ctx context.Context, raw any, fn Resolver) (any, error) {
	if fn == nil {
		return raw, nil
	}
	v, err := fn(ctx, raw, r.opts)
	if err != nil || v == nil {
		return raw, err
	}
	return v, nil
}

func (r resolver) pair(ctx context.Context, jsSpec, wasmSpec any) (*resolvable.File, *resolvable.File, error) {
	var js, wasm *resolvable.File
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		js, err = resolvable.Resolve(gctx, jsSpec, r.fileOptions(resolvable.WithMIMEType("application/javascript"))...)
		if err != nil {
			return fmt.Errorf("resolving core script: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		wasm, err = resolvable.Resolve(gctx, wasmSpec, r.fileOptions(resolvable.WithMIMEType("application/wasm"))...)
		if err != nil {
			return fmt.Errorf("resolving core binary: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return js, wasm, nil
}

func (r resolver) list(ctx context.Context, raw any, fn Resolver, kind string) ([]*resolvable.File, error) {
	specs := toList(raw)
	if len(specs) == 0 {
		return nil, nil
	}

	files := make([]*resolvable.File, len(specs))
	g, gctx := errgroup.WithContext(ctx)
	for i, spec := range specs {
		g.Go(func() error {
			v, err := r.via(gctx, spec, fn)
			if err != nil {
				return fmt.Errorf("resolving %s: %w", kind, err)
			}
			f, err := resolvable.Resolve(gctx, v, r.fileOptions()...)
			if err != nil {
				return fmt.Errorf("resolving %s: %w", kind, err)
			}
			files[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

func (r resolver) shader(ctx context.Context) ([]*resolvable.File, error) {
	if r.opts.Shader == "" || r.opts.ResolveShader == nil {
		return nil, nil
	}
	specs, err := r.opts.ResolveShader(ctx, r.opts.Shader, r.opts)
	if err != nil {
		return nil, fmt.Errorf("resolving shader %s: %w", r.opts.Shader, err)
	}
	if len(specs) == 0 {
		return nil, nil
	}
	return r.list(ctx, specs, nil, "shader")
}

func (r resolver) single(ctx context.Context, raw any, kind string) (*resolvable.File, error) {
	if raw == nil {
		return nil, nil
	}
	f, err := resolvable.Resolve(ctx, raw, r.fileOptions()...)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", kind, err)
	}
	return f, nil
}

// extract unpacks archived ROMs the core cannot open itself.
func (r resolver) extract(files []*resolvable.File) ([]*resolvable.File, error) {
	id := r.opts.CoreID()
	core, ok := adapter.Lookup(id)
	if !ok {
		r.logger.Debug("Skipping archive extraction for unknown core", log.String("core", id))
		return files, nil
	}

	out := make([]*resolvable.File, len(files))
	for i, f := range files {
		out[i] = f
		if core.SupportsExtension(f.Extension()) || !romloader.IsArchive(f.Bytes(), f.Name()) {
			continue
		}
		data, name, err := romloader.Extract(f.Bytes(), f.Name(), core.Info.Extensions)
		if err != nil {
			return nil, fmt.Errorf("extracting %s: %w", f.Name(), err)
		}
		r.logger.Debug("Extracted ROM from archive",
			log.String("archive", f.Name()),
			log.String("rom", name))
		out[i] = resolvable.NewFile(name, data, "")
	}
	return out, nil
}

func toList(v any) []any {
	switch list := v.(type) {
	case nil:
		return nil
	case []any:
		return list
	case []string:
		out := make([]any, len(list))
		for i, s := range list {
			out[i] = s
		}
		return out
	default:
		return []any{v}
	}
}
