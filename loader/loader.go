// Package loader turns a core loader script into an initialized core.
package loader

import (
	"context"
	"fmt"

	"github.com/user-none/emweb/emuerr"
	"github.com/user-none/emweb/options"
	"github.com/user-none/emweb/resolvable"
)

// Adapter initializes a core from its loader script.
type Adapter interface {
	Style() Style
	Initialize(ctx context.Context, cfg ModuleConfig) (*Handle, error)
}

// Probe selects the adapter for a script.
func Probe(src, name string, host Host) (Adapter, error) {
	s := script{src: src, name: name, host: host}
	switch DetectStyle(src) {
	case StyleGlobal:
		return &globalAdapter{s}, nil
	case StyleModule:
		return &moduleAdapter{s}, nil
	default:
		return nil, fmt.Errorf("%w: core %s", emuerr.ErrUnsupportedScript, name)
	}
}

// Load probes the script of a resolved core.
func Load(ctx context.Context, host Host, core options.Core) (Adapter, error) {
	if err := emuerr.CheckAborted(ctx); err != nil {
		return nil, err
	}
	if core.JS == nil {
		return nil, fmt.Errorf("%w: core %s has no script", emuerr.ErrInvalidInput, core.Name)
	}
	return Probe(core.JS.Text(), core.Name, host)
}

type script struct {
	src  string
	name string
	host Host
}

// initialize patches the script, imports it from a short lived object URL
// and runs the factory.
func (s script) initialize(ctx context.Context, style Style, cfg ModuleConfig) (*Handle, error) {
	patched, err := Patch(style, s.src, s.name)
	if err != nil {
		return nil, err
	}

	file := resolvable.NewFile(s.name+".js", []byte(patched), "application/javascript")
	url, err := file.ObjectURL(s.host)
	if err != nil {
		return nil, fmt.Errorf("%w: creating script url: %w", emuerr.ErrLoadFailure, err)
	}

	// The URL is only needed until the import settles.
	factory, err := s.host.Import(ctx, url)
	file.Dispose()
	if err != nil {
		return nil, fmt.Errorf("%w: importing core %s: %w", emuerr.ErrLoadFailure, s.name, err)
	}
	if err := emuerr.CheckAborted(ctx); err != nil {
		return nil, err
	}

	handle, err := factory(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: initializing core %s: %w", emuerr.ErrLoadFailure, s.name, err)
	}
	if err := emuerr.CheckAborted(ctx); err != nil {
		return nil, err
	}
	if handle == nil || handle.Module == nil {
		return nil, fmt.Errorf("%w: core %s returned no module", emuerr.ErrLoadFailure, s.name)
	}
	return handle, nil
}

// globalAdapter serves scripts that declare a global Module. The factory
// runs the wrapped script body synchronously.
type globalAdapter struct {
	script
}

func (a *globalAdapter) Style() Style { return StyleGlobal }

func (a *globalAdapter) Initialize(ctx context.Context, cfg ModuleConfig) (*Handle, error) {
	return a.initialize(ctx, StyleGlobal, cfg)
}

// moduleAdapter serves ES module scripts. The factory resolves once the
// core's ready promise does.
type moduleAdapter struct {
	script
}

func (a *moduleAdapter) Style() Style { return StyleModule }

func (a *moduleAdapter) Initialize(ctx context.Context, cfg ModuleConfig) (*Handle, error) {
	return a.initialize(ctx, StyleModule, cfg)
}
