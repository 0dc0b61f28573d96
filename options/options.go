// Package options describes a launch and resolves it into concrete files
// and settings.
package options

import (
	"context"
	"maps"

	"github.com/retroenv/retrogolib/log"
	"github.com/user-none/emweb/resolvable"
	"github.com/user-none/emweb/surface"
)

// Resolver maps a raw file spec to something resolvable: typically a URL.
// A nil result means the raw spec is used as-is.
type Resolver func(ctx context.Context, raw any, opts *LaunchOptions) (any, error)

// ShaderResolver maps a shader name to the files of the shader: the preset
// and the shader sources it references.
type ShaderResolver func(ctx context.Context, name string, opts *LaunchOptions) ([]any, error)

// Hook is a launch lifecycle callback. An error aborts the launch.
type Hook func(ctx context.Context) error

// CoreFiles names a core explicitly instead of resolving it by id.
type CoreFiles struct {
	JS   any
	WASM any
	Name string
}

// SizeAuto keeps the surface at whatever size the page lays it out.
var SizeAuto = surface.Size{}

// LaunchOptions describes a launch. Zero fields take their default.
type LaunchOptions struct {
	// Core is a core id such as "fceumm", or CoreFiles.
	Core any
	// ROM, BIOS are a single file spec or a []any of them.
	ROM  any
	BIOS any
	// Shader is a shader name such as "crt/crt-easymode".
	Shader string
	State  any
	SRAM   any

	// EmulatorConfig is written to retroarch.cfg.
	EmulatorConfig map[string]any
	// CoreConfig is written to retroarch-core-options.cfg.
	CoreConfig map[string]any

	// Target selects an existing canvas. Surface takes precedence.
	Target  string
	Surface surface.Surface
	Size    surface.Size
	Style   map[string]string

	// Manual defers launching until the caller asks for it.
	Manual             bool
	BeforeLaunch       Hook
	OnLaunch           Hook
	WaitForInteraction func(done func())

	// RespondToGlobalEvents routes keyboard input from the whole page to
	// the core. When false only a focused surface receives input.
	RespondToGlobalEvents *bool
	// ExtractArchives unpacks compressed ROMs before staging them.
	ExtractArchives bool
	// ModuleOverrides are merged into the core module configuration.
	ModuleOverrides map[string]any

	ResolveCoreJS   Resolver
	ResolveCoreWASM Resolver
	ResolveROM      Resolver
	ResolveBIOS     Resolver
	ResolveShader   ShaderResolver

	Fetcher  resolvable.Fetcher
	Document surface.Document
	Logger   *log.Logger
}

// GlobalEvents reports the effective RespondToGlobalEvents value.
func (o *LaunchOptions) GlobalEvents() bool {
	return o.RespondToGlobalEvents == nil || *o.RespondToGlobalEvents
}

// Bool returns a pointer to b, for RespondToGlobalEvents.
func Bool(b bool) *bool {
	return &b
}

// CoreID returns the core id of the options: the id string or the
// explicit CoreFiles name.
func (o LaunchOptions) CoreID() string {
	switch core := o.Core.(type) {
	case string:
		return core
	case CoreFiles:
		return core.Name
	case *CoreFiles:
		if core != nil {
			return core.Name
		}
	}
	return ""
}

// overlay returns o with every zero field taken from base. Config maps
// are layered with Merge; base is never modified.
func (o LaunchOptions) overlay(base LaunchOptions) LaunchOptions {
	out := o
	out.Core = pick(o.Core, base.Core)
	out.ROM = mergeSpec(base.ROM, o.ROM)
	out.BIOS = mergeSpec(base.BIOS, o.BIOS)
	out.State = pick(o.State, base.State)
	out.SRAM = pick(o.SRAM, base.SRAM)
	out.Shader = pickString(o.Shader, base.Shader)
	out.Target = pickString(o.Target, base.Target)

	out.EmulatorConfig = Merge(nil, base.EmulatorConfig, o.EmulatorConfig)
	out.CoreConfig = Merge(nil, base.CoreConfig, o.CoreConfig)
	out.ModuleOverrides = Merge(nil, base.ModuleOverrides, o.ModuleOverrides)
	out.Style = mergeStyle(base.Style, o.Style)

	if o.Surface == nil {
		out.Surface = base.Surface
	}
	if o.Size.IsZero() {
		out.Size = base.Size
	}
	out.Manual = o.Manual || base.Manual
	out.ExtractArchives = o.ExtractArchives || base.ExtractArchives
	if o.BeforeLaunch == nil {
		out.BeforeLaunch = base.BeforeLaunch
	}
	if o.OnLaunch == nil {
		out.OnLaunch = base.OnLaunch
	}
	if o.WaitForInteraction == nil {
		out.WaitForInteraction = base.WaitForInteraction
	}
	if o.RespondToGlobalEvents == nil {
		out.RespondToGlobalEvents = base.RespondToGlobalEvents
	}
	if o.ResolveCoreJS == nil {
		out.ResolveCoreJS = base.ResolveCoreJS
	}
	if o.ResolveCoreWASM == nil {
		out.ResolveCoreWASM = base.ResolveCoreWASM
	}
	if o.ResolveROM == nil {
		out.ResolveROM = base.ResolveROM
	}
	if o.ResolveBIOS == nil {
		out.ResolveBIOS = base.ResolveBIOS
	}
	if o.ResolveShader == nil {
		out.ResolveShader = base.ResolveShader
	}
	if o.Fetcher == nil {
		out.Fetcher = base.Fetcher
	}
	if o.Document == nil {
		out.Document = base.Document
	}
	if o.Logger == nil {
		out.Logger = base.Logger
	}
	return out
}

func pick(v, fallback any) any {
	if v == nil {
		return fallback
	}
	return v
}

func pickString(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// mergeSpec combines file spec lists the way Merge combines sequences.
func mergeSpec(base, v any) any {
	if v == nil {
		return base
	}
	baseList, baseOK := base.([]any)
	list, ok := v.([]any)
	if baseOK && ok {
		return append(append([]any{}, baseList...), list...)
	}
	return v
}

func mergeStyle(layers ...map[string]string) map[string]string {
	out := make(map[string]string)
	for _, layer := range layers {
		maps.Copy(out, layer)
	}
	return out
}
