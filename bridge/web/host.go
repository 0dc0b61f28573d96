//go:build js && wasm

package web

import (
	"context"
	"fmt"
	"strings"
	"syscall/js"

	"github.com/retroenv/retrogolib/log"
	"github.com/user-none/emweb/loader"
)

// Host imports core scripts into the page.
type Host struct {
	logger *log.Logger
	// importer is a function calling import(), which Go cannot express.
	importer js.Value
}

// NewHost returns a host for the current page.
func NewHost(logger *log.Logger) *Host {
	fn := js.Global().Get("Function").New("u", "return import(u)")
	return &Host{logger: logger, importer: fn}
}

// CreateObjectURL wraps data in a blob URL.
func (h *Host) CreateObjectURL(data []byte, mimeType string) (string, error) {
	var u string
	err := try(func() {
		parts := js.Global().Get("Array").New(uint8Array(data))
		blob := js.Global().Get("Blob").New(parts, map[string]any{"type": mimeType})
		u = js.Global().Get("URL").Call("createObjectURL", blob).String()
	})
	return u, err
}

// RevokeObjectURL releases a blob URL.
func (h *Host) RevokeObjectURL(u string) {
	_ = try(func() { js.Global().Get("URL").Call("revokeObjectURL", u) })
}

// Import loads the module at u and returns its getEmscripten export.
func (h *Host) Import(ctx context.Context, u string) (loader.Factory, error) {
	var p js.Value
	if err := try(func() { p = h.importer.Invoke(u) }); err != nil {
		return nil, err
	}
	mod, err := await(ctx, p)
	if err != nil {
		return nil, err
	}
	getEmscripten := mod.Get("getEmscripten")
	if getEmscripten.Type() != js.TypeFunction {
		return nil, fmt.Errorf("module does not export getEmscripten")
	}

	return func(ctx context.Context, cfg loader.ModuleConfig) (*loader.Handle, error) {
		core := newCore(h.logger)
		module := core.moduleObject(cfg)

		var out js.Value
		err := try(func() {
			out = getEmscripten.Invoke(map[string]any{"Module": module})
		})
		if err != nil {
			core.release()
			return nil, err
		}
		envelope, err := await(ctx, out)
		if err != nil {
			core.release()
			return nil, err
		}
		return core.bind(envelope), nil
	}, nil
}

// core holds the JavaScript side of one initialized core.
type core struct {
	logger *log.Logger
	funcs  []js.Func

	module   js.Value
	envelope js.Value
	depsDone js.Value
}

func newCore(logger *log.Logger) *core {
	return &core{logger: logger}
}

func (c *core) fn(f func(this js.Value, args []js.Value) any) js.Func {
	jf := js.FuncOf(f)
	c.funcs = append(c.funcs, jf)
	return jf
}

func (c *core) release() {
	for _, f := range c.funcs {
		f.Release()
	}
	c.funcs = nil
}

func joinArgs(args []js.Value) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		parts = append(parts, a.String())
	}
	return strings.Join(parts, " ")
}

// moduleObject builds the Emscripten module configuration. The core
// never exits the runtime on its own and waits for callMain.
func (c *core) moduleObject(cfg loader.ModuleConfig) js.Value {
	m := js.Global().Get("Object").New()
	if cfg.Canvas != nil {
		if v, ok := cfg.Canvas.Handle().(js.Value); ok {
			m.Set("canvas", v)
		}
	}
	m.Set("wasmBinary", uint8Array(cfg.WASMBinary))
	m.Set("noExitRuntime", false)
	m.Set("noInitialRun", true)
	m.Set("locateFile", c.fn(func(_ js.Value, args []js.Value) any { return args[0] }))

	var resolveDeps js.Value
	c.depsDone = js.Global().Get("Promise").New(c.fn(func(_ js.Value, args []js.Value) any {
		resolveDeps = args[0]
		return nil
	}))
	m.Set("monitorRunDependencies", c.fn(func(_ js.Value, args []js.Value) any {
		if len(args) > 0 && args[0].Type() == js.TypeNumber && args[0].Int() == 0 {
			resolveDeps.Invoke()
		}
		return c.depsDone
	}))

	m.Set("print", c.fn(func(_ js.Value, args []js.Value) any {
		line := joinArgs(args)
		if cfg.Print != nil {
			cfg.Print(line)
		}
		return nil
	}))
	m.Set("printErr", c.fn(func(_ js.Value, args []js.Value) any {
		line := joinArgs(args)
		if cfg.PrintErr != nil {
			cfg.PrintErr(line)
		}
		return nil
	}))
	m.Set("quit", c.fn(func(_ js.Value, args []js.Value) any {
		if len(args) > 0 && args[0].Truthy() {
			c.logger.Info("Core quit", log.String("status", joinArgs(args)))
		}
		return nil
	}))

	stdin := c.fn(func(js.Value, []js.Value) any {
		if cfg.Stdin == nil {
			return nil
		}
		b, ok := cfg.Stdin()
		if !ok {
			return nil
		}
		return int(b)
	})
	preRun := js.Global().Get("Array").New()
	preRun.Call("push", c.fn(func(js.Value, []js.Value) any {
		m.Get("FS").Call("init", stdin)
		return nil
	}))
	m.Set("preRun", preRun)

	for k, v := range cfg.Overrides {
		m.Set(k, toJS(v))
	}
	return m
}

func (c *core) bind(envelope js.Value) *loader.Handle {
	c.envelope = envelope
	c.module = envelope.Get("Module")
	events := &events{core: c, registry: envelope.Get("JSEvents")}
	return &loader.Handle{
		Module:  &module{core: c, fs: &fsPrimitive{fs: c.module.Get("FS")}},
		Events:  events,
		Audio:   envelope.Get("AL"),
		Browser: envelope.Get("Browser"),
		Exit: func(code int) {
			envelope.Call("exit", code)
		},
	}
}
