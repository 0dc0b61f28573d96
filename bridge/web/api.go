//go:build js && wasm

package web

import (
	"context"
	"fmt"
	"net/url"
	"syscall/js"
	"time"

	"github.com/retroenv/retrogolib/log"
	"github.com/user-none/emweb/adapter"
	"github.com/user-none/emweb/emuerr"
	"github.com/user-none/emweb/emulator"
	"github.com/user-none/emweb/launcher"
	"github.com/user-none/emweb/options"
	"github.com/user-none/emweb/resolvable"
	"github.com/user-none/emweb/surface"
)

const fetchCacheEntries = 16

// API is the object exposed to page scripts.
type API struct {
	base   options.Defaults
	cfg    launcher.Config
	logger *log.Logger
	funcs  []js.Func
}

// NewAPI returns the page API launching cores in host.
func NewAPI(host *Host, logger *log.Logger) *API {
	fetcherOpts := []resolvable.FetcherOption{resolvable.WithCacheSize(fetchCacheEntries)}
	if base, err := url.Parse(js.Global().Get("location").Get("href").String()); err == nil {
		fetcherOpts = append(fetcherOpts, resolvable.WithBaseURL(base))
	}
	defaults := options.DefaultConfig().With(options.LaunchOptions{
		Fetcher:  resolvable.NewHTTPFetcher(fetcherOpts...),
		Document: NewDocument(),
		Logger:   logger,
	})
	return &API{
		base:   defaults,
		cfg:    launcher.Config{Defaults: &defaults, Host: host},
		logger: logger,
	}
}

// Register installs the API as globalThis[name].
func (a *API) Register(name string) {
	obj := js.Global().Get("Object").New()
	obj.Set("launch", a.fn(func(_ js.Value, args []js.Value) any {
		return a.launch(arg(args, 0), "")
	}))
	for _, system := range adapter.Systems() {
		obj.Set(system, a.fn(func(_ js.Value, args []js.Value) any {
			return a.launch(arg(args, 0), system)
		}))
	}
	// configure layers options over the defaults of later launches.
	obj.Set("configure", a.fn(func(_ js.Value, args []js.Value) any {
		opts, err := parseOptions(arg(args, 0))
		if err != nil {
			a.logger.Error("Ignoring defaults", log.Err(err))
			return nil
		}
		defaults := a.cfg.Defaults.With(opts)
		a.cfg.Defaults = &defaults
		return nil
	}))
	obj.Set("resetToDefault", a.fn(func(js.Value, []js.Value) any {
		defaults := a.base
		a.cfg.Defaults = &defaults
		return nil
	}))
	obj.Set("cores", a.fn(func(js.Value, []js.Value) any {
		ids := adapter.IDs()
		out := make([]any, 0, len(ids))
		for _, id := range ids {
			c, _ := adapter.Lookup(id)
			out = append(out, c.Describe())
		}
		return out
	}))
	js.Global().Set(name, obj)
}

func (a *API) fn(f func(this js.Value, args []js.Value) any) js.Func {
	jf := js.FuncOf(f)
	a.funcs = append(a.funcs, jf)
	return jf
}

func arg(args []js.Value, i int) js.Value {
	if i < len(args) {
		return args[i]
	}
	return js.Undefined()
}

// launch starts a launch. A system launch accepts a bare ROM in place of
// the options object.
func (a *API) launch(v js.Value, system string) js.Value {
	cfg := a.cfg
	return promise(func() (any, error) {
		if system != "" && (v.Type() == js.TypeString || isBinary(v)) {
			obj := js.Global().Get("Object").New()
			obj.Set("rom", v)
			v = obj
		}
		opts, err := parseOptions(v)
		if err != nil {
			return nil, err
		}
		if system != "" {
			core, ok := adapter.SystemCore(system)
			if !ok {
				return nil, fmt.Errorf("%w: system %s", emuerr.ErrInvalidInput, system)
			}
			opts.Core = core
		}

		ctx := context.Background()
		if signal := v.Get("signal"); signal.Truthy() {
			var cancel context.CancelFunc
			ctx, cancel = context.WithCancel(ctx)
			if signal.Get("aborted").Truthy() {
				cancel()
			} else {
				var onAbort js.Func
				onAbort = js.FuncOf(func(js.Value, []js.Value) any {
					cancel()
					onAbort.Release()
					return nil
				})
				signal.Call("addEventListener", "abort", onAbort)
			}
		}

		l, err := launcher.Launch(ctx, cfg, opts)
		if err != nil {
			return nil, err
		}
		return newInstance(ctx, l), nil
	})
}

func parseOptions(v js.Value) (options.LaunchOptions, error) {
	var opts options.LaunchOptions
	if v.Type() != js.TypeObject {
		return opts, fmt.Errorf("%w: launch options must be an object", emuerr.ErrInvalidInput)
	}

	switch core := v.Get("core"); core.Type() {
	case js.TypeString:
		opts.Core = core.String()
	case js.TypeObject:
		opts.Core = options.CoreFiles{
			JS:   toGo(core.Get("js")),
			WASM: toGo(core.Get("wasm")),
			Name: stringOf(core.Get("name")),
		}
	}

	opts.ROM = toGo(v.Get("rom"))
	opts.BIOS = toGo(v.Get("bios"))
	opts.State = toGo(v.Get("state"))
	opts.SRAM = toGo(v.Get("sram"))
	if shader := v.Get("shader"); shader.Type() == js.TypeString {
		opts.Shader = shader.String()
	}
	opts.EmulatorConfig = toMap(v.Get("retroarchConfig"))
	opts.CoreConfig = toMap(v.Get("retroarchCoreConfig"))
	opts.ModuleOverrides = rawMap(v.Get("emscriptenModule"))

	switch el := v.Get("element"); {
	case el.Type() == js.TypeString:
		opts.Target = el.String()
	case el.Truthy():
		opts.Surface = WrapElement(el)
	}
	if size := v.Get("size"); size.Type() == js.TypeObject {
		opts.Size = surface.Size{Width: size.Get("width").Int(), Height: size.Get("height").Int()}
	}
	if style := v.Get("style"); style.Type() == js.TypeObject {
		opts.Style = map[string]string{}
		for k, item := range toMap(style) {
			opts.Style[k] = fmt.Sprint(item)
		}
	}
	if global := v.Get("respondToGlobalEvents"); global.Type() == js.TypeBoolean {
		opts.RespondToGlobalEvents = options.Bool(global.Bool())
	}
	opts.Manual = v.Get("runEmulatorManually").Truthy()
	opts.ExtractArchives = v.Get("extractArchives").Truthy()

	opts.BeforeLaunch = hook(v.Get("beforeLaunch"))
	opts.OnLaunch = hook(v.Get("onLaunch"))
	if wait := v.Get("waitForInteraction"); wait.Type() == js.TypeFunction {
		opts.WaitForInteraction = func(done func()) {
			var doneFn js.Func
			doneFn = js.FuncOf(func(js.Value, []js.Value) any {
				doneFn.Release()
				go done()
				return nil
			})
			wait.Invoke(map[string]any{"done": doneFn})
		}
	}

	opts.ResolveCoreJS = resolver(v.Get("resolveCoreJs"))
	opts.ResolveCoreWASM = resolver(v.Get("resolveCoreWasm"))
	opts.ResolveROM = resolver(v.Get("resolveRom"))
	opts.ResolveBIOS = resolver(v.Get("resolveBios"))
	if fn := v.Get("resolveShader"); fn.Type() == js.TypeFunction {
		opts.ResolveShader = func(ctx context.Context, name string, _ *options.LaunchOptions) ([]any, error) {
			out, err := invoke(ctx, fn, map[string]any{"file": name})
			if err != nil {
				return nil, err
			}
			if list, ok := out.([]any); ok {
				return list, nil
			}
			if out == nil {
				return nil, nil
			}
			return []any{out}, nil
		}
	}
	return opts, nil
}

func stringOf(v js.Value) string {
	if v.Type() == js.TypeString {
		return v.String()
	}
	return ""
}

// rawMap keeps the values as JavaScript values, for objects handed back to
// the page untouched.
func rawMap(v js.Value) map[string]any {
	if v.Type() != js.TypeObject {
		return nil
	}
	keys := js.Global().Get("Object").Call("keys", v)
	out := make(map[string]any, keys.Length())
	for i := range keys.Length() {
		key := keys.Index(i).String()
		out[key] = v.Get(key)
	}
	return out
}

func toMap(v js.Value) map[string]any {
	if v.Type() != js.TypeObject {
		return nil
	}
	m, _ := toGo(v).(map[string]any)
	return m
}

func invoke(ctx context.Context, fn js.Value, arg any) (any, error) {
	var out js.Value
	if err := try(func() { out = fn.Invoke(arg) }); err != nil {
		return nil, err
	}
	out, err := await(ctx, out)
	if err != nil {
		return nil, err
	}
	return toGo(out), nil
}

func hook(fn js.Value) options.Hook {
	if fn.Type() != js.TypeFunction {
		return nil
	}
	return func(ctx context.Context) error {
		_, err := invoke(ctx, fn, js.Undefined())
		return err
	}
}

// resolver adapts a page resolver. A resolver returning nothing keeps the
// raw spec.
func resolver(fn js.Value) options.Resolver {
	if fn.Type() != js.TypeFunction {
		return nil
	}
	return func(ctx context.Context, raw any, _ *options.LaunchOptions) (any, error) {
		out, err := invoke(ctx, fn, map[string]any{"file": toJS(raw)})
		if err != nil || out != nil {
			return out, err
		}
		return raw, nil
	}
}

func blob(f *resolvable.File) js.Value {
	if f == nil {
		return js.Undefined()
	}
	parts := js.Global().Get("Array").New(uint8Array(f.Bytes()))
	return js.Global().Get("Blob").New(parts, map[string]any{"type": f.MIMEType()})
}

// pressOptions reads a button name or a {button, player, time} object.
func pressOptions(v js.Value) launcher.PressOptions {
	if v.Type() == js.TypeString {
		return launcher.PressOptions{Button: v.String()}
	}
	p := launcher.PressOptions{Button: stringOf(v.Get("button"))}
	if player := v.Get("player"); player.Type() == js.TypeNumber {
		p.Player = player.Int()
	}
	if hold := v.Get("time"); hold.Type() == js.TypeNumber {
		p.Time = time.Duration(hold.Int()) * time.Millisecond
	}
	return p
}

// newInstance exposes a launcher to the page. launchCtx is the context
// the game was launched with; the signal passed to launch cancels it.
func newInstance(launchCtx context.Context, l *launcher.Launcher) js.Value {
	obj := js.Global().Get("Object").New()
	focus := launcher.NewGameFocus(l, false)
	var funcs []js.Func
	method := func(name string, f func(args []js.Value) any) {
		jf := js.FuncOf(func(_ js.Value, args []js.Value) any { return f(args) })
		funcs = append(funcs, jf)
		obj.Set(name, jf)
	}
	settle := func(err error) any {
		if err != nil {
			return js.Global().Get("Promise").Call("reject", js.Global().Get("Error").New(err.Error()))
		}
		return js.Global().Get("Promise").Call("resolve")
	}
	ctx := context.Background()

	method("press", func(args []js.Value) any {
		p := pressOptions(arg(args, 0))
		return promise(func() (any, error) { return nil, l.Press(ctx, p) })
	})
	method("pressDown", func(args []js.Value) any { return settle(l.PressDown(pressOptions(arg(args, 0)))) })
	method("pressUp", func(args []js.Value) any { return settle(l.PressUp(pressOptions(arg(args, 0)))) })
	method("pause", func([]js.Value) any { return settle(l.Pause()) })
	method("resume", func([]js.Value) any { return settle(l.Resume()) })
	method("restart", func([]js.Value) any { return settle(l.Restart()) })
	method("sendCommand", func(args []js.Value) any {
		return settle(l.SendCommand(emulator.Command(stringOf(arg(args, 0)))))
	})
	method("resize", func(args []js.Value) any {
		size := arg(args, 0)
		return settle(l.Resize(surface.Size{Width: size.Get("width").Int(), Height: size.Get("height").Int()}))
	})
	method("saveState", func([]js.Value) any {
		return promise(func() (any, error) {
			saved, err := l.SaveState(ctx)
			if err != nil {
				return nil, err
			}
			return map[string]any{"state": blob(saved.State), "thumbnail": blob(saved.Thumbnail)}, nil
		})
	})
	method("loadState", func(args []js.Value) any {
		state := toGo(arg(args, 0))
		return promise(func() (any, error) { return nil, l.LoadState(ctx, state) })
	})
	method("saveSRAM", func([]js.Value) any {
		return promise(func() (any, error) {
			f, err := l.SaveSRAM(ctx)
			if err != nil {
				return nil, err
			}
			return blob(f), nil
		})
	})
	method("screenshot", func([]js.Value) any {
		return promise(func() (any, error) {
			f, err := l.Screenshot(ctx)
			if err != nil {
				return nil, err
			}
			return blob(f), nil
		})
	})
	method("launchEmulator", func([]js.Value) any {
		return promise(func() (any, error) { return nil, l.LaunchEmulator(launchCtx) })
	})
	method("enableGameFocus", func([]js.Value) any { return settle(focus.Enable()) })
	method("disableGameFocus", func([]js.Value) any { return settle(focus.Disable()) })
	method("getStatus", func([]js.Value) any { return l.Status().String() })
	method("getCanvas", func([]js.Value) any {
		if s := l.Surface(); s != nil {
			return s.Handle()
		}
		return nil
	})
	method("exit", func(args []js.Value) any {
		remove := true
		if opt := arg(args, 0); opt.Type() == js.TypeObject && opt.Get("removeCanvas").Type() == js.TypeBoolean {
			remove = opt.Get("removeCanvas").Bool()
		}
		err := l.Exit(remove)
		for _, f := range funcs {
			f.Release()
		}
		return settle(err)
	})
	return obj
}
