package emulator

import (
	"context"
	"errors"
	"path"
	"testing"
	"time"

	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
	"github.com/user-none/emweb/emuerr"
	"github.com/user-none/emweb/loader/loadertest"
	"github.com/user-none/emweb/options"
	"github.com/user-none/emweb/resolvable"
	"github.com/user-none/emweb/surface"
	"github.com/user-none/emweb/vfs"
)

const testROM = "Super Game.nes"

type fixture struct {
	t       *testing.T
	host    *loadertest.Host
	doc     *surface.MemoryDocument
	surface *surface.MemorySurface
	res     *options.Resolved
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	doc := surface.NewMemoryDocument()
	s := surface.NewMemorySurface(true, surface.Size{Width: 640, Height: 480})
	logger := log.NewTestLogger(t)

	cfg := options.Merge(options.DefaultEmulatorConfig(), map[string]any{
		"input_player1_a":     "x",
		"input_player1_start": "enter",
		"input_player2_b":     "num5",
	})

	f := &fixture{
		t:       t,
		host:    loadertest.NewHost(),
		doc:     doc,
		surface: s,
		res: &options.Resolved{
			Options: options.LaunchOptions{Document: doc, Logger: logger},
			Core: options.Core{
				Name: "fceumm",
				JS:   resolvable.NewFile("fceumm_libretro.js", []byte(loadertest.Script), "application/javascript"),
				WASM: resolvable.NewFile("fceumm_libretro.wasm", []byte{0, 'a', 's', 'm'}, "application/wasm"),
			},
			ROM:            []*resolvable.File{resolvable.NewFile(testROM, []byte{'N', 'E', 'S', 0x1a}, "")},
			EmulatorConfig: cfg,
			Surface:        s,
			Style:          options.Style(false, nil),
			Logger:         logger,
		},
	}
	t.Cleanup(f.host.Close)
	return f
}

func (f *fixture) emulator(opts ...Option) *Emulator {
	opts = append([]Option{WithFSOptions(
		vfs.WithFileBackoff(vfs.Backoff{Base: time.Millisecond, Max: 2 * time.Millisecond, Attempts: 500}),
		vfs.WithReadyBackoff(vfs.Backoff{Base: time.Millisecond, Attempts: 5}),
	)}, opts...)
	return New(f.res, f.host, opts...)
}

func (f *fixture) launch(opts ...Option) *Emulator {
	f.t.Helper()
	e := f.emulator(opts...)
	assert.NoError(f.t, e.Launch(context.Background()))
	return e
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func drain(e *Emulator) string {
	var out []byte
	for {
		b, ok := e.Stdin()
		if !ok {
			return string(out)
		}
		out = append(out, b)
	}
}

func TestLaunchStagesFiles(t *testing.T) {
	f := newFixture(t)
	f.res.BIOS = []*resolvable.File{resolvable.NewFile("disksys.rom", []byte{1}, "")}
	f.res.State = resolvable.NewFile("quick.state", []byte{2}, "")
	f.res.SRAM = resolvable.NewFile("battery.srm", []byte{3}, "")
	f.res.CoreConfig = map[string]any{"fceumm_palette": "real"}
	f.res.Shader = []*resolvable.File{
		resolvable.NewFile("crt-easymode.glslp", []byte("shaders = 1"), ""),
		resolvable.NewFile("crt-easymode.glsl", []byte("void main() {}"), ""),
	}

	e := f.launch()
	fs := e.FS()
	layout := fs.Layout()

	files := map[string][]byte{
		path.Join(layout.Content(), testROM):                          {'N', 'E', 'S', 0x1a},
		path.Join(layout.System(), "disksys.rom"):                     {1},
		path.Join(layout.StateDir("FCEUmm"), "Super Game.state.auto"): {2},
		path.Join(layout.SaveDir("FCEUmm"), "Super Game.srm"):         {3},
		path.Join(layout.Shader(), "crt-easymode.glslp"):              []byte("shaders = 1"),
		path.Join(layout.ShaderAssets(), "crt-easymode.glsl"):         []byte("void main() {}"),
	}
	for name, want := range files {
		data, err := fs.ReadFile(name)
		assert.NoError(t, err, name)
		assert.Equal(t, want, data, name)
	}

	global, err := fs.ReadText(layout.GlobalShaderPreset())
	assert.NoError(t, err)
	assert.Equal(t, `#reference "`+path.Join(layout.Shader(), "crt-easymode.glslp")+`"`, global)

	cfg, err := fs.ReadText(layout.ConfigFile())
	assert.NoError(t, err)
	assert.Contains(t, cfg, `"rgui"`)
	coreCfg, err := fs.ReadText(layout.CoreConfigFile())
	assert.NoError(t, err)
	assert.Contains(t, coreCfg, `"real"`)

	core := f.host.Core()
	args, called := core.MainArgs()
	assert.True(t, called)
	assert.Equal(t, []string{path.Join(layout.Content(), testROM)}, args)
	assert.Equal(t, []byte{0, 'a', 's', 'm'}, core.Config().WASMBinary)

	assert.Equal(t, StatusRunning, e.Status())
	assert.Equal(t, surface.Size{Width: 640, Height: 480}, core.CanvasSize())
	assert.Equal(t, 1, f.doc.Announcements())
	assert.True(t, f.surface.Connected())
	assert.Equal(t, "black", f.surface.Style()["backgroundColor"])

	routed, global2 := core.Routing()
	assert.True(t, routed)
	assert.True(t, global2)
}

func TestLaunchExplicitSize(t *testing.T) {
	f := newFixture(t)
	f.res.Options.Size = surface.Size{Width: 320, Height: 240}
	f.launch()
	assert.Equal(t, surface.Size{Width: 320, Height: 240}, f.host.Core().CanvasSize())
}

func TestLaunchPresetArguments(t *testing.T) {
	f := newFixture(t)
	f.host.Setup = func(c *loadertest.Core) {
		c.Args = []string{"-v"}
		c.HasArgs = true
	}
	f.launch()

	args, _ := f.host.Core().MainArgs()
	assert.Equal(t, []string{"-v"}, args)
}

func TestLaunchFocusOnlyAndAbort(t *testing.T) {
	f := newFixture(t)
	f.res.Options.RespondToGlobalEvents = options.Bool(false)

	previous := surface.NewMemorySurface(false, surface.Size{})
	f.doc.Register("#menu", previous)
	previous.Focus()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e := f.emulator()
	assert.NoError(t, e.Launch(ctx))

	index, ok := f.surface.TabIndex()
	assert.True(t, ok)
	assert.Equal(t, 0, index)
	assert.True(t, f.doc.ActiveElement() == surface.Focuser(f.surface))
	routed, global := f.host.Core().Routing()
	assert.True(t, routed)
	assert.False(t, global)

	cancel()
	eventually(t, func() bool {
		return !f.surface.Connected() &&
			f.doc.ActiveElement() == surface.Focuser(previous) &&
			len(f.host.Core().Exits()) == 1 &&
			f.host.Core().Removed()
	})
}

func TestLaunchKeepsAttachedSurface(t *testing.T) {
	f := newFixture(t)
	f.doc.Register("#screen", f.surface)

	ctx, cancel := context.WithCancel(context.Background())
	e := f.emulator()
	assert.NoError(t, e.Launch(ctx))
	cancel()

	eventually(t, func() bool { return len(f.host.Core().Exits()) == 1 })
	assert.True(t, f.surface.Connected())
}

func TestLaunchDetachedLifetime(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	e := f.emulator(WithDetachedLifetime())
	assert.NoError(t, e.Launch(ctx))
	cancel()

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, f.host.Core().Exits())
	assert.True(t, f.surface.Connected())
	assert.Equal(t, StatusRunning, e.Status())

	e.Exit(0)
	assert.Equal(t, []int{0}, f.host.Core().Exits())
}

func TestLaunchWaitForInteraction(t *testing.T) {
	f := newFixture(t)
	var start func()
	f.res.Options.WaitForInteraction = func(done func()) { start = done }

	var order []string
	e := f.emulator()
	e.On(EventBeforeLaunch, func(context.Context) error {
		order = append(order, "before")
		return nil
	}).On(EventOnLaunch, func(context.Context) error {
		order = append(order, "launch")
		return nil
	})

	assert.NoError(t, e.Launch(context.Background()))
	_, called := f.host.Core().MainArgs()
	assert.False(t, called)
	assert.Equal(t, []string{"before"}, order)
	assert.Equal(t, StatusInitial, e.Status())

	start()
	start()
	_, called = f.host.Core().MainArgs()
	assert.True(t, called)
	assert.Equal(t, []string{"before", "launch"}, order)
	assert.Equal(t, StatusRunning, e.Status())
}

func TestLaunchHookError(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("boom")
	e := f.emulator()
	e.On(EventBeforeLaunch, func(context.Context) error { return boom })

	err := e.Launch(context.Background())
	assert.True(t, errors.Is(err, boom))
	_, called := f.host.Core().MainArgs()
	assert.False(t, called)
}

func TestLaunchAborted(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.emulator().Launch(ctx)
	assert.True(t, errors.Is(err, emuerr.ErrAborted))
}

func TestLaunchImportFailure(t *testing.T) {
	f := newFixture(t)
	f.host.ImportErr = errors.New("bad script")

	err := f.emulator().Launch(context.Background())
	assert.True(t, errors.Is(err, emuerr.ErrLoadFailure))
}

func TestCommandQueue(t *testing.T) {
	e := newFixture(t).emulator()
	e.SendCommand(CommandReset)
	e.SendCommand(CommandScreenshot)

	assert.Equal(t, "RESET\nSCREENSHOT\n", drain(e))
	_, ok := e.Stdin()
	assert.False(t, ok)
}

func TestPauseResumeRestart(t *testing.T) {
	e := newFixture(t).emulator()

	e.Pause()
	assert.Equal(t, StatusPaused, e.Status())
	assert.Equal(t, "", drain(e))

	e.Resume()
	assert.Equal(t, StatusRunning, e.Status())
	assert.Equal(t, "PAUSE_TOGGLE\n", drain(e))

	e.Resume()
	assert.Equal(t, "", drain(e))

	e.Pause()
	e.Pause()
	assert.Equal(t, "PAUSE_TOGGLE\n", drain(e))

	e.Restart()
	assert.Equal(t, StatusRunning, e.Status())
	assert.Equal(t, "RESET\nPAUSE_TOGGLE\n", drain(e))

	e.Restart()
	assert.Equal(t, "RESET\n", drain(e))
}

func TestCommandsReachCore(t *testing.T) {
	f := newFixture(t)
	e := f.launch()
	e.Pause()
	e.SendCommand(CommandGameFocusToggle)

	commands := f.host.Core().WaitCommands(2, 2*time.Second)
	assert.Equal(t, []string{"PAUSE_TOGGLE", "GAME_FOCUS_TOGGLE"}, commands)
}

func TestPress(t *testing.T) {
	f := newFixture(t)
	e := f.launch()
	ctx := context.Background()

	assert.NoError(t, e.Press(ctx, "a", 1, time.Millisecond))
	assert.NoError(t, e.PressDown("start", 0))
	assert.NoError(t, e.PressUp("b", 2))
	// unbound
	assert.NoError(t, e.Press(ctx, "l3", 1, time.Millisecond))
	assert.NoError(t, e.PressDown("select", 3))

	keys := f.host.Core().Keys()
	assert.Len(t, keys, 4)
	want := []loadertest.KeyEvent{
		{Kind: "keydown", Code: "KeyX"},
		{Kind: "keyup", Code: "KeyX"},
		{Kind: "keydown", Code: "Enter"},
		{Kind: "keyup", Code: "Numpad5"},
	}
	for i, key := range keys {
		assert.Equal(t, want[i].Kind, key.Kind)
		assert.Equal(t, want[i].Code, key.Code)
		assert.True(t, key.Target == surface.Surface(f.surface))
	}
}

func TestPressUsesCurrentConfig(t *testing.T) {
	f := newFixture(t)
	e := f.launch()

	// rebinding in the core menu rewrites retroarch.cfg
	fs := e.FS()
	text, err := vfs.FormatINI(map[string]any{"input_player1_a": "f5"})
	assert.NoError(t, err)
	assert.NoError(t, fs.WriteFile(context.Background(), fs.Layout().ConfigFile(), resolvable.Text(text)))

	assert.NoError(t, e.PressDown("a", 1))
	keys := f.host.Core().Keys()
	assert.Len(t, keys, 1)
	assert.Equal(t, "F5", keys[0].Code)
}

func TestSaveState(t *testing.T) {
	f := newFixture(t)
	f.host.Setup = func(c *loadertest.Core) {
		c.OnCommand = func(c *loadertest.Core, command string) {
			if command != string(CommandSaveState) {
				return
			}
			dir := vfs.DefaultLayout().StateDir("FCEUmm")
			_ = c.FS().MkdirTree(dir)
			_ = c.FS().WriteFile(path.Join(dir, "Super Game.state"), []byte("state"))
			_ = c.FS().WriteFile(path.Join(dir, "Super Game.state.png"), []byte("png"))
		}
	}
	e := f.launch()

	saved, err := e.SaveState(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, []byte("state"), saved.State.Bytes())
	assert.Equal(t, "Super Game.state", saved.State.Name())
	assert.NotNil(t, saved.Thumbnail)
	assert.Equal(t, []byte("png"), saved.Thumbnail.Bytes())
	assert.Equal(t, "image/png", saved.Thumbnail.MIMEType())

	paths := PathsFor(e.FS().Layout(), f.res)
	assert.False(t, e.FS().Exists(paths.StateFile()))
	assert.False(t, e.FS().Exists(paths.StateThumbnail()))
}

func TestSaveStateWithoutThumbnail(t *testing.T) {
	f := newFixture(t)
	f.res.EmulatorConfig["savestate_thumbnail_enable"] = false
	f.host.Setup = func(c *loadertest.Core) {
		c.OnCommand = func(c *loadertest.Core, command string) {
			dir := vfs.DefaultLayout().StateDir("FCEUmm")
			_ = c.FS().MkdirTree(dir)
			_ = c.FS().WriteFile(path.Join(dir, "Super Game.state"), []byte("state"))
		}
	}
	e := f.launch()

	saved, err := e.SaveState(context.Background())
	assert.NoError(t, err)
	assert.True(t, saved.Thumbnail == nil)
}

func TestLoadState(t *testing.T) {
	f := newFixture(t)
	e := f.launch()

	assert.NoError(t, e.LoadState(context.Background(), []byte("saved")))
	paths := PathsFor(e.FS().Layout(), f.res)
	data, err := e.FS().ReadFile(paths.StateFile())
	assert.NoError(t, err)
	assert.Equal(t, []byte("saved"), data)
	assert.Equal(t, []string{"LOAD_STATE"}, f.host.Core().WaitCommands(1, 2*time.Second))
}

func TestStateUnsupportedByCore(t *testing.T) {
	f := newFixture(t)
	f.res.Core.Name = "gearboy"
	e := f.launch()

	_, err := e.SaveState(context.Background())
	assert.True(t, errors.Is(err, emuerr.ErrInvalidInput))
	err = e.LoadState(context.Background(), []byte("saved"))
	assert.True(t, errors.Is(err, emuerr.ErrInvalidInput))
	assert.Equal(t, "", drain(e))
}

func TestSaveSRAM(t *testing.T) {
	f := newFixture(t)
	f.host.Setup = func(c *loadertest.Core) {
		c.OnCall = func(c *loadertest.Core, name string) {
			dir := vfs.DefaultLayout().SaveDir("FCEUmm")
			_ = c.FS().MkdirTree(dir)
			_ = c.FS().WriteFile(path.Join(dir, "Super Game.srm"), []byte("sram"))
		}
	}
	e := f.launch()

	sram, err := e.SaveSRAM(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, []byte("sram"), sram.Bytes())
	assert.Equal(t, []string{"_cmd_savefiles"}, f.host.Core().Calls())
}

func TestScreenshot(t *testing.T) {
	f := newFixture(t)
	taken := time.Date(2026, time.October, 18, 9, 5, 3, 0, time.Local)
	target := path.Join(vfs.DefaultLayout().Screenshots(), "Super Game-261018-090503.png")
	f.host.Setup = func(c *loadertest.Core) {
		c.OnCommand = func(c *loadertest.Core, command string) {
			if command == string(CommandScreenshot) {
				_ = c.FS().MkdirTree(path.Dir(target))
				_ = c.FS().WriteFile(target, []byte("png"))
			}
		}
	}
	e := f.launch(WithClock(func() time.Time { return taken }))

	shot, err := e.Screenshot(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, []byte("png"), shot.Bytes())
	assert.Equal(t, "image/png", shot.MIMEType())
	assert.False(t, e.FS().Exists(target))
}

func TestWaitAborted(t *testing.T) {
	f := newFixture(t)
	e := f.launch()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.SaveSRAM(ctx)
	assert.True(t, errors.Is(err, emuerr.ErrAborted))
}

func TestExit(t *testing.T) {
	f := newFixture(t)
	f.host.Setup = func(c *loadertest.Core) { c.ExitPanics = true }
	e := f.launch()

	e.Exit(3)
	e.Exit(3)
	assert.Equal(t, []int{3}, f.host.Core().Exits())
	assert.True(t, f.host.Core().Removed())
}

func TestNotLaunched(t *testing.T) {
	e := newFixture(t).emulator()

	_, err := e.SaveState(context.Background())
	assert.True(t, errors.Is(err, emuerr.ErrNotReady))
	assert.True(t, errors.Is(e.Resize(surface.Size{Width: 1, Height: 1}), emuerr.ErrNotReady))
	assert.True(t, errors.Is(e.PressDown("a", 1), emuerr.ErrNotReady))
	e.Exit(0)
}

func TestResize(t *testing.T) {
	f := newFixture(t)
	e := f.launch()
	assert.NoError(t, e.Resize(surface.Size{Width: 800, Height: 600}))
	assert.Equal(t, surface.Size{Width: 800, Height: 600}, f.host.Core().CanvasSize())
}
