package launcher

import (
	"context"
	"errors"
	"path"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
	"github.com/spf13/afero"
	"github.com/user-none/emweb/emuerr"
	"github.com/user-none/emweb/emulator"
	"github.com/user-none/emweb/loader/loadertest"
	"github.com/user-none/emweb/options"
	"github.com/user-none/emweb/resolvable"
	"github.com/user-none/emweb/surface"
	"github.com/user-none/emweb/vfs"
)

type fetcher struct {
	mu    sync.Mutex
	urls  []string
	block bool
}

func (f *fetcher) Fetch(ctx context.Context, loc resolvable.Locator) ([]byte, error) {
	f.mu.Lock()
	f.urls = append(f.urls, loc.String())
	block := f.block
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	switch {
	case strings.HasSuffix(loc.String(), ".js"):
		return []byte(loadertest.Script), nil
	case strings.HasSuffix(loc.String(), ".wasm"):
		return []byte{0, 'a', 's', 'm'}, nil
	default:
		return []byte{'N', 'E', 'S', 0x1a}, nil
	}
}

func (f *fetcher) fetched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.urls...)
}

func readDir(prim *vfs.AferoPrimitive, dir string) ([]string, error) {
	infos, err := afero.ReadDir(prim.Fs(), dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name())
	}
	return names, nil
}

type env struct {
	host    *loadertest.Host
	fetcher *fetcher
	doc     *surface.MemoryDocument
	cfg     Config
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		host:    loadertest.NewHost(),
		fetcher: &fetcher{},
		doc:     surface.NewMemoryDocument(),
	}
	defaults := options.DefaultConfig().With(options.LaunchOptions{
		Fetcher:  e.fetcher,
		Document: e.doc,
		Logger:   log.NewTestLogger(t),
	})
	e.cfg = Config{
		Defaults: &defaults,
		Host:     e.host,
		EmulatorOptions: []emulator.Option{emulator.WithFSOptions(
			vfs.WithFileBackoff(vfs.Backoff{Base: time.Millisecond, Max: 2 * time.Millisecond, Attempts: 500}),
			vfs.WithReadyBackoff(vfs.Backoff{Base: time.Millisecond, Attempts: 5}),
		)},
	}
	t.Cleanup(e.host.Close)
	return e
}

func TestLaunchStagesSingleROM(t *testing.T) {
	e := newEnv(t)
	l, err := Launch(context.Background(), e.cfg, options.LaunchOptions{Core: "fceumm", ROM: "game.nes"})
	assert.NoError(t, err)

	assert.Equal(t, emulator.StatusRunning, l.Status())
	fs := l.Emulator().FS()
	prim := fs.Primitive()
	layout := fs.Layout()
	assert.True(t, prim.Exists(path.Join(layout.Content(), "game.nes")))
	assert.True(t, prim.Exists(layout.System()))

	if afs, ok := prim.(*vfs.AferoPrimitive); ok {
		entries, err := readDir(afs, layout.Content())
		assert.NoError(t, err)
		assert.Equal(t, []string{"game.nes"}, entries)
		entries, err = readDir(afs, layout.System())
		assert.NoError(t, err)
		assert.Empty(t, entries)
	}

	fetched := e.fetcher.fetched()
	assert.Len(t, fetched, 3)
	assert.Contains(t, strings.Join(fetched, " "), options.CoreURL("fceumm", "js"))
	assert.NotNil(t, l.Handle())
	assert.NotNil(t, l.Surface())
}

func TestSaveThenLoadState(t *testing.T) {
	e := newEnv(t)
	e.host.Setup = func(c *loadertest.Core) {
		c.OnCommand = func(c *loadertest.Core, command string) {
			if command != string(emulator.CommandSaveState) {
				return
			}
			dir := vfs.DefaultLayout().StateDir("FCEUmm")
			_ = c.FS().MkdirTree(dir)
			_ = c.FS().WriteFile(path.Join(dir, "game.state"), []byte("state"))
			_ = c.FS().WriteFile(path.Join(dir, "game.state.png"), []byte("png"))
		}
	}
	l, err := Launch(context.Background(), e.cfg, options.LaunchOptions{Core: "fceumm", ROM: "game.nes"})
	assert.NoError(t, err)

	saved, err := l.SaveState(context.Background())
	assert.NoError(t, err)
	assert.NoError(t, l.LoadState(context.Background(), saved.State))
	assert.Equal(t, emulator.StatusRunning, l.Status())
}

func TestPauseTwice(t *testing.T) {
	e := newEnv(t)
	l, err := Launch(context.Background(), e.cfg, options.LaunchOptions{Core: "fceumm", ROM: "game.nes"})
	assert.NoError(t, err)

	assert.NoError(t, l.Pause())
	assert.NoError(t, l.Pause())
	assert.Equal(t, emulator.StatusPaused, l.Status())

	assert.NoError(t, l.SendCommand(emulator.CommandReset))
	commands := e.host.Core().WaitCommands(2, 2*time.Second)
	assert.Equal(t, []string{"PAUSE_TOGGLE", "RESET"}, commands)
}

func TestLaunchAbortedDuringResolution(t *testing.T) {
	e := newEnv(t)
	e.fetcher.block = true
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)

	l, err := Launch(ctx, e.cfg, options.LaunchOptions{Core: "fceumm", ROM: "game.nes"})
	assert.True(t, errors.Is(err, emuerr.ErrAborted))
	assert.True(t, l == nil)
	assert.True(t, e.host.Core() == nil)
}

func TestManualLaunch(t *testing.T) {
	e := newEnv(t)
	var events []string
	opts := options.LaunchOptions{
		Core:   "fceumm",
		ROM:    "game.nes",
		Manual: true,
		BeforeLaunch: func(context.Context) error {
			events = append(events, "before")
			return nil
		},
		OnLaunch: func(context.Context) error {
			events = append(events, "launch")
			return nil
		},
	}
	l, err := Launch(context.Background(), e.cfg, opts)
	assert.NoError(t, err)
	assert.Equal(t, emulator.StatusInitial, l.Status())
	assert.True(t, l.Handle() == nil)
	assert.Empty(t, events)

	assert.NoError(t, l.LaunchEmulator(context.Background()))
	assert.Equal(t, emulator.StatusRunning, l.Status())
	assert.Equal(t, []string{"before", "launch"}, events)
}

func TestPressForms(t *testing.T) {
	e := newEnv(t)
	l, err := Launch(context.Background(), e.cfg, options.LaunchOptions{
		Core:           "fceumm",
		ROM:            "game.nes",
		EmulatorConfig: map[string]any{"input_player1_a": "x", "input_player2_start": "enter"},
	})
	assert.NoError(t, err)

	assert.NoError(t, l.Press(context.Background(), PressOptions{Button: "a", Time: time.Millisecond}))
	assert.NoError(t, l.PressDown(PressOptions{Button: "start", Player: 2}))
	assert.NoError(t, l.PressUp("a"))
	assert.True(t, errors.Is(l.PressDown(42), emuerr.ErrInvalidInput))

	keys := e.host.Core().Keys()
	codes := make([]string, 0, len(keys))
	for _, k := range keys {
		codes = append(codes, k.Kind+":"+k.Code)
	}
	assert.Equal(t, []string{"keydown:KeyX", "keyup:KeyX", "keydown:Enter", "keyup:KeyX"}, codes)
}

func TestExitRemovesSurface(t *testing.T) {
	e := newEnv(t)
	l, err := Launch(context.Background(), e.cfg, options.LaunchOptions{Core: "fceumm", ROM: "game.nes"})
	assert.NoError(t, err)
	assert.True(t, l.Surface().Connected())

	assert.NoError(t, l.Exit(true))
	assert.False(t, l.Surface().Connected())
	assert.Equal(t, []int{0}, e.host.Core().Exits())
	assert.True(t, e.host.Core().Removed())
}

func TestNotLoaded(t *testing.T) {
	l := New(Config{Host: loadertest.NewHost()}, options.LaunchOptions{Core: "fceumm"})

	assert.True(t, errors.Is(l.Pause(), emuerr.ErrNotReady))
	assert.True(t, errors.Is(l.Exit(true), emuerr.ErrNotReady))
	assert.True(t, errors.Is(l.LaunchEmulator(context.Background()), emuerr.ErrNotReady))
	_, err := l.Screenshot(context.Background())
	assert.True(t, errors.Is(err, emuerr.ErrNotReady))
	assert.True(t, l.Surface() == nil)
	assert.Equal(t, emulator.StatusInitial, l.Status())
}

func TestLoadWithoutHost(t *testing.T) {
	err := New(Config{}, options.LaunchOptions{Core: "fceumm"}).Load(context.Background())
	assert.True(t, errors.Is(err, emuerr.ErrInvalidInput))
}

func TestSystemShortcuts(t *testing.T) {
	tests := []struct {
		name   string
		launch func(context.Context, Config, any, options.LaunchOptions) (*Launcher, error)
		core   string
		rom    string
	}{
		{"nes", NES, "fceumm", "game.nes"},
		{"snes", SNES, "snes9x", "game.sfc"},
		{"gb", GB, "mgba", "game.gb"},
		{"gba", GBA, "mgba", "game.gba"},
		{"gbc", GBC, "mgba", "game.gbc"},
		{"megadrive", Megadrive, "genesis_plus_gx", "game.md"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			l, err := tt.launch(context.Background(), e.cfg, tt.rom, options.LaunchOptions{})
			assert.NoError(t, err)
			assert.Equal(t, tt.core, l.Options().CoreID())
			assert.Contains(t, strings.Join(e.fetcher.fetched(), " "), options.CoreURL(tt.core, "wasm"))
		})
	}
}

func TestUnknownSystem(t *testing.T) {
	_, err := launchSystem(context.Background(), Config{}, "vectrex", "game.vec", options.LaunchOptions{})
	assert.True(t, errors.Is(err, emuerr.ErrInvalidInput))
}
