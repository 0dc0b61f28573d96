// Package launcher is the entry point for launching a game. A Launcher
// resolves its options, runs the emulator and forwards every control
// operation to it.
package launcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/retroenv/retrogolib/log"
	"github.com/user-none/emweb/adapter"
	"github.com/user-none/emweb/emuerr"
	"github.com/user-none/emweb/emulator"
	"github.com/user-none/emweb/loader"
	"github.com/user-none/emweb/options"
	"github.com/user-none/emweb/resolvable"
	"github.com/user-none/emweb/surface"
)

// Config is what launches share: the defaults every launch starts from
// and the host cores run in.
type Config struct {
	// Defaults are layered under the launch options. Nil means
	// options.DefaultConfig().
	Defaults *options.Defaults
	Host     loader.Host
	// EmulatorOptions are passed to every emulator.
	EmulatorOptions []emulator.Option
}

// Launcher owns one launched game.
type Launcher struct {
	cfg  Config
	opts options.LaunchOptions

	mu  sync.Mutex
	res *options.Resolved
	emu *emulator.Emulator
}

// PressOptions describes a button press.
type PressOptions struct {
	Button string
	// Player defaults to 1.
	Player int
	// Time is how long the button is held, emulator.DefaultHold when zero.
	Time time.Duration
}

// New returns a launcher for opts layered over the configured defaults.
// Nothing is resolved until Load.
func New(cfg Config, opts options.LaunchOptions) *Launcher {
	defaults := options.DefaultConfig()
	if cfg.Defaults != nil {
		defaults = *cfg.Defaults
	}
	return &Launcher{cfg: cfg, opts: defaults.Apply(opts)}
}

// Launch creates a launcher and loads it.
func Launch(ctx context.Context, cfg Config, opts options.LaunchOptions) (*Launcher, error) {
	l := New(cfg, opts)
	if err := l.Load(ctx); err != nil {
		return nil, err
	}
	return l, nil
}

// Load resolves the options and creates the emulator. Unless the options
// ask for a manual launch, the emulator is launched too.
func (l *Launcher) Load(ctx context.Context) error {
	if l.cfg.Host == nil {
		return fmt.Errorf("%w: no host to run cores in", emuerr.ErrInvalidInput)
	}

	res, err := options.Resolve(ctx, l.opts)
	if err != nil {
		return err
	}
	if err := emuerr.CheckAborted(ctx); err != nil {
		res.Dispose()
		return err
	}

	emu := emulator.New(res, l.cfg.Host, l.cfg.EmulatorOptions...)
	if hook := l.opts.BeforeLaunch; hook != nil {
		emu.On(emulator.EventBeforeLaunch, hook)
	}
	if hook := l.opts.OnLaunch; hook != nil {
		emu.On(emulator.EventOnLaunch, hook)
	}

	l.mu.Lock()
	if l.res != nil {
		l.res.Dispose()
	}
	l.res = res
	l.emu = emu
	l.mu.Unlock()

	if l.opts.Manual {
		return nil
	}
	return l.LaunchEmulator(ctx)
}

// LaunchEmulator launches a loaded emulator. Only needed for manual launches.
func (l *Launcher) LaunchEmulator(ctx context.Context) error {
	emu, err := l.emulator()
	if err != nil {
		return err
	}
	if err := emu.Launch(ctx); err != nil {
		return err
	}
	l.logger().Debug("Launched", log.String("core", l.opts.CoreID()))
	return nil
}

func (l *Launcher) emulator() (*emulator.Emulator, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.emu == nil {
		return nil, fmt.Errorf("%w: emulator is not loaded", emuerr.ErrNotReady)
	}
	return l.emu, nil
}

func (l *Launcher) logger() *log.Logger {
	return l.opts.Logger
}

// Options returns the merged launch options.
func (l *Launcher) Options() options.LaunchOptions { return l.opts }

// Emulator returns the emulator, nil before Load.
func (l *Launcher) Emulator() *emulator.Emulator {
	emu, _ := l.emulator()
	return emu
}

// Surface returns the rendering surface, nil before Load.
func (l *Launcher) Surface() surface.Surface {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.res == nil {
		return nil
	}
	return l.res.Surface
}

// Handle returns the core handle, nil before launch.
func (l *Launcher) Handle() *loader.Handle {
	emu, err := l.emulator()
	if err != nil {
		return nil
	}
	return emu.Handle()
}

// Status returns the run state of the game.
func (l *Launcher) Status() emulator.Status {
	emu, err := l.emulator()
	if err != nil {
		return emulator.StatusInitial
	}
	return emu.Status()
}

// Press presses a button, given by name or as PressOptions.
func (l *Launcher) Press(ctx context.Context, press any) error {
	emu, err := l.emulator()
	if err != nil {
		return err
	}
	p, err := toPress(press)
	if err != nil {
		return err
	}
	return emu.Press(ctx, p.Button, p.Player, p.Time)
}

// PressDown presses a button down, given by name or as PressOptions.
func (l *Launcher) PressDown(press any) error {
	emu, err := l.emulator()
	if err != nil {
		return err
	}
	p, err := toPress(press)
	if err != nil {
		return err
	}
	return emu.PressDown(p.Button, p.Player)
}

// PressUp releases a button, given by name or as PressOptions.
func (l *Launcher) PressUp(press any) error {
	emu, err := l.emulator()
	if err != nil {
		return err
	}
	p, err := toPress(press)
	if err != nil {
		return err
	}
	return emu.PressUp(p.Button, p.Player)
}

func toPress(press any) (PressOptions, error) {
	switch p := press.(type) {
	case string:
		return PressOptions{Button: p}, nil
	case PressOptions:
		return p, nil
	case *PressOptions:
		if p != nil {
			return *p, nil
		}
	}
	return PressOptions{}, fmt.Errorf("%w: press of type %T", emuerr.ErrInvalidInput, press)
}

// SaveState saves the game state.
func (l *Launcher) SaveState(ctx context.Context) (*emulator.SaveState, error) {
	emu, err := l.emulator()
	if err != nil {
		return nil, err
	}
	return emu.SaveState(ctx)
}

// LoadState loads a save state given as any file spec.
func (l *Launcher) LoadState(ctx context.Context, state any) error {
	emu, err := l.emulator()
	if err != nil {
		return err
	}
	file, err := resolvable.Resolve(ctx, state, resolvable.WithFetcher(l.opts.Fetcher))
	if err != nil {
		return fmt.Errorf("resolving state: %w", err)
	}
	return emu.LoadState(ctx, file)
}

// SaveSRAM returns the battery backed memory.
func (l *Launcher) SaveSRAM(ctx context.Context) (*resolvable.File, error) {
	emu, err := l.emulator()
	if err != nil {
		return nil, err
	}
	return emu.SaveSRAM(ctx)
}

// Screenshot returns a PNG screenshot.
func (l *Launcher) Screenshot(ctx context.Context) (*resolvable.File, error) {
	emu, err := l.emulator()
	if err != nil {
		return nil, err
	}
	return emu.Screenshot(ctx)
}

// SendCommand sends a raw command to the core.
func (l *Launcher) SendCommand(cmd emulator.Command) error {
	emu, err := l.emulator()
	if err != nil {
		return err
	}
	emu.SendCommand(cmd)
	return nil
}

// Pause pauses the game.
func (l *Launcher) Pause() error {
	emu, err := l.emulator()
	if err != nil {
		return err
	}
	emu.Pause()
	return nil
}

// Resume resumes the game.
func (l *Launcher) Resume() error {
	emu, err := l.emulator()
	if err != nil {
		return err
	}
	emu.Resume()
	return nil
}

// Restart resets and resumes the game.
func (l *Launcher) Restart() error {
	emu, err := l.emulator()
	if err != nil {
		return err
	}
	emu.Restart()
	return nil
}

// Resize sets the canvas size.
func (l *Launcher) Resize(size surface.Size) error {
	emu, err := l.emulator()
	if err != nil {
		return err
	}
	return emu.Resize(size)
}

// Exit stops the core and optionally removes the surface from the page.
func (l *Launcher) Exit(removeSurface bool) error {
	emu, err := l.emulator()
	if err != nil {
		return err
	}
	emu.Exit(0)
	if removeSurface {
		l.opts.Document.Remove(emu.Surface())
	}
	return nil
}

// launchSystem launches rom with the default core of a system.
func launchSystem(ctx context.Context, cfg Config, system string, rom any, opts options.LaunchOptions) (*Launcher, error) {
	core, ok := adapter.SystemCore(system)
	if !ok {
		return nil, fmt.Errorf("%w: no core for system %s", emuerr.ErrInvalidInput, system)
	}
	if rom != nil {
		opts.ROM = rom
	}
	opts.Core = core
	return Launch(ctx, cfg, opts)
}

// NES launches a NES game with fceumm.
func NES(ctx context.Context, cfg Config, rom any, opts options.LaunchOptions) (*Launcher, error) {
	return launchSystem(ctx, cfg, "nes", rom, opts)
}

// SNES launches a SNES game with snes9x.
func SNES(ctx context.Context, cfg Config, rom any, opts options.LaunchOptions) (*Launcher, error) {
	return launchSystem(ctx, cfg, "snes", rom, opts)
}

// GB launches a Game Boy game with mgba.
func GB(ctx context.Context, cfg Config, rom any, opts options.LaunchOptions) (*Launcher, error) {
	return launchSystem(ctx, cfg, "gb", rom, opts)
}

// GBA launches a Game Boy Advance game with mgba.
func GBA(ctx context.Context, cfg Config, rom any, opts options.LaunchOptions) (*Launcher, error) {
	return launchSystem(ctx, cfg, "gba", rom, opts)
}

// GBC launches a Game Boy Color game with mgba.
func GBC(ctx context.Context, cfg Config, rom any, opts options.LaunchOptions) (*Launcher, error) {
	return launchSystem(ctx, cfg, "gbc", rom, opts)
}

// Megadrive launches a Mega Drive game with genesis_plus_gx.
func Megadrive(ctx context.Context, cfg Config, rom any, opts options.LaunchOptions) (*Launcher, error) {
	return launchSystem(ctx, cfg, "megadrive", rom, opts)
}
