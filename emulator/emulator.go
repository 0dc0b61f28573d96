// Package emulator runs a resolved launch: it initializes the core,
// stages its filesystem, starts it and drives it afterwards through stdin
// commands, synthesized key events and files the core writes.
package emulator

import (
	"context"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/retroenv/retrogolib/log"
	"github.com/user-none/emweb/adapter"
	"github.com/user-none/emweb/emuerr"
	"github.com/user-none/emweb/loader"
	"github.com/user-none/emweb/options"
	"github.com/user-none/emweb/resolvable"
	"github.com/user-none/emweb/surface"
	"github.com/user-none/emweb/vfs"
	"golang.org/x/sync/errgroup"
)

// Status is the run state of the game.
type Status int

// Game states.
const (
	StatusInitial Status = iota
	StatusRunning
	StatusPaused
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusPaused:
		return "paused"
	default:
		return "initial"
	}
}

// Event is a launch lifecycle point hooks can attach to.
type Event int

// Lifecycle events.
const (
	EventBeforeLaunch Event = iota
	EventOnLaunch
)

// DefaultHold is how long Press keeps a key down.
const DefaultHold = 100 * time.Millisecond

// Emulator is a single launched core.
type Emulator struct {
	res    *options.Resolved
	host   loader.Host
	doc    surface.Document
	logger *log.Logger

	clock     func() time.Time
	fsOptions []vfs.Option
	detached  bool

	mu          sync.Mutex
	handle      *loader.Handle
	fs          *vfs.FS
	paths       Paths
	status      Status
	queue       []*message
	initialSize surface.Size
	hooks       map[Event][]options.Hook
	exited      bool
}

// Option configures an Emulator.
type Option func(*Emulator)

// WithClock sets the time source used to name screenshots.
func WithClock(clock func() time.Time) Option {
	return func(e *Emulator) { e.clock = clock }
}

// WithFSOptions passes options to the filesystem adapter.
func WithFSOptions(opts ...vfs.Option) Option {
	return func(e *Emulator) { e.fsOptions = append(e.fsOptions, opts...) }
}

// WithDetachedLifetime keeps the game running when the Launch context is
// cancelled after Launch returned. The game then ends only through Exit.
func WithDetachedLifetime() Option {
	return func(e *Emulator) { e.detached = true }
}

// New returns an emulator for a resolved launch. Nothing runs until Launch.
func New(res *options.Resolved, host loader.Host, opts ...Option) *Emulator {
	e := &Emulator{
		res:    res,
		host:   host,
		doc:    res.Options.Document,
		logger: res.Logger,
		clock:  time.Now,
		hooks:  map[Event][]options.Hook{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = log.NewWithConfig(log.DefaultConfig())
	}
	if e.doc == nil {
		e.doc = surface.NewMemoryDocument()
	}
	return e
}

// On registers a hook. Hooks of one event run in registration order.
func (e *Emulator) On(event Event, hook options.Hook) *Emulator {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hooks[event] = append(e.hooks[event], hook)
	return e
}

// Launch initializes the core, stages its files, attaches the surface and
// starts the game. With a WaitForInteraction gate the game starts once
// the gate calls done, after Launch returned.
//
// Unless WithDetachedLifetime is set, ctx stays associated with the game:
// cancelling it later removes a surface Launch attached, restores the
// previous focus and exits the core.
func (e *Emulator) Launch(ctx context.Context) error {
	if err := e.setupModule(ctx); err != nil {
		return err
	}
	if err := e.setupFileSystem(ctx); err != nil {
		return err
	}

	opts := e.res.Options
	s := e.res.Surface
	s.ApplyStyle(e.res.Style)
	if !s.Connected() {
		e.doc.Append(s)
		e.onAbort(ctx, func() { e.doc.Remove(s) })
	}

	initial := opts.Size
	if initial == options.SizeAuto {
		initial = s.Size()
	}
	e.mu.Lock()
	e.initialSize = initial
	e.mu.Unlock()

	if !opts.GlobalEvents() {
		if i, ok := s.TabIndex(); !ok || i == -1 {
			s.SetTabIndex(0)
		}
		previous := e.doc.ActiveElement()
		s.Focus()
		if previous != nil {
			e.onAbort(ctx, previous.Focus)
		}
	}

	if err := e.runHooks(ctx, EventBeforeLaunch); err != nil {
		return err
	}

	if opts.WaitForInteraction == nil {
		return e.start(ctx)
	}
	var once sync.Once
	opts.WaitForInteraction(func() {
		once.Do(func() {
			if err := e.start(ctx); err != nil {
				e.logger.Error("Starting game failed", log.Err(err))
			}
		})
	})
	return nil
}

func (e *Emulator) setupModule(ctx context.Context) error {
	script, err := loader.Load(ctx, e.host, e.res.Core)
	if err != nil {
		return err
	}

	cfg := loader.ModuleConfig{
		Canvas:    e.res.Surface,
		Stdin:     e.Stdin,
		Print:     func(line string) { e.logger.Info(line) },
		PrintErr:  func(line string) { e.logger.Error(line) },
		Overrides: e.res.Options.ModuleOverrides,
	}
	if e.res.Core.WASM != nil {
		cfg.WASMBinary = e.res.Core.WASM.Bytes()
	}

	handle, err := script.Initialize(ctx, cfg)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.handle = handle
	e.mu.Unlock()

	if err := handle.Module.WaitRunDependencies(ctx); err != nil {
		if aborted := emuerr.CheckAborted(ctx); aborted != nil {
			return aborted
		}
		return fmt.Errorf("%w: waiting for core dependencies: %w", emuerr.ErrLoadFailure, err)
	}
	return emuerr.CheckAborted(ctx)
}

func (e *Emulator) setupFileSystem(ctx context.Context) error {
	handle, _ := e.ready()
	fsOpts := append([]vfs.Option{vfs.WithLogger(e.logger)}, e.fsOptions...)
	fs := vfs.New(handle.Module.FS(), fsOpts...)

	e.mu.Lock()
	e.fs = fs
	e.paths = PathsFor(fs.Layout(), e.res)
	e.mu.Unlock()

	if err := fs.Prepare(ctx, handle.Module.Ready); err != nil {
		return err
	}
	return Stage(ctx, fs, e.res)
}

// start runs main and the launch hooks.
func (e *Emulator) start(ctx context.Context) error {
	if err := e.runMain(ctx); err != nil {
		return err
	}
	return e.runHooks(ctx, EventOnLaunch)
}

func (e *Emulator) runMain(ctx context.Context) error {
	if err := emuerr.CheckAborted(ctx); err != nil {
		return err
	}
	handle, fs := e.ready()

	args, ok := handle.Module.Arguments()
	if !ok && len(e.res.ROM) > 0 {
		args = []string{path.Join(fs.Layout().Content(), e.res.ROM[0].Name())}
	}
	if err := handle.Module.CallMain(args); err != nil {
		return fmt.Errorf("calling main: %w", err)
	}
	e.onAbort(ctx, func() { e.Exit(0) })

	e.mu.Lock()
	e.status = StatusRunning
	size := e.initialSize
	e.mu.Unlock()

	e.postRun(handle, size)
	e.logger.Debug("Game started",
		log.String("core", e.res.Core.Name),
		log.Int("width", size.Width),
		log.Int("height", size.Height))
	return nil
}

// postRun restores the initial canvas size, tells the core about gamepads
// connected before it listened and routes keyboard input.
func (e *Emulator) postRun(handle *loader.Handle, size surface.Size) {
	handle.Module.SetCanvasSize(size.Width, size.Height)
	e.doc.AnnounceGamepads()

	s := e.res.Surface
	global := e.res.Options.GlobalEvents()
	if !global {
		if _, ok := s.TabIndex(); !ok {
			s.SetTabIndex(-1)
		}
		s.Focus()
	}
	handle.Events.RouteKeyboard(s, global)
}

func (e *Emulator) runHooks(ctx context.Context, event Event) error {
	e.mu.Lock()
	hooks := append([]options.Hook(nil), e.hooks[event]...)
	e.mu.Unlock()

	for _, hook := range hooks {
		if err := hook(ctx); err != nil {
			return err
		}
	}
	return nil
}

// onAbort runs fn once ctx is cancelled. A detached game ignores it.
func (e *Emulator) onAbort(ctx context.Context, fn func()) {
	if e.detached {
		return
	}
	context.AfterFunc(ctx, fn)
}

// ready returns the core handle and filesystem, either of which may be nil.
func (e *Emulator) ready() (*loader.Handle, *vfs.FS) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.handle, e.fs
}

func (e *Emulator) readyFS() (*loader.Handle, *vfs.FS, Paths, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.handle == nil || e.fs == nil {
		return nil, nil, Paths{}, fmt.Errorf("%w: emulator is not launched", emuerr.ErrNotReady)
	}
	return e.handle, e.fs, e.paths, nil
}

// stateFS is readyFS for state operations, which the core has to support.
func (e *Emulator) stateFS() (*vfs.FS, Paths, error) {
	_, fs, paths, err := e.readyFS()
	if err != nil {
		return nil, Paths{}, err
	}
	if !adapter.SupportsSavestate(e.res.Core.Name) {
		return nil, Paths{}, fmt.Errorf("%w: core %s has no save state support", emuerr.ErrInvalidInput, e.res.Core.Name)
	}
	return fs, paths, nil
}

// Status returns the run state.
func (e *Emulator) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Handle returns the core handle, nil before launch.
func (e *Emulator) Handle() *loader.Handle {
	handle, _ := e.ready()
	return handle
}

// FS returns the core filesystem, nil before launch.
func (e *Emulator) FS() *vfs.FS {
	_, fs := e.ready()
	return fs
}

// Surface returns the rendering surface.
func (e *Emulator) Surface() surface.Surface { return e.res.Surface }

// Resolved returns the launch the emulator runs.
func (e *Emulator) Resolved() *options.Resolved { return e.res }

// SendCommand queues a command for the core's stdin.
func (e *Emulator) SendCommand(cmd Command) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enqueue(cmd)
}

// Pause pauses a running game. Pausing a paused game does nothing.
func (e *Emulator) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status == StatusRunning {
		e.enqueue(CommandPauseToggle)
	}
	e.status = StatusPaused
}

// Resume resumes a paused game. Resuming a running game does nothing.
func (e *Emulator) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status == StatusPaused {
		e.enqueue(CommandPauseToggle)
	}
	e.status = StatusRunning
}

// Restart resets the game and resumes it.
func (e *Emulator) Restart() {
	e.SendCommand(CommandReset)
	e.Resume()
}

// Resize sets the canvas size.
func (e *Emulator) Resize(size surface.Size) error {
	handle, _ := e.ready()
	if handle == nil {
		return fmt.Errorf("%w: emulator is not launched", emuerr.ErrNotReady)
	}
	handle.Module.SetCanvasSize(size.Width, size.Height)
	return nil
}

// Press holds the key bound to a player's button for hold. Unbound
// buttons are ignored. A zero player means player 1 and a zero hold means
// DefaultHold.
func (e *Emulator) Press(ctx context.Context, button string, player int, hold time.Duration) error {
	code, err := e.keyCode(button, player)
	if err != nil || code == "" {
		return err
	}
	if hold <= 0 {
		hold = DefaultHold
	}

	e.fireKey("keydown", code)
	timer := time.NewTimer(hold)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
	e.fireKey("keyup", code)
	return emuerr.CheckAborted(ctx)
}

// PressDown presses the key bound to a player's button.
func (e *Emulator) PressDown(button string, player int) error {
	code, err := e.keyCode(button, player)
	if err == nil && code != "" {
		e.fireKey("keydown", code)
	}
	return err
}

// PressUp releases the key bound to a player's button.
func (e *Emulator) PressUp(button string, player int) error {
	code, err := e.keyCode(button, player)
	if err == nil && code != "" {
		e.fireKey("keyup", code)
	}
	return err
}

// keyCode looks the binding up in the config file the core currently
// uses, so bindings changed in the core menu are honored.
func (e *Emulator) keyCode(button string, player int) (string, error) {
	_, fs, _, err := e.readyFS()
	if err != nil {
		return "", err
	}
	if player < 1 {
		player = 1
	}

	text, err := fs.ReadText(fs.Layout().ConfigFile())
	if err != nil {
		return "", fmt.Errorf("reading emulator config: %w", err)
	}
	cfg, err := vfs.ParseINI(text)
	if err != nil {
		return "", err
	}
	return KeyCode(cfg[bindingKey(button, player)]), nil
}

func (e *Emulator) fireKey(kind, code string) {
	handle, _ := e.ready()
	if handle == nil {
		return
	}
	handle.Events.FireKey(kind, code, e.res.Surface)
}

// SaveState is a save state and the screenshot stored with it.
type SaveState struct {
	State *resolvable.File
	// Thumbnail is nil unless savestate_thumbnail_enable is set.
	Thumbnail *resolvable.File
}

// SaveState asks the core for a save state and waits for it.
func (e *Emulator) SaveState(ctx context.Context) (*SaveState, error) {
	fs, paths, err := e.stateFS()
	if err != nil {
		return nil, err
	}

	e.clearStateFiles(fs, paths)
	e.SendCommand(CommandSaveState)

	var state, thumbnail []byte
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		state, err = fs.WaitForFile(gctx, paths.StateFile())
		return err
	})
	if truthy(e.res.EmulatorConfig["savestate_thumbnail_enable"]) {
		g.Go(func() error {
			var err error
			thumbnail, err = fs.WaitForFile(gctx, paths.StateThumbnail())
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("saving state: %w", err)
	}
	e.clearStateFiles(fs, paths)

	out := &SaveState{
		State: resolvable.NewFile(path.Base(paths.StateFile()), state, resolvable.DefaultMIMEType),
	}
	if thumbnail != nil {
		out.Thumbnail = resolvable.NewFile(path.Base(paths.StateThumbnail()), thumbnail, "image/png")
	}
	return out, nil
}

// LoadState stages a save state and tells the core to load it. state is
// any resolvable file spec.
func (e *Emulator) LoadState(ctx context.Context, state any) error {
	fs, paths, err := e.stateFS()
	if err != nil {
		return err
	}

	e.clearStateFiles(fs, paths)
	if err := fs.WriteFile(ctx, paths.StateFile(), state); err != nil {
		return fmt.Errorf("loading state: %w", err)
	}
	if _, err := fs.WaitForFile(ctx, paths.StateFile()); err != nil {
		return fmt.Errorf("loading state: %w", err)
	}
	e.SendCommand(CommandLoadState)
	return nil
}

// SaveSRAM flushes battery backed memory and returns it.
func (e *Emulator) SaveSRAM(ctx context.Context) (*resolvable.File, error) {
	handle, fs, paths, err := e.readyFS()
	if err != nil {
		return nil, err
	}

	fs.Unlink(paths.SRAMFile())
	if err := handle.Module.Call("_cmd_savefiles"); err != nil {
		return nil, fmt.Errorf("saving sram: %w", err)
	}
	data, err := fs.WaitForFile(ctx, paths.SRAMFile())
	if err != nil {
		return nil, fmt.Errorf("saving sram: %w", err)
	}
	return resolvable.NewFile(path.Base(paths.SRAMFile()), data, resolvable.DefaultMIMEType), nil
}

// Screenshot asks the core for a screenshot and returns it as PNG. The
// core names the file after the time it was taken, which is guessed from
// the clock when the command is sent.
func (e *Emulator) Screenshot(ctx context.Context) (*resolvable.File, error) {
	_, fs, paths, err := e.readyFS()
	if err != nil {
		return nil, err
	}

	e.SendCommand(CommandScreenshot)
	target := paths.Screenshot(e.clock())
	data, err := fs.WaitForFile(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("taking screenshot: %w", err)
	}
	fs.Unlink(target)
	return resolvable.NewFile(path.Base(target), data, "image/png"), nil
}

// Exit stops the core and removes its event handlers. It never fails;
// errors raised by the core while exiting are logged. Only the first call
// after launch has an effect.
func (e *Emulator) Exit(code int) {
	e.mu.Lock()
	handle := e.handle
	if handle == nil || e.exited {
		e.mu.Unlock()
		return
	}
	e.exited = true
	e.mu.Unlock()

	if handle.Exit != nil {
		e.bestEffort("Core exit failed", func() { handle.Exit(code) })
	}
	if handle.Events != nil {
		e.bestEffort("Removing core event listeners failed", handle.Events.RemoveAll)
	}
}

// bestEffort runs fn, logging instead of propagating a panic.
func (e *Emulator) bestEffort(msg string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Debug(msg, log.String("panic", fmt.Sprint(r)))
		}
	}()
	fn()
}

func (e *Emulator) clearStateFiles(fs *vfs.FS, paths Paths) {
	fs.Unlink(paths.StateFile())
	fs.Unlink(paths.StateThumbnail())
}

func truthy(v any) bool {
	switch value := v.(type) {
	case bool:
		return value
	case string:
		return value == "true"
	case int:
		return value != 0
	}
	return false
}
