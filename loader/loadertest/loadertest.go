// Package loadertest provides an in-process core for tests of code that
// launches cores.
package loadertest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/user-none/emweb/loader"
	"github.com/user-none/emweb/surface"
	"github.com/user-none/emweb/vfs"
)

// Script is a loader script the fake host accepts.
const Script = "var Module = typeof Module != 'undefined' ? Module : {};\n"

// Host imports every script as a fresh Core.
type Host struct {
	// ImportErr fails every import when set.
	ImportErr error
	// Setup runs on every core before its factory returns.
	Setup func(c *Core)

	mu       sync.Mutex
	minted   []string
	revoked  []string
	imported []string
	cores    []*Core
	next     int
}

// NewHost returns a host with no cores.
func NewHost() *Host {
	return &Host{}
}

// CreateObjectURL mints a fake blob URL.
func (h *Host) CreateObjectURL(_ []byte, _ string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	u := fmt.Sprintf("blob:test/%d", h.next)
	h.minted = append(h.minted, u)
	return u, nil
}

// RevokeObjectURL records the revocation.
func (h *Host) RevokeObjectURL(u string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.revoked = append(h.revoked, u)
}

// Import returns a factory creating a Core.
func (h *Host) Import(_ context.Context, u string) (loader.Factory, error) {
	h.mu.Lock()
	h.imported = append(h.imported, u)
	err := h.ImportErr
	h.mu.Unlock()
	if err != nil {
		return nil, err
	}

	return func(_ context.Context, cfg loader.ModuleConfig) (*loader.Handle, error) {
		c := newCore(cfg)
		if h.Setup != nil {
			h.Setup(c)
		}
		h.mu.Lock()
		h.cores = append(h.cores, c)
		h.mu.Unlock()
		return &loader.Handle{Module: c, Events: c, Exit: c.exit}, nil
	}, nil
}

// Minted returns the object URLs created so far.
func (h *Host) Minted() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.minted...)
}

// Revoked returns the object URLs revoked so far.
func (h *Host) Revoked() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.revoked...)
}

// Core returns the most recently created core, or nil.
func (h *Host) Core() *Core {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.cores) == 0 {
		return nil
	}
	return h.cores[len(h.cores)-1]
}

// Close stops every core's command loop.
func (h *Host) Close() {
	h.mu.Lock()
	cores := append([]*Core(nil), h.cores...)
	h.mu.Unlock()
	for _, c := range cores {
		c.stop()
	}
}

// KeyEvent is a key event fired at the core.
type KeyEvent struct {
	Kind   string
	Code   string
	Target surface.Surface
}

// Core is a fake core. After CallMain it polls stdin like a running core
// and passes every complete command line to OnCommand.
type Core struct {
	fs     *vfs.AferoPrimitive
	config loader.ModuleConfig

	mu          sync.Mutex
	OnCommand   func(c *Core, command string)
	OnCall      func(c *Core, name string)
	ExitPanics  bool
	ReadyAfter  int
	Args        []string
	HasArgs     bool
	readyPolls  int
	mainArgs    []string
	mainCalled  bool
	canvas      surface.Size
	calls       []string
	commands    []string
	keys        []KeyEvent
	routed      bool
	routeGlobal bool
	removed     bool
	exits       []int
	done        chan struct{}
	stopOnce    sync.Once
}

func newCore(cfg loader.ModuleConfig) *Core {
	return &Core{
		fs:     vfs.NewMemPrimitive(),
		config: cfg,
		done:   make(chan struct{}),
	}
}

// Config returns the configuration the core was created with.
func (c *Core) Config() loader.ModuleConfig { return c.config }

// FS returns the core filesystem.
func (c *Core) FS() vfs.Primitive { return c.fs }

// Ready reports true once it was asked ReadyAfter times.
func (c *Core) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readyPolls++
	return c.readyPolls > c.ReadyAfter
}

// Arguments returns the preset arguments.
func (c *Core) Arguments() ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Args, c.HasArgs
}

// CallMain records the arguments and starts the command loop.
func (c *Core) CallMain(args []string) error {
	c.mu.Lock()
	c.mainArgs = args
	c.mainCalled = true
	c.mu.Unlock()
	go c.loop()
	return nil
}

// SetCanvasSize records the size.
func (c *Core) SetCanvasSize(width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.canvas = surface.Size{Width: width, Height: height}
}

// Call records the call and runs OnCall.
func (c *Core) Call(name string) error {
	c.mu.Lock()
	c.calls = append(c.calls, name)
	onCall := c.OnCall
	c.mu.Unlock()
	if onCall != nil {
		onCall(c, name)
	}
	return nil
}

// WaitRunDependencies returns immediately.
func (c *Core) WaitRunDependencies(ctx context.Context) error {
	return ctx.Err()
}

// FireKey records the event.
func (c *Core) FireKey(kind, code string, target surface.Surface) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = append(c.keys, KeyEvent{Kind: kind, Code: code, Target: target})
}

// RouteKeyboard records the routing.
func (c *Core) RouteKeyboard(_ surface.Surface, global bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.routed = true
	c.routeGlobal = global
}

// RemoveAll records the removal.
func (c *Core) RemoveAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removed = true
}

func (c *Core) exit(code int) {
	c.mu.Lock()
	c.exits = append(c.exits, code)
	panics := c.ExitPanics
	c.mu.Unlock()
	c.stop()
	if panics {
		panic("exit")
	}
}

func (c *Core) stop() {
	c.stopOnce.Do(func() { close(c.done) })
}

func (c *Core) loop() {
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()

	var line strings.Builder
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
		}
		if c.config.Stdin == nil {
			continue
		}
		for {
			b, ok := c.config.Stdin()
			if !ok {
				break
			}
			if b != '\n' {
				line.WriteByte(b)
				continue
			}
			command := line.String()
			line.Reset()
			c.mu.Lock()
			c.commands = append(c.commands, command)
			onCommand := c.OnCommand
			c.mu.Unlock()
			if onCommand != nil {
				onCommand(c, command)
			}
		}
	}
}

// MainArgs returns the arguments main was called with and whether it was.
func (c *Core) MainArgs() ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mainArgs, c.mainCalled
}

// CanvasSize returns the last size set.
func (c *Core) CanvasSize() surface.Size {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canvas
}

// Calls returns the names of called functions.
func (c *Core) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

// Commands returns the commands read from stdin so far.
func (c *Core) Commands() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.commands...)
}

// WaitCommands blocks until n commands were read or the timeout passes.
func (c *Core) WaitCommands(n int, timeout time.Duration) []string {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if commands := c.Commands(); len(commands) >= n {
			return commands
		}
		time.Sleep(time.Millisecond)
	}
	return c.Commands()
}

// Keys returns the key events fired so far.
func (c *Core) Keys() []KeyEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]KeyEvent(nil), c.keys...)
}

// Routing reports whether keyboard routing was set up and if it is global.
func (c *Core) Routing() (routed, global bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.routed, c.routeGlobal
}

// Removed reports whether all event handlers were removed.
func (c *Core) Removed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.removed
}

// Exits returns the exit codes the core was exited with.
func (c *Core) Exits() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.exits...)
}
