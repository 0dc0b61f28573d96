package loader

import (
	"context"

	"github.com/user-none/emweb/resolvable"
	"github.com/user-none/emweb/surface"
	"github.com/user-none/emweb/vfs"
)

// Module is the initialized core.
type Module interface {
	// FS returns the core filesystem.
	FS() vfs.Primitive
	// Ready reports whether the core's execution handle exists.
	Ready() bool
	// Arguments returns the preset main arguments, if any were configured.
	Arguments() ([]string, bool)
	// CallMain starts the core's main loop.
	CallMain(args []string) error
	// SetCanvasSize resizes the drawing surface.
	SetCanvasSize(width, height int)
	// Call invokes an exported core function by name. Missing functions
	// are ignored.
	Call(name string) error
	// WaitRunDependencies blocks until the core reports no outstanding
	// run dependencies.
	WaitRunDependencies(ctx context.Context) error
}

// Events is the core's registry of input event handlers.
type Events interface {
	// FireKey calls every handler registered for kind ("keydown",
	// "keyup") with an event carrying code and target.
	FireKey(kind, code string, target surface.Surface)
	// RouteKeyboard re-registers the keyboard handlers on the document
	// when global is set, otherwise on target, where they only see events
	// aimed at target.
	RouteKeyboard(target surface.Surface, global bool)
	// RemoveAll unregisters every handler.
	RemoveAll()
}

// Handle is what a core factory hands back.
type Handle struct {
	Module Module
	Events Events
	// Audio and Browser are the core's audio and browser helper objects.
	// Either may be nil.
	Audio   any
	Browser any
	// Exit force exits the core runtime.
	Exit func(code int)
}

// ModuleConfig is passed to a core factory.
type ModuleConfig struct {
	Canvas     surface.Surface
	WASMBinary []byte
	// Stdin is polled by the core for command bytes.
	Stdin    func() (byte, bool)
	Print    func(line string)
	PrintErr func(line string)
	// Overrides are applied last on the module object.
	Overrides map[string]any
}

// Factory initializes a core.
type Factory func(ctx context.Context, cfg ModuleConfig) (*Handle, error)

// Host evaluates patched core scripts. It mints the object URLs scripts
// are imported from.
type Host interface {
	resolvable.URLMinter
	// Import evaluates the module at url and returns its getEmscripten export.
	Import(ctx context.Context, url string) (Factory, error)
}
