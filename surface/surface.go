// Package surface abstracts the element a core renders into and the
// document that hosts it.
package surface

// CanvasID is the id every surface carries. Emscripten looks the canvas up
// by this id.
const CanvasID = "canvas"

// Size is an on-screen size in CSS pixels.
type Size struct {
	Width  int
	Height int
}

// IsZero reports whether neither dimension is set.
func (s Size) IsZero() bool {
	return s.Width == 0 && s.Height == 0
}

// Focuser is anything that can take keyboard focus.
type Focuser interface {
	Focus()
}

// Surface is a rendering target element.
type Surface interface {
	Focuser

	// IsCanvas reports whether the element can host a rendering context.
	IsCanvas() bool
	ID() string
	SetID(id string)
	// Connected reports whether the element is attached to the document.
	Connected() bool
	// Size returns the current laid out size.
	Size() Size
	// ApplyStyle sets inline style properties, keyed by camel-cased name.
	ApplyStyle(style map[string]string)
	// TabIndex returns the explicit tab index, if one is set.
	TabIndex() (int, bool)
	SetTabIndex(i int)
	// Handle returns the host element, passed as-is to the core.
	Handle() any
}

// Document is the host page.
type Document interface {
	// Query returns all elements matching a CSS selector.
	Query(selector string) []Surface
	// CreateCanvas creates a detached canvas element.
	CreateCanvas() Surface
	// Append attaches an element to the document body.
	Append(s Surface)
	// Remove detaches an element. Detached elements are ignored.
	Remove(s Surface)
	// ActiveElement returns the focused element, or nil.
	ActiveElement() Focuser
	// AnnounceGamepads re-dispatches connection events for gamepads that
	// were connected before the core started listening.
	AnnounceGamepads()
}
