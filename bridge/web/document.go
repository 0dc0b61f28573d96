//go:build js && wasm

package web

import (
	"syscall/js"

	"github.com/user-none/emweb/surface"
)

// Document is the page document.
type Document struct {
	doc js.Value
}

// NewDocument returns the global document.
func NewDocument() *Document {
	return &Document{doc: js.Global().Get("document")}
}

// Query returns the elements matching selector.
func (d *Document) Query(selector string) []surface.Surface {
	var nodes js.Value
	if err := try(func() { nodes = d.doc.Call("querySelectorAll", selector) }); err != nil {
		return nil
	}
	out := make([]surface.Surface, 0, nodes.Length())
	for i := range nodes.Length() {
		out = append(out, &Element{v: nodes.Index(i)})
	}
	return out
}

// CreateCanvas creates a detached canvas element.
func (d *Document) CreateCanvas() surface.Surface {
	return &Element{v: d.doc.Call("createElement", "canvas")}
}

// Append attaches an element to the body.
func (d *Document) Append(s surface.Surface) {
	if el, ok := s.(*Element); ok {
		d.doc.Get("body").Call("append", el.v)
	}
}

// Remove detaches an element.
func (d *Document) Remove(s surface.Surface) {
	if el, ok := s.(*Element); ok {
		el.v.Call("remove")
	}
}

// ActiveElement returns the focused element.
func (d *Document) ActiveElement() surface.Focuser {
	active := d.doc.Get("activeElement")
	if active.IsNull() || active.IsUndefined() {
		return nil
	}
	if !active.InstanceOf(js.Global().Get("HTMLElement")) {
		return nil
	}
	return &Element{v: active}
}

// AnnounceGamepads re-dispatches gamepadconnected for every connected
// gamepad, since the core only learns about gamepads through that event.
func (d *Document) AnnounceGamepads() {
	navigator := js.Global().Get("navigator")
	if navigator.Get("getGamepads").Type() != js.TypeFunction {
		return
	}
	pads := navigator.Call("getGamepads")
	event := js.Global().Get("GamepadEvent")
	for i := range pads.Length() {
		pad := pads.Index(i)
		if pad.IsNull() || pad.IsUndefined() {
			continue
		}
		init := map[string]any{"gamepad": pad}
		js.Global().Call("dispatchEvent", event.New("gamepadconnected", init))
	}
}

// Element is a page element.
type Element struct {
	v js.Value
}

// WrapElement wraps a DOM element.
func WrapElement(v js.Value) *Element {
	return &Element{v: v}
}

// Focus focuses the element.
func (e *Element) Focus() { e.v.Call("focus") }

// IsCanvas reports whether the element is a canvas.
func (e *Element) IsCanvas() bool {
	return e.v.InstanceOf(js.Global().Get("HTMLCanvasElement"))
}

func (e *Element) ID() string      { return e.v.Get("id").String() }
func (e *Element) SetID(id string) { e.v.Set("id", id) }

// Connected reports whether the element is in the document.
func (e *Element) Connected() bool { return e.v.Get("isConnected").Bool() }

// Size returns the laid out size.
func (e *Element) Size() surface.Size {
	return surface.Size{Width: e.v.Get("offsetWidth").Int(), Height: e.v.Get("offsetHeight").Int()}
}

// ApplyStyle sets inline style properties.
func (e *Element) ApplyStyle(style map[string]string) {
	s := e.v.Get("style")
	for k, v := range style {
		s.Set(k, v)
	}
}

// TabIndex returns the tabindex attribute.
func (e *Element) TabIndex() (int, bool) {
	if e.v.Call("getAttribute", "tabindex").IsNull() {
		return 0, false
	}
	return e.v.Get("tabIndex").Int(), true
}

func (e *Element) SetTabIndex(i int) { e.v.Set("tabIndex", i) }

// Handle returns the DOM element.
func (e *Element) Handle() any { return e.v }
