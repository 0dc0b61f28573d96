//go:build js && wasm

package web

import (
	"context"
	"fmt"
	"syscall/js"

	"github.com/user-none/emweb/emuerr"
	"github.com/user-none/emweb/surface"
	"github.com/user-none/emweb/vfs"
)

// module implements loader.Module on an Emscripten module object.
type module struct {
	core *core
	fs   *fsPrimitive
}

func (m *module) FS() vfs.Primitive { return m.fs }

// Ready reports whether the wasm instance is available. Older builds call
// it asm, newer ones wasmExports.
func (m *module) Ready() bool {
	mod := m.core.module
	return mod.Get("asm").Truthy() || mod.Get("wasmExports").Truthy()
}

func (m *module) Arguments() ([]string, bool) {
	v := m.core.module.Get("arguments")
	if !v.Truthy() {
		return nil, false
	}
	args := make([]string, 0, v.Length())
	for i := range v.Length() {
		args = append(args, v.Index(i).String())
	}
	return args, true
}

func (m *module) CallMain(args []string) error {
	list := make([]any, 0, len(args))
	for _, a := range args {
		list = append(list, a)
	}
	return try(func() { m.core.module.Call("callMain", list) })
}

func (m *module) SetCanvasSize(width, height int) {
	_ = try(func() { m.core.module.Call("setCanvasSize", width, height) })
}

func (m *module) Call(name string) error {
	if m.core.module.Get(name).Type() != js.TypeFunction {
		return nil
	}
	return try(func() { m.core.module.Call(name) })
}

func (m *module) WaitRunDependencies(ctx context.Context) error {
	_, err := await(ctx, m.core.depsDone)
	return err
}

// fsPrimitive implements vfs.Primitive on the Emscripten FS object.
type fsPrimitive struct {
	fs js.Value
}

func (p *fsPrimitive) MkdirTree(dir string) error {
	return try(func() { p.fs.Call("mkdirTree", dir) })
}

func (p *fsPrimitive) CreateDataFile(parent, name string, data []byte, canRead, canWrite bool) error {
	return try(func() { p.fs.Call("createDataFile", parent, name, uint8Array(data), canRead, canWrite) })
}

func (p *fsPrimitive) ReadFile(name string) ([]byte, error) {
	if !p.Exists(name) {
		return nil, fmt.Errorf("%w: %s", emuerr.ErrNotFound, name)
	}
	var data []byte
	err := try(func() {
		arr := p.fs.Call("readFile", name, map[string]any{"encoding": "binary"})
		data = bytesOf(arr)
	})
	return data, err
}

func (p *fsPrimitive) WriteFile(name string, data []byte) error {
	return try(func() { p.fs.Call("writeFile", name, uint8Array(data)) })
}

func (p *fsPrimitive) Unlink(name string) error {
	return try(func() { p.fs.Call("unlink", name) })
}

func (p *fsPrimitive) Exists(name string) bool {
	var ok bool
	_ = try(func() { ok = p.fs.Call("analyzePath", name).Get("exists").Bool() })
	return ok
}

// events implements loader.Events on the Emscripten JSEvents registry.
type events struct {
	core     *core
	registry js.Value
}

var keyboardEvents = map[string]bool{"keydown": true, "keypress": true, "keyup": true}

func elementOf(s surface.Surface) js.Value {
	if s == nil {
		return js.Undefined()
	}
	if v, ok := s.Handle().(js.Value); ok {
		return v
	}
	return js.Undefined()
}

// FireKey calls the registered listeners directly; the core would ignore
// synthetic events dispatched on the page.
func (e *events) FireKey(kind, code string, target surface.Surface) {
	handlers := e.registry.Get("eventHandlers")
	event := map[string]any{"code": code, "target": elementOf(target)}
	for i := range handlers.Length() {
		h := handlers.Index(i)
		if h.Get("eventTypeString").String() != kind {
			continue
		}
		_ = try(func() { h.Call("eventListenerFunc", event) })
	}
}

// RouteKeyboard moves the core's keyboard handlers to the document or the
// element. Element routing only forwards events aimed at the element and
// focuses it when clicked.
func (e *events) RouteKeyboard(target surface.Surface, global bool) {
	el := elementOf(target)
	doc := js.Global().Get("document")
	if !global {
		el.Call("addEventListener", "click", e.core.fn(func(js.Value, []js.Value) any {
			el.Call("focus")
			return nil
		}))
	}

	var matched []js.Value
	handlers := e.registry.Get("eventHandlers")
	for i := range handlers.Length() {
		h := handlers.Index(i)
		t := h.Get("target")
		if keyboardEvents[h.Get("eventTypeString").String()] && (t.Equal(doc) || t.Equal(el)) {
			matched = append(matched, h)
		}
	}

	newTarget := doc
	if !global {
		newTarget = el
	}
	object := js.Global().Get("Object")
	for _, h := range matched {
		original := h.Get("handlerFunc")
		e.registry.Call("registerOrRemoveHandler", map[string]any{
			"eventTypeString": h.Get("eventTypeString"),
			"target":          h.Get("target"),
		})
		wrapped := e.core.fn(func(this js.Value, args []js.Value) any {
			if global || (len(args) > 0 && args[0].Get("target").Equal(el)) {
				callArgs := make([]any, len(args))
				for i, a := range args {
					callArgs[i] = a
				}
				return original.Call("apply", this, callArgs)
			}
			return nil
		})
		replacement := object.Call("assign", object.New(), h, map[string]any{
			"handlerFunc": wrapped,
			"target":      newTarget,
		})
		e.registry.Call("registerOrRemoveHandler", replacement)
	}
}

func (e *events) RemoveAll() {
	_ = try(func() { e.registry.Call("removeAllEventListeners") })
	e.core.release()
}
