//go:build js && wasm

// Package web binds the launcher to a browser page through syscall/js.
package web

import (
	"context"
	"errors"
	"fmt"
	"syscall/js"
)

// jsError converts a recovered value raised by a JavaScript call.
func jsError(r any) error {
	switch v := r.(type) {
	case js.Error:
		return v
	case error:
		return v
	default:
		return fmt.Errorf("%v", v)
	}
}

// try runs fn and turns a JavaScript exception into an error.
func try(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = jsError(r)
		}
	}()
	fn()
	return nil
}

func isThenable(v js.Value) bool {
	return v.Type() == js.TypeObject && v.Get("then").Type() == js.TypeFunction
}

// await blocks until a promise settles or ctx ends. Non promise values are
// returned as they are.
func await(ctx context.Context, v js.Value) (js.Value, error) {
	if !isThenable(v) {
		return v, nil
	}

	type result struct {
		value js.Value
		err   error
	}
	done := make(chan result, 1)
	onResolve := js.FuncOf(func(_ js.Value, args []js.Value) any {
		value := js.Undefined()
		if len(args) > 0 {
			value = args[0]
		}
		done <- result{value: value}
		return nil
	})
	onReject := js.FuncOf(func(_ js.Value, args []js.Value) any {
		err := errors.New("promise rejected")
		if len(args) > 0 {
			err = js.Error{Value: args[0]}
		}
		done <- result{err: err}
		return nil
	})
	v.Call("then", onResolve, onReject)

	select {
	case r := <-done:
		onResolve.Release()
		onReject.Release()
		return r.value, r.err
	case <-ctx.Done():
		// the callbacks stay alive; the promise may still settle
		return js.Undefined(), ctx.Err()
	}
}

// promise runs fn on a goroutine and returns a promise of its result.
// Go code must not block the JavaScript event loop.
func promise(fn func() (any, error)) js.Value {
	var executor js.Func
	executor = js.FuncOf(func(_ js.Value, args []js.Value) any {
		resolve, reject := args[0], args[1]
		go func() {
			defer executor.Release()
			v, err := fn()
			if err != nil {
				reject.Invoke(js.Global().Get("Error").New(err.Error()))
				return
			}
			resolve.Invoke(v)
		}()
		return nil
	})
	return js.Global().Get("Promise").New(executor)
}

func uint8Array(data []byte) js.Value {
	arr := js.Global().Get("Uint8Array").New(len(data))
	js.CopyBytesToJS(arr, data)
	return arr
}

func bytesOf(v js.Value) []byte {
	if v.InstanceOf(js.Global().Get("ArrayBuffer")) {
		v = js.Global().Get("Uint8Array").New(v)
	}
	data := make([]byte, v.Get("length").Int())
	js.CopyBytesToGo(data, v)
	return data
}

func isBinary(v js.Value) bool {
	return v.InstanceOf(js.Global().Get("Uint8Array")) || v.InstanceOf(js.Global().Get("ArrayBuffer"))
}

// toGo converts a JavaScript value into the shapes file specs and config
// maps use: strings, numbers, booleans, []byte, []any and map[string]any.
// Functions become suppliers.
func toGo(v js.Value) any {
	switch v.Type() {
	case js.TypeUndefined, js.TypeNull:
		return nil
	case js.TypeString:
		return v.String()
	case js.TypeNumber:
		f := v.Float()
		if f == float64(int(f)) {
			return int(f)
		}
		return f
	case js.TypeBoolean:
		return v.Bool()
	case js.TypeFunction:
		return func(ctx context.Context) (any, error) {
			var out js.Value
			if err := try(func() { out = v.Invoke() }); err != nil {
				return nil, err
			}
			out, err := await(ctx, out)
			if err != nil {
				return nil, err
			}
			return toGo(out), nil
		}
	}

	if isBinary(v) {
		return bytesOf(v)
	}
	if v.InstanceOf(js.Global().Get("Blob")) {
		return blobSpec(v)
	}
	if js.Global().Get("Array").Call("isArray", v).Bool() {
		n := v.Length()
		out := make([]any, 0, n)
		for i := range n {
			out = append(out, toGo(v.Index(i)))
		}
		return out
	}
	keys := js.Global().Get("Object").Call("keys", v)
	out := make(map[string]any, keys.Length())
	for i := range keys.Length() {
		key := keys.Index(i).String()
		out[key] = toGo(v.Get(key))
	}
	return out
}

// blobSpec reads a Blob on demand. Files keep their name.
func blobSpec(v js.Value) any {
	read := func(ctx context.Context) (any, error) {
		var pending js.Value
		if err := try(func() { pending = v.Call("arrayBuffer") }); err != nil {
			return nil, err
		}
		buf, err := await(ctx, pending)
		if err != nil {
			return nil, err
		}
		return bytesOf(buf), nil
	}
	if name := v.Get("name"); name.Type() == js.TypeString && name.String() != "" {
		return map[string]any{"fileName": name.String(), "fileContent": read}
	}
	return read
}

// toJS converts config values for the module object.
func toJS(v any) any {
	switch value := v.(type) {
	case []byte:
		return uint8Array(value)
	case map[string]any:
		obj := js.Global().Get("Object").New()
		for k, item := range value {
			obj.Set(k, toJS(item))
		}
		return obj
	case []any:
		arr := js.Global().Get("Array").New(len(value))
		for i, item := range value {
			arr.SetIndex(i, toJS(item))
		}
		return arr
	default:
		return js.ValueOf(v)
	}
}
