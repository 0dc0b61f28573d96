//go:build js && wasm

// Command web exposes the emulator launcher to the page as globalThis.Emweb.
package main

import (
	"github.com/retroenv/retrogolib/log"
	"github.com/user-none/emweb/bridge/web"
)

func main() {
	logger := log.NewWithConfig(log.DefaultConfig())
	web.NewAPI(web.NewHost(logger), logger).Register("Emweb")
	select {}
}
