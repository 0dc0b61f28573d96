package launcher

import (
	"sync"

	"github.com/user-none/emweb/emulator"
)

// CommandSender sends commands to a running core.
type CommandSender interface {
	SendCommand(cmd emulator.Command) error
}

// GameFocus tracks RetroArch game focus mode. In game focus the core
// passes every key to the game instead of treating some as hotkeys. The
// core only offers a toggle, so the state is tracked here.
type GameFocus struct {
	sender CommandSender

	mu sync.Mutex
	on bool
}

// NewGameFocus returns a tracker for a core whose focus mode is initially on.
func NewGameFocus(sender CommandSender, on bool) *GameFocus {
	return &GameFocus{sender: sender, on: on}
}

// Enabled reports whether game focus is on.
func (g *GameFocus) Enabled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.on
}

// Enable turns game focus on.
func (g *GameFocus) Enable() error {
	return g.set(true)
}

// Disable turns game focus off.
func (g *GameFocus) Disable() error {
	return g.set(false)
}

func (g *GameFocus) set(on bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.on == on {
		return nil
	}
	if err := g.sender.SendCommand(emulator.CommandGameFocusToggle); err != nil {
		return err
	}
	g.on = on
	return nil
}
