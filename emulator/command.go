package emulator

// Command is a RetroArch stdin command.
type Command string

// Commands sent to the core.
const (
	CommandReset           Command = "RESET"
	CommandPauseToggle     Command = "PAUSE_TOGGLE"
	CommandSaveState       Command = "SAVE_STATE"
	CommandLoadState       Command = "LOAD_STATE"
	CommandScreenshot      Command = "SCREENSHOT"
	CommandGameFocusToggle Command = "GAME_FOCUS_TOGGLE"
)

// message is a queued command line and the read position within it.
type message struct {
	data []byte
	pos  int
}

// enqueue appends a command line. The caller holds e.mu.
func (e *Emulator) enqueue(cmd Command) {
	e.queue = append(e.queue, &message{data: []byte(string(cmd) + "\n")})
}

// Stdin hands the core the next queued byte. The core polls it from its
// main loop, one byte per call, and stops at the first false.
func (e *Emulator) Stdin() (byte, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for len(e.queue) > 0 {
		msg := e.queue[0]
		if msg.pos >= len(msg.data) {
			e.queue = e.queue[1:]
			continue
		}
		b := msg.data[msg.pos]
		msg.pos++
		return b, true
	}
	return 0, false
}
