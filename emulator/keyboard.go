package emulator

import (
	"strconv"
	"strings"
)

// keyboardCodes maps RetroArch key names to DOM KeyboardEvent.code values.
// Names without a code map to "".
var keyboardCodes = map[string]string{
	"add":          "NumpadAdd",
	"alt":          "AltLeft",
	"backquote":    "Backquote",
	"backslash":    "",
	"backspace":    "Backspace",
	"capslock":     "CapsLock",
	"comma":        "Comma",
	"ctrl":         "ControlLeft",
	"del":          "Delete",
	"divide":       "NumpadDivide",
	"down":         "ArrowDown",
	"end":          "End",
	"enter":        "Enter",
	"equals":       "Equal",
	"escape":       "Escape",
	"home":         "Home",
	"insert":       "Insert",
	"kp_enter":     "NumpadEnter",
	"kp_equals":    "NumpadEquals",
	"kp_minus":     "NumpadSubtract",
	"kp_period":    "NumpadDecimal",
	"kp_plus":      "NumpadAdd",
	"left":         "ArrowLeft",
	"leftbracket":  "BracketLeft",
	"minus":        "Minus",
	"multiply":     "NumpadMultiply",
	"numlock":      "NumLock",
	"pagedown":     "PageDown",
	"pageup":       "PageUp",
	"pause":        "Pause",
	"period":       "Period",
	"print_screen": "PrintScreen",
	"quote":        "Quote",
	"ralt":         "AltRight",
	"rctrl":        "ControlRight",
	"right":        "ArrowRight",
	"rightbracket": "BracketRight",
	"rshift":       "ShiftRight",
	"scroll_lock":  "ScrollLock",
	"semicolon":    "Semicolon",
	"shift":        "ShiftLeft",
	"slash":        "Slash",
	"space":        "Space",
	"subtract":     "NumpadSubtract",
	"tab":          "Tab",
	"tilde":        "",
	"up":           "ArrowUp",
}

// unbound is the RetroArch value for a button without a key.
const unbound = "nul"

// KeyCode translates a RetroArch key name into a keyboard event code.
// It returns "" for unbound and unknown keys.
func KeyCode(key string) string {
	if key == "" || key == unbound {
		return ""
	}

	n := len(key)
	switch {
	case n == 1:
		return "Key" + strings.ToUpper(key)
	case key[0] == 'f' && (n == 2 || n == 3):
		return strings.ToUpper(key)
	case n == 4 && strings.HasPrefix(key, "num"):
		return "Numpad" + key[n-1:]
	case n == 7 && strings.HasPrefix(key, "keypad"):
		return "Digit" + key[n-1:]
	}
	return keyboardCodes[key]
}

// bindingKey is the config key holding a player's button binding.
func bindingKey(button string, player int) string {
	return "input_player" + strconv.Itoa(player) + "_" + button
}
