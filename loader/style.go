package loader

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/user-none/emweb/emuerr"
)

// Style is the packaging of a core loader script.
type Style int

// Known script styles.
const (
	StyleUnknown Style = iota
	// StyleGlobal scripts declare a global Module and run on evaluation.
	StyleGlobal
	// StyleModule scripts are ES modules exporting a module factory.
	StyleModule
)

func (s Style) String() string {
	switch s {
	case StyleGlobal:
		return "global"
	case StyleModule:
		return "module"
	default:
		return "unknown"
	}
}

const (
	globalMarker = "var Module"
	moduleMarker = "import.meta.url"
	readyCall    = "readyPromiseResolve(Module)"
)

// DetectStyle inspects a core loader script.
func DetectStyle(src string) Style {
	switch {
	case strings.HasPrefix(src, globalMarker):
		return StyleGlobal
	case strings.Contains(src, moduleMarker):
		return StyleModule
	default:
		return StyleUnknown
	}
}

// envelope is the object getEmscripten hands back to the runtime.
const envelope = `{
    AL: typeof AL === 'undefined' ? null: AL,
    Browser: typeof Browser === 'undefined' ? null: Browser,
    JSEvents,
    Module,
    exit: _emscripten_force_exit
  }`

var identifier = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// Patch rewrites a core loader script into an ES module exporting
// getEmscripten({ Module }). Global scripts get their body wrapped and the
// filesystem helpers exposed on Module. Module scripts resolve their ready
// promise with the envelope and gain a getEmscripten that calls the
// factory named after the core.
func Patch(style Style, src, name string) (string, error) {
	var b strings.Builder
	switch style {
	case StyleGlobal:
		b.WriteString("export function getEmscripten({ Module }) {\n")
		b.WriteString(src)
		b.WriteString(";\n")
		b.WriteString("  Module.FS = FS;\n")
		b.WriteString("  Module.PATH = PATH;\n")
		b.WriteString("  Module.ERRNO_CODES = ERRNO_CODES;\n")
		b.WriteString("  return " + envelope + "\n")
		b.WriteString("}\n")

	case StyleModule:
		if !identifier.MatchString(name) {
			return "", fmt.Errorf("%w: core name %q is not a script identifier", emuerr.ErrInvalidInput, name)
		}
		b.WriteString(strings.Replace(src, readyCall, "readyPromiseResolve("+envelope+")", 1))
		b.WriteString(";\n")
		b.WriteString("export function getEmscripten({ Module }) {\n")
		b.WriteString("  return (libretro_" + name + " || " + name + ")(Module)\n")
		b.WriteString("}\n")

	default:
		return "", fmt.Errorf("%w: neither a global nor a module script", emuerr.ErrUnsupportedScript)
	}
	return b.String(), nil
}
