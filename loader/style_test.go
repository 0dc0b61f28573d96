package loader

import (
	"errors"
	"strings"
	"testing"

	"github.com/retroenv/retrogolib/assert"
	"github.com/user-none/emweb/emuerr"
)

func TestDetectStyle(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want Style
	}{
		{"global", "var Module = typeof Module != 'undefined' ? Module : {};", StyleGlobal},
		{"module", "var fceumm = (() => { var _scriptDir = import.meta.url; })();", StyleModule},
		{"global wins", "var Module = {}; import.meta.url", StyleGlobal},
		{"leading whitespace", "  var Module = {};", StyleUnknown},
		{"unknown", "console.log('hi')", StyleUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectStyle(tt.src))
		})
	}
}

func TestPatchGlobal(t *testing.T) {
	src := "var Module = {}; function _emscripten_force_exit() {}"
	out, err := Patch(StyleGlobal, src, "fceumm")
	assert.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "export function getEmscripten({ Module }) {\n"+src+";"))
	assert.Contains(t, out, "Module.FS = FS;")
	assert.Contains(t, out, "Module.PATH = PATH;")
	assert.Contains(t, out, "Module.ERRNO_CODES = ERRNO_CODES;")
	assert.Contains(t, out, "exit: _emscripten_force_exit")
	assert.Contains(t, out, "AL: typeof AL === 'undefined' ? null: AL")
}

func TestPatchModule(t *testing.T) {
	src := "var _scriptDir = import.meta.url; readyPromiseResolve(Module); readyPromiseResolve(Module);"
	out, err := Patch(StyleModule, src, "genesis_plus_gx")
	assert.NoError(t, err)

	// only the first call is rewritten
	assert.Equal(t, 1, strings.Count(out, "readyPromiseResolve(Module)"))
	assert.Contains(t, out, "readyPromiseResolve({")
	assert.Contains(t, out, "return (libretro_genesis_plus_gx || genesis_plus_gx)(Module)")
	assert.True(t, strings.HasPrefix(out, "var _scriptDir"))
}

func TestPatchErrors(t *testing.T) {
	_, err := Patch(StyleUnknown, "x", "fceumm")
	assert.True(t, errors.Is(err, emuerr.ErrUnsupportedScript))

	_, err = Patch(StyleModule, "import.meta.url", "bad-name")
	assert.True(t, errors.Is(err, emuerr.ErrInvalidInput))
}

func TestStyleString(t *testing.T) {
	assert.Equal(t, "global", StyleGlobal.String())
	assert.Equal(t, "module", StyleModule.String())
	assert.Equal(t, "unknown", StyleUnknown.String())
}
