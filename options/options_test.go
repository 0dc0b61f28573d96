package options

import (
	"context"
	"testing"

	"github.com/retroenv/retrogolib/assert"
)

func TestDefaultEmulatorConfig(t *testing.T) {
	cfg := DefaultEmulatorConfig()

	assert.Equal(t, "rgui", cfg["menu_driver"])
	assert.Equal(t, true, cfg["stdin_cmd_enable"])
	assert.Equal(t, true, cfg["savestate_thumbnail_enable"])
	assert.Equal(t, "nul", cfg["input_pause_toggle"])
	assert.Equal(t, "nul", cfg["input_game_focus_toggle"])
	assert.Equal(t, 1, cfg["input_player4_analog_dpad_mode"])
}

func TestDefaultsImmutable(t *testing.T) {
	base := DefaultConfig()
	derived := base.With(LaunchOptions{
		EmulatorConfig: map[string]any{"menu_driver": "xmb"},
		Shader:         "crt/crt-easymode",
	})

	assert.Equal(t, "rgui", base.EmulatorConfig()["menu_driver"])
	assert.Equal(t, "xmb", derived.EmulatorConfig()["menu_driver"])

	cfg := base.EmulatorConfig()
	cfg["menu_driver"] = "changed"
	assert.Equal(t, "rgui", base.EmulatorConfig()["menu_driver"])

	opts := derived.Apply(LaunchOptions{Core: "fceumm"})
	assert.Equal(t, "crt/crt-easymode", opts.Shader)
	assert.Equal(t, "fceumm", opts.CoreID())
}

func TestApplyLayersCallOptions(t *testing.T) {
	opts := DefaultConfig().Apply(LaunchOptions{
		Core:                  "snes9x",
		EmulatorConfig:        map[string]any{"savestate_thumbnail_enable": false},
		RespondToGlobalEvents: Bool(false),
	})

	assert.Equal(t, false, opts.EmulatorConfig["savestate_thumbnail_enable"])
	assert.Equal(t, "rgui", opts.EmulatorConfig["menu_driver"])
	assert.False(t, opts.GlobalEvents())
	assert.NotNil(t, opts.Fetcher)
	assert.NotNil(t, opts.Document)
	assert.NotNil(t, opts.Logger)
	assert.NotNil(t, opts.ResolveROM)
}

func TestCoreID(t *testing.T) {
	assert.Equal(t, "fceumm", (&LaunchOptions{Core: "fceumm"}).CoreID())
	assert.Equal(t, "mgba", (&LaunchOptions{Core: CoreFiles{Name: "mgba"}}).CoreID())
	assert.Equal(t, "", (&LaunchOptions{}).CoreID())
	assert.Equal(t, "snes9x", LaunchOptions{Core: "snes9x"}.CoreID())
}

func TestDefaultResolvers(t *testing.T) {
	ctx := context.Background()
	d := DefaultConfig()

	js, err := d.opts.ResolveCoreJS(ctx, "fceumm", nil)
	assert.NoError(t, err)
	assert.Equal(t, "https://cdn.jsdelivr.net/gh/arianrhodsandlot/retroarch-emscripten-build@v1.20.0/retroarch/fceumm_libretro.js", js)

	wasm, err := d.opts.ResolveCoreWASM(ctx, "fceumm", nil)
	assert.NoError(t, err)
	assert.Equal(t, "https://cdn.jsdelivr.net/gh/arianrhodsandlot/retroarch-emscripten-build@v1.20.0/retroarch/fceumm_libretro.wasm", wasm)

	tests := []struct {
		rom  string
		want string
	}{
		{"flappybird.nes", "https://cdn.jsdelivr.net/gh/retrobrews/nes-games@master/flappybird.nes"},
		{"Super Game.sfc", "https://cdn.jsdelivr.net/gh/retrobrews/snes-games@master/Super%20Game.sfc"},
		{"https://example.com/a.nes", "https://example.com/a.nes"},
		{"custom.rom", "custom.rom"},
	}
	for _, tt := range tests {
		got, err := d.opts.ResolveROM(ctx, tt.rom, nil)
		assert.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	shaders, err := d.opts.ResolveShader(ctx, "crt/crt-easymode", nil)
	assert.NoError(t, err)
	assert.Equal(t, []any{
		"https://cdn.jsdelivr.net/gh/libretro/glsl-shaders@821487/crt/crt-easymode.glslp",
		"https://cdn.jsdelivr.net/gh/libretro/glsl-shaders@821487/crt/shaders/crt-easymode.glsl",
	}, shaders)
}

func TestStyle(t *testing.T) {
	withTarget := Style(true, map[string]string{"width": "640px"})
	assert.Equal(t, map[string]string{
		"backgroundColor": "black",
		"imageRendering":  "pixelated",
		"width":           "640px",
	}, withTarget)

	fullscreen := Style(false, map[string]string{"zIndex": "10"})
	assert.Equal(t, "fixed", fullscreen["position"])
	assert.Equal(t, "100%", fullscreen["height"])
	assert.Equal(t, "10", fullscreen["zIndex"])
	assert.Equal(t, "black", fullscreen["backgroundColor"])
}
