package options

import (
	"context"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/retroenv/retrogolib/log"
	"github.com/user-none/emweb/resolvable"
	"github.com/user-none/emweb/surface"
)

// CDN locations the default resolvers point at.
const (
	CDNBaseURL    = "https://cdn.jsdelivr.net/gh"
	CoreRepo      = "arianrhodsandlot/retroarch-emscripten-build"
	CoreVersion   = "v1.20.0"
	coreDirectory = "retroarch"
	ShaderRepo    = "libretro/glsl-shaders"
	ShaderVersion = "821487"
)

// romRepos hosts freely distributable homebrew, by ROM extension.
var romRepos = map[string]string{
	".bin": "retrobrews/md-games",
	".gb":  "retrobrews/gbc-games",
	".gba": "retrobrews/gba-games",
	".gbc": "retrobrews/gbc-games",
	".md":  "retrobrews/md-games",
	".nes": "retrobrews/nes-games",
	".sfc": "retrobrews/snes-games",
	".sms": "retrobrews/sms-games",
}

// absolutePrefixes mark strings the ROM resolver passes through.
var absolutePrefixes = []string{"http://", "https://", "//", "data:", "blob:"}

// Defaults is an immutable set of options applied under every launch.
// Derive a changed copy with With.
type Defaults struct {
	opts LaunchOptions
}

// DefaultConfig returns the stock defaults: the default emulator config,
// resolvers pointing at the public CDN and global keyboard routing.
func DefaultConfig() Defaults {
	return Defaults{opts: LaunchOptions{
		EmulatorConfig:        DefaultEmulatorConfig(),
		CoreConfig:            map[string]any{},
		RespondToGlobalEvents: Bool(true),
		ResolveCoreJS:         coreResolver("js"),
		ResolveCoreWASM:       coreResolver("wasm"),
		ResolveROM:            resolveROM,
		ResolveBIOS:           resolveBIOS,
		ResolveShader:         resolveShader,
	}}
}

// With returns new defaults with patch layered over d.
func (d Defaults) With(patch LaunchOptions) Defaults {
	return Defaults{opts: patch.overlay(d.opts)}
}

// Apply layers opts over the defaults and fills in the fetcher, document
// and logger when still unset.
func (d Defaults) Apply(opts LaunchOptions) LaunchOptions {
	out := opts.overlay(d.opts)
	if out.Fetcher == nil {
		out.Fetcher = resolvable.DefaultFetcher()
	}
	if out.Document == nil {
		out.Document = surface.NewMemoryDocument()
	}
	if out.Logger == nil {
		out.Logger = log.NewWithConfig(log.DefaultConfig())
	}
	return out
}

// EmulatorConfig returns a copy of the default emulator config.
func (d Defaults) EmulatorConfig() map[string]any {
	return Merge(nil, d.opts.EmulatorConfig)
}

// DefaultEmulatorConfig returns the retroarch.cfg settings every launch
// starts from. Hotkeys are unbound so they cannot collide with game input.
func DefaultEmulatorConfig() map[string]any {
	cfg := map[string]any{
		"menu_driver":                          "rgui",
		"notification_show_when_menu_is_alive": true,
		"savestate_auto_load":                  true,
		"savestate_thumbnail_enable":           true,
		"stdin_cmd_enable":                     true,
		"video_shader_enable":                  true,
	}
	for _, hotkey := range unboundHotkeys {
		cfg[hotkey] = "nul"
	}
	for player := 1; player <= 4; player++ {
		cfg["input_player"+strconv.Itoa(player)+"_analog_dpad_mode"] = 1
	}
	return cfg
}

var unboundHotkeys = []string{
	"input_audio_mute",
	"input_cheat_index_minus",
	"input_cheat_index_plus",
	"input_cheat_toggle",
	"input_desktop_menu_toggle",
	"input_exit_emulator",
	"input_fps_toggle",
	"input_frame_advance",
	"input_game_focus_toggle",
	"input_grab_mouse_toggle",
	"input_hold_fast_forward",
	"input_hold_slowmotion",
	"input_load_state",
	"input_netplay_game_watch",
	"input_netplay_player_chat",
	"input_pause_toggle",
	"input_reset",
	"input_rewind",
	"input_save_state",
	"input_screenshot",
	"input_shader_next",
	"input_shader_prev",
	"input_shader_toggle",
	"input_state_slot_decrease",
	"input_state_slot_increase",
	"input_toggle_fast_forward",
	"input_toggle_fullscreen",
	"input_volume_down",
	"input_volume_up",
}

func coreResolver(ext string) Resolver {
	return func(_ context.Context, raw any, _ *LaunchOptions) (any, error) {
		id, ok := raw.(string)
		if !ok {
			return raw, nil
		}
		return CoreURL(id, ext), nil
	}
}

// CoreURL returns the CDN URL of a core file, ext being js or wasm.
func CoreURL(id, ext string) string {
	return CDNBaseURL + "/" + CoreRepo + "@" + CoreVersion + "/" + coreDirectory + "/" + id + "_libretro." + ext
}

func resolveROM(_ context.Context, raw any, _ *LaunchOptions) (any, error) {
	file, ok := raw.(string)
	if !ok {
		return raw, nil
	}
	if isAbsoluteURL(file) {
		return file, nil
	}
	if repo, ok := romRepos[path.Ext(file)]; ok {
		return CDNBaseURL + "/" + repo + "@master/" + encodeComponent(file), nil
	}
	return file, nil
}

func resolveBIOS(_ context.Context, raw any, _ *LaunchOptions) (any, error) {
	return raw, nil
}

func resolveShader(_ context.Context, name string, _ *LaunchOptions) ([]any, error) {
	if name == "" {
		return nil, nil
	}
	base := CDNBaseURL + "/" + ShaderRepo + "@" + ShaderVersion + "/"
	dir, file := path.Split(name)
	preset := base + name + ".glslp"
	shader := base + dir + "shaders/" + file + ".glsl"
	return []any{preset, shader}, nil
}

// encodeComponent escapes s for use as one URL path segment, spaces as %20.
func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func isAbsoluteURL(s string) bool {
	for _, prefix := range absolutePrefixes {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}

// Style returns the inline style of the surface: a black, pixelated
// backdrop, plus a full viewport layout when the caller named no target.
// custom is layered last.
func Style(hasTarget bool, custom map[string]string) map[string]string {
	appearance := map[string]string{
		"backgroundColor": "black",
		"imageRendering":  "pixelated",
	}
	if hasTarget {
		return mergeStyle(appearance, custom)
	}
	layout := map[string]string{
		"height":   "100%",
		"left":     "0",
		"position": "fixed",
		"top":      "0",
		"width":    "100%",
		"zIndex":   "1",
	}
	return mergeStyle(layout, appearance, custom)
}
