package vfs

import "path"

// Default roots inside the core filesystem.
const (
	DefaultUserdata = "/home/web_user/retroarch/userdata"
	DefaultBundle   = "/home/web_user/retroarch/bundle"
)

// Layout is the directory convention RetroArch expects. Saves and states
// are namespaced by the canonical core name so cores sharing one
// filesystem do not collide.
type Layout struct {
	Userdata string
	Bundle   string
}

// DefaultLayout returns the layout used by the browser builds of RetroArch.
func DefaultLayout() Layout {
	return Layout{Userdata: DefaultUserdata, Bundle: DefaultBundle}
}

// Content holds ROMs.
func (l Layout) Content() string { return path.Join(l.Userdata, "content") }

// System holds BIOS files.
func (l Layout) System() string { return path.Join(l.Userdata, "system") }

// Config holds the global shader preset.
func (l Layout) Config() string { return path.Join(l.Userdata, "config") }

// Screenshots is where the core writes screenshots.
func (l Layout) Screenshots() string { return path.Join(l.Userdata, "screenshots") }

// Shader holds shader presets.
func (l Layout) Shader() string { return path.Join(l.Bundle, "shaders", "shaders_glsl") }

// ShaderAssets holds the shader sources presets reference.
func (l Layout) ShaderAssets() string { return path.Join(l.Shader(), "shaders") }

// ConfigFile is the emulator config, retroarch.cfg.
func (l Layout) ConfigFile() string { return path.Join(l.Userdata, "retroarch.cfg") }

// CoreConfigFile is the core options config.
func (l Layout) CoreConfigFile() string {
	return path.Join(l.Userdata, "retroarch-core-options.cfg")
}

// GlobalShaderPreset references the active shader presets.
func (l Layout) GlobalShaderPreset() string { return path.Join(l.Config(), "global.glslp") }

// SaveDir holds the SRAM files of a core.
func (l Layout) SaveDir(coreName string) string {
	return path.Join(l.Userdata, "saves", coreName)
}

// StateDir holds the save states of a core.
func (l Layout) StateDir(coreName string) string {
	return path.Join(l.Userdata, "states", coreName)
}

// Dirs returns the directories created before the core starts.
func (l Layout) Dirs() []string {
	return []string{l.Config(), l.Content(), l.Shader(), l.ShaderAssets(), l.System()}
}
