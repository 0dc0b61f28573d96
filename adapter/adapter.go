// Package adapter describes the libretro cores that can be booted in the
// browser: their RetroArch display names, the systems they emulate and
// the content they accept.
package adapter

import (
	"slices"
	"sort"
	"strings"

	emucore "github.com/user-none/eblitui/api"
)

// Core is the registry entry for one libretro core.
//
// Info.Name is the core id used in file names such as fceumm_libretro.wasm.
// Info.CoreName is the canonical name RetroArch uses for per-core save and
// state directories.
type Core struct {
	Info emucore.SystemInfo

	Savestate bool
}

// SupportsExtension reports whether the core accepts content named with ext.
func (c Core) SupportsExtension(ext string) bool {
	ext = strings.ToLower(ext)
	return slices.ContainsFunc(c.Info.Extensions, func(e string) bool {
		return strings.ToLower(e) == ext
	})
}

// Describe returns the core as plain values for the page: its id, system,
// file extensions, RetroPad buttons and save state support.
func (c Core) Describe() map[string]any {
	buttons := make([]any, 0, len(c.Info.Buttons))
	for _, b := range c.Info.Buttons {
		buttons = append(buttons, b.Name)
	}
	exts := make([]any, 0, len(c.Info.Extensions))
	for _, ext := range c.Info.Extensions {
		exts = append(exts, ext)
	}
	return map[string]any{
		"id":         c.Info.Name,
		"name":       CanonicalName(c.Info.Name),
		"system":     c.Info.ConsoleName,
		"extensions": exts,
		"buttons":    buttons,
		"players":    c.Info.Players,
		"savestate":  c.Savestate,
	}
}

// Lookup returns the registry entry for a core id.
func Lookup(id string) (Core, bool) {
	c, ok := cores[id]
	return c, ok
}

// CanonicalName returns the name RetroArch reports for a core. Cores
// missing from the registry are known by their id.
func CanonicalName(id string) string {
	if c, ok := cores[id]; ok && c.Info.CoreName != "" {
		return c.Info.CoreName
	}
	return id
}

// Extensions returns the content extensions of a core, or nil when the
// core is unknown.
func Extensions(id string) []string {
	if c, ok := cores[id]; ok {
		return slices.Clone(c.Info.Extensions)
	}
	return nil
}

// SupportsSavestate reports whether a core can save and load states.
// Cores missing from the registry are assumed to.
func SupportsSavestate(id string) bool {
	if c, ok := cores[id]; ok {
		return c.Savestate
	}
	return true
}

// SystemCore returns the default core for a system short name such as nes.
func SystemCore(system string) (string, bool) {
	id, ok := systemCores[strings.ToLower(system)]
	return id, ok
}

// Systems returns the system short names that have a default core.
func Systems() []string {
	names := make([]string, 0, len(systemCores))
	for name := range systemCores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IDs returns every registered core id in sorted order.
func IDs() []string {
	ids := make([]string, 0, len(cores))
	for id := range cores {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CoreForExtension returns the default system core that accepts content
// with the given extension.
func CoreForExtension(ext string) (string, bool) {
	for _, system := range Systems() {
		id := systemCores[system]
		if cores[id].SupportsExtension(ext) {
			return id, true
		}
	}
	return "", false
}
