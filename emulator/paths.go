package emulator

import (
	"fmt"
	"path"
	"time"

	"github.com/user-none/emweb/adapter"
	"github.com/user-none/emweb/options"
	"github.com/user-none/emweb/vfs"
)

// Paths locates the per game files of a launch.
type Paths struct {
	Layout vfs.Layout
	// Core is the canonical core name.
	Core string
	// ROM is the base name of the first ROM.
	ROM string
}

// PathsFor returns the paths of a resolved launch. Launches without a ROM
// name their files after the core.
func PathsFor(layout vfs.Layout, res *options.Resolved) Paths {
	p := Paths{Layout: layout, Core: adapter.CanonicalName(res.Core.Name)}
	if len(res.ROM) > 0 {
		p.ROM = res.ROM[0].BaseName()
	} else {
		p.ROM = res.Core.Name
	}
	return p
}

// StateFile is where the core writes save states.
func (p Paths) StateFile() string {
	return path.Join(p.Layout.StateDir(p.Core), p.ROM+".state")
}

// StateThumbnail is the screenshot written next to a save state.
func (p Paths) StateThumbnail() string { return p.StateFile() + ".png" }

// AutoState is loaded by the core on start.
func (p Paths) AutoState() string { return p.StateFile() + ".auto" }

// SRAMFile holds battery backed memory.
func (p Paths) SRAMFile() string {
	return path.Join(p.Layout.SaveDir(p.Core), p.ROM+".srm")
}

// Screenshot returns where the core writes a screenshot taken at t.
func (p Paths) Screenshot(t time.Time) string {
	name := fmt.Sprintf("%s-%02d%02d%02d-%02d%02d%02d.png", p.ROM,
		t.Year()%1000, int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())
	return path.Join(p.Layout.Screenshots(), name)
}
