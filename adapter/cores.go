package adapter

import (
	"slices"

	emucore "github.com/user-none/eblitui/api"
)

// systemCores maps a system short name to the core launched for it.
var systemCores = map[string]string{
	"gb":        "mgba",
	"gba":       "mgba",
	"gbc":       "mgba",
	"megadrive": "genesis_plus_gx",
	"nes":       "fceumm",
	"snes":      "snes9x",
}

// RetroPad button names as they appear in input_player<N>_<button> keys.
// DefaultKey is the RetroArch keyboard binding for player 1.
var (
	padUp     = emucore.Button{Name: "up", ID: emucore.ButtonUp, DefaultKey: "up"}
	padDown   = emucore.Button{Name: "down", ID: emucore.ButtonDown, DefaultKey: "down"}
	padLeft   = emucore.Button{Name: "left", ID: emucore.ButtonLeft, DefaultKey: "left"}
	padRight  = emucore.Button{Name: "right", ID: emucore.ButtonRight, DefaultKey: "right"}
	padA      = emucore.Button{Name: "a", ID: 4, DefaultKey: "x", DefaultPad: "A"}
	padB      = emucore.Button{Name: "b", ID: 5, DefaultKey: "z", DefaultPad: "B"}
	padX      = emucore.Button{Name: "x", ID: 6, DefaultKey: "s", DefaultPad: "X"}
	padY      = emucore.Button{Name: "y", ID: 7, DefaultKey: "a", DefaultPad: "Y"}
	padL      = emucore.Button{Name: "l", ID: 8, DefaultKey: "q", DefaultPad: "L1"}
	padR      = emucore.Button{Name: "r", ID: 9, DefaultKey: "w", DefaultPad: "R1"}
	padSelect = emucore.Button{Name: "select", ID: 10, DefaultKey: "rshift", DefaultPad: "Select"}
	padStart  = emucore.Button{Name: "start", ID: 11, DefaultKey: "enter", DefaultPad: "Start"}
)

var (
	buttonsNES     = []emucore.Button{padUp, padDown, padLeft, padRight, padA, padB, padSelect, padStart}
	buttonsGBA     = []emucore.Button{padUp, padDown, padLeft, padRight, padA, padB, padL, padR, padSelect, padStart}
	buttonsSNES    = []emucore.Button{padUp, padDown, padLeft, padRight, padA, padB, padX, padY, padL, padR, padSelect, padStart}
	buttonsGenesis = []emucore.Button{padUp, padDown, padLeft, padRight, padA, padB, padX, padY, padL, padR, padStart}
	buttonsAtari   = []emucore.Button{padUp, padDown, padLeft, padRight, padA, padB, padSelect, padStart}
)

var (
	extNES     = []string{".nes", ".fds", ".unf", ".unif"}
	extSNES    = []string{".sfc", ".smc", ".fig", ".swc", ".bs"}
	extGB      = []string{".gb", ".gbc", ".sgb"}
	extGBA     = []string{".gba", ".agb", ".bin"}
	extGenesis = []string{".md", ".gen", ".smd", ".bin", ".sms", ".gg", ".sg", ".68k", ".cue", ".chd"}
	extPCE     = []string{".pce", ".cue", ".ccd", ".chd", ".toc", ".m3u"}
	extPSX     = []string{".cue", ".bin", ".img", ".mdf", ".pbp", ".toc", ".cbn", ".m3u", ".chd"}
)

func entry(id, name, console string, ext []string, buttons []emucore.Button, players int) emucore.SystemInfo {
	return emucore.SystemInfo{
		Name:        id,
		ConsoleName: console,
		Extensions:  ext,
		Buttons:     buttons,
		Players:     players,
		DataDirName: name,
		CoreName:    name,
	}
}

// cores is the set of cores built for the browser. Cores with an empty
// CoreName are reported by RetroArch under their id.
var cores = map[string]Core{
	"a5200": {
		Info:      entry("a5200", "", "Atari 5200", []string{".a52", ".bin"}, buttonsAtari, 4),
		Savestate: true,
	},
	"atari800": {
		Info:      entry("atari800", "Atari800", "Atari 8-bit", []string{".xfd", ".atr", ".cdm", ".cas", ".bin", ".a52", ".atx", ".car", ".rom", ".com", ".xex"}, buttonsAtari, 4),
		Savestate: true,
	},
	"fbneo": {
		Info:      entry("fbneo", "FinalBurn Neo", "Arcade", []string{".zip", ".7z"}, buttonsSNES, 4),
		Savestate: true,
	},
	"fceumm": {
		Info:      entry("fceumm", "FCEUmm", "Nintendo Entertainment System", extNES, buttonsNES, 4),
		Savestate: true,
	},
	"gambatte": {
		Info:      entry("gambatte", "Gambatte", "Game Boy", extGB, buttonsNES, 1),
		Savestate: true,
	},
	"gearboy": {
		Info: entry("gearboy", "Gearboy", "Game Boy", extGB, buttonsNES, 1),
	},
	"genesis_plus_gx": {
		Info:      entry("genesis_plus_gx", "Genesis Plus GX", "Sega Genesis", extGenesis, buttonsGenesis, 2),
		Savestate: true,
	},
	"gpsp": {
		Info:      entry("gpsp", "gpSP", "Game Boy Advance", extGBA, buttonsGBA, 1),
		Savestate: true,
	},
	"handy": {
		Info:      entry("handy", "Handy", "Atari Lynx", []string{".lnx", ".o"}, buttonsNES, 1),
		Savestate: true,
	},
	"mame2003_plus": {
		Info:      entry("mame2003_plus", "MAME 2003-Plus", "Arcade", []string{".zip"}, buttonsSNES, 4),
		Savestate: true,
	},
	"mednafen_ngp": {
		Info:      entry("mednafen_ngp", "Beetle NeoPop", "Neo Geo Pocket", []string{".ngp", ".ngc", ".ngpc", ".npc"}, buttonsNES, 1),
		Savestate: true,
	},
	"mednafen_pce_fast": {
		Info:      entry("mednafen_pce_fast", "Beetle PCE Fast", "PC Engine", extPCE, buttonsSNES, 5),
		Savestate: true,
	},
	"mednafen_vb": {
		Info: entry("mednafen_vb", "Beetle VB", "Virtual Boy", []string{".vb", ".vboy"}, buttonsSNES, 1),
	},
	"mednafen_wswan": {
		Info:      entry("mednafen_wswan", "Beetle WonderSwan", "WonderSwan", []string{".ws", ".wsc", ".pc2"}, buttonsSNES, 1),
		Savestate: true,
	},
	"mgba": {
		Info:      entry("mgba", "mGBA", "Game Boy Advance", slices.Concat(extGBA, extGB), buttonsGBA, 1),
		Savestate: true,
	},
	"nestopia": {
		Info:      entry("nestopia", "Nestopia", "Nintendo Entertainment System", extNES, buttonsNES, 4),
		Savestate: true,
	},
	"pcsx_rearmed": {
		Info:      entry("pcsx_rearmed", "PCSX-ReARMed", "Sony PlayStation", extPSX, buttonsSNES, 8),
		Savestate: true,
	},
	"picodrive": {
		Info:      entry("picodrive", "PicoDrive", "Sega Genesis", extGenesis, buttonsGenesis, 2),
		Savestate: true,
	},
	"prosystem": {
		Info:      entry("prosystem", "ProSystem", "Atari 7800", []string{".a78", ".bin"}, buttonsAtari, 2),
		Savestate: true,
	},
	"quicknes": {
		Info:      entry("quicknes", "QuickNES", "Nintendo Entertainment System", []string{".nes"}, buttonsNES, 2),
		Savestate: true,
	},
	"snes9x": {
		Info:      entry("snes9x", "Snes9x", "Super Nintendo", extSNES, buttonsSNES, 5),
		Savestate: true,
	},
	"stella": {
		Info:      entry("stella", "Stella", "Atari 2600", []string{".a26", ".bin"}, buttonsAtari, 2),
		Savestate: true,
	},
	"tic80": {
		Info:      entry("tic80", "TIC-80", "TIC-80", []string{".tic"}, buttonsSNES, 4),
		Savestate: true,
	},
	"vba_next": {
		Info:      entry("vba_next", "VBA Next", "Game Boy Advance", extGBA, buttonsGBA, 1),
		Savestate: true,
	},
	"2048": {
		Info:      entry("2048", "", "Game", nil, buttonsNES, 1),
		Savestate: true,
	},
}
