// Package cli stages launches on the local disk: it resolves the same
// options a page would pass, writes the filesystem a core boots from and
// can serve the result for inspection.
package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/retroenv/retrogolib/log"
)

// Options are the parsed command line options.
type Options struct {
	Core   string
	ROMs   []string
	BIOS   []string
	State  string
	SRAM   string
	Shader string

	EmulatorConfig map[string]any
	CoreConfig     map[string]any

	Output  string
	Serve   string
	Extract bool

	ListCores bool
	Debug     bool
	Quiet     bool
}

// UsageError is returned when the arguments do not form a valid call.
type UsageError struct {
	flags *flag.FlagSet
	msg   string
}

func (e *UsageError) Error() string {
	return e.msg
}

// ShowUsage prints the flag help to w.
func (e *UsageError) ShowUsage(w io.Writer) {
	fmt.Fprintf(w, "usage: emweb [options] -core <id|core.js> -out <dir> [rom ...]\n\n")
	e.flags.SetOutput(w)
	e.flags.PrintDefaults()
	fmt.Fprintln(w)
}

// ParseFlags parses args, excluding the program name.
func ParseFlags(args []string) (Options, error) {
	flags := flag.NewFlagSet("emweb", flag.ContinueOnError)
	flags.SetOutput(io.Discard)

	opts := Options{
		EmulatorConfig: map[string]any{},
		CoreConfig:     map[string]any{},
	}
	readOptionFlags(flags, &opts)

	if err := flags.Parse(args); err != nil {
		return opts, &UsageError{flags: flags, msg: err.Error()}
	}
	if opts.ListCores {
		return opts, nil
	}
	if opts.Core == "" {
		return opts, &UsageError{flags: flags, msg: "no core given"}
	}
	if opts.Output == "" {
		return opts, &UsageError{flags: flags, msg: "no output directory given"}
	}
	opts.ROMs = append(opts.ROMs, flags.Args()...)
	return opts, nil
}

func readOptionFlags(flags *flag.FlagSet, opts *Options) {
	flags.StringVar(&opts.Core, "core", "", "core id such as fceumm, or the path of a core .js file next to its .wasm")
	flags.Func("rom", "ROM file, path, URL or name on the ROM CDN (repeatable)", func(s string) error {
		opts.ROMs = append(opts.ROMs, s)
		return nil
	})
	flags.Func("bios", "BIOS file, path or URL (repeatable)", func(s string) error {
		opts.BIOS = append(opts.BIOS, s)
		return nil
	})
	flags.StringVar(&opts.State, "state", "", "save state to load at boot")
	flags.StringVar(&opts.SRAM, "sram", "", "battery save to load at boot")
	flags.StringVar(&opts.Shader, "shader", "", "shader preset name such as crt/crt-easymode")
	flags.Func("config", "retroarch.cfg override as key=value (repeatable)", keyValue(opts.EmulatorConfig))
	flags.Func("core-config", "core option override as key=value (repeatable)", keyValue(opts.CoreConfig))
	flags.StringVar(&opts.Output, "out", "", "directory the staged filesystem is written to")
	flags.StringVar(&opts.Serve, "serve", "", "serve the output directory on this address after staging, for example :8080")
	flags.BoolVar(&opts.Extract, "extract", false, "extract archived ROMs before staging")
	flags.BoolVar(&opts.ListCores, "cores", false, "list the known cores and exit")
	flags.BoolVar(&opts.Debug, "debug", false, "enable debug logging")
	flags.BoolVar(&opts.Quiet, "q", false, "only log errors")
}

func keyValue(dst map[string]any) func(string) error {
	return func(s string) error {
		key, value, ok := strings.Cut(s, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return errors.New("expected key=value")
		}
		dst[key] = strings.TrimSpace(value)
		return nil
	}
}

// CreateLogger creates a logger with the level selected by the flags.
func CreateLogger(debug, quiet bool) *log.Logger {
	cfg := log.DefaultConfig()
	if debug {
		cfg.Level = log.DebugLevel
	} else if quiet {
		cfg.Level = log.ErrorLevel
	}
	return log.NewWithConfig(cfg)
}
