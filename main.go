// Package main stages emulator launches on the local disk and optionally
// serves them.
package main

import (
	"context"
	"errors"
	"os"

	"github.com/retroenv/retrogolib/app"
	"github.com/retroenv/retrogolib/buildinfo"
	"github.com/retroenv/retrogolib/log"
	"github.com/user-none/emweb/cli"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

func main() {
	ctx := app.Context()

	opts, err := cli.ParseFlags(os.Args[1:])
	logger := cli.CreateLogger(opts.Debug, opts.Quiet)
	if err != nil {
		var usageErr *cli.UsageError
		if errors.As(err, &usageErr) {
			logger.Error(err.Error())
			usageErr.ShowUsage(os.Stderr)
			os.Exit(1)
		}
		logger.Fatal(err.Error())
	}

	logger.Debug("emweb", log.String("version", buildinfo.Version(version, commit, date)))

	if err := cli.NewRunner(logger).Run(ctx, opts); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("Operation cancelled")
			return
		}
		logger.Fatal(err.Error())
	}
}
