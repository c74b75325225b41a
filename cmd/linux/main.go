// MotoLink Core
// Copyright (c) 2026 The MotoLink Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of MotoLink Core.
//
// MotoLink Core is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// MotoLink Core is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with MotoLink Core.  If not, see <http://www.gnu.org/licenses/>.


package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/motolink/motolink-core/internal/reporting"
	"github.com/motolink/motolink-core/pkg/api/client"
	"github.com/motolink/motolink-core/pkg/cli"
	"github.com/motolink/motolink-core/pkg/config"
	"github.com/motolink/motolink-core/pkg/helpers"
	"github.com/motolink/motolink-core/pkg/service/daemon"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	fs := flag.CommandLine
	flags := cli.SetupFlags(fs)
	daemonMode := fs.Bool(
		"daemon",
		false,
		"run service in foreground with no live view",
	)
	stopDaemon := fs.Bool(
		"stop",
		false,
		"stop the service started with -daemon",
	)

	exit, err := flags.Pre(fs, os.Args[1:], os.Stdout)
	if exit || err != nil {
		return err
	}

	if os.Geteuid() == 0 {
		return errors.New("motolink cannot be run as root")
	}

	var logWriters []io.Writer
	if *daemonMode {
		logWriters = []io.Writer{os.Stderr}
	}

	paths := helpers.DefaultPaths()
	cfg, err := cli.Setup(paths, config.BaseDefaults, logWriters)
	if err != nil {
		return err //nolint:wrapcheck // already describes the failing step
	}
	defer reporting.Close()

	defer func() {
		if err := recover(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Panic: %s\n", err)
			log.Fatal().Msgf("panic: %v", err)
		}
	}()

	if *stopDaemon {
		return daemon.NewPidFile(paths.DataDir).Stop() //nolint:wrapcheck // descriptive
	}

	if err := flags.ApplyOverrides(fs, cfg); err != nil {
		return err //nolint:wrapcheck // names the flag
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	handled, err := flags.Post(ctx, fs, cfg, client.NewLocalAPIClient(cfg), os.Stdout)
	cancel()
	if handled {
		return err //nolint:wrapcheck // already reported by the command
	}

	return cli.RunApp(cfg, paths, *daemonMode, os.Stdout) //nolint:wrapcheck // already wrapped
}
