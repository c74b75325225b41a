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


// Package cli holds the flags and commands shared by the service
// binaries.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/motolink/motolink-core/internal/reporting"
	"github.com/motolink/motolink-core/pkg/api/client"
	"github.com/motolink/motolink-core/pkg/api/models"
	"github.com/motolink/motolink-core/pkg/config"
	"github.com/motolink/motolink-core/pkg/helpers"
	"github.com/motolink/motolink-core/pkg/protocol"
	"github.com/rs/zerolog/log"
)

var ErrFlagValue = errors.New("flag requires a value")

type Flags struct {
	Config     *string
	Address    *string
	Secure     *bool
	Encoding   *string
	Connect    *bool
	Disconnect *bool
	Command    *string
	Watch      *bool
	Fields     *bool
	API        *string
	Version    *bool
}

// SetupFlags defines all common CLI flags on fs.
func SetupFlags(fs *flag.FlagSet) *Flags {
	return &Flags{
		Config: fs.String(
			"config",
			"",
			"path to the config file",
		),
		Address: fs.String(
			"address",
			"",
			"Bluetooth address of the sensor bridge (overrides config)",
		),
		Secure: fs.Bool(
			"secure",
			false,
			"use an authenticated, encrypted link",
		),
		Encoding: fs.String(
			"encoding",
			"",
			"wire encoding of the bridge: binary or text (overrides config)",
		),
		Connect: fs.Bool(
			"connect",
			false,
			"ask the running service to connect to the device",
		),
		Disconnect: fs.Bool(
			"disconnect",
			false,
			"ask the running service to disconnect",
		),
		Command: fs.String(
			"command",
			"",
			"send a command to the bridge: start, stop or reset",
		),
		Watch: fs.Bool(
			"watch",
			false,
			"print live readings and events from the running service",
		),
		Fields: fs.Bool(
			"fields",
			false,
			"print the field table as CSV and exit",
		),
		API: fs.String(
			"api",
			"",
			"send method and params to API and print response",
		),
		Version: fs.Bool(
			"version",
			false,
			"print version and exit",
		),
	}
}

func isFlagPassed(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// Pre parses args and actions any immediate flags that don't require
// environment setup. Add any custom flags before running this.
func (f *Flags) Pre(fs *flag.FlagSet, args []string, out io.Writer) (exit bool, err error) {
	if err := fs.Parse(args); err != nil {
		return true, fmt.Errorf("parsing flags: %w", err)
	}

	if *f.Version {
		_, _ = fmt.Fprintf(out, "MotoLink v%s (%s/%s)\n", config.AppVersion, runtime.GOOS, runtime.GOARCH)
		return true, nil
	}

	if *f.Config != "" {
		abs, err := filepath.Abs(*f.Config)
		if err != nil {
			return true, fmt.Errorf("config path: %w", err)
		}
		if err := os.Setenv(config.CfgEnv, abs); err != nil {
			return true, fmt.Errorf("setting %s: %w", config.CfgEnv, err)
		}
	}
	return false, nil
}

// Setup initializes directories, logging and the user config, and turns
// on error reporting when the user opted in.
//
//nolint:gocritic // config struct copied for immutability
func Setup(paths helpers.Paths, defaults config.Values, writers []io.Writer) (*config.Instance, error) {
	if err := helpers.EnsureDirectories(paths); err != nil {
		return nil, fmt.Errorf("creating directories: %w", err)
	}

	if err := helpers.InitLogging(paths.LogDir, writers); err != nil {
		return nil, fmt.Errorf("initializing logging: %w", err)
	}

	cfg, err := config.NewConfig(paths.ConfigDir, defaults)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	helpers.SetDebugLogging(cfg.DebugLogging())

	enabled, dsn := cfg.ErrorReporting()
	if err := reporting.Init(reporting.Options{
		Enabled:  enabled,
		DSN:      dsn,
		DeviceID: cfg.DeviceID(),
		Version:  config.AppVersion,
	}); err != nil {
		log.Warn().Err(err).Msg("failed to initialize error reporting")
	}

	return cfg, nil
}

// ApplyOverrides copies device and encoding flags into cfg for this run.
// Nothing is written to disk.
func (f *Flags) ApplyOverrides(fs *flag.FlagSet, cfg *config.Instance) error {
	if *f.Address != "" {
		secure := cfg.DeviceSecure()
		if isFlagPassed(fs, "secure") {
			secure = *f.Secure
		}
		if err := cfg.SetDevice(*f.Address, secure); err != nil {
			return fmt.Errorf("-address: %w", err)
		}
	}
	if *f.Encoding != "" {
		enc, err := protocol.ParseEncoding(*f.Encoding)
		if err != nil {
			return fmt.Errorf("-encoding: %w", err)
		}
		cfg.SetEncoding(enc)
	}
	return nil
}

// Post actions the flags that talk to a running service. It reports
// whether a flag was handled, in which case the caller should exit.
func (f *Flags) Post(
	ctx context.Context,
	fs *flag.FlagSet,
	cfg *config.Instance,
	api client.APIClient,
	out io.Writer,
) (handled bool, err error) {
	switch {
	case *f.Fields:
		return true, writeFields(cfg, out)
	case *f.Connect:
		return true, connect(ctx, cfg, api, out)
	case *f.Disconnect:
		return true, callAndPrint(ctx, api, out, models.MethodSessionDisconnect, "")
	case isFlagPassed(fs, "command"):
		if *f.Command == "" {
			return true, fmt.Errorf("-command: %w", ErrFlagValue)
		}
		if _, err := protocol.ParseCommand(*f.Command); err != nil {
			return true, fmt.Errorf("-command: %w", err)
		}
		params, err := json.Marshal(models.CommandParams{Command: *f.Command})
		if err != nil {
			return true, fmt.Errorf("encoding params: %w", err)
		}
		return true, callAndPrint(ctx, api, out, models.MethodSessionCommand, string(params))
	case isFlagPassed(fs, "api"):
		if *f.API == "" {
			return true, fmt.Errorf("-api: %w", ErrFlagValue)
		}
		method, params, _ := strings.Cut(*f.API, ":")
		return true, callAndPrint(ctx, api, out, method, params)
	case *f.Watch:
		return true, Watch(ctx, api, out)
	}
	return false, nil
}

func callAndPrint(ctx context.Context, api client.APIClient, out io.Writer, method, params string) error {
	resp, err := api.Call(ctx, method, params)
	if err != nil {
		log.Error().Err(err).Str("method", method).Msg("error calling API")
		return err //nolint:wrapcheck // already says the call failed
	}
	if resp != "" && resp != "null" {
		_, _ = fmt.Fprintln(out, resp)
	}
	return nil
}

func connect(ctx context.Context, cfg *config.Instance, api client.APIClient, out io.Writer) error {
	addr := cfg.DeviceAddress()
	if addr == "" {
		return fmt.Errorf("-connect needs -address or a device in the config: %w", ErrFlagValue)
	}
	params, err := json.Marshal(models.ConnectParams{Address: addr, Secure: cfg.DeviceSecure()})
	if err != nil {
		return fmt.Errorf("encoding params: %w", err)
	}
	return callAndPrint(ctx, api, out, models.MethodSessionConnect, string(params))
}

// writeFields prints the configured field table as CSV.
func writeFields(cfg *config.Instance, out io.Writer) error {
	table, err := cfg.FieldTable()
	if err != nil {
		return fmt.Errorf("field table: %w", err)
	}
	resp := models.NewFieldsResponse(cfg.Encoding(), table)
	if err := gocsv.Marshal(resp.Fields, out); err != nil {
		return fmt.Errorf("writing fields: %w", err)
	}
	return nil
}
