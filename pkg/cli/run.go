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


package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/motolink/motolink-core/pkg/api/client"
	"github.com/motolink/motolink-core/pkg/api/models"
	"github.com/motolink/motolink-core/pkg/config"
	"github.com/motolink/motolink-core/pkg/helpers"
	"github.com/motolink/motolink-core/pkg/service"
	"github.com/motolink/motolink-core/pkg/service/daemon"
	"github.com/rs/zerolog/log"
)

const apiStartTimeout = 10 * time.Second

// FormatNotification renders a notification as one line of text.
func FormatNotification(n models.Notification) string {
	switch n.Method {
	case models.NotificationReadingsNew:
		var r models.ReadingResponse
		if err := json.Unmarshal(n.Params, &r); err == nil {
			return FormatReading(r)
		}
	case models.NotificationMessagesNew:
		var m models.MessageResponse
		if err := json.Unmarshal(n.Params, &m); err == nil {
			return "message: " + m.Text
		}
	case models.NotificationSessionChanged:
		var s models.SessionResponse
		if err := json.Unmarshal(n.Params, &s); err == nil {
			if s.DeviceAddress != "" {
				return fmt.Sprintf("session: %s %s", s.State, s.DeviceAddress)
			}
			return "session: " + s.State
		}
	case models.NotificationSessionError:
		var e models.ErrorResponse
		if err := json.Unmarshal(n.Params, &e); err == nil {
			return fmt.Sprintf("error (%s): %s", e.Kind, e.Message)
		}
	}
	return fmt.Sprintf("%s: %s", n.Method, n.Params)
}

// FormatReading renders the values of a reading, with the gear last.
func FormatReading(r models.ReadingResponse) string {
	parts := make([]string, 0, len(r.Values)+1)
	for _, v := range r.Values {
		if v.Unit == "" {
			parts = append(parts, fmt.Sprintf("%s %s", v.Label, v.Display))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s %s %s", v.Label, v.Display, v.Unit))
	}
	if r.Gear != "" {
		parts = append(parts, "gear "+r.Gear)
	}
	return strings.Join(parts, " | ")
}

// Watch prints every notification from the service until ctx ends.
func Watch(ctx context.Context, api client.APIClient, out io.Writer) error {
	err := api.Watch(ctx, func(n models.Notification) bool {
		_, _ = fmt.Fprintln(out, FormatNotification(n))
		return true
	})
	if errors.Is(err, client.ErrRequestCancelled) {
		return nil
	}
	return err //nolint:wrapcheck // client errors are descriptive
}

// RunApp runs the service. In daemon mode it only serves the API; in
// the foreground it also prints live readings to out. If a service is
// already running, daemon mode exits and the foreground attaches to it.
func RunApp(cfg *config.Instance, paths helpers.Paths, daemonMode bool, out io.Writer) (returnErr error) {
	defer func() {
		if r := recover(); r != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Panic: %v\n", r)
			log.Error().Msgf("panic recovered: %v", r)
			returnErr = fmt.Errorf("panic: %v", r)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var svcDone <-chan struct{}
	if client.IsServiceRunning(ctx, cfg) {
		if daemonMode {
			log.Info().Str("listen", cfg.APIListen()).Msg("service already running, exiting")
			return nil
		}
		log.Info().Msg("attaching to running service")
	} else {
		if daemonMode {
			pidFile := daemon.NewPidFile(paths.DataDir)
			if err := pidFile.Create(); err != nil {
				return fmt.Errorf("error creating pid file: %w", err)
			}
			defer func() {
				if err := pidFile.Remove(); err != nil {
					log.Error().Err(err).Msg("error removing pid file")
				}
			}()
		}

		log.Info().Bool("daemon", daemonMode).Msg("starting service")
		stopSvc, done, err := service.Start(cfg, service.Options{Paths: paths})
		if err != nil {
			log.Error().Err(err).Msg("error starting service")
			return fmt.Errorf("error starting service: %w", err)
		}
		svcDone = done
		defer func() {
			if err := stopSvc(); err != nil {
				log.Error().Err(err).Msg("error stopping service")
			}
		}()
	}

	if !daemonMode {
		if !client.WaitForAPI(ctx, cfg, apiStartTimeout, 100*time.Millisecond) {
			return errors.New("service API did not come up")
		}
		watchCtx, stopWatch := context.WithCancel(ctx)
		defer stopWatch()
		go func() {
			if err := Watch(watchCtx, client.NewLocalAPIClient(cfg), out); err != nil {
				log.Warn().Err(err).Msg("live view stopped")
			}
		}()
	}

	select {
	case <-ctx.Done():
		log.Info().Msg("received stop signal")
	case <-svcDone:
		log.Info().Msg("service shut down internally")
	}
	return nil
}
