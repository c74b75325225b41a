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


// Package service assembles the running service: the session supervisor,
// the API server and everything that listens to its notifications.
package service

import (
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/motolink/motolink-core/pkg/api"
	"github.com/motolink/motolink-core/pkg/config"
	"github.com/motolink/motolink-core/pkg/datalog"
	"github.com/motolink/motolink-core/pkg/helpers"
	"github.com/motolink/motolink-core/pkg/service/broker"
	"github.com/motolink/motolink-core/pkg/service/discovery"
	"github.com/motolink/motolink-core/pkg/service/session"
	"github.com/motolink/motolink-core/pkg/service/state"
	"github.com/motolink/motolink-core/pkg/transport"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

const subscriberBuffer = 100

// Options override the parts of the service that touch the outside
// world. The zero value uses the real clock, filesystem and transports.
type Options struct {
	Clock clockwork.Clock
	Fs    afero.Fs
	// Factory replaces the transport builder configured in cfg.
	Factory session.Factory
	Paths   helpers.Paths
}

// Start brings the service up and returns once the API is listening.
// stop shuts everything down and returns the first error any component
// failed with; done is closed when the service has fully stopped, either
// through stop or because a component failed.
//
//nolint:gocritic // options struct passed once at startup
func Start(cfg *config.Instance, opts Options) (stop func() error, done <-chan struct{}, err error) {
	log.Info().Msgf("version: %s", config.AppVersion)

	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	// configuration problems abort start; everything after this recovers
	enc := cfg.Encoding()
	table, err := cfg.FieldTable()
	if err != nil {
		return nil, nil, fmt.Errorf("field table: %w", err)
	}
	factory := opts.Factory
	if factory == nil {
		builder, buildErr := transport.NewBuilder(cfg.TransportOptions())
		if buildErr != nil {
			return nil, nil, fmt.Errorf("transport: %w", buildErr)
		}
		factory = builder
	}

	st, ns := state.NewState(clock, enc)
	notifBroker := broker.NewBroker(st.GetContext(), ns)
	notifBroker.Start()

	dataLogDir := cfg.DataLogDir(opts.Paths.DataLogDir)
	dataLog := datalog.New(fs, dataLogDir, clock)

	sup, err := session.New(session.Options{
		Factory:           factory,
		Consumer:          st,
		Sink:              dataLog,
		Clock:             clock,
		Table:             table,
		Encoding:          enc,
		ReconnectInterval: cfg.ReconnectInterval(),
	})
	if err != nil {
		st.StopService()
		return nil, nil, fmt.Errorf("session supervisor: %w", err)
	}

	log.Info().Msg("starting API service")
	ln, err := api.Listen(st.GetContext(), cfg)
	if err != nil {
		st.StopService()
		return nil, nil, err //nolint:wrapcheck // already names the address
	}
	apiServer := api.NewServer(api.Options{
		Config:  cfg,
		State:   st,
		Session: sup,
		DataLog: dataLog,
		Clock:   clock,
	})

	g, ctx := errgroup.WithContext(st.GetContext())

	log.Info().Msg("starting session supervisor")
	g.Go(func() error {
		return sup.Run(ctx)
	})

	apiNotifications, _ := notifBroker.Subscribe(subscriberBuffer)
	g.Go(func() error {
		return apiServer.Serve(ctx, ln, apiNotifications)
	})

	log.Info().Msg("starting publishers")
	activePublishers := startPublishers(cfg, notifBroker)

	log.Info().Msg("starting mDNS discovery service")
	discoveryService := discovery.New(cfg, clock)
	if discoveryErr := discoveryService.Start(); discoveryErr != nil {
		log.Error().Err(discoveryErr).Msg("mDNS discovery failed to start (continuing without discovery)")
	}

	svc := &running{cfg: cfg, st: st, sup: sup, dataLog: dataLog}

	g.Go(func() error {
		if watchErr := cfg.Watch(ctx, clock, func() { svc.applyConfig(ctx) }); watchErr != nil {
			log.Error().Err(watchErr).Msg("config watcher stopped, changes need a restart")
		}
		return nil
	})

	if cfg.DataLogEnabled() {
		if logErr := svc.startDataLog(ctx); logErr != nil {
			log.Error().Err(logErr).Msg("error starting data log")
		}
	}

	if cfg.AutoConnect() {
		g.Go(func() error {
			svc.autoConnect(ctx)
			return nil
		})
	}

	doneCh := make(chan struct{})
	var runErr error
	go func() {
		<-ctx.Done()
		log.Info().Msg("service context cancelled, running cleanup")
		st.StopService()

		runErr = g.Wait()
		if runErr != nil {
			log.Error().Err(runErr).Msg("service stopped with error")
		}

		discoveryService.Stop()
		for _, publisher := range activePublishers {
			publisher.Stop()
		}
		if stopErr := dataLog.Stop(); stopErr != nil && !errors.Is(stopErr, datalog.ErrNotLogging) {
			log.Warn().Err(stopErr).Msg("error closing data log")
		}
		<-notifBroker.Done()

		log.Info().Msg("service cleanup completed")
		close(doneCh)
	}()

	log.Info().Msg("service fully initialized")

	stop = func() error {
		st.StopService()
		<-doneCh
		return runErr
	}
	return stop, doneCh, nil
}
