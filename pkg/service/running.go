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


package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/motolink/motolink-core/pkg/api/models"
	"github.com/motolink/motolink-core/pkg/api/notifications"
	"github.com/motolink/motolink-core/pkg/config"
	"github.com/motolink/motolink-core/pkg/datalog"
	"github.com/motolink/motolink-core/pkg/helpers"
	"github.com/motolink/motolink-core/pkg/service/broker"
	"github.com/motolink/motolink-core/pkg/service/publishers"
	"github.com/motolink/motolink-core/pkg/service/session"
	"github.com/motolink/motolink-core/pkg/service/state"
	"github.com/rs/zerolog/log"
)

// running holds the components that config changes are applied to.
type running struct {
	cfg     *config.Instance
	st      *state.State
	sup     *session.Supervisor
	dataLog *datalog.Sink
}

func dataLogResponse(status datalog.Status) models.DataLogResponse {
	return models.DataLogResponse{
		Path:    status.Path,
		Frames:  status.Frames,
		Logging: status.Logging,
	}
}

func (r *running) startDataLog(ctx context.Context) error {
	table, err := r.sup.Table(ctx)
	if err != nil {
		return fmt.Errorf("field table: %w", err)
	}
	if _, err := r.dataLog.Start(table.Labels()); err != nil {
		return fmt.Errorf("start data log: %w", err)
	}
	notifications.DataLogChanged(r.st.Notifications, dataLogResponse(r.dataLog.Status()))
	return nil
}

func (r *running) stopDataLog() error {
	if err := r.dataLog.Stop(); err != nil && !errors.Is(err, datalog.ErrNotLogging) {
		return fmt.Errorf("stop data log: %w", err)
	}
	notifications.DataLogChanged(r.st.Notifications, dataLogResponse(r.dataLog.Status()))
	return nil
}

// autoConnect connects to the configured device. A failure is left to
// auto-reconnect, which is armed by the attempt when enabled.
func (r *running) autoConnect(ctx context.Context) {
	addr := r.cfg.DeviceAddress()
	if addr == "" {
		return
	}
	log.Info().Str("address", addr).Msg("auto-connecting to configured device")
	err := r.sup.Connect(ctx, addr, r.cfg.DeviceSecure(), r.cfg.AutoReconnect())
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, session.ErrStopped):
	default:
		log.Warn().Err(err).Str("address", addr).Msg("auto-connect failed")
	}
}

// applyConfig brings the running service in line with a reloaded config.
// Device, transport and API settings take effect on the next start.
func (r *running) applyConfig(ctx context.Context) {
	helpers.SetDebugLogging(r.cfg.DebugLogging())

	r.applyProtocol(ctx)

	switch enabled := r.cfg.DataLogEnabled(); {
	case enabled && !r.dataLog.IsLogging():
		if err := r.startDataLog(ctx); err != nil {
			log.Error().Err(err).Msg("error starting data log")
		}
	case !enabled && r.dataLog.IsLogging():
		if err := r.stopDataLog(); err != nil {
			log.Error().Err(err).Msg("error stopping data log")
		}
	}
}

// applyProtocol switches the supervisor to the configured encoding and
// field table when either differs from what it is running with.
func (r *running) applyProtocol(ctx context.Context) {
	enc := r.cfg.Encoding()
	table, err := r.cfg.FieldTable()
	if err != nil {
		log.Error().Err(err).Msg("reloaded field table is invalid, keeping the current protocol")
		return
	}
	current, err := r.sup.Table(ctx)
	if err != nil {
		log.Error().Err(err).Msg("error reading current field table")
		return
	}
	if enc == r.st.Encoding() && table.Equal(current) {
		return
	}

	if err := r.sup.SetProtocol(ctx, enc, table); err != nil {
		log.Error().Err(err).Msg("error switching protocol")
		return
	}
	r.st.SetEncoding(enc)
	log.Info().Str("encoding", enc.String()).Int("fields", table.Len()).Msg("protocol switched")
}

// startPublishers starts one MQTT publisher per enabled config entry, each
// with its own broker subscription.
func startPublishers(cfg *config.Instance, notifBroker *broker.Broker) []*publishers.MQTTPublisher {
	activePublishers := make([]*publishers.MQTTPublisher, 0)
	for _, mqttCfg := range cfg.GetMQTTPublishers() {
		// nil means enabled
		if mqttCfg.Enabled != nil && !*mqttCfg.Enabled {
			continue
		}

		log.Info().Msgf("starting MQTT publisher: %s (topic: %s)", mqttCfg.Broker, mqttCfg.Topic)
		publisher := publishers.NewMQTTPublisher(mqttCfg.Broker, mqttCfg.Topic, mqttCfg.Filter)
		notifChan, id := notifBroker.Subscribe(subscriberBuffer)
		if err := publisher.Start(notifChan); err != nil {
			log.Error().Err(err).Msgf("failed to start MQTT publisher for %s", mqttCfg.Broker)
			notifBroker.Unsubscribe(id)
			continue
		}
		activePublishers = append(activePublishers, publisher)
	}

	if len(activePublishers) > 0 {
		log.Info().Msgf("started %d MQTT publisher(s)", len(activePublishers))
	}
	return activePublishers
}
