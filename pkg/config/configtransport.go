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


package config

import (
	"time"

	"github.com/motolink/motolink-core/pkg/service/session"
	"github.com/motolink/motolink-core/pkg/transport"
)

const (
	DefaultMTUDelay   = 100 * time.Millisecond
	DefaultStartDelay = 500 * time.Millisecond
)

type Transport struct {
	RFCOMMChannel     *int   `toml:"rfcomm_channel,omitempty" validate:"omitempty,min=1,max=30"`
	Mode              string `toml:"mode" validate:"omitempty,oneof=auto stream notify"`
	Stream            string `toml:"stream" validate:"omitempty,oneof=rfcomm serial"`
	Adapter           string `toml:"adapter,omitempty"`
	SerialPath        string `toml:"serial_path,omitempty"`
	ReconnectInterval string `toml:"reconnect_interval,omitempty" validate:"duration"`
	PollInterval      string `toml:"poll_interval,omitempty" validate:"duration"`
	MTUDelay          string `toml:"mtu_delay,omitempty" validate:"duration"`
	StartDelay        string `toml:"start_delay,omitempty" validate:"duration"`
	SerialBaud        int    `toml:"serial_baud,omitempty" validate:"omitempty,gt=0"`
}

// TransportOptions returns the transport section as builder options.
// Unset values take the transport package defaults.
func (c *Instance) TransportOptions() transport.Options {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t := c.vals.Transport
	opts := transport.Options{
		Mode:         transport.Mode(t.Mode),
		Stream:       transport.StreamBackend(t.Stream),
		Adapter:      t.Adapter,
		SerialPath:   t.SerialPath,
		SerialBaud:   t.SerialBaud,
		PollInterval: durationOr(t.PollInterval, transport.DefaultPollInterval),
		MTUDelay:     durationOr(t.MTUDelay, DefaultMTUDelay),
		StartDelay:   durationOr(t.StartDelay, DefaultStartDelay),
	}
	if opts.Adapter == "" {
		opts.Adapter = transport.DefaultAdapter
	}
	if opts.SerialBaud == 0 {
		opts.SerialBaud = transport.DefaultBaudRate
	}
	if t.RFCOMMChannel != nil {
		opts.RFCOMMChannel = uint8(*t.RFCOMMChannel) //nolint:gosec // validated to 1..30
	} else {
		opts.RFCOMMChannel = transport.DefaultRFCOMMChannel
	}
	return opts
}

func (c *Instance) ReconnectInterval() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d := durationOr(c.vals.Transport.ReconnectInterval, session.DefaultReconnectInterval)
	if d == 0 {
		return session.DefaultReconnectInterval
	}
	return d
}

func (c *Instance) SetReconnectInterval(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Transport.ReconnectInterval = d.String()
}
