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
	"fmt"
	"os"

	"github.com/motolink/motolink-core/pkg/helpers"
	"github.com/motolink/motolink-core/pkg/protocol"
	"github.com/motolink/motolink-core/pkg/transport"
)

type Device struct {
	AutoReconnect *bool  `toml:"auto_reconnect,omitempty"`
	Address       string `toml:"address,omitempty" validate:"btaddress"`
	Secure        bool   `toml:"secure"`
	AutoConnect   bool   `toml:"auto_connect"`
}

type Protocol struct {
	Encoding string `toml:"encoding,omitempty" validate:"encoding"`
	// FieldTable is an optional YAML file replacing the built-in table.
	FieldTable string `toml:"field_table,omitempty"`
}

// DeviceAddress returns the configured device in canonical form, or ""
// when none is set.
func (c *Instance) DeviceAddress() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Device.Address == "" {
		return ""
	}
	addr, err := transport.ParseAddress(c.vals.Device.Address)
	if err != nil {
		return ""
	}
	return addr.String()
}

func (c *Instance) DeviceSecure() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Device.Secure
}

// SetDevice remembers the device to auto-connect to.
func (c *Instance) SetDevice(address string, secure bool) error {
	addr, err := transport.ParseAddress(address)
	if err != nil {
		return fmt.Errorf("device address: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Device.Address = addr.String()
	c.vals.Device.Secure = secure
	return nil
}

func (c *Instance) AutoConnect() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Device.AutoConnect && c.vals.Device.Address != ""
}

func (c *Instance) SetAutoConnect(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Device.AutoConnect = enabled
}

// AutoReconnect defaults to true.
func (c *Instance) AutoReconnect() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Device.AutoReconnect == nil {
		return true
	}
	return *c.vals.Device.AutoReconnect
}

func (c *Instance) SetAutoReconnect(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Device.AutoReconnect = &enabled
}

// Encoding returns the configured frame encoding, binary by default.
func (c *Instance) Encoding() protocol.Encoding {
	c.mu.RLock()
	defer c.mu.RUnlock()
	enc, err := protocol.ParseEncoding(c.vals.Protocol.Encoding)
	if err != nil {
		return protocol.EncodingBinary
	}
	return enc
}

func (c *Instance) SetEncoding(enc protocol.Encoding) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Protocol.Encoding = enc.String()
}

// FieldTable returns the field table for the configured encoding: the
// YAML override when one is set, the built-in table otherwise.
func (c *Instance) FieldTable() (*protocol.FieldTable, error) {
	c.mu.RLock()
	path := helpers.ExpandHome(c.vals.Protocol.FieldTable)
	c.mu.RUnlock()

	if path == "" {
		return protocol.DefaultFieldTable(c.Encoding()), nil
	}

	//nolint:gosec // path comes from the user's own config
	f, err := os.Open(path)
	if err != nil {
		return nil, &transport.ConfigurationError{Reason: "field table", Err: err}
	}
	defer func() { _ = f.Close() }()

	table, err := protocol.LoadFieldTable(f)
	if err != nil {
		return nil, &transport.ConfigurationError{Reason: "field table " + path, Err: err}
	}
	return table, nil
}
