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

// Package transport provides the radio links to the sensor bridge: a byte
// stream over the classic serial port profile and characteristic
// notifications over Bluetooth Low Energy.
package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind is the radio technology a device advertises.
type Kind int

const (
	KindUnknown Kind = iota
	KindClassic
	KindLowEnergy
	KindDual
)

func (k Kind) String() string {
	switch k {
	case KindClassic:
		return "classic"
	case KindLowEnergy:
		return "le"
	case KindDual:
		return "dual"
	default:
		return "unknown"
	}
}

// Well-known identifiers of the bridge firmware.
var (
	// SerialPortUUID is the classic Serial Port Profile service class.
	SerialPortUUID = uuid.MustParse("00001101-0000-1000-8000-00805F9B34FB")
	// BridgeServiceUUID is the GATT service exposing the serial emulation.
	BridgeServiceUUID = uuid.MustParse("0000ABF0-0000-1000-8000-00805F9B34FB")
	// BridgeTXUUID is written to send commands to the bridge.
	BridgeTXUUID = uuid.MustParse("0000ABF1-0000-1000-8000-00805F9B34FB")
	// BridgeRXUUID notifies data sent by the bridge.
	BridgeRXUUID = uuid.MustParse("0000ABF2-0000-1000-8000-00805F9B34FB")
)

// Transport is a bidirectional link to one device. Implementations must be
// safe to call from multiple goroutines, but only the owning session may
// connect or disconnect.
type Transport interface {
	Kind() Kind
	Connect(ctx context.Context, address string, secure bool) error
	// Disconnect closes the link. It is a no-op when not connected.
	Disconnect() error
	// Send writes data to the device. Success means the transport accepted
	// the write, not that the device acknowledged it.
	Send(data []byte) error
	IsConnected() bool
}

// Streamer is a transport whose inbound data is pulled by a worker. Read
// blocks for at most the poll interval and returns (0, nil) when no data
// arrived in that time.
type Streamer interface {
	Transport
	Read(p []byte) (int, error)
}

// Notifier is a transport that pushes inbound data through callbacks. The
// handlers must be set before Connect and must not block: Disconnect waits
// for in-flight callbacks to return.
type Notifier interface {
	Transport
	SetHandlers(onData func([]byte), onLost func(error))
}

// StartDelayer is implemented by transports that need time to settle after
// connecting before the start command may be sent.
type StartDelayer interface {
	StartDelay() time.Duration
}

var (
	ErrNotConnected     = errors.New("not connected")
	ErrAlreadyConnected = errors.New("already connected")
	ErrLinkLost         = errors.New("link lost")
	ErrNoAdapter        = errors.New("no bluetooth adapter available")
	ErrAdapterOff       = errors.New("bluetooth adapter is powered off")
	ErrUnsupported      = errors.New("not supported on this platform")
	ErrInvalidAddress   = errors.New("invalid device address")
)

// TransportError wraps an I/O failure during connect, send or receive.
//
//nolint:revive // matches the error taxonomy used in logs and the API
type TransportError struct {
	Err     error
	Op      string
	Address string
}

func (e *TransportError) Error() string {
	if e.Address == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Address, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ConfigurationError reports a problem that retrying cannot fix: no
// adapter, missing permissions, an unsupported platform or an invalid
// setting.
type ConfigurationError struct {
	Err    error
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Err == nil {
		return e.Reason
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// IsConfigurationError reports whether err is, or wraps, a
// ConfigurationError.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}
