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

// Package session supervises the link to the sensor bridge: it owns the
// active transport, serializes connect and disconnect, drives periodic
// auto-reconnect and runs inbound bytes through the frame reader and
// decoder in arrival order.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/motolink/motolink-core/pkg/protocol"
	"github.com/motolink/motolink-core/pkg/transport"
)

// State is the link state of a session.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateDisconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Session is a snapshot of the supervisor's state.
type Session struct {
	DeviceAddress string
	// LastKnownAddress is the address of the last successful connection
	// and the target of auto-reconnect.
	LastKnownAddress string
	TransportKind    transport.Kind
	State            State
	Secure           bool
	AutoReconnect    bool
	Busy             bool
}

// Connected reports whether the session has a live link.
func (s Session) Connected() bool {
	return s.State == StateConnected
}

// Consumer receives everything the session produces. Calls are made from
// the supervisor's goroutine, in arrival order, and must not block.
type Consumer interface {
	HandleReading(protocol.Reading)
	HandleMessage(protocol.Message)
	HandleSession(Session)
	// HandleError receives recoverable errors as they happen, one per
	// failure, for display to the user.
	HandleError(error)
}

// LogSink receives every complete frame for append-only persistence.
type LogSink interface {
	Append(ts time.Time, frame protocol.Frame) error
}

// Factory picks and builds transports. transport.Builder implements it.
type Factory interface {
	Resolve(ctx context.Context, address string) (transport.Kind, error)
	New(kind transport.Kind) (transport.Transport, error)
}

// BusyError is returned when a connect or disconnect is requested while
// another is in flight. The request is dropped, not queued.
type BusyError struct {
	Op string
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("session busy: cannot %s while another operation is in progress", e.Op)
}

// IsBusy reports whether err is, or wraps, a BusyError.
func IsBusy(err error) bool {
	var busy *BusyError
	return errors.As(err, &busy)
}

// ErrStopped is returned by requests made after Run has returned.
var ErrStopped = errors.New("session supervisor stopped")

// NopConsumer discards everything.
type NopConsumer struct{}

func (NopConsumer) HandleReading(protocol.Reading) {}
func (NopConsumer) HandleMessage(protocol.Message) {}
func (NopConsumer) HandleSession(Session)          {}
func (NopConsumer) HandleError(error)              {}
