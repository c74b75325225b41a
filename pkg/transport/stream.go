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

package transport

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/motolink/motolink-core/pkg/helpers/syncutil"
	"github.com/rs/zerolog/log"
)

// Conn is an open byte stream. Read must return (0, nil) when its poll
// interval elapses without data.
type Conn interface {
	io.ReadWriteCloser
}

// Dialer opens a byte stream to a device.
type Dialer interface {
	Dial(ctx context.Context, address string, secure bool) (Conn, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, address string, secure bool) (Conn, error)

func (f DialerFunc) Dial(ctx context.Context, address string, secure bool) (Conn, error) {
	return f(ctx, address, secure)
}

// StreamTransport is the classic serial port profile link. Inbound data is
// pulled with Read by the session's worker.
type StreamTransport struct {
	dialer     Dialer
	conn       Conn
	address    string
	startDelay time.Duration
	mu         syncutil.RWMutex
	broken     bool
}

// NewStreamTransport returns a stream transport that opens connections with
// dialer. startDelay is how long to wait after connecting before the start
// command is sent.
func NewStreamTransport(dialer Dialer, startDelay time.Duration) *StreamTransport {
	return &StreamTransport{
		dialer:     dialer,
		startDelay: startDelay,
	}
}

func (*StreamTransport) Kind() Kind {
	return KindClassic
}

func (t *StreamTransport) StartDelay() time.Duration {
	return t.startDelay
}

func (t *StreamTransport) Connect(ctx context.Context, address string, secure bool) error {
	t.mu.RLock()
	connected := t.conn != nil
	t.mu.RUnlock()
	if connected {
		return &TransportError{Op: "connect", Address: address, Err: ErrAlreadyConnected}
	}

	conn, err := t.dialer.Dial(ctx, address, secure)
	if err != nil {
		var cfgErr *ConfigurationError
		if errors.As(err, &cfgErr) {
			return err
		}
		return &TransportError{Op: "connect", Address: address, Err: err}
	}

	t.mu.Lock()
	t.conn = conn
	t.address = address
	t.broken = false
	t.mu.Unlock()

	log.Info().Str("address", address).Bool("secure", secure).Msg("stream connected")
	return nil
}

func (t *StreamTransport) Disconnect() error {
	t.mu.Lock()
	conn := t.conn
	address := t.address
	t.conn = nil
	t.broken = false
	t.mu.Unlock()

	if conn == nil {
		return nil
	}
	if err := conn.Close(); err != nil {
		return &TransportError{Op: "disconnect", Address: address, Err: err}
	}
	log.Debug().Str("address", address).Msg("stream closed")
	return nil
}

func (t *StreamTransport) Send(data []byte) error {
	t.mu.RLock()
	conn := t.conn
	address := t.address
	t.mu.RUnlock()

	if conn == nil {
		return &TransportError{Op: "send", Err: ErrNotConnected}
	}
	if _, err := conn.Write(data); err != nil {
		return &TransportError{Op: "send", Address: address, Err: err}
	}
	return nil
}

// Read reads whatever bytes are available, waiting at most one poll
// interval. Any error other than a timeout marks the link broken.
func (t *StreamTransport) Read(p []byte) (int, error) {
	t.mu.RLock()
	conn := t.conn
	address := t.address
	t.mu.RUnlock()

	if conn == nil {
		return 0, &TransportError{Op: "read", Err: ErrNotConnected}
	}

	n, err := conn.Read(p)
	if err != nil {
		t.mu.Lock()
		t.broken = true
		t.mu.Unlock()
		return n, &TransportError{Op: "read", Address: address, Err: err}
	}
	return n, nil
}

func (t *StreamTransport) IsConnected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.conn != nil && !t.broken
}
