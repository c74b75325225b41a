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
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/motolink/motolink-core/pkg/helpers/syncutil"
	"github.com/motolink/motolink-core/pkg/protocol"
	"github.com/rs/zerolog/log"
)

// attHeaderSize is the ATT notification overhead subtracted from the MTU.
const attHeaderSize = 3

// Characteristic is a remote GATT characteristic.
type Characteristic interface {
	// StartNotify subscribes to value notifications. fn is called from the
	// link's signal goroutine.
	StartNotify(ctx context.Context, fn func([]byte)) error
	StopNotify() error
	Write(data []byte) error
	MTU() (int, error)
}

// GATTLink is an established Low Energy connection.
type GATTLink interface {
	Characteristic(ctx context.Context, service, char uuid.UUID) (Characteristic, error)
	// Lost is closed when the remote end drops the connection.
	Lost() <-chan struct{}
	Close() error
}

// GATTDialer establishes Low Energy connections.
type GATTDialer interface {
	DialGATT(ctx context.Context, address string, secure bool) (GATTLink, error)
}

// NotifyTransport is the Low Energy link. Inbound bytes arrive as RX
// characteristic notifications and commands are written to TX.
type NotifyTransport struct {
	clock      clockwork.Clock
	dialer     GATTDialer
	link       GATTLink
	rx         Characteristic
	tx         Characteristic
	onData     func([]byte)
	onLost     func(error)
	done       chan struct{}
	address    string
	wg         sync.WaitGroup
	mtuDelay   time.Duration
	startDelay time.Duration
	mu         syncutil.RWMutex
}

// NotifyOptions configures a NotifyTransport.
type NotifyOptions struct {
	Clock clockwork.Clock
	// MTUDelay is how long after connecting the negotiated MTU is checked.
	MTUDelay   time.Duration
	StartDelay time.Duration
}

func NewNotifyTransport(dialer GATTDialer, opts NotifyOptions) *NotifyTransport {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &NotifyTransport{
		clock:      clock,
		dialer:     dialer,
		mtuDelay:   opts.MTUDelay,
		startDelay: opts.StartDelay,
	}
}

func (*NotifyTransport) Kind() Kind {
	return KindLowEnergy
}

func (t *NotifyTransport) StartDelay() time.Duration {
	return t.startDelay
}

func (t *NotifyTransport) SetHandlers(onData func([]byte), onLost func(error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onData = onData
	t.onLost = onLost
}

func (t *NotifyTransport) Connect(ctx context.Context, address string, secure bool) error {
	t.mu.RLock()
	connected := t.link != nil
	t.mu.RUnlock()
	if connected {
		return &TransportError{Op: "connect", Address: address, Err: ErrAlreadyConnected}
	}

	link, err := t.dialer.DialGATT(ctx, address, secure)
	if err != nil {
		return wrapConnectErr(address, err)
	}

	rx, err := link.Characteristic(ctx, BridgeServiceUUID, BridgeRXUUID)
	if err != nil {
		_ = link.Close()
		return wrapConnectErr(address, fmt.Errorf("rx characteristic: %w", err))
	}
	tx, err := link.Characteristic(ctx, BridgeServiceUUID, BridgeTXUUID)
	if err != nil {
		_ = link.Close()
		return wrapConnectErr(address, fmt.Errorf("tx characteristic: %w", err))
	}

	done := make(chan struct{})
	t.mu.Lock()
	t.link = link
	t.rx = rx
	t.tx = tx
	t.address = address
	t.done = done
	t.mu.Unlock()

	if err := rx.StartNotify(ctx, func(b []byte) { t.deliver(done, b) }); err != nil {
		t.teardown()
		return wrapConnectErr(address, fmt.Errorf("start notify: %w", err))
	}

	t.wg.Add(2)
	go t.watchLink(link, done)
	go t.checkMTU(tx, done)

	log.Info().Str("address", address).Bool("secure", secure).Msg("gatt connected")
	return nil
}

func wrapConnectErr(address string, err error) error {
	var cfgErr *ConfigurationError
	if errors.As(err, &cfgErr) {
		return err
	}
	return &TransportError{Op: "connect", Address: address, Err: err}
}

func (t *NotifyTransport) deliver(done <-chan struct{}, data []byte) {
	select {
	case <-done:
		return
	default:
	}
	t.mu.RLock()
	onData := t.onData
	t.mu.RUnlock()
	if onData != nil && len(data) > 0 {
		onData(append([]byte(nil), data...))
	}
}

func (t *NotifyTransport) watchLink(link GATTLink, done <-chan struct{}) {
	defer t.wg.Done()
	select {
	case <-done:
	case <-link.Lost():
		t.mu.RLock()
		onLost := t.onLost
		address := t.address
		t.mu.RUnlock()
		log.Warn().Str("address", address).Msg("gatt link lost")
		if onLost != nil {
			onLost(&TransportError{Op: "receive", Address: address, Err: ErrLinkLost})
		}
	}
}

func (t *NotifyTransport) checkMTU(tx Characteristic, done <-chan struct{}) {
	defer t.wg.Done()
	select {
	case <-done:
		return
	case <-t.clock.After(t.mtuDelay):
	}

	mtu, err := tx.MTU()
	if err != nil {
		log.Debug().Err(err).Msg("mtu not available")
		return
	}
	if payload := mtu - attHeaderSize; payload < protocol.TelemetryFrameLength {
		log.Warn().
			Int("mtu", mtu).
			Int("frameLength", protocol.TelemetryFrameLength).
			Msg("mtu too small, telemetry frames will be split across notifications")
		return
	}
	log.Debug().Int("mtu", mtu).Msg("mtu negotiated")
}

// teardown releases the link and returns the first error.
func (t *NotifyTransport) teardown() error {
	t.mu.Lock()
	link := t.link
	rx := t.rx
	done := t.done
	t.link = nil
	t.rx = nil
	t.tx = nil
	t.done = nil
	t.mu.Unlock()

	if link == nil {
		return nil
	}
	close(done)
	t.wg.Wait()

	var errs []error
	if err := rx.StopNotify(); err != nil {
		errs = append(errs, err)
	}
	if err := link.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (t *NotifyTransport) Disconnect() error {
	t.mu.RLock()
	address := t.address
	t.mu.RUnlock()
	if err := t.teardown(); err != nil {
		return &TransportError{Op: "disconnect", Address: address, Err: err}
	}
	return nil
}

func (t *NotifyTransport) Send(data []byte) error {
	t.mu.RLock()
	tx := t.tx
	address := t.address
	t.mu.RUnlock()

	if tx == nil {
		return &TransportError{Op: "send", Err: ErrNotConnected}
	}
	if err := tx.Write(data); err != nil {
		return &TransportError{Op: "send", Address: address, Err: err}
	}
	return nil
}

func (t *NotifyTransport) IsConnected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.link == nil {
		return false
	}
	select {
	case <-t.link.Lost():
		return false
	default:
		return true
	}
}
