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

package mocks

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/motolink/motolink-core/pkg/transport"
	"github.com/stretchr/testify/mock"
)

// MockSerialPort is a mock implementation of transport.SerialPort.
type MockSerialPort struct {
	mock.Mock
}

func (m *MockSerialPort) Read(p []byte) (int, error) {
	args := m.Called(p)
	if data, ok := args.Get(0).([]byte); ok {
		n := copy(p, data)
		return n, args.Error(1)
	}
	return args.Int(0), args.Error(1)
}

func (m *MockSerialPort) Write(p []byte) (int, error) {
	args := m.Called(p)
	return args.Int(0), args.Error(1)
}

func (m *MockSerialPort) Close() error {
	args := m.Called()
	if err := args.Error(0); err != nil {
		return fmt.Errorf("mock operation failed: %w", err)
	}
	return nil
}

func (m *MockSerialPort) SetReadTimeout(t time.Duration) error {
	args := m.Called(t)
	if err := args.Error(0); err != nil {
		return fmt.Errorf("mock operation failed: %w", err)
	}
	return nil
}

// MockKindResolver is a mock implementation of transport.KindResolver.
type MockKindResolver struct {
	mock.Mock
}

func (m *MockKindResolver) DeviceKind(ctx context.Context, address string) (transport.Kind, error) {
	args := m.Called(ctx, address)
	kind, _ := args.Get(0).(transport.Kind)
	return kind, args.Error(1)
}

// MockCharacteristic is a mock implementation of transport.Characteristic.
// StartNotify stores the callback so tests can push notifications with
// Notify.
type MockCharacteristic struct {
	notify func([]byte)
	mock.Mock
	mu sync.Mutex
}

func (m *MockCharacteristic) StartNotify(ctx context.Context, fn func([]byte)) error {
	args := m.Called(ctx, fn)
	if err := args.Error(0); err != nil {
		return err //nolint:wrapcheck // returned as configured
	}
	m.mu.Lock()
	m.notify = fn
	m.mu.Unlock()
	return nil
}

// Notify delivers data as if the remote characteristic changed value.
func (m *MockCharacteristic) Notify(data []byte) {
	m.mu.Lock()
	fn := m.notify
	m.mu.Unlock()
	if fn != nil {
		fn(data)
	}
}

func (m *MockCharacteristic) StopNotify() error {
	args := m.Called()
	return args.Error(0) //nolint:wrapcheck // returned as configured
}

func (m *MockCharacteristic) Write(data []byte) error {
	args := m.Called(data)
	return args.Error(0) //nolint:wrapcheck // returned as configured
}

func (m *MockCharacteristic) MTU() (int, error) {
	args := m.Called()
	return args.Int(0), args.Error(1)
}

// MockGATTLink is a mock implementation of transport.GATTLink. Drop closes
// the channel returned by Lost.
type MockGATTLink struct {
	lost chan struct{}
	mock.Mock
	once sync.Once
}

func NewMockGATTLink() *MockGATTLink {
	return &MockGATTLink{lost: make(chan struct{})}
}

func (m *MockGATTLink) Characteristic(
	ctx context.Context,
	service, char uuid.UUID,
) (transport.Characteristic, error) {
	args := m.Called(ctx, service, char)
	c, _ := args.Get(0).(transport.Characteristic)
	return c, args.Error(1)
}

func (m *MockGATTLink) Lost() <-chan struct{} {
	return m.lost
}

// Drop simulates the remote end dropping the connection.
func (m *MockGATTLink) Drop() {
	m.once.Do(func() { close(m.lost) })
}

func (m *MockGATTLink) Close() error {
	args := m.Called()
	return args.Error(0) //nolint:wrapcheck // returned as configured
}

// MockGATTDialer is a mock implementation of transport.GATTDialer.
type MockGATTDialer struct {
	mock.Mock
}

func (m *MockGATTDialer) DialGATT(ctx context.Context, address string, secure bool) (transport.GATTLink, error) {
	args := m.Called(ctx, address, secure)
	link, _ := args.Get(0).(transport.GATTLink)
	return link, args.Error(1)
}

// FakeConn is an in-memory transport.Conn. Pushed chunks are returned by
// Read in order; Read waits at most PollInterval before returning (0, nil).
type FakeConn struct {
	data     chan []byte
	closed   chan struct{}
	failErr  chan readFailure
	written  [][]byte
	poll     time.Duration
	mu       sync.Mutex
	closeOne sync.Once
}

func NewFakeConn() *FakeConn {
	return &FakeConn{
		data:    make(chan []byte, 64),
		closed:  make(chan struct{}),
		failErr: make(chan readFailure, 1),
		poll:    5 * time.Millisecond,
	}
}

// Push queues bytes for the next Read.
func (c *FakeConn) Push(b []byte) {
	c.data <- append([]byte(nil), b...)
}

type readFailure struct {
	err  error
	data []byte
}

// Fail makes the next Read return err.
func (c *FakeConn) Fail(err error) {
	c.failErr <- readFailure{err: err}
}

// FailWithData makes the next Read return b together with err, the way a
// socket can hand back its last bytes along with the error that ended it.
func (c *FakeConn) FailWithData(b []byte, err error) {
	c.failErr <- readFailure{err: err, data: append([]byte(nil), b...)}
}

func (c *FakeConn) Read(p []byte) (int, error) {
	select {
	case <-c.closed:
		return 0, io.ErrClosedPipe
	case f := <-c.failErr:
		return copy(p, f.data), f.err
	case b := <-c.data:
		return copy(p, b), nil
	case <-time.After(c.poll):
		return 0, nil
	}
}

func (c *FakeConn) Write(p []byte) (int, error) {
	select {
	case <-c.closed:
		return 0, io.ErrClosedPipe
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, append([]byte(nil), p...))
	return len(p), nil
}

func (c *FakeConn) Close() error {
	c.closeOne.Do(func() { close(c.closed) })
	return nil
}

// Closed reports whether Close was called.
func (c *FakeConn) Closed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// Written returns a copy of every write, in order.
func (c *FakeConn) Written() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.written))
	copy(out, c.written)
	return out
}

// FakeDialer hands out FakeConns. When Gate is set, Dial blocks until a
// value is sent on it or the context ends.
type FakeDialer struct {
	Err   error
	Gate  chan struct{}
	conns []*FakeConn
	calls int
	mu    sync.Mutex
}

func (d *FakeDialer) Dial(ctx context.Context, _ string, _ bool) (transport.Conn, error) {
	d.mu.Lock()
	d.calls++
	gate := d.Gate
	err := d.Err
	d.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err() //nolint:wrapcheck // context error passed through
		}
	}
	if err != nil {
		return nil, err
	}

	conn := NewFakeConn()
	d.mu.Lock()
	d.conns = append(d.conns, conn)
	d.mu.Unlock()
	return conn, nil
}

// SetErr changes the error returned by subsequent dials.
func (d *FakeDialer) SetErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Err = err
}

// Calls returns how many times Dial was invoked.
func (d *FakeDialer) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

// Last returns the most recent connection, or nil.
func (d *FakeDialer) Last() *FakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}
