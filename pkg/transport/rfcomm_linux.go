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

//go:build linux

package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

const (
	solRFCOMM      = 18
	rfcommLM       = 0x03
	rfcommLMAuth   = 0x0002
	rfcommLMEncryp = 0x0004
)

// DefaultRFCOMMChannel is the channel the bridge registers its serial port
// profile on.
const DefaultRFCOMMChannel = 1

// RFCOMMDialer opens a kernel RFCOMM socket directly, without binding a TTY.
type RFCOMMDialer struct {
	Channel      uint8
	PollInterval time.Duration
}

func (d *RFCOMMDialer) Dial(ctx context.Context, address string, secure bool) (Conn, error) {
	addr, err := ParseAddress(address)
	if err != nil {
		return nil, &ConfigurationError{Reason: "invalid device address", Err: err}
	}

	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, unix.BTPROTO_RFCOMM)
	if err != nil {
		if errors.Is(err, unix.EAFNOSUPPORT) || errors.Is(err, unix.EPROTONOSUPPORT) {
			return nil, &ConfigurationError{Reason: "kernel has no bluetooth rfcomm support", Err: err}
		}
		if errors.Is(err, unix.EPERM) || errors.Is(err, unix.EACCES) {
			return nil, &ConfigurationError{Reason: "permission denied opening rfcomm socket", Err: err}
		}
		return nil, fmt.Errorf("failed to create rfcomm socket: %w", err)
	}

	if secure {
		err = unix.SetsockoptInt(fd, solRFCOMM, rfcommLM, rfcommLMAuth|rfcommLMEncryp)
		if err != nil {
			_ = unix.Close(fd)
			return nil, fmt.Errorf("failed to require rfcomm encryption: %w", err)
		}
	}

	channel := d.Channel
	if channel == 0 {
		channel = DefaultRFCOMMChannel
	}
	sa := &unix.SockaddrRFCOMM{Addr: addr.Reversed(), Channel: channel}

	// connect(2) blocks until the baseband link is up or fails, so a
	// cancelled context closes the socket to unblock it.
	done := make(chan struct{})
	var cancelled atomic.Bool
	go func() {
		select {
		case <-ctx.Done():
			cancelled.Store(true)
			_ = unix.Shutdown(fd, unix.SHUT_RDWR)
		case <-done:
		}
	}()
	err = unix.Connect(fd, sa)
	close(done)
	if err != nil || cancelled.Load() {
		_ = unix.Close(fd)
		if cancelled.Load() {
			return nil, ctx.Err()
		}
		if errors.Is(err, unix.EHOSTDOWN) || errors.Is(err, unix.ENODEV) {
			return nil, &ConfigurationError{Reason: "no bluetooth adapter available", Err: ErrNoAdapter}
		}
		return nil, fmt.Errorf("failed to connect rfcomm channel %d: %w", channel, err)
	}

	poll := d.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &rfcommConn{fd: fd, poll: poll}, nil
}

type rfcommConn struct {
	fd     int
	poll   time.Duration
	closed atomic.Bool
}

func (c *rfcommConn) Read(p []byte) (int, error) {
	if c.closed.Load() {
		return 0, io.ErrClosedPipe
	}
	fds := []unix.PollFd{{Fd: int32(c.fd), Events: unix.POLLIN}} //nolint:gosec // fd fits in int32
	n, err := unix.Poll(fds, int(c.poll.Milliseconds()))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return 0, nil
		}
		return 0, fmt.Errorf("poll failed: %w", err)
	}
	if n == 0 {
		return 0, nil
	}
	if fds[0].Revents&(unix.POLLERR|unix.POLLNVAL) != 0 {
		return 0, io.ErrUnexpectedEOF
	}

	read, err := unix.Read(c.fd, p)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
			return 0, nil
		}
		return 0, fmt.Errorf("read failed: %w", err)
	}
	if read == 0 {
		return 0, io.EOF
	}
	return read, nil
}

func (c *rfcommConn) Write(p []byte) (int, error) {
	if c.closed.Load() {
		return 0, io.ErrClosedPipe
	}
	n, err := unix.Write(c.fd, p)
	if err != nil {
		return n, fmt.Errorf("write failed: %w", err)
	}
	return n, nil
}

func (c *rfcommConn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	_ = unix.Shutdown(c.fd, unix.SHUT_RDWR)
	if err := unix.Close(c.fd); err != nil {
		return fmt.Errorf("close failed: %w", err)
	}
	return nil
}
