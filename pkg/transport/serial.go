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
	"time"

	"go.bug.st/serial"
)

// DefaultBaudRate matches the bridge firmware's UART.
const DefaultBaudRate = 115200

// SerialPort is the subset of serial.Port the stream transport needs.
type SerialPort interface {
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
	Close() error
	SetReadTimeout(t time.Duration) error
}

// SerialPortFactory opens a serial port.
type SerialPortFactory func(path string, mode *serial.Mode) (SerialPort, error)

// DefaultSerialPortFactory opens a real serial port.
func DefaultSerialPortFactory(path string, mode *serial.Mode) (SerialPort, error) {
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}
	return port, nil
}

// SerialDialer connects through a serial device node, usually an RFCOMM
// TTY bound with rfcomm(1) or a USB adapter wired to the bridge's UART.
// The dial address is ignored when Path is set.
type SerialDialer struct {
	Factory      SerialPortFactory
	Path         string
	BaudRate     int
	PollInterval time.Duration
}

func (d *SerialDialer) Dial(_ context.Context, address string, _ bool) (Conn, error) {
	path := d.Path
	if path == "" {
		path = address
	}
	if path == "" {
		return nil, &ConfigurationError{Reason: "no serial device path configured"}
	}

	baud := d.BaudRate
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	factory := d.Factory
	if factory == nil {
		factory = DefaultSerialPortFactory
	}

	port, err := factory(path, &serial.Mode{BaudRate: baud})
	if err != nil {
		var portErr *serial.PortError
		if errors.As(err, &portErr) {
			switch portErr.Code() {
			case serial.PortNotFound, serial.PermissionDenied, serial.InvalidSpeed:
				return nil, &ConfigurationError{Reason: "cannot open " + path, Err: err}
			default:
			}
		}
		return nil, err
	}

	poll := d.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	if err := port.SetReadTimeout(poll); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}

	return port, nil
}
