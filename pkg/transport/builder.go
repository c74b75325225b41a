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
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

const (
	DefaultAdapter      = "hci0"
	DefaultPollInterval = 100 * time.Millisecond
)

// Mode selects the transport variant.
type Mode string

const (
	// ModeAuto asks the adapter what the device advertises.
	ModeAuto   Mode = "auto"
	ModeStream Mode = "stream"
	ModeNotify Mode = "notify"
)

// StreamBackend selects how the classic byte stream is opened.
type StreamBackend string

const (
	StreamRFCOMM StreamBackend = "rfcomm"
	StreamSerial StreamBackend = "serial"
)

// KindResolver looks up the radio technology of a device.
type KindResolver interface {
	DeviceKind(ctx context.Context, address string) (Kind, error)
}

// Options configures the transports a Builder creates.
type Options struct {
	Clock         clockwork.Clock
	Mode          Mode
	Stream        StreamBackend
	Adapter       string
	SerialPath    string
	SerialBaud    int
	RFCOMMChannel uint8
	PollInterval  time.Duration
	MTUDelay      time.Duration
	StartDelay    time.Duration
}

// Builder chooses and constructs a transport for a device.
type Builder struct {
	resolver KindResolver
	gatt     GATTDialer
	stream   Dialer
	opts     Options
}

// NewBuilder returns a Builder backed by the platform's Bluetooth stack.
func NewBuilder(opts Options) (*Builder, error) {
	bluez := &BlueZ{Adapter: opts.Adapter}

	var stream Dialer
	switch opts.Stream {
	case StreamSerial:
		stream = &SerialDialer{
			Path:         opts.SerialPath,
			BaudRate:     opts.SerialBaud,
			PollInterval: opts.PollInterval,
		}
	case StreamRFCOMM, "":
		stream = &RFCOMMDialer{
			Channel:      opts.RFCOMMChannel,
			PollInterval: opts.PollInterval,
		}
	default:
		return nil, &ConfigurationError{Reason: fmt.Sprintf("unknown stream backend %q", opts.Stream)}
	}

	return NewBuilderWith(opts, bluez, bluez, stream)
}

// NewBuilderWith returns a Builder with explicit collaborators.
func NewBuilderWith(opts Options, resolver KindResolver, gatt GATTDialer, stream Dialer) (*Builder, error) {
	switch opts.Mode {
	case "":
		opts.Mode = ModeAuto
	case ModeAuto, ModeStream, ModeNotify:
	default:
		return nil, &ConfigurationError{Reason: fmt.Sprintf("unknown transport mode %q", opts.Mode)}
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Builder{
		resolver: resolver,
		gatt:     gatt,
		stream:   stream,
		opts:     opts,
	}, nil
}

// Resolve picks the transport kind for address. Classic and dual-mode
// devices use the byte stream; pure Low Energy devices use notifications.
// Devices the adapter cannot classify fall back to the byte stream.
func (b *Builder) Resolve(ctx context.Context, address string) (Kind, error) {
	switch b.opts.Mode {
	case ModeStream:
		return KindClassic, nil
	case ModeNotify:
		return KindLowEnergy, nil
	default:
	}

	if b.resolver == nil {
		return KindClassic, nil
	}
	kind, err := b.resolver.DeviceKind(ctx, address)
	if err != nil {
		return KindUnknown, err
	}
	if kind == KindUnknown {
		log.Debug().Str("address", address).Msg("device kind unknown, using stream transport")
		return KindClassic, nil
	}
	return kind, nil
}

// New constructs a disconnected transport for kind.
func (b *Builder) New(kind Kind) (Transport, error) {
	switch kind {
	case KindClassic, KindDual:
		if b.stream == nil {
			return nil, &ConfigurationError{Reason: "stream transport", Err: ErrUnsupported}
		}
		return NewStreamTransport(b.stream, b.opts.StartDelay), nil
	case KindLowEnergy:
		if b.gatt == nil {
			return nil, &ConfigurationError{Reason: "notify transport", Err: ErrUnsupported}
		}
		return NewNotifyTransport(b.gatt, NotifyOptions{
			Clock:      b.opts.Clock,
			MTUDelay:   b.opts.MTUDelay,
			StartDelay: b.opts.StartDelay,
		}), nil
	default:
		return nil, &ConfigurationError{Reason: fmt.Sprintf("no transport for device kind %s", kind)}
	}
}
