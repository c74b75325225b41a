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

// Package protocol implements the wire protocol spoken by the K-line sensor
// bridge: stream framing, the field table and the decoder that turns frames
// into scaled readings, plus the single-byte control commands.
package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// Encoding selects the wire format of the inbound stream. It is a
// deployment-time choice and is never negotiated with the device.
type Encoding int

const (
	// EncodingBinary is the length-prefixed [type][length][payload] format.
	EncodingBinary Encoding = iota
	// EncodingText is the legacy newline-terminated CSV format.
	EncodingText
)

const (
	EncodingNameBinary = "binary"
	EncodingNameText   = "text"
)

func (e Encoding) String() string {
	switch e {
	case EncodingBinary:
		return EncodingNameBinary
	case EncodingText:
		return EncodingNameText
	default:
		return fmt.Sprintf("encoding(%d)", int(e))
	}
}

// ParseEncoding maps a config value to an Encoding.
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", EncodingNameBinary:
		return EncodingBinary, nil
	case EncodingNameText:
		return EncodingText, nil
	default:
		return 0, fmt.Errorf("unknown encoding: %q", s)
	}
}

// FrameType is byte 0 of a binary frame.
type FrameType byte

const (
	FrameTelemetry FrameType = 0x01
	FrameText      FrameType = 0x02
)

const (
	// HeaderSize is the type byte plus the length byte.
	HeaderSize = 2
	// TelemetryFrameLength is the declared length of a full telemetry frame
	// sent by the bridge firmware.
	TelemetryFrameLength = 59
)

// Frame is one complete unit extracted from the inbound stream. Raw holds
// the frame exactly as received: for binary frames this includes the two
// header bytes, for text frames it is the line without its delimiter.
type Frame struct {
	Raw      []byte
	Encoding Encoding
}

// Type returns the binary frame type. Text frames always report
// FrameTelemetry.
func (f Frame) Type() FrameType {
	if f.Encoding == EncodingText || len(f.Raw) == 0 {
		return FrameTelemetry
	}
	return FrameType(f.Raw[0])
}

// Length returns the declared length of a binary frame, or the line length
// of a text frame.
func (f Frame) Length() int {
	if f.Encoding == EncodingBinary && len(f.Raw) >= HeaderSize {
		return int(f.Raw[1])
	}
	return len(f.Raw)
}

// Payload returns the bytes following the binary header. Text frames
// return the whole line.
func (f Frame) Payload() []byte {
	if f.Encoding == EncodingText {
		return f.Raw
	}
	if len(f.Raw) < HeaderSize {
		return nil
	}
	return f.Raw[HeaderSize:]
}

// Fields splits a text frame on commas. Binary frames return nil.
func (f Frame) Fields() []string {
	if f.Encoding != EncodingText {
		return nil
	}
	return strings.Split(string(f.Raw), ",")
}

// TestFrame returns the idle telemetry frame used by the bridge firmware
// for bench testing: TPS at its closed position, both temperature
// channels at 0 °C and every other channel zero.
func TestFrame() Frame {
	raw := make([]byte, TelemetryFrameLength)
	raw[0] = byte(FrameTelemetry)
	raw[1] = TelemetryFrameLength
	raw[21] = 58
	raw[23] = 40
	raw[24] = 40
	return Frame{Raw: raw, Encoding: EncodingBinary}
}

// TestFrameFor returns the test frame in the given encoding. The text form
// carries the two leading tokens the legacy firmware prepends.
func TestFrameFor(enc Encoding) Frame {
	f := TestFrame()
	if enc != EncodingText {
		return f
	}
	var b strings.Builder
	b.WriteString("0,0")
	for _, v := range f.Payload() {
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(int(v)))
	}
	return Frame{Raw: []byte(b.String()), Encoding: EncodingText}
}

// Command is a single-byte control code written to the device.
type Command byte

const (
	CommandStop  Command = 0x00
	CommandStart Command = 0x01
	CommandReset Command = 0xFF
)

func (c Command) String() string {
	switch c {
	case CommandStop:
		return "stop"
	case CommandStart:
		return "start"
	case CommandReset:
		return "reset"
	default:
		return fmt.Sprintf("command(0x%02X)", byte(c))
	}
}

// Bytes returns the wire form of the command.
func (c Command) Bytes() []byte {
	return []byte{byte(c)}
}

// ParseCommand maps a command name to its code. "go" is accepted as an
// alias for start.
func ParseCommand(s string) (Command, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "reset":
		return CommandReset, nil
	case "start", "go":
		return CommandStart, nil
	case "stop":
		return CommandStop, nil
	default:
		return 0, fmt.Errorf("unknown command: %q", s)
	}
}
