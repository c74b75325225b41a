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

package protocol

import (
	"strconv"
	"strings"
)

// Decoded is the result of decoding one frame: a Reading or a Message.
type Decoded interface {
	decoded()
}

// Value is one displayed channel of a Reading.
type Value struct {
	Label  string  `json:"label"`
	Unit   string  `json:"unit"`
	Text   string  `json:"text"`
	Raw    int     `json:"raw"`
	Scaled float64 `json:"value"`
	Pos    int     `json:"pos"`
}

// String formats the value for display, e.g. "RPM 2890rpm".
func (v Value) String() string {
	return v.Label + " " + v.Text + v.Unit
}

// Reading is a decoded telemetry frame. Values are in display order.
// Skipped counts visible fields that were missing or malformed.
type Reading struct {
	Values  []Value `json:"values"`
	Skipped int     `json:"skipped,omitempty"`
}

func (Reading) decoded() {}

// Value returns the value with the given label.
func (r Reading) Value(label string) (Value, bool) {
	for _, v := range r.Values {
		if v.Label == label {
			return v, true
		}
	}
	return Value{}, false
}

// String joins the values with " | " for single-line display.
func (r Reading) String() string {
	parts := make([]string, len(r.Values))
	for i, v := range r.Values {
		parts[i] = v.String()
	}
	return strings.Join(parts, " | ")
}

// Message is a text notification sent by the bridge firmware.
type Message struct {
	Text string `json:"text"`
}

func (Message) decoded() {}

// Firmware notifications sent over the text frame type.
const (
	MessageReady        = "ESP_SV ready"
	MessageInit         = "INIT"
	MessageStartSession = "START_SESSION"
	MessageActive       = "ACTIVE"
)

// Known reports whether the message is one the bridge firmware is known
// to send.
func (m Message) Known() bool {
	switch m.Text {
	case MessageReady, MessageInit, MessageStartSession, MessageActive:
		return true
	default:
		return false
	}
}

// Decoder turns frames into readings using a field table. It holds no
// per-frame state.
type Decoder struct {
	table *FieldTable
}

func NewDecoder(table *FieldTable) *Decoder {
	return &Decoder{table: table}
}

func (d *Decoder) Table() *FieldTable {
	return d.table
}

// Decode converts a frame. Malformed fields are skipped individually; a
// frame that cannot be decoded at all returns a *ProtocolError.
func (d *Decoder) Decode(f Frame) (Decoded, error) {
	if f.Encoding == EncodingText {
		return d.decodeText(f), nil
	}

	if len(f.Raw) < HeaderSize {
		return nil, &ProtocolError{Err: ErrShortFrame, Encoding: f.Encoding, Length: len(f.Raw)}
	}

	switch f.Type() {
	case FrameTelemetry:
		return d.decodeBinary(f), nil
	case FrameText:
		return Message{Text: string(f.Raw[HeaderSize:])}, nil
	default:
		return nil, &ProtocolError{Err: ErrUnknownFrameType, Encoding: f.Encoding, Length: len(f.Raw)}
	}
}

func (d *Decoder) decodeBinary(f Frame) Reading {
	visible := d.table.visible
	r := Reading{Values: make([]Value, 0, len(visible))}
	for _, spec := range visible {
		pos := HeaderSize + spec.RawIndex
		if pos >= len(f.Raw) {
			r.Skipped++
			continue
		}
		r.Values = append(r.Values, newValue(spec, int(f.Raw[pos])))
	}
	return r
}

func (d *Decoder) decodeText(f Frame) Reading {
	tokens := f.Fields()
	visible := d.table.visible
	r := Reading{Values: make([]Value, 0, len(visible))}
	for _, spec := range visible {
		if spec.RawIndex >= len(tokens) {
			r.Skipped++
			continue
		}
		raw, err := strconv.Atoi(strings.TrimSpace(tokens[spec.RawIndex]))
		if err != nil {
			r.Skipped++
			continue
		}
		r.Values = append(r.Values, newValue(spec, raw))
	}
	return r
}

func newValue(spec FieldSpec, raw int) Value {
	scaled, text := spec.Transform.Apply(raw)
	return Value{
		Label:  spec.Label,
		Unit:   spec.Unit,
		Text:   text,
		Raw:    raw,
		Scaled: scaled,
		Pos:    spec.ShowAtPos,
	}
}

// GearIndicator maps a raw gear channel value to its display character:
// "-" for neutral, "1" to "6" for a gear and "" for anything else.
func GearIndicator(raw int) string {
	switch {
	case raw == 0:
		return "-"
	case raw >= 1 && raw <= 6:
		return strconv.Itoa(raw)
	default:
		return ""
	}
}
