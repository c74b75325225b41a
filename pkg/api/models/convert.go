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


package models

import (
	"time"

	"github.com/motolink/motolink-core/pkg/protocol"
	"github.com/motolink/motolink-core/pkg/service/session"
)

func NewReadingResponse(ts time.Time, r protocol.Reading) ReadingResponse {
	resp := ReadingResponse{
		Time:    ts,
		Values:  make([]ValueResponse, len(r.Values)),
		Skipped: r.Skipped,
	}
	for i, v := range r.Values {
		resp.Values[i] = ValueResponse{
			Label:   v.Label,
			Unit:    v.Unit,
			Display: v.Text,
			Raw:     v.Raw,
			Value:   v.Scaled,
		}
	}
	if gear, ok := r.Value(protocol.LabelGear); ok {
		resp.Gear = protocol.GearIndicator(gear.Raw)
	}
	return resp
}

func NewMessageResponse(ts time.Time, m protocol.Message) MessageResponse {
	return MessageResponse{Time: ts, Text: m.Text, Known: m.Known()}
}

func NewSessionResponse(s session.Session, enc protocol.Encoding) SessionResponse {
	return SessionResponse{
		DeviceAddress:    s.DeviceAddress,
		LastKnownAddress: s.LastKnownAddress,
		TransportKind:    s.TransportKind.String(),
		State:            s.State.String(),
		Encoding:         enc.String(),
		Connected:        s.Connected(),
		Secure:           s.Secure,
		AutoReconnect:    s.AutoReconnect,
		Busy:             s.Busy,
	}
}

func NewFieldsResponse(enc protocol.Encoding, table *protocol.FieldTable) FieldsResponse {
	fields := table.Fields()
	resp := FieldsResponse{
		Encoding: enc.String(),
		Fields:   make([]FieldResponse, len(fields)),
	}
	for i, f := range fields {
		resp.Fields[i] = FieldResponse{
			Label:     f.Label,
			Unit:      f.Unit,
			Transform: string(f.Transform),
			RawIndex:  f.RawIndex,
			ShowAtPos: f.ShowAtPos,
			Visible:   f.Visible(),
		}
	}
	return resp
}
