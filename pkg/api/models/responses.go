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

import "time"

type SessionResponse struct {
	DeviceAddress    string `json:"deviceAddress,omitempty"`
	LastKnownAddress string `json:"lastKnownAddress,omitempty"`
	TransportKind    string `json:"transportKind"`
	State            string `json:"state"`
	Encoding         string `json:"encoding"`
	Connected        bool   `json:"connected"`
	Secure           bool   `json:"secure"`
	AutoReconnect    bool   `json:"autoReconnect"`
	Busy             bool   `json:"busy"`
}

type ValueResponse struct {
	Label   string  `json:"label"`
	Unit    string  `json:"unit,omitempty"`
	Display string  `json:"display"`
	Raw     int     `json:"raw"`
	Value   float64 `json:"value"`
}

type ReadingResponse struct {
	Time    time.Time       `json:"time"`
	Gear    string          `json:"gear,omitempty"`
	Values  []ValueResponse `json:"values"`
	Skipped int             `json:"skipped,omitempty"`
}

type MessageResponse struct {
	Time  time.Time `json:"time"`
	Text  string    `json:"text"`
	Known bool      `json:"known"`
}

type LatestResponse struct {
	Reading *ReadingResponse `json:"reading,omitempty"`
	Message *MessageResponse `json:"message,omitempty"`
}

type FieldResponse struct {
	Label     string `json:"label" csv:"label"`
	Unit      string `json:"unit,omitempty" csv:"unit"`
	Transform string `json:"transform,omitempty" csv:"transform"`
	RawIndex  int    `json:"rawIndex" csv:"raw_index"`
	ShowAtPos int    `json:"showAtPos" csv:"show_at_pos"`
	Visible   bool   `json:"visible" csv:"visible"`
}

type FieldsResponse struct {
	Encoding string          `json:"encoding"`
	Fields   []FieldResponse `json:"fields"`
}

type DataLogResponse struct {
	Path    string `json:"path,omitempty"`
	Frames  int    `json:"frames"`
	Logging bool   `json:"logging"`
}

type ErrorResponse struct {
	Time    time.Time `json:"time"`
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
}

type VersionResponse struct {
	Version  string `json:"version"`
	Platform string `json:"platform"`
	DeviceID string `json:"deviceId"`
}
