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

import "encoding/json"

const (
	MethodSession           = "session"
	MethodSessionConnect    = "session.connect"
	MethodSessionDisconnect = "session.disconnect"
	MethodSessionCommand    = "session.command"
	MethodReadingsLatest    = "readings.latest"
	MethodReadingsTest      = "readings.test"
	MethodFields            = "fields"
	MethodDataLog           = "datalog"
	MethodDataLogStart      = "datalog.start"
	MethodDataLogStop       = "datalog.stop"
	MethodVersion           = "version"
)

const (
	NotificationReadingsNew    = "readings.new"
	NotificationMessagesNew    = "messages.new"
	NotificationSessionChanged = "session.changed"
	NotificationSessionError   = "session.error"
	NotificationDataLogChanged = "datalog.changed"
)

type Notification struct {
	Method string
	Params json.RawMessage
}

type RequestObject struct {
	ID      *RPCID          `json:"id,omitempty"`
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type NotificationObject struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type ErrorObject struct {
	Data    *ErrorData `json:"data,omitempty"`
	Message string     `json:"message"`
	Code    int        `json:"code"`
}

// ErrorData classifies a server error so clients can react without
// parsing the message.
type ErrorData struct {
	Kind string `json:"kind"`
}

type ResponseObject struct {
	Result  any          `json:"result"`
	Error   *ErrorObject `json:"error,omitempty"`
	JSONRPC string       `json:"jsonrpc"`
	ID      RPCID        `json:"id"`
}

// ResponseErrorObject omits result, as JSON-RPC requires for errors.
type ResponseErrorObject struct {
	Error   *ErrorObject `json:"error"`
	JSONRPC string       `json:"jsonrpc"`
	ID      RPCID        `json:"id"`
}
