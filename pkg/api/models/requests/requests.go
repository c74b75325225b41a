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


package requests

import (
	"context"
	"encoding/json"

	"github.com/motolink/motolink-core/pkg/api/models"
	"github.com/motolink/motolink-core/pkg/config"
	"github.com/motolink/motolink-core/pkg/datalog"
	"github.com/motolink/motolink-core/pkg/protocol"
	"github.com/motolink/motolink-core/pkg/service/session"
	"github.com/motolink/motolink-core/pkg/service/state"
)

// Session is the part of the session supervisor the API drives.
// *session.Supervisor implements it.
type Session interface {
	Connect(ctx context.Context, address string, secure, autoReconnect bool) error
	Disconnect(ctx context.Context, keepReconnecting bool) error
	SendCommand(ctx context.Context, cmd protocol.Command) error
	Snapshot(ctx context.Context) (session.Session, error)
	Table(ctx context.Context) (*protocol.FieldTable, error)
	InjectTestFrame(ctx context.Context) error
}

var _ Session = (*session.Supervisor)(nil)

type RequestEnv struct {
	Context context.Context //nolint:containedctx // request scoped
	Session Session
	Config  *config.Instance
	State   *state.State
	DataLog *datalog.Sink
	Params  json.RawMessage
	ID      models.RPCID
	IsLocal bool
}
