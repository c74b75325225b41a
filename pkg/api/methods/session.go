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


package methods

import (
	"encoding/json"
	"fmt"

	"github.com/motolink/motolink-core/pkg/api/models"
	"github.com/motolink/motolink-core/pkg/api/models/requests"
	"github.com/motolink/motolink-core/pkg/api/validation"
	"github.com/motolink/motolink-core/pkg/protocol"
	"github.com/motolink/motolink-core/pkg/transport"
	"github.com/rs/zerolog/log"
)

//nolint:gocritic // single-use parameter in API handler
func HandleSession(env requests.RequestEnv) (any, error) {
	snap, err := env.Session.Snapshot(env.Context)
	if err != nil {
		return nil, fmt.Errorf("session snapshot: %w", err)
	}
	return models.NewSessionResponse(snap, env.State.Encoding()), nil
}

// HandleSessionConnect connects to a device and, with remember set, stores
// it as the auto-connect target. The result is the session after the
// attempt.
//
//nolint:gocritic // single-use parameter in API handler
func HandleSessionConnect(env requests.RequestEnv) (any, error) {
	var params models.ConnectParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return nil, err //nolint:wrapcheck // mapped to invalid params by the server
	}

	addr, err := transport.ParseAddress(params.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", validation.ErrInvalidParams, err)
	}

	autoReconnect := env.Config.AutoReconnect()
	if params.AutoReconnect != nil {
		autoReconnect = *params.AutoReconnect
	}

	if params.Remember {
		if err := env.Config.SetDevice(addr.String(), params.Secure); err != nil {
			return nil, fmt.Errorf("remember device: %w", err)
		}
		env.Config.SetAutoConnect(true)
		if err := env.Config.Save(); err != nil {
			return nil, fmt.Errorf("save config: %w", err)
		}
		log.Info().Str("address", addr.String()).Msg("device saved for auto-connect")
	}

	if err := env.Session.Connect(env.Context, addr.String(), params.Secure, autoReconnect); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	return HandleSession(env)
}

// HandleSessionDisconnect takes optional params.
//
//nolint:gocritic // single-use parameter in API handler
func HandleSessionDisconnect(env requests.RequestEnv) (any, error) {
	var params models.DisconnectParams
	if len(env.Params) > 0 {
		if err := json.Unmarshal(env.Params, &params); err != nil {
			return nil, validation.ErrInvalidParams
		}
	}
	if err := env.Session.Disconnect(env.Context, params.KeepReconnecting); err != nil {
		return nil, fmt.Errorf("disconnect: %w", err)
	}
	return HandleSession(env)
}

//nolint:gocritic // single-use parameter in API handler
func HandleSessionCommand(env requests.RequestEnv) (any, error) {
	var params models.CommandParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return nil, err //nolint:wrapcheck // mapped to invalid params by the server
	}
	cmd, err := protocol.ParseCommand(params.Command)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", validation.ErrInvalidParams, err)
	}
	if err := env.Session.SendCommand(env.Context, cmd); err != nil {
		return nil, fmt.Errorf("send command: %w", err)
	}
	return nil, nil
}
