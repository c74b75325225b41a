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
	"errors"
	"fmt"

	"github.com/motolink/motolink-core/pkg/api/models"
	"github.com/motolink/motolink-core/pkg/api/models/requests"
	"github.com/motolink/motolink-core/pkg/api/notifications"
	"github.com/motolink/motolink-core/pkg/datalog"
	"github.com/rs/zerolog/log"
)

var ErrDataLogUnavailable = errors.New("data logging is not available")

func dataLogResponse(status datalog.Status) models.DataLogResponse {
	return models.DataLogResponse{
		Path:    status.Path,
		Frames:  status.Frames,
		Logging: status.Logging,
	}
}

//nolint:gocritic // single-use parameter in API handler
func HandleDataLog(env requests.RequestEnv) (any, error) {
	if env.DataLog == nil {
		return models.DataLogResponse{}, nil
	}
	return dataLogResponse(env.DataLog.Status()), nil
}

// HandleDataLogStart opens a new log file with a header matching the
// current field table. Starting while already logging keeps the open file.
//
//nolint:gocritic // single-use parameter in API handler
func HandleDataLogStart(env requests.RequestEnv) (any, error) {
	if env.DataLog == nil {
		return nil, ErrDataLogUnavailable
	}
	table, err := env.Session.Table(env.Context)
	if err != nil {
		return nil, fmt.Errorf("field table: %w", err)
	}
	path, err := env.DataLog.Start(table.Labels())
	if err != nil {
		return nil, fmt.Errorf("start data log: %w", err)
	}
	log.Info().Str("path", path).Msg("data log started from API")

	resp := dataLogResponse(env.DataLog.Status())
	notifications.DataLogChanged(env.State.Notifications, resp)
	return resp, nil
}

//nolint:gocritic // single-use parameter in API handler
func HandleDataLogStop(env requests.RequestEnv) (any, error) {
	if env.DataLog == nil {
		return nil, ErrDataLogUnavailable
	}
	prev := env.DataLog.Status()
	if err := env.DataLog.Stop(); err != nil {
		return nil, fmt.Errorf("stop data log: %w", err)
	}
	log.Info().Str("path", prev.Path).Int("frames", prev.Frames).Msg("data log stopped from API")

	resp := dataLogResponse(env.DataLog.Status())
	notifications.DataLogChanged(env.State.Notifications, resp)
	return resp, nil
}
