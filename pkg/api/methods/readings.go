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
	"fmt"

	"github.com/motolink/motolink-core/pkg/api/models"
	"github.com/motolink/motolink-core/pkg/api/models/requests"
)

//nolint:gocritic // single-use parameter in API handler
func HandleReadingsLatest(env requests.RequestEnv) (any, error) {
	return env.State.Latest(), nil
}

// HandleReadingsTest decodes the built-in test frame as if the device had
// sent it. The reading arrives as a readings.new notification.
//
//nolint:gocritic // single-use parameter in API handler
func HandleReadingsTest(env requests.RequestEnv) (any, error) {
	if err := env.Session.InjectTestFrame(env.Context); err != nil {
		return nil, fmt.Errorf("inject test frame: %w", err)
	}
	return nil, nil
}

//nolint:gocritic // single-use parameter in API handler
func HandleFields(env requests.RequestEnv) (any, error) {
	table, err := env.Session.Table(env.Context)
	if err != nil {
		return nil, fmt.Errorf("field table: %w", err)
	}
	return models.NewFieldsResponse(env.State.Encoding(), table), nil
}
