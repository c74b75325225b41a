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


package config

import "github.com/motolink/motolink-core/pkg/helpers"

type DataLog struct {
	// Dir overrides the XDG data log directory.
	Dir     string `toml:"dir,omitempty"`
	Enabled bool   `toml:"enabled"`
}

// DataLogEnabled reports whether recording starts with the service.
func (c *Instance) DataLogEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.DataLog.Enabled
}

func (c *Instance) SetDataLogEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.DataLog.Enabled = enabled
}

// DataLogDir returns the configured directory, or def when unset.
func (c *Instance) DataLogDir(def string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.DataLog.Dir == "" {
		return def
	}
	return helpers.ExpandHome(c.vals.DataLog.Dir)
}
