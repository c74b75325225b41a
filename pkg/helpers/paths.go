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

package helpers

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

// AppName is the directory name used under each XDG base directory.
const AppName = "motolink"

// Paths are the directories the service reads from and writes to.
type Paths struct {
	ConfigDir string
	DataDir   string
	// LogDir holds the service log.
	LogDir string
	// DataLogDir holds recorded sensor data.
	DataLogDir string
}

// DefaultPaths resolves the XDG base directories for the current user.
func DefaultPaths() Paths {
	return Paths{
		ConfigDir:  filepath.Join(xdg.ConfigHome, AppName),
		DataDir:    filepath.Join(xdg.DataHome, AppName),
		LogDir:     filepath.Join(xdg.StateHome, AppName),
		DataLogDir: filepath.Join(xdg.DataHome, AppName, "logs"),
	}
}

// EnsureDirectories creates every directory in p that does not exist.
func EnsureDirectories(p Paths) error {
	for _, dir := range []string{p.ConfigDir, p.DataDir, p.LogDir, p.DataLogDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return err //nolint:wrapcheck // PathError already names the directory
		}
	}
	return nil
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(path string) string {
	if len(path) < 2 || path[:2] != "~/" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
