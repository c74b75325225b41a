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


package daemon

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/motolink/motolink-core/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPidFile_Lifecycle(t *testing.T) {
	t.Parallel()

	p := NewPidFile(t.TempDir())
	pid, err := p.Pid()
	require.NoError(t, err)
	assert.Zero(t, pid)
	assert.False(t, p.Running())
	require.ErrorIs(t, p.Stop(), ErrNotRunning)

	require.NoError(t, p.Create())
	pid, err = p.Pid()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
	assert.True(t, p.Running())

	// recreating from the same process is allowed
	require.NoError(t, p.Create())

	require.NoError(t, p.Remove())
	require.NoError(t, p.Remove(), "removing twice is fine")
	assert.False(t, p.Running())
}

func TestPidFile_Corrupt(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.PidFile), []byte("abc"), 0o600))

	p := NewPidFile(dir)
	_, err := p.Pid()
	require.Error(t, err)
	assert.False(t, p.Running())
	require.NoError(t, p.Create(), "a corrupt file is replaced")
}

func TestPidFile_StaleProcess(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	// pid numbers wrap well below this on Linux
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.PidFile), []byte(strconv.Itoa(1<<30)), 0o600))

	p := NewPidFile(dir)
	assert.False(t, p.Running())
	require.NoError(t, p.Create())
	pid, err := p.Pid()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}
