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


// Package daemon tracks the background service through a PID file, so
// only one instance serves the device and the CLI can stop it.
package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/motolink/motolink-core/pkg/config"
	"github.com/rs/zerolog/log"
)

var (
	ErrAlreadyRunning = errors.New("service already running")
	ErrNotRunning     = errors.New("service not running")
)

type PidFile struct {
	path string
}

// NewPidFile returns the PID file kept in dir.
func NewPidFile(dir string) *PidFile {
	return &PidFile{path: filepath.Join(dir, config.PidFile)}
}

func (p *PidFile) Path() string {
	return p.path
}

// Pid returns the process ID in the PID file, or 0 if there is none.
func (p *PidFile) Pid() (int, error) {
	//nolint:gosec // Safe: reads PID files for service management
	data, err := os.ReadFile(p.path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	} else if err != nil {
		return 0, fmt.Errorf("error reading pid file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("error parsing pid: %w", err)
	}
	return pid, nil
}

// Running reports whether the process in the PID file is alive.
func (p *PidFile) Running() bool {
	pid, err := p.Pid()
	if err != nil || pid == 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}

// Create writes the current process ID. A stale file left by a process
// that is gone is replaced.
func (p *PidFile) Create() error {
	if p.Running() {
		pid, _ := p.Pid()
		if pid != os.Getpid() {
			return fmt.Errorf("%w with pid %d", ErrAlreadyRunning, pid)
		}
	}
	if err := os.WriteFile(p.path, []byte(strconv.Itoa(os.Getpid())), 0o600); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	log.Debug().Str("path", p.path).Msg("pid file created")
	return nil
}

func (p *PidFile) Remove() error {
	if err := os.Remove(p.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}
	return nil
}

// Stop sends SIGTERM to the running service.
func (p *PidFile) Stop() error {
	if !p.Running() {
		return ErrNotRunning
	}
	pid, err := p.Pid()
	if err != nil {
		return err
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process: %w", err)
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to send SIGTERM to process: %w", err)
	}
	log.Info().Int("pid", pid).Msg("sent stop signal to service")
	return nil
}
