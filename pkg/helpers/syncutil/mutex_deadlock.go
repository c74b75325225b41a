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


//go:build deadlock

// Package syncutil holds the mutex types used across MotoLink. Building
// with -tags=deadlock swaps them for go-deadlock's detecting versions.
package syncutil

import (
	"time"

	"github.com/rs/zerolog/log"
	deadlock "github.com/sasha-s/go-deadlock"
)

// DeadlockEnabled reports whether the detecting mutexes are compiled in.
const DeadlockEnabled = true

// LockTimeout is how long a lock may be held or waited on before it is
// reported. The session owner never holds a lock across a connect, so
// anything near this is a bug.
const LockTimeout = 20 * time.Second

func init() {
	deadlock.Opts.DeadlockTimeout = LockTimeout
	deadlock.Opts.OnPotentialDeadlock = func() {
		log.Error().Dur("timeout", LockTimeout).Msg("potential deadlock detected")
		panic("potential deadlock")
	}
}

// Mutex is a go-deadlock mutex in deadlock builds.
type Mutex struct {
	deadlock.Mutex
}

// RWMutex is a go-deadlock reader/writer mutex in deadlock builds.
type RWMutex struct {
	deadlock.RWMutex
}
