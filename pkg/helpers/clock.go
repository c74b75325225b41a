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

import "time"

// MinReliableYear is the earliest year a wall clock reading is trusted.
// Boards without an RTC boot at the epoch until NTP syncs, which would
// give data log files names from 1970.
const MinReliableYear = 2026

// IsClockReliable reports whether t looks like a set wall clock.
func IsClockReliable(t time.Time) bool {
	return t.Year() >= MinReliableYear
}
