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

package transport

import (
	"fmt"
	"net"
	"strings"
)

// Address is a 48-bit Bluetooth device address in display order, most
// significant byte first.
type Address [6]byte

// ParseAddress parses an address in any 48-bit form net.ParseMAC accepts,
// such as "AA:BB:CC:DD:EE:FF" or "AA-BB-CC-DD-EE-FF". Case is ignored.
func ParseAddress(s string) (Address, error) {
	var addr Address
	s = strings.TrimSpace(s)
	mac, err := net.ParseMAC(s)
	if err != nil || len(mac) != len(addr) {
		return addr, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	copy(addr[:], mac)
	return addr, nil
}

func (a Address) String() string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", a[0], a[1], a[2], a[3], a[4], a[5])
}

// Reversed returns the address in little-endian wire order as used by the
// kernel socket API.
func (a Address) Reversed() [6]byte {
	var out [6]byte
	for i := range a {
		out[i] = a[len(a)-1-i]
	}
	return out
}

// devicePath returns the BlueZ object path of a device under adapter.
func devicePath(adapter string, addr Address) string {
	return "/org/bluez/" + adapter + "/dev_" + strings.ReplaceAll(addr.String(), ":", "_")
}
