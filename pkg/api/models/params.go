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


package models

type ConnectParams struct {
	Address       string `json:"address" validate:"required,btaddress"`
	AutoReconnect *bool  `json:"autoReconnect"`
	Secure        bool   `json:"secure"`
	// Remember saves the device as the auto-connect target.
	Remember bool `json:"remember"`
}

type DisconnectParams struct {
	// KeepReconnecting leaves auto-reconnect armed, so the link comes
	// back at the next retry.
	KeepReconnecting bool `json:"keepReconnecting"`
}

type CommandParams struct {
	Command string `json:"command" validate:"required,command"`
}
