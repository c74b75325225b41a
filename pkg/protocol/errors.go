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

package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrShortFrame       = errors.New("frame shorter than header")
	ErrUnknownFrameType = errors.New("unknown frame type")
	ErrInvalidTable     = errors.New("invalid field table")
)

// ProtocolError reports a frame or field that could not be decoded. The
// offending unit is dropped and decoding continues with the next frame.
//
//nolint:revive // name mirrors TransportError and BusyError
type ProtocolError struct {
	Err      error
	Encoding Encoding
	Length   int
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s frame (%d bytes): %v", e.Encoding, e.Length, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}
