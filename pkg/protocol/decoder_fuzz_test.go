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
	"testing"
)

// FuzzBinaryStream feeds arbitrary bytes through the binary reader and
// decoder. Neither may panic, and every cut frame must be decodable or
// rejected with a ProtocolError.
func FuzzBinaryStream(f *testing.F) {
	f.Add([]byte{0x01, 0x03, 0x2A})
	f.Add(TestFrame().Raw)
	f.Add([]byte{0x02, 0x08, 'A', 'C', 'T', 'I', 'V', 'E'})
	f.Add([]byte{0x01, 0x00, 0x00, 0xFF, 0xFF})

	dec := NewDecoder(DefaultFieldTable(EncodingBinary))
	f.Fuzz(func(t *testing.T, data []byte) {
		r := &BinaryReader{}
		for frame := range r.Feed(data) {
			if len(frame.Raw) < minBinaryFrame {
				t.Fatalf("frame shorter than minimum: %d", len(frame.Raw))
			}
			decoded, err := dec.Decode(frame)
			if err == nil && decoded == nil {
				t.Fatal("nil result without error")
			}
		}
	})
}

// FuzzTextStream feeds arbitrary bytes through the text reader and
// decoder.
func FuzzTextStream(f *testing.F) {
	f.Add([]byte("0,0,1,2,3\n"))
	f.Add([]byte("\n\n"))
	f.Add([]byte("x,,-1\r\n"))

	dec := NewDecoder(DefaultFieldTable(EncodingText))
	f.Fuzz(func(t *testing.T, data []byte) {
		r := &TextReader{}
		for frame := range r.Feed(data) {
			decoded, err := dec.Decode(frame)
			if err != nil {
				t.Fatalf("text frames always decode: %v", err)
			}
			reading, ok := decoded.(Reading)
			if !ok {
				t.Fatal("text frame decoded to a non-reading")
			}
			if len(reading.Values)+reading.Skipped != len(dec.Table().Visible()) {
				t.Fatal("every visible field is either decoded or skipped")
			}
		}
	})
}
