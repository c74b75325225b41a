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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    Command
		wantErr bool
	}{
		{input: "reset", want: CommandReset},
		{input: "START", want: CommandStart},
		{input: "go", want: CommandStart},
		{input: " stop ", want: CommandStop},
		{input: "launch", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			got, err := ParseCommand(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCommandBytes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []byte{0xFF}, CommandReset.Bytes())
	assert.Equal(t, []byte{0x01}, CommandStart.Bytes())
	assert.Equal(t, []byte{0x00}, CommandStop.Bytes())
	assert.Equal(t, "reset", CommandReset.String())
	assert.Equal(t, "command(0x42)", Command(0x42).String())
}

func TestParseEncoding(t *testing.T) {
	t.Parallel()

	enc, err := ParseEncoding("")
	require.NoError(t, err)
	assert.Equal(t, EncodingBinary, enc)

	enc, err = ParseEncoding("Text")
	require.NoError(t, err)
	assert.Equal(t, EncodingText, enc)
	assert.Equal(t, "text", enc.String())

	_, err = ParseEncoding("hex")
	require.Error(t, err)
}

func TestFrameAccessors(t *testing.T) {
	t.Parallel()

	bin := Frame{Raw: []byte{0x02, 0x04, 'h', 'i'}}
	assert.Equal(t, FrameText, bin.Type())
	assert.Equal(t, 4, bin.Length())
	assert.Equal(t, []byte("hi"), bin.Payload())
	assert.Nil(t, bin.Fields())

	short := Frame{Raw: []byte{0x01}}
	assert.Nil(t, short.Payload())
	assert.Equal(t, 1, short.Length())

	text := Frame{Raw: []byte("1,2"), Encoding: EncodingText}
	assert.Equal(t, FrameTelemetry, text.Type())
	assert.Equal(t, 3, text.Length())
	assert.Equal(t, []string{"1", "2"}, text.Fields())
	assert.Equal(t, []byte("1,2"), text.Payload())
}

func TestTestFrame(t *testing.T) {
	t.Parallel()

	f := TestFrame()
	assert.Equal(t, FrameTelemetry, f.Type())
	assert.Equal(t, TelemetryFrameLength, f.Length())
	assert.Len(t, f.Raw, TelemetryFrameLength)
}

func TestTestFrameFor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, TestFrame(), TestFrameFor(EncodingBinary))

	text := TestFrameFor(EncodingText)
	assert.Equal(t, EncodingText, text.Encoding)
	fields := text.Fields()
	require.Len(t, fields, TelemetryFrameLength)
	assert.Equal(t, "58", fields[21])
	assert.Equal(t, "40", fields[23])
}
