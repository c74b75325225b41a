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


//nolint:revive // custom validation tags are unknown to revive
package validation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDuration(t *testing.T) {
	t.Parallel()

	type testStruct struct {
		Interval string `validate:"duration"`
	}

	tests := []struct {
		name      string
		value     string
		wantError bool
	}{
		{name: "empty is valid", value: ""},
		{name: "seconds", value: "15s"},
		{name: "milliseconds", value: "500ms"},
		{name: "zero", value: "0s"},
		{name: "negative", value: "-5s", wantError: true},
		{name: "bare number", value: "15", wantError: true},
		{name: "garbage", value: "soon", wantError: true},
	}

	v := NewValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := v.Validate(&testStruct{Interval: tt.value})
			if tt.wantError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "interval must be a non-negative duration")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateAddress(t *testing.T) {
	t.Parallel()

	type testStruct struct {
		Address string `validate:"required,btaddress"`
	}

	tests := []struct {
		name      string
		value     string
		wantError bool
	}{
		{name: "colon form", value: "24:0A:C4:12:34:56"},
		{name: "dash form lowercase", value: "24-0a-c4-12-34-56"},
		{name: "missing", value: "", wantError: true},
		{name: "too short", value: "24:0A:C4:12:34", wantError: true},
		{name: "not hex", value: "ZZ:0A:C4:12:34:56", wantError: true},
	}

	v := NewValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := v.Validate(&testStruct{Address: tt.value})
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateEncodingAndCommand(t *testing.T) {
	t.Parallel()

	type testStruct struct {
		Encoding string `validate:"encoding"`
		Command  string `validate:"command"`
	}

	v := NewValidator()
	require.NoError(t, v.Validate(&testStruct{Encoding: "text", Command: "reset"}))
	require.NoError(t, v.Validate(&testStruct{Encoding: "", Command: "STOP"}))

	err := v.Validate(&testStruct{Encoding: "morse", Command: "launch"})
	var verr *Error
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Fields, 2)
	assert.Equal(t, "encoding must be binary or text", verr.Fields[0].Message)
	assert.Equal(t, "command must be stop, start or reset", verr.Fields[1].Message)
	assert.Equal(t, "launch", verr.Fields[1].Value)
}

func TestValidateAndUnmarshal(t *testing.T) {
	t.Parallel()

	type params struct {
		Address string `json:"address" validate:"required,btaddress"`
		Secure  bool   `json:"secure"`
	}

	var p params
	require.ErrorIs(t, ValidateAndUnmarshal(nil, &p), ErrMissingParams)
	require.ErrorIs(t, ValidateAndUnmarshal(json.RawMessage(`{"address":`), &p), ErrInvalidParams)

	err := ValidateAndUnmarshal(json.RawMessage(`{"secure":true}`), &p)
	var verr *Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "address is required", verr.Error())

	require.NoError(t, ValidateAndUnmarshal(json.RawMessage(`{"address":"AA:BB:CC:DD:EE:FF","secure":true}`), &p))
	assert.True(t, p.Secure)
}

func TestErrorEmpty(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "validation failed", (&Error{}).Error())
}
