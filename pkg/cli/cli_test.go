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


package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"io"
	"strings"
	"testing"

	"github.com/motolink/motolink-core/pkg/api/client"
	"github.com/motolink/motolink-core/pkg/api/models"
	"github.com/motolink/motolink-core/pkg/protocol"
	"github.com/motolink/motolink-core/pkg/testing/helpers"
	"github.com/motolink/motolink-core/pkg/testing/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func parseFlags(t *testing.T, args ...string) (*Flags, *flag.FlagSet) {
	t.Helper()
	fs := flag.NewFlagSet("motolink", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	f := SetupFlags(fs)
	require.NoError(t, fs.Parse(args))
	return f, fs
}

func TestPre_Version(t *testing.T) {
	t.Parallel()

	fs := flag.NewFlagSet("motolink", flag.ContinueOnError)
	f := SetupFlags(fs)
	var out bytes.Buffer
	exit, err := f.Pre(fs, []string{"-version"}, &out)
	require.NoError(t, err)
	assert.True(t, exit)
	assert.Contains(t, out.String(), "MotoLink v")
}

func TestPre_BadFlag(t *testing.T) {
	t.Parallel()

	fs := flag.NewFlagSet("motolink", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	f := SetupFlags(fs)
	exit, err := f.Pre(fs, []string{"-nope"}, io.Discard)
	require.Error(t, err)
	assert.True(t, exit)
}

func TestApplyOverrides(t *testing.T) {
	t.Parallel()

	cfg := helpers.NewTestConfig(t)
	f, fs := parseFlags(t, "-address", "aa-bb-cc-dd-ee-ff", "-secure", "-encoding", "text")
	require.NoError(t, f.ApplyOverrides(fs, cfg))

	assert.Equal(t, "AA:BB:CC:DD:EE:FF", cfg.DeviceAddress())
	assert.True(t, cfg.DeviceSecure())
	assert.Equal(t, protocol.EncodingText, cfg.Encoding())
}

func TestApplyOverrides_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
	}{
		{name: "address", args: []string{"-address", "not-an-address"}},
		{name: "encoding", args: []string{"-encoding", "morse"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f, fs := parseFlags(t, tt.args...)
			assert.Error(t, f.ApplyOverrides(fs, helpers.NewTestConfig(t)))
		})
	}
}

func TestPost_NoActionFlag(t *testing.T) {
	t.Parallel()

	f, fs := parseFlags(t, "-address", "AA:BB:CC:DD:EE:FF")
	api := mocks.NewMockAPIClient()
	handled, err := f.Post(context.Background(), fs, helpers.NewTestConfig(t), api, io.Discard)
	require.NoError(t, err)
	assert.False(t, handled)
	api.AssertNotCalled(t, "Call", mock.Anything, mock.Anything, mock.Anything)
}

func TestPost_Connect(t *testing.T) {
	t.Parallel()

	cfg := helpers.NewTestConfig(t)
	f, fs := parseFlags(t, "-address", "AA:BB:CC:DD:EE:FF", "-connect")
	require.NoError(t, f.ApplyOverrides(fs, cfg))

	api := mocks.NewMockAPIClient()
	api.On("Call", mock.Anything, models.MethodSessionConnect, mock.MatchedBy(func(params string) bool {
		var p models.ConnectParams
		return json.Unmarshal([]byte(params), &p) == nil && p.Address == "AA:BB:CC:DD:EE:FF"
	})).Return(`{"state":"connected"}`, nil)

	var out bytes.Buffer
	handled, err := f.Post(context.Background(), fs, cfg, api, &out)
	require.NoError(t, err)
	assert.True(t, handled)
	assert.JSONEq(t, `{"state":"connected"}`, out.String())
	api.AssertExpectations(t)
}

func TestPost_ConnectWithoutAddress(t *testing.T) {
	t.Parallel()

	f, fs := parseFlags(t, "-connect")
	handled, err := f.Post(context.Background(), fs, helpers.NewTestConfig(t), mocks.NewMockAPIClient(), io.Discard)
	assert.True(t, handled)
	require.ErrorIs(t, err, ErrFlagValue)
}

func TestPost_Disconnect(t *testing.T) {
	t.Parallel()

	f, fs := parseFlags(t, "-disconnect")
	api := mocks.NewMockAPIClient()
	api.On("Call", mock.Anything, models.MethodSessionDisconnect, "").Return(`{"state":"disconnected"}`, nil)

	var out bytes.Buffer
	_, err := f.Post(context.Background(), fs, helpers.NewTestConfig(t), api, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "disconnected")
}

func TestPost_Command(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{name: "start", value: "start"},
		{name: "reset", value: "RESET"},
		{name: "unknown", value: "launch", wantErr: true},
		{name: "empty", value: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f, fs := parseFlags(t, "-command", tt.value)
			api := mocks.NewMockAPIClient()
			api.On("Call", mock.Anything, models.MethodSessionCommand, mock.Anything).Return("null", nil)

			var out bytes.Buffer
			handled, err := f.Post(context.Background(), fs, helpers.NewTestConfig(t), api, &out)
			assert.True(t, handled)
			if tt.wantErr {
				require.Error(t, err)
				api.AssertNotCalled(t, "Call", mock.Anything, mock.Anything, mock.Anything)
				return
			}
			require.NoError(t, err)
			assert.Empty(t, out.String(), "null results are not printed")
			api.AssertCalled(t, "Call", mock.Anything, models.MethodSessionCommand,
				`{"command":"`+tt.value+`"}`)
		})
	}
}

func TestPost_API(t *testing.T) {
	t.Parallel()

	f, fs := parseFlags(t, "-api", `session.disconnect:{"keepReconnecting":true}`)
	api := mocks.NewMockAPIClient()
	api.On("Call", mock.Anything, "session.disconnect", `{"keepReconnecting":true}`).Return(`{}`, nil)

	_, err := f.Post(context.Background(), fs, helpers.NewTestConfig(t), api, io.Discard)
	require.NoError(t, err)
	api.AssertExpectations(t)
}

func TestPost_APIError(t *testing.T) {
	t.Parallel()

	f, fs := parseFlags(t, "-api", "session")
	api := mocks.NewMockAPIClient()
	rpcErr := &client.RPCError{Code: -32000, Message: "session busy", Kind: "busy"}
	api.On("Call", mock.Anything, "session", "").Return("", rpcErr)

	_, err := f.Post(context.Background(), fs, helpers.NewTestConfig(t), api, io.Discard)
	var got *client.RPCError
	require.True(t, errors.As(err, &got))
	assert.Equal(t, "busy", got.Kind)
}

func TestPost_Fields(t *testing.T) {
	t.Parallel()

	f, fs := parseFlags(t, "-fields")
	var out bytes.Buffer
	handled, err := f.Post(context.Background(), fs, helpers.NewTestConfig(t), mocks.NewMockAPIClient(), &out)
	require.NoError(t, err)
	assert.True(t, handled)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 58, "header plus one row per field")
	assert.Equal(t, "label,unit,transform,raw_index,show_at_pos,visible", lines[0])
	assert.Equal(t, "RPM,rpm,rpm,17,0,true", lines[18])
}

func TestPost_Watch(t *testing.T) {
	t.Parallel()

	f, fs := parseFlags(t, "-watch")
	api := mocks.NewMockAPIClient()
	api.Notifications = []models.Notification{
		{Method: models.NotificationSessionChanged, Params: json.RawMessage(`{"state":"connected","deviceAddress":"AA:BB:CC:DD:EE:FF"}`)},
		{Method: models.NotificationMessagesNew, Params: json.RawMessage(`{"text":"ACTIVE","known":true}`)},
	}
	api.On("Watch", mock.Anything, mock.Anything).Return(client.ErrRequestCancelled)

	var out bytes.Buffer
	handled, err := f.Post(context.Background(), fs, helpers.NewTestConfig(t), api, &out)
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, "session: connected AA:BB:CC:DD:EE:FF\nmessage: ACTIVE\n", out.String())
}

func TestFormatReading(t *testing.T) {
	t.Parallel()

	r := models.ReadingResponse{
		Gear: "-",
		Values: []models.ValueResponse{
			{Label: "RPM", Unit: "rpm", Display: "1200"},
			{Label: "BATT", Unit: "V", Display: "12.6"},
			{Label: "Gear", Display: "0"},
		},
	}
	assert.Equal(t, "RPM 1200 rpm | BATT 12.6 V | Gear 0 | gear -", FormatReading(r))
}

func TestFormatNotification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want string
		n    models.Notification
	}{
		{
			name: "error",
			n: models.Notification{
				Method: models.NotificationSessionError,
				Params: json.RawMessage(`{"kind":"transport","message":"read: link lost"}`),
			},
			want: "error (transport): read: link lost",
		},
		{
			name: "session without device",
			n:    models.Notification{Method: models.NotificationSessionChanged, Params: json.RawMessage(`{"state":"disconnected"}`)},
			want: "session: disconnected",
		},
		{
			name: "other",
			n:    models.Notification{Method: models.NotificationDataLogChanged, Params: json.RawMessage(`{"logging":true}`)},
			want: `datalog.changed: {"logging":true}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, FormatNotification(tt.n))
		})
	}
}
