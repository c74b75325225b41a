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


package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/motolink/motolink-core/pkg/api/models"
	"github.com/motolink/motolink-core/pkg/protocol"
	"github.com/motolink/motolink-core/pkg/service/session"
	"github.com/motolink/motolink-core/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)

func newTestState(t *testing.T) (*State, <-chan models.Notification) {
	t.Helper()
	return NewState(clockwork.NewFakeClockAt(testTime), protocol.EncodingBinary)
}

func receive(t *testing.T, ns <-chan models.Notification) models.Notification {
	t.Helper()
	select {
	case n := <-ns:
		return n
	default:
		require.FailNow(t, "expected a notification")
		return models.Notification{}
	}
}

func assertEmpty(t *testing.T, ns <-chan models.Notification) {
	t.Helper()
	select {
	case n := <-ns:
		assert.Failf(t, "unexpected notification", "method %s", n.Method)
	default:
	}
}

func TestHandleReading(t *testing.T) {
	t.Parallel()
	s, ns := newTestState(t)

	assert.Nil(t, s.Latest().Reading)

	s.HandleReading(protocol.Reading{Values: []protocol.Value{
		{Label: protocol.LabelRPM, Unit: "rpm", Text: "2890", Raw: 42, Scaled: 2890},
		{Label: protocol.LabelGear, Text: "3", Raw: 3, Scaled: 3, Pos: 5},
	}})

	n := receive(t, ns)
	assert.Equal(t, models.NotificationReadingsNew, n.Method)

	var payload models.ReadingResponse
	require.NoError(t, json.Unmarshal(n.Params, &payload))
	assert.Equal(t, "3", payload.Gear)
	assert.True(t, payload.Time.Equal(testTime))

	latest := s.Latest()
	require.NotNil(t, latest.Reading)
	assert.Equal(t, "2890", latest.Reading.Values[0].Display)
	assert.Nil(t, latest.Message)
}

func TestHandleMessage(t *testing.T) {
	t.Parallel()
	s, ns := newTestState(t)

	s.HandleMessage(protocol.Message{Text: protocol.MessageReady})

	n := receive(t, ns)
	assert.Equal(t, models.NotificationMessagesNew, n.Method)
	latest := s.Latest()
	require.NotNil(t, latest.Message)
	assert.Equal(t, protocol.MessageReady, latest.Message.Text)
	assert.True(t, latest.Message.Known)
}

func TestHandleSession_NotifiesOnChange(t *testing.T) {
	t.Parallel()
	s, ns := newTestState(t)

	connecting := session.Session{
		DeviceAddress: "AA:BB:CC:DD:EE:FF",
		State:         session.StateConnecting,
		Busy:          true,
	}
	s.HandleSession(connecting)
	n := receive(t, ns)
	assert.Equal(t, models.NotificationSessionChanged, n.Method)

	s.HandleSession(connecting)
	assertEmpty(t, ns)

	connected := connecting
	connected.State = session.StateConnected
	connected.Busy = false
	s.HandleSession(connected)

	n = receive(t, ns)
	var payload models.SessionResponse
	require.NoError(t, json.Unmarshal(n.Params, &payload))
	assert.True(t, payload.Connected)
	assert.Equal(t, "connected", payload.State)
	assert.Equal(t, "binary", payload.Encoding)
	assert.Equal(t, connected, s.Session())
}

func TestHandleError(t *testing.T) {
	t.Parallel()
	s, ns := newTestState(t)

	_, ok := s.LastError()
	assert.False(t, ok)

	s.HandleError(nil)
	assertEmpty(t, ns)

	s.HandleError(&transport.TransportError{Op: "connect", Address: "AA:BB:CC:DD:EE:FF", Err: transport.ErrLinkLost})
	n := receive(t, ns)
	assert.Equal(t, models.NotificationSessionError, n.Method)

	last, ok := s.LastError()
	require.True(t, ok)
	assert.Equal(t, ErrorKindTransport, last.Kind)
	assert.Equal(t, "connect AA:BB:CC:DD:EE:FF: link lost", last.Message)
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		name string
		want string
	}{
		{
			name: "busy",
			err:  &session.BusyError{Op: "connect"},
			want: ErrorKindBusy,
		},
		{
			name: "configuration",
			err:  &transport.ConfigurationError{Reason: "adapter hci0", Err: transport.ErrNoAdapter},
			want: ErrorKindConfiguration,
		},
		{
			name: "protocol",
			err:  &protocol.ProtocolError{Err: protocol.ErrUnknownFrameType, Length: 4},
			want: ErrorKindProtocol,
		},
		{
			name: "wrapped transport",
			err:  fmt.Errorf("auto-reconnect: %w", &transport.TransportError{Op: "read", Err: transport.ErrLinkLost}),
			want: ErrorKindTransport,
		},
		{
			name: "other",
			err:  errors.New("boom"),
			want: ErrorKindOther,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ErrorKind(tt.err))
		})
	}
}

func TestSetEncoding(t *testing.T) {
	t.Parallel()
	s, ns := newTestState(t)

	s.HandleReading(protocol.Reading{})
	receive(t, ns)

	s.SetEncoding(protocol.EncodingBinary)
	assertEmpty(t, ns)
	assert.NotNil(t, s.Latest().Reading)

	s.SetEncoding(protocol.EncodingText)
	n := receive(t, ns)
	assert.Equal(t, models.NotificationSessionChanged, n.Method)
	assert.Equal(t, protocol.EncodingText, s.Encoding())
	assert.Nil(t, s.Latest().Reading)
	assert.Equal(t, "text", s.SessionResponse().Encoding)
}

func TestStopService(t *testing.T) {
	t.Parallel()
	s, _ := newTestState(t)

	assert.False(t, s.ShouldStopService())
	s.StopService()
	assert.True(t, s.ShouldStopService())

	select {
	case <-s.GetContext().Done():
	case <-time.After(time.Second):
		t.Fatal("context was not cancelled")
	}
}

func TestHandlers_DoNotBlockOnFullChannel(t *testing.T) {
	t.Parallel()
	s, _ := newTestState(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range 600 {
			s.HandleReading(protocol.Reading{})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler blocked on a full notification channel")
	}
}
