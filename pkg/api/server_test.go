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


package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/motolink/motolink-core/pkg/api/models"
	"github.com/motolink/motolink-core/pkg/api/models/requests"
	"github.com/motolink/motolink-core/pkg/datalog"
	"github.com/motolink/motolink-core/pkg/protocol"
	"github.com/motolink/motolink-core/pkg/service/session"
	"github.com/motolink/motolink-core/pkg/service/state"
	"github.com/motolink/motolink-core/pkg/testing/helpers"
	"github.com/motolink/motolink-core/pkg/testing/mocks"
	"github.com/motolink/motolink-core/pkg/transport"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	server  *Server
	http    *httptest.Server
	session *mocks.MockSession
	state   *state.State
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	clock := clockwork.NewRealClock()
	st, _ := state.NewState(clock, protocol.EncodingBinary)
	t.Cleanup(st.StopService)

	sess := mocks.NewMockSession(session.Session{State: session.StateDisconnected})
	methodMap := NewMethodMap()
	require.NoError(t, methodMap.AddMethod("test.echo", func(env requests.RequestEnv) (any, error) {
		return map[string]any{"params": env.Params, "local": env.IsLocal}, nil
	}))
	require.NoError(t, methodMap.AddMethod("test.error", func(requests.RequestEnv) (any, error) {
		return nil, &transport.TransportError{Op: "read", Err: transport.ErrLinkLost}
	}))

	srv := NewServer(Options{
		Config:  helpers.NewTestConfig(t),
		State:   st,
		Session: sess,
		DataLog: datalog.New(afero.NewMemMapFs(), "/logs", clock),
		Methods: methodMap,
		Clock:   clock,
	})
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(hs.Close)

	return &testServer{server: srv, http: hs, session: sess, state: st}
}

func (ts *testServer) post(t *testing.T, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, ts.http.URL+APIPath, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := ts.http.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeResponse(t *testing.T, resp *http.Response) helpers.JSONRPCResponse {
	t.Helper()
	var msg helpers.JSONRPCResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&msg))
	return msg
}

func TestMethodMap(t *testing.T) {
	t.Parallel()

	m := NewMethodMap()
	assert.Contains(t, m.ListMethods(), models.MethodSessionConnect)
	assert.Contains(t, m.ListMethods(), models.MethodDataLogStart)

	_, ok := m.GetMethod("SESSION.Connect")
	assert.True(t, ok, "lookup ignores case")

	err := m.AddMethod(models.MethodVersion, methodsStub)
	require.ErrorIs(t, err, ErrMethodExists)
}

func methodsStub(requests.RequestEnv) (any, error) { return nil, nil }

func TestPost_ValidRequest(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	resp := ts.post(t, `{"jsonrpc":"2.0","id":7,"method":"test.echo","params":{"a":1}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	msg := decodeResponse(t, resp)
	helpers.AssertJSONRPCSuccess(t, &msg)
	assert.Equal(t, "7", msg.ID.String(), "numeric ids are echoed verbatim")
	assert.JSONEq(t, `{"params":{"a":1},"local":true}`, string(msg.Result))
}

func TestPost_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		body   string
		wantID string
		code   int
	}{
		{name: "parse error", body: `{not json`, code: -32700, wantID: "null"},
		{name: "wrong version", body: `{"jsonrpc":"1.0","id":"a","method":"version"}`, code: -32600, wantID: `"a"`},
		{name: "no method", body: `{"jsonrpc":"2.0","id":"a"}`, code: -32600, wantID: `"a"`},
		{name: "object id", body: `{"jsonrpc":"2.0","id":{},"method":"version"}`, code: -32600, wantID: "null"},
		{name: "batch unsupported", body: `[{"jsonrpc":"2.0","id":1,"method":"version"}]`, code: -32600, wantID: "null"},
		{name: "unknown method", body: `{"jsonrpc":"2.0","id":1,"method":"launch"}`, code: -32601, wantID: "1"},
		{name: "missing params", body: `{"jsonrpc":"2.0","id":1,"method":"session.connect"}`, code: -32602, wantID: "1"},
		{
			name:   "invalid params",
			body:   `{"jsonrpc":"2.0","id":1,"method":"session.command","params":{"command":"launch"}}`,
			code:   -32602,
			wantID: "1",
		},
		{name: "handler error", body: `{"jsonrpc":"2.0","id":1,"method":"test.error"}`, code: -32000, wantID: "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ts := newTestServer(t)

			resp := ts.post(t, tt.body)
			require.Equal(t, http.StatusOK, resp.StatusCode, "JSON-RPC errors still return HTTP 200")

			msg := decodeResponse(t, resp)
			helpers.AssertJSONRPCError(t, &msg, tt.code)
			assert.Equal(t, tt.wantID, msg.ID.String())
		})
	}
}

func TestPost_ServerErrorKind(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	msg := decodeResponse(t, ts.post(t, `{"jsonrpc":"2.0","id":1,"method":"test.error"}`))
	require.NotNil(t, msg.Error)
	require.NotNil(t, msg.Error.Data)
	assert.Equal(t, state.ErrorKindTransport, msg.Error.Data.Kind)
	assert.Equal(t, "read: link lost", msg.Error.Message)
}

func TestPost_NotificationHasNoResponse(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	resp := ts.post(t, `{"jsonrpc":"2.0","method":"version"}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestPost_RequiresJSONContentType(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, ts.http.URL+APIPath,
		strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"version"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "text/plain")
	resp, err := ts.http.Client().Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
}

func TestPost_TooLarge(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	body := `{"jsonrpc":"2.0","id":1,"method":"test.echo","params":"` + strings.Repeat("x", maxRequestSize) + `"}`
	resp := ts.post(t, body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestPost_SessionConnect(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	ts.session.On("Connect", mock.Anything, "AA:BB:CC:DD:EE:FF", false, true).Return(nil)

	msg, err := helpers.PostJSONRPC(t.Context(), ts.http.Client(), ts.http.URL, models.MethodSessionConnect,
		models.ConnectParams{Address: "aa:bb:cc:dd:ee:ff"})
	require.NoError(t, err)
	helpers.AssertJSONRPCSuccess(t, msg)
	ts.session.AssertExpectations(t)

	var resp models.SessionResponse
	require.NoError(t, json.Unmarshal(msg.Result, &resp))
	assert.Equal(t, "disconnected", resp.State)
}

func TestPost_BusyError(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	ts.session.On("Disconnect", mock.Anything, false).Return(&session.BusyError{Op: "disconnect"})

	msg, err := helpers.PostJSONRPC(t.Context(), ts.http.Client(), ts.http.URL, models.MethodSessionDisconnect, nil)
	require.NoError(t, err)
	helpers.AssertJSONRPCError(t, msg, JSONRPCErrorServerError.Code)
	assert.Equal(t, state.ErrorKindBusy, msg.Error.Data.Kind)
}

func TestWebSocket_RequestResponse(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	conn := helpers.DialWebSocket(t, ts.http.URL)

	resp, err := helpers.SendJSONRPCRequest(conn, models.MethodVersion, nil)
	require.NoError(t, err)
	helpers.AssertJSONRPCSuccess(t, resp)

	var version models.VersionResponse
	require.NoError(t, json.Unmarshal(resp.Result, &version))
	assert.NotEmpty(t, version.DeviceID)

	resp, err = helpers.SendJSONRPCRequest(conn, "nope", nil)
	require.NoError(t, err)
	helpers.AssertJSONRPCError(t, resp, JSONRPCErrorMethodNotFound.Code)
}

func TestWebSocket_Ping(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	conn := helpers.DialWebSocket(t, ts.http.URL)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping")))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "pong", string(data))
}

func TestWebSocket_RejectsForeignOrigin(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	u := "ws" + strings.TrimPrefix(ts.http.URL, "http") + APIPath
	header := http.Header{"Origin": []string{"file://evil"}}
	conn, resp, err := websocket.DefaultDialer.Dial(u, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if conn != nil {
		_ = conn.Close()
	}
	require.Error(t, err)
}

func TestBroadcastNotifications(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	conn := helpers.DialWebSocket(t, ts.http.URL)

	// the version round trip guarantees the session is registered
	_, err := helpers.SendJSONRPCRequest(conn, models.MethodVersion, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	ns := make(chan models.Notification, 1)
	go ts.server.broadcastNotifications(ctx, ns)

	ns <- models.Notification{
		Method: models.NotificationSessionChanged,
		Params: json.RawMessage(`{"state":"connecting"}`),
	}

	msg, err := helpers.ReadMessage(conn, 2*time.Second)
	require.NoError(t, err)
	assert.True(t, msg.IsNotification())
	assert.Equal(t, models.NotificationSessionChanged, msg.Method)
	assert.JSONEq(t, `{"state":"connecting"}`, string(msg.Params))
}

func TestServe_Shutdown(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	var lc net.ListenConfig
	ln, err := lc.Listen(t.Context(), "tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() {
		done <- ts.server.Serve(ctx, ln, make(chan models.Notification))
	}()

	base := "http://" + ln.Addr().String()
	msg, err := helpers.PostJSONRPC(t.Context(), http.DefaultClient, base, models.MethodSession, nil)
	require.NoError(t, err)
	helpers.AssertJSONRPCSuccess(t, msg)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * shutdownTimeout):
		t.Fatal("server did not shut down")
	}

	_, err = helpers.PostJSONRPC(t.Context(), http.DefaultClient, base, models.MethodSession, nil)
	assert.Error(t, err)
}

func TestErrorObject(t *testing.T) {
	t.Parallel()

	obj := errorObject(errors.New("boom"))
	assert.Equal(t, JSONRPCErrorServerError.Code, obj.Code)
	assert.Equal(t, state.ErrorKindOther, obj.Data.Kind)
}
