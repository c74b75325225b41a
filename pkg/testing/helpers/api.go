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


// Package helpers provides testing utilities for the API and config.
//
// Example usage:
//
//	func TestSessionOverWebSocket(t *testing.T) {
//		srv := httptest.NewServer(router)
//		defer srv.Close()
//
//		conn := helpers.DialWebSocket(t, srv.URL)
//		resp, err := helpers.SendJSONRPCRequest(conn, models.MethodSession, nil)
//		require.NoError(t, err)
//		helpers.AssertJSONRPCSuccess(t, resp)
//	}
package helpers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/motolink/motolink-core/pkg/api/models"
	"github.com/olahol/melody"
	"github.com/stretchr/testify/require"
)

// APIPath is the versioned API endpoint for both WebSocket and POST.
const APIPath = "/api/v1"

type JSONRPCRequest struct {
	Params  any    `json:"params,omitempty"`
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	ID      string `json:"id"`
}

type JSONRPCResponse struct {
	Error   *models.ErrorObject `json:"error,omitempty"`
	JSONRPC string              `json:"jsonrpc"`
	Method  string              `json:"method,omitempty"`
	Result  json.RawMessage     `json:"result,omitempty"`
	Params  json.RawMessage     `json:"params,omitempty"`
	ID      *models.RPCID       `json:"id,omitempty"`
}

// IsNotification reports whether the message is a server push rather than
// a response.
func (r *JSONRPCResponse) IsNotification() bool {
	return r.Method != "" && r.ID.IsAbsent()
}

// WebSocketTestServer is a bare WebSocket endpoint at APIPath for testing
// API clients.
type WebSocketTestServer struct {
	Server *httptest.Server
	Melody *melody.Melody
}

// NewWebSocketTestServer serves handler on APIPath. The server is closed
// when the test ends.
func NewWebSocketTestServer(t *testing.T, handler func(*melody.Session, []byte)) *WebSocketTestServer {
	t.Helper()

	m := melody.New()
	m.HandleMessage(handler)
	mux := http.NewServeMux()
	mux.HandleFunc(APIPath, func(w http.ResponseWriter, r *http.Request) {
		if err := m.HandleRequest(w, r); err != nil {
			t.Logf("websocket upgrade failed: %v", err)
		}
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		_ = m.Close()
		srv.Close()
	})
	return &WebSocketTestServer{Server: srv, Melody: m}
}

// Port is the TCP port the server listens on.
func (s *WebSocketTestServer) Port(t *testing.T) int {
	t.Helper()
	u, err := url.Parse(s.Server.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return port
}

// Broadcast sends data to every connected client.
func (s *WebSocketTestServer) Broadcast(t *testing.T, data []byte) {
	t.Helper()
	require.NoError(t, s.Melody.Broadcast(data))
}

func newRequest(method string, params any) JSONRPCRequest {
	return JSONRPCRequest{
		JSONRPC: "2.0",
		ID:      uuid.New().String(),
		Method:  method,
		Params:  params,
	}
}

// DialWebSocket connects to the API of the server at baseURL. The
// connection is closed when the test ends.
func DialWebSocket(t *testing.T, baseURL string) *websocket.Conn {
	t.Helper()

	u, err := url.Parse(baseURL)
	require.NoError(t, err)
	u.Scheme = "ws"
	u.Path = APIPath

	conn, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// ReadMessage reads the next JSON-RPC message within timeout.
func ReadMessage(conn *websocket.Conn, timeout time.Duration) (*JSONRPCResponse, error) {
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, fmt.Errorf("failed to set read deadline: %w", err)
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("failed to read message: %w", err)
	}
	var msg JSONRPCResponse
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message %q: %w", data, err)
	}
	return &msg, nil
}

// SendJSONRPCRequest sends a request and returns its response, skipping
// any notifications that arrive first.
func SendJSONRPCRequest(conn *websocket.Conn, method string, params any) (*JSONRPCResponse, error) {
	req := newRequest(method, params)
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	want := models.NewStringID(req.ID)
	for {
		msg, err := ReadMessage(conn, 5*time.Second)
		if err != nil {
			return nil, err
		}
		if msg.IsNotification() {
			continue
		}
		if !msg.ID.Equal(want) {
			return nil, fmt.Errorf("response id %s does not match request %s", msg.ID.String(), want.String())
		}
		return msg, nil
	}
}

// PostJSONRPC sends a request over HTTP POST and decodes the response.
func PostJSONRPC(ctx context.Context, client *http.Client, baseURL, method string, params any) (*JSONRPCResponse, error) {
	data, err := json.Marshal(newRequest(method, params))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+APIPath, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to post request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var msg JSONRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &msg, nil
}

func AssertJSONRPCSuccess(t *testing.T, response *JSONRPCResponse) {
	t.Helper()
	require.NotNil(t, response, "response should not be nil")
	require.Nil(t, response.Error, "response should not contain an error")
}

func AssertJSONRPCError(t *testing.T, response *JSONRPCResponse, expectedCode int) {
	t.Helper()
	require.NotNil(t, response, "response should not be nil")
	require.NotNil(t, response.Error, "response should contain an error")
	require.Equal(t, expectedCode, response.Error.Code, "error code should match")
}
