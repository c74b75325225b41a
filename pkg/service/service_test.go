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


package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/motolink/motolink-core/pkg/api/models"
	"github.com/motolink/motolink-core/pkg/config"
	"github.com/motolink/motolink-core/pkg/helpers"
	"github.com/motolink/motolink-core/pkg/protocol"
	testhelpers "github.com/motolink/motolink-core/pkg/testing/helpers"
	"github.com/motolink/motolink-core/pkg/testing/mocks"
	"github.com/motolink/motolink-core/pkg/transport"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAddress = "AA:BB:CC:DD:EE:FF"

func freeAddr(t *testing.T) string {
	t.Helper()
	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func writeConfig(t *testing.T, listen string, extra string) *config.Instance {
	t.Helper()
	dir := t.TempDir()
	data := fmt.Sprintf(`config_schema = %d

[device]
address = %q
auto_connect = true
auto_reconnect = false

[service]
api_listen = %q

[service.discovery]
enabled = false
%s`, config.SchemaVersion, testAddress, listen, extra)
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.CfgFile), []byte(data), 0o600))

	cfg, err := config.NewConfig(dir, config.BaseDefaults)
	require.NoError(t, err)
	return cfg
}

type testService struct {
	stop   func() error
	done   <-chan struct{}
	dialer *mocks.FakeDialer
	fs     *testhelpers.FSHelper
	base   string
}

func startService(t *testing.T, extra string) *testService {
	t.Helper()

	listen := freeAddr(t)
	cfg := writeConfig(t, listen, extra)

	dialer := &mocks.FakeDialer{}
	factory, err := transport.NewBuilderWith(transport.Options{Mode: transport.ModeStream}, nil, nil, dialer)
	require.NoError(t, err)

	fs := testhelpers.NewMemoryFS()
	stop, done, err := Start(cfg, Options{
		Fs:      fs.Fs,
		Factory: factory,
		Paths:   helpers.Paths{DataLogDir: "/logs"},
	})
	require.NoError(t, err)

	ts := &testService{stop: stop, done: done, dialer: dialer, fs: fs, base: "http://" + listen}
	t.Cleanup(func() {
		select {
		case <-done:
		default:
			_ = stop()
		}
	})
	return ts
}

func (ts *testService) call(t *testing.T, method string, params any, out any) {
	t.Helper()
	resp, err := postJSONRPC(t, ts.base, method, params)
	require.NoError(t, err)
	require.Nil(t, resp.Error, "%s failed: %+v", method, resp.Error)
	if out != nil {
		require.NoError(t, json.Unmarshal(resp.Result, out))
	}
}

type rpcResponse struct {
	Error  *models.ErrorObject `json:"error"`
	Result json.RawMessage     `json:"result"`
}

func postJSONRPC(t *testing.T, base, method string, params any) (*rpcResponse, error) {
	t.Helper()
	body, err := json.Marshal(map[string]any{"jsonrpc": "2.0", "id": 1, "method": method, "params": params})
	require.NoError(t, err)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, base+"/api/v1",
		bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err //nolint:wrapcheck // test helper
	}
	defer func() { _ = resp.Body.Close() }()

	var out rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err //nolint:wrapcheck // test helper
	}
	return &out, nil
}

func TestStart_AutoConnectsAndServesAPI(t *testing.T) {
	t.Parallel()
	ts := startService(t, "")

	require.Eventually(t, func() bool {
		var sess models.SessionResponse
		ts.call(t, models.MethodSession, nil, &sess)
		return sess.Connected
	}, 5*time.Second, 20*time.Millisecond)

	assert.Equal(t, 1, ts.dialer.Calls())

	var sess models.SessionResponse
	ts.call(t, models.MethodSession, nil, &sess)
	assert.Equal(t, testAddress, sess.DeviceAddress)
	assert.Equal(t, "binary", sess.Encoding)

	// the start command goes out once the link is up
	require.Eventually(t, func() bool {
		conn := ts.dialer.Last()
		return conn != nil && len(conn.Written()) > 0
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, []byte{byte(protocol.CommandStart)}, ts.dialer.Last().Written()[0])
}

func TestStart_TestFrameReachesStateAndDataLog(t *testing.T) {
	t.Parallel()
	ts := startService(t, "\n[datalog]\nenabled = true\n")

	var status models.DataLogResponse
	ts.call(t, models.MethodDataLog, nil, &status)
	require.True(t, status.Logging)
	assert.Equal(t, "/logs", filepath.Dir(status.Path))

	ts.call(t, models.MethodReadingsTest, nil, nil)

	require.Eventually(t, func() bool {
		var latest models.LatestResponse
		ts.call(t, models.MethodReadingsLatest, nil, &latest)
		return latest.Reading != nil
	}, 5*time.Second, 20*time.Millisecond)

	ts.call(t, models.MethodDataLog, nil, &status)
	assert.Equal(t, 1, status.Frames)

	require.NoError(t, ts.stop())
	files, err := ts.fs.ListFiles("/logs")
	require.NoError(t, err)
	assert.Equal(t, []string{status.Path}, files)

	rows, err := ts.fs.ReadDataLog(status.Path)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.NotEmpty(t, rows[0]["Date"])
	assert.NotEmpty(t, rows[0]["Time"])
}

func TestStart_StopClosesDone(t *testing.T) {
	t.Parallel()
	ts := startService(t, "")

	require.NoError(t, ts.stop())
	select {
	case <-ts.done:
	case <-time.After(5 * time.Second):
		t.Fatal("done not closed after stop")
	}

	_, err := postJSONRPC(t, ts.base, models.MethodSession, nil)
	assert.Error(t, err, "api is down after stop")
}

func TestStart_InvalidFieldTableAborts(t *testing.T) {
	t.Parallel()

	cfg := writeConfig(t, freeAddr(t), "\n[protocol]\nfield_table = \"/does/not/exist.yaml\"\n")
	_, _, err := Start(cfg, Options{Fs: afero.NewMemMapFs()})
	require.Error(t, err)
}
