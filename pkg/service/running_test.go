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
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/motolink/motolink-core/pkg/config"
	"github.com/motolink/motolink-core/pkg/datalog"
	"github.com/motolink/motolink-core/pkg/protocol"
	"github.com/motolink/motolink-core/pkg/service/session"
	"github.com/motolink/motolink-core/pkg/service/state"
	"github.com/motolink/motolink-core/pkg/testing/mocks"
	"github.com/motolink/motolink-core/pkg/transport"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTable(t *testing.T, dir, name, label string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	doc := fmt.Sprintf("fields:\n  - label: %s\n    raw_index: 0\n    show_at_pos: 0\n", label)
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	return path
}

func writeProtocolConfig(t *testing.T, dir, encoding, table string) {
	t.Helper()
	data := fmt.Sprintf("config_schema = %d\n\n[protocol]\nencoding = %q\nfield_table = %q\n",
		config.SchemaVersion, encoding, table)
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.CfgFile), []byte(data), 0o600))
}

func newRunning(t *testing.T, cfg *config.Instance) *running {
	t.Helper()

	table, err := cfg.FieldTable()
	require.NoError(t, err)
	factory, err := transport.NewBuilderWith(
		transport.Options{Mode: transport.ModeStream}, nil, nil, &mocks.FakeDialer{})
	require.NoError(t, err)

	clock := clockwork.NewFakeClock()
	st, _ := state.NewState(clock, cfg.Encoding())
	t.Cleanup(st.StopService)

	sup, err := session.New(session.Options{
		Factory:  factory,
		Consumer: st,
		Clock:    clock,
		Table:    table,
		Encoding: cfg.Encoding(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		_ = sup.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-runDone
	})

	return &running{
		cfg:     cfg,
		st:      st,
		sup:     sup,
		dataLog: datalog.New(afero.NewMemMapFs(), "/logs", clock),
	}
}

func TestApplyConfig_Protocol(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		encoding string
		label    string
		wantEnc  protocol.Encoding
	}{
		{name: "table only", encoding: "binary", label: "BBB", wantEnc: protocol.EncodingBinary},
		{name: "encoding only", encoding: "text", label: "AAA", wantEnc: protocol.EncodingText},
		{name: "encoding and table", encoding: "text", label: "BBB", wantEnc: protocol.EncodingText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			writeProtocolConfig(t, dir, "binary", writeTable(t, dir, "a.yaml", "AAA"))
			cfg, err := config.NewConfig(dir, config.BaseDefaults)
			require.NoError(t, err)
			r := newRunning(t, cfg)

			writeProtocolConfig(t, dir, tt.encoding, writeTable(t, dir, "b.yaml", tt.label))
			require.NoError(t, cfg.Load())
			r.applyConfig(context.Background())

			table, err := r.sup.Table(context.Background())
			require.NoError(t, err)
			assert.Equal(t, []string{tt.label}, table.Labels())
			assert.Equal(t, tt.wantEnc, r.st.Encoding())
		})
	}
}

func TestApplyConfig_TableEditedInPlace(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeTable(t, dir, "fields.yaml", "AAA")
	writeProtocolConfig(t, dir, "binary", path)
	cfg, err := config.NewConfig(dir, config.BaseDefaults)
	require.NoError(t, err)
	r := newRunning(t, cfg)

	writeTable(t, dir, "fields.yaml", "CCC")
	r.applyConfig(context.Background())

	table, err := r.sup.Table(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"CCC"}, table.Labels())
}

func TestApplyConfig_InvalidTableKeepsProtocol(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeProtocolConfig(t, dir, "binary", writeTable(t, dir, "a.yaml", "AAA"))
	cfg, err := config.NewConfig(dir, config.BaseDefaults)
	require.NoError(t, err)
	r := newRunning(t, cfg)

	require.NoError(t, os.Remove(filepath.Join(dir, "a.yaml")))
	r.applyConfig(context.Background())

	table, err := r.sup.Table(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA"}, table.Labels())
}
