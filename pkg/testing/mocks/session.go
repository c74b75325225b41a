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


package mocks

import (
	"context"
	"fmt"

	"github.com/motolink/motolink-core/pkg/protocol"
	"github.com/motolink/motolink-core/pkg/service/session"
	"github.com/stretchr/testify/mock"
)

// MockSession is a mock of the session operations the API drives.
type MockSession struct {
	mock.Mock
}

func mockErr(err error) error {
	if err != nil {
		return fmt.Errorf("mock operation failed: %w", err)
	}
	return nil
}

func (m *MockSession) Connect(ctx context.Context, address string, secure, autoReconnect bool) error {
	args := m.Called(ctx, address, secure, autoReconnect)
	return mockErr(args.Error(0))
}

func (m *MockSession) Disconnect(ctx context.Context, keepReconnecting bool) error {
	args := m.Called(ctx, keepReconnecting)
	return mockErr(args.Error(0))
}

func (m *MockSession) SendCommand(ctx context.Context, cmd protocol.Command) error {
	args := m.Called(ctx, cmd)
	return mockErr(args.Error(0))
}

func (m *MockSession) Snapshot(ctx context.Context) (session.Session, error) {
	args := m.Called(ctx)
	snap, _ := args.Get(0).(session.Session)
	return snap, mockErr(args.Error(1))
}

func (m *MockSession) Table(ctx context.Context) (*protocol.FieldTable, error) {
	args := m.Called(ctx)
	table, _ := args.Get(0).(*protocol.FieldTable)
	return table, mockErr(args.Error(1))
}

func (m *MockSession) InjectTestFrame(ctx context.Context) error {
	args := m.Called(ctx)
	return mockErr(args.Error(0))
}

// NewMockSession returns a mock that reports snap and the default binary
// field table.
func NewMockSession(snap session.Session) *MockSession {
	m := &MockSession{}
	m.On("Snapshot", mock.Anything).Return(snap, nil).Maybe()
	m.On("Table", mock.Anything).Return(protocol.DefaultFieldTable(protocol.EncodingBinary), nil).Maybe()
	return m
}
