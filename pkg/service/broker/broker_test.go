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


package broker

import (
	"context"
	"testing"
	"time"

	"github.com/motolink/motolink-core/pkg/api/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv(t *testing.T, ch <-chan models.Notification) models.Notification {
	t.Helper()
	select {
	case n, ok := <-ch:
		require.True(t, ok, "channel closed")
		return n
	case <-time.After(time.Second):
		t.Fatal("no notification received")
		return models.Notification{}
	}
}

func TestBroker_SubscribeIDs(t *testing.T) {
	t.Parallel()

	b := NewBroker(context.Background(), make(chan models.Notification))
	_, id1 := b.Subscribe(1)
	_, id2 := b.Subscribe(1)
	assert.Equal(t, 0, id1)
	assert.Equal(t, 1, id2)
	assert.Len(t, b.subscribers, 2)
}

func TestBroker_BroadcastToAll(t *testing.T) {
	t.Parallel()

	source := make(chan models.Notification, 4)
	b := NewBroker(context.Background(), source)
	sub1, _ := b.Subscribe(4)
	sub2, _ := b.Subscribe(4)
	b.Start()

	source <- models.Notification{Method: models.NotificationReadingsNew, Params: []byte(`{"gear":"2"}`)}
	source <- models.Notification{Method: models.NotificationSessionChanged}

	for _, sub := range []<-chan models.Notification{sub1, sub2} {
		assert.Equal(t, models.NotificationReadingsNew, recv(t, sub).Method)
		assert.Equal(t, models.NotificationSessionChanged, recv(t, sub).Method)
	}

	close(source)
	<-b.Done()
}

func TestBroker_SlowSubscriberDoesNotBlock(t *testing.T) {
	t.Parallel()

	source := make(chan models.Notification)
	b := NewBroker(context.Background(), source)
	slow, _ := b.Subscribe(1)
	fast, _ := b.Subscribe(10)
	b.Start()

	for range 5 {
		source <- models.Notification{Method: models.NotificationReadingsNew}
	}
	for range 5 {
		recv(t, fast)
	}

	assert.Len(t, slow, 1, "slow subscriber keeps only what fit")
	close(source)
	<-b.Done()
}

func TestBroker_Unsubscribe(t *testing.T) {
	t.Parallel()

	b := NewBroker(context.Background(), make(chan models.Notification))
	ch, id := b.Subscribe(1)

	b.Unsubscribe(id)
	_, ok := <-ch
	assert.False(t, ok)

	b.Unsubscribe(id)
	assert.Empty(t, b.subscribers)
}

func TestBroker_ShutdownClosesSubscribers(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	b := NewBroker(ctx, make(chan models.Notification))
	ch, _ := b.Subscribe(1)
	b.Start()

	cancel()
	<-b.Done()

	_, ok := <-ch
	assert.False(t, ok)

	late, _ := b.Subscribe(1)
	_, ok = <-late
	assert.False(t, ok, "subscribing after shutdown yields a closed channel")
}
