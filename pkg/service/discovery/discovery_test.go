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


package discovery

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/motolink/motolink-core/pkg/config"
	"github.com/motolink/motolink-core/pkg/helpers/syncutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSettings struct {
	name     string
	deviceID string
	port     int
	enabled  bool
}

func (f fakeSettings) DiscoveryEnabled() bool        { return f.enabled }
func (f fakeSettings) DiscoveryInstanceName() string { return f.name }
func (f fakeSettings) DeviceID() string              { return f.deviceID }
func (f fakeSettings) APIPort() int                  { return f.port }

type fakeAdvertiser struct {
	shutdowns int
	mu        syncutil.Mutex
}

func (a *fakeAdvertiser) Shutdown() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.shutdowns++
}

func (a *fakeAdvertiser) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.shutdowns
}

type registration struct {
	instance string
	service  string
	text     []string
	port     int
}

type fakeRegistrar struct {
	adv      *fakeAdvertiser
	err      error
	calls    []registration
	failures int
	mu       syncutil.Mutex
}

func (r *fakeRegistrar) register(
	instance, service, _ string,
	port int,
	text []string,
	_ []net.Interface,
) (advertiser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, registration{instance: instance, service: service, text: text, port: port})
	if r.failures > 0 {
		r.failures--
		return nil, r.err
	}
	return r.adv, nil
}

func (r *fakeRegistrar) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func oneInterface() ([]net.Interface, error) {
	return []net.Interface{{Name: "wlan0", Flags: net.FlagUp | net.FlagMulticast}}, nil
}

func newTestService(cfg Settings, clock clockwork.Clock, reg *fakeRegistrar) *Service {
	svc := New(cfg, clock)
	svc.register = reg.register
	svc.interfaces = oneInterface
	return svc
}

func TestServiceType(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "_motolink._tcp", ServiceType)
}

func TestFilterInterfaces(t *testing.T) {
	t.Parallel()

	up := net.FlagUp | net.FlagMulticast
	ifaces := []net.Interface{
		{Name: "lo", Flags: up | net.FlagLoopback},
		{Name: "eth0", Flags: up},
		{Name: "wlan0", Flags: up},
		{Name: "docker0", Flags: up},
		{Name: "veth12ab", Flags: up},
		{Name: "wg0", Flags: up},
		{Name: "eth1", Flags: net.FlagMulticast},
		{Name: "ppp0", Flags: net.FlagUp},
	}

	got := filterInterfaces(ifaces)
	names := make([]string, 0, len(got))
	for _, iface := range got {
		names = append(names, iface.Name)
	}
	assert.Equal(t, []string{"eth0", "wlan0"}, names)
}

func TestIsVirtualInterface(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want bool
	}{
		{"docker0", true},
		{"BR-1234", true},
		{"virbr0", true},
		{"cali1", true},
		{"eth0", false},
		{"wlp3s0", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isVirtualInterface(tt.name), tt.name)
	}
}

func TestStart_Disabled(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistrar{adv: &fakeAdvertiser{}}
	svc := newTestService(fakeSettings{enabled: false}, nil, reg)

	require.NoError(t, svc.Start())
	assert.Zero(t, reg.callCount())
	assert.False(t, svc.Registered())
}

func TestStart_Registers(t *testing.T) {
	t.Parallel()

	adv := &fakeAdvertiser{}
	reg := &fakeRegistrar{adv: adv}
	cfg := fakeSettings{enabled: true, name: "garage-pi", deviceID: "0123456789abcdef", port: 7595}
	svc := newTestService(cfg, nil, reg)

	require.NoError(t, svc.Start())
	assert.True(t, svc.Registered())
	assert.Equal(t, "garage-pi", svc.InstanceName())

	require.Equal(t, 1, reg.callCount())
	call := reg.calls[0]
	assert.Equal(t, ServiceType, call.service)
	assert.Equal(t, 7595, call.port)
	assert.Contains(t, call.text, "id=0123456789abcdef")
	assert.Contains(t, call.text, "version="+config.AppVersion)
	assert.Contains(t, call.text, "path=/api/v1")

	svc.Stop()
	svc.Stop()
	assert.Equal(t, 1, adv.count())
	assert.False(t, svc.Registered())
}

func TestStart_RetriesInBackground(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	reg := &fakeRegistrar{adv: &fakeAdvertiser{}, err: errors.New("network unreachable"), failures: 2}
	svc := newTestService(fakeSettings{enabled: true, name: "bike"}, clock, reg)

	require.NoError(t, svc.Start())
	assert.False(t, svc.Registered())
	require.NoError(t, clock.BlockUntilContext(t.Context(), 2))

	require.Eventually(t, func() bool {
		clock.Advance(retryInterval)
		return svc.Registered()
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 3, reg.callCount())
	svc.Stop()
}

func TestStart_RetryGivesUp(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	reg := &fakeRegistrar{adv: &fakeAdvertiser{}, err: errors.New("network unreachable"), failures: 1000}
	svc := newTestService(fakeSettings{enabled: true, name: "bike"}, clock, reg)

	require.NoError(t, svc.Start())
	require.NoError(t, clock.BlockUntilContext(t.Context(), 2))
	clock.Advance(maxRetryDuration)

	ctx, cancel := context.WithTimeout(t.Context(), time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 0), "retry loop should exit")

	calls := reg.callCount()
	clock.Advance(retryInterval)
	assert.Equal(t, calls, reg.callCount())
	assert.False(t, svc.Registered())
	svc.Stop()
}

func TestResolveInstanceName(t *testing.T) {
	t.Parallel()

	svc := New(fakeSettings{name: "custom"}, nil)
	assert.Equal(t, "custom", svc.resolveInstanceName())

	svc = New(fakeSettings{deviceID: "0123456789abcdef"}, nil)
	assert.NotEmpty(t, svc.resolveInstanceName())
}
