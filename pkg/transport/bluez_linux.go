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

//go:build linux

package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"
	"github.com/motolink/motolink-core/pkg/helpers/syncutil"
	"github.com/rs/zerolog/log"
)

const (
	bluezBus          = "org.bluez"
	bluezAdapter      = "org.bluez.Adapter1"
	bluezDevice       = "org.bluez.Device1"
	bluezGattService  = "org.bluez.GattService1"
	bluezGattChar     = "org.bluez.GattCharacteristic1"
	dbusProperties    = "org.freedesktop.DBus.Properties"
	dbusObjectManager = "org.freedesktop.DBus.ObjectManager"

	servicesResolvedPoll = 200 * time.Millisecond
)

// BlueZ talks to the Linux Bluetooth daemon over the system D-Bus.
type BlueZ struct {
	// Adapter is the controller name, usually "hci0".
	Adapter string
}

func (b *BlueZ) adapter() string {
	if b.Adapter == "" {
		return DefaultAdapter
	}
	return b.Adapter
}

func openSystemBus() (*dbus.Conn, error) {
	conn, err := dbus.SystemBusPrivate()
	if err != nil {
		return nil, &ConfigurationError{Reason: "system bus unavailable", Err: err}
	}
	if err := conn.Auth(nil); err != nil {
		_ = conn.Close()
		return nil, &ConfigurationError{Reason: "system bus authentication failed", Err: err}
	}
	if err := conn.Hello(); err != nil {
		_ = conn.Close()
		return nil, &ConfigurationError{Reason: "system bus handshake failed", Err: err}
	}
	return conn, nil
}

func getDBusProperty[T any](conn *dbus.Conn, path dbus.ObjectPath, iface, prop string) (T, error) {
	var zero T
	v, err := conn.Object(bluezBus, path).GetProperty(iface + "." + prop)
	if err != nil {
		return zero, fmt.Errorf("get %s.%s: %w", iface, prop, err)
	}
	val, ok := v.Value().(T)
	if !ok {
		return zero, fmt.Errorf("unexpected type %T for %s.%s", v.Value(), iface, prop)
	}
	return val, nil
}

func (b *BlueZ) checkAdapter(conn *dbus.Conn) error {
	path := dbus.ObjectPath("/org/bluez/" + b.adapter())
	powered, err := getDBusProperty[bool](conn, path, bluezAdapter, "Powered")
	if err != nil {
		return &ConfigurationError{Reason: "adapter " + b.adapter(), Err: ErrNoAdapter}
	}
	if !powered {
		return &ConfigurationError{Reason: "adapter " + b.adapter(), Err: ErrAdapterOff}
	}
	return nil
}

// DeviceKind reports the radio technology of a known device. Devices BlueZ
// has never seen resolve to KindUnknown.
func (b *BlueZ) DeviceKind(_ context.Context, address string) (Kind, error) {
	addr, err := ParseAddress(address)
	if err != nil {
		return KindUnknown, &ConfigurationError{Reason: "invalid device address", Err: err}
	}

	conn, err := openSystemBus()
	if err != nil {
		return KindUnknown, err
	}
	defer func() { _ = conn.Close() }()

	if err := b.checkAdapter(conn); err != nil {
		return KindUnknown, err
	}

	var props map[string]dbus.Variant
	obj := conn.Object(bluezBus, dbus.ObjectPath(devicePath(b.adapter(), addr)))
	if err := obj.Call(dbusProperties+".GetAll", 0, bluezDevice).Store(&props); err != nil {
		log.Debug().Err(err).Str("address", address).Msg("device not known to bluez")
		return KindUnknown, nil
	}
	return kindFromProperties(props), nil
}

// kindFromProperties classifies a device from its Device1 properties.
func kindFromProperties(props map[string]dbus.Variant) Kind {
	var uuids []string
	if v, ok := props["UUIDs"]; ok {
		uuids, _ = v.Value().([]string)
	}
	hasUUID := func(want uuid.UUID) bool {
		for _, s := range uuids {
			if u, err := uuid.Parse(s); err == nil && u == want {
				return true
			}
		}
		return false
	}

	spp := hasUUID(SerialPortUUID)
	le := hasUUID(BridgeServiceUUID)
	_, hasClass := props["Class"]
	random := false
	if v, ok := props["AddressType"]; ok {
		s, _ := v.Value().(string)
		random = s == "random"
	}

	switch {
	case spp && le:
		return KindDual
	case spp || (hasClass && !le):
		return KindClassic
	case le || random:
		return KindLowEnergy
	default:
		return KindUnknown
	}
}

// DialGATT connects to the device, pairing first when secure is set, and
// waits for its GATT services to be resolved.
func (b *BlueZ) DialGATT(ctx context.Context, address string, secure bool) (GATTLink, error) {
	addr, err := ParseAddress(address)
	if err != nil {
		return nil, &ConfigurationError{Reason: "invalid device address", Err: err}
	}

	conn, err := openSystemBus()
	if err != nil {
		return nil, err
	}
	if err := b.checkAdapter(conn); err != nil {
		_ = conn.Close()
		return nil, err
	}

	path := dbus.ObjectPath(devicePath(b.adapter(), addr))
	dev := conn.Object(bluezBus, path)

	if secure {
		paired, _ := getDBusProperty[bool](conn, path, bluezDevice, "Paired")
		if !paired {
			if call := dev.CallWithContext(ctx, bluezDevice+".Pair", 0); call.Err != nil {
				_ = conn.Close()
				return nil, fmt.Errorf("pair failed: %w", call.Err)
			}
		}
	}

	if call := dev.CallWithContext(ctx, bluezDevice+".Connect", 0); call.Err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("connect failed: %w", call.Err)
	}

	if err := waitServicesResolved(ctx, conn, path); err != nil {
		_ = dev.Call(bluezDevice+".Disconnect", 0)
		_ = conn.Close()
		return nil, err
	}

	link := &bluezLink{
		conn:     conn,
		dev:      dev,
		path:     path,
		lost:     make(chan struct{}),
		stop:     make(chan struct{}),
		handlers: make(map[dbus.ObjectPath]func([]byte)),
	}
	if err := link.listen(); err != nil {
		_ = link.Close()
		return nil, err
	}
	return link, nil
}

func waitServicesResolved(ctx context.Context, conn *dbus.Conn, path dbus.ObjectPath) error {
	ticker := time.NewTicker(servicesResolvedPoll)
	defer ticker.Stop()
	for {
		resolved, err := getDBusProperty[bool](conn, path, bluezDevice, "ServicesResolved")
		if err == nil && resolved {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for services: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

type bluezLink struct {
	dev      dbus.BusObject
	conn     *dbus.Conn
	handlers map[dbus.ObjectPath]func([]byte)
	lost     chan struct{}
	stop     chan struct{}
	sigCh    chan *dbus.Signal
	path     dbus.ObjectPath
	wg       sync.WaitGroup
	mu       syncutil.Mutex
	lostOnce sync.Once
	stopOnce sync.Once
}

func (l *bluezLink) listen() error {
	if err := l.conn.AddMatchSignal(
		dbus.WithMatchInterface(dbusProperties),
		dbus.WithMatchMember("PropertiesChanged"),
		dbus.WithMatchPathNamespace(l.path),
	); err != nil {
		return fmt.Errorf("failed to add signal match: %w", err)
	}

	l.sigCh = make(chan *dbus.Signal, 64)
	l.conn.Signal(l.sigCh)

	l.wg.Add(1)
	go l.dispatch()
	return nil
}

func (l *bluezLink) dispatch() {
	defer l.wg.Done()
	for {
		select {
		case <-l.stop:
			return
		case sig, ok := <-l.sigCh:
			if !ok {
				l.markLost()
				return
			}
			l.handleSignal(sig)
		}
	}
}

func (l *bluezLink) handleSignal(sig *dbus.Signal) {
	if sig.Name != dbusProperties+".PropertiesChanged" || len(sig.Body) < 2 {
		return
	}
	iface, _ := sig.Body[0].(string)
	changed, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return
	}

	switch {
	case iface == bluezDevice && sig.Path == l.path:
		if v, ok := changed["Connected"]; ok {
			if connected, _ := v.Value().(bool); !connected {
				l.markLost()
			}
		}
	case iface == bluezGattChar:
		v, ok := changed["Value"]
		if !ok {
			return
		}
		data, _ := v.Value().([]byte)
		l.mu.Lock()
		fn := l.handlers[sig.Path]
		l.mu.Unlock()
		if fn != nil {
			fn(data)
		}
	}
}

func (l *bluezLink) markLost() {
	l.lostOnce.Do(func() { close(l.lost) })
}

func (l *bluezLink) Lost() <-chan struct{} {
	return l.lost
}

func (l *bluezLink) Characteristic(ctx context.Context, service, char uuid.UUID) (Characteristic, error) {
	var objects map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	root := l.conn.Object(bluezBus, "/")
	if err := root.CallWithContext(ctx, dbusObjectManager+".GetManagedObjects", 0).Store(&objects); err != nil {
		return nil, fmt.Errorf("GetManagedObjects failed: %w", err)
	}

	prefix := string(l.path) + "/"
	var servicePath dbus.ObjectPath
	for p, ifaces := range objects {
		props, ok := ifaces[bluezGattService]
		if !ok || !strings.HasPrefix(string(p), prefix) {
			continue
		}
		if variantUUID(props["UUID"]) == service {
			servicePath = p
			break
		}
	}
	if servicePath == "" {
		return nil, fmt.Errorf("service %s not found", service)
	}

	for p, ifaces := range objects {
		props, ok := ifaces[bluezGattChar]
		if !ok || !strings.HasPrefix(string(p), string(servicePath)+"/") {
			continue
		}
		if variantUUID(props["UUID"]) == char {
			return &bluezCharacteristic{link: l, path: p}, nil
		}
	}
	return nil, fmt.Errorf("characteristic %s not found", char)
}

func variantUUID(v dbus.Variant) uuid.UUID {
	s, _ := v.Value().(string)
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil
	}
	return u
}

func (l *bluezLink) Close() error {
	var err error
	l.stopOnce.Do(func() {
		close(l.stop)
		l.wg.Wait()
		if l.sigCh != nil {
			l.conn.RemoveSignal(l.sigCh)
		}
		if call := l.dev.Call(bluezDevice+".Disconnect", 0); call.Err != nil {
			err = fmt.Errorf("disconnect failed: %w", call.Err)
		}
		if closeErr := l.conn.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	})
	return err
}

type bluezCharacteristic struct {
	link *bluezLink
	path dbus.ObjectPath
}

func (c *bluezCharacteristic) obj() dbus.BusObject {
	return c.link.conn.Object(bluezBus, c.path)
}

func (c *bluezCharacteristic) StartNotify(ctx context.Context, fn func([]byte)) error {
	c.link.mu.Lock()
	c.link.handlers[c.path] = fn
	c.link.mu.Unlock()

	if call := c.obj().CallWithContext(ctx, bluezGattChar+".StartNotify", 0); call.Err != nil {
		c.link.mu.Lock()
		delete(c.link.handlers, c.path)
		c.link.mu.Unlock()
		return fmt.Errorf("StartNotify failed: %w", call.Err)
	}
	return nil
}

func (c *bluezCharacteristic) StopNotify() error {
	c.link.mu.Lock()
	delete(c.link.handlers, c.path)
	c.link.mu.Unlock()

	if call := c.obj().Call(bluezGattChar+".StopNotify", 0); call.Err != nil {
		var dbusErr dbus.Error
		if errors.As(call.Err, &dbusErr) && dbusErr.Name == "org.bluez.Error.Failed" {
			// already stopped by the remote disconnecting
			return nil
		}
		return fmt.Errorf("StopNotify failed: %w", call.Err)
	}
	return nil
}

func (c *bluezCharacteristic) Write(data []byte) error {
	opts := map[string]dbus.Variant{"type": dbus.MakeVariant("command")}
	if call := c.obj().Call(bluezGattChar+".WriteValue", 0, data, opts); call.Err != nil {
		return fmt.Errorf("WriteValue failed: %w", call.Err)
	}
	return nil
}

// MTU returns the negotiated ATT MTU. BlueZ negotiates the MTU itself
// during connection, so it can only be read here.
func (c *bluezCharacteristic) MTU() (int, error) {
	mtu, err := getDBusProperty[uint16](c.link.conn, c.path, bluezGattChar, "MTU")
	if err != nil {
		return 0, err
	}
	return int(mtu), nil
}
