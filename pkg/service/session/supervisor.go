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

package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/motolink/motolink-core/pkg/protocol"
	"github.com/motolink/motolink-core/pkg/transport"
	"github.com/rs/zerolog/log"
)

const (
	DefaultReconnectInterval = 15 * time.Second

	eventBufferSize = 256
)

// Options configures a Supervisor.
type Options struct {
	Factory  Factory
	Consumer Consumer
	// Sink is optional.
	Sink  LogSink
	Clock clockwork.Clock
	// Table defaults to the built-in table for Encoding.
	Table             *protocol.FieldTable
	Encoding          protocol.Encoding
	ReconnectInterval time.Duration
}

type eventKind int

const (
	evData eventKind = iota
	evLost
	evConnectDone
	evDisconnectDone
	evError
)

type event struct {
	err   error
	tr    transport.Transport
	reply chan error
	req   connectRequest
	data  []byte
	kind  eventKind
	tkind transport.Kind
	gen   uint64
}

type connectRequest struct {
	address       string
	secure        bool
	autoReconnect bool
}

// Supervisor is the single owner of a session. All state lives on the
// goroutine running Run; the public methods post requests to it. Inbound
// data, link loss and the results of connect and disconnect arrive as
// events tagged with the connection generation they belong to, and events
// from an older generation are dropped.
type Supervisor struct {
	clock    clockwork.Clock
	factory  Factory
	consumer Consumer
	sink     LogSink
	runCtx   context.Context //nolint:containedctx // lifetime of Run, used by helper goroutines

	reqs   chan func()
	events chan event
	quit   chan struct{}

	// owned by Run
	active      *link
	reader      protocol.FrameReader
	decoder     *protocol.Decoder
	ticker      clockwork.Ticker
	tickC       <-chan time.Time
	pendingLost error
	session     Session
	bg          sync.WaitGroup
	gen         uint64
	interval    time.Duration
	encoding    protocol.Encoding
	quitOnce    sync.Once

	// disarmRequested records a Disconnect without keepReconnecting that
	// arrived while a connect was in flight.
	disarmRequested bool
}

// New returns a supervisor. Nothing happens until Run is called.
func New(opts Options) (*Supervisor, error) {
	if opts.Factory == nil {
		return nil, errors.New("session: transport factory is required")
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	consumer := opts.Consumer
	if consumer == nil {
		consumer = NopConsumer{}
	}
	table := opts.Table
	if table == nil {
		table = protocol.DefaultFieldTable(opts.Encoding)
	}
	interval := opts.ReconnectInterval
	if interval <= 0 {
		interval = DefaultReconnectInterval
	}

	return &Supervisor{
		clock:    clock,
		factory:  opts.Factory,
		consumer: consumer,
		sink:     opts.Sink,
		reqs:     make(chan func()),
		events:   make(chan event, eventBufferSize),
		quit:     make(chan struct{}),
		reader:   protocol.NewFrameReader(opts.Encoding),
		decoder:  protocol.NewDecoder(table),
		interval: interval,
		encoding: opts.Encoding,
		runCtx:   context.Background(),
	}, nil
}

// Run processes requests and events until ctx is cancelled, then tears
// down the active link and waits for every helper goroutine to exit. It
// must be called exactly once.
func (s *Supervisor) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.runCtx = runCtx

	for {
		select {
		case <-ctx.Done():
			s.shutdown(cancel)
			return nil
		case fn := <-s.reqs:
			fn()
		case ev := <-s.events:
			s.handleEvent(ev)
		case <-s.tickC:
			s.handleTick()
		}
	}
}

func (s *Supervisor) shutdown(cancel context.CancelFunc) {
	s.quitOnce.Do(func() { close(s.quit) })
	cancel()
	s.disarm()

	if l := s.detach(); l != nil {
		if err := l.close(); err != nil {
			log.Warn().Err(err).Msg("error closing link on shutdown")
		}
	}
	s.bg.Wait()
	log.Debug().Msg("session supervisor stopped")
}

// do runs fn on the owner goroutine.
func (s *Supervisor) do(ctx context.Context, fn func()) error {
	select {
	case s.reqs <- fn:
		return nil
	case <-s.quit:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err() //nolint:wrapcheck // caller's context
	}
}

func query[T any](ctx context.Context, s *Supervisor, fn func() T) (T, error) {
	reply := make(chan T, 1)
	if err := s.do(ctx, func() { reply <- fn() }); err != nil {
		var zero T
		return zero, err
	}
	return <-reply, nil
}

func (s *Supervisor) await(ctx context.Context, reply <-chan error) error {
	select {
	case err := <-reply:
		return err
	case <-s.quit:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err() //nolint:wrapcheck // caller's context
	}
}

// post delivers an event to the owner. It gives up when stop is closed or
// the supervisor is shutting down.
func (s *Supervisor) post(ev event, stop <-chan struct{}) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.quit:
		return false
	case <-stop:
		return false
	}
}

func (s *Supervisor) spawn(fn func()) {
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		fn()
	}()
}

// Connect opens a link to address, replacing any existing one. It returns
// a *BusyError if a connect or disconnect is already in progress. When
// autoReconnect is set the reconnect timer is armed on success. If ctx
// ends first Connect returns early but the attempt carries on.
func (s *Supervisor) Connect(ctx context.Context, address string, secure, autoReconnect bool) error {
	reply := make(chan error, 1)
	req := connectRequest{address: address, secure: secure, autoReconnect: autoReconnect}
	if err := s.do(ctx, func() { s.startConnect(req, reply) }); err != nil {
		return err
	}
	return s.await(ctx, reply)
}

// Disconnect closes the active link. Unless keepReconnecting is set the
// reconnect timer is disarmed first. Disconnecting an idle session is a
// no-op.
func (s *Supervisor) Disconnect(ctx context.Context, keepReconnecting bool) error {
	reply := make(chan error, 1)
	if err := s.do(ctx, func() { s.startDisconnect(keepReconnecting, reply) }); err != nil {
		return err
	}
	return s.await(ctx, reply)
}

// SendCommand writes cmd to the active transport. Success means the
// transport accepted the write.
func (s *Supervisor) SendCommand(ctx context.Context, cmd protocol.Command) error {
	tr, err := query(ctx, s, func() transport.Transport {
		if s.active == nil || s.session.State != StateConnected {
			return nil
		}
		return s.active.tr
	})
	if err != nil {
		return err
	}
	if tr == nil {
		return &transport.TransportError{Op: "send " + cmd.String(), Err: transport.ErrNotConnected}
	}
	if err := tr.Send(cmd.Bytes()); err != nil {
		return err //nolint:wrapcheck // already a TransportError
	}
	log.Info().Stringer("command", cmd).Msg("command sent")
	return nil
}

// Snapshot returns the current session state.
func (s *Supervisor) Snapshot(ctx context.Context) (Session, error) {
	return query(ctx, s, func() Session { return s.session })
}

// Table returns the field table used by the decoder.
func (s *Supervisor) Table(ctx context.Context) (*protocol.FieldTable, error) {
	return query(ctx, s, func() *protocol.FieldTable { return s.decoder.Table() })
}

// InjectTestFrame runs the firmware test frame through the pipeline as if
// the device had sent it.
func (s *Supervisor) InjectTestFrame(ctx context.Context) error {
	return s.do(ctx, func() { s.handleFrame(protocol.TestFrameFor(s.encoding)) })
}

// SetProtocol switches the wire encoding and field table. Any partially
// received frame is discarded.
func (s *Supervisor) SetProtocol(ctx context.Context, enc protocol.Encoding, table *protocol.FieldTable) error {
	if table == nil {
		table = protocol.DefaultFieldTable(enc)
	}
	return s.do(ctx, func() {
		s.encoding = enc
		s.reader = protocol.NewFrameReader(enc)
		s.decoder = protocol.NewDecoder(table)
		log.Info().Stringer("encoding", enc).Int("fields", table.Len()).Msg("protocol changed")
	})
}

func (s *Supervisor) publish() {
	s.session.AutoReconnect = s.ticker != nil
	s.consumer.HandleSession(s.session)
}

func (s *Supervisor) detach() *link {
	l := s.active
	s.active = nil
	return l
}

func (s *Supervisor) markDisconnected() {
	s.session.State = StateDisconnected
	s.session.DeviceAddress = ""
	s.session.TransportKind = transport.KindUnknown
}

func (s *Supervisor) startConnect(req connectRequest, reply chan error) {
	if s.session.Busy {
		reply <- &BusyError{Op: "connect"}
		return
	}

	prev := s.detach()
	s.gen++
	gen := s.gen
	s.pendingLost = nil
	s.disarmRequested = false
	s.reader = protocol.NewFrameReader(s.encoding)

	s.session.Busy = true
	s.session.State = StateConnecting
	s.session.DeviceAddress = req.address
	s.session.Secure = req.secure
	s.publish()
	log.Info().Str("address", req.address).Bool("secure", req.secure).Msg("connecting")

	ctx := s.runCtx
	s.spawn(func() {
		if prev != nil {
			if err := prev.close(); err != nil {
				log.Warn().Err(err).Msg("error closing previous link")
			}
		}
		tr, kind, err := s.dial(ctx, gen, req)
		ev := event{kind: evConnectDone, gen: gen, tr: tr, tkind: kind, err: err, reply: reply, req: req}
		if !s.post(ev, nil) && tr != nil {
			_ = tr.Disconnect()
		}
	})
}

func (s *Supervisor) dial(
	ctx context.Context,
	gen uint64,
	req connectRequest,
) (transport.Transport, transport.Kind, error) {
	kind, err := s.factory.Resolve(ctx, req.address)
	if err != nil {
		return nil, kind, err //nolint:wrapcheck // typed transport errors
	}
	tr, err := s.factory.New(kind)
	if err != nil {
		return nil, kind, err //nolint:wrapcheck // typed transport errors
	}

	if n, ok := tr.(transport.Notifier); ok {
		n.SetHandlers(
			func(b []byte) { s.post(event{kind: evData, gen: gen, data: b}, nil) },
			func(err error) { s.post(event{kind: evLost, gen: gen, err: err}, nil) },
		)
	}

	if err := tr.Connect(ctx, req.address, req.secure); err != nil {
		return nil, kind, err //nolint:wrapcheck // typed transport errors
	}
	return tr, kind, nil
}

func (s *Supervisor) finishConnect(ev event) {
	s.session.Busy = false

	err := ev.err
	if err == nil && s.pendingLost != nil {
		err = s.pendingLost
		tr := ev.tr
		s.spawn(func() { _ = tr.Disconnect() })
	}
	s.pendingLost = nil

	if err != nil {
		s.markDisconnected()
		s.publish()
		log.Warn().Err(err).Str("address", ev.req.address).Msg("connect failed")
		s.consumer.HandleError(err)
		ev.reply <- err
		return
	}

	l := newLink(ev.tr, ev.tkind)
	if st, ok := ev.tr.(transport.Streamer); ok {
		l.worker = s.startWorker(st, ev.gen)
	}
	s.active = l

	s.session.State = StateConnected
	s.session.TransportKind = ev.tkind
	s.session.LastKnownAddress = ev.req.address
	if ev.req.autoReconnect && !s.disarmRequested {
		s.arm()
	}
	s.disarmRequested = false
	s.publish()
	log.Info().Str("address", ev.req.address).Stringer("kind", ev.tkind).Msg("connected")

	s.sendStart(l, ev.gen)
	ev.reply <- nil
}

// sendStart sends the start command once the transport's settle delay
// has passed.
func (s *Supervisor) sendStart(l *link, gen uint64) {
	var delay time.Duration
	if d, ok := l.tr.(transport.StartDelayer); ok {
		delay = d.StartDelay()
	}
	clock := s.clock
	s.spawn(func() {
		if delay > 0 {
			select {
			case <-clock.After(delay):
			case <-l.closed:
				return
			}
		}
		if err := l.tr.Send(protocol.CommandStart.Bytes()); err != nil {
			s.post(event{kind: evError, gen: gen, err: err}, l.closed)
			return
		}
		log.Debug().Msg("start command sent")
	})
}

func (s *Supervisor) startDisconnect(keepReconnecting bool, reply chan error) {
	if !keepReconnecting && s.ticker != nil {
		s.disarm()
		s.publish()
	}
	if s.session.Busy {
		if !keepReconnecting {
			s.disarmRequested = true
		}
		reply <- &BusyError{Op: "disconnect"}
		return
	}
	if s.session.State == StateDisconnected {
		reply <- nil
		return
	}

	l := s.detach()
	s.gen++
	s.session.Busy = true
	s.session.State = StateDisconnecting
	s.publish()
	log.Info().Str("address", s.session.DeviceAddress).Msg("disconnecting")

	s.spawn(func() {
		var err error
		if l != nil {
			err = l.close()
		}
		s.post(event{kind: evDisconnectDone, err: err, reply: reply}, nil)
	})
}

func (s *Supervisor) finishDisconnect(ev event) {
	s.session.Busy = false
	s.markDisconnected()
	s.publish()
	if ev.err != nil {
		log.Warn().Err(ev.err).Msg("error during disconnect")
	} else {
		log.Info().Msg("disconnected")
	}
	ev.reply <- ev.err
}

func (s *Supervisor) handleLost(ev event) {
	if ev.gen != s.gen {
		return
	}
	switch s.session.State {
	case StateConnecting:
		s.pendingLost = ev.err
		return
	case StateConnected:
	default:
		return
	}

	l := s.detach()
	s.gen++
	s.markDisconnected()
	s.publish()
	log.Warn().Err(ev.err).Bool("autoReconnect", s.ticker != nil).Msg("link lost")
	s.consumer.HandleError(ev.err)

	if l != nil {
		s.spawn(func() {
			if err := l.close(); err != nil {
				log.Debug().Err(err).Msg("error closing lost link")
			}
		})
	}
}

func (s *Supervisor) handleEvent(ev event) {
	switch ev.kind {
	case evData:
		if ev.gen == s.gen {
			s.feed(ev.data)
		}
	case evLost:
		s.handleLost(ev)
	case evConnectDone:
		s.finishConnect(ev)
	case evDisconnectDone:
		s.finishDisconnect(ev)
	case evError:
		if ev.gen == s.gen {
			log.Warn().Err(ev.err).Msg("transport error")
			s.consumer.HandleError(ev.err)
		}
	}
}

func (s *Supervisor) feed(chunk []byte) {
	for frame := range s.reader.Feed(chunk) {
		s.handleFrame(frame)
	}
}

func (s *Supervisor) handleFrame(frame protocol.Frame) {
	if s.sink != nil {
		if err := s.sink.Append(s.clock.Now(), frame); err != nil {
			log.Warn().Err(err).Msg("failed to append frame to data log")
		}
	}

	decoded, err := s.decoder.Decode(frame)
	if err != nil {
		log.Debug().Err(err).Msg("frame dropped")
		s.consumer.HandleError(err)
		return
	}

	switch d := decoded.(type) {
	case protocol.Reading:
		s.consumer.HandleReading(d)
	case protocol.Message:
		if d.Known() {
			log.Info().Str("message", d.Text).Msg("bridge status")
		} else {
			log.Debug().Str("message", d.Text).Msg("bridge message")
		}
		s.consumer.HandleMessage(d)
	}
}
