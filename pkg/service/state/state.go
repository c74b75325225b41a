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
	"context"
	"errors"

	"github.com/jonboulle/clockwork"
	"github.com/motolink/motolink-core/pkg/api/models"
	"github.com/motolink/motolink-core/pkg/api/notifications"
	"github.com/motolink/motolink-core/pkg/helpers/syncutil"
	"github.com/motolink/motolink-core/pkg/protocol"
	"github.com/motolink/motolink-core/pkg/service/session"
	"github.com/motolink/motolink-core/pkg/transport"
	"github.com/rs/zerolog/log"
)

// Error kinds reported in session.error notifications.
const (
	ErrorKindTransport     = "transport"
	ErrorKindProtocol      = "protocol"
	ErrorKindBusy          = "busy"
	ErrorKindConfiguration = "configuration"
	ErrorKindOther         = "other"
)

// State holds the runtime state of the MotoLink service and is the
// session's consumer.
//
// LOCKING RULES: The mu mutex protects all mutable fields. Handlers are
// called from the session supervisor goroutine, so they must never block:
//   - Never send to channels while holding the lock
//   - Pattern: lock → modify state → copy needed data → unlock → send notifications
type State struct {
	clock         clockwork.Clock
	ctx           context.Context
	ctxCancelFunc context.CancelFunc
	Notifications chan<- models.Notification
	latestReading *models.ReadingResponse
	latestMessage *models.MessageResponse
	lastError     *models.ErrorResponse
	session       session.Session
	encoding      protocol.Encoding
	mu            syncutil.RWMutex
	stopService   bool
}

var _ session.Consumer = (*State)(nil)

func NewState(
	clock clockwork.Clock,
	enc protocol.Encoding,
) (state *State, notificationCh <-chan models.Notification) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	// readings arrive several times a second; the buffer absorbs a slow
	// subscriber without dropping session changes
	ns := make(chan models.Notification, 500)
	ctx, ctxCancelFunc := context.WithCancel(context.Background())
	return &State{
		clock:         clock,
		ctx:           ctx,
		ctxCancelFunc: ctxCancelFunc,
		Notifications: ns,
		encoding:      enc,
	}, ns
}

func (s *State) HandleReading(r protocol.Reading) {
	payload := models.NewReadingResponse(s.clock.Now(), r)

	s.mu.Lock()
	s.latestReading = &payload
	s.mu.Unlock()

	notifications.ReadingsNew(s.Notifications, payload)
}

func (s *State) HandleMessage(m protocol.Message) {
	payload := models.NewMessageResponse(s.clock.Now(), m)
	if !payload.Known {
		log.Debug().Str("text", m.Text).Msg("unrecognised bridge message")
	}

	s.mu.Lock()
	s.latestMessage = &payload
	s.mu.Unlock()

	notifications.MessagesNew(s.Notifications, payload)
}

// HandleSession records a session snapshot and notifies only when it
// differs from the previous one.
func (s *State) HandleSession(sess session.Session) {
	s.mu.Lock()
	if sess == s.session {
		s.mu.Unlock()
		return
	}
	prev := s.session
	s.session = sess
	payload := models.NewSessionResponse(sess, s.encoding)
	s.mu.Unlock()

	if prev.State != sess.State {
		log.Info().
			Str("from", prev.State.String()).
			Str("to", sess.State.String()).
			Str("address", sess.DeviceAddress).
			Msg("session state changed")
	}
	notifications.SessionChanged(s.Notifications, payload)
}

func (s *State) HandleError(err error) {
	if err == nil {
		return
	}
	payload := models.ErrorResponse{
		Time:    s.clock.Now(),
		Kind:    ErrorKind(err),
		Message: err.Error(),
	}
	log.Warn().Err(err).Str("kind", payload.Kind).Msg("session error")

	s.mu.Lock()
	s.lastError = &payload
	s.mu.Unlock()

	notifications.SessionError(s.Notifications, payload)
}

// ErrorKind classifies an error for display.
func ErrorKind(err error) string {
	var protoErr *protocol.ProtocolError
	var transErr *transport.TransportError
	switch {
	case session.IsBusy(err):
		return ErrorKindBusy
	case transport.IsConfigurationError(err):
		return ErrorKindConfiguration
	case errors.As(err, &protoErr):
		return ErrorKindProtocol
	case errors.As(err, &transErr):
		return ErrorKindTransport
	default:
		return ErrorKindOther
	}
}

func (s *State) Session() session.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// SessionResponse returns the current session in API form.
func (s *State) SessionResponse() models.SessionResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.NewSessionResponse(s.session, s.encoding)
}

// Latest returns the most recent reading and message, either of which may
// be nil if none has arrived.
func (s *State) Latest() models.LatestResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var resp models.LatestResponse
	if s.latestReading != nil {
		r := *s.latestReading
		resp.Reading = &r
	}
	if s.latestMessage != nil {
		m := *s.latestMessage
		resp.Message = &m
	}
	return resp
}

func (s *State) LastError() (models.ErrorResponse, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastError == nil {
		return models.ErrorResponse{}, false
	}
	return *s.lastError, true
}

func (s *State) Encoding() protocol.Encoding {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.encoding
}

// SetEncoding changes the reported wire encoding and clears the latest
// reading, which was decoded with the previous table.
func (s *State) SetEncoding(enc protocol.Encoding) {
	s.mu.Lock()
	if s.encoding == enc {
		s.mu.Unlock()
		return
	}
	s.encoding = enc
	s.latestReading = nil
	payload := models.NewSessionResponse(s.session, enc)
	s.mu.Unlock()

	notifications.SessionChanged(s.Notifications, payload)
}

func (s *State) GetContext() context.Context {
	return s.ctx
}

func (s *State) StopService() {
	s.mu.Lock()
	s.stopService = true
	s.mu.Unlock()
	s.ctxCancelFunc()
}

func (s *State) ShouldStopService() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stopService
}
