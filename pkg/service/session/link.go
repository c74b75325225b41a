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
	"bytes"

	"github.com/motolink/motolink-core/pkg/transport"
	"github.com/rs/zerolog/log"
)

const readBufferSize = 512

// link is one established connection: the transport plus, for stream
// transports, the worker reading from it.
type link struct {
	tr     transport.Transport
	worker *worker
	closed chan struct{}
	kind   transport.Kind
}

func newLink(tr transport.Transport, kind transport.Kind) *link {
	return &link{tr: tr, kind: kind, closed: make(chan struct{})}
}

// close stops the worker and waits for it to exit before the transport is
// closed, so a read never races the close.
func (l *link) close() error {
	close(l.closed)
	if l.worker != nil {
		l.worker.halt()
	}
	return l.tr.Disconnect() //nolint:wrapcheck // already a TransportError
}

type worker struct {
	stop chan struct{}
	done chan struct{}
}

func (w *worker) halt() {
	close(w.stop)
	<-w.done
}

// startWorker polls tr until stopped, posting each chunk to the owner in
// the order it was read. A read error ends the worker and is reported as
// link loss, after any bytes returned with it.
func (s *Supervisor) startWorker(tr transport.Streamer, gen uint64) *worker {
	w := &worker{stop: make(chan struct{}), done: make(chan struct{})}
	go func() {
		defer close(w.done)
		buf := make([]byte, readBufferSize)
		for {
			select {
			case <-w.stop:
				return
			default:
			}

			n, err := tr.Read(buf)
			if n > 0 && !s.post(event{kind: evData, gen: gen, data: bytes.Clone(buf[:n])}, w.stop) {
				return
			}
			if err != nil {
				select {
				case <-w.stop:
					return
				default:
				}
				log.Debug().Err(err).Msg("stream worker read failed")
				s.post(event{kind: evLost, gen: gen, err: err}, w.stop)
				return
			}
		}
	}()
	return w
}

func (s *Supervisor) arm() {
	if s.ticker != nil {
		return
	}
	s.ticker = s.clock.NewTicker(s.interval)
	s.tickC = s.ticker.Chan()
	log.Debug().Dur("interval", s.interval).Msg("auto-reconnect armed")
}

func (s *Supervisor) disarm() {
	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	s.ticker = nil
	s.tickC = nil
	log.Debug().Msg("auto-reconnect disarmed")
}

// handleTick retries the last known device while disconnected. The ticker
// keeps running whatever the outcome, so a failed attempt is retried at
// the next interval.
func (s *Supervisor) handleTick() {
	if s.session.State != StateDisconnected || s.session.Busy || s.session.LastKnownAddress == "" {
		return
	}
	log.Info().Str("address", s.session.LastKnownAddress).Msg("auto-reconnect attempt")
	reply := make(chan error, 1)
	s.startConnect(connectRequest{
		address: s.session.LastKnownAddress,
		secure:  s.session.Secure,
	}, reply)
}
