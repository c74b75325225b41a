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


// Package datalog records every frame the bridge sends to a CSV-like
// file, one line per frame, for later analysis.
package datalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/motolink/motolink-core/pkg/helpers"
	"github.com/motolink/motolink-core/pkg/helpers/syncutil"
	"github.com/motolink/motolink-core/pkg/protocol"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

const (
	osAppendFlags = os.O_CREATE | os.O_WRONLY | os.O_APPEND

	filePrefix    = "sensordata_"
	fileExt       = ".log"
	fileTimestamp = "20060102_150405"
	dateLayout    = "20060102"
	timeLayout    = "150405"
)

// ErrNotLogging is returned by Stop when no log is open.
var ErrNotLogging = errors.New("data log not running")

// Status describes the sink for the API.
type Status struct {
	Path    string `json:"path,omitempty"`
	Frames  int    `json:"frames"`
	Logging bool   `json:"logging"`
}

// Sink appends frames to a log file while started. It implements
// session.LogSink and is safe for concurrent use.
type Sink struct {
	fs     afero.Fs
	clock  clockwork.Clock
	file   afero.File
	w      *csv.Writer
	dir    string
	path   string
	frames int
	mu     syncutil.Mutex
}

// New returns a stopped Sink writing into dir on fs.
func New(fs afero.Fs, dir string, clock clockwork.Clock) *Sink {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Sink{fs: fs, dir: dir, clock: clock}
}

// Start opens a new log file named after the current time and writes the
// header row. Starting a running sink is a no-op that returns the open
// file's path.
func (s *Sink) Start(labels []string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file != nil {
		return s.path, nil
	}

	now := s.clock.Now()
	if !helpers.IsClockReliable(now) {
		log.Warn().Time("now", now).Msg("system clock looks unset, data log timestamps will be wrong")
	}

	if err := s.fs.MkdirAll(s.dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create data log directory: %w", err)
	}

	path := filepath.Join(s.dir, filePrefix+now.Format(fileTimestamp)+fileExt)
	f, err := s.fs.OpenFile(path, osAppendFlags, 0o600)
	if err != nil {
		return "", fmt.Errorf("failed to open data log: %w", err)
	}

	w := csv.NewWriter(f)
	header := append([]string{"Date", "Time"}, labels...)
	if err := writeRow(w, header); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("failed to write data log header: %w", err)
	}

	s.file = f
	s.w = w
	s.path = path
	s.frames = 0
	log.Info().Str("path", path).Msg("data logging started")
	return path, nil
}

// Stop flushes and closes the log file.
func (s *Sink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return ErrNotLogging
	}

	s.w.Flush()
	flushErr := s.w.Error()
	closeErr := s.file.Close()
	log.Info().Str("path", s.path).Int("frames", s.frames).Msg("data logging stopped")

	s.file = nil
	s.w = nil
	s.path = ""
	s.frames = 0
	if err := errors.Join(flushErr, closeErr); err != nil {
		return fmt.Errorf("failed to close data log: %w", err)
	}
	return nil
}

// IsLogging reports whether a log file is open.
func (s *Sink) IsLogging() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file != nil
}

// Status returns the current state.
func (s *Sink) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{Logging: s.file != nil, Path: s.path, Frames: s.frames}
}

// Append writes one line for frame: the date and time of ts followed by
// the frame's values. Binary telemetry frames log each payload byte as an
// unsigned decimal, binary text frames log the text and text-encoded
// frames log their fields. Frames shorter than two bytes and frames
// received while stopped are dropped.
func (s *Sink) Append(ts time.Time, frame protocol.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil || len(frame.Raw) < protocol.HeaderSize {
		return nil
	}

	if err := writeRow(s.w, row(ts, frame)); err != nil {
		return fmt.Errorf("failed to append to data log: %w", err)
	}
	s.frames++
	return nil
}

func row(ts time.Time, frame protocol.Frame) []string {
	millis := ts.Nanosecond() / int(time.Millisecond)
	cells := []string{
		ts.Format(dateLayout),
		ts.Format(timeLayout) + fmt.Sprintf("%03d", millis),
	}

	if frame.Encoding == protocol.EncodingText {
		return append(cells, frame.Fields()...)
	}

	switch frame.Type() {
	case protocol.FrameText:
		cells = append(cells, string(frame.Payload()))
	case protocol.FrameTelemetry:
		for _, b := range frame.Payload() {
			cells = append(cells, strconv.Itoa(int(b)))
		}
	default:
	}
	return cells
}

func writeRow(w *csv.Writer, cells []string) error {
	if err := w.Write(cells); err != nil {
		return err //nolint:wrapcheck // wrapped by callers
	}
	w.Flush()
	return w.Error() //nolint:wrapcheck // wrapped by callers
}
