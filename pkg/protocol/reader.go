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

package protocol

import (
	"bytes"
	"iter"
)

const (
	// minBinaryFrame is the shortest frame the binary reader will cut. A
	// declared length below this still consumes the header and one byte.
	minBinaryFrame = HeaderSize + 1
	// MaxTextLine bounds the text reader buffer. A line longer than this
	// without a delimiter is discarded up to and including its delimiter.
	MaxTextLine = 1024
)

// FrameReader accumulates stream bytes and cuts them into frames. Feed
// appends p to the internal buffer straight away and returns a finite
// sequence of the frames that are complete. State persists between calls,
// so a frame may span any number of Feed calls. Frames left unconsumed
// when the caller stops ranging early are returned by the next Feed.
//
// A FrameReader is not safe for concurrent use.
type FrameReader interface {
	Feed(p []byte) iter.Seq[Frame]
	// Reset drops any partially received frame.
	Reset()
	// Buffered reports how many bytes are waiting for a frame boundary.
	Buffered() int
}

// NewFrameReader returns the reader for the given wire encoding.
func NewFrameReader(enc Encoding) FrameReader {
	if enc == EncodingText {
		return &TextReader{}
	}
	return &BinaryReader{}
}

// BinaryReader cuts length-prefixed frames: byte 0 is the frame type,
// byte 1 the total frame length counted from byte 0. There is no sync
// byte, a byte lost in transit shifts every following frame until Reset.
type BinaryReader struct {
	buf []byte
}

func (r *BinaryReader) Feed(p []byte) iter.Seq[Frame] {
	r.buf = append(r.buf, p...)
	return func(yield func(Frame) bool) {
		for {
			f, ok := r.next()
			if !ok || !yield(f) {
				return
			}
		}
	}
}

func (r *BinaryReader) next() (Frame, bool) {
	if len(r.buf) < minBinaryFrame {
		return Frame{}, false
	}
	need := max(int(r.buf[1]), minBinaryFrame)
	if len(r.buf) < need {
		return Frame{}, false
	}

	raw := make([]byte, need)
	copy(raw, r.buf[:need])
	n := copy(r.buf, r.buf[need:])
	r.buf = r.buf[:n]

	return Frame{Raw: raw, Encoding: EncodingBinary}, true
}

func (r *BinaryReader) Reset() {
	r.buf = r.buf[:0]
}

func (r *BinaryReader) Buffered() int {
	return len(r.buf)
}

// TextReader cuts newline-terminated lines. The delimiter is not part of
// the frame and no escaping exists.
type TextReader struct {
	buf []byte
	// skipping is set after an overflow until the overlong line ends.
	skipping bool
}

func (r *TextReader) Feed(p []byte) iter.Seq[Frame] {
	r.buf = append(r.buf, p...)
	return func(yield func(Frame) bool) {
		for {
			f, ok := r.next()
			if !ok || !yield(f) {
				return
			}
		}
	}
}

func (r *TextReader) next() (Frame, bool) {
	idx := bytes.IndexByte(r.buf, '\n')
	if r.skipping {
		if idx < 0 {
			r.buf = r.buf[:0]
			return Frame{}, false
		}
		r.skipping = false
		r.consume(idx + 1)
		idx = bytes.IndexByte(r.buf, '\n')
	}
	if idx < 0 {
		if len(r.buf) > MaxTextLine {
			r.buf = r.buf[:0]
			r.skipping = true
		}
		return Frame{}, false
	}

	raw := make([]byte, idx)
	copy(raw, r.buf[:idx])
	r.consume(idx + 1)

	return Frame{Raw: raw, Encoding: EncodingText}, true
}

func (r *TextReader) consume(n int) {
	m := copy(r.buf, r.buf[n:])
	r.buf = r.buf[:m]
}

func (r *TextReader) Reset() {
	r.buf = r.buf[:0]
	r.skipping = false
}

func (r *TextReader) Buffered() int {
	return len(r.buf)
}
