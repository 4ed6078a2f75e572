// Copyright (c) 2025 Kestrel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream defines the event protocol shared by the server and client
// halves of the chat transport.
package stream

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"log"
	"strings"
	"sync"
)

// ErrClosed is returned by Next after the caller cancels the stream.
var ErrClosed = errors.New("stream closed by caller")

// =============================================================================
// CLIENT-SIDE STREAM
// =============================================================================

// Stream turns a framed byte stream into a lazy, finite, non-restartable
// sequence of Events. Frames arrive one per record; partial records spanning
// read boundaries are buffered until complete; malformed frames are skipped.
//
// Next blocks until the next frame is available. After the terminal event
// (or the synthetic error for a dropped connection) it returns io.EOF.
// Close releases the connection and unblocks a pending Next with ErrClosed;
// no events are delivered afterward.
type Stream struct {
	body   io.ReadCloser
	reader *bufio.Reader

	mu          sync.Mutex
	closed      bool
	done        bool
	accumulated strings.Builder
}

// NewStream wraps a raw response body. The caller owns nothing else: Close
// on the Stream closes the body.
func NewStream(body io.ReadCloser) *Stream {
	return &Stream{
		body:   body,
		reader: bufio.NewReader(body),
	}
}

// Next returns the next event on the stream.
//
// Returns io.EOF once the sequence is exhausted (terminal event already
// delivered), and ErrClosed if Close raced with or preceded the call. A
// connection that drops before any terminal event yields one synthetic
// error event, then io.EOF.
func (s *Stream) Next() (Event, error) {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return Event{}, io.EOF
	}
	if s.closed {
		s.mu.Unlock()
		return Event{}, ErrClosed
	}
	s.mu.Unlock()

	for {
		line, err := s.reader.ReadBytes('\n')
		if err != nil {
			// A read can fail because the caller closed the body mid-read.
			s.mu.Lock()
			if s.closed {
				s.mu.Unlock()
				return Event{}, ErrClosed
			}
			s.mu.Unlock()

			// A final record may arrive without its trailing newline.
			if ev, ok := DecodeFrame(bytes.TrimSpace(line)); ok {
				s.record(ev)
				return ev, nil
			}

			// Connection gone with no terminal event seen: the caller must
			// still observe a terminal indication, exactly once.
			s.mu.Lock()
			s.done = true
			s.mu.Unlock()
			if err == io.EOF {
				return Errorf("connection closed before completion"), nil
			}
			return Errorf("connection lost: %v", err), nil
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue // frame separator
		}

		ev, ok := DecodeFrame(line)
		if !ok {
			log.Printf("FRAME_SKIPPED | len=%d", len(line))
			continue
		}

		s.record(ev)
		return ev, nil
	}
}

// record updates accumulation and terminal state for a delivered event.
func (s *Stream) record(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.Type == EventChunk {
		s.accumulated.WriteString(ev.Content)
	}
	if ev.Terminal() {
		s.done = true
	}
}

// Accumulated returns the concatenation of all chunk contents delivered so
// far. The complete event's FullResponse remains authoritative; this exists
// for diagnostics and reconciliation checks.
func (s *Stream) Accumulated() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accumulated.String()
}

// Done reports whether a terminal event has been delivered.
func (s *Stream) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Close cancels the stream. Safe to call concurrently with Next and more
// than once; the underlying connection is closed exactly once.
func (s *Stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	return s.body.Close()
}
