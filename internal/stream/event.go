// Copyright (c) 2025 Kestrel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream defines the event protocol shared by the server and client
// halves of the chat transport.
package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// =============================================================================
// EVENT TYPES
// =============================================================================

// EventType discriminates the kinds of events carried on a chat stream.
type EventType string

const (
	// EventChunk carries an incremental content fragment.
	EventChunk EventType = "chunk"

	// EventComplete carries the authoritative final text. Terminal.
	EventComplete EventType = "complete"

	// EventError carries a human-readable failure description. Terminal.
	EventError EventType = "error"
)

// Event is one notification on a chat stream.
//
// Exactly one terminal event (complete or error) is emitted per stream,
// and it is always the last event.
type Event struct {
	Type         EventType `json:"type"`
	Content      string    `json:"content,omitempty"`      // chunk only
	FullResponse string    `json:"fullResponse,omitempty"` // complete only
	Model        string    `json:"model,omitempty"`        // complete only
	Error        string    `json:"error,omitempty"`        // error only
	Timestamp    time.Time `json:"timestamp"`
}

// Terminal reports whether the event ends its stream.
func (e Event) Terminal() bool {
	return e.Type == EventComplete || e.Type == EventError
}

// Chunk builds a chunk event carrying one content fragment.
func Chunk(content string) Event {
	return Event{Type: EventChunk, Content: content, Timestamp: time.Now().UTC()}
}

// Complete builds the terminal success event. The full response is
// authoritative: clients must adopt it over their accumulated buffer.
func Complete(fullResponse, model string) Event {
	return Event{Type: EventComplete, FullResponse: fullResponse, Model: model, Timestamp: time.Now().UTC()}
}

// Errorf builds the terminal failure event.
func Errorf(format string, args ...interface{}) Event {
	return Event{Type: EventError, Error: fmt.Sprintf(format, args...), Timestamp: time.Now().UTC()}
}

// =============================================================================
// WIRE FORMAT
// =============================================================================

// DataPrefix marks each frame on the wire. One frame per event:
//
//	data: {"type":"chunk","content":"Hi","timestamp":"..."}\n\n
//
// Records are newline-delimited; blank lines separate frames.
const DataPrefix = "data: "

// EncodeFrame writes one event as a wire frame.
func EncodeFrame(w io.Writer, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s%s\n\n", DataPrefix, data)
	return err
}

// DecodeFrame parses the payload of one wire record (the line without its
// trailing newline). Lines that do not start with DataPrefix are not frames.
func DecodeFrame(line []byte) (Event, bool) {
	if len(line) < len(DataPrefix) || string(line[:len(DataPrefix)]) != DataPrefix {
		return Event{}, false
	}
	var ev Event
	if err := json.Unmarshal(line[len(DataPrefix):], &ev); err != nil {
		return Event{}, false
	}
	if ev.Type != EventChunk && ev.Type != EventComplete && ev.Type != EventError {
		return Event{}, false
	}
	return ev, true
}
