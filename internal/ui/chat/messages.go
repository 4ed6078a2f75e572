// Copyright (c) 2025 Kestrel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	"github.com/kestrelchat/kestrel/internal/stream"
)

// =============================================================================
// BUBBLE TEA MESSAGE TYPES
// =============================================================================

// StreamStartedMsg is sent when the API accepted a chat request and the
// event stream is open.
type StreamStartedMsg struct {
	Stream *stream.Stream
}

// StreamEventMsg carries one event pulled from the active stream.
type StreamEventMsg struct {
	Event stream.Event
}

// StreamDoneMsg is sent when the active stream is exhausted.
type StreamDoneMsg struct{}

// StreamFailedMsg is sent when the chat request was rejected before any
// stream opened, for example by admission checks or a connection error.
type StreamFailedMsg struct {
	Err error
}

// StreamTickMsg drives throttled redraws while a stream is active.
type StreamTickMsg struct {
	Time time.Time
}

// ModelsMsg carries the server's model allow-list.
type ModelsMsg struct {
	Models  []string
	Default string
	Err     error
}

// ArchiveSavedMsg reports the outcome of persisting the session snapshot.
type ArchiveSavedMsg struct {
	Err error
}
