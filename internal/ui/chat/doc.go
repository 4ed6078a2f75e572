// Copyright (c) 2025 Kestrel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat implements the interactive chat view for the kestrel TUI.
//
// The view is a Bubble Tea model wired to a running kestreld: submitted
// messages go out over the streaming API client, and incoming stream
// events are applied to the in-process session store, which is the single
// source of truth for the transcript. Rendering always reads from the
// store, so a redraw during streaming shows exactly the reconciled state.
//
// # Key Types
//
//   - Model: the Bubble Tea model for the chat view
//   - KeyMap: keyboard bindings
//   - StreamingBuffer: batches chunk arrivals to cap redraw frequency
//
// # Streaming
//
// Streams are pulled lazily: each delivered event schedules the next pull
// command, so backpressure falls out of the Bubble Tea loop. Esc cancels
// the active stream; the partial message is kept and marked aborted, and
// aborted messages never re-enter the rolling context window.
package chat
