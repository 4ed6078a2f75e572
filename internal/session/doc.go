// Copyright (c) 2025 Kestrel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session provides the in-process session registry.
//
// A Session is an ordered transcript of messages plus identity metadata.
// The Store keeps sessions in memory and is the single writer for their
// message lists: streams mutate messages through ApplyEvent, and the
// rolling context for outgoing requests is derived with ContextWindow.
//
// # Key Types
//
//   - Store: mutex-guarded registry of sessions
//   - Session: one conversation with its messages
//   - Message: a single turn, possibly still streaming
//   - MessagePatch: partial update applied through Store.Update
//
// # Reconciliation
//
// Store.ApplyEvent maps stream events onto message state: chunks append
// to the content, a complete event replaces the content with the
// authoritative full response, and an error event replaces the content
// with the error text. Both terminal events clear IsStreaming. Lookups
// against removed sessions or unknown message IDs are silent no-ops, so
// late events from an abandoned stream cannot fail the caller.
//
// # Usage
//
//	store := session.NewStore()
//	sess := store.Create("gpt-4o-mini", "")
//	id := store.Append(sess.ID, session.Message{Role: session.RoleUser, Content: "hi"})
//	window := store.ContextWindow(sess.ID, session.DefaultContextWindow)
package session
