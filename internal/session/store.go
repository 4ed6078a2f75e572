// Copyright (c) 2025 Kestrel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kestrelchat/kestrel/internal/stream"
)

// DefaultContextWindow is the number of trailing messages sent to the
// model when the caller does not ask for a specific window size.
const DefaultContextWindow = 10

// =============================================================================
// STORE
// =============================================================================

// Store is the in-process session registry. All methods are safe for
// concurrent use. Sessions and messages returned by accessors are copies;
// mutation goes through Store methods only.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore creates an empty registry.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Create registers a new session and returns a copy of it. An empty name
// gets a default derived from the model. The new session becomes the
// active one; any previously active session is deactivated.
func (s *Store) Create(model, name string) Session {
	if name == "" {
		name = "Chat with " + model
	}
	now := time.Now().UTC()
	sess := &Session{
		ID:        uuid.NewString(),
		Name:      name,
		Model:     model,
		Messages:  []Message{},
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	for _, other := range s.sessions {
		other.IsActive = false
	}
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	log.Printf("SESSION_CREATED | id=%s model=%s", sess.ID, model)
	return *sess
}

// Remove deletes a session. Removing an unknown id is a no-op.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	_, existed := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if existed {
		log.Printf("SESSION_REMOVED | id=%s", id)
	}
}

// Get returns a copy of the session, or false when it does not exist.
func (s *Store) Get(id string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, false
	}
	return cloneSession(sess), true
}

// List returns copies of all sessions, most recently updated first.
func (s *Store) List() []Session {
	s.mu.RLock()
	out := make([]Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, cloneSession(sess))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

// Len returns the number of registered sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Clear drops every session.
func (s *Store) Clear() {
	s.mu.Lock()
	n := len(s.sessions)
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()

	if n > 0 {
		log.Printf("SESSIONS_CLEARED | count=%d", n)
	}
}

// =============================================================================
// MESSAGE OPERATIONS
// =============================================================================

// Append adds a message to a session and returns the assigned message id.
// Appending to a missing session is a silent no-op returning "".
//
// At most one message per session may be streaming: appending a new
// streaming message finalizes any message still marked IsStreaming,
// keeping whatever content it accumulated.
func (s *Store) Append(id string, msg Message) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return ""
	}

	if msg.IsStreaming {
		for i := range sess.Messages {
			if sess.Messages[i].IsStreaming {
				sess.Messages[i].IsStreaming = false
			}
		}
	}

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	sess.Messages = append(sess.Messages, msg)
	sess.UpdatedAt = time.Now().UTC()
	return msg.ID
}

// Update merges a patch into a message in place. Unknown session or
// message ids are silent no-ops so that late stream events racing a
// session removal cannot fail.
func (s *Store) Update(id, msgID string, patch MessagePatch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return
	}
	for i := range sess.Messages {
		if sess.Messages[i].ID != msgID {
			continue
		}
		m := &sess.Messages[i]
		if patch.AppendChunk != nil {
			m.Content += *patch.AppendChunk
		}
		if patch.Content != nil {
			m.Content = *patch.Content
		}
		if patch.Model != nil {
			m.Model = *patch.Model
		}
		if patch.IsStreaming != nil {
			m.IsStreaming = *patch.IsStreaming
		}
		if patch.Aborted != nil {
			m.Aborted = *patch.Aborted
		}
		sess.UpdatedAt = time.Now().UTC()
		return
	}
}

// ContextWindow returns up to limit trailing messages as role/content
// pairs in oldest-first order, ready to prepend to a provider request.
// Messages still streaming or aborted are skipped. A limit <= 0 means
// DefaultContextWindow.
func (s *Store) ContextWindow(id string, limit int) []stream.ContextPair {
	if limit <= 0 {
		limit = DefaultContextWindow
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil
	}

	pairs := make([]stream.ContextPair, 0, limit)
	for i := len(sess.Messages) - 1; i >= 0 && len(pairs) < limit; i-- {
		m := sess.Messages[i]
		if m.IsStreaming || m.Aborted {
			continue
		}
		pairs = append(pairs, stream.ContextPair{Role: m.Role, Content: m.Content})
	}

	// Collected newest-first, reverse to chronological order.
	for i, j := 0, len(pairs)-1; i < j; i, j = i+1, j-1 {
		pairs[i], pairs[j] = pairs[j], pairs[i]
	}
	return pairs
}

// =============================================================================
// STREAM RECONCILIATION
// =============================================================================

// ApplyEvent folds one stream event into a message:
//
//   - chunk appends the fragment to the message content
//   - complete replaces the content with the authoritative full response,
//     records the serving model, and clears the streaming flag
//   - error replaces the content with the error text and clears the flag
//
// Applies the same missing-id tolerance as Update.
func (s *Store) ApplyEvent(sessionID, messageID string, ev stream.Event) {
	off := false
	switch ev.Type {
	case stream.EventChunk:
		s.Update(sessionID, messageID, MessagePatch{AppendChunk: &ev.Content})
	case stream.EventComplete:
		s.Update(sessionID, messageID, MessagePatch{
			Content:     &ev.FullResponse,
			Model:       &ev.Model,
			IsStreaming: &off,
		})
	case stream.EventError:
		s.Update(sessionID, messageID, MessagePatch{
			Content:     &ev.Error,
			IsStreaming: &off,
		})
	}
}

// MarkAborted finalizes a message whose stream was cancelled before a
// terminal event arrived. The partial content stays visible but the
// message is excluded from future context windows.
func (s *Store) MarkAborted(sessionID, messageID string) {
	off, aborted := false, true
	s.Update(sessionID, messageID, MessagePatch{IsStreaming: &off, Aborted: &aborted})
}

// =============================================================================
// HELPERS
// =============================================================================

func cloneSession(sess *Session) Session {
	out := *sess
	out.Messages = make([]Message, len(sess.Messages))
	copy(out.Messages, sess.Messages)
	return out
}
