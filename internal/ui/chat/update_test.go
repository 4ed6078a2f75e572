// Copyright (c) 2025 Kestrel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"io"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kestrelchat/kestrel/internal/config"
	"github.com/kestrelchat/kestrel/internal/session"
	"github.com/kestrelchat/kestrel/internal/stream"
)

// testModel builds a chat model with a throwaway store and a streaming
// assistant placeholder already in place.
func testModel(t *testing.T) Model {
	t.Helper()

	cfg := config.Default()
	store := session.NewStore()
	client := stream.NewAPIClient("http://127.0.0.1:0")

	m := New(cfg, store, client, nil)
	m.store.Append(m.sessionID, session.Message{
		Role:    session.RoleUser,
		Content: "Hello",
	})
	m.streamMsgID = m.store.Append(m.sessionID, session.Message{
		Role:        session.RoleAssistant,
		IsStreaming: true,
	})
	return m
}

func assistantMessage(t *testing.T, m Model) session.Message {
	t.Helper()

	sess, ok := m.store.Get(m.sessionID)
	if !ok {
		t.Fatal("session missing from store")
	}
	for _, msg := range sess.Messages {
		if msg.ID == m.streamMsgID {
			return msg
		}
	}
	t.Fatalf("message %s missing from session", m.streamMsgID)
	return session.Message{}
}

func TestChunkEventsAccumulateInStore(t *testing.T) {
	m := testModel(t)
	m.active = stream.NewStream(io.NopCloser(strings.NewReader("")))

	next, _ := m.Update(StreamEventMsg{Event: stream.Chunk("Hel")})
	m = next.(Model)
	next, _ = m.Update(StreamEventMsg{Event: stream.Chunk("lo")})
	m = next.(Model)

	msg := assistantMessage(t, m)
	if msg.Content != "Hello" {
		t.Errorf("content = %q, want %q", msg.Content, "Hello")
	}
	if !msg.IsStreaming {
		t.Error("message finalized before any terminal event")
	}
}

func TestCompleteEventFinalizesAndTearsDown(t *testing.T) {
	m := testModel(t)
	m.active = stream.NewStream(io.NopCloser(strings.NewReader("")))

	next, _ := m.Update(StreamEventMsg{Event: stream.Chunk("Hel")})
	m = next.(Model)
	next, _ = m.Update(StreamEventMsg{Event: stream.Complete("Hello!", "gpt-4o")})
	m = next.(Model)

	msg := assistantMessage(t, m)
	if msg.Content != "Hello!" {
		t.Errorf("content = %q, want authoritative %q", msg.Content, "Hello!")
	}
	if msg.Model != "gpt-4o" {
		t.Errorf("model = %q, want gpt-4o", msg.Model)
	}
	if msg.IsStreaming {
		t.Error("message still streaming after complete event")
	}
	if m.Streaming() {
		t.Error("model still reports an active stream")
	}
}

func TestErrorEventReplacesContent(t *testing.T) {
	m := testModel(t)
	m.active = stream.NewStream(io.NopCloser(strings.NewReader("")))

	next, _ := m.Update(StreamEventMsg{Event: stream.Chunk("partial")})
	m = next.(Model)
	next, _ = m.Update(StreamEventMsg{Event: stream.Errorf("completion failed: boom")})
	m = next.(Model)

	msg := assistantMessage(t, m)
	if msg.Content != "completion failed: boom" {
		t.Errorf("content = %q, want the error text", msg.Content)
	}
	if msg.IsStreaming {
		t.Error("message still streaming after error event")
	}
}

func TestEscCancelsActiveStream(t *testing.T) {
	m := testModel(t)
	m.active = stream.NewStream(io.NopCloser(strings.NewReader("")))

	next, _ := m.Update(StreamEventMsg{Event: stream.Chunk("partial answer")})
	m = next.(Model)

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = next.(Model)

	msg := assistantMessage(t, m)
	if !msg.Aborted {
		t.Error("message not marked aborted after Esc")
	}
	if msg.IsStreaming {
		t.Error("message still streaming after Esc")
	}
	if msg.Content != "partial answer" {
		t.Errorf("partial content lost on cancel: %q", msg.Content)
	}
	if m.Streaming() {
		t.Error("model still reports an active stream after Esc")
	}

	// Aborted turns must not re-enter the rolling context.
	window := m.store.ContextWindow(m.sessionID, 10)
	for _, pair := range window {
		if pair.Content == "partial answer" {
			t.Error("aborted message leaked into the context window")
		}
	}
}

func TestEscWithoutStreamIsNoOp(t *testing.T) {
	m := testModel(t)

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = next.(Model)
	if cmd != nil {
		t.Error("Esc without an active stream produced a command")
	}
	if got := assistantMessage(t, m); got.Aborted {
		t.Error("Esc without an active stream marked the message aborted")
	}
}

func TestStreamFailureFinalizesPlaceholder(t *testing.T) {
	m := testModel(t)

	next, _ := m.Update(StreamFailedMsg{Err: io.ErrUnexpectedEOF})
	m = next.(Model)

	msg := assistantMessage(t, m)
	if msg.IsStreaming {
		t.Error("placeholder still streaming after request failure")
	}
	if msg.Content == "" {
		t.Error("placeholder has no failure text")
	}
}

func TestQuitKey(t *testing.T) {
	m := testModel(t)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("ctrl+c produced no command")
	}
	if msg := cmd(); msg != tea.Quit() {
		t.Errorf("ctrl+c command = %v, want tea.Quit", msg)
	}
}
