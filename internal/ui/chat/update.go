// Copyright (c) 2025 Kestrel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kestrelchat/kestrel/internal/session"
	"github.com/kestrelchat/kestrel/internal/storage"
	"github.com/kestrelchat/kestrel/internal/stream"
)

// =============================================================================
// COMMAND CREATORS
// =============================================================================

// startStreamCmd opens the event stream for a chat request.
func startStreamCmd(ctx context.Context, client *stream.APIClient, req stream.ChatRequest) tea.Cmd {
	return func() tea.Msg {
		s, err := client.Chat(ctx, req)
		if err != nil {
			return StreamFailedMsg{Err: err}
		}
		return StreamStartedMsg{Stream: s}
	}
}

// pullEventCmd pulls the next event from the active stream. Each delivered
// event schedules the next pull, so the stream is consumed lazily.
func pullEventCmd(s *stream.Stream) tea.Cmd {
	return func() tea.Msg {
		ev, err := s.Next()
		if err != nil {
			// Both io.EOF and a cancel-induced close end the pull loop.
			if errors.Is(err, io.EOF) || errors.Is(err, stream.ErrClosed) {
				return StreamDoneMsg{}
			}
			return StreamFailedMsg{Err: err}
		}
		return StreamEventMsg{Event: ev}
	}
}

// fetchModelsCmd asks the server for its model allow-list.
func fetchModelsCmd(client *stream.APIClient) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		resp, err := client.Models(ctx)
		if err != nil {
			return ModelsMsg{Err: err}
		}
		return ModelsMsg{Models: resp.Models, Default: resp.Default}
	}
}

// saveSessionCmd persists a snapshot of the session to the archive.
func saveSessionCmd(archive *storage.Archive, sess session.Session) tea.Cmd {
	return func() tea.Msg {
		return ArchiveSavedMsg{Err: archive.SaveSession(sess)}
	}
}

// =============================================================================
// UPDATE
// =============================================================================

// Update handles all incoming Bubble Tea messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.handleResize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		if m.active == nil {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case StreamTickMsg:
		if m.active == nil {
			return m, nil
		}
		if _, ok := m.buffer.Flush(); ok {
			m.refreshTranscript()
			m.viewport.GotoBottom()
		}
		return m, streamTickCmd()

	case ModelsMsg:
		if msg.Err != nil {
			m.status = "server unreachable"
			return m, nil
		}
		m.models = msg.Models
		m.status = "ready"
		return m, nil

	case StreamStartedMsg:
		m.active = msg.Stream
		return m, tea.Batch(pullEventCmd(m.active), streamTickCmd(), m.spin.Tick)

	case StreamEventMsg:
		return m.handleStreamEvent(msg.Event)

	case StreamDoneMsg:
		return m.finishStream()

	case StreamFailedMsg:
		// The request never produced a stream, or the transport died in a
		// way the iterator could not absorb. Finalize the placeholder with
		// the failure text so the transcript never shows a stuck spinner.
		m.store.ApplyEvent(m.sessionID, m.streamMsgID, stream.Errorf("%v", msg.Err))
		return m.finishStream()

	case ArchiveSavedMsg:
		if msg.Err != nil {
			m.status = fmt.Sprintf("archive save failed: %v", msg.Err)
		}
		return m, nil
	}

	return m, nil
}

// handleKey dispatches a key press.
func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Cancel):
		return m.cancelStream()

	case key.Matches(msg, m.keys.Submit):
		cmd := m.sendMessage()
		return m, cmd

	case key.Matches(msg, m.keys.Clear):
		if m.active != nil {
			return m, nil
		}
		sess := m.store.Create(m.cfg.Provider.DefaultModel, "")
		m.sessionID = sess.ID
		m.status = "new session"
		m.refreshTranscript()
		return m, nil

	case key.Matches(msg, m.keys.Up):
		m.viewport.LineUp(1)
		return m, nil

	case key.Matches(msg, m.keys.Down):
		m.viewport.LineDown(1)
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// sendMessage submits the input box content as a new user message and
// opens a stream for the assistant reply.
func (m *Model) sendMessage() tea.Cmd {
	if m.active != nil {
		return nil
	}
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return nil
	}
	m.input.Reset()

	// The rolling context covers turns before this one; the new message
	// travels in the request body itself.
	window := m.store.ContextWindow(m.sessionID, m.cfg.UI.ContextWindow)

	m.store.Append(m.sessionID, session.Message{
		Role:    session.RoleUser,
		Content: text,
	})
	m.streamMsgID = m.store.Append(m.sessionID, session.Message{
		Role:        session.RoleAssistant,
		IsStreaming: true,
	})

	m.buffer.Reset()
	m.refreshTranscript()
	m.viewport.GotoBottom()
	m.status = "streaming..."

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	req := stream.ChatRequest{
		Message:   text,
		Model:     m.model(),
		SessionID: m.sessionID,
		Context:   window,
	}
	return startStreamCmd(ctx, m.client, req)
}

// handleStreamEvent applies one stream event to the session store.
func (m Model) handleStreamEvent(ev stream.Event) (Model, tea.Cmd) {
	m.store.ApplyEvent(m.sessionID, m.streamMsgID, ev)

	if ev.Terminal() {
		return m.finishStream()
	}

	m.buffer.Write(ev.Content)
	if m.active == nil {
		return m, nil
	}
	return m, pullEventCmd(m.active)
}

// cancelStream aborts the active stream. The partial message stays in the
// transcript, marked aborted so it is skipped by future context windows.
func (m Model) cancelStream() (Model, tea.Cmd) {
	if m.active == nil {
		return m, nil
	}

	m.active.Close()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.active = nil
	m.buffer.Reset()

	m.store.MarkAborted(m.sessionID, m.streamMsgID)
	m.status = "cancelled"
	m.refreshTranscript()
	m.viewport.GotoBottom()
	return m, m.archiveCmd()
}

// finishStream tears down the active stream after its terminal event.
func (m Model) finishStream() (Model, tea.Cmd) {
	if m.active != nil {
		m.active.Close()
		m.active = nil
	}
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.buffer.Reset()
	m.status = "ready"
	m.refreshTranscript()
	m.viewport.GotoBottom()
	return m, m.archiveCmd()
}

// archiveCmd returns a save command when archiving is enabled.
func (m Model) archiveCmd() tea.Cmd {
	if m.archive == nil {
		return nil
	}
	sess, ok := m.store.Get(m.sessionID)
	if !ok {
		return nil
	}
	return saveSessionCmd(m.archive, sess)
}
