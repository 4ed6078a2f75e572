// Copyright (c) 2025 Kestrel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kestrelchat/kestrel/internal/config"
	"github.com/kestrelchat/kestrel/internal/session"
	"github.com/kestrelchat/kestrel/internal/storage"
	"github.com/kestrelchat/kestrel/internal/stream"
	"github.com/kestrelchat/kestrel/internal/ui/styles"
)

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat view. The transcript it
// renders always comes from the session store; stream events mutate the
// store and the view re-reads it.
type Model struct {
	cfg     *config.Config
	theme   *styles.Theme
	keys    KeyMap
	store   *session.Store
	client  *stream.APIClient
	archive *storage.Archive // nil when archiving is disabled

	sessionID   string
	streamMsgID string // assistant message receiving the active stream
	active      *stream.Stream
	cancel      context.CancelFunc
	buffer      *StreamingBuffer

	viewport viewport.Model
	input    textinput.Model
	spin     spinner.Model

	width  int
	height int
	ready  bool

	models []string
	status string
}

// New creates the chat view bound to a session store and API client.
// A fresh session is created with the configured default model. The
// archive may be nil.
func New(cfg *config.Config, store *session.Store, client *stream.APIClient, archive *storage.Archive) Model {
	theme := styles.NewTheme(cfg.UI.Theme)

	input := textinput.New()
	input.Placeholder = "Type a message..."
	input.Prompt = "> "
	input.PromptStyle = theme.InputPrompt
	input.CharLimit = cfg.Server.MaxMessageLength
	input.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = theme.Spinner

	sess := store.Create(cfg.Provider.DefaultModel, "")

	return Model{
		cfg:       cfg,
		theme:     theme,
		keys:      DefaultKeyMap(),
		store:     store,
		client:    client,
		archive:   archive,
		sessionID: sess.ID,
		buffer:    NewStreamingBuffer(),
		input:     input,
		spin:      spin,
		status:    "connecting...",
	}
}

// Init starts the cursor blink and fetches the server's model list.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		fetchModelsCmd(m.client),
	)
}

// SessionID returns the identifier of the session this view drives.
func (m Model) SessionID() string {
	return m.sessionID
}

// Streaming reports whether a stream is currently active.
func (m Model) Streaming() bool {
	return m.active != nil
}

// model returns the model name used for outgoing requests.
func (m Model) model() string {
	if sess, ok := m.store.Get(m.sessionID); ok && sess.Model != "" {
		return sess.Model
	}
	return m.cfg.Provider.DefaultModel
}

// handleResize recomputes the layout after a terminal size change.
// Layout: title (1 line) + viewport + input (2 lines) + status (1 line).
func (m *Model) handleResize(width, height int) {
	m.width = width
	m.height = height

	viewportHeight := height - 4
	if viewportHeight < 1 {
		viewportHeight = 1
	}

	if !m.ready {
		m.viewport = viewport.New(width, viewportHeight)
		m.ready = true
	} else {
		m.viewport.Width = width
		m.viewport.Height = viewportHeight
	}

	m.input.Width = width - 4
	m.refreshTranscript()
	m.viewport.GotoBottom()
}
