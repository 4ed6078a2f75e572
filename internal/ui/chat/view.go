// Copyright (c) 2025 Kestrel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/kestrelchat/kestrel/internal/session"
)

// =============================================================================
// MAIN RENDER
// =============================================================================

// View renders the complete chat view.
// Layout: title (1 line) + messages (viewport) + input (2 lines) + status (1 line).
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	title := m.renderTitle()
	input := m.renderInput()
	status := m.renderStatusBar()

	return lipgloss.JoinVertical(
		lipgloss.Left,
		title,
		m.viewport.View(),
		input,
		status,
	)
}

func (m Model) renderTitle() string {
	name := "kestrel"
	if sess, ok := m.store.Get(m.sessionID); ok {
		name = sess.Name
	}
	return m.theme.Title.Width(m.width).Render(name)
}

func (m Model) renderInput() string {
	return m.theme.InputBorder.Width(m.width - 2).Render(m.input.View())
}

func (m Model) renderStatusBar() string {
	var left string
	if m.active != nil {
		left = m.spin.View() + " " + m.status
	} else {
		left = m.status
	}

	var hints []string
	for _, b := range m.keys.ShortHelp() {
		h := b.Help()
		hints = append(hints, m.theme.StatusKey.Render(h.Key)+" "+h.Desc)
	}
	right := strings.Join(hints, "  ")

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	return m.theme.StatusBar.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

// =============================================================================
// TRANSCRIPT RENDERING
// =============================================================================

// refreshTranscript re-reads the session from the store and rebuilds the
// viewport content.
func (m *Model) refreshTranscript() {
	if !m.ready {
		return
	}
	sess, ok := m.store.Get(m.sessionID)
	if !ok {
		m.viewport.SetContent("")
		return
	}

	var b strings.Builder
	for i, msg := range sess.Messages {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(m.renderMessage(msg))
		b.WriteString("\n")
	}
	m.viewport.SetContent(b.String())
}

// renderMessage renders one transcript entry: a label line followed by the
// wrapped body.
func (m Model) renderMessage(msg session.Message) string {
	width := m.viewport.Width - 2
	if width < 10 {
		width = 10
	}

	var label string
	switch msg.Role {
	case session.RoleUser:
		label = m.theme.UserLabel.Render("You")
	case session.RoleAssistant:
		label = m.theme.AssistantLabel.Render(m.model())
	default:
		label = m.theme.SystemLabel.Render("System")
	}

	header := label + " " + m.theme.Timestamp.Render(formatTimestamp(msg.Timestamp))
	if msg.Model != "" && msg.Role == session.RoleAssistant {
		header = m.theme.AssistantLabel.Render(msg.Model) + " " + m.theme.Timestamp.Render(formatTimestamp(msg.Timestamp))
	}
	if msg.Aborted {
		header += " " + m.theme.AbortedTag.Render("(cancelled)")
	}

	body := msg.Content
	if msg.IsStreaming {
		if body == "" {
			body = m.spin.View() + " thinking..."
		} else {
			body += " " + m.spin.View()
		}
	}
	body = m.theme.MessageBody.Render(wrapText(body, width))

	if len(msg.Attachments) > 0 {
		body += "\n" + m.theme.Hint.Render(fmt.Sprintf("[%d attachment(s)]", len(msg.Attachments)))
	}

	return header + "\n" + body
}
