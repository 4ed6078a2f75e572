// Copyright (c) 2025 Kestrel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds the styled components used by the chat TUI. Styles are built
// once at startup from the configured theme name and the detected terminal
// capabilities.
type Theme struct {
	IsDark       bool
	ColorProfile termenv.Profile

	// ==========================================================================
	// HEADER AND STATUS STYLES
	// ==========================================================================

	Title     lipgloss.Style
	StatusBar lipgloss.Style
	StatusKey lipgloss.Style

	// ==========================================================================
	// MESSAGE STYLES
	// ==========================================================================

	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	SystemLabel    lipgloss.Style
	MessageBody    lipgloss.Style
	Timestamp      lipgloss.Style
	ModelTag       lipgloss.Style
	AbortedTag     lipgloss.Style
	ErrorText      lipgloss.Style

	// ==========================================================================
	// INPUT STYLES
	// ==========================================================================

	InputBorder lipgloss.Style
	InputPrompt lipgloss.Style
	Spinner     lipgloss.Style
	Hint        lipgloss.Style
}

// NewTheme builds the theme for the given config theme name. "dark" and
// "light" force the background assumption; "auto" asks the terminal.
func NewTheme(name string) *Theme {
	isDark := termenv.HasDarkBackground()
	switch name {
	case "dark":
		isDark = true
	case "light":
		isDark = false
	}
	lipgloss.SetHasDarkBackground(isDark)

	t := &Theme{
		IsDark:       isDark,
		ColorProfile: termenv.ColorProfile(),
	}
	t.initStyles()
	return t
}

func (t *Theme) initStyles() {
	t.Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Teal).
		Padding(0, 1)

	t.StatusBar = lipgloss.NewStyle().
		Background(Surface).
		Foreground(TextMuted).
		Padding(0, 1)

	t.StatusKey = lipgloss.NewStyle().
		Foreground(Teal).
		Bold(true)

	t.UserLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(Teal)

	t.AssistantLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(Violet)

	t.SystemLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(Amber)

	t.MessageBody = lipgloss.NewStyle().
		Foreground(TextPrimary)

	t.Timestamp = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.ModelTag = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	t.AbortedTag = lipgloss.NewStyle().
		Foreground(Amber).
		Italic(true)

	t.ErrorText = lipgloss.NewStyle().
		Foreground(Red)

	t.InputBorder = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Border).
		Padding(0, 1)

	t.InputPrompt = lipgloss.NewStyle().
		Foreground(Teal).
		Bold(true)

	t.Spinner = lipgloss.NewStyle().
		Foreground(Violet)

	t.Hint = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)
}
