// Copyright (c) 2025 Kestrel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
)

// =============================================================================
// FORMATTING UTILITIES
// =============================================================================

// formatTimestamp formats a message timestamp for display. Recency picks
// the format: today shows just the time, this week adds the weekday, and
// anything older includes the date.
func formatTimestamp(t time.Time) string {
	now := time.Now()

	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	if now.Sub(t) < 7*24*time.Hour {
		return t.Format("Mon 15:04")
	}
	return t.Format("Jan 2 15:04")
}

// wrapText wraps text to the given display width, breaking on spaces where
// possible. Widths are measured with runewidth so East Asian characters
// count as two cells. Words wider than the limit are split mid-word.
func wrapText(text string, width int) string {
	if width <= 0 {
		return text
	}

	var out strings.Builder
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			out.WriteString("\n")
		}
		out.WriteString(wrapLine(line, width))
	}
	return out.String()
}

func wrapLine(line string, width int) string {
	if runewidth.StringWidth(line) <= width {
		return line
	}

	var out strings.Builder
	var cur strings.Builder
	curWidth := 0

	flush := func() {
		if out.Len() > 0 {
			out.WriteString("\n")
		}
		out.WriteString(cur.String())
		cur.Reset()
		curWidth = 0
	}

	for _, word := range strings.Fields(line) {
		w := runewidth.StringWidth(word)

		if curWidth > 0 && curWidth+1+w > width {
			flush()
		}
		if curWidth > 0 {
			cur.WriteString(" ")
			curWidth++
		}

		if w <= width {
			cur.WriteString(word)
			curWidth += w
			continue
		}

		// Word alone exceeds the width: split by runes.
		for _, r := range word {
			rw := runewidth.RuneWidth(r)
			if curWidth+rw > width {
				flush()
			}
			cur.WriteRune(r)
			curWidth += rw
		}
	}
	flush()

	return out.String()
}
