// Copyright (c) 2025 Kestrel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"
	"testing"
	"time"

	"github.com/mattn/go-runewidth"
)

func TestFormatTimestampToday(t *testing.T) {
	now := time.Now()
	got := formatTimestamp(now)
	want := now.Format("15:04")
	if got != want {
		t.Errorf("formatTimestamp(now) = %q, want %q", got, want)
	}
}

func TestFormatTimestampOlder(t *testing.T) {
	old := time.Now().AddDate(0, -2, 0)
	got := formatTimestamp(old)
	want := old.Format("Jan 2 15:04")
	if got != want {
		t.Errorf("formatTimestamp(old) = %q, want %q", got, want)
	}
}

func TestWrapTextBreaksOnSpaces(t *testing.T) {
	got := wrapText("the quick brown fox jumps", 10)
	for _, line := range strings.Split(got, "\n") {
		if w := runewidth.StringWidth(line); w > 10 {
			t.Errorf("line %q has width %d, want <= 10", line, w)
		}
	}
	if strings.ReplaceAll(got, "\n", " ") != "the quick brown fox jumps" {
		t.Errorf("wrapText changed content: %q", got)
	}
}

func TestWrapTextSplitsLongWords(t *testing.T) {
	got := wrapText("abcdefghijklmnop", 5)
	for _, line := range strings.Split(got, "\n") {
		if w := runewidth.StringWidth(line); w > 5 {
			t.Errorf("line %q has width %d, want <= 5", line, w)
		}
	}
}

func TestWrapTextPreservesNewlines(t *testing.T) {
	got := wrapText("one\ntwo", 80)
	if got != "one\ntwo" {
		t.Errorf("wrapText = %q, want %q", got, "one\ntwo")
	}
}

func TestWrapTextZeroWidth(t *testing.T) {
	if got := wrapText("unchanged", 0); got != "unchanged" {
		t.Errorf("wrapText with width 0 = %q, want input unchanged", got)
	}
}
