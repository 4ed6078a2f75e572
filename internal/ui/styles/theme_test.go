// Copyright (c) 2025 Kestrel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import "testing"

func TestNewThemeHonorsName(t *testing.T) {
	dark := NewTheme("dark")
	if !dark.IsDark {
		t.Errorf("NewTheme(dark).IsDark = false, want true")
	}

	light := NewTheme("light")
	if light.IsDark {
		t.Errorf("NewTheme(light).IsDark = true, want false")
	}
}

func TestThemeStylesAreUsable(t *testing.T) {
	th := NewTheme("dark")

	// Rendering must not panic and must return the input text somewhere
	// in the output regardless of the color profile.
	out := th.UserLabel.Render("You")
	if out == "" {
		t.Fatal("UserLabel.Render returned empty string")
	}
	if th.StatusBar.Render("status") == "" {
		t.Fatal("StatusBar.Render returned empty string")
	}
}
