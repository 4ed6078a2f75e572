// Copyright (c) 2025 Kestrel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"strings"
	"time"
)

// =============================================================================
// ROLES
// =============================================================================

// Message roles. The transport validates incoming roles against this set.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ValidRole reports whether role is one of the accepted message roles.
func ValidRole(role string) bool {
	switch role {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// =============================================================================
// CORE TYPES
// =============================================================================

// Attachment describes a processed file attached to a message. Produced by
// the file-processing collaborator; the core only folds it into context.
type Attachment struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Type     string `json:"type"`
	Size     int64  `json:"size"`
	Content  string `json:"content,omitempty"`
	Summary  string `json:"summary,omitempty"`
}

// Message is one entry of a session transcript.
//
// Content is mutable only while IsStreaming is true, and then only grows;
// finalization clears IsStreaming and may replace Content atomically with
// the server-declared full response.
type Message struct {
	ID          string       `json:"id"`
	Role        string       `json:"role"`
	Content     string       `json:"content"`
	Model       string       `json:"model,omitempty"` // set when an assistant message finalizes
	Attachments []Attachment `json:"attachments,omitempty"`
	IsStreaming bool         `json:"isStreaming,omitempty"`
	Aborted     bool         `json:"aborted,omitempty"` // stream cancelled before a terminal event
	Timestamp   time.Time    `json:"timestamp"`
}

// Session is a named conversation with its own model selection and
// message history. Owned exclusively by the Store.
type Session struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// MessagePatch holds optional field updates merged into a message in place.
// Nil fields are left untouched.
type MessagePatch struct {
	Content     *string
	AppendChunk *string // appended to Content, streaming path
	Model       *string
	IsStreaming *bool
	Aborted     *bool
}

// =============================================================================
// ATTACHMENT CONTEXT
// =============================================================================

// AttachmentContext renders attachments as the context block sent to the
// model, preferring the short summary over full extracted content.
func AttachmentContext(attachments []Attachment) string {
	if len(attachments) == 0 {
		return ""
	}

	parts := make([]string, 0, len(attachments))
	for _, att := range attachments {
		body := att.Summary
		if body == "" {
			body = att.Content
		}
		parts = append(parts, "File: "+att.Filename+"\nContent: "+body)
	}
	return "The user has attached the following files:\n\n" + strings.Join(parts, "\n\n")
}
