// Copyright (c) 2025 Kestrel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package provider implements the HTTP client for the upstream completion
// backend (an OpenAI-compatible chat completions API).
package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// newTestClient points a client at a test server.
func newTestClient(ts *httptest.Server) *Client {
	return NewClientWithConfig(&ClientConfig{
		BaseURL:      ts.URL,
		DefaultModel: "gpt-4o-mini",
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.DefaultModel != "gpt-4o-mini" {
		t.Errorf("DefaultModel = %q, want gpt-4o-mini", cfg.DefaultModel)
	}
	if cfg.MaxTokens != 2000 {
		t.Errorf("MaxTokens = %d, want 2000", cfg.MaxTokens)
	}
	if cfg.Temperature != 0.7 {
		t.Errorf("Temperature = %v, want 0.7", cfg.Temperature)
	}
}

func TestNewClientWithConfigFillsDefaults(t *testing.T) {
	c := NewClientWithConfig(&ClientConfig{BaseURL: "http://example.test"})

	if c.config.Timeout != 60*time.Second {
		t.Errorf("Timeout = %v, want 60s", c.config.Timeout)
	}
	if c.config.MaxTokens != 2000 {
		t.Errorf("MaxTokens = %d, want 2000", c.config.MaxTokens)
	}
	if c.DefaultModel() != "gpt-4o-mini" {
		t.Errorf("DefaultModel() = %q, want gpt-4o-mini", c.DefaultModel())
	}
}

func TestChat(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q, want /chat/completions", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "" {
			t.Errorf("Authorization = %q, want unset without API key", got)
		}
		fmt.Fprint(w, `{"id":"chatcmpl-1","model":"gpt-4o-mini","choices":[{"index":0,"message":{"role":"assistant","content":"Hello!"},"finish_reason":"stop"}],"usage":{"prompt_tokens":5,"completion_tokens":2,"total_tokens":7}}`)
	}))
	defer ts.Close()

	resp, err := newTestClient(ts).Chat(context.Background(), "", []Message{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if resp.Text() != "Hello!" {
		t.Errorf("Text() = %q, want %q", resp.Text(), "Hello!")
	}
	if resp.Usage.TotalTokens != 7 {
		t.Errorf("TotalTokens = %d, want 7", resp.Usage.TotalTokens)
	}
}

func TestChatErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(error) bool
	}{
		{"model not found", http.StatusNotFound, "", IsModelNotFound},
		{"rate limited", http.StatusTooManyRequests, "", func(err error) bool {
			return errors.Is(err, ErrRateLimited)
		}},
		{"backend message surfaced", http.StatusBadRequest,
			`{"error":{"message":"context length exceeded","type":"invalid_request_error"}}`,
			func(err error) bool {
				return strings.Contains(err.Error(), "context length exceeded")
			}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer ts.Close()

			_, err := newTestClient(ts).Chat(context.Background(), "gpt-4o", nil)
			if err == nil {
				t.Fatal("Chat() error = nil, want error")
			}
			if !tt.check(err) {
				t.Errorf("error %v failed check", err)
			}
		})
	}
}

func TestChatStream(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"model\":\"gpt-4o-mini\",\"choices\":[{\"delta\":{\"role\":\"assistant\"},\"finish_reason\":null}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"},\"finish_reason\":null}]}\n\n")
		fmt.Fprint(w, "data: not json at all\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"lo\"},\"finish_reason\":null}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer ts.Close()

	var got strings.Builder
	var doneSeen bool
	err := newTestClient(ts).ChatStream(context.Background(), "gpt-4o-mini", []Message{{Role: "user", Content: "hi"}}, func(chunk StreamChunk) {
		got.WriteString(chunk.Content)
		if chunk.Done {
			doneSeen = true
		}
	})
	if err != nil {
		t.Fatalf("ChatStream() error = %v", err)
	}
	if got.String() != "Hello" {
		t.Errorf("accumulated = %q, want %q", got.String(), "Hello")
	}
	if !doneSeen {
		t.Error("final chunk with Done=true never delivered")
	}
}

func TestChatStreamChanDeliversError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	ch := newTestClient(ts).ChatStreamChan(context.Background(), "nope", nil)

	var last StreamChunk
	for chunk := range ch {
		last = chunk
	}
	if last.Error == nil {
		t.Fatal("expected final chunk with Error set")
	}
	if !IsModelNotFound(last.Error) {
		t.Errorf("error = %v, want model not found", last.Error)
	}
}

func TestChatStreamCancellation(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"x\"},\"finish_reason\":null}]}\n\n")
		w.(http.Flusher).Flush()
		<-release // hold the stream open
	}))
	defer ts.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- newTestClient(ts).ChatStream(ctx, "gpt-4o-mini", nil, func(chunk StreamChunk) {
			if chunk.Content != "" {
				cancel()
			}
		})
	}()

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("ChatStream() = nil, want error after cancellation")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ChatStream did not return after cancellation")
	}
}

func TestListModels(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			t.Errorf("path = %q, want /models", r.URL.Path)
		}
		fmt.Fprint(w, `{"data":[{"id":"gpt-4o"},{"id":"gpt-4o-mini"}]}`)
	}))
	defer ts.Close()

	models, err := newTestClient(ts).ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels() error = %v", err)
	}
	want := []string{"gpt-4o", "gpt-4o-mini"}
	if len(models) != len(want) {
		t.Fatalf("models = %v, want %v", models, want)
	}
	for i := range want {
		if models[i] != want[i] {
			t.Errorf("models[%d] = %q, want %q", i, models[i], want[i])
		}
	}
}

func TestClientErrorUnwrap(t *testing.T) {
	cause := errors.New("underlying")
	err := &ClientError{Type: ErrTypeInvalidResponse, Message: "decode failed", Cause: cause}

	if !errors.Is(err, cause) {
		t.Error("errors.Is should reach the cause through Unwrap")
	}
	if want := "decode failed: underlying"; err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
