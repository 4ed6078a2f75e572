// Copyright (c) 2025 Kestrel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream defines the event protocol shared by the server and client
// halves of the chat transport.
package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// =============================================================================
// REQUEST / RESPONSE SHAPES
// =============================================================================

// ContextPair is one prior turn sent as rolling context.
type ContextPair struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AttachmentRef is the client-side description of an attached file.
// The server folds these into an attachment-context system message; file
// processing itself happens elsewhere.
type AttachmentRef struct {
	Filename string `json:"filename"`
	Summary  string `json:"summary,omitempty"`
	Content  string `json:"content,omitempty"`
}

// ChatRequest is the body of POST /api/chat and /api/chat/complete.
type ChatRequest struct {
	Message     string          `json:"message"`
	Model       string          `json:"model,omitempty"`
	SessionID   string          `json:"sessionId,omitempty"`
	Context     []ContextPair   `json:"context,omitempty"`
	Attachments []AttachmentRef `json:"attachments,omitempty"`
}

// ChainStepRequest is one step of a chain request.
type ChainStepRequest struct {
	Model          string `json:"model"`
	Name           string `json:"name,omitempty"`
	PromptTemplate string `json:"prompt_template,omitempty"`
	Transform      string `json:"transform,omitempty"`
}

// ChainRequest is the body of POST /api/chat/chain. Context is accepted
// for wire compatibility and carried opaquely.
type ChainRequest struct {
	Message string             `json:"message"`
	Chain   []ChainStepRequest `json:"chain"`
	Context json.RawMessage    `json:"context,omitempty"`
}

// ChainStepResult is one entry of a chain response. Output and Error are
// mutually exclusive.
type ChainStepResult struct {
	Step      string    `json:"step"`
	Model     string    `json:"model"`
	Input     string    `json:"input"`
	Output    string    `json:"output,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ChainResponse is the body returned by POST /api/chat/chain.
type ChainResponse struct {
	Results    []ChainStepResult `json:"results"`
	TotalSteps int               `json:"totalSteps"`
	Timestamp  time.Time         `json:"timestamp"`
}

// ModelsResponse is the body returned by GET /api/chat/models.
type ModelsResponse struct {
	Models  []string `json:"models"`
	Default string   `json:"default"`
}

// Usage reports token counts for a non-streaming completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CompleteResponse is the body returned by POST /api/chat/complete.
type CompleteResponse struct {
	Response  string    `json:"response"`
	Model     string    `json:"model"`
	Usage     Usage     `json:"usage"`
	Timestamp time.Time `json:"timestamp"`
}

// =============================================================================
// API CLIENT
// =============================================================================

// APIClient talks to a running kestreld over HTTP.
type APIClient struct {
	baseURL string
	token   string // opaque caller identity; sent as a bearer token when set
	client  *http.Client
}

// NewAPIClient creates a client for the given base URL, e.g.
// "http://127.0.0.1:8787".
func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		baseURL: baseURL,
		// Streaming responses outlive any sane request timeout; lifetime is
		// controlled by the caller's context instead.
		client: &http.Client{},
	}
}

// SetToken sets the opaque caller identity forwarded with each request.
func (c *APIClient) SetToken(token string) {
	c.token = token
}

// Chat opens a streaming chat turn. The returned Stream must be closed by
// the caller; cancelling ctx tears the connection down as well.
func (c *APIClient) Chat(ctx context.Context, req ChatRequest) (*Stream, error) {
	httpReq, err := c.newRequest(ctx, http.MethodPost, "/api/chat", req)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, decodeAPIError(resp)
	}

	return NewStream(resp.Body), nil
}

// Complete runs a non-streaming chat turn.
func (c *APIClient) Complete(ctx context.Context, req ChatRequest) (*CompleteResponse, error) {
	var out CompleteResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/chat/complete", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Chain runs a model chain.
func (c *APIClient) Chain(ctx context.Context, req ChainRequest) (*ChainResponse, error) {
	var out ChainResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/chat/chain", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Models lists the models the server will accept.
func (c *APIClient) Models(ctx context.Context) (*ModelsResponse, error) {
	var out ModelsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/chat/models", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (c *APIClient) newRequest(ctx context.Context, method, path string, body interface{}) (*http.Request, error) {
	var buf *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		buf = bytes.NewReader(data)
	} else {
		buf = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *APIClient) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// decodeAPIError extracts the server's error envelope, falling back to the
// HTTP status line.
func decodeAPIError(resp *http.Response) error {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil && envelope.Error.Message != "" {
		return fmt.Errorf("server rejected request: %s", envelope.Error.Message)
	}
	return fmt.Errorf("server rejected request: %s", resp.Status)
}
