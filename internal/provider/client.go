// Copyright (c) 2025 Kestrel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeUnavailable
	ErrTypeTimeout
	ErrTypeModelNotFound
	ErrTypeRateLimited
	ErrTypeInvalidResponse
)

// ClientError represents an error from the completion backend.
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// Sentinel errors for easy checking.
var (
	ErrUnavailable   = &ClientError{Type: ErrTypeUnavailable, Message: "completion backend unreachable"}
	ErrTimeout       = &ClientError{Type: ErrTypeTimeout, Message: "request timed out"}
	ErrModelNotFound = &ClientError{Type: ErrTypeModelNotFound, Message: "model not found"}
	ErrRateLimited   = &ClientError{Type: ErrTypeRateLimited, Message: "rate limited by backend"}
)

// IsTimeout checks if an error is a timeout error.
func IsTimeout(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == ErrTypeTimeout
	}
	return errors.Is(err, ErrTimeout)
}

// IsModelNotFound checks if an error is a model not found error.
func IsModelNotFound(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == ErrTypeModelNotFound
	}
	return errors.Is(err, ErrModelNotFound)
}

// =============================================================================
// COMPLETER INTERFACE
// =============================================================================

// Completer is the completion capability the rest of the system consumes.
// *Client is the production implementation; tests substitute fakes.
type Completer interface {
	// Chat sends a request and returns the complete response.
	Chat(ctx context.Context, model string, messages []Message) (*ChatResponse, error)

	// ChatStream sends a streaming request and calls the callback for each
	// chunk, in arrival order. Returns when the stream ends or fails.
	ChatStream(ctx context.Context, model string, messages []Message, callback StreamCallback) error

	// ListModels returns the model identifiers the backend advertises.
	ListModels(ctx context.Context) ([]string, error)
}

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the completion client.
type ClientConfig struct {
	// BaseURL of the backend, e.g. "https://api.openai.com/v1"
	BaseURL string

	// APIKey sent as a bearer token; empty disables the header.
	APIKey string

	// Timeout for non-streaming requests (default: 60s)
	Timeout time.Duration

	// DefaultModel used when a request names none (default: "gpt-4o-mini")
	DefaultModel string

	// MaxTokens generation cap per request (default: 2000)
	MaxTokens int

	// Temperature for sampling (default: 0.7)
	Temperature float64
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:      "https://api.openai.com/v1",
		Timeout:      60 * time.Second,
		DefaultModel: "gpt-4o-mini",
		MaxTokens:    2000,
		Temperature:  0.7,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client handles communication with the completion backend.
//
// The Client is safe for concurrent use.
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
}

var _ Completer = (*Client)(nil)

// NewClient creates a client with default configuration.
func NewClient() *Client {
	return NewClientWithConfig(DefaultConfig())
}

// NewClientWithConfig creates a client with custom configuration.
func NewClientWithConfig(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultConfig()
	}

	// Fill in defaults for any zero values
	if config.BaseURL == "" {
		config.BaseURL = "https://api.openai.com/v1"
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	if config.DefaultModel == "" {
		config.DefaultModel = "gpt-4o-mini"
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}
	if config.Temperature == 0 {
		config.Temperature = 0.7
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// DefaultModel returns the configured default model.
func (c *Client) DefaultModel() string {
	return c.config.DefaultModel
}

// =============================================================================
// CHAT
// =============================================================================

// Chat sends a chat request and returns the complete response (non-streaming).
func (c *Client) Chat(ctx context.Context, model string, messages []Message) (*ChatResponse, error) {
	if model == "" {
		model = c.config.DefaultModel
	}

	resp, err := c.post(ctx, c.httpClient, ChatRequest{
		Model:       model,
		Messages:    messages,
		Stream:      false,
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp); err != nil {
		return nil, err
	}

	var result ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}
	if len(result.Choices) == 0 {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "backend returned no choices"}
	}

	return &result, nil
}

// =============================================================================
// STREAMING CHAT
// =============================================================================

// ChatStream sends a streaming chat request and calls the callback for each
// chunk. The callback runs synchronously in arrival order, so a slow
// consumer naturally pauses the underlying reads.
func (c *Client) ChatStream(ctx context.Context, model string, messages []Message, callback StreamCallback) error {
	if model == "" {
		model = c.config.DefaultModel
	}

	// No client timeout for streaming; lifetime is controlled by ctx.
	streamClient := &http.Client{}

	resp, err := c.post(ctx, streamClient, ChatRequest{
		Model:       model,
		Messages:    messages,
		Stream:      true,
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp); err != nil {
		return err
	}

	return c.readStream(ctx, resp.Body, callback)
}

// ChatStreamChan sends a streaming chat request and returns a channel of
// chunks. The channel is closed when streaming completes or fails; failures
// are delivered as a final chunk with Error set.
func (c *Client) ChatStreamChan(ctx context.Context, model string, messages []Message) <-chan StreamChunk {
	ch := make(chan StreamChunk)

	go func() {
		defer close(ch)

		err := c.ChatStream(ctx, model, messages, func(chunk StreamChunk) {
			select {
			case ch <- chunk:
			case <-ctx.Done():
			}
		})

		if err != nil {
			select {
			case ch <- StreamChunk{Error: err, Done: true}:
			case <-ctx.Done():
			}
		}
	}()

	return ch
}

// readStream parses "data: " records until the [DONE] sentinel, EOF, or
// context cancellation. Malformed records are skipped.
func (c *Client) readStream(ctx context.Context, body io.Reader, callback StreamCallback) error {
	reader := bufio.NewReader(body)
	var model string

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ErrTimeout
			}
			return ctx.Err()
		default:
		}

		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				callback(StreamChunk{Model: model, Done: true})
				return nil
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return ErrTimeout
			}
			return &ClientError{Type: ErrTypeInvalidResponse, Message: "stream read failed", Cause: err}
		}

		payload := strings.TrimSpace(string(line))
		if payload == "" || !strings.HasPrefix(payload, "data: ") {
			continue
		}
		payload = strings.TrimPrefix(payload, "data: ")

		if payload == "[DONE]" {
			callback(StreamChunk{Model: model, Done: true})
			return nil
		}

		var delta streamDelta
		if err := json.Unmarshal([]byte(payload), &delta); err != nil {
			// Skip malformed records
			continue
		}
		if delta.Model != "" {
			model = delta.Model
		}
		if len(delta.Choices) == 0 {
			continue
		}

		if content := delta.Choices[0].Delta.Content; content != "" {
			callback(StreamChunk{Content: content, Model: model})
		}
	}
}

// =============================================================================
// MODEL OPERATIONS
// =============================================================================

// ListModels retrieves the model identifiers the backend advertises.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/models", nil)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeUnavailable, Message: "failed to create request", Cause: err}
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, ErrUnavailable
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp); err != nil {
		return nil, err
	}

	var result modelList
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}

	models := make([]string, 0, len(result.Data))
	for _, m := range result.Data {
		models = append(models, m.ID)
	}
	return models, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// post sends a chat completion request body.
func (c *Client) post(ctx context.Context, httpClient *http.Client, reqBody ChatRequest) (*http.Response, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, &ClientError{Type: ErrTypeUnavailable, Message: "failed to create request", Cause: err}
	}
	c.setHeaders(req)

	resp, err := httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, ErrTimeout
		}
		return nil, ErrUnavailable
	}
	return resp, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}
}

// checkStatus maps a non-200 response to a typed error, consuming the body
// for the backend's error message when present.
func (c *Client) checkStatus(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return ErrModelNotFound
	case http.StatusTooManyRequests:
		return ErrRateLimited
	}

	var backendErr apiError
	if err := json.NewDecoder(resp.Body).Decode(&backendErr); err == nil && backendErr.Error.Message != "" {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: backendErr.Error.Message}
	}
	return &ClientError{Type: ErrTypeInvalidResponse, Message: "chat request failed: " + resp.Status}
}
