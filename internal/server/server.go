// Copyright (c) 2025 Kestrel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides the kestrel HTTP API server.
//
// Endpoints:
//   - POST /api/chat          - Streaming chat (SSE)
//   - POST /api/chat/complete - Non-streaming chat
//   - POST /api/chat/chain    - Sequential multi-model pipeline
//   - GET  /api/chat/models   - List allowed models
//   - GET  /health            - Health check
//   - GET  /stats             - Usage statistics
package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kestrelchat/kestrel/internal/chain"
	"github.com/kestrelchat/kestrel/internal/config"
	"github.com/kestrelchat/kestrel/internal/provider"
	"github.com/kestrelchat/kestrel/internal/session"
	"github.com/kestrelchat/kestrel/internal/stream"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// MaxRequestBodySize caps request bodies (1MB).
	MaxRequestBodySize = 1 * 1024 * 1024

	// MaxContextPairs caps the rolling context accepted per request.
	MaxContextPairs = 50

	// Version is the server version.
	Version = "0.1.0"
)

// SystemPrompt opens every outbound message list.
const SystemPrompt = "You are a helpful assistant."

// ============================================================================
// SERVER STATS
// ============================================================================

// ServerStats tracks server usage counters.
type ServerStats struct {
	TotalRequests    int64
	StreamRequests   int64
	CompleteRequests int64
	ChainRequests    int64
	TotalTokens      int64
	StartTime        time.Time
}

// NewServerStats creates a new ServerStats instance.
func NewServerStats() *ServerStats {
	return &ServerStats{StartTime: time.Now()}
}

// Record counts one handled request of the given kind.
func (s *ServerStats) Record(kind string, tokens int64) {
	atomic.AddInt64(&s.TotalRequests, 1)
	atomic.AddInt64(&s.TotalTokens, tokens)

	switch kind {
	case "stream":
		atomic.AddInt64(&s.StreamRequests, 1)
	case "complete":
		atomic.AddInt64(&s.CompleteRequests, 1)
	case "chain":
		atomic.AddInt64(&s.ChainRequests, 1)
	}
}

// Uptime returns how long the server has been running.
func (s *ServerStats) Uptime() time.Duration {
	return time.Since(s.StartTime)
}

// ============================================================================
// SERVER
// ============================================================================

// Server is the kestrel HTTP API server.
type Server struct {
	cfg    *config.Config
	router *http.ServeMux
	server *http.Server

	completer provider.Completer
	chains    *chain.Processor
	stats     *ServerStats

	mu sync.RWMutex
}

// NewServer creates a server from the given configuration and backend.
func NewServer(cfg *config.Config, completer provider.Completer) *Server {
	s := &Server{
		cfg:       cfg,
		router:    http.NewServeMux(),
		completer: completer,
		chains:    chain.NewProcessor(completer),
		stats:     NewServerStats(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("POST /api/chat", s.handleChat)
	s.router.HandleFunc("POST /api/chat/complete", s.handleComplete)
	s.router.HandleFunc("POST /api/chat/chain", s.handleChain)
	s.router.HandleFunc("GET /api/chat/models", s.handleModels)

	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /stats", s.handleStats)
}

// Handler returns the server's handler with the middleware chain applied.
// Exposed for tests.
func (s *Server) Handler() http.Handler {
	middlewares := []func(http.Handler) http.Handler{
		RecoveryMiddleware(),
		SecurityHeadersMiddleware(),
		LoggingMiddleware(log.Default()),
	}
	if s.cfg.Server.RateLimitPerMinute > 0 {
		middlewares = append(middlewares, RateLimitMiddleware(
			NewRateLimiter(s.cfg.Server.RateLimitPerMinute, s.cfg.Server.RateLimitBurst)))
	}
	return Chain(middlewares...)(s.router)
}

// ============================================================================
// ADMISSION
// ============================================================================

// admitChat validates a chat request before any provider call or SSE byte.
// Returns the resolved model name.
func (s *Server) admitChat(req *stream.ChatRequest) (string, error) {
	if req.Message == "" {
		return "", fmt.Errorf("message must not be empty")
	}
	if len(req.Message) > s.cfg.Server.MaxMessageLength {
		return "", fmt.Errorf("message exceeds maximum length of %d", s.cfg.Server.MaxMessageLength)
	}
	if len(req.Context) > MaxContextPairs {
		return "", fmt.Errorf("context exceeds maximum of %d messages", MaxContextPairs)
	}
	for i, pair := range req.Context {
		if !session.ValidRole(pair.Role) {
			return "", fmt.Errorf("invalid role %q at context message %d", pair.Role, i)
		}
	}

	model := req.Model
	if model == "" {
		model = s.cfg.Provider.DefaultModel
	}
	if !s.cfg.ModelAllowed(model) {
		return "", fmt.Errorf("model %q is not allowed", model)
	}
	return model, nil
}

// buildMessages assembles the outbound message list: system prompt,
// attachment context, rolling context, user message last.
func buildMessages(req *stream.ChatRequest) []provider.Message {
	messages := make([]provider.Message, 0, len(req.Context)+3)
	messages = append(messages, provider.Message{Role: "system", Content: SystemPrompt})

	if len(req.Attachments) > 0 {
		atts := make([]session.Attachment, len(req.Attachments))
		for i, ref := range req.Attachments {
			atts[i] = session.Attachment{
				Filename: ref.Filename,
				Summary:  ref.Summary,
				Content:  ref.Content,
			}
		}
		messages = append(messages, provider.Message{
			Role:    "system",
			Content: session.AttachmentContext(atts),
		})
	}

	for _, pair := range req.Context {
		messages = append(messages, provider.Message{Role: pair.Role, Content: pair.Content})
	}
	return append(messages, provider.Message{Role: "user", Content: req.Message})
}

// decodeBody decodes a size-limited JSON request body.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if err.Error() == "http: request body too large" {
			return fmt.Errorf("request body exceeds maximum size of %d bytes", MaxRequestBodySize)
		}
		return fmt.Errorf("invalid request format")
	}
	return nil
}

// ============================================================================
// STREAMING CHAT HANDLER
// ============================================================================

// handleChat handles POST /api/chat. Admission failures are JSON errors;
// once streaming starts, failures become terminal error frames.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req stream.ChatRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	model, err := s.admitChat(&req)
	if err != nil {
		log.Printf("ADMISSION_DENIED | endpoint=/api/chat identity=%s err=%v", callerIdentity(r), err)
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	streamTimeout := time.Duration(s.cfg.Server.StreamTimeoutSecs) * time.Second
	ctx, cancel := context.WithTimeout(r.Context(), streamTimeout)
	defer cancel()

	streamID := generateResponseID()
	start := time.Now()

	// PERFORMANCE: strings.Builder avoids quadratic allocations
	var full strings.Builder

	// Chunks are written and flushed synchronously so the provider read
	// loop never runs ahead of the client connection.
	err = s.completer.ChatStream(ctx, model, buildMessages(&req), func(chunk provider.StreamChunk) {
		if chunk.Error != nil || chunk.Done || chunk.Content == "" {
			return
		}
		full.WriteString(chunk.Content)
		if err := stream.EncodeFrame(w, stream.Chunk(chunk.Content)); err != nil {
			return
		}
		flusher.Flush()
	})

	// Exactly one terminal frame, always last.
	switch {
	case err == nil:
		stream.EncodeFrame(w, stream.Complete(full.String(), model))
	case ctx.Err() == context.DeadlineExceeded:
		log.Printf("STREAM_TIMEOUT | id=%s model=%s after=%s", streamID, model, streamTimeout)
		stream.EncodeFrame(w, stream.Errorf("stream exceeded maximum duration of %s", streamTimeout))
	default:
		log.Printf("STREAM_ERROR | id=%s model=%s err=%v", streamID, model, err)
		stream.EncodeFrame(w, stream.Errorf("completion failed: %v", err))
	}
	flusher.Flush()

	s.stats.Record("stream", 0)
	log.Printf("STREAM_COMPLETE | id=%s model=%s session=%s chars=%d latency=%dms",
		streamID, model, req.SessionID, full.Len(), time.Since(start).Milliseconds())
}

// ============================================================================
// NON-STREAMING CHAT HANDLER
// ============================================================================

// handleComplete handles POST /api/chat/complete.
func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	var req stream.ChatRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	model, err := s.admitChat(&req)
	if err != nil {
		log.Printf("ADMISSION_DENIED | endpoint=/api/chat/complete identity=%s err=%v", callerIdentity(r), err)
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	start := time.Now()
	resp, err := s.completer.Chat(r.Context(), model, buildMessages(&req))
	if err != nil {
		log.Printf("REQUEST_ERROR | endpoint=/api/chat/complete model=%s err=%v", model, err)
		s.writeError(w, http.StatusBadGateway, "completion failed")
		return
	}

	s.stats.Record("complete", int64(resp.Usage.TotalTokens))
	log.Printf("REQUEST_COMPLETE | model=%s tokens=%d latency=%dms",
		model, resp.Usage.TotalTokens, time.Since(start).Milliseconds())

	s.writeJSON(w, http.StatusOK, stream.CompleteResponse{
		Response:  resp.Text(),
		Model:     model,
		Usage:     stream.Usage{PromptTokens: resp.Usage.PromptTokens, CompletionTokens: resp.Usage.CompletionTokens, TotalTokens: resp.Usage.TotalTokens},
		Timestamp: time.Now().UTC(),
	})
}

// ============================================================================
// CHAIN HANDLER
// ============================================================================

// handleChain handles POST /api/chat/chain.
func (s *Server) handleChain(w http.ResponseWriter, r *http.Request) {
	var req stream.ChainRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.Message == "" {
		s.writeError(w, http.StatusBadRequest, "message must not be empty")
		return
	}
	if len(req.Message) > s.cfg.Server.MaxMessageLength {
		s.writeError(w, http.StatusBadRequest,
			fmt.Sprintf("message exceeds maximum length of %d", s.cfg.Server.MaxMessageLength))
		return
	}

	steps := make([]chain.Step, len(req.Chain))
	for i, sr := range req.Chain {
		model := sr.Model
		if model == "" {
			model = s.cfg.Provider.DefaultModel
		}
		if !s.cfg.ModelAllowed(model) {
			s.writeError(w, http.StatusBadRequest,
				fmt.Sprintf("step %d: model %q is not allowed", i+1, sr.Model))
			return
		}
		steps[i] = chain.Step{
			Model:          model,
			Name:           sr.Name,
			PromptTemplate: sr.PromptTemplate,
			Transform:      sr.Transform,
		}
	}
	if err := chain.Validate(steps); err != nil {
		log.Printf("ADMISSION_DENIED | endpoint=/api/chat/chain identity=%s err=%v", callerIdentity(r), err)
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	results := s.chains.Run(r.Context(), req.Message, steps)

	out := make([]stream.ChainStepResult, len(results))
	for i, res := range results {
		out[i] = stream.ChainStepResult{
			Step:      res.Step,
			Model:     res.Model,
			Input:     res.Input,
			Output:    res.Output,
			Error:     res.Err,
			Timestamp: res.Timestamp,
		}
	}

	s.stats.Record("chain", 0)
	s.writeJSON(w, http.StatusOK, stream.ChainResponse{
		Results:    out,
		TotalSteps: len(req.Chain),
		Timestamp:  time.Now().UTC(),
	})
}

// ============================================================================
// MODELS / HEALTH / STATS
// ============================================================================

// handleModels handles GET /api/chat/models.
func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, stream.ModelsResponse{
		Models:  s.cfg.Provider.AllowedModels,
		Default: s.cfg.Provider.DefaultModel,
	})
}

// HealthResponse is the body returned by GET /health.
type HealthResponse struct {
	Status         string `json:"status"`
	Version        string `json:"version"`
	ProviderStatus string `json:"provider_status"`
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthResponse{Status: "ok", Version: Version}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if _, err := s.completer.ListModels(ctx); err != nil {
		health.ProviderStatus = "unavailable"
		health.Status = "degraded"
	} else {
		health.ProviderStatus = "ok"
	}

	s.writeJSON(w, http.StatusOK, health)
}

// StatsResponse is the body returned by GET /stats.
type StatsResponse struct {
	TotalRequests    int64 `json:"total_requests"`
	StreamRequests   int64 `json:"stream_requests"`
	CompleteRequests int64 `json:"complete_requests"`
	ChainRequests    int64 `json:"chain_requests"`
	TotalTokens      int64 `json:"total_tokens"`
	UptimeSeconds    int64 `json:"uptime_seconds"`
}

// handleStats handles GET /stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, StatsResponse{
		TotalRequests:    atomic.LoadInt64(&s.stats.TotalRequests),
		StreamRequests:   atomic.LoadInt64(&s.stats.StreamRequests),
		CompleteRequests: atomic.LoadInt64(&s.stats.CompleteRequests),
		ChainRequests:    atomic.LoadInt64(&s.stats.ChainRequests),
		TotalTokens:      atomic.LoadInt64(&s.stats.TotalTokens),
		UptimeSeconds:    int64(s.stats.Uptime().Seconds()),
	})
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.mu.Lock()
	s.server = &http.Server{
		Addr:        s.cfg.Addr(),
		Handler:     s.Handler(),
		ReadTimeout: 30 * time.Second,
		// WriteTimeout must exceed the stream timeout or streams are cut
		// off before their terminal frame.
		WriteTimeout: time.Duration(s.cfg.Server.StreamTimeoutSecs+10) * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	s.mu.Unlock()

	log.Printf("SERVER_START | addr=%s version=%s", s.cfg.Addr(), Version)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	srv := s.server
	s.mu.RUnlock()

	if srv == nil {
		return nil
	}
	log.Printf("SERVER_SHUTDOWN | starting graceful shutdown")
	return srv.Shutdown(ctx)
}

// ============================================================================
// HELPERS
// ============================================================================

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": message,
			"type":    "invalid_request_error",
			"code":    status,
		},
	})
}

// generateResponseID generates a unique response ID.
func generateResponseID() string {
	bytes := make([]byte, 16)
	rand.Read(bytes)
	return "chatcmpl-" + hex.EncodeToString(bytes)
}
