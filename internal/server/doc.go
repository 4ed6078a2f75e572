// Copyright (c) 2025 Kestrel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides the kestrel HTTP API server.
//
// This package implements the server half of the chat stream transport:
// admission checks run before any stream byte is written, then provider
// deltas are framed as SSE events and flushed to the caller one by one.
//
// # Endpoints
//
//   - POST /api/chat          - Streaming chat over SSE
//   - POST /api/chat/complete - Non-streaming chat
//   - POST /api/chat/chain    - Sequential multi-model pipeline
//   - GET  /api/chat/models   - Model allow-list
//   - GET  /health            - Health check
//   - GET  /stats             - Usage statistics
//
// # Middleware
//
//   - Panic recovery with stack trace logging
//   - Security headers (X-Content-Type-Options, X-Frame-Options, etc.)
//   - Request logging with timing and caller identity
//   - Per-IP token-bucket rate limiting
//
// # Key Types
//
//   - Server: HTTP server with router and middleware
//   - ServerStats: request counters exposed at /stats
//   - RateLimiter: per-IP admission limiter
//
// # Usage
//
//	cfg, err := config.Load()
//	client := provider.NewClientWithConfig(providerCfg)
//	srv := server.NewServer(cfg, client)
//	if err := srv.Start(); err != nil {
//		log.Fatal(err)
//	}
package server
