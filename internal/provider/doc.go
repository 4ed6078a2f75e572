// Copyright (c) 2025 Kestrel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package provider implements the HTTP client for the upstream completion
// backend (an OpenAI-compatible chat completions API).
//
// The client supports non-streaming completions, streaming completions via
// SSE "data:" records with a [DONE] sentinel, and model listing. Each call
// is stateless: the caller supplies the full message list every time.
//
// # Key Types
//
//   - Completer: the capability interface the rest of the system consumes
//   - Client: production Completer backed by net/http
//   - Message: role-tagged chat message
//   - StreamChunk: one delta delivered during streaming
//   - ClientError: typed backend error with sentinel values
//
// # Usage
//
//	client := provider.NewClientWithConfig(&provider.ClientConfig{
//	    BaseURL: "https://api.openai.com/v1",
//	    APIKey:  os.Getenv("KESTREL_API_KEY"),
//	})
//	err := client.ChatStream(ctx, "gpt-4o-mini", messages, func(chunk provider.StreamChunk) {
//	    fmt.Print(chunk.Content)
//	})
package provider
