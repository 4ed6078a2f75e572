// Copyright (c) 2025 Kestrel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream defines the event protocol shared by the server and client
// halves of the chat transport.
//
// A chat stream is an ordered sequence of Events framed as newline-delimited
// records, one JSON payload per record, prefixed with "data: ". Chunk events
// carry incremental content; exactly one terminal event (complete or error)
// ends every stream.
//
// # Key Types
//
//   - Event: the chunk/complete/error discriminated union
//   - Stream: client-side pull iterator over a framed byte stream
//   - APIClient: HTTP client for a running kestreld
//
// # Usage
//
// Open a stream and pull events until io.EOF:
//
//	api := stream.NewAPIClient("http://127.0.0.1:8787")
//	s, err := api.Chat(ctx, stream.ChatRequest{Message: "Hello"})
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//	for {
//	    ev, err := s.Next()
//	    if err != nil {
//	        break
//	    }
//	    handle(ev)
//	}
//
// The complete event's FullResponse is authoritative; the locally
// accumulated chunk buffer exists only for diagnostics.
package stream
