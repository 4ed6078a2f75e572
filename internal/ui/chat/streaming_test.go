// Copyright (c) 2025 Kestrel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"testing"
	"time"
)

func TestStreamingBufferBatchThreshold(t *testing.T) {
	sb := NewStreamingBufferWithConfig(3, 1) // large flush interval, small batch

	sb.Write("a")
	sb.Write("b")
	if _, ok := sb.Flush(); ok {
		t.Fatal("Flush fired below the batch threshold")
	}

	sb.Write("c")
	content, ok := sb.Flush()
	if !ok {
		t.Fatal("Flush did not fire at the batch threshold")
	}
	if content != "abc" {
		t.Errorf("Flush content = %q, want %q", content, "abc")
	}
	if sb.Pending() != 0 {
		t.Errorf("Pending after flush = %d, want 0", sb.Pending())
	}
}

func TestStreamingBufferTimeThreshold(t *testing.T) {
	sb := NewStreamingBufferWithConfig(1000, 60)

	sb.Write("x")
	time.Sleep(20 * time.Millisecond)

	content, ok := sb.Flush()
	if !ok {
		t.Fatal("Flush did not fire after the frame interval elapsed")
	}
	if content != "x" {
		t.Errorf("Flush content = %q, want %q", content, "x")
	}
}

func TestStreamingBufferForceFlush(t *testing.T) {
	sb := NewStreamingBufferWithConfig(1000, 1)

	sb.Write("tail")
	content, ok := sb.ForceFlush()
	if !ok || content != "tail" {
		t.Errorf("ForceFlush = (%q, %v), want (%q, true)", content, ok, "tail")
	}

	if _, ok := sb.ForceFlush(); ok {
		t.Error("ForceFlush on empty buffer reported content")
	}
}

func TestStreamingBufferReset(t *testing.T) {
	sb := NewStreamingBuffer()

	sb.Write("discard me")
	sb.Reset()

	if sb.Pending() != 0 {
		t.Errorf("Pending after Reset = %d, want 0", sb.Pending())
	}
	if _, ok := sb.ForceFlush(); ok {
		t.Error("buffer still had content after Reset")
	}
}

func TestStreamingBufferConfigFallbacks(t *testing.T) {
	sb := NewStreamingBufferWithConfig(-1, 500)
	if sb.batchSize != 15 {
		t.Errorf("batchSize = %d, want fallback 15", sb.batchSize)
	}
	if sb.minFlushWait != 33*time.Millisecond {
		t.Errorf("minFlushWait = %v, want 33ms", sb.minFlushWait)
	}
}
