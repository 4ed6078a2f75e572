// Copyright (c) 2025 Kestrel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package chain

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kestrelchat/kestrel/internal/provider"
)

// =============================================================================
// FAKE COMPLETER
// =============================================================================

// fakeCompleter replays canned responses in call order and counts calls.
type fakeCompleter struct {
	calls     int
	responses []string
	failAt    int // 1-based call index that errors, 0 = never
	lastReq   []provider.Message
}

func (f *fakeCompleter) Chat(ctx context.Context, model string, messages []provider.Message) (*provider.ChatResponse, error) {
	f.calls++
	f.lastReq = messages
	if f.failAt != 0 && f.calls == f.failAt {
		return nil, &provider.ClientError{Type: provider.ErrTypeUnavailable, Message: "backend down"}
	}
	text := "out"
	if f.calls <= len(f.responses) {
		text = f.responses[f.calls-1]
	}
	return &provider.ChatResponse{
		Choices: []provider.ChatChoice{{Message: provider.Message{Role: "assistant", Content: text}}},
	}, nil
}

func (f *fakeCompleter) ChatStream(ctx context.Context, model string, messages []provider.Message, cb provider.StreamCallback) error {
	return nil
}

func (f *fakeCompleter) ListModels(ctx context.Context) ([]string, error) {
	return []string{"gpt-4o"}, nil
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestValidate(t *testing.T) {
	require.Error(t, Validate(nil), "empty chain rejected")

	long := make([]Step, MaxChainSteps+1)
	for i := range long {
		long[i].Model = "gpt-4o"
	}
	err := Validate(long)
	require.Error(t, err)
	require.Contains(t, err.Error(), "maximum is 5")

	require.NoError(t, Validate(long[:MaxChainSteps]))

	err = Validate([]Step{{Model: "gpt-4o", Transform: "reverse"}})
	require.Error(t, err)
	require.Contains(t, err.Error(), `unknown transform "reverse"`)
}

func TestLookupTransform(t *testing.T) {
	identity, err := LookupTransform("")
	require.NoError(t, err)
	require.Equal(t, "as-is", identity("as-is"))

	upper, err := LookupTransform("uppercase")
	require.NoError(t, err)
	require.Equal(t, "HI", upper("hi"))

	trim, err := LookupTransform("trim")
	require.NoError(t, err)
	require.Equal(t, "x", trim("  x "))

	summarize, err := LookupTransform("summarize-prompt")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(summarize("body"), "Summarize"))
	require.Contains(t, summarize("body"), "body")
}

// =============================================================================
// EXECUTION
// =============================================================================

func TestRunFeedsOutputForward(t *testing.T) {
	fake := &fakeCompleter{responses: []string{"first", "second", "third"}}
	p := NewProcessor(fake)

	steps := []Step{
		{Model: "gpt-4o", Name: "draft"},
		{Model: "gpt-4", Transform: "uppercase"},
		{Model: "gpt-3.5-turbo"},
	}
	results := p.Run(context.Background(), "seed", steps)

	require.Len(t, results, 3)
	require.Equal(t, 3, fake.calls)

	require.Equal(t, "draft", results[0].Step)
	require.Equal(t, "seed", results[0].Input)
	require.Equal(t, "first", results[0].Output)
	require.Empty(t, results[0].Err)

	// Step 2 gets step 1's output, transformed.
	require.Equal(t, "Step 2", results[1].Step)
	require.Equal(t, "FIRST", results[1].Input)
	require.Equal(t, "second", results[1].Output)

	require.Equal(t, "second", results[2].Input)
	require.Equal(t, "third", results[2].Output)
}

// Three steps, the second fails: two results, second carries the error,
// and the provider is never called for step three.
func TestRunStopsAtFirstFailure(t *testing.T) {
	fake := &fakeCompleter{responses: []string{"ok"}, failAt: 2}
	p := NewProcessor(fake)

	steps := []Step{
		{Model: "gpt-4o"},
		{Model: "gpt-4"},
		{Model: "gpt-3.5-turbo"},
	}
	results := p.Run(context.Background(), "seed", steps)

	require.Len(t, results, 2)
	require.Equal(t, 2, fake.calls, "step 3 must not reach the provider")
	require.Empty(t, results[0].Err)
	require.Empty(t, results[1].Output)
	require.Contains(t, results[1].Err, "backend down")
}

func TestRunUsesPromptTemplate(t *testing.T) {
	fake := &fakeCompleter{}
	p := NewProcessor(fake)

	p.Run(context.Background(), "hello", []Step{{Model: "gpt-4o", PromptTemplate: "Answer tersely."}})
	require.Len(t, fake.lastReq, 2)
	require.Equal(t, "system", fake.lastReq[0].Role)
	require.Equal(t, "Answer tersely.", fake.lastReq[0].Content)
	require.Equal(t, "user", fake.lastReq[1].Role)
	require.Equal(t, "hello", fake.lastReq[1].Content)

	p.Run(context.Background(), "hello", []Step{{Model: "gpt-4o"}})
	require.Equal(t, DefaultSystemPrompt, fake.lastReq[0].Content)
}

func TestRunUnknownTransformFailsStep(t *testing.T) {
	fake := &fakeCompleter{}
	p := NewProcessor(fake)

	results := p.Run(context.Background(), "seed", []Step{{Model: "gpt-4o", Transform: "reverse"}})
	require.Len(t, results, 1)
	require.Contains(t, results[0].Err, "unknown transform")
	require.Zero(t, fake.calls)
}
