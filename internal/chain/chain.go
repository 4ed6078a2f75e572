// Copyright (c) 2025 Kestrel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package chain

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/kestrelchat/kestrel/internal/provider"
)

// MaxChainSteps bounds the length of a single pipeline. Checked up front,
// before any provider call.
const MaxChainSteps = 5

// DefaultSystemPrompt is used for steps that do not declare a template.
const DefaultSystemPrompt = "You are a helpful assistant."

// =============================================================================
// TYPES
// =============================================================================

// Step is one stage of a pipeline.
type Step struct {
	Model          string
	Name           string // defaults to "Step N"
	PromptTemplate string // system prompt, DefaultSystemPrompt when empty
	Transform      string // registered transform name, optional
}

// StepResult records one executed stage. Output and Err are mutually
// exclusive: a result carries exactly one of them.
type StepResult struct {
	Step      string
	Model     string
	Input     string // text actually sent, after the transform
	Output    string
	Err       string
	Timestamp time.Time
}

// =============================================================================
// PROCESSOR
// =============================================================================

// Processor executes pipelines against a completion backend.
type Processor struct {
	completer provider.Completer
}

// NewProcessor creates a processor backed by the given completer.
func NewProcessor(completer provider.Completer) *Processor {
	return &Processor{completer: completer}
}

// Validate performs the admission checks on a chain definition: non-empty,
// at most MaxChainSteps, every declared transform registered. Model
// allow-listing is the transport's concern and happens before Run.
func Validate(steps []Step) error {
	if len(steps) == 0 {
		return fmt.Errorf("chain must contain at least one step")
	}
	if len(steps) > MaxChainSteps {
		return fmt.Errorf("chain has %d steps, maximum is %d", len(steps), MaxChainSteps)
	}
	for i, step := range steps {
		if _, err := LookupTransform(step.Transform); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return nil
}

// Run executes the pipeline. Steps run strictly in order; each step's
// output feeds the next step's input. On the first failing step the run
// stops, so len(results) <= len(steps) and a short result list always
// ends in an error result. Validate must have accepted the steps.
func (p *Processor) Run(ctx context.Context, message string, steps []Step) []StepResult {
	results := make([]StepResult, 0, len(steps))
	current := message

	for i, step := range steps {
		name := step.Name
		if name == "" {
			name = fmt.Sprintf("Step %d", i+1)
		}

		transform, err := LookupTransform(step.Transform)
		if err != nil {
			// Validate screens transforms, but a processor used directly
			// still fails the step instead of panicking.
			results = append(results, StepResult{
				Step: name, Model: step.Model, Input: current,
				Err: err.Error(), Timestamp: time.Now().UTC(),
			})
			return results
		}
		input := transform(current)

		systemPrompt := step.PromptTemplate
		if systemPrompt == "" {
			systemPrompt = DefaultSystemPrompt
		}

		resp, err := p.completer.Chat(ctx, step.Model, []provider.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: input},
		})
		if err != nil {
			log.Printf("CHAIN_STEP_FAILED | step=%d name=%s model=%s err=%v", i+1, name, step.Model, err)
			results = append(results, StepResult{
				Step: name, Model: step.Model, Input: input,
				Err: err.Error(), Timestamp: time.Now().UTC(),
			})
			return results
		}

		output := resp.Text()
		log.Printf("CHAIN_STEP | step=%d name=%s model=%s in_len=%d out_len=%d",
			i+1, name, step.Model, len(input), len(output))
		results = append(results, StepResult{
			Step: name, Model: step.Model, Input: input,
			Output: output, Timestamp: time.Now().UTC(),
		})
		current = output
	}
	return results
}
