// Copyright (c) 2025 Kestrel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chain runs multi-step completion pipelines.
//
// A chain is an ordered list of up to MaxChainSteps steps. Each step sends
// the current text to the completion backend, optionally after applying a
// named transform, and feeds the output into the next step. Execution
// stops at the first failing step; the results collected so far are
// returned with the failure recorded on the last entry.
//
// # Key Types
//
//   - Processor: executes validated chains against a provider.Completer
//   - Step: one stage with model, optional prompt template and transform
//   - StepResult: per-step record of input, output and failure
//
// # Usage
//
//	p := chain.NewProcessor(completer)
//	if err := chain.Validate(steps); err != nil { ... }
//	results := p.Run(ctx, message, steps)
package chain
