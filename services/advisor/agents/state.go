// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package agents implements the three-stage advisory pipeline: a data
// analyst, an algorithm selector, and a code generator, run sequentially
// against a shared state. Each stage reads the previous stages' outputs
// and appends a tagged entry to the collaboration log, so later prompts
// carry the earlier agents' conclusions.
package agents

import (
	"time"

	"github.com/AleutianAI/AleutianAdvisor/services/advisor/dataset"
)

// Stage display names, used in progress events and the response.
const (
	StageAnalyst   = "Data Analyst Agent"
	StageSelector  = "Algorithm Selector Agent"
	StageGenerator = "Code Generator Agent"
)

// Stage outcome values.
const (
	StageCompleted = "completed"
	StageFailed    = "failed"
	StageSkipped   = "skipped"
)

// State is the shared blackboard the stages read and write. It mirrors
// the pipeline's data flow: the analyst fills Insights, the selector
// fills the algorithm fields, the generator fills Code.
type State struct {
	Summary            *dataset.Summary
	ProblemDescription string

	// Collaboration log. Entries are tagged "[Agent Name]: ...".
	Messages []string

	// Data Analyst outputs.
	Insights string

	// Algorithm Selector outputs.
	Algorithm    string
	Reason       string
	Alternatives []string

	// Code Generator outputs.
	Code            string
	CodeExplanation string
}

// lastMessages returns up to n trailing entries of the collaboration log.
func (s *State) lastMessages(n int) []string {
	if len(s.Messages) <= n {
		return s.Messages
	}
	return s.Messages[len(s.Messages)-n:]
}

// StageResult records one stage's outcome and timing.
type StageResult struct {
	Name     string
	Status   string
	Message  string
	Duration time.Duration
}

// Result is the pipeline's final output. On failure it carries whatever
// stages completed, so callers can show partial progress.
type Result struct {
	Summary      *dataset.Summary
	Insights     string
	Algorithm    string
	Reason       string
	Alternatives []string
	Code         string
	Messages     []string
	Stages       []StageResult
	Elapsed      time.Duration
}
