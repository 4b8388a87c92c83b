// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides request and response structures for the
// advisor service.
//
// This file contains the types for the analysis endpoint: the multipart
// form request, the per-agent step reports, and the final recommendation
// response.
package datatypes

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianAdvisor/services/advisor/dataset"
)

// =============================================================================
// Constants for Security Compliance
// =============================================================================

const (
	// MaxUploadBytes is the maximum accepted dataset upload size.
	MaxUploadBytes = 50 * 1024 * 1024 // 50MB

	// MaxProblemDescriptionBytes caps the free-text problem description.
	// The description is interpolated into LLM prompts, so an unbounded
	// field is both a memory and a prompt-stuffing concern.
	MaxProblemDescriptionBytes = 4 * 1024 // 4KB
)

// analyzeValidate is the validator instance for analyze datatypes.
var analyzeValidate *validator.Validate

func init() {
	analyzeValidate = validator.New()
	_ = analyzeValidate.RegisterValidation("maxdescbytes", validateMaxDescBytes)
}

// validateMaxDescBytes checks byte length (not rune count) so multi-byte
// payloads cannot sneak past the cap.
func validateMaxDescBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxProblemDescriptionBytes
}

// =============================================================================
// Analyze Request Types
// =============================================================================

// AnalyzeRequest is the multipart form accompanying a dataset upload.
//
// # Fields
//
//   - ProblemDescription: Optional. Free-text description of what the user
//     wants to predict. When it names a column, that column becomes the
//     modeling target.
//   - Model: Optional. Override of the configured inference model name.
//   - SessionID: Optional. Client-supplied session ID (UUID v4). Generated
//     server-side when absent, which is the normal path.
//
// The dataset file itself arrives as the "file" part of the multipart
// body and is handled separately by the upload handler.
type AnalyzeRequest struct {
	ProblemDescription string `form:"problem_description" json:"problem_description" validate:"maxdescbytes"`
	Model              string `form:"model" json:"model" validate:"omitempty,max=128"`
	SessionID          string `form:"session_id" json:"session_id" validate:"omitempty,uuid4"`
}

// Validate validates the AnalyzeRequest fields after form binding.
func (r *AnalyzeRequest) Validate() error {
	return analyzeValidate.Struct(r)
}

// EnsureDefaults populates the session ID when the client did not supply
// one. All downstream logging and progress events key off this ID.
func (r *AnalyzeRequest) EnsureDefaults() {
	if r.SessionID == "" {
		r.SessionID = uuid.NewString()
	}
}

// =============================================================================
// Agent Step Reporting
// =============================================================================

// Agent step status values.
const (
	StepCompleted = "completed"
	StepFailed    = "failed"
	StepSkipped   = "skipped"
)

// AgentStep reports one pipeline stage's outcome in the response.
type AgentStep struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	Message    string `json:"message,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// =============================================================================
// Analyze Response Types
// =============================================================================

// AnalyzeResponse is the final payload of a pipeline run.
//
// # Fields
//
//   - Status: "success" or "error". Partial results keep "error" but still
//     carry whatever stages completed.
//   - SessionID: The session the run is stored under.
//   - Algorithm: Recommended scikit-learn algorithm name.
//   - Reason: One-line justification from the selector agent.
//   - Alternatives: Backup algorithm names, usually two.
//   - ProblemType: "Regression" or "N-class Classification".
//   - DataSummary: Human-readable analysis block for the UI panel.
//   - Profile: Structured dataset profile for programmatic callers.
//   - Agents: Per-stage status and timing.
//   - Code: Generated Python starter script.
//   - Error: Populated only on failure.
//   - ProcessingTimeMs: Wall-clock duration of the whole pipeline.
type AnalyzeResponse struct {
	Status           string           `json:"status"`
	SessionID        string           `json:"session_id"`
	Algorithm        string           `json:"algorithm,omitempty"`
	Reason           string           `json:"reason,omitempty"`
	Alternatives     []string         `json:"alternatives,omitempty"`
	ProblemType      string           `json:"problem_type,omitempty"`
	DataSummary      string           `json:"data_summary,omitempty"`
	Profile          *dataset.Summary `json:"profile,omitempty"`
	Agents           []AgentStep      `json:"agents,omitempty"`
	Code             string           `json:"code,omitempty"`
	Error            string           `json:"error,omitempty"`
	Timestamp        int64            `json:"timestamp"`
	ProcessingTimeMs int64            `json:"processing_time_ms"`
}

// NewAnalyzeResponse creates a response shell with the timestamp set.
func NewAnalyzeResponse(sessionID string) *AnalyzeResponse {
	return &AnalyzeResponse{
		SessionID: sessionID,
		Timestamp: time.Now().UnixMilli(),
	}
}
