// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"fmt"
)

type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopK        *int     `json:"top_k"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// LLMClient defines the standard interface for any LLM backend.
type LLMClient interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
}

// ModelLister is implemented by backends that can enumerate the models
// available on the inference server (Ollama /api/tags).
type ModelLister interface {
	ListModels(ctx context.Context) ([]ModelInfo, error)
}

// ModelInfo describes one model known to the inference server.
type ModelInfo struct {
	Name       string `json:"name"`
	SizeBytes  int64  `json:"size,omitempty"`
	ModifiedAt string `json:"modified_at,omitempty"`
}

// StatusError carries the HTTP status returned by an inference server so
// callers can distinguish retryable failures (5xx, transport) from
// permanent ones (4xx).
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("inference server returned status %d: %s", e.Code, e.Body)
}

// Permanent reports whether retrying the same request is pointless.
func (e *StatusError) Permanent() bool {
	return e.Code >= 400 && e.Code < 500
}

func floatPtr(v float32) *float32 { return &v }
func intPtr(v int) *int           { return &v }
