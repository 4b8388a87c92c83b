// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import "time"

// Progress event types pushed over the WebSocket while a pipeline runs.
const (
	EventStageStarted      = "stage_started"
	EventStageCompleted    = "stage_completed"
	EventPipelineCompleted = "pipeline_completed"
	EventError             = "error"
)

// ProgressEvent is one frame of the live progress stream.
// Result is populated only on pipeline_completed.
type ProgressEvent struct {
	Type      string           `json:"type"`
	SessionID string           `json:"session_id"`
	Stage     string           `json:"stage,omitempty"`
	Message   string           `json:"message,omitempty"`
	Timestamp int64            `json:"timestamp"`
	Result    *AnalyzeResponse `json:"result,omitempty"`
}

// NewProgressEvent creates a timestamped event frame.
func NewProgressEvent(eventType, sessionID, stage, message string) ProgressEvent {
	return ProgressEvent{
		Type:      eventType,
		SessionID: sessionID,
		Stage:     stage,
		Message:   message,
		Timestamp: time.Now().UnixMilli(),
	}
}
