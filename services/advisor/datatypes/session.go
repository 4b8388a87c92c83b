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

// Session lifecycle states, in order. A session moves pending -> running
// -> completed or failed; expiry removes it regardless of state.
const (
	SessionPending   = "pending"
	SessionRunning   = "running"
	SessionCompleted = "completed"
	SessionFailed    = "failed"
)

// SessionInfo is the per-session view returned by the sessions endpoints.
type SessionInfo struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	Filename  string `json:"filename,omitempty"`
	Model     string `json:"model,omitempty"`
	Stage     string `json:"stage,omitempty"`
	Error     string `json:"error,omitempty"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// SessionListResponse wraps the session listing.
type SessionListResponse struct {
	Sessions []SessionInfo `json:"sessions"`
	Count    int           `json:"count"`
}
