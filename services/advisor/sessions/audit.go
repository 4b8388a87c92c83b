// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sessions

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AuditLog writes session lifecycle events as JSON lines to a dedicated
// file, separate from the service log. One line per event keeps the
// file greppable and parseable by log shippers.
type AuditLog struct {
	mu   sync.Mutex
	file *os.File
}

// auditEntry is the on-disk record shape.
type auditEntry struct {
	Timestamp int64          `json:"timestamp"`
	Event     string         `json:"event"`
	SessionID string         `json:"session_id"`
	Details   map[string]any `json:"details,omitempty"`
}

// NewAuditLog opens (or creates) the audit file in append mode.
func NewAuditLog(path string) (*AuditLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	return &AuditLog{file: file}, nil
}

// Log appends one event. Write failures are reported to the service log
// rather than the caller; audit logging never fails a request.
func (a *AuditLog) Log(event, sessionID string, details map[string]any) {
	entry := auditEntry{
		Timestamp: time.Now().UnixMilli(),
		Event:     event,
		SessionID: sessionID,
		Details:   details,
	}
	line, err := json.Marshal(entry)
	if err != nil {
		slog.Error("Failed to marshal audit entry", "event", event, "error", err)
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		return
	}
	if _, err := a.file.Write(append(line, '\n')); err != nil {
		slog.Error("Failed to write audit entry", "event", event, "error", err)
	}
}

// Close flushes and closes the audit file. Safe to call multiple times.
func (a *AuditLog) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		return nil
	}
	err := a.file.Close()
	a.file = nil
	return err
}
