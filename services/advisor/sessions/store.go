// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sessions provides in-memory analysis session tracking with
// TTL-based expiry. Sessions hold the lifecycle state of one pipeline
// run plus a reference to the uploaded file, which is removed from disk
// when the session is deleted or expires.
package sessions

import (
	"errors"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianAdvisor/services/advisor/datatypes"
)

// Clock abstracts time.Now for deterministic expiry tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// DefaultTTL is how long a session survives after its last update.
const DefaultTTL = 1 * time.Hour

// ErrNotFound is returned when a session ID is unknown.
var ErrNotFound = errors.New("session not found")

// Session is one analysis run's lifecycle record.
type Session struct {
	ID       string
	Status   string
	Stage    string
	Filename string
	FilePath string
	Model    string
	Error    string
	Result   *datatypes.AnalyzeResponse

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Info converts the session to its wire representation.
func (s *Session) Info() datatypes.SessionInfo {
	return datatypes.SessionInfo{
		SessionID: s.ID,
		Status:    s.Status,
		Filename:  s.Filename,
		Model:     s.Model,
		Stage:     s.Stage,
		Error:     s.Error,
		CreatedAt: s.CreatedAt.UnixMilli(),
		UpdatedAt: s.UpdatedAt.UnixMilli(),
	}
}

// Config holds store tunables.
type Config struct {
	// TTL is the idle lifetime of a session. Zero means DefaultTTL.
	TTL time.Duration

	// Clock overrides the time source. Nil means the system clock.
	Clock Clock

	// Audit, when set, receives session lifecycle events.
	Audit *AuditLog
}

// Store is a thread-safe in-memory session map.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	clock    Clock
	audit    *AuditLog
}

// NewStore creates an empty session store.
func NewStore(cfg Config) *Store {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = systemClock{}
	}
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		clock:    clock,
		audit:    cfg.Audit,
	}
}

// Create registers a new pending session. An existing session with the
// same ID is overwritten; IDs are UUIDs so collisions mean a retry of
// the same request.
func (st *Store) Create(id, filename, filePath, model string) *Session {
	now := st.clock.Now()
	s := &Session{
		ID:        id,
		Status:    datatypes.SessionPending,
		Filename:  filename,
		FilePath:  filePath,
		Model:     model,
		CreatedAt: now,
		UpdatedAt: now,
	}

	st.mu.Lock()
	st.sessions[id] = s
	st.mu.Unlock()

	st.logEvent("session_created", id, map[string]any{"filename": filename, "model": model})
	return copySession(s)
}

// Get returns a copy of the session, or ErrNotFound.
func (st *Store) Get(id string) (*Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copySession(s), nil
}

// SetRunning marks the session running at the given pipeline stage.
func (st *Store) SetRunning(id, stage string) error {
	return st.update(id, func(s *Session) {
		s.Status = datatypes.SessionRunning
		s.Stage = stage
	})
}

// Complete stores the final result and marks the session completed.
func (st *Store) Complete(id string, result *datatypes.AnalyzeResponse) error {
	err := st.update(id, func(s *Session) {
		s.Status = datatypes.SessionCompleted
		s.Stage = ""
		s.Result = result
	})
	if err == nil {
		st.logEvent("session_completed", id, nil)
	}
	return err
}

// Fail marks the session failed, keeping any partial result.
func (st *Store) Fail(id, errMsg string, partial *datatypes.AnalyzeResponse) error {
	err := st.update(id, func(s *Session) {
		s.Status = datatypes.SessionFailed
		s.Error = errMsg
		if partial != nil {
			s.Result = partial
		}
	})
	if err == nil {
		st.logEvent("session_failed", id, map[string]any{"error": errMsg})
	}
	return err
}

// Delete removes the session and its uploaded file from disk.
func (st *Store) Delete(id string) error {
	st.mu.Lock()
	s, ok := st.sessions[id]
	if ok {
		delete(st.sessions, id)
	}
	st.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	removeUpload(s)
	st.logEvent("session_deleted", id, nil)
	return nil
}

// List returns copies of all sessions, newest first.
func (st *Store) List() []*Session {
	st.mu.RLock()
	out := make([]*Session, 0, len(st.sessions))
	for _, s := range st.sessions {
		out = append(out, copySession(s))
	}
	st.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Sweep removes every session idle for longer than the TTL and returns
// how many were removed. Called by the reaper; safe to call directly.
func (st *Store) Sweep() int {
	cutoff := st.clock.Now().Add(-st.ttl)

	st.mu.Lock()
	var expired []*Session
	for id, s := range st.sessions {
		if s.UpdatedAt.Before(cutoff) {
			expired = append(expired, s)
			delete(st.sessions, id)
		}
	}
	st.mu.Unlock()

	for _, s := range expired {
		removeUpload(s)
		st.logEvent("session_expired", s.ID, map[string]any{"idle_since": s.UpdatedAt.UnixMilli()})
	}
	return len(expired)
}

func (st *Store) update(id string, fn func(*Session)) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	if !ok {
		return ErrNotFound
	}
	fn(s)
	s.UpdatedAt = st.clock.Now()
	return nil
}

func (st *Store) logEvent(event, id string, details map[string]any) {
	if st.audit != nil {
		st.audit.Log(event, id, details)
	}
}

// removeUpload deletes the session's uploaded file, tolerating files
// already gone.
func removeUpload(s *Session) {
	if s.FilePath == "" {
		return
	}
	if err := os.Remove(s.FilePath); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to remove uploaded file", "sessionId", s.ID, "path", s.FilePath, "error", err)
	}
}

func copySession(s *Session) *Session {
	dup := *s
	return &dup
}
