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
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultSweepInterval is how often the reaper looks for expired
// sessions. Expiry precision only needs to be on the order of the TTL.
const DefaultSweepInterval = 10 * time.Minute

// Reaper periodically sweeps expired sessions from a Store. Uses the
// ticker + done channel pattern for graceful shutdown.
//
// # Thread Safety
//
// All public methods are thread-safe. Only one reaper should run per
// store.
type Reaper struct {
	store    *Store
	interval time.Duration
	guard    *ClockGuard
	done     chan struct{}
	mu       sync.Mutex
	running  bool
}

// NewReaper creates a reaper over the given store. A non-positive
// interval falls back to DefaultSweepInterval.
func NewReaper(store *Store, interval time.Duration) *Reaper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Reaper{
		store:    store,
		interval: interval,
		guard:    NewClockGuard(store.clock),
		done:     make(chan struct{}),
	}
}

// Start begins the background sweep loop. Returns an error if the
// reaper is already running.
func (r *Reaper) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("session reaper is already running")
	}
	r.running = true
	done := make(chan struct{}) // fresh channel per run
	r.done = done
	r.mu.Unlock()

	slog.Info("Session reaper starting", "interval", r.interval.String())
	go r.runLoop(ctx, done)
	return nil
}

// Stop signals the sweep loop to exit. Safe to call multiple times.
func (r *Reaper) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return
	}
	slog.Info("Session reaper stopping")
	close(r.done)
	r.running = false
}

// runLoop sweeps until the context or the done channel for this run
// closes. The channel is passed in so a Stop/Start restart cannot leave
// an old loop selecting on the new run's channel.
func (r *Reaper) runLoop(ctx context.Context, done <-chan struct{}) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Session reaper stopped (context cancelled)")
			return
		case <-done:
			slog.Info("Session reaper stopped (stop requested)")
			return
		case <-ticker.C:
			if err := r.guard.Check(); err != nil {
				slog.Warn("Skipping session sweep, clock looks wrong", "error", err)
				continue
			}
			if n := r.store.Sweep(); n > 0 {
				slog.Info("Session sweep completed", "expired", n, "remaining", r.store.Len())
			} else {
				slog.Debug("Session sweep completed (no expired sessions)")
			}
		}
	}
}
