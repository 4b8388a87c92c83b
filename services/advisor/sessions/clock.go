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
	"fmt"
	"sync"
	"time"
)

// Jump thresholds for the clock guard. A forward jump larger than
// MaxForwardJump would expire sessions prematurely; a backward jump
// larger than MaxBackwardJump would keep them alive past their TTL.
const (
	MaxBackwardJump = 1 * time.Hour
	MaxForwardJump  = 2 * time.Hour
)

// ClockGuard detects suspicious system-time jumps between checks.
//
// TTL expiry trusts wall-clock time, so a clock correction (NTP step,
// resume from suspend, manual change) can make sweeps delete live
// sessions or retain expired ones. The reaper checks the guard before
// every sweep and skips the cycle when the clock moved implausibly.
//
// All methods are safe for concurrent use.
type ClockGuard struct {
	clock Clock

	mu       sync.Mutex
	lastGood time.Time
	checked  bool
}

// NewClockGuard creates a guard over the given clock. Nil falls back
// to the system clock.
func NewClockGuard(clock Clock) *ClockGuard {
	if clock == nil {
		clock = systemClock{}
	}
	return &ClockGuard{clock: clock}
}

// Check validates that time has not jumped suspiciously since the last
// successful check. The first call only records a baseline.
func (g *ClockGuard) Check() error {
	now := g.clock.Now()

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.checked {
		diff := now.Sub(g.lastGood)
		if diff < -MaxBackwardJump {
			return fmt.Errorf("clock moved backward by %v since last check (max allowed: %v)",
				-diff, MaxBackwardJump)
		}
		if diff > MaxForwardJump {
			return fmt.Errorf("clock moved forward by %v since last check (max allowed: %v)",
				diff, MaxForwardJump)
		}
	}

	g.lastGood = now
	g.checked = true
	return nil
}

// Reset clears the baseline after a known legitimate time change.
func (g *ClockGuard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.checked = false
}
