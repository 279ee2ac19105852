/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package resilience

import (
	"sync"

	"github.com/rs/zerolog"
)

// HealthStatus enumerates dependency health states.
type HealthStatus string

const (
	StatusHealthy     HealthStatus = "healthy"
	StatusDegraded    HealthStatus = "degraded"    // reachable but erroring
	StatusUnavailable HealthStatus = "unavailable" // no connected nodes
)

// Fallback is the degraded-service answer handed to callers when a
// dependency is unavailable.
type Fallback struct {
	Message   string
	Preserved bool // playback state was snapshotted and can be restored
}

// Tracker keeps an independent health flag per external dependency and the
// registered fallback for each.
type Tracker struct {
	logger zerolog.Logger

	mu        sync.RWMutex
	statuses  map[string]HealthStatus
	fallbacks map[string]func() Fallback
}

// NewTracker creates a tracker with all dependencies implicitly healthy.
func NewTracker(logger zerolog.Logger) *Tracker {
	return &Tracker{
		logger:    logger.With().Str("component", "degradation").Logger(),
		statuses:  make(map[string]HealthStatus),
		fallbacks: make(map[string]func() Fallback),
	}
}

// RegisterFallback installs the fallback supplier for a dependency.
func (t *Tracker) RegisterFallback(dependency string, fn func() Fallback) {
	t.mu.Lock()
	t.fallbacks[dependency] = fn
	t.mu.Unlock()
}

// SetStatus records a dependency health transition.
func (t *Tracker) SetStatus(dependency string, status HealthStatus) {
	t.mu.Lock()
	prev := t.statuses[dependency]
	t.statuses[dependency] = status
	t.mu.Unlock()

	if prev != status {
		t.logger.Info().
			Str("dependency", dependency).
			Str("from", string(prev)).
			Str("to", string(status)).
			Msg("dependency health transition")
	}
}

// Status returns the dependency's health, healthy if never reported.
func (t *Tracker) Status(dependency string) HealthStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if status, ok := t.statuses[dependency]; ok {
		return status
	}
	return StatusHealthy
}

// Fallback returns the registered fallback for a dependency, if any.
func (t *Tracker) Fallback(dependency string) (Fallback, bool) {
	t.mu.RLock()
	fn, ok := t.fallbacks[dependency]
	t.mu.RUnlock()
	if !ok {
		return Fallback{}, false
	}
	return fn(), true
}

// IsAvailable reports whether the dependency can serve requests: the caller
// supplies whether at least one node is ready, and the tracked status must
// not be unavailable.
func (t *Tracker) IsAvailable(dependency string, nodeReady bool) bool {
	if !nodeReady {
		return false
	}
	return t.Status(dependency) != StatusUnavailable
}
