/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package resilience wraps the node pool with a circuit breaker, tracks
// dependency health for graceful degradation, and preserves per-tenant
// playback state across full cluster outages.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the breaker rejects a call without
// reaching the network.
var ErrCircuitOpen = errors.New("circuit breaker open")

// BreakerState enumerates circuit breaker states.
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half_open"
)

// Breaker is a three-state circuit breaker. Closed until consecutive
// failures reach the threshold, then open for the cooldown period, then
// half-open for a single trial call.
type Breaker struct {
	threshold int
	cooldown  time.Duration

	mu       sync.Mutex
	state    BreakerState
	failures int
	openedAt time.Time
}

// NewBreaker creates a closed breaker.
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Breaker{threshold: threshold, cooldown: cooldown, state: BreakerClosed}
}

// State returns the current breaker state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateLocked()
}

func (b *Breaker) stateLocked() BreakerState {
	if b.state == BreakerOpen && time.Since(b.openedAt) >= b.cooldown {
		b.state = BreakerHalfOpen
	}
	return b.state
}

// Do runs fn unless the breaker is open. A failure in half-open reopens the
// breaker immediately; a success closes it.
func (b *Breaker) Do(fn func() error) error {
	b.mu.Lock()
	switch b.stateLocked() {
	case BreakerOpen:
		b.mu.Unlock()
		return ErrCircuitOpen
	case BreakerHalfOpen:
		// Single trial call; concurrent callers are rejected until it
		// resolves.
		b.state = BreakerOpen
		b.openedAt = time.Now().Add(b.cooldown) // hold open while the trial runs
		b.mu.Unlock()

		err := fn()

		b.mu.Lock()
		if err != nil {
			b.state = BreakerOpen
			b.openedAt = time.Now()
		} else {
			b.state = BreakerClosed
			b.failures = 0
		}
		b.mu.Unlock()
		return err
	default:
		b.mu.Unlock()
	}

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.failures++
		if b.failures >= b.threshold {
			b.state = BreakerOpen
			b.openedAt = time.Now()
		}
		return err
	}
	b.failures = 0
	return nil
}
