/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package lock provides the per-tenant transition mutex registry.
//
// Track transitions are triggered both by direct caller intent (skip) and by
// asynchronous backend events (natural track end). Without mutual exclusion a
// skip and an end event racing on the same tenant can double-advance the
// queue or start two tracks back to back. The registry is an advisory lock:
// acquisition polls a shared flag and gives up after a caller-supplied
// timeout instead of blocking forever.
package lock

import (
	"sync"
	"time"
)

const pollInterval = 50 * time.Millisecond

// Registry holds one advisory lock slot per tenant ID.
type Registry struct {
	mu     sync.Mutex
	locked map[string]bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{locked: make(map[string]bool)}
}

// Acquire attempts to take the tenant's lock, polling until it is free or
// timeout elapses. Returns false on timeout.
func (r *Registry) Acquire(tenantID string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		r.mu.Lock()
		if !r.locked[tenantID] {
			r.locked[tenantID] = true
			r.mu.Unlock()
			return true
		}
		r.mu.Unlock()

		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(pollInterval)
	}
}

// Release unconditionally clears the tenant's lock.
func (r *Registry) Release(tenantID string) {
	r.mu.Lock()
	delete(r.locked, tenantID)
	r.mu.Unlock()
}

// IsLocked reports whether the tenant's lock is currently held.
func (r *Registry) IsLocked(tenantID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.locked[tenantID]
}
