/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/friendsincode/bragi/internal/models"
	"github.com/rs/zerolog"
)

// PreservedSnapshot records a tenant's playback state at outage time.
// Restoration is explicit: voice re-join needs caller-held identifiers this
// layer does not own.
type PreservedSnapshot struct {
	TenantID   string        `json:"tenant_id"`
	Timestamp  time.Time     `json:"timestamp"`
	Track      *models.Track `json:"track,omitempty"`
	PositionMS int64         `json:"position_ms"`
	Paused     bool          `json:"paused"`
	Volume     int           `json:"volume"`
}

// SnapshotMirror is the optional write-through target for snapshots.
type SnapshotMirror interface {
	SetSnapshot(ctx context.Context, tenantID string, snapshot any) error
	DeleteSnapshot(ctx context.Context, tenantID string) error
}

// SnapshotStore holds preserved snapshots keyed by tenant. The in-memory map
// is authoritative; the mirror is best effort.
type SnapshotStore struct {
	logger zerolog.Logger
	mirror SnapshotMirror

	mu        sync.RWMutex
	snapshots map[string]PreservedSnapshot
}

// NewSnapshotStore creates a snapshot store. mirror may be nil.
func NewSnapshotStore(mirror SnapshotMirror, logger zerolog.Logger) *SnapshotStore {
	return &SnapshotStore{
		logger:    logger.With().Str("component", "snapshots").Logger(),
		mirror:    mirror,
		snapshots: make(map[string]PreservedSnapshot),
	}
}

// Preserve stores a snapshot for the tenant, stamping it with the current
// time if unset.
func (s *SnapshotStore) Preserve(ctx context.Context, snap PreservedSnapshot) {
	if snap.Timestamp.IsZero() {
		snap.Timestamp = time.Now()
	}

	s.mu.Lock()
	s.snapshots[snap.TenantID] = snap
	s.mu.Unlock()

	title := ""
	if snap.Track != nil {
		title = snap.Track.Title
	}
	s.logger.Info().
		Str("tenant_id", snap.TenantID).
		Str("track", title).
		Int64("position_ms", snap.PositionMS).
		Msg("playback state preserved")

	if s.mirror != nil {
		if err := s.mirror.SetSnapshot(ctx, snap.TenantID, snap); err != nil {
			s.logger.Debug().Err(err).Str("tenant_id", snap.TenantID).Msg("snapshot mirror write failed")
		}
	}
}

// Get returns the tenant's preserved snapshot, if any.
func (s *SnapshotStore) Get(tenantID string) (PreservedSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[tenantID]
	return snap, ok
}

// All returns a copy of every preserved snapshot.
func (s *SnapshotStore) All() []PreservedSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]PreservedSnapshot, 0, len(s.snapshots))
	for _, snap := range s.snapshots {
		out = append(out, snap)
	}
	return out
}

// Count returns the number of preserved snapshots.
func (s *SnapshotStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snapshots)
}

// Clear discards a tenant's snapshot after the caller restored it.
func (s *SnapshotStore) Clear(ctx context.Context, tenantID string) {
	s.mu.Lock()
	delete(s.snapshots, tenantID)
	s.mu.Unlock()

	if s.mirror != nil {
		if err := s.mirror.DeleteSnapshot(ctx, tenantID); err != nil {
			s.logger.Debug().Err(err).Str("tenant_id", tenantID).Msg("snapshot mirror delete failed")
		}
	}
}

// Sweep discards snapshots older than maxAge and returns how many were
// dropped. Called when a node becomes ready again.
func (s *SnapshotStore) Sweep(ctx context.Context, maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	s.mu.Lock()
	var stale []string
	for tenantID, snap := range s.snapshots {
		if snap.Timestamp.Before(cutoff) {
			stale = append(stale, tenantID)
		}
	}
	for _, tenantID := range stale {
		delete(s.snapshots, tenantID)
	}
	s.mu.Unlock()

	for _, tenantID := range stale {
		s.logger.Info().Str("tenant_id", tenantID).Msg("discarding stale preserved snapshot")
		if s.mirror != nil {
			if err := s.mirror.DeleteSnapshot(ctx, tenantID); err != nil {
				s.logger.Debug().Err(err).Str("tenant_id", tenantID).Msg("snapshot mirror delete failed")
			}
		}
	}

	return len(stale)
}
