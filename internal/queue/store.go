/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package queue implements the per-tenant playback queue store. It is a pure
// state container: no network calls, no transition logic. Ordering of
// mutations within one tenant is the caller's responsibility (see the lock
// package); the store itself only guards its tenant map.
package queue

import (
	"sync"

	"github.com/friendsincode/bragi/internal/models"
)

// LoopMode controls what happens when a track finishes.
type LoopMode string

const (
	LoopOff   LoopMode = "off"
	LoopTrack LoopMode = "track"
	LoopQueue LoopMode = "queue"
)

const (
	MinVolume     = 0
	MaxVolume     = 1000
	DefaultVolume = 100
)

// tenantQueue is the per-tenant state slot. The queue never contains the
// current track.
type tenantQueue struct {
	tracks    []models.Track
	current   *models.Track
	loopMode  LoopMode
	loopCount int
	volume    int
	skipVotes map[string]struct{}
	replacing bool
}

// Store holds the queues of all tenants, created lazily on first use.
type Store struct {
	mu     sync.RWMutex
	queues map[string]*tenantQueue
}

// NewStore creates an empty queue store.
func NewStore() *Store {
	return &Store{queues: make(map[string]*tenantQueue)}
}

func (s *Store) get(tenantID string) *tenantQueue {
	if q, ok := s.queues[tenantID]; ok {
		return q
	}
	q := &tenantQueue{loopMode: LoopOff, volume: DefaultVolume}
	s.queues[tenantID] = q
	return q
}

// CurrentTrack returns the tenant's current track, or nil.
func (s *Store) CurrentTrack(tenantID string) *models.Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.queues[tenantID]
	if !ok || q.current == nil {
		return nil
	}
	track := *q.current
	return &track
}

// SetCurrentTrack sets (or clears, with nil) the tenant's current track.
func (s *Store) SetCurrentTrack(tenantID string, track *models.Track) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.get(tenantID)
	if track == nil {
		q.current = nil
		return
	}
	copied := *track
	q.current = &copied
}

// NextTrack dequeues and returns the head of the tenant's queue, or nil if
// the queue is empty.
func (s *Store) NextTrack(tenantID string) *models.Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.get(tenantID)
	if len(q.tracks) == 0 {
		return nil
	}
	track := q.tracks[0]
	q.tracks = q.tracks[1:]
	return &track
}

// AddTrack appends a track to the tail of the tenant's queue.
func (s *Store) AddTrack(tenantID string, track models.Track) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.get(tenantID)
	q.tracks = append(q.tracks, track)
}

// Tracks returns a copy of the tenant's queued tracks in order.
func (s *Store) Tracks(tenantID string) []models.Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.queues[tenantID]
	if !ok {
		return nil
	}
	return append([]models.Track(nil), q.tracks...)
}

// Len returns the number of queued tracks (excluding the current track).
func (s *Store) Len(tenantID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.queues[tenantID]
	if !ok {
		return 0
	}
	return len(q.tracks)
}

// LoopMode returns the tenant's loop mode.
func (s *Store) LoopMode(tenantID string) LoopMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.queues[tenantID]
	if !ok {
		return LoopOff
	}
	return q.loopMode
}

// SetLoopMode sets the tenant's loop mode.
func (s *Store) SetLoopMode(tenantID string, mode LoopMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.get(tenantID).loopMode = mode
}

// LoopCount returns how many times the current track has looped.
func (s *Store) LoopCount(tenantID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.queues[tenantID]
	if !ok {
		return 0
	}
	return q.loopCount
}

// IncrementLoopCount bumps the loop counter and returns the new value.
func (s *Store) IncrementLoopCount(tenantID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.get(tenantID)
	q.loopCount++
	return q.loopCount
}

// ResetLoopCount zeroes the loop counter. Called whenever the next distinct
// track begins.
func (s *Store) ResetLoopCount(tenantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.get(tenantID).loopCount = 0
}

// Volume returns the tenant's volume.
func (s *Store) Volume(tenantID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.queues[tenantID]
	if !ok {
		return DefaultVolume
	}
	return q.volume
}

// SetVolume clamps volume into [MinVolume, MaxVolume], stores it, and
// returns the clamped value.
func (s *Store) SetVolume(tenantID string, volume int) int {
	if volume < MinVolume {
		volume = MinVolume
	}
	if volume > MaxVolume {
		volume = MaxVolume
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.get(tenantID).volume = volume
	return volume
}

// VoteSkip records a skip vote for the voter and returns the current number
// of distinct votes. Voting twice is idempotent.
func (s *Store) VoteSkip(tenantID, voter string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.get(tenantID)
	if q.skipVotes == nil {
		q.skipVotes = make(map[string]struct{})
	}
	q.skipVotes[voter] = struct{}{}
	return len(q.skipVotes)
}

// SkipVotes returns the number of active skip votes.
func (s *Store) SkipVotes(tenantID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.queues[tenantID]
	if !ok {
		return 0
	}
	return len(q.skipVotes)
}

// EndSkipVote discards any active skip vote.
func (s *Store) EndSkipVote(tenantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.get(tenantID).skipVotes = nil
}

// SetReplacing marks or clears the transient replacing flag used to suppress
// the backend's end event for a track being explicitly replaced.
func (s *Store) SetReplacing(tenantID string, replacing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.get(tenantID).replacing = replacing
}

// IsReplacing reports whether the replacing flag is set.
func (s *Store) IsReplacing(tenantID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.queues[tenantID]
	if !ok {
		return false
	}
	return q.replacing
}

// Clear empties the tenant's queue, clears the current track, and ends any
// active skip vote. Loop mode and volume survive a clear.
func (s *Store) Clear(tenantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.queues[tenantID]
	if !ok {
		return
	}
	q.tracks = nil
	q.current = nil
	q.loopCount = 0
	q.skipVotes = nil
}

// Teardown drops the tenant's queue entirely. Owned by the session
// lifecycle collaborator, called when the tenant's voice session ends.
func (s *Store) Teardown(tenantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.queues, tenantID)
}
