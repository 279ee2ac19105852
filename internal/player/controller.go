/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package player implements the per-tenant playback controller and the
// dispatcher that feeds backend push events into it. Every operation returns
// a typed *Error instead of raising; the transition lock keeps skips and
// asynchronous track-end events from double-advancing the same tenant.
package player

import (
	"context"
	"time"

	"github.com/friendsincode/bragi/internal/lock"
	"github.com/friendsincode/bragi/internal/models"
	"github.com/friendsincode/bragi/internal/queue"
	"github.com/friendsincode/bragi/internal/resilience"
	"github.com/friendsincode/bragi/internal/telemetry"
	"github.com/rs/zerolog"
)

const nodeDependency = "nodes"

// NextResult reports what playNext decided.
type NextResult struct {
	Track      *models.Track
	Looped     bool
	QueueEnded bool
}

// State is a read-only playback snapshot for one tenant.
type State struct {
	HasSession   bool          `json:"has_session"`
	IsPlaying    bool          `json:"is_playing"`
	IsPaused     bool          `json:"is_paused"`
	PositionMS   int64         `json:"position_ms"`
	CurrentTrack *models.Track `json:"current_track,omitempty"`
	Volume       int           `json:"volume"`
}

// Controller drives playback for all tenants against the rendering backend.
type Controller struct {
	logger    zerolog.Logger
	backend   Backend
	store     *queue.Store
	locks     *lock.Registry
	breaker   *resilience.Breaker
	tracker   *resilience.Tracker
	snapshots *resilience.SnapshotStore
	mirror    QueueMirror

	replaceGrace time.Duration
	lockTimeout  time.Duration
}

// Options carries the controller's collaborators and tuning.
type Options struct {
	Backend      Backend
	Store        *queue.Store
	Locks        *lock.Registry
	Breaker      *resilience.Breaker
	Tracker      *resilience.Tracker
	Snapshots    *resilience.SnapshotStore
	Mirror       QueueMirror
	ReplaceGrace time.Duration
	LockTimeout  time.Duration
}

// NewController creates a playback controller.
func NewController(opts Options, logger zerolog.Logger) *Controller {
	if opts.ReplaceGrace <= 0 {
		opts.ReplaceGrace = time.Second
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = 3 * time.Second
	}
	return &Controller{
		logger:       logger.With().Str("component", "player").Logger(),
		backend:      opts.Backend,
		store:        opts.Store,
		locks:        opts.Locks,
		breaker:      opts.Breaker,
		tracker:      opts.Tracker,
		snapshots:    opts.Snapshots,
		mirror:       opts.Mirror,
		replaceGrace: opts.ReplaceGrace,
		lockTimeout:  opts.LockTimeout,
	}
}

// Connect joins the tenant's voice channel, creating a session if none
// exists.
func (c *Controller) Connect(ctx context.Context, tenantID, voiceChannelID string) *Error {
	if _, err := c.backend.CreateSession(ctx, tenantID, voiceChannelID); err != nil {
		c.logger.Warn().Err(err).Str("tenant_id", tenantID).Msg("session creation failed")
		return newError(KindBackendUnavailable, "audio backend is temporarily unavailable")
	}
	return nil
}

// Disconnect leaves the voice channel and drops the tenant's queue state.
func (c *Controller) Disconnect(ctx context.Context, tenantID string) {
	c.backend.DestroySession(ctx, tenantID)
	c.store.Teardown(tenantID)
	if c.mirror != nil {
		if err := c.mirror.DeleteQueue(ctx, tenantID); err != nil {
			c.logger.Debug().Err(err).Str("tenant_id", tenantID).Msg("queue mirror delete failed")
		}
	}
}

// mirrorQueue pushes the tenant's queue to the mirror. Best effort.
func (c *Controller) mirrorQueue(ctx context.Context, tenantID string) {
	if c.mirror == nil {
		return
	}
	if err := c.mirror.SetQueue(ctx, tenantID, c.store.Tracks(tenantID)); err != nil {
		c.logger.Debug().Err(err).Str("tenant_id", tenantID).Msg("queue mirror write failed")
	}
}

// PlayTrack starts the given track on the tenant's session, replacing the
// current track if one is playing. The replaced track's end event is
// suppressed for a short grace window so it cannot trigger a spurious
// advance.
func (c *Controller) PlayTrack(ctx context.Context, tenantID string, track models.Track) *Error {
	session, ok := c.backend.Session(tenantID)
	if !ok {
		return newError(KindNoSession, "not connected to a voice channel")
	}
	if track.Encoded == "" {
		return newError(KindTrackResolutionFailed, "track cannot be played")
	}

	replacing := c.store.CurrentTrack(tenantID) != nil
	if replacing {
		c.store.SetReplacing(tenantID, true)
	}

	c.store.SetCurrentTrack(tenantID, &track)

	if err := session.Play(ctx, track.Encoded, c.store.Volume(tenantID)); err != nil {
		if replacing {
			c.store.SetReplacing(tenantID, false)
		}
		c.logger.Error().Err(err).Str("tenant_id", tenantID).Str("track", track.Title).Msg("play command failed")
		return newError(KindBackendUnavailable, "audio backend is temporarily unavailable")
	}

	if replacing {
		// Long enough for the old track's end event to arrive and be
		// ignored; bounded so suppression cannot stick.
		time.AfterFunc(c.replaceGrace, func() {
			c.store.SetReplacing(tenantID, false)
		})
	}

	telemetry.TransitionsTotal.WithLabelValues("play").Inc()
	c.logger.Info().Str("tenant_id", tenantID).Str("track", track.Title).Msg("track started")
	return nil
}

// PlayNext advances the tenant to its next track. With loop mode track the
// current track replays without consulting the queue. With loop mode queue
// the finished track is re-appended to the tail before the head is popped,
// so a single-track queue replays that track. An empty queue ends playback
// and leaves the tenant idle.
func (c *Controller) PlayNext(ctx context.Context, tenantID string) (NextResult, *Error) {
	current := c.store.CurrentTrack(tenantID)

	if c.store.LoopMode(tenantID) == queue.LoopTrack && current != nil {
		c.store.IncrementLoopCount(tenantID)
		if err := c.PlayTrack(ctx, tenantID, *current); err != nil {
			return NextResult{}, err
		}
		return NextResult{Track: current, Looped: true}, nil
	}

	c.store.ResetLoopCount(tenantID)

	// Re-append before popping: the finished track goes to the tail first,
	// which makes a single-track queue cycle onto itself.
	if c.store.LoopMode(tenantID) == queue.LoopQueue && current != nil {
		c.store.AddTrack(tenantID, *current)
	}

	next := c.store.NextTrack(tenantID)
	if next == nil {
		c.store.SetCurrentTrack(tenantID, nil)
		telemetry.TransitionsTotal.WithLabelValues("next").Inc()
		return NextResult{QueueEnded: true}, nil
	}

	if err := c.PlayTrack(ctx, tenantID, *next); err != nil {
		return NextResult{}, err
	}
	telemetry.TransitionsTotal.WithLabelValues("next").Inc()
	c.mirrorQueue(ctx, tenantID)
	return NextResult{Track: next}, nil
}

// Skip stops the current track, discarding count-1 additional queued tracks
// first. Advancing happens on the backend's end event for the stopped track,
// never here, so a racing natural end cannot double-advance. Returns how
// many tracks were skipped.
func (c *Controller) Skip(ctx context.Context, tenantID string, count int) (int, *Error) {
	if !c.locks.Acquire(tenantID, c.lockTimeout) {
		telemetry.LockTimeoutsTotal.Inc()
		return 0, newError(KindBusy, "another track transition is in progress")
	}
	defer c.locks.Release(tenantID)

	if c.store.CurrentTrack(tenantID) == nil {
		return 0, newError(KindNoTrack, "nothing is playing")
	}
	session, ok := c.backend.Session(tenantID)
	if !ok {
		return 0, newError(KindNoSession, "not connected to a voice channel")
	}

	c.store.EndSkipVote(tenantID)

	if count < 1 {
		count = 1
	}
	skipped := 1
	for i := 1; i < count; i++ {
		if c.store.NextTrack(tenantID) == nil {
			break
		}
		skipped++
	}

	if err := session.Stop(ctx); err != nil {
		c.logger.Error().Err(err).Str("tenant_id", tenantID).Msg("stop command failed")
		return 0, newError(KindBackendUnavailable, "audio backend is temporarily unavailable")
	}

	telemetry.TransitionsTotal.WithLabelValues("skip").Inc()
	c.mirrorQueue(ctx, tenantID)
	return skipped, nil
}

// TogglePause flips the pause flag and returns the new value.
func (c *Controller) TogglePause(ctx context.Context, tenantID string) (bool, *Error) {
	session, ok := c.backend.Session(tenantID)
	if !ok {
		return false, newError(KindNoSession, "not connected to a voice channel")
	}
	paused := !session.Paused()
	if err := session.SetPaused(ctx, paused); err != nil {
		return false, newError(KindBackendUnavailable, "audio backend is temporarily unavailable")
	}
	return paused, nil
}

// SetPaused suspends or resumes rendering.
func (c *Controller) SetPaused(ctx context.Context, tenantID string, paused bool) *Error {
	session, ok := c.backend.Session(tenantID)
	if !ok {
		return newError(KindNoSession, "not connected to a voice channel")
	}
	if err := session.SetPaused(ctx, paused); err != nil {
		return newError(KindBackendUnavailable, "audio backend is temporarily unavailable")
	}
	return nil
}

// IsPaused reports the session pause flag, false when no session exists.
func (c *Controller) IsPaused(tenantID string) bool {
	session, ok := c.backend.Session(tenantID)
	return ok && session.Paused()
}

// Stop halts playback and clears the tenant's queue. Idempotent; safe to
// call with no session and nothing playing.
func (c *Controller) Stop(ctx context.Context, tenantID string) *Error {
	if session, ok := c.backend.Session(tenantID); ok {
		// Clear state before the stop command so the resulting end event
		// finds an empty queue and no current track.
		c.store.Clear(tenantID)
		if err := session.Stop(ctx); err != nil {
			c.logger.Warn().Err(err).Str("tenant_id", tenantID).Msg("stop command failed")
		}
	} else {
		c.store.Clear(tenantID)
	}

	telemetry.TransitionsTotal.WithLabelValues("stop").Inc()
	if c.mirror != nil {
		if err := c.mirror.DeleteQueue(ctx, tenantID); err != nil {
			c.logger.Debug().Err(err).Str("tenant_id", tenantID).Msg("queue mirror delete failed")
		}
	}
	return nil
}

// Seek moves the playback position, clamped into the current track's
// duration. Returns the clamped position.
func (c *Controller) Seek(ctx context.Context, tenantID string, positionMS int64) (int64, *Error) {
	current := c.store.CurrentTrack(tenantID)
	if current == nil {
		return 0, newError(KindNoTrack, "nothing is playing")
	}
	session, ok := c.backend.Session(tenantID)
	if !ok {
		return 0, newError(KindNoSession, "not connected to a voice channel")
	}

	if positionMS < 0 {
		positionMS = 0
	}
	if positionMS > current.DurationMS {
		positionMS = current.DurationMS
	}

	if err := session.SeekTo(ctx, positionMS); err != nil {
		return 0, newError(KindBackendUnavailable, "audio backend is temporarily unavailable")
	}
	return positionMS, nil
}

// SetVolume clamps and stores the tenant's volume, forwarding it to the
// session when one exists. The stored value survives without a session and
// applies to the next play.
func (c *Controller) SetVolume(ctx context.Context, tenantID string, volume int) (int, *Error) {
	clamped := c.store.SetVolume(tenantID, volume)
	if session, ok := c.backend.Session(tenantID); ok {
		if err := session.SetVolume(ctx, clamped); err != nil {
			return clamped, newError(KindBackendUnavailable, "audio backend is temporarily unavailable")
		}
	}
	return clamped, nil
}

// AdjustVolume applies a relative delta to the tenant's volume.
func (c *Controller) AdjustVolume(ctx context.Context, tenantID string, delta int) (int, *Error) {
	return c.SetVolume(ctx, tenantID, c.store.Volume(tenantID)+delta)
}

// Enqueue appends a track to the tenant's queue.
func (c *Controller) Enqueue(ctx context.Context, tenantID string, track models.Track) {
	c.store.AddTrack(tenantID, track)
	c.mirrorQueue(ctx, tenantID)
}

// Queue returns a copy of the tenant's queued tracks.
func (c *Controller) Queue(tenantID string) []models.Track {
	return c.store.Tracks(tenantID)
}

// SetLoopMode sets the tenant's loop mode.
func (c *Controller) SetLoopMode(tenantID string, mode queue.LoopMode) {
	c.store.SetLoopMode(tenantID, mode)
}

// LoopMode returns the tenant's loop mode.
func (c *Controller) LoopMode(tenantID string) queue.LoopMode {
	return c.store.LoopMode(tenantID)
}

// VoteSkip records a skip vote and returns the distinct vote count.
func (c *Controller) VoteSkip(tenantID, voter string) int {
	return c.store.VoteSkip(tenantID, voter)
}

// Search resolves a query to a single track through the circuit breaker.
func (c *Controller) Search(ctx context.Context, query, requester string) (*models.Track, *Error) {
	if !c.tracker.IsAvailable(nodeDependency, c.backend.Ready()) {
		return nil, newError(KindBackendUnavailable, "audio backend is temporarily unavailable")
	}

	var track *models.Track
	var resolveErr error
	err := c.breaker.Do(func() error {
		track, resolveErr = c.backend.Search(ctx, query, requester)
		if isResultClassification(resolveErr) {
			// The backend answered; matching nothing is not a failure.
			return nil
		}
		return resolveErr
	})
	telemetry.BreakerState.Set(breakerGauge(c.breaker.State()))
	if err == nil {
		err = resolveErr
	}
	if err != nil {
		return nil, mapSearchErr(err)
	}
	return track, nil
}

// SearchPlaylist resolves a playlist URI through the circuit breaker.
func (c *Controller) SearchPlaylist(ctx context.Context, uri, requester string) (*models.Playlist, *Error) {
	if !c.tracker.IsAvailable(nodeDependency, c.backend.Ready()) {
		return nil, newError(KindBackendUnavailable, "audio backend is temporarily unavailable")
	}

	var playlist *models.Playlist
	var resolveErr error
	err := c.breaker.Do(func() error {
		playlist, resolveErr = c.backend.SearchPlaylist(ctx, uri, requester)
		if isResultClassification(resolveErr) {
			return nil
		}
		return resolveErr
	})
	telemetry.BreakerState.Set(breakerGauge(c.breaker.State()))
	if err == nil {
		err = resolveErr
	}
	if err != nil {
		return nil, mapPlaylistErr(err)
	}
	return playlist, nil
}

// SearchMultiple resolves suggestion candidates. Best effort: empty on any
// failure, and never counted against the breaker.
func (c *Controller) SearchMultiple(ctx context.Context, query string, limit int) []models.Track {
	if !c.tracker.IsAvailable(nodeDependency, c.backend.Ready()) {
		return nil
	}
	return c.backend.SearchMultiple(ctx, query, limit)
}

// GetState returns a read-only playback snapshot. Not lock-sensitive: the
// result may trail an in-flight transition by one step.
func (c *Controller) GetState(tenantID string) State {
	state := State{
		CurrentTrack: c.store.CurrentTrack(tenantID),
		Volume:       c.store.Volume(tenantID),
	}
	if session, ok := c.backend.Session(tenantID); ok {
		state.HasSession = true
		state.IsPaused = session.Paused()
		state.PositionMS = session.PositionMS()
	}
	state.IsPlaying = state.HasSession && !state.IsPaused && state.CurrentTrack != nil
	return state
}

// Restore resumes playback from the tenant's preserved outage snapshot.
// Restoration is explicit because voice re-join needs a channel ID only the
// caller holds. The snapshot is cleared on success.
func (c *Controller) Restore(ctx context.Context, tenantID, voiceChannelID string) *Error {
	if c.snapshots == nil {
		return newError(KindNoTrack, "no preserved playback state")
	}
	snap, ok := c.snapshots.Get(tenantID)
	if !ok || snap.Track == nil {
		return newError(KindNoTrack, "no preserved playback state")
	}

	if err := c.Connect(ctx, tenantID, voiceChannelID); err != nil {
		return err
	}

	c.store.SetVolume(tenantID, snap.Volume)
	if err := c.PlayTrack(ctx, tenantID, *snap.Track); err != nil {
		return err
	}
	if snap.PositionMS > 0 {
		if _, err := c.Seek(ctx, tenantID, snap.PositionMS); err != nil {
			return err
		}
	}
	if snap.Paused {
		if err := c.SetPaused(ctx, tenantID, true); err != nil {
			return err
		}
	}

	c.snapshots.Clear(ctx, tenantID)
	telemetry.PreservedSnapshots.Set(float64(c.snapshots.Count()))
	c.logger.Info().Str("tenant_id", tenantID).Str("track", snap.Track.Title).Msg("playback restored from snapshot")
	return nil
}

func breakerGauge(state resilience.BreakerState) float64 {
	switch state {
	case resilience.BreakerHalfOpen:
		return 1
	case resilience.BreakerOpen:
		return 2
	default:
		return 0
	}
}
