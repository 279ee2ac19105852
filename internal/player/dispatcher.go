/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package player

import (
	"context"
	"time"

	"github.com/friendsincode/bragi/internal/events"
	"github.com/friendsincode/bragi/internal/lock"
	"github.com/friendsincode/bragi/internal/queue"
	"github.com/friendsincode/bragi/internal/resilience"
	"github.com/friendsincode/bragi/internal/telemetry"
	"github.com/rs/zerolog"
)

// Dispatcher feeds backend push events into the controller. Track ends
// advance playback under the transition lock, and node lifecycle events
// drive outage snapshotting and recovery sweeps. Funnelling every
// asynchronous origin through here keeps the lock discipline uniform with
// direct caller invocations.
type Dispatcher struct {
	logger     zerolog.Logger
	bus        *events.Bus
	controller *Controller
	backend    Backend
	store      *queue.Store
	locks      *lock.Registry
	snapshots  *resilience.SnapshotStore
	tracker    *resilience.Tracker

	lockTimeout    time.Duration
	snapshotMaxAge time.Duration

	clusterUp bool
	sawOutage bool
}

// DispatcherOptions carries the dispatcher's collaborators and tuning.
type DispatcherOptions struct {
	Bus            *events.Bus
	Controller     *Controller
	Backend        Backend
	Store          *queue.Store
	Locks          *lock.Registry
	Snapshots      *resilience.SnapshotStore
	Tracker        *resilience.Tracker
	LockTimeout    time.Duration
	SnapshotMaxAge time.Duration
}

// NewDispatcher creates a dispatcher. Run must be called to start it.
func NewDispatcher(opts DispatcherOptions, logger zerolog.Logger) *Dispatcher {
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = 5 * time.Second
	}
	if opts.SnapshotMaxAge <= 0 {
		opts.SnapshotMaxAge = 30 * time.Minute
	}
	return &Dispatcher{
		logger:         logger.With().Str("component", "dispatcher").Logger(),
		bus:            opts.Bus,
		controller:     opts.Controller,
		backend:        opts.Backend,
		store:          opts.Store,
		locks:          opts.Locks,
		snapshots:      opts.Snapshots,
		tracker:        opts.Tracker,
		lockTimeout:    opts.LockTimeout,
		snapshotMaxAge: opts.SnapshotMaxAge,
	}
}

// Run processes backend events until context cancellation.
func (d *Dispatcher) Run(ctx context.Context) {
	trackEnd := d.bus.Subscribe(events.EventTrackEnd)
	trackException := d.bus.Subscribe(events.EventTrackException)
	nodeReady := d.bus.Subscribe(events.EventNodeReady)
	nodeDown := d.bus.Subscribe(events.EventNodeDisconnected)
	nodeErr := d.bus.Subscribe(events.EventNodeError)

	d.logger.Info().Msg("event dispatcher started")

	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-trackEnd:
			d.handleTrackEnd(ctx, payload)
		case payload := <-trackException:
			d.handleTrackException(ctx, payload)
		case payload := <-nodeReady:
			d.handleNodeReady(ctx, payload)
		case payload := <-nodeDown:
			d.handleNodeDisconnected(ctx, payload)
		case payload := <-nodeErr:
			d.handleNodeError(payload)
		}
	}
}

func (d *Dispatcher) handleTrackEnd(ctx context.Context, payload events.Payload) {
	tenantID := payload.String("tenant_id")
	if tenantID == "" {
		return
	}

	if d.store.IsReplacing(tenantID) {
		d.logger.Debug().Str("tenant_id", tenantID).Msg("end event for replaced track ignored")
		return
	}

	d.advance(ctx, tenantID)
}

func (d *Dispatcher) handleTrackException(ctx context.Context, payload events.Payload) {
	tenantID := payload.String("tenant_id")
	if tenantID == "" {
		return
	}

	if d.store.IsReplacing(tenantID) {
		d.logger.Debug().Str("tenant_id", tenantID).Msg("exception for replaced track ignored")
		return
	}

	d.logger.Warn().
		Str("tenant_id", tenantID).
		Str("error", payload.String("error")).
		Msg("track exception, advancing")

	d.advance(ctx, tenantID)
}

// advance runs the natural-end path for one tenant under the transition
// lock.
func (d *Dispatcher) advance(ctx context.Context, tenantID string) {
	if !d.locks.Acquire(tenantID, d.lockTimeout) {
		telemetry.LockTimeoutsTotal.Inc()
		d.logger.Warn().Str("tenant_id", tenantID).Msg("transition lock timeout, end event dropped")
		return
	}
	defer d.locks.Release(tenantID)

	result, err := d.controller.PlayNext(ctx, tenantID)
	if err != nil {
		d.logger.Error().Str("tenant_id", tenantID).Str("kind", string(err.Kind)).Msg("advance failed")
		return
	}
	if result.QueueEnded {
		d.logger.Info().Str("tenant_id", tenantID).Msg("queue ended")
	}
}

func (d *Dispatcher) handleNodeDisconnected(ctx context.Context, payload events.Payload) {
	if payload.Int("connected_count") > 0 {
		return
	}
	if !d.clusterUp {
		return
	}
	d.clusterUp = false
	d.sawOutage = true

	d.logger.Warn().Msg("last rendering node disconnected, preserving playback state")
	d.captureAll(ctx)
	d.tracker.SetStatus(nodeDependency, resilience.StatusUnavailable)
	d.bus.Publish(events.EventClusterOutage, events.Payload{
		"preserved": d.snapshots.Count(),
	})
}

// handleNodeError marks the node dependency degraded: the cluster is
// reachable but erroring. A full outage outranks it; the next node ready
// event restores healthy.
func (d *Dispatcher) handleNodeError(payload events.Payload) {
	if d.tracker.Status(nodeDependency) == resilience.StatusUnavailable {
		return
	}
	d.logger.Warn().
		Str("node", payload.String("node")).
		Str("error", payload.String("error")).
		Msg("node reported an error")
	d.tracker.SetStatus(nodeDependency, resilience.StatusDegraded)
}

func (d *Dispatcher) handleNodeReady(ctx context.Context, payload events.Payload) {
	if d.clusterUp {
		if d.tracker.Status(nodeDependency) == resilience.StatusDegraded {
			d.tracker.SetStatus(nodeDependency, resilience.StatusHealthy)
		}
		return
	}
	d.clusterUp = true

	if !d.sawOutage {
		// First connect of the process; nothing to recover.
		d.logger.Info().Str("node", payload.String("node")).Msg("rendering cluster online")
		return
	}
	d.sawOutage = false

	swept := d.snapshots.Sweep(ctx, d.snapshotMaxAge)
	telemetry.PreservedSnapshots.Set(float64(d.snapshots.Count()))
	d.tracker.SetStatus(nodeDependency, resilience.StatusHealthy)

	d.logger.Info().
		Str("node", payload.String("node")).
		Int("swept", swept).
		Int("restorable", d.snapshots.Count()).
		Msg("rendering cluster recovered")

	d.bus.Publish(events.EventClusterRecovered, events.Payload{
		"node":       payload.String("node"),
		"restorable": d.snapshots.Count(),
	})
}

// captureAll writes a preserved snapshot for every tenant with an active
// session.
func (d *Dispatcher) captureAll(ctx context.Context) {
	for _, state := range d.backend.SessionStates() {
		d.snapshots.Preserve(ctx, resilience.PreservedSnapshot{
			TenantID:   state.TenantID,
			Track:      d.store.CurrentTrack(state.TenantID),
			PositionMS: state.PositionMS,
			Paused:     state.Paused,
			Volume:     d.store.Volume(state.TenantID),
		})
	}
	telemetry.PreservedSnapshots.Set(float64(d.snapshots.Count()))
}
