/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package telemetry defines the Prometheus collectors for the orchestrator.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SearchesTotal counts search resolutions by outcome
	// (ok, no_results, failed, degraded).
	SearchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bragi",
		Name:      "searches_total",
		Help:      "Search resolutions by outcome.",
	}, []string{"outcome"})

	// NodeState exposes each rendering node's connection state
	// (0=disconnected, 1=connecting, 2=connected).
	NodeState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "bragi",
		Name:      "node_state",
		Help:      "Rendering node connection state (0=disconnected, 1=connecting, 2=connected).",
	}, []string{"node"})

	// BreakerState exposes the search circuit breaker state
	// (0=closed, 1=half_open, 2=open).
	BreakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "bragi",
		Name:      "breaker_state",
		Help:      "Search circuit breaker state (0=closed, 1=half_open, 2=open).",
	})

	// TransitionsTotal counts track transitions by trigger
	// (play, next, skip, stop).
	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bragi",
		Name:      "track_transitions_total",
		Help:      "Track transitions by trigger.",
	}, []string{"trigger"})

	// ActiveSessions tracks the number of live voice sessions.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "bragi",
		Name:      "active_sessions",
		Help:      "Number of active voice sessions.",
	})

	// PreservedSnapshots tracks the number of outage snapshots held.
	PreservedSnapshots = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "bragi",
		Name:      "preserved_snapshots",
		Help:      "Preserved playback snapshots awaiting restoration.",
	})

	// LockTimeoutsTotal counts transition lock acquisitions that timed out.
	LockTimeoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bragi",
		Name:      "lock_timeouts_total",
		Help:      "Transition lock acquisitions that timed out.",
	})
)
