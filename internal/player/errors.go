/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package player

import (
	"errors"

	"github.com/friendsincode/bragi/internal/nodepool"
	"github.com/friendsincode/bragi/internal/resilience"
)

// Kind classifies a playback failure for the presentation layer.
type Kind string

const (
	KindNoSession                Kind = "no_session"
	KindNoTrack                  Kind = "no_track"
	KindTrackResolutionFailed    Kind = "track_resolution_failed"
	KindNoResults                Kind = "no_results"
	KindSearchBackendFailed      Kind = "search_backend_failed"
	KindPlaylistResolutionFailed Kind = "playlist_resolution_failed"
	KindNotAPlaylist             Kind = "not_a_playlist"
	KindBackendUnavailable       Kind = "backend_unavailable"
	KindBusy                     Kind = "busy"
)

// Error is the typed failure every controller operation returns instead of
// raising. Message is safe to show to end users.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Message
}

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// isResultClassification reports whether err classifies the outcome of a
// resolution the backend completed, as opposed to a backend failure. These
// never count against the circuit breaker.
func isResultClassification(err error) bool {
	return errors.Is(err, nodepool.ErrNoResults) || errors.Is(err, nodepool.ErrNotAPlaylist)
}

// mapSearchErr translates node pool and breaker sentinels into the uniform
// taxonomy. Breaker-open and no-connected-node collapse into one kind so
// callers need a single fallback path.
func mapSearchErr(err error) *Error {
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen),
		errors.Is(err, nodepool.ErrNoHealthyNode),
		errors.Is(err, nodepool.ErrNotReady):
		return newError(KindBackendUnavailable, "audio backend is temporarily unavailable")
	case errors.Is(err, nodepool.ErrNoResults):
		return newError(KindNoResults, "no results found")
	default:
		return newError(KindSearchBackendFailed, "search failed")
	}
}

func mapPlaylistErr(err error) *Error {
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen),
		errors.Is(err, nodepool.ErrNoHealthyNode),
		errors.Is(err, nodepool.ErrNotReady):
		return newError(KindBackendUnavailable, "audio backend is temporarily unavailable")
	case errors.Is(err, nodepool.ErrNoResults):
		return newError(KindNoResults, "no results found")
	case errors.Is(err, nodepool.ErrNotAPlaylist):
		return newError(KindNotAPlaylist, "that link is not a playlist")
	default:
		return newError(KindPlaylistResolutionFailed, "could not load playlist")
	}
}
