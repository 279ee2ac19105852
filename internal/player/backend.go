/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package player

import (
	"context"

	"github.com/friendsincode/bragi/internal/models"
	"github.com/friendsincode/bragi/internal/nodepool"
)

// Session is the slice of a voice session the controller drives.
type Session interface {
	Play(ctx context.Context, encoded string, volume int) error
	Stop(ctx context.Context) error
	SetPaused(ctx context.Context, paused bool) error
	SeekTo(ctx context.Context, positionMS int64) error
	SetVolume(ctx context.Context, volume int) error
	Paused() bool
	PositionMS() int64
}

// SessionState is a point-in-time view of one active session, used when
// snapshotting playback across an outage.
type SessionState struct {
	TenantID   string
	Paused     bool
	PositionMS int64
}

// Backend is the node pool surface the controller depends on.
type Backend interface {
	Ready() bool
	Search(ctx context.Context, query, requester string) (*models.Track, error)
	SearchPlaylist(ctx context.Context, uri, requester string) (*models.Playlist, error)
	SearchMultiple(ctx context.Context, query string, limit int) []models.Track
	CreateSession(ctx context.Context, tenantID, voiceChannelID string) (Session, error)
	DestroySession(ctx context.Context, tenantID string)
	Session(tenantID string) (Session, bool)
	SessionStates() []SessionState
}

// QueueMirror receives best-effort copies of queue mutations for
// cross-process visibility. Implemented by the Redis cache; may be absent.
type QueueMirror interface {
	SetQueue(ctx context.Context, tenantID string, tracks any) error
	DeleteQueue(ctx context.Context, tenantID string) error
}

// poolBackend adapts *nodepool.Pool to the Backend interface.
type poolBackend struct {
	pool *nodepool.Pool
}

// NewPoolBackend wraps the node pool for use by the controller.
func NewPoolBackend(pool *nodepool.Pool) Backend {
	return &poolBackend{pool: pool}
}

func (b *poolBackend) Ready() bool { return b.pool.Ready() }

func (b *poolBackend) Search(ctx context.Context, query, requester string) (*models.Track, error) {
	return b.pool.Search(ctx, query, requester)
}

func (b *poolBackend) SearchPlaylist(ctx context.Context, uri, requester string) (*models.Playlist, error) {
	return b.pool.SearchPlaylist(ctx, uri, requester)
}

func (b *poolBackend) SearchMultiple(ctx context.Context, query string, limit int) []models.Track {
	return b.pool.SearchMultiple(ctx, query, limit)
}

func (b *poolBackend) CreateSession(ctx context.Context, tenantID, voiceChannelID string) (Session, error) {
	session, err := b.pool.CreateSession(ctx, tenantID, voiceChannelID)
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (b *poolBackend) DestroySession(ctx context.Context, tenantID string) {
	b.pool.DestroySession(ctx, tenantID)
}

func (b *poolBackend) Session(tenantID string) (Session, bool) {
	session := b.pool.GetSession(tenantID)
	if session == nil {
		return nil, false
	}
	return session, true
}

func (b *poolBackend) SessionStates() []SessionState {
	sessions := b.pool.Sessions()
	states := make([]SessionState, 0, len(sessions))
	for _, session := range sessions {
		states = append(states, SessionState{
			TenantID:   session.TenantID,
			Paused:     session.Paused(),
			PositionMS: session.PositionMS(),
		})
	}
	return states
}
