/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package nodepool

import (
	"context"
	"fmt"
	"sync"
)

// Session binds a tenant to a voice channel on one rendering node. Sessions
// stay pinned to the node they were created on; reconnecting a session to a
// different node is not supported.
type Session struct {
	ID             string
	TenantID       string
	VoiceChannelID string

	node *Node

	mu         sync.RWMutex
	paused     bool
	positionMS int64
}

type playCommand struct {
	Encoded string `json:"encoded"`
	Volume  int    `json:"volume"`
}

type pauseCommand struct {
	Paused bool `json:"paused"`
}

type seekCommand struct {
	PositionMS int64 `json:"position_ms"`
}

type volumeCommand struct {
	Volume int `json:"volume"`
}

// NodeName returns the name of the node the session is pinned to.
func (s *Session) NodeName() string { return s.node.name }

// Paused reports whether rendering is suspended.
func (s *Session) Paused() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.paused
}

// PositionMS returns the last reported playback position.
func (s *Session) PositionMS() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.positionMS
}

func (s *Session) setPosition(positionMS int64) {
	s.mu.Lock()
	s.positionMS = positionMS
	s.mu.Unlock()
}

func (s *Session) command(ctx context.Context, verb string, payload any) error {
	path := fmt.Sprintf("/v1/sessions/%s/%s", s.ID, verb)
	return s.node.post(ctx, path, payload, nil)
}

// Play starts rendering the encoded track handle at the given volume.
func (s *Session) Play(ctx context.Context, encoded string, volume int) error {
	if err := s.command(ctx, "play", playCommand{Encoded: encoded, Volume: volume}); err != nil {
		return err
	}
	s.mu.Lock()
	s.paused = false
	s.positionMS = 0
	s.mu.Unlock()
	return nil
}

// Stop stops the currently rendering track. The node acknowledges with a
// track end push event.
func (s *Session) Stop(ctx context.Context) error {
	return s.command(ctx, "stop", nil)
}

// SetPaused suspends or resumes rendering.
func (s *Session) SetPaused(ctx context.Context, paused bool) error {
	if err := s.command(ctx, "pause", pauseCommand{Paused: paused}); err != nil {
		return err
	}
	s.mu.Lock()
	s.paused = paused
	s.mu.Unlock()
	return nil
}

// SeekTo moves the playback position.
func (s *Session) SeekTo(ctx context.Context, positionMS int64) error {
	if err := s.command(ctx, "seek", seekCommand{PositionMS: positionMS}); err != nil {
		return err
	}
	s.setPosition(positionMS)
	return nil
}

// SetVolume applies an absolute volume. Clamping is the queue store's job;
// the value arrives here already bounded.
func (s *Session) SetVolume(ctx context.Context, volume int) error {
	return s.command(ctx, "volume", volumeCommand{Volume: volume})
}

// Disconnect leaves the voice channel and releases the backend player.
func (s *Session) Disconnect(ctx context.Context) error {
	return s.command(ctx, "disconnect", nil)
}
