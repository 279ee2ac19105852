/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package models holds the value types shared across the orchestrator.
package models

import (
	"fmt"
	"time"
)

// Track is an immutable description of a resolved playable item. Encoded is
// an opaque backend token and must be forwarded to the rendering node
// unmodified. Requester is owned by the caller and never interpreted here.
type Track struct {
	Encoded     string `json:"encoded"`
	URI         string `json:"uri"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	DurationMS  int64  `json:"duration_ms"`
	ArtworkURL  string `json:"artwork_url,omitempty"`
	Source      string `json:"source"`
	Requester   string `json:"requester"`
	Popularity  *int   `json:"popularity,omitempty"`
	SearchQuery string `json:"search_query,omitempty"`
}

// Playlist is a named ordered collection of resolved tracks.
type Playlist struct {
	Name   string  `json:"name"`
	Tracks []Track `json:"tracks"`
}

// Duration returns the track length as a time.Duration.
func (t Track) Duration() time.Duration {
	return time.Duration(t.DurationMS) * time.Millisecond
}

// FormattedDuration renders the track length as m:ss or h:mm:ss.
func (t Track) FormattedDuration() string {
	d := t.Duration().Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
