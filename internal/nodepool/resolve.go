/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package nodepool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/friendsincode/bragi/internal/models"
	"github.com/friendsincode/bragi/internal/telemetry"
)

const (
	loadTypeTrack    = "track"
	loadTypePlaylist = "playlist"
	loadTypeSearch   = "search"
	loadTypeEmpty    = "empty"
	loadTypeError    = "error"
)

type loadRequest struct {
	Identifier string `json:"identifier"`
}

type loadResult struct {
	LoadType string          `json:"load_type"`
	Data     json.RawMessage `json:"data"`
}

type trackInfo struct {
	URI        string `json:"uri"`
	Title      string `json:"title"`
	Author     string `json:"author"`
	DurationMS int64  `json:"duration_ms"`
	ArtworkURL string `json:"artwork_url"`
	Source     string `json:"source"`
}

type trackPayload struct {
	Encoded string    `json:"encoded"`
	Info    trackInfo `json:"info"`
}

type playlistPayload struct {
	Name   string         `json:"name"`
	Tracks []trackPayload `json:"tracks"`
}

func (p *Pool) loadTracks(ctx context.Context, identifier string) (*loadResult, error) {
	node := p.healthyNode()
	if node == nil {
		return nil, ErrNoHealthyNode
	}

	var result loadResult
	if err := node.post(ctx, "/v1/loadtracks", loadRequest{Identifier: identifier}, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}
	return &result, nil
}

// normalizeQuery turns raw user input into a backend identifier. Absolute
// URIs pass through with tracking parameters stripped; alternate-platform
// URIs pass through untouched; anything else becomes a prefixed search on
// the given platform.
func (p *Pool) normalizeQuery(query, platform string) (identifier string, prefixed bool) {
	query = strings.TrimSpace(query)
	if isAbsoluteURI(query) {
		return stripTrackingParams(query), false
	}
	if isPlatformURI(query) {
		return query, false
	}
	return platform + ":" + query, true
}

func (p *Pool) toTrack(payload trackPayload, requester, searchQuery string) models.Track {
	track := models.Track{
		Encoded:     payload.Encoded,
		URI:         payload.Info.URI,
		Title:       payload.Info.Title,
		Author:      payload.Info.Author,
		DurationMS:  payload.Info.DurationMS,
		ArtworkURL:  payload.Info.ArtworkURL,
		Source:      payload.Info.Source,
		Requester:   requester,
		SearchQuery: searchQuery,
	}
	if track.ArtworkURL == "" {
		if id := extractVideoID(track.URI); id != "" {
			track.ArtworkURL = videoThumbnailURL(id)
		}
	}
	return track
}

func decodeTracks(result *loadResult) ([]trackPayload, error) {
	switch result.LoadType {
	case loadTypeTrack:
		var payload trackPayload
		if err := json.Unmarshal(result.Data, &payload); err != nil {
			return nil, fmt.Errorf("%w: decode track: %v", ErrSearchFailed, err)
		}
		return []trackPayload{payload}, nil
	case loadTypeSearch:
		var payloads []trackPayload
		if err := json.Unmarshal(result.Data, &payloads); err != nil {
			return nil, fmt.Errorf("%w: decode search results: %v", ErrSearchFailed, err)
		}
		return payloads, nil
	case loadTypePlaylist:
		var payload playlistPayload
		if err := json.Unmarshal(result.Data, &payload); err != nil {
			return nil, fmt.Errorf("%w: decode playlist: %v", ErrSearchFailed, err)
		}
		return payload.Tracks, nil
	case loadTypeEmpty:
		return nil, ErrNoResults
	case loadTypeError:
		return nil, fmt.Errorf("%w: %s", ErrSearchFailed, string(result.Data))
	default:
		return nil, fmt.Errorf("%w: unknown load type %q", ErrSearchFailed, result.LoadType)
	}
}

// Search resolves a query or URI to a single track. Plain-text queries that
// come back empty (or fail) on the default platform are retried once on the
// fallback platform; URIs are never retried.
func (p *Pool) Search(ctx context.Context, query, requester string) (*models.Track, error) {
	identifier, prefixed := p.normalizeQuery(query, p.defaultPlatform)

	result, err := p.loadTracks(ctx, identifier)
	var payloads []trackPayload
	if err == nil {
		payloads, err = decodeTracks(result)
	}
	if err == nil && len(payloads) == 0 {
		// A search load type can carry zero tracks; treat it like an
		// empty load so the fallback fires.
		err = ErrNoResults
	}

	if err != nil && prefixed && p.fallbackPlatform != "" {
		fallbackID, _ := p.normalizeQuery(query, p.fallbackPlatform)
		if result, ferr := p.loadTracks(ctx, fallbackID); ferr == nil {
			if fallbackPayloads, derr := decodeTracks(result); derr == nil && len(fallbackPayloads) > 0 {
				payloads, err = fallbackPayloads, nil
			}
		}
	}

	if err != nil {
		if errors.Is(err, ErrNoResults) {
			telemetry.SearchesTotal.WithLabelValues("no_results").Inc()
		} else {
			telemetry.SearchesTotal.WithLabelValues("failed").Inc()
		}
		return nil, err
	}

	telemetry.SearchesTotal.WithLabelValues("ok").Inc()
	track := p.toTrack(payloads[0], requester, query)
	return &track, nil
}

// SearchPlaylist resolves a URI to a playlist. Non-playlist payloads are
// rejected rather than coerced.
func (p *Pool) SearchPlaylist(ctx context.Context, uri, requester string) (*models.Playlist, error) {
	identifier, _ := p.normalizeQuery(uri, p.defaultPlatform)

	result, err := p.loadTracks(ctx, identifier)
	if err != nil {
		telemetry.SearchesTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	switch result.LoadType {
	case loadTypePlaylist:
	case loadTypeEmpty:
		telemetry.SearchesTotal.WithLabelValues("no_results").Inc()
		return nil, ErrNoResults
	case loadTypeError:
		telemetry.SearchesTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("%w: %s", ErrSearchFailed, string(result.Data))
	default:
		telemetry.SearchesTotal.WithLabelValues("failed").Inc()
		return nil, ErrNotAPlaylist
	}

	var payload playlistPayload
	if err := json.Unmarshal(result.Data, &payload); err != nil {
		telemetry.SearchesTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("%w: decode playlist: %v", ErrSearchFailed, err)
	}
	if len(payload.Tracks) == 0 {
		telemetry.SearchesTotal.WithLabelValues("no_results").Inc()
		return nil, ErrNoResults
	}

	playlist := &models.Playlist{
		Name:   payload.Name,
		Tracks: make([]models.Track, 0, len(payload.Tracks)),
	}
	for _, tp := range payload.Tracks {
		playlist.Tracks = append(playlist.Tracks, p.toTrack(tp, requester, ""))
	}

	telemetry.SearchesTotal.WithLabelValues("ok").Inc()
	return playlist, nil
}

// SearchMultiple resolves a query to up to limit candidate tracks. It never
// fails: any resolution problem yields an empty slice, since pickers degrade
// gracefully to "no suggestions".
func (p *Pool) SearchMultiple(ctx context.Context, query string, limit int) []models.Track {
	identifier, _ := p.normalizeQuery(query, p.defaultPlatform)

	result, err := p.loadTracks(ctx, identifier)
	if err != nil {
		telemetry.SearchesTotal.WithLabelValues("degraded").Inc()
		return nil
	}

	payloads, err := decodeTracks(result)
	if err != nil {
		telemetry.SearchesTotal.WithLabelValues("degraded").Inc()
		return nil
	}

	if limit > 0 && len(payloads) > limit {
		payloads = payloads[:limit]
	}

	tracks := make([]models.Track, 0, len(payloads))
	for _, tp := range payloads {
		tracks = append(tracks, p.toTrack(tp, "", query))
	}
	telemetry.SearchesTotal.WithLabelValues("ok").Inc()
	return tracks
}
