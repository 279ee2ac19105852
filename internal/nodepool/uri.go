/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package nodepool

import (
	"net/url"
	"strings"
)

// trackingParams are transient query parameters stripped from absolute URIs
// before resolution so the backend sees a canonical form.
var trackingParams = map[string]struct{}{
	"si":           {},
	"feature":      {},
	"fbclid":       {},
	"gclid":        {},
	"context":      {},
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
	"utm_term":     {},
	"utm_content":  {},
}

// platformSchemes are alternate-platform URIs forwarded to the backend
// as-is, without a search prefix.
var platformSchemes = []string{"spotify:", "deezer:", "applemusic:"}

// isAbsoluteURI reports whether query parses as an http(s) URL.
func isAbsoluteURI(query string) bool {
	u, err := url.Parse(query)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// isPlatformURI reports whether query uses a recognized alternate-platform
// scheme (e.g. spotify:track:...).
func isPlatformURI(query string) bool {
	lower := strings.ToLower(query)
	for _, scheme := range platformSchemes {
		if strings.HasPrefix(lower, scheme) {
			return true
		}
	}
	return false
}

// stripTrackingParams removes transient query parameters from an absolute
// URI. The input is returned unchanged when it does not parse.
func stripTrackingParams(rawURI string) string {
	u, err := url.Parse(rawURI)
	if err != nil {
		return rawURI
	}

	values := u.Query()
	changed := false
	for key := range values {
		if _, ok := trackingParams[strings.ToLower(key)]; ok {
			values.Del(key)
			changed = true
		}
	}
	if !changed {
		return rawURI
	}
	u.RawQuery = values.Encode()
	return u.String()
}

// extractVideoID pulls the video ID out of a known video-platform URL.
// Returns "" when the URL is not recognizable.
func extractVideoID(rawURI string) string {
	u, err := url.Parse(rawURI)
	if err != nil {
		return ""
	}

	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	switch host {
	case "youtube.com", "m.youtube.com", "music.youtube.com":
		if u.Path == "/watch" {
			return u.Query().Get("v")
		}
		for _, prefix := range []string{"/shorts/", "/embed/", "/live/"} {
			if strings.HasPrefix(u.Path, prefix) {
				return strings.SplitN(strings.TrimPrefix(u.Path, prefix), "/", 2)[0]
			}
		}
	case "youtu.be":
		return strings.SplitN(strings.TrimPrefix(u.Path, "/"), "/", 2)[0]
	}
	return ""
}

// videoThumbnailURL synthesizes artwork for a video-platform track when the
// node returned none.
func videoThumbnailURL(videoID string) string {
	return "https://i.ytimg.com/vi/" + videoID + "/hqdefault.jpg"
}
