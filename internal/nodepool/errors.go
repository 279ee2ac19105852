/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package nodepool

import "errors"

var (
	// ErrNotReady means the pool has not been started or holds no nodes.
	ErrNotReady = errors.New("node pool not ready")

	// ErrNoHealthyNode means no node is currently connected.
	ErrNoHealthyNode = errors.New("no healthy rendering node")

	// ErrNoResults means resolution succeeded but matched nothing.
	ErrNoResults = errors.New("no results")

	// ErrSearchFailed means the resolution call itself errored.
	ErrSearchFailed = errors.New("search failed")

	// ErrNotAPlaylist means the resolved payload was not a playlist.
	ErrNotAPlaylist = errors.New("not a playlist")
)
