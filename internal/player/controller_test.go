/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package player

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/friendsincode/bragi/internal/lock"
	"github.com/friendsincode/bragi/internal/models"
	"github.com/friendsincode/bragi/internal/nodepool"
	"github.com/friendsincode/bragi/internal/queue"
	"github.com/friendsincode/bragi/internal/resilience"
	"github.com/rs/zerolog"
)

type fakeSession struct {
	mu       sync.Mutex
	plays    []string
	volumes  []int
	stops    int
	paused   bool
	position int64
	playErr  error
	stopErr  error
}

func (f *fakeSession) Play(ctx context.Context, encoded string, volume int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.playErr != nil {
		return f.playErr
	}
	f.plays = append(f.plays, encoded)
	f.volumes = append(f.volumes, volume)
	f.paused = false
	f.position = 0
	return nil
}

func (f *fakeSession) Stop(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopErr != nil {
		return f.stopErr
	}
	f.stops++
	return nil
}

func (f *fakeSession) SetPaused(ctx context.Context, paused bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = paused
	return nil
}

func (f *fakeSession) SeekTo(ctx context.Context, positionMS int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.position = positionMS
	return nil
}

func (f *fakeSession) SetVolume(ctx context.Context, volume int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volumes = append(f.volumes, volume)
	return nil
}

func (f *fakeSession) Paused() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paused
}

func (f *fakeSession) PositionMS() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.position
}

func (f *fakeSession) playCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.plays)
}

func (f *fakeSession) lastPlay() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.plays) == 0 {
		return ""
	}
	return f.plays[len(f.plays)-1]
}

type fakeBackend struct {
	mu          sync.Mutex
	ready       bool
	sessions    map[string]*fakeSession
	searchTrack *models.Track
	searchErr   error
	playlist    *models.Playlist
	playlistErr error
	searchCalls int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{ready: true, sessions: make(map[string]*fakeSession)}
}

func (f *fakeBackend) addSession(tenantID string) *fakeSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	session := &fakeSession{}
	f.sessions[tenantID] = session
	return session
}

func (f *fakeBackend) Ready() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready
}

func (f *fakeBackend) Search(ctx context.Context, query, requester string) (*models.Track, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchCalls++
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.searchTrack, nil
}

func (f *fakeBackend) SearchPlaylist(ctx context.Context, uri, requester string) (*models.Playlist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.playlistErr != nil {
		return nil, f.playlistErr
	}
	return f.playlist, nil
}

func (f *fakeBackend) SearchMultiple(ctx context.Context, query string, limit int) []models.Track {
	return nil
}

func (f *fakeBackend) CreateSession(ctx context.Context, tenantID, voiceChannelID string) (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.ready {
		return nil, nodepool.ErrNoHealthyNode
	}
	if session, ok := f.sessions[tenantID]; ok {
		return session, nil
	}
	session := &fakeSession{}
	f.sessions[tenantID] = session
	return session, nil
}

func (f *fakeBackend) DestroySession(ctx context.Context, tenantID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, tenantID)
}

func (f *fakeBackend) Session(tenantID string) (Session, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[tenantID]
	if !ok {
		return nil, false
	}
	return session, true
}

func (f *fakeBackend) SessionStates() []SessionState {
	f.mu.Lock()
	defer f.mu.Unlock()
	states := make([]SessionState, 0, len(f.sessions))
	for tenantID, session := range f.sessions {
		states = append(states, SessionState{
			TenantID:   tenantID,
			Paused:     session.paused,
			PositionMS: session.position,
		})
	}
	return states
}

type testRig struct {
	controller *Controller
	backend    *fakeBackend
	store      *queue.Store
	locks      *lock.Registry
	snapshots  *resilience.SnapshotStore
	tracker    *resilience.Tracker
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	logger := zerolog.Nop()
	backend := newFakeBackend()
	store := queue.NewStore()
	locks := lock.NewRegistry()
	tracker := resilience.NewTracker(logger)
	snapshots := resilience.NewSnapshotStore(nil, logger)

	controller := NewController(Options{
		Backend:      backend,
		Store:        store,
		Locks:        locks,
		Breaker:      resilience.NewBreaker(3, 100*time.Millisecond),
		Tracker:      tracker,
		Snapshots:    snapshots,
		ReplaceGrace: 50 * time.Millisecond,
		LockTimeout:  300 * time.Millisecond,
	}, logger)

	return &testRig{
		controller: controller,
		backend:    backend,
		store:      store,
		locks:      locks,
		snapshots:  snapshots,
		tracker:    tracker,
	}
}

func testTrack(title string) models.Track {
	return models.Track{Encoded: "enc-" + title, Title: title, DurationMS: 180000}
}

func TestPlayTrackRequiresSession(t *testing.T) {
	rig := newTestRig(t)

	err := rig.controller.PlayTrack(context.Background(), "g1", testTrack("a"))
	if err == nil || err.Kind != KindNoSession {
		t.Fatalf("err=%v, want kind no_session", err)
	}
}

func TestPlayTrackRejectsEmptyHandle(t *testing.T) {
	rig := newTestRig(t)
	rig.backend.addSession("g1")

	err := rig.controller.PlayTrack(context.Background(), "g1", models.Track{Title: "broken"})
	if err == nil || err.Kind != KindTrackResolutionFailed {
		t.Fatalf("err=%v, want kind track_resolution_failed", err)
	}
}

func TestPlayTrackStartsPlayback(t *testing.T) {
	rig := newTestRig(t)
	session := rig.backend.addSession("g1")

	if err := rig.controller.PlayTrack(context.Background(), "g1", testTrack("a")); err != nil {
		t.Fatalf("PlayTrack: %v", err)
	}

	if got := session.lastPlay(); got != "enc-a" {
		t.Fatalf("session played %q, want enc-a", got)
	}
	current := rig.store.CurrentTrack("g1")
	if current == nil || current.Title != "a" {
		t.Fatalf("current track=%v, want a", current)
	}
	if rig.store.IsReplacing("g1") {
		t.Fatalf("replacing flag set without a track being replaced")
	}
}

func TestPlayTrackReplacingGraceWindow(t *testing.T) {
	rig := newTestRig(t)
	rig.backend.addSession("g1")

	if err := rig.controller.PlayTrack(context.Background(), "g1", testTrack("a")); err != nil {
		t.Fatalf("PlayTrack a: %v", err)
	}
	if err := rig.controller.PlayTrack(context.Background(), "g1", testTrack("b")); err != nil {
		t.Fatalf("PlayTrack b: %v", err)
	}

	if !rig.store.IsReplacing("g1") {
		t.Fatalf("replacing flag not set while replacing")
	}

	deadline := time.Now().Add(time.Second)
	for rig.store.IsReplacing("g1") {
		if time.Now().After(deadline) {
			t.Fatalf("replacing flag never cleared after grace window")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestPlayNextEmptyQueue(t *testing.T) {
	rig := newTestRig(t)
	rig.backend.addSession("g1")

	result, err := rig.controller.PlayNext(context.Background(), "g1")
	if err != nil {
		t.Fatalf("PlayNext: %v", err)
	}
	if !result.QueueEnded || result.Track != nil {
		t.Fatalf("result=%+v, want queueEnded with nil track", result)
	}
	if rig.store.CurrentTrack("g1") != nil {
		t.Fatalf("current track not cleared on queue end")
	}
}

func TestPlayNextAdvances(t *testing.T) {
	rig := newTestRig(t)
	session := rig.backend.addSession("g1")

	current := testTrack("a")
	rig.store.SetCurrentTrack("g1", &current)
	rig.store.AddTrack("g1", testTrack("b"))

	result, err := rig.controller.PlayNext(context.Background(), "g1")
	if err != nil {
		t.Fatalf("PlayNext: %v", err)
	}
	if result.QueueEnded || result.Looped {
		t.Fatalf("result=%+v, want plain advance", result)
	}
	if result.Track == nil || result.Track.Title != "b" {
		t.Fatalf("advanced to %v, want b", result.Track)
	}
	if got := session.lastPlay(); got != "enc-b" {
		t.Fatalf("session played %q, want enc-b", got)
	}
	if rig.store.Len("g1") != 0 {
		t.Fatalf("queue should be empty after advance")
	}
}

func TestPlayNextLoopTrack(t *testing.T) {
	rig := newTestRig(t)
	session := rig.backend.addSession("g1")

	current := testTrack("a")
	rig.store.SetCurrentTrack("g1", &current)
	rig.store.AddTrack("g1", testTrack("b"))
	rig.store.SetLoopMode("g1", queue.LoopTrack)

	for i := 0; i < 3; i++ {
		result, err := rig.controller.PlayNext(context.Background(), "g1")
		if err != nil {
			t.Fatalf("PlayNext #%d: %v", i, err)
		}
		if !result.Looped || result.Track == nil || result.Track.Title != "a" {
			t.Fatalf("PlayNext #%d result=%+v, want looped a", i, result)
		}
	}

	if rig.store.Len("g1") != 1 {
		t.Fatalf("track loop consumed the queue")
	}
	if got := session.lastPlay(); got != "enc-a" {
		t.Fatalf("session played %q, want enc-a", got)
	}
}

func TestPlayNextLoopQueueSingleTrack(t *testing.T) {
	rig := newTestRig(t)
	session := rig.backend.addSession("g1")

	// Queue-loop re-appends the finished track before popping, so a lone
	// current track cycles onto itself.
	current := testTrack("a")
	rig.store.SetCurrentTrack("g1", &current)
	rig.store.SetLoopMode("g1", queue.LoopQueue)

	result, err := rig.controller.PlayNext(context.Background(), "g1")
	if err != nil {
		t.Fatalf("PlayNext: %v", err)
	}
	if result.QueueEnded {
		t.Fatalf("queue-loop with a current track must not end the queue")
	}
	if result.Track == nil || result.Track.Title != "a" {
		t.Fatalf("replayed %v, want a", result.Track)
	}
	if got := session.lastPlay(); got != "enc-a" {
		t.Fatalf("session played %q, want enc-a", got)
	}
	if rig.store.Len("g1") != 0 {
		t.Fatalf("queue should be empty after the single track cycled")
	}
}

func TestPlayNextLoopQueueCycles(t *testing.T) {
	rig := newTestRig(t)
	rig.backend.addSession("g1")

	current := testTrack("a")
	rig.store.SetCurrentTrack("g1", &current)
	rig.store.AddTrack("g1", testTrack("b"))
	rig.store.SetLoopMode("g1", queue.LoopQueue)

	result, err := rig.controller.PlayNext(context.Background(), "g1")
	if err != nil {
		t.Fatalf("PlayNext: %v", err)
	}
	if result.Track == nil || result.Track.Title != "b" {
		t.Fatalf("advanced to %v, want b", result.Track)
	}

	remaining := rig.store.Tracks("g1")
	if len(remaining) != 1 || remaining[0].Title != "a" {
		t.Fatalf("queue=%v, want finished track a re-appended at tail", remaining)
	}
}

func TestSkipRequiresCurrentTrack(t *testing.T) {
	rig := newTestRig(t)
	rig.backend.addSession("g1")

	_, err := rig.controller.Skip(context.Background(), "g1", 1)
	if err == nil || err.Kind != KindNoTrack {
		t.Fatalf("err=%v, want kind no_track", err)
	}
}

func TestSkipStopsWithoutAdvancing(t *testing.T) {
	rig := newTestRig(t)
	session := rig.backend.addSession("g1")

	current := testTrack("a")
	rig.store.SetCurrentTrack("g1", &current)
	rig.store.AddTrack("g1", testTrack("b"))
	rig.store.AddTrack("g1", testTrack("c"))
	rig.store.VoteSkip("g1", "u1")

	skipped, err := rig.controller.Skip(context.Background(), "g1", 2)
	if err != nil {
		t.Fatalf("Skip: %v", err)
	}
	if skipped != 2 {
		t.Fatalf("skipped=%d, want 2", skipped)
	}

	// Advancing is the end event's job; skip only stops the backend track.
	if session.stops != 1 {
		t.Fatalf("stops=%d, want 1", session.stops)
	}
	if session.playCount() != 0 {
		t.Fatalf("skip must not start a track directly")
	}

	remaining := rig.store.Tracks("g1")
	if len(remaining) != 1 || remaining[0].Title != "c" {
		t.Fatalf("queue=%v, want only c left", remaining)
	}
	if rig.store.SkipVotes("g1") != 0 {
		t.Fatalf("skip vote survived skip")
	}
}

func TestSkipWhileLockedReturnsBusy(t *testing.T) {
	rig := newTestRig(t)
	rig.backend.addSession("g1")
	current := testTrack("a")
	rig.store.SetCurrentTrack("g1", &current)

	rig.locks.Acquire("g1", time.Second)
	defer rig.locks.Release("g1")

	_, err := rig.controller.Skip(context.Background(), "g1", 1)
	if err == nil || err.Kind != KindBusy {
		t.Fatalf("err=%v, want kind busy", err)
	}
}

func TestStopThenGetState(t *testing.T) {
	rig := newTestRig(t)
	rig.backend.addSession("g1")

	current := testTrack("a")
	rig.store.SetCurrentTrack("g1", &current)
	rig.store.AddTrack("g1", testTrack("b"))

	if err := rig.controller.Stop(context.Background(), "g1"); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	state := rig.controller.GetState("g1")
	if !state.HasSession {
		t.Fatalf("session should survive stop")
	}
	if state.IsPlaying || state.CurrentTrack != nil {
		t.Fatalf("state=%+v, want idle with nil current track", state)
	}

	// Idempotent, with or without a session.
	if err := rig.controller.Stop(context.Background(), "g1"); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
	if err := rig.controller.Stop(context.Background(), "other"); err != nil {
		t.Fatalf("Stop without session: %v", err)
	}
}

func TestSeekClamps(t *testing.T) {
	rig := newTestRig(t)
	session := rig.backend.addSession("g1")

	current := testTrack("a") // 180000ms
	rig.store.SetCurrentTrack("g1", &current)

	pos, err := rig.controller.Seek(context.Background(), "g1", -500)
	if err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if pos != 0 {
		t.Fatalf("Seek(-500)=%d, want 0", pos)
	}

	pos, err = rig.controller.Seek(context.Background(), "g1", 999999)
	if err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if pos != 180000 {
		t.Fatalf("Seek(999999)=%d, want 180000", pos)
	}
	if session.PositionMS() != 180000 {
		t.Fatalf("session position=%d, want 180000", session.PositionMS())
	}
}

func TestSeekRequiresCurrentTrack(t *testing.T) {
	rig := newTestRig(t)
	rig.backend.addSession("g1")

	_, err := rig.controller.Seek(context.Background(), "g1", 1000)
	if err == nil || err.Kind != KindNoTrack {
		t.Fatalf("err=%v, want kind no_track", err)
	}
}

func TestSetVolumeClampsAndForwards(t *testing.T) {
	rig := newTestRig(t)
	session := rig.backend.addSession("g1")

	got, err := rig.controller.SetVolume(context.Background(), "g1", 1500)
	if err != nil {
		t.Fatalf("SetVolume: %v", err)
	}
	if got != 1000 {
		t.Fatalf("SetVolume(1500)=%d, want 1000", got)
	}
	session.mu.Lock()
	forwarded := session.volumes[len(session.volumes)-1]
	session.mu.Unlock()
	if forwarded != 1000 {
		t.Fatalf("session received %d, want 1000", forwarded)
	}

	// Without a session the value still persists for the next play.
	got, err = rig.controller.SetVolume(context.Background(), "g2", -10)
	if err != nil {
		t.Fatalf("SetVolume without session: %v", err)
	}
	if got != 0 {
		t.Fatalf("SetVolume(-10)=%d, want 0", got)
	}
}

func TestAdjustVolume(t *testing.T) {
	rig := newTestRig(t)
	rig.backend.addSession("g1")

	if _, err := rig.controller.SetVolume(context.Background(), "g1", 100); err != nil {
		t.Fatalf("SetVolume: %v", err)
	}
	got, err := rig.controller.AdjustVolume(context.Background(), "g1", -30)
	if err != nil {
		t.Fatalf("AdjustVolume: %v", err)
	}
	if got != 70 {
		t.Fatalf("AdjustVolume(-30)=%d, want 70", got)
	}
}

func TestTogglePause(t *testing.T) {
	rig := newTestRig(t)
	rig.backend.addSession("g1")

	paused, err := rig.controller.TogglePause(context.Background(), "g1")
	if err != nil {
		t.Fatalf("TogglePause: %v", err)
	}
	if !paused || !rig.controller.IsPaused("g1") {
		t.Fatalf("expected paused after first toggle")
	}

	paused, err = rig.controller.TogglePause(context.Background(), "g1")
	if err != nil {
		t.Fatalf("TogglePause: %v", err)
	}
	if paused || rig.controller.IsPaused("g1") {
		t.Fatalf("expected unpaused after second toggle")
	}

	if _, err := rig.controller.TogglePause(context.Background(), "missing"); err == nil || err.Kind != KindNoSession {
		t.Fatalf("err=%v, want kind no_session", err)
	}
}

func TestSearchErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"no results", nodepool.ErrNoResults, KindNoResults},
		{"search failed", nodepool.ErrSearchFailed, KindSearchBackendFailed},
		{"no node", nodepool.ErrNoHealthyNode, KindBackendUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rig := newTestRig(t)
			rig.backend.searchErr = tt.err

			_, err := rig.controller.Search(context.Background(), "query", "u1")
			if err == nil || err.Kind != tt.want {
				t.Fatalf("err=%v, want kind %s", err, tt.want)
			}
		})
	}
}

func TestSearchUnavailableWhenNoNodeReady(t *testing.T) {
	rig := newTestRig(t)
	rig.backend.ready = false

	_, err := rig.controller.Search(context.Background(), "query", "u1")
	if err == nil || err.Kind != KindBackendUnavailable {
		t.Fatalf("err=%v, want kind backend_unavailable", err)
	}
	if rig.backend.searchCalls != 0 {
		t.Fatalf("search reached the backend with no node ready")
	}
}

func TestSearchBreakerOpens(t *testing.T) {
	rig := newTestRig(t)
	rig.backend.searchErr = errors.New("boom")

	for i := 0; i < 3; i++ {
		if _, err := rig.controller.Search(context.Background(), "query", "u1"); err == nil {
			t.Fatalf("expected failure #%d", i)
		}
	}

	before := rig.backend.searchCalls
	_, err := rig.controller.Search(context.Background(), "query", "u1")
	if err == nil || err.Kind != KindBackendUnavailable {
		t.Fatalf("err=%v, want kind backend_unavailable from open breaker", err)
	}
	if rig.backend.searchCalls != before {
		t.Fatalf("open breaker still reached the backend")
	}
}

func TestSearchNoResultsDoesNotTripBreaker(t *testing.T) {
	rig := newTestRig(t)
	rig.backend.searchErr = nodepool.ErrNoResults

	// Well past the breaker threshold: matching nothing is a successful
	// call and must never open the circuit.
	for i := 0; i < 4; i++ {
		_, err := rig.controller.Search(context.Background(), "query", "u1")
		if err == nil || err.Kind != KindNoResults {
			t.Fatalf("search #%d err=%v, want kind no_results", i, err)
		}
	}
	if rig.backend.searchCalls != 4 {
		t.Fatalf("searchCalls=%d, want every search to reach the backend", rig.backend.searchCalls)
	}
}

func TestSearchPlaylistNotAPlaylistDoesNotTripBreaker(t *testing.T) {
	rig := newTestRig(t)
	rig.backend.playlistErr = nodepool.ErrNotAPlaylist

	for i := 0; i < 4; i++ {
		_, err := rig.controller.SearchPlaylist(context.Background(), "https://example.com/track", "u1")
		if err == nil || err.Kind != KindNotAPlaylist {
			t.Fatalf("call #%d err=%v, want kind not_a_playlist", i, err)
		}
	}

	// The circuit stayed closed, so a real failure still reaches the
	// backend instead of being rejected outright.
	rig.backend.searchErr = errors.New("boom")
	if _, err := rig.controller.Search(context.Background(), "query", "u1"); err == nil || err.Kind != KindSearchBackendFailed {
		t.Fatalf("err=%v, want kind search_backend_failed with a closed breaker", err)
	}
	if rig.backend.searchCalls != 1 {
		t.Fatalf("searchCalls=%d, want the follow-up search to reach the backend", rig.backend.searchCalls)
	}
}

func TestSearchPlaylistErrorMapping(t *testing.T) {
	rig := newTestRig(t)
	rig.backend.playlistErr = nodepool.ErrNotAPlaylist

	_, err := rig.controller.SearchPlaylist(context.Background(), "https://example.com/track", "u1")
	if err == nil || err.Kind != KindNotAPlaylist {
		t.Fatalf("err=%v, want kind not_a_playlist", err)
	}
}

func TestGetState(t *testing.T) {
	rig := newTestRig(t)
	session := rig.backend.addSession("g1")

	current := testTrack("a")
	rig.store.SetCurrentTrack("g1", &current)
	rig.store.SetVolume("g1", 80)
	session.position = 45000

	state := rig.controller.GetState("g1")
	if !state.HasSession || !state.IsPlaying || state.IsPaused {
		t.Fatalf("state=%+v, want playing", state)
	}
	if state.PositionMS != 45000 || state.Volume != 80 {
		t.Fatalf("state=%+v, want position 45000 volume 80", state)
	}
	if state.CurrentTrack == nil || state.CurrentTrack.Title != "a" {
		t.Fatalf("current track=%v, want a", state.CurrentTrack)
	}

	if got := rig.controller.GetState("missing"); got.HasSession || got.IsPlaying {
		t.Fatalf("state for unknown tenant=%+v, want idle", got)
	}
}

func TestRestoreFromSnapshot(t *testing.T) {
	rig := newTestRig(t)

	snapTrack := testTrack("c")
	rig.snapshots.Preserve(context.Background(), resilience.PreservedSnapshot{
		TenantID:   "g2",
		Track:      &snapTrack,
		PositionMS: 45000,
		Paused:     true,
		Volume:     80,
	})

	if err := rig.controller.Restore(context.Background(), "g2", "chan-1"); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	session, ok := rig.backend.Session("g2")
	if !ok {
		t.Fatalf("restore did not create a session")
	}
	fs := session.(*fakeSession)
	if got := fs.lastPlay(); got != "enc-c" {
		t.Fatalf("restored track %q, want enc-c", got)
	}
	if fs.PositionMS() != 45000 {
		t.Fatalf("restored position=%d, want 45000", fs.PositionMS())
	}
	if !fs.Paused() {
		t.Fatalf("restored session should be paused")
	}
	if rig.store.Volume("g2") != 80 {
		t.Fatalf("restored volume=%d, want 80", rig.store.Volume("g2"))
	}
	if _, ok := rig.snapshots.Get("g2"); ok {
		t.Fatalf("snapshot not cleared after restore")
	}
}

func TestRestoreWithoutSnapshot(t *testing.T) {
	rig := newTestRig(t)

	err := rig.controller.Restore(context.Background(), "g1", "chan-1")
	if err == nil || err.Kind != KindNoTrack {
		t.Fatalf("err=%v, want kind no_track", err)
	}
}
