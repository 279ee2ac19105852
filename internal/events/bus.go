/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import "sync"

// EventType enumerates event categories.
type EventType string

const (
	// Node lifecycle events emitted by the pool.
	EventNodeReady        EventType = "node.ready"
	EventNodeDisconnected EventType = "node.disconnected"
	EventNodeError        EventType = "node.error"

	// Per-session player events pushed by the backend.
	EventTrackEnd       EventType = "player.track_end"
	EventTrackException EventType = "player.track_exception"

	// Cluster-wide availability transitions.
	EventClusterOutage    EventType = "cluster.outage"
	EventClusterRecovered EventType = "cluster.recovered"

	// Session lifecycle.
	EventSessionCreated   EventType = "session.created"
	EventSessionDestroyed EventType = "session.destroyed"
)

// Payload generic event payload.
type Payload map[string]any

// String returns the payload value under key if it is a string.
func (p Payload) String(key string) string {
	s, _ := p[key].(string)
	return s
}

// Int returns the payload value under key if it is numeric.
func (p Payload) Int(key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// Subscriber receives event payloads.
type Subscriber chan Payload

// Bus implements a simple in-process pubsub. Backend push events and
// internal health transitions both travel through it so the playback
// controller sees one uniform callback origin.
type Bus struct {
	mu   sync.RWMutex
	subs map[EventType][]Subscriber
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[EventType][]Subscriber)}
}

// Subscribe registers a subscriber for event type.
func (b *Bus) Subscribe(eventType EventType) Subscriber {
	ch := make(Subscriber, 16)
	b.mu.Lock()
	b.subs[eventType] = append(b.subs[eventType], ch)
	b.mu.Unlock()
	return ch
}

// Publish sends payload to subscribers. Slow subscribers drop events rather
// than block the publisher.
func (b *Bus) Publish(eventType EventType, payload Payload) {
	b.mu.RLock()
	subs := append([]Subscriber(nil), b.subs[eventType]...)
	b.mu.RUnlock()
	for _, sub := range subs {
		select {
		case sub <- payload:
		default:
		}
	}
}

// Unsubscribe removes the subscriber.
func (b *Bus) Unsubscribe(eventType EventType, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[eventType]
	for i, candidate := range subs {
		if candidate == sub {
			subs = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	b.subs[eventType] = subs
	close(sub)
}
