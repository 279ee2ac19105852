/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package nodepool

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/friendsincode/bragi/internal/config"
	"github.com/friendsincode/bragi/internal/events"
	"github.com/friendsincode/bragi/internal/telemetry"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Pool owns the connections to all rendering nodes and the per-tenant
// sessions pinned to them.
type Pool struct {
	logger zerolog.Logger
	bus    *events.Bus
	nodes  []*Node

	defaultPlatform  string
	fallbackPlatform string

	mu       sync.RWMutex
	sessions map[string]*Session
	started  bool
}

// NewPool creates a pool from node configuration. Nodes are not dialed until
// Start.
func NewPool(cfg *config.Config, bus *events.Bus, logger zerolog.Logger) *Pool {
	p := &Pool{
		logger:           logger.With().Str("component", "nodepool").Logger(),
		bus:              bus,
		sessions:         make(map[string]*Session),
		defaultPlatform:  cfg.DefaultSearchPlatform,
		fallbackPlatform: cfg.FallbackSearchPlatform,
	}

	httpClient := &http.Client{Timeout: 15 * time.Second}
	for _, nc := range cfg.Nodes {
		node := &Node{
			name:      nc.Name,
			address:   nc.Address,
			password:  cfg.NodePassword,
			secure:    nc.Secure,
			logger:    p.logger.With().Str("node", nc.Name).Logger(),
			http:      httpClient,
			state:     NodeDisconnected,
			onMessage: p.handlePush,
			onState:   p.handleNodeState,
		}
		p.nodes = append(p.nodes, node)
	}
	return p
}

// Start dials every node and begins processing push events.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	p.started = true
	p.mu.Unlock()

	for _, node := range p.nodes {
		go node.Run(ctx)
	}
	p.logger.Info().Int("nodes", len(p.nodes)).Msg("node pool started")
}

func (p *Pool) handleNodeState(n *Node, state NodeState) {
	payload := events.Payload{
		"node":            n.Name(),
		"state":           string(state),
		"connected_count": p.ConnectedCount(),
	}
	switch state {
	case NodeConnected:
		p.bus.Publish(events.EventNodeReady, payload)
	case NodeDisconnected:
		p.bus.Publish(events.EventNodeDisconnected, payload)
	}
}

func (p *Pool) handlePush(n *Node, msg pushMessage) {
	switch msg.Op {
	case "event":
		switch msg.Type {
		case "track_end":
			p.bus.Publish(events.EventTrackEnd, events.Payload{
				"tenant_id": msg.TenantID,
				"reason":    msg.Reason,
				"node":      n.Name(),
			})
		case "track_exception":
			p.bus.Publish(events.EventTrackException, events.Payload{
				"tenant_id": msg.TenantID,
				"error":     msg.Error,
				"node":      n.Name(),
			})
		default:
			n.logger.Debug().Str("type", msg.Type).Msg("unhandled player event")
		}
	case "player_update":
		if session := p.GetSession(msg.TenantID); session != nil {
			session.setPosition(msg.PositionMS)
		}
	case "error":
		p.bus.Publish(events.EventNodeError, events.Payload{
			"node":  n.Name(),
			"error": msg.Error,
		})
	}
}

// healthyNode returns the first connected node in pool order, or nil.
// Deliberately no load balancing: a single call never needs more than one
// node, and sessions stay pinned anyway.
func (p *Pool) healthyNode() *Node {
	for _, node := range p.nodes {
		if node.State() == NodeConnected {
			return node
		}
	}
	return nil
}

// Ready reports whether at least one node is connected.
func (p *Pool) Ready() bool {
	return p.healthyNode() != nil
}

// ConnectedCount returns the number of connected nodes.
func (p *Pool) ConnectedCount() int {
	count := 0
	for _, node := range p.nodes {
		if node.State() == NodeConnected {
			count++
		}
	}
	return count
}

type sessionCreate struct {
	SessionID      string `json:"session_id"`
	TenantID       string `json:"tenant_id"`
	VoiceChannelID string `json:"voice_channel_id"`
}

// CreateSession joins the tenant's voice channel on a healthy node. Returns
// the existing session if one is already active for the tenant.
func (p *Pool) CreateSession(ctx context.Context, tenantID, voiceChannelID string) (*Session, error) {
	p.mu.RLock()
	started := p.started
	existing := p.sessions[tenantID]
	p.mu.RUnlock()

	if existing != nil {
		return existing, nil
	}
	if !started || len(p.nodes) == 0 {
		return nil, ErrNotReady
	}

	node := p.healthyNode()
	if node == nil {
		return nil, ErrNoHealthyNode
	}

	session := &Session{
		ID:             uuid.NewString(),
		TenantID:       tenantID,
		VoiceChannelID: voiceChannelID,
		node:           node,
	}

	if err := node.post(ctx, "/v1/sessions", sessionCreate{
		SessionID:      session.ID,
		TenantID:       tenantID,
		VoiceChannelID: voiceChannelID,
	}, nil); err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.sessions[tenantID] = session
	p.mu.Unlock()

	telemetry.ActiveSessions.Inc()
	p.bus.Publish(events.EventSessionCreated, events.Payload{
		"tenant_id": tenantID,
		"node":      node.Name(),
	})

	p.logger.Info().
		Str("tenant_id", tenantID).
		Str("node", node.Name()).
		Str("channel", voiceChannelID).
		Msg("session created")

	return session, nil
}

// DestroySession leaves the tenant's voice channel. No-op if no session
// exists.
func (p *Pool) DestroySession(ctx context.Context, tenantID string) {
	p.mu.Lock()
	session, ok := p.sessions[tenantID]
	delete(p.sessions, tenantID)
	p.mu.Unlock()

	if !ok {
		return
	}

	if err := session.Disconnect(ctx); err != nil {
		p.logger.Debug().Err(err).Str("tenant_id", tenantID).Msg("session disconnect failed")
	}

	telemetry.ActiveSessions.Dec()
	p.bus.Publish(events.EventSessionDestroyed, events.Payload{
		"tenant_id": tenantID,
	})

	p.logger.Info().Str("tenant_id", tenantID).Msg("session destroyed")
}

// GetSession returns the tenant's session, or nil.
func (p *Pool) GetSession(tenantID string) *Session {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sessions[tenantID]
}

// Sessions returns all active sessions.
func (p *Pool) Sessions() []*Session {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Session, 0, len(p.sessions))
	for _, session := range p.sessions {
		out = append(out, session)
	}
	return out
}

// NodeStatusEntry describes one node for status reporting.
type NodeStatusEntry struct {
	Name  string `json:"name"`
	State string `json:"state"`
}

// Status is the pool's aggregate state.
type Status struct {
	Ready              bool              `json:"ready"`
	NodeCount          int               `json:"node_count"`
	Nodes              []NodeStatusEntry `json:"nodes"`
	ActiveSessionCount int               `json:"active_session_count"`
}

// NodeStatus reports pool readiness, per-node state, and session count.
func (p *Pool) NodeStatus() Status {
	status := Status{
		NodeCount: len(p.nodes),
		Nodes:     make([]NodeStatusEntry, 0, len(p.nodes)),
	}
	for _, node := range p.nodes {
		state := node.State()
		if state == NodeConnected {
			status.Ready = true
		}
		status.Nodes = append(status.Nodes, NodeStatusEntry{Name: node.Name(), State: string(state)})
	}

	p.mu.RLock()
	status.ActiveSessionCount = len(p.sessions)
	p.mu.RUnlock()

	return status
}
