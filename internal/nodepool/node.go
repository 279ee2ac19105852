/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package nodepool abstracts the clustered audio-rendering backend behind a
// single logical client: node connections and health, search resolution, and
// per-tenant voice sessions pinned to the node they were created on.
package nodepool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/friendsincode/bragi/internal/telemetry"
	"github.com/rs/zerolog"
	ws "nhooyr.io/websocket"
)

// NodeState enumerates a node's connection lifecycle.
type NodeState string

const (
	NodeConnecting    NodeState = "connecting"
	NodeConnected     NodeState = "connected"
	NodeDisconnecting NodeState = "disconnecting"
	NodeDisconnected  NodeState = "disconnected"
)

const (
	reconnectMin = time.Second
	reconnectMax = 30 * time.Second
)

// pushMessage is a push event read from a node's event socket.
type pushMessage struct {
	Op         string          `json:"op"` // ready, event, player_update, stats
	Type       string          `json:"type,omitempty"`
	TenantID   string          `json:"tenant_id,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	Error      string          `json:"error,omitempty"`
	PositionMS int64           `json:"position_ms,omitempty"`
	Stats      json.RawMessage `json:"stats,omitempty"`
}

// Node is one member of the rendering cluster.
type Node struct {
	name     string
	address  string
	password string
	secure   bool
	logger   zerolog.Logger
	http     *http.Client

	onMessage func(n *Node, msg pushMessage)
	onState   func(n *Node, state NodeState)

	mu    sync.RWMutex
	state NodeState
	stats json.RawMessage
}

// Name returns the node's configured name.
func (n *Node) Name() string { return n.name }

// State returns the node's connection state.
func (n *Node) State() NodeState {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.state
}

// Stats returns the node's last reported stats blob, opaque to this layer.
func (n *Node) Stats() json.RawMessage {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.stats
}

func (n *Node) setState(state NodeState) {
	n.mu.Lock()
	prev := n.state
	n.state = state
	n.mu.Unlock()

	if prev == state {
		return
	}

	var gauge float64
	switch state {
	case NodeConnecting:
		gauge = 1
	case NodeConnected:
		gauge = 2
	}
	telemetry.NodeState.WithLabelValues(n.name).Set(gauge)

	n.logger.Info().Str("from", string(prev)).Str("to", string(state)).Msg("node state change")

	if n.onState != nil {
		n.onState(n, state)
	}
}

func (n *Node) setStats(stats json.RawMessage) {
	n.mu.Lock()
	n.stats = stats
	n.mu.Unlock()
}

func (n *Node) scheme(secureScheme, plainScheme string) string {
	if n.secure {
		return secureScheme
	}
	return plainScheme
}

func (n *Node) eventURL() string {
	return fmt.Sprintf("%s://%s/v1/events", n.scheme("wss", "ws"), n.address)
}

func (n *Node) restURL(path string) string {
	return fmt.Sprintf("%s://%s%s", n.scheme("https", "http"), n.address, path)
}

// Run maintains the node's event socket until context cancellation,
// reconnecting with capped exponential backoff.
func (n *Node) Run(ctx context.Context) {
	backoff := reconnectMin
	for {
		if ctx.Err() != nil {
			n.setState(NodeDisconnected)
			return
		}

		n.setState(NodeConnecting)
		conn, err := n.dial(ctx)
		if err != nil {
			n.setState(NodeDisconnected)
			n.logger.Warn().Err(err).Dur("retry_in", backoff).Msg("node dial failed")

			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > reconnectMax {
				backoff = reconnectMax
			}
			continue
		}

		backoff = reconnectMin
		n.setState(NodeConnected)

		n.readLoop(ctx, conn)

		conn.Close(ws.StatusNormalClosure, "reconnecting")
		n.setState(NodeDisconnected)
	}
}

func (n *Node) dial(ctx context.Context) (*ws.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	header := http.Header{}
	if n.password != "" {
		header.Set("Authorization", n.password)
	}

	conn, _, err := ws.Dial(dialCtx, n.eventURL(), &ws.DialOptions{HTTPHeader: header})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", n.eventURL(), err)
	}
	return conn, nil
}

func (n *Node) readLoop(ctx context.Context, conn *ws.Conn) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ws.CloseStatus(err) != ws.StatusNormalClosure && ctx.Err() == nil {
				n.logger.Warn().Err(err).Msg("node event socket closed")
			}
			return
		}

		var msg pushMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			n.logger.Warn().Err(err).Msg("invalid node push message")
			continue
		}

		if msg.Op == "stats" {
			n.setStats(msg.Stats)
			continue
		}

		if n.onMessage != nil {
			n.onMessage(n, msg)
		}
	}
}

// post issues a JSON request against the node's REST surface. dest may be
// nil when no response body is expected.
func (n *Node) post(ctx context.Context, path string, payload, dest any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.restURL(path), body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.password != "" {
		req.Header.Set("Authorization", n.password)
	}

	resp, err := n.http.Do(req)
	if err != nil {
		return fmt.Errorf("node %s: %w", n.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("node %s: HTTP %d", n.name, resp.StatusCode)
	}

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
