/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// NodeConfig describes one backend rendering node.
type NodeConfig struct {
	Name    string
	Address string // host:port
	Secure  bool   // use wss/https
}

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	HTTPBind    string
	HTTPPort    int

	// Backend rendering cluster
	Nodes        []NodeConfig
	NodePassword string

	// Search resolution
	DefaultSearchPlatform  string // tag prefixed to bare queries, e.g. "ytsearch"
	FallbackSearchPlatform string // retried once when the default platform yields nothing

	// Playback transition tuning
	ReplaceGrace          time.Duration // suppression window for the replaced track's end event
	TransitionLockTimeout time.Duration
	ControllerLockTimeout time.Duration

	// Resilience
	SnapshotMaxAge   time.Duration
	BreakerThreshold int
	BreakerCooldown  time.Duration

	// Redis state mirror
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment:  getEnv("BRAGI_ENV", "development"),
		HTTPBind:     getEnv("BRAGI_HTTP_BIND", "0.0.0.0"),
		HTTPPort:     getEnvInt("BRAGI_HTTP_PORT", 8090),
		NodePassword: getEnv("BRAGI_NODE_PASSWORD", ""),

		DefaultSearchPlatform:  getEnv("BRAGI_SEARCH_PLATFORM", "ytsearch"),
		FallbackSearchPlatform: getEnv("BRAGI_SEARCH_FALLBACK_PLATFORM", "scsearch"),

		ReplaceGrace:          time.Duration(getEnvInt("BRAGI_REPLACE_GRACE_MS", 1000)) * time.Millisecond,
		TransitionLockTimeout: time.Duration(getEnvInt("BRAGI_TRANSITION_LOCK_TIMEOUT_MS", 5000)) * time.Millisecond,
		ControllerLockTimeout: time.Duration(getEnvInt("BRAGI_CONTROLLER_LOCK_TIMEOUT_MS", 3000)) * time.Millisecond,

		SnapshotMaxAge:   time.Duration(getEnvInt("BRAGI_SNAPSHOT_MAX_AGE_MINUTES", 30)) * time.Minute,
		BreakerThreshold: getEnvInt("BRAGI_BREAKER_THRESHOLD", 5),
		BreakerCooldown:  time.Duration(getEnvInt("BRAGI_BREAKER_COOLDOWN_SECONDS", 30)) * time.Second,

		RedisAddr:     getEnv("BRAGI_REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("BRAGI_REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("BRAGI_REDIS_DB", 0),
	}

	nodes, err := parseNodes(getEnv("BRAGI_NODES", ""), getEnvBool("BRAGI_NODES_SECURE", false))
	if err != nil {
		return nil, err
	}
	cfg.Nodes = nodes

	if len(cfg.Nodes) == 0 {
		return nil, fmt.Errorf("BRAGI_NODES must list at least one rendering node")
	}

	if cfg.ReplaceGrace <= 0 {
		return nil, fmt.Errorf("BRAGI_REPLACE_GRACE_MS must be positive")
	}

	if cfg.BreakerThreshold <= 0 {
		return nil, fmt.Errorf("BRAGI_BREAKER_THRESHOLD must be positive")
	}

	return cfg, nil
}

// parseNodes parses a comma separated list of "name=host:port" entries.
// The name may be omitted, in which case the address doubles as the name.
func parseNodes(raw string, secure bool) ([]NodeConfig, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	var nodes []NodeConfig
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		name, addr := part, part
		if idx := strings.Index(part, "="); idx >= 0 {
			name = strings.TrimSpace(part[:idx])
			addr = strings.TrimSpace(part[idx+1:])
		}
		if addr == "" || name == "" {
			return nil, fmt.Errorf("invalid node entry %q in BRAGI_NODES", part)
		}

		nodes = append(nodes, NodeConfig{Name: name, Address: addr, Secure: secure})
	}
	return nodes, nil
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(strings.TrimSpace(val))
		if val == "true" || val == "1" || val == "yes" {
			return true
		}
		if val == "false" || val == "0" || val == "no" {
			return false
		}
	}
	return def
}
