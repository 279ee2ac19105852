/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package server bundles the HTTP ops surface and wires the orchestrator's
// dependencies together.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/friendsincode/bragi/internal/cache"
	"github.com/friendsincode/bragi/internal/config"
	"github.com/friendsincode/bragi/internal/events"
	"github.com/friendsincode/bragi/internal/lock"
	"github.com/friendsincode/bragi/internal/nodepool"
	"github.com/friendsincode/bragi/internal/player"
	"github.com/friendsincode/bragi/internal/queue"
	"github.com/friendsincode/bragi/internal/resilience"
)

// Server bundles HTTP and supporting services.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
	closers    []func() error

	bus        *events.Bus
	cache      *cache.Cache
	pool       *nodepool.Pool
	store      *queue.Store
	locks      *lock.Registry
	breaker    *resilience.Breaker
	tracker    *resilience.Tracker
	snapshots  *resilience.SnapshotStore
	controller *player.Controller
	dispatcher *player.Dispatcher

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New constructs the server and wires dependencies.
func New(cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(middleware.Timeout(30 * time.Second))

	srv := &Server{
		cfg:    cfg,
		logger: logger,
		router: router,
		bus:    events.NewBus(),
	}

	if err := srv.initDependencies(); err != nil {
		return nil, err
	}

	srv.configureRoutes()
	srv.startBackgroundWorkers()

	addr := fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort)
	srv.httpServer = &http.Server{
		Addr:              addr,
		Handler:           srv.router,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return srv, nil
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) initDependencies() error {
	cacheCfg := cache.DefaultConfig()
	cacheCfg.RedisAddr = s.cfg.RedisAddr
	cacheCfg.RedisPassword = s.cfg.RedisPassword
	cacheCfg.RedisDB = s.cfg.RedisDB
	stateMirror, err := cache.New(cacheCfg, s.logger)
	if err != nil {
		return fmt.Errorf("initialize state mirror: %w", err)
	}
	s.cache = stateMirror
	s.DeferClose(stateMirror.Close)

	s.pool = nodepool.NewPool(s.cfg, s.bus, s.logger)
	s.store = queue.NewStore()
	s.locks = lock.NewRegistry()
	s.breaker = resilience.NewBreaker(s.cfg.BreakerThreshold, s.cfg.BreakerCooldown)
	s.tracker = resilience.NewTracker(s.logger)
	s.snapshots = resilience.NewSnapshotStore(s.cache, s.logger)

	s.tracker.RegisterFallback("nodes", func() resilience.Fallback {
		return resilience.Fallback{
			Message:   "The audio backend is temporarily unavailable. Your queue has been preserved.",
			Preserved: s.snapshots.Count() > 0,
		}
	})

	backend := player.NewPoolBackend(s.pool)
	s.controller = player.NewController(player.Options{
		Backend:      backend,
		Store:        s.store,
		Locks:        s.locks,
		Breaker:      s.breaker,
		Tracker:      s.tracker,
		Snapshots:    s.snapshots,
		Mirror:       s.cache,
		ReplaceGrace: s.cfg.ReplaceGrace,
		LockTimeout:  s.cfg.ControllerLockTimeout,
	}, s.logger)

	s.dispatcher = player.NewDispatcher(player.DispatcherOptions{
		Bus:            s.bus,
		Controller:     s.controller,
		Backend:        backend,
		Store:          s.store,
		Locks:          s.locks,
		Snapshots:      s.snapshots,
		Tracker:        s.tracker,
		LockTimeout:    s.cfg.TransitionLockTimeout,
		SnapshotMaxAge: s.cfg.SnapshotMaxAge,
	}, s.logger)

	return nil
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	s.router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if !s.pool.Ready() {
			http.Error(w, "no connected rendering node", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	})

	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/tenants/{tenantID}/state", s.handleTenantState)
		r.Get("/tenants/{tenantID}/queue", s.handleTenantQueue)
		r.Get("/snapshots", s.handleSnapshots)
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.pool.NodeStatus())
}

func (s *Server) handleTenantState(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	writeJSON(w, s.controller.GetState(tenantID))
}

func (s *Server) handleTenantQueue(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	writeJSON(w, map[string]any{
		"tracks":    s.controller.Queue(tenantID),
		"loop_mode": s.controller.LoopMode(tenantID),
	})
}

func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.snapshots.All())
}

func writeJSON(w http.ResponseWriter, value any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(value); err != nil {
		http.Error(w, "encode response", http.StatusInternalServerError)
	}
}

func (s *Server) startBackgroundWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	s.pool.Start(ctx)

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		s.dispatcher.Run(ctx)
	}()
}

// Controller exposes the playback controller to the presentation layer.
func (s *Server) Controller() *player.Controller { return s.controller }

// HTTPServer returns the configured HTTP server.
func (s *Server) HTTPServer() *http.Server { return s.httpServer }

// DeferClose registers a cleanup function run during Close.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

// Close stops background workers and runs registered cleanups.
func (s *Server) Close() error {
	if s.bgCancel != nil {
		s.bgCancel()
	}
	s.bgWG.Wait()

	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
