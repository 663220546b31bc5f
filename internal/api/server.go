// Package api runs the engine's dashboard transport: a health probe, JSON
// views of the book and recent flow, and a live WebSocket event stream.
//
// The stream path is deliberately simple: one Broadcaster fans marshalled
// events out to per-connection buffered channels, and each connection runs a
// single serve loop. There is no hub goroutine and no ping/pong machinery —
// a periodic snapshot write is both the keepalive and the resync point for
// subscribers that dropped events on a full backlog.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"matchbook/internal/config"
)

// Server serves the dashboard endpoints.
type Server struct {
	cfg         config.DashboardConfig
	provider    EngineProvider
	events      <-chan StreamEvent
	broadcaster *Broadcaster
	httpSrv     *http.Server
	logger      *slog.Logger
}

// NewServer creates the dashboard server. events may be nil when the engine
// has no stream to publish; the REST endpoints still work.
func NewServer(
	cfg config.DashboardConfig,
	provider EngineProvider,
	events <-chan StreamEvent,
	logger *slog.Logger,
) *Server {
	s := &Server{
		cfg:         cfg,
		provider:    provider,
		events:      events,
		broadcaster: NewBroadcaster(logger),
		logger:      logger.With("component", "api-server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /api/book", s.handleBook)
	mux.HandleFunc("GET /stream", s.serveStream)

	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // streams write for the connection's lifetime
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start pumps engine events into the broadcaster and serves HTTP until Stop.
func (s *Server) Start() error {
	go s.pump()

	s.logger.Info("dashboard server starting", "addr", s.httpSrv.Addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("dashboard server: %w", err)
	}
	return nil
}

// Stop shuts the listener down and ends every open stream.
func (s *Server) Stop() error {
	s.logger.Info("stopping dashboard server", "dropped_events", s.broadcaster.Dropped())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := s.httpSrv.Shutdown(ctx)
	s.broadcaster.Close()
	return err
}

// pump moves events from the engine channel to the broadcaster. It ends when
// the engine closes the channel.
func (s *Server) pump() {
	if s.events == nil {
		return
	}
	for evt := range s.events {
		s.broadcaster.Publish(evt)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respond(w, map[string]any{
		"status":    "ok",
		"processed": s.provider.Processed(),
		"streams":   s.broadcaster.Subscribers(),
	})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	s.respond(w, BuildSnapshot(s.provider))
}

func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) {
	s.respond(w, s.provider.BookStatus())
}

// respond marshals before touching the ResponseWriter so an encoding failure
// can still produce a clean 500.
func (s *Server) respond(w http.ResponseWriter, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("failed to encode response", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// checkOrigin gates stream upgrades. Browsers send an Origin header; with no
// allowlist configured, only same-host and loopback origins pass. Configured
// origins are compared whole, case-insensitively.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		// Non-browser clients omit Origin; let them through.
		return true
	}

	if len(s.cfg.AllowedOrigins) > 0 {
		for _, allowed := range s.cfg.AllowedOrigins {
			if strings.EqualFold(strings.TrimSuffix(allowed, "/"), strings.TrimSuffix(origin, "/")) {
				return true
			}
		}
		return false
	}

	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host) || isLoopback(u.Hostname())
}

func isLoopback(host string) bool {
	switch strings.ToLower(host) {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}
