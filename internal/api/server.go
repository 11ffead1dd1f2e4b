package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// ServerConfig holds what the server needs beyond the router
type ServerConfig struct {
	Router            RouterConfig
	BroadcastInterval time.Duration
}

// Server is the HTTP API server with WebSocket support.
// It combines the HTTP router with WebSocket hub for real-time updates.
type Server struct {
	router      *chi.Mux
	wsHub       *WebSocketHub
	rateLimiter *ClientLimiter
	httpServer  *http.Server
	interval    time.Duration
}

// NewServer creates a new API server.
//
// IMPORTANT: Background workers do NOT start until Start() is called.
// This enables testing by allowing the server to be constructed without
// starting goroutines or opening network listeners.
//
// For testing HTTP endpoints without WebSocket support, use NewRouter() directly.
func NewServer(cfg ServerConfig) *Server {
	rc := cfg.Router
	if rc.RateLimiter == nil {
		rlCfg := DefaultRateLimitConfig
		if rc.RateLimitConfig != nil {
			rlCfg = *rc.RateLimitConfig
		}
		rc.RateLimiter = NewClientLimiter(rlCfg)
	}
	if rc.Origins == nil {
		rc.Origins = NewOriginChecker(nil)
	}

	s := &Server{
		rateLimiter: rc.RateLimiter,
		wsHub:       NewWebSocketHub(rc.Engine, rc.Origins, rc.AdminToken),
		interval:    cfg.BroadcastInterval,
	}
	s.router = NewRouter(rc)

	// Anyone may watch; commands over the socket need the admin token
	s.router.Get("/ws", s.wsHub.HandleWebSocket)

	return s
}

// Start begins the HTTP server AND starts background workers.
// Blocks until the server stops; returns nil after a graceful Stop.
func (s *Server) Start(addr string) error {
	go s.wsHub.Run()
	s.wsHub.StartBroadcastLoop(s.interval)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Printf("🌐 API server starting on %s", addr)
	log.Printf("🛰️ Snapshot stream: ws://localhost%s/ws", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Router returns the HTTP handler for use with httptest.
func (s *Server) Router() http.Handler {
	return s.router
}

// Hub returns the WebSocket hub
func (s *Server) Hub() *WebSocketHub {
	return s.wsHub
}

// Stop performs graceful shutdown of the listener and background workers.
func (s *Server) Stop(ctx context.Context) error {
	s.wsHub.Stop()
	s.rateLimiter.Stop()

	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
