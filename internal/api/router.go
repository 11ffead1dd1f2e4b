package api

import (
	"io"
	"net/http"
	"time"

	"meteor-dodge/internal/content"
	"meteor-dodge/internal/game"
	"meteor-dodge/internal/game/spatial"
	"meteor-dodge/internal/pool"
	"meteor-dodge/internal/ship"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// EngineInterface defines the game engine methods used by the API.
// Keep this minimal - only include methods the API layer actually calls.
type EngineInterface interface {
	// Snapshot returns a stable copy of the latest published state
	Snapshot() *game.GameSnapshot
	PoolStats() []pool.Stats
	Levels() []content.Level
	TickCount() uint64
	EventLogStats() game.EventLogStats
	GridStats() spatial.GridStats

	// Session controls
	Play()
	Pause() bool
	Resume() bool
	NextLevel() bool
	BackToMenu()

	// Player controls
	SetInput(in game.Input)
	Fire() (bool, error)

	// Ship progression
	ShipInfo() (ship.Definition, ship.UpgradeState, ship.Stats)
	Upgrade(stat string) (ship.Stats, error)

	// Spawn places a meteor for debugging and scripted scenes
	Spawn(template string, pos, dir game.Vec3) (*game.Entity, error)
}

// FrameRenderer draws a snapshot as a PNG
type FrameRenderer interface {
	EncodePNG(w io.Writer, snap *game.GameSnapshot) error
}

// RouterConfig contains all dependencies needed to construct the HTTP router.
//
// Example usage in tests:
//
//	cfg := api.RouterConfig{
//	    Engine: engine,
//	    RateLimitConfig: &api.RateLimitConfig{
//	        RequestsPerSecond: 1000, // High limit for tests
//	        Burst:             1000,
//	    },
//	    DisableLogging: true,
//	}
//	ts := httptest.NewServer(api.NewRouter(cfg))
type RouterConfig struct {
	// Engine is the game engine (required)
	Engine EngineInterface

	// Renderer serves /api/frame.png. If nil, the route answers 404.
	Renderer FrameRenderer

	// RateLimiter is an optional pre-configured rate limiter.
	// If nil, a new one will be created using RateLimitConfig.
	RateLimiter *ClientLimiter

	// RateLimitConfig is optional configuration for the rate limiter.
	// Only used if RateLimiter is nil. If both are nil, uses DefaultRateLimitConfig.
	RateLimitConfig *RateLimitConfig

	// Origins decides CORS and WebSocket origins. If nil, AllowedOrigins is used.
	Origins *OriginChecker

	// AdminToken guards every POST route when set.
	AdminToken string

	// DisableLogging disables the request logger middleware (useful for benchmarks).
	DisableLogging bool
}

// routerHandlers holds the handler functions for the router.
type routerHandlers struct {
	engine      EngineInterface
	renderer    FrameRenderer
	rateLimiter *ClientLimiter
}

// NewRouter constructs the HTTP router with all middleware and routes.
//
// IMPORTANT: Apart from the rate limiter's cleanup goroutine this has no
// side effects - no listeners are opened and the engine is not started.
// This makes it safe to use in tests with httptest.NewServer.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware - Order matters!
	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)

	// Rate limiting (BEFORE CORS to reject early and save CPU)
	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewClientLimiter(rateLimitCfg)
	}
	r.Use(rateLimiter.Middleware)

	origins := cfg.Origins
	if origins == nil {
		origins = NewOriginChecker(nil)
	}
	r.Use(cors.Handler(cors.Options{
		AllowOriginFunc: func(_ *http.Request, origin string) bool {
			return origins.Allowed(origin)
		},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", AdminTokenHeader},
		MaxAge:         300,
	}))

	h := &routerHandlers{
		engine:      cfg.Engine,
		renderer:    cfg.Renderer,
		rateLimiter: rateLimiter,
	}

	r.Route("/api", func(r chi.Router) {
		// Observation
		r.Get("/state", h.handleGetState)
		r.Get("/stats", h.handleGetStats)
		r.Get("/pools", h.handleGetPools)
		r.Get("/levels", h.handleGetLevels)
		r.Get("/ship", h.handleGetShip)
		r.Get("/frame.png", h.handleGetFrame)

		// Controls
		r.Group(func(r chi.Router) {
			r.Use(RequireAdminToken(cfg.AdminToken))

			r.Post("/game/play", h.handlePlay)
			r.Post("/game/pause", h.handlePause)
			r.Post("/game/resume", h.handleResume)
			r.Post("/game/next", h.handleNextLevel)
			r.Post("/game/menu", h.handleMenu)

			r.Post("/player/input", h.handlePlayerInput)
			r.Post("/player/fire", h.handlePlayerFire)

			r.Post("/ship/upgrade", h.handleShipUpgrade)
			r.Post("/meteors", h.handleSpawnMeteor)
		})
	})

	// Default route
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/api/state", http.StatusFound)
	})

	return r
}

// metricsMiddleware records latency by route pattern so label cardinality
// stays bounded
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		endpoint := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				endpoint = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		RecordRequest(r.Method, endpoint, status, time.Since(start))
	})
}
