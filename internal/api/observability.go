package api

import (
	"log"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"meteor-dodge/internal/game"
	"meteor-dodge/internal/pool"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics with bounded cardinality: pool names and outcomes are fixed sets
var (
	// Simulation metrics
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "game_tick_duration_seconds",
		Help:    "Time spent in a simulation tick",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025},
	})

	renderDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "frame_render_duration_seconds",
		Help:    "Time spent rendering a debug frame",
		Buckets: []float64{0.005, 0.01, 0.02, 0.033, 0.05, 0.1},
	})

	activeEntities = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "game_active_entities",
		Help: "Entities taking part in the simulation",
	})

	totalEntities = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "game_total_entities",
		Help: "Entities owned by the world, active or idle",
	})

	// Pool metrics
	poolAcquires = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pool_acquires_total",
		Help: "Pool acquisitions by source",
	}, []string{"pool", "source"}) // source: "reuse", "alloc"

	poolReleases = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pool_releases_total",
		Help: "Pool releases by outcome",
	}, []string{"pool", "outcome"}) // outcome: ReleaseOutcome names

	poolAllocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pool_allocations_total",
		Help: "Instances created by the host",
	}, []string{"pool", "reason"}) // reason: "prewarm", "demand"

	poolIdle = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pool_idle_instances",
		Help: "Idle instances waiting in each pool",
	}, []string{"pool"})

	// Event log metrics, mirrored from the log's own counters
	eventLogTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "event_log_events",
		Help: "Events accepted by the event log",
	})

	eventLogDropped = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "event_log_dropped_events",
		Help: "Events dropped due to rate limiting or buffer full",
	})

	// DoS detection metrics - use ONLY bounded label values
	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connection_rejected_total",
		Help: "Connections rejected by rate limiter, origin check or auth",
	}, []string{"reason"}) // Bounded: "rate_limit", "origin", "ws_total_limit", "ws_ip_limit", "auth"

	// HTTP metrics with bounded labels
	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"}) // endpoint is the route pattern, not the URL

	requestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	// WebSocket metrics
	wsConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "websocket_connections_active",
		Help: "Currently active WebSocket connections",
	})

	wsMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "websocket_messages_total",
		Help: "Total WebSocket broadcasts sent",
	})
)

// ObservabilityConfig configures the debug server
type ObservabilityConfig struct {
	Enabled       bool
	ListenAddr    string // loopback unless ALLOW_DEBUG_EXTERNAL=true
	BasicAuthUser string // Optional basic auth
	BasicAuthPass string
}

// DefaultObservabilityConfig returns safe defaults
func DefaultObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		Enabled:    true,
		ListenAddr: fallbackDebugAddr,
	}
}

// fallbackDebugAddr is used when the configured address would expose the
// debug server beyond this host
const fallbackDebugAddr = "127.0.0.1:6060"

// StartDebugServer serves profiling, metrics and health on a separate
// listener and returns it for shutdown. Returns nil when disabled.
func StartDebugServer(cfg ObservabilityConfig) *http.Server {
	if !cfg.Enabled {
		log.Println("📊 Debug server disabled")
		return nil
	}

	addr := debugListenAddr(cfg.ListenAddr, os.Getenv("ALLOW_DEBUG_EXTERNAL") == "true")
	srv := &http.Server{
		Addr:              addr,
		Handler:           debugHandler(cfg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("📊 Debug server on http://%s (pprof under /debug/pprof/, metrics at /metrics)", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("⚠️ Debug server error: %v", err)
		}
	}()

	return srv
}

// debugListenAddr keeps addr when it is loopback or external binding is
// allowed, and falls back to fallbackDebugAddr otherwise
func debugListenAddr(addr string, allowExternal bool) string {
	if allowExternal || isLoopbackAddr(addr) {
		return addr
	}
	log.Printf("⚠️ Debug address %q is not loopback, using %s", addr, fallbackDebugAddr)
	return fallbackDebugAddr
}

// isLoopbackAddr reports whether addr is host:port on a loopback host.
// An empty host listens on every interface and does not count.
func isLoopbackAddr(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil || host == "" {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// debugHandler routes /debug (pprof and expvar), /metrics and /health,
// behind basic auth when a user is configured
func debugHandler(cfg ObservabilityConfig) http.Handler {
	r := chi.NewRouter()
	if cfg.BasicAuthUser != "" {
		r.Use(middleware.BasicAuth("debug", map[string]string{cfg.BasicAuthUser: cfg.BasicAuthPass}))
	}

	r.Mount("/debug", middleware.Profiler())
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("OK"))
	})
	return r
}

// PoolMetrics feeds pool activity into prometheus. Pass it as the engine's
// pool observer.
type PoolMetrics struct{}

// Acquired implements pool.Observer
func (PoolMetrics) Acquired(name string, reused bool) {
	source := "alloc"
	if reused {
		source = "reuse"
	}
	poolAcquires.WithLabelValues(name, source).Inc()
}

// Allocated implements pool.Observer
func (PoolMetrics) Allocated(name string, prewarm bool) {
	reason := "demand"
	if prewarm {
		reason = "prewarm"
	}
	poolAllocations.WithLabelValues(name, reason).Inc()
}

// Released implements pool.Observer
func (PoolMetrics) Released(name string, outcome pool.ReleaseOutcome) {
	poolReleases.WithLabelValues(name, outcome.String()).Inc()
}

// RecordTick records tick timing and entity counts. Matches Engine.OnTick.
func RecordTick(s game.TickStats) {
	tickDuration.Observe(s.Duration.Seconds())
	activeEntities.Set(float64(s.ActiveEntities))
	totalEntities.Set(float64(s.TotalEntities))
}

// RecordRender records frame render timing
func RecordRender(duration time.Duration) {
	renderDuration.Observe(duration.Seconds())
}

// UpdatePoolGauges sets the idle gauge of every pool
func UpdatePoolGauges(stats []pool.Stats) {
	for _, s := range stats {
		poolIdle.WithLabelValues(s.Name).Set(float64(s.Idle))
	}
}

// UpdateEventLogStats mirrors the event log counters
func UpdateEventLogStats(s game.EventLogStats) {
	eventLogTotal.Set(float64(s.Total))
	eventLogDropped.Set(float64(s.Dropped))
}

// RecordConnectionRejected increments the rejection counter
// reason must be one of: "rate_limit", "origin", "ws_total_limit", "ws_ip_limit", "auth"
func RecordConnectionRejected(reason string) {
	connectionRejected.WithLabelValues(reason).Inc()
}

// RecordRequest records HTTP request metrics
func RecordRequest(method, endpoint string, status int, duration time.Duration) {
	requestLatency.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	requestTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
}

// UpdateWSConnections updates WebSocket connection count
func UpdateWSConnections(count int) {
	wsConnectionsActive.Set(float64(count))
}

// IncrementWSMessages increments WebSocket message counter
func IncrementWSMessages() {
	wsMessagesTotal.Inc()
}
