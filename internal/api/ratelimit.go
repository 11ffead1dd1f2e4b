package api

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures the per-client request limiter
type RateLimitConfig struct {
	RequestsPerSecond float64       // sustained rate per client address
	Burst             int           // bucket size
	CleanupInterval   time.Duration // sweep period; buckets idle twice this long are dropped
}

// DefaultRateLimitConfig fits a touch client that samples input at up to
// 20 requests per second.
var DefaultRateLimitConfig = RateLimitConfig{
	RequestsPerSecond: 20,
	Burst:             40,
	CleanupInterval:   5 * time.Minute,
}

// maxRetryAfter caps the Retry-After hint in seconds
const maxRetryAfter = 60

// RateLimitStats is a point-in-time view of a limiter
type RateLimitStats struct {
	Allowed  uint64 `json:"allowed"`
	Rejected uint64 `json:"rejected"`
	Clients  int    `json:"clients"`
}

// clientBucket is one client's token bucket and the last time it was used
type clientBucket struct {
	*rate.Limiter
	lastUsed time.Time
}

// ClientLimiter throttles HTTP requests per client address. Buckets that
// have refilled or gone idle are swept in the background.
type ClientLimiter struct {
	mu      sync.Mutex
	buckets map[string]*clientBucket

	limit      rate.Limit
	burst      int
	sweepEvery time.Duration

	done     chan struct{}
	doneOnce sync.Once

	allowed  atomic.Uint64
	rejected atomic.Uint64
}

// NewClientLimiter creates a limiter and starts its sweeper. Call Stop when done.
func NewClientLimiter(cfg RateLimitConfig) *ClientLimiter {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultRateLimitConfig.CleanupInterval
	}
	cl := &ClientLimiter{
		buckets:    make(map[string]*clientBucket),
		limit:      rate.Limit(cfg.RequestsPerSecond),
		burst:      cfg.Burst,
		sweepEvery: cfg.CleanupInterval,
		done:       make(chan struct{}),
	}
	go cl.sweepLoop()
	return cl
}

// Stop ends the sweeper
func (cl *ClientLimiter) Stop() {
	cl.doneOnce.Do(func() { close(cl.done) })
}

// take spends one token from client's bucket. When the bucket is empty it
// also returns how long until the next token.
func (cl *ClientLimiter) take(client string, now time.Time) (bool, time.Duration) {
	cl.mu.Lock()
	b, ok := cl.buckets[client]
	if !ok {
		b = &clientBucket{Limiter: rate.NewLimiter(cl.limit, cl.burst)}
		cl.buckets[client] = b
	}
	b.lastUsed = now
	cl.mu.Unlock()

	if b.AllowN(now, 1) {
		cl.allowed.Add(1)
		return true, 0
	}
	cl.rejected.Add(1)

	if cl.limit <= 0 {
		return false, maxRetryAfter * time.Second
	}
	missing := 1 - b.TokensAt(now)
	return false, time.Duration(missing / float64(cl.limit) * float64(time.Second))
}

// Allow reports whether client may make a request now
func (cl *ClientLimiter) Allow(client string) bool {
	ok, _ := cl.take(client, time.Now())
	return ok
}

func (cl *ClientLimiter) sweepLoop() {
	ticker := time.NewTicker(cl.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-cl.done:
			return
		case now := <-ticker.C:
			cl.sweep(now)
		}
	}
}

// sweep drops buckets that are full again or unused for two sweep periods
func (cl *ClientLimiter) sweep(now time.Time) {
	idleCutoff := now.Add(-2 * cl.sweepEvery)

	cl.mu.Lock()
	defer cl.mu.Unlock()
	for client, b := range cl.buckets {
		if b.lastUsed.Before(idleCutoff) || b.TokensAt(now) >= float64(cl.burst) {
			delete(cl.buckets, client)
		}
	}
}

// Middleware answers 429 with a Retry-After hint once a client's bucket is empty
func (cl *ClientLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, wait := cl.take(GetClientIP(r), time.Now())
		if !ok {
			RecordConnectionRejected("rate_limit")
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(wait)))
			writeError(w, "Too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func retryAfterSeconds(wait time.Duration) int {
	secs := int(math.Ceil(wait.Seconds()))
	if secs < 1 {
		return 1
	}
	if secs > maxRetryAfter {
		return maxRetryAfter
	}
	return secs
}

// Stats returns the counters and the number of tracked clients
func (cl *ClientLimiter) Stats() RateLimitStats {
	cl.mu.Lock()
	clients := len(cl.buckets)
	cl.mu.Unlock()

	return RateLimitStats{
		Allowed:  cl.allowed.Load(),
		Rejected: cl.rejected.Load(),
		Clients:  clients,
	}
}

// forwardHeaders are consulted in order before RemoteAddr. Only trust them
// behind a proxy that overwrites them.
var forwardHeaders = []string{"X-Forwarded-For", "X-Real-IP"}

// GetClientIP returns the address a request is accounted to: the first hop
// of a forwarding header, else the RemoteAddr host.
func GetClientIP(r *http.Request) string {
	for _, name := range forwardHeaders {
		first, _, _ := strings.Cut(r.Header.Get(name), ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// SlotLimiter caps concurrent WebSocket connections per client address.
// Addresses with no open connection are forgotten.
type SlotLimiter struct {
	mu       sync.Mutex
	open     map[string]int
	perIP    int
	rejected uint64
}

// NewSlotLimiter allows perIP concurrent connections from one address
func NewSlotLimiter(perIP int) *SlotLimiter {
	return &SlotLimiter{open: make(map[string]int), perIP: perIP}
}

// Take claims a slot for ip. False when ip is at its limit.
func (sl *SlotLimiter) Take(ip string) bool {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	if sl.open[ip] >= sl.perIP {
		sl.rejected++
		return false
	}
	sl.open[ip]++
	return true
}

// Release frees a slot taken by Take
func (sl *SlotLimiter) Release(ip string) {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	switch n := sl.open[ip]; {
	case n > 1:
		sl.open[ip] = n - 1
	case n == 1:
		delete(sl.open, ip)
	}
}

// InUse returns the open connections for ip
func (sl *SlotLimiter) InUse(ip string) int {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return sl.open[ip]
}

// Rejected returns how many connections were refused
func (sl *SlotLimiter) Rejected() uint64 {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return sl.rejected
}
