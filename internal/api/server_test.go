package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"meteor-dodge/internal/game"
	"meteor-dodge/internal/pool"
	"meteor-dodge/internal/render"
	"meteor-dodge/internal/ship"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

const testDt = 1.0 / 60

func newTestEngine(t *testing.T) *game.Engine {
	t.Helper()
	e, err := game.NewEngine(game.EngineConfig{
		TickRate:         60,
		StartLives:       3,
		Seed:             7,
		BulletPrewarm:    5,
		ExplosionPrewarm: 5,
	}, nil, nil)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return e
}

// newTestServer builds a router around a real engine with a generous limiter
func newTestServer(t *testing.T, mutate func(*RouterConfig)) (*httptest.Server, *game.Engine) {
	t.Helper()
	e := newTestEngine(t)
	rl := NewClientLimiter(RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000})
	t.Cleanup(rl.Stop)

	cfg := RouterConfig{
		Engine:         e,
		Renderer:       render.New(render.Config{Width: 160, Height: 90}),
		RateLimiter:    rl,
		DisableLogging: true,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	ts := httptest.NewServer(NewRouter(cfg))
	t.Cleanup(ts.Close)
	return ts, e
}

func post(t *testing.T, url, body string, header http.Header) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
}

// TestGetState verifies the snapshot endpoint
func TestGetState(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp := get(t, ts.URL+"/api/state")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected application/json, got %s", ct)
	}

	var snap game.GameSnapshot
	decode(t, resp, &snap)
	if snap.Session.State != "welcome" {
		t.Errorf("Expected welcome, got %s", snap.Session.State)
	}
	if snap.Session.Lives != 3 {
		t.Errorf("Expected 3 lives, got %d", snap.Session.Lives)
	}
}

// TestGetPools verifies every pool is listed with its prewarm
func TestGetPools(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	var stats []pool.Stats
	decode(t, get(t, ts.URL+"/api/pools"), &stats)

	if len(stats) != 4 {
		t.Fatalf("Expected 4 pools, got %d", len(stats))
	}
	for _, s := range stats {
		want := 5
		if s.Name == game.PoolMeteors {
			want = 0
		}
		if s.Idle != want {
			t.Errorf("%s: expected %d idle, got %d", s.Name, want, s.Idle)
		}
	}
}

// TestGetStatsAndLevels verifies the observation endpoints
func TestGetStatsAndLevels(t *testing.T) {
	ts, e := newTestServer(t, nil)
	e.Step(testDt)

	var stats map[string]json.RawMessage
	decode(t, get(t, ts.URL+"/api/stats"), &stats)
	for _, key := range []string{"tick", "pools", "eventLog", "grid", "rateLimit"} {
		if _, ok := stats[key]; !ok {
			t.Errorf("Stats missing %q", key)
		}
	}
	if string(stats["tick"]) != "1" {
		t.Errorf("Expected tick 1, got %s", stats["tick"])
	}

	var levels []struct {
		Name string `json:"name"`
	}
	decode(t, get(t, ts.URL+"/api/levels"), &levels)
	if len(levels) == 0 || levels[0].Name == "" {
		t.Errorf("Expected named levels, got %+v", levels)
	}
}

// TestGameControls walks the session through the control routes
func TestGameControls(t *testing.T) {
	ts, e := newTestServer(t, nil)

	steps := []struct {
		route string
		want  int
	}{
		{"/api/game/pause", http.StatusConflict}, // nothing running
		{"/api/game/resume", http.StatusConflict},
		{"/api/game/play", http.StatusOK},
		{"/api/game/pause", http.StatusOK},
		{"/api/game/pause", http.StatusConflict}, // already paused
		{"/api/game/resume", http.StatusOK},
		{"/api/game/next", http.StatusConflict}, // level not passed
		{"/api/game/menu", http.StatusOK},
	}

	for _, s := range steps {
		resp := post(t, ts.URL+s.route, "", nil)
		if resp.StatusCode != s.want {
			t.Errorf("%s: expected %d, got %d", s.route, s.want, resp.StatusCode)
		}
		e.Step(testDt)
	}

	if st := e.Snapshot().Session.State; st != "welcome" {
		t.Errorf("Expected welcome after menu, got %s", st)
	}
}

// TestPlayerInput verifies joystick samples reach the player
func TestPlayerInput(t *testing.T) {
	ts, e := newTestServer(t, nil)
	post(t, ts.URL+"/api/game/play", "", nil)

	resp := post(t, ts.URL+"/api/player/input", `{"x":0.5,"y":-1}`, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var in game.Input
	decode(t, resp, &in)
	if !in.Active || in.X != 0.5 || in.Y != -1 {
		t.Errorf("Unexpected echoed input %+v", in)
	}

	e.Step(testDt)
	if got := e.Snapshot().Player.Input; got != in {
		t.Errorf("Expected player input %+v, got %+v", in, got)
	}

	resp = post(t, ts.URL+"/api/player/input", `{"x":0,"y":0,"active":false}`, nil)
	decode(t, resp, &in)
	if in.Active {
		t.Error("Explicit inactive flag should be kept")
	}

	if resp := post(t, ts.URL+"/api/player/input", `not json`, nil); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad body, got %d", resp.StatusCode)
	}
}

// TestPlayerFire verifies firing needs a running game
func TestPlayerFire(t *testing.T) {
	ts, e := newTestServer(t, nil)

	if resp := post(t, ts.URL+"/api/player/fire", "", nil); resp.StatusCode != http.StatusConflict {
		t.Errorf("Expected 409 on the welcome screen, got %d", resp.StatusCode)
	}

	post(t, ts.URL+"/api/game/play", "", nil)
	e.Step(testDt)

	var out map[string]bool
	decode(t, post(t, ts.URL+"/api/player/fire", "", nil), &out)
	if !out["fired"] {
		t.Error("Expected a shot")
	}

	e.Step(testDt)
	if ammo := e.Snapshot().Player.Ammo; ammo != 19 {
		t.Errorf("Expected 19 ammo, got %d", ammo)
	}
}

// TestShipUpgrade verifies upgrades and their error mapping
func TestShipUpgrade(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp := post(t, ts.URL+"/api/ship/upgrade", `{"stat":"ammo"}`, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var stats ship.Stats
	decode(t, resp, &stats)
	if stats.MaxAmmo != 22 {
		t.Errorf("Expected 22 max ammo, got %d", stats.MaxAmmo)
	}

	var info struct {
		Upgrades ship.UpgradeState `json:"upgrades"`
	}
	decode(t, get(t, ts.URL+"/api/ship"), &info)
	if info.Upgrades.AmmoLevel != 1 {
		t.Errorf("Expected ammo level 1, got %d", info.Upgrades.AmmoLevel)
	}

	if resp := post(t, ts.URL+"/api/ship/upgrade", `{"stat":"warp"}`, nil); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown stat, got %d", resp.StatusCode)
	}

	post(t, ts.URL+"/api/game/play", "", nil)
	if resp := post(t, ts.URL+"/api/ship/upgrade", `{"stat":"ammo"}`, nil); resp.StatusCode != http.StatusConflict {
		t.Errorf("Expected 409 during a run, got %d", resp.StatusCode)
	}
}

// TestSpawnMeteor verifies the debug spawn route
func TestSpawnMeteor(t *testing.T) {
	ts, e := newTestServer(t, nil)

	body := `{"template":"meteor_small","position":{"x":0,"y":0,"z":20},"direction":{"x":0,"y":0,"z":-1}}`
	resp := post(t, ts.URL+"/api/meteors", body, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected application/json, got %s", ct)
	}

	for _, s := range e.PoolStats() {
		if s.Name == game.PoolMeteors && s.Tracked != 1 {
			t.Errorf("Expected 1 tracked meteor, got %d", s.Tracked)
		}
	}

	if resp := post(t, ts.URL+"/api/meteors", `{"template":"bullet"}`, nil); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for a non-meteor template, got %d", resp.StatusCode)
	}
}

// TestAdminToken verifies control routes are guarded when a token is set
func TestAdminToken(t *testing.T) {
	ts, _ := newTestServer(t, func(c *RouterConfig) { c.AdminToken = "s3cret" })

	tests := []struct {
		name   string
		header http.Header
		want   int
	}{
		{"missing", nil, http.StatusUnauthorized},
		{"wrong", http.Header{"Authorization": {"Bearer nope"}}, http.StatusUnauthorized},
		{"bearer", http.Header{"Authorization": {"Bearer s3cret"}}, http.StatusOK},
		{"lowercase scheme", http.Header{"Authorization": {"bearer s3cret"}}, http.StatusOK},
		{"header", http.Header{AdminTokenHeader: {"s3cret"}}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, ts.URL+"/api/game/play", "", tt.header)
			if resp.StatusCode != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, resp.StatusCode)
			}
		})
	}

	// Observation stays public
	if resp := get(t, ts.URL+"/api/state"); resp.StatusCode != http.StatusOK {
		t.Errorf("GET should not need a token, got %d", resp.StatusCode)
	}
}

// TestRateLimitMiddleware verifies requests beyond the burst are rejected
func TestRateLimitMiddleware(t *testing.T) {
	ts, _ := newTestServer(t, func(c *RouterConfig) {
		c.RateLimiter = nil
		c.RateLimitConfig = &RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2}
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, get(t, ts.URL+"/api/pools").StatusCode)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Errorf("Burst requests should pass, got %v", codes)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Errorf("Expected 429 after the burst, got %d", codes[2])
	}

	resp := get(t, ts.URL+"/api/pools")
	if ra := resp.Header.Get("Retry-After"); ra != "60" {
		t.Errorf("Expected a capped Retry-After of 60, got %q", ra)
	}
}

// TestFrameEndpoint verifies PNG output and the disabled case
func TestFrameEndpoint(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp := get(t, ts.URL+"/api/frame.png")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("Expected image/png, got %s", ct)
	}
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	if !bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")) {
		t.Error("Body is not a PNG")
	}

	ts2, _ := newTestServer(t, func(c *RouterConfig) { c.Renderer = nil })
	if resp := get(t, ts2.URL+"/api/frame.png"); resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 without a renderer, got %d", resp.StatusCode)
	}
}

// TestCORSPreflight verifies allowed origins get CORS headers
func TestCORSPreflight(t *testing.T) {
	ts, _ := newTestServer(t, func(c *RouterConfig) {
		c.Origins = NewOriginChecker([]string{"https://game.example"})
	})

	tests := []struct {
		origin  string
		allowed bool
	}{
		{"https://game.example", true},
		{"http://localhost:5173", true},
		{"https://evil.example", false},
	}

	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/api/game/play", nil)
			req.Header.Set("Origin", tt.origin)
			req.Header.Set("Access-Control-Request-Method", "POST")
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("Preflight failed: %v", err)
			}
			resp.Body.Close()

			got := resp.Header.Get("Access-Control-Allow-Origin") == tt.origin
			if got != tt.allowed {
				t.Errorf("Expected allowed=%v, got %v", tt.allowed, got)
			}
		})
	}
}

// TestRootRedirect verifies / points at the state endpoint
func TestRootRedirect(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := client.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET / failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != "/api/state" {
		t.Errorf("Expected 302 to /api/state, got %d %s", resp.StatusCode, resp.Header.Get("Location"))
	}
}

// TestStatusFor verifies error to status mapping
func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{ship.ErrUnknownStat, http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", game.ErrUnknownTemplate), http.StatusBadRequest},
		{game.ErrNotPlaying, http.StatusConflict},
		{game.ErrUpgradeInGame, http.StatusConflict},
		{fmt.Errorf("horizontal: %w", ship.ErrMaxLevel), http.StatusConflict},
		{errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("%v: expected %d, got %d", tt.err, tt.want, got)
		}
	}
}

// TestWebSocketStream verifies snapshots are pushed and commands applied
func TestWebSocketStream(t *testing.T) {
	e := newTestEngine(t)
	e.Play()
	e.Step(testDt)

	srv := NewServer(ServerConfig{
		Router: RouterConfig{
			Engine:          e,
			RateLimitConfig: &RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
			DisableLogging:  true,
		},
		BroadcastInterval: 20 * time.Millisecond,
	})
	go srv.Hub().Run()
	srv.Hub().StartBroadcastLoop(20 * time.Millisecond)
	defer srv.Stop(context.Background())

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	header := http.Header{"Origin": {"http://localhost:3000"}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	for msg.Event != EventGameState {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		if err := json.Unmarshal(raw, &msg); err != nil {
			t.Fatalf("Bad message: %v", err)
		}
	}
	var snap game.GameSnapshot
	if err := json.Unmarshal(msg.Data, &snap); err != nil || snap.Session.State != "playing" {
		t.Errorf("Expected a playing snapshot, got %q (%v)", snap.Session.State, err)
	}

	if err := conn.WriteJSON(map[string]interface{}{"type": "input", "x": 1, "y": 0}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		e.Step(testDt)
		if in := e.Snapshot().Player.Input; in.Active && in.X == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error("Input command was not applied")
}

// TestWebSocketOriginRejected verifies unknown origins cannot connect
func TestWebSocketOriginRejected(t *testing.T) {
	srv := NewServer(ServerConfig{Router: RouterConfig{Engine: newTestEngine(t), DisableLogging: true}})
	go srv.Hub().Run()
	defer srv.Stop(context.Background())

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example"}})
	if err == nil {
		t.Fatal("Expected the handshake to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("Expected 403, got %v", resp)
	}
}

// TestWebSocketViewerCannotControl verifies socket commands need the admin token
func TestWebSocketViewerCannotControl(t *testing.T) {
	e := newTestEngine(t)
	e.Play()
	e.Step(testDt)

	srv := NewServer(ServerConfig{
		Router: RouterConfig{
			Engine:         e,
			AdminToken:     "secret",
			DisableLogging: true,
		},
	})
	go srv.Hub().Run()
	defer srv.Stop(context.Background())

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	header := http.Header{"Origin": {"http://localhost:3000"}}

	rejected := connectionRejected.WithLabelValues("auth")
	before := testutil.ToFloat64(rejected)

	viewer, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("Viewer dial failed: %v", err)
	}
	defer viewer.Close()

	if err := viewer.WriteJSON(map[string]string{"type": "fire"}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for testutil.ToFloat64(rejected) == before && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := testutil.ToFloat64(rejected) - before; got != 1 {
		t.Fatalf("Expected 1 auth rejection, got %v", got)
	}

	e.Step(testDt)
	if ammo := e.Snapshot().Player.Ammo; ammo != 20 {
		t.Errorf("Expected 20 ammo after a viewer fire, got %d", ammo)
	}

	pilot, _, err := websocket.DefaultDialer.Dial(url+"?token=secret", header)
	if err != nil {
		t.Fatalf("Pilot dial failed: %v", err)
	}
	defer pilot.Close()

	if err := pilot.WriteJSON(map[string]string{"type": "fire"}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	deadline = time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		e.Step(testDt)
		if e.Snapshot().Player.Ammo == 19 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error("Fire with the token was not applied")
}
