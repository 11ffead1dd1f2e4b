// Package config provides centralized configuration management.
// Every tunable of the server process is resolved here, from defaults
// overridden by environment variables.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// SIMULATION CONFIGURATION
// =============================================================================

// GameConfig holds fixed-tick simulation settings.
type GameConfig struct {
	TickRate   int    // Simulation steps per second
	StartLives int    // Lives at the start of every run
	Seed       int64  // RNG seed; 0 means time based
	AutoPlay   bool   // Start a run immediately instead of waiting on the menu
	ShipID     string // Default ship when no save exists
}

// DefaultGame returns the default simulation configuration.
func DefaultGame() GameConfig {
	return GameConfig{
		TickRate:   60,
		StartLives: 3,
	}
}

// GameFromEnv returns simulation configuration with environment overrides.
func GameFromEnv() GameConfig {
	cfg := DefaultGame()

	if r := getEnvInt("TICK_RATE", 0); r > 0 {
		cfg.TickRate = r
	}
	if l := getEnvInt("START_LIVES", 0); l > 0 {
		cfg.StartLives = l
	}
	if s := getEnvInt("GAME_SEED", 0); s != 0 {
		cfg.Seed = int64(s)
	}
	if os.Getenv("AUTO_PLAY") == "true" {
		cfg.AutoPlay = true
	}
	if id := os.Getenv("DEFAULT_SHIP"); id != "" {
		cfg.ShipID = id
	}

	return cfg
}

// =============================================================================
// POOL CONFIGURATION
// =============================================================================

// PoolConfig holds prewarm sizes for the pools that have a default template.
type PoolConfig struct {
	BulletPrewarm    int // Bullets created at startup
	ExplosionPrewarm int // Explosions created per explosion pool at startup
}

// DefaultPool returns the default pool configuration.
func DefaultPool() PoolConfig {
	return PoolConfig{
		BulletPrewarm:    10,
		ExplosionPrewarm: 10,
	}
}

// PoolFromEnv returns pool configuration with environment overrides.
// Zero is a valid override (disables prewarm), so negative means unset.
func PoolFromEnv() PoolConfig {
	cfg := DefaultPool()

	if n := getEnvInt("POOL_PREWARM_BULLETS", -1); n >= 0 {
		cfg.BulletPrewarm = n
	}
	if n := getEnvInt("POOL_PREWARM_EXPLOSIONS", -1); n >= 0 {
		cfg.ExplosionPrewarm = n
	}

	return cfg
}

// =============================================================================
// STORAGE CONFIGURATION
// =============================================================================

// StorageConfig holds file locations.
type StorageConfig struct {
	ContentPath  string // YAML levels/ships file; empty uses built-in content
	SaveDir      string // Directory for the ship upgrade save
	EventLogPath string // JSONL event log; empty disables it
}

// DefaultStorage returns the default storage configuration.
func DefaultStorage() StorageConfig {
	return StorageConfig{
		SaveDir:      "data",
		EventLogPath: "events.jsonl",
	}
}

// StorageFromEnv returns storage configuration with environment overrides.
func StorageFromEnv() StorageConfig {
	cfg := DefaultStorage()

	if p := os.Getenv("CONTENT_PATH"); p != "" {
		cfg.ContentPath = p
	}
	if d := os.Getenv("SAVE_DIR"); d != "" {
		cfg.SaveDir = d
	}
	if p, ok := os.LookupEnv("EVENT_LOG_PATH"); ok {
		cfg.EventLogPath = p
	}

	return cfg
}

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port              int
	RequestsPerSecond float64
	Burst             int
	BroadcastInterval time.Duration
	DebugServer       bool
	DebugAddr         string
	AdminToken        string   // Required on control routes when set
	CORSOrigins       []string // Empty uses the built-in allow list
	FrameWidth        int
	FrameHeight       int
	FontPath          string // Optional HUD font for the frame endpoint
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:              3000,
		RequestsPerSecond: 20,
		Burst:             40,
		BroadcastInterval: 100 * time.Millisecond,
		DebugServer:       true,
		DebugAddr:         "127.0.0.1:6060",
		FrameWidth:        640,
		FrameHeight:       360,
	}
}

// ServerFromEnv returns server configuration with environment overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if r := getEnvFloat("RATE_LIMIT_RPS", 0); r > 0 {
		cfg.RequestsPerSecond = r
	}
	if b := getEnvInt("RATE_LIMIT_BURST", 0); b > 0 {
		cfg.Burst = b
	}
	if ms := getEnvInt("BROADCAST_INTERVAL_MS", 0); ms > 0 {
		cfg.BroadcastInterval = time.Duration(ms) * time.Millisecond
	}
	if os.Getenv("DISABLE_DEBUG_SERVER") == "true" {
		cfg.DebugServer = false
	}
	if a := os.Getenv("DEBUG_ADDR"); a != "" {
		cfg.DebugAddr = a
	}
	cfg.AdminToken = os.Getenv("ADMIN_TOKEN")
	if o := os.Getenv("CORS_ORIGINS"); o != "" {
		for _, origin := range strings.Split(o, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, origin)
			}
		}
	}
	if w := getEnvInt("FRAME_WIDTH", 0); w > 0 {
		cfg.FrameWidth = w
	}
	if h := getEnvInt("FRAME_HEIGHT", 0); h > 0 {
		cfg.FrameHeight = h
	}
	cfg.FontPath = os.Getenv("HUD_FONT_PATH")

	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Game    GameConfig
	Pool    PoolConfig
	Storage StorageConfig
	Server  ServerConfig
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	return AppConfig{
		Game:    GameFromEnv(),
		Pool:    PoolFromEnv(),
		Storage: StorageFromEnv(),
		Server:  ServerFromEnv(),
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
