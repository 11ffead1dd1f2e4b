package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"meteor-dodge/internal/api"
	"meteor-dodge/internal/config"
	"meteor-dodge/internal/content"
	"meteor-dodge/internal/game"
	"meteor-dodge/internal/render"
	"meteor-dodge/internal/ship"

	"github.com/joho/godotenv"
)

func main() {
	// Load .env file from parent directory
	if err := godotenv.Load("../.env"); err != nil {
		// Try current directory as fallback
		if err := godotenv.Load(".env"); err != nil {
			log.Println("💡 No .env file found, using environment variables only")
		}
	} else {
		log.Println("✅ Loaded environment from ../.env")
	}

	log.Println("☄️ ================================")
	log.Println("☄️  METEOR DODGE - GO ENGINE")
	log.Println("☄️ ================================")

	appConfig := config.Load()
	gameCfg := appConfig.Game
	poolCfg := appConfig.Pool
	storageCfg := appConfig.Storage
	serverCfg := appConfig.Server

	gameContent, err := content.Load(storageCfg.ContentPath)
	if err != nil {
		log.Fatalf("❌ Failed to load content: %v", err)
	}
	if storageCfg.ContentPath != "" {
		log.Printf("📦 Content: %s (%d levels, %d ships)", storageCfg.ContentPath, len(gameContent.Levels), len(gameContent.Ships))
	} else {
		log.Printf("📦 Built-in content (%d levels)", len(gameContent.Levels))
	}

	ships, err := loadShips(gameContent, gameCfg.ShipID, storageCfg.SaveDir)
	if err != nil {
		log.Fatalf("❌ Failed to load ship progress: %v", err)
	}
	log.Printf("🚀 Ship: %s", ships.Current().DisplayName)

	engine, err := game.NewEngine(game.EngineConfig{
		TickRate:         gameCfg.TickRate,
		StartLives:       gameCfg.StartLives,
		Seed:             gameCfg.Seed,
		BulletPrewarm:    poolCfg.BulletPrewarm,
		ExplosionPrewarm: poolCfg.ExplosionPrewarm,
		AutoPlay:         gameCfg.AutoPlay,
		Observer:         api.PoolMetrics{},
	}, gameContent, ships)
	if err != nil {
		log.Fatalf("❌ Failed to create engine: %v", err)
	}
	engine.OnTick = api.RecordTick
	log.Printf("🎮 Config: %d TPS, %d lives, prewarm %d bullets / %d explosions",
		gameCfg.TickRate, gameCfg.StartLives, poolCfg.BulletPrewarm, poolCfg.ExplosionPrewarm)

	if storageCfg.EventLogPath != "" {
		if err := engine.StartEventLog(storageCfg.EventLogPath); err != nil {
			log.Printf("⚠️ Event log disabled: %v", err)
		} else {
			log.Printf("📝 Event log: %s", storageCfg.EventLogPath)
		}
	}

	// Debug server (pprof + metrics), localhost only
	debugCfg := api.DefaultObservabilityConfig()
	debugCfg.Enabled = serverCfg.DebugServer
	debugCfg.ListenAddr = serverCfg.DebugAddr
	debugCfg.BasicAuthUser = os.Getenv("DEBUG_USER")
	debugCfg.BasicAuthPass = os.Getenv("DEBUG_PASS")
	debugServer := api.StartDebugServer(debugCfg)

	if serverCfg.AdminToken == "" {
		log.Println("⚠️ ADMIN_TOKEN not set - control routes are open")
	} else {
		log.Println("🔐 Control routes require the admin token")
	}

	server := api.NewServer(api.ServerConfig{
		Router: api.RouterConfig{
			Engine: engine,
			Renderer: render.New(render.Config{
				Width:    serverCfg.FrameWidth,
				Height:   serverCfg.FrameHeight,
				FontPath: serverCfg.FontPath,
			}),
			RateLimitConfig: &api.RateLimitConfig{
				RequestsPerSecond: serverCfg.RequestsPerSecond,
				Burst:             serverCfg.Burst,
			},
			Origins:    api.NewOriginChecker(serverCfg.CORSOrigins),
			AdminToken: serverCfg.AdminToken,
		},
		BroadcastInterval: serverCfg.BroadcastInterval,
	})

	engine.Start()
	log.Println("✅ Game Engine started")

	go func() {
		addr := ":" + strconv.Itoa(serverCfg.Port)
		if err := server.Start(addr); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Println("✅ Server ready! Press Ctrl+C to stop.")
	<-quit

	log.Println("🛑 Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		log.Printf("⚠️ API shutdown: %v", err)
	}
	if debugServer != nil {
		debugServer.Shutdown(ctx)
	}
	engine.Stop()
	engine.StopEventLog()
	if err := ships.Save(); err != nil {
		log.Printf("⚠️ Failed to save ship progress: %v", err)
	}
	log.Println("👋 Goodbye!")
}

// loadShips resolves the ship catalogue and the saved upgrade levels.
// Content without ships falls back to the starter ship.
func loadShips(c *content.Content, shipID, saveDir string) (*ship.Manager, error) {
	defs := c.Ships
	if len(defs) == 0 {
		defs = []ship.Definition{ship.DefaultDefinition()}
	}

	defaultID := shipID
	if defaultID == "" {
		defaultID = c.DefaultShip
	}
	if defaultID == "" {
		defaultID = defs[0].ID
	}

	store := ship.NewStore(saveDir)
	state, err := store.Load(defaultID)
	if err != nil {
		return nil, err
	}
	return ship.NewManager(defs, defaultID, state, store)
}
