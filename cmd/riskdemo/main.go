// Command riskdemo boots the authentication risk engine as a standalone
// HTTP service: the learning engine, the anomaly detector, the audit
// trail/device registry database, and the gin routes of spec.md §6, wired
// the way the teacher's main.go boots CloudGate.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"authrisk/internal/config"
	"authrisk/internal/httpapi"
	"authrisk/internal/learning"
	"authrisk/internal/riskengine"
	"authrisk/internal/service"
	"authrisk/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: No .env file found or error loading .env file: %v", err)
		log.Printf("Continuing with system environment variables...")
	} else {
		log.Printf("Successfully loaded .env file")
	}

	cfg := config.LoadConfig()
	if err := config.ValidateConfig(cfg); err != nil {
		log.Fatal("❌ Configuration validation failed:", err)
	}
	log.Printf("✅ Configuration validated successfully")

	log.Printf("🔄 Initializing database connection...")
	db, err := store.Open(store.DBConfigFromEnv())
	if err != nil {
		log.Fatal("❌ Failed to initialize database:", err)
	}
	log.Printf("✅ Database initialized successfully")

	auditLog, err := learning.NewAuditLog(db)
	if err != nil {
		log.Fatal("❌ Failed to initialize audit log:", err)
	}
	devices := learning.NewDeviceRegistry(db)

	log.Printf("🔄 Restoring adaptive-learning snapshot...")
	snapshots, err := store.NewSnapshotStore(cfg.StorageDir)
	if err != nil {
		log.Fatal("❌ Failed to initialize snapshot store:", err)
	}

	engineCfg := learning.DefaultEngineConfig()
	engineCfg.ThresholdAdjustmentStep = cfg.ThresholdAdjustmentStep
	engineCfg.MaxThresholdAdjustment = cfg.MaxThresholdAdjustment
	engineCfg.MinSamplesForAdaptation = cfg.MinSamplesForAdaptation
	engineCfg.MinThresholdValue = cfg.MinThresholdValue
	engineCfg.MaxThresholdValue = cfg.MaxThresholdValue
	engineCfg.FeedbackConfidenceThreshold = cfg.FeedbackConfidenceThreshold
	engineCfg.FeedbackWeightAdmin = cfg.FeedbackWeightAdmin
	engineCfg.FeedbackWeightUser = cfg.FeedbackWeightUser
	engineCfg.FeedbackWeightSystem = cfg.FeedbackWeightSystem
	engineCfg.MaxModelVersions = cfg.MaxModelVersions
	engineCfg.AutoRollbackThreshold = cfg.AutoRollbackThreshold

	engine := learning.NewEngine(engineCfg)
	if err := snapshots.LoadIntoEngine(engine); err != nil {
		log.Printf("⚠️ Warning: Failed to restore adaptive-learning snapshot: %v", err)
	} else {
		log.Printf("✅ Adaptive-learning snapshot restored from %s", cfg.StorageDir)
	}
	engine.Start()
	defer engine.Shutdown(context.Background())

	detectorCfg := riskengine.Config{
		Weights:           cfg.RiskWeights,
		DefaultThresholds: cfg.DefaultThresholds,
		MaxProcessingTime: cfg.MaxProcessingTime,
		CacheTTL:          cfg.CacheTTL,
		CacheSize:         cfg.CacheSize,
	}
	detector := riskengine.NewDetector(detectorCfg, engine, engine)

	svc := service.New(detector, engine, auditLog, devices)

	if os.Getenv("GIN_MODE") == "" {
		if os.Getenv("PORT") != "" {
			gin.SetMode(gin.ReleaseMode)
		} else {
			gin.SetMode(gin.DebugMode)
		}
	}

	router := gin.Default()
	httpapi.SetupRoutes(router, cfg.AllowedOrigins, svc, cfg.JWTSecret)

	stopSnapshots := make(chan struct{})
	go runSnapshotLoop(snapshots, engine, stopSnapshots)

	server := &http.Server{
		Addr:    "0.0.0.0:" + cfg.Port,
		Handler: router,
	}

	log.Printf("🚀 ========================================")
	log.Printf("🚀 Risk Engine Starting")
	log.Printf("🚀 ========================================")
	log.Printf("📅 Timestamp: %s", time.Now().UTC().Format(time.RFC3339))
	log.Printf("🌐 Port: %s", cfg.Port)
	log.Printf("🌍 Allowed Origins: %v", cfg.AllowedOrigins)
	log.Printf("⚖️  Risk weights: %+v (sum=%.4f)", cfg.RiskWeights, cfg.RiskWeights.Sum())
	log.Printf("📏 Default thresholds: %+v", cfg.DefaultThresholds)
	log.Printf("💾 Snapshot dir: %s", cfg.StorageDir)
	log.Printf("🚀 ========================================")

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("❌ Failed to start server:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("🛑 Shutting down...")
	close(stopSnapshots)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("⚠️ Warning: Server shutdown error: %v", err)
	}

	if err := snapshots.SaveEngine(engine); err != nil {
		log.Printf("⚠️ Warning: Failed to persist final adaptive-learning snapshot: %v", err)
	} else {
		log.Printf("✅ Final adaptive-learning snapshot persisted")
	}
}

// runSnapshotLoop periodically persists the learning engine's profiles and
// model versions, mirroring the teacher's hourly session-cleanup goroutine
// (main.go) but saving adaptive-learning state instead of pruning sessions.
func runSnapshotLoop(snapshots *store.SnapshotStore, engine *learning.Engine, stop <-chan struct{}) {
	ticker := time.NewTicker(15 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := snapshots.SaveEngine(engine); err != nil {
				log.Printf("⚠️ Warning: Periodic snapshot persist failed: %v", err)
			}
		case <-stop:
			return
		}
	}
}
