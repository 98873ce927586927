package main

import (
	"log"
	"os"
	"time"

	v1 "clusterchat/api/v1"
	"clusterchat/internal/auth"
	"clusterchat/internal/cache"
	"clusterchat/internal/config"
	"clusterchat/internal/db"
	"clusterchat/internal/ledger"
	"clusterchat/internal/llm"
	"clusterchat/internal/orchestrator"
	"clusterchat/internal/ratelimit"
	"clusterchat/internal/store"
	"clusterchat/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
		os.Exit(1)
	}
	log.Println("✓ Configuration loaded")

	if err := auth.Init(cfg.Secret); err != nil {
		log.Fatalf("Failed to initialize auth: %v", err)
		os.Exit(1)
	}

	// 2. Initialize MySQL
	if err := db.InitMySQL(cfg.MySQL.DSN); err != nil {
		log.Fatalf("Failed to initialize MySQL: %v", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(db.DB); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
		os.Exit(1)
	}
	log.Println("✓ Database ready")

	// 3. Initialize Redis
	if err := cache.InitRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB); err != nil {
		log.Fatalf("Failed to initialize Redis: %v", err)
		os.Exit(1)
	}
	defer cache.Close()

	// 4. Initialize WebSocket notifications
	if err := ws.InitServer(db.DB); err != nil {
		log.Fatalf("Failed to initialize WebSocket server: %v", err)
		os.Exit(1)
	}
	defer ws.Close()

	// 5. Wire the orchestration stack
	logger := logrus.NewEntry(logrus.StandardLogger())
	records := store.New(db.DB)
	taskLedger := ledger.New(records, cfg.Orchestrator.OutputCap, logger)
	completer := llm.NewClient(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Model)

	orch := orchestrator.New(records, taskLedger, completer, orchestrator.Config{
		MaxRounds:        cfg.Orchestrator.MaxRounds,
		HistoryWindow:    cfg.Orchestrator.HistoryWindow,
		PollInterval:     time.Duration(cfg.Orchestrator.PollIntervalSec) * time.Second,
		GlobalTimeout:    time.Duration(cfg.Orchestrator.GlobalTimeoutSec) * time.Second,
		OfflineThreshold: time.Duration(cfg.Orchestrator.OfflineThresholdSec) * time.Second,
		OutputCap:        cfg.Orchestrator.OutputCap,
	}, logger)
	orch.SetNotify(ws.NotifyCluster)

	// 6. Initialize Gin router
	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()

	limiter := ratelimit.New(cache.Client)
	v1.SetupRouter(r, db.DB, limiter, taskLedger, orch, ws.NotifyCluster, cfg)

	r.GET("/socket.io/*any", gin.WrapH(ws.Server))
	r.POST("/socket.io/*any", gin.WrapH(ws.Server))

	log.Printf("✓ Server starting on %s", cfg.HTTPAddr)

	// Start server
	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
		os.Exit(1)
	}
}
