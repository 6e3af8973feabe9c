package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/agenthands/expand/internal/config"
	"github.com/agenthands/expand/internal/core"
	"github.com/agenthands/expand/internal/logger"
	"github.com/agenthands/expand/internal/server"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using defaults")
	}

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/config.toml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	lg, err := logger.New(cfg.Logging.Mode)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer lg.Sync()

	ctx := context.Background()
	e, err := core.New(ctx, cfg, lg)
	if err != nil {
		lg.Fatal("failed to initialize expander", "error", err)
	}
	defer e.Close(ctx)

	srv := server.NewServer(e, lg)
	r := srv.SetupRouter()

	lg.Info("starting server", "port", cfg.Server.Port, "kps", e.KPs())
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		lg.Fatal("server stopped", "error", err)
	}
}
