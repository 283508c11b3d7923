package main

import (
	"context"
	"os"
	"strings"

	"go.uber.org/zap"

	"accessibility-eta-service/internal/adapters/repositories"
	"accessibility-eta-service/internal/config"
	"accessibility-eta-service/internal/platform/db"
	"accessibility-eta-service/internal/platform/logging"
)

func main() {
	logger, err := logging.New(config.Get("LOG_LEVEL", "info"), config.Get("LOG_FORMAT", "console"))
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if err := config.LoadDotEnv(); err != nil {
		logger.Warn("no .env file loaded (using environment variables)", zap.Error(err))
	}

	databaseURL := config.Get("DATABASE_URL", "")
	if strings.TrimSpace(databaseURL) == "" {
		logger.Fatal("DATABASE_URL is required")
	}

	ctx := context.Background()
	conn, err := db.Open(ctx, databaseURL, 2)
	if err != nil {
		logger.Fatal("open database", zap.Error(err))
	}
	defer conn.Close()

	logger.Info("initializing database schema")
	if err := repositories.InitSchema(ctx, conn); err != nil {
		logger.Error("schema initialization failed", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("schema ready")
}
