package main

import (
	"blindbox-draw/config"
	"blindbox-draw/internal/sandbox"
	"blindbox-draw/pkg/logger"
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	defer logger.L.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, err := sandbox.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize sandbox: %v", err)
	}
	defer server.Close()

	logger.L.Info("sandbox starting",
		zap.String("backend", cfg.Sandbox.Backend),
		zap.String("addr", cfg.Sandbox.Addr),
		zap.Int("tokens", len(cfg.Sandbox.Tokens)),
	)
	if err := server.Run(ctx); err != nil {
		logger.L.Error("sandbox stopped", zap.Error(err))
	}
}
