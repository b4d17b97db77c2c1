package main

import (
	"blindbox-draw/config"
	"blindbox-draw/internal/api"
	"blindbox-draw/internal/catalog"
	"blindbox-draw/internal/database"
	"blindbox-draw/internal/flow"
	"blindbox-draw/internal/model"
	"blindbox-draw/internal/pricing"
	"blindbox-draw/internal/session"
	"blindbox-draw/internal/tui"
	"blindbox-draw/pkg/logger"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	bubbletea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 終端介面佔用畫面，log 改寫到檔案
	if err := logger.RedirectToFile(cfg.Log.File, cfg.Log.Level); err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer logger.L.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := newCredentialStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize credential store: %v", err)
	}
	defer closeStore()

	guard := session.NewGuard(store)
	if err := guard.Init(ctx); err != nil {
		log.Fatalf("Failed to load credential: %v", err)
	}
	if cfg.Session.Token != "" {
		if err := guard.Login(ctx, cfg.Session.Token); err != nil {
			log.Fatalf("Failed to log in: %v", err)
		}
	}

	client, err := api.NewClient(cfg.API.BaseURL, cfg.API.Timeout, guard)
	if err != nil {
		log.Fatalf("Failed to create api client: %v", err)
	}

	controller := flow.NewController(
		model.ID(cfg.Flow.SeriesID),
		client,
		catalog.NewStockCatalog(client, guard),
		pricing.NewSeriesPricingView(client, cfg.Flow.MinorUnits),
		guard,
		flow.WithConfirmation(cfg.Flow.ConfirmPayment),
	)

	flowCtx, cancelFlow := context.WithCancel(ctx)
	flowDone := make(chan error, 1)
	go func() {
		flowDone <- controller.Run(flowCtx)
	}()

	program := bubbletea.NewProgram(tui.NewModel(controller, guard.Login), bubbletea.WithAltScreen(), bubbletea.WithContext(ctx))
	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		logger.L.Error("tui stopped", zap.Error(err))
	}

	cancelFlow()
	if err := <-flowDone; err != nil {
		logger.L.Error("purchase flow stopped", zap.Error(err))
	}
}

func newCredentialStore(ctx context.Context, cfg *config.Config) (session.CredentialStore, func(), error) {
	switch cfg.Session.Store {
	case "memory":
		return session.NewMemoryStore(""), func() {}, nil
	case "file", "":
		return session.NewFileStore(cfg.Session.FilePath), func() {}, nil
	case "redis":
		rdb, err := database.InitRedis(ctx, &cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return session.NewRedisStore(rdb, cfg.Session.RedisKey), func() { rdb.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown session store %q", cfg.Session.Store)
	}
}
