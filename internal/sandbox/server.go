package sandbox

import (
	"blindbox-draw/config"
	"blindbox-draw/internal/cache"
	"blindbox-draw/internal/database"
	"blindbox-draw/internal/handler"
	"blindbox-draw/internal/metrics"
	"blindbox-draw/internal/queue"
	"blindbox-draw/internal/repository"
	"blindbox-draw/internal/service"
	"blindbox-draw/internal/worker"
	"blindbox-draw/pkg/logger"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"

	saleQueueBuffer = 256
	shutdownTimeout = 5 * time.Second
)

// Components 模擬後端的各層元件
type Components struct {
	Series    repository.SeriesRepository
	Boxes     repository.StockBoxRepository
	Sales     repository.SaleRepository
	Inventory cache.SlotInventory
	Queue     queue.SaleQueue
}

// MemoryComponents 全部放在記憶體，不需要外部服務
func MemoryComponents() *Components {
	series, boxes, sales := repository.NewMemoryRepositories()
	return &Components{
		Series:    series,
		Boxes:     boxes,
		Sales:     sales,
		Inventory: cache.NewMemorySlotInventory(),
		Queue:     queue.NewSaleQueue(saleQueueBuffer),
	}
}

type Server struct {
	cfg     config.SandboxConfig
	service service.DrawService
	worker  worker.SaleWorker
	router  *gin.Engine
	closers []func()
	log     *zap.Logger
}

// New 依設定建立模擬後端；postgres 後端同時使用 Redis 做庫存與 Queue
func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	switch cfg.Sandbox.Backend {
	case BackendMemory, "":
		return NewWithComponents(ctx, cfg.Sandbox, MemoryComponents(), nil)
	case BackendPostgres:
		return newPostgres(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown sandbox backend %q", cfg.Sandbox.Backend)
	}
}

func newPostgres(ctx context.Context, cfg *config.Config) (*Server, error) {
	pool, err := database.InitDatabase(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := repository.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	rdb, err := database.InitRedis(ctx, &cfg.Redis)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	hostname, _ := os.Hostname()
	consumerID := fmt.Sprintf("%s-%d", hostname, os.Getpid())
	saleQueue, err := queue.NewRedisStreamSaleQueue(ctx, rdb, consumerID, nil)
	if err != nil {
		rdb.Close()
		pool.Close()
		return nil, fmt.Errorf("init sale queue: %w", err)
	}

	components := &Components{
		Series:    repository.NewSeriesRepository(pool),
		Boxes:     repository.NewStockBoxRepository(pool),
		Sales:     repository.NewSaleRepository(pool),
		Inventory: cache.NewRedisSlotInventory(rdb),
		Queue:     saleQueue,
	}
	closers := []func(){
		func() { rdb.Close() },
		pool.Close,
	}
	s, err := NewWithComponents(ctx, cfg.Sandbox, components, closers)
	if err != nil {
		for _, c := range closers {
			c()
		}
		return nil, err
	}
	return s, nil
}

// NewWithComponents 寫入初始資料、預熱庫存並組好路由
func NewWithComponents(ctx context.Context, cfg config.SandboxConfig, c *Components, closers []func()) (*Server, error) {
	log := logger.WithComponent("sandbox")

	if cfg.Seed {
		fixtures, err := repository.DemoFixtures()
		if err != nil {
			return nil, err
		}
		if err := repository.Seed(ctx, c.Series, c.Boxes, fixtures); err != nil {
			return nil, err
		}
	}

	drawService := service.NewDrawService(c.Series, c.Boxes, c.Sales, c.Inventory, c.Queue)
	if _, err := drawService.WarmUp(ctx); err != nil {
		return nil, fmt.Errorf("warm up inventory: %w", err)
	}
	if len(cfg.Tokens) == 0 {
		log.Warn("no sandbox tokens configured, every authenticated request will be rejected")
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), handler.RequestLogger())
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	handler.NewSeriesHandler(drawService).RegisterRoutes(router)
	handler.NewDrawHandler(drawService).RegisterRoutes(router, handler.RequireToken(cfg.Tokens))

	return &Server{
		cfg:     cfg,
		service: drawService,
		worker:  worker.NewSaleWorker(drawService, c.Queue),
		router:  router,
		closers: closers,
		log:     log,
	}, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Service() service.DrawService {
	return s.service
}

// StartWorker 啟動售出紀錄寫入；ctx 結束後停止
func (s *Server) StartWorker(ctx context.Context) error {
	return s.worker.Start(ctx)
}

// Run 啟動 worker 與 HTTP 服務，ctx 結束時優雅關閉
func (s *Server) Run(ctx context.Context) error {
	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	if err := s.StartWorker(workerCtx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("sandbox listening", zap.String("addr", s.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error("shutdown failed", zap.Error(err))
		}
	}

	// HTTP 停止後才停 worker
	stopWorker()
	s.worker.Wait()
	return nil
}

func (s *Server) Close() {
	for _, c := range s.closers {
		c()
	}
}
