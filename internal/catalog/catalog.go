package catalog

import (
	"blindbox-draw/internal/api"
	"blindbox-draw/internal/model"
	"blindbox-draw/internal/session"
	apperrors "blindbox-draw/pkg/app_errors"
	"blindbox-draw/pkg/logger"
	"context"
	"sync"

	"go.uber.org/zap"
)

type StockCatalog interface {
	// 讀取系列庫存並過濾已售完的盒子
	Load(ctx context.Context, seriesID model.ID) (Snapshot, error)
	// 以上次的 seriesID 重新讀取
	Refresh(ctx context.Context) (Snapshot, error)
	// 循環切換目前的盒子
	Cycle(direction int) Snapshot
	// 指定目前的盒子
	Focus(stockID model.ID) (Snapshot, bool)
	Snapshot() Snapshot
	// 放棄進行中的讀取，晚到的回應不會覆蓋狀態
	Cancel()
}

// SessionInvalidator 授權失敗時通知 session.Guard
type SessionInvalidator interface {
	Invalidate(ctx context.Context, cause error)
}

type StockCatalogImpl struct {
	client api.Client
	guard  SessionInvalidator

	mu       sync.Mutex
	snap     Snapshot
	seriesID model.ID
	gen      uint64
	version  uint64
	cancel   context.CancelFunc
	log      *zap.Logger
}

func NewStockCatalog(client api.Client, guard SessionInvalidator) StockCatalog {
	return &StockCatalogImpl{
		client: client,
		guard:  guard,
		log:    logger.WithComponent("catalog"),
	}
}

func (c *StockCatalogImpl) Load(ctx context.Context, seriesID model.ID) (Snapshot, error) {
	if seriesID.IsZero() {
		return c.Snapshot(), apperrors.ErrInvalidInput
	}

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	loadCtx, cancel := context.WithCancel(ctx)
	c.gen++
	gen := c.gen
	c.cancel = cancel
	c.seriesID = seriesID
	c.mu.Unlock()
	defer cancel()

	boxes, err := c.client.ListStockBoxes(loadCtx, seriesID)

	c.mu.Lock()
	if gen != c.gen {
		snap := c.snap
		c.mu.Unlock()
		c.log.Debug("discard superseded load", zap.String("series_id", seriesID.String()))
		return snap, apperrors.ErrSuperseded
	}
	c.cancel = nil
	c.version++

	if err != nil {
		snap := newSnapshot(seriesID, nil, c.version)
		snap.Err = err
		c.snap = snap
		c.mu.Unlock()

		// 清除憑證可能是檔案或 Redis I/O，不可持有鎖
		if session.IsSessionError(err) && c.guard != nil {
			c.guard.Invalidate(ctx, err)
		}
		c.log.Warn("load stock boxes failed", zap.String("series_id", seriesID.String()), zap.Error(err))
		return snap, err
	}
	defer c.mu.Unlock()

	available := make([]model.StockBox, 0, len(boxes))
	for _, b := range boxes {
		if b.IsSoldOut() {
			continue
		}
		available = append(available, b.Clone())
	}

	snap := newSnapshot(seriesID, available, c.version)
	if prev, ok := c.snap.CurrentBox(); ok && c.snap.SeriesID == seriesID {
		if focused, ok := snap.Focus(prev.ID); ok {
			snap = focused
		}
	}
	c.snap = snap
	c.log.Debug("stock boxes loaded",
		zap.String("series_id", seriesID.String()),
		zap.Int("received", len(boxes)),
		zap.Int("available", len(available)),
	)
	return snap, nil
}

func (c *StockCatalogImpl) Refresh(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	seriesID := c.seriesID
	c.mu.Unlock()
	if seriesID.IsZero() {
		return c.Snapshot(), apperrors.ErrInvalidInput
	}
	return c.Load(ctx, seriesID)
}

func (c *StockCatalogImpl) Cycle(direction int) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap = c.snap.Cycle(direction)
	return c.snap
}

func (c *StockCatalogImpl) Focus(stockID model.ID) (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap, ok := c.snap.Focus(stockID)
	if ok {
		c.snap = snap
	}
	return c.snap, ok
}

func (c *StockCatalogImpl) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

func (c *StockCatalogImpl) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.gen++
}
