package service

import (
	"blindbox-draw/internal/cache"
	"blindbox-draw/internal/metrics"
	"blindbox-draw/internal/model"
	"blindbox-draw/internal/queue"
	"blindbox-draw/internal/repository"
	apperrors "blindbox-draw/pkg/app_errors"
	"blindbox-draw/pkg/logger"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type DrawService interface {
	// 預熱：把所有盒子的格位與已售格數載入庫存
	WarmUp(ctx context.Context) (int, error)
	GetSeries(ctx context.Context, seriesID model.ID) (*model.SeriesDetail, error)
	GetPriceQuote(ctx context.Context, seriesID model.ID) (model.PriceQuote, error)
	// 系列下所有盒子，包含已售完的
	ListStockBoxes(ctx context.Context, seriesID model.ID) ([]model.StockBox, error)
	// 購買(庫存配置格位，售出紀錄送入 Queue)
	Purchase(ctx context.Context, stockID model.ID, idempotencyKey string) (*model.Sale, error)
	// 寫入售出紀錄(Queue 消費端)
	RecordSale(ctx context.Context, sale *model.Sale) error
}

type DrawServiceImpl struct {
	seriesRepository   repository.SeriesRepository
	stockBoxRepository repository.StockBoxRepository
	saleRepository     repository.SaleRepository
	inventory          cache.SlotInventory
	saleQueue          queue.SaleQueue
	log                *zap.Logger
}

func NewDrawService(
	seriesRepository repository.SeriesRepository,
	stockBoxRepository repository.StockBoxRepository,
	saleRepository repository.SaleRepository,
	inventory cache.SlotInventory,
	saleQueue queue.SaleQueue,
) DrawService {
	return &DrawServiceImpl{
		seriesRepository:   seriesRepository,
		stockBoxRepository: stockBoxRepository,
		saleRepository:     saleRepository,
		inventory:          inventory,
		saleQueue:          saleQueue,
		log:                logger.WithComponent("sandbox"),
	}
}

func (s *DrawServiceImpl) WarmUp(ctx context.Context) (int, error) {
	boxes, err := s.stockBoxRepository.List(ctx)
	if err != nil {
		return 0, err
	}
	for _, box := range boxes {
		if err := s.inventory.WarmUp(ctx, box); err != nil {
			return 0, fmt.Errorf("warm up box %s: %w", box.ID, err)
		}
	}
	s.log.Info("inventory warmed up", zap.Int("boxes", len(boxes)))
	return len(boxes), nil
}

func (s *DrawServiceImpl) GetSeries(ctx context.Context, seriesID model.ID) (*model.SeriesDetail, error) {
	record, err := s.seriesRepository.FindByID(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	return &record.Detail, nil
}

func (s *DrawServiceImpl) GetPriceQuote(ctx context.Context, seriesID model.ID) (model.PriceQuote, error) {
	record, err := s.seriesRepository.FindByID(ctx, seriesID)
	if err != nil {
		return model.PriceQuote{}, err
	}
	return record.Quote(), nil
}

func (s *DrawServiceImpl) ListStockBoxes(ctx context.Context, seriesID model.ID) ([]model.StockBox, error) {
	if _, err := s.seriesRepository.FindByID(ctx, seriesID); err != nil {
		return nil, err
	}
	boxes, err := s.stockBoxRepository.ListBySeriesID(ctx, seriesID)
	if err != nil {
		return nil, err
	}

	out := make([]model.StockBox, 0, len(boxes))
	for _, box := range boxes {
		sold, err := s.sold(ctx, box)
		if err != nil {
			return nil, err
		}
		out = append(out, box.StockBox(sold))
	}
	return out, nil
}

// sold 以庫存為準，尚未預熱的盒子先預熱
func (s *DrawServiceImpl) sold(ctx context.Context, box *model.BoxDefinition) (int, error) {
	sold, err := s.inventory.Sold(ctx, box.ID)
	if errors.Is(err, apperrors.ErrStockBoxNotFound) {
		if err := s.inventory.WarmUp(ctx, box); err != nil {
			return 0, err
		}
		return s.inventory.Sold(ctx, box.ID)
	}
	return sold, err
}

func (s *DrawServiceImpl) Purchase(ctx context.Context, stockID model.ID, idempotencyKey string) (*model.Sale, error) {
	box, err := s.stockBoxRepository.FindByID(ctx, stockID)
	if err != nil {
		return nil, err
	}

	// 1. 配置格位
	alloc, err := s.inventory.Allocate(ctx, stockID, idempotencyKey, uuid.NewString())
	if errors.Is(err, apperrors.ErrStockBoxNotFound) {
		if err := s.inventory.WarmUp(ctx, box); err != nil {
			return nil, err
		}
		alloc, err = s.inventory.Allocate(ctx, stockID, idempotencyKey, uuid.NewString())
	}
	if err != nil {
		return nil, err
	}

	sale := &model.Sale{
		ID:             alloc.SaleID,
		StockID:        stockID,
		SeriesID:       box.SeriesID,
		SlotIndex:      alloc.SlotIndex,
		StyleID:        alloc.StyleID,
		IdempotencyKey: idempotencyKey,
		SoldAt:         time.Now().UTC(),
	}
	if alloc.Replayed {
		s.log.Info("replayed purchase", zap.String("stock_id", stockID.String()), zap.String("sale_id", sale.ID))
		return sale, nil
	}

	// 2. 送出售出紀錄；失敗時退回格位，使用 Background 確保回滾一定執行
	if err := s.saleQueue.PublishSale(ctx, sale); err != nil {
		released, rerr := s.inventory.Release(context.Background(), stockID, idempotencyKey, alloc)
		s.log.Error("publish sale failed",
			zap.String("sale_id", sale.ID),
			zap.Bool("released", released),
			zap.Error(err),
			zap.NamedError("release_error", rerr),
		)
		return nil, fmt.Errorf("publish sale: %w", err)
	}

	metrics.SandboxSlotsAllocated.WithLabelValues(box.SeriesID.String()).Inc()
	s.log.Info("slot allocated",
		zap.String("stock_id", stockID.String()),
		zap.Int("slot_index", sale.SlotIndex),
		zap.String("style_id", sale.StyleID.String()),
	)
	return sale, nil
}

func (s *DrawServiceImpl) RecordSale(ctx context.Context, sale *model.Sale) error {
	inserted, err := s.saleRepository.Create(ctx, sale)
	if err != nil {
		return err
	}
	if !inserted {
		s.log.Debug("sale already recorded", zap.String("sale_id", sale.ID))
	}
	return nil
}
