package mocks

import (
	"blindbox-draw/internal/model"
	"context"

	"github.com/stretchr/testify/mock"
)

type DrawServiceMock struct {
	mock.Mock
}

func NewDrawServiceMock() *DrawServiceMock {
	return &DrawServiceMock{}
}

func (m *DrawServiceMock) WarmUp(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *DrawServiceMock) GetSeries(ctx context.Context, seriesID model.ID) (*model.SeriesDetail, error) {
	args := m.Called(ctx, seriesID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SeriesDetail), args.Error(1)
}

func (m *DrawServiceMock) GetPriceQuote(ctx context.Context, seriesID model.ID) (model.PriceQuote, error) {
	args := m.Called(ctx, seriesID)
	return args.Get(0).(model.PriceQuote), args.Error(1)
}

func (m *DrawServiceMock) ListStockBoxes(ctx context.Context, seriesID model.ID) ([]model.StockBox, error) {
	args := m.Called(ctx, seriesID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.StockBox), args.Error(1)
}

func (m *DrawServiceMock) Purchase(ctx context.Context, stockID model.ID, idempotencyKey string) (*model.Sale, error) {
	args := m.Called(ctx, stockID, idempotencyKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Sale), args.Error(1)
}

func (m *DrawServiceMock) RecordSale(ctx context.Context, sale *model.Sale) error {
	args := m.Called(ctx, sale)
	return args.Error(0)
}
