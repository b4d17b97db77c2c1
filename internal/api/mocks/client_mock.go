package mocks

import (
	"blindbox-draw/internal/model"
	"context"

	"github.com/stretchr/testify/mock"
)

type ClientMock struct {
	mock.Mock
}

func NewClientMock() *ClientMock {
	return &ClientMock{}
}

func (m *ClientMock) ListStockBoxes(ctx context.Context, seriesID model.ID) ([]model.StockBox, error) {
	args := m.Called(ctx, seriesID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.StockBox), args.Error(1)
}

func (m *ClientMock) PurchaseStockBox(ctx context.Context, stockID model.ID, idempotencyKey string) (model.DrawResult, error) {
	args := m.Called(ctx, stockID, idempotencyKey)
	return args.Get(0).(model.DrawResult), args.Error(1)
}

func (m *ClientMock) GetPriceQuote(ctx context.Context, seriesID model.ID) (model.PriceQuote, error) {
	args := m.Called(ctx, seriesID)
	return args.Get(0).(model.PriceQuote), args.Error(1)
}

func (m *ClientMock) GetSeriesDetail(ctx context.Context, seriesID model.ID) (*model.SeriesDetail, error) {
	args := m.Called(ctx, seriesID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SeriesDetail), args.Error(1)
}
