package service_test

import (
	"blindbox-draw/internal/cache"
	"blindbox-draw/internal/model"
	"blindbox-draw/internal/queue"
	"blindbox-draw/internal/repository"
	"blindbox-draw/internal/service"
	apperrors "blindbox-draw/pkg/app_errors"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	service   service.DrawService
	boxes     repository.StockBoxRepository
	sales     repository.SaleRepository
	inventory cache.SlotInventory
	queue     queue.SaleQueue
}

func setup(t *testing.T, saleQueue queue.SaleQueue) *fixture {
	t.Helper()
	ctx := context.Background()
	seriesRepo, boxRepo, saleRepo := repository.NewMemoryRepositories()
	fixtures, err := repository.DemoFixtures()
	require.NoError(t, err)
	require.NoError(t, repository.Seed(ctx, seriesRepo, boxRepo, fixtures))

	if saleQueue == nil {
		saleQueue = queue.NewSaleQueue(64)
	}
	inventory := cache.NewMemorySlotInventory()
	return &fixture{
		service:   service.NewDrawService(seriesRepo, boxRepo, saleRepo, inventory, saleQueue),
		boxes:     boxRepo,
		sales:     saleRepo,
		inventory: inventory,
		queue:     saleQueue,
	}
}

type failingQueue struct {
	queue.SaleQueue
}

func (failingQueue) PublishSale(ctx context.Context, sale *model.Sale) error {
	return errors.New("queue unavailable")
}

func TestDrawService_WarmUp(t *testing.T) {
	ctx := context.Background()
	f := setup(t, nil)

	n, err := f.service.WarmUp(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	sold, err := f.inventory.Sold(ctx, "101")
	require.NoError(t, err)
	assert.Equal(t, 2, sold)
}

func TestDrawService_Series(t *testing.T) {
	ctx := context.Background()
	f := setup(t, nil)

	t.Run("Success", func(t *testing.T) {
		detail, err := f.service.GetSeries(ctx, "1")
		require.NoError(t, err)
		assert.Equal(t, "Forest Friends", detail.Name)

		quote, err := f.service.GetPriceQuote(ctx, "1")
		require.NoError(t, err)
		assert.Equal(t, "47.2", quote.ActualPrice(2).String())
	})

	t.Run("Failed - NotFound", func(t *testing.T) {
		_, err := f.service.GetSeries(ctx, "999")
		assert.ErrorIs(t, err, apperrors.ErrSeriesNotFound)
		_, err = f.service.GetPriceQuote(ctx, "999")
		assert.ErrorIs(t, err, apperrors.ErrSeriesNotFound)
	})
}

func TestDrawService_ListStockBoxes(t *testing.T) {
	ctx := context.Background()
	f := setup(t, nil)

	t.Run("Success - warms up lazily", func(t *testing.T) {
		boxes, err := f.service.ListStockBoxes(ctx, "1")
		require.NoError(t, err)
		require.Len(t, boxes, 3)

		assert.Equal(t, model.ID("101"), boxes[0].ID)
		assert.Len(t, boxes[0].Contents, 6)
		assert.Equal(t, []model.ID{"12", "11"}, boxes[0].SoldItems)
		// 售完的盒子也會回傳，由客戶端過濾
		assert.Len(t, boxes[2].SoldItems, 3)
	})

	t.Run("Success - reflects purchases", func(t *testing.T) {
		_, err := f.service.Purchase(ctx, "102", "k1")
		require.NoError(t, err)

		boxes, err := f.service.ListStockBoxes(ctx, "1")
		require.NoError(t, err)
		assert.Equal(t, []model.ID{"13"}, boxes[1].SoldItems)
	})

	t.Run("Failed - NotFound", func(t *testing.T) {
		_, err := f.service.ListStockBoxes(ctx, "999")
		assert.ErrorIs(t, err, apperrors.ErrSeriesNotFound)
	})
}

func TestDrawService_Purchase(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		f := setup(t, nil)
		sale, err := f.service.Purchase(ctx, "101", "k1")
		require.NoError(t, err)
		assert.NotEmpty(t, sale.ID)
		assert.Equal(t, model.ID("1"), sale.SeriesID)
		assert.Equal(t, 2, sale.SlotIndex)
		assert.Equal(t, model.ID("13"), sale.StyleID)

		sub, cancel := context.WithCancel(ctx)
		defer cancel()
		ch, err := f.queue.SubscribeSales(sub)
		require.NoError(t, err)
		d := <-ch
		assert.Equal(t, sale.ID, d.Data.ID)
	})

	t.Run("Success - retried key returns the same draw", func(t *testing.T) {
		f := setup(t, nil)
		first, err := f.service.Purchase(ctx, "101", "k1")
		require.NoError(t, err)
		second, err := f.service.Purchase(ctx, "101", "k1")
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, first.StyleID, second.StyleID)

		sold, err := f.inventory.Sold(ctx, "101")
		require.NoError(t, err)
		assert.Equal(t, 3, sold)
	})

	t.Run("Failed - SoldOut", func(t *testing.T) {
		f := setup(t, nil)
		_, err := f.service.Purchase(ctx, "103", "k1")
		assert.ErrorIs(t, err, apperrors.ErrSoldOut)
	})

	t.Run("Failed - NotFound", func(t *testing.T) {
		f := setup(t, nil)
		_, err := f.service.Purchase(ctx, "999", "k1")
		assert.ErrorIs(t, err, apperrors.ErrStockBoxNotFound)
	})

	t.Run("Failed - publish error releases the slot", func(t *testing.T) {
		f := setup(t, failingQueue{})
		_, err := f.service.Purchase(ctx, "101", "k1")
		assert.Error(t, err)

		sold, err := f.inventory.Sold(ctx, "101")
		require.NoError(t, err)
		assert.Equal(t, 2, sold)
	})
}

func TestDrawService_RecordSale(t *testing.T) {
	ctx := context.Background()
	f := setup(t, nil)
	sale := &model.Sale{ID: "s1", StockID: "102", SeriesID: "1", SlotIndex: 0, StyleID: "13"}

	t.Run("Success", func(t *testing.T) {
		require.NoError(t, f.service.RecordSale(ctx, sale))
		require.NoError(t, f.service.RecordSale(ctx, sale))

		sales, err := f.sales.ListByStockID(ctx, "102")
		require.NoError(t, err)
		assert.Len(t, sales, 1)

		box, err := f.boxes.FindByID(ctx, "102")
		require.NoError(t, err)
		assert.Equal(t, 1, box.SoldCount)
	})

	t.Run("Failed - unknown box", func(t *testing.T) {
		err := f.service.RecordSale(ctx, &model.Sale{ID: "s2", StockID: "999"})
		assert.ErrorIs(t, err, apperrors.ErrStockBoxNotFound)
	})
}

func TestDrawService_ConcurrentPurchase(t *testing.T) {
	ctx := context.Background()
	f := setup(t, queue.NewSaleQueue(64))

	const buyers = 20
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		slots   = make(map[int]bool)
		soldOut int
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sale, err := f.service.Purchase(ctx, "102", fmt.Sprintf("key-%d", i))
			mu.Lock()
			defer mu.Unlock()
			if errors.Is(err, apperrors.ErrSoldOut) {
				soldOut++
				return
			}
			if assert.NoError(t, err) {
				assert.False(t, slots[sale.SlotIndex], "slot %d sold twice", sale.SlotIndex)
				slots[sale.SlotIndex] = true
			}
		}(i)
	}
	wg.Wait()

	assert.Len(t, slots, 6)
	assert.Equal(t, buyers-6, soldOut)
}
