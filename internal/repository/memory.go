package repository

import (
	"blindbox-draw/internal/model"
	apperrors "blindbox-draw/pkg/app_errors"
	"context"
	"sort"
	"sync"
	"time"
)

// memoryDB 記憶體版資料，供測試與不連資料庫的沙盒使用
type memoryDB struct {
	mu     sync.RWMutex
	series map[model.ID]*model.SeriesRecord
	boxes  map[model.ID]*model.BoxDefinition
	sales  map[string]*model.Sale
}

type MemorySeriesRepository struct{ db *memoryDB }
type MemoryStockBoxRepository struct{ db *memoryDB }
type MemorySaleRepository struct{ db *memoryDB }

// NewMemoryRepositories 三個 repository 共用同一份資料
func NewMemoryRepositories() (SeriesRepository, StockBoxRepository, SaleRepository) {
	db := &memoryDB{
		series: make(map[model.ID]*model.SeriesRecord),
		boxes:  make(map[model.ID]*model.BoxDefinition),
		sales:  make(map[string]*model.Sale),
	}
	return &MemorySeriesRepository{db}, &MemoryStockBoxRepository{db}, &MemorySaleRepository{db}
}

func (r *MemorySeriesRepository) Create(ctx context.Context, record *model.SeriesRecord) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.series[record.Detail.ID]; ok {
		return nil
	}
	copied := *record
	copied.Detail.Styles = append([]model.Style(nil), record.Detail.Styles...)
	r.db.series[record.Detail.ID] = &copied
	return nil
}

func (r *MemorySeriesRepository) FindByID(ctx context.Context, id model.ID) (*model.SeriesRecord, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	record, ok := r.db.series[id]
	if !ok {
		return nil, apperrors.ErrSeriesNotFound
	}
	copied := *record
	copied.Detail.Styles = append([]model.Style(nil), record.Detail.Styles...)
	return &copied, nil
}

func (r *MemoryStockBoxRepository) Create(ctx context.Context, box *model.BoxDefinition) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.boxes[box.ID]; ok {
		return nil
	}
	copied := copyBox(box)
	if copied.CreatedAt.IsZero() {
		copied.CreatedAt = time.Now().UTC()
	}
	r.db.boxes[box.ID] = copied
	return nil
}

func (r *MemoryStockBoxRepository) List(ctx context.Context) ([]*model.BoxDefinition, error) {
	return r.filter(func(*model.BoxDefinition) bool { return true }), nil
}

func (r *MemoryStockBoxRepository) ListBySeriesID(ctx context.Context, seriesID model.ID) ([]*model.BoxDefinition, error) {
	return r.filter(func(b *model.BoxDefinition) bool { return b.SeriesID == seriesID }), nil
}

func (r *MemoryStockBoxRepository) FindByID(ctx context.Context, id model.ID) (*model.BoxDefinition, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	box, ok := r.db.boxes[id]
	if !ok {
		return nil, apperrors.ErrStockBoxNotFound
	}
	return copyBox(box), nil
}

func (r *MemoryStockBoxRepository) filter(keep func(*model.BoxDefinition) bool) []*model.BoxDefinition {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := make([]*model.BoxDefinition, 0)
	for _, b := range r.db.boxes {
		if keep(b) {
			out = append(out, copyBox(b))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SeriesID != out[j].SeriesID {
			return out[i].SeriesID < out[j].SeriesID
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *MemorySaleRepository) Create(ctx context.Context, sale *model.Sale) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.sales[sale.ID]; ok {
		return false, nil
	}
	box, ok := r.db.boxes[sale.StockID]
	if !ok {
		return false, apperrors.ErrStockBoxNotFound
	}
	copied := *sale
	r.db.sales[sale.ID] = &copied
	if sale.SlotIndex+1 > box.SoldCount {
		box.SoldCount = sale.SlotIndex + 1
	}
	return true, nil
}

func (r *MemorySaleRepository) ListByStockID(ctx context.Context, stockID model.ID) ([]*model.Sale, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := make([]*model.Sale, 0)
	for _, s := range r.db.sales {
		if s.StockID == stockID {
			copied := *s
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SlotIndex < out[j].SlotIndex })
	return out, nil
}

func copyBox(b *model.BoxDefinition) *model.BoxDefinition {
	copied := *b
	copied.Slots = append([]model.ID(nil), b.Slots...)
	return &copied
}
