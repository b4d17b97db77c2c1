package repository

import (
	"blindbox-draw/internal/model"
	apperrors "blindbox-draw/pkg/app_errors"
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type StockBoxRepository interface {
	// 已存在時不覆蓋
	Create(ctx context.Context, box *model.BoxDefinition) error
	List(ctx context.Context) ([]*model.BoxDefinition, error)
	ListBySeriesID(ctx context.Context, seriesID model.ID) ([]*model.BoxDefinition, error)
	FindByID(ctx context.Context, id model.ID) (*model.BoxDefinition, error)
}

type StockBoxRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewStockBoxRepository(pool *pgxpool.Pool) StockBoxRepository {
	return &StockBoxRepositoryImpl{
		pool: pool,
	}
}

const stockBoxColumns = `id, series_id, slots, sold_count, created_at`

func (r *StockBoxRepositoryImpl) Create(ctx context.Context, box *model.BoxDefinition) error {
	query := `
		INSERT INTO stock_boxes (id, series_id, slots, sold_count)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := r.pool.Exec(ctx, query,
		box.ID.String(), box.SeriesID.String(), idsToStrings(box.Slots), box.SoldCount,
	)
	return err
}

func (r *StockBoxRepositoryImpl) List(ctx context.Context) ([]*model.BoxDefinition, error) {
	query := `SELECT ` + stockBoxColumns + ` FROM stock_boxes ORDER BY series_id, id`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return collectBoxes(rows)
}

func (r *StockBoxRepositoryImpl) ListBySeriesID(ctx context.Context, seriesID model.ID) ([]*model.BoxDefinition, error) {
	query := `SELECT ` + stockBoxColumns + ` FROM stock_boxes WHERE series_id = $1 ORDER BY id`
	rows, err := r.pool.Query(ctx, query, seriesID.String())
	if err != nil {
		return nil, err
	}
	return collectBoxes(rows)
}

func (r *StockBoxRepositoryImpl) FindByID(ctx context.Context, id model.ID) (*model.BoxDefinition, error) {
	query := `SELECT ` + stockBoxColumns + ` FROM stock_boxes WHERE id = $1`
	box, err := scanBox(r.pool.QueryRow(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrStockBoxNotFound
		}
		return nil, err
	}
	return box, nil
}

func scanBox(row pgx.Row) (*model.BoxDefinition, error) {
	var box model.BoxDefinition
	var id, seriesID string
	var slots []string
	if err := row.Scan(&id, &seriesID, &slots, &box.SoldCount, &box.CreatedAt); err != nil {
		return nil, err
	}
	box.ID = model.ID(id)
	box.SeriesID = model.ID(seriesID)
	box.Slots = make([]model.ID, len(slots))
	for i, s := range slots {
		box.Slots[i] = model.ID(s)
	}
	return &box, nil
}

func collectBoxes(rows pgx.Rows) ([]*model.BoxDefinition, error) {
	defer rows.Close()

	boxes := make([]*model.BoxDefinition, 0)
	for rows.Next() {
		box, err := scanBox(rows)
		if err != nil {
			return nil, err
		}
		boxes = append(boxes, box)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return boxes, nil
}

func idsToStrings(ids []model.ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
