package repository

import (
	"blindbox-draw/internal/model"
	apperrors "blindbox-draw/pkg/app_errors"
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const foreignKeyViolation = "23503"

type SaleRepository interface {
	// 寫入售出紀錄並更新盒子的已售格數；同一筆紀錄重送時回傳 false 且不重複累加
	Create(ctx context.Context, sale *model.Sale) (bool, error)
	ListByStockID(ctx context.Context, stockID model.ID) ([]*model.Sale, error)
}

type SaleRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewSaleRepository(pool *pgxpool.Pool) SaleRepository {
	return &SaleRepositoryImpl{
		pool: pool,
	}
}

func (r *SaleRepositoryImpl) Create(ctx context.Context, sale *model.Sale) (bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO sales (id, stock_id, series_id, slot_index, style_id, idempotency_key, sold_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`
	tag, err := tx.Exec(ctx, query,
		sale.ID, sale.StockID.String(), sale.SeriesID.String(),
		sale.SlotIndex, sale.StyleID.String(), sale.IdempotencyKey, sale.SoldAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return false, apperrors.ErrStockBoxNotFound
		}
		return false, fmt.Errorf("failed to create sale: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	// 消息可能亂序送達，已售格數只會往前推進
	_, err = tx.Exec(ctx, `
		UPDATE stock_boxes
		SET sold_count = GREATEST(sold_count, $2)
		WHERE id = $1
	`, sale.StockID.String(), sale.SlotIndex+1)
	if err != nil {
		return false, fmt.Errorf("failed to update sold count: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (r *SaleRepositoryImpl) ListByStockID(ctx context.Context, stockID model.ID) ([]*model.Sale, error) {
	query := `
		SELECT id, stock_id, series_id, slot_index, style_id, idempotency_key, sold_at
		FROM sales
		WHERE stock_id = $1
		ORDER BY slot_index
	`
	rows, err := r.pool.Query(ctx, query, stockID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]*model.Sale, 0)
	for rows.Next() {
		var sale model.Sale
		var stock, series, style string
		err := rows.Scan(
			&sale.ID,
			&stock,
			&series,
			&sale.SlotIndex,
			&style,
			&sale.IdempotencyKey,
			&sale.SoldAt,
		)
		if err != nil {
			return nil, err
		}
		sale.StockID = model.ID(stock)
		sale.SeriesID = model.ID(series)
		sale.StyleID = model.ID(style)
		sales = append(sales, &sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sales, nil
}
