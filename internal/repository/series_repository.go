package repository

import (
	"blindbox-draw/internal/model"
	apperrors "blindbox-draw/pkg/app_errors"
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SeriesRepository interface {
	// 已存在時不覆蓋
	Create(ctx context.Context, record *model.SeriesRecord) error
	FindByID(ctx context.Context, id model.ID) (*model.SeriesRecord, error)
}

type SeriesRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewSeriesRepository(pool *pgxpool.Pool) SeriesRepository {
	return &SeriesRepositoryImpl{
		pool: pool,
	}
}

func (r *SeriesRepositoryImpl) Create(ctx context.Context, record *model.SeriesRecord) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO series (id, name, cover, price, discount_rate)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`
	tag, err := tx.Exec(ctx, query,
		record.Detail.ID.String(), record.Detail.Name, record.Detail.Cover,
		record.Price, record.Quote().DiscountRate,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return nil
	}

	for i, style := range record.Detail.Styles {
		_, err := tx.Exec(ctx, `
			INSERT INTO series_styles (series_id, id, name, hidden, position)
			VALUES ($1, $2, $3, $4, $5)
		`, record.Detail.ID.String(), style.ID.String(), style.Name, style.Hidden, i)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *SeriesRepositoryImpl) FindByID(ctx context.Context, id model.ID) (*model.SeriesRecord, error) {
	query := `
		SELECT id, name, cover, price, discount_rate
		FROM series
		WHERE id = $1
	`

	var record model.SeriesRecord
	var seriesID string
	err := r.pool.QueryRow(ctx, query, id.String()).Scan(
		&seriesID,
		&record.Detail.Name,
		&record.Detail.Cover,
		&record.Price,
		&record.DiscountRate,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrSeriesNotFound
		}
		return nil, err
	}
	record.Detail.ID = model.ID(seriesID)

	rows, err := r.pool.Query(ctx, `
		SELECT id, name, hidden
		FROM series_styles
		WHERE series_id = $1
		ORDER BY position
	`, id.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	record.Detail.Styles = make([]model.Style, 0)
	for rows.Next() {
		var style model.Style
		var styleID string
		if err := rows.Scan(&styleID, &style.Name, &style.Hidden); err != nil {
			return nil, err
		}
		style.ID = model.ID(styleID)
		record.Detail.Styles = append(record.Detail.Styles, style)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &record, nil
}
