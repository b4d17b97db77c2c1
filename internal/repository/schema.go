package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS series (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	cover         TEXT NOT NULL DEFAULT '',
	price         NUMERIC(12, 2) NOT NULL CHECK (price >= 0),
	discount_rate NUMERIC(5, 4) NOT NULL DEFAULT 1 CHECK (discount_rate > 0 AND discount_rate <= 1),
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS series_styles (
	series_id TEXT NOT NULL REFERENCES series (id),
	id        TEXT NOT NULL,
	name      TEXT NOT NULL,
	hidden    BOOLEAN NOT NULL DEFAULT FALSE,
	position  INT NOT NULL,
	PRIMARY KEY (series_id, id)
);

CREATE TABLE IF NOT EXISTS stock_boxes (
	id         TEXT PRIMARY KEY,
	series_id  TEXT NOT NULL REFERENCES series (id),
	slots      TEXT[] NOT NULL,
	sold_count INT NOT NULL DEFAULT 0 CHECK (sold_count >= 0),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_stock_boxes_series_id ON stock_boxes (series_id);

CREATE TABLE IF NOT EXISTS sales (
	id              TEXT PRIMARY KEY,
	stock_id        TEXT NOT NULL REFERENCES stock_boxes (id),
	series_id       TEXT NOT NULL,
	slot_index      INT NOT NULL,
	style_id        TEXT NOT NULL,
	idempotency_key TEXT NOT NULL DEFAULT '',
	sold_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (stock_id, slot_index)
);
`

// Migrate 建立沙盒後端需要的資料表
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schema)
	return err
}
