package testutil

import (
	"blindbox-draw/config"
	"blindbox-draw/internal/database"
	"blindbox-draw/internal/model"
	"blindbox-draw/internal/repository"
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// SetupPostgres 連線測試資料庫並建立資料表；測試資料庫不存在時略過
func SetupPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()
	cfg := config.LoadTestConfig()

	pool, err := database.InitDatabase(ctx, &cfg.Database)
	if err != nil {
		t.Skipf("postgres not available: %v", err)
	}
	if err := repository.Migrate(ctx, pool); err != nil {
		pool.Close()
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	TruncatePostgres(t, pool)
	t.Cleanup(func() {
		TruncatePostgres(t, pool)
		pool.Close()
	})
	return pool
}

// TruncatePostgres 清空所有測試資料，保留 schema
func TruncatePostgres(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	_, err := pool.Exec(context.Background(), "TRUNCATE sales, stock_boxes, series_styles, series CASCADE")
	if err != nil {
		t.Fatalf("Failed to truncate tables: %v", err)
	}
}

// SetupRedis 僅初始化 Redis，用於庫存與 queue 的整合測試
func SetupRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()
	cfg := config.LoadTestConfig()

	rdb, err := database.InitRedis(ctx, &cfg.Redis)
	if err != nil {
		t.Skipf("redis not available: %v", err)
	}
	if err := rdb.FlushDB(ctx).Err(); err != nil {
		rdb.Close()
		t.Fatalf("Failed to flush redis: %v", err)
	}
	t.Cleanup(func() {
		rdb.FlushDB(context.Background())
		rdb.Close()
	})
	return rdb
}

func Box(id, seriesID string, sold int, slots ...string) *model.BoxDefinition {
	box := &model.BoxDefinition{
		ID:        model.ID(id),
		SeriesID:  model.ID(seriesID),
		Slots:     make([]model.ID, len(slots)),
		SoldCount: sold,
	}
	for i, s := range slots {
		box.Slots[i] = model.ID(s)
	}
	return box
}
