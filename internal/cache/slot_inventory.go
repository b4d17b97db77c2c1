package cache

import (
	"blindbox-draw/internal/model"
	apperrors "blindbox-draw/pkg/app_errors"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdempotencyTTL 同一個 Idempotency-Key 重送時回傳相同結果的保留時間
const IdempotencyTTL = 24 * time.Hour

// Allocation 配置到的格位；Replayed 表示是重送請求取回先前的結果
type Allocation struct {
	SaleID    string
	SlotIndex int
	StyleID   model.ID
	Replayed  bool
}

type SlotInventory interface {
	// 預熱：把盒子的格位與已售格數載入
	WarmUp(ctx context.Context, box *model.BoxDefinition) error
	// 已售格數
	Sold(ctx context.Context, stockID model.ID) (int, error)
	// 依序配置下一個未售格位 (原子操作)
	Allocate(ctx context.Context, stockID model.ID, idempotencyKey, saleID string) (Allocation, error)
	// 回滾：只有在沒有更新的配置時才會退回
	Release(ctx context.Context, stockID model.ID, idempotencyKey string, alloc Allocation) (bool, error)
}

type RedisSlotInventoryImpl struct {
	client *redis.Client
}

func NewRedisSlotInventory(client *redis.Client) SlotInventory {
	return &RedisSlotInventoryImpl{
		client: client,
	}
}

// 格位款式清單 key
func (m *RedisSlotInventoryImpl) getSlotsKey(stockID model.ID) string {
	return fmt.Sprintf("box:%s:slots", stockID)
}

// 已售格數 key
func (m *RedisSlotInventoryImpl) getSoldKey(stockID model.ID) string {
	return fmt.Sprintf("box:%s:sold", stockID)
}

func (m *RedisSlotInventoryImpl) getIdempotencyKey(stockID model.ID, key string) string {
	return fmt.Sprintf("box:%s:idem:%s", stockID, key)
}

func (m *RedisSlotInventoryImpl) WarmUp(ctx context.Context, box *model.BoxDefinition) error {
	slots := make([]interface{}, len(box.Slots))
	for i, s := range box.Slots {
		slots[i] = s.String()
	}
	pipe := m.client.TxPipeline()
	pipe.Del(ctx, m.getSlotsKey(box.ID))
	if len(slots) > 0 {
		pipe.RPush(ctx, m.getSlotsKey(box.ID), slots...)
	}
	// 已售格數只會前進，重複預熱不會把格位退回
	pipe.SetNX(ctx, m.getSoldKey(box.ID), 0, 0)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return err
	}
	return m.client.Eval(ctx, `
		local current = tonumber(redis.call('GET', KEYS[1]) or '0')
		local sold = tonumber(ARGV[1])
		if sold > current then
			redis.call('SET', KEYS[1], sold)
		end
		return 1
	`, []string{m.getSoldKey(box.ID)}, box.SoldCount).Err()
}

func (m *RedisSlotInventoryImpl) Sold(ctx context.Context, stockID model.ID) (int, error) {
	sold, err := m.client.Get(ctx, m.getSoldKey(stockID)).Int()
	if errors.Is(err, redis.Nil) {
		return -1, apperrors.ErrStockBoxNotFound
	}
	return sold, err
}

/*
配置格位 (使用Lua腳本確保原子性)
 1. 同一個 Idempotency-Key 已配置過時直接回傳先前的結果
 2. 檢查盒子是否已預熱
 3. 檢查是否還有未售格位
 4. 取下一格並累加已售格數
*/
const allocateScript = `
	local slots_key = KEYS[1]
	local sold_key = KEYS[2]
	local idem_key = KEYS[3]

	local sale_id = ARGV[1]
	local ttl = tonumber(ARGV[2])

	-- 1. 重送請求
	if idem_key ~= '' then
		local previous = redis.call('GET', idem_key)
		if previous then
			return {2, previous}
		end
	end

	-- 2. 盒子未預熱
	local total = redis.call('LLEN', slots_key)
	if total == 0 then
		return {-3, ''}
	end

	-- 3. 已售完
	local sold = tonumber(redis.call('GET', sold_key) or '0')
	if sold >= total then
		return {-1, ''}
	end

	-- 4. 配置下一格
	local style = redis.call('LINDEX', slots_key, sold)
	redis.call('INCR', sold_key)
	local record = sale_id .. '|' .. sold .. '|' .. style
	if idem_key ~= '' then
		redis.call('SET', idem_key, record, 'EX', ttl)
	end
	return {1, record}
`

func (m *RedisSlotInventoryImpl) Allocate(ctx context.Context, stockID model.ID, idempotencyKey, saleID string) (Allocation, error) {
	idemKey := ""
	if idempotencyKey != "" {
		idemKey = m.getIdempotencyKey(stockID, idempotencyKey)
	}
	keys := []string{m.getSlotsKey(stockID), m.getSoldKey(stockID), idemKey}

	result, err := m.client.Eval(ctx, allocateScript, keys, saleID, int(IdempotencyTTL.Seconds())).Result()
	if err != nil {
		return Allocation{}, err
	}

	resSlice, ok := result.([]interface{})
	if !ok || len(resSlice) != 2 {
		return Allocation{}, errors.New("unexpected result")
	}
	code, _ := resSlice[0].(int64) // Redis 數字回傳 int64
	record, _ := resSlice[1].(string)

	switch code {
	case 1, 2:
		alloc, err := parseAllocation(record)
		if err != nil {
			return Allocation{}, err
		}
		alloc.Replayed = code == 2
		return alloc, nil
	case -1:
		return Allocation{}, apperrors.ErrSoldOut
	case -3:
		return Allocation{}, apperrors.ErrStockBoxNotFound
	default:
		return Allocation{}, errors.New("unexpected result")
	}
}

const releaseScript = `
	local sold_key = KEYS[1]
	local idem_key = KEYS[2]
	local expected = tonumber(ARGV[1])

	local sold = tonumber(redis.call('GET', sold_key) or '0')
	if sold ~= expected then
		return 0
	end
	redis.call('DECR', sold_key)
	if idem_key ~= '' then
		redis.call('DEL', idem_key)
	end
	return 1
`

func (m *RedisSlotInventoryImpl) Release(ctx context.Context, stockID model.ID, idempotencyKey string, alloc Allocation) (bool, error) {
	idemKey := ""
	if idempotencyKey != "" {
		idemKey = m.getIdempotencyKey(stockID, idempotencyKey)
	}
	n, err := m.client.Eval(ctx, releaseScript, []string{m.getSoldKey(stockID), idemKey}, alloc.SlotIndex+1).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func parseAllocation(record string) (Allocation, error) {
	parts := strings.SplitN(record, "|", 3)
	if len(parts) != 3 {
		return Allocation{}, fmt.Errorf("invalid allocation record %q", record)
	}
	idx, err := strconv.Atoi(parts[1])
	if err != nil {
		return Allocation{}, fmt.Errorf("invalid slot index: %w", err)
	}
	return Allocation{SaleID: parts[0], SlotIndex: idx, StyleID: model.ID(parts[2])}, nil
}

// MemorySlotInventoryImpl 不連 Redis 時使用，行為與 Redis 版相同
type MemorySlotInventoryImpl struct {
	mu    sync.Mutex
	slots map[model.ID][]model.ID
	sold  map[model.ID]int
	idem  map[string]Allocation
}

func NewMemorySlotInventory() SlotInventory {
	return &MemorySlotInventoryImpl{
		slots: make(map[model.ID][]model.ID),
		sold:  make(map[model.ID]int),
		idem:  make(map[string]Allocation),
	}
}

func (m *MemorySlotInventoryImpl) WarmUp(ctx context.Context, box *model.BoxDefinition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[box.ID] = append([]model.ID(nil), box.Slots...)
	if box.SoldCount > m.sold[box.ID] {
		m.sold[box.ID] = box.SoldCount
	}
	return nil
}

func (m *MemorySlotInventoryImpl) Sold(ctx context.Context, stockID model.ID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.slots[stockID]; !ok {
		return -1, apperrors.ErrStockBoxNotFound
	}
	return m.sold[stockID], nil
}

func (m *MemorySlotInventoryImpl) Allocate(ctx context.Context, stockID model.ID, idempotencyKey, saleID string) (Allocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idemKey := string(stockID) + "|" + idempotencyKey
	if idempotencyKey != "" {
		if previous, ok := m.idem[idemKey]; ok {
			previous.Replayed = true
			return previous, nil
		}
	}
	slots, ok := m.slots[stockID]
	if !ok || len(slots) == 0 {
		return Allocation{}, apperrors.ErrStockBoxNotFound
	}
	sold := m.sold[stockID]
	if sold >= len(slots) {
		return Allocation{}, apperrors.ErrSoldOut
	}
	alloc := Allocation{SaleID: saleID, SlotIndex: sold, StyleID: slots[sold]}
	m.sold[stockID] = sold + 1
	if idempotencyKey != "" {
		m.idem[idemKey] = alloc
	}
	return alloc, nil
}

func (m *MemorySlotInventoryImpl) Release(ctx context.Context, stockID model.ID, idempotencyKey string, alloc Allocation) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sold[stockID] != alloc.SlotIndex+1 {
		return false, nil
	}
	m.sold[stockID]--
	if idempotencyKey != "" {
		delete(m.idem, string(stockID)+"|"+idempotencyKey)
	}
	return true, nil
}
