package queue

import (
	"blindbox-draw/internal/model"
	"blindbox-draw/pkg/logger"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	StreamKey          = "sales:stream"
	ConsumerGroupName  = "sale-recorders"
	ConsumerNamePrefix = "recorder"

	saleField = "sale"
	batchSize = 10
)

// RedisStreamSaleQueueConfig 逾時與重試設定；零值欄位使用預設
type RedisStreamSaleQueueConfig struct {
	ClaimMinIdleTime   time.Duration // 待確認超過此時間才會被重新領取
	MaxRetryCount      int           // 超過此次數的消息直接丟棄
	ReadGroupBlockTime time.Duration
}

func (c *RedisStreamSaleQueueConfig) withDefaults() RedisStreamSaleQueueConfig {
	out := RedisStreamSaleQueueConfig{
		ClaimMinIdleTime:   5 * time.Second,
		MaxRetryCount:      5,
		ReadGroupBlockTime: 2 * time.Second,
	}
	if c == nil {
		return out
	}
	if c.ClaimMinIdleTime > 0 {
		out.ClaimMinIdleTime = c.ClaimMinIdleTime
	}
	if c.MaxRetryCount > 0 {
		out.MaxRetryCount = c.MaxRetryCount
	}
	if c.ReadGroupBlockTime > 0 {
		out.ReadGroupBlockTime = c.ReadGroupBlockTime
	}
	return out
}

type RedisStreamSaleQueueImpl struct {
	client   *redis.Client
	stream   string
	group    string
	consumer string
	cfg      RedisStreamSaleQueueConfig
	log      *zap.Logger
}

// NewRedisStreamSaleQueue 售出紀錄寫入 Redis Stream，由 consumer group 消化；config 可為 nil
func NewRedisStreamSaleQueue(ctx context.Context, client *redis.Client, consumerID string, config *RedisStreamSaleQueueConfig) (SaleQueue, error) {
	if consumerID == "" {
		consumerID = uuid.NewString()
	}
	q := &RedisStreamSaleQueueImpl{
		client:   client,
		stream:   StreamKey,
		group:    ConsumerGroupName,
		consumer: ConsumerNamePrefix + ":" + consumerID,
		cfg:      config.withDefaults(),
		log:      logger.WithComponent("mq"),
	}
	err := client.XGroupCreateMkStream(ctx, q.stream, q.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("create consumer group: %w", err)
	}
	return q, nil
}

func (q *RedisStreamSaleQueueImpl) PublishSale(ctx context.Context, sale *model.Sale) error {
	payload, err := json.Marshal(sale)
	if err != nil {
		return fmt.Errorf("marshal sale: %w", err)
	}
	err = q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		Values: map[string]interface{}{saleField: string(payload)},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd: %w", err)
	}
	return nil
}

// SubscribeSales 新消息由 XREADGROUP 取得；逾時未確認的消息由 XAUTOCLAIM 重新領取
func (q *RedisStreamSaleQueueImpl) SubscribeSales(ctx context.Context) (<-chan Delivery, error) {
	out := make(chan Delivery)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		q.readNew(ctx, out)
	}()
	go func() {
		defer wg.Done()
		q.reclaim(ctx, out)
	}()
	go func() {
		wg.Wait()
		close(out)
	}()
	return out, nil
}

func (q *RedisStreamSaleQueueImpl) readNew(ctx context.Context, out chan<- Delivery) {
	for ctx.Err() == nil {
		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.group,
			Consumer: q.consumer,
			Streams:  []string{q.stream, ">"},
			Count:    batchSize,
			Block:    q.cfg.ReadGroupBlockTime,
		}).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			q.log.Error("XReadGroup failed", zap.Error(err))
			sleep(ctx, time.Second)
			continue
		}
		for _, s := range streams {
			if !q.deliver(ctx, out, s.Messages) {
				return
			}
		}
	}
}

func (q *RedisStreamSaleQueueImpl) reclaim(ctx context.Context, out chan<- Delivery) {
	ticker := time.NewTicker(q.cfg.ClaimMinIdleTime)
	defer ticker.Stop()
	start := "0-0"

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		claimed, next, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   q.stream,
			Group:    q.group,
			Consumer: q.consumer,
			MinIdle:  q.cfg.ClaimMinIdleTime,
			Start:    start,
			Count:    batchSize,
		}).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			q.log.Error("XAutoClaim failed", zap.Error(err))
			continue
		}
		start = next
		if start == "" {
			start = "0-0"
		}

		retryable := claimed[:0]
		for _, msg := range claimed {
			if q.exhausted(ctx, msg.ID) {
				continue
			}
			retryable = append(retryable, msg)
		}
		if !q.deliver(ctx, out, retryable) {
			return
		}
	}
}

// exhausted 重試次數用完的消息直接確認丟棄
func (q *RedisStreamSaleQueueImpl) exhausted(ctx context.Context, id string) bool {
	pending, err := q.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: q.stream,
		Group:  q.group,
		Start:  id,
		End:    id,
		Count:  1,
	}).Result()
	if err != nil || len(pending) == 0 {
		return false
	}
	if int(pending[0].RetryCount) < q.cfg.MaxRetryCount {
		return false
	}
	q.log.Warn("discard poison sale message",
		zap.String("message_id", id),
		zap.Int64("retries", pending[0].RetryCount),
	)
	q.ack(ctx, id)
	return true
}

func (q *RedisStreamSaleQueueImpl) deliver(ctx context.Context, out chan<- Delivery, msgs []redis.XMessage) bool {
	for _, msg := range msgs {
		d, ok := q.decode(ctx, msg)
		if !ok {
			continue
		}
		select {
		case out <- d:
		case <-ctx.Done():
			return false
		}
	}
	return true
}

func (q *RedisStreamSaleQueueImpl) decode(ctx context.Context, msg redis.XMessage) (Delivery, bool) {
	raw, _ := msg.Values[saleField].(string)
	var sale model.Sale
	if err := json.Unmarshal([]byte(raw), &sale); err != nil || sale.ID == "" {
		// 無法解析的消息重試也沒用
		q.log.Warn("drop undecodable sale message", zap.String("message_id", msg.ID), zap.Error(err))
		q.ack(ctx, msg.ID)
		return Delivery{}, false
	}
	id := msg.ID
	return Delivery{
		Data: &sale,
		Ack:  func() { q.ack(ctx, id) },
		Nack: func(requeue bool) {
			if requeue {
				// 留在待確認清單，逾時後由 reclaim 重新領取
				return
			}
			q.ack(ctx, id)
		},
	}, true
}

func (q *RedisStreamSaleQueueImpl) ack(ctx context.Context, id string) {
	if err := q.client.XAck(ctx, q.stream, q.group, id).Err(); err != nil {
		q.log.Error("XAck failed", zap.String("message_id", id), zap.Error(err))
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
