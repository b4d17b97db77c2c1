package queue

import (
	"blindbox-draw/internal/model"
	"context"
)

type Delivery struct {
	Data *model.Sale
	Ack  func()
	Nack func(requeue bool)
}

type SaleQueue interface {
	// 發送售出紀錄到隊列
	PublishSale(ctx context.Context, sale *model.Sale) error
	// 訂閱售出紀錄
	SubscribeSales(ctx context.Context) (<-chan Delivery, error)
}

type SaleQueueImpl struct {
	// 使用 Go channel 模擬 MQ
	ch chan *model.Sale
}

func NewSaleQueue(bufferSize int) SaleQueue {
	return &SaleQueueImpl{
		ch: make(chan *model.Sale, bufferSize),
	}
}

func (q *SaleQueueImpl) PublishSale(ctx context.Context, sale *model.Sale) error {
	select {
	case q.ch <- sale:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *SaleQueueImpl) SubscribeSales(ctx context.Context) (<-chan Delivery, error) {
	out := make(chan Delivery)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case sale, ok := <-q.ch:
				if !ok {
					return
				}

				d := Delivery{
					Data: sale,
					Ack:  func() {},
					Nack: func(requeue bool) {
						if requeue {
							go func() {
								select {
								case q.ch <- sale:
								case <-ctx.Done():
								}
							}()
						}
					},
				}
				select {
				case out <- d:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
