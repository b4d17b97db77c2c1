package worker

import (
	"blindbox-draw/internal/queue"
	"blindbox-draw/internal/service"
	apperrors "blindbox-draw/pkg/app_errors"
	"blindbox-draw/pkg/logger"
	"context"
	"errors"

	"go.uber.org/zap"
)

type SaleWorker interface {
	// 訂閱售出紀錄並寫入資料庫，ctx 結束後停止
	Start(ctx context.Context) error
	// 等待處理中的消息完成
	Wait()
}

type SaleWorkerImpl struct {
	service service.DrawService
	queue   queue.SaleQueue
	done    chan struct{}
	log     *zap.Logger
}

func NewSaleWorker(service service.DrawService, queue queue.SaleQueue) SaleWorker {
	return &SaleWorkerImpl{
		service: service,
		queue:   queue,
		done:    make(chan struct{}),
		log:     logger.WithComponent("worker"),
	}
}

func (w *SaleWorkerImpl) Start(ctx context.Context) error {
	msgs, err := w.queue.SubscribeSales(ctx)
	if err != nil {
		close(w.done)
		return err
	}

	go func() {
		defer close(w.done)
		for msg := range msgs {
			err := w.service.RecordSale(ctx, msg.Data)
			switch {
			case err == nil:
				msg.Ack()
			case errors.Is(err, apperrors.ErrStockBoxNotFound):
				// 盒子不存在，重試也不會成功
				w.log.Warn("drop sale for unknown box", zap.String("sale_id", msg.Data.ID), zap.Error(err))
				msg.Nack(false)
			default:
				// 資料庫暫時無法寫入，留待重試
				w.log.Error("record sale failed", zap.String("sale_id", msg.Data.ID), zap.Error(err))
				msg.Nack(true)
			}
		}
	}()
	return nil
}

func (w *SaleWorkerImpl) Wait() {
	<-w.done
}
