package flow

import (
	"blindbox-draw/internal/api"
	"blindbox-draw/internal/catalog"
	"blindbox-draw/internal/metrics"
	"blindbox-draw/internal/model"
	"blindbox-draw/internal/pricing"
	"blindbox-draw/internal/session"
	apperrors "blindbox-draw/pkg/app_errors"
	"blindbox-draw/pkg/logger"
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

const eventBuffer = 64

// SessionGuard 由 session.Guard 實作
type SessionGuard interface {
	Subscribe() (<-chan error, func())
	Invalidate(ctx context.Context, cause error)
	ReauthRequired() bool
}

// 只在 Controller 內處理的事件
type cycleRequested struct{ direction int }
type reloadRequested struct{}
type seriesLoaded struct{ detail *model.SeriesDetail }

func (cycleRequested) isEvent()  {}
func (reloadRequested) isEvent() {}
func (seriesLoaded) isEvent()    {}

// Controller 在單一 goroutine 上依序處理事件，網路呼叫在背景執行後再以事件送回
type Controller struct {
	machine  *Machine
	client   api.Client
	catalog  catalog.StockCatalog
	pricing  pricing.SeriesPricingView
	guard    SessionGuard
	seriesID model.ID

	events chan Event
	done   chan struct{}
	wg     sync.WaitGroup
	series *model.SeriesDetail

	mu     sync.Mutex
	subs   map[int]chan View
	nextID int
	log    *zap.Logger
}

func NewController(
	seriesID model.ID,
	client api.Client,
	stockCatalog catalog.StockCatalog,
	pricingView pricing.SeriesPricingView,
	guard SessionGuard,
	opts ...Option,
) *Controller {
	return &Controller{
		machine:  NewMachine(opts...),
		client:   client,
		catalog:  stockCatalog,
		pricing:  pricingView,
		guard:    guard,
		seriesID: seriesID,
		events:   make(chan Event, eventBuffer),
		done:     make(chan struct{}),
		subs:     make(map[int]chan View),
		log:      logger.WithComponent("flow").With(zap.String("series_id", seriesID.String())),
	}
}

// Run 執行事件迴圈直到 ctx 結束
func (c *Controller) Run(ctx context.Context) error {
	invalidations, unsubscribe := c.guard.Subscribe()
	defer unsubscribe()
	defer close(c.done)

	c.log.Info("purchase flow started")
	c.reload(ctx)
	c.goPost(ctx, func(ctx context.Context) Event {
		detail, err := c.client.GetSeriesDetail(ctx, c.seriesID)
		if err != nil {
			c.log.Warn("series detail unavailable", zap.Error(err))
			return nil
		}
		return seriesLoaded{detail: detail}
	})
	c.publish()

	for {
		select {
		case <-ctx.Done():
			c.catalog.Cancel()
			c.pricing.Cancel()
			c.wg.Wait()
			c.log.Info("purchase flow stopped")
			return nil
		case cause := <-invalidations:
			c.handle(ctx, SessionInvalidated{Cause: cause})
		case ev := <-c.events:
			c.handle(ctx, ev)
		}
	}
}

// Send 送入使用者事件；事件迴圈已結束時回傳 false
func (c *Controller) Send(ev Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.events <- ev:
		return true
	case <-c.done:
		return false
	}
}

// Cycle 切換到上一個或下一個盒子
func (c *Controller) Cycle(direction int) bool {
	return c.Send(cycleRequested{direction: direction})
}

// Reload 重新讀取庫存與價格
func (c *Controller) Reload() bool {
	return c.Send(reloadRequested{})
}

// Subscribe 取得畫面快照；慢的訂閱者只會收到最新的一份
func (c *Controller) Subscribe() (<-chan View, func()) {
	ch := make(chan View, 1)
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = ch
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

func (c *Controller) handle(ctx context.Context, ev Event) {
	switch e := ev.(type) {
	case cycleRequested:
		if !c.machine.Phase().AcceptsSelection() {
			return
		}
		snap := c.catalog.Cycle(e.direction)
		c.apply(ctx, CatalogUpdated{Snapshot: snap})
		if box, ok := snap.CurrentBox(); ok {
			c.apply(ctx, BoxSelected{StockID: box.ID})
		}
	case reloadRequested:
		c.reload(ctx)
	case seriesLoaded:
		c.series = e.detail
	case BoxSelected:
		if c.machine.Phase().AcceptsSelection() {
			if snap, ok := c.catalog.Focus(e.StockID); ok {
				c.apply(ctx, CatalogUpdated{Snapshot: snap})
			}
		}
		c.apply(ctx, e)
	default:
		c.apply(ctx, ev)
	}
	c.publish()
}

func (c *Controller) apply(ctx context.Context, ev Event) {
	tr := c.machine.Apply(ev)
	name := fmt.Sprintf("%T", ev)
	if tr.Ignored {
		c.log.Debug("event ignored", zap.String("event", name), zap.String("phase", string(tr.From)))
		return
	}
	if tr.Changed() {
		c.log.Debug("phase transition",
			zap.String("event", name),
			zap.String("from", string(tr.From)),
			zap.String("to", string(tr.To)),
		)
	}
	if tr.Notice.Level == NoticeWarning || tr.Notice.Level == NoticeError {
		c.log.Warn("flow notice", zap.String("message", tr.Notice.Message), zap.Error(tr.Notice.Err))
	}
	for _, cmd := range tr.Commands {
		c.execute(ctx, cmd)
	}
}

func (c *Controller) execute(ctx context.Context, cmd Command) {
	switch cmd := cmd.(type) {
	case SubmitPurchase:
		c.log.Info("submitting purchase",
			zap.String("stock_id", cmd.StockID.String()),
			zap.String("idempotency_key", cmd.IdempotencyKey),
		)
		c.goPost(ctx, func(ctx context.Context) Event {
			return c.purchase(ctx, cmd)
		})
	case RefreshCatalog:
		c.goPost(ctx, c.refresh)
	case RequireReauth:
		c.log.Warn("re-authentication required", zap.Error(cmd.Cause))
	}
}

func (c *Controller) purchase(ctx context.Context, cmd SubmitPurchase) Event {
	result, err := c.client.PurchaseStockBox(ctx, cmd.StockID, cmd.IdempotencyKey)
	if err != nil {
		metrics.PurchasesTotal.WithLabelValues(purchaseOutcome(err)).Inc()
		if session.IsSessionError(err) {
			c.guard.Invalidate(ctx, err)
		}
		return PurchaseFailed{Attempt: cmd.Attempt, Err: err}
	}
	metrics.PurchasesTotal.WithLabelValues("success").Inc()
	c.log.Info("purchase succeeded",
		zap.String("stock_id", cmd.StockID.String()),
		zap.String("style_id", result.StyleID.String()),
	)
	return PurchaseSucceeded{Attempt: cmd.Attempt, Result: result}
}

func (c *Controller) refresh(ctx context.Context) Event {
	snap, err := c.catalog.Refresh(ctx)
	if errors.Is(err, apperrors.ErrSuperseded) {
		return nil
	}
	return CatalogUpdated{Snapshot: snap}
}

// reload 新的讀取會讓舊的請求失效
func (c *Controller) reload(ctx context.Context) {
	c.goPost(ctx, func(ctx context.Context) Event {
		snap, err := c.catalog.Load(ctx, c.seriesID)
		if errors.Is(err, apperrors.ErrSuperseded) {
			return nil
		}
		return CatalogUpdated{Snapshot: snap}
	})
	c.goPost(ctx, func(ctx context.Context) Event {
		display, err := c.pricing.Fetch(ctx, c.seriesID)
		if errors.Is(err, apperrors.ErrSuperseded) {
			return nil
		}
		return PriceUpdated{Display: display}
	})
}

func (c *Controller) goPost(ctx context.Context, work func(context.Context) Event) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ev := work(ctx)
		if ev == nil {
			return
		}
		select {
		case c.events <- ev:
		case <-ctx.Done():
		}
	}()
}

func (c *Controller) publish() {
	view := buildView(c.machine.State(), c.series, c.guard.ReauthRequired())
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- view:
		default:
		}
	}
}

func purchaseOutcome(err error) string {
	switch {
	case session.IsSessionError(err):
		return "unauthorized"
	case errors.Is(err, apperrors.ErrSoldOut):
		return "sold_out"
	case errors.Is(err, apperrors.ErrBusinessRejected):
		return "rejected"
	default:
		return "transport"
	}
}
