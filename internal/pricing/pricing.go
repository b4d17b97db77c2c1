package pricing

import (
	"blindbox-draw/internal/api"
	"blindbox-draw/internal/model"
	apperrors "blindbox-draw/pkg/app_errors"
	"blindbox-draw/pkg/logger"
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var hundred = decimal.NewFromInt(100)

// Display 價格顯示資料；Available 為 false 時畫面顯示「暫無價格」
type Display struct {
	Available     bool
	SeriesID      model.ID
	Price         string
	ActualPrice   string
	DiscountBadge string
	Quote         model.PriceQuote
	Err           error
}

// Inline 系列頁上的價格文字
func (d Display) Inline() string {
	if !d.Available {
		return "no price available"
	}
	if d.DiscountBadge == "" {
		return d.ActualPrice
	}
	return fmt.Sprintf("%s (was %s, %s)", d.ActualPrice, d.Price, d.DiscountBadge)
}

// Confirmation 付款確認步驟的文字
func (d Display) Confirmation() string {
	if !d.Available {
		return "Confirm purchase? Price is currently unavailable; the server will charge the current price."
	}
	if d.DiscountBadge == "" {
		return fmt.Sprintf("Confirm purchase for %s?", d.ActualPrice)
	}
	return fmt.Sprintf("Confirm purchase for %s (%s off %s)?", d.ActualPrice, d.DiscountBadge, d.Price)
}

// Render 把價格轉成顯示資料，折扣率小於 1 才產生折扣標籤
func Render(quote model.PriceQuote, minorUnits int32) Display {
	if !quote.IsValid() {
		return Display{SeriesID: quote.SeriesID, Err: apperrors.ErrPriceUnavailable}
	}
	d := Display{
		Available:   true,
		SeriesID:    quote.SeriesID,
		Price:       quote.Price.StringFixed(minorUnits),
		ActualPrice: quote.ActualPrice(minorUnits).StringFixed(minorUnits),
		Quote:       quote,
	}
	if quote.HasDiscount() {
		off := decimal.NewFromInt(1).Sub(quote.DiscountRate).Mul(hundred).Round(0)
		d.DiscountBadge = "-" + off.String() + "%"
	}
	return d
}

type SeriesPricingView interface {
	// 讀取價格；失敗時退化為暫無價格，只有被較新的請求取代時回傳 ErrSuperseded
	Fetch(ctx context.Context, seriesID model.ID) (Display, error)
	Current() Display
	Cancel()
}

type SeriesPricingViewImpl struct {
	client     api.Client
	minorUnits int32

	mu      sync.Mutex
	current Display
	gen     uint64
	cancel  context.CancelFunc
	log     *zap.Logger
}

func NewSeriesPricingView(client api.Client, minorUnits int32) SeriesPricingView {
	return &SeriesPricingViewImpl{
		client:     client,
		minorUnits: minorUnits,
		log:        logger.WithComponent("pricing"),
	}
}

func (v *SeriesPricingViewImpl) Fetch(ctx context.Context, seriesID model.ID) (Display, error) {
	v.mu.Lock()
	if v.cancel != nil {
		v.cancel()
	}
	fetchCtx, cancel := context.WithCancel(ctx)
	v.gen++
	gen := v.gen
	v.cancel = cancel
	v.mu.Unlock()
	defer cancel()

	quote, err := v.client.GetPriceQuote(fetchCtx, seriesID)

	v.mu.Lock()
	defer v.mu.Unlock()
	if gen != v.gen {
		return v.current, apperrors.ErrSuperseded
	}
	v.cancel = nil

	if err != nil {
		v.log.Warn("price quote unavailable", zap.String("series_id", seriesID.String()), zap.Error(err))
		v.current = Display{SeriesID: seriesID, Err: fmt.Errorf("%w: %w", apperrors.ErrPriceUnavailable, err)}
		return v.current, nil
	}
	v.current = Render(quote, v.minorUnits)
	return v.current, nil
}

func (v *SeriesPricingViewImpl) Current() Display {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

func (v *SeriesPricingViewImpl) Cancel() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
	v.gen++
}
