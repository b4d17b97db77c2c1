package api

import (
	"blindbox-draw/internal/metrics"
	"blindbox-draw/internal/model"
	apperrors "blindbox-draw/pkg/app_errors"
	"blindbox-draw/pkg/logger"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	OpListStockBoxes   = "list_stock_boxes"
	OpPurchaseStockBox = "purchase_stock_box"
	OpGetPriceQuote    = "get_price_quote"
	OpGetSeriesDetail  = "get_series_detail"

	HeaderRequestID      = "X-Request-ID"
	HeaderIdempotencyKey = "Idempotency-Key"

	maxBodyBytes = 1 << 20
)

// Client 盲盒後端 API
type Client interface {
	// 取得系列下的庫存盒（需登入）
	ListStockBoxes(ctx context.Context, seriesID model.ID) ([]model.StockBox, error)
	// 購買指定庫存盒（需登入）；只傳 stockID，由後端決定實際抽到的格位
	PurchaseStockBox(ctx context.Context, stockID model.ID, idempotencyKey string) (model.DrawResult, error)
	// 取得系列價格（不需登入）
	GetPriceQuote(ctx context.Context, seriesID model.ID) (model.PriceQuote, error)
	// 取得系列詳情（不需登入）
	GetSeriesDetail(ctx context.Context, seriesID model.ID) (*model.SeriesDetail, error)
}

// TokenSource 提供目前的 bearer 憑證，由 session.Guard 實作
type TokenSource interface {
	Token() (string, error)
}

type ClientImpl struct {
	baseURL *url.URL
	http    *http.Client
	tokens  TokenSource
}

func NewClient(baseURL string, timeout time.Duration, tokens TokenSource) (Client, error) {
	return NewClientWithHTTP(baseURL, &http.Client{Timeout: timeout}, tokens)
}

func NewClientWithHTTP(baseURL string, httpClient *http.Client, tokens TokenSource) (Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: base url %q", apperrors.ErrInvalidInput, baseURL)
	}
	return &ClientImpl{
		baseURL: u,
		http:    httpClient,
		tokens:  tokens,
	}, nil
}

type purchasePayload struct {
	StyleID model.ID `json:"styleId"`
	DrawID  model.ID `json:"drawId"`
}

type pricePayload struct {
	SeriesID     model.ID            `json:"seriesId"`
	Price        decimal.NullDecimal `json:"price"`
	DiscountRate decimal.NullDecimal `json:"discountRate"`
}

func (c *ClientImpl) ListStockBoxes(ctx context.Context, seriesID model.ID) ([]model.StockBox, error) {
	if seriesID.IsZero() {
		return nil, apperrors.ErrInvalidInput
	}
	var boxes []model.StockBox
	err := c.do(ctx, OpListStockBoxes, http.MethodGet, "/api/v1/series/"+url.PathEscape(seriesID.String())+"/stocks", true, nil, &boxes)
	if err != nil {
		return nil, err
	}
	if boxes == nil {
		boxes = []model.StockBox{}
	}
	return boxes, nil
}

func (c *ClientImpl) PurchaseStockBox(ctx context.Context, stockID model.ID, idempotencyKey string) (model.DrawResult, error) {
	if stockID.IsZero() {
		return model.DrawResult{}, apperrors.ErrInvalidInput
	}
	if idempotencyKey == "" {
		idempotencyKey = uuid.New().String()
	}
	headers := map[string]string{HeaderIdempotencyKey: idempotencyKey}

	var payload purchasePayload
	err := c.do(ctx, OpPurchaseStockBox, http.MethodPost, "/api/v1/stocks/"+url.PathEscape(stockID.String())+"/purchase", true, headers, &payload)
	if err != nil {
		return model.DrawResult{}, err
	}
	if payload.StyleID.IsZero() {
		return model.DrawResult{}, fmt.Errorf("%w: purchase response without styleId", apperrors.ErrMalformedResponse)
	}
	return model.DrawResult{
		StyleID: payload.StyleID,
		DrawID:  payload.DrawID,
		StockID: stockID,
		DrawnAt: time.Now(),
	}, nil
}

func (c *ClientImpl) GetPriceQuote(ctx context.Context, seriesID model.ID) (model.PriceQuote, error) {
	if seriesID.IsZero() {
		return model.PriceQuote{}, apperrors.ErrInvalidInput
	}
	var payload pricePayload
	err := c.do(ctx, OpGetPriceQuote, http.MethodGet, "/api/v1/series/"+url.PathEscape(seriesID.String())+"/price", false, nil, &payload)
	if err != nil {
		return model.PriceQuote{}, err
	}
	if !payload.Price.Valid {
		return model.PriceQuote{}, fmt.Errorf("%w: missing price", apperrors.ErrMalformedResponse)
	}

	quote := model.PriceQuote{
		SeriesID:     seriesID,
		Price:        payload.Price.Decimal,
		DiscountRate: decimal.NewFromInt(1),
	}
	if payload.DiscountRate.Valid {
		quote.DiscountRate = payload.DiscountRate.Decimal
	}
	if !quote.IsValid() {
		return model.PriceQuote{}, fmt.Errorf("%w: price %s discount %s", apperrors.ErrMalformedResponse, quote.Price, quote.DiscountRate)
	}
	return quote, nil
}

func (c *ClientImpl) GetSeriesDetail(ctx context.Context, seriesID model.ID) (*model.SeriesDetail, error) {
	if seriesID.IsZero() {
		return nil, apperrors.ErrInvalidInput
	}
	var detail model.SeriesDetail
	err := c.do(ctx, OpGetSeriesDetail, http.MethodGet, "/api/v1/series/"+url.PathEscape(seriesID.String()), false, nil, &detail)
	if err != nil {
		return nil, err
	}
	return &detail, nil
}

// do 送出請求並解析 envelope，所有錯誤都轉成 app_errors 中的類別
func (c *ClientImpl) do(ctx context.Context, op, method, path string, auth bool, headers map[string]string, out interface{}) (err error) {
	started := time.Now()
	requestID := uuid.New().String()
	log := logger.WithComponent("api").With(zap.String("operation", op), zap.String("request_id", requestID))
	defer func() {
		metrics.ObserveAPI(op, outcomeOf(err), started)
	}()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, nil)
	if err != nil {
		return fmt.Errorf("%w: build request: %w", apperrors.ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderRequestID, requestID)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	if auth {
		if c.tokens == nil {
			return apperrors.ErrNoCredential
		}
		token, err := c.tokens.Token()
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %w", apperrors.ErrTransport, ctxErr)
		}
		log.Warn("request failed", zap.Error(err))
		return fmt.Errorf("%w: %w", apperrors.ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: read body: %w", apperrors.ErrTransport, err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		log.Warn("unauthorized response")
		return apperrors.ErrSessionExpired
	}

	env, decodeErr := decodeEnvelope(body)
	if decodeErr != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			log.Warn("unexpected status", zap.Int("status", resp.StatusCode))
			return fmt.Errorf("%w: status %d", apperrors.ErrTransport, resp.StatusCode)
		}
		return fmt.Errorf("%w: %w", apperrors.ErrMalformedResponse, decodeErr)
	}

	if err := env.err(resp.StatusCode); err != nil {
		log.Info("request rejected", zap.Int("status", resp.StatusCode), zap.Error(err))
		return err
	}

	if out == nil {
		return nil
	}
	if len(env.Data) == 0 {
		return fmt.Errorf("%w: empty data", apperrors.ErrMalformedResponse)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrMalformedResponse, err)
	}
	log.Debug("request ok", zap.Duration("elapsed", time.Since(started)))
	return nil
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperrors.ErrSessionExpired), errors.Is(err, apperrors.ErrNoCredential):
		return "unauthorized"
	case errors.Is(err, apperrors.ErrBusinessRejected):
		return "rejected"
	case errors.Is(err, apperrors.ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "transport"
	}
}
