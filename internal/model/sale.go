package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SeriesRecord 沙盒後端保存的系列資料與定價
type SeriesRecord struct {
	Detail       SeriesDetail    `json:"detail"`
	Price        decimal.Decimal `json:"price"`
	DiscountRate decimal.Decimal `json:"discountRate"`
}

// Quote 轉成客戶端看到的價格
func (r *SeriesRecord) Quote() PriceQuote {
	rate := r.DiscountRate
	if rate.IsZero() {
		rate = one
	}
	return PriceQuote{SeriesID: r.Detail.ID, Price: r.Price, DiscountRate: rate}
}

// BoxDefinition 沙盒後端的庫存盒；Slots 依序為每一格的款式，前 SoldCount 格已售出
type BoxDefinition struct {
	ID        ID        `json:"id"`
	SeriesID  ID        `json:"seriesId"`
	Slots     []ID      `json:"slots"`
	SoldCount int       `json:"soldCount"`
	CreatedAt time.Time `json:"createdAt"`
}

// StockBox 依已售格數轉成客戶端格式
func (b *BoxDefinition) StockBox(sold int) StockBox {
	if sold > len(b.Slots) {
		sold = len(b.Slots)
	}
	box := StockBox{
		ID:        b.ID,
		SeriesID:  b.SeriesID,
		Contents:  make([]SlotItem, len(b.Slots)),
		SoldItems: make([]ID, 0, sold),
	}
	for i, style := range b.Slots {
		box.Contents[i] = SlotItem{StyleID: style}
	}
	box.SoldItems = append(box.SoldItems, b.Slots[:sold]...)
	return box
}

// Sale 一筆售出紀錄，ID 由配置格位時產生，重送時保持不變
type Sale struct {
	ID             string    `json:"id"`
	StockID        ID        `json:"stockId"`
	SeriesID       ID        `json:"seriesId"`
	SlotIndex      int       `json:"slotIndex"`
	StyleID        ID        `json:"styleId"`
	IdempotencyKey string    `json:"idempotencyKey"`
	SoldAt         time.Time `json:"soldAt"`
}
