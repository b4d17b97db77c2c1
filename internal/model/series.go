package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Style 系列中的單一款式，Hidden 為隱藏款
type Style struct {
	ID     ID     `json:"id"`
	Name   string `json:"name"`
	Hidden bool   `json:"hidden"`
}

// SeriesDetail 系列詳情，只用於顯示抽盒元件周邊的資訊
type SeriesDetail struct {
	ID     ID      `json:"id"`
	Name   string  `json:"name"`
	Cover  string  `json:"cover"`
	Styles []Style `json:"styles"`
}

// StyleByID 依 id 找出款式
func (s *SeriesDetail) StyleByID(id ID) (Style, bool) {
	if s == nil {
		return Style{}, false
	}
	for _, style := range s.Styles {
		if style.ID == id {
			return style, true
		}
	}
	return Style{}, false
}

var one = decimal.NewFromInt(1)

// PriceQuote 系列價格；DiscountRate 介於 (0, 1]，1 表示不打折
type PriceQuote struct {
	SeriesID     ID              `json:"seriesId"`
	Price        decimal.Decimal `json:"price"`
	DiscountRate decimal.Decimal `json:"discountRate"`
}

// IsValid 檢查價格與折扣率是否在合法範圍
func (q PriceQuote) IsValid() bool {
	if q.Price.IsNegative() {
		return false
	}
	return q.DiscountRate.IsPositive() && q.DiscountRate.LessThanOrEqual(one)
}

// ActualPrice 折扣後價格，四捨五入到貨幣最小單位
func (q PriceQuote) ActualPrice(minorUnits int32) decimal.Decimal {
	return q.Price.Mul(q.DiscountRate).Round(minorUnits)
}

func (q PriceQuote) HasDiscount() bool {
	return q.DiscountRate.LessThan(one)
}

// DrawResult 購買成功後抽到的款式，只存在於結果視窗顯示期間
type DrawResult struct {
	StyleID ID        `json:"styleId"`
	DrawID  ID        `json:"drawId,omitempty"`
	StockID ID        `json:"stockId,omitempty"`
	DrawnAt time.Time `json:"drawnAt,omitempty"`
}
