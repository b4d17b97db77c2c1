package flow

import (
	"blindbox-draw/internal/model"
	"blindbox-draw/internal/pricing"
	"blindbox-draw/internal/selector"
)

// View 給畫面使用的唯讀快照
type View struct {
	Phase          model.FlowPhase
	SeriesID       model.ID
	Series         *model.SeriesDetail
	Box            model.StockBox
	HasBox         bool
	Loaded         bool
	BoxIndex       int
	BoxCount       int
	Remaining      model.RemainingCount
	Slots          []selector.SlotView
	Selection      selector.Selection
	Price          pricing.Display
	Result         *model.DrawResult
	History        []model.DrawResult
	Notice         Notice
	CatalogErr     error
	ReauthRequired bool
}

func buildView(s State, series *model.SeriesDetail, reauth bool) View {
	v := View{
		Phase:          s.Phase,
		SeriesID:       s.Catalog.SeriesID,
		Series:         series,
		BoxIndex:       s.Catalog.Current,
		BoxCount:       s.Catalog.Len(),
		Loaded:         s.Catalog.Version > 0,
		Remaining:      model.RemainingUnknown,
		Selection:      s.Selection,
		Price:          s.Price,
		Result:         s.Result,
		History:        s.History,
		Notice:         s.Notice,
		CatalogErr:     s.Catalog.Err,
		ReauthRequired: reauth,
	}
	if box, ok := s.Catalog.CurrentBox(); ok {
		v.Box = box
		v.HasBox = true
		v.Remaining = selector.ComputeRemaining(box)
		v.Slots = s.Selection.Slots(box)
	}
	return v
}

// StyleName 款式名稱，查不到時以 id 顯示
func (v View) StyleName(id model.ID) string {
	if style, ok := v.Series.StyleByID(id); ok {
		if style.Hidden {
			return style.Name + " (hidden)"
		}
		return style.Name
	}
	return "#" + id.String()
}

// ConfirmationText 付款確認步驟顯示的文字
func (v View) ConfirmationText() string {
	return v.Price.Confirmation()
}
