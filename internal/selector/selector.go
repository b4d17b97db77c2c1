package selector

import (
	"blindbox-draw/internal/model"
)

// NoSlot 尚未選格
const NoSlot = -1

// Selection 客戶端暫存的選擇，只代表意圖，不是預留；是否購買成功由後端決定
type Selection struct {
	StockID   model.ID
	SlotIndex int
}

// SlotView 顯示用的格位狀態
type SlotView struct {
	Index      int
	StyleID    model.ID
	Sold       bool
	Selectable bool
	Selected   bool
}

func Empty() Selection {
	return Selection{SlotIndex: NoSlot}
}

func (s Selection) HasBox() bool {
	return !s.StockID.IsZero()
}

func (s Selection) HasSlot() bool {
	return s.HasBox() && s.SlotIndex >= 0
}

func (s Selection) IsComplete() bool {
	return s.HasSlot()
}

// WithBox 切換到另一個盒子時一律清除已選格位
func (s Selection) WithBox(stockID model.ID) Selection {
	if stockID == s.StockID {
		return s
	}
	return Selection{StockID: stockID, SlotIndex: NoSlot}
}

// SelectSlot 只接受尚未售出的格位，否則回傳原本的選擇與 false
func (s Selection) SelectSlot(box model.StockBox, index int) (Selection, bool) {
	if box.ID.IsZero() || !Selectable(box, index) {
		return s, false
	}
	return Selection{StockID: box.ID, SlotIndex: index}, true
}

// ComputeRemaining boxContents 長度減去 soldItems 長度；無法解析時回傳 RemainingUnknown
func ComputeRemaining(box model.StockBox) model.RemainingCount {
	return box.Remaining()
}

// Selectable 預設假設已售格位都在前段，index >= len(soldItems) 才可選；
// 若 boxContents 帶有逐格 sold 狀態則以它為準
func Selectable(box model.StockBox, index int) bool {
	remaining := ComputeRemaining(box)
	if !remaining.Known || remaining.Count == 0 {
		return false
	}
	if index < 0 || index >= len(box.Contents) {
		return false
	}
	if box.HasExplicitSoldState() {
		sold := box.Contents[index].Sold
		return sold == nil || !*sold
	}
	return index >= len(box.SoldItems)
}

// StillValid 重新整理庫存後檢查舊選擇是否仍可用
func (s Selection) StillValid(box model.StockBox) bool {
	if !s.HasSlot() || box.ID != s.StockID {
		return false
	}
	return Selectable(box, s.SlotIndex)
}

// Slots 列出盒內所有格位供畫面呈現
func (s Selection) Slots(box model.StockBox) []SlotView {
	views := make([]SlotView, 0, len(box.Contents))
	explicit := box.HasExplicitSoldState()
	for i, slot := range box.Contents {
		sold := i < len(box.SoldItems)
		if explicit {
			sold = slot.Sold != nil && *slot.Sold
		}
		selectable := Selectable(box, i)
		views = append(views, SlotView{
			Index:      i,
			StyleID:    slot.StyleID,
			Sold:       sold,
			Selectable: selectable,
			Selected:   s.StockID == box.ID && s.SlotIndex == i,
		})
	}
	return views
}
