package model

import (
	"bytes"
	"encoding/json"
	"errors"
)

var errNotAList = errors.New("not a list")

// SlotItem 盒內單一格位的描述。Sold 為 nil 時代表後端沒有提供逐格售出狀態
type SlotItem struct {
	StyleID ID    `json:"styleId"`
	Sold    *bool `json:"sold,omitempty"`
}

func (s *SlotItem) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		type plain SlotItem
		var p plain
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		*s = SlotItem(p)
		return nil
	}
	var id ID
	if err := json.Unmarshal(data, &id); err != nil {
		return err
	}
	*s = SlotItem{StyleID: id}
	return nil
}

func (s SlotItem) MarshalJSON() ([]byte, error) {
	if s.Sold == nil {
		return json.Marshal(string(s.StyleID))
	}
	type plain SlotItem
	return json.Marshal(plain(s))
}

// StockBox 庫存盒模型，只由後端建立，客戶端唯讀
type StockBox struct {
	ID        ID         `json:"id"`
	SeriesID  ID         `json:"seriesId"`
	Contents  []SlotItem `json:"boxContents"`
	SoldItems []ID       `json:"soldItems"`

	// Malformed 代表 boxContents 或 soldItems 無法解析
	Malformed bool `json:"-"`
}

// RemainingCount 剩餘數量；Known 為 false 時表示資料無法解析，一律視為不可購買
type RemainingCount struct {
	Count int
	Known bool
}

var RemainingUnknown = RemainingCount{}

// UnmarshalJSON 容忍兩種編碼：JSON 陣列，或內容為 JSON 陣列的字串
func (b *StockBox) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID          ID              `json:"id"`
		SeriesID    ID              `json:"seriesId"`
		BoxContents json.RawMessage `json:"boxContents"`
		SoldItems   json.RawMessage `json:"soldItems"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*b = StockBox{ID: raw.ID, SeriesID: raw.SeriesID}

	contents, err := decodeList(raw.BoxContents, false)
	if err != nil {
		b.Malformed = true
		return nil
	}
	sold, err := decodeList(raw.SoldItems, true)
	if err != nil {
		b.Malformed = true
		return nil
	}

	b.Contents = make([]SlotItem, 0, len(contents))
	for _, item := range contents {
		var slot SlotItem
		if err := json.Unmarshal(item, &slot); err != nil {
			b.Malformed = true
			b.Contents = nil
			return nil
		}
		b.Contents = append(b.Contents, slot)
	}

	b.SoldItems = make([]ID, 0, len(sold))
	for _, item := range sold {
		var id ID
		if err := json.Unmarshal(item, &id); err != nil {
			// 已售項目可能是物件，只有數量會影響計算
			id = ID(string(item))
		}
		b.SoldItems = append(b.SoldItems, id)
	}
	return nil
}

func decodeList(raw json.RawMessage, allowMissing bool) ([]json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		if allowMissing {
			return nil, nil
		}
		return nil, errNotAList
	}
	if raw[0] == '"' {
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil {
			return nil, err
		}
		if encoded == "" && allowMissing {
			return nil, nil
		}
		raw = []byte(encoded)
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	if items == nil {
		return nil, errNotAList
	}
	return items, nil
}

// Remaining boxContents 長度減去 soldItems 長度
func (b StockBox) Remaining() RemainingCount {
	if b.Malformed || len(b.SoldItems) > len(b.Contents) {
		return RemainingUnknown
	}
	return RemainingCount{Count: len(b.Contents) - len(b.SoldItems), Known: true}
}

// IsSoldOut 只有在剩餘數量已知且為 0 時才成立
func (b StockBox) IsSoldOut() bool {
	r := b.Remaining()
	return r.Known && r.Count == 0
}

// HasExplicitSoldState 任一格位帶有 sold 欄位時，改用逐格售出狀態判斷
func (b StockBox) HasExplicitSoldState() bool {
	for _, slot := range b.Contents {
		if slot.Sold != nil {
			return true
		}
	}
	return false
}

// Clone 回傳深拷貝，快照之間不共用底層陣列
func (b StockBox) Clone() StockBox {
	out := b
	if b.Contents != nil {
		out.Contents = make([]SlotItem, len(b.Contents))
		for i, slot := range b.Contents {
			if slot.Sold != nil {
				sold := *slot.Sold
				slot.Sold = &sold
			}
			out.Contents[i] = slot
		}
	}
	if b.SoldItems != nil {
		out.SoldItems = append([]ID(nil), b.SoldItems...)
	}
	return out
}
