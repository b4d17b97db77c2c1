package catalog

import (
	"blindbox-draw/internal/model"
)

// Snapshot 某一時間點的庫存盒清單，建立後不再修改
type Snapshot struct {
	SeriesID model.ID
	Current  int
	Version  uint64
	Err      error

	boxes []model.StockBox
}

func newSnapshot(seriesID model.ID, boxes []model.StockBox, version uint64) Snapshot {
	return Snapshot{SeriesID: seriesID, Version: version, boxes: boxes}
}

// NewSnapshot 以傳入的盒子建立快照，盒子會被複製
func NewSnapshot(seriesID model.ID, boxes []model.StockBox) Snapshot {
	copied := make([]model.StockBox, len(boxes))
	for i, b := range boxes {
		copied[i] = b.Clone()
	}
	return newSnapshot(seriesID, copied, 0)
}

func (s Snapshot) Len() int {
	return len(s.boxes)
}

// Boxes 回傳副本，呼叫端修改不會影響快照
func (s Snapshot) Boxes() []model.StockBox {
	out := make([]model.StockBox, len(s.boxes))
	for i, b := range s.boxes {
		out[i] = b.Clone()
	}
	return out
}

func (s Snapshot) CurrentBox() (model.StockBox, bool) {
	if s.Current < 0 || s.Current >= len(s.boxes) {
		return model.StockBox{}, false
	}
	return s.boxes[s.Current].Clone(), true
}

func (s Snapshot) Find(stockID model.ID) (model.StockBox, bool) {
	i := s.indexOf(stockID)
	if i < 0 {
		return model.StockBox{}, false
	}
	return s.boxes[i].Clone(), true
}

func (s Snapshot) indexOf(stockID model.ID) int {
	for i, b := range s.boxes {
		if b.ID == stockID {
			return i
		}
	}
	return -1
}

// AnyRemaining 至少有一盒剩餘數量大於 0
func (s Snapshot) AnyRemaining() bool {
	for _, b := range s.boxes {
		if r := b.Remaining(); r.Known && r.Count > 0 {
			return true
		}
	}
	return false
}

// Cycle 循環移動目前的盒子，兩端會繞回；少於兩盒時不動
func (s Snapshot) Cycle(direction int) Snapshot {
	n := len(s.boxes)
	if n < 2 || direction == 0 {
		return s
	}
	step := 1
	if direction < 0 {
		step = -1
	}
	s.Current = ((s.Current+step)%n + n) % n
	return s
}

// Focus 把目前的盒子移到指定 id
func (s Snapshot) Focus(stockID model.ID) (Snapshot, bool) {
	i := s.indexOf(stockID)
	if i < 0 {
		return s, false
	}
	s.Current = i
	return s, true
}
