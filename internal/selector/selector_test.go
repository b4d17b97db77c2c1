package selector

import (
	"testing"

	"blindbox-draw/internal/model"

	"github.com/stretchr/testify/assert"
)

func newBox(id model.ID, contents []string, sold []string) model.StockBox {
	box := model.StockBox{ID: id}
	for _, c := range contents {
		box.Contents = append(box.Contents, model.SlotItem{StyleID: model.ID(c)})
	}
	for _, s := range sold {
		box.SoldItems = append(box.SoldItems, model.ID(s))
	}
	return box
}

func TestComputeRemaining(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		box := newBox("1", []string{"a", "b", "c"}, []string{"a"})
		assert.Equal(t, model.RemainingCount{Count: 2, Known: true}, ComputeRemaining(box))
	})

	t.Run("Never negative", func(t *testing.T) {
		for contents := 0; contents < 5; contents++ {
			for sold := 0; sold < 7; sold++ {
				box := newBox("1", make([]string, contents), make([]string, sold))
				r := ComputeRemaining(box)
				assert.GreaterOrEqual(t, r.Count, 0)
				if sold <= contents {
					assert.True(t, r.Known)
					assert.Equal(t, contents-sold, r.Count)
				} else {
					assert.False(t, r.Known)
				}
			}
		}
	})

	t.Run("Unknown when malformed", func(t *testing.T) {
		box := model.StockBox{ID: "1", Malformed: true}
		assert.Equal(t, model.RemainingUnknown, ComputeRemaining(box))
		assert.False(t, Selectable(box, 0))
	})
}

func TestSelection_SelectSlot(t *testing.T) {
	box := newBox("1", []string{"a", "b", "c"}, []string{"a"})

	t.Run("Failed - sold slot rejected and prior selection kept", func(t *testing.T) {
		prior, ok := Empty().WithBox("1").SelectSlot(box, 2)
		assert.True(t, ok)

		next, ok := prior.SelectSlot(box, 0)
		assert.False(t, ok)
		assert.Equal(t, prior, next)
	})

	t.Run("Failed - out of range", func(t *testing.T) {
		next, ok := Empty().SelectSlot(box, 3)
		assert.False(t, ok)
		assert.Equal(t, Empty(), next)
		_, ok = Empty().SelectSlot(box, -1)
		assert.False(t, ok)
	})

	t.Run("Success", func(t *testing.T) {
		next, ok := Empty().WithBox("1").SelectSlot(box, 1)
		assert.True(t, ok)
		assert.Equal(t, Selection{StockID: "1", SlotIndex: 1}, next)
		assert.True(t, next.IsComplete())
	})

	t.Run("Failed - sold out box", func(t *testing.T) {
		soldOut := newBox("2", []string{"a"}, []string{"a"})
		_, ok := Empty().SelectSlot(soldOut, 0)
		assert.False(t, ok)
	})

	t.Run("Explicit per-slot sold state", func(t *testing.T) {
		sold, unsold := true, false
		sparse := model.StockBox{
			ID: "3",
			Contents: []model.SlotItem{
				{StyleID: "a", Sold: &unsold},
				{StyleID: "b", Sold: &sold},
				{StyleID: "c", Sold: &unsold},
			},
			SoldItems: []model.ID{"b"},
		}
		_, ok := Empty().SelectSlot(sparse, 0)
		assert.True(t, ok)
		_, ok = Empty().SelectSlot(sparse, 1)
		assert.False(t, ok)
	})
}

func TestSelection_WithBox(t *testing.T) {
	box := newBox("1", []string{"a", "b"}, nil)
	sel, ok := Empty().SelectSlot(box, 1)
	assert.True(t, ok)

	assert.Equal(t, sel, sel.WithBox("1"))

	switched := sel.WithBox("2")
	assert.Equal(t, model.ID("2"), switched.StockID)
	assert.Equal(t, NoSlot, switched.SlotIndex)
	assert.False(t, switched.HasSlot())
}

func TestSelection_StillValid(t *testing.T) {
	box := newBox("1", []string{"a", "b", "c"}, []string{"a"})
	sel, _ := Empty().SelectSlot(box, 1)
	assert.True(t, sel.StillValid(box))

	refreshed := newBox("1", []string{"a", "b", "c"}, []string{"a", "b"})
	assert.False(t, sel.StillValid(refreshed))
	assert.False(t, sel.StillValid(newBox("2", []string{"a", "b"}, nil)))
}

func TestSelection_Slots(t *testing.T) {
	box := newBox("1", []string{"a", "b", "c"}, []string{"a"})
	sel, _ := Empty().SelectSlot(box, 2)
	views := sel.Slots(box)
	assert.Len(t, views, 3)
	assert.True(t, views[0].Sold)
	assert.False(t, views[0].Selectable)
	assert.True(t, views[1].Selectable)
	assert.True(t, views[2].Selected)
}
