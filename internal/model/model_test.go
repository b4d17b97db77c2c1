package model

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStockBox_UnmarshalJSON(t *testing.T) {
	t.Run("Success - arrays", func(t *testing.T) {
		var box StockBox
		err := json.Unmarshal([]byte(`{"id":1,"seriesId":"9","boxContents":["a","b","c"],"soldItems":["a"]}`), &box)
		require.NoError(t, err)
		assert.Equal(t, ID("1"), box.ID)
		assert.Equal(t, ID("9"), box.SeriesID)
		assert.False(t, box.Malformed)
		assert.Len(t, box.Contents, 3)
		assert.Equal(t, RemainingCount{Count: 2, Known: true}, box.Remaining())
		assert.False(t, box.IsSoldOut())
	})

	t.Run("Success - string encoded arrays", func(t *testing.T) {
		var box StockBox
		err := json.Unmarshal([]byte(`{"id":"2","boxContents":"[1,2]","soldItems":"[1,2]"}`), &box)
		require.NoError(t, err)
		assert.False(t, box.Malformed)
		assert.True(t, box.IsSoldOut())
	})

	t.Run("Success - missing soldItems means none sold", func(t *testing.T) {
		var box StockBox
		require.NoError(t, json.Unmarshal([]byte(`{"id":3,"boxContents":["x"]}`), &box))
		assert.Equal(t, 1, box.Remaining().Count)
	})

	t.Run("Success - explicit per-slot state", func(t *testing.T) {
		var box StockBox
		require.NoError(t, json.Unmarshal([]byte(`{"id":4,"boxContents":[{"styleId":5,"sold":true},{"styleId":6,"sold":false}],"soldItems":[5]}`), &box))
		assert.True(t, box.HasExplicitSoldState())
		assert.Equal(t, ID("5"), box.Contents[0].StyleID)
	})

	t.Run("Failed - malformed contents", func(t *testing.T) {
		var box StockBox
		require.NoError(t, json.Unmarshal([]byte(`{"id":5,"boxContents":"not json","soldItems":[]}`), &box))
		assert.True(t, box.Malformed)
		assert.Equal(t, RemainingUnknown, box.Remaining())
		assert.False(t, box.IsSoldOut())
	})

	t.Run("Failed - more sold than contents", func(t *testing.T) {
		box := StockBox{Contents: []SlotItem{{StyleID: "a"}}, SoldItems: []ID{"a", "b"}}
		assert.Equal(t, RemainingUnknown, box.Remaining())
	})
}

func TestStockBox_MarshalRoundTrip(t *testing.T) {
	sold := true
	box := StockBox{ID: "1", Contents: []SlotItem{{StyleID: "a"}, {StyleID: "b", Sold: &sold}}, SoldItems: []ID{"a"}}
	data, err := json.Marshal(box)
	require.NoError(t, err)

	var decoded StockBox
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, box.ID, decoded.ID)
	assert.Equal(t, box.Contents, decoded.Contents)
	assert.Equal(t, box.SoldItems, decoded.SoldItems)
}

func TestStockBox_Clone(t *testing.T) {
	sold := false
	box := StockBox{ID: "1", Contents: []SlotItem{{StyleID: "a", Sold: &sold}}, SoldItems: []ID{}}
	clone := box.Clone()
	*clone.Contents[0].Sold = true
	clone.SoldItems = append(clone.SoldItems, "x")

	assert.False(t, *box.Contents[0].Sold)
	assert.Empty(t, box.SoldItems)
}

func TestPriceQuote(t *testing.T) {
	t.Run("Discounted", func(t *testing.T) {
		q := PriceQuote{Price: decimal.NewFromInt(100), DiscountRate: decimal.RequireFromString("0.8")}
		assert.True(t, q.IsValid())
		assert.True(t, q.HasDiscount())
		assert.True(t, q.ActualPrice(2).Equal(decimal.NewFromInt(80)))
	})

	t.Run("No discount", func(t *testing.T) {
		q := PriceQuote{Price: decimal.NewFromInt(100), DiscountRate: decimal.NewFromInt(1)}
		assert.False(t, q.HasDiscount())
		assert.True(t, q.ActualPrice(2).Equal(decimal.NewFromInt(100)))
	})

	t.Run("Rounds to minor unit", func(t *testing.T) {
		q := PriceQuote{Price: decimal.RequireFromString("9.99"), DiscountRate: decimal.RequireFromString("0.85")}
		assert.Equal(t, "8.49", q.ActualPrice(2).StringFixed(2))
	})

	t.Run("Invalid rate", func(t *testing.T) {
		assert.False(t, PriceQuote{Price: decimal.NewFromInt(1)}.IsValid())
		assert.False(t, PriceQuote{Price: decimal.NewFromInt(1), DiscountRate: decimal.RequireFromString("1.2")}.IsValid())
	})
}

func TestFlowPhase_CanTransitionTo(t *testing.T) {
	assert.True(t, PhaseSelecting.CanTransitionTo(PhaseSubmitting))
	assert.True(t, PhaseSelecting.CanTransitionTo(PhaseAwaitingConfirmation))
	assert.True(t, PhaseAwaitingConfirmation.CanTransitionTo(PhaseIdle))
	assert.True(t, PhaseSubmitting.CanTransitionTo(PhaseFailed))
	assert.False(t, PhaseSubmitting.CanTransitionTo(PhaseSubmitting))
	assert.False(t, PhaseIdle.CanTransitionTo(PhaseSubmitting))
	assert.False(t, PhaseResultShown.CanTransitionTo(PhaseSelecting))
	assert.False(t, FlowPhase("bogus").IsValid())
	assert.True(t, PhaseIdle.AcceptsSelection())
	assert.False(t, PhaseSubmitting.AcceptsSelection())
}
