package tui

import (
	"blindbox-draw/internal/flow"
	"blindbox-draw/internal/model"
	"blindbox-draw/internal/pricing"
	"blindbox-draw/internal/selector"
	"context"
	"errors"
	"testing"

	bubbletea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeController struct {
	events  []flow.Event
	cycles  []int
	reloads int
	views   chan flow.View
}

func newFakeController() *fakeController {
	return &fakeController{views: make(chan flow.View, 1)}
}

func (f *fakeController) Send(ev flow.Event) bool {
	f.events = append(f.events, ev)
	return true
}

func (f *fakeController) Cycle(direction int) bool {
	f.cycles = append(f.cycles, direction)
	return true
}

func (f *fakeController) Reload() bool {
	f.reloads++
	return true
}

func (f *fakeController) Subscribe() (<-chan flow.View, func()) {
	return f.views, func() {}
}

func keyMsg(s string) bubbletea.KeyMsg {
	switch s {
	case "enter":
		return bubbletea.KeyMsg{Type: bubbletea.KeyEnter}
	case "esc":
		return bubbletea.KeyMsg{Type: bubbletea.KeyEsc}
	case "left":
		return bubbletea.KeyMsg{Type: bubbletea.KeyLeft}
	case "right":
		return bubbletea.KeyMsg{Type: bubbletea.KeyRight}
	case "down":
		return bubbletea.KeyMsg{Type: bubbletea.KeyDown}
	}
	return bubbletea.KeyMsg{Type: bubbletea.KeyRunes, Runes: []rune(s)}
}

func press(m Model, keys ...string) Model {
	for _, k := range keys {
		next, _ := m.Update(keyMsg(k))
		m = next.(Model)
	}
	return m
}

func sampleView() flow.View {
	box := model.StockBox{
		ID:        "101",
		SeriesID:  "1",
		Contents:  []model.SlotItem{{StyleID: "11"}, {StyleID: "12"}, {StyleID: "13"}},
		SoldItems: []model.ID{"11"},
	}
	sel := selector.Empty().WithBox(box.ID)
	return flow.View{
		Phase:     model.PhaseIdle,
		SeriesID:  "1",
		Series:    &model.SeriesDetail{ID: "1", Name: "Forest Friends", Styles: []model.Style{{ID: "12", Name: "Owl"}}},
		Box:       box,
		HasBox:    true,
		Loaded:    true,
		BoxCount:  2,
		Remaining: box.Remaining(),
		Slots:     sel.Slots(box),
		Selection: sel,
		Price:     pricing.Display{Available: true, ActualPrice: "47.20", Price: "59.00", DiscountBadge: "-20%"},
	}
}

func withView(m Model, v flow.View) Model {
	next, _ := m.Update(viewMsg(v))
	return next.(Model)
}

func TestModel_Keys(t *testing.T) {
	t.Run("Success - navigation and draw", func(t *testing.T) {
		ctrl := newFakeController()
		m := withView(NewModel(ctrl, nil), sampleView())

		m = press(m, "right", "left", "down", "2", "enter", "y", "n", "esc", "r")

		assert.Equal(t, []int{1, -1}, ctrl.cycles)
		assert.Equal(t, 1, ctrl.reloads)
		require.Len(t, ctrl.events, 6)
		// 第 0 格已售，往下找到第 1 格
		assert.Equal(t, flow.SlotSelected{Index: 1}, ctrl.events[0])
		assert.Equal(t, flow.SlotSelected{Index: 1}, ctrl.events[1])
		assert.Equal(t, flow.DrawRequested{}, ctrl.events[2])
		assert.Equal(t, flow.Confirmed{}, ctrl.events[3])
		assert.Equal(t, flow.Cancelled{}, ctrl.events[4])
		assert.Equal(t, flow.Dismissed{}, ctrl.events[5])
	})

	t.Run("Success - quit", func(t *testing.T) {
		m := withView(NewModel(newFakeController(), nil), sampleView())
		_, cmd := m.Update(keyMsg("q"))
		require.NotNil(t, cmd)
		assert.Equal(t, bubbletea.Quit(), cmd())
	})
}

func TestModel_Login(t *testing.T) {
	ctrl := newFakeController()
	var got string
	login := func(ctx context.Context, token string) error {
		got = token
		return nil
	}
	v := sampleView()
	v.ReauthRequired = true
	v.Phase = model.PhaseFailed
	m := withView(NewModel(ctrl, login), v)
	assert.Contains(t, m.View(), "Login required")

	m = press(m, "L")
	assert.True(t, m.entering)
	m = press(m, "a", "b", "c")

	next, cmd := m.Update(keyMsg("enter"))
	m = next.(Model)
	require.NotNil(t, cmd)
	assert.False(t, m.entering)

	next, _ = m.Update(cmd())
	m = next.(Model)
	assert.Equal(t, "abc", got)
	assert.NoError(t, m.loginErr)
	assert.Equal(t, 1, ctrl.reloads)
	assert.Contains(t, ctrl.events, flow.Event(flow.Dismissed{}))
}

func TestModel_LoginFailure(t *testing.T) {
	ctrl := newFakeController()
	m := withView(NewModel(ctrl, nil), sampleView())
	next, _ := m.Update(loginMsg{err: errors.New("denied")})
	m = next.(Model)
	assert.Error(t, m.loginErr)
	assert.Zero(t, ctrl.reloads)
}

func TestModel_View(t *testing.T) {
	m := NewModel(newFakeController(), nil)
	assert.Contains(t, m.View(), "Loading")

	v := sampleView()
	m = withView(m, v)
	out := m.View()
	assert.Contains(t, out, "Forest Friends")
	assert.Contains(t, out, "47.20 (was 59.00, -20%)")
	assert.Contains(t, out, "Box 1/2")
	assert.Contains(t, out, "remaining 2/3")

	v.Phase = model.PhaseResultShown
	v.Result = &model.DrawResult{StyleID: "12"}
	v.History = []model.DrawResult{{StyleID: "12"}}
	m = withView(m, v)
	out = m.View()
	assert.Contains(t, out, "You got: Owl")
	assert.Contains(t, out, "Recent: Owl")

	v.Phase = model.PhaseAwaitingConfirmation
	v.Result = nil
	m = withView(m, v)
	assert.Contains(t, m.View(), "Confirm purchase for 47.20")

	v.HasBox = false
	v.CatalogErr = errors.New("boom")
	m = withView(m, v)
	assert.Contains(t, m.View(), "Could not load boxes")
}

func TestNextSlot(t *testing.T) {
	v := sampleView()

	idx, ok := nextSlot(v, 1)
	require.True(t, ok)
	assert.Equal(t, 1, idx)

	idx, ok = nextSlot(v, -1)
	require.True(t, ok)
	assert.Equal(t, 2, idx)

	v.Selection.SlotIndex = 2
	idx, ok = nextSlot(v, 1)
	require.True(t, ok)
	assert.Equal(t, 1, idx, "wraps past the sold slot")

	v.Slots = nil
	_, ok = nextSlot(v, 1)
	assert.False(t, ok)
}
