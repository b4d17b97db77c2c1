package flow

import (
	"blindbox-draw/internal/catalog"
	"blindbox-draw/internal/model"
	"blindbox-draw/internal/pricing"
	"blindbox-draw/internal/selector"
	"blindbox-draw/internal/session"
	apperrors "blindbox-draw/pkg/app_errors"
	"errors"

	"github.com/google/uuid"
)

// MaxHistory 最近抽盒紀錄的保留筆數
const MaxHistory = 20

// State 購買流程的完整狀態，只由 Machine 修改
type State struct {
	Phase     model.FlowPhase
	Selection selector.Selection
	Catalog   catalog.Snapshot
	Price     pricing.Display
	Result    *model.DrawResult
	History   []model.DrawResult
	Notice    Notice
	Attempt   uint64
}

// Transition 單一事件造成的狀態變化
type Transition struct {
	From     model.FlowPhase
	To       model.FlowPhase
	Commands []Command
	Notice   Notice
	Ignored  bool
}

func (t Transition) Changed() bool {
	return t.From != t.To
}

// Machine 購買流程狀態機，不做任何 I/O，事件進、Transition 出
type Machine struct {
	state   State
	confirm bool
	newKey  func() string
}

type Option func(*Machine)

// WithConfirmation 購買前先進入付款確認步驟
func WithConfirmation(enabled bool) Option {
	return func(m *Machine) {
		m.confirm = enabled
	}
}

// WithKeyGenerator 自訂 Idempotency-Key 產生方式
func WithKeyGenerator(gen func() string) Option {
	return func(m *Machine) {
		m.newKey = gen
	}
}

func NewMachine(opts ...Option) *Machine {
	m := &Machine{
		state:  State{Phase: model.PhaseIdle, Selection: selector.Empty()},
		newKey: uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State 回傳目前狀態的副本
func (m *Machine) State() State {
	s := m.state
	s.History = append([]model.DrawResult(nil), m.state.History...)
	if m.state.Result != nil {
		r := *m.state.Result
		s.Result = &r
	}
	return s
}

func (m *Machine) Phase() model.FlowPhase {
	return m.state.Phase
}

func (m *Machine) Apply(ev Event) Transition {
	tr := Transition{From: m.state.Phase}
	switch e := ev.(type) {
	case BoxSelected:
		m.onBoxSelected(e, &tr)
	case SlotSelected:
		m.onSlotSelected(e, &tr)
	case DrawRequested:
		m.onDrawRequested(&tr)
	case Confirmed:
		m.onConfirmed(&tr)
	case Cancelled:
		m.onCancelled(&tr)
	case Dismissed:
		m.onDismissed(&tr)
	case CatalogUpdated:
		m.onCatalogUpdated(e, &tr)
	case PriceUpdated:
		m.state.Price = e.Display
	case PurchaseSucceeded:
		m.onPurchaseSucceeded(e, &tr)
	case PurchaseFailed:
		m.onPurchaseFailed(e, &tr)
	case SessionInvalidated:
		m.onSessionInvalidated(e, &tr)
	default:
		tr.Ignored = true
	}
	tr.To = m.state.Phase
	return tr
}

func (m *Machine) enter(phase model.FlowPhase) bool {
	if m.state.Phase == phase {
		return true
	}
	if !m.state.Phase.CanTransitionTo(phase) {
		return false
	}
	m.state.Phase = phase
	return true
}

func (m *Machine) notify(tr *Transition, n Notice) {
	m.state.Notice = n
	tr.Notice = n
}

func (m *Machine) onBoxSelected(e BoxSelected, tr *Transition) {
	if !m.state.Phase.AcceptsSelection() {
		tr.Ignored = true
		return
	}
	if _, ok := m.state.Catalog.Find(e.StockID); !ok {
		tr.Ignored = true
		return
	}
	next := m.state.Selection.WithBox(e.StockID)
	m.state.Selection = next
	if !next.HasSlot() {
		m.enter(model.PhaseIdle)
	}
}

func (m *Machine) onSlotSelected(e SlotSelected, tr *Transition) {
	if !m.state.Phase.AcceptsSelection() || !m.state.Selection.HasBox() {
		tr.Ignored = true
		return
	}
	box, ok := m.state.Catalog.Find(m.state.Selection.StockID)
	if !ok {
		tr.Ignored = true
		return
	}
	next, ok := m.state.Selection.SelectSlot(box, e.Index)
	if !ok {
		// 已售出的格位不可選，狀態不變
		tr.Ignored = true
		return
	}
	m.state.Selection = next
	m.enter(model.PhaseSelecting)
}

func (m *Machine) onDrawRequested(tr *Transition) {
	if !m.state.Phase.AcceptsSelection() {
		tr.Ignored = true
		return
	}
	if err := m.validate(); err != nil {
		m.notify(tr, noticeFor(NoticeWarning, err))
		return
	}
	// 取消確認或關閉錯誤後保留的選擇，重新進入 Selecting 再送出
	m.enter(model.PhaseSelecting)
	m.notify(tr, Notice{})
	if m.confirm {
		m.enter(model.PhaseAwaitingConfirmation)
		return
	}
	m.submit(tr)
}

func (m *Machine) onConfirmed(tr *Transition) {
	if m.state.Phase != model.PhaseAwaitingConfirmation {
		tr.Ignored = true
		return
	}
	if err := m.validate(); err != nil {
		m.enter(model.PhaseIdle)
		m.notify(tr, noticeFor(NoticeWarning, err))
		return
	}
	m.submit(tr)
}

func (m *Machine) onCancelled(tr *Transition) {
	if m.state.Phase != model.PhaseAwaitingConfirmation {
		tr.Ignored = true
		return
	}
	m.enter(model.PhaseIdle)
}

func (m *Machine) onDismissed(tr *Transition) {
	switch m.state.Phase {
	case model.PhaseResultShown:
		m.state.Result = nil
		m.state.Selection = m.adoptCurrent(selector.Empty())
		m.enter(model.PhaseIdle)
		m.notify(tr, Notice{})
		tr.Commands = append(tr.Commands, RefreshCatalog{})
	case model.PhaseFailed:
		m.enter(model.PhaseIdle)
		m.notify(tr, Notice{})
		m.revalidate(tr)
	case model.PhaseIdle, model.PhaseSelecting:
		if m.state.Notice.Empty() {
			tr.Ignored = true
			return
		}
		m.notify(tr, Notice{})
	default:
		tr.Ignored = true
	}
}

func (m *Machine) onCatalogUpdated(e CatalogUpdated, tr *Transition) {
	m.state.Catalog = e.Snapshot
	switch m.state.Phase {
	case model.PhaseIdle, model.PhaseSelecting:
		m.revalidate(tr)
	case model.PhaseAwaitingConfirmation:
		if !m.selectionValid() {
			m.state.Selection = m.adoptCurrent(selector.Empty())
			m.enter(model.PhaseIdle)
			m.notify(tr, noticeFor(NoticeWarning, apperrors.ErrStaleSelection))
		}
	}
}

func (m *Machine) onPurchaseSucceeded(e PurchaseSucceeded, tr *Transition) {
	if m.state.Phase != model.PhaseSubmitting || e.Attempt != m.state.Attempt {
		tr.Ignored = true
		return
	}
	result := e.Result
	m.state.Result = &result
	m.state.History = append(m.state.History, result)
	if over := len(m.state.History) - MaxHistory; over > 0 {
		m.state.History = append([]model.DrawResult(nil), m.state.History[over:]...)
	}
	m.enter(model.PhaseResultShown)
	m.notify(tr, Notice{})
	tr.Commands = append(tr.Commands, RefreshCatalog{})
}

func (m *Machine) onPurchaseFailed(e PurchaseFailed, tr *Transition) {
	if m.state.Phase != model.PhaseSubmitting || e.Attempt != m.state.Attempt {
		tr.Ignored = true
		return
	}
	err := e.Err
	if err == nil {
		err = apperrors.ErrTransport
	}
	if session.IsSessionError(err) {
		m.failSession(tr, err)
		return
	}
	m.enter(model.PhaseFailed)
	m.notify(tr, noticeFor(NoticeError, err))
	if errors.Is(err, apperrors.ErrSoldOut) {
		tr.Commands = append(tr.Commands, RefreshCatalog{})
	}
}

func (m *Machine) onSessionInvalidated(e SessionInvalidated, tr *Transition) {
	cause := e.Cause
	if cause == nil {
		cause = apperrors.ErrSessionExpired
	}
	if m.state.Phase == model.PhaseFailed && session.IsSessionError(m.state.Notice.Err) && !m.state.Selection.HasBox() {
		tr.Ignored = true
		return
	}
	m.failSession(tr, cause)
}

// failSession 授權失敗一律終止目前流程並清除選擇；遞增 Attempt 讓晚到的購買回應失效
func (m *Machine) failSession(tr *Transition, cause error) {
	m.state.Attempt++
	m.state.Selection = selector.Empty()
	m.state.Result = nil
	m.enter(model.PhaseFailed)
	m.notify(tr, noticeFor(NoticeError, cause))
	tr.Commands = append(tr.Commands, RequireReauth{Cause: cause})
}

func (m *Machine) submit(tr *Transition) {
	m.state.Attempt++
	m.enter(model.PhaseSubmitting)
	tr.Commands = append(tr.Commands, SubmitPurchase{
		Attempt:        m.state.Attempt,
		StockID:        m.state.Selection.StockID,
		IdempotencyKey: m.newKey(),
	})
}

// validate 送出前的同步檢查，順序即錯誤優先順序
func (m *Machine) validate() error {
	sel := m.state.Selection
	if !sel.HasBox() {
		return apperrors.ErrNoBoxSelected
	}
	if !sel.HasSlot() {
		return apperrors.ErrNoSlotSelected
	}
	if !m.state.Catalog.AnyRemaining() {
		return apperrors.ErrNoStockRemaining
	}
	box, ok := m.state.Catalog.Find(sel.StockID)
	if !ok {
		return apperrors.ErrStaleSelection
	}
	if box.IsSoldOut() {
		return apperrors.ErrSoldOut
	}
	if !sel.StillValid(box) {
		return apperrors.ErrStaleSelection
	}
	return nil
}

func (m *Machine) selectionValid() bool {
	sel := m.state.Selection
	box, ok := m.state.Catalog.Find(sel.StockID)
	if !ok {
		return false
	}
	if !sel.HasSlot() {
		return true
	}
	return sel.StillValid(box)
}

// revalidate 以最新庫存檢查選擇，失效時清除並回到 Idle
func (m *Machine) revalidate(tr *Transition) {
	sel := m.state.Selection
	if !sel.HasBox() {
		m.state.Selection = m.adoptCurrent(sel)
		return
	}
	if m.selectionValid() {
		return
	}
	m.state.Selection = m.adoptCurrent(selector.Empty())
	m.enter(model.PhaseIdle)
	if sel.HasSlot() {
		m.notify(tr, noticeFor(NoticeWarning, apperrors.ErrStaleSelection))
	}
}

// adoptCurrent 沒有選盒時跟隨庫存目前顯示的盒子
func (m *Machine) adoptCurrent(sel selector.Selection) selector.Selection {
	if sel.HasBox() {
		return sel
	}
	if box, ok := m.state.Catalog.CurrentBox(); ok {
		return sel.WithBox(box.ID)
	}
	return sel
}
