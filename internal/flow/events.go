package flow

import (
	"blindbox-draw/internal/catalog"
	"blindbox-draw/internal/model"
	"blindbox-draw/internal/pricing"
)

// Event 輸入狀態機的訊息，使用者操作與網路回應都以事件表示
type Event interface {
	isEvent()
}

type BoxSelected struct {
	StockID model.ID
}

type SlotSelected struct {
	Index int
}

type DrawRequested struct{}

type Confirmed struct{}

type Cancelled struct{}

// Dismissed 關閉結果或錯誤提示
type Dismissed struct{}

type CatalogUpdated struct {
	Snapshot catalog.Snapshot
}

type PriceUpdated struct {
	Display pricing.Display
}

// PurchaseSucceeded Attempt 與目前嘗試不符時會被忽略
type PurchaseSucceeded struct {
	Attempt uint64
	Result  model.DrawResult
}

type PurchaseFailed struct {
	Attempt uint64
	Err     error
}

type SessionInvalidated struct {
	Cause error
}

func (BoxSelected) isEvent()        {}
func (SlotSelected) isEvent()       {}
func (DrawRequested) isEvent()      {}
func (Confirmed) isEvent()          {}
func (Cancelled) isEvent()          {}
func (Dismissed) isEvent()          {}
func (CatalogUpdated) isEvent()     {}
func (PriceUpdated) isEvent()       {}
func (PurchaseSucceeded) isEvent()  {}
func (PurchaseFailed) isEvent()     {}
func (SessionInvalidated) isEvent() {}

// Command 狀態機要求外部執行的動作
type Command interface {
	isCommand()
}

// SubmitPurchase 只帶 StockID，格位由後端決定
type SubmitPurchase struct {
	Attempt        uint64
	StockID        model.ID
	IdempotencyKey string
}

type RefreshCatalog struct{}

type RequireReauth struct {
	Cause error
}

func (SubmitPurchase) isCommand() {}
func (RefreshCatalog) isCommand() {}
func (RequireReauth) isCommand()  {}
