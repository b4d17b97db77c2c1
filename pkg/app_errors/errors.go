package apperrors

import (
	"errors"
	"fmt"
)

var (
	// session
	ErrSessionExpired = errors.New("session expired")
	ErrNoCredential   = errors.New("no credential")

	// inventory
	ErrSoldOut          = errors.New("stock box sold out")
	ErrStockBoxNotFound = errors.New("stock box not found")
	ErrSeriesNotFound   = errors.New("series not found")

	// selection (never reaches the network)
	ErrNoBoxSelected    = errors.New("no stock box selected")
	ErrNoSlotSelected   = errors.New("no slot selected")
	ErrNoStockRemaining = errors.New("no stock remaining")
	ErrStaleSelection   = errors.New("selection is no longer valid")

	// transport
	ErrTransport         = errors.New("transport failure")
	ErrMalformedResponse = errors.New("malformed response")
	ErrSuperseded        = errors.New("request superseded")

	ErrBusinessRejected = errors.New("rejected by server")
	ErrPriceUnavailable = errors.New("price unavailable")
	ErrInvalidInput     = errors.New("invalid input")
)

// 業務錯誤碼
const (
	CodeOK           = 0
	CodeUnauthorized = 401
	CodeNotFound     = 404
	CodeSoldOut      = 40901
)

// BusinessError 伺服器回傳的業務錯誤，Reason 為可直接顯示給使用者的訊息
type BusinessError struct {
	Code   int
	Reason string
}

func (e *BusinessError) Error() string {
	return fmt.Sprintf("business error %d: %s", e.Code, e.Reason)
}

func (e *BusinessError) Is(target error) bool {
	switch target {
	case ErrBusinessRejected:
		return true
	case ErrSoldOut:
		return e.Code == CodeSoldOut
	}
	return false
}
