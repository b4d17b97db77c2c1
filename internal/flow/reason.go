package flow

import (
	"blindbox-draw/internal/session"
	apperrors "blindbox-draw/pkg/app_errors"
	"errors"
)

type NoticeLevel string

const (
	NoticeNone    NoticeLevel = ""
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// Notice 可關閉的提示訊息
type Notice struct {
	Level   NoticeLevel
	Message string
	Err     error
}

func (n Notice) Empty() bool {
	return n.Level == NoticeNone
}

func noticeFor(level NoticeLevel, err error) Notice {
	return Notice{Level: level, Message: Reason(err), Err: err}
}

// Reason 把錯誤轉成給使用者看的訊息
func Reason(err error) string {
	if err == nil {
		return ""
	}
	var be *apperrors.BusinessError
	switch {
	case session.IsSessionError(err):
		return "Your session has expired. Please log in again."
	case errors.Is(err, apperrors.ErrNoBoxSelected):
		return "Please choose a box first."
	case errors.Is(err, apperrors.ErrNoSlotSelected):
		return "Please pick a slot in the box."
	case errors.Is(err, apperrors.ErrNoStockRemaining):
		return "Every box in this series is sold out."
	case errors.Is(err, apperrors.ErrStaleSelection):
		return "That slot is no longer available. Please pick again."
	case errors.As(err, &be) && be.Reason != "":
		return be.Reason
	case errors.Is(err, apperrors.ErrSoldOut):
		return "This box is sold out."
	case errors.Is(err, apperrors.ErrBusinessRejected):
		return "The purchase was rejected."
	default:
		return "Network problem. Please try again."
	}
}
