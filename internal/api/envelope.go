package api

import (
	apperrors "blindbox-draw/pkg/app_errors"
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
)

// Envelope 後端統一回應格式，Code 為 0 代表成功
type Envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data,omitempty"`
}

func decodeEnvelope(body []byte) (*Envelope, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '{' {
		return nil, errors.New("response is not a json object")
	}
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

func (e *Envelope) err(status int) error {
	code := e.Code
	if code == apperrors.CodeOK && status >= http.StatusBadRequest {
		code = status
	}
	switch code {
	case apperrors.CodeOK:
		return nil
	case apperrors.CodeUnauthorized:
		return apperrors.ErrSessionExpired
	}
	reason := e.Msg
	if reason == "" {
		reason = http.StatusText(status)
	}
	return &apperrors.BusinessError{Code: code, Reason: reason}
}
