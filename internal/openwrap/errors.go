package openwrap

import (
	"context"
	"errors"
	"fmt"
)

// OpenWrap error codes
const (
	ErrCodeInvalidRequest      = 1001
	ErrCodeNoAds               = 1002
	ErrCodeNetwork             = 1003
	ErrCodeServer              = 1004
	ErrCodeTimeout             = 1005
	ErrCodeInternal            = 1006
	ErrCodeInvalidResponse     = 1007
	ErrCodeRequestCancelled    = 1008
	ErrCodeRender              = 1009
	ErrCodeOpenWrapSignaling   = 1010
	ErrCodeAdExpired           = 1011
	ErrCodeAdRequestNotAllowed = 1012
	ErrCodeAdAlreadyShown      = 2001
	ErrCodeAdNotReady          = 2002
)

// Error is an SDK failure reported to listeners
type Error struct {
	Code    int
	Message string
}

// NewError creates an Error
func NewError(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

func (e *Error) Error() string {
	return fmt.Sprintf("openwrap error %d: %s", e.Code, e.Message)
}

// asError converts any failure into an *Error
func asError(err error) *Error {
	var owErr *Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &owErr):
		return owErr
	case errors.Is(err, context.DeadlineExceeded):
		return NewError(ErrCodeTimeout, "request timed out")
	case errors.Is(err, context.Canceled):
		return NewError(ErrCodeRequestCancelled, "request cancelled")
	case errors.Is(err, ErrCircuitOpen):
		return NewError(ErrCodeNetwork, "auction endpoint unavailable")
	default:
		return NewError(ErrCodeInternal, err.Error())
	}
}
