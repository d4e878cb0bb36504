package errors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
)

const (
	ErrCodeAuth      ErrCode = "AUTH"
	ErrCodeTransient ErrCode = "TRANSIENT"
	ErrCodeRequest   ErrCode = "REQUEST"
	ErrCodeInference ErrCode = "INFERENCE"
	ErrCodeInternal  ErrCode = "INTERNAL"
	ErrCodeBusy      ErrCode = "BUSY"
	ErrCodeCancelled ErrCode = "CANCELLED"
)

type ErrCode string

type ErrorInfo struct {
	HttpStatus int     `json:"-"`
	Code       ErrCode `json:"code"`
	Message    string  `json:"message"`
	Detail     string  `json:"detail,omitempty"`

	cause error
}

func (e ErrorInfo) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e ErrorInfo) Unwrap() error {
	return e.cause
}

// WithCause returns a copy of e wrapping cause.
func (e ErrorInfo) WithCause(cause error) ErrorInfo {
	e.cause = cause
	return e
}

func IsErrCode(err error, code ErrCode) bool {
	if err == nil {
		return false
	}
	info := ErrorInfo{}
	if errors.As(err, &info) {
		return info.Code == code
	}
	return false
}

// CodeOf returns the code of the outermost ErrorInfo in err's chain, or
// ErrCodeInternal for anything else.
func CodeOf(err error) ErrCode {
	info := ErrorInfo{}
	if errors.As(err, &info) {
		return info.Code
	}
	return ErrCodeInternal
}

// IsCancelled reports whether err comes from a user or context cancellation.
func IsCancelled(err error) bool {
	return IsErrCode(err, ErrCodeCancelled) || errors.Is(err, context.Canceled)
}

// IsRetryable reports whether err is a transient failure worth another attempt.
func IsRetryable(err error) bool {
	return IsErrCode(err, ErrCodeTransient)
}

func NewAuthError(status int, msg string) ErrorInfo {
	return ErrorInfo{HttpStatus: status, Code: ErrCodeAuth, Message: msg}
}

func NewTransientError(cause error) ErrorInfo {
	return ErrorInfo{HttpStatus: http.StatusServiceUnavailable, Code: ErrCodeTransient, Message: cause.Error(), cause: cause}
}

func NewRequestError(status int, msg string) ErrorInfo {
	return ErrorInfo{HttpStatus: status, Code: ErrCodeRequest, Message: msg}
}

func NewNotFoundError(what string) ErrorInfo {
	return ErrorInfo{HttpStatus: http.StatusNotFound, Code: ErrCodeRequest, Message: fmt.Sprintf("%s not found", what)}
}

func NewParameterInvalidError(msg string) ErrorInfo {
	return ErrorInfo{HttpStatus: http.StatusBadRequest, Code: ErrCodeRequest, Message: msg}
}

func NewRetryExhaustedError(attempts int, last error) ErrorInfo {
	return ErrorInfo{
		HttpStatus: http.StatusServiceUnavailable,
		Code:       ErrCodeRequest,
		Message:    fmt.Sprintf("giving up after %d attempts: %v", attempts, last),
		cause:      last,
	}
}

func NewInferenceError(status int, payload string) ErrorInfo {
	msg := "inference failed"
	if status > 0 {
		msg = fmt.Sprintf("inference failed with status %d", status)
	}
	return ErrorInfo{HttpStatus: status, Code: ErrCodeInference, Message: msg, Detail: payload}
}

func NewInternalError(err error) ErrorInfo {
	return ErrorInfo{HttpStatus: http.StatusInternalServerError, Code: ErrCodeInternal, Message: err.Error(), cause: err}
}

func NewBusyError(running string) ErrorInfo {
	return ErrorInfo{HttpStatus: http.StatusConflict, Code: ErrCodeBusy, Message: fmt.Sprintf("task %s is still running", running)}
}

func NewCancelledError() ErrorInfo {
	return ErrorInfo{Code: ErrCodeCancelled, Message: "cancelled by user"}
}

// FromStatus maps a non-successful registry response onto the error taxonomy.
func FromStatus(status int, body string) ErrorInfo {
	if body == "" {
		body = http.StatusText(status)
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return NewAuthError(status, body)
	case status >= http.StatusInternalServerError:
		return ErrorInfo{HttpStatus: status, Code: ErrCodeTransient, Message: fmt.Sprintf("server error %d: %s", status, body)}
	case status == http.StatusNotFound:
		return ErrorInfo{HttpStatus: status, Code: ErrCodeRequest, Message: fmt.Sprintf("not found: %s", body)}
	default:
		return NewRequestError(status, body)
	}
}

// FromTransport classifies an error returned by an http.Client. Timeouts,
// resets and truncated bodies are transient; everything else is a request error.
func FromTransport(err error) ErrorInfo {
	if info := (ErrorInfo{}); errors.As(err, &info) {
		return info
	}
	var nerr net.Error
	switch {
	case errors.As(err, &nerr) && nerr.Timeout(),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.EOF):
		return NewTransientError(err)
	}
	var operr *net.OpError
	if errors.As(err, &operr) {
		return NewTransientError(err)
	}
	return ErrorInfo{HttpStatus: http.StatusBadRequest, Code: ErrCodeRequest, Message: err.Error(), cause: err}
}

// Classify converts any error into an ErrorInfo suitable for display.
func Classify(err error) ErrorInfo {
	info := ErrorInfo{}
	if errors.As(err, &info) {
		return info
	}
	if errors.Is(err, context.Canceled) {
		return NewCancelledError().WithCause(err)
	}
	return NewInternalError(err)
}
