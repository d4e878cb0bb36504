package errors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"syscall"
	"testing"
)

func TestFromStatus(t *testing.T) {
	tests := []struct {
		status int
		want   ErrCode
	}{
		{http.StatusUnauthorized, ErrCodeAuth},
		{http.StatusForbidden, ErrCodeAuth},
		{http.StatusNotFound, ErrCodeRequest},
		{http.StatusBadRequest, ErrCodeRequest},
		{http.StatusTooManyRequests, ErrCodeRequest},
		{http.StatusInternalServerError, ErrCodeTransient},
		{http.StatusBadGateway, ErrCodeTransient},
		{http.StatusServiceUnavailable, ErrCodeTransient},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := FromStatus(tt.status, "")
			if err.Code != tt.want {
				t.Errorf("FromStatus(%d).Code = %s, want %s", tt.status, err.Code, tt.want)
			}
			if err.HttpStatus != tt.status {
				t.Errorf("HttpStatus = %d", err.HttpStatus)
			}
		})
	}
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

var _ net.Error = timeoutError{}

func TestFromTransport(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrCode
	}{
		{name: "timeout", err: &url.Error{Op: "Get", URL: "http://x", Err: timeoutError{}}, want: ErrCodeTransient},
		{name: "deadline", err: fmt.Errorf("do: %w", context.DeadlineExceeded), want: ErrCodeTransient},
		{name: "reset", err: &url.Error{Op: "Get", URL: "http://x", Err: syscall.ECONNRESET}, want: ErrCodeTransient},
		{name: "refused", err: &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, want: ErrCodeTransient},
		{name: "eof", err: &url.Error{Op: "Get", URL: "http://x", Err: io.EOF}, want: ErrCodeTransient},
		{name: "short body", err: io.ErrUnexpectedEOF, want: ErrCodeTransient},
		{name: "bad url", err: &url.Error{Op: "Get", URL: "::", Err: errors.New("unsupported protocol scheme")}, want: ErrCodeRequest},
		{name: "already classified", err: NewAuthError(401, "x"), want: ErrCodeAuth},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromTransport(tt.err)
			if got.Code != tt.want {
				t.Errorf("FromTransport().Code = %s, want %s", got.Code, tt.want)
			}
			if tt.want != ErrCodeAuth && !errors.Is(got, tt.err) {
				t.Error("cause is not reachable")
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrCode
	}{
		{name: "plain", err: errors.New("boom"), want: ErrCodeInternal},
		{name: "wrapped info", err: fmt.Errorf("search: %w", NewBusyError("t1")), want: ErrCodeBusy},
		{name: "context canceled", err: context.Canceled, want: ErrCodeCancelled},
		{name: "inference", err: NewInferenceError(503, `{"error":"loading"}`), want: ErrCodeInference},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got.Code != tt.want {
				t.Errorf("Classify().Code = %s, want %s", got.Code, tt.want)
			}
		})
	}
}

func TestRetryExhausted(t *testing.T) {
	last := NewTransientError(errors.New("connection reset by peer"))
	err := NewRetryExhaustedError(3, last)
	if !IsErrCode(err, ErrCodeRequest) {
		t.Errorf("code = %s", err.Code)
	}
	if !IsErrCode(errors.Unwrap(err), ErrCodeTransient) {
		t.Error("last cause is not reachable with errors.Unwrap")
	}
	if IsRetryable(err) {
		t.Error("an exhausted retry must not be retried again")
	}
	if CodeOf(errors.New("x")) != ErrCodeInternal || CodeOf(nil) != ErrCodeInternal {
		t.Error("CodeOf should default to INTERNAL")
	}
}

func TestInferenceErrorDetail(t *testing.T) {
	payload := `{"error":"Model too busy"}`
	err := NewInferenceError(http.StatusServiceUnavailable, payload)
	if err.Detail != payload {
		t.Errorf("Detail = %q", err.Detail)
	}
	if err.Error() != "INFERENCE: inference failed with status 503" {
		t.Errorf("Error() = %q", err.Error())
	}
}
