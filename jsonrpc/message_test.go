package jsonrpc

import (
	"errors"
	"fmt"
	"testing"
)

type emptyError struct{}

func (emptyError) Error() string { return "" }

func TestErrorFrom(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{"plain error", errors.New("disk full"), 500, "disk full"},
		{"empty message", emptyError{}, 500, "Internal error"},
		{"explicit code", NewError(403, "forbidden"), 403, "forbidden"},
		{"zero code kept", &Error{Code: 0, Message: "odd"}, 0, "odd"},
		{"wrapped rpc error", fmt.Errorf("ctx: %w", NewError(409, "conflict")), 409, "conflict"},
		{"method not found", ErrMethodNotFound, 404, "Method Not Found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errorFrom(tt.err)
			if got.Code != tt.wantCode || got.Message != tt.wantMsg {
				t.Errorf("errorFrom() = {%d %q}, want {%d %q}", got.Code, got.Message, tt.wantCode, tt.wantMsg)
			}
		})
	}
}

func TestError_Is(t *testing.T) {
	err := fmt.Errorf("call failed: %w", NewError(404, "Method Not Found"))

	if !errors.Is(err, ErrMethodNotFound) {
		t.Error("expected match on code and message")
	}
	if !errors.Is(err, &Error{Code: 404}) {
		t.Error("target without message should match on code alone")
	}
	if errors.Is(err, &Error{Code: 404, Message: "other"}) {
		t.Error("different message should not match")
	}
	if errors.Is(err, &Error{Code: 500}) {
		t.Error("different code should not match")
	}
}

func TestError_String(t *testing.T) {
	if got := NewError(500, "boom").Error(); got != "boom (code 500)" {
		t.Errorf("Error() = %q", got)
	}
}

func TestCodeOf(t *testing.T) {
	if codeOf(nil) != 0 {
		t.Error("nil error should have code 0")
	}
	if codeOf(errors.New("x")) != CodeInternalError {
		t.Error("plain error should map to 500")
	}
	if codeOf(NewError(429, "slow down")) != 429 {
		t.Error("rpc error code should be kept")
	}
}
