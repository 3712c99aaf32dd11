package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestProxyError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *ProxyError
		wantMsg string
	}{
		{
			name:    "without cause",
			err:     New(ExitGeneralError, "something went wrong"),
			wantMsg: "something went wrong",
		},
		{
			name:    "with cause",
			err:     Wrap(ExitGeneralError, "operation failed", fmt.Errorf("underlying error")),
			wantMsg: "operation failed: underlying error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestProxyError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := Wrap(ExitGeneralError, "wrapped", cause)

	if unwrapped := err.Unwrap(); unwrapped != cause {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
	}

	errNoCause := New(ExitGeneralError, "no cause")
	if unwrapped := errNoCause.Unwrap(); unwrapped != nil {
		t.Errorf("Unwrap() = %v, want nil", unwrapped)
	}
}

func TestConstructors(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		name     string
		err      *ProxyError
		wantCode int
		wantMsg  string
	}{
		{"config", ConfigError("invalid upstream URL", cause), ExitConfigError, "invalid upstream URL: boom"},
		{"token", TokenError("/run/algod.token", cause), ExitTokenError, "failed to load upstream token from /run/algod.token: boom"},
		{"listen", ListenError("127.0.0.1:3001", cause), ExitListenError, "failed to serve on 127.0.0.1:3001: boom"},
		{"unhealthy", Unhealthy("http://127.0.0.1:3001/health", cause), ExitUnhealthy, "health check against http://127.0.0.1:3001/health failed: boom"},
		{"denied", Denied("GET", "/v2/ledger/supply", cause), ExitDenied, "GET /v2/ledger/supply would be rejected: boom"},
		{"validation", ValidationError("bad input"), ExitGeneralError, "bad input"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.wantCode {
				t.Errorf("Code = %d, want %d", tt.err.Code, tt.wantCode)
			}
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"proxy error", TokenError("x", nil), ExitTokenError},
		{"wrapped proxy error", fmt.Errorf("startup: %w", ConfigError("bad", nil)), ExitConfigError},
		{"plain error", errors.New("plain"), ExitGeneralError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetExitCode(tt.err); got != tt.want {
				t.Errorf("GetExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestIsAndAs(t *testing.T) {
	cause := errors.New("root")
	err := fmt.Errorf("outer: %w", Wrap(ExitListenError, "listen", cause))

	if !Is(err, cause) {
		t.Error("Is() should find the root cause")
	}

	var pe *ProxyError
	if !As(err, &pe) {
		t.Fatal("As() should find ProxyError")
	}
	if pe.Code != ExitListenError {
		t.Errorf("Code = %d, want %d", pe.Code, ExitListenError)
	}
}
