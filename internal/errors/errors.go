package errors

import (
	"errors"
	"fmt"
)

// Exit codes for algod-proxy
const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	ExitConfigError  = 2
	ExitTokenError   = 3
	ExitListenError  = 4
	ExitUnhealthy    = 5
	ExitDenied       = 6
)

// ProxyError is the base error type for algod-proxy
type ProxyError struct {
	Code    int
	Message string
	Cause   error
}

func (e *ProxyError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ProxyError) Unwrap() error {
	return e.Cause
}

// ExitCode returns the exit code for this error
func (e *ProxyError) ExitCode() int {
	return e.Code
}

// New creates a new ProxyError
func New(code int, message string) *ProxyError {
	return &ProxyError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a ProxyError
func Wrap(code int, message string, cause error) *ProxyError {
	return &ProxyError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Common error constructors

// ConfigError returns an error for configuration issues
func ConfigError(message string, cause error) *ProxyError {
	return Wrap(ExitConfigError, message, cause)
}

// TokenError returns an error when the upstream token cannot be loaded.
// The proxy must never start without a token.
func TokenError(path string, cause error) *ProxyError {
	return Wrap(ExitTokenError, fmt.Sprintf("failed to load upstream token from %s", path), cause)
}

// ListenError returns an error for listener setup or serve failures
func ListenError(addr string, cause error) *ProxyError {
	return Wrap(ExitListenError, fmt.Sprintf("failed to serve on %s", addr), cause)
}

// Unhealthy returns an error for a failed health probe
func Unhealthy(target string, cause error) *ProxyError {
	return Wrap(ExitUnhealthy, fmt.Sprintf("health check against %s failed", target), cause)
}

// Denied returns an error for a request the proxy would refuse
func Denied(method, path string, cause error) *ProxyError {
	return Wrap(ExitDenied, fmt.Sprintf("%s %s would be rejected", method, path), cause)
}

// ValidationError returns an error for input validation failures
func ValidationError(message string) *ProxyError {
	return New(ExitGeneralError, message)
}

// GetExitCode extracts the exit code from an error
func GetExitCode(err error) int {
	var proxyErr *ProxyError
	if errors.As(err, &proxyErr) {
		return proxyErr.ExitCode()
	}
	return ExitGeneralError
}

// Is checks if an error is of a specific type
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target any) bool {
	return errors.As(err, target)
}
