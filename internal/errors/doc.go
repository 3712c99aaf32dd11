// Package errors provides typed errors with exit codes for algod-proxy.
//
// # Error Types
//
// ProxyError is the base error type that wraps an error with an exit code:
//
//	type ProxyError struct {
//	    Code    int    // Exit code
//	    Message string // User-facing message
//	    Cause   error  // Wrapped error
//	}
//
// # Exit Codes
//
//	ExitSuccess      = 0  // Success
//	ExitGeneralError = 1  // General/unknown errors
//	ExitConfigError  = 2  // Invalid configuration
//	ExitTokenError   = 3  // Upstream token missing or unreadable
//	ExitListenError  = 4  // Listener could not be bound or failed
//	ExitUnhealthy    = 5  // Health probe failed
//
// Request-level rejections (allowlist, rate limit) are not ProxyErrors; they
// are answered on the wire and never terminate the process.
//
// # Extracting Exit Codes
//
//	if err != nil {
//	    os.Exit(errors.GetExitCode(err))
//	}
package errors
