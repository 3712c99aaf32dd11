// Package logging provides logging utilities for algod-proxy.
//
// This package provides two categories of output:
//   - Structured logs for the running proxy (via slog)
//   - User output: formatted messages for CLI subcommands
//
// # Structured Logging
//
// Logs are written using slog and controlled by verbosity settings:
//
//	logging.Debug("request rejected", "reason", "endpoint", "path", path)
//	logging.Warn("rate limit store unavailable", "error", err)
//
// Components receive a tagged logger:
//
//	logger := logging.Component("proxy")
//
// # User Output
//
// User-facing messages are formatted with status indicators:
//
//	logging.UserInfo("Upstream: %s", host)
//	logging.UserSuccess("proxy healthy")
//	logging.UserWarning("listening on a non-loopback address")
//	logging.UserError("health check failed: %v", err)
//
// Output destinations:
//   - UserInfo, UserSuccess: stdout
//   - UserWarning, UserError: stderr
package logging
