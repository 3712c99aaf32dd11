// Package config provides configuration types and loading for algod-proxy.
//
// # Sources
//
// Configuration is layered, later sources overriding earlier ones:
//
//  1. Built-in defaults (Default)
//  2. An optional TOML file passed with --config
//  3. A .env file in the working directory (LoadDotEnv)
//  4. The process environment (ApplyEnv)
//  5. Command-line flags, applied by the cmd package
//
// # Example File
//
//	log_level = "info"
//	audit_log = "/var/log/algod-proxy/audit.jsonl"
//	trusted_proxies = []
//
//	[upstream]
//	url = "http://127.0.0.1:8082"
//	secrets_dir = "/run/secrets"
//	token_file = "algod.token"
//	response_header_timeout = "90s"
//
//	[listen]
//	host = "127.0.0.1"
//	port = 3001
//	read_timeout = "0s"
//	write_timeout = "0s"
//
//	[rate_limit]
//	window = "10s"
//	max = 100
//
// # Token
//
// The upstream token is read once at startup (and again on SIGHUP) and
// trimmed of whitespace. A missing or empty token file is fatal.
package config
