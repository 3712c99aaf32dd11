package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/joho/godotenv"

	"github.com/firefly-engineering/algod-proxy/internal/errors"
)

const (
	DefaultUpstreamURL           = "http://127.0.0.1:8082"
	DefaultTokenFile             = "/usr/share/func/voi/algod.token"
	DefaultListenHost            = "127.0.0.1"
	DefaultPort                  = 3001
	DefaultTxWindow              = 10 * time.Second
	DefaultTxMax                 = 100
	DefaultDialTimeout           = 5 * time.Second
	DefaultResponseHeaderTimeout = 90 * time.Second
)

// Environment variables. The first three keep the names the proxy has
// always been deployed with.
const (
	EnvUpstreamURL    = "ALGOD_HOST"
	EnvTokenFile      = "ALGOD_TOKEN_FILE"
	EnvPort           = "PORT"
	EnvListenHost     = "ALGOD_PROXY_LISTEN_HOST"
	EnvSecretsDir     = "ALGOD_PROXY_SECRETS_DIR"
	EnvTxWindow       = "ALGOD_PROXY_TX_WINDOW"
	EnvTxMax          = "ALGOD_PROXY_TX_MAX"
	EnvRedisURL       = "ALGOD_PROXY_REDIS_URL"
	EnvTrustedProxies = "ALGOD_PROXY_TRUSTED_PROXIES"
	EnvAuditLog       = "ALGOD_PROXY_AUDIT_LOG"
	EnvLogLevel       = "ALGOD_PROXY_LOG_LEVEL"
	EnvMonitor        = "ALGOD_PROXY_MONITOR_INTERVAL"
)

// Duration is a time.Duration that decodes from TOML strings like "10s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config is the complete proxy configuration.
type Config struct {
	Upstream       UpstreamConfig  `toml:"upstream"`
	Listen         ListenConfig    `toml:"listen"`
	RateLimit      RateLimitConfig `toml:"rate_limit"`
	TrustedProxies []string        `toml:"trusted_proxies"`
	AuditLog       string          `toml:"audit_log"`
	LogLevel       string          `toml:"log_level"`
}

// UpstreamConfig describes the algod node being fronted.
type UpstreamConfig struct {
	URL       string `toml:"url"`
	TokenFile string `toml:"token_file"`
	// SecretsDir, when set, confines a relative TokenFile to this directory.
	SecretsDir            string   `toml:"secrets_dir"`
	DialTimeout           Duration `toml:"dial_timeout"`
	ResponseHeaderTimeout Duration `toml:"response_header_timeout"`
	// MonitorInterval enables background probing of the node's /health.
	// Zero disables it.
	MonitorInterval Duration `toml:"monitor_interval"`
}

// ListenConfig controls the local listener.
type ListenConfig struct {
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	AllowPublic bool   `toml:"allow_public"`
	// ReadTimeout and WriteTimeout bound a whole request body read and a
	// whole response write. Zero means no limit, which long-polls and slow
	// streamed submissions need.
	ReadTimeout  Duration `toml:"read_timeout"`
	WriteTimeout Duration `toml:"write_timeout"`
}

// RateLimitConfig bounds transaction submissions per client.
type RateLimitConfig struct {
	Window   Duration `toml:"window"`
	Max      int      `toml:"max"`
	RedisURL string   `toml:"redis_url"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Upstream: UpstreamConfig{
			URL:                   DefaultUpstreamURL,
			TokenFile:             DefaultTokenFile,
			DialTimeout:           Duration{DefaultDialTimeout},
			ResponseHeaderTimeout: Duration{DefaultResponseHeaderTimeout},
		},
		Listen: ListenConfig{
			Host: DefaultListenHost,
			Port: DefaultPort,
		},
		RateLimit: RateLimitConfig{
			Window: Duration{DefaultTxWindow},
			Max:    DefaultTxMax,
		},
		LogLevel: "info",
	}
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment without overriding variables that are already set. Missing
// files are ignored.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return errors.ConfigError(fmt.Sprintf("failed to load %s", f), err)
		}
	}
	return nil
}

// Load builds a Config from defaults, an optional TOML file and the process
// environment, in that order of precedence (later wins).
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		md, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, errors.ConfigError(fmt.Sprintf("failed to parse config file %s", path), err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, k := range undecoded {
				keys = append(keys, k.String())
			}
			return nil, errors.ConfigError(fmt.Sprintf("unknown keys in %s: %s", path, strings.Join(keys, ", ")), nil)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnv overlays environment values onto the config. lookup is usually
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvUpstreamURL); ok && v != "" {
		c.Upstream.URL = v
	}
	if v, ok := lookup(EnvTokenFile); ok && v != "" {
		c.Upstream.TokenFile = v
	}
	if v, ok := lookup(EnvSecretsDir); ok {
		c.Upstream.SecretsDir = v
	}
	if v, ok := lookup(EnvPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return errors.ConfigError(fmt.Sprintf("invalid %s %q", EnvPort, v), err)
		}
		c.Listen.Port = port
	}
	if v, ok := lookup(EnvListenHost); ok && v != "" {
		c.Listen.Host = v
	}
	if v, ok := lookup(EnvTxWindow); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.ConfigError(fmt.Sprintf("invalid %s %q", EnvTxWindow, v), err)
		}
		c.RateLimit.Window = Duration{d}
	}
	if v, ok := lookup(EnvTxMax); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.ConfigError(fmt.Sprintf("invalid %s %q", EnvTxMax, v), err)
		}
		c.RateLimit.Max = n
	}
	if v, ok := lookup(EnvRedisURL); ok {
		c.RateLimit.RedisURL = v
	}
	if v, ok := lookup(EnvTrustedProxies); ok {
		c.TrustedProxies = splitList(v)
	}
	if v, ok := lookup(EnvAuditLog); ok {
		c.AuditLog = v
	}
	if v, ok := lookup(EnvMonitor); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.ConfigError(fmt.Sprintf("invalid %s %q", EnvMonitor, v), err)
		}
		c.Upstream.MonitorInterval = Duration{d}
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.LogLevel = v
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks that the Config is usable. A listener on anything other
// than a loopback address is refused unless AllowPublic is set.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Upstream.URL)
	if err != nil {
		return errors.ConfigError("invalid upstream URL", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.ConfigError(fmt.Sprintf("upstream URL must be http or https (got %q)", u.Scheme), nil)
	}
	if u.Host == "" {
		return errors.ConfigError("upstream URL has no host", nil)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return errors.ConfigError("upstream URL must not carry a query or fragment", nil)
	}

	if c.Upstream.TokenFile == "" {
		return errors.ConfigError("upstream token file is required", nil)
	}

	if c.Listen.Port < 1 || c.Listen.Port > 65535 {
		return errors.ConfigError(fmt.Sprintf("listen port %d out of range", c.Listen.Port), nil)
	}
	if !c.Listen.AllowPublic && !IsLoopbackHost(c.Listen.Host) {
		return errors.ConfigError(fmt.Sprintf("refusing to listen on non-loopback host %q without allow_public", c.Listen.Host), nil)
	}

	if c.RateLimit.Max < 1 {
		return errors.ConfigError("rate_limit.max must be at least 1", nil)
	}
	if c.RateLimit.Window.Duration <= 0 {
		return errors.ConfigError("rate_limit.window must be positive", nil)
	}
	if c.Listen.ReadTimeout.Duration < 0 || c.Listen.WriteTimeout.Duration < 0 {
		return errors.ConfigError("listen timeouts must not be negative", nil)
	}
	if c.Upstream.MonitorInterval.Duration < 0 {
		return errors.ConfigError("upstream.monitor_interval must not be negative", nil)
	}

	return nil
}

// IsLoopbackHost reports whether host names a loopback interface.
func IsLoopbackHost(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// ListenAddr returns the host:port the proxy binds to.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.Listen.Host, strconv.Itoa(c.Listen.Port))
}

// TokenPath resolves the token file location. A relative token file is
// resolved inside SecretsDir without letting it escape that directory.
func (c *Config) TokenPath() (string, error) {
	if c.Upstream.SecretsDir == "" || filepath.IsAbs(c.Upstream.TokenFile) {
		return c.Upstream.TokenFile, nil
	}
	p, err := securejoin.SecureJoin(c.Upstream.SecretsDir, c.Upstream.TokenFile)
	if err != nil {
		return "", errors.ConfigError("failed to resolve token file", err)
	}
	return p, nil
}

// ReadToken reads the upstream API token, trimming surrounding whitespace.
// An empty token is an error: the proxy must not run unauthenticated.
func ReadToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.TokenError(path, err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", errors.TokenError(path, fmt.Errorf("token file is empty"))
	}
	return token, nil
}

// LoadToken resolves and reads the token for this config.
func (c *Config) LoadToken() (string, error) {
	path, err := c.TokenPath()
	if err != nil {
		return "", err
	}
	return ReadToken(path)
}
