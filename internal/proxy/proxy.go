package proxy

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/firefly-engineering/algod-proxy/internal/allowlist"
	"github.com/firefly-engineering/algod-proxy/internal/audit"
	"github.com/firefly-engineering/algod-proxy/internal/clientip"
	"github.com/firefly-engineering/algod-proxy/internal/health"
	"github.com/firefly-engineering/algod-proxy/internal/ratelimit"
)

// DefaultTokenHeader is the header algod reads its API token from.
const DefaultTokenHeader = "X-Algo-API-Token"

// Client-visible error messages.
const (
	msgEndpointNotAllowed = "Endpoint not allowed"
	msgMethodNotAllowed   = "Method not allowed"
	msgRateLimited        = "Too many transaction submissions"
	msgProxyError         = "Proxy error"
)

// Config holds proxy configuration
type Config struct {
	// UpstreamURL is the algod base URL (e.g., "http://127.0.0.1:8082")
	UpstreamURL string

	// Token is the upstream API token injected into every forwarded request
	Token string

	// TokenHeader defaults to DefaultTokenHeader
	TokenHeader string

	// Registry is the endpoint allowlist. Defaults to allowlist.Default().
	Registry *allowlist.Registry

	// Limiter guards rate-limited endpoints. Nil disables rate limiting.
	Limiter *ratelimit.Limiter

	// Identity derives the client key for rate limiting. Defaults to the
	// peer address.
	Identity *clientip.Resolver

	// AuditLogPath is the path to write audit logs (empty = no audit log)
	AuditLogPath string

	// DialTimeout and ResponseHeaderTimeout bound the upstream connection
	// and the wait for upstream response headers. Zero means no limit.
	DialTimeout           time.Duration
	ResponseHeaderTimeout time.Duration

	// ReadTimeout and WriteTimeout are applied by Server to each client
	// connection. Zero means no limit.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Logger for proxy operations
	Logger *slog.Logger

	// Transport is an optional HTTP transport for upstream calls.
	// Used in tests to observe or fault upstream traffic.
	Transport http.RoundTripper
}

// Proxy admits, rejects and forwards requests to the upstream node.
type Proxy struct {
	config   *Config
	registry *allowlist.Registry
	limiter  *ratelimit.Limiter
	identity *clientip.Resolver
	forward  *forwarder
	auditLog *audit.Writer
	handler  http.Handler
	token    atomic.Pointer[string]
}

// New creates a new proxy instance
func New(cfg *Config) (*Proxy, error) {
	target, err := url.Parse(cfg.UpstreamURL)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream URL: %w", err)
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return nil, fmt.Errorf("upstream URL must use http or https (got %q)", target.Scheme)
	}
	if target.Host == "" {
		return nil, fmt.Errorf("upstream URL has no host: %q", cfg.UpstreamURL)
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("upstream token is required")
	}

	if cfg.TokenHeader == "" {
		cfg.TokenHeader = DefaultTokenHeader
	}
	if cfg.Registry == nil {
		cfg.Registry = allowlist.Default()
	}
	if cfg.Identity == nil {
		cfg.Identity, _ = clientip.New(nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	if target.Scheme == "http" && !isInternalHost(target.Hostname()) {
		cfg.Logger.Warn("upstream is reached over plain http on a non-local address; the API token is sent unencrypted",
			"upstream", target.Redacted())
	}

	p := &Proxy{
		config:   cfg,
		registry: cfg.Registry,
		limiter:  cfg.Limiter,
		identity: cfg.Identity,
	}
	p.token.Store(&cfg.Token)

	p.forward = newForwarder(target, cfg, p.currentToken)

	if cfg.AuditLogPath != "" {
		al, err := audit.NewWriter(cfg.AuditLogPath, cfg.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create audit logger: %w", err)
		}
		p.auditLog = al
	}

	p.handler = p.routes()
	return p, nil
}

// routes assembles the pipeline. Every request is tracked and gets CORS
// headers; /health is answered directly; everything else goes through
// admission and, if admitted, the forwarder.
func (p *Proxy) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(p.track)
	r.Use(cors)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		recordFrom(r.Context()).Outcome = OutcomeHealth
		health.Handler(w, r)
	})
	r.NotFound(p.admit)
	r.MethodNotAllowed(p.admit)
	return r
}

// ServeHTTP implements http.Handler
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.handler.ServeHTTP(w, r)
}

// SetToken replaces the upstream token. Safe to call while serving.
func (p *Proxy) SetToken(token string) error {
	if token == "" {
		return fmt.Errorf("upstream token is required")
	}
	p.token.Store(&token)
	return nil
}

func (p *Proxy) currentToken() string {
	return *p.token.Load()
}

// admit runs the rate limit and allowlist stages, in that order, and hands
// admitted requests to the forwarder.
func (p *Proxy) admit(w http.ResponseWriter, r *http.Request) {
	rec := recordFrom(r.Context())
	path := r.URL.EscapedPath()
	logger := p.config.Logger

	if p.limiter != nil {
		if rule, ok := p.registry.Match(path); ok && rule.RateLimited {
			d := p.limiter.Allow(r.Context(), rec.Client)
			if !d.Allowed {
				rec.Outcome = OutcomeRateLimited
				logger.Debug("rate limit exceeded", "client", rec.Client, "count", d.Count, "limit", d.Limit)
				writeError(w, http.StatusTooManyRequests, msgRateLimited, "")
				return
			}
		}
	}

	rule, err := p.registry.Check(r.Method, path)
	switch {
	case errors.Is(err, allowlist.ErrEndpointNotAllowed):
		rec.Outcome = OutcomeEndpointNotAllowed
		logger.Debug("request rejected", "reason", err, "method", r.Method, "path", path, "client", rec.Client)
		writeError(w, http.StatusForbidden, msgEndpointNotAllowed, "")
		return
	case errors.Is(err, allowlist.ErrMethodNotAllowed):
		rec.Rule = rule.Name
		rec.Outcome = OutcomeMethodNotAllowed
		logger.Debug("request rejected", "reason", err, "method", r.Method, "path", path, "client", rec.Client)
		writeError(w, http.StatusForbidden, msgMethodNotAllowed, "")
		return
	}

	rec.Rule = rule.Name
	rec.Outcome = p.forward.serve(w, r)
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg, detail string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: msg, Detail: detail})
}

// isInternalHost reports whether host is a loopback, link-local or private
// IP literal, or localhost. Hostnames are not resolved.
func isInternalHost(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast()
}

// Close closes the proxy and releases resources
func (p *Proxy) Close() error {
	p.forward.close()
	if p.auditLog != nil {
		return p.auditLog.Close()
	}
	return nil
}
