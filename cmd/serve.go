package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/firefly-engineering/algod-proxy/internal/allowlist"
	"github.com/firefly-engineering/algod-proxy/internal/clientip"
	"github.com/firefly-engineering/algod-proxy/internal/config"
	"github.com/firefly-engineering/algod-proxy/internal/errors"
	"github.com/firefly-engineering/algod-proxy/internal/logging"
	"github.com/firefly-engineering/algod-proxy/internal/monitor"
	"github.com/firefly-engineering/algod-proxy/internal/proxy"
	"github.com/firefly-engineering/algod-proxy/internal/ratelimit"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the proxy server",
	Long: `Run the proxy in front of an algod node.

Configuration is read, later sources winning, from built-in defaults, the
--config TOML file, a .env file in the working directory, the process
environment (ALGOD_HOST, ALGOD_TOKEN_FILE, PORT, ALGOD_PROXY_*) and flags.

The proxy will:
- Forward only allowlisted /v2 endpoints, with the methods they accept
- Inject the upstream API token read from the token file
- Rate limit POST /v2/transactions per client
- Log every request to the audit log (if configured)

Send SIGHUP to re-read the token file without restarting.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var (
	servePort        int
	serveHost        string
	serveUpstream    string
	serveTokenFile   string
	serveAllowPublic bool
	serveAuditLog    string
	serveRedisURL    string
	serveMonitor     time.Duration
)

// redisPingTimeout bounds the startup connectivity check.
const redisPingTimeout = 5 * time.Second

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", config.DefaultPort, "Port to listen on")
	serveCmd.Flags().StringVar(&serveHost, "host", config.DefaultListenHost, "Address to listen on")
	serveCmd.Flags().StringVar(&serveUpstream, "upstream", config.DefaultUpstreamURL, "algod base URL")
	serveCmd.Flags().StringVar(&serveTokenFile, "token-file", config.DefaultTokenFile, "File holding the algod API token")
	serveCmd.Flags().BoolVar(&serveAllowPublic, "allow-public", false, "Allow listening on a non-loopback address")
	serveCmd.Flags().StringVar(&serveAuditLog, "audit-log", "", "Path to audit log file")
	serveCmd.Flags().StringVar(&serveRedisURL, "redis-url", "", "Share rate limit counters through Redis")
	serveCmd.Flags().DurationVar(&serveMonitor, "monitor-interval", 0, "Probe the node's /health this often (0 = off)")
	rootCmd.AddCommand(serveCmd)
}

// applyServeFlags overlays explicitly set flags onto cfg.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Listen.Port = servePort
	}
	if flags.Changed("host") {
		cfg.Listen.Host = serveHost
	}
	if flags.Changed("upstream") {
		cfg.Upstream.URL = serveUpstream
	}
	if flags.Changed("token-file") {
		cfg.Upstream.TokenFile = serveTokenFile
	}
	if flags.Changed("allow-public") {
		cfg.Listen.AllowPublic = serveAllowPublic
	}
	if flags.Changed("audit-log") {
		cfg.AuditLog = serveAuditLog
	}
	if flags.Changed("redis-url") {
		cfg.RateLimit.RedisURL = serveRedisURL
	}
	if flags.Changed("monitor-interval") {
		cfg.Upstream.MonitorInterval = config.Duration{Duration: serveMonitor}
	}
}

// stack is everything serve starts, so it can be built and torn down in
// one place.
type stack struct {
	server *proxy.Server
	// sweeper is nil when counters live in Redis.
	sweeper *ratelimit.MemoryStore
	redis   *ratelimit.RedisStore
}

func (s *stack) Close() error {
	err := s.server.Close()
	if s.redis != nil {
		if rerr := s.redis.Close(); err == nil {
			err = rerr
		}
	}
	return err
}

// buildStack wires the limiter, client identity and proxy server from cfg.
func buildStack(ctx context.Context, cfg *config.Config, token string) (*stack, error) {
	identity, err := clientip.New(cfg.TrustedProxies)
	if err != nil {
		return nil, errors.ConfigError("invalid trusted_proxies", err)
	}

	st := &stack{}
	var store ratelimit.Store
	if cfg.RateLimit.RedisURL != "" {
		rs, err := ratelimit.NewRedisStoreFromURL(cfg.RateLimit.RedisURL, cfg.RateLimit.Window.Duration)
		if err != nil {
			return nil, errors.ConfigError("invalid rate_limit.redis_url", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		err = rs.Ping(pingCtx)
		cancel()
		if err != nil {
			_ = rs.Close()
			return nil, errors.ConfigError("failed to reach redis", err)
		}
		st.redis = rs
		store = rs
	} else {
		st.sweeper = ratelimit.NewMemoryStore(cfg.RateLimit.Window.Duration)
		store = st.sweeper
	}

	limiter := ratelimit.New(store, cfg.RateLimit.Max,
		ratelimit.WithLogger(logging.Component("ratelimit")))

	server, err := proxy.NewServer(&proxy.Config{
		UpstreamURL:           cfg.Upstream.URL,
		Token:                 token,
		Registry:              allowlist.Default(),
		Limiter:               limiter,
		Identity:              identity,
		AuditLogPath:          cfg.AuditLog,
		DialTimeout:           cfg.Upstream.DialTimeout.Duration,
		ResponseHeaderTimeout: cfg.Upstream.ResponseHeaderTimeout.Duration,
		ReadTimeout:           cfg.Listen.ReadTimeout.Duration,
		WriteTimeout:          cfg.Listen.WriteTimeout.Duration,
		Logger:                logging.Component("proxy"),
	}, cfg.ListenAddr())
	if err != nil {
		if st.redis != nil {
			_ = st.redis.Close()
		}
		return nil, errors.ConfigError("failed to create proxy", err)
	}
	st.server = server
	return st, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyServeFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	if !verbose && cfg.LogLevel != "" {
		level, err := logging.ParseLevel(cfg.LogLevel)
		if err != nil {
			return errors.ConfigError("invalid log_level", err)
		}
		logging.SetupLevel(level, jsonOutput, os.Stderr)
	}

	token, err := cfg.LoadToken()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := buildStack(ctx, cfg, token)
	if err != nil {
		return err
	}
	defer st.Close()

	if cfg.Listen.AllowPublic && !config.IsLoopbackHost(cfg.Listen.Host) {
		logWarning("Listening on non-loopback host %s; clients can bypass the TLS front end", cfg.Listen.Host)
	}

	addr := cfg.ListenAddr()
	logging.Info("algod proxy starting", "addr", addr, "upstream", cfg.Upstream.URL)
	logInfo("Starting algod proxy on %s", addr)
	logInfo("Upstream: %s", cfg.Upstream.URL)
	logInfo("Rate limit: %d submissions per %s per client", cfg.RateLimit.Max, cfg.RateLimit.Window.Duration)
	if cfg.RateLimit.RedisURL != "" {
		logInfo("Rate limit counters: redis")
	}
	if cfg.AuditLog != "" {
		logInfo("Audit log: %s", cfg.AuditLog)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := st.server.Run(ctx); err != nil {
			return errors.ListenError(addr, err)
		}
		return nil
	})

	if st.sweeper != nil {
		g.Go(func() error {
			if err := st.sweeper.Run(ctx, 0); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	if interval := cfg.Upstream.MonitorInterval.Duration; interval > 0 {
		mon := monitor.New(interval, cfg.Upstream.URL, monitor.WithLogger(logging.Component("monitor")))
		g.Go(func() error {
			if err := mon.Run(ctx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	// Handle SIGHUP for token reload
	hupCh := make(chan os.Signal, 1)
	signal.Notify(hupCh, syscall.SIGHUP)
	defer signal.Stop(hupCh)
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-hupCh:
				reloadToken(cfg, st.server)
			}
		}
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logSuccess("Proxy stopped")
	return nil
}

func reloadToken(cfg *config.Config, server *proxy.Server) {
	logging.Info("reloading upstream token")
	token, err := cfg.LoadToken()
	if err != nil {
		logging.Warn("failed to reload token, keeping the current one", "error", err)
		return
	}
	if err := server.ReloadToken(token); err != nil {
		logging.Warn("failed to reload token, keeping the current one", "error", err)
		return
	}
	logging.Info("upstream token reloaded")
}
