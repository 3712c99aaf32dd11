package cmd

import (
	"context"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/algod-proxy/internal/errors"
	"github.com/firefly-engineering/algod-proxy/internal/health"
)

var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Probe a running proxy's /health endpoint",
	Long: `Probe /health on a running proxy and exit non-zero if it does not answer
{"ok":true}. Suitable for container and systemd health checks.`,
	Args: cobra.NoArgs,
	RunE: runHealthcheck,
}

var (
	healthcheckURL     string
	healthcheckTimeout time.Duration
)

func init() {
	healthcheckCmd.Flags().StringVar(&healthcheckURL, "url", "", "Proxy base URL (default from config)")
	healthcheckCmd.Flags().DurationVar(&healthcheckTimeout, "timeout", health.DefaultTimeout, "Probe timeout")
	rootCmd.AddCommand(healthcheckCmd)
}

func runHealthcheck(cmd *cobra.Command, args []string) error {
	base := healthcheckURL
	if base == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		base = baseURL(cfg)
	}
	target := strings.TrimRight(base, "/") + "/health"

	ctx, cancel := context.WithTimeout(cmd.Context(), healthcheckTimeout)
	defer cancel()

	result := health.Check(ctx, nil, target)
	if result.Status != health.StatusHealthy {
		logError("%s unhealthy: %v", target, result.Err)
		return errors.Unhealthy(target, result.Err)
	}

	logSuccess("%s healthy (%s)", target, health.FormatLatency(result.Latency))
	return nil
}
