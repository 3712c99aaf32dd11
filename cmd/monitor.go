package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/algod-proxy/internal/errors"
	"github.com/firefly-engineering/algod-proxy/internal/logging"
	"github.com/firefly-engineering/algod-proxy/internal/monitor"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch the upstream node's reachability",
	Long: `Periodically probes the node's /health endpoint and logs when it becomes
reachable or unreachable. Runs in the foreground until interrupted.

serve does the same in the background when monitor_interval is set.`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

var (
	monitorInterval time.Duration
	monitorUpstream string
)

func init() {
	monitorCmd.Flags().DurationVar(&monitorInterval, "interval", time.Minute, "Probe interval")
	monitorCmd.Flags().StringVar(&monitorUpstream, "upstream", "", "algod base URL (default from config)")
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	if monitorInterval <= 0 {
		return errors.ValidationError("--interval must be positive")
	}

	upstream := monitorUpstream
	if upstream == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		upstream = cfg.Upstream.URL
	}

	mon := monitor.New(monitorInterval, upstream, monitor.WithLogger(logging.Component("monitor")))

	logInfo("Monitoring %s every %s", mon.Target(), monitorInterval)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := mon.Run(ctx)
	if errors.Is(err, context.Canceled) {
		logInfo("Monitor stopped")
		return nil
	}
	return err
}
