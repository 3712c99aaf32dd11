package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/algod-proxy/internal/logging"
)

var (
	verbose    bool
	jsonOutput bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "algod-proxy",
	Short: "Allowlisting reverse proxy for an algod node",
	Long: `algod-proxy exposes a small, read-mostly subset of an algod node's REST API
to untrusted clients.

It forwards only allowlisted endpoints, injects the node's API token so
clients never see it, and rate limits transaction submission per client.
TLS is expected to be terminated by a reverse proxy in front of it.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Setup(verbose, jsonOutput, os.Stderr)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a TOML config file")
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// Helper aliases for user-facing output (delegates to logging package)
var (
	logInfo    = logging.UserInfo
	logSuccess = logging.UserSuccess
	logWarning = logging.UserWarning
	logError   = logging.UserError
)
