package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/algod-proxy/internal/audit"
	"github.com/firefly-engineering/algod-proxy/internal/errors"
)

var auditLogCmd = &cobra.Command{
	Use:   "audit-log [path]",
	Short: "Display the request audit trail",
	Long: `Display entries from the proxy's JSONL audit log.

The path defaults to audit_log from the configuration.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAuditLog,
}

var (
	auditLogJSON    bool
	auditLogTail    int
	auditLogClient  string
	auditLogOutcome string
	auditLogRule    string
)

func init() {
	auditLogCmd.Flags().BoolVar(&auditLogJSON, "raw", false, "Output entries as JSON lines")
	auditLogCmd.Flags().IntVarP(&auditLogTail, "tail", "n", 50, "Show only the last N matching entries (0 = all)")
	auditLogCmd.Flags().StringVar(&auditLogClient, "client", "", "Only entries from this client identity")
	auditLogCmd.Flags().StringVar(&auditLogOutcome, "outcome", "", "Only entries with this outcome (e.g. rate_limited)")
	auditLogCmd.Flags().StringVar(&auditLogRule, "rule", "", "Only entries matching this allowlist rule")
	rootCmd.AddCommand(auditLogCmd)
}

func runAuditLog(cmd *cobra.Command, args []string) error {
	var path string
	if len(args) == 1 {
		path = args[0]
	} else {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		path = cfg.AuditLog
	}
	if path == "" {
		return errors.ValidationError("no audit log path given and audit_log is not configured")
	}

	entries, err := audit.Read(path)
	if err != nil {
		return fmt.Errorf("failed to read audit log: %w", err)
	}

	filter := audit.Filter{Client: auditLogClient, Outcome: auditLogOutcome, Rule: auditLogRule}
	entries = audit.Select(entries, filter, auditLogTail)
	if len(entries) == 0 {
		logInfo("No matching entries in %s", path)
		return nil
	}

	out := cmd.OutOrStdout()
	for _, e := range entries {
		if auditLogJSON {
			data, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("failed to marshal entry: %w", err)
			}
			fmt.Fprintln(out, string(data))
			continue
		}
		ts := e.Timestamp.Local().Format("2006-01-02 15:04:05")
		fmt.Fprintf(out, "[%s] %-15s %-6s %-3d %-20s %s %s\n",
			ts, e.Client, e.Method, e.StatusCode, e.Outcome, e.Path, formatRule(e.Rule))
	}
	return nil
}

func formatRule(rule string) string {
	if rule == "" {
		return ""
	}
	return "(" + rule + ")"
}
