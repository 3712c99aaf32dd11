package cmd

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/algod-proxy/internal/allowlist"
	"github.com/firefly-engineering/algod-proxy/internal/errors"
)

var checkCmd = &cobra.Command{
	Use:   "check METHOD PATH",
	Short: "Report whether the proxy would forward a request",
	Long: `Evaluate a request against the allowlist without contacting any node.

PATH may include a query string; only the path is matched. The command exits
non-zero when the request would be rejected.`,
	Example: `  algod-proxy check GET /v2/status
  algod-proxy check POST '/v2/transactions/simulate?format=json'`,
	Args: cobra.ExactArgs(2),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	method := strings.ToUpper(args[0])
	path, err := requestPath(args[1])
	if err != nil {
		return errors.ValidationError(fmt.Sprintf("invalid path %q: %v", args[1], err))
	}

	out := cmd.OutOrStdout()
	rule, err := allowlist.Default().Check(method, path)
	if err != nil {
		fmt.Fprintf(out, "✗ %s %s: %v\n", method, path, err)
		return errors.Denied(method, path, err)
	}

	note := ""
	if rule.RateLimited {
		note = ", rate limited"
	}
	fmt.Fprintf(out, "✓ %s %s: forwarded (rule %s%s)\n", method, path, rule.Name, note)
	return nil
}

// requestPath returns the escaped path of a request target, the form the
// proxy matches on.
func requestPath(target string) (string, error) {
	u, err := url.ParseRequestURI(target)
	if err != nil {
		return "", err
	}
	if u.Host != "" || u.Scheme != "" {
		return "", fmt.Errorf("expected a path, not a URL")
	}
	return u.EscapedPath(), nil
}
