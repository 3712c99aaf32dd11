package cmd

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/kballard/go-shellquote"
	"github.com/spf13/cobra"

	"github.com/firefly-engineering/algod-proxy/internal/allowlist"
)

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "List the endpoints the proxy forwards",
	Args:  cobra.NoArgs,
	RunE:  runRoutes,
}

var (
	routesCurl    bool
	routesBaseURL string
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	cellStyle = lipgloss.NewStyle().
			Padding(0, 1)

	limitedStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.Color("214"))
)

func init() {
	routesCmd.Flags().BoolVar(&routesCurl, "curl", false, "Print an example curl command per endpoint")
	routesCmd.Flags().StringVar(&routesBaseURL, "base-url", "", "Proxy URL used in curl examples (default from config)")
	rootCmd.AddCommand(routesCmd)
}

func runRoutes(cmd *cobra.Command, args []string) error {
	rules := allowlist.Default().Rules()
	out := cmd.OutOrStdout()

	if routesCurl {
		base := routesBaseURL
		if base == "" {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			base = baseURL(cfg)
		}
		for i := range rules {
			fmt.Fprintln(out, curlExample(base, &rules[i]))
		}
		return nil
	}

	fmt.Fprintln(out, renderRoutes(rules))
	return nil
}

// renderRoutes draws the rule table in match order.
func renderRoutes(rules []allowlist.Rule) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("RULE", "METHODS", "PATH", "RATE LIMITED").
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle.Padding(0, 1)
			case col == 3 && row >= 0 && row < len(rules) && rules[row].RateLimited:
				return limitedStyle
			default:
				return cellStyle
			}
		})

	for _, r := range rules {
		limited := "no"
		if r.RateLimited {
			limited = "yes"
		}
		t.Row(r.Name, strings.Join(r.Methods, ","), r.Pattern(), limited)
	}
	return t.String()
}

// curlExample builds a shell-safe curl invocation for rule against base.
func curlExample(base string, rule *allowlist.Rule) string {
	args := []string{"curl", "-sS"}
	if rule.Allows(http.MethodPost) {
		args = append(args,
			"-X", http.MethodPost,
			"-H", "Content-Type: "+contentTypeFor(rule),
			"--data-binary", "@"+bodyFileFor(rule),
		)
	}
	args = append(args, strings.TrimRight(base, "/")+rule.ExamplePath())
	return shellquote.Join(args...)
}

func contentTypeFor(rule *allowlist.Rule) string {
	if rule.Name == "simulate" {
		return "application/json"
	}
	return "application/x-binary"
}

func bodyFileFor(rule *allowlist.Rule) string {
	if rule.Name == "simulate" {
		return "simulate-request.json"
	}
	return "signed-txn.msgpack"
}
