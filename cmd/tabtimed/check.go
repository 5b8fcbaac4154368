package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/littleCareless/dish-tab-time/internal/config"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check <domain|url>",
	Short: "Check the current limit status of a domain",
	Long:  "Queries the running daemon for the accumulated usage and limit status of a domain. Accepts a bare domain or a full URL.",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

type checkResult struct {
	Domain     string `json:"domain"`
	Status     string `json:"status"`
	UsedMS     int64  `json:"used_ms"`
	LimitMS    int64  `json:"limit_ms"`
	UsedHuman  string `json:"used_human"`
	LimitHuman string `json:"limit_human"`
	HasLimit   bool   `json:"has_limit"`
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	domain := args[0]
	if strings.Contains(domain, "://") {
		parsed, err := url.Parse(domain)
		if err != nil || parsed.Hostname() == "" {
			return fmt.Errorf("cannot extract a domain from %q", domain)
		}
		domain = parsed.Hostname()
	}
	domain = strings.ToLower(domain)

	endpoint := fmt.Sprintf("http://%s:%d/api/check/%s", cfg.Server.BindAddress, cfg.Server.APIPort, url.PathEscape(domain))

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(endpoint)
	if err != nil {
		return fmt.Errorf("daemon not reachable at %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("daemon returned status %d", resp.StatusCode)
	}

	var result checkResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	printCheckResult(result)
	return nil
}

func printCheckResult(result checkResult) {
	var statusPrinter *color.Color
	switch result.Status {
	case "BLOCKED":
		statusPrinter = color.New(color.FgRed, color.Bold)
	case "WARNING":
		statusPrinter = color.New(color.FgYellow, color.Bold)
	default:
		statusPrinter = color.New(color.FgGreen, color.Bold)
	}

	fmt.Printf("Domain:  %s\n", result.Domain)
	fmt.Printf("Status:  %s\n", statusPrinter.Sprint(result.Status))
	fmt.Printf("Used:    %s\n", result.UsedHuman)

	if result.HasLimit {
		fmt.Printf("Limit:   %s\n", result.LimitHuman)
	} else {
		fmt.Printf("Limit:   %s\n", color.New(color.Faint).Sprint("none configured"))
	}
}
