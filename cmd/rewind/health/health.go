// Package healthcmder provides the health command for inspecting a
// running rewind daemon.
package healthcmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/loopworkco/rewind/pkg/cliui"
	"github.com/loopworkco/rewind/pkg/config"
	"github.com/loopworkco/rewind/pkg/engine"
)

const healthLongDesc string = `Report the daemon's health.

Shows the storage circuit breaker state, total and recent record counts,
and the retrieval cache size. A degraded daemon (circuit open, storage
unreachable) is reported as an error.

Examples:
  rewind health
  rewind health --api-target http://localhost:8092`

const healthShortDesc string = "Report daemon health"

type healthCommander struct {
	apiTarget string
}

func NewHealthCmd() *cobra.Command {
	cmder := &healthCommander{}

	cmd := &cobra.Command{
		Use:   "health",
		Short: healthShortDesc,
		Long:  healthLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			cfger, err := config.NewConfiger(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			cfg, err := cfger.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			if !cmd.Flags().Changed("api-target") {
				cmder.apiTarget = cfg.Client.APITarget
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run()
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().StringVar(&cmder.apiTarget, "api-target", defaults.Client.APITarget, "Rewind API server URL")

	return cmd
}

func (c *healthCommander) run() error {
	report, err := HealthAPI(c.apiTarget)
	if err != nil {
		return err
	}

	fmt.Printf("%s daemon healthy\n", cliui.Mark(nil))
	fmt.Printf("  %s %s\n", cliui.DimStyle.Render("circuit:       "), cliui.ValueStyle.Render(report.CircuitState))
	fmt.Printf("  %s %d\n", cliui.DimStyle.Render("total records: "), report.TotalRecords)
	fmt.Printf("  %s %d\n", cliui.DimStyle.Render("recent records:"), report.RecentRecords)
	fmt.Printf("  %s %d\n", cliui.DimStyle.Render("cache entries: "), report.CacheSize)

	return nil
}

// HealthAPI fetches the daemon health report from the rewind API.
func HealthAPI(apiTarget string) (*engine.HealthReport, error) {
	healthURL, err := url.Parse(apiTarget)
	if err != nil {
		return nil, fmt.Errorf("invalid API target URL: %w", err)
	}
	healthURL.Path = "/v1/health"

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, healthURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating health request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rewind API at %s: %w", apiTarget, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("daemon unhealthy (HTTP %d): %s", resp.StatusCode, string(body))
	}

	var report engine.HealthReport
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, fmt.Errorf("failed to parse health response: %w", err)
	}

	return &report, nil
}
