// Package sessionscmder provides the sessions command for summarizing a
// working session's stored context.
package sessionscmder

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
	"github.com/loopworkco/rewind/pkg/store"
)

const sessionsLongDesc string = `Show a summary of one session's stored context records.

Reports how many records the session produced, how the work broke down by
outcome, and the session's time span.

Examples:
  rewind sessions sess-42`

const sessionsShortDesc string = "Summarize a session's context records"

type sessionsCommander struct {
	sessionID string

	apiTarget string
}

func NewSessionsCmd() *cobra.Command {
	cmder := &sessionsCommander{}

	cmd := &cobra.Command{
		Use:   "sessions <session-id>",
		Short: sessionsShortDesc,
		Long:  sessionsLongDesc,
		Args:  cobra.ExactArgs(1),
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
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.sessionID = args[0]
			return cmder.run()
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().StringVar(&cmder.apiTarget, "api-target", defaults.Client.APITarget, "Rewind API server URL")

	return cmd
}

func (c *sessionsCommander) run() error {
	summary, err := SessionAPI(c.apiTarget, c.sessionID)
	if err != nil {
		return err
	}

	fmt.Printf("\n%s %s\n\n",
		cliui.KeyStyle.Render("Session"),
		cliui.ValueStyle.Render(summary.SessionID),
	)
	fmt.Printf("  %s %d\n", cliui.DimStyle.Render("records:  "), summary.Count)
	fmt.Printf("  %s %d\n", cliui.DimStyle.Render("successes:"), summary.SuccessCount)
	fmt.Printf("  %s %d\n", cliui.DimStyle.Render("failures: "), summary.FailureCount)
	fmt.Printf("  %s %.3f\n", cliui.DimStyle.Render("avg score:"), summary.AvgRelevance)
	fmt.Printf("  %s %s .. %s\n\n",
		cliui.DimStyle.Render("span:     "),
		summary.FirstAt.Format("2006-01-02 15:04"),
		summary.LastAt.Format("2006-01-02 15:04"),
	)

	return nil
}

// SessionAPI fetches a session summary from the rewind API.
func SessionAPI(apiTarget, sessionID string) (*store.SessionSummary, error) {
	sessURL, err := url.Parse(apiTarget)
	if err != nil {
		return nil, fmt.Errorf("invalid API target URL: %w", err)
	}
	sessURL.Path = "/v1/sessions/" + url.PathEscape(sessionID)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, sessURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating session request: %w", err)
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

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("no records for session %q", sessionID)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("session request failed (HTTP %d): %s", resp.StatusCode, string(body))
	}

	var summary store.SessionSummary
	if err := json.Unmarshal(body, &summary); err != nil {
		return nil, fmt.Errorf("failed to parse session response: %w", err)
	}

	return &summary, nil
}
