// Package cleanupcmder provides the cleanup command for deleting old
// context records.
package cleanupcmder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/loopworkco/rewind/api"
	"github.com/loopworkco/rewind/pkg/cliui"
	"github.com/loopworkco/rewind/pkg/config"
)

type cleanupCommander struct {
	olderThan int

	apiTarget string
}

const cleanupLongDesc string = `Delete context records older than the retention window.

Without --older-than the daemon's configured retention period applies.

Examples:
  rewind cleanup
  rewind cleanup --older-than 7`

const cleanupShortDesc string = "Delete old context records"

func NewCleanupCmd() *cobra.Command {
	cmder := &cleanupCommander{}

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: cleanupShortDesc,
		Long:  cleanupLongDesc,
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
			return cmder.run(cmd)
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().IntVar(&cmder.olderThan, "older-than", 0, "Delete records older than this many days (0 uses the daemon's retention)")
	cmd.Flags().StringVar(&cmder.apiTarget, "api-target", defaults.Client.APITarget, "Rewind API server URL")

	return cmd
}

func (c *cleanupCommander) run(cmd *cobra.Command) error {
	cleanupURL, err := url.Parse(c.apiTarget)
	if err != nil {
		return fmt.Errorf("invalid API target URL: %w", err)
	}
	cleanupURL.Path = "/v1/cleanup"

	var reqBody io.Reader
	if cmd.Flags().Changed("older-than") {
		payload, err := json.Marshal(api.CleanupRequest{OlderThanDays: c.olderThan})
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, cleanupURL.String(), reqBody)
	if err != nil {
		return fmt.Errorf("creating cleanup request: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to rewind API at %s: %w", c.apiTarget, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cleanup request failed (HTTP %d): %s", resp.StatusCode, string(body))
	}

	var output api.CleanupResponse
	if err := json.Unmarshal(body, &output); err != nil {
		return fmt.Errorf("failed to parse cleanup response: %w", err)
	}

	fmt.Printf("%s deleted %s old context records\n",
		cliui.Mark(nil),
		cliui.KeyStyle.Render(fmt.Sprintf("%d", output.Deleted)),
	)

	return nil
}
