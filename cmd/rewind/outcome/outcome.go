// Package outcomecmder provides the outcome command for updating how a
// stored context record's work ended.
package outcomecmder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/loopworkco/rewind/api"
	"github.com/loopworkco/rewind/pkg/cliui"
	"github.com/loopworkco/rewind/pkg/config"
	"github.com/loopworkco/rewind/pkg/record"
)

type outcomeCommander struct {
	id      int64
	outcome string
	meta    []string

	apiTarget string
}

const outcomeLongDesc string = `Update the outcome of a stored context record.

Outcomes feed back into relevance scoring: successful contexts surface more
readily on later recalls, failed ones less so. Metadata pairs are merged
into the record's existing metadata.

Examples:
  rewind outcome 42 Success
  rewind outcome 42 Failure --meta reason=timeout
  rewind outcome 7 Partial --meta tests=3/5 --meta retried=true`

const outcomeShortDesc string = "Update a context record's outcome"

func NewOutcomeCmd() *cobra.Command {
	cmder := &outcomeCommander{}

	cmd := &cobra.Command{
		Use:   "outcome <id> <Success|Partial|Failure|Unknown>",
		Short: outcomeShortDesc,
		Long:  outcomeLongDesc,
		Args:  cobra.ExactArgs(2),
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
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid record id %q", args[0])
			}
			cmder.id = id
			cmder.outcome = args[1]
			return cmder.run()
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().StringArrayVar(&cmder.meta, "meta", nil, "Metadata key=value pair to merge (repeatable)")
	cmd.Flags().StringVar(&cmder.apiTarget, "api-target", defaults.Client.APITarget, "Rewind API server URL")

	return cmd
}

func (c *outcomeCommander) run() error {
	metadata, err := parseMeta(c.meta)
	if err != nil {
		return err
	}

	if err := OutcomeAPI(c.apiTarget, c.id, c.outcome, metadata); err != nil {
		return err
	}

	fmt.Printf("%s context %s marked %s\n",
		cliui.Mark(nil),
		cliui.KeyStyle.Render(fmt.Sprintf("#%d", c.id)),
		cliui.ValueStyle.Render(c.outcome),
	)

	return nil
}

// OutcomeAPI patches a record's outcome through the rewind API.
func OutcomeAPI(apiTarget string, id int64, outcome string, metadata map[string]string) error {
	patchURL, err := url.Parse(apiTarget)
	if err != nil {
		return fmt.Errorf("invalid API target URL: %w", err)
	}
	patchURL.Path = fmt.Sprintf("/v1/contexts/%d/outcome", id)

	payload, err := json.Marshal(api.UpdateOutcomeRequest{
		Outcome:  record.Outcome(outcome),
		Metadata: metadata,
	})
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPatch, patchURL.String(), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating outcome request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to rewind API at %s: %w", apiTarget, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("no context record with id %d", id)
	}
	if resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("outcome request failed (HTTP %d): %s", resp.StatusCode, string(body))
	}

	return nil
}

func parseMeta(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	meta := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --meta %q, expected key=value", pair)
		}
		meta[k] = v
	}
	return meta, nil
}
