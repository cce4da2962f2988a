// Package savecmder provides the save command for storing a context
// record through a running rewind daemon.
package savecmder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/loopworkco/rewind/api"
	"github.com/loopworkco/rewind/pkg/cliui"
	"github.com/loopworkco/rewind/pkg/config"
	"github.com/loopworkco/rewind/pkg/git"
	"github.com/loopworkco/rewind/pkg/record"
)

type saveCommander struct {
	prompt    string
	sessionID string
	payload   string
	files     []string
	outcome   string
	meta      []string

	apiTarget string
}

const saveLongDesc string = `Save a context record via the rewind API.

The prompt is the text that produced the work; the payload is the derived
context worth reviving later (a summary, a diff, tool output). When --payload
is omitted the payload is read from stdin, so the command composes with
pipes.

Examples:
  rewind save "fix the flaky websocket test" --payload "raised the dial timeout to 5s"
  git diff | rewind save "refactor retry loop" --session sess-42 -f pkg/retry/retry.go
  rewind save "debug kafka consumer lag" --payload "..." --outcome Success --meta tool=profiler`

const saveShortDesc string = "Save a context record"

func NewSaveCmd() *cobra.Command {
	cmder := &saveCommander{}

	cmd := &cobra.Command{
		Use:   "save <prompt>",
		Short: saveShortDesc,
		Long:  saveLongDesc,
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
			cmder.prompt = args[0]
			return cmder.run(cmd)
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().StringVar(&cmder.sessionID, "session", "", "Session ID to group this record under")
	cmd.Flags().StringVar(&cmder.payload, "payload", "", "Context payload (reads stdin when omitted)")
	cmd.Flags().StringArrayVarP(&cmder.files, "file", "f", nil, "File path associated with the record (repeatable)")
	cmd.Flags().StringVar(&cmder.outcome, "outcome", "", "Outcome of the work (Success, Partial, Failure, Unknown)")
	cmd.Flags().StringArrayVar(&cmder.meta, "meta", nil, "Metadata key=value pair (repeatable)")
	cmd.Flags().StringVar(&cmder.apiTarget, "api-target", defaults.Client.APITarget, "Rewind API server URL")

	return cmd
}

func (c *saveCommander) run(cmd *cobra.Command) error {
	if c.payload == "" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("reading payload from stdin: %w", err)
		}
		c.payload = strings.TrimSpace(string(data))
	}
	if c.payload == "" {
		return fmt.Errorf("payload is required (use --payload or pipe to stdin)")
	}

	metadata, err := parseMeta(c.meta)
	if err != nil {
		return err
	}

	// Tag records with where they came from so recalls can be judged
	// per project.
	if metadata == nil {
		metadata = make(map[string]string, 2)
	}
	if _, ok := metadata["repo"]; !ok {
		if repo := git.RepoName(); repo != "" {
			metadata["repo"] = repo
		}
	}
	if _, ok := metadata["branch"]; !ok {
		if branch := git.CurrentBranch(); branch != "" {
			metadata["branch"] = branch
		}
	}

	output, err := SaveAPI(c.apiTarget, &api.StoreContextRequest{
		SessionID: c.sessionID,
		Prompt:    c.prompt,
		Payload:   c.payload,
		Files:     c.files,
		Outcome:   record.Outcome(c.outcome),
		Metadata:  metadata,
	})
	if err != nil {
		return err
	}

	fmt.Printf("%s saved context %s\n",
		cliui.Mark(nil),
		cliui.KeyStyle.Render(fmt.Sprintf("#%d", output.ID)),
	)
	fmt.Printf("  %s %s\n",
		cliui.DimStyle.Render("hash:"),
		cliui.ValueStyle.Render(output.ContentHash),
	)

	return nil
}

// SaveAPI posts a context record to the rewind API and returns the
// stored record's identity.
func SaveAPI(apiTarget string, reqBody *api.StoreContextRequest) (*api.StoreContextResponse, error) {
	saveURL, err := url.Parse(apiTarget)
	if err != nil {
		return nil, fmt.Errorf("invalid API target URL: %w", err)
	}
	saveURL.Path = "/v1/contexts"

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, saveURL.String(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating save request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rewind API at %s: %w", apiTarget, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("save request failed (HTTP %d): %s", resp.StatusCode, string(body))
	}

	var output api.StoreContextResponse
	if err := json.Unmarshal(body, &output); err != nil {
		return nil, fmt.Errorf("failed to parse save response: %w", err)
	}

	return &output, nil
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
