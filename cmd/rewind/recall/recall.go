// Package recallcmder provides the recall command for retrieving
// relevant context records from a running rewind daemon.
package recallcmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/loopworkco/rewind/api"
	"github.com/loopworkco/rewind/pkg/cliui"
	"github.com/loopworkco/rewind/pkg/config"
	"github.com/loopworkco/rewind/pkg/record"
	"github.com/loopworkco/rewind/pkg/utils"
)

var (
	rankStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	scoreStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	idStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	previewStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	outcomeStyle = map[record.Outcome]lipgloss.Style{
		record.OutcomeSuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("82")),
		record.OutcomePartial: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		record.OutcomeFailure: lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		record.OutcomeUnknown: lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	}
)

type recallCommander struct {
	query  string
	limit  int
	files  []string
	quiet  bool
	render bool

	apiTarget string
}

const recallLongDesc string = `Recall relevant context records via the rewind API.

Searches stored context records and returns the most relevant ones for the
query text, scored by recency, textual overlap, prior outcome, and file
overlap. Pass --files to boost records that touched the same paths.

Use --quiet to output only payloads, one record per line. This is useful
for piping recalled context straight into another tool.

Examples:
  rewind recall "websocket reconnect backoff"
  rewind recall "flaky auth test" --files internal/auth/session.go --limit 3
  rewind recall "kafka consumer lag" --quiet`

const recallShortDesc string = "Recall relevant context records"

func NewRecallCmd() *cobra.Command {
	cmder := &recallCommander{}

	cmd := &cobra.Command{
		Use:   "recall <query>",
		Short: recallShortDesc,
		Long:  recallLongDesc,
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
			cmder.query = args[0]
			return cmder.run()
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().IntVarP(&cmder.limit, "limit", "k", 5, "Number of records to return")
	cmd.Flags().StringSliceVar(&cmder.files, "files", nil, "File paths to use as relevance hints")
	cmd.Flags().BoolVarP(&cmder.quiet, "quiet", "q", false, "Output only payloads, one per line (for piping)")
	cmd.Flags().BoolVar(&cmder.render, "render", false, "Render payloads as markdown")
	cmd.Flags().StringVar(&cmder.apiTarget, "api-target", defaults.Client.APITarget, "Rewind API server URL")

	return cmd
}

func (c *recallCommander) run() error {
	output, err := RecallAPI(c.apiTarget, c.query, c.files, c.limit)
	if err != nil {
		return err
	}

	if output.Count == 0 {
		if !c.quiet {
			fmt.Println("No relevant context found.")
		}
		return nil
	}

	if c.quiet {
		for _, rec := range output.Records {
			fmt.Println(strings.ReplaceAll(rec.Payload, "\n", " "))
		}
		return nil
	}

	fmt.Printf("\n%s %s\n\n",
		headerStyle.Render("Recalled context for:"),
		idStyle.Render(fmt.Sprintf("%q", output.Query)),
	)

	for i, rec := range output.Records {
		printRecord(i+1, rec, c.render)
	}

	return nil
}

func printRecord(rank int, rec record.ScoredRecord, render bool) {
	fmt.Printf("  %s  %s  %s\n",
		rankStyle.Render(fmt.Sprintf("#%d", rank)),
		scoreStyle.Render(fmt.Sprintf("score: %.4f", rec.Score)),
		idStyle.Render(fmt.Sprintf("id: %d", rec.ID)),
	)

	fmt.Printf("  %s %s\n", labelStyle.Render("prompt:"), previewStyle.Render(oneLine(rec.Prompt, 80)))

	if render {
		rendered, err := cliui.RenderMarkdown(rec.Payload)
		if err != nil {
			rendered = rec.Payload
		}
		fmt.Println(rendered)
	} else {
		fmt.Printf("  %s %s\n", labelStyle.Render("context:"), previewStyle.Render(oneLine(rec.Payload, 80)))
	}

	style, ok := outcomeStyle[rec.Outcome]
	if !ok {
		style = dimStyle
	}
	fmt.Printf("  %s %s  %s\n",
		labelStyle.Render("outcome:"),
		style.Render(string(rec.Outcome)),
		dimStyle.Render(rec.CreatedAt.Format("2006-01-02 15:04")),
	)

	if len(rec.Files) > 0 {
		fmt.Printf("  %s %s\n",
			labelStyle.Render("files:"),
			dimStyle.Render(strings.Join(rec.Files, ", ")),
		)
	}

	fmt.Println()
}

func oneLine(text string, max int) string {
	return strings.ReplaceAll(utils.Truncate(text, max), "\n", " ")
}

// RecallAPI calls the rewind recall API and returns the parsed output.
// Exported so other commands and tooling can reuse it.
func RecallAPI(apiTarget, query string, files []string, limit int) (*api.RecallResponse, error) {
	recallURL, err := url.Parse(apiTarget)
	if err != nil {
		return nil, fmt.Errorf("invalid API target URL: %w", err)
	}
	recallURL.Path = "/v1/recall"
	q := recallURL.Query()
	q.Set("query", query)
	q.Set("limit", strconv.Itoa(limit))
	if len(files) > 0 {
		q.Set("files", strings.Join(files, ","))
	}
	recallURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, recallURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating recall request: %w", err)
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
		return nil, fmt.Errorf("recall request failed (HTTP %d): %s", resp.StatusCode, string(body))
	}

	var output api.RecallResponse
	if err := json.Unmarshal(body, &output); err != nil {
		return nil, fmt.Errorf("failed to parse recall response: %w", err)
	}

	return &output, nil
}
