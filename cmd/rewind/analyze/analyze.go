// Package analyzecmder provides the analyze command, a local dry run of
// the retrieval trigger heuristic.
package analyzecmder

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/loopworkco/rewind/pkg/cliui"
	"github.com/loopworkco/rewind/pkg/config"
	"github.com/loopworkco/rewind/pkg/trigger"
)

const analyzeLongDesc string = `Analyze a prompt for retrieval worthiness.

Runs the trigger heuristic locally, without a daemon, and reports whether
the prompt would trigger a recall, with what confidence, and the query
terms and file hints that would be used. Keywords configured under
trigger.keywords add to the confidence.

Examples:
  rewind analyze "the websocket test is failing again"
  rewind analyze "implement retry in pkg/client/client.go"`

const analyzeShortDesc string = "Analyze a prompt for retrieval worthiness"

type analyzeCommander struct {
	prompt string

	keywords []string
}

func NewAnalyzeCmd() *cobra.Command {
	cmder := &analyzeCommander{}

	cmd := &cobra.Command{
		Use:   "analyze <prompt>",
		Short: analyzeShortDesc,
		Long:  analyzeLongDesc,
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

			if !cmd.Flags().Changed("keyword") {
				cmder.keywords = cfg.Trigger.Keywords
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.prompt = args[0]
			return cmder.run()
		},
	}

	cmd.Flags().StringArrayVar(&cmder.keywords, "keyword", nil, "Trigger keyword (repeatable, overrides configured keywords)")

	return cmd
}

func (c *analyzeCommander) run() error {
	analysis := trigger.NewAnalyzer(c.keywords).Analyze(c.prompt)

	verdict := "skip retrieval"
	if analysis.ShouldRetrieve {
		verdict = "retrieve"
	}

	fmt.Printf("%s %s\n",
		cliui.Mark(nil),
		cliui.KeyStyle.Render(verdict),
	)
	fmt.Printf("  %s %.3f\n", cliui.DimStyle.Render("confidence: "), analysis.Confidence)
	if len(analysis.QueryTerms) > 0 {
		fmt.Printf("  %s %s\n",
			cliui.DimStyle.Render("query terms:"),
			cliui.ValueStyle.Render(strings.Join(analysis.QueryTerms, " ")),
		)
	}
	if len(analysis.Files) > 0 {
		fmt.Printf("  %s %s\n",
			cliui.DimStyle.Render("files:      "),
			cliui.ValueStyle.Render(strings.Join(analysis.Files, ", ")),
		)
	}

	return nil
}
