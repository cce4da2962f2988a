// Package backfillcmder provides the `rewind backfill` CLI command.
package backfillcmder

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/loopworkco/rewind/pkg/backfill"
	"github.com/loopworkco/rewind/pkg/cliui"
	"github.com/loopworkco/rewind/pkg/config"
	"github.com/loopworkco/rewind/pkg/engine"
	"github.com/loopworkco/rewind/pkg/logger"
	"github.com/loopworkco/rewind/pkg/store/sqlite"
)

const backfillLongDesc string = `Import historical agent transcripts as context records.

Scans local JSONL transcripts, pairs each user prompt with its assistant
reply, and stores the pairs as context records in the rewind database.
Opens the database directly, so the daemon does not need to be running.

Examples:
  rewind backfill
  rewind backfill --dry-run
  rewind backfill --sqlite ./rewind.db --verbose
  rewind backfill --transcripts ~/.claude/projects`

const backfillShortDesc string = "Import agent transcripts as context records"

type backfillCommander struct {
	sqlitePath    string
	transcriptDir string
	workers       uint
	dryRun        bool
	verbose       bool
	debug         bool
}

// NewBackfillCmd creates the backfill cobra command.
func NewBackfillCmd() *cobra.Command {
	cmder := &backfillCommander{}

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: backfillShortDesc,
		Long:  backfillLongDesc,
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

			if !cmd.Flags().Changed("sqlite") {
				cmder.sqlitePath = cfg.Storage.SQLitePath
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			return cmder.run(cmd)
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().StringVarP(&cmder.sqlitePath, "sqlite", "s", defaults.Storage.SQLitePath, "Path to the SQLite database file")
	cmd.Flags().StringVar(&cmder.transcriptDir, "transcripts", "", "Transcript directory to scan (default: ~/.claude/projects)")
	cmd.Flags().UintVar(&cmder.workers, "workers", 0, "Storage worker count (0 uses the default)")
	cmd.Flags().BoolVar(&cmder.dryRun, "dry-run", false, "Derive records without storing anything")
	cmd.Flags().BoolVar(&cmder.verbose, "verbose", false, "Print per-file warnings")

	return cmd
}

func (c *backfillCommander) run(cmd *cobra.Command) error {
	log := logger.NewLogger(c.debug)
	defer func() { _ = log.Sync() }()

	s, err := sqlite.New(c.sqlitePath, sqlite.Config{Logger: log})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer s.Close()

	eng, err := engine.New(engine.Options{Store: s, Logger: log})
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}

	imp, err := backfill.NewImporter(eng, log, backfill.Options{
		DryRun:  c.dryRun,
		Verbose: c.verbose,
		Workers: c.workers,
	})
	if err != nil {
		return err
	}

	var result *backfill.Result
	err = cliui.Step(cmd.OutOrStdout(), "Importing transcripts", func() error {
		var runErr error
		result, runErr = imp.Run(cmd.Context(), c.resolveTranscriptDir())
		return runErr
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), result.Summary())
	return nil
}

func (c *backfillCommander) resolveTranscriptDir() string {
	if strings.TrimSpace(c.transcriptDir) != "" {
		return c.transcriptDir
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".claude", "projects")
	}

	return filepath.Join(home, ".claude", "projects")
}
