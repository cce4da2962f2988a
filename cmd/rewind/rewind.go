// Package rewindcmder provides the root rewind command.
package rewindcmder

import (
	"github.com/spf13/cobra"

	analyzecmder "github.com/loopworkco/rewind/cmd/rewind/analyze"
	backfillcmder "github.com/loopworkco/rewind/cmd/rewind/backfill"
	cleanupcmder "github.com/loopworkco/rewind/cmd/rewind/cleanup"
	configcmder "github.com/loopworkco/rewind/cmd/rewind/config"
	healthcmder "github.com/loopworkco/rewind/cmd/rewind/health"
	initcmder "github.com/loopworkco/rewind/cmd/rewind/init"
	outcomecmder "github.com/loopworkco/rewind/cmd/rewind/outcome"
	recallcmder "github.com/loopworkco/rewind/cmd/rewind/recall"
	savecmder "github.com/loopworkco/rewind/cmd/rewind/save"
	servecmder "github.com/loopworkco/rewind/cmd/rewind/serve"
	sessionscmder "github.com/loopworkco/rewind/cmd/rewind/sessions"
	versioncmder "github.com/loopworkco/rewind/cmd/version"
)

const rewindLongDesc string = `Rewind is session memory for your coding agents.

Run the daemon with:
  rewind serve         Run the context API server

Work with stored context using:
  rewind save          Save context from the current session
  rewind recall        Recall relevant context from past sessions
  rewind outcome       Record how saved work turned out
  rewind sessions      Summarize a session
  rewind cleanup       Delete old context records
  rewind analyze       Decide whether a prompt warrants recall`

const rewindShortDesc string = "Rewind - Agent Session Memory"

func NewRewindCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rewind",
		Short: rewindShortDesc,
		Long:  rewindLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .rewind/ directory location")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(savecmder.NewSaveCmd())
	cmd.AddCommand(recallcmder.NewRecallCmd())
	cmd.AddCommand(outcomecmder.NewOutcomeCmd())
	cmd.AddCommand(sessionscmder.NewSessionsCmd())
	cmd.AddCommand(cleanupcmder.NewCleanupCmd())
	cmd.AddCommand(healthcmder.NewHealthCmd())
	cmd.AddCommand(analyzecmder.NewAnalyzeCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(backfillcmder.NewBackfillCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
