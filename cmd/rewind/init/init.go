// Package initcmder provides the init command for initializing a local .rewind
// directory in the current working directory.
package initcmder

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/loopworkco/rewind/pkg/config"
)

const (
	dirName = ".rewind"
)

const initLongDesc string = `Initialize a new .rewind/ directory in the current working directory.

Creates a local .rewind/ directory that takes precedence over the default
~/.rewind/ directory for storage, configuration, daemon state, and other
rewind operations.

This is useful for maintaining separate context memory per project or
directory.

Examples:
  rewind init`

const initShortDesc string = "Initialize a local .rewind/ directory"

func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runInit()
		},
	}

	return cmd
}

func runInit() error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir := filepath.Join(cwd, dirName)

	info, err := os.Stat(dir)
	if err == nil && info.IsDir() {
		fmt.Printf("Already initialized: %s\n", dir)
		return nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating .rewind directory: %w", err)
	}

	// Seed a default config.toml so `rewind config list` has a file to
	// show and edit.
	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return fmt.Errorf("creating config manager: %w", err)
	}
	if err := cfger.SaveConfig(config.NewDefaultConfig()); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}

	fmt.Printf("Initialized .rewind directory: %s\n", dir)
	return nil
}
