// Package configcmder provides the config command for managing persistent
// rewind configuration stored in the .rewind/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent rewind configuration.

Configuration is stored as config.toml in the .rewind/ directory and provides
default values for command flags. CLI flags always take precedence over
config file values.

Keys use dotted notation matching the TOML section structure:
  storage.provider, storage.sqlite_path, storage.postgres_dsn,
  engine.retention_days, engine.compression_threshold,
  engine.relevance_threshold, engine.retrieve_timeout_ms,
  engine.recent_window_hours,
  scoring.recency_weight, scoring.overlap_weight,
  scoring.outcome_weight, scoring.file_overlap_weight,
  cache.capacity, cache.ttl_seconds,
  breaker.failure_threshold, breaker.recovery_timeout_seconds,
  breaker.half_open_max_calls,
  api.listen, client.api_target,
  events.provider, events.brokers, events.topic,
  trigger.keywords

Use subcommands to get, set, or list configuration values:
  rewind config set <key> <value>    Set a configuration value
  rewind config get <key>            Get a configuration value
  rewind config list                 List all configuration values

Examples:
  rewind config set storage.provider postgres
  rewind config set engine.retention_days 14
  rewind config get scoring.recency_weight
  rewind config list`

const configShortDesc string = "Manage persistent rewind configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
