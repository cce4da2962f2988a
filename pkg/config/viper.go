package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/loopworkco/rewind/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the REWIND_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (REWIND_API_LISTEN, REWIND_STORAGE_PROVIDER, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: REWIND_API_LISTEN, REWIND_STORAGE_SQLITE_PATH, etc.
	v.SetEnvPrefix("REWIND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Storage
	v.SetDefault("storage.provider", d.Storage.Provider)
	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)
	v.SetDefault("storage.postgres_dsn", d.Storage.PostgresDSN)

	// Engine
	v.SetDefault("engine.retention_days", d.Engine.RetentionDays)
	v.SetDefault("engine.compression_threshold", d.Engine.CompressionThreshold)
	v.SetDefault("engine.relevance_threshold", d.Engine.RelevanceThreshold)
	v.SetDefault("engine.retrieve_timeout_ms", d.Engine.RetrieveTimeoutMs)
	v.SetDefault("engine.recent_window_hours", d.Engine.RecentWindowHours)

	// Scoring
	v.SetDefault("scoring.recency_weight", d.Scoring.RecencyWeight)
	v.SetDefault("scoring.overlap_weight", d.Scoring.OverlapWeight)
	v.SetDefault("scoring.outcome_weight", d.Scoring.OutcomeWeight)
	v.SetDefault("scoring.file_overlap_weight", d.Scoring.FileOverlapWeight)

	// Cache
	v.SetDefault("cache.capacity", d.Cache.Capacity)
	v.SetDefault("cache.ttl_seconds", d.Cache.TTLSeconds)

	// Breaker
	v.SetDefault("breaker.failure_threshold", d.Breaker.FailureThreshold)
	v.SetDefault("breaker.recovery_timeout_seconds", d.Breaker.RecoveryTimeoutSeconds)
	v.SetDefault("breaker.half_open_max_calls", d.Breaker.HalfOpenMaxCalls)

	// API
	v.SetDefault("api.listen", d.API.Listen)

	// Client
	v.SetDefault("client.api_target", d.Client.APITarget)

	// Events
	v.SetDefault("events.provider", d.Events.Provider)
	v.SetDefault("events.brokers", d.Events.Brokers)
	v.SetDefault("events.topic", d.Events.Topic)

	// Trigger
	v.SetDefault("trigger.keywords", d.Trigger.Keywords)
}
