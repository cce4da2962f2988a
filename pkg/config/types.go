package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Config represents the persistent rewind configuration stored as config.toml
// in the .rewind/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version int            `toml:"version"`
	Storage StorageConfig  `toml:"storage"`
	Engine  EngineConfig   `toml:"engine"`
	Scoring ScoringConfig  `toml:"scoring"`
	Cache   CacheConfig    `toml:"cache"`
	Breaker BreakerConfig  `toml:"breaker"`
	API     APIConfig      `toml:"api"`
	Client  ClientConfig   `toml:"client"`
	Events  EventsConfig   `toml:"events"`
	Trigger TriggerConfig  `toml:"trigger"`
}

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	Provider    string `toml:"provider,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// EngineConfig holds retrieval and retention settings.
type EngineConfig struct {
	RetentionDays        uint    `toml:"retention_days,omitempty"`
	CompressionThreshold uint    `toml:"compression_threshold,omitempty"`
	RelevanceThreshold   float64 `toml:"relevance_threshold,omitempty"`
	RetrieveTimeoutMs    uint    `toml:"retrieve_timeout_ms,omitempty"`
	RecentWindowHours    uint    `toml:"recent_window_hours,omitempty"`
}

// ScoringConfig holds per-signal relevance weights. The four weights
// must sum to 1.0.
type ScoringConfig struct {
	RecencyWeight     float64 `toml:"recency_weight,omitempty"`
	OverlapWeight     float64 `toml:"overlap_weight,omitempty"`
	OutcomeWeight     float64 `toml:"outcome_weight,omitempty"`
	FileOverlapWeight float64 `toml:"file_overlap_weight,omitempty"`
}

// CacheConfig holds retrieval cache sizing.
type CacheConfig struct {
	Capacity   uint `toml:"capacity,omitempty"`
	TTLSeconds uint `toml:"ttl_seconds,omitempty"`
}

// BreakerConfig holds circuit breaker tuning.
type BreakerConfig struct {
	FailureThreshold       uint `toml:"failure_threshold,omitempty"`
	RecoveryTimeoutSeconds uint `toml:"recovery_timeout_seconds,omitempty"`
	HalfOpenMaxCalls       uint `toml:"half_open_max_calls,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// ClientConfig holds settings for commands that talk to a running
// rewind daemon.
type ClientConfig struct {
	APITarget string `toml:"api_target,omitempty"`
}

// EventsConfig holds event stream publisher settings.
type EventsConfig struct {
	Provider string   `toml:"provider,omitempty"`
	Brokers  []string `toml:"brokers,omitempty"`
	Topic    string   `toml:"topic,omitempty"`
}

// TriggerConfig holds retrieval trigger heuristics.
type TriggerConfig struct {
	Keywords []string `toml:"keywords,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func uintKey(get func(c *Config) uint, set func(c *Config, v uint)) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if get(c) == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(get(c)), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid unsigned integer %q: %w", v, err)
			}
			set(c, uint(n))
			return nil
		},
	}
}

func floatKey(get func(c *Config) float64, set func(c *Config, v float64)) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			return strconv.FormatFloat(get(c), 'g', -1, 64)
		},
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid float %q: %w", v, err)
			}
			set(c, f)
			return nil
		},
	}
}

func listKey(get func(c *Config) []string, set func(c *Config, v []string)) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strings.Join(get(c), ",") },
		set: func(c *Config, v string) error {
			var items []string
			for _, item := range strings.Split(v, ",") {
				if item = strings.TrimSpace(item); item != "" {
					items = append(items, item)
				}
			}
			set(c, items)
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.provider": {
		get: func(c *Config) string { return c.Storage.Provider },
		set: func(c *Config, v string) error { c.Storage.Provider = v; return nil },
	},
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"storage.postgres_dsn": {
		get: func(c *Config) string { return c.Storage.PostgresDSN },
		set: func(c *Config, v string) error { c.Storage.PostgresDSN = v; return nil },
	},
	"engine.retention_days": uintKey(
		func(c *Config) uint { return c.Engine.RetentionDays },
		func(c *Config, v uint) { c.Engine.RetentionDays = v },
	),
	"engine.compression_threshold": uintKey(
		func(c *Config) uint { return c.Engine.CompressionThreshold },
		func(c *Config, v uint) { c.Engine.CompressionThreshold = v },
	),
	"engine.relevance_threshold": floatKey(
		func(c *Config) float64 { return c.Engine.RelevanceThreshold },
		func(c *Config, v float64) { c.Engine.RelevanceThreshold = v },
	),
	"engine.retrieve_timeout_ms": uintKey(
		func(c *Config) uint { return c.Engine.RetrieveTimeoutMs },
		func(c *Config, v uint) { c.Engine.RetrieveTimeoutMs = v },
	),
	"engine.recent_window_hours": uintKey(
		func(c *Config) uint { return c.Engine.RecentWindowHours },
		func(c *Config, v uint) { c.Engine.RecentWindowHours = v },
	),
	"scoring.recency_weight": floatKey(
		func(c *Config) float64 { return c.Scoring.RecencyWeight },
		func(c *Config, v float64) { c.Scoring.RecencyWeight = v },
	),
	"scoring.overlap_weight": floatKey(
		func(c *Config) float64 { return c.Scoring.OverlapWeight },
		func(c *Config, v float64) { c.Scoring.OverlapWeight = v },
	),
	"scoring.outcome_weight": floatKey(
		func(c *Config) float64 { return c.Scoring.OutcomeWeight },
		func(c *Config, v float64) { c.Scoring.OutcomeWeight = v },
	),
	"scoring.file_overlap_weight": floatKey(
		func(c *Config) float64 { return c.Scoring.FileOverlapWeight },
		func(c *Config, v float64) { c.Scoring.FileOverlapWeight = v },
	),
	"cache.capacity": uintKey(
		func(c *Config) uint { return c.Cache.Capacity },
		func(c *Config, v uint) { c.Cache.Capacity = v },
	),
	"cache.ttl_seconds": uintKey(
		func(c *Config) uint { return c.Cache.TTLSeconds },
		func(c *Config, v uint) { c.Cache.TTLSeconds = v },
	),
	"breaker.failure_threshold": uintKey(
		func(c *Config) uint { return c.Breaker.FailureThreshold },
		func(c *Config, v uint) { c.Breaker.FailureThreshold = v },
	),
	"breaker.recovery_timeout_seconds": uintKey(
		func(c *Config) uint { return c.Breaker.RecoveryTimeoutSeconds },
		func(c *Config, v uint) { c.Breaker.RecoveryTimeoutSeconds = v },
	),
	"breaker.half_open_max_calls": uintKey(
		func(c *Config) uint { return c.Breaker.HalfOpenMaxCalls },
		func(c *Config, v uint) { c.Breaker.HalfOpenMaxCalls = v },
	),
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"client.api_target": {
		get: func(c *Config) string { return c.Client.APITarget },
		set: func(c *Config, v string) error { c.Client.APITarget = v; return nil },
	},
	"events.provider": {
		get: func(c *Config) string { return c.Events.Provider },
		set: func(c *Config, v string) error { c.Events.Provider = v; return nil },
	},
	"events.brokers": listKey(
		func(c *Config) []string { return c.Events.Brokers },
		func(c *Config, v []string) { c.Events.Brokers = v },
	),
	"events.topic": {
		get: func(c *Config) string { return c.Events.Topic },
		set: func(c *Config, v string) error { c.Events.Topic = v; return nil },
	},
	"trigger.keywords": listKey(
		func(c *Config) []string { return c.Trigger.Keywords },
		func(c *Config, v []string) { c.Trigger.Keywords = v },
	),
}
