package config

const (
	defaultStorageProvider = "sqlite"
	defaultSQLitePath      = "rewind.db"

	defaultRetentionDays        = 30
	defaultCompressionThreshold = 1024
	defaultRelevanceThreshold   = 0.3
	defaultRetrieveTimeoutMs    = 500
	defaultRecentWindowHours    = 24

	defaultRecencyWeight     = 0.3
	defaultOverlapWeight     = 0.4
	defaultOutcomeWeight     = 0.2
	defaultFileOverlapWeight = 0.1

	defaultCacheCapacity   = 100
	defaultCacheTTLSeconds = 300

	defaultFailureThreshold       = 5
	defaultRecoveryTimeoutSeconds = 30
	defaultHalfOpenMaxCalls       = 1

	defaultAPIListen = ":8092"

	defaultClientAPITarget = "http://localhost:8092"

	defaultEventsProvider = "nop"
	defaultEventsTopic    = "rewind.contexts"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Provider:   defaultStorageProvider,
			SQLitePath: defaultSQLitePath,
		},
		Engine: EngineConfig{
			RetentionDays:        defaultRetentionDays,
			CompressionThreshold: defaultCompressionThreshold,
			RelevanceThreshold:   defaultRelevanceThreshold,
			RetrieveTimeoutMs:    defaultRetrieveTimeoutMs,
			RecentWindowHours:    defaultRecentWindowHours,
		},
		Scoring: ScoringConfig{
			RecencyWeight:     defaultRecencyWeight,
			OverlapWeight:     defaultOverlapWeight,
			OutcomeWeight:     defaultOutcomeWeight,
			FileOverlapWeight: defaultFileOverlapWeight,
		},
		Cache: CacheConfig{
			Capacity:   defaultCacheCapacity,
			TTLSeconds: defaultCacheTTLSeconds,
		},
		Breaker: BreakerConfig{
			FailureThreshold:       defaultFailureThreshold,
			RecoveryTimeoutSeconds: defaultRecoveryTimeoutSeconds,
			HalfOpenMaxCalls:       defaultHalfOpenMaxCalls,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Client: ClientConfig{
			APITarget: defaultClientAPITarget,
		},
		Events: EventsConfig{
			Provider: defaultEventsProvider,
			Topic:    defaultEventsTopic,
		},
	}
}
