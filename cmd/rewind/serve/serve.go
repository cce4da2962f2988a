// Package servecmder provides the serve command that runs the rewind
// daemon: the HTTP API, the MCP endpoint, and the configured storage
// and event stream backends.
package servecmder

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/loopworkco/rewind/api"
	"github.com/loopworkco/rewind/api/mcp"
	"github.com/loopworkco/rewind/pkg/breaker"
	"github.com/loopworkco/rewind/pkg/cache"
	"github.com/loopworkco/rewind/pkg/config"
	"github.com/loopworkco/rewind/pkg/engine"
	"github.com/loopworkco/rewind/pkg/eventstream"
	"github.com/loopworkco/rewind/pkg/eventstream/kafka"
	"github.com/loopworkco/rewind/pkg/eventstream/nop"
	"github.com/loopworkco/rewind/pkg/git"
	"github.com/loopworkco/rewind/pkg/logger"
	"github.com/loopworkco/rewind/pkg/scoring"
	"github.com/loopworkco/rewind/pkg/serve"
	"github.com/loopworkco/rewind/pkg/store"
	"github.com/loopworkco/rewind/pkg/store/inmemory"
	"github.com/loopworkco/rewind/pkg/store/postgres"
	"github.com/loopworkco/rewind/pkg/store/sqlite"
	"github.com/loopworkco/rewind/pkg/trigger"
)

type ServeCommander struct {
	apiListen      string
	provider       string
	sqlitePath     string
	postgresDSN    string
	eventsProvider string
	brokers        []string
	topic          string
	debug          bool

	cfg    *config.Config
	logger *zap.Logger
}

const serveLongDesc string = `Run the rewind daemon.

Starts the HTTP API server with the MCP endpoint mounted at /mcp. Context
records are persisted to the configured storage backend and, when an event
stream provider is configured, a stored-context event is published per
record.

Examples:
  rewind serve
  rewind serve --provider memory
  rewind serve --sqlite ./rewind.db --api-listen :9000
  rewind serve --provider postgres --postgres-dsn postgres://localhost/rewind
  rewind serve --events-provider kafka --brokers localhost:9092`

const serveShortDesc string = "Run the rewind daemon"

// serveFlags is the flag registry for the serve command. Names,
// shorthands, and help text live here so other commands reusing a flag
// cannot drift from it.
var serveFlags = config.FlagSet{
	config.FlagAPIListen:       {Name: "api-listen", Shorthand: "a", ViperKey: "api.listen", Description: "Address for the API server to listen on"},
	config.FlagStorageProvider: {Name: "provider", ViperKey: "storage.provider", Description: "Storage provider (sqlite, postgres, memory)"},
	config.FlagSQLite:          {Name: "sqlite", Shorthand: "s", ViperKey: "storage.sqlite_path", Description: "Path to the SQLite database file"},
	config.FlagPostgresDSN:     {Name: "postgres-dsn", ViperKey: "storage.postgres_dsn", Description: "Postgres connection string"},
	config.FlagEventsProvider:  {Name: "events-provider", ViperKey: "events.provider", Description: "Event stream provider (nop, kafka)"},
	config.FlagEventsTopic:     {Name: "events-topic", ViperKey: "events.topic", Description: "Event stream topic for stored-context events"},
}

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
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
			cmder.cfg = cfg

			// Flags win; unset flags fall back to the config file.
			if !cmd.Flags().Changed(serveFlags[config.FlagAPIListen].Name) {
				cmder.apiListen = cfg.API.Listen
			}
			if !cmd.Flags().Changed(serveFlags[config.FlagStorageProvider].Name) {
				cmder.provider = cfg.Storage.Provider
			}
			if !cmd.Flags().Changed(serveFlags[config.FlagSQLite].Name) {
				cmder.sqlitePath = cfg.Storage.SQLitePath
			}
			if !cmd.Flags().Changed(serveFlags[config.FlagPostgresDSN].Name) {
				cmder.postgresDSN = cfg.Storage.PostgresDSN
			}
			if !cmd.Flags().Changed(serveFlags[config.FlagEventsProvider].Name) {
				cmder.eventsProvider = cfg.Events.Provider
			}
			if !cmd.Flags().Changed("brokers") {
				cmder.brokers = cfg.Events.Brokers
			}
			if !cmd.Flags().Changed(serveFlags[config.FlagEventsTopic].Name) {
				cmder.topic = cfg.Events.Topic
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			configDir, _ := cmd.Flags().GetString("config-dir")
			return cmder.run(cmd.Context(), configDir)
		},
	}

	config.AddStringFlag(cmd, serveFlags, config.FlagAPIListen, &cmder.apiListen)
	config.AddStringFlag(cmd, serveFlags, config.FlagStorageProvider, &cmder.provider)
	config.AddStringFlag(cmd, serveFlags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, serveFlags, config.FlagPostgresDSN, &cmder.postgresDSN)
	config.AddStringFlag(cmd, serveFlags, config.FlagEventsProvider, &cmder.eventsProvider)
	config.AddStringFlag(cmd, serveFlags, config.FlagEventsTopic, &cmder.topic)
	cmd.Flags().StringSliceVar(&cmder.brokers, "brokers", nil, "Kafka broker addresses")

	return cmd
}

func (c *ServeCommander) run(ctx context.Context, configDir string) error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	storer, err := c.createStore(ctx)
	if err != nil {
		return err
	}
	defer storer.Close()

	publisher, err := c.createPublisher()
	if err != nil {
		return err
	}
	defer publisher.Close()

	eng, err := engine.New(engine.Options{
		Store:     storer,
		Publisher: publisher,
		Logger:    c.logger,
		Config:    engineConfig(c.cfg),
	})
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}

	analyzer := trigger.NewAnalyzer(c.cfg.Trigger.Keywords)

	apiServer, err := api.NewServer(api.Config{ListenAddr: c.apiListen}, eng, analyzer, c.logger)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	mcpServer, err := mcp.NewServer(mcp.Config{
		Engine:   eng,
		Analyzer: analyzer,
		Logger:   c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}
	apiServer.MountMCP(mcpServer.Handler())

	c.logger.Info("starting api server",
		zap.String("api_addr", c.apiListen),
		zap.String("provider", c.provider),
		zap.String("events_provider", c.eventsProvider),
	)

	manager, err := serve.NewManager(configDir)
	if err != nil {
		return fmt.Errorf("creating state manager: %w", err)
	}
	lock, err := manager.Lock()
	if err != nil {
		return fmt.Errorf("another rewind daemon appears to be running: %w", err)
	}
	defer lock.Release()

	if err := manager.SaveState(&serve.State{
		DaemonPID: os.Getpid(),
		APIURL:    apiURL(c.apiListen),
		Provider:  c.provider,
	}); err != nil {
		return fmt.Errorf("saving daemon state: %w", err)
	}
	defer manager.ClearState()

	errChan := make(chan error, 1)
	go func() {
		if err := apiServer.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		return apiServer.Shutdown()
	}
}

func (c *ServeCommander) createStore(ctx context.Context) (store.Store, error) {
	threshold := int(c.cfg.Engine.CompressionThreshold)

	switch c.provider {
	case "sqlite", "":
		s, err := sqlite.New(c.sqlitePath, sqlite.Config{
			CompressionThreshold: threshold,
			Logger:               c.logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite store: %w", err)
		}
		c.logger.Info("using SQLite storage", zap.String("path", c.sqlitePath))
		return s, nil
	case "postgres":
		if c.postgresDSN == "" {
			return nil, fmt.Errorf("postgres provider requires --postgres-dsn or storage.postgres_dsn")
		}
		s, err := postgres.New(ctx, c.postgresDSN, postgres.Config{
			CompressionThreshold: threshold,
			Logger:               c.logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
		}
		c.logger.Info("using Postgres storage")
		return s, nil
	case "memory":
		c.logger.Info("using in-memory storage")
		return inmemory.New(), nil
	default:
		return nil, fmt.Errorf("unknown storage provider %q (sqlite, postgres, memory)", c.provider)
	}
}

func (c *ServeCommander) createPublisher() (eventstream.Publisher, error) {
	switch c.eventsProvider {
	case "nop", "":
		return nop.NewPublisher(), nil
	case "kafka":
		if len(c.brokers) == 0 {
			return nil, fmt.Errorf("kafka events provider requires --brokers or events.brokers")
		}
		hostname, _ := os.Hostname()
		return kafka.NewPublisher(kafka.Config{
			Brokers: c.brokers,
			Topic:   c.topic,
			Source: eventstream.EventSource{
				Project:   git.RepoName(),
				AgentName: hostname,
			},
		}), nil
	default:
		return nil, fmt.Errorf("unknown events provider %q (nop, kafka)", c.eventsProvider)
	}
}

// engineConfig translates file configuration into engine tuning.
func engineConfig(cfg *config.Config) engine.Config {
	return engine.Config{
		RelevanceThreshold: cfg.Engine.RelevanceThreshold,
		RetrieveTimeout:    time.Duration(cfg.Engine.RetrieveTimeoutMs) * time.Millisecond,
		RetentionDays:      int(cfg.Engine.RetentionDays),
		RecentWindow:       time.Duration(cfg.Engine.RecentWindowHours) * time.Hour,
		Weights: scoring.Weights{
			Recency:     cfg.Scoring.RecencyWeight,
			Overlap:     cfg.Scoring.OverlapWeight,
			Outcome:     cfg.Scoring.OutcomeWeight,
			FileOverlap: cfg.Scoring.FileOverlapWeight,
		},
		Breaker: breaker.Config{
			FailureThreshold: int(cfg.Breaker.FailureThreshold),
			RecoveryTimeout:  time.Duration(cfg.Breaker.RecoveryTimeoutSeconds) * time.Second,
			HalfOpenMaxCalls: int(cfg.Breaker.HalfOpenMaxCalls),
		},
		Cache: cache.Config{
			Capacity: int(cfg.Cache.Capacity),
			TTL:      time.Duration(cfg.Cache.TTLSeconds) * time.Second,
		},
	}
}

func apiURL(listen string) string {
	if len(listen) > 0 && listen[0] == ':' {
		return "http://localhost" + listen
	}
	return "http://" + listen
}
