// Package servecmder provides the serve command for running the engram API
// server with its full engine wiring.
package servecmder

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/coldbrewlabs/engram/api"
	"github.com/coldbrewlabs/engram/pkg/config"
	"github.com/coldbrewlabs/engram/pkg/dotdir"
	"github.com/coldbrewlabs/engram/pkg/embeddings"
	geminiembed "github.com/coldbrewlabs/engram/pkg/embeddings/gemini"
	"github.com/coldbrewlabs/engram/pkg/engine"
	"github.com/coldbrewlabs/engram/pkg/eventstream"
	kafkastream "github.com/coldbrewlabs/engram/pkg/eventstream/kafka"
	"github.com/coldbrewlabs/engram/pkg/eventstream/nop"
	"github.com/coldbrewlabs/engram/pkg/llm"
	"github.com/coldbrewlabs/engram/pkg/llm/gemini"
	"github.com/coldbrewlabs/engram/pkg/logger"
	"github.com/coldbrewlabs/engram/pkg/storage"
	"github.com/coldbrewlabs/engram/pkg/storage/inmemory"
	"github.com/coldbrewlabs/engram/pkg/storage/postgres"
	"github.com/coldbrewlabs/engram/pkg/storage/sqlite"
)

type ServeCommander struct {
	v      *viper.Viper
	debug  bool
	logger *zap.Logger
}

const serveLongDesc string = `Run the engram API server.

The server exposes streaming generation, memory inspection, and session
consolidation over HTTP. Storage, model, and event stream settings come
from config.toml in the .engram/ directory, ENGRAM_* environment
variables, or flags.

Examples:
  engram serve
  engram serve --listen :8000 --storage-driver sqlite
  ENGRAM_MODEL_API_KEY=... engram serve --storage-driver postgres \
    --storage-dsn postgres://localhost/engram`

const serveShortDesc string = "Run the engram API server"

var serveFlags = config.FlagSet{
	config.FlagListen: {
		Name: "listen", Shorthand: "l",
		ViperKey:    "api.listen",
		Description: "Address for the API server to listen on",
	},
	config.FlagStorageDriver: {
		Name:        "storage-driver",
		ViperKey:    "storage.driver",
		Description: "Storage driver (postgres, sqlite, memory)",
	},
	config.FlagStorageDSN: {
		Name:        "storage-dsn",
		ViperKey:    "storage.dsn",
		Description: "Postgres connection string",
	},
	config.FlagSQLite: {
		Name: "sqlite", Shorthand: "s",
		ViperKey:    "storage.sqlite_path",
		Description: "Path to the SQLite database (default: .engram/engram.db)",
	},
	config.FlagAPIKey: {
		Name:        "api-key",
		ViperKey:    "model.api_key",
		Description: "Google AI API key",
	},
	config.FlagGenModel: {
		Name:        "generation-model",
		ViperKey:    "model.generation",
		Description: "Generation model name",
	},
	config.FlagEmbedModel: {
		Name:        "embedding-model",
		ViperKey:    "model.embedding",
		Description: "Embedding model name",
	},
	config.FlagEmbedDims: {
		Name:        "embedding-dimensions",
		ViperKey:    "embedding.dimensions",
		Description: "Fixed logical width of stored embedding vectors",
	},
	config.FlagBrokers: {
		Name:        "brokers",
		ViperKey:    "eventstream.brokers",
		Description: "Kafka bootstrap brokers (comma separated)",
	},
	config.FlagTopic: {
		Name:        "topic",
		ViperKey:    "eventstream.topic",
		Description: "Kafka topic for turn events",
	},
}

var serveFlagKeys = []string{
	config.FlagListen,
	config.FlagStorageDriver,
	config.FlagStorageDSN,
	config.FlagSQLite,
	config.FlagAPIKey,
	config.FlagGenModel,
	config.FlagEmbedModel,
	config.FlagEmbedDims,
	config.FlagBrokers,
	config.FlagTopic,
}

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	var flagTargets struct {
		listen, driver, dsn, sqlitePath string
		apiKey, genModel, embedModel    string
		brokers, topic                  string
		embedDims                       uint
	}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}

			config.BindRegisteredFlags(v, cmd, serveFlags, serveFlagKeys)
			cmder.v = v
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, serveFlags, config.FlagListen, &flagTargets.listen)
	config.AddStringFlag(cmd, serveFlags, config.FlagStorageDriver, &flagTargets.driver)
	config.AddStringFlag(cmd, serveFlags, config.FlagStorageDSN, &flagTargets.dsn)
	config.AddStringFlag(cmd, serveFlags, config.FlagSQLite, &flagTargets.sqlitePath)
	config.AddStringFlag(cmd, serveFlags, config.FlagAPIKey, &flagTargets.apiKey)
	config.AddStringFlag(cmd, serveFlags, config.FlagGenModel, &flagTargets.genModel)
	config.AddStringFlag(cmd, serveFlags, config.FlagEmbedModel, &flagTargets.embedModel)
	config.AddUintFlag(cmd, serveFlags, config.FlagEmbedDims, &flagTargets.embedDims)
	config.AddStringFlag(cmd, serveFlags, config.FlagBrokers, &flagTargets.brokers)
	config.AddStringFlag(cmd, serveFlags, config.FlagTopic, &flagTargets.topic)

	return cmd
}

func (c *ServeCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	ctx := context.Background()

	driver, err := c.newStorageDriver(ctx)
	if err != nil {
		return err
	}
	defer driver.Close()

	generator, err := c.newGenerator(ctx)
	if err != nil {
		return err
	}
	defer generator.Close()

	gateway, err := c.newEmbeddingGateway(ctx)
	if err != nil {
		return err
	}
	defer gateway.Close()

	publisher, err := c.newPublisher()
	if err != nil {
		return err
	}
	defer publisher.Close()

	eng, err := engine.New(engine.Options{
		Store:         driver,
		Generator:     generator,
		Embedder:      gateway,
		Publisher:     publisher,
		Logger:        c.logger,
		HistoryWindow: int(c.v.GetUint("memory.history_window")),
		MemoryWindow:  int(c.v.GetUint("memory.memory_window")),
		DomainWindow:  int(c.v.GetUint("memory.domain_window")),
		CallTimeout:   time.Duration(c.v.GetUint("model.timeout_seconds")) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}

	server := api.NewServer(api.Config{
		ListenAddr: c.v.GetString("api.listen"),
	}, eng, c.logger)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		return server.Shutdown()
	}
}

func (c *ServeCommander) newStorageDriver(ctx context.Context) (storage.Driver, error) {
	switch driver := c.v.GetString("storage.driver"); driver {
	case "postgres":
		dsn := c.v.GetString("storage.dsn")
		if dsn == "" {
			return nil, fmt.Errorf("storage.dsn is required for the postgres driver")
		}
		store, err := postgres.NewDriver(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("creating postgres driver: %w", err)
		}
		c.logger.Info("using Postgres storage")
		return store, nil

	case "sqlite":
		path := c.v.GetString("storage.sqlite_path")
		if path == "" {
			target, err := dotdir.NewManager().Target("")
			if err != nil {
				return nil, fmt.Errorf("resolving sqlite path: %w", err)
			}
			path = filepath.Join(target, "engram.db")
		}
		store, err := sqlite.NewDriver(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("creating sqlite driver: %w", err)
		}
		c.logger.Info("using SQLite storage", zap.String("path", path))
		return store, nil

	case "memory":
		c.logger.Info("using in-memory storage")
		return inmemory.NewDriver(), nil

	default:
		return nil, fmt.Errorf("unknown storage driver: %q (available: postgres, sqlite, memory)", driver)
	}
}

func (c *ServeCommander) newGenerator(ctx context.Context) (llm.Client, error) {
	client, err := gemini.NewClient(ctx, gemini.Config{
		APIKey: c.v.GetString("model.api_key"),
		Model:  c.v.GetString("model.generation"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating generation client: %w", err)
	}
	return client, nil
}

func (c *ServeCommander) newEmbeddingGateway(ctx context.Context) (*embeddings.Gateway, error) {
	embedder, err := geminiembed.NewEmbedder(ctx, geminiembed.Config{
		APIKey: c.v.GetString("model.api_key"),
		Model:  c.v.GetString("model.embedding"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	width := int(c.v.GetUint("embedding.dimensions"))
	return embeddings.NewGateway(embedder, width, c.logger), nil
}

func (c *ServeCommander) newPublisher() (eventstream.Publisher, error) {
	if !c.v.GetBool("eventstream.enabled") {
		return nop.NewPublisher(), nil
	}

	brokers := strings.Split(c.v.GetString("eventstream.brokers"), ",")
	for i := range brokers {
		brokers[i] = strings.TrimSpace(brokers[i])
	}

	publisher, err := kafkastream.NewPublisher(kafkastream.Config{
		Brokers: brokers,
		Topic:   c.v.GetString("eventstream.topic"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating kafka publisher: %w", err)
	}

	c.logger.Info("publishing turn events",
		zap.Strings("brokers", brokers),
		zap.String("topic", c.v.GetString("eventstream.topic")),
	)
	return publisher, nil
}
