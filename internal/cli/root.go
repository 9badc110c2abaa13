package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"passage/config"
	"passage/internal/adapter/embedding"
	"passage/internal/adapter/store"
	"passage/internal/port"
	"passage/internal/usecase"
)

var (
	cfgFile  string
	cfg      *config.Config
	rootDir  string
	tenantID string
	logger   *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "passage",
	Short: "Passage - multi-tenant passage index and retrieval engine",
	Long: `Passage chunks documents into overlapping passages, embeds them, and
answers queries with dense retrieval, MMR diversity re-ranking, and a
lexical fallback when no embeddings are available.

Example usage:
  passage build ./docs                  # Index a folder of documents
  passage ask -q "how does auth work"   # Query the active index
  passage list                          # List this tenant's indices`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel()}))
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./passage.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "root directory (default is current directory)")
	rootCmd.PersistentFlags().StringVarP(&tenantID, "tenant", "t", "default", "tenant whose indices the command operates on")
}

func GetConfig() *config.Config {
	return cfg
}

// openEngine wires the configured store and embedder into an engine and
// restores the persisted registry. The caller owns the returned engine.
func openEngine() (*usecase.Engine, error) {
	dir := cfg.Storage.Dir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(rootDir, dir)
	}

	var st port.IndexStore
	var err error
	switch cfg.Storage.Backend {
	case "bolt":
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		st, err = store.NewBoltStore(filepath.Join(dir, "passage.db"))
	case "fs", "":
		st, err = store.NewFSStore(dir)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Storage.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open index store: %w", err)
	}

	var embedder port.Embedder
	if cfg.Embedding.Enabled && cfg.Embedding.Provider == "openai" {
		embedder, err = embedding.NewOpenAIEmbedder(cfg.Embedding.APIKeyEnv, cfg.Embedding.Model, cfg.Embedding.BaseURL)
		if err != nil {
			// The hash embedder carries the build instead.
			logger.Warn("openai embedder unavailable, using hash embedder", "error", err)
			embedder = nil
		}
	}

	engine := usecase.NewEngine(st, embedder, cfg.Embedding.Dimension, logger)
	if err := engine.Restore(); err != nil {
		engine.Close()
		return nil, fmt.Errorf("failed to restore index registry: %w", err)
	}
	return engine, nil
}
