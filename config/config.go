package config

import (
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the passage engine. Every tunable the
// engine reads is a named field here; nothing is picked up from ambient
// global state.
type Config struct {
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Retrieve  RetrieveConfig  `yaml:"retrieve"`
	Memory    MemoryConfig    `yaml:"memory"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ChunkingConfig holds passage splitting configuration.
type ChunkingConfig struct {
	// Size is the window length in characters; <=0 keeps whole documents.
	Size int `yaml:"size"`
	// Overlap is the number of characters shared between adjacent windows.
	Overlap int `yaml:"overlap"`
	// NamePrefix prefixes generated index names.
	NamePrefix string `yaml:"name_prefix"`
	// Includes/Excludes filter folder ingestion by glob.
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Provider  string `yaml:"provider"` // "openai", "ollama", "hash"
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env"`
	BaseURL   string `yaml:"base_url"`
	// Dimension applies to the hash embedder; API models fix their own.
	Dimension int `yaml:"dimension"`
}

// RetrieveConfig holds retrieval configuration.
type RetrieveConfig struct {
	TopK int `yaml:"top_k"`
	// MMR trades relevance against redundancy; lambda=1 is pure relevance.
	UseMMR    bool    `yaml:"use_mmr"`
	MMRLambda float64 `yaml:"mmr_lambda"`
	// CandidateFactor scales the pruning window: max(k, factor*k) rows
	// survive the dense scan before re-ranking.
	CandidateFactor int `yaml:"candidate_factor"`
	// BlockRows bounds how many matrix rows a scan holds at once.
	BlockRows int `yaml:"block_rows"`
}

// MemoryConfig is the memory budget policy applied at build and query time.
type MemoryConfig struct {
	// MaxPassageChars truncates each passage's embedding-time copy; the
	// full text is always what gets persisted.
	MaxPassageChars int `yaml:"max_passage_chars"`
	// MaxEmbedBytes caps the total bytes handed to the embedder.
	MaxEmbedBytes int `yaml:"max_embed_bytes"`
	// MaxPassages caps how many passages one index may hold.
	MaxPassages int `yaml:"max_passages"`
	// PreviewChars shrinks in-memory working text after embedding; 0
	// disables the reduction. Full text stays on disk.
	PreviewChars int `yaml:"preview_chars"`
	// SkipEmbedding suppresses the matrix entirely; the index then ranks
	// lexically forever.
	SkipEmbedding bool `yaml:"skip_embedding"`
	// LowMemoryQuery switches queries to the two-stage lexical+hash path.
	LowMemoryQuery bool `yaml:"low_memory_query"`
	// PruneTo bounds the lexical candidate set in low-memory queries.
	PruneTo int `yaml:"prune_to"`
}

// StorageConfig selects and locates the persistence backend.
type StorageConfig struct {
	Backend string `yaml:"backend"` // "fs" or "bolt"
	Dir     string `yaml:"dir"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Chunking: ChunkingConfig{
			Size:       1000,
			Overlap:    200,
			NamePrefix: "upload",
			Includes:   []string{"**/*.txt", "**/*.md", "**/*.csv"},
			Excludes:   []string{"**/.git/**", "**/node_modules/**"},
		},
		Embedding: EmbeddingConfig{
			Enabled:   false,
			Provider:  "hash",
			Model:     "text-embedding-3-small",
			APIKeyEnv: "OPENAI_API_KEY",
			Dimension: 384,
		},
		Retrieve: RetrieveConfig{
			TopK:            5,
			UseMMR:          true,
			MMRLambda:       0.5,
			CandidateFactor: 8,
			BlockRows:       1024,
		},
		Memory: MemoryConfig{
			MaxPassageChars: 2000,
			MaxEmbedBytes:   8 << 20,
			MaxPassages:     50000,
			PreviewChars:    0,
			PruneTo:         200,
		},
		Storage: StorageConfig{
			Backend: "fs",
			Dir:     ".passage",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file, falling back to defaults when
// the file does not exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for passage.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "passage.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}
	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// LogLevel maps the configured level name onto slog.
func (c *Config) LogLevel() slog.Level {
	switch c.Logging.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
