package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Chunking.Size != 1000 {
		t.Errorf("expected Size=1000, got %d", cfg.Chunking.Size)
	}
	if cfg.Chunking.Overlap != 200 {
		t.Errorf("expected Overlap=200, got %d", cfg.Chunking.Overlap)
	}
	if cfg.Retrieve.MMRLambda != 0.5 {
		t.Errorf("expected MMRLambda=0.5, got %f", cfg.Retrieve.MMRLambda)
	}
	if cfg.Retrieve.CandidateFactor != 8 {
		t.Errorf("expected CandidateFactor=8, got %d", cfg.Retrieve.CandidateFactor)
	}
	if cfg.Storage.Backend != "fs" {
		t.Errorf("expected Backend=fs, got %s", cfg.Storage.Backend)
	}
}

func TestLoad_NonExistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/passage.yaml")
	if err != nil {
		t.Errorf("expected no error for non-existent file, got %v", err)
	}
	if cfg == nil {
		t.Error("expected default config, got nil")
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "passage.yaml")

	content := `
chunking:
  size: 256
retrieve:
  top_k: 10
  mmr_lambda: 1.0
memory:
  skip_embedding: true
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Chunking.Size != 256 {
		t.Errorf("expected Size=256, got %d", cfg.Chunking.Size)
	}
	if cfg.Retrieve.TopK != 10 {
		t.Errorf("expected TopK=10, got %d", cfg.Retrieve.TopK)
	}
	if cfg.Retrieve.MMRLambda != 1.0 {
		t.Errorf("expected MMRLambda=1.0, got %f", cfg.Retrieve.MMRLambda)
	}
	if !cfg.Memory.SkipEmbedding {
		t.Error("expected SkipEmbedding=true")
	}
	// Untouched sections keep their defaults.
	if cfg.Chunking.Overlap != 200 {
		t.Errorf("expected default Overlap=200, got %d", cfg.Chunking.Overlap)
	}
}

func TestLoadFromDir(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "passage.yaml")

	content := `
storage:
  backend: bolt
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Storage.Backend != "bolt" {
		t.Errorf("expected Backend=bolt, got %s", cfg.Storage.Backend)
	}
}

func TestLogLevel(t *testing.T) {
	cfg := DefaultConfig()
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
	}
	for name, want := range cases {
		cfg.Logging.Level = name
		if got := cfg.LogLevel(); got != want {
			t.Errorf("level %q: expected %v, got %v", name, want, got)
		}
	}
}
