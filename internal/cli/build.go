package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"passage/internal/adapter/fs"
	"passage/internal/usecase"
)

var (
	buildPrefix        string
	buildSkipEmbedding bool
)

var buildCmd = &cobra.Command{
	Use:   "build [path]",
	Short: "Build an index from a folder of documents",
	Long: `Chunk every matching document under the given path into overlapping
passages, embed them, and publish the result as the tenant's active index.

Examples:
  passage build ./docs
  passage build ./docs --prefix handbook
  passage build ./docs --skip-embedding   # lexical-only index`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
	buildCmd.Flags().StringVar(&buildPrefix, "prefix", "", "index name prefix (default from config)")
	buildCmd.Flags().BoolVar(&buildSkipEmbedding, "skip-embedding", false, "build without an embedding matrix")
}

func runBuild(cmd *cobra.Command, args []string) error {
	path := rootDir
	if len(args) > 0 {
		var err error
		path, err = filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	cfg := GetConfig()

	walker := fs.NewWalker(cfg.Chunking.Includes, cfg.Chunking.Excludes)
	fmt.Printf("Scanning %s...\n", path)
	docs, err := walker.Walk(path)
	if err != nil {
		return fmt.Errorf("failed to read documents: %w", err)
	}
	if len(docs) == 0 {
		fmt.Println("No matching documents found.")
		return nil
	}

	engine, err := openEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	prefix := buildPrefix
	if prefix == "" {
		prefix = cfg.Chunking.NamePrefix
	}

	var bar *progressbar.ProgressBar
	progress := func(done, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowCount(),
				progressbar.OptionSetWidth(40),
				progressbar.OptionSetDescription("[cyan]Embedding[reset]"),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
		}
		bar.Set(done)
	}

	result, err := engine.Build(cmd.Context(), tenantID, docs, usecase.BuildOptions{
		ChunkSize:    cfg.Chunking.Size,
		ChunkOverlap: cfg.Chunking.Overlap,
		NamePrefix:   prefix,
		Budget: usecase.MemoryBudget{
			MaxPassageChars: cfg.Memory.MaxPassageChars,
			MaxEmbedBytes:   cfg.Memory.MaxEmbedBytes,
			MaxPassages:     cfg.Memory.MaxPassages,
			PreviewChars:    cfg.Memory.PreviewChars,
			SkipEmbedding:   buildSkipEmbedding || cfg.Memory.SkipEmbedding,
		},
		Progress: progress,
	})
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	if result.ChunkCount == 0 {
		fmt.Println("No ingestible text found; nothing was built.")
		return nil
	}

	fmt.Printf("\nBuild complete:\n")
	fmt.Printf("  Index:       %s\n", result.IndexName)
	fmt.Printf("  Documents:   %d\n", result.DocCount)
	fmt.Printf("  Passages:    %d", result.Inserted)
	if result.Attempted > result.Inserted {
		fmt.Printf(" (of %d, capped by memory budget)", result.Attempted)
	}
	fmt.Println()
	fmt.Printf("  Embeddings:  %s\n", result.Backend)

	if result.EmbedderFellBack {
		fmt.Println("\nWarning: configured embedder failed; hash embeddings were used instead.")
	}
	if result.EmbeddingSkipped && !buildSkipEmbedding && !cfg.Memory.SkipEmbedding {
		fmt.Println("\nWarning: no embeddings could be produced; the index ranks lexically.")
	}
	if result.PersistFailed {
		fmt.Println("\nWarning: the index could not be persisted and will be lost when this process exits.")
	}
	return nil
}
