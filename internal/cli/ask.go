package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"passage/internal/usecase"
)

var (
	askQuery     string
	askTopK      int
	askIndex     string
	askJSON      bool
	askNoMMR     bool
	askLowMemory bool
)

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Query an index and get an extractive answer",
	Long: `Rank the index's passages against the query and return the top hits with
an extractive answer and source citations.

Examples:
  passage ask -q "how does authentication work"
  passage ask -q "deployment steps" -k 10 --json
  passage ask -q "error budget" --index upload-1712000000-0001`,
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVarP(&askQuery, "query", "q", "", "question to ask (required)")
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "number of passages (default from config)")
	askCmd.Flags().StringVar(&askIndex, "index", "", "query a specific index instead of the active one")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output as JSON")
	askCmd.Flags().BoolVar(&askNoMMR, "no-mmr", false, "disable MMR diversity re-ranking")
	askCmd.Flags().BoolVar(&askLowMemory, "low-memory", false, "use the two-stage keyword+hash path")
	askCmd.MarkFlagRequired("query")
}

func runAsk(cmd *cobra.Command, args []string) error {
	engine, err := openEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	cfg := GetConfig()
	topK := cfg.Retrieve.TopK
	if askTopK > 0 {
		topK = askTopK
	}

	result, err := engine.Answer(cmd.Context(), tenantID, askIndex, askQuery, usecase.QueryOptions{
		K:               topK,
		UseMMR:          cfg.Retrieve.UseMMR && !askNoMMR,
		MMRLambda:       cfg.Retrieve.MMRLambda,
		CandidateFactor: cfg.Retrieve.CandidateFactor,
		BlockRows:       cfg.Retrieve.BlockRows,
		LowMemory:       askLowMemory || cfg.Memory.LowMemoryQuery,
		PruneTo:         cfg.Memory.PruneTo,
	})
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if askJSON {
		output, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if result.Diagnostic != "" {
		fmt.Println(result.Diagnostic)
		return nil
	}

	fmt.Printf("Answer (%s", result.Mode)
	if result.Degraded {
		fmt.Print(", degraded")
	}
	fmt.Println("):")
	fmt.Println(result.Answer)

	fmt.Printf("\nSources:\n")
	for i, s := range result.Sources {
		fmt.Printf("  [%d] %s#%d  %s\n", i+1, s.Source, s.ChunkID, s.Preview)
	}
	return nil
}
