package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var listJSON bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the tenant's indices",
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVar(&listJSON, "json", false, "output as JSON")
}

func runList(cmd *cobra.Command, args []string) error {
	engine, err := openEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	result := engine.List(tenantID)

	if listJSON {
		output, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(result.Indices) == 0 {
		fmt.Printf("Tenant %q has no indices. Run 'passage build' first.\n", tenantID)
		return nil
	}

	fmt.Printf("Indices for tenant %q:\n", tenantID)
	for _, idx := range result.Indices {
		marker := " "
		if idx.Name == result.Active {
			marker = "*"
		}
		embeddings := "lexical"
		if idx.HasEmbeddings {
			embeddings = "dense"
		}
		fmt.Printf("  %s %-36s %6d passages  %s\n", marker, idx.Name, idx.ChunkCount, embeddings)
	}
	return nil
}
