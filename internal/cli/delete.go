package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <index>",
	Short: "Delete an index",
	Long: `Remove an index from the tenant's registry and from durable storage.
Deleting the active index promotes the most recently built remaining one.`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	engine, err := openEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	result, err := engine.Delete(tenantID, args[0])
	if err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}

	fmt.Printf("Deleted %s\n", args[0])
	if !result.RemovedFromStorage {
		fmt.Println("Storage removal is deferred until in-flight queries finish.")
	}
	if result.NewActive != "" {
		fmt.Printf("Active index is now %s\n", result.NewActive)
	} else {
		fmt.Println("The tenant has no active index.")
	}
	return nil
}
