package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "List library documents",
	Long: `Lists the documents under the library root together with their stored
chunk counts. Documents that were deleted from the library but still have
stored chunks are listed as orphaned.`,
	Args: cobra.NoArgs,
	RunE: runDocuments,
}

func init() {
	rootCmd.AddCommand(documentsCmd)
}

func runDocuments(cmd *cobra.Command, args []string) error {
	eng, err := openEngine(cmd, nil)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	ctx := cmd.Context()
	library, err := eng.Library.Documents(ctx)
	if err != nil {
		return fmt.Errorf("failed to list library: %w", err)
	}
	stored, err := eng.Store.ListDocuments(ctx)
	if err != nil {
		return fmt.Errorf("failed to list stored documents: %w", err)
	}

	inLibrary := make(map[string]bool, len(library))
	for _, id := range library {
		inLibrary[id] = true
	}
	var orphaned []string
	for _, id := range stored {
		if !inLibrary[id] {
			orphaned = append(orphaned, id)
		}
	}
	sort.Strings(orphaned)

	if len(library) == 0 && len(orphaned) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No documents in %s\n", eng.Library.Root())
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Library: %s\n", eng.Library.Root())
	for _, id := range library {
		total, embedded, err := eng.Store.Count(ctx, id)
		if err != nil {
			return fmt.Errorf("%s: %w", id, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  %-24s %d/%d chunks embedded\n", id, embedded, total)
	}
	for _, id := range orphaned {
		fmt.Fprintf(cmd.OutOrStdout(), "  %-24s orphaned\n", id)
	}
	return nil
}
