package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codedogQBY/ReadAny/pkg/types"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status [document-id...]",
	Short: "Show vectorization progress",
	Long: `Shows the state and chunk progress of documents. Without ids every document
with stored chunks is listed. Progress is derived from the stored chunks, so a
document whose vectorization was interrupted reports idle with partial counts.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output statuses as JSON")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	eng, err := openEngine(cmd, nil)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	ctx := cmd.Context()
	ids := args
	if len(ids) == 0 {
		ids, err = eng.Store.ListDocuments(ctx)
		if err != nil {
			return fmt.Errorf("failed to list documents: %w", err)
		}
	}

	statuses := make([]types.VectorizationStatus, 0, len(ids))
	for _, id := range ids {
		status, err := eng.Indexer.Status(ctx, id)
		if err != nil {
			return fmt.Errorf("%s: %w", id, err)
		}
		statuses = append(statuses, status)
	}

	if statusJSON {
		data, err := json.MarshalIndent(statuses, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal statuses: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	if len(statuses) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No vectorized documents.")
		return nil
	}
	for _, status := range statuses {
		printStatusLine(cmd, status)
	}
	return nil
}

// printStatusLine writes "id  state  processed/total (pct)" plus any error
func printStatusLine(cmd *cobra.Command, status types.VectorizationStatus) {
	fmt.Fprintf(cmd.OutOrStdout(), "%-24s %-10s %d/%d chunks (%.0f%%)\n",
		status.DocumentID, status.State, status.ProcessedChunks, status.TotalChunks, status.Progress()*100)
	if status.Error != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "  error: %s\n", status.Error)
	}
}
