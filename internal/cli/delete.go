package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete [document-id...]",
	Short: "Remove stored chunks of documents",
	Long:  `Deletes every chunk, embedding and fingerprint stored for the given documents.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	eng, err := openEngine(cmd, nil)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	for _, id := range args {
		if err := eng.Indexer.DeleteDocument(cmd.Context(), id); err != nil {
			return fmt.Errorf("%s: %w", id, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
	}
	return nil
}
