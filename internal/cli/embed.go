package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/codedogQBY/ReadAny/internal/embedder"
)

var embedCmd = &cobra.Command{
	Use:   "embed [text...]",
	Short: "Check the configured embedding provider",
	Long: `Embeds each argument with the configured provider and prints the provider,
model, dimension and latency. Useful to verify API keys and base URLs before
vectorizing a library.

Example:
  READANY_EMBEDDING_PROVIDER=ollama readany embed "call me Ishmael"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEmbed,
}

func init() {
	rootCmd.AddCommand(embedCmd)
}

func runEmbed(cmd *cobra.Command, args []string) error {
	client, err := embedder.New(cfg.EmbedderConfig())
	if err != nil {
		return fmt.Errorf("failed to initialize embedder: %w", err)
	}
	defer func() { _ = client.Close() }()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Provider: %s\n", client.Provider())
	fmt.Fprintf(out, "Model: %s\n", client.Model())

	start := time.Now()
	vectors, err := client.EmbedBatch(cmd.Context(), args)
	if err != nil {
		return fmt.Errorf("embedding failed: %w", err)
	}
	if len(vectors) != len(args) {
		return errors.New("provider returned a different number of vectors")
	}

	fmt.Fprintf(out, "Dimension: %d\n", client.Dimension())
	fmt.Fprintf(out, "Latency: %s\n", time.Since(start).Round(time.Millisecond))
	for i, v := range vectors {
		fmt.Fprintf(out, "[%d] %q -> %s\n", i+1, snippet(args[i], 40), previewVector(v, 4))
	}
	return nil
}

func previewVector(v []float32, n int) string {
	if len(v) < n {
		n = len(v)
	}
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = fmt.Sprintf("%.4f", v[i])
	}
	suffix := ""
	if len(v) > n {
		suffix = ", ..."
	}
	return "[" + strings.Join(parts, ", ") + suffix + "]"
}
