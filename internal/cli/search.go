package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/codedogQBY/ReadAny/internal/searcher"
	"github.com/codedogQBY/ReadAny/pkg/types"
)

var (
	searchQuery string
	searchMode  string
	searchTopK  int
	searchJSON  bool
)

var searchCmd = &cobra.Command{
	Use:   "search [document-id]",
	Short: "Search one document",
	Long: `Ranks the passages of a document against a query.

Modes:
  semantic  cosine similarity of embeddings
  keyword   fraction of query terms found in the passage
  hybrid    weighted blend of both (default)

Examples:
  readany search moby-dick -q "why is the whale white"
  readany search moby-dick -q "harpoon" --mode keyword -k 10`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVarP(&searchQuery, "query", "q", "", "search query (required)")
	searchCmd.Flags().StringVarP(&searchMode, "mode", "m", "", "semantic, keyword or hybrid (default from config)")
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 0, "maximum number of passages (default from config)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if strings.TrimSpace(searchQuery) == "" {
		return errors.New("--query is required")
	}

	modeName := searchMode
	if modeName == "" {
		modeName = cfg.Search.DefaultMode
	}
	mode, err := types.ParseSearchMode(modeName)
	if err != nil {
		return err
	}
	topK := searchTopK
	if topK == 0 {
		topK = cfg.Search.DefaultTopK
	}

	eng, err := openEngine(cmd, nil)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	resp, err := eng.Searcher.Search(cmd.Context(), searcher.SearchRequest{
		DocumentID: args[0],
		Query:      searchQuery,
		Mode:       mode,
		TopK:       topK,
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		data, err := json.MarshalIndent(resp.Results, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	if resp.Degraded {
		cmd.PrintErrln("warning: query embedding failed, ranked by keywords only")
	}
	if len(resp.Results) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No results found.")
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Results (%s, %d candidates, %s):\n\n", resp.Mode, resp.Candidates, resp.Duration.Round(time.Microsecond))
	for _, r := range resp.Results {
		fmt.Fprintf(cmd.OutOrStdout(), "[%d] %s #%d (%.3f)\n", r.Rank, r.ChapterTitle, r.SequenceIndex, r.Score)
		if r.StartAnchor != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "    %s .. %s\n", r.StartAnchor, r.EndAnchor)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "    %s\n\n", snippet(r.Content, 200))
	}
	return nil
}

// snippet collapses whitespace and truncates to at most n runes
func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
