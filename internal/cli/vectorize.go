package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/codedogQBY/ReadAny/internal/indexer"
	"github.com/codedogQBY/ReadAny/pkg/types"
)

var (
	vectorizeAll      bool
	vectorizeJobs     int
	vectorizeProgress bool
)

var vectorizeCmd = &cobra.Command{
	Use:   "vectorize [document-id...]",
	Short: "Chunk and embed documents",
	Long: `Chunks the chapters of each document and embeds every chunk. Documents run
concurrently; chunks of one document are embedded batch by batch.

Unchanged documents resume from the last embedded chunk. Ctrl-C cancels the
running documents after their current batch and keeps what was embedded.

Examples:
  readany vectorize moby-dick
  readany vectorize --all --jobs 4`,
	RunE: runVectorize,
}

func init() {
	vectorizeCmd.Flags().BoolVar(&vectorizeAll, "all", false, "vectorize every document in the library")
	vectorizeCmd.Flags().IntVarP(&vectorizeJobs, "jobs", "j", 2, "documents vectorized at the same time")
	vectorizeCmd.Flags().BoolVar(&vectorizeProgress, "progress", true, "show a progress bar on stderr")
	rootCmd.AddCommand(vectorizeCmd)
}

// progressTracker folds per-document progress into one bar over all chunks.
// The bar is created once the first chunk total is known.
type progressTracker struct {
	mu       sync.Mutex
	cmd      *cobra.Command
	enabled  bool
	bar      *progressbar.ProgressBar
	max      int
	statuses map[string]types.VectorizationStatus
}

func newProgressTracker(cmd *cobra.Command, enabled bool) *progressTracker {
	return &progressTracker{
		cmd:      cmd,
		enabled:  enabled,
		statuses: make(map[string]types.VectorizationStatus),
	}
}

func (t *progressTracker) update(status types.VectorizationStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.statuses[status.DocumentID] = status
	if !t.enabled {
		return
	}

	var total, processed int
	for _, s := range t.statuses {
		total += s.TotalChunks
		processed += s.ProcessedChunks
	}
	if total == 0 {
		return
	}

	if t.bar == nil {
		t.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(t.cmd.ErrOrStderr()),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionShowBytes(false),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionSetDescription("[cyan]Embedding[reset]"),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[green]=[reset]",
				SaucerHead:    "[green]>[reset]",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		)
		t.max = total
	} else if total != t.max {
		t.bar.ChangeMax(total)
		t.max = total
	}
	_ = t.bar.Set(processed)
}

func (t *progressTracker) finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.bar != nil {
		_ = t.bar.Finish()
	}
}

func runVectorize(cmd *cobra.Command, args []string) error {
	tracker := newProgressTracker(cmd, vectorizeProgress)
	eng, err := openEngine(cmd, tracker.update)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	ids := args
	if vectorizeAll {
		ids, err = eng.Library.Documents(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list library: %w", err)
		}
	}
	if len(ids) == 0 {
		return errors.New("no documents given (pass ids or --all)")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	results := make([]types.VectorizationStatus, len(ids))
	var g errgroup.Group
	if vectorizeJobs > 0 {
		g.SetLimit(vectorizeJobs)
	}
	for i, id := range ids {
		g.Go(func() error {
			status, err := vectorizeOne(ctx, eng.Indexer, id)
			results[i] = status
			return err
		})
	}
	runErr := g.Wait()
	tracker.finish()

	sort.SliceStable(results, func(i, j int) bool { return results[i].DocumentID < results[j].DocumentID })
	for _, status := range results {
		printStatusLine(cmd, status)
	}
	return runErr
}

// vectorizeOne runs one document to a terminal state. Cancelling ctx cancels
// the run and still waits for it to stop.
func vectorizeOne(ctx context.Context, idx *indexer.Indexer, documentID string) (types.VectorizationStatus, error) {
	if err := idx.Start(ctx, documentID); err != nil {
		return types.VectorizationStatus{DocumentID: documentID, State: types.StateFailed, Error: err.Error()}, fmt.Errorf("%s: %w", documentID, err)
	}

	status, err := idx.Wait(ctx, documentID)
	if err != nil {
		idx.Cancel(documentID)
		status, err = idx.Wait(context.Background(), documentID)
		if err != nil {
			return status, err
		}
	}

	switch status.State {
	case types.StateComplete:
		return status, nil
	case types.StateCancelled:
		return status, fmt.Errorf("%s: cancelled", documentID)
	default:
		return status, fmt.Errorf("%s: %s", documentID, status.Error)
	}
}
