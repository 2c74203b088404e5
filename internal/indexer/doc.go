// Package indexer coordinates vectorization runs for documents.
//
// A run reads a document's chapters, chunks them, persists the chunks and then
// embeds them batch by batch, storing every batch as soon as it returns.
//
// # Basic Usage
//
//	idx, err := indexer.New(store, docs, client, indexer.Config{
//	    Chunker:   chunker.DefaultConfig(),
//	    BatchSize: 16,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer idx.Close()
//
//	if err := idx.Start(ctx, "book-1"); err != nil {
//	    log.Fatal(err)
//	}
//	status, _ := idx.Wait(ctx, "book-1")
//	fmt.Printf("%s: %d/%d chunks\n", status.State, status.ProcessedChunks, status.TotalChunks)
//
// # States
//
//	idle -> chunking -> embedding -> complete
//	                 \-> failed
//	                 \-> cancelled
//
// Failed and cancelled runs keep every chunk and embedding stored so far.
//
// # Resuming
//
// Each run fingerprints its input (chunk window plus chapter content). When the
// stored fingerprint and chunk count match, the stored chunk set is reused and
// only chunks without an embedding are sent to the embedder. Any difference
// replaces the stored chunks.
//
// # Concurrency
//
// At most one run per document is active; a second Start fails immediately
// with types.ErrAlreadyRunning. Different documents vectorize concurrently.
// Batches within a run are sequential and Cancel takes effect between batches.
package indexer
