// Package searcher ranks the chunks of one document against a query.
//
// # Search Modes
//
// semantic: cosine similarity between the query embedding and each embedded
// chunk. Chunks without an embedding are not candidates.
//
// keyword: the fraction of distinct query terms present in a chunk. Terms are
// lower-cased letter/digit runs, Han characters count individually. Chunks
// without any matching term are not returned.
//
// hybrid (default): 0.7 * max(cosine, 0) + 0.3 * keyword. Chunks without an
// embedding score keyword * (0.7 + 0.3) so both kinds share one range. When
// the query cannot be embedded every chunk falls back to that keyword score
// and the response is marked Degraded.
//
// # Ordering
//
// Results are sorted by score descending. Equal scores keep document order
// (chapter index, then sequence index), truncated to TopK with 1-based ranks.
//
// # Basic Usage
//
//	s := searcher.NewSearcher(store, client, searcher.Config{})
//	resp, err := s.Search(ctx, searcher.SearchRequest{
//	    DocumentID: "book-1",
//	    Query:      "who hunts the white whale",
//	    TopK:       5,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, r := range resp.Results {
//	    fmt.Printf("%d. %s (%.3f)\n", r.Rank, r.ChapterTitle, r.Score)
//	}
//
// Searches only read committed chunks, so a document that is still being
// vectorized can be searched and returns whatever is stored so far.
package searcher
