// Package types provides shared type definitions for the ReadAny retrieval engine.
//
// This package defines the domain types passed between the chunker, the
// vectorization coordinator, the vector store and the retrieval engine.
//
// # Core Types
//
// Chapter is one ordered section of a document, as produced by a reader:
//
//	ch := types.Chapter{
//	    Index: 0,
//	    Title: "Chapter 1",
//	    Text:  "<p id=\"p1\">It was a bright cold day in April...</p>",
//	    HTML:  true,
//	}
//
// Chunk is a contiguous, addressable span of a chapter. Its ID is derived from
// the document and position, so re-chunking unchanged content yields the same
// identifiers:
//
//	id := types.ChunkID("book-42", 3, 0)
//
// An embedding, when present, always has the dimension of the configured
// embedding model. A nil Embedding means the chunk has not been vectorized yet.
//
// # Status
//
// VectorizationStatus reports the state machine of a document run:
//
//	idle -> chunking -> embedding -> complete
//	          |            |
//	          +-> failed   +-> failed
//	          +-> cancelled+-> cancelled
//
// # Errors
//
// All engine errors are sentinels declared in errors.go and are matched with
// errors.Is after wrapping.
package types
