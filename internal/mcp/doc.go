// Package mcp implements the Model Context Protocol (MCP) server for ReadAny.
//
// The server exposes the retrieval engine to AI assistants as tools:
//   - vectorize_document: chunk and embed a document in the background
//   - cancel_vectorization: stop a running vectorization before its next batch
//   - get_vectorization_status: report state and chunk progress
//   - search_document: rank a document's passages against a query
//   - delete_document: drop a document's stored chunks
//   - list_documents: library documents, vectorized documents and running jobs
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// Stdout carries protocol messages only; logs go to stderr.
//
// # Basic Usage
//
//	readany serve
//
// # Tool: vectorize_document
//
//	Request:
//	{
//	  "name": "vectorize_document",
//	  "arguments": {"document_id": "moby-dick"}
//	}
//
//	Response:
//	{
//	  "document_id": "moby-dick",
//	  "started": true,
//	  "state": "chunking",
//	  "total_chunks": 0,
//	  "processed_chunks": 0,
//	  "progress": "0.00",
//	  "started_at": "2026-03-01T10:15:00Z"
//	}
//
// A second call while the document is still running fails with code -32002.
//
// # Tool: search_document
//
//	Request:
//	{
//	  "name": "search_document",
//	  "arguments": {
//	    "document_id": "moby-dick",
//	    "query": "the whiteness of the whale",
//	    "mode": "hybrid",
//	    "top_k": 5
//	  }
//	}
//
//	Response:
//	{
//	  "document_id": "moby-dick",
//	  "mode": "hybrid",
//	  "degraded": false,
//	  "candidates": 412,
//	  "duration_ms": 3,
//	  "results": [
//	    {
//	      "rank": 1,
//	      "score": 0.81,
//	      "chunk_id": "5b0e...",
//	      "chapter_title": "The Whiteness of the Whale",
//	      "chapter_index": 41,
//	      "sequence_index": 2,
//	      "start_anchor": "ch042.xhtml#p3",
//	      "end_anchor": "ch042.xhtml#p5",
//	      "content": "..."
//	    }
//	  ]
//	}
//
// A document that was never vectorized returns an empty result list.
//
// # Error Codes
//
//   - -32602: invalid parameters (missing document_id, bad mode, top_k out of range)
//   - -32603: internal error
//   - -32001: document unreadable
//   - -32002: vectorization already running for the document
//   - -32003: embedding provider unavailable or rate limited
//   - -32004: empty query
package mcp
