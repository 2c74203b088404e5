package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/codedogQBY/ReadAny/internal/searcher"
	"github.com/codedogQBY/ReadAny/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams        = -32602 // Invalid method parameters
	ErrorCodeInternalError        = -32603 // Internal JSON-RPC error
	ErrorCodeDocumentUnreadable   = -32001 // The reader cannot produce the document's chapters
	ErrorCodeAlreadyRunning       = -32002 // Another vectorization of the document is running
	ErrorCodeEmbeddingUnavailable = -32003 // The embedding provider failed or is rate limited
	ErrorCodeEmptyQuery           = -32004 // Query parameter is empty
)

// MaxTopK bounds the top_k parameter of search_document
const MaxTopK = 100

// handleVectorizeDocument handles the vectorize_document tool invocation
func (s *Server) handleVectorizeDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	documentID, err := requireDocumentID(args)
	if err != nil {
		return nil, err
	}

	if err := s.indexer.Start(ctx, documentID); err != nil {
		return nil, toMCPError(err, "vectorization failed to start")
	}

	status, err := s.indexer.Status(ctx, documentID)
	if err != nil {
		return nil, toMCPError(err, "failed to get status")
	}

	response := statusResponse(status)
	response["started"] = true
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleCancelVectorization handles the cancel_vectorization tool invocation
func (s *Server) handleCancelVectorization(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	documentID, err := requireDocumentID(args)
	if err != nil {
		return nil, err
	}

	before, err := s.indexer.Status(ctx, documentID)
	if err != nil {
		return nil, toMCPError(err, "failed to get status")
	}
	s.indexer.Cancel(documentID)

	response := statusResponse(before)
	response["cancel_requested"] = before.State.Active()
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetVectorizationStatus handles the get_vectorization_status tool invocation
func (s *Server) handleGetVectorizationStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	documentID, err := requireDocumentID(args)
	if err != nil {
		return nil, err
	}

	status, err := s.indexer.Status(ctx, documentID)
	if err != nil {
		return nil, toMCPError(err, "failed to get status")
	}

	return mcp.NewToolResultText(formatJSON(statusResponse(status))), nil
}

// handleSearchDocument handles the search_document tool invocation
func (s *Server) handleSearchDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	documentID, err := requireDocumentID(args)
	if err != nil {
		return nil, err
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	topK := getIntDefault(args, "top_k", s.search.DefaultTopK)
	if topK < 1 || topK > MaxTopK {
		return nil, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("top_k must be between 1 and %d", MaxTopK), map[string]interface{}{
			"param": "top_k",
			"value": topK,
		})
	}

	mode, err := types.ParseSearchMode(getStringDefault(args, "mode", s.search.DefaultMode))
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid mode", map[string]interface{}{
			"param":   "mode",
			"value":   args["mode"],
			"allowed": []string{"semantic", "keyword", "hybrid"},
		})
	}

	resp, err := s.searcher.Search(ctx, searcher.SearchRequest{
		DocumentID: documentID,
		Query:      query,
		Mode:       mode,
		TopK:       topK,
	})
	if err != nil {
		return nil, toMCPError(err, "search failed")
	}

	results := make([]map[string]interface{}, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, map[string]interface{}{
			"rank":           r.Rank,
			"score":          r.Score,
			"chunk_id":       r.ChunkID,
			"chapter_title":  r.ChapterTitle,
			"chapter_index":  r.ChapterIndex,
			"sequence_index": r.SequenceIndex,
			"start_anchor":   r.StartAnchor,
			"end_anchor":     r.EndAnchor,
			"content":        r.Content,
		})
	}

	response := map[string]interface{}{
		"document_id": documentID,
		"query":       query,
		"mode":        string(resp.Mode),
		"candidates":  resp.Candidates,
		"degraded":    resp.Degraded,
		"duration_ms": resp.Duration.Milliseconds(),
		"results":     results,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleDeleteDocument handles the delete_document tool invocation
func (s *Server) handleDeleteDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	documentID, err := requireDocumentID(args)
	if err != nil {
		return nil, err
	}

	if err := s.indexer.DeleteDocument(ctx, documentID); err != nil {
		return nil, toMCPError(err, "delete failed")
	}

	response := map[string]interface{}{
		"document_id": documentID,
		"deleted":     true,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleListDocuments handles the list_documents tool invocation
func (s *Server) handleListDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stored, err := s.store.ListDocuments(ctx)
	if err != nil {
		return nil, toMCPError(err, "failed to list stored documents")
	}
	if stored == nil {
		stored = []string{}
	}

	response := map[string]interface{}{
		"vectorized": stored,
		"running":    nonNil(s.indexer.Running()),
	}
	if s.library != nil {
		library, err := s.library.Documents(ctx)
		if err != nil {
			return nil, toMCPError(err, "failed to list library")
		}
		response["library"] = nonNil(library)
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

func requireDocumentID(args map[string]interface{}) (string, error) {
	documentID, ok := args["document_id"].(string)
	if !ok || documentID == "" {
		return "", newMCPError(ErrorCodeInvalidParams, "document_id parameter is required", map[string]interface{}{
			"param":  "document_id",
			"reason": "missing or empty",
		})
	}
	return documentID, nil
}

func statusResponse(status types.VectorizationStatus) map[string]interface{} {
	response := map[string]interface{}{
		"document_id":      status.DocumentID,
		"state":            string(status.State),
		"total_chunks":     status.TotalChunks,
		"processed_chunks": status.ProcessedChunks,
		"progress":         fmt.Sprintf("%.2f", status.Progress()),
	}
	if status.Error != "" {
		response["error"] = status.Error
	}
	if !status.StartedAt.IsZero() {
		response["started_at"] = status.StartedAt.Format(time.RFC3339)
	}
	if !status.FinishedAt.IsZero() {
		response["finished_at"] = status.FinishedAt.Format(time.RFC3339)
	}
	return response
}

// toMCPError maps domain errors onto MCP error codes
func toMCPError(err error, message string) error {
	code := ErrorCodeInternalError
	switch {
	case errors.Is(err, types.ErrAlreadyRunning):
		code = ErrorCodeAlreadyRunning
	case errors.Is(err, types.ErrDocumentUnreadable):
		code = ErrorCodeDocumentUnreadable
	case errors.Is(err, types.ErrInvalidSearchMode), errors.Is(err, types.ErrInvalidTopK):
		code = ErrorCodeInvalidParams
	case errors.Is(err, types.ErrEmptyQuery):
		code = ErrorCodeEmptyQuery
	case errors.Is(err, types.ErrEmbeddingUnavailable), errors.Is(err, types.ErrEmbeddingRateLimited):
		code = ErrorCodeEmbeddingUnavailable
	}
	return newMCPError(code, message, map[string]interface{}{
		"error": err.Error(),
	})
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
