package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

func documentIDProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Document identifier (sub-directory of the library root)",
	}
}

// vectorizeDocumentTool returns the tool definition for vectorize_document
func vectorizeDocumentTool() mcp.Tool {
	return mcp.Tool{
		Name:        "vectorize_document",
		Description: "Chunk a document and embed its chunks in the background. Unchanged documents resume where the last run stopped.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"document_id": documentIDProperty(),
			},
			Required: []string{"document_id"},
		},
	}
}

// cancelVectorizationTool returns the tool definition for cancel_vectorization
func cancelVectorizationTool() mcp.Tool {
	return mcp.Tool{
		Name:        "cancel_vectorization",
		Description: "Stop a running vectorization before its next batch. Chunks embedded so far are kept.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"document_id": documentIDProperty(),
			},
			Required: []string{"document_id"},
		},
	}
}

// getVectorizationStatusTool returns the tool definition for get_vectorization_status
func getVectorizationStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_vectorization_status",
		Description: "Report the vectorization state and chunk progress of a document",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"document_id": documentIDProperty(),
			},
			Required: []string{"document_id"},
		},
	}
}

// searchDocumentTool returns the tool definition for search_document
func searchDocumentTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_document",
		Description: "Find the passages of one document that best match a natural language or keyword query",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"document_id": documentIDProperty(),
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query (natural language or keywords)",
				},
				"mode": map[string]interface{}{
					"type":        "string",
					"description": "Scoring: semantic (embeddings), keyword (term overlap), or hybrid (weighted blend)",
					"enum":        []string{"semantic", "keyword", "hybrid"},
					"default":     "hybrid",
				},
				"top_k": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of passages to return (1-100)",
					"default":     5,
					"minimum":     1,
					"maximum":     100,
				},
			},
			Required: []string{"document_id", "query"},
		},
	}
}

// deleteDocumentTool returns the tool definition for delete_document
func deleteDocumentTool() mcp.Tool {
	return mcp.Tool{
		Name:        "delete_document",
		Description: "Remove every stored chunk and embedding of a document",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"document_id": documentIDProperty(),
			},
			Required: []string{"document_id"},
		},
	}
}

// listDocumentsTool returns the tool definition for list_documents
func listDocumentsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_documents",
		Description: "List the documents in the library and those with stored chunks",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
