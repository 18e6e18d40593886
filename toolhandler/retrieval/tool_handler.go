// Package retrieval exposes the vector index to the model as a callable
// tool.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/finchat/finchat/index"
	toolhandler "github.com/finchat/finchat/toolhandler"
)

const (
	ToolName = "financial_data_search"

	// description shown to the model so it can decide when a lookup is
	// warranted.
	toolDescription = "Searches the user's uploaded financial data, which is tabular " +
		"(CSV) records such as budgets, expenses, and revenue by month and " +
		"department. Call this with a natural-language question whenever the " +
		"user asks about their own financial data."

	defaultLimit = 4
)

type retrievalToolHandler struct {
	index index.Index
	limit int
}

func (h *retrievalToolHandler) Spec() toolhandler.ToolSpec {
	return toolhandler.ToolSpec{
		Name:        ToolName,
		Description: toolDescription,
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "A natural-language question about the financial data.",
				},
			},
			"required": []string{"query"},
		},
	}
}

func (h *retrievalToolHandler) Invoke(ctx context.Context, req toolhandler.ToolRequest) (toolhandler.ToolResponse, error) {
	query, _ := req.Arguments["query"].(string)
	if len(strings.TrimSpace(query)) == 0 {
		return toolhandler.ToolResponse{}, errors.New("query argument is required")
	}

	matches, err := h.index.Query(ctx, query, h.limit)
	if err != nil {
		if errors.Is(err, index.ErrEmptyIndex) {
			return toolhandler.ToolResponse{
				Content:  "No financial data has been indexed yet.",
				Metadata: map[string]any{"matches": 0},
			}, nil
		}
		return toolhandler.ToolResponse{}, fmt.Errorf("retrieval failed: %w", err)
	}

	fragments := make([]string, 0, len(matches))
	for _, m := range matches {
		fragments = append(fragments, m.Document.Text)
	}

	return toolhandler.ToolResponse{
		Content:  strings.Join(fragments, "\n\n"),
		Metadata: map[string]any{"matches": len(matches)},
	}, nil
}

func NewToolHandler(idx index.Index, limit int) toolhandler.ToolHandler {
	if limit <= 0 {
		limit = defaultLimit
	}
	return &retrievalToolHandler{
		index: idx,
		limit: limit,
	}
}
