package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/loopworkco/rewind/pkg/record"
)

var (
	recallToolName    = "context_recall"
	recallDescription = "Recall stored context from previous coding sessions. Returns the most relevant records for the query text, scored by term overlap, recency, outcome, and file overlap."
)

// RecallInput represents the input arguments for the context_recall tool.
type RecallInput struct {
	Query string   `json:"query" jsonschema:"the query text to find relevant past context"`
	Files []string `json:"files,omitempty" jsonschema:"file paths to bias retrieval toward"`
	Limit int      `json:"limit,omitempty" jsonschema:"number of records to return (default: 5)"`
}

// RecalledContext is a single recalled record.
type RecalledContext struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Prompt    string    `json:"prompt"`
	Payload   string    `json:"payload"`
	Files     []string  `json:"files,omitempty"`
	Outcome   string    `json:"outcome"`
	Score     float64   `json:"relevance_score"`
	CreatedAt time.Time `json:"created_at"`
}

// RecallOutput represents the output of the context_recall tool.
type RecallOutput struct {
	Query   string            `json:"query"`
	Records []RecalledContext `json:"records"`
	Count   int               `json:"count"`
}

// handleRecall processes a context_recall request.
func (s *Server) handleRecall(ctx context.Context, req *mcp.CallToolRequest, input RecallInput) (*mcp.CallToolResult, RecallOutput, error) {
	logger := s.config.Logger

	// Default limit if not specified
	limit := input.Limit
	if limit <= 0 {
		limit = 5
	}

	logger.Debug("MCP recall request",
		zap.String("query", input.Query),
		zap.Int("limit", limit),
	)

	scored := s.config.Engine.Retrieve(ctx, input.Query, input.Files, limit)

	records := make([]RecalledContext, 0, len(scored))
	for _, sr := range scored {
		records = append(records, buildRecalledContext(sr))
	}

	output := RecallOutput{
		Query:   input.Query,
		Records: records,
		Count:   len(records),
	}

	// Serialize the structured output as JSON for the text field
	// Per MCP spec: tools returning structured content should also return
	// serialized JSON in a TextContent block for backwards compatibility
	jsonBytes, err := json.Marshal(output)
	if err != nil {
		logger.Error("failed to marshal recall output", zap.Error(err))
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Failed to serialize results: %v", err)},
			},
		}, RecallOutput{}, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, output, nil
}

// buildRecalledContext converts a scored record into the tool's output shape.
func buildRecalledContext(sr record.ScoredRecord) RecalledContext {
	return RecalledContext{
		ID:        sr.ID,
		SessionID: sr.SessionID,
		Prompt:    sr.Prompt,
		Payload:   sr.Payload,
		Files:     sr.Files,
		Outcome:   string(sr.Outcome),
		Score:     sr.Score,
		CreatedAt: sr.CreatedAt,
	}
}
