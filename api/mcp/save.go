package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/loopworkco/rewind/pkg/record"
)

var (
	saveToolName    = "context_save"
	saveDescription = "Save context from the current coding session so later sessions can recall it. Identical prompt and payload pairs replace the earlier record."
)

// SaveInput represents the input arguments for the context_save tool.
type SaveInput struct {
	SessionID string            `json:"session_id" jsonschema:"identifier grouping records from one working session"`
	Prompt    string            `json:"prompt" jsonschema:"the prompt or task description that produced this context"`
	Payload   string            `json:"payload" jsonschema:"the context text worth remembering"`
	Files     []string          `json:"files,omitempty" jsonschema:"file paths this context touches"`
	Outcome   string            `json:"outcome,omitempty" jsonschema:"how the work ended: Success, Partial, Failure, or Unknown"`
	Metadata  map[string]string `json:"metadata,omitempty" jsonschema:"small auxiliary key/value pairs"`
}

// SaveOutput represents the output of the context_save tool.
type SaveOutput struct {
	ID          int64  `json:"id"`
	ContentHash string `json:"content_hash"`
}

// handleSave processes a context_save request.
func (s *Server) handleSave(ctx context.Context, req *mcp.CallToolRequest, input SaveInput) (*mcp.CallToolResult, SaveOutput, error) {
	logger := s.config.Logger

	rec := &record.ContextRecord{
		SessionID: input.SessionID,
		Prompt:    input.Prompt,
		Payload:   input.Payload,
		Files:     input.Files,
		Outcome:   record.Outcome(input.Outcome),
		Metadata:  input.Metadata,
	}

	id, err := s.config.Engine.Store(ctx, rec)
	if err != nil {
		logger.Error("failed to store context", zap.Error(err))
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Failed to store context: %v", err)},
			},
		}, SaveOutput{}, nil
	}

	output := SaveOutput{
		ID:          id,
		ContentHash: rec.ContentHash,
	}

	jsonBytes, err := json.Marshal(output)
	if err != nil {
		logger.Error("failed to marshal save output", zap.Error(err))
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Failed to serialize result: %v", err)},
			},
		}, SaveOutput{}, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, output, nil
}
