package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

var (
	analyzeToolName    = "context_analyze"
	analyzeDescription = "Analyze a prompt and decide whether it warrants recalling stored context. Returns a confidence score, the suggested query terms, and any file paths found in the prompt."
)

// AnalyzeInput represents the input arguments for the context_analyze tool.
type AnalyzeInput struct {
	Prompt string `json:"prompt" jsonschema:"the prompt text to analyze"`
}

// AnalyzeOutput represents the output of the context_analyze tool.
type AnalyzeOutput struct {
	ShouldRetrieve bool     `json:"should_retrieve"`
	Confidence     float64  `json:"confidence"`
	QueryTerms     []string `json:"query_terms"`
	Files          []string `json:"files"`
}

// handleAnalyze processes a context_analyze request.
func (s *Server) handleAnalyze(ctx context.Context, req *mcp.CallToolRequest, input AnalyzeInput) (*mcp.CallToolResult, AnalyzeOutput, error) {
	logger := s.config.Logger

	analysis := s.config.Analyzer.Analyze(input.Prompt)

	output := AnalyzeOutput{
		ShouldRetrieve: analysis.ShouldRetrieve,
		Confidence:     analysis.Confidence,
		QueryTerms:     analysis.QueryTerms,
		Files:          analysis.Files,
	}

	jsonBytes, err := json.Marshal(output)
	if err != nil {
		logger.Error("failed to marshal analyze output", zap.Error(err))
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Failed to serialize result: %v", err)},
			},
		}, AnalyzeOutput{}, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, output, nil
}
