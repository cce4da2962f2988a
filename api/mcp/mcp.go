// Package mcp provides an MCP (Model Context Protocol) server for the rewind system.
package mcp

import (
	"errors"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/loopworkco/rewind/pkg/engine"
	"github.com/loopworkco/rewind/pkg/trigger"
	"github.com/loopworkco/rewind/pkg/utils"
)

type Config struct {
	// Engine stores and recalls context records
	Engine *engine.Engine

	// Analyzer decides whether a prompt warrants retrieval (optional,
	// enables the context_analyze tool)
	Analyzer *trigger.Analyzer

	// Noop for empty MCP server
	Noop bool

	// Logger is the configured zap logger
	Logger *zap.Logger
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates a new MCP server with the recall and save tools.
func NewServer(c Config) (*Server, error) {
	s := &Server{
		config: c,
	}

	// Create the MCP server
	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "rewind",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)

	if c.Noop {
		// return the empty MCP server with no tools configured
		// if the noop flag is set (i.e., MCP capabilities are disabled)
		s.mcpServer = mcpServer
		return s, nil
	}

	if c.Engine == nil {
		return nil, errors.New("engine is required")
	}
	if c.Logger == nil {
		return nil, errors.New("logger is required")
	}

	// Add tools
	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        recallToolName,
		Description: recallDescription,
	}, s.handleRecall)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        saveToolName,
		Description: saveDescription,
	}, s.handleSave)

	// Add the analyze tool if an analyzer is configured
	if c.Analyzer != nil {
		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        analyzeToolName,
			Description: analyzeDescription,
		}, s.handleAnalyze)
	}

	s.mcpServer = mcpServer

	// Create a streamable HTTP net/http handler for stateless operations
	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	return s, nil
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}
