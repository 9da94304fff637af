// Package mcpserver exposes generation, thinking detection and history over
// the Model Context Protocol on stdio.
package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/server"

	"github.com/doeshing/notegen/internal/domain"
	"github.com/doeshing/notegen/internal/ports"
)

// Generator is the orchestrator surface the tools need.
type Generator interface {
	GenerateNote(ctx context.Context, opts domain.GenerateOptions) (string, error)
}

// New builds an MCP server with every notegen tool registered.
func New(version string, gen Generator, history ports.HistoryStore) *server.MCPServer {
	s := server.NewMCPServer(
		"notegen",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	generateTool := NewGenerateNoteTool(gen, history)
	s.AddTool(generateTool.Definition(), generateTool.Handle)

	detectTool := NewDetectThinkingTool()
	s.AddTool(detectTool.Definition(), detectTool.Handle)

	historyTool := NewListHistoryTool(history)
	s.AddTool(historyTool.Definition(), historyTool.Handle)

	return s
}

// Serve blocks serving s on stdin/stdout.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}
