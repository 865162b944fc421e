package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/isdmx/runbox/config"
	"github.com/isdmx/runbox/sandbox"
)

// MCPServer exposes the execution engine as an MCP tool. It shares the
// Coordinator with the REST transport, so admission control and timeouts
// apply identically regardless of how a request arrives.
type MCPServer struct {
	config    *config.Config
	logger    *zap.Logger
	exec      sandbox.Executor
	mcpServer *server.MCPServer
}

// New creates a new MCPServer
func New(cfg *config.Config, logger *zap.Logger, exec sandbox.Executor) (*MCPServer, error) {
	s := &MCPServer{
		config: cfg,
		logger: logger,
		exec:   exec,
	}

	languages := make([]string, 0, len(cfg.Languages))
	for _, rt := range cfg.Languages {
		languages = append(languages, rt.Name)
	}

	logger.Info("configuration loaded",
		zap.String("server.transport", cfg.Server.Transport),
		zap.Int("server.http_port", cfg.Server.HTTPPort),
		zap.Int("engine.max_workers", cfg.Engine.MaxWorkers),
		zap.Int("engine.max_requests", cfg.Engine.MaxRequests),
		zap.Int("engine.timeout_sec", cfg.Engine.TimeoutSec),
		zap.Strings("languages", languages),
	)

	s.mcpServer = server.NewMCPServer("runbox", "An untrusted code execution server")
	s.registerRunCodeTool(languages)

	return s, nil
}

// registerRunCodeTool registers the run_code tool
func (s *MCPServer) registerRunCodeTool(languages []string) {
	tool := mcp.Tool{
		Name:        "run_code",
		Description: "Execute an untrusted code snippet and return its captured output",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"code": map[string]any{
					"type":        "string",
					"description": "Source code to execute",
				},
				"language": map[string]any{
					"type":        "string",
					"description": "Runtime language",
					"enum":        languages,
				},
			},
			Required: []string{"code", "language"},
		},
	}

	s.mcpServer.AddTool(tool, s.handleRunCode)
}

// handleRunCode handles the run_code tool
func (s *MCPServer) handleRunCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := request.RequireString("code")
	if err != nil {
		return nil, fmt.Errorf("code parameter is required: %w", err)
	}

	language, err := request.RequireString("language")
	if err != nil {
		return nil, fmt.Errorf("language parameter is required: %w", err)
	}

	s.logger.Info("code execution requested",
		zap.String("language", language),
		zap.Int("code_len", len(code)))

	result, err := s.exec.Execute(ctx, sandbox.Request{
		Language: language,
		Source:   code,
	})
	if err != nil {
		// Pre-admission rejection: unsupported language or overload.
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf("Execution rejected: %v", err),
				},
			},
			IsError: true,
		}, nil
	}

	s.logger.Info("code execution completed",
		zap.String("language", language),
		zap.Bool("success", result.Success),
		zap.Int("stdout_len", len(result.Stdout)),
		zap.Int("error_len", len(result.Error)))

	resultJSON := fmt.Sprintf(`{"success":%t,"stdout":%q,"error":%q}`,
		result.Success, result.Stdout, result.Error)

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: resultJSON,
			},
		},
	}, nil
}

// GetMCPServer returns the underlying MCP server instance
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on stdio
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server on stdio")
	return server.ServeStdio(s.mcpServer)
}

// ServeHTTP starts the server on HTTP
func (s *MCPServer) ServeHTTP() error {
	port := s.config.Server.HTTPPort
	s.logger.Info("starting MCP server on HTTP", zap.Int("port", port))

	httpServer := server.NewStreamableHTTPServer(s.mcpServer)
	return httpServer.Start(fmt.Sprintf(":%d", port))
}
