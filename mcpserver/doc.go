// Package mcpserver provides the Model Context Protocol (MCP) transport.
//
// The mcpserver package exposes the execution engine's run_code tool over
// MCP, on stdio or streamable HTTP. It uses the mark3labs/mcp-go library
// for protocol handling and delegates every execution decision to the
// sandbox coordinator it shares with the REST transport.
package mcpserver
