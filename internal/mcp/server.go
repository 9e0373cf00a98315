// Package mcp exposes a PostgreSQL database over the Model Context
// Protocol: one schema resource per table, and query/insert/update/delete
// tools that translate structured arguments into parameterized SQL.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"sync"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpsrv "github.com/mark3labs/mcp-go/server"

	"github.com/dbmcp/pg-mcp-server/internal/logger"
	"github.com/dbmcp/pg-mcp-server/pkg/dbtools"
)

const (
	serverName    = "pg-mcp-server"
	serverVersion = "0.1.0"

	jsonMIMEType = "application/json"
)

// Querier is the narrow database surface the dispatcher needs: run one
// parameterized statement, and inspect the catalog.
type Querier interface {
	Query(ctx context.Context, query string, args ...interface{}) ([]map[string]interface{}, error)
	Tables(ctx context.Context) ([]string, error)
	TableSchema(ctx context.Context, table string) ([]dbtools.ColumnInfo, error)
}

// Server wraps an MCP server and the database it exposes.
type Server struct {
	mcp  *mcpsrv.MCPServer
	q    Querier
	base *url.URL

	mu    sync.Mutex
	known map[string]bool // tables with a registered schema resource
}

// New creates a new MCP server over the given Querier. base is the resource
// URI base (connection string host, credentials stripped). The server does
// not start listening until ServeStdio is called.
func New(q Querier, base *url.URL) *Server {
	s := &Server{
		q:     q,
		base:  base,
		known: make(map[string]bool),
	}

	mcpServer := mcpsrv.NewMCPServer(
		serverName,
		serverVersion,
		mcpsrv.WithResourceCapabilities(false, true),
		mcpsrv.WithRecovery(),
	)

	// Register all tools.
	for _, t := range s.tools() {
		mcpServer.AddTool(t.Tool, t.Handler)
	}

	s.mcp = mcpServer
	return s
}

// ServeStdio runs the MCP server over stdin/stdout until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := mcpsrv.NewStdioServer(s.mcp)
	logger.Info("mcp server listening on stdio")
	if err := srv.Listen(ctx, os.Stdin, os.Stdout); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("mcp stdio server error: %w", err)
	}
	return nil
}

// resultText wraps text in a successful CallToolResult.
func resultText(text string) *mcplib.CallToolResult {
	return mcplib.NewToolResultText(text)
}

// resultErr wraps an error in a CallToolResult with IsError=true.
func resultErr(err error) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{mcplib.NewTextContent(err.Error())},
		IsError: true,
	}
}

// resultJSON serializes v as indented JSON wrapped in a text content item.
func resultJSON(v interface{}) *mcplib.CallToolResult {
	text, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return resultErr(fmt.Errorf("serialize result: %w", err))
	}
	return resultText(string(text))
}

// stringArg extracts a named string argument from a tool argument map.
// Returns ("", false) if the argument is absent or not a string.
func stringArg(args map[string]interface{}, name string) (string, bool) {
	v, ok := args[name]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// objectArg extracts a named object argument as ordered fields.
func objectArg(args map[string]interface{}, name string) (dbtools.Fields, bool) {
	v, ok := args[name]
	if !ok {
		return nil, false
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, false
	}
	return dbtools.FieldsFromMap(m), true
}
