package mcp

// In this file: tool definitions and the call dispatcher.

import (
	"context"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpsrv "github.com/mark3labs/mcp-go/server"

	"github.com/dbmcp/pg-mcp-server/internal/logger"
	"github.com/dbmcp/pg-mcp-server/pkg/dbtools"
)

// Tool names. Exactly these four are exposed; their schemas are fixed for
// the lifetime of the process.
const (
	toolQuery  = "query"
	toolInsert = "insert"
	toolUpdate = "update"
	toolDelete = "delete"
)

// tools returns all MCP tools that this server exposes.
func (s *Server) tools() []mcpsrv.ServerTool {
	return []mcpsrv.ServerTool{
		{Tool: queryTool(), Handler: s.handleQuery},
		{Tool: insertTool(), Handler: s.handleInsert},
		{Tool: updateTool(), Handler: s.handleUpdate},
		{Tool: deleteTool(), Handler: s.handleDelete},
	}
}

func queryTool() mcplib.Tool {
	return mcplib.NewTool(toolQuery,
		mcplib.WithDescription("Run an arbitrary SQL statement against the database. The statement is executed as-is with no bound parameters; the caller is fully trusted with its content."),
		mcplib.WithString("sql",
			mcplib.Description("The SQL statement to execute"),
			mcplib.Required(),
		),
	)
}

func insertTool() mcplib.Tool {
	return mcplib.NewTool(toolInsert,
		mcplib.WithDescription("Insert a single row into a table. Returns the inserted row."),
		mcplib.WithString("table",
			mcplib.Description("Target table name"),
			mcplib.Required(),
		),
		mcplib.WithObject("data",
			mcplib.Description("Column/value pairs to insert"),
			mcplib.Required(),
		),
	)
}

func updateTool() mcplib.Tool {
	return mcplib.NewTool(toolUpdate,
		mcplib.WithDescription("Update rows in a table. Returns the updated rows."),
		mcplib.WithString("table",
			mcplib.Description("Target table name"),
			mcplib.Required(),
		),
		mcplib.WithObject("data",
			mcplib.Description("Column/value pairs to set"),
			mcplib.Required(),
		),
		mcplib.WithObject("where",
			mcplib.Description("Column/value equality predicates, joined by AND"),
			mcplib.Required(),
		),
	)
}

func deleteTool() mcplib.Tool {
	return mcplib.NewTool(toolDelete,
		mcplib.WithDescription("Delete rows from a table. Returns the deleted rows."),
		mcplib.WithString("table",
			mcplib.Description("Target table name"),
			mcplib.Required(),
		),
		mcplib.WithObject("where",
			mcplib.Description("Column/value equality predicates, joined by AND"),
			mcplib.Required(),
		),
	)
}

func (s *Server) handleQuery(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	return s.dispatch(ctx, toolQuery, req.GetArguments()), nil
}

func (s *Server) handleInsert(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	return s.dispatch(ctx, toolInsert, req.GetArguments()), nil
}

func (s *Server) handleUpdate(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	return s.dispatch(ctx, toolUpdate, req.GetArguments()), nil
}

func (s *Server) handleDelete(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	return s.dispatch(ctx, toolDelete, req.GetArguments()), nil
}

// dispatch routes a tool call by name. Every failure, from validation
// through execution, is folded into an IsError result carrying the message;
// the protocol call itself always succeeds.
func (s *Server) dispatch(ctx context.Context, name string, args map[string]interface{}) *mcplib.CallToolResult {
	result, err := s.call(ctx, name, args)
	if err != nil {
		logger.Debug("tool %s failed: %v", name, err)
		return resultErr(err)
	}
	return resultJSON(result)
}

func (s *Server) call(ctx context.Context, name string, args map[string]interface{}) (interface{}, error) {
	switch name {
	case toolQuery:
		return s.runQuery(ctx, args)
	case toolInsert:
		return s.runInsert(ctx, args)
	case toolUpdate:
		return s.runUpdate(ctx, args)
	case toolDelete:
		return s.runDelete(ctx, args)
	default:
		return nil, fmt.Errorf("unknown tool: %q", name)
	}
}

func (s *Server) runQuery(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	sqlText, ok := stringArg(args, "sql")
	if !ok || sqlText == "" {
		return nil, &dbtools.ValidationError{Reason: "query: sql is required"}
	}

	logger.Debug("query: executing %q", sqlText)
	return s.q.Query(ctx, sqlText)
}

func (s *Server) runInsert(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	table, ok := stringArg(args, "table")
	if !ok || table == "" {
		return nil, &dbtools.ValidationError{Reason: "insert: table is required"}
	}
	data, ok := objectArg(args, "data")
	if !ok {
		return nil, &dbtools.ValidationError{Reason: "insert: data is required and must be an object"}
	}

	if err := s.checkTable(ctx, table); err != nil {
		return nil, err
	}
	stmt, err := dbtools.BuildInsert(table, data)
	if err != nil {
		return nil, err
	}

	logger.Debug("insert: executing %q", stmt.SQL)
	rows, err := s.q.Query(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return map[string]interface{}{}, nil
	}
	return rows[0], nil
}

func (s *Server) runUpdate(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	table, ok := stringArg(args, "table")
	if !ok || table == "" {
		return nil, &dbtools.ValidationError{Reason: "update: table is required"}
	}
	data, ok := objectArg(args, "data")
	if !ok {
		return nil, &dbtools.ValidationError{Reason: "update: data is required and must be an object"}
	}
	where, ok := objectArg(args, "where")
	if !ok {
		return nil, &dbtools.ValidationError{Reason: "update: where is required and must be an object"}
	}

	if err := s.checkTable(ctx, table); err != nil {
		return nil, err
	}
	stmt, err := dbtools.BuildUpdate(table, data, where)
	if err != nil {
		return nil, err
	}

	logger.Debug("update: executing %q", stmt.SQL)
	return s.q.Query(ctx, stmt.SQL, stmt.Args...)
}

func (s *Server) runDelete(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	table, ok := stringArg(args, "table")
	if !ok || table == "" {
		return nil, &dbtools.ValidationError{Reason: "delete: table is required"}
	}
	where, ok := objectArg(args, "where")
	if !ok {
		return nil, &dbtools.ValidationError{Reason: "delete: where is required and must be an object"}
	}

	if err := s.checkTable(ctx, table); err != nil {
		return nil, err
	}
	stmt, err := dbtools.BuildDelete(table, where)
	if err != nil {
		return nil, err
	}

	logger.Debug("delete: executing %q", stmt.SQL)
	return s.q.Query(ctx, stmt.SQL, stmt.Args...)
}

// checkTable verifies the table exists in the catalog before its name is
// embedded into statement text. Identifier names cannot be bound as
// parameters, so an unknown name must never reach the quoting path.
func (s *Server) checkTable(ctx context.Context, table string) error {
	tables, err := s.q.Tables(ctx)
	if err != nil {
		return fmt.Errorf("list tables: %w", err)
	}
	for _, t := range tables {
		if t == table {
			return nil
		}
	}
	return fmt.Errorf("unknown table: %q", table)
}
