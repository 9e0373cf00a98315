package mcp

// In this file: table schema resources, their discovery and read handler.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/dbmcp/pg-mcp-server/internal/logger"
)

// schemaSegment is the fixed trailing path segment of every schema
// resource URI.
const schemaSegment = "schema"

// ErrInvalidResource reports a resource URI that does not address a table
// schema under this server's base.
var ErrInvalidResource = errors.New("invalid resource URI")

// RegisterResources discovers the tables in the public schema and registers
// one schema resource per table. Reads always go back to the catalog; the
// resource list is re-synced here and whenever a read names a table the
// registry has not seen.
func (s *Server) RegisterResources(ctx context.Context) error {
	tables, err := s.q.Tables(ctx)
	if err != nil {
		return fmt.Errorf("list tables: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, table := range tables {
		if s.known[table] {
			continue
		}
		res := mcplib.NewResource(
			s.resourceURI(table),
			fmt.Sprintf("%q database schema", table),
			mcplib.WithMIMEType(jsonMIMEType),
		)
		s.mcp.AddResource(res, s.handleReadResource)
		s.known[table] = true
		added++
	}

	logger.Info("registered %d table schema resources", added)
	return nil
}

// knownTable reports whether a schema resource is registered for table.
func (s *Server) knownTable(table string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.known[table]
}

// resourceURI builds the URI for a table's schema resource:
// postgres://<host>/<table>/schema.
func (s *Server) resourceURI(table string) string {
	u := *s.base
	u.Path = "/" + table + "/" + schemaSegment
	return u.String()
}

// parseResourceURI extracts the table name from a schema resource URI.
// The path must split into exactly <table>/schema, which also rejects
// table names containing a path separator.
func (s *Server) parseResourceURI(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidResource, err)
	}
	if u.Scheme != s.base.Scheme || u.Host != s.base.Host {
		return "", fmt.Errorf("%w: %q is not under %q", ErrInvalidResource, raw, s.base.String())
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != schemaSegment {
		return "", fmt.Errorf("%w: want <table>/%s, got %q", ErrInvalidResource, schemaSegment, u.Path)
	}
	return parts[0], nil
}

func (s *Server) handleReadResource(ctx context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	table, err := s.parseResourceURI(req.Params.URI)
	if err != nil {
		return nil, err
	}

	// Tables created after startup are absent from the registry. Re-sync on
	// first sight so they show up in subsequent resource lists; the read
	// itself goes to the catalog either way.
	if !s.knownTable(table) {
		if err := s.RegisterResources(ctx); err != nil {
			logger.Warn("resource re-sync failed: %v", err)
		}
	}

	columns, err := s.q.TableSchema(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("read schema for %q: %w", table, err)
	}

	text, err := json.MarshalIndent(columns, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("serialize schema for %q: %w", table, err)
	}

	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: jsonMIMEType,
			Text:     string(text),
		},
	}, nil
}
