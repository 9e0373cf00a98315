package mcp

import (
	"context"
	"errors"
	"testing"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbmcp/pg-mcp-server/pkg/dbtools"
)

func TestResourceURI(t *testing.T) {
	srv := newTestServer(t, &fakeQuerier{})
	assert.Equal(t, "postgres://db.example.com:5432/users/schema", srv.resourceURI("users"))
}

func TestParseResourceURI(t *testing.T) {
	tests := []struct {
		name      string
		uri       string
		wantTable string
		wantErr   bool
	}{
		{
			name:      "valid schema uri",
			uri:       "postgres://db.example.com:5432/users/schema",
			wantTable: "users",
		},
		{
			name:    "wrong trailing segment",
			uri:     "postgres://db.example.com:5432/users/data",
			wantErr: true,
		},
		{
			name:    "missing trailing segment",
			uri:     "postgres://db.example.com:5432/users",
			wantErr: true,
		},
		{
			name:    "extra path segments",
			uri:     "postgres://db.example.com:5432/a/b/schema",
			wantErr: true,
		},
		{
			name:    "empty table name",
			uri:     "postgres://db.example.com:5432//schema",
			wantErr: true,
		},
		{
			name:    "foreign host",
			uri:     "postgres://other.example.com:5432/users/schema",
			wantErr: true,
		},
		{
			name:    "foreign scheme",
			uri:     "mysql://db.example.com:5432/users/schema",
			wantErr: true,
		},
	}

	srv := newTestServer(t, &fakeQuerier{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := srv.parseResourceURI(tt.uri)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidResource)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantTable, table)
		})
	}
}

func TestHandleReadResource(t *testing.T) {
	readRequest := func(uri string) mcplib.ReadResourceRequest {
		var req mcplib.ReadResourceRequest
		req.Params.URI = uri
		return req
	}

	t.Run("returns column metadata as JSON", func(t *testing.T) {
		q := &fakeQuerier{
			schemaFn: func(ctx context.Context, table string) ([]dbtools.ColumnInfo, error) {
				assert.Equal(t, "users", table)
				return []dbtools.ColumnInfo{
					{ColumnName: "id", DataType: "integer"},
					{ColumnName: "name", DataType: "text"},
				}, nil
			},
		}
		srv := newTestServer(t, q)

		contents, err := srv.handleReadResource(t.Context(), readRequest("postgres://db.example.com:5432/users/schema"))
		require.NoError(t, err)
		require.Len(t, contents, 1)

		text, ok := contents[0].(mcplib.TextResourceContents)
		require.True(t, ok)
		assert.Equal(t, "postgres://db.example.com:5432/users/schema", text.URI)
		assert.Equal(t, jsonMIMEType, text.MIMEType)
		assert.Contains(t, text.Text, `"column_name": "id"`)
		assert.Contains(t, text.Text, `"data_type": "text"`)
	})

	t.Run("unknown table yields an empty sequence", func(t *testing.T) {
		srv := newTestServer(t, &fakeQuerier{})

		contents, err := srv.handleReadResource(t.Context(), readRequest("postgres://db.example.com:5432/ghost/schema"))
		require.NoError(t, err)
		require.Len(t, contents, 1)

		text, ok := contents[0].(mcplib.TextResourceContents)
		require.True(t, ok)
		assert.Equal(t, "[]", text.Text)
	})

	t.Run("invalid uri propagates as protocol failure", func(t *testing.T) {
		srv := newTestServer(t, &fakeQuerier{})

		_, err := srv.handleReadResource(t.Context(), readRequest("postgres://db.example.com:5432/users/rows"))
		require.ErrorIs(t, err, ErrInvalidResource)
	})

	t.Run("catalog failure propagates", func(t *testing.T) {
		q := &fakeQuerier{
			schemaFn: func(ctx context.Context, table string) ([]dbtools.ColumnInfo, error) {
				return nil, errors.New("connection reset")
			},
		}
		srv := newTestServer(t, q)

		_, err := srv.handleReadResource(t.Context(), readRequest("postgres://db.example.com:5432/users/schema"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection reset")
	})
}

func TestHandleReadResourceResyncsRegistry(t *testing.T) {
	readRequest := func(uri string) mcplib.ReadResourceRequest {
		var req mcplib.ReadResourceRequest
		req.Params.URI = uri
		return req
	}

	catalogLists := 0
	q := &fakeQuerier{
		tablesFn: func(ctx context.Context) ([]string, error) {
			catalogLists++
			return []string{"users"}, nil
		},
	}
	srv := newTestServer(t, q)
	require.NoError(t, srv.RegisterResources(t.Context()))
	require.Equal(t, 1, catalogLists)

	// Reading a registered table does not touch the table catalog.
	_, err := srv.handleReadResource(t.Context(), readRequest("postgres://db.example.com:5432/users/schema"))
	require.NoError(t, err)
	assert.Equal(t, 1, catalogLists)

	// A table created after startup triggers a registry re-sync on first read.
	_, err = srv.handleReadResource(t.Context(), readRequest("postgres://db.example.com:5432/audit/schema"))
	require.NoError(t, err)
	assert.Equal(t, 2, catalogLists)
	assert.True(t, srv.knownTable("users"))
	assert.False(t, srv.knownTable("ghost"))
}

func TestRegisterResources(t *testing.T) {
	t.Run("registers one resource per table", func(t *testing.T) {
		q := &fakeQuerier{
			tablesFn: func(ctx context.Context) ([]string, error) {
				return []string{"users", "orders"}, nil
			},
		}
		srv := newTestServer(t, q)

		require.NoError(t, srv.RegisterResources(t.Context()))
	})

	t.Run("catalog failure surfaces", func(t *testing.T) {
		q := &fakeQuerier{
			tablesFn: func(ctx context.Context) ([]string, error) {
				return nil, errors.New("no pg_catalog access")
			},
		}
		srv := newTestServer(t, q)

		err := srv.RegisterResources(t.Context())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "list tables")
	})
}
