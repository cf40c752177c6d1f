// Package adapter loads lineage tables from SQL databases and writes
// propagated tables back.
package adapter

import (
	"context"

	"github.com/leapstack-labs/leapscale/internal/propagate"
	"github.com/leapstack-labs/leapscale/internal/table"
)

// Config holds the configuration for connecting to a database.
type Config struct {
	// Type selects the adapter (duckdb, sqlite, postgres)
	Type string

	// Path is the file path for file-based databases (DuckDB, SQLite).
	// Use ":memory:" or leave empty for an in-memory database.
	Path string

	// Host is the hostname for network-based databases
	Host string

	// Port is the port number for network-based databases
	Port int

	// Database is the database name
	Database string

	// Username for authentication
	Username string

	// Password for authentication
	Password string

	// Options contains additional driver-specific options
	Options map[string]string
}

// Adapter reads and writes lineage tables through database/sql.
type Adapter interface {
	// Connect establishes a connection to the database using the provided config.
	Connect(ctx context.Context, cfg Config) error

	// Close closes the database connection and releases resources.
	Close() error

	// Exec executes a SQL statement that doesn't return rows.
	Exec(ctx context.Context, sql string, args ...any) error

	// LoadTable runs query and decodes each result row into a node. The
	// query must return the configured id, value, override and lineage columns.
	LoadTable(ctx context.Context, query string, opts table.Options) (propagate.Table, error)

	// WriteTable replaces the named table with the contents of t. Lineage is
	// stored as a JSON array in a text column.
	WriteTable(ctx context.Context, name string, t propagate.Table, cols table.Columns) error

	// DialectName returns the SQL dialect name for this adapter.
	DialectName() string
}
