package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/marcboeker/go-duckdb"
)

func init() {
	Register("duckdb", func(l *slog.Logger) Adapter { return NewDuckDBAdapter(l) })
}

// DuckDBAdapter implements the Adapter interface for DuckDB.
type DuckDBAdapter struct {
	BaseSQLAdapter
}

// NewDuckDBAdapter creates a new DuckDB adapter instance.
func NewDuckDBAdapter(logger *slog.Logger) *DuckDBAdapter {
	return &DuckDBAdapter{BaseSQLAdapter{
		Logger: logger,
		Dialect: Dialect{
			Name:        "duckdb",
			DoubleType:  "DOUBLE",
			TextType:    "VARCHAR",
			Placeholder: questionMark,
			Cell:        duckdbCell,
		},
	}}
}

// DialectName returns the SQL dialect for this adapter.
func (a *DuckDBAdapter) DialectName() string {
	return "duckdb"
}

// Connect establishes a connection to DuckDB.
// An empty path or ":memory:" opens an in-memory database.
func (a *DuckDBAdapter) Connect(ctx context.Context, cfg Config) error {
	path := cfg.Path
	if path == ":memory:" {
		path = ""
	}

	a.logger().Debug("connecting to duckdb", slog.String("path", cfg.Path))

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return fmt.Errorf("failed to open duckdb connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping duckdb: %w", err)
	}

	a.DB = db
	a.Cfg = cfg
	return nil
}

// duckdbCell turns DECIMAL results into float64. Decimal.Float64 has a
// pointer receiver, so scanned values do not satisfy a Float64 interface.
func duckdbCell(v any) any {
	if d, ok := v.(duckdb.Decimal); ok {
		return d.Float64()
	}
	return v
}

var _ Adapter = (*DuckDBAdapter)(nil)
