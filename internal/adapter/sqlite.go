package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite" // sqlite driver
)

func init() {
	Register("sqlite", func(l *slog.Logger) Adapter { return NewSQLiteAdapter(l) })
}

// SQLiteAdapter implements the Adapter interface for SQLite.
type SQLiteAdapter struct {
	BaseSQLAdapter
}

// NewSQLiteAdapter creates a new SQLite adapter instance.
func NewSQLiteAdapter(logger *slog.Logger) *SQLiteAdapter {
	return &SQLiteAdapter{BaseSQLAdapter{
		Logger: logger,
		Dialect: Dialect{
			Name:        "sqlite",
			DoubleType:  "REAL",
			TextType:    "TEXT",
			Placeholder: questionMark,
		},
	}}
}

// DialectName returns the SQL dialect for this adapter.
func (a *SQLiteAdapter) DialectName() string {
	return "sqlite"
}

// Connect opens the SQLite database at cfg.Path.
func (a *SQLiteAdapter) Connect(ctx context.Context, cfg Config) error {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	a.logger().Debug("connecting to sqlite", slog.String("path", path))

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	a.DB = db
	a.Cfg = cfg
	return nil
}

var _ Adapter = (*SQLiteAdapter)(nil)
