package adapter

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/leapstack-labs/leapscale/internal/propagate"
	"github.com/leapstack-labs/leapscale/internal/table"
)

// Dialect captures the SQL differences between backends.
type Dialect struct {
	Name string
	// DoubleType is the column type used for values and overrides
	DoubleType string
	// TextType is the column type used for ids and lineage
	TextType string
	// Placeholder renders the n-th (1-based) bind parameter
	Placeholder func(n int) string
	// Cell converts driver-specific scan values before decoding, if set
	Cell func(v any) any
}

func questionMark(int) string { return "?" }

func dollar(n int) string { return fmt.Sprintf("$%d", n) }

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// QuoteIdent double-quotes a possibly schema-qualified identifier. Names
// outside [A-Za-z0-9_] are rejected.
func QuoteIdent(name string) (string, error) {
	if !identPattern.MatchString(name) {
		return "", fmt.Errorf("invalid identifier %q", name)
	}
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = `"` + p + `"`
	}
	return strings.Join(parts, "."), nil
}

// BaseSQLAdapter provides common database/sql functionality for adapters.
// Embed it in concrete adapters and implement Connect and DialectName.
type BaseSQLAdapter struct {
	DB      *sql.DB
	Cfg     Config
	Logger  *slog.Logger
	Dialect Dialect
}

func (b *BaseSQLAdapter) logger() *slog.Logger {
	if b.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return b.Logger
}

// Close closes the database connection.
func (b *BaseSQLAdapter) Close() error {
	if b.DB != nil {
		b.logger().Debug("closing database connection", slog.String("dialect", b.Dialect.Name))
		return b.DB.Close()
	}
	return nil
}

// IsConnected returns true if the database connection is established.
func (b *BaseSQLAdapter) IsConnected() bool {
	return b.DB != nil
}

// Exec executes a SQL statement that doesn't return rows.
func (b *BaseSQLAdapter) Exec(ctx context.Context, sqlStr string, args ...any) error {
	if b.DB == nil {
		return fmt.Errorf("database connection not established")
	}
	if _, err := b.DB.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("failed to execute SQL: %w", err)
	}
	return nil
}

// LoadTable runs query and decodes every result row into a node.
func (b *BaseSQLAdapter) LoadTable(ctx context.Context, query string, opts table.Options) (propagate.Table, error) {
	if b.DB == nil {
		return propagate.Table{}, fmt.Errorf("database connection not established")
	}

	rows, err := b.DB.QueryContext(ctx, query)
	if err != nil {
		return propagate.Table{}, fmt.Errorf("failed to execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	names, err := rows.Columns()
	if err != nil {
		return propagate.Table{}, fmt.Errorf("failed to read result columns: %w", err)
	}

	var nodes []propagate.Node
	for row := 0; rows.Next(); row++ {
		values := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return propagate.Table{}, fmt.Errorf("failed to scan row %d: %w", row, err)
		}

		rec := make(map[string]any, len(names))
		for i, name := range names {
			if b.Dialect.Cell != nil {
				values[i] = b.Dialect.Cell(values[i])
			}
			rec[name] = values[i]
		}

		n, err := table.DecodeRecord(rec, row, opts)
		if err != nil {
			return propagate.Table{}, err
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return propagate.Table{}, fmt.Errorf("error iterating rows: %w", err)
	}

	b.logger().Debug("loaded lineage table", slog.Int("rows", len(nodes)), slog.String("dialect", b.Dialect.Name))
	return propagate.NewTable(nodes...), nil
}

// WriteTable drops, recreates and fills name in a single transaction.
func (b *BaseSQLAdapter) WriteTable(ctx context.Context, name string, t propagate.Table, cols table.Columns) error {
	if b.DB == nil {
		return fmt.Errorf("database connection not established")
	}
	cols = cols.WithDefaults()

	target, err := QuoteIdent(name)
	if err != nil {
		return err
	}
	quoted := make([]string, 0, 4)
	for _, c := range []string{cols.ID, cols.Value, cols.Override, cols.Lineage} {
		q, err := QuoteIdent(c)
		if err != nil {
			return err
		}
		quoted = append(quoted, q)
	}

	d := b.Dialect
	ddl := fmt.Sprintf("CREATE TABLE %s (%s %s NOT NULL, %s %s NOT NULL, %s %s, %s %s NOT NULL)",
		target,
		quoted[0], d.TextType,
		quoted[1], d.DoubleType,
		quoted[2], d.DoubleType,
		quoted[3], d.TextType,
	)
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s, %s, %s, %s)", //nolint:gosec // identifiers are validated by QuoteIdent
		target, strings.Join(quoted, ", "),
		d.Placeholder(1), d.Placeholder(2), d.Placeholder(3), d.Placeholder(4),
	)

	// The old table survives unless every row of the new one is inserted.
	tx, err := b.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+target); err != nil {
		return fmt.Errorf("failed to drop %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}

	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, n := range t.Nodes {
		lineage := n.Lineage
		if lineage == nil {
			lineage = []string{}
		}
		encoded, err := json.Marshal(lineage)
		if err != nil {
			return fmt.Errorf("failed to encode lineage of %s: %w", n.ID, err)
		}

		var override any
		if n.Override != nil {
			override = *n.Override
		}
		if _, err := stmt.ExecContext(ctx, n.ID, n.Value, override, string(encoded)); err != nil {
			return fmt.Errorf("failed to insert node %s: %w", n.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	b.logger().Debug("wrote lineage table", slog.String("table", name), slog.Int("rows", t.Len()))
	return nil
}
