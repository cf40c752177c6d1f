package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib" // postgres driver
)

func init() {
	Register("postgres", func(l *slog.Logger) Adapter { return NewPostgresAdapter(l) })
}

// PostgresAdapter implements the Adapter interface for PostgreSQL.
type PostgresAdapter struct {
	BaseSQLAdapter
}

// NewPostgresAdapter creates a new PostgreSQL adapter instance.
func NewPostgresAdapter(logger *slog.Logger) *PostgresAdapter {
	return &PostgresAdapter{BaseSQLAdapter{
		Logger: logger,
		Dialect: Dialect{
			Name:        "postgres",
			DoubleType:  "DOUBLE PRECISION",
			TextType:    "TEXT",
			Placeholder: dollar,
		},
	}}
}

// DialectName returns the SQL dialect for this adapter.
func (a *PostgresAdapter) DialectName() string {
	return "postgres"
}

// Connect establishes a connection to PostgreSQL.
func (a *PostgresAdapter) Connect(ctx context.Context, cfg Config) error {
	dsn := buildPostgresDSN(cfg)

	a.logger().Debug("connecting to postgres", slog.String("host", cfg.Host), slog.String("database", cfg.Database))

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to open postgres connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping postgres: %w", err)
	}

	a.DB = db
	a.Cfg = cfg
	return nil
}

// buildPostgresDSN constructs a key=value PostgreSQL connection string.
func buildPostgresDSN(cfg Config) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	sslmode := "disable"
	if mode, ok := cfg.Options["sslmode"]; ok {
		sslmode = mode
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s", host, port, cfg.Database, sslmode)
	if cfg.Username != "" {
		dsn += fmt.Sprintf(" user=%s", cfg.Username)
	}
	if cfg.Password != "" {
		dsn += fmt.Sprintf(" password=%s", cfg.Password)
	}
	return dsn
}

var _ Adapter = (*PostgresAdapter)(nil)
