package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Backend identifies which storage engine a Database targets.
type Backend string

const (
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
)

const pingTimeout = 5 * time.Second

// Options selects the storage backend. PostgresDSN is tried first when set;
// SQLitePath is the embedded fallback and must always be usable.
type Options struct {
	PostgresDSN string
	SQLitePath  string
}

// Database wraps the SQL database connection together with its backend tag.
// Repositories in this package write their SQL once with ? placeholders; the
// tag only influences placeholder rewriting and the DDL in schema.go, so
// nothing outside this package ever branches on it.
type Database struct {
	db      *sql.DB
	backend Backend
}

// Open connects to PostgreSQL when a DSN is configured and reachable, and
// otherwise to the embedded SQLite database. A PostgreSQL failure is degraded
// to the SQLite fallback rather than returned; an error means neither backend
// could be opened. The caller owns closing the handle.
func Open(ctx context.Context, opts Options) (*Database, error) {
	if opts.PostgresDSN != "" {
		db, err := openPostgres(ctx, opts.PostgresDSN)
		if err == nil {
			log.Info().Str("backend", string(BackendPostgres)).Msg("database connected")
			return &Database{db: db, backend: BackendPostgres}, nil
		}
		log.Warn().Err(err).Msg("postgres unavailable, falling back to sqlite")
	}

	db, err := openSQLite(ctx, opts.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	log.Info().Str("backend", string(BackendSQLite)).Str("path", opts.SQLitePath).Msg("database connected")
	return &Database{db: db, backend: BackendSQLite}, nil
}

func openPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return db, nil
}

func openSQLite(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// Enable foreign keys
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// Backend returns the backend tag of the open connection.
func (d *Database) Backend() Backend {
	return d.backend
}

// GetDB returns the underlying database connection.
func (d *Database) GetDB() *sql.DB {
	return d.db
}

func (d *Database) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return d.db.ExecContext(ctx, d.rebind(query), args...)
}

func (d *Database) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return d.db.QueryRowContext(ctx, d.rebind(query), args...)
}

func (d *Database) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.db.QueryContext(ctx, d.rebind(query), args...)
}

func (d *Database) begin(ctx context.Context) (*sql.Tx, error) {
	return d.db.BeginTx(ctx, nil)
}

// rebind rewrites ? placeholders to the $n form PostgreSQL expects.
func (d *Database) rebind(query string) string {
	if d.backend != BackendPostgres {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Helper functions
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func fromNull(s sql.NullString) string {
	if s.Valid {
		return s.String
	}
	return ""
}
