// Package store implements the transactional executor over the relational
// engine holding template metadata. It speaks two dialects, SQLite
// (modernc.org/sqlite) and Postgres (pgx through database/sql), behind one
// statement-oriented interface: Execute, FetchOne, FetchAll and RunAtomic,
// plus the table introspection the template engine needs for dynamic tables.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/omicsdb/metaprep/pkg/types"
)

// Statement is one SQL statement queued for atomic execution. Placeholders
// use `?` regardless of dialect; the store rebinds for Postgres.
type Statement struct {
	SQL  string
	Args []any
}

// Row is a single result row keyed by column name.
type Row map[string]any

// DB wraps a database/sql handle with dialect-specific behavior.
type DB struct {
	db      *sql.DB
	dialect dialect
}

// Open connects to the store selected by cfg, applies the fixed schema and
// seed rows if they are not present, and returns the handle.
func Open(cfg types.Config) (*DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var d dialect
	switch cfg.Driver {
	case types.DriverSQLite:
		d = sqliteDialect{}
	case types.DriverPostgres:
		d = postgresDialect{}
	}

	dsn := cfg.DSN
	if dsn == "" {
		dsn = d.defaultDSN(cfg)
	}
	if cfg.Driver == types.DriverSQLite {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open(d.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}
	if err := db.PingContext(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Driver, err)
	}

	s := &DB{db: db, dialect: d}
	if err := s.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying connection pool.
func (s *DB) Close() error {
	return s.db.Close()
}

// Dialect reports the active driver name ("sqlite" or "postgres").
func (s *DB) Dialect() string {
	return s.dialect.name()
}

// ensureSchema applies the embedded fixed schema. The DDL is idempotent
// (CREATE TABLE IF NOT EXISTS plus conflict-ignoring seed inserts).
func (s *DB) ensureSchema(ctx context.Context) error {
	for _, stmt := range splitStatements(s.dialect.schema()) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// Execute runs a single statement without returning rows.
func (s *DB) Execute(ctx context.Context, query string, args ...any) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.rebind(query), args...); err != nil {
		return fmt.Errorf("execute: %w", err)
	}
	return nil
}

// FetchOne runs a query expected to return at most one row. It returns
// types.ErrNotFound when the result set is empty.
func (s *DB) FetchOne(ctx context.Context, query string, args ...any) (Row, error) {
	rows, err := s.FetchAll(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, types.ErrNotFound
	}
	return rows[0], nil
}

// FetchAll runs a query and materializes every result row.
func (s *DB) FetchAll(ctx context.Context, query string, args ...any) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	var out []Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		r := make(Row, len(cols))
		for i, c := range cols {
			if b, ok := values[i].([]byte); ok {
				r[c] = string(b)
			} else {
				r[c] = values[i]
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// InsertReturningID runs an INSERT ... RETURNING <id> statement and scans the
// generated id. Both supported engines implement RETURNING.
func (s *DB) InsertReturningID(ctx context.Context, query string, args ...any) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(query), args...).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert returning id: %w", err)
	}
	return id, nil
}

// RunAtomic executes the queued statements in order inside one transaction.
// Either every statement commits or none does. The name identifies the
// transaction scope in error messages.
func (s *DB) RunAtomic(ctx context.Context, name string, stmts []Statement) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", name, err)
	}
	for _, st := range stmts {
		if _, err := tx.ExecContext(ctx, s.dialect.rebind(st.SQL), st.Args...); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				return fmt.Errorf("%s: %w (rollback: %v)", name, err, rbErr)
			}
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", name, err)
	}
	return nil
}

// TableExists reports whether a table with the given name exists.
func (s *DB) TableExists(ctx context.Context, table string) (bool, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, s.dialect.tableExistsQuery(), table).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("table exists: %w", err)
	}
	return n > 0, nil
}

// TableColumns returns the column names of a table in declaration order.
func (s *DB) TableColumns(ctx context.Context, table string) ([]string, error) {
	if err := CheckIdentifier(table); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, s.dialect.tableColumnsQuery(table), s.dialect.tableColumnsArgs(table)...)
	if err != nil {
		return nil, fmt.Errorf("table columns: %w", err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan column name: %w", err)
		}
		cols = append(cols, name)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("table columns: %w", types.ErrNotFound)
	}
	return cols, rows.Err()
}

// identRe constrains names that get interpolated into dynamic DDL/DML.
var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// CheckIdentifier rejects table or column names that cannot safely appear in
// interpolated SQL. Headers are lower-cased before they reach the store, so
// lowercase-only is the invariant, not a restriction.
func CheckIdentifier(name string) error {
	if !identRe.MatchString(name) {
		return fmt.Errorf("invalid identifier %q", name)
	}
	return nil
}

// IsNoRows reports whether err denotes an empty result from either the
// executor or database/sql directly.
func IsNoRows(err error) bool {
	return errors.Is(err, types.ErrNotFound) || errors.Is(err, sql.ErrNoRows)
}

// SQLitePath builds the default on-disk location of the SQLite database.
func SQLitePath(dataDir string) string {
	return filepath.Join(dataDir, "metaprep.db")
}
