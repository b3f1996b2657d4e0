// Package sqlstore implements store.Store on database/sql for SQLite
// (modernc.org/sqlite) and PostgreSQL (pgx).
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/cleared-dev/pocketledger/internal/log"
	"github.com/cleared-dev/pocketledger/internal/store"
)

// Dialect names a supported database.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// ParseDialect validates a configured driver name.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	}
	return "", fmt.Errorf("unsupported database driver %q", s)
}

// Store is a store.Store backed by a SQL database.
type Store struct {
	db      *sql.DB
	dialect Dialect
	logger  *log.Logger
}

var _ store.Store = (*Store)(nil)

// Open connects to the database, runs pending migrations and returns the store.
// For SQLite, dsn is a file path.
func Open(ctx context.Context, dialect Dialect, dsn string, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.Nop()
	}
	if err := RunMigrations(dialect, dsn); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	db, err := openDB(dialect, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	logger.Info("database ready", log.FieldDriver, string(dialect))
	return &Store{db: db, dialect: dialect, logger: logger.WithComponent("store")}, nil
}

func openDB(dialect Dialect, dsn string) (*sql.DB, error) {
	switch dialect {
	case SQLite:
		if dir := filepath.Dir(dsn); dir != "." && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create db directory: %w", err)
			}
		}
		db, err := sql.Open("sqlite", sqliteDSN(dsn))
		if err != nil {
			return nil, fmt.Errorf("open sqlite database: %w", err)
		}
		// One writer at a time; BEGIN IMMEDIATE takes the write lock up front.
		db.SetMaxOpenConns(1)
		return db, nil

	case Postgres:
		cfg, err := pgx.ParseConfig(dsn)
		if err != nil {
			return nil, fmt.Errorf("parse database URL: %w", err)
		}
		return stdlib.OpenDB(*cfg), nil
	}
	return nil, fmt.Errorf("unsupported dialect %q", dialect)
}

func sqliteDSN(path string) string {
	if strings.HasPrefix(path, "file:") || strings.Contains(path, "?") {
		return path
	}
	return "file:" + path + "?_txlock=immediate&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// Close releases the connection pool.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// InTx runs fn inside a database transaction.
func (s *Store) InTx(ctx context.Context, fn func(store.Tx) error) (err error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&tx{tx: sqlTx, dialect: s.dialect}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			s.logger.Error("rollback failed", log.FieldError, rbErr)
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type tx struct {
	tx      *sql.Tx
	dialect Dialect
}

// rebind rewrites ? placeholders as $1, $2, ... for PostgreSQL.
func (t *tx) rebind(q string) string {
	if t.dialect != Postgres {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}

func (t *tx) exec(ctx context.Context, q string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, t.rebind(q), args...)
}

func (t *tx) query(ctx context.Context, q string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, t.rebind(q), args...)
}

func (t *tx) queryRow(ctx context.Context, q string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, t.rebind(q), args...)
}

// forUpdate returns the row-lock suffix for the dialect. SQLite
// transactions already hold the database write lock.
func (t *tx) forUpdate() string {
	if t.dialect == Postgres {
		return " FOR UPDATE"
	}
	return ""
}

// mustAffect turns a zero-row update into store.ErrNotFound.
func mustAffect(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, store.ErrNotFound)
	}
	return nil
}

func wrapNotFound(err error, kind, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", kind, id, store.ErrNotFound)
	}
	return fmt.Errorf("get %s %s: %w", kind, id, err)
}
