package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	// Postgres driver registered as "pgx".
	_ "github.com/jackc/pgx/v5/stdlib"
	// Pure Go SQLite driver (no CGO), registered as "sqlite".
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when an operation requires a row that does not exist.
var ErrNotFound = errors.New("not found")

// Driver selects the database backend.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Store owns the database handle and provides access to repositories.
type Store struct {
	db      *sql.DB
	drv     *entsql.Driver
	dialect string

	// mu serializes ID allocation with the insert that consumes the ID.
	mu sync.Mutex
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open connects to the database and creates any missing tables.
func Open(ctx context.Context, driver Driver, dsn string) (*Store, error) {
	var drvName, dia string
	switch driver {
	case DriverSQLite:
		drvName, dia = "sqlite", dialect.SQLite
	case DriverPostgres:
		drvName, dia = "pgx", dialect.Postgres
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{
		db:      db,
		drv:     entsql.OpenDB(dia, db),
		dialect: dia,
	}
	if err := s.migrate(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}
	return s, nil
}

// OpenSQLite opens a SQLite database file with the recommended pragmas.
func OpenSQLite(ctx context.Context, path string) (*Store, error) {
	return Open(ctx, DriverSQLite, SQLiteDSN(path))
}

// SQLiteDSN builds a modernc DSN for path with pragmas applied on every
// pooled connection.
func SQLiteDSN(path string) string {
	pragmas := []string{
		"foreign_keys(1)",
		"busy_timeout(5000)",
		"synchronous(NORMAL)",
	}
	// WAL is meaningless for in-memory databases.
	if !strings.Contains(path, "mode=memory") && path != ":memory:" {
		pragmas = append(pragmas, "journal_mode(WAL)")
	}

	q := url.Values{}
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}

	dsn := path
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + q.Encode()
}

// DB returns the underlying *sql.DB for raw queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect returns the SQL dialect in use.
func (s *Store) Dialect() string {
	return s.dialect
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.drv.Close()
}

// Sessions returns a SessionRepo backed by this store.
func (s *Store) Sessions() SessionRepo {
	return &sessionRepo{s: s}
}

// Modules returns a ModuleRepo backed by this store.
func (s *Store) Modules() ModuleRepo {
	return &moduleRepo{s: s}
}

// Configs returns a ConfigRepo backed by this store.
func (s *Store) Configs() ConfigRepo {
	return &configRepo{s: s}
}

// Tasks returns a TaskRepo backed by this store.
func (s *Store) Tasks() TaskRepo {
	return &taskRepo{s: s}
}

// Skills returns a SkillRepo backed by this store.
func (s *Store) Skills() SkillRepo {
	return &skillRepo{s: s}
}

func (s *Store) builder() *entsql.DialectBuilder {
	return entsql.Dialect(s.dialect)
}

// withTx runs fn inside a transaction, rolling back on error.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// nextID returns MAX(column)+1 for table, or 1 when the table is empty.
func (s *Store) nextID(ctx context.Context, q querier, table, column string) (int, error) {
	b := s.builder()
	query, args := b.Select(entsql.Max(column)).From(b.Table(table)).Query()

	var max sql.NullInt64
	if err := q.QueryRowContext(ctx, query, args...).Scan(&max); err != nil {
		return 0, fmt.Errorf("next %s id: %w", table, err)
	}
	return int(max.Int64) + 1, nil
}

// insert writes one row. When *id is zero a fresh ID is allocated first and
// written back through id.
func (s *Store) insert(ctx context.Context, table, idColumn string, id *int, columns []string, values []any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if *id == 0 {
		next, err := s.nextID(ctx, s.db, table, idColumn)
		if err != nil {
			return err
		}
		*id = next
	}

	query, args := s.builder().Insert(table).
		Columns(append([]string{idColumn}, columns...)...).
		Values(append([]any{*id}, values...)...).
		Query()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}
	return nil
}

// exec runs a builder-produced statement and reports ErrNotFound when it
// touched no rows.
func exec(ctx context.Context, q querier, query string, args []any) error {
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DefaultDBPath resolves the database file path in priority order:
// 1. TRAINER_DB environment variable
// 2. $XDG_DATA_HOME/trainer/trainer.db
// 3. ~/.local/share/trainer/trainer.db
func DefaultDBPath() (string, error) {
	if p := os.Getenv("TRAINER_DB"); p != "" {
		return p, EnsureDir(p)
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	p := filepath.Join(dataHome, "trainer", "trainer.db")
	return p, EnsureDir(p)
}

// EnsureDir creates the parent directory of path if it doesn't exist.
func EnsureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
