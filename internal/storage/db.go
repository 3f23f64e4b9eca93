package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"

	// Import sqlite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// ErrNotFound is returned when a statement matches no row.
var ErrNotFound = errors.New("not found")

// PersistenceError is returned for any failure of the underlying driver.
// Its message is safe to show; the driver diagnostic is only reachable
// through Unwrap and the log.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return "database error during " + e.Op
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Params binds named placeholders (":name") in a statement template.
type Params map[string]any

func (p Params) args() []any {
	if len(p) == 0 {
		return nil
	}
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)

	args := make([]any, 0, len(names))
	for _, name := range names {
		args = append(args, sql.Named(name, p[name]))
	}
	return args
}

// StatementResult describes the effect of Execute.
type StatementResult struct {
	RowsAffected int64
	// LastInsertID is only meaningful when the statement was an INSERT.
	LastInsertID int64
}

// Row is satisfied by *sql.Row and *sql.Rows.
type Row interface {
	Scan(dest ...any) error
}

// DB wraps a sql.DB connection.
type DB struct {
	conn *sql.DB
	log  *zap.Logger
}

// NewDB opens a database connection and runs migrations.
func NewDB(path string, logger *zap.Logger) (*DB, error) {
	db, err := Open(path, logger)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Open opens a database connection without touching the schema.
func Open(path string, logger *zap.Logger) (*DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	conn, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, err
	}
	if path == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return &DB{conn: conn, log: logger.Named("storage")}, nil
}

// filePragmas make overlapping writers on a file database wait for the lock
// instead of failing with SQLITE_BUSY.
var filePragmas = []string{
	"_pragma=busy_timeout(5000)",
	"_pragma=journal_mode(WAL)",
	"_txlock=immediate",
}

func dsn(path string) string {
	if path == ":memory:" {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + strings.Join(filePragmas, "&")
}

func (db *DB) migrator() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("open migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(db.conn, &migratesqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("init migration driver: %w", err)
	}
	return migrate.NewWithInstance("iofs", src, "sqlite", driver)
}

// Migrate applies all pending up migrations.
func (db *DB) Migrate() error {
	m, err := db.migrator()
	if err != nil {
		return err
	}
	// not closed: m.Close closes db.conn through the driver

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// SchemaVersion reports the applied migration version.
func (db *DB) SchemaVersion() (version uint, dirty bool, err error) {
	m, err := db.migrator()
	if err != nil {
		return 0, false, err
	}
	version, dirty, err = m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

// Ping checks that the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return db.fail(ctx, "ping", "", err)
	}
	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Execute runs a statement that returns no rows.
func (db *DB) Execute(ctx context.Context, query string, params Params) (StatementResult, error) {
	res, err := db.conn.ExecContext(ctx, query, params.args()...)
	if err != nil {
		return StatementResult{}, db.fail(ctx, "execute", query, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return StatementResult{}, db.fail(ctx, "execute", query, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return StatementResult{}, db.fail(ctx, "execute", query, err)
	}
	return StatementResult{RowsAffected: affected, LastInsertID: id}, nil
}

// FetchOne scans the first row of the result into dest.
// It returns ErrNotFound when the statement yields no rows.
func (db *DB) FetchOne(ctx context.Context, query string, params Params, dest ...any) error {
	err := db.conn.QueryRowContext(ctx, query, params.args()...).Scan(dest...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return db.fail(ctx, "fetch_one", query, err)
	}
	return nil
}

// FetchAll calls scan once per row, in the order the statement returns them.
func (db *DB) FetchAll(ctx context.Context, query string, params Params, scan func(Row) error) error {
	rows, err := db.conn.QueryContext(ctx, query, params.args()...)
	if err != nil {
		return db.fail(ctx, "fetch_all", query, err)
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return db.fail(ctx, "fetch_all", query, err)
		}
	}
	if err := rows.Err(); err != nil {
		return db.fail(ctx, "fetch_all", query, err)
	}
	return nil
}

func (db *DB) fail(ctx context.Context, op, query string, err error) error {
	fields := []zap.Field{zap.String("op", op), zap.Error(err)}
	if query != "" {
		fields = append(fields, zap.String("query", query))
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		fields = append(fields, zap.NamedError("ctx", ctxErr))
	}
	db.log.Error("database statement failed", fields...)
	return &PersistenceError{Op: op, Err: err}
}
