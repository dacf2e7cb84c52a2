package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/faucetdb/tollgate/internal/auth"
	"github.com/faucetdb/tollgate/internal/clock"
)

var (
	// ErrNotFound is returned when a requested key does not exist in the store.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a key with the same value is already stored.
	ErrConflict = errors.New("key already exists")

	// ErrUnstorableKey is returned when a key contains bytes outside
	// printable ASCII, which the key columns cannot hold.
	ErrUnstorableKey = errors.New("key is not printable ASCII")
)

// Supported values for Config.Driver.
const (
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// Config selects and tunes the database backing the store.
type Config struct {
	Driver          string
	DSN             string // empty DSN with the sqlite driver means in-memory
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Store persists expiring keys. It is keyed by the key value and stores the
// expiry instant verbatim as nanoseconds since the epoch.
type Store struct {
	db     *sqlx.DB
	driver string
}

// Open connects to the configured database and runs migrations.
func Open(cfg Config) (*Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverSQLite
	}

	var (
		db  *sqlx.DB
		err error
	)
	switch driver {
	case DriverSQLite:
		db, err = openSQLite(cfg.DSN)
	case DriverMySQL:
		db, err = sqlx.Connect("mysql", cfg.DSN)
	case DriverPostgres:
		db, err = sqlx.Connect("pgx", cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported driver: %s (available: %s, %s, %s)",
			driver, DriverSQLite, DriverMySQL, DriverPostgres)
	}
	if err != nil {
		return nil, fmt.Errorf("%s connect: %w", driver, err)
	}

	if driver != DriverSQLite {
		if cfg.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			db.SetMaxIdleConns(cfg.MaxIdleConns)
		}
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	s := &Store{db: db, driver: driver}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate key database: %w", err)
	}
	return s, nil
}

func openSQLite(path string) (*sqlx.DB, error) {
	var dsn string
	if path == "" {
		dsn = ":memory:?_journal_mode=WAL"
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		dsn = path
		if !strings.Contains(dsn, "?") {
			dsn += "?_journal_mode=WAL&_busy_timeout=5000"
		}
	}

	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes
	return db, nil
}

// Driver returns the name of the configured driver.
func (s *Store) Driver() string {
	return s.driver
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type keyRow struct {
	ID         int64  `db:"id"`
	Key        string `db:"access_key"`
	ValidUntil int64  `db:"valid_until"`
}

func (r keyRow) toKey() (auth.ExpiringKey, error) {
	k, err := auth.ParseKey(r.Key)
	if err != nil {
		return auth.ExpiringKey{}, fmt.Errorf("stored key %d: %w", r.ID, err)
	}
	return auth.ExpiringKey{Key: k, ValidUntil: clock.Instant(r.ValidUntil)}, nil
}

// AddKey inserts a key. It returns ErrConflict if the key is already stored.
func (s *Store) AddKey(ctx context.Context, k auth.ExpiringKey) error {
	if !storable(k.Key) {
		return ErrUnstorableKey
	}
	q := s.db.Rebind("INSERT INTO access_keys (access_key, valid_until) VALUES (?, ?)")
	if _, err := s.db.ExecContext(ctx, q, k.Key.String(), int64(k.ValidUntil)); err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert key: %w", err)
	}
	return nil
}

// GetKey returns the stored key equal to key.
func (s *Store) GetKey(ctx context.Context, key auth.Key) (auth.ExpiringKey, error) {
	if !storable(key) {
		return auth.ExpiringKey{}, ErrNotFound
	}
	var row keyRow
	q := s.db.Rebind("SELECT id, access_key, valid_until FROM access_keys WHERE access_key = ?")
	if err := s.db.GetContext(ctx, &row, q, key.String()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return auth.ExpiringKey{}, ErrNotFound
		}
		return auth.ExpiringKey{}, fmt.Errorf("get key: %w", err)
	}
	return row.toKey()
}

// ListKeys returns all stored keys ordered by expiry.
func (s *Store) ListKeys(ctx context.Context) ([]auth.ExpiringKey, error) {
	var rows []keyRow
	q := "SELECT id, access_key, valid_until FROM access_keys ORDER BY valid_until, id"
	if err := s.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}

	keys := make([]auth.ExpiringKey, 0, len(rows))
	for _, r := range rows {
		k, err := r.toKey()
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// RemoveKey deletes a key. It returns ErrNotFound if nothing was deleted.
func (s *Store) RemoveKey(ctx context.Context, key auth.Key) error {
	if !storable(key) {
		return ErrNotFound
	}
	q := s.db.Rebind("DELETE FROM access_keys WHERE access_key = ?")
	result, err := s.db.ExecContext(ctx, q, key.String())
	if err != nil {
		return fmt.Errorf("delete key: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// RemoveExpired deletes every key whose expiry is strictly before now and
// returns how many were removed.
func (s *Store) RemoveExpired(ctx context.Context, now clock.Instant) (int64, error) {
	q := s.db.Rebind("DELETE FROM access_keys WHERE valid_until < ?")
	result, err := s.db.ExecContext(ctx, q, int64(now))
	if err != nil {
		return 0, fmt.Errorf("delete expired keys: %w", err)
	}
	return result.RowsAffected()
}

// storable reports whether key consists of printable ASCII only. Anything
// else cannot have been stored, and some drivers reject it as a query
// argument (Postgres refuses invalid UTF-8).
func storable(key auth.Key) bool {
	str := key.String()
	for i := 0; i < len(str); i++ {
		if str[i] < 0x21 || str[i] > 0x7e {
			return false
		}
	}
	return true
}

// isUniqueViolation reports whether err is a unique constraint violation
// from any of the supported drivers.
func isUniqueViolation(err error) bool {
	var myErr *mysqldriver.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}
