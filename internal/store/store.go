// Package store is the durable record of messages, schedules and user
// state. It speaks database/sql and runs against either sqlite
// (modernc.org/sqlite, the default) or Postgres (pgx stdlib driver),
// selected by the database URL scheme.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by point lookups when no row matches.
var ErrNotFound = errors.New("store: not found")

type Store struct {
	db       *sql.DB
	postgres bool
}

// Open connects to the database named by url. Supported forms:
// "sqlite:path/to.db", a bare file path (sqlite), or a postgres:// URL.
func Open(url string) (*Store, error) {
	driver, dsn, postgres, err := resolveDriver(url)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", driver, err)
	}

	return &Store{db: db, postgres: postgres}, nil
}

func resolveDriver(url string) (driver, dsn string, postgres bool, err error) {
	switch {
	case url == "":
		return "", "", false, errors.New("store: empty database url")
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return "pgx", url, true, nil
	case strings.HasPrefix(url, "sqlite:"):
		return "sqlite", sqliteDSN(strings.TrimPrefix(url, "sqlite:")), false, nil
	default:
		return "sqlite", sqliteDSN(url), false, nil
	}
}

// sqliteDSN enables WAL and a busy timeout so the dispatcher, the
// interactive session and the webhook process can share one database file.
func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Init creates the schema. Safe to call on every startup.
func (s *Store) Init(ctx context.Context) error {
	ddl := sqliteSchema
	if s.postgres {
		ddl = postgresSchema
	}
	for _, stmt := range ddl {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: init schema: %w", err)
		}
	}
	return nil
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		phone_number TEXT NOT NULL,
		direction TEXT NOT NULL,
		message_text TEXT NOT NULL,
		timestamp_ns INTEGER NOT NULL,
		transport_message_id TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_phone_time
		ON messages (phone_number, timestamp_ns, id)`,
	`CREATE TABLE IF NOT EXISTS scheduled_messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		book TEXT NOT NULL,
		chapter INTEGER NOT NULL,
		start_verse INTEGER NOT NULL,
		end_verse INTEGER NOT NULL,
		schedule_time TEXT NOT NULL,
		include_reflection INTEGER NOT NULL DEFAULT 1,
		recipient_number TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		last_fired_date TEXT,
		last_error TEXT,
		created_at_ns INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS user_state (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at_ns INTEGER NOT NULL
	)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS messages (
		id BIGSERIAL PRIMARY KEY,
		phone_number TEXT NOT NULL,
		direction TEXT NOT NULL,
		message_text TEXT NOT NULL,
		timestamp_ns BIGINT NOT NULL,
		transport_message_id TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_phone_time
		ON messages (phone_number, timestamp_ns, id)`,
	`CREATE TABLE IF NOT EXISTS scheduled_messages (
		id BIGSERIAL PRIMARY KEY,
		book TEXT NOT NULL,
		chapter INTEGER NOT NULL,
		start_verse INTEGER NOT NULL,
		end_verse INTEGER NOT NULL,
		schedule_time TEXT NOT NULL,
		include_reflection INTEGER NOT NULL DEFAULT 1,
		recipient_number TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		last_fired_date TEXT,
		last_error TEXT,
		created_at_ns BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS user_state (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at_ns BIGINT NOT NULL
	)`,
}

// rebind converts ?-style placeholders to $n for postgres. Query text in
// this package never contains a literal '?'.
func (s *Store) rebind(query string) string {
	if !s.postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
