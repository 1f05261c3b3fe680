// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY modernc.org/sqlite?
// It is a pure Go translation of SQLite, so the binary builds without a C
// toolchain. The driver registers itself with database/sql as "sqlite".
//
// CONCURRENCY MODEL:
// The database runs in WAL mode. A reader that started before a write
// transaction commits keeps seeing the previous snapshot, which is what the
// corpus import relies on: a table replacement is DELETE + INSERT inside one
// transaction, and no reader ever observes the empty table in between.
// Every other write is a single statement (upsert or conditional update).
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/sakif/quran-notes/internal/repository"

	_ "modernc.org/sqlite"
)

// pragmas are applied by the driver to every new pool connection.
// foreign_keys and busy_timeout are per-connection settings, so running them
// once with Exec would only configure whichever connection happened to run it.
var pragmas = []string{
	"journal_mode(WAL)",
	"foreign_keys(1)",
	"busy_timeout(5000)",
}

// DB wraps a sql.DB connection pool and implements every repository interface.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/quran-notes.db" → file-based database
//   - ":memory:"            → in-memory database, pinned to one connection
//     because each new in-memory connection would be a separate database
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

func dsn(dbPath string) string {
	params := make([]string, 0, len(pragmas))
	for _, p := range pragmas {
		params = append(params, "_pragma="+p)
	}
	return dbPath + "?" + strings.Join(params, "&")
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite: ping: %w", err)
	}
	return nil
}

// migrate creates the schema. CREATE ... IF NOT EXISTS keeps it idempotent.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			username      TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL DEFAULT '',
			github_id     INTEGER UNIQUE,
			role          TEXT NOT NULL DEFAULT 'user'
			              CHECK (role IN ('public', 'user', 'ulama', 'admin')),
			approved      INTEGER NOT NULL DEFAULT 0,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_users_approved ON users(approved);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// Reference data. word_positions deliberately has no foreign key to
	// dictionary: a mapping may be imported before (or without) the matching
	// dictionary rows, and the gap surfaces as an orphan on read.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS dictionary (
			word_id      TEXT PRIMARY KEY,
			arabic       TEXT NOT NULL,
			diacritics   TEXT NOT NULL DEFAULT '',
			translations TEXT NOT NULL DEFAULT '{}'
		);

		CREATE TABLE IF NOT EXISTS word_positions (
			surah    INTEGER NOT NULL,
			ayah     INTEGER NOT NULL,
			position INTEGER NOT NULL,
			word_id  TEXT NOT NULL,
			PRIMARY KEY (surah, ayah, position)
		);

		CREATE TABLE IF NOT EXISTS verse_translations (
			surah       INTEGER NOT NULL,
			ayah        INTEGER NOT NULL,
			language    TEXT NOT NULL,
			arabic      TEXT NOT NULL DEFAULT '',
			translation TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (surah, ayah, language)
		);
		CREATE INDEX IF NOT EXISTS idx_verse_translations_language
			ON verse_translations(language, surah, ayah);
	`)
	if err != nil {
		return fmt.Errorf("creating corpus tables: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS highlights (
			user_id    TEXT NOT NULL REFERENCES users(id),
			surah      INTEGER NOT NULL,
			ayah       INTEGER NOT NULL,
			position   INTEGER NOT NULL,
			color      TEXT NOT NULL,
			note       TEXT NOT NULL DEFAULT '',
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, surah, ayah, position)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating highlights table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS contributions (
			id          TEXT PRIMARY KEY,
			author_id   TEXT NOT NULL REFERENCES users(id),
			kind        TEXT NOT NULL CHECK (kind IN ('tafsir', 'theme', 'generic')),
			reference   TEXT NOT NULL,
			content     TEXT NOT NULL,
			status      TEXT NOT NULL DEFAULT 'pending'
			            CHECK (status IN ('pending', 'approved', 'rejected')),
			reviewer_id TEXT REFERENCES users(id),
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			reviewed_at DATETIME
		);
		CREATE INDEX IF NOT EXISTS idx_contributions_status ON contributions(status, created_at);
		CREATE INDEX IF NOT EXISTS idx_contributions_author ON contributions(author_id, created_at);
		CREATE INDEX IF NOT EXISTS idx_contributions_reference ON contributions(reference, created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating contributions table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS import_runs (
			id          TEXT PRIMARY KEY,
			table_name  TEXT NOT NULL,
			language    TEXT NOT NULL DEFAULT '',
			accepted    INTEGER NOT NULL,
			rejected    INTEGER NOT NULL,
			digest      TEXT NOT NULL,
			imported_by TEXT NOT NULL,
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_import_runs_created_at ON import_runs(created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating import_runs table: %w", err)
	}

	return nil
}

// clampList applies the default and maximum page size used by every listing.
func clampList(opts repository.ListOptions) (limit, offset int) {
	limit = opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset = opts.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// isUniqueConstraintErr reports whether err is a UNIQUE or PRIMARY KEY violation.
func isUniqueConstraintErr(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "unique constraint") || strings.Contains(s, "constraint failed: unique")
}
