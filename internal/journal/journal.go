// Package journal keeps an append-only record of tabs closed from the popup.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lotas/tabnav/internal/popup"
	_ "modernc.org/sqlite"
)

// Entry is one closed tab.
type Entry struct {
	ID         int64
	Source     string
	Group      string
	TabID      int
	Title      string
	URL        string
	FavIconURL string
	ClosedAt   time.Time
}

// migration is a numbered schema change. Migrations are applied in order
// and tracked in the schema_migrations table so each runs exactly once.
type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "closed tabs",
		SQL: `
CREATE TABLE IF NOT EXISTS closed_tabs (
    id          INTEGER PRIMARY KEY,
    source      TEXT NOT NULL,
    group_key   TEXT NOT NULL,
    tab_id      INTEGER NOT NULL,
    title       TEXT NOT NULL,
    url         TEXT NOT NULL,
    favicon_url TEXT NOT NULL DEFAULT '',
    closed_at   INTEGER NOT NULL
);`,
	},
	{
		Version:     2,
		Description: "index closed tabs by time",
		SQL:         `CREATE INDEX IF NOT EXISTS idx_closed_tabs_closed_at ON closed_tabs(closed_at);`,
	},
}

// OpenDB opens (or creates) the journal database at path and migrates it.
func OpenDB(path string) (*sql.DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrency.
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}

func runMigrations(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version     INTEGER PRIMARY KEY,
		description TEXT NOT NULL,
		applied_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	for _, m := range migrations {
		var exists int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", m.Version).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if exists > 0 {
			continue
		}

		if _, err := db.Exec(m.SQL); err != nil {
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Description, err)
		}
		if _, err := db.Exec(
			"INSERT INTO schema_migrations (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
	}
	return nil
}

// DefaultDBPath returns the default database file path:
// ~/.local/share/tabnav/journal.db
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "tabnav", "journal.db"), nil
}

// Journal writes closed tabs for one tab source.
type Journal struct {
	db     *sql.DB
	source string
}

func New(db *sql.DB, source string) *Journal {
	return &Journal{db: db, source: source}
}

// RecordClosed appends a closed tab.
func (j *Journal) RecordClosed(ctx context.Context, c popup.ClosedTab) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO closed_tabs (source, group_key, tab_id, title, url, favicon_url, closed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		j.source, c.Group, c.Tab.ID, c.Tab.Title, c.Tab.URL, c.Tab.FavIconURL, c.ClosedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert closed tab: %w", err)
	}
	return nil
}

// List returns the most recently closed tabs first. limit <= 0 means all.
func List(ctx context.Context, db *sql.DB, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.QueryContext(ctx,
		`SELECT id, source, group_key, tab_id, title, url, favicon_url, closed_at
		 FROM closed_tabs ORDER BY closed_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query closed tabs: %w", err)
	}
	defer rows.Close()

	var result []Entry
	for rows.Next() {
		var e Entry
		var closedAt int64
		if err := rows.Scan(&e.ID, &e.Source, &e.Group, &e.TabID, &e.Title, &e.URL, &e.FavIconURL, &closedAt); err != nil {
			return nil, fmt.Errorf("scan closed tab: %w", err)
		}
		e.ClosedAt = time.UnixMilli(closedAt)
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate closed tabs: %w", err)
	}
	return result, nil
}
