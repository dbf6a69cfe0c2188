// Package names caches UUID to display-name mappings.
//
// signal-cli provides no way to look up a name from a UUID, so mappings
// discovered in incoming envelopes are persisted here and consulted when
// building sender filters.
package names

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Cache is a persistent UUID<->name store backed by SQLite.
type Cache struct {
	log *slog.Logger
	db  *sql.DB
}

// Open initializes or connects to the cache database at path, creating
// parent directories as needed.
func Open(path string, log *slog.Logger) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()

			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	const schema = `CREATE TABLE IF NOT EXISTS name_mappings (
        uuid       TEXT PRIMARY KEY,
        name       TEXT NOT NULL,
        updated_at TEXT NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_name_mappings_name ON name_mappings(name);`

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Cache{
		log: log.With("component", "names"),
		db:  db,
	}, nil
}

// Close closes the underlying database connection.
func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}

	return c.db.Close()
}

// Add stores or updates a UUID->name mapping. Empty values are ignored.
func (c *Cache) Add(ctx context.Context, uuid, name string) error {
	uuid = strings.TrimSpace(uuid)
	name = strings.TrimSpace(name)

	if uuid == "" || name == "" {
		return nil
	}

	_, err := c.db.ExecContext(
		ctx,
		`INSERT INTO name_mappings (uuid, name, updated_at) VALUES (?, ?, ?)
         ON CONFLICT(uuid) DO UPDATE SET name = excluded.name, updated_at = excluded.updated_at`,
		uuid,
		name,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("store mapping: %w", err)
	}

	c.log.Debug("cached mapping", "uuid", uuid, "name", name)

	return nil
}

// Name returns the display name cached for uuid.
func (c *Cache) Name(ctx context.Context, uuid string) (string, bool) {
	var name string

	err := c.db.QueryRowContext(
		ctx, `SELECT name FROM name_mappings WHERE uuid = ?`, uuid,
	).Scan(&name)
	if err != nil {
		if !stderrors.Is(err, sql.ErrNoRows) {
			c.log.Warn("name lookup failed", "uuid", uuid, "error", err)
		}

		return "", false
	}

	return name, true
}

// UUID returns the UUID cached for a display name (reverse lookup). When
// several UUIDs share the name, the most recently updated one wins.
func (c *Cache) UUID(ctx context.Context, name string) (string, bool) {
	var uuid string

	err := c.db.QueryRowContext(
		ctx,
		`SELECT uuid FROM name_mappings WHERE name = ? ORDER BY updated_at DESC LIMIT 1`,
		name,
	).Scan(&uuid)
	if err != nil {
		if !stderrors.Is(err, sql.ErrNoRows) {
			c.log.Warn("uuid lookup failed", "name", name, "error", err)
		}

		return "", false
	}

	return uuid, true
}
