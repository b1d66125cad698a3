// Package store persists the scratch document and user settings in SQLite.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Driver names accepted by Open.
const (
	DriverModernc = "sqlite"  // pure Go, the default
	DriverCgo     = "sqlite3" // mattn/go-sqlite3
)

// ScratchKey is the document the editor restores on startup.
const ScratchKey = "scratch"

// Setting keys.
const (
	SettingTheme = "theme"
)

// ErrNotFound is returned when a key has no stored value.
var ErrNotFound = errors.New("not found")

// Document is a stored diagram source.
type Document struct {
	Key       string
	Source    string
	UpdatedAt time.Time
}

// DB handles document and settings persistence.
type DB struct {
	db     *sql.DB
	driver string
}

// Open opens or creates the database at dbPath using driver. An empty
// driver selects DriverModernc. ":memory:" opens a private in-memory store.
func Open(driver, dbPath string) (*DB, error) {
	switch driver {
	case "":
		driver = DriverModernc
	case DriverModernc, DriverCgo:
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}

	if dbPath != ":memory:" {
		// Ensure directory exists
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open(driver, dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	sdb := &DB{db: db, driver: driver}
	if err := sdb.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return sdb, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// Driver returns the SQL driver name in use.
func (d *DB) Driver() string {
	return d.driver
}

func (d *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		key TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`

	_, err := d.db.Exec(schema)
	return err
}

// SaveDocument inserts or replaces the document stored under key.
func (d *DB) SaveDocument(key, source string) error {
	_, err := d.db.Exec(`
		INSERT INTO documents (key, source, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET source = excluded.source, updated_at = excluded.updated_at
	`, key, source, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("save document %s: %w", key, err)
	}
	return nil
}

// LoadDocument returns the document stored under key.
func (d *DB) LoadDocument(key string) (*Document, error) {
	doc := Document{Key: key}
	var updated int64
	err := d.db.QueryRow(`
		SELECT source, updated_at FROM documents WHERE key = ?
	`, key).Scan(&doc.Source, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load document %s: %w", key, err)
	}
	doc.UpdatedAt = time.Unix(0, updated)
	return &doc, nil
}

// DeleteDocument removes the document stored under key.
func (d *DB) DeleteDocument(key string) error {
	_, err := d.db.Exec(`DELETE FROM documents WHERE key = ?`, key)
	return err
}

// Documents returns all stored documents, most recently updated first.
func (d *DB) Documents() ([]Document, error) {
	rows, err := d.db.Query(`
		SELECT key, source, updated_at
		FROM documents
		ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		var updated int64
		if err := rows.Scan(&doc.Key, &doc.Source, &updated); err != nil {
			return nil, err
		}
		doc.UpdatedAt = time.Unix(0, updated)
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// SetSetting stores value under key.
func (d *DB) SetSetting(key, value string) error {
	_, err := d.db.Exec(`
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("save setting %s: %w", key, err)
	}
	return nil
}

// Setting returns the value stored under key.
func (d *DB) Setting(key string) (string, error) {
	var value string
	err := d.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("setting %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("load setting %s: %w", key, err)
	}
	return value, nil
}

// DefaultPath returns the database location under the user's data
// directory, honoring XDG_DATA_HOME.
func DefaultPath() (string, error) {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "dv", "dv.db"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "dv", "dv.db"), nil
}
