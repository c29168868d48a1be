// Package history records the titles the user looked up in a small SQLite
// database, so they can be looked up again without searching. Availability
// is never stored; it is re-resolved on every lookup.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"streamscout/internal/config"
	"streamscout/internal/media"
	"streamscout/internal/provider"
)

// maxEntries bounds the table; the oldest rows are pruned on Save.
const maxEntries = 200

const schema = `
CREATE TABLE IF NOT EXISTS lookups (
	id            INTEGER NOT NULL,
	kind          TEXT    NOT NULL,
	name          TEXT    NOT NULL,
	date          TEXT    NOT NULL DEFAULT '',
	year          INTEGER NOT NULL DEFAULT 0,
	query         TEXT    NOT NULL DEFAULT '',
	looked_up_at  INTEGER NOT NULL,
	PRIMARY KEY (id, kind)
);
CREATE INDEX IF NOT EXISTS lookups_recent ON lookups (looked_up_at DESC);`

// open opens (and creates if needed) the history database.
func open() (*sql.DB, error) {
	path, err := config.HistoryPath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating history dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening history: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialising history: %w", err)
	}
	return db, nil
}

// Load returns all entries, most recent first. A missing database yields no
// entries.
func Load() ([]media.HistoryEntry, error) {
	path, err := config.HistoryPath()
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}

	db, err := open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.Query(`SELECT id, kind, name, date, year, query, looked_up_at
		FROM lookups ORDER BY looked_up_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}
	defer rows.Close()

	var entries []media.HistoryEntry
	for rows.Next() {
		var (
			e    media.HistoryEntry
			kind string
			ts   int64
		)
		if err := rows.Scan(&e.Title.ID, &kind, &e.Title.Name, &e.Title.Date, &e.Title.Year, &e.Query, &ts); err != nil {
			return nil, fmt.Errorf("reading history row: %w", err)
		}
		k, ok := media.ParseKind(kind)
		if !ok {
			continue // Skip rows written by something else
		}
		e.Title.Kind = k
		e.LookedUpAt = time.Unix(ts, 0)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}
	return entries, nil
}

// Save records a lookup, replacing any earlier entry for the same title.
func Save(entry media.HistoryEntry) error {
	if err := validateEntry(entry); err != nil {
		return err
	}
	if entry.LookedUpAt.IsZero() {
		entry.LookedUpAt = time.Now()
	}

	db, err := open()
	if err != nil {
		return err
	}
	defer db.Close()

	t := entry.Title
	_, err = db.Exec(`INSERT INTO lookups (id, kind, name, date, year, query, looked_up_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id, kind) DO UPDATE SET
			name = excluded.name,
			date = excluded.date,
			year = excluded.year,
			query = excluded.query,
			looked_up_at = excluded.looked_up_at`,
		t.ID, t.Kind.PathSegment(), t.Name, t.Date, t.Year, entry.Query, entry.LookedUpAt.Unix())
	if err != nil {
		return fmt.Errorf("writing history: %w", err)
	}

	_, err = db.Exec(`DELETE FROM lookups WHERE rowid NOT IN (
		SELECT rowid FROM lookups ORDER BY looked_up_at DESC, rowid DESC LIMIT ?)`, maxEntries)
	if err != nil {
		return fmt.Errorf("pruning history: %w", err)
	}
	return nil
}

// Remove deletes the entry for a title.
func Remove(id int64, kind media.Kind) error {
	db, err := open()
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.Exec(`DELETE FROM lookups WHERE id = ? AND kind = ?`, id, kind.PathSegment()); err != nil {
		return fmt.Errorf("removing history entry: %w", err)
	}
	return nil
}

// FormatForDisplay creates display strings for selection from history entries.
func FormatForDisplay(entries []media.HistoryEntry) []string {
	var items []string
	for _, e := range entries {
		display := provider.FormatDisplayTitle(e.Title)
		if !e.LookedUpAt.IsZero() {
			display += "  " + e.LookedUpAt.Local().Format("2006-01-02")
		}
		items = append(items, display)
	}
	return items
}

func validateEntry(e media.HistoryEntry) error {
	if e.Title.ID <= 0 {
		return fmt.Errorf("history entry needs a title ID, got %d", e.Title.ID)
	}
	if e.Title.Name == "" {
		return fmt.Errorf("history entry needs a title name")
	}
	return nil
}
