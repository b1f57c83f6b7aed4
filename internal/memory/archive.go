package memory

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

// Archive persists session memory entries to sqlite so a show can be
// reviewed after the fact. Archive failures are logged and never block
// the mix loops.
type Archive struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenArchive opens (or creates) the archive database at path.
func OpenArchive(path string, logger *slog.Logger) (*Archive, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	a := &Archive{db: db, logger: logger.With("component", "archive")}
	if err := a.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("archive migration: %w", err)
	}
	return a, nil
}

func (a *Archive) migrate() error {
	_, err := a.db.Exec(`
		CREATE TABLE IF NOT EXISTS session_entries (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			recorded_at TEXT NOT NULL,
			entry_type  TEXT NOT NULL,
			channel     INTEGER NOT NULL DEFAULT 0,
			note        TEXT NOT NULL,
			action      TEXT,
			mix_state   TEXT
		)
	`)
	return err
}

// Append writes one entry. Marshalling or insert failures are logged
// and swallowed; this is the Session sink.
func (a *Archive) Append(e Entry) {
	var actionJSON, stateJSON []byte
	var err error

	if e.Type == ActionTaken || e.Type == ActionRejected {
		if actionJSON, err = json.Marshal(e.Action.ToJSON()); err != nil {
			a.logger.Warn("archive action marshal failed", "error", err)
		}
	}
	if e.MixState != nil {
		if stateJSON, err = json.Marshal(e.MixState); err != nil {
			a.logger.Warn("archive state marshal failed", "error", err)
		}
	}

	_, err = a.db.Exec(`
		INSERT INTO session_entries (recorded_at, entry_type, channel, note, action, mix_state)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		e.Timestamp.UTC().Format(time.RFC3339Nano),
		e.Type.wireName(),
		e.Action.Channel,
		e.Note,
		nullable(actionJSON),
		nullable(stateJSON),
	)
	if err != nil {
		a.logger.Warn("archive append failed", "error", err)
	}
}

func nullable(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

// Count returns the number of archived entries.
func (a *Archive) Count() (int, error) {
	var n int
	err := a.db.QueryRow(`SELECT COUNT(*) FROM session_entries`).Scan(&n)
	return n, err
}

// Notes returns the note column of the last n entries, oldest first.
func (a *Archive) Notes(n int) ([]string, error) {
	rows, err := a.db.Query(`
		SELECT note FROM (
			SELECT id, note FROM session_entries ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC
	`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var note string
		if err := rows.Scan(&note); err != nil {
			return nil, err
		}
		out = append(out, note)
	}
	return out, rows.Err()
}

// Close releases the database.
func (a *Archive) Close() error {
	return a.db.Close()
}
