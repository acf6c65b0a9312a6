package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/scriptdeck/scriptdeck/internal/model"
)

var ErrNotFound = errors.New("not found")

// recentCap bounds the recents list.
const recentCap = 10

const schema = `
CREATE TABLE IF NOT EXISTS folders (
	path TEXT PRIMARY KEY
);
CREATE TABLE IF NOT EXISTS scripts (
	id       TEXT PRIMARY KEY,
	name     TEXT NOT NULL,
	path     TEXT NOT NULL,
	category TEXT NOT NULL,
	added_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS favourites (
	name TEXT PRIMARY KEY
);
CREATE TABLE IF NOT EXISTS recents (
	name TEXT PRIMARY KEY,
	seq  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS runs (
	run_id     TEXT PRIMARY KEY,
	script_id  TEXT NOT NULL,
	name       TEXT NOT NULL,
	path       TEXT NOT NULL,
	started_at INTEGER NOT NULL,
	stopped_at INTEGER NOT NULL,
	exit_code  INTEGER NOT NULL,
	failure    TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS runs_script_idx ON runs (script_id, started_at DESC);
`

// Store persists user settings and run history in a SQLite database.
// Safe for concurrent use; lifecycle is owned by the caller, there is
// no package level state.
type Store struct {
	db *sql.DB
}

func Open(ctx context.Context, dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Folders returns the monitored folders, sorted.
func (s *Store) Folders(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path FROM folders ORDER BY path`)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, err
		}
		out = append(out, path)
	}
	return out, rows.Err()
}

// SetFolders replaces the monitored folder set.
func (s *Store) SetFolders(ctx context.Context, folders []string) error {
	return s.tx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM folders`); err != nil {
			return err
		}
		for _, f := range folders {
			if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO folders (path) VALUES (?)`, f); err != nil {
				return err
			}
		}
		return nil
	})
}

// AddScript registers a manual (uploaded) script entry.
func (s *Store) AddScript(ctx context.Context, d model.Descriptor) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO scripts (id, name, path, category, added_at) VALUES (?,?,?,?,?)`,
		d.ID, d.Name, d.Path, d.Category, time.Now().Unix(),
	)
	return err
}

// Scripts returns all manual script entries, oldest first.
func (s *Store) Scripts(ctx context.Context) ([]model.Descriptor, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, path, category FROM scripts ORDER BY added_at, id`)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []model.Descriptor
	for rows.Next() {
		d := model.Descriptor{Manual: true}
		if err := rows.Scan(&d.ID, &d.Name, &d.Path, &d.Category); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// RemoveScript deletes a manual script entry.
// Returns ErrNotFound for an unknown id.
func (s *Store) RemoveScript(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM scripts WHERE id = ?`, id)
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

// ToggleFavourite flips the favourite mark of name and reports the new state.
func (s *Store) ToggleFavourite(ctx context.Context, name string) (bool, error) {
	var fav bool
	err := s.tx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM favourites WHERE name = ?`, name)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO favourites (name) VALUES (?)`, name); err != nil {
			return err
		}
		fav = true
		return nil
	})
	return fav, err
}

// Favourites returns all favourite names, sorted.
func (s *Store) Favourites(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM favourites ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// TouchRecent moves name to the front of the recents list. The list
// is de-duplicated and capped at 10 entries.
func (s *Store) TouchRecent(ctx context.Context, name string) error {
	return s.tx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO recents (name, seq)
			 VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM recents))
			 ON CONFLICT(name) DO UPDATE SET seq = excluded.seq`, name)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`DELETE FROM recents WHERE seq NOT IN
			 (SELECT seq FROM recents ORDER BY seq DESC LIMIT ?)`, recentCap)
		return err
	})
}

// Recents returns recent script names, most recent first.
func (s *Store) Recents(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM recents ORDER BY seq DESC`)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// Record persists one finished run. It implements runner.HistorySink.
func (s *Store) Record(ctx context.Context, rec model.RunRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs
		 (run_id, script_id, name, path, started_at, stopped_at, exit_code, failure)
		 VALUES (?,?,?,?,?,?,?,?)`,
		rec.RunID, rec.ScriptID, rec.Name, rec.Path,
		rec.StartedAt.UnixNano(), rec.StoppedAt.UnixNano(), rec.ExitCode, rec.Failure,
	)
	return err
}

// History returns up to limit finished runs of scriptID, newest first.
func (s *Store) History(ctx context.Context, scriptID string, limit int) ([]model.RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, script_id, name, path, started_at, stopped_at, exit_code, failure
		 FROM runs WHERE script_id = ? ORDER BY started_at DESC LIMIT ?`, scriptID, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []model.RunRecord
	for rows.Next() {
		var rec model.RunRecord
		var started, stopped int64
		if err := rows.Scan(&rec.RunID, &rec.ScriptID, &rec.Name, &rec.Path,
			&started, &stopped, &rec.ExitCode, &rec.Failure); err != nil {
			return nil, err
		}
		rec.StartedAt = time.Unix(0, started)
		rec.StoppedAt = time.Unix(0, stopped)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) tx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			slog.ErrorContext(ctx, "rolling back transaction failed", "error", rbErr)
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
