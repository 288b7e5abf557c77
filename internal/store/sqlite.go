package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db      *sql.DB
	entropy *rand.Rand
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=synchronous(full)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		id          TEXT NOT NULL,
		profile     TEXT NOT NULL,
		name        TEXT NOT NULL,
		payload     TEXT NOT NULL,
		updated_at  TEXT NOT NULL,
		PRIMARY KEY (profile, name)
	);
	CREATE INDEX IF NOT EXISTS idx_records_updated ON records(updated_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Load(ctx context.Context, profile string, rec Record) ([]byte, error) {
	if err := validate(profile, rec); err != nil {
		return nil, err
	}
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM records WHERE profile = ? AND name = ?`, profile, string(rec)).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load %s/%s: %w", profile, rec, err)
	}
	return []byte(payload), nil
}

// Save upserts the record in a single statement, so a crash mid-write leaves
// either the old or the new payload.
func (s *SQLiteStore) Save(ctx context.Context, profile string, rec Record, payload []byte) error {
	if err := validate(profile, rec); err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO records (id, profile, name, payload, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(profile, name) DO UPDATE SET
		   id = excluded.id, payload = excluded.payload, updated_at = excluded.updated_at`,
		s.newID(), profile, string(rec), string(payload), now)
	if err != nil {
		return fmt.Errorf("save %s/%s: %w", profile, rec, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, profile string, recs ...Record) error {
	for _, rec := range recs {
		if err := validate(profile, rec); err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, rec := range recs {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM records WHERE profile = ? AND name = ?`, profile, string(rec)); err != nil {
			return fmt.Errorf("delete %s/%s: %w", profile, rec, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Entries(ctx context.Context, profile string) ([]Entry, error) {
	query := `SELECT profile, name, payload, updated_at FROM records`
	var args []interface{}
	if profile != "" {
		query += ` WHERE profile = ?`
		args = append(args, profile)
	}
	query += ` ORDER BY profile, name`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var name, payload, updatedAt string
		if err := rows.Scan(&e.Profile, &name, &payload, &updatedAt); err != nil {
			return nil, err
		}
		e.Record = Record(name)
		e.Payload = []byte(payload)
		e.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
