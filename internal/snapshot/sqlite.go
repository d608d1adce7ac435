package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/aurumco/ryde/pkg/logx"
)

// sqliteStore keeps the snapshot document in a single-row table. The JSON
// body still carries the schema version so the same version discipline
// applies to both drivers.
type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

const snapshotSlot = "current"

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for sqlite driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		slot       TEXT PRIMARY KEY,
		version    INTEGER NOT NULL,
		taken_at   TEXT NOT NULL,
		body       TEXT NOT NULL
	);`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *sqliteStore) Load() (*Snapshot, error) {
	var (
		version int
		body    string
	)
	err := s.db.QueryRow(`SELECT version, body FROM snapshots WHERE slot = ?`, snapshotSlot).
		Scan(&version, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUninitialized
	}
	if err != nil {
		return nil, err
	}
	if version != CurrentVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrVersion, version, CurrentVersion)
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(body), &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if snap.Version != CurrentVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrVersion, snap.Version, CurrentVersion)
	}
	return &snap, nil
}

func (s *sqliteStore) Save(snap *Snapshot) error {
	if snap == nil {
		return errors.New("nil snapshot")
	}
	snap.Version = CurrentVersion

	b, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO snapshots(slot, version, taken_at, body) VALUES(?,?,?,?)
		 ON CONFLICT(slot) DO UPDATE SET version=excluded.version, taken_at=excluded.taken_at, body=excluded.body`,
		snapshotSlot, snap.Version, snap.TakenAt.Format(time.RFC3339Nano), string(b),
	)
	if err != nil {
		return err
	}
	s.log.Debug("snapshot saved", logx.String("driver", "sqlite"), logx.Int("bytes", len(b)))
	return nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
