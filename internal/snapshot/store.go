package snapshot

import (
	"errors"
	"strings"
	"time"

	"github.com/aurumco/ryde/pkg/logx"
)

var (
	// ErrUninitialized means no snapshot has ever been saved. Distinct from
	// an empty snapshot: the first run must baseline silently.
	ErrUninitialized = errors.New("snapshot store uninitialized")

	// ErrCorrupt means the persisted document could not be parsed. Callers
	// recover by treating the run as a first-run baseline.
	ErrCorrupt = errors.New("snapshot corrupt")

	// ErrVersion means the document has an unknown schema version.
	ErrVersion = errors.New("unsupported snapshot version")
)

// Store persists the last-known snapshot across process restarts.
type Store interface {
	Load() (*Snapshot, error)
	Save(*Snapshot) error
	Close() error
}

// Config configures the snapshot store.
//
// Driver values:
//   - "file": single JSON document, written atomically (default)
//   - "sqlite": SQLite database file
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + cfg.Driver)
	}
}
