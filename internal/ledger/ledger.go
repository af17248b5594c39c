package ledger

import (
	"context"
	"errors"
	"strings"
	"time"

	"briefbot/internal/plan"
	logx "briefbot/pkg/logx"
)

// Store is the durable record of which dates were fully dispatched.
//
// Reads fail open: a corrupt or unreadable backend reports "not yet run",
// which only costs a redundant reprocess. A false positive would silently
// drop a date, so no read path may ever invent a success.
type Store interface {
	// HasRunFor reports whether d was already dispatched to every recipient.
	HasRunFor(ctx context.Context, d plan.Date) bool
	// MarkRun durably records d as dispatched. Idempotent.
	MarkRun(ctx context.Context, d plan.Date) error
	// LastRunDate returns the most recent successfully dispatched date.
	LastRunDate(ctx context.Context) (plan.Date, bool)
	Close() error
}

// Config configures the ledger backend.
//
// Driver values:
//   - "file" (default): JSON state file, written via tmp + atomic rename
//   - "sqlite": SQLite database file
type Config struct {
	Driver      string
	Path        string        // defaults per driver, see below
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Default state locations, relative to the working directory.
const (
	DefaultFilePath   = "./briefbot_state.json"
	DefaultSQLitePath = "./briefbot.db"
)

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}

	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "file", "json":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown ledger driver: " + driver)
	}
}
