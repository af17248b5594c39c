package ledger

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"briefbot/internal/plan"
	logx "briefbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if cfg.Path == "" {
		cfg.Path = DefaultSQLitePath
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
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
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) HasRunFor(ctx context.Context, d plan.Date) bool {
	var ok int
	err := s.db.QueryRowContext(ctx,
		`SELECT ok FROM runs WHERE date = ?`, d.String(),
	).Scan(&ok)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false
	case err != nil:
		s.log.Warn("ledger read failed; treating as not run", logx.String("date", d.String()), logx.Err(err))
		return false
	}
	return ok != 0
}

func (s *sqliteStore) MarkRun(ctx context.Context, d plan.Date) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs(date, ok) VALUES(?, 1)
		 ON CONFLICT(date) DO UPDATE SET ok = 1`,
		d.String(),
	)
	return err
}

func (s *sqliteStore) LastRunDate(ctx context.Context) (plan.Date, bool) {
	// ISO dates sort lexicographically, so MAX(date) is the latest.
	var key string
	err := s.db.QueryRowContext(ctx,
		`SELECT date FROM runs WHERE ok = 1 ORDER BY date DESC LIMIT 1`,
	).Scan(&key)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return plan.Date{}, false
	case err != nil:
		s.log.Warn("ledger read failed; treating as empty", logx.Err(err))
		return plan.Date{}, false
	}
	d, err := plan.ParseDate(key)
	if err != nil {
		s.log.Warn("ledger entry with bad date key ignored", logx.String("key", key))
		return plan.Date{}, false
	}
	return d, true
}
