package ledger

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"briefbot/internal/plan"
	logx "briefbot/pkg/logx"
)

// fileStore keeps the run state in a single JSON document:
//
//	{"dates": {"2024-05-03": true, ...}}
//
// The whole document is rewritten to a temp file and renamed over the
// canonical path, so a crash mid-write leaves the previous state intact.
type fileStore struct {
	log  logx.Logger
	path string

	mu sync.Mutex
}

type fileState struct {
	Dates map[string]bool `json:"dates"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := cfg.Path
	if path == "" {
		path = DefaultFilePath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &fileStore{log: log, path: path}, nil
}

func (s *fileStore) Close() error { return nil }

func (s *fileStore) HasRunFor(ctx context.Context, d plan.Date) bool {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readState().Dates[d.String()]
}

func (s *fileStore) MarkRun(ctx context.Context, d plan.Date) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.readState()
	if st.Dates == nil {
		st.Dates = map[string]bool{}
	}
	st.Dates[d.String()] = true
	return s.writeState(st)
}

func (s *fileStore) LastRunDate(ctx context.Context) (plan.Date, bool) {
	_ = ctx
	s.mu.Lock()
	st := s.readState()
	s.mu.Unlock()

	var last plan.Date
	found := false
	for key, ok := range st.Dates {
		if !ok {
			continue
		}
		d, err := plan.ParseDate(key)
		if err != nil {
			// Corrupt key: skip the entry, not the whole ledger.
			s.log.Warn("ledger entry with bad date key ignored", logx.String("key", key))
			continue
		}
		if !found || d.After(last) {
			last = d
			found = true
		}
	}
	return last, found
}

// readState loads the state file. Missing or malformed state is treated as
// empty rather than fatal.
func (s *fileStore) readState() fileState {
	var st fileState
	b, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("ledger unreadable; treating as empty", logx.String("path", s.path), logx.Err(err))
		}
		return st
	}
	if err := json.Unmarshal(b, &st); err != nil {
		s.log.Warn("ledger malformed; treating as empty", logx.String("path", s.path), logx.Err(err))
		return fileState{}
	}
	return st
}

func (s *fileStore) writeState(st fileState) error {
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
