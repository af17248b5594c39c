package ledger

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"briefbot/internal/plan"
	logx "briefbot/pkg/logx"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	st, err := Open(Config{Driver: "file", Path: filepath.Join(t.TempDir(), "state.json")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestMarkThenHasRun(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	d := plan.NewDate(2024, time.May, 3)

	if st.HasRunFor(ctx, d) {
		t.Fatal("fresh store claims date already ran")
	}
	if err := st.MarkRun(ctx, d); err != nil {
		t.Fatalf("MarkRun: %v", err)
	}
	if !st.HasRunFor(ctx, d) {
		t.Fatal("marked date not reported as run")
	}
	// Re-marking is a no-op in effect.
	if err := st.MarkRun(ctx, d); err != nil {
		t.Fatalf("MarkRun (repeat): %v", err)
	}
	if !st.HasRunFor(ctx, d) {
		t.Fatal("date lost after re-mark")
	}
}

func TestLastRunDateIgnoresFalseEntries(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	// Seed state with a mix of true/false entries, as a partially failed
	// history would leave behind.
	seed := `{"dates": {"2024-05-01": true, "2024-05-03": true, "2024-05-02": false}}`
	if err := os.WriteFile(path, []byte(seed), 0o600); err != nil {
		t.Fatalf("seed: %v", err)
	}

	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	last, ok := st.LastRunDate(ctx)
	if !ok {
		t.Fatal("expected a last run date")
	}
	if last.String() != "2024-05-03" {
		t.Fatalf("expected 2024-05-03, got %s", last)
	}
	if st.HasRunFor(ctx, plan.NewDate(2024, time.May, 2)) {
		t.Fatal("false entry reported as run")
	}
}

func TestLastRunDateEmpty(t *testing.T) {
	st := openTestStore(t)
	if _, ok := st.LastRunDate(context.Background()); ok {
		t.Fatal("empty store reported a last run date")
	}
}

func TestCorruptStateFailsOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("seed: %v", err)
	}

	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	d := plan.NewDate(2024, time.May, 3)
	if st.HasRunFor(ctx, d) {
		t.Fatal("corrupt state must read as not-run")
	}
	if _, ok := st.LastRunDate(ctx); ok {
		t.Fatal("corrupt state must have no last run date")
	}
	// Writing recovers the file.
	if err := st.MarkRun(ctx, d); err != nil {
		t.Fatalf("MarkRun over corrupt state: %v", err)
	}
	if !st.HasRunFor(ctx, d) {
		t.Fatal("mark over corrupt state lost")
	}
}

func TestCrashMidWriteKeepsPreviousState(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")

	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	d1 := plan.NewDate(2024, time.May, 1)
	if err := st.MarkRun(ctx, d1); err != nil {
		t.Fatalf("MarkRun: %v", err)
	}

	// Simulate a crash between writing the temp file and the rename: a stale,
	// half-written temp file next to valid canonical state.
	if err := os.WriteFile(path+".tmp", []byte(`{"dates": {"2024-05-0`), 0o600); err != nil {
		t.Fatalf("write stale tmp: %v", err)
	}

	st2, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st2.Close()

	if !st2.HasRunFor(ctx, d1) {
		t.Fatal("previous state lost after simulated crash")
	}
	last, ok := st2.LastRunDate(ctx)
	if !ok || last != d1 {
		t.Fatalf("expected last run %s, got %v (ok=%v)", d1, last, ok)
	}
}

func TestSQLiteDriverRoundTrip(t *testing.T) {
	ctx := context.Background()
	st, err := Open(Config{
		Driver:      "sqlite",
		Path:        filepath.Join(t.TempDir(), "ledger.db"),
		BusyTimeout: time.Second,
	}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	d1 := plan.NewDate(2024, time.May, 1)
	d2 := plan.NewDate(2024, time.May, 3)

	if st.HasRunFor(ctx, d1) {
		t.Fatal("fresh sqlite store claims date already ran")
	}
	for _, d := range []plan.Date{d2, d1} {
		if err := st.MarkRun(ctx, d); err != nil {
			t.Fatalf("MarkRun(%s): %v", d, err)
		}
	}
	if !st.HasRunFor(ctx, d1) || !st.HasRunFor(ctx, d2) {
		t.Fatal("marked dates not reported as run")
	}
	last, ok := st.LastRunDate(ctx)
	if !ok || last != d2 {
		t.Fatalf("expected last run %s, got %v (ok=%v)", d2, last, ok)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(Config{Driver: "mongodb", Path: "x"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
