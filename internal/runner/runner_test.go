package runner

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"briefbot/internal/ledger"
	"briefbot/internal/pipeline"
	"briefbot/internal/plan"
	logx "briefbot/pkg/logx"
)

type fakeProc struct {
	results map[plan.Date]pipeline.Result
	panics  map[plan.Date]bool
	calls   []plan.Date
}

func (f *fakeProc) ProcessDate(ctx context.Context, d plan.Date) pipeline.Result {
	f.calls = append(f.calls, d)
	if f.panics[d] {
		panic("summarizer blew up")
	}
	if res, ok := f.results[d]; ok {
		return res
	}
	return pipeline.Result{Date: d, Delivered: true}
}

func openTestStore(t *testing.T) ledger.Store {
	t.Helper()
	st, err := ledger.Open(ledger.Config{Path: filepath.Join(t.TempDir(), "state.json")}, logx.Nop())
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func d(day int) plan.Date { return plan.NewDate(2024, time.May, day) }

func TestRunProcessesPendingOldestFirst(t *testing.T) {
	st := openTestStore(t)
	if err := st.MarkRun(context.Background(), d(3)); err != nil { // Friday
		t.Fatal(err)
	}
	proc := &fakeProc{}
	r := New(Config{}, st, proc, logx.Nop())

	rep := r.Run(context.Background(), d(7)) // Tuesday

	want := []plan.Date{d(6), d(7)}
	if len(proc.calls) != len(want) {
		t.Fatalf("processed %v, want %v", proc.calls, want)
	}
	for i := range want {
		if proc.calls[i] != want[i] {
			t.Fatalf("processed %v, want %v", proc.calls, want)
		}
	}
	if rep.Delivered != 2 || rep.Failed != 0 {
		t.Fatalf("unexpected report: %+v", rep)
	}
	for _, day := range want {
		if !st.HasRunFor(context.Background(), day) {
			t.Fatalf("date %s not marked after delivery", day)
		}
	}
}

func TestRunFailureDoesNotMarkOrAbort(t *testing.T) {
	st := openTestStore(t)
	if err := st.MarkRun(context.Background(), d(3)); err != nil {
		t.Fatal(err)
	}
	proc := &fakeProc{results: map[plan.Date]pipeline.Result{
		d(6): {Date: d(6), Err: errors.New("delivery incomplete")},
	}}
	r := New(Config{}, st, proc, logx.Nop())

	rep := r.Run(context.Background(), d(7))

	if rep.Failed != 1 || rep.Delivered != 1 {
		t.Fatalf("unexpected report: %+v", rep)
	}
	if st.HasRunFor(context.Background(), d(6)) {
		t.Fatal("failed date must stay unmarked")
	}
	if !st.HasRunFor(context.Background(), d(7)) {
		t.Fatal("later date should still be processed and marked")
	}
}

func TestRunSkippedDateStaysPending(t *testing.T) {
	st := openTestStore(t)
	if err := st.MarkRun(context.Background(), d(3)); err != nil {
		t.Fatal(err)
	}
	proc := &fakeProc{results: map[plan.Date]pipeline.Result{
		d(7): {Date: d(7), Skipped: true}, // today's issue not out yet
	}}
	r := New(Config{}, st, proc, logx.Nop())

	rep := r.Run(context.Background(), d(7))

	if rep.Skipped != 1 || rep.Delivered != 1 {
		t.Fatalf("unexpected report: %+v", rep)
	}
	if st.HasRunFor(context.Background(), d(7)) {
		t.Fatal("skipped date must stay unmarked so it is retried")
	}
}

func TestRunPanicIsContainedToOneDate(t *testing.T) {
	st := openTestStore(t)
	if err := st.MarkRun(context.Background(), d(3)); err != nil {
		t.Fatal(err)
	}
	proc := &fakeProc{panics: map[plan.Date]bool{d(6): true}}
	r := New(Config{}, st, proc, logx.Nop())

	rep := r.Run(context.Background(), d(7))

	if rep.Failed != 1 || rep.Delivered != 1 {
		t.Fatalf("unexpected report: %+v", rep)
	}
	if st.HasRunFor(context.Background(), d(6)) {
		t.Fatal("panicked date must stay unmarked")
	}
	if !st.HasRunFor(context.Background(), d(7)) {
		t.Fatal("batch should continue past a panic")
	}
}

func TestRunNothingPending(t *testing.T) {
	st := openTestStore(t)
	if err := st.MarkRun(context.Background(), d(7)); err != nil {
		t.Fatal(err)
	}
	proc := &fakeProc{}
	r := New(Config{}, st, proc, logx.Nop())

	rep := r.Run(context.Background(), d(7))
	if rep.Planned != 0 || len(proc.calls) != 0 {
		t.Fatalf("expected empty batch, got %+v (calls %v)", rep, proc.calls)
	}
}

// staleStore reports an out-of-date LastRunDate, the way a state file looks
// after a concurrent run already marked newer dates.
type staleStore struct {
	ledger.Store
	last   plan.Date
	marked map[plan.Date]bool
}

func (s *staleStore) LastRunDate(ctx context.Context) (plan.Date, bool) { return s.last, true }
func (s *staleStore) HasRunFor(ctx context.Context, d plan.Date) bool  { return s.marked[d] }
func (s *staleStore) MarkRun(ctx context.Context, d plan.Date) error {
	s.marked[d] = true
	return nil
}

func TestRunAlreadyMarkedDateIsSkippedWithoutProcessing(t *testing.T) {
	st := &staleStore{last: d(3), marked: map[plan.Date]bool{d(6): true}}
	proc := &fakeProc{}
	r := New(Config{}, st, proc, logx.Nop())

	rep := r.Run(context.Background(), d(7))

	for _, c := range proc.calls {
		if c == d(6) {
			t.Fatal("already-marked date must not be reprocessed")
		}
	}
	if rep.Skipped != 1 || rep.Delivered != 1 {
		t.Fatalf("unexpected report: %+v", rep)
	}
}

func TestRunCancelledContextStopsBetweenDates(t *testing.T) {
	st := openTestStore(t)
	if err := st.MarkRun(context.Background(), d(1)); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	proc := &fakeProc{}
	r := New(Config{PauseBetweenDates: time.Millisecond}, st, proc, logx.Nop())

	cancel()
	rep := r.Run(ctx, d(10))

	if len(proc.calls) != 0 {
		t.Fatalf("cancelled batch still processed %v", proc.calls)
	}
	if rep.Delivered != 0 {
		t.Fatalf("unexpected report: %+v", rep)
	}
}
