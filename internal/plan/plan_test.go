package plan

import (
	"testing"
	"time"
)

func TestPendingAfterWeekendGap(t *testing.T) {
	// Friday -> Monday: Saturday and Sunday are skipped.
	last := NewDate(2024, time.May, 3)
	today := NewDate(2024, time.May, 6)

	got := Pending(last, true, today, 0)
	if len(got) != 1 {
		t.Fatalf("expected 1 pending date, got %d: %v", len(got), got)
	}
	if got[0].String() != "2024-05-06" {
		t.Fatalf("expected 2024-05-06, got %s", got[0])
	}
}

func TestPendingNoLastRunUsesLookback(t *testing.T) {
	today := NewDate(2024, time.May, 10) // Friday

	got := Pending(Date{}, false, today, 7)
	// 2024-05-03 .. 2024-05-10 minus Sat 04 / Sun 05.
	want := []string{"2024-05-03", "2024-05-06", "2024-05-07", "2024-05-08", "2024-05-09", "2024-05-10"}
	if len(got) != len(want) {
		t.Fatalf("expected %d dates, got %d: %v", len(want), len(got), got)
	}
	for i, w := range want {
		if got[i].String() != w {
			t.Fatalf("index %d: expected %s, got %s", i, w, got[i])
		}
	}
}

func TestPendingEmptyWhenUpToDate(t *testing.T) {
	today := NewDate(2024, time.May, 6)
	if got := Pending(today, true, today, 0); got != nil {
		t.Fatalf("expected no pending dates, got %v", got)
	}
	// Last run in the future (clock skew) must not produce a window either.
	if got := Pending(today.AddDays(3), true, today, 0); got != nil {
		t.Fatalf("expected no pending dates, got %v", got)
	}
}

func TestPendingAscendingOrder(t *testing.T) {
	got := Pending(NewDate(2024, time.April, 29), true, NewDate(2024, time.May, 10), 0)
	for i := 1; i < len(got); i++ {
		if !got[i-1].Before(got[i]) {
			t.Fatalf("dates out of order: %v", got)
		}
	}
	for _, d := range got {
		if IsWeekend(d) {
			t.Fatalf("weekend date %s in plan", d)
		}
	}
}

func TestDateRoundTrip(t *testing.T) {
	d, err := ParseDate("2024-05-03")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if d.String() != "2024-05-03" {
		t.Fatalf("round trip mismatch: %s", d)
	}
	if d.Weekday() != time.Friday {
		t.Fatalf("expected Friday, got %v", d.Weekday())
	}
	if _, err := ParseDate("03/05/2024"); err == nil {
		t.Fatal("expected error for non-ISO date")
	}
}

func TestAddDaysCrossesMonth(t *testing.T) {
	d := NewDate(2024, time.April, 30).AddDays(1)
	if d.String() != "2024-05-01" {
		t.Fatalf("expected 2024-05-01, got %s", d)
	}
	if d.AddDays(-1).String() != "2024-04-30" {
		t.Fatalf("expected 2024-04-30, got %s", d.AddDays(-1))
	}
}
