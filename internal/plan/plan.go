// Package plan decides which calendar dates a batch run still has to process.
package plan

// DefaultLookbackDays bounds the backfill window when the ledger has no
// recorded success yet, so a fresh install does not walk years of archive.
const DefaultLookbackDays = 7

// Pending returns the ordered business dates that still need processing.
//
// The window starts the day after lastRun, or lookbackDays before today when
// hasLast is false. It ends at today, inclusive. Weekend dates are excluded
// because the newsletter does not publish on them.
func Pending(lastRun Date, hasLast bool, today Date, lookbackDays int) []Date {
	if lookbackDays <= 0 {
		lookbackDays = DefaultLookbackDays
	}

	var start Date
	if hasLast {
		start = lastRun.AddDays(1)
	} else {
		start = today.AddDays(-lookbackDays)
	}
	if start.After(today) {
		return nil
	}

	var out []Date
	for d := start; !d.After(today); d = d.AddDays(1) {
		if IsWeekend(d) {
			continue
		}
		out = append(out, d)
	}
	return out
}
