package usecase

import "time"

// ComputeCutoff derives the minimum submission instant a paper must satisfy
// this run: min(lastSuccess, now) - lookback. Anchoring on the last confirmed
// success (never later) compensates for delayed or skipped runs, and the
// lookback margin absorbs API listing lag. A zero lastSuccess (first run)
// yields a bounded now - lookback window instead of unbounded history.
func ComputeCutoff(lastSuccess time.Time, lookback time.Duration, now time.Time) time.Time {
	if lastSuccess.IsZero() {
		return now.Add(-lookback)
	}

	anchor := lastSuccess
	if now.Before(anchor) {
		anchor = now
	}
	return anchor.Add(-lookback)
}
