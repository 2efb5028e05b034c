package syncer

import "time"

const (
	// firstSyncLookback bounds the initial backfill for a connection that
	// has never synced (or had its cursor reset).
	firstSyncLookback = 90 * 24 * time.Hour

	// syncOverlap re-covers the boundary of the previous window: the feed
	// settles pending transactions late and sometimes backdates postings.
	// Redundant fetches are safe because reconciliation is a keyed upsert.
	syncOverlap = 24 * time.Hour
)

// SyncFrom computes the start of the incremental fetch window, truncated to
// the start of the UTC day. For a non-nil lastSyncAt the result is always
// at or before lastSyncAt.
func SyncFrom(lastSyncAt *time.Time, now time.Time) time.Time {
	var start time.Time
	if lastSyncAt == nil {
		start = now.Add(-firstSyncLookback)
	} else {
		start = lastSyncAt.Add(-syncOverlap)
	}
	start = start.UTC()
	return time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
}
