package syncer

import (
	"context"
	"log"
	"time"

	"plataforma/internal/database"
)

// staleAfter is how long a run may sit in PROCESSING before the watchdog
// assumes the process that owned it died mid-run.
const staleAfter = 10 * time.Minute

const staleRunMessage = "forced to FAILED by watchdog: run stuck in PROCESSING past the staleness threshold"

type Watchdog struct {
	DB database.DB
}

// Sweep force-fails stale PROCESSING runs. For each swept run that is still
// its connection's most recent one, the connection's sync lock is also
// force-released: a killed process never reaches the orchestrator's
// finalizer, and without this the connection would stay locked forever. A
// newer run on the same connection means the lock has a live owner, so it is
// left alone.
func (w *Watchdog) Sweep(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-staleAfter)
	stale, err := w.DB.SweepStaleSyncRuns(ctx, cutoff, staleRunMessage)
	if err != nil {
		return 0, err
	}

	for _, run := range stale {
		if run.ConnectionID == nil {
			continue
		}
		latest, err := w.DB.LatestSyncRun(ctx, *run.ConnectionID)
		if err != nil {
			log.Printf("watchdog: cannot resolve latest run for connection %s: %v", run.ConnectionID, err)
			continue
		}
		if latest.ID != run.ID {
			continue
		}
		if err := w.DB.ForceReleaseSyncLock(ctx, *run.ConnectionID); err != nil {
			log.Printf("watchdog: failed to release lock for connection %s: %v", run.ConnectionID, err)
		} else {
			log.Printf("watchdog: released orphaned sync lock for connection %s", run.ConnectionID)
		}
	}
	return len(stale), nil
}
