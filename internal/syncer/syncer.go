package syncer

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"plataforma/internal/database"
	"plataforma/internal/database/models"
	"plataforma/internal/pluggy"
)

// Aggregator is the slice of the pluggy client the engine needs. Tests
// substitute it with a fake.
type Aggregator interface {
	GetItem(ctx context.Context, itemID string) (*pluggy.Item, error)
	ListAccounts(ctx context.Context, itemID string) ([]pluggy.Account, error)
	ListTransactionsPage(ctx context.Context, accountID string, from time.Time, page int) (*pluggy.TransactionPage, error)
}

type Syncer struct {
	DB     database.DB
	Pluggy Aggregator
}

func New(db database.DB, client Aggregator) *Syncer {
	return &Syncer{DB: db, Pluggy: client}
}

// SyncConnection is the single entry point for every trigger path. It
// acquires the connection's sync lock, runs the reconciliation and always
// releases the lock, whatever the outcome. A held lock is not an error: the
// second trigger exits silently and the in-flight run covers it.
func (s *Syncer) SyncConnection(ctx context.Context, connectionID uuid.UUID, trigger models.SyncTrigger) error {
	acquired, err := s.DB.TryAcquireSyncLock(ctx, connectionID)
	if err != nil {
		return err
	}
	if !acquired {
		log.Printf("sync: connection %s already syncing, skipping %s trigger", connectionID, trigger)
		return nil
	}
	// The release and the failure bookkeeping below must survive a
	// cancelled request context.
	bg := context.WithoutCancel(ctx)
	defer func() {
		if rerr := s.DB.ReleaseSyncLock(bg, connectionID); rerr != nil {
			log.Printf("sync: failed to release lock for connection %s: %v", connectionID, rerr)
		}
	}()

	run := &models.SyncRun{
		ID:           uuid.New(),
		ConnectionID: &connectionID,
		TriggeredBy:  trigger,
		StartedAt:    time.Now().UTC(),
	}
	if err := s.DB.CreateSyncRun(ctx, run); err != nil {
		return err
	}

	processed, err := s.runLocked(ctx, connectionID, run)
	if err != nil {
		msg := err.Error()
		if uerr := s.DB.UpdateConnectionSyncResult(bg, connectionID, database.SyncResultUpdate{
			Status:    models.ConnectionOutdated,
			LastError: &msg,
		}); uerr != nil {
			log.Printf("sync: failed to record error on connection %s: %v", connectionID, uerr)
		}
		if ferr := s.DB.FinishSyncRun(bg, run.ID, models.SyncRunFailed, processed, &msg); ferr != nil {
			log.Printf("sync: failed to finish run %s: %v", run.ID, ferr)
		}
		return err
	}

	if ferr := s.DB.FinishSyncRun(ctx, run.ID, models.SyncRunCompleted, processed, nil); ferr != nil {
		log.Printf("sync: failed to finish run %s: %v", run.ID, ferr)
	}
	return nil
}

// runLocked is the body of a sync run; the caller holds the lock. Any error
// returned here is fatal for the run. Per-account and per-transaction
// failures are logged and absorbed further down.
func (s *Syncer) runLocked(ctx context.Context, connectionID uuid.UUID, run *models.SyncRun) (int, error) {
	conn, err := s.DB.GetConnectionByID(ctx, connectionID)
	if err != nil {
		return 0, err
	}

	item, err := s.Pluggy.GetItem(ctx, conn.ItemID)
	if err != nil {
		return 0, err
	}
	remote, err := s.Pluggy.ListAccounts(ctx, conn.ItemID)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	from := SyncFrom(conn.LastSyncAt, now)

	total := 0
	for _, ra := range remote {
		externalID := ra.ID
		stored, err := s.DB.UpsertLinkedAccount(ctx, &models.Account{
			UserID:       conn.UserID,
			ConnectionID: &conn.ID,
			ExternalID:   &externalID,
			Name:         ra.Name,
			Type:         MapAccountType(ra.Subtype),
			Institution:  item.Connector.Name,
			Balance:      ra.Balance,
			Currency:     ra.CurrencyCode,
			IsActive:     true,
		})
		if err != nil {
			log.Printf("sync: upsert of account %s failed: %v", ra.ID, err)
			continue
		}

		total += s.reconcileAccount(ctx, conn.UserID, stored.ID, ra.ID, from)

		// Balance is settled once per account, strictly after its
		// pagination loop is done.
		if err := s.DB.SettleAccountBalance(ctx, stored.ID, ra.Balance); err != nil {
			log.Printf("sync: balance settlement for account %s failed: %v", stored.ID, err)
		}
	}

	err = s.DB.UpdateConnectionSyncResult(ctx, conn.ID, database.SyncResultUpdate{
		Status:           MapConnectionStatus(item),
		LastSyncAt:       &now,
		ConsentExpiresAt: item.ConsentExpiry,
	})
	if err != nil {
		return total, err
	}
	return total, nil
}

// reconcileAccount pages through the feed and upserts every transaction that
// carries an external id. A page fetch failure stops this account's loop but
// not the run; a single upsert failure skips that transaction only.
func (s *Syncer) reconcileAccount(ctx context.Context, userID string, accountID uuid.UUID, externalAccountID string, from time.Time) int {
	count := 0
	page, totalPages := 1, 1
	for page <= totalPages {
		res, err := s.Pluggy.ListTransactionsPage(ctx, externalAccountID, from, page)
		if err != nil {
			log.Printf("sync: page %d of account %s failed, continuing with partial data: %v", page, externalAccountID, err)
			break
		}
		totalPages = res.TotalPages

		for _, rt := range res.Results {
			if rt.ID == "" {
				// No stable id means no safe dedup key.
				log.Printf("sync: skipping transaction without external id on account %s", externalAccountID)
				continue
			}
			externalID := rt.ID
			err := s.DB.UpsertExternalTransaction(ctx, &models.Transaction{
				UserID:      userID,
				AccountID:   &accountID,
				Date:        rt.Date,
				Description: rt.Description,
				Amount:      rt.Amount.Abs(),
				Type:        MapTransactionType(rt.Type),
				Category:    rt.Category,
				ExternalID:  &externalID,
				Pending:     rt.Status == "PENDING",
			})
			if err != nil {
				log.Printf("sync: upsert of transaction %s failed: %v", rt.ID, err)
				continue
			}
			count++
		}
		page++
	}
	return count
}
