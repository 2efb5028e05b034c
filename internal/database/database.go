package database

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/joho/godotenv/autoload"

	"plataforma/internal/database/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DB represents a service that interacts with the database.
type DB interface {
	WithTx(fn func(tx DB) error) error

	CreateConnection(ctx context.Context, conn *models.Connection) error
	GetConnection(ctx context.Context, userID string, id uuid.UUID) (*models.Connection, error)
	GetConnectionByID(ctx context.Context, id uuid.UUID) (*models.Connection, error)
	GetConnectionByItemID(ctx context.Context, itemID string) (*models.Connection, error)
	ListConnections(ctx context.Context, userID string) ([]models.Connection, error)
	DeleteConnection(ctx context.Context, userID string, id uuid.UUID) error
	UpdateConnectionSyncResult(ctx context.Context, id uuid.UUID, upd SyncResultUpdate) error

	TryAcquireSyncLock(ctx context.Context, id uuid.UUID) (bool, error)
	ReleaseSyncLock(ctx context.Context, id uuid.UUID) error
	ForceReleaseSyncLock(ctx context.Context, id uuid.UUID) error

	UpsertLinkedAccount(ctx context.Context, acct *models.Account) (*models.Account, error)
	ListAccountsByConnection(ctx context.Context, connectionID uuid.UUID) ([]models.Account, error)
	SettleAccountBalance(ctx context.Context, accountID uuid.UUID, balance decimal.Decimal) error

	UpsertExternalTransaction(ctx context.Context, tx *models.Transaction) error

	CreateSyncRun(ctx context.Context, run *models.SyncRun) error
	FinishSyncRun(ctx context.Context, id uuid.UUID, status models.SyncRunStatus, processed int, runErr *string) error
	LatestSyncRun(ctx context.Context, connectionID uuid.UUID) (*models.SyncRun, error)
	SweepStaleSyncRuns(ctx context.Context, olderThan time.Time, message string) ([]models.SyncRun, error)

	RecordWebhookEvent(ctx context.Context, event *models.WebhookEvent) error
}

type service struct {
	db *gorm.DB
}

var (
	database   = os.Getenv("DB_DATABASE")
	password   = os.Getenv("DB_PASSWORD")
	username   = os.Getenv("DB_USERNAME")
	port       = os.Getenv("DB_PORT")
	host       = os.Getenv("DB_HOST")
	schema     = os.Getenv("DB_SCHEMA")
	dbInstance *service
)

func New() DB {
	// Reuse Connection
	if dbInstance != nil {
		return dbInstance
	}
	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable&search_path=%s", username, password, host, port, database, schema)

	db, err := gorm.Open(postgres.Open(connStr))
	if err != nil {
		log.Fatal(err)
	}
	svc, err := NewWithGorm(db)
	if err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}
	dbInstance = svc.(*service)
	return dbInstance
}

// NewWithGorm wraps an already-open gorm handle. Tests use it with sqlite.
func NewWithGorm(db *gorm.DB) (DB, error) {
	err := db.AutoMigrate(
		&models.User{},
		&models.Connection{},
		&models.Account{},
		&models.Transaction{},
		&models.SyncRun{},
		&models.WebhookEvent{},
	)
	if err != nil {
		return nil, err
	}
	return &service{db: db}, nil
}

func (s *service) WithTx(fn func(tx DB) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(&service{db: tx})
	})
}

func (s *service) CreateConnection(ctx context.Context, conn *models.Connection) error {
	return s.db.WithContext(ctx).Create(conn).Error
}

func (s *service) GetConnection(ctx context.Context, userID string, id uuid.UUID) (*models.Connection, error) {
	var conn models.Connection
	if err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&conn).Error; err != nil {
		return nil, err
	}
	return &conn, nil
}

func (s *service) GetConnectionByID(ctx context.Context, id uuid.UUID) (*models.Connection, error) {
	var conn models.Connection
	if err := s.db.WithContext(ctx).First(&conn, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &conn, nil
}

func (s *service) GetConnectionByItemID(ctx context.Context, itemID string) (*models.Connection, error) {
	var conn models.Connection
	if err := s.db.WithContext(ctx).
		Where("item_id = ?", itemID).
		First(&conn).Error; err != nil {
		return nil, err
	}
	return &conn, nil
}

func (s *service) ListConnections(ctx context.Context, userID string) ([]models.Connection, error) {
	var conns []models.Connection
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&conns).Error; err != nil {
		return nil, err
	}
	return conns, nil
}

// DeleteConnection detaches the connection's accounts and removes the
// connection row. Transactions are never touched.
func (s *service) DeleteConnection(ctx context.Context, userID string, id uuid.UUID) error {
	return s.WithTx(func(tx DB) error {
		t := tx.(*service).db.WithContext(ctx)
		if err := t.Model(&models.Account{}).
			Where("connection_id = ?", id).
			Update("connection_id", nil).Error; err != nil {
			return err
		}
		res := t.Where("id = ? AND user_id = ?", id, userID).
			Delete(&models.Connection{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// SyncResultUpdate is what a finished (or failed) run writes back onto its
// connection. LastSyncAt and ConsentExpiresAt are only written when set, so a
// failed run never advances the cursor.
type SyncResultUpdate struct {
	Status           models.ConnectionStatus
	LastError        *string
	LastSyncAt       *time.Time
	ConsentExpiresAt *time.Time
}

func (s *service) UpdateConnectionSyncResult(ctx context.Context, id uuid.UUID, upd SyncResultUpdate) error {
	updates := map[string]any{
		"status":     upd.Status,
		"last_error": upd.LastError,
	}
	if upd.LastSyncAt != nil {
		updates["last_sync_at"] = upd.LastSyncAt
	}
	if upd.ConsentExpiresAt != nil {
		updates["consent_expires_at"] = upd.ConsentExpiresAt
	}
	return s.db.WithContext(ctx).
		Model(&models.Connection{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// TryAcquireSyncLock flips is_syncing to true in a single conditional UPDATE.
// RowsAffected == 0 means another run already holds the lock.
func (s *service) TryAcquireSyncLock(ctx context.Context, id uuid.UUID) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Connection{}).
		Where("id = ? AND is_syncing = ?", id, false).
		Update("is_syncing", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *service) ReleaseSyncLock(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).
		Model(&models.Connection{}).
		Where("id = ?", id).
		Update("is_syncing", false).Error
}

// ForceReleaseSyncLock exists for the watchdog; it is the same unconditional
// reset as ReleaseSyncLock but kept separate so call sites read honestly.
func (s *service) ForceReleaseSyncLock(ctx context.Context, id uuid.UUID) error {
	return s.ReleaseSyncLock(ctx, id)
}

// UpsertLinkedAccount creates or refreshes an aggregator-linked account keyed
// on external_id. Ownership (user_id, connection_id) is written only on
// create; the conflict branch never re-parents an existing row.
func (s *service) UpsertLinkedAccount(ctx context.Context, acct *models.Account) (*models.Account, error) {
	if acct.ID == uuid.Nil {
		acct.ID = uuid.New()
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "external_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name", "type", "institution", "currency", "is_active", "updated_at",
			}),
		}).
		Create(acct).Error
	if err != nil {
		return nil, err
	}
	var stored models.Account
	if err := s.db.WithContext(ctx).
		Where("external_id = ?", acct.ExternalID).
		First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

func (s *service) ListAccountsByConnection(ctx context.Context, connectionID uuid.UUID) ([]models.Account, error) {
	var accts []models.Account
	if err := s.db.WithContext(ctx).
		Where("connection_id = ?", connectionID).
		Find(&accts).Error; err != nil {
		return nil, err
	}
	return accts, nil
}

func (s *service) SettleAccountBalance(ctx context.Context, accountID uuid.UUID, balance decimal.Decimal) error {
	return s.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ?", accountID).
		Update("balance", balance).Error
}

// UpsertExternalTransaction deduplicates on external_id. The conflict branch
// refreshes mutable fields only — never user_id or account_id, so a repeated
// sync can never re-parent a transaction.
func (s *service) UpsertExternalTransaction(ctx context.Context, tx *models.Transaction) error {
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "external_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"amount", "type", "description", "category", "pending", "updated_at",
			}),
		}).
		Create(tx).Error
}

func (s *service) CreateSyncRun(ctx context.Context, run *models.SyncRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	run.Status = models.SyncRunProcessing
	return s.db.WithContext(ctx).Create(run).Error
}

func (s *service) FinishSyncRun(ctx context.Context, id uuid.UUID, status models.SyncRunStatus, processed int, runErr *string) error {
	now := time.Now().UTC()
	var run models.SyncRun
	if err := s.db.WithContext(ctx).First(&run, "id = ?", id).Error; err != nil {
		return err
	}
	return s.db.WithContext(ctx).
		Model(&models.SyncRun{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":                 status,
			"transactions_processed": processed,
			"error":                  runErr,
			"finished_at":            now,
			"duration_ms":            now.Sub(run.StartedAt).Milliseconds(),
		}).Error
}

func (s *service) LatestSyncRun(ctx context.Context, connectionID uuid.UUID) (*models.SyncRun, error) {
	var run models.SyncRun
	if err := s.db.WithContext(ctx).
		Where("connection_id = ?", connectionID).
		Order("started_at DESC").
		First(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// SweepStaleSyncRuns fails every PROCESSING run whose last update predates
// olderThan and returns the rows as they were before the sweep, so the caller
// can decide about the corresponding connection locks.
func (s *service) SweepStaleSyncRuns(ctx context.Context, olderThan time.Time, message string) ([]models.SyncRun, error) {
	var stale []models.SyncRun
	err := s.WithTx(func(tx DB) error {
		t := tx.(*service).db.WithContext(ctx)
		if err := t.
			Where("status = ? AND updated_at < ?", models.SyncRunProcessing, olderThan).
			Find(&stale).Error; err != nil {
			return err
		}
		if len(stale) == 0 {
			return nil
		}
		ids := make([]uuid.UUID, 0, len(stale))
		for _, r := range stale {
			ids = append(ids, r.ID)
		}
		return t.Model(&models.SyncRun{}).
			Where("id IN ?", ids).
			Updates(map[string]any{
				"status": models.SyncRunFailed,
				"error":  message,
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return stale, nil
}

func (s *service) RecordWebhookEvent(ctx context.Context, event *models.WebhookEvent) error {
	return s.db.WithContext(ctx).Create(event).Error
}
