package models

import (
	"time"

	"github.com/google/uuid"
)

type SyncRunStatus string

const (
	SyncRunProcessing SyncRunStatus = "PROCESSING"
	SyncRunCompleted  SyncRunStatus = "COMPLETED"
	SyncRunFailed     SyncRunStatus = "FAILED"
)

type SyncTrigger string

const (
	TriggerManual  SyncTrigger = "MANUAL"
	TriggerWebhook SyncTrigger = "WEBHOOK"
)

// SyncRun is one audit row per sync attempt. A row stuck in PROCESSING past
// the staleness threshold is failed by the watchdog, not by the engine.
type SyncRun struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	ConnectionID *uuid.UUID  `gorm:"type:uuid;index"`
	Connection   *Connection `gorm:"constraint:OnDelete:SET NULL"`

	TriggeredBy SyncTrigger

	StartedAt  time.Time
	FinishedAt *time.Time
	DurationMs int64

	TransactionsProcessed int

	Status SyncRunStatus `gorm:"index;default:PROCESSING"`
	Error  *string

	CreatedAt time.Time
	UpdatedAt time.Time `gorm:"index"`
}
