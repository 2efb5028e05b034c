package models

import (
	"time"

	"github.com/google/uuid"
)

type ConnectionStatus string

const (
	ConnectionActive       ConnectionStatus = "ACTIVE"
	ConnectionLoginError   ConnectionStatus = "LOGIN_ERROR"
	ConnectionOutdated     ConnectionStatus = "OUTDATED"
	ConnectionUpdating     ConnectionStatus = "UPDATING"
	ConnectionDisconnected ConnectionStatus = "DISCONNECTED"
)

// Connection is one linked aggregator item for one user. ItemID is the
// aggregator-issued identifier and never changes for the lifetime of the link.
type Connection struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID string    `gorm:"index;not null"`
	User   User      `gorm:"constraint:OnDelete:CASCADE"`

	ItemID   string `gorm:"uniqueIndex;not null"`
	Provider string

	Status    ConnectionStatus `gorm:"default:ACTIVE"`
	LastError *string

	// IsSyncing is the per-connection sync mutex. It is only ever flipped
	// through the conditional-update queries in the database package.
	IsSyncing bool `gorm:"default:false;not null"`

	LastSyncAt       *time.Time
	ConsentExpiresAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}
