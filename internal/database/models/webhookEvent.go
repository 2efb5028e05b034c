package models

import (
	"time"

	"gorm.io/datatypes"
)

// WebhookEvent is an audit row for every webhook that passed signature
// validation, whether or not it triggered a sync.
type WebhookEvent struct {
	ID     int    `gorm:"primaryKey"`
	Event  string `gorm:"index"`
	ItemID string `gorm:"index"`

	Payload datatypes.JSON // JSONB

	ReceivedAt time.Time `gorm:"autoCreateTime"`
}
