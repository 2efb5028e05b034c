package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionIncome  TransactionType = "INCOME"
	TransactionExpense TransactionType = "EXPENSE"
)

// Transaction stores the amount as an unsigned magnitude plus a direction.
// ExternalID, when set, is the sole deduplication key: reconciling the same
// aggregator transaction twice updates the existing row in place.
type Transaction struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID string    `gorm:"index;not null"`
	User   User      `gorm:"constraint:OnDelete:CASCADE"`

	AccountID *uuid.UUID `gorm:"type:uuid;index"`
	Account   *Account   `gorm:"constraint:OnDelete:SET NULL"`

	Date        time.Time `gorm:"index"`
	Description string

	Amount decimal.Decimal `gorm:"type:decimal(19,4)"`
	Type   TransactionType `gorm:"default:EXPENSE"`

	Category    string
	Subcategory *string

	ExternalID *string `gorm:"uniqueIndex"`
	Pending    bool    `gorm:"default:false"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
