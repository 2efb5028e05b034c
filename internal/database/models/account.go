package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AccountType string

const (
	AccountChecking   AccountType = "CHECKING"
	AccountSavings    AccountType = "SAVINGS"
	AccountCreditCard AccountType = "CREDIT_CARD"
	AccountInvestment AccountType = "INVESTMENT"
	AccountLoan       AccountType = "LOAN"
	AccountOther      AccountType = "OTHER"
)

// Account is a bank/card account, either aggregator-linked (ExternalID set,
// ConnectionID set) or manually created. ExternalID is the reconciliation key
// between repeated syncs and the same aggregator account; it is never
// reassigned to a different row.
type Account struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID string    `gorm:"index;not null"`
	User   User      `gorm:"constraint:OnDelete:CASCADE"`

	// Disconnecting a connection detaches its accounts instead of
	// deleting them, so the user keeps the history.
	ConnectionID *uuid.UUID  `gorm:"type:uuid;index"`
	Connection   *Connection `gorm:"constraint:OnDelete:SET NULL"`

	ExternalID *string `gorm:"uniqueIndex"`

	Name        string
	Type        AccountType `gorm:"default:OTHER"`
	Institution string

	Balance  decimal.Decimal `gorm:"type:decimal(19,4)"`
	Currency string          `gorm:"size:3;default:BRL"`
	IsActive bool            `gorm:"default:true"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
