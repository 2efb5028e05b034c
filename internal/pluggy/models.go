package pluggy

import (
	"time"

	"github.com/shopspring/decimal"
)

type Item struct {
	ID              string     `json:"id"`
	Status          string     `json:"status"`
	ExecutionStatus string     `json:"executionStatus"`
	Error           *ItemError `json:"error"`
	ConsentExpiry   *time.Time `json:"consentExpiresAt"`
	Connector       Connector  `json:"connector"`
}

type ItemError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Connector struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type Account struct {
	ID           string          `json:"id"`
	ItemID       string          `json:"itemId"`
	Name         string          `json:"name"`
	Type         string          `json:"type"`
	Subtype      string          `json:"subtype"`
	Balance      decimal.Decimal `json:"balance"`
	CurrencyCode string          `json:"currencyCode"`
	Number       string          `json:"number"`
}

type Transaction struct {
	ID          string          `json:"id"`
	AccountID   string          `json:"accountId"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Date        time.Time       `json:"date"`
	Type        string          `json:"type"` // CREDIT | DEBIT
	Status      string          `json:"status"`
	Category    string          `json:"category"`
}

type TransactionPage struct {
	Results    []Transaction `json:"results"`
	Page       int           `json:"page"`
	TotalPages int           `json:"totalPages"`
}

type authResponse struct {
	APIKey string `json:"apiKey"`
}

type connectTokenResponse struct {
	AccessToken string `json:"accessToken"`
}
