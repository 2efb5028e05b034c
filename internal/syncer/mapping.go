package syncer

import (
	"plataforma/internal/database/models"
	"plataforma/internal/pluggy"
)

// MapTransactionType translates the aggregator's direction into the local
// vocabulary. Unknown values default to EXPENSE so a transaction is never
// dropped over an enum the aggregator added after us.
func MapTransactionType(aggregatorType string) models.TransactionType {
	if aggregatorType == "CREDIT" {
		return models.TransactionIncome
	}
	return models.TransactionExpense
}

var accountSubtypes = map[string]models.AccountType{
	"CHECKING_ACCOUNT": models.AccountChecking,
	"SAVINGS_ACCOUNT":  models.AccountSavings,
	"CREDIT_CARD":      models.AccountCreditCard,
	"INVESTMENT":       models.AccountInvestment,
	"LOAN_ACCOUNT":     models.AccountLoan,
}

func MapAccountType(subtype string) models.AccountType {
	if t, ok := accountSubtypes[subtype]; ok {
		return t
	}
	return models.AccountOther
}

// MapConnectionStatus recomputes the local connection status from what the
// aggregator reports for the item after a successful run.
func MapConnectionStatus(item *pluggy.Item) models.ConnectionStatus {
	switch item.ExecutionStatus {
	case "INVALID_CREDENTIALS", "USER_AUTHORIZATION_PENDING", "USER_AUTHORIZATION_NOT_GRANTED":
		return models.ConnectionLoginError
	case "ERROR", "MERGE_ERROR", "CONNECTION_ERROR":
		return models.ConnectionOutdated
	}
	switch item.Status {
	case "LOGIN_ERROR", "WAITING_USER_INPUT":
		return models.ConnectionLoginError
	case "UPDATING":
		return models.ConnectionUpdating
	case "OUTDATED":
		return models.ConnectionOutdated
	}
	return models.ConnectionActive
}
