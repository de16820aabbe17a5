package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionTypeBuy      TransactionType = "buy"
	TransactionTypeSell     TransactionType = "sell"
	TransactionTypeDividend TransactionType = "dividend"
	TransactionTypeInterest TransactionType = "interest"
	TransactionTypeBalance  TransactionType = "balance"
)

// AllowedFor reports whether a transaction type is valid for the given
// instrument type. Balance entries exist only for bank accounts, and bank
// accounts carry nothing but balance entries.
func (t TransactionType) AllowedFor(h HoldingType) bool {
	if !h.Valid() {
		return false
	}
	if h == HoldingTypeBank {
		return t == TransactionTypeBalance
	}
	switch t {
	case TransactionTypeBuy, TransactionTypeSell, TransactionTypeDividend, TransactionTypeInterest:
		return true
	}
	return false
}

// Transaction is an append-only, soft-deletable ledger entry. Soft-deleted
// rows are excluded from folds and page listings but kept for audit.
type Transaction struct {
	ID        string
	HoldingID string
	Type      TransactionType
	Date      time.Time
	Quantity  decimal.Decimal
	Price     decimal.Decimal
	Amount    decimal.Decimal

	InterestRate      *decimal.Decimal
	InterestStartDate *time.Time

	Deleted   bool
	DeletedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TransactionDraft is sanitized and validated caller input for a create or
// edit. An empty HoldingID means the save also creates the holding described
// by the NewHolding fields, atomically with its first transaction.
type TransactionDraft struct {
	HoldingID string
	Type      TransactionType
	Date      time.Time
	Quantity  decimal.Decimal
	Price     decimal.Decimal

	InterestRate      *decimal.Decimal
	InterestStartDate *time.Time

	NewHolding *HoldingDraft
}

type HoldingDraft struct {
	Type         HoldingType
	Symbol       string
	Name         string
	Category     string
	CurrentPrice decimal.Decimal
}
