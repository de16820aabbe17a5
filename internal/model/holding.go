package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type HoldingType string

const (
	HoldingTypeStock HoldingType = "stock"
	HoldingTypeFund  HoldingType = "fund"
	HoldingTypeGold  HoldingType = "gold"
	HoldingTypeBank  HoldingType = "bank"
)

func (t HoldingType) Valid() bool {
	switch t {
	case HoldingTypeStock, HoldingTypeFund, HoldingTypeGold, HoldingTypeBank:
		return true
	}
	return false
}

// Holding is a tracked instrument or account position. The stats fields are
// denormalized: they are always re-derivable by folding the holding's
// non-deleted transactions and are never a source of truth on their own.
type Holding struct {
	ID           string
	UserID       string
	Type         HoldingType
	Symbol       string
	Name         string
	Category     string
	CurrentPrice decimal.Decimal

	TotalQuantity       decimal.Decimal
	AvgCost             decimal.Decimal
	TotalCost           decimal.Decimal
	CurrentValue        decimal.Decimal
	TotalIncome         decimal.Decimal
	LastTransactionDate time.Time
	TransactionCount    int

	CreatedAt time.Time
	UpdatedAt time.Time
}
