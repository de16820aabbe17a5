package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// HoldingStats is the fold of a holding's non-deleted transactions.
type HoldingStats struct {
	TotalQuantity       decimal.Decimal
	AvgCost             decimal.Decimal
	TotalCost           decimal.Decimal
	CurrentValue        decimal.Decimal
	TotalIncome         decimal.Decimal
	CapitalGain         decimal.Decimal
	TotalGain           decimal.Decimal
	TotalReturn         decimal.Decimal
	LastTransactionDate time.Time
	TransactionCount    int
}

type TypeSummary struct {
	TotalCost    decimal.Decimal `json:"totalCost"`
	CurrentValue decimal.Decimal `json:"currentValue"`
	TotalIncome  decimal.Decimal `json:"totalIncome"`
	TotalGain    decimal.Decimal `json:"totalGain"`
	TotalReturn  decimal.Decimal `json:"totalReturn"`
}

// PortfolioSummary is the singleton per-user rollup, recomputed from scratch
// on every affecting mutation and never patched incrementally.
type PortfolioSummary struct {
	TotalCost      decimal.Decimal             `json:"totalCost"`
	CurrentValue   decimal.Decimal             `json:"currentValue"`
	TotalIncome    decimal.Decimal             `json:"totalIncome"`
	TotalGain      decimal.Decimal             `json:"totalGain"`
	TotalReturn    decimal.Decimal             `json:"totalReturn"`
	Types          map[HoldingType]TypeSummary `json:"types"`
	LastCalculated time.Time                   `json:"lastCalculated"`
}
