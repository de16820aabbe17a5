package dbModel

import (
	"time"

	"github.com/shopspring/decimal"
)

type Holding struct {
	HoldingID    string          `db:"holding_id"`
	UserID       string          `db:"user_id"`
	Type         string          `db:"type"`
	Symbol       string          `db:"symbol"`
	Name         string          `db:"name"`
	Category     string          `db:"category"`
	CurrentPrice decimal.Decimal `db:"current_price"`

	TotalQuantity       decimal.Decimal `db:"total_quantity"`
	AvgCost             decimal.Decimal `db:"avg_cost"`
	TotalCost           decimal.Decimal `db:"total_cost"`
	CurrentValue        decimal.Decimal `db:"current_value"`
	TotalIncome         decimal.Decimal `db:"total_income"`
	LastTransactionDate *time.Time      `db:"last_transaction_date"`
	TransactionCount    int             `db:"transaction_count"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
