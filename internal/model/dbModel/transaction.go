package dbModel

import (
	"time"

	"github.com/shopspring/decimal"
)

type Transaction struct {
	TransactionID string          `db:"transaction_id"`
	HoldingID     string          `db:"holding_id"`
	Type          string          `db:"type"`
	Date          time.Time       `db:"date"`
	Quantity      decimal.Decimal `db:"quantity"`
	Price         decimal.Decimal `db:"price"`
	Amount        decimal.Decimal `db:"amount"`

	InterestRate      *decimal.Decimal `db:"interest_rate"`
	InterestStartDate *time.Time       `db:"interest_start_date"`

	Deleted   bool       `db:"deleted"`
	DeletedAt *time.Time `db:"deleted_at"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
