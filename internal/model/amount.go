package model

import "github.com/shopspring/decimal"

// DeriveAmount computes the ledger amount of a transaction. Income and
// balance entries carry the value in the price field verbatim; trades are
// quantity times price.
func DeriveAmount(t TransactionType, quantity, price decimal.Decimal) decimal.Decimal {
	switch t {
	case TransactionTypeDividend, TransactionTypeInterest, TransactionTypeBalance:
		return price
	default:
		return quantity.Mul(price)
	}
}
