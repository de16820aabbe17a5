package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestAllowedFor(t *testing.T) {
	tests := []struct {
		tx      TransactionType
		holding HoldingType
		want    bool
	}{
		{TransactionTypeBuy, HoldingTypeStock, true},
		{TransactionTypeSell, HoldingTypeFund, true},
		{TransactionTypeDividend, HoldingTypeStock, true},
		{TransactionTypeInterest, HoldingTypeGold, true},
		{TransactionTypeBalance, HoldingTypeBank, true},
		{TransactionTypeBalance, HoldingTypeStock, false},
		{TransactionTypeBuy, HoldingTypeBank, false},
		{TransactionTypeInterest, HoldingTypeBank, false},
		{TransactionTypeBuy, HoldingType("crypto"), false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.tx.AllowedFor(tt.holding), "%s on %s", tt.tx, tt.holding)
	}
}

func TestDeriveAmount(t *testing.T) {
	q := decimal.NewFromInt(10)
	p := decimal.NewFromInt(2450)

	assert.True(t, DeriveAmount(TransactionTypeBuy, q, p).Equal(decimal.NewFromInt(24500)))
	assert.True(t, DeriveAmount(TransactionTypeSell, q, p).Equal(decimal.NewFromInt(24500)))
	// income and balance entries carry the value in the price field
	assert.True(t, DeriveAmount(TransactionTypeDividend, decimal.Zero, p).Equal(p))
	assert.True(t, DeriveAmount(TransactionTypeInterest, decimal.Zero, p).Equal(p))
	assert.True(t, DeriveAmount(TransactionTypeBalance, decimal.Zero, p).Equal(p))
}
