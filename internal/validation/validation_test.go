package validation

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finfolio/folio/internal/model"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

var now = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

func stockHolding(quantity string) *model.Holding {
	return &model.Holding{
		ID:            "h1",
		Type:          model.HoldingTypeStock,
		TotalQuantity: dec(quantity),
	}
}

func buyDraft() model.TransactionDraft {
	return model.TransactionDraft{
		HoldingID: "h1",
		Type:      model.TransactionTypeBuy,
		Date:      date("2026-08-01"),
		Quantity:  dec("10"),
		Price:     dec("100"),
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Vanguard S&P 500", "Vanguard S&P 500"},
		{"trims", "  AAPL  ", "AAPL"},
		{"strips angle brackets", "<script>alert(1)</script>gold", "scriptalert(1)/scriptgold"},
		{"strips js scheme", "JavaScript:alert(1)", "alert(1)"},
		{"strips event handlers", "x onclick=steal() y", "x steal() y"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}

func TestSanitize_CapsLength(t *testing.T) {
	long := make([]rune, 600)
	for i := range long {
		long[i] = 'a'
	}
	got := Sanitize(string(long))
	assert.Len(t, []rune(got), maxTextLen)
}

func TestValidateTransaction_Rejections(t *testing.T) {
	futureRate := dec("3")
	badRate := dec("150")

	tests := []struct {
		name   string
		mutate func(*model.TransactionDraft)
		vctx   Context
		reason string
	}{
		{
			name:   "zero date",
			mutate: func(d *model.TransactionDraft) { d.Date = time.Time{} },
			vctx:   Context{Now: now, Holding: stockHolding("0")},
			reason: "date is required",
		},
		{
			name:   "future date",
			mutate: func(d *model.TransactionDraft) { d.Date = date("2026-08-31") },
			vctx:   Context{Now: now, Holding: stockHolding("0")},
			reason: "date cannot be in the future",
		},
		{
			name:   "too old",
			mutate: func(d *model.TransactionDraft) { d.Date = date("1999-12-31") },
			vctx:   Context{Now: now, Holding: stockHolding("0")},
			reason: "date cannot be before 2000-01-01",
		},
		{
			name:   "no holding reference",
			mutate: func(d *model.TransactionDraft) { d.HoldingID = "" },
			vctx:   Context{Now: now},
			reason: "holding reference or new holding details required",
		},
		{
			name:   "balance on stock",
			mutate: func(d *model.TransactionDraft) { d.Type = model.TransactionTypeBalance; d.Quantity = decimal.Zero },
			vctx:   Context{Now: now, Holding: stockHolding("0")},
			reason: `transaction type "balance" is not allowed for stock holdings`,
		},
		{
			name:   "buy on bank",
			mutate: func(d *model.TransactionDraft) {},
			vctx:   Context{Now: now, Holding: &model.Holding{ID: "b1", Type: model.HoldingTypeBank}},
			reason: `transaction type "buy" is not allowed for bank holdings`,
		},
		{
			name:   "zero quantity trade",
			mutate: func(d *model.TransactionDraft) { d.Quantity = decimal.Zero },
			vctx:   Context{Now: now, Holding: stockHolding("0")},
			reason: "quantity must be positive",
		},
		{
			name:   "quantity too large",
			mutate: func(d *model.TransactionDraft) { d.Quantity = dec("1000001") },
			vctx:   Context{Now: now, Holding: stockHolding("0")},
			reason: "quantity exceeds maximum of 1000000",
		},
		{
			name: "nonzero quantity on dividend",
			mutate: func(d *model.TransactionDraft) {
				d.Type = model.TransactionTypeDividend
			},
			vctx:   Context{Now: now, Holding: stockHolding("0")},
			reason: `quantity must be zero for dividend transactions`,
		},
		{
			name: "sell with new holding",
			mutate: func(d *model.TransactionDraft) {
				d.HoldingID = ""
				d.Type = model.TransactionTypeSell
				d.NewHolding = &model.HoldingDraft{
					Type:   model.HoldingTypeStock,
					Symbol: "AAPL",
					Name:   "Apple",
				}
			},
			vctx:   Context{Now: now},
			reason: "sell requires an existing holding",
		},
		{
			name: "oversell",
			mutate: func(d *model.TransactionDraft) {
				d.Type = model.TransactionTypeSell
				d.Quantity = dec("11")
			},
			vctx:   Context{Now: now, Holding: stockHolding("10")},
			reason: "insufficient quantity",
		},
		{
			name:   "zero price",
			mutate: func(d *model.TransactionDraft) { d.Price = decimal.Zero },
			vctx:   Context{Now: now, Holding: stockHolding("0")},
			reason: "price must be positive",
		},
		{
			name:   "price too large",
			mutate: func(d *model.TransactionDraft) { d.Price = dec("10000001") },
			vctx:   Context{Now: now, Holding: stockHolding("0")},
			reason: "price exceeds maximum of 10000000",
		},
		{
			name: "amount too large",
			mutate: func(d *model.TransactionDraft) {
				d.Quantity = dec("1000000")
				d.Price = dec("10000")
			},
			vctx:   Context{Now: now, Holding: stockHolding("0")},
			reason: "amount exceeds maximum of 1000000000",
		},
		{
			name:   "interest rate on stock",
			mutate: func(d *model.TransactionDraft) { d.InterestRate = &futureRate },
			vctx:   Context{Now: now, Holding: stockHolding("0")},
			reason: "interest rate is only supported for gold holdings",
		},
		{
			name:   "interest rate out of range",
			mutate: func(d *model.TransactionDraft) { d.InterestRate = &badRate },
			vctx:   Context{Now: now, Holding: &model.Holding{ID: "g1", Type: model.HoldingTypeGold}},
			reason: "interest rate must be between 0 and 100",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			draft := buyDraft()
			tt.mutate(&draft)

			err := ValidateTransaction(draft, tt.vctx)

			var rejection *RejectionError
			require.ErrorAs(t, err, &rejection)
			assert.Equal(t, tt.reason, rejection.Reason)
		})
	}
}

func TestValidateTransaction_Valid(t *testing.T) {
	draft := buyDraft()
	assert.NoError(t, ValidateTransaction(draft, Context{Now: now, Holding: stockHolding("0")}))

	sell := buyDraft()
	sell.Type = model.TransactionTypeSell
	sell.Quantity = dec("5")
	assert.NoError(t, ValidateTransaction(sell, Context{Now: now, Holding: stockHolding("10")}))

	balance := model.TransactionDraft{
		HoldingID: "b1",
		Type:      model.TransactionTypeBalance,
		Date:      date("2026-08-01"),
		Price:     dec("15000"),
	}
	assert.NoError(t, ValidateTransaction(balance, Context{Now: now, Holding: &model.Holding{ID: "b1", Type: model.HoldingTypeBank}}))
}

func TestValidateTransaction_NewHolding(t *testing.T) {
	base := func() model.TransactionDraft {
		d := buyDraft()
		d.HoldingID = ""
		d.NewHolding = &model.HoldingDraft{
			Type:   model.HoldingTypeStock,
			Symbol: "AAPL",
			Name:   "Apple",
		}
		return d
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, ValidateTransaction(base(), Context{Now: now}))
	})

	t.Run("unknown type", func(t *testing.T) {
		d := base()
		d.NewHolding.Type = "crypto"
		err := ValidateTransaction(d, Context{Now: now})
		require.Error(t, err)
		assert.Equal(t, `unknown holding type "crypto"`, err.Error())
	})

	t.Run("short name", func(t *testing.T) {
		d := base()
		d.NewHolding.Name = "A"
		err := ValidateTransaction(d, Context{Now: now})
		require.Error(t, err)
		assert.Equal(t, "name must be at least 2 characters", err.Error())
	})

	t.Run("symbol too long", func(t *testing.T) {
		d := base()
		d.NewHolding.Symbol = "ABCDEFGHIJKLMNOPQRSTU"
		err := ValidateTransaction(d, Context{Now: now})
		require.Error(t, err)
		assert.Equal(t, "symbol length must be between 2 and 20 characters", err.Error())
	})

	t.Run("symbol bad characters", func(t *testing.T) {
		d := base()
		d.NewHolding.Symbol = "AA PL"
		err := ValidateTransaction(d, Context{Now: now})
		require.Error(t, err)
		assert.Equal(t, "symbol may only contain letters, digits, dots and hyphens", err.Error())
	})

	t.Run("symbol taken", func(t *testing.T) {
		err := ValidateTransaction(base(), Context{Now: now, SymbolTaken: true})
		require.Error(t, err)
		assert.Equal(t, "symbol AAPL already exists for stock holdings", err.Error())
	})

	t.Run("negative price", func(t *testing.T) {
		d := base()
		d.NewHolding.CurrentPrice = dec("-1")
		err := ValidateTransaction(d, Context{Now: now})
		require.Error(t, err)
		assert.Equal(t, "current price cannot be negative", err.Error())
	})
}
