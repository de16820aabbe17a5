package aggregation

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finfolio/folio/internal/model"
)

func date(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func buyTx(day, quantity, price string) model.Transaction {
	q, p := dec(quantity), dec(price)
	return model.Transaction{
		Type:     model.TransactionTypeBuy,
		Date:     date(day),
		Quantity: q,
		Price:    p,
		Amount:   model.DeriveAmount(model.TransactionTypeBuy, q, p),
	}
}

func sellTx(day, quantity, price string) model.Transaction {
	q, p := dec(quantity), dec(price)
	return model.Transaction{
		Type:     model.TransactionTypeSell,
		Date:     date(day),
		Quantity: q,
		Price:    p,
		Amount:   model.DeriveAmount(model.TransactionTypeSell, q, p),
	}
}

func TestFoldHoldingStats_RunningAverage(t *testing.T) {
	holding := model.Holding{Type: model.HoldingTypeStock, CurrentPrice: dec("2600")}
	txs := []model.Transaction{
		buyTx("2026-01-05", "10", "2450"),
		sellTx("2026-02-10", "4", "2550"),
	}

	stats := FoldHoldingStats(holding, txs, date("2026-03-01"))

	// Sells reduce quantity only; invested cost stays at the buy total.
	assert.True(t, stats.TotalQuantity.Equal(dec("6")), "quantity: %s", stats.TotalQuantity)
	assert.True(t, stats.TotalCost.Equal(dec("24500")), "cost: %s", stats.TotalCost)
	assert.True(t, stats.AvgCost.Equal(dec("24500").Div(dec("6"))), "avg cost: %s", stats.AvgCost)
	assert.True(t, stats.CurrentValue.Equal(dec("15600")), "current value: %s", stats.CurrentValue)
	assert.Equal(t, 2, stats.TransactionCount)
	assert.Equal(t, date("2026-02-10"), stats.LastTransactionDate)
}

func TestFoldHoldingStats_IncomeSums(t *testing.T) {
	holding := model.Holding{Type: model.HoldingTypeStock, CurrentPrice: dec("100")}
	txs := []model.Transaction{
		buyTx("2026-01-05", "10", "100"),
		{Type: model.TransactionTypeDividend, Date: date("2026-02-01"), Price: dec("50"), Amount: dec("50")},
		{Type: model.TransactionTypeInterest, Date: date("2026-03-01"), Price: dec("25"), Amount: dec("25")},
	}

	stats := FoldHoldingStats(holding, txs, date("2026-04-01"))

	assert.True(t, stats.TotalIncome.Equal(dec("75")), "income: %s", stats.TotalIncome)
	assert.True(t, stats.TotalQuantity.Equal(dec("10")))
	// gain 0 (value == cost) + income 75 over cost 1000 = 7.5%
	assert.True(t, stats.TotalReturn.Equal(dec("7.5")), "return: %s", stats.TotalReturn)
}

func TestFoldHoldingStats_SkipsDeleted(t *testing.T) {
	holding := model.Holding{Type: model.HoldingTypeStock, CurrentPrice: dec("100")}
	deleted := buyTx("2026-02-01", "5", "100")
	deleted.Deleted = true
	txs := []model.Transaction{
		buyTx("2026-01-05", "10", "100"),
		deleted,
	}

	stats := FoldHoldingStats(holding, txs, date("2026-03-01"))

	assert.True(t, stats.TotalQuantity.Equal(dec("10")))
	assert.True(t, stats.TotalCost.Equal(dec("1000")))
	assert.Equal(t, 1, stats.TransactionCount)
}

func TestFoldHoldingStats_ZeroGuards(t *testing.T) {
	holding := model.Holding{Type: model.HoldingTypeStock, CurrentPrice: dec("100")}
	txs := []model.Transaction{
		buyTx("2026-01-05", "10", "100"),
		sellTx("2026-02-10", "10", "120"),
	}

	stats := FoldHoldingStats(holding, txs, date("2026-03-01"))

	require.True(t, stats.TotalQuantity.IsZero())
	assert.True(t, stats.AvgCost.IsZero(), "avg cost must not divide by zero quantity")
	assert.True(t, stats.CurrentValue.IsZero())

	empty := FoldHoldingStats(holding, nil, date("2026-03-01"))
	assert.True(t, empty.TotalReturn.IsZero(), "return must not divide by zero cost")
}

func TestFoldHoldingStats_GoldAccrual(t *testing.T) {
	rate := dec("3")
	holding := model.Holding{Type: model.HoldingTypeGold, CurrentPrice: dec("5000")}

	first := buyTx("2025-03-01", "20", "5000")
	first.InterestRate = &rate
	start := date("2025-03-15")
	first.InterestStartDate = &start

	second := buyTx("2025-06-01", "10", "5000")

	txs := []model.Transaction{first, second}

	// 365 full days after the rate start: one year of 3% on the full cost.
	stats := FoldHoldingStats(holding, txs, date("2026-03-15"))

	require.True(t, stats.TotalCost.Equal(dec("150000")))
	assert.True(t, stats.TotalIncome.Equal(dec("4500")), "accrued: %s", stats.TotalIncome)
}

func TestFoldHoldingStats_GoldNoRateNoAccrual(t *testing.T) {
	holding := model.Holding{Type: model.HoldingTypeGold, CurrentPrice: dec("5000")}
	txs := []model.Transaction{buyTx("2025-03-01", "20", "5000")}

	stats := FoldHoldingStats(holding, txs, date("2026-03-01"))

	assert.True(t, stats.TotalIncome.IsZero())
}

func TestFoldHoldingStats_GoldAccrualBeforeStart(t *testing.T) {
	rate := dec("3")
	holding := model.Holding{Type: model.HoldingTypeGold, CurrentPrice: dec("5000")}
	tx := buyTx("2026-03-01", "20", "5000")
	tx.InterestRate = &rate

	stats := FoldHoldingStats(holding, []model.Transaction{tx}, date("2026-03-01"))

	assert.True(t, stats.TotalIncome.IsZero(), "no accrual on the start day itself")
}

func TestFoldBankStats_LatestBalanceWins(t *testing.T) {
	holding := model.Holding{Type: model.HoldingTypeBank}
	txs := []model.Transaction{
		{Type: model.TransactionTypeBalance, Date: date("2026-01-01"), Price: dec("10000"), Amount: dec("10000")},
		{Type: model.TransactionTypeBalance, Date: date("2026-03-01"), Price: dec("12500"), Amount: dec("12500")},
		{Type: model.TransactionTypeBalance, Date: date("2026-02-01"), Price: dec("11000"), Amount: dec("11000")},
	}

	stats := FoldHoldingStats(holding, txs, date("2026-04-01"))

	assert.True(t, stats.CurrentValue.Equal(dec("12500")), "value: %s", stats.CurrentValue)
	assert.True(t, stats.TotalQuantity.IsZero())
	assert.True(t, stats.TotalCost.IsZero())
	assert.True(t, stats.AvgCost.IsZero())
	assert.Equal(t, 3, stats.TransactionCount)
	assert.Equal(t, date("2026-03-01"), stats.LastTransactionDate)
}

func TestFoldBankStats_DeletedLatestIgnored(t *testing.T) {
	holding := model.Holding{Type: model.HoldingTypeBank}
	newest := model.Transaction{Type: model.TransactionTypeBalance, Date: date("2026-03-01"), Amount: dec("99999"), Deleted: true}
	txs := []model.Transaction{
		{Type: model.TransactionTypeBalance, Date: date("2026-01-01"), Amount: dec("10000")},
		newest,
	}

	stats := FoldHoldingStats(holding, txs, date("2026-04-01"))

	assert.True(t, stats.CurrentValue.Equal(dec("10000")))
	assert.Equal(t, 1, stats.TransactionCount)
}

func TestFoldTypeSummaries(t *testing.T) {
	holdings := []model.Holding{
		{ID: "h1", Type: model.HoldingTypeStock},
		{ID: "h2", Type: model.HoldingTypeStock},
		{ID: "h3", Type: model.HoldingTypeBank},
		{ID: "orphan", Type: model.HoldingTypeFund},
	}
	stats := map[string]model.HoldingStats{
		"h1": {TotalCost: dec("1000"), CurrentValue: dec("1100"), TotalGain: dec("100")},
		"h2": {TotalCost: dec("2000"), CurrentValue: dec("2200"), TotalGain: dec("200")},
		"h3": {CurrentValue: dec("5000")},
	}

	summaries := FoldTypeSummaries(holdings, stats)

	require.Len(t, summaries, 2)
	stock := summaries[model.HoldingTypeStock]
	assert.True(t, stock.TotalCost.Equal(dec("3000")))
	assert.True(t, stock.CurrentValue.Equal(dec("3300")))
	assert.True(t, stock.TotalReturn.Equal(dec("10")), "return: %s", stock.TotalReturn)

	bank := summaries[model.HoldingTypeBank]
	assert.True(t, bank.CurrentValue.Equal(dec("5000")))
	assert.True(t, bank.TotalReturn.IsZero())
}

func TestFoldPortfolioSummary(t *testing.T) {
	now := date("2026-08-30")
	typeSummaries := map[model.HoldingType]model.TypeSummary{
		model.HoldingTypeStock: {TotalCost: dec("1000"), CurrentValue: dec("1000"), TotalGain: dec("100"), TotalIncome: dec("100")},
		model.HoldingTypeBank:  {CurrentValue: dec("2500")},
	}

	summary := FoldPortfolioSummary(typeSummaries, now)

	assert.True(t, summary.CurrentValue.Equal(dec("3500")), "value: %s", summary.CurrentValue)
	assert.True(t, summary.TotalCost.Equal(dec("1000")))
	assert.True(t, summary.TotalGain.Equal(dec("100")))
	assert.True(t, summary.TotalReturn.Equal(dec("10")))
	assert.Equal(t, now, summary.LastCalculated)
}
