// Package aggregation folds a holding's non-deleted transactions into
// denormalized statistics and rolls holdings up into per-type and portfolio
// summaries. Every fold is total: it re-derives from the full transaction set
// instead of patching previous values, so partial-update drift is impossible.
package aggregation

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/finfolio/folio/internal/model"
)

var (
	hundred     = decimal.NewFromInt(100)
	daysPerYear = decimal.NewFromInt(365)
)

// FoldHoldingStats derives stats for one holding. Soft-deleted transactions
// must already be excluded by the caller's query; any that slip through are
// skipped here as well. Sells subtract quantity but not cost: the engine uses
// a cumulative running-average cost model, not lot tracking.
func FoldHoldingStats(holding model.Holding, txs []model.Transaction, now time.Time) model.HoldingStats {
	if holding.Type == model.HoldingTypeBank {
		return foldBankStats(txs)
	}

	stats := model.HoldingStats{}

	var goldRate *decimal.Decimal
	var goldStart time.Time

	for _, tx := range txs {
		if tx.Deleted {
			continue
		}

		switch tx.Type {
		case model.TransactionTypeBuy:
			stats.TotalQuantity = stats.TotalQuantity.Add(tx.Quantity)
			stats.TotalCost = stats.TotalCost.Add(tx.Amount)
			if goldRate == nil && tx.InterestRate != nil {
				goldRate = tx.InterestRate
				goldStart = tx.Date
				if tx.InterestStartDate != nil {
					goldStart = *tx.InterestStartDate
				}
			}
		case model.TransactionTypeSell:
			stats.TotalQuantity = stats.TotalQuantity.Sub(tx.Quantity)
		case model.TransactionTypeDividend, model.TransactionTypeInterest:
			stats.TotalIncome = stats.TotalIncome.Add(tx.Amount)
		}

		stats.TransactionCount++
		if tx.Date.After(stats.LastTransactionDate) {
			stats.LastTransactionDate = tx.Date
		}
	}

	// Gold bonds accrue interest over time on the invested cost. Only the
	// first buy carrying a rate is honored; separate lots are not tracked.
	if holding.Type == model.HoldingTypeGold && goldRate != nil {
		stats.TotalIncome = stats.TotalIncome.Add(accruedInterest(stats.TotalCost, *goldRate, goldStart, now))
	}

	if stats.TotalQuantity.IsPositive() {
		stats.AvgCost = stats.TotalCost.Div(stats.TotalQuantity)
	}

	stats.CurrentValue = stats.TotalQuantity.Mul(holding.CurrentPrice)
	stats.CapitalGain = stats.CurrentValue.Sub(stats.TotalCost)
	stats.TotalGain = stats.CapitalGain.Add(stats.TotalIncome)
	if stats.TotalCost.IsPositive() {
		stats.TotalReturn = stats.TotalGain.Div(stats.TotalCost).Mul(hundred)
	}

	return stats
}

// foldBankStats treats the most recent non-deleted entry's amount as the
// account value; quantity and cost fields stay zero for bank holdings.
func foldBankStats(txs []model.Transaction) model.HoldingStats {
	stats := model.HoldingStats{}

	var latest *model.Transaction
	for i, tx := range txs {
		if tx.Deleted {
			continue
		}

		stats.TransactionCount++
		if tx.Date.After(stats.LastTransactionDate) {
			stats.LastTransactionDate = tx.Date
		}
		if latest == nil || tx.Date.After(latest.Date) {
			latest = &txs[i]
		}
	}

	if latest != nil {
		stats.CurrentValue = latest.Amount
	}

	return stats
}

func accruedInterest(totalCost, rate decimal.Decimal, start, now time.Time) decimal.Decimal {
	if !now.After(start) || !totalCost.IsPositive() {
		return decimal.Zero
	}
	days := decimal.NewFromFloat(now.Sub(start).Hours() / 24).Floor()
	return totalCost.Mul(rate).Div(hundred).Mul(days).Div(daysPerYear)
}

// FoldTypeSummaries sums per-holding stats grouped by instrument type.
func FoldTypeSummaries(holdings []model.Holding, stats map[string]model.HoldingStats) map[model.HoldingType]model.TypeSummary {
	summaries := make(map[model.HoldingType]model.TypeSummary)

	for _, h := range holdings {
		s, ok := stats[h.ID]
		if !ok {
			continue
		}

		summary := summaries[h.Type]
		summary.TotalCost = summary.TotalCost.Add(s.TotalCost)
		summary.CurrentValue = summary.CurrentValue.Add(s.CurrentValue)
		summary.TotalIncome = summary.TotalIncome.Add(s.TotalIncome)
		summary.TotalGain = summary.TotalGain.Add(s.TotalGain)
		summaries[h.Type] = summary
	}

	for t, summary := range summaries {
		if summary.TotalCost.IsPositive() {
			summary.TotalReturn = summary.TotalGain.Div(summary.TotalCost).Mul(hundred)
			summaries[t] = summary
		}
	}

	return summaries
}

// FoldPortfolioSummary sums type summaries into the whole-portfolio rollup.
func FoldPortfolioSummary(typeSummaries map[model.HoldingType]model.TypeSummary, now time.Time) model.PortfolioSummary {
	summary := model.PortfolioSummary{
		Types:          typeSummaries,
		LastCalculated: now,
	}

	for _, ts := range typeSummaries {
		summary.TotalCost = summary.TotalCost.Add(ts.TotalCost)
		summary.CurrentValue = summary.CurrentValue.Add(ts.CurrentValue)
		summary.TotalIncome = summary.TotalIncome.Add(ts.TotalIncome)
		summary.TotalGain = summary.TotalGain.Add(ts.TotalGain)
	}

	if summary.TotalCost.IsPositive() {
		summary.TotalReturn = summary.TotalGain.Div(summary.TotalCost).Mul(hundred)
	}

	return summary
}
