package portfolioService

import (
	"context"
	"log/slog"

	"github.com/finfolio/folio/internal/model"
	"github.com/finfolio/folio/utils"
)

// GeneratePortfolioReport renders the user's holdings, rollup and transaction
// history as a downloadable statement. The per-holding transaction map is
// served cache-aside under the transactions cache key.
func (s *PortfolioService) GeneratePortfolioReport(ctx context.Context, userID string) (fileBytes []byte, fileExtension string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.GeneratePortfolioReport"

	slog.Debug("GeneratePortfolioReport start", slog.String("rqID", rqID), slog.String("op", op), slog.String("userID", userID))
	defer func() {
		slog.Debug("GeneratePortfolioReport finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("userID", userID))
	}()

	holdings, err := s.GetHoldings(ctx, userID)
	if err != nil {
		return nil, "", err
	}

	summary, err := s.GetPortfolioSummary(ctx, userID)
	if err != nil {
		return nil, "", err
	}

	txs, err := s.getTransactionsByHolding(ctx, userID, holdings)
	if err != nil {
		return nil, "", err
	}

	return s.reports.Generate(ctx, summary, holdings, txs)
}

func (s *PortfolioService) getTransactionsByHolding(ctx context.Context, userID string, holdings []model.Holding) (map[string][]model.Transaction, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.getTransactionsByHolding"

	if s.isFresh(userID) {
		txs, err := s.cache.GetTransactions(ctx, userID)
		if err == nil {
			return txs, nil
		}
		slog.Warn("can't get transactions from cache", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	txs := make(map[string][]model.Transaction, len(holdings))
	for _, h := range holdings {
		holdingTxs, err := s.repo.GetTransactionsForHolding(ctx, h.ID)
		if err != nil {
			slog.Error("got error from repo.GetTransactionsForHolding", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
			return nil, err
		}
		txs[h.ID] = holdingTxs
	}

	if err := s.cache.SetTransactions(ctx, userID, txs); err != nil {
		slog.Warn("can't populate transactions cache", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	return txs, nil
}
