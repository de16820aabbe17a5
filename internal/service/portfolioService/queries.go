package portfolioService

import (
	"context"
	"errors"
	"log/slog"

	"github.com/finfolio/folio/data/repository"
	"github.com/finfolio/folio/internal/model"
	"github.com/finfolio/folio/internal/service"
	"github.com/finfolio/folio/utils"
)

// GetHoldings serves the holdings overview cache-aside: the in-process
// freshness stamp decides whether the persisted cache is even consulted, a
// full miss falls through to the store and repopulates both tiers.
func (s *PortfolioService) GetHoldings(ctx context.Context, userID string) ([]model.Holding, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.GetHoldings"

	slog.Debug("GetHoldings start", slog.String("rqID", rqID), slog.String("op", op), slog.String("userID", userID))
	defer func() {
		slog.Debug("GetHoldings finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("userID", userID))
	}()

	if s.isFresh(userID) {
		holdings, err := s.cache.GetHoldings(ctx, userID)
		if err == nil {
			return holdings, nil
		}
		slog.Warn("can't get holdings from cache", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	holdings, err := s.repo.GetHoldings(ctx, userID)
	if err != nil {
		slog.Error("got error from repo.GetHoldings", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, err
	}

	if err := s.cache.SetHoldings(ctx, userID, holdings); err != nil {
		slog.Warn("can't populate holdings cache", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}
	s.markFresh(userID)

	// lazily derive the portfolio aggregate for users that have holdings but
	// no aggregate row yet
	if len(holdings) > 0 {
		if _, err := s.repo.GetPortfolioAggregate(ctx, userID); errors.Is(err, repository.ErrNotFound) {
			if err := s.recomputePortfolio(ctx, userID); err != nil {
				slog.Error("lazy portfolio recompute failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
			}
		}
	}

	return holdings, nil
}

func (s *PortfolioService) GetHolding(ctx context.Context, userID, holdingID string) (model.Holding, error) {
	holding, err := s.repo.GetHolding(ctx, userID, holdingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Holding{}, service.ErrNotFound
		}
		return model.Holding{}, err
	}
	return holding, nil
}

// GetPortfolioSummary reads the rollup cache-aside; a missing aggregate row
// is recomputed on demand.
func (s *PortfolioService) GetPortfolioSummary(ctx context.Context, userID string) (model.PortfolioSummary, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.GetPortfolioSummary"

	slog.Debug("GetPortfolioSummary start", slog.String("rqID", rqID), slog.String("op", op), slog.String("userID", userID))
	defer func() {
		slog.Debug("GetPortfolioSummary finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("userID", userID))
	}()

	if s.isFresh(userID) {
		summary, err := s.cache.GetPortfolioSummary(ctx, userID)
		if err == nil {
			return summary, nil
		}
		slog.Warn("can't get portfolio summary from cache", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	summary, err := s.repo.GetPortfolioAggregate(ctx, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return model.PortfolioSummary{}, err
		}

		if err := s.recomputePortfolio(ctx, userID); err != nil {
			slog.Error("portfolio recompute failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
			return model.PortfolioSummary{}, err
		}

		summary, err = s.repo.GetPortfolioAggregate(ctx, userID)
		if err != nil {
			return model.PortfolioSummary{}, err
		}
	}

	go s.cache.SetPortfolioSummary(context.WithoutCancel(ctx), userID, summary)

	return summary, nil
}

// GetTransactionsPage returns one page of a holding's non-deleted history,
// newest first. The returned cursor must be threaded back to fetch the next
// page; ApproxTotal is for UI labeling only.
func (s *PortfolioService) GetTransactionsPage(ctx context.Context, userID, holdingID string, cursor *model.Cursor, pageSize int) (model.TransactionsPage, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.GetTransactionsPage"

	slog.Debug("GetTransactionsPage start", slog.String("rqID", rqID), slog.String("op", op), slog.String("holdingID", holdingID))
	defer func() {
		slog.Debug("GetTransactionsPage finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("holdingID", holdingID))
	}()

	if pageSize <= 0 {
		pageSize = s.cfg.Pages.TransactionsPerPage
	}

	// ownership check; also yields ErrNotFound for foreign holdings
	if _, err := s.repo.GetHolding(ctx, userID, holdingID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.TransactionsPage{}, service.ErrNotFound
		}
		return model.TransactionsPage{}, err
	}

	items, hasMore, err := s.repo.GetTransactionsPage(ctx, holdingID, cursor, pageSize)
	if err != nil {
		slog.Error("got error from repo.GetTransactionsPage", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.TransactionsPage{}, err
	}

	page := model.TransactionsPage{Items: items, HasMore: hasMore}

	if hasMore && len(items) > 0 {
		last := items[len(items)-1]
		page.NextCursor = &model.Cursor{Date: last.Date, TransactionID: last.ID}
	}

	count, err := s.repo.CountTransactions(ctx, holdingID)
	if err != nil {
		slog.Warn("can't count transactions", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	} else {
		page.ApproxTotal = count
	}

	return page, nil
}

// RefreshStaleAggregates recomputes the portfolio rollup for every user whose
// aggregate is missing or older than the job interval. Runs on a schedule so
// aggregate staleness stays bounded even when a write-path follow-up failed.
func (s *PortfolioService) RefreshStaleAggregates(ctx context.Context) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.RefreshStaleAggregates"

	userIDs, err := s.repo.GetStaleAggregateUserIDs(ctx, s.now().Add(-s.cfg.Jobs.AggregatesRefreshInterval))
	if err != nil {
		slog.Error("got error from repo.GetStaleAggregateUserIDs", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	for _, userID := range userIDs {
		if err := s.recomputePortfolio(ctx, userID); err != nil {
			slog.Error("portfolio recompute failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("userID", userID), slog.String("err", err.Error()))
		}
	}

	return nil
}

// Logout tears the user's cached state down; the next read goes to the store.
func (s *PortfolioService) Logout(ctx context.Context, userID string) error {
	s.invalidateFreshness(userID)
	return s.cache.Invalidate(ctx, userID)
}

func (s *PortfolioService) isFresh(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	loadedAt, ok := s.freshness[userID]
	return ok && s.now().Sub(loadedAt) < s.cfg.Cache.TTL
}

func (s *PortfolioService) markFresh(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.freshness[userID] = s.now()
}

func (s *PortfolioService) invalidateFreshness(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.freshness, userID)
}
