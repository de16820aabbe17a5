// Package portfolioService owns the ledger write path and the derived-state
// read path: validated atomic commits, total aggregate recomputation as a
// best-effort follow-up, cursor pagination and the two-tier cache.
package portfolioService

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finfolio/folio/config"
	"github.com/finfolio/folio/data/repository"
	"github.com/finfolio/folio/internal/aggregation"
	"github.com/finfolio/folio/internal/model"
	"github.com/finfolio/folio/internal/service"
	"github.com/finfolio/folio/internal/validation"
	"github.com/finfolio/folio/utils"
)

type Repository interface {
	WithinTransaction(ctx context.Context, tFunc func(ctx context.Context) error) error

	InsertHolding(ctx context.Context, userID string, draft model.HoldingDraft) (holdingID string, err error)
	GetHolding(ctx context.Context, userID, holdingID string) (model.Holding, error)
	GetHoldingForUpdate(ctx context.Context, userID, holdingID string) (model.Holding, error)
	SymbolExists(ctx context.Context, userID string, holdingType model.HoldingType, symbol string) (bool, error)
	GetHoldings(ctx context.Context, userID string) ([]model.Holding, error)
	UpdateHoldingStats(ctx context.Context, holdingID string, stats model.HoldingStats) error
	UpdateCurrentPrice(ctx context.Context, userID, holdingID string, price decimal.Decimal) error

	InsertTransaction(ctx context.Context, tx model.Transaction) (transactionID string, err error)
	UpdateTransaction(ctx context.Context, userID string, tx model.Transaction) error
	SoftDeleteTransaction(ctx context.Context, userID, transactionID string) error
	GetTransaction(ctx context.Context, userID, transactionID string) (model.Transaction, error)
	GetTransactionsForHolding(ctx context.Context, holdingID string) ([]model.Transaction, error)
	GetTransactionsPage(ctx context.Context, holdingID string, cursor *model.Cursor, limit int) ([]model.Transaction, bool, error)
	CountTransactions(ctx context.Context, holdingID string) (int, error)

	UpsertPortfolioAggregate(ctx context.Context, userID string, summary model.PortfolioSummary) error
	GetPortfolioAggregate(ctx context.Context, userID string) (model.PortfolioSummary, error)
	GetStaleAggregateUserIDs(ctx context.Context, olderThan time.Time) ([]string, error)
}

type Cache interface {
	GetHoldings(ctx context.Context, userID string) ([]model.Holding, error)
	SetHoldings(ctx context.Context, userID string, holdings []model.Holding) error
	GetTransactions(ctx context.Context, userID string) (map[string][]model.Transaction, error)
	SetTransactions(ctx context.Context, userID string, txs map[string][]model.Transaction) error
	GetPortfolioSummary(ctx context.Context, userID string) (model.PortfolioSummary, error)
	SetPortfolioSummary(ctx context.Context, userID string, summary model.PortfolioSummary) error
	Invalidate(ctx context.Context, userID string) error
}

type ReportGenerator interface {
	Generate(ctx context.Context, summary model.PortfolioSummary, holdings []model.Holding, txs map[string][]model.Transaction) (fileBytes []byte, fileExtension string, err error)
}

type PortfolioService struct {
	cfg     *config.Config
	repo    Repository
	cache   Cache
	reports ReportGenerator
	now     func() time.Time

	// in-process freshness tier: gates whether a reload is attempted at all
	mu        sync.RWMutex
	freshness map[string]time.Time
}

func New(cfg *config.Config, repo Repository, cache Cache, reports ReportGenerator) *PortfolioService {
	return &PortfolioService{
		cfg:       cfg,
		repo:      repo,
		cache:     cache,
		reports:   reports,
		now:       time.Now,
		freshness: make(map[string]time.Time),
	}
}

// SaveTransaction validates the draft and commits it. When the draft carries
// NewHolding details, the holding and its first transaction become visible
// together or not at all. The stats recomputation that follows a successful
// commit is best-effort: on failure the committed transaction is returned
// together with service.ErrAggregatesStale.
func (s *PortfolioService) SaveTransaction(ctx context.Context, userID string, draft model.TransactionDraft) (model.Transaction, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.SaveTransaction"

	slog.Debug("SaveTransaction start", slog.String("rqID", rqID), slog.String("op", op), slog.String("userID", userID))
	defer func() {
		slog.Debug("SaveTransaction finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("userID", userID))
	}()

	draft = sanitizeDraft(draft)

	vctx := validation.Context{Now: s.now()}
	if draft.HoldingID == "" {
		if draft.NewHolding == nil {
			return model.Transaction{}, &validation.RejectionError{Reason: "holding reference or new holding details required"}
		}
		taken, err := s.repo.SymbolExists(ctx, userID, draft.NewHolding.Type, draft.NewHolding.Symbol)
		if err != nil {
			slog.Error("got error from repo.SymbolExists", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
			return model.Transaction{}, err
		}
		vctx.SymbolTaken = taken
	} else {
		holding, err := s.repo.GetHolding(ctx, userID, draft.HoldingID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return model.Transaction{}, service.ErrNotFound
			}
			slog.Error("got error from repo.GetHolding", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
			return model.Transaction{}, err
		}
		vctx.Holding = &holding
	}

	if err := validation.ValidateTransaction(draft, vctx); err != nil {
		return model.Transaction{}, err
	}

	tx := model.Transaction{
		HoldingID:         draft.HoldingID,
		Type:              draft.Type,
		Date:              draft.Date,
		Quantity:          draft.Quantity,
		Price:             draft.Price,
		Amount:            model.DeriveAmount(draft.Type, draft.Quantity, draft.Price),
		InterestRate:      draft.InterestRate,
		InterestStartDate: draft.InterestStartDate,
	}

	err := s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		if tx.HoldingID == "" {
			holdingID, err := s.repo.InsertHolding(ctx, userID, *draft.NewHolding)
			if err != nil {
				return err
			}
			tx.HoldingID = holdingID
		} else if draft.Type == model.TransactionTypeSell {
			// the pre-commit check read an unlocked row; re-check under lock
			// so two concurrent sells can't both pass against a stale total
			holding, err := s.repo.GetHoldingForUpdate(ctx, userID, tx.HoldingID)
			if err != nil {
				return err
			}
			if draft.Quantity.GreaterThan(holding.TotalQuantity) {
				return service.ErrInsufficientQuantity
			}
		}

		transactionID, err := s.repo.InsertTransaction(ctx, tx)
		if err != nil {
			return err
		}
		tx.ID = transactionID

		return nil
	})
	if err != nil {
		slog.Error("transaction commit failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Transaction{}, err
	}

	return tx, s.afterMutation(ctx, userID, tx.HoldingID)
}

// UpdateTransaction edits a non-deleted ledger entry in place and re-derives
// the affected aggregates.
func (s *PortfolioService) UpdateTransaction(ctx context.Context, userID, transactionID string, draft model.TransactionDraft) (model.Transaction, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.UpdateTransaction"

	slog.Debug("UpdateTransaction start", slog.String("rqID", rqID), slog.String("op", op), slog.String("transactionID", transactionID))
	defer func() {
		slog.Debug("UpdateTransaction finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("transactionID", transactionID))
	}()

	existing, err := s.repo.GetTransaction(ctx, userID, transactionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Transaction{}, service.ErrNotFound
		}
		return model.Transaction{}, err
	}
	if existing.Deleted {
		return model.Transaction{}, service.ErrNotFound
	}

	holding, err := s.repo.GetHolding(ctx, userID, existing.HoldingID)
	if err != nil {
		return model.Transaction{}, err
	}

	draft = sanitizeDraft(draft)
	draft.HoldingID = existing.HoldingID
	draft.NewHolding = nil

	if err := validation.ValidateTransaction(draft, validation.Context{Now: s.now(), Holding: &holding}); err != nil {
		return model.Transaction{}, err
	}

	tx := existing
	tx.Type = draft.Type
	tx.Date = draft.Date
	tx.Quantity = draft.Quantity
	tx.Price = draft.Price
	tx.Amount = model.DeriveAmount(draft.Type, draft.Quantity, draft.Price)
	tx.InterestRate = draft.InterestRate
	tx.InterestStartDate = draft.InterestStartDate

	err = s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		locked, err := s.repo.GetHoldingForUpdate(ctx, userID, tx.HoldingID)
		if err != nil {
			return err
		}
		if err := s.repo.UpdateTransaction(ctx, userID, tx); err != nil {
			return err
		}
		return s.verifyQuantityNonNegative(ctx, locked)
	})
	if err != nil {
		slog.Error("transaction update failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		if errors.Is(err, repository.ErrNotFound) {
			return model.Transaction{}, service.ErrNotFound
		}
		return model.Transaction{}, err
	}

	return tx, s.afterMutation(ctx, userID, tx.HoldingID)
}

// DeleteTransaction soft-deletes: the row is excluded from folds and pages
// from now on but stays retrievable by id.
func (s *PortfolioService) DeleteTransaction(ctx context.Context, userID, transactionID string) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.DeleteTransaction"

	slog.Debug("DeleteTransaction start", slog.String("rqID", rqID), slog.String("op", op), slog.String("transactionID", transactionID))
	defer func() {
		slog.Debug("DeleteTransaction finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("transactionID", transactionID))
	}()

	tx, err := s.repo.GetTransaction(ctx, userID, transactionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return service.ErrNotFound
		}
		return err
	}

	err = s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		locked, err := s.repo.GetHoldingForUpdate(ctx, userID, tx.HoldingID)
		if err != nil {
			return err
		}
		if err := s.repo.SoftDeleteTransaction(ctx, userID, transactionID); err != nil {
			return err
		}
		return s.verifyQuantityNonNegative(ctx, locked)
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return service.ErrNotFound
		}
		slog.Error("transaction delete failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	return s.afterMutation(ctx, userID, tx.HoldingID)
}

func (s *PortfolioService) GetTransaction(ctx context.Context, userID, transactionID string) (model.Transaction, error) {
	tx, err := s.repo.GetTransaction(ctx, userID, transactionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Transaction{}, service.ErrNotFound
		}
		return model.Transaction{}, err
	}
	return tx, nil
}

// UpdateHoldingPrice records an externally supplied current price and
// re-derives the dependent aggregates.
func (s *PortfolioService) UpdateHoldingPrice(ctx context.Context, userID, holdingID string, price decimal.Decimal) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.UpdateHoldingPrice"

	slog.Debug("UpdateHoldingPrice start", slog.String("rqID", rqID), slog.String("op", op), slog.String("holdingID", holdingID))
	defer func() {
		slog.Debug("UpdateHoldingPrice finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("holdingID", holdingID))
	}()

	if price.IsNegative() {
		return &validation.RejectionError{Reason: "current price cannot be negative"}
	}

	if err := s.repo.UpdateCurrentPrice(ctx, userID, holdingID, price); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return service.ErrNotFound
		}
		return err
	}

	return s.afterMutation(ctx, userID, holdingID)
}

// afterMutation is the follow-up to every successful commit: synchronous
// cache invalidation, then total recomputation of the affected holding and
// the whole-portfolio aggregate. Recomputation failure does not roll the
// commit back; it surfaces as service.ErrAggregatesStale.
func (s *PortfolioService) afterMutation(ctx context.Context, userID, holdingID string) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.afterMutation"

	s.invalidateFreshness(userID)
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		slog.Error("got error from cache.Invalidate", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	if err := s.recomputeHolding(ctx, userID, holdingID); err != nil {
		slog.Error("holding recompute failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return service.ErrAggregatesStale
	}

	if err := s.recomputePortfolio(ctx, userID); err != nil {
		slog.Error("portfolio recompute failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return service.ErrAggregatesStale
	}

	return nil
}

// verifyQuantityNonNegative folds the holding's post-mutation transaction set
// inside the open transaction and fails the commit when it would leave the
// quantity negative. An edit that shrinks a buy, or a buy's deletion, can
// break the invariant even though the draft itself passed validation.
func (s *PortfolioService) verifyQuantityNonNegative(ctx context.Context, holding model.Holding) error {
	txs, err := s.repo.GetTransactionsForHolding(ctx, holding.ID)
	if err != nil {
		return err
	}

	stats := aggregation.FoldHoldingStats(holding, txs, s.now())
	if stats.TotalQuantity.IsNegative() {
		return service.ErrInsufficientQuantity
	}

	return nil
}

// recomputeHolding re-derives one holding's denormalized stats from its full
// non-deleted transaction set.
func (s *PortfolioService) recomputeHolding(ctx context.Context, userID, holdingID string) error {
	holding, err := s.repo.GetHolding(ctx, userID, holdingID)
	if err != nil {
		return err
	}

	txs, err := s.repo.GetTransactionsForHolding(ctx, holdingID)
	if err != nil {
		return err
	}

	stats := aggregation.FoldHoldingStats(holding, txs, s.now())

	return s.repo.UpdateHoldingStats(ctx, holdingID, stats)
}

// recomputePortfolio re-derives the per-type and whole-portfolio rollups from
// every holding's (already recomputed) stats and persists the result.
func (s *PortfolioService) recomputePortfolio(ctx context.Context, userID string) error {
	holdings, err := s.repo.GetHoldings(ctx, userID)
	if err != nil {
		return err
	}

	stats := make(map[string]model.HoldingStats, len(holdings))
	for _, h := range holdings {
		stats[h.ID] = statsFromHolding(h)
	}

	typeSummaries := aggregation.FoldTypeSummaries(holdings, stats)
	summary := aggregation.FoldPortfolioSummary(typeSummaries, s.now())

	if err := s.repo.UpsertPortfolioAggregate(ctx, userID, summary); err != nil {
		return err
	}

	go s.cache.SetPortfolioSummary(context.WithoutCancel(ctx), userID, summary)

	return nil
}

// statsFromHolding reads the denormalized fields back into a stats value for
// the portfolio rollup.
func statsFromHolding(h model.Holding) model.HoldingStats {
	stats := model.HoldingStats{
		TotalQuantity:       h.TotalQuantity,
		AvgCost:             h.AvgCost,
		TotalCost:           h.TotalCost,
		CurrentValue:        h.CurrentValue,
		TotalIncome:         h.TotalIncome,
		LastTransactionDate: h.LastTransactionDate,
		TransactionCount:    h.TransactionCount,
	}
	stats.CapitalGain = stats.CurrentValue.Sub(stats.TotalCost)
	stats.TotalGain = stats.CapitalGain.Add(stats.TotalIncome)
	return stats
}

func sanitizeDraft(draft model.TransactionDraft) model.TransactionDraft {
	if draft.NewHolding != nil {
		nh := *draft.NewHolding
		nh.Symbol = validation.Sanitize(nh.Symbol)
		nh.Name = validation.Sanitize(nh.Name)
		nh.Category = validation.Sanitize(nh.Category)
		draft.NewHolding = &nh
	}
	return draft
}
