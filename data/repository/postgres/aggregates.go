package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/finfolio/folio/data/repository"
	"github.com/finfolio/folio/internal/model"
	"github.com/finfolio/folio/utils"
)

func (r *Postgres) UpsertPortfolioAggregate(ctx context.Context, userID string, summary model.PortfolioSummary) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.UpsertPortfolioAggregate"
	query := `
		INSERT INTO aggregates(user_id, payload, last_calculated)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			payload = EXCLUDED.payload,
			last_calculated = EXCLUDED.last_calculated
		`

	slog.Debug("UpsertPortfolioAggregate start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("UpsertPortfolioAggregate failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("UpsertPortfolioAggregate completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	payload, err := json.Marshal(summary)
	if err != nil {
		return err
	}

	_, err = r.txOrDb(ctx).ExecContext(ctx, query, userID, payload, summary.LastCalculated)
	if err != nil {
		return err
	}

	return nil
}

func (r *Postgres) GetPortfolioAggregate(ctx context.Context, userID string) (summary model.PortfolioSummary, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetPortfolioAggregate"
	query := `
		SELECT payload FROM aggregates
		WHERE user_id = $1
		`

	slog.Debug("GetPortfolioAggregate start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("GetPortfolioAggregate failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetPortfolioAggregate completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	var payload []byte
	err = r.txOrDb(ctx).QueryRowContext(ctx, query, userID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.PortfolioSummary{}, repository.ErrNotFound
		}
		return model.PortfolioSummary{}, err
	}

	err = json.Unmarshal(payload, &summary)
	if err != nil {
		return model.PortfolioSummary{}, err
	}

	return summary, nil
}

// GetStaleAggregateUserIDs lists users whose portfolio aggregate is missing
// or older than the given timestamp. Used by the periodic refresh job.
func (r *Postgres) GetStaleAggregateUserIDs(ctx context.Context, olderThan time.Time) (userIDs []string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetStaleAggregateUserIDs"
	query := `
		SELECT DISTINCT h.user_id
		FROM holdings h
		LEFT JOIN aggregates a USING(user_id)
		WHERE a.user_id IS NULL
		OR a.last_calculated < $1
		`

	slog.Debug("GetStaleAggregateUserIDs start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("GetStaleAggregateUserIDs failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetStaleAggregateUserIDs completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	err = r.txOrDb(ctx).SelectContext(ctx, &userIDs, query, olderThan)
	if err != nil {
		return nil, err
	}

	return userIDs, nil
}
