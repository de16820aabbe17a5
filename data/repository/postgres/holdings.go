package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/shopspring/decimal"

	"github.com/finfolio/folio/data/repository"
	"github.com/finfolio/folio/internal/converter/dbConverter"
	"github.com/finfolio/folio/internal/model"
	"github.com/finfolio/folio/internal/model/dbModel"
	"github.com/finfolio/folio/utils"
)

const holdingColumns = `
	holding_id, user_id, type, symbol, name, category, current_price,
	total_quantity, avg_cost, total_cost, current_value, total_income,
	last_transaction_date, transaction_count, created_at, updated_at
`

func (r *Postgres) InsertHolding(ctx context.Context, userID string, draft model.HoldingDraft) (holdingID string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.InsertHolding"
	query := `
		INSERT INTO holdings(user_id, type, symbol, name, category, current_price)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING holding_id
		`

	slog.Debug("InsertHolding start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("InsertHolding failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("InsertHolding completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	err = r.txOrDb(ctx).QueryRowContext(ctx, query, userID, draft.Type, draft.Symbol, draft.Name, draft.Category, draft.CurrentPrice).Scan(&holdingID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == "23505" { // unique_violation
				return "", repository.ErrAlreadyExists
			}
		}
		return "", err
	}

	return holdingID, nil
}

func (r *Postgres) getHolding(ctx context.Context, userID, holdingID, query string) (holding model.Holding, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.getHolding"
	params := map[string]any{
		"userID":    userID,
		"holdingID": holdingID,
	}

	slog.Debug("getHolding start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Any("params", params))
	defer func() {
		if err != nil {
			slog.Error("getHolding failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("getHolding completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	dbHolding := dbModel.Holding{}
	err = r.txOrDb(ctx).QueryRowxContext(ctx, query, userID, holdingID).StructScan(&dbHolding)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Holding{}, repository.ErrNotFound
		}
		return model.Holding{}, err
	}

	return dbConverter.ConvertHolding(dbHolding), nil
}

func (r *Postgres) GetHolding(ctx context.Context, userID, holdingID string) (model.Holding, error) {
	query := `
		SELECT ` + holdingColumns + `
		FROM holdings
		WHERE user_id = $1
		AND holding_id = $2
		`

	return r.getHolding(ctx, userID, holdingID, query)
}

// GetHoldingForUpdate locks the holding row for the duration of the enclosing
// transaction, so a concurrent sell cannot pass the quantity check against a
// stale value.
func (r *Postgres) GetHoldingForUpdate(ctx context.Context, userID, holdingID string) (model.Holding, error) {
	query := `
		SELECT ` + holdingColumns + `
		FROM holdings
		WHERE user_id = $1
		AND holding_id = $2
		FOR UPDATE
		`

	return r.getHolding(ctx, userID, holdingID, query)
}

func (r *Postgres) SymbolExists(ctx context.Context, userID string, holdingType model.HoldingType, symbol string) (exists bool, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.SymbolExists"
	query := `
		SELECT EXISTS (
			SELECT 1 FROM holdings
			WHERE user_id = $1
			AND type = $2
			AND lower(symbol) = lower($3)
		)
		`

	slog.Debug("SymbolExists start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("SymbolExists failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("SymbolExists completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	err = r.txOrDb(ctx).QueryRowContext(ctx, query, userID, holdingType, symbol).Scan(&exists)
	if err != nil {
		return false, err
	}

	return exists, nil
}

func (r *Postgres) GetHoldings(ctx context.Context, userID string) (holdings []model.Holding, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetHoldings"
	query := `
		SELECT ` + holdingColumns + `
		FROM holdings
		WHERE user_id = $1
		ORDER BY type, symbol
		`

	slog.Debug("GetHoldings start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("GetHoldings failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetHoldings completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	rows, err := r.txOrDb(ctx).QueryxContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	for rows.Next() {
		var dbHolding dbModel.Holding
		err = rows.StructScan(&dbHolding)
		if err != nil {
			return nil, err
		}
		holdings = append(holdings, dbConverter.ConvertHolding(dbHolding))
	}

	return holdings, nil
}

func (r *Postgres) UpdateHoldingStats(ctx context.Context, holdingID string, stats model.HoldingStats) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.UpdateHoldingStats"
	params := map[string]any{
		"holdingID": holdingID,
		"stats":     stats,
	}
	query := `
		UPDATE holdings
		SET
			total_quantity = $1,
			avg_cost = $2,
			total_cost = $3,
			current_value = $4,
			total_income = $5,
			last_transaction_date = NULLIF($6::date, '0001-01-01'),
			transaction_count = $7,
			updated_at = now()
		WHERE holding_id = $8
		`

	slog.Debug("UpdateHoldingStats start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Any("params", params))
	defer func() {
		if err != nil {
			slog.Error("UpdateHoldingStats failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("UpdateHoldingStats completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	_, err = r.txOrDb(ctx).ExecContext(
		ctx,
		query,
		stats.TotalQuantity,
		stats.AvgCost,
		stats.TotalCost,
		stats.CurrentValue,
		stats.TotalIncome,
		stats.LastTransactionDate.Format("2006-01-02"),
		stats.TransactionCount,
		holdingID,
	)
	if err != nil {
		return err
	}

	return nil
}

func (r *Postgres) UpdateCurrentPrice(ctx context.Context, userID, holdingID string, price decimal.Decimal) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.UpdateCurrentPrice"
	query := `
		UPDATE holdings
		SET current_price = $1, updated_at = now()
		WHERE user_id = $2
		AND holding_id = $3
		`

	slog.Debug("UpdateCurrentPrice start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("UpdateCurrentPrice failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("UpdateCurrentPrice completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	res, err := r.txOrDb(ctx).ExecContext(ctx, query, price, userID, holdingID)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return repository.ErrNotFound
	}

	return nil
}
