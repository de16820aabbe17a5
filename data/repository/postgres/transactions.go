package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/finfolio/folio/data/repository"
	"github.com/finfolio/folio/internal/converter/dbConverter"
	"github.com/finfolio/folio/internal/model"
	"github.com/finfolio/folio/internal/model/dbModel"
	"github.com/finfolio/folio/utils"
)

// maxUnboundedFetch caps a full transaction fetch for one holding. Past it
// the result is truncated and a warning is logged; chunked loading is a known
// gap.
const maxUnboundedFetch = 10000

const transactionColumns = `
	transaction_id, holding_id, type, date, quantity, price, amount,
	interest_rate, interest_start_date, deleted, deleted_at, created_at, updated_at
`

const txColumnsQualified = `
	t.transaction_id, t.holding_id, t.type, t.date, t.quantity, t.price, t.amount,
	t.interest_rate, t.interest_start_date, t.deleted, t.deleted_at, t.created_at, t.updated_at
`

func (r *Postgres) InsertTransaction(ctx context.Context, tx model.Transaction) (transactionID string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.InsertTransaction"
	query := `
		INSERT INTO transactions(holding_id, type, date, quantity, price, amount, interest_rate, interest_start_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING transaction_id
		`

	slog.Debug("InsertTransaction start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("InsertTransaction failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("InsertTransaction completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	err = r.txOrDb(ctx).QueryRowContext(
		ctx,
		query,
		tx.HoldingID,
		tx.Type,
		tx.Date,
		tx.Quantity,
		tx.Price,
		tx.Amount,
		tx.InterestRate,
		tx.InterestStartDate,
	).Scan(&transactionID)
	if err != nil {
		return "", err
	}

	return transactionID, nil
}

func (r *Postgres) UpdateTransaction(ctx context.Context, userID string, tx model.Transaction) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.UpdateTransaction"
	params := map[string]any{
		"userID":        userID,
		"transactionID": tx.ID,
	}
	query := `
		UPDATE transactions t
		SET
			type = $1,
			date = $2,
			quantity = $3,
			price = $4,
			amount = $5,
			interest_rate = $6,
			interest_start_date = $7,
			updated_at = now()
		FROM holdings h
		WHERE t.holding_id = h.holding_id
		AND h.user_id = $8
		AND t.transaction_id = $9
		AND t.deleted = false
		`

	slog.Debug("UpdateTransaction start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Any("params", params))
	defer func() {
		if err != nil {
			slog.Error("UpdateTransaction failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("UpdateTransaction completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	res, err := r.txOrDb(ctx).ExecContext(
		ctx,
		query,
		tx.Type,
		tx.Date,
		tx.Quantity,
		tx.Price,
		tx.Amount,
		tx.InterestRate,
		tx.InterestStartDate,
		userID,
		tx.ID,
	)
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

// SoftDeleteTransaction marks the row deleted and stamps deleted_at. The
// tombstone stays retrievable by id for audit.
func (r *Postgres) SoftDeleteTransaction(ctx context.Context, userID, transactionID string) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.SoftDeleteTransaction"
	params := map[string]any{
		"userID":        userID,
		"transactionID": transactionID,
	}
	query := `
		UPDATE transactions t
		SET deleted = true, deleted_at = now(), updated_at = now()
		FROM holdings h
		WHERE t.holding_id = h.holding_id
		AND h.user_id = $1
		AND t.transaction_id = $2
		AND t.deleted = false
		`

	slog.Debug("SoftDeleteTransaction start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Any("params", params))
	defer func() {
		if err != nil {
			slog.Error("SoftDeleteTransaction failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("SoftDeleteTransaction completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	res, err := r.txOrDb(ctx).ExecContext(ctx, query, userID, transactionID)
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

// GetTransaction fetches by id, tombstones included.
func (r *Postgres) GetTransaction(ctx context.Context, userID, transactionID string) (tx model.Transaction, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetTransaction"
	query := `
		SELECT ` + txColumnsQualified + `
		FROM transactions t
		JOIN holdings h USING(holding_id)
		WHERE h.user_id = $1
		AND t.transaction_id = $2
		`

	slog.Debug("GetTransaction start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("GetTransaction failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetTransaction completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	dbTx := dbModel.Transaction{}
	err = r.txOrDb(ctx).QueryRowxContext(ctx, query, userID, transactionID).StructScan(&dbTx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Transaction{}, repository.ErrNotFound
		}
		return model.Transaction{}, err
	}

	return dbConverter.ConvertTransaction(dbTx), nil
}

// GetTransactionsForHolding returns the full non-deleted set for a holding,
// ordered by date ascending, capped at maxUnboundedFetch rows.
func (r *Postgres) GetTransactionsForHolding(ctx context.Context, holdingID string) (txs []model.Transaction, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetTransactionsForHolding"
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE holding_id = $1
		AND deleted = false
		ORDER BY date, transaction_id
		LIMIT $2
		`

	slog.Debug("GetTransactionsForHolding start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("GetTransactionsForHolding failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetTransactionsForHolding completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	rows, err := r.txOrDb(ctx).QueryxContext(ctx, query, holdingID, maxUnboundedFetch+1)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	for rows.Next() {
		var dbTx dbModel.Transaction
		err = rows.StructScan(&dbTx)
		if err != nil {
			return nil, err
		}
		txs = append(txs, dbConverter.ConvertTransaction(dbTx))
	}

	if len(txs) > maxUnboundedFetch {
		slog.Warn(
			"transaction fetch truncated",
			slog.String("rqID", rqID),
			slog.String("op", op),
			slog.String("holdingID", holdingID),
			slog.Int("cap", maxUnboundedFetch),
		)
		txs = txs[:maxUnboundedFetch]
	}

	return txs, nil
}

// GetTransactionsPage returns one page of non-deleted transactions ordered by
// date descending, resuming after the cursor when one is supplied. It fetches
// limit+1 rows so the caller learns whether a next page exists.
func (r *Postgres) GetTransactionsPage(ctx context.Context, holdingID string, cursor *model.Cursor, limit int) (txs []model.Transaction, hasNextPage bool, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetTransactionsPage"
	params := map[string]any{
		"holdingID": holdingID,
		"cursor":    cursor,
		"limit":     limit,
	}

	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE holding_id = $1
		AND deleted = false
		ORDER BY date DESC, transaction_id DESC
		LIMIT $2
		`
	args := []any{holdingID, limit + 1}

	if cursor != nil {
		query = `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE holding_id = $1
		AND deleted = false
		AND (date, transaction_id) < ($3::date, $4::uuid)
		ORDER BY date DESC, transaction_id DESC
		LIMIT $2
		`
		args = append(args, cursor.Date, cursor.TransactionID)
	}

	slog.Debug("GetTransactionsPage start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Any("params", params))
	defer func() {
		if err != nil {
			slog.Error("GetTransactionsPage failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetTransactionsPage completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	rows, err := r.txOrDb(ctx).QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, false, err
	}

	defer rows.Close()

	i := 0
	txs = make([]model.Transaction, 0, limit)
	for rows.Next() {
		i++
		var dbTx dbModel.Transaction
		err = rows.StructScan(&dbTx)
		if err != nil {
			return nil, false, err
		}

		if i > limit { // one row past the limit means there is a next page
			hasNextPage = true
			break
		}
		txs = append(txs, dbConverter.ConvertTransaction(dbTx))
	}

	return txs, hasNextPage, nil
}

func (r *Postgres) CountTransactions(ctx context.Context, holdingID string) (count int, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.CountTransactions"
	query := `
		SELECT count(*) FROM transactions
		WHERE holding_id = $1
		AND deleted = false
		`

	slog.Debug("CountTransactions start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("CountTransactions failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("CountTransactions completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	err = r.txOrDb(ctx).QueryRowContext(ctx, query, holdingID).Scan(&count)
	if err != nil {
		return 0, err
	}

	return count, nil
}
