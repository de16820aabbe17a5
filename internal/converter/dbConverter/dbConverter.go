package dbConverter

import (
	"time"

	"github.com/finfolio/folio/internal/model"
	"github.com/finfolio/folio/internal/model/dbModel"
)

func ConvertHolding(dbHolding dbModel.Holding) model.Holding {
	var lastTxDate time.Time
	if dbHolding.LastTransactionDate != nil {
		lastTxDate = *dbHolding.LastTransactionDate
	}

	return model.Holding{
		ID:                  dbHolding.HoldingID,
		UserID:              dbHolding.UserID,
		Type:                model.HoldingType(dbHolding.Type),
		Symbol:              dbHolding.Symbol,
		Name:                dbHolding.Name,
		Category:            dbHolding.Category,
		CurrentPrice:        dbHolding.CurrentPrice,
		TotalQuantity:       dbHolding.TotalQuantity,
		AvgCost:             dbHolding.AvgCost,
		TotalCost:           dbHolding.TotalCost,
		CurrentValue:        dbHolding.CurrentValue,
		TotalIncome:         dbHolding.TotalIncome,
		LastTransactionDate: lastTxDate,
		TransactionCount:    dbHolding.TransactionCount,
		CreatedAt:           dbHolding.CreatedAt,
		UpdatedAt:           dbHolding.UpdatedAt,
	}
}

func ConvertTransaction(dbTx dbModel.Transaction) model.Transaction {
	return model.Transaction{
		ID:                dbTx.TransactionID,
		HoldingID:         dbTx.HoldingID,
		Type:              model.TransactionType(dbTx.Type),
		Date:              dbTx.Date,
		Quantity:          dbTx.Quantity,
		Price:             dbTx.Price,
		Amount:            dbTx.Amount,
		InterestRate:      dbTx.InterestRate,
		InterestStartDate: dbTx.InterestStartDate,
		Deleted:           dbTx.Deleted,
		DeletedAt:         dbTx.DeletedAt,
		CreatedAt:         dbTx.CreatedAt,
		UpdatedAt:         dbTx.UpdatedAt,
	}
}
