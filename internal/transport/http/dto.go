package http

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/finfolio/folio/internal/model"
	"github.com/finfolio/folio/internal/validation"
)

const dateLayout = "2006-01-02"

type transactionRequest struct {
	HoldingID string `json:"holdingId"`
	Type      string `json:"type" binding:"required"`
	Date      string `json:"date" binding:"required"`
	Quantity  string `json:"quantity"`
	Price     string `json:"price" binding:"required"`

	InterestRate      string `json:"interestRate"`
	InterestStartDate string `json:"interestStartDate"`

	NewHolding *holdingRequest `json:"newHolding"`
}

type holdingRequest struct {
	Type         string `json:"type" binding:"required"`
	Symbol       string `json:"symbol" binding:"required"`
	Name         string `json:"name" binding:"required"`
	Category     string `json:"category"`
	CurrentPrice string `json:"currentPrice"`
}

type priceRequest struct {
	CurrentPrice string `json:"currentPrice" binding:"required"`
}

func (r transactionRequest) toDraft() (model.TransactionDraft, error) {
	date, err := time.Parse(dateLayout, r.Date)
	if err != nil {
		return model.TransactionDraft{}, &validation.RejectionError{Reason: "date must be formatted as YYYY-MM-DD"}
	}

	quantity := decimal.Zero
	if r.Quantity != "" {
		quantity, err = decimal.NewFromString(r.Quantity)
		if err != nil {
			return model.TransactionDraft{}, &validation.RejectionError{Reason: "quantity must be a number"}
		}
	}

	price, err := decimal.NewFromString(r.Price)
	if err != nil {
		return model.TransactionDraft{}, &validation.RejectionError{Reason: "price must be a number"}
	}

	draft := model.TransactionDraft{
		HoldingID: r.HoldingID,
		Type:      model.TransactionType(r.Type),
		Date:      date,
		Quantity:  quantity,
		Price:     price,
	}

	if r.InterestRate != "" {
		rate, err := decimal.NewFromString(r.InterestRate)
		if err != nil {
			return model.TransactionDraft{}, &validation.RejectionError{Reason: "interest rate must be a number"}
		}
		draft.InterestRate = &rate
	}

	if r.InterestStartDate != "" {
		start, err := time.Parse(dateLayout, r.InterestStartDate)
		if err != nil {
			return model.TransactionDraft{}, &validation.RejectionError{Reason: "interest start date must be formatted as YYYY-MM-DD"}
		}
		draft.InterestStartDate = &start
	}

	if r.NewHolding != nil {
		currentPrice := decimal.Zero
		if r.NewHolding.CurrentPrice != "" {
			currentPrice, err = decimal.NewFromString(r.NewHolding.CurrentPrice)
			if err != nil {
				return model.TransactionDraft{}, &validation.RejectionError{Reason: "current price must be a number"}
			}
		}

		draft.NewHolding = &model.HoldingDraft{
			Type:         model.HoldingType(r.NewHolding.Type),
			Symbol:       r.NewHolding.Symbol,
			Name:         r.NewHolding.Name,
			Category:     r.NewHolding.Category,
			CurrentPrice: currentPrice,
		}
	}

	return draft, nil
}

type transactionResponse struct {
	ID        string          `json:"id"`
	HoldingID string          `json:"holdingId"`
	Type      string          `json:"type"`
	Date      string          `json:"date"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Amount    decimal.Decimal `json:"amount"`

	InterestRate      *decimal.Decimal `json:"interestRate,omitempty"`
	InterestStartDate string           `json:"interestStartDate,omitempty"`

	Deleted   bool       `json:"deleted"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
}

func toTransactionResponse(tx model.Transaction) transactionResponse {
	resp := transactionResponse{
		ID:           tx.ID,
		HoldingID:    tx.HoldingID,
		Type:         string(tx.Type),
		Date:         tx.Date.Format(dateLayout),
		Quantity:     tx.Quantity,
		Price:        tx.Price,
		Amount:       tx.Amount,
		InterestRate: tx.InterestRate,
		Deleted:      tx.Deleted,
		DeletedAt:    tx.DeletedAt,
	}
	if tx.InterestStartDate != nil {
		resp.InterestStartDate = tx.InterestStartDate.Format(dateLayout)
	}
	return resp
}

type holdingResponse struct {
	ID           string          `json:"id"`
	Type         string          `json:"type"`
	Symbol       string          `json:"symbol"`
	Name         string          `json:"name"`
	Category     string          `json:"category,omitempty"`
	CurrentPrice decimal.Decimal `json:"currentPrice"`

	TotalQuantity       decimal.Decimal `json:"totalQuantity"`
	AvgCost             decimal.Decimal `json:"avgCost"`
	TotalCost           decimal.Decimal `json:"totalCost"`
	CurrentValue        decimal.Decimal `json:"currentValue"`
	TotalIncome         decimal.Decimal `json:"totalIncome"`
	LastTransactionDate string          `json:"lastTransactionDate,omitempty"`
	TransactionCount    int             `json:"transactionCount"`
}

func toHoldingResponse(h model.Holding) holdingResponse {
	resp := holdingResponse{
		ID:               h.ID,
		Type:             string(h.Type),
		Symbol:           h.Symbol,
		Name:             h.Name,
		Category:         h.Category,
		CurrentPrice:     h.CurrentPrice,
		TotalQuantity:    h.TotalQuantity,
		AvgCost:          h.AvgCost,
		TotalCost:        h.TotalCost,
		CurrentValue:     h.CurrentValue,
		TotalIncome:      h.TotalIncome,
		TransactionCount: h.TransactionCount,
	}
	if !h.LastTransactionDate.IsZero() {
		resp.LastTransactionDate = h.LastTransactionDate.Format(dateLayout)
	}
	return resp
}

type pageResponse struct {
	Items       []transactionResponse `json:"items"`
	HasMore     bool                  `json:"hasMore"`
	NextCursor  *cursorResponse       `json:"nextCursor,omitempty"`
	ApproxTotal int                   `json:"approxTotal"`
}

type cursorResponse struct {
	Date          string `json:"date"`
	TransactionID string `json:"transactionId"`
}

func toPageResponse(page model.TransactionsPage) pageResponse {
	resp := pageResponse{
		Items:       make([]transactionResponse, 0, len(page.Items)),
		HasMore:     page.HasMore,
		ApproxTotal: page.ApproxTotal,
	}
	for _, tx := range page.Items {
		resp.Items = append(resp.Items, toTransactionResponse(tx))
	}
	if page.NextCursor != nil {
		resp.NextCursor = &cursorResponse{
			Date:          page.NextCursor.Date.Format(dateLayout),
			TransactionID: page.NextCursor.TransactionID,
		}
	}
	return resp
}
