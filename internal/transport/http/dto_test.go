package http

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finfolio/folio/internal/model"
	"github.com/finfolio/folio/internal/validation"
)

func TestToDraft(t *testing.T) {
	req := transactionRequest{
		HoldingID: "h1",
		Type:      "buy",
		Date:      "2026-08-01",
		Quantity:  "10.5",
		Price:     "2450.25",
	}

	draft, err := req.toDraft()
	require.NoError(t, err)

	assert.Equal(t, "h1", draft.HoldingID)
	assert.Equal(t, model.TransactionTypeBuy, draft.Type)
	assert.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), draft.Date)
	assert.Equal(t, "10.5", draft.Quantity.String())
	assert.Equal(t, "2450.25", draft.Price.String())
	assert.Nil(t, draft.InterestRate)
	assert.Nil(t, draft.NewHolding)
}

func TestToDraft_NewHoldingAndGoldFields(t *testing.T) {
	req := transactionRequest{
		Type:              "buy",
		Date:              "2026-08-01",
		Quantity:          "20",
		Price:             "5000",
		InterestRate:      "3",
		InterestStartDate: "2026-08-15",
		NewHolding: &holdingRequest{
			Type:         "gold",
			Symbol:       "GOLD-BOND",
			Name:         "Gold bond",
			CurrentPrice: "5100",
		},
	}

	draft, err := req.toDraft()
	require.NoError(t, err)

	require.NotNil(t, draft.InterestRate)
	assert.Equal(t, "3", draft.InterestRate.String())
	require.NotNil(t, draft.InterestStartDate)
	assert.Equal(t, time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC), *draft.InterestStartDate)
	require.NotNil(t, draft.NewHolding)
	assert.Equal(t, model.HoldingTypeGold, draft.NewHolding.Type)
	assert.Equal(t, "5100", draft.NewHolding.CurrentPrice.String())
}

func TestToDraft_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*transactionRequest)
		reason string
	}{
		{"bad date", func(r *transactionRequest) { r.Date = "01.08.2026" }, "date must be formatted as YYYY-MM-DD"},
		{"bad quantity", func(r *transactionRequest) { r.Quantity = "ten" }, "quantity must be a number"},
		{"bad price", func(r *transactionRequest) { r.Price = "free" }, "price must be a number"},
		{"bad rate", func(r *transactionRequest) { r.InterestRate = "3%" }, "interest rate must be a number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := transactionRequest{Type: "buy", Date: "2026-08-01", Quantity: "1", Price: "100"}
			tt.mutate(&req)

			_, err := req.toDraft()

			var rejection *validation.RejectionError
			require.ErrorAs(t, err, &rejection)
			assert.Equal(t, tt.reason, rejection.Reason)
		})
	}
}

func TestToPageResponse(t *testing.T) {
	cursorDate := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	page := model.TransactionsPage{
		Items: []model.Transaction{
			{ID: "t1", HoldingID: "h1", Type: model.TransactionTypeBuy, Date: cursorDate},
		},
		HasMore:     true,
		NextCursor:  &model.Cursor{Date: cursorDate, TransactionID: "t1"},
		ApproxTotal: 25,
	}

	resp := toPageResponse(page)

	require.Len(t, resp.Items, 1)
	assert.Equal(t, "2026-08-01", resp.Items[0].Date)
	assert.True(t, resp.HasMore)
	require.NotNil(t, resp.NextCursor)
	assert.Equal(t, "2026-08-01", resp.NextCursor.Date)
	assert.Equal(t, "t1", resp.NextCursor.TransactionID)
	assert.Equal(t, 25, resp.ApproxTotal)
}
