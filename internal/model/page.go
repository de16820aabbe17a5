package model

import "time"

// Cursor resumes a transaction page listing after the record it points at.
// It is returned by every page fetch and threaded back by the caller; jumping
// to an arbitrary page without walking the prior cursors is unsupported.
type Cursor struct {
	Date          time.Time `json:"date"`
	TransactionID string    `json:"transactionId"`
}

type TransactionsPage struct {
	Items      []Transaction
	HasMore    bool
	NextCursor *Cursor
	// ApproxTotal is a separate count for UI labeling only; pagination
	// correctness relies solely on HasMore.
	ApproxTotal int
}
