package service

import "errors"

var (
	ErrNotFound = errors.New("error not found")

	// ErrInsufficientQuantity means a sell would drive the holding quantity negative.
	ErrInsufficientQuantity = errors.New("insufficient quantity")

	// ErrAggregatesStale is returned together with a successfully committed
	// transaction when the follow-up stats recomputation failed. The write is
	// not rolled back; the caller should refresh aggregates manually.
	ErrAggregatesStale = errors.New("transaction saved but aggregates may be stale")
)
