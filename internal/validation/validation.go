// Package validation sanitizes and bound-checks transaction input before the
// ledger commits it. Checks run in a fixed order and short-circuit on the
// first failure; every failure is a *RejectionError safe to show the caller.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finfolio/folio/internal/model"
)

const (
	minName      = 2
	minSymbol    = 2
	maxSymbol    = 20
	maxTextLen   = 500
	earliestDate = "2000-01-01"
)

var (
	maxQuantity = decimal.NewFromInt(1_000_000)
	maxPrice    = decimal.NewFromInt(10_000_000)
	maxAmount   = decimal.NewFromInt(1_000_000_000)
	maxRate     = decimal.NewFromInt(100)

	symbolRe       = regexp.MustCompile(`^[A-Za-z0-9.-]+$`)
	angleRe        = regexp.MustCompile(`[<>]`)
	jsSchemeRe     = regexp.MustCompile(`(?i)javascript:`)
	eventHandlerRe = regexp.MustCompile(`(?i)\bon\w+\s*=`)
)

// RejectionError is a user-correctable input error. It is surfaced verbatim
// and never retried automatically.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string {
	return e.Reason
}

func reject(format string, args ...any) error {
	return &RejectionError{Reason: fmt.Sprintf(format, args...)}
}

// Context carries what the checks need to know about the surrounding state:
// the wall clock, the existing holding (nil when the draft creates one) and
// whether the draft's symbol is already used within its instrument type.
type Context struct {
	Now         time.Time
	Holding     *model.Holding
	SymbolTaken bool
}

// Sanitize strips markup and script-injection patterns from free text, trims
// it and caps its length. Defense in depth only; the store's access rules are
// the primary security boundary.
func Sanitize(s string) string {
	s = angleRe.ReplaceAllString(s, "")
	s = jsSchemeRe.ReplaceAllString(s, "")
	s = eventHandlerRe.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)

	runes := []rune(s)
	if len(runes) > maxTextLen {
		s = string(runes[:maxTextLen])
	}
	return s
}

// ValidateTransaction runs the ordered checks against a sanitized draft.
func ValidateTransaction(draft model.TransactionDraft, vctx Context) error {
	if err := validateDate(draft.Date, vctx.Now); err != nil {
		return err
	}

	var instrumentType model.HoldingType
	switch {
	case vctx.Holding != nil:
		instrumentType = vctx.Holding.Type
	case draft.NewHolding != nil:
		instrumentType = draft.NewHolding.Type
	default:
		return reject("holding reference or new holding details required")
	}

	if !draft.Type.AllowedFor(instrumentType) {
		return reject("transaction type %q is not allowed for %s holdings", draft.Type, instrumentType)
	}

	// a brand-new holding has nothing to sell yet
	if draft.Type == model.TransactionTypeSell && draft.NewHolding != nil {
		return reject("sell requires an existing holding")
	}

	isTrade := draft.Type == model.TransactionTypeBuy || draft.Type == model.TransactionTypeSell
	if isTrade {
		if !draft.Quantity.IsPositive() {
			return reject("quantity must be positive")
		}
		if draft.Quantity.GreaterThan(maxQuantity) {
			return reject("quantity exceeds maximum of %s", maxQuantity)
		}
	} else if !draft.Quantity.IsZero() {
		return reject("quantity must be zero for %s transactions", draft.Type)
	}

	if draft.Type == model.TransactionTypeSell && vctx.Holding != nil {
		if draft.Quantity.GreaterThan(vctx.Holding.TotalQuantity) {
			return reject("insufficient quantity")
		}
	}

	if !draft.Price.IsPositive() {
		return reject("price must be positive")
	}
	if draft.Price.GreaterThan(maxPrice) {
		return reject("price exceeds maximum of %s", maxPrice)
	}

	amount := model.DeriveAmount(draft.Type, draft.Quantity, draft.Price)
	if amount.GreaterThan(maxAmount) {
		return reject("amount exceeds maximum of %s", maxAmount)
	}

	if draft.NewHolding != nil {
		if err := validateNewHolding(*draft.NewHolding, vctx.SymbolTaken); err != nil {
			return err
		}
	}

	if draft.InterestRate != nil {
		if instrumentType != model.HoldingTypeGold {
			return reject("interest rate is only supported for gold holdings")
		}
		if draft.InterestRate.IsNegative() || draft.InterestRate.GreaterThan(maxRate) {
			return reject("interest rate must be between 0 and 100")
		}
	}

	return nil
}

func validateDate(date, now time.Time) error {
	if date.IsZero() {
		return reject("date is required")
	}

	endOfToday := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 0, now.Location())
	if date.After(endOfToday) {
		return reject("date cannot be in the future")
	}

	earliest, _ := time.Parse("2006-01-02", earliestDate)
	if date.Before(earliest) {
		return reject("date cannot be before %s", earliestDate)
	}

	return nil
}

func validateNewHolding(draft model.HoldingDraft, symbolTaken bool) error {
	if !draft.Type.Valid() {
		return reject("unknown holding type %q", draft.Type)
	}
	if len([]rune(draft.Name)) < minName {
		return reject("name must be at least %d characters", minName)
	}
	if len(draft.Symbol) < minSymbol || len(draft.Symbol) > maxSymbol {
		return reject("symbol length must be between %d and %d characters", minSymbol, maxSymbol)
	}
	if !symbolRe.MatchString(draft.Symbol) {
		return reject("symbol may only contain letters, digits, dots and hyphens")
	}
	if symbolTaken {
		return reject("symbol %s already exists for %s holdings", draft.Symbol, draft.Type)
	}
	if draft.CurrentPrice.IsNegative() {
		return reject("current price cannot be negative")
	}
	return nil
}
