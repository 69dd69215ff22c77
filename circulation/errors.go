package circulation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFoundOrAlreadyReturned: the loan is missing or no longer issued/overdue.
	// Callers send the user back to a safe view instead of showing an error.
	ErrNotFoundOrAlreadyReturned = errors.New("loan not found or already returned")
	// ErrInvalidInput: negative or non-numeric fine amount, rejected before any write.
	ErrInvalidInput = errors.New("invalid input")
	// ErrPersistenceFailure: the return transaction was rolled back.
	ErrPersistenceFailure = errors.New("could not record the return")

	ErrInventoryBound = errors.New("available quantity would exceed total quantity")
	ErrOutOfStock     = errors.New("no copies available")
	ErrLoanLimit      = errors.New("borrower has reached the active loan limit")
)

// ParseFineAmount reads a librarian-entered amount. Empty input means zero.
func ParseFineAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: fine amount %q is not a number", ErrInvalidInput, raw)
	}
	if amount.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: fine amount must not be negative", ErrInvalidInput)
	}
	return amount, nil
}
