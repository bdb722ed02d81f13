package wallet

import (
	"errors"
	"fmt"
)

var (
	// ErrOverdrawnLot: a sale asked for more shares than the lot holds.
	ErrOverdrawnLot = errors.New("sale quantity exceeds remaining shares")

	// ErrCommittedLotConflict: the buy price or strategy of a lot with
	// recorded sales cannot change; only additive contributions at the
	// existing price are allowed.
	ErrCommittedLotConflict = errors.New("lot has recorded sales, buy price and strategy are frozen")

	ErrLotNotFound = errors.New("lot not found")
)

// ValidationError rejects bad input before any lot mutation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func validationErr(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
