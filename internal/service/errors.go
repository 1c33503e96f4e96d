package service

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrSaleNotFound      = errors.New("sale not found")
	ErrInvalidQuantity   = errors.New("quantity must be at least 1")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrAlreadyCancelled  = errors.New("sale already cancelled")
	ErrPersistence       = errors.New("persistence failure")

	ErrInvalidInput     = errors.New("invalid input")
	ErrDuplicateBarcode = errors.New("barcode already in use")
)

// StockError reports how far short the shelf was. It matches
// ErrInsufficientStock with errors.Is.
type StockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

func (e *StockError) Unwrap() error {
	return ErrInsufficientStock
}

// LineError ties a failure to one line of a multi-line operation. Index is
// 1-based.
type LineError struct {
	Index int
	Lines int
	Err   error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d of %d: %v", e.Index, e.Lines, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

func persistence(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// classified reports whether err already carries one of this package's kinds.
func classified(err error) bool {
	for _, kind := range []error{
		ErrProductNotFound, ErrSaleNotFound, ErrInvalidQuantity, ErrInsufficientStock,
		ErrAlreadyCancelled, ErrPersistence, ErrInvalidInput, ErrDuplicateBarcode,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// settle turns an error out of WithinTx into something callers can match on.
// Commit failures come back unclassified.
func settle(op string, err error) error {
	if err == nil || classified(err) {
		return err
	}
	return persistence(op, err)
}

func nonNegative(values ...decimal.Decimal) bool {
	for _, v := range values {
		if v.IsNegative() {
			return false
		}
	}
	return true
}
