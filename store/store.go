// Package store is the document-store boundary the reservation ledger runs
// against: versioned reads, conditional single-record writes, and atomic
// multi-record transactions.
package store

import (
	"context"
	"errors"

	"gofalre.io/inventory/models"
)

var (
	// ErrNotFound means no stock record exists for the product.
	ErrNotFound = errors.New("stock record not found")

	// ErrVersionConflict means a conditional write lost to a concurrent
	// update of the same record.
	ErrVersionConflict = errors.New("stock record version conflict")

	// ErrTxAborted means a multi-record transaction detected a conflicting
	// concurrent write and was rolled back with no effects.
	ErrTxAborted = errors.New("stock transaction aborted")
)

// WriteOp replaces one stock record's quantity, keyed on the version observed
// when the new quantity was computed. Movement, when set, is journaled in the
// same transaction as the write.
type WriteOp struct {
	ProductID       string
	ExpectedVersion int64
	NewQuantity     int64
	Movement        *models.StockMovement
}

type Store interface {
	// GetRecord returns the current stock record, or ErrNotFound.
	GetRecord(ctx context.Context, productID string) (*models.StockRecord, error)

	// ConditionalWrite applies a single op, or returns ErrVersionConflict
	// without writing anything.
	ConditionalWrite(ctx context.Context, op WriteOp) error

	// RunTransaction applies every op or none of them; a stale version on
	// any op aborts the whole transaction with ErrTxAborted.
	RunTransaction(ctx context.Context, ops []WriteOp) error

	// ListStockMovements returns the journal for a product, newest first.
	ListStockMovements(ctx context.Context, productID string, limit, offset uint64) ([]*models.StockMovement, error)
}
