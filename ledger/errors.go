package ledger

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidRequest marks a caller bug: a non-positive quantity or an
	// empty item list. Never retried.
	ErrInvalidRequest = errors.New("invalid reservation request")

	// ErrContention is returned after the bounded optimistic-concurrency
	// retries are exhausted. The caller may retry the whole operation.
	ErrContention = errors.New("reservation contention: retries exhausted")

	// ErrDuplicateRequest is returned when a request ID was already
	// committed by an earlier attempt.
	ErrDuplicateRequest = errors.New("duplicate reservation request")
)

// NotFoundError reports a product with no stock record.
type NotFoundError struct {
	ProductID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("stock record not found for product %s", e.ProductID)
}

// InsufficientStockError reports a business-rule rejection.
type InsufficientStockError struct {
	ProductID string
	Available int64
	Requested int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: available %d, requested %d",
		e.ProductID, e.Available, e.Requested)
}

// ItemFailure pairs a failing product with its rejection reason.
type ItemFailure struct {
	ProductID string
	Err       error
}

// BatchError carries every validation failure of a batch reservation, in
// request order. No writes were performed for any item.
type BatchError struct {
	Failures []ItemFailure
}

func (e *BatchError) Error() string {
	reasons := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		reasons = append(reasons, f.Err.Error())
	}
	return fmt.Sprintf("reservation rejected for %d item(s): %s", len(e.Failures), strings.Join(reasons, "; "))
}
