package ledger

import (
	"fmt"

	"gofalre.io/inventory/models"
)

// Validate decides whether a requested decrement can be admitted against the
// current stock record. rec is nil when the product has no record. It
// performs no I/O and mutates nothing, which is what lets the batch executor
// pre-validate every item before a single write is issued.
func Validate(productID string, rec *models.StockRecord, requested int64) error {
	if requested <= 0 {
		return fmt.Errorf("%w: quantity must be positive, got %d for product %s",
			ErrInvalidRequest, requested, productID)
	}
	if rec == nil {
		return &NotFoundError{ProductID: productID}
	}
	if rec.QuantityOnHand < requested {
		return &InsufficientStockError{
			ProductID: productID,
			Available: rec.QuantityOnHand,
			Requested: requested,
		}
	}
	return nil
}
