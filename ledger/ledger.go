// Package ledger validates and applies stock decrements during order
// fulfillment. All state lives in the backing store; safety under concurrent
// reservations comes from the store's conditional-write and transaction
// primitives plus a bounded read-validate-write retry loop.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"gofalre.io/inventory/models"
	"gofalre.io/inventory/models/enum"
	"gofalre.io/inventory/store"
)

// maxAttempts bounds the read-validate-write loop. Validation rejects are
// never retried; only lost conditional writes and aborted transactions are.
const maxAttempts = 3

const requestKeyPrefix = "reservation:request:"

// RequestGuard marks request IDs exactly once so retried requests that
// already committed are refused instead of double-decremented.
type RequestGuard interface {
	SetIfAbsent(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

// OnReserved receives the committed changes of a successful reservation or
// restore. Delivery is best-effort: implementations must not block, and any
// downstream failure is theirs to log.
type OnReserved func(changes []models.StockChange)

type Ledger struct {
	store      store.Store
	guard      RequestGuard
	onReserved OnReserved
	logger     *zap.Logger
}

// NewLedger wires the ledger to its store. guard and onReserved may be nil.
func NewLedger(s store.Store, guard RequestGuard, onReserved OnReserved, logger *zap.Logger) *Ledger {
	return &Ledger{
		store:      s,
		guard:      guard,
		onReserved: onReserved,
		logger:     logger,
	}
}

// Reserve applies a single validated decrement. On a lost conditional write
// the read-validate-write sequence is repeated up to maxAttempts before
// surfacing ErrContention; zero writes are committed on any failure path.
func (l *Ledger) Reserve(ctx context.Context, productID string, quantity int64) (*models.StockChange, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive, got %d for product %s",
			ErrInvalidRequest, quantity, productID)
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		rec, err := l.readRecord(ctx, productID)
		if err != nil {
			return nil, err
		}
		if err = Validate(productID, rec, quantity); err != nil {
			return nil, err
		}
		if err = ctx.Err(); err != nil {
			return nil, err
		}

		op := store.WriteOp{
			ProductID:       productID,
			ExpectedVersion: rec.Version,
			NewQuantity:     rec.QuantityOnHand - quantity,
			Movement: &models.StockMovement{
				ProductID: productID,
				Quantity:  quantity,
				Type:      enum.StockMovementTypeOut,
			},
		}
		err = l.store.ConditionalWrite(ctx, op)
		if errors.Is(err, store.ErrVersionConflict) {
			l.logger.Warn("stock record changed underneath, retrying",
				zap.String("product_id", productID), zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("conditional write for product %s: %w", productID, err)
		}

		change := models.StockChange{
			ProductID:        productID,
			PreviousQuantity: rec.QuantityOnHand,
			NewQuantity:      rec.QuantityOnHand - quantity,
		}
		l.notify([]models.StockChange{change})
		return &change, nil
	}

	return nil, ErrContention
}

// ReserveAll applies a multi-item reservation: duplicate product IDs are
// merged by summing, every item is validated against current stock, and only
// if all admit is one atomic multi-record transaction issued. A validation
// failure on any item rejects the whole request with every failing item
// enumerated and no writes performed.
func (l *Ledger) ReserveAll(ctx context.Context, req *models.ReservationRequest) (*models.ReservationResult, error) {
	items, err := normalizeItems(req.Items)
	if err != nil {
		return nil, err
	}

	guarded := req.RequestID != "" && l.guard != nil
	if guarded {
		ok, guardErr := l.guard.SetIfAbsent(ctx, requestKeyPrefix+req.RequestID)
		if guardErr != nil {
			return nil, fmt.Errorf("request guard: %w", guardErr)
		}
		if !ok {
			return nil, ErrDuplicateRequest
		}
	}

	result, err := l.reserveAll(ctx, req.OrderID, items)
	if err != nil && guarded {
		// Nothing committed; release the mark so the caller can retry. The
		// failure may be the request context getting cancelled, so the
		// release must not ride on it.
		if delErr := l.guard.Delete(context.WithoutCancel(ctx), requestKeyPrefix+req.RequestID); delErr != nil {
			l.logger.Error("failed to release request guard",
				zap.String("request_id", req.RequestID), zap.Error(delErr))
		}
	}
	return result, err
}

func (l *Ledger) reserveAll(ctx context.Context, orderID uint64, items []models.ReservationItem) (*models.ReservationResult, error) {
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		ops := make([]store.WriteOp, 0, len(items))
		changes := make([]models.StockChange, 0, len(items))
		var failures []ItemFailure

		for _, item := range items {
			rec, err := l.readRecord(ctx, item.ProductID)
			if err != nil {
				return nil, err
			}
			if err = Validate(item.ProductID, rec, item.Quantity); err != nil {
				failures = append(failures, ItemFailure{ProductID: item.ProductID, Err: err})
				continue
			}
			ops = append(ops, store.WriteOp{
				ProductID:       item.ProductID,
				ExpectedVersion: rec.Version,
				NewQuantity:     rec.QuantityOnHand - item.Quantity,
				Movement: &models.StockMovement{
					ProductID:     item.ProductID,
					Quantity:      item.Quantity,
					Type:          enum.StockMovementTypeOut,
					ReferenceType: enum.StockMovementReferenceTypeOrder,
					ReferenceID:   orderID,
				},
			})
			changes = append(changes, models.StockChange{
				ProductID:        item.ProductID,
				PreviousQuantity: rec.QuantityOnHand,
				NewQuantity:      rec.QuantityOnHand - item.Quantity,
			})
		}

		if len(failures) > 0 {
			return nil, &BatchError{Failures: failures}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		err := l.store.RunTransaction(ctx, ops)
		if errors.Is(err, store.ErrTxAborted) {
			l.logger.Warn("reservation transaction aborted, retrying", zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("commit reservation: %w", err)
		}

		l.notify(changes)
		return &models.ReservationResult{Changes: changes}, nil
	}

	return nil, ErrContention
}

// Restore puts previously reserved quantities back, e.g. when an order is
// cancelled or refunded. Quantities only grow, so no stock-level validation
// applies; a missing record is still surfaced per item.
func (l *Ledger) Restore(ctx context.Context, items []models.ReservationItem, orderID uint64) (*models.ReservationResult, error) {
	merged, err := normalizeItems(items)
	if err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		ops := make([]store.WriteOp, 0, len(merged))
		changes := make([]models.StockChange, 0, len(merged))
		var failures []ItemFailure

		for _, item := range merged {
			rec, err := l.readRecord(ctx, item.ProductID)
			if err != nil {
				return nil, err
			}
			if rec == nil {
				failures = append(failures, ItemFailure{
					ProductID: item.ProductID,
					Err:       &NotFoundError{ProductID: item.ProductID},
				})
				continue
			}
			ops = append(ops, store.WriteOp{
				ProductID:       item.ProductID,
				ExpectedVersion: rec.Version,
				NewQuantity:     rec.QuantityOnHand + item.Quantity,
				Movement: &models.StockMovement{
					ProductID:     item.ProductID,
					Quantity:      item.Quantity,
					Type:          enum.StockMovementTypeIn,
					ReferenceType: enum.StockMovementReferenceTypeReturn,
					ReferenceID:   orderID,
				},
			})
			changes = append(changes, models.StockChange{
				ProductID:        item.ProductID,
				PreviousQuantity: rec.QuantityOnHand,
				NewQuantity:      rec.QuantityOnHand + item.Quantity,
			})
		}

		if len(failures) > 0 {
			return nil, &BatchError{Failures: failures}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		err := l.store.RunTransaction(ctx, ops)
		if errors.Is(err, store.ErrTxAborted) {
			l.logger.Warn("restore transaction aborted, retrying", zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("commit restore: %w", err)
		}

		l.notify(changes)
		return &models.ReservationResult{Changes: changes}, nil
	}

	return nil, ErrContention
}

// readRecord maps the store's not-found to a nil record so the validator can
// turn it into a per-item rejection. Every other store fault propagates.
func (l *Ledger) readRecord(ctx context.Context, productID string) (*models.StockRecord, error) {
	rec, err := l.store.GetRecord(ctx, productID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read stock record %s: %w", productID, err)
	}
	return rec, nil
}

func (l *Ledger) notify(changes []models.StockChange) {
	if l.onReserved == nil {
		return
	}
	l.onReserved(changes)
}

// normalizeItems merges duplicate product IDs by summing their quantities,
// keeping first-occurrence order, so two entries for the same product cannot
// each pass validation against stock that only covers one of them.
func normalizeItems(items []models.ReservationItem) ([]models.ReservationItem, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no items", ErrInvalidRequest)
	}

	merged := make([]models.ReservationItem, 0, len(items))
	index := make(map[string]int, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity must be positive, got %d for product %s",
				ErrInvalidRequest, item.Quantity, item.ProductID)
		}
		if i, ok := index[item.ProductID]; ok {
			merged[i].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(merged)
		merged = append(merged, item)
	}
	return merged, nil
}
