// Package inventory exposes the reservation ledger to the order-fulfillment
// workflow: single and batched stock decrements, compensating restores, and
// stock-changed event fan-out to the notification collaborator.
package inventory

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"gofalre.io/inventory/ledger"
	"gofalre.io/inventory/models"
	"gofalre.io/inventory/store"
)

const eventKeyPrefix = "inventory:event:"

// Notifier is the downstream notification collaborator. It receives committed
// stock changes; what it renders or delivers from them is not this module's
// concern.
type Notifier interface {
	NotifyStockChanged(ctx context.Context, changes []models.StockChange) error
}

type Service interface {
	Reserve(ctx context.Context, productID string, quantity int64) (*models.StockChange, error)
	ReserveAll(ctx context.Context, req *models.ReservationRequest) (*models.ReservationResult, error)
	RestoreStock(ctx context.Context, items []models.ReservationItem, orderID uint64) (*models.ReservationResult, error)

	GetStockRecord(ctx context.Context, productID string) (*models.StockRecord, error)
	ListStockMovements(ctx context.Context, productID string, limit, offset uint64) ([]*models.StockMovement, error)

	Close()
}

type service struct {
	ledger *ledger.Ledger
	store  store.Store
	cache  *store.StockCache
	guard  ledger.RequestGuard

	eventManager *EventManager
	workerPool   *WorkerPool
	sub          *nats.Subscription

	notifier Notifier
	logger   *zap.Logger
}

// NewService wires the ledger, its store, and the event side together. cache,
// guard, and notifier may be nil; the corresponding concern is then skipped.
func NewService(
	st store.Store, cache *store.StockCache, guard ledger.RequestGuard,
	natsConn *nats.Conn, notifier Notifier,
	logger *zap.Logger) Service {
	s := &service{
		store:    st,
		cache:    cache,
		guard:    guard,
		notifier: notifier,
		logger:   logger,
	}
	s.eventManager = NewEventManager(natsConn, logger)
	s.workerPool = NewWorkerPool(10, s, logger)
	s.ledger = ledger.NewLedger(st, guard, s.eventManager.PublishStockChanged, logger)

	sub, err := s.eventManager.SubscribeStockChanged(s.workerPool)
	if err != nil {
		logger.Error("Failed to subscribe to stock events", zap.Error(err))
	} else {
		s.sub = sub
	}

	return s
}

func (s *service) Reserve(ctx context.Context, productID string, quantity int64) (*models.StockChange, error) {
	change, err := s.ledger.Reserve(ctx, productID, quantity)
	if err != nil {
		return nil, err
	}

	s.invalidateCache(ctx, productID)
	return change, nil
}

func (s *service) ReserveAll(ctx context.Context, req *models.ReservationRequest) (*models.ReservationResult, error) {
	result, err := s.ledger.ReserveAll(ctx, req)
	if err != nil {
		return nil, err
	}

	s.invalidateCache(ctx, changedProducts(result)...)
	return result, nil
}

func (s *service) RestoreStock(ctx context.Context, items []models.ReservationItem, orderID uint64) (*models.ReservationResult, error) {
	result, err := s.ledger.Restore(ctx, items, orderID)
	if err != nil {
		return nil, err
	}

	s.invalidateCache(ctx, changedProducts(result)...)
	return result, nil
}

func (s *service) GetStockRecord(ctx context.Context, productID string) (*models.StockRecord, error) {
	if s.cache != nil {
		if rec, found := s.cache.Get(ctx, productID); found {
			return rec, nil
		}
	}

	rec, err := s.store.GetRecord(ctx, productID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Set(ctx, rec)
	}
	return rec, nil
}

func (s *service) ListStockMovements(ctx context.Context, productID string, limit, offset uint64) ([]*models.StockMovement, error) {
	return s.store.ListStockMovements(ctx, productID, limit, offset)
}

// ProcessStockChangedEvent handles one stock-changed event off the worker
// pool: drops redeliveries, invalidates cached records (events also arrive
// from other instances), and hands the changes to the notifier.
func (s *service) ProcessStockChangedEvent(ctx context.Context, event *models.StockChangedEvent) error {
	if s.guard != nil {
		first, err := s.guard.SetIfAbsent(ctx, eventKeyPrefix+event.ID)
		if err != nil {
			return fmt.Errorf("event dedup: %w", err)
		}
		if !first {
			s.logger.Info("stock event already processed", zap.String("event_id", event.ID))
			return nil
		}
	}

	ids := make([]string, 0, len(event.Changes))
	for _, c := range event.Changes {
		ids = append(ids, c.ProductID)
	}
	s.invalidateCache(ctx, ids...)

	if s.notifier == nil {
		return nil
	}
	if err := s.notifier.NotifyStockChanged(ctx, event.Changes); err != nil {
		// Undelivered, so unmark the event: a redelivery should reach the
		// notifier again instead of being dropped as a duplicate.
		if s.guard != nil {
			if delErr := s.guard.Delete(context.WithoutCancel(ctx), eventKeyPrefix+event.ID); delErr != nil {
				s.logger.Error("failed to release event mark",
					zap.String("event_id", event.ID), zap.Error(delErr))
			}
		}
		return fmt.Errorf("notify stock changed: %w", err)
	}
	return nil
}

// Close stops event intake before the pool: the subscription goes first so a
// message delivered during shutdown cannot reach a closed pool.
func (s *service) Close() {
	if s.sub != nil {
		if err := s.sub.Unsubscribe(); err != nil {
			s.logger.Error("Failed to unsubscribe from stock events", zap.Error(err))
		}
	}
	s.workerPool.Shutdown()
}

func (s *service) invalidateCache(ctx context.Context, productIDs ...string) {
	if s.cache == nil {
		return
	}
	s.cache.Invalidate(ctx, productIDs...)
}

func changedProducts(result *models.ReservationResult) []string {
	ids := make([]string, 0, len(result.Changes))
	for _, c := range result.Changes {
		ids = append(ids, c.ProductID)
	}
	return ids
}
