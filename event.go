package inventory

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"gofalre.io/inventory/models"
)

const stockChangedSubject = "inventory.stock.changed"

// Publisher is the slice of nats.Conn the event manager publishes through.
type Publisher interface {
	Publish(subject string, data []byte) error
}

type EventManager struct {
	natsConn *nats.Conn
	pub      Publisher
	logger   *zap.Logger
}

func NewEventManager(natsConn *nats.Conn, logger *zap.Logger) *EventManager {
	return &EventManager{
		natsConn: natsConn,
		pub:      natsConn,
		logger:   logger,
	}
}

// PublishStockChanged emits one event for the committed changes of a
// reservation or restore. Delivery is best-effort: the reservation result
// already belongs to the caller, so failures are logged, never propagated.
func (em *EventManager) PublishStockChanged(changes []models.StockChange) {
	event := models.StockChangedEvent{
		ID:         uuid.NewString(),
		Changes:    changes,
		OccurredAt: time.Now(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		em.logger.Error("Failed to marshal stock changed event", zap.Error(err))
		return
	}

	if err = em.pub.Publish(stockChangedSubject, data); err != nil {
		em.logger.Error("Failed to publish stock changed event",
			zap.String("event_id", event.ID), zap.Error(err))
	}
}

// SubscribeStockChanged feeds incoming stock-changed events into the worker
// pool. The caller owns the returned subscription and must unsubscribe it
// before shutting the pool down.
func (em *EventManager) SubscribeStockChanged(wp *WorkerPool) (*nats.Subscription, error) {
	return em.natsConn.Subscribe(stockChangedSubject, func(msg *nats.Msg) {
		var event models.StockChangedEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			em.logger.Error("Failed to unmarshal stock changed event", zap.Error(err))
			return
		}

		wp.Submit(context.Background(), &event)
	})
}
