package models

import (
	"time"

	"gofalre.io/inventory/models/enum"
)

type StockMovement struct {
	ID            int64                           `json:"id"`
	ProductID     string                          `json:"product_id"`
	Quantity      int64                           `json:"quantity"`
	Type          enum.StockMovementType          `json:"type"`
	ReferenceType enum.StockMovementReferenceType `json:"reference_type"`
	ReferenceID   uint64                          `json:"reference_id"`
	CreatedAt     time.Time                       `json:"created_at"`
}
