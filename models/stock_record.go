package models

import "time"

// StockRecord is the quantity-on-hand document for a single product. Version
// advances on every committed write and is the token conditional writes are
// keyed on.
type StockRecord struct {
	ProductID      string    `json:"product_id"`
	QuantityOnHand int64     `json:"quantity_on_hand"`
	Version        int64     `json:"version"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
