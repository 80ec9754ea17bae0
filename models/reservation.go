package models

// ReservationItem is one requested decrement within a reservation.
type ReservationItem struct {
	ProductID string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
}

// ReservationRequest is a multi-item reservation. RequestID is optional; when
// set, a retried request that already committed is rejected instead of
// decrementing twice. OrderID is optional and only used to reference the
// originating order in the stock movement journal.
type ReservationRequest struct {
	RequestID string            `json:"request_id,omitempty"`
	OrderID   uint64            `json:"order_id,omitempty"`
	Items     []ReservationItem `json:"items"`
}

// StockChange records one committed quantity transition.
type StockChange struct {
	ProductID        string `json:"product_id"`
	PreviousQuantity int64  `json:"previous_quantity"`
	NewQuantity      int64  `json:"new_quantity"`
}

// ReservationResult covers every item of a successful reservation.
type ReservationResult struct {
	Changes []StockChange `json:"changes"`
}
