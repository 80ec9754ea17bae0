package models

import "time"

// StockChangedEvent is published after a reservation or restore commits.
type StockChangedEvent struct {
	ID         string        `json:"id"`
	Changes    []StockChange `json:"changes"`
	OccurredAt time.Time     `json:"occurred_at"`
}
