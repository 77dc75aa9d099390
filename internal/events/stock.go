// Package events defines the messages the inventory service publishes.
package events

import (
	"encoding/json"
	"time"

	"github.com/avilov/inventory_service/pkg/messaging"
)

// StockLowEvent is published when a stock adjustment leaves a product below
// its low-stock threshold.
type StockLowEvent struct {
	ProductID         int64     `json:"product_id"`
	Name              string    `json:"name"`
	StockQuantity     int64     `json:"stock_quantity"`
	LowStockThreshold int64     `json:"low_stock_threshold"`
	OccurredAt        time.Time `json:"occurred_at"`
}

func (e StockLowEvent) Subject() string {
	return messaging.StockLowSubject
}

func (e StockLowEvent) Payload() ([]byte, error) {
	return json.Marshal(e)
}
