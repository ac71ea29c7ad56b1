package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types published to the event stream. Consumers (notifier, mirror)
// dispatch on these.
const (
	TypeOrderCompleted = "order.completed"
	TypeOrderShipped   = "order.shipped"
	TypeOrderDelivered = "order.delivered"
	TypeStockAdjusted  = "stock.adjusted"
	TypeStockSet       = "stock.set"
	TypePointsEarned   = "points.earned"
	TypePointsRedeemed = "points.redeemed"
)

// Event is the envelope written to Kafka. Key is the partition key (order key,
// stock key or user id depending on the event type).
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Key       string          `json:"key"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// New builds an envelope around a payload struct.
func New(eventType, key string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Key:       key,
		Data:      data,
		Timestamp: time.Now(),
	}, nil
}

// Publisher publishes events to the stream. Implementations must be safe for
// concurrent use. A nil Publisher is treated as a no-op by the domain services.
type Publisher interface {
	Publish(ctx context.Context, key string, event Event) error
}
