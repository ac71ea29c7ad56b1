package order

import "time"

// OrderCompleted is published when an order transitions to completed.
type OrderCompleted struct {
	Key            string    `json:"key"`
	Email          string    `json:"email"`
	UserID         string    `json:"user_id,omitempty"`
	Items          []Item    `json:"items"`
	Subtotal       int       `json:"subtotal"`
	Total          int       `json:"total"`
	PointsEarned   int       `json:"points_earned"`
	PointsRedeemed int       `json:"points_redeemed"`
	CompletedAt    time.Time `json:"completed_at"`
}

// OrderShipped is published when a shipping update moves an order forward.
// Delivered updates reuse the same payload under a different event type.
type OrderShipped struct {
	Key            string    `json:"key"`
	Email          string    `json:"email"`
	TrackingNumber string    `json:"tracking_number"`
	CarrierCode    string    `json:"carrier_code,omitempty"`
	Status         Status    `json:"status"`
	UpdatedAt      time.Time `json:"updated_at"`
}
