package domain

import "time"

type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusCompleted OrderStatus = "completed"
	StatusCancelled OrderStatus = "cancelled"
	// StatusFailed marks an order the server rejected outright; it is never
	// retried automatically and needs operator attention.
	StatusFailed OrderStatus = "failed"
)

const (
	OrderTypeDineIn   = "dine_in"
	OrderTypeTakeout  = "takeout"
	OrderTypeDelivery = "delivery"
)

// CartLine is one line of the active cart session.
type CartLine struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

// PendingOrder is an order captured on the terminal, durable before the
// server has confirmed it. SyncFlag stays 0 until confirmation; synced
// orders are kept as history rather than deleted.
type PendingOrder struct {
	LocalID      string      `json:"local_id"`
	Status       OrderStatus `json:"status"`
	OrderType    string      `json:"order_type"`
	Items        []CartLine  `json:"items"`
	Subtotal     float64     `json:"subtotal"`
	Total        float64     `json:"total"`
	TableNumber  *string     `json:"table_number,omitempty"`
	DeliveryAddr *string     `json:"delivery_address,omitempty"`
	CustomerID   *string     `json:"customer_id,omitempty"`
	PointsUsed   int         `json:"points_used"`
	CreatedAt    time.Time   `json:"created_at"`
	SyncFlag     int         `json:"sync_flag"` // 0 = queued, 1 = server confirmed
}

// LoyaltyAccount is a read-only snapshot of a server-owned account. The
// terminal never mutates the balance directly; all changes flow through
// order submission.
type LoyaltyAccount struct {
	CustomerID    string `json:"id"`
	Name          string `json:"name"`
	PointsBalance int    `json:"points"`
}

// ConnectivitySnapshot is the process-wide view the sync indicator reads.
type ConnectivitySnapshot struct {
	IsOnline      bool `json:"is_online"`
	PendingOrders int  `json:"pending_orders"`
}
