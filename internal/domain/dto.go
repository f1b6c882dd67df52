package domain

import "time"

// SubmitOrderRequest is the payload the terminal sends to the order
// service. LocalID is client-generated and the idempotency key for
// retried submissions.
type SubmitOrderRequest struct {
	LocalID         string     `json:"local_id"`
	OrderType       string     `json:"order_type"`
	TableNumber     *string    `json:"table_number,omitempty"`
	DeliveryAddress *string    `json:"delivery_address,omitempty"`
	Items           []CartLine `json:"items"`
	Subtotal        float64    `json:"subtotal"`
	Total           float64    `json:"total"`
	PointsUsed      int        `json:"points_used"`
	CustomerID      *string    `json:"customer_id,omitempty"`
	StaffID         string     `json:"staff_id"`
	CreatedAt       time.Time  `json:"created_at"`
}

type SubmitOrderResponse struct {
	OrderNumber  string  `json:"order_number"`
	Status       string  `json:"status"`
	TotalAmount  float64 `json:"total_amount"`
	PointsEarned int     `json:"points_earned"`
}

// CustomerLookupResponse is what the customer endpoint returns; unknown
// customers come back as a zero-points default rather than an error.
type CustomerLookupResponse struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Points int    `json:"points"`
}
