package domain

type OrderItemMsg struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// OrderMessage is published to the kitchen exchange once an order is
// confirmed server-side. MessageID is a fresh uuid per publish; OrderNumber
// is stable, so duplicate deliveries collapse on the consumer.
type OrderMessage struct {
	MessageID    string         `json:"message_id"`
	OrderNumber  string         `json:"order_number"`
	OrderType    string         `json:"order_type"`
	TableNumber  *string        `json:"table_number,omitempty"`
	DeliveryAddr *string        `json:"delivery_address,omitempty"`
	Items        []OrderItemMsg `json:"items"`
	TotalAmount  float64        `json:"total_amount"`
	Priority     int            `json:"priority"`
}
