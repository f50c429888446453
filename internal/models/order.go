package models

import "time"

// Order statuses. Forward-progressing in normal operation; cancellation is
// reachable from any non-terminal status.
const (
	OrderStatusPending         = "pending"
	OrderStatusAwaitingPayment = "awaiting_payment"
	OrderStatusConfirmed       = "confirmed"
	OrderStatusPreparing       = "preparing"
	OrderStatusOnTheWay        = "on_the_way"
	OrderStatusCompleted       = "completed"
	OrderStatusCancelled       = "cancelled"
)

// Delivery methods
const (
	DeliveryMethodDelivery = "delivery"
	DeliveryMethodPickup   = "pickup"
)

// Order sources
const (
	OrderSourceBot = "bot"
	OrderSourceWeb = "web"
)

// OrderItem is one line item of an order.
type OrderItem struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
	Notes    string  `json:"notes,omitempty"`
}

// Order represents a purchase from either the bot flow or the web checkout.
type Order struct {
	ID            string      `json:"id"`
	CustomerPhone string      `json:"customer_phone"`
	CustomerName  string      `json:"customer_name"`
	Items         []OrderItem `json:"items"`
	Total         float64     `json:"total"`

	DeliveryMethod string `json:"delivery_method"`
	Address        string `json:"address,omitempty"`
	PickupTime     string `json:"pickup_time,omitempty"`

	Status        string `json:"status"`
	Source        string `json:"source"`
	PaymentMethod string `json:"payment_method,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ValidOrderStatus reports whether s is one of the known statuses.
func ValidOrderStatus(s string) bool {
	switch s {
	case OrderStatusPending, OrderStatusAwaitingPayment, OrderStatusConfirmed,
		OrderStatusPreparing, OrderStatusOnTheWay, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// TerminalStatus reports whether s ends the order lifecycle.
func TerminalStatus(s string) bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// ItemsTotal recomputes the order total from its line items. Persisted totals
// always come from this, never from a client-supplied number.
func ItemsTotal(items []OrderItem) float64 {
	total := 0.0
	for _, it := range items {
		qty := it.Quantity
		if qty <= 0 {
			qty = 1
		}
		total += it.Price * float64(qty)
	}
	return total
}
