package model

import "time"

// Order status values used by the dashboard.
const (
	OrderStatusPending   = "Pending"
	OrderStatusCompleted = "Completed"
)

// OrderItem is one line of an order. Items are stored as a JSON array on the
// order row.
type OrderItem struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// Order represents a walk-in, customer or table order.
type Order struct {
	ID            int64       `json:"id"`
	CustomerName  string      `json:"customer_name,omitempty"`
	Phone         string      `json:"phone,omitempty"`
	TableNumber   string      `json:"table_number,omitempty"`
	Items         []OrderItem `json:"items"`
	TotalAmount   float64     `json:"total_amount"`
	PaymentMethod string      `json:"payment_method,omitempty"`
	Status        string      `json:"status"`
	CreatedOn     time.Time   `json:"created_on"`
}

// IsTableOrder reports whether the order was placed for a dine-in table.
func (o *Order) IsTableOrder() bool {
	return o.TableNumber != ""
}
