package orders

import (
	"fmt"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

// OrderStatus enumerates order lifecycle states.
type OrderStatus string

const (
	StatusQuoted     OrderStatus = "QUOTED"
	StatusPending    OrderStatus = "PENDING"
	StatusConfirmed  OrderStatus = "CONFIRMED"
	StatusPaid       OrderStatus = "PAID"
	StatusOnDelivery OrderStatus = "ON_DELIVERY"
	StatusCompleted  OrderStatus = "COMPLETED"
	StatusCancelled  OrderStatus = "CANCELLED"
)

// transitions is the single source of truth for legal status moves. Quoted
// enters only through quotation conversion; Completed and Cancelled are
// terminal.
var transitions = map[OrderStatus][]OrderStatus{
	StatusQuoted:     {StatusPending, StatusCancelled},
	StatusPending:    {StatusConfirmed, StatusPaid, StatusOnDelivery, StatusCancelled},
	StatusConfirmed:  {StatusPaid, StatusOnDelivery, StatusCompleted, StatusCancelled},
	StatusPaid:       {StatusOnDelivery, StatusCompleted, StatusCancelled},
	StatusOnDelivery: {StatusCompleted, StatusCancelled},
	StatusCompleted:  {},
	StatusCancelled:  {},
}

// IsValid reports whether the status is a known value.
func (s OrderStatus) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

// IsTerminal reports whether no further transition leaves the status.
func (s OrderStatus) IsTerminal() bool {
	return len(transitions[s]) == 0 && s.IsValid()
}

// CanTransitionTo reports whether moving to next is legal.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// externallySettable lists statuses accepted on the general SetStatus path.
// Confirmed, Completed and Cancelled go through their dedicated methods.
var externallySettable = map[OrderStatus]bool{
	StatusPending:    true,
	StatusPaid:       true,
	StatusOnDelivery: true,
}

// ExternallySettable reports whether clients may request the status directly.
func (s OrderStatus) ExternallySettable() bool {
	return externallySettable[s]
}

// Domain errors.
var (
	ErrOrderNotFound     = fmt.Errorf("orders: order not found: %w", httpx.ErrNotFound)
	ErrUnknownStatus     = fmt.Errorf("orders: unknown status: %w", httpx.ErrValidation)
	ErrStatusNotSettable = fmt.Errorf("orders: status not externally settable: %w", httpx.ErrValidation)
	ErrIllegalTransition = fmt.Errorf("orders: illegal status transition: %w", httpx.ErrValidation)
)

// Order is a customer order. Orders are never physically deleted; terminal
// states keep them around for reporting and audits.
type Order struct {
	ID              int64
	OrderNo         string
	Status          OrderStatus
	DeliveryStatus  string
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	ShippingAddress string
	Subtotal        float64
	TaxAmount       float64
	ShippingAmount  float64
	TotalAmount     float64
	Notes           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OrderItem is one order line.
type OrderItem struct {
	ID        int64
	OrderID   int64
	ProductID int64
	Name      string
	Qty       float64
	UnitPrice float64
}

// StatusChange is one entry of an order's status history.
type StatusChange struct {
	ID         int64
	OrderID    int64
	FromStatus OrderStatus
	ToStatus   OrderStatus
	ActorID    int64
	Notes      string
	CreatedAt  time.Time
}

// ListFilter narrows order listings.
type ListFilter struct {
	Status OrderStatus
	Limit  int
	Offset int
}
