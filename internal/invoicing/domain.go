package invoicing

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// InvoiceStatus enumerates settlement states of a sales invoice.
type InvoiceStatus string

const (
	StatusUnpaid InvoiceStatus = "UNPAID"
	StatusPaid   InvoiceStatus = "PAID"
)

// Domain errors.
var (
	ErrOrderNotFound   = errors.New("invoicing: order not found")
	ErrInvoiceNotFound = errors.New("invoicing: invoice not found")
)

// SalesInvoice mirrors an order's billing state.
type SalesInvoice struct {
	ID             int64
	InvoiceNo      string
	OrderID        int64
	Status         InvoiceStatus
	Subtotal       float64
	TaxAmount      float64
	ShippingAmount float64
	TotalAmount    float64
	IssuedAt       time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// InvoiceLine is one billed order item.
type InvoiceLine struct {
	ID          int64
	InvoiceID   int64
	ProductID   int64
	Description string
	Qty         float64
	UnitPrice   float64
	LineTotal   float64
}

// OrderSummary is the slice of an order the synthesizer needs.
type OrderSummary struct {
	OrderID        int64
	Status         string
	Subtotal       float64
	TaxAmount      float64
	ShippingAmount float64
	TotalAmount    float64
}

// StatusForOrder derives the invoice status from the order status: completed
// orders are billed as paid, everything else stays unpaid.
func StatusForOrder(orderStatus string) InvoiceStatus {
	if orderStatus == "COMPLETED" {
		return StatusPaid
	}
	return StatusUnpaid
}

// NewInvoiceNumber builds a number of the form INV-YYYYMMDD-NNNN where NNNN
// is random. Collisions are caught by the unique index and retried.
func NewInvoiceNumber(now time.Time) string {
	return fmt.Sprintf("INV-%s-%04d", now.UTC().Format("20060102"), rand.IntN(10000))
}
