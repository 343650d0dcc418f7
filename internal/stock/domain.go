package stock

import (
	"errors"
	"time"
)

// Domain errors.
var (
	ErrNegativeStock    = errors.New("stock: operation would drive stock negative")
	ErrMaterialNotFound = errors.New("stock: raw material not found")
	ErrProductNotFound  = errors.New("stock: product not found")
)

// Requirement is a raw-material quantity an order consumes, derived from
// the bill of materials expanded over the order's items.
type Requirement struct {
	RawMaterialID int64
	Qty           float64
}

// Allocation is a reserved raw-material quantity held against an order.
type Allocation struct {
	ID            int64
	BatchID       string
	OrderID       int64
	RawMaterialID int64
	Qty           float64
	CreatedAt     time.Time
}

// ItemQuantity is a finished-good quantity on an order item.
type ItemQuantity struct {
	ProductID int64
	Qty       float64
}

// MaterialBalance is the current counter for a raw material.
type MaterialBalance struct {
	RawMaterialID int64
	Stock         float64
}

// ProductBalance is the current counter for a finished good.
type ProductBalance struct {
	ProductID int64
	Stock     float64
}
