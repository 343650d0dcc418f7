package deliveries

import (
	"fmt"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/rbac"
)

// DeliveryStatus enumerates delivery lifecycle states.
type DeliveryStatus string

const (
	StatusAssigned  DeliveryStatus = "ASSIGNED"
	StatusInTransit DeliveryStatus = "IN_TRANSIT"
	StatusDelivered DeliveryStatus = "DELIVERED"
	StatusFailed    DeliveryStatus = "FAILED"
)

var deliveryTransitions = map[DeliveryStatus][]DeliveryStatus{
	StatusAssigned:  {StatusInTransit, StatusDelivered, StatusFailed},
	StatusInTransit: {StatusDelivered, StatusFailed},
	StatusDelivered: {},
	StatusFailed:    {},
}

// IsValid reports whether the status is a known value.
func (s DeliveryStatus) IsValid() bool {
	_, ok := deliveryTransitions[s]
	return ok
}

// CanTransitionTo reports whether moving to next is legal.
func (s DeliveryStatus) CanTransitionTo(next DeliveryStatus) bool {
	for _, allowed := range deliveryTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// SettableBy reports whether the role may set this status. Riders drive the
// happy path; marking a delivery failed is an admin call.
func (s DeliveryStatus) SettableBy(role rbac.Role) bool {
	switch s {
	case StatusInTransit, StatusDelivered:
		return role == rbac.RoleRider || role.Privileged()
	case StatusFailed:
		return role.Privileged()
	default:
		return false
	}
}

// Domain errors.
var (
	ErrDeliveryNotFound  = fmt.Errorf("deliveries: delivery not found: %w", httpx.ErrNotFound)
	ErrOrderNotPending   = fmt.Errorf("deliveries: order is not pending: %w", httpx.ErrConflict)
	ErrDeliveryExists    = fmt.Errorf("deliveries: order already has a delivery: %w", httpx.ErrConflict)
	ErrRiderUnavailable  = fmt.Errorf("deliveries: rider not available: %w", httpx.ErrConflict)
	ErrRiderNotFound     = fmt.Errorf("deliveries: rider not found: %w", httpx.ErrNotFound)
	ErrUnknownStatus     = fmt.Errorf("deliveries: unknown delivery status: %w", httpx.ErrValidation)
	ErrIllegalTransition = fmt.Errorf("deliveries: illegal delivery transition: %w", httpx.ErrValidation)
	ErrRoleNotAllowed    = fmt.Errorf("deliveries: role may not set this status: %w", httpx.ErrForbidden)
)

// Delivery ties an order to the rider carrying it out.
type Delivery struct {
	ID           int64
	OrderID      int64
	RiderID      int64
	Status       DeliveryStatus
	DeliveryDate time.Time
	Quantity     float64
	Notes        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
