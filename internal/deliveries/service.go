package deliveries

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/orders"
	"github.com/meridian-erp/meridian-erp/internal/rbac"
	"github.com/meridian-erp/meridian-erp/internal/riders"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the manager.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (*Delivery, error)
	GetByOrderID(ctx context.Context, orderID int64) (*Delivery, error)
	List(ctx context.Context, riderID int64, limit int) ([]Delivery, error)
	Create(ctx context.Context, d Delivery) (int64, error)
	UpdateStatus(ctx context.Context, id int64, status DeliveryStatus) error
	Update(ctx context.Context, d Delivery) error
	Delete(ctx context.Context, id int64) error
}

// OrderPort is the slice of the order controller the manager drives.
type OrderPort interface {
	Get(ctx context.Context, id int64) (*orders.Order, error)
	SetStatus(ctx context.Context, orderID int64, next orders.OrderStatus, actorID int64, notes string) error
	Complete(ctx context.Context, orderID, actorID int64, notes string) error
	ResetToPending(ctx context.Context, orderID, actorID int64, notes string) error
	SetDeliveryStatus(ctx context.Context, orderID int64, deliveryStatus string) error
}

// RiderPort is the slice of the rider registry the manager drives.
type RiderPort interface {
	Get(ctx context.Context, id int64) (*riders.Rider, error)
	Assign(ctx context.Context, riderID, actorID int64) error
	Release(ctx context.Context, riderID, actorID int64) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Manager creates and advances deliveries, keeping the order controller and
// rider registry in step with each move.
type Manager struct {
	logger *slog.Logger
	repo   RepositoryPort
	orders OrderPort
	riders RiderPort
	audit  AuditPort
}

// NewManager builds Manager.
func NewManager(logger *slog.Logger, repo RepositoryPort, orderPort OrderPort, riderPort RiderPort, audit AuditPort) *Manager {
	return &Manager{logger: logger, repo: repo, orders: orderPort, riders: riderPort, audit: audit}
}

// CreateInput carries the fields of a new delivery.
type CreateInput struct {
	OrderID      int64
	RiderID      int64
	DeliveryDate time.Time
	Quantity     float64
	Notes        string
}

// Get returns a delivery by id.
func (m *Manager) Get(ctx context.Context, id int64) (*Delivery, error) {
	return m.repo.Get(ctx, id)
}

// List returns deliveries, optionally scoped to one rider.
func (m *Manager) List(ctx context.Context, riderID int64, limit int) ([]Delivery, error) {
	return m.repo.List(ctx, riderID, limit)
}

// Create dispatches a pending order to a rider. Preconditions are checked
// before any write. After the delivery row exists, an order-status failure
// deletes it again; a rider-claim failure is logged and tolerated.
func (m *Manager) Create(ctx context.Context, input CreateInput, actorID int64) (*Delivery, error) {
	order, err := m.orders.Get(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if order.Status != orders.StatusPending {
		return nil, fmt.Errorf("%w: order %d is %s", ErrOrderNotPending, order.ID, order.Status)
	}
	if _, err := m.repo.GetByOrderID(ctx, input.OrderID); err == nil {
		return nil, fmt.Errorf("%w: order %d", ErrDeliveryExists, input.OrderID)
	} else if !errors.Is(err, ErrDeliveryNotFound) {
		return nil, err
	}
	rider, err := m.riders.Get(ctx, input.RiderID)
	if err != nil {
		if errors.Is(err, riders.ErrRiderNotFound) {
			return nil, fmt.Errorf("%w: rider %d", ErrRiderNotFound, input.RiderID)
		}
		return nil, err
	}
	if rider.Status != riders.StatusAvailable {
		return nil, fmt.Errorf("%w: rider %d", ErrRiderUnavailable, rider.ID)
	}

	delivery := Delivery{
		OrderID:      input.OrderID,
		RiderID:      input.RiderID,
		Status:       StatusAssigned,
		DeliveryDate: input.DeliveryDate,
		Quantity:     input.Quantity,
		Notes:        input.Notes,
	}
	delivery.ID, err = m.repo.Create(ctx, delivery)
	if err != nil {
		return nil, err
	}

	if err := m.orders.SetStatus(ctx, input.OrderID, orders.StatusOnDelivery, actorID, "delivery created"); err != nil {
		if delErr := m.repo.Delete(ctx, delivery.ID); delErr != nil {
			m.logger.Error("compensating delivery delete failed",
				slog.Int64("delivery_id", delivery.ID), slog.Any("error", delErr))
		}
		return nil, err
	}

	if err := m.riders.Assign(ctx, input.RiderID, actorID); err != nil {
		// accepted inconsistency, reconciled manually
		m.logger.Warn("rider claim failed after delivery created",
			slog.Int64("delivery_id", delivery.ID),
			slog.Int64("rider_id", input.RiderID),
			slog.Any("error", err))
	}
	if err := m.orders.SetDeliveryStatus(ctx, input.OrderID, string(StatusAssigned)); err != nil {
		m.logger.Warn("delivery status mirror failed",
			slog.Int64("order_id", input.OrderID), slog.Any("error", err))
	}

	if m.audit != nil {
		_ = m.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "deliveries:create",
			Entity:   "delivery",
			EntityID: fmt.Sprintf("%d", delivery.ID),
			Meta:     map[string]any{"order_id": input.OrderID, "rider_id": input.RiderID},
		})
	}
	return &delivery, nil
}

// UpdateStatus advances a delivery. Riders may move to InTransit or
// Delivered; marking a delivery Failed needs a privileged role. Delivered
// completes the order and frees the rider, Failed only frees the rider.
func (m *Manager) UpdateStatus(ctx context.Context, deliveryID int64, next DeliveryStatus, actor rbac.Actor) (*Delivery, error) {
	if !next.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStatus, next)
	}
	if !next.SettableBy(actor.Role) {
		return nil, fmt.Errorf("%w: %s by %s", ErrRoleNotAllowed, next, actor.Role)
	}
	delivery, err := m.repo.Get(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	if !delivery.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, delivery.Status, next)
	}

	if err := m.repo.UpdateStatus(ctx, deliveryID, next); err != nil {
		return nil, err
	}
	delivery.Status = next
	if err := m.orders.SetDeliveryStatus(ctx, delivery.OrderID, string(next)); err != nil {
		m.logger.Warn("delivery status mirror failed",
			slog.Int64("order_id", delivery.OrderID), slog.Any("error", err))
	}

	switch next {
	case StatusDelivered:
		if err := m.orders.Complete(ctx, delivery.OrderID, actor.UserID, "delivery completed"); err != nil {
			m.logger.Error("order completion failed after delivery",
				slog.Int64("order_id", delivery.OrderID), slog.Any("error", err))
		}
		m.releaseRider(ctx, delivery.RiderID, actor.UserID)
	case StatusFailed:
		m.releaseRider(ctx, delivery.RiderID, actor.UserID)
	}

	if m.audit != nil {
		_ = m.audit.Record(ctx, shared.AuditLog{
			ActorID:  actor.UserID,
			Action:   "deliveries:status",
			Entity:   "delivery",
			EntityID: fmt.Sprintf("%d", deliveryID),
			Meta:     map[string]any{"status": string(next)},
		})
	}
	return delivery, nil
}

// UpdateInput patches mutable delivery fields. Nil members stay unchanged.
type UpdateInput struct {
	DeliveryDate *time.Time
	Quantity     *float64
	Notes        *string
	Status       *DeliveryStatus
}

// Update is the admin patch path. A status change goes through the same
// transition and side-effect rules as UpdateStatus.
func (m *Manager) Update(ctx context.Context, deliveryID int64, input UpdateInput, actor rbac.Actor) (*Delivery, error) {
	delivery, err := m.repo.Get(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	if input.DeliveryDate != nil {
		delivery.DeliveryDate = *input.DeliveryDate
	}
	if input.Quantity != nil {
		delivery.Quantity = *input.Quantity
	}
	if input.Notes != nil {
		delivery.Notes = *input.Notes
	}
	if err := m.repo.Update(ctx, *delivery); err != nil {
		return nil, err
	}
	if input.Status != nil && *input.Status != delivery.Status {
		return m.UpdateStatus(ctx, deliveryID, *input.Status, actor)
	}
	return delivery, nil
}

// Delete is the admin rollback for a mistaken dispatch. Once the row is
// gone the order returns to Pending and the rider to Available, both
// best-effort.
func (m *Manager) Delete(ctx context.Context, deliveryID, actorID int64) error {
	delivery, err := m.repo.Get(ctx, deliveryID)
	if err != nil {
		return err
	}
	if err := m.repo.Delete(ctx, deliveryID); err != nil {
		return err
	}

	if err := m.orders.ResetToPending(ctx, delivery.OrderID, actorID, "delivery removed"); err != nil {
		m.logger.Warn("order reset failed after delivery delete",
			slog.Int64("order_id", delivery.OrderID), slog.Any("error", err))
	}
	if err := m.orders.SetDeliveryStatus(ctx, delivery.OrderID, ""); err != nil {
		m.logger.Warn("delivery status mirror clear failed",
			slog.Int64("order_id", delivery.OrderID), slog.Any("error", err))
	}
	m.releaseRider(ctx, delivery.RiderID, actorID)

	if m.audit != nil {
		_ = m.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "deliveries:delete",
			Entity:   "delivery",
			EntityID: fmt.Sprintf("%d", deliveryID),
			Meta:     map[string]any{"order_id": delivery.OrderID},
		})
	}
	return nil
}

func (m *Manager) releaseRider(ctx context.Context, riderID, actorID int64) {
	if err := m.riders.Release(ctx, riderID, actorID); err != nil {
		m.logger.Warn("rider release failed",
			slog.Int64("rider_id", riderID), slog.Any("error", err))
	}
}
