package orders

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the controller.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (*Order, error)
	List(ctx context.Context, filter ListFilter) ([]Order, error)
	Items(ctx context.Context, orderID int64) ([]OrderItem, error)
	UpdateStatus(ctx context.Context, orderID int64, status OrderStatus) error
	UpdateDeliveryStatus(ctx context.Context, orderID int64, deliveryStatus string) error
	InsertStatusChange(ctx context.Context, change StatusChange) error
	StatusHistory(ctx context.Context, orderID int64) ([]StatusChange, error)
}

// InvoicePort keeps the order's invoice aligned with its status.
type InvoicePort interface {
	Sync(ctx context.Context, orderID, actorID int64) error
}

// StockPort reserves and consumes stock for orders.
type StockPort interface {
	Allocate(ctx context.Context, orderID, actorID int64) error
	ReleaseAllocations(ctx context.Context, orderID, actorID int64) error
	ConsumeOnCompletion(ctx context.Context, orderID, actorID int64) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort counts transition outcomes.
type MetricsPort interface {
	ObserveTransition(status string, ok bool)
}

// Service is the order status transition controller. Every status move goes
// through the central transition table; side effects run only after the
// primary status write succeeded.
type Service struct {
	logger   *slog.Logger
	repo     RepositoryPort
	invoices InvoicePort
	stock    StockPort
	audit    AuditPort
	metrics  MetricsPort
}

// NewService builds Service.
func NewService(logger *slog.Logger, repo RepositoryPort, invoices InvoicePort, stock StockPort, audit AuditPort, metrics MetricsPort) *Service {
	return &Service{logger: logger, repo: repo, invoices: invoices, stock: stock, audit: audit, metrics: metrics}
}

// Get returns an order by id.
func (s *Service) Get(ctx context.Context, id int64) (*Order, error) {
	return s.repo.Get(ctx, id)
}

// List returns orders matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Order, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, ErrUnknownStatus
	}
	return s.repo.List(ctx, filter)
}

// Items returns the order's lines.
func (s *Service) Items(ctx context.Context, orderID int64) ([]OrderItem, error) {
	return s.repo.Items(ctx, orderID)
}

// StatusHistory returns the order's status changes.
func (s *Service) StatusHistory(ctx context.Context, orderID int64) ([]StatusChange, error) {
	return s.repo.StatusHistory(ctx, orderID)
}

// SetStatus is the general transition path. Only Pending, Paid and
// OnDelivery may be requested directly; Confirm, Cancel and Complete have
// dedicated methods with their own side effects.
func (s *Service) SetStatus(ctx context.Context, orderID int64, next OrderStatus, actorID int64, notes string) error {
	if !next.IsValid() {
		return ErrUnknownStatus
	}
	if !next.ExternallySettable() {
		return ErrStatusNotSettable
	}
	order, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if !order.Status.CanTransitionTo(next) {
		s.observe(next, false)
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, order.Status, next)
	}
	return s.applyTransition(ctx, order, next, actorID, notes)
}

// Confirm moves a pending order to Confirmed and reserves raw materials.
// Allocation failure never rolls the status back; the reconciliation job
// repairs missing allocations later.
func (s *Service) Confirm(ctx context.Context, orderID, actorID int64, notes string) error {
	order, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != StatusPending {
		s.observe(StatusConfirmed, false)
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, order.Status, StatusConfirmed)
	}
	if err := s.applyTransition(ctx, order, StatusConfirmed, actorID, notes); err != nil {
		return err
	}
	if err := s.stock.Allocate(ctx, orderID, actorID); err != nil {
		s.logger.Error("stock allocation failed, order stays confirmed",
			slog.Int64("order_id", orderID), slog.Any("error", err))
	}
	return nil
}

// Cancel moves a non-terminal order to Cancelled and releases any reserved
// raw materials best-effort.
func (s *Service) Cancel(ctx context.Context, orderID, actorID int64, notes string) error {
	order, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if !order.Status.CanTransitionTo(StatusCancelled) {
		s.observe(StatusCancelled, false)
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, order.Status, StatusCancelled)
	}
	if err := s.applyTransition(ctx, order, StatusCancelled, actorID, notes); err != nil {
		return err
	}
	if err := s.stock.ReleaseAllocations(ctx, orderID, actorID); err != nil {
		s.logger.Warn("allocation release failed after cancel",
			slog.Int64("order_id", orderID), slog.Any("error", err))
	}
	return nil
}

// Complete moves an order to Completed. Used by the delivery path when a
// delivery is marked delivered.
func (s *Service) Complete(ctx context.Context, orderID, actorID int64, notes string) error {
	order, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if !order.Status.CanTransitionTo(StatusCompleted) {
		s.observe(StatusCompleted, false)
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, order.Status, StatusCompleted)
	}
	return s.applyTransition(ctx, order, StatusCompleted, actorID, notes)
}

// ResetToPending is the delivery-deletion rollback path. It bypasses the
// transition table on purpose: deleting a delivery puts the order back where
// delivery creation found it.
func (s *Service) ResetToPending(ctx context.Context, orderID, actorID int64, notes string) error {
	order, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status == StatusPending {
		return nil
	}
	return s.applyTransition(ctx, order, StatusPending, actorID, notes)
}

// SetDeliveryStatus updates the delivery-status mirror on the order row.
func (s *Service) SetDeliveryStatus(ctx context.Context, orderID int64, deliveryStatus string) error {
	return s.repo.UpdateDeliveryStatus(ctx, orderID, deliveryStatus)
}

// applyTransition persists the status and runs the dependent side effects.
// The caller has already validated the move. Side-effect failures after the
// status write follow their declared policies: invoice sync and stock
// consumption are logged and reconciled out of band, history is
// log-and-swallow.
func (s *Service) applyTransition(ctx context.Context, order *Order, next OrderStatus, actorID int64, notes string) error {
	old := order.Status
	if err := s.repo.UpdateStatus(ctx, order.ID, next); err != nil {
		s.observe(next, false)
		return err
	}
	s.observe(next, true)

	if next == StatusCompleted && old != StatusCompleted {
		if err := s.invoices.Sync(ctx, order.ID, actorID); err != nil {
			s.logger.Error("invoice sync failed on completion",
				slog.Int64("order_id", order.ID), slog.Any("error", err))
		}
		if err := s.stock.ConsumeOnCompletion(ctx, order.ID, actorID); err != nil {
			s.logger.Error("stock consumption failed on completion",
				slog.Int64("order_id", order.ID), slog.Any("error", err))
		}
	} else {
		if err := s.invoices.Sync(ctx, order.ID, actorID); err != nil {
			s.logger.Warn("invoice sync failed",
				slog.Int64("order_id", order.ID), slog.Any("error", err))
		}
	}

	if err := s.repo.InsertStatusChange(ctx, StatusChange{
		OrderID:    order.ID,
		FromStatus: old,
		ToStatus:   next,
		ActorID:    actorID,
		Notes:      notes,
	}); err != nil {
		s.logger.Warn("status history append failed",
			slog.Int64("order_id", order.ID), slog.Any("error", err))
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "orders:transition",
			Entity:   "order",
			EntityID: fmt.Sprintf("%d", order.ID),
			Meta:     map[string]any{"from": string(old), "to": string(next)},
		})
	}
	order.Status = next
	return nil
}

func (s *Service) observe(status OrderStatus, ok bool) {
	if s.metrics != nil {
		s.metrics.ObserveTransition(string(status), ok)
	}
}
