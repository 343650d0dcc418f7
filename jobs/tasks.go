package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAllocationScan repairs orders whose confirmation-time stock
	// allocation failed or never ran.
	TaskAllocationScan = "stock:allocation_scan"
	// TaskInvoiceResync re-runs invoice synchronisation for one order.
	TaskInvoiceResync = "invoicing:resync"
)

// AllocationLister finds orders that should hold allocations but do not.
type AllocationLister interface {
	ListUnallocatedConfirmedOrders(ctx context.Context, limit int) ([]int64, error)
}

// Allocator reserves stock for an order.
type Allocator interface {
	Allocate(ctx context.Context, orderID, actorID int64) error
}

// InvoiceSyncer aligns an order's invoice with its status.
type InvoiceSyncer interface {
	Sync(ctx context.Context, orderID, actorID int64) error
}

// NewAllocationScanTask constructs the periodic reconciliation task. It
// carries no payload; the handler discovers its work itself.
func NewAllocationScanTask() *asynq.Task {
	return asynq.NewTask(TaskAllocationScan, nil)
}

// InvoiceResyncPayload names the order whose invoice needs a resync.
type InvoiceResyncPayload struct {
	OrderID int64 `json:"order_id"`
}

// NewInvoiceResyncTask constructs an invoice resync task.
func NewInvoiceResyncTask(payload InvoiceResyncPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInvoiceResync, data), nil
}

// NewAllocationScanHandler builds the handler for TaskAllocationScan.
// Allocation is idempotent, so retrying an order that was repaired in the
// meantime is harmless. One failing order does not stop the scan.
func NewAllocationScanHandler(logger *slog.Logger, lister AllocationLister, allocator Allocator) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		ids, err := lister.ListUnallocatedConfirmedOrders(ctx, 100)
		if err != nil {
			return err
		}
		for _, orderID := range ids {
			if err := allocator.Allocate(ctx, orderID, 0); err != nil {
				logger.Warn("allocation repair failed",
					slog.Int64("order_id", orderID), slog.Any("error", err))
				continue
			}
			logger.Info("allocation repaired", slog.Int64("order_id", orderID))
		}
		return nil
	}
}

// NewInvoiceResyncHandler builds the handler for TaskInvoiceResync.
func NewInvoiceResyncHandler(logger *slog.Logger, syncer InvoiceSyncer) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload InvoiceResyncPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if err := syncer.Sync(ctx, payload.OrderID, 0); err != nil {
			logger.Warn("invoice resync failed",
				slog.Int64("order_id", payload.OrderID), slog.Any("error", err))
			return err
		}
		return nil
	}
}
