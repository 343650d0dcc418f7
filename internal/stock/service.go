package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the ledger.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	HasAllocations(ctx context.Context, orderID int64) (bool, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Ledger maintains raw-material and finished-good stock counters.
//
// Allocation subtracts raw materials when an order is confirmed and records
// the reserved quantities so a later release can restore them exactly.
// Consumption subtracts finished goods once, on order completion.
type Ledger struct {
	repo        RepositoryPort
	audit       AuditPort
	idempotency *shared.IdempotencyStore
}

// NewLedger builds Ledger.
func NewLedger(repo RepositoryPort, audit AuditPort, idem *shared.IdempotencyStore) *Ledger {
	return &Ledger{repo: repo, audit: audit, idempotency: idem}
}

// Allocate reserves raw materials for the order according to its bill of
// materials. Calling it again for an order that already holds allocations is
// a no-op, which lets the reconciliation job retry safely.
func (l *Ledger) Allocate(ctx context.Context, orderID, actorID int64) error {
	if orderID == 0 {
		return errors.New("stock: order id required")
	}
	exists, err := l.repo.HasAllocations(ctx, orderID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	key := fmt.Sprintf("stock:allocate:%d", orderID)
	insertedKey := false
	if l.idempotency != nil {
		if err := l.idempotency.CheckAndInsert(ctx, key, "stock"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return nil
			}
			return err
		}
		insertedKey = true
	}

	batchID := uuid.NewString()
	var total float64
	err = l.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		reqs, err := tx.GetRequirements(ctx, orderID)
		if err != nil {
			return err
		}
		for _, req := range reqs {
			bal, err := tx.GetMaterialForUpdate(ctx, req.RawMaterialID)
			if err != nil {
				return err
			}
			newQty := bal.Stock - req.Qty
			if newQty < -0.0001 {
				return fmt.Errorf("%w: raw material %d short by %.3f", ErrNegativeStock, req.RawMaterialID, -newQty)
			}
			if err := tx.UpdateMaterialStock(ctx, req.RawMaterialID, newQty); err != nil {
				return err
			}
			if err := tx.InsertAllocation(ctx, Allocation{
				BatchID:       batchID,
				OrderID:       orderID,
				RawMaterialID: req.RawMaterialID,
				Qty:           req.Qty,
			}); err != nil {
				return err
			}
			total += req.Qty
		}
		return nil
	})
	if err != nil {
		if insertedKey {
			_ = l.idempotency.Delete(ctx, key)
		}
		return err
	}
	if l.audit != nil {
		_ = l.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "stock:allocate",
			Entity:   "order",
			EntityID: fmt.Sprintf("%d", orderID),
			Meta:     map[string]any{"batch_id": batchID, "total_qty": total},
		})
	}
	return nil
}

// ReleaseAllocations returns previously reserved raw materials to stock and
// removes the allocation rows. Orders without allocations release nothing.
func (l *Ledger) ReleaseAllocations(ctx context.Context, orderID, actorID int64) error {
	if orderID == 0 {
		return errors.New("stock: order id required")
	}
	var released int
	err := l.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		allocs, err := tx.GetAllocations(ctx, orderID)
		if err != nil {
			return err
		}
		if len(allocs) == 0 {
			return nil
		}
		for _, alloc := range allocs {
			bal, err := tx.GetMaterialForUpdate(ctx, alloc.RawMaterialID)
			if err != nil {
				return err
			}
			if err := tx.UpdateMaterialStock(ctx, alloc.RawMaterialID, bal.Stock+alloc.Qty); err != nil {
				return err
			}
		}
		released = len(allocs)
		return tx.DeleteAllocations(ctx, orderID)
	})
	if err != nil {
		return err
	}
	if released > 0 && l.audit != nil {
		_ = l.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "stock:release",
			Entity:   "order",
			EntityID: fmt.Sprintf("%d", orderID),
			Meta:     map[string]any{"lines": released},
		})
	}
	return nil
}

// ConsumeOnCompletion subtracts finished-good stock for each order item.
// Callers guard the once-only property by invoking it solely on the
// transition into the completed status.
func (l *Ledger) ConsumeOnCompletion(ctx context.Context, orderID, actorID int64) error {
	if orderID == 0 {
		return errors.New("stock: order id required")
	}
	err := l.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		items, err := tx.GetItemQuantities(ctx, orderID)
		if err != nil {
			return err
		}
		for _, item := range items {
			bal, err := tx.GetProductForUpdate(ctx, item.ProductID)
			if err != nil {
				return err
			}
			newQty := bal.Stock - item.Qty
			if newQty < -0.0001 {
				return fmt.Errorf("%w: product %d short by %.3f", ErrNegativeStock, item.ProductID, -newQty)
			}
			if err := tx.UpdateProductStock(ctx, item.ProductID, newQty); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if l.audit != nil {
		_ = l.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "stock:consume",
			Entity:   "order",
			EntityID: fmt.Sprintf("%d", orderID),
		})
	}
	return nil
}
