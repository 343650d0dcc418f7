package stock

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists stock data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the ledger.
type TxRepository interface {
	GetRequirements(ctx context.Context, orderID int64) ([]Requirement, error)
	GetItemQuantities(ctx context.Context, orderID int64) ([]ItemQuantity, error)
	GetMaterialForUpdate(ctx context.Context, rawMaterialID int64) (MaterialBalance, error)
	UpdateMaterialStock(ctx context.Context, rawMaterialID int64, stock float64) error
	GetProductForUpdate(ctx context.Context, productID int64) (ProductBalance, error)
	UpdateProductStock(ctx context.Context, productID int64, stock float64) error
	InsertAllocation(ctx context.Context, alloc Allocation) error
	GetAllocations(ctx context.Context, orderID int64) ([]Allocation, error)
	DeleteAllocations(ctx context.Context, orderID int64) error
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("stock repository not initialised")
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepository{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// HasAllocations reports whether any allocation rows exist for the order.
func (r *Repository) HasAllocations(ctx context.Context, orderID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM stock_allocations WHERE order_id=$1)`, orderID).Scan(&exists)
	return exists, err
}

// ListUnallocatedConfirmedOrders returns ids of orders in a confirmed or later
// pre-completion status that carry no allocation rows. Used by the
// reconciliation job to repair allocations that failed at transition time.
func (r *Repository) ListUnallocatedConfirmedOrders(ctx context.Context, limit int) ([]int64, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT o.id
FROM orders o
WHERE o.status IN ('CONFIRMED','PAID','ON_DELIVERY')
  AND NOT EXISTS (SELECT 1 FROM stock_allocations a WHERE a.order_id = o.id)
ORDER BY o.id ASC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *txRepository) GetRequirements(ctx context.Context, orderID int64) ([]Requirement, error) {
	rows, err := r.tx.Query(ctx, `SELECT pm.raw_material_id, SUM(oi.qty * pm.qty_per_unit)
FROM order_items oi
JOIN product_materials pm ON pm.product_id = oi.product_id
WHERE oi.order_id = $1
GROUP BY pm.raw_material_id
ORDER BY pm.raw_material_id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	reqs := []Requirement{}
	for rows.Next() {
		var req Requirement
		if err := rows.Scan(&req.RawMaterialID, &req.Qty); err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	return reqs, rows.Err()
}

func (r *txRepository) GetItemQuantities(ctx context.Context, orderID int64) ([]ItemQuantity, error) {
	rows, err := r.tx.Query(ctx, `SELECT product_id, qty FROM order_items WHERE order_id=$1 ORDER BY product_id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ItemQuantity{}
	for rows.Next() {
		var item ItemQuantity
		if err := rows.Scan(&item.ProductID, &item.Qty); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *txRepository) GetMaterialForUpdate(ctx context.Context, rawMaterialID int64) (MaterialBalance, error) {
	var bal MaterialBalance
	err := r.tx.QueryRow(ctx, `SELECT id, stock FROM raw_materials WHERE id=$1 FOR UPDATE`, rawMaterialID).
		Scan(&bal.RawMaterialID, &bal.Stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return MaterialBalance{}, ErrMaterialNotFound
		}
		return MaterialBalance{}, err
	}
	return bal, nil
}

func (r *txRepository) UpdateMaterialStock(ctx context.Context, rawMaterialID int64, stock float64) error {
	_, err := r.tx.Exec(ctx, `UPDATE raw_materials SET stock=$2, updated_at=NOW() WHERE id=$1`, rawMaterialID, stock)
	return err
}

func (r *txRepository) GetProductForUpdate(ctx context.Context, productID int64) (ProductBalance, error) {
	var bal ProductBalance
	err := r.tx.QueryRow(ctx, `SELECT id, stock FROM products WHERE id=$1 FOR UPDATE`, productID).
		Scan(&bal.ProductID, &bal.Stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProductBalance{}, ErrProductNotFound
		}
		return ProductBalance{}, err
	}
	return bal, nil
}

func (r *txRepository) UpdateProductStock(ctx context.Context, productID int64, stock float64) error {
	_, err := r.tx.Exec(ctx, `UPDATE products SET stock=$2, updated_at=NOW() WHERE id=$1`, productID, stock)
	return err
}

func (r *txRepository) InsertAllocation(ctx context.Context, alloc Allocation) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO stock_allocations (batch_id, order_id, raw_material_id, qty, created_at)
VALUES ($1,$2,$3,$4,NOW())`, alloc.BatchID, alloc.OrderID, alloc.RawMaterialID, alloc.Qty)
	return err
}

func (r *txRepository) GetAllocations(ctx context.Context, orderID int64) ([]Allocation, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, batch_id, order_id, raw_material_id, qty, created_at
FROM stock_allocations WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	allocs := []Allocation{}
	for rows.Next() {
		var alloc Allocation
		if err := rows.Scan(&alloc.ID, &alloc.BatchID, &alloc.OrderID, &alloc.RawMaterialID, &alloc.Qty, &alloc.CreatedAt); err != nil {
			return nil, err
		}
		allocs = append(allocs, alloc)
	}
	return allocs, rows.Err()
}

func (r *txRepository) DeleteAllocations(ctx context.Context, orderID int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM stock_allocations WHERE order_id=$1`, orderID)
	return err
}

var _ TxRepository = (*txRepository)(nil)
