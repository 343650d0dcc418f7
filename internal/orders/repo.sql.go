package orders

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists orders in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const orderColumns = `id, order_no, status, delivery_status, customer_name, customer_email, customer_phone,
shipping_address, subtotal, tax_amount, shipping_amount, total_amount, notes, created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.OrderNo, &o.Status, &o.DeliveryStatus, &o.CustomerName, &o.CustomerEmail,
		&o.CustomerPhone, &o.ShippingAddress, &o.Subtotal, &o.TaxAmount, &o.ShippingAmount, &o.TotalAmount,
		&o.Notes, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &o, nil
}

// Get fetches an order by id.
func (r *Repository) Get(ctx context.Context, id int64) (*Order, error) {
	return scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
}

// List returns orders matching the filter, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Order, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT `+orderColumns+`
FROM orders
WHERE ($1 = '' OR status = $1)
ORDER BY id DESC
LIMIT $2 OFFSET $3`, string(filter.Status), limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	orders := []Order{}
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.OrderNo, &o.Status, &o.DeliveryStatus, &o.CustomerName, &o.CustomerEmail,
			&o.CustomerPhone, &o.ShippingAddress, &o.Subtotal, &o.TaxAmount, &o.ShippingAmount, &o.TotalAmount,
			&o.Notes, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// Items returns the order's lines.
func (r *Repository) Items(ctx context.Context, orderID int64) ([]OrderItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT oi.id, oi.order_id, oi.product_id, p.name, oi.qty, oi.unit_price
FROM order_items oi
JOIN products p ON p.id = oi.product_id
WHERE oi.order_id=$1
ORDER BY oi.id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []OrderItem{}
	for rows.Next() {
		var item OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Name, &item.Qty, &item.UnitPrice); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// UpdateStatus persists a status change.
func (r *Repository) UpdateStatus(ctx context.Context, orderID int64, status OrderStatus) error {
	tag, err := r.pool.Exec(ctx, `UPDATE orders SET status=$2, updated_at=NOW() WHERE id=$1`, orderID, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// UpdateDeliveryStatus persists the delivery-status mirror on the order row.
func (r *Repository) UpdateDeliveryStatus(ctx context.Context, orderID int64, deliveryStatus string) error {
	_, err := r.pool.Exec(ctx, `UPDATE orders SET delivery_status=$2, updated_at=NOW() WHERE id=$1`, orderID, deliveryStatus)
	return err
}

// InsertStatusChange appends a status-history row.
func (r *Repository) InsertStatusChange(ctx context.Context, change StatusChange) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO order_status_history (order_id, from_status, to_status, actor_id, notes, created_at)
VALUES ($1,$2,$3,$4,$5,NOW())`, change.OrderID, string(change.FromStatus), string(change.ToStatus), change.ActorID, change.Notes)
	return err
}

// StatusHistory returns an order's status changes, oldest first.
func (r *Repository) StatusHistory(ctx context.Context, orderID int64) ([]StatusChange, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, order_id, from_status, to_status, actor_id, notes, created_at
FROM order_status_history WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	history := []StatusChange{}
	for rows.Next() {
		var change StatusChange
		if err := rows.Scan(&change.ID, &change.OrderID, &change.FromStatus, &change.ToStatus, &change.ActorID, &change.Notes, &change.CreatedAt); err != nil {
			return nil, err
		}
		history = append(history, change)
	}
	return history, rows.Err()
}
