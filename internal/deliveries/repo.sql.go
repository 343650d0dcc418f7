package deliveries

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists deliveries in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const deliveryColumns = `id, order_id, rider_id, status, delivery_date, quantity, notes, created_at, updated_at`

func scanDelivery(row pgx.Row) (*Delivery, error) {
	var d Delivery
	err := row.Scan(&d.ID, &d.OrderID, &d.RiderID, &d.Status, &d.DeliveryDate, &d.Quantity, &d.Notes, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDeliveryNotFound
		}
		return nil, err
	}
	return &d, nil
}

// Get fetches a delivery by id.
func (r *Repository) Get(ctx context.Context, id int64) (*Delivery, error) {
	return scanDelivery(r.pool.QueryRow(ctx, `SELECT `+deliveryColumns+` FROM deliveries WHERE id=$1`, id))
}

// GetByOrderID fetches the delivery attached to an order.
func (r *Repository) GetByOrderID(ctx context.Context, orderID int64) (*Delivery, error) {
	return scanDelivery(r.pool.QueryRow(ctx, `SELECT `+deliveryColumns+` FROM deliveries WHERE order_id=$1`, orderID))
}

// List returns deliveries, newest first, optionally filtered by rider.
func (r *Repository) List(ctx context.Context, riderID int64, limit int) ([]Delivery, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT `+deliveryColumns+`
FROM deliveries
WHERE ($1 = 0 OR rider_id = $1)
ORDER BY id DESC
LIMIT $2`, riderID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	deliveries := []Delivery{}
	for rows.Next() {
		var d Delivery
		if err := rows.Scan(&d.ID, &d.OrderID, &d.RiderID, &d.Status, &d.DeliveryDate, &d.Quantity, &d.Notes, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		deliveries = append(deliveries, d)
	}
	return deliveries, rows.Err()
}

// Create inserts a delivery and returns its id.
func (r *Repository) Create(ctx context.Context, d Delivery) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO deliveries (order_id, rider_id, status, delivery_date, quantity, notes, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW(),NOW()) RETURNING id`,
		d.OrderID, d.RiderID, string(d.Status), d.DeliveryDate, d.Quantity, d.Notes).Scan(&id)
	return id, err
}

// UpdateStatus persists a delivery status change.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, status DeliveryStatus) error {
	tag, err := r.pool.Exec(ctx, `UPDATE deliveries SET status=$2, updated_at=NOW() WHERE id=$1`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDeliveryNotFound
	}
	return nil
}

// Update patches mutable delivery fields.
func (r *Repository) Update(ctx context.Context, d Delivery) error {
	tag, err := r.pool.Exec(ctx, `UPDATE deliveries SET delivery_date=$2, quantity=$3, notes=$4, status=$5, updated_at=NOW()
WHERE id=$1`, d.ID, d.DeliveryDate, d.Quantity, d.Notes, string(d.Status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDeliveryNotFound
	}
	return nil
}

// Delete removes a delivery row.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM deliveries WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDeliveryNotFound
	}
	return nil
}
