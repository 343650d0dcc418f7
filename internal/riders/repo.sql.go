package riders

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists rider data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get fetches a rider by id.
func (r *Repository) Get(ctx context.Context, id int64) (*Rider, error) {
	var rider Rider
	err := r.pool.QueryRow(ctx, `SELECT id, user_id, full_name, phone, status, created_at, updated_at
FROM riders WHERE id=$1`, id).
		Scan(&rider.ID, &rider.UserID, &rider.FullName, &rider.Phone, &rider.Status, &rider.CreatedAt, &rider.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRiderNotFound
		}
		return nil, err
	}
	return &rider, nil
}

// List returns riders, optionally filtered by status.
func (r *Repository) List(ctx context.Context, status RiderStatus) ([]Rider, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, user_id, full_name, phone, status, created_at, updated_at
FROM riders
WHERE ($1 = '' OR status = $1)
ORDER BY full_name`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	riders := []Rider{}
	for rows.Next() {
		var rider Rider
		if err := rows.Scan(&rider.ID, &rider.UserID, &rider.FullName, &rider.Phone, &rider.Status, &rider.CreatedAt, &rider.UpdatedAt); err != nil {
			return nil, err
		}
		riders = append(riders, rider)
	}
	return riders, rows.Err()
}

// Claim flips an available rider to not-available. The status check lives in
// the WHERE clause so two concurrent claims cannot both succeed.
func (r *Repository) Claim(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE riders SET status=$2, updated_at=NOW()
WHERE id=$1 AND status=$3`, id, string(StatusNotAvailable), string(StatusAvailable))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		exists, err := r.exists(ctx, id)
		if err != nil {
			return err
		}
		if !exists {
			return ErrRiderNotFound
		}
		return ErrRiderNotAvailable
	}
	return nil
}

// Release flips a rider back to available regardless of current status.
func (r *Repository) Release(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE riders SET status=$2, updated_at=NOW() WHERE id=$1`, id, string(StatusAvailable))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRiderNotFound
	}
	return nil
}

func (r *Repository) exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM riders WHERE id=$1)`, id).Scan(&exists)
	return exists, err
}
