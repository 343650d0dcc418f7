package riders

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	riders map[int64]*Rider
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{riders: make(map[int64]*Rider)}
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (*Rider, error) {
	rider, ok := r.riders[id]
	if !ok {
		return nil, ErrRiderNotFound
	}
	clone := *rider
	return &clone, nil
}

func (r *memoryRepo) List(ctx context.Context, status RiderStatus) ([]Rider, error) {
	out := []Rider{}
	for _, rider := range r.riders {
		if status == "" || rider.Status == status {
			out = append(out, *rider)
		}
	}
	return out, nil
}

func (r *memoryRepo) Claim(ctx context.Context, id int64) error {
	rider, ok := r.riders[id]
	if !ok {
		return ErrRiderNotFound
	}
	if rider.Status != StatusAvailable {
		return ErrRiderNotAvailable
	}
	rider.Status = StatusNotAvailable
	return nil
}

func (r *memoryRepo) Release(ctx context.Context, id int64) error {
	rider, ok := r.riders[id]
	if !ok {
		return ErrRiderNotFound
	}
	rider.Status = StatusAvailable
	return nil
}

func TestAssignClaimsRider(t *testing.T) {
	repo := newMemoryRepo()
	repo.riders[1] = &Rider{ID: 1, Status: StatusAvailable}
	reg := NewRegistry(repo, nil)
	ctx := context.Background()

	require.NoError(t, reg.Assign(ctx, 1, 9))
	rider, err := reg.Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, StatusNotAvailable, rider.Status)

	// second claim loses
	require.ErrorIs(t, reg.Assign(ctx, 1, 9), ErrRiderNotAvailable)
}

func TestAssignUnknownRider(t *testing.T) {
	reg := NewRegistry(newMemoryRepo(), nil)
	require.ErrorIs(t, reg.Assign(context.Background(), 42, 9), ErrRiderNotFound)
}

func TestReleaseIsIdempotent(t *testing.T) {
	repo := newMemoryRepo()
	repo.riders[1] = &Rider{ID: 1, Status: StatusNotAvailable}
	reg := NewRegistry(repo, nil)
	ctx := context.Background()

	require.NoError(t, reg.Release(ctx, 1, 9))
	require.NoError(t, reg.Release(ctx, 1, 9))
	rider, err := reg.Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, StatusAvailable, rider.Status)
}

func TestListFiltersByStatus(t *testing.T) {
	repo := newMemoryRepo()
	repo.riders[1] = &Rider{ID: 1, Status: StatusAvailable}
	repo.riders[2] = &Rider{ID: 2, Status: StatusNotAvailable}
	reg := NewRegistry(repo, nil)

	avail, err := reg.List(context.Background(), StatusAvailable)
	require.NoError(t, err)
	require.Len(t, avail, 1)
	require.Equal(t, int64(1), avail[0].ID)

	_, err = reg.List(context.Background(), RiderStatus("BOGUS"))
	require.Error(t, err)
}
