package orders

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

type memoryRepo struct {
	orders  map[int64]*Order
	history []StatusChange

	failHistory bool
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{orders: make(map[int64]*Order)}
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (*Order, error) {
	o, ok := r.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	clone := *o
	return &clone, nil
}

func (r *memoryRepo) List(ctx context.Context, filter ListFilter) ([]Order, error) {
	out := []Order{}
	for _, o := range r.orders {
		if filter.Status == "" || o.Status == filter.Status {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (r *memoryRepo) Items(ctx context.Context, orderID int64) ([]OrderItem, error) {
	return nil, nil
}

func (r *memoryRepo) UpdateStatus(ctx context.Context, orderID int64, status OrderStatus) error {
	o, ok := r.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	o.Status = status
	return nil
}

func (r *memoryRepo) UpdateDeliveryStatus(ctx context.Context, orderID int64, deliveryStatus string) error {
	o, ok := r.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	o.DeliveryStatus = deliveryStatus
	return nil
}

func (r *memoryRepo) InsertStatusChange(ctx context.Context, change StatusChange) error {
	if r.failHistory {
		return errors.New("history down")
	}
	r.history = append(r.history, change)
	return nil
}

func (r *memoryRepo) StatusHistory(ctx context.Context, orderID int64) ([]StatusChange, error) {
	out := []StatusChange{}
	for _, change := range r.history {
		if change.OrderID == orderID {
			out = append(out, change)
		}
	}
	return out, nil
}

type fakeInvoices struct {
	syncs   []int64
	failing bool
}

func (f *fakeInvoices) Sync(ctx context.Context, orderID, actorID int64) error {
	if f.failing {
		return errors.New("invoice down")
	}
	f.syncs = append(f.syncs, orderID)
	return nil
}

type fakeStock struct {
	allocated []int64
	released  []int64
	consumed  []int64

	allocateErr error
}

func (f *fakeStock) Allocate(ctx context.Context, orderID, actorID int64) error {
	if f.allocateErr != nil {
		return f.allocateErr
	}
	f.allocated = append(f.allocated, orderID)
	return nil
}

func (f *fakeStock) ReleaseAllocations(ctx context.Context, orderID, actorID int64) error {
	f.released = append(f.released, orderID)
	return nil
}

func (f *fakeStock) ConsumeOnCompletion(ctx context.Context, orderID, actorID int64) error {
	f.consumed = append(f.consumed, orderID)
	return nil
}

func newTestService(repo *memoryRepo, invoices *fakeInvoices, stock *fakeStock) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(logger, repo, invoices, stock, nil, nil)
}

func seedOrder(repo *memoryRepo, id int64, status OrderStatus) {
	repo.orders[id] = &Order{ID: id, OrderNo: "ORD-2608-0001", Status: status}
}

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		from OrderStatus
		to   OrderStatus
		ok   bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusPaid, true},
		{StatusPending, StatusOnDelivery, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusCompleted, false},
		{StatusConfirmed, StatusCompleted, true},
		{StatusPaid, StatusCompleted, true},
		{StatusOnDelivery, StatusCompleted, true},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusPending, false},
		{StatusQuoted, StatusPending, true},
		{StatusPaid, StatusPending, false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.ok, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
	require.True(t, StatusCompleted.IsTerminal())
	require.True(t, StatusCancelled.IsTerminal())
	require.False(t, StatusPending.IsTerminal())
}

func TestSetStatusRejectsReservedStatuses(t *testing.T) {
	repo := newMemoryRepo()
	seedOrder(repo, 1, StatusPending)
	svc := newTestService(repo, &fakeInvoices{}, &fakeStock{})
	ctx := context.Background()

	for _, status := range []OrderStatus{StatusCompleted, StatusCancelled, StatusQuoted, StatusConfirmed} {
		err := svc.SetStatus(ctx, 1, status, 9, "")
		require.ErrorIs(t, err, httpx.ErrValidation, "status %s", status)
	}
	require.Equal(t, StatusPending, repo.orders[1].Status)
}

func TestSetStatusUnknownStatus(t *testing.T) {
	svc := newTestService(newMemoryRepo(), &fakeInvoices{}, &fakeStock{})
	err := svc.SetStatus(context.Background(), 1, OrderStatus("SHIPPED"), 9, "")
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestSetStatusUnknownOrder(t *testing.T) {
	svc := newTestService(newMemoryRepo(), &fakeInvoices{}, &fakeStock{})
	err := svc.SetStatus(context.Background(), 404, StatusPaid, 9, "")
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestSetStatusSyncsInvoiceAndHistory(t *testing.T) {
	repo := newMemoryRepo()
	seedOrder(repo, 1, StatusPending)
	invoices := &fakeInvoices{}
	svc := newTestService(repo, invoices, &fakeStock{})

	require.NoError(t, svc.SetStatus(context.Background(), 1, StatusPaid, 9, "wire received"))
	require.Equal(t, StatusPaid, repo.orders[1].Status)
	require.Equal(t, []int64{1}, invoices.syncs)
	require.Len(t, repo.history, 1)
	require.Equal(t, StatusPending, repo.history[0].FromStatus)
	require.Equal(t, StatusPaid, repo.history[0].ToStatus)
	require.Equal(t, "wire received", repo.history[0].Notes)
}

func TestHistoryFailureDoesNotFailTransition(t *testing.T) {
	repo := newMemoryRepo()
	repo.failHistory = true
	seedOrder(repo, 1, StatusPending)
	svc := newTestService(repo, &fakeInvoices{}, &fakeStock{})

	require.NoError(t, svc.SetStatus(context.Background(), 1, StatusPaid, 9, ""))
	require.Equal(t, StatusPaid, repo.orders[1].Status)
}

func TestConfirmAllocatesStock(t *testing.T) {
	repo := newMemoryRepo()
	seedOrder(repo, 1, StatusPending)
	stock := &fakeStock{}
	svc := newTestService(repo, &fakeInvoices{}, stock)

	require.NoError(t, svc.Confirm(context.Background(), 1, 9, "approved"))
	require.Equal(t, StatusConfirmed, repo.orders[1].Status)
	require.Equal(t, []int64{1}, stock.allocated)
}

func TestConfirmSurvivesAllocationFailure(t *testing.T) {
	repo := newMemoryRepo()
	seedOrder(repo, 1, StatusPending)
	stock := &fakeStock{allocateErr: errors.New("materials short")}
	svc := newTestService(repo, &fakeInvoices{}, stock)

	// status sticks even when allocation fails; the reconciliation job retries
	require.NoError(t, svc.Confirm(context.Background(), 1, 9, ""))
	require.Equal(t, StatusConfirmed, repo.orders[1].Status)
	require.Empty(t, stock.allocated)
}

func TestConfirmRequiresPending(t *testing.T) {
	repo := newMemoryRepo()
	seedOrder(repo, 1, StatusPaid)
	svc := newTestService(repo, &fakeInvoices{}, &fakeStock{})

	err := svc.Confirm(context.Background(), 1, 9, "")
	require.ErrorIs(t, err, httpx.ErrValidation)
	require.Equal(t, StatusPaid, repo.orders[1].Status)
}

func TestCancelReleasesAllocations(t *testing.T) {
	repo := newMemoryRepo()
	seedOrder(repo, 1, StatusConfirmed)
	stock := &fakeStock{}
	svc := newTestService(repo, &fakeInvoices{}, stock)

	require.NoError(t, svc.Cancel(context.Background(), 1, 9, "customer backed out"))
	require.Equal(t, StatusCancelled, repo.orders[1].Status)
	require.Equal(t, []int64{1}, stock.released)
}

func TestCancelTerminalOrderRejected(t *testing.T) {
	repo := newMemoryRepo()
	seedOrder(repo, 1, StatusCompleted)
	svc := newTestService(repo, &fakeInvoices{}, &fakeStock{})

	err := svc.Cancel(context.Background(), 1, 9, "")
	require.ErrorIs(t, err, httpx.ErrValidation)
	require.Equal(t, StatusCompleted, repo.orders[1].Status)
}

func TestCompleteConsumesStockOnce(t *testing.T) {
	repo := newMemoryRepo()
	seedOrder(repo, 1, StatusOnDelivery)
	invoices := &fakeInvoices{}
	stock := &fakeStock{}
	svc := newTestService(repo, invoices, stock)
	ctx := context.Background()

	require.NoError(t, svc.Complete(ctx, 1, 9, "delivered"))
	require.Equal(t, StatusCompleted, repo.orders[1].Status)
	require.Equal(t, []int64{1}, stock.consumed)
	require.Equal(t, []int64{1}, invoices.syncs)

	// completed is terminal, a second completion is rejected and consumes nothing
	err := svc.Complete(ctx, 1, 9, "")
	require.ErrorIs(t, err, httpx.ErrValidation)
	require.Equal(t, []int64{1}, stock.consumed)
}

func TestCompleteSurvivesInvoiceFailure(t *testing.T) {
	repo := newMemoryRepo()
	seedOrder(repo, 1, StatusPaid)
	invoices := &fakeInvoices{failing: true}
	stock := &fakeStock{}
	svc := newTestService(repo, invoices, stock)

	require.NoError(t, svc.Complete(context.Background(), 1, 9, ""))
	require.Equal(t, StatusCompleted, repo.orders[1].Status)
	require.Equal(t, []int64{1}, stock.consumed)
}

func TestResetToPending(t *testing.T) {
	repo := newMemoryRepo()
	seedOrder(repo, 1, StatusOnDelivery)
	svc := newTestService(repo, &fakeInvoices{}, &fakeStock{})
	ctx := context.Background()

	require.NoError(t, svc.ResetToPending(ctx, 1, 9, "delivery removed"))
	require.Equal(t, StatusPending, repo.orders[1].Status)

	// already pending is a no-op
	require.NoError(t, svc.ResetToPending(ctx, 1, 9, ""))
	require.Len(t, repo.history, 1)
}
