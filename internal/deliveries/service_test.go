package deliveries

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/orders"
	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/rbac"
	"github.com/meridian-erp/meridian-erp/internal/riders"
)

type memoryRepo struct {
	deliveries map[int64]*Delivery
	nextID     int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{deliveries: make(map[int64]*Delivery)}
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (*Delivery, error) {
	d, ok := r.deliveries[id]
	if !ok {
		return nil, ErrDeliveryNotFound
	}
	clone := *d
	return &clone, nil
}

func (r *memoryRepo) GetByOrderID(ctx context.Context, orderID int64) (*Delivery, error) {
	for _, d := range r.deliveries {
		if d.OrderID == orderID {
			clone := *d
			return &clone, nil
		}
	}
	return nil, ErrDeliveryNotFound
}

func (r *memoryRepo) List(ctx context.Context, riderID int64, limit int) ([]Delivery, error) {
	out := []Delivery{}
	for _, d := range r.deliveries {
		if riderID == 0 || d.RiderID == riderID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (r *memoryRepo) Create(ctx context.Context, d Delivery) (int64, error) {
	r.nextID++
	d.ID = r.nextID
	r.deliveries[d.ID] = &d
	return d.ID, nil
}

func (r *memoryRepo) UpdateStatus(ctx context.Context, id int64, status DeliveryStatus) error {
	d, ok := r.deliveries[id]
	if !ok {
		return ErrDeliveryNotFound
	}
	d.Status = status
	return nil
}

func (r *memoryRepo) Update(ctx context.Context, d Delivery) error {
	stored, ok := r.deliveries[d.ID]
	if !ok {
		return ErrDeliveryNotFound
	}
	*stored = d
	return nil
}

func (r *memoryRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.deliveries[id]; !ok {
		return ErrDeliveryNotFound
	}
	delete(r.deliveries, id)
	return nil
}

type fakeOrders struct {
	orders    map[int64]*orders.Order
	completed []int64
	resets    []int64
	mirrors   map[int64]string

	setStatusErr error
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{orders: make(map[int64]*orders.Order), mirrors: make(map[int64]string)}
}

func (f *fakeOrders) Get(ctx context.Context, id int64) (*orders.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, orders.ErrOrderNotFound
	}
	clone := *o
	return &clone, nil
}

func (f *fakeOrders) SetStatus(ctx context.Context, orderID int64, next orders.OrderStatus, actorID int64, notes string) error {
	if f.setStatusErr != nil {
		return f.setStatusErr
	}
	o, ok := f.orders[orderID]
	if !ok {
		return orders.ErrOrderNotFound
	}
	o.Status = next
	return nil
}

func (f *fakeOrders) Complete(ctx context.Context, orderID, actorID int64, notes string) error {
	o, ok := f.orders[orderID]
	if !ok {
		return orders.ErrOrderNotFound
	}
	o.Status = orders.StatusCompleted
	f.completed = append(f.completed, orderID)
	return nil
}

func (f *fakeOrders) ResetToPending(ctx context.Context, orderID, actorID int64, notes string) error {
	o, ok := f.orders[orderID]
	if !ok {
		return orders.ErrOrderNotFound
	}
	o.Status = orders.StatusPending
	f.resets = append(f.resets, orderID)
	return nil
}

func (f *fakeOrders) SetDeliveryStatus(ctx context.Context, orderID int64, deliveryStatus string) error {
	f.mirrors[orderID] = deliveryStatus
	return nil
}

type fakeRiders struct {
	riders    map[int64]*riders.Rider
	assignErr error
}

func newFakeRiders() *fakeRiders {
	return &fakeRiders{riders: make(map[int64]*riders.Rider)}
}

func (f *fakeRiders) Get(ctx context.Context, id int64) (*riders.Rider, error) {
	rider, ok := f.riders[id]
	if !ok {
		return nil, riders.ErrRiderNotFound
	}
	clone := *rider
	return &clone, nil
}

func (f *fakeRiders) Assign(ctx context.Context, riderID, actorID int64) error {
	if f.assignErr != nil {
		return f.assignErr
	}
	rider, ok := f.riders[riderID]
	if !ok {
		return riders.ErrRiderNotFound
	}
	if rider.Status != riders.StatusAvailable {
		return riders.ErrRiderNotAvailable
	}
	rider.Status = riders.StatusNotAvailable
	return nil
}

func (f *fakeRiders) Release(ctx context.Context, riderID, actorID int64) error {
	rider, ok := f.riders[riderID]
	if !ok {
		return riders.ErrRiderNotFound
	}
	rider.Status = riders.StatusAvailable
	return nil
}

type fixture struct {
	repo    *memoryRepo
	orders  *fakeOrders
	riders  *fakeRiders
	manager *Manager
}

func newFixture() *fixture {
	repo := newMemoryRepo()
	orderPort := newFakeOrders()
	riderPort := newFakeRiders()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &fixture{
		repo:    repo,
		orders:  orderPort,
		riders:  riderPort,
		manager: NewManager(logger, repo, orderPort, riderPort, nil),
	}
}

func (f *fixture) seedOrder(id int64, status orders.OrderStatus) {
	f.orders.orders[id] = &orders.Order{ID: id, Status: status}
}

func (f *fixture) seedRider(id int64, status riders.RiderStatus) {
	f.riders.riders[id] = &riders.Rider{ID: id, Status: status}
}

func createInput(orderID, riderID int64) CreateInput {
	return CreateInput{
		OrderID:      orderID,
		RiderID:      riderID,
		DeliveryDate: time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC),
		Quantity:     2,
	}
}

var admin = rbac.Actor{UserID: 9, Role: rbac.RoleAdmin}
var rider = rbac.Actor{UserID: 21, Role: rbac.RoleRider}

func TestCreateDispatchesOrder(t *testing.T) {
	f := newFixture()
	f.seedOrder(100, orders.StatusPending)
	f.seedRider(1, riders.StatusAvailable)

	d, err := f.manager.Create(context.Background(), createInput(100, 1), admin.UserID)
	require.NoError(t, err)
	require.Equal(t, StatusAssigned, d.Status)
	require.Equal(t, orders.StatusOnDelivery, f.orders.orders[100].Status)
	require.Equal(t, riders.StatusNotAvailable, f.riders.riders[1].Status)
	require.Equal(t, string(StatusAssigned), f.orders.mirrors[100])
}

func TestCreateRequiresPendingOrder(t *testing.T) {
	f := newFixture()
	f.seedOrder(100, orders.StatusConfirmed)
	f.seedRider(1, riders.StatusAvailable)

	_, err := f.manager.Create(context.Background(), createInput(100, 1), admin.UserID)
	require.ErrorIs(t, err, httpx.ErrConflict)
	require.Empty(t, f.repo.deliveries)
}

func TestCreateRejectsSecondDelivery(t *testing.T) {
	f := newFixture()
	f.seedOrder(100, orders.StatusPending)
	f.seedRider(1, riders.StatusAvailable)
	f.seedRider(2, riders.StatusAvailable)
	ctx := context.Background()

	_, err := f.manager.Create(ctx, createInput(100, 1), admin.UserID)
	require.NoError(t, err)

	// order is no longer pending, and even if it were, a delivery exists
	f.orders.orders[100].Status = orders.StatusPending
	_, err = f.manager.Create(ctx, createInput(100, 2), admin.UserID)
	require.ErrorIs(t, err, httpx.ErrConflict)
	require.Len(t, f.repo.deliveries, 1)
}

func TestCreateRejectsBusyRider(t *testing.T) {
	f := newFixture()
	f.seedOrder(100, orders.StatusPending)
	f.seedRider(2, riders.StatusNotAvailable)

	_, err := f.manager.Create(context.Background(), createInput(100, 2), admin.UserID)
	require.ErrorIs(t, err, httpx.ErrConflict)
	require.Empty(t, f.repo.deliveries)
}

func TestCreateRollsBackWhenOrderUpdateFails(t *testing.T) {
	f := newFixture()
	f.seedOrder(100, orders.StatusPending)
	f.seedRider(1, riders.StatusAvailable)
	f.orders.setStatusErr = errors.New("db down")

	_, err := f.manager.Create(context.Background(), createInput(100, 1), admin.UserID)
	require.Error(t, err)
	require.Empty(t, f.repo.deliveries)
	require.Equal(t, riders.StatusAvailable, f.riders.riders[1].Status)
}

func TestCreateToleratesRiderClaimFailure(t *testing.T) {
	f := newFixture()
	f.seedOrder(100, orders.StatusPending)
	f.seedRider(1, riders.StatusAvailable)
	// claim fails after delivery and order already moved: the delivery is
	// kept and the inconsistency is only logged
	f.riders.assignErr = errors.New("claim lost")

	d, err := f.manager.Create(context.Background(), createInput(100, 1), admin.UserID)
	require.NoError(t, err)
	require.NotNil(t, d)
	require.Len(t, f.repo.deliveries, 1)
	require.Equal(t, orders.StatusOnDelivery, f.orders.orders[100].Status)
}

func TestRiderDeliversOrderCompletes(t *testing.T) {
	f := newFixture()
	f.seedOrder(100, orders.StatusPending)
	f.seedRider(1, riders.StatusAvailable)
	ctx := context.Background()

	d, err := f.manager.Create(ctx, createInput(100, 1), admin.UserID)
	require.NoError(t, err)

	d, err = f.manager.UpdateStatus(ctx, d.ID, StatusInTransit, rider)
	require.NoError(t, err)
	require.Equal(t, StatusInTransit, d.Status)

	d, err = f.manager.UpdateStatus(ctx, d.ID, StatusDelivered, rider)
	require.NoError(t, err)
	require.Equal(t, StatusDelivered, d.Status)
	require.Equal(t, orders.StatusCompleted, f.orders.orders[100].Status)
	require.Equal(t, []int64{100}, f.orders.completed)
	require.Equal(t, riders.StatusAvailable, f.riders.riders[1].Status)
}

func TestRiderCannotMarkFailed(t *testing.T) {
	f := newFixture()
	f.seedOrder(100, orders.StatusPending)
	f.seedRider(1, riders.StatusAvailable)
	ctx := context.Background()

	d, err := f.manager.Create(ctx, createInput(100, 1), admin.UserID)
	require.NoError(t, err)

	_, err = f.manager.UpdateStatus(ctx, d.ID, StatusFailed, rider)
	require.ErrorIs(t, err, httpx.ErrForbidden)
	require.Equal(t, StatusAssigned, f.repo.deliveries[d.ID].Status)
}

func TestAdminMarksFailedReleasesRiderOnly(t *testing.T) {
	f := newFixture()
	f.seedOrder(100, orders.StatusPending)
	f.seedRider(1, riders.StatusAvailable)
	ctx := context.Background()

	d, err := f.manager.Create(ctx, createInput(100, 1), admin.UserID)
	require.NoError(t, err)

	d, err = f.manager.UpdateStatus(ctx, d.ID, StatusFailed, admin)
	require.NoError(t, err)
	require.Equal(t, StatusFailed, d.Status)
	require.Equal(t, riders.StatusAvailable, f.riders.riders[1].Status)
	// the order stays where it was, failure handling is a human decision
	require.Equal(t, orders.StatusOnDelivery, f.orders.orders[100].Status)
	require.Empty(t, f.orders.completed)
}

func TestTerminalDeliveryRejectsFurtherMoves(t *testing.T) {
	f := newFixture()
	f.seedOrder(100, orders.StatusPending)
	f.seedRider(1, riders.StatusAvailable)
	ctx := context.Background()

	d, err := f.manager.Create(ctx, createInput(100, 1), admin.UserID)
	require.NoError(t, err)
	_, err = f.manager.UpdateStatus(ctx, d.ID, StatusDelivered, rider)
	require.NoError(t, err)

	_, err = f.manager.UpdateStatus(ctx, d.ID, StatusInTransit, admin)
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestDeleteRollsBackOrderAndRider(t *testing.T) {
	f := newFixture()
	f.seedOrder(100, orders.StatusPending)
	f.seedRider(1, riders.StatusAvailable)
	ctx := context.Background()

	d, err := f.manager.Create(ctx, createInput(100, 1), admin.UserID)
	require.NoError(t, err)

	require.NoError(t, f.manager.Delete(ctx, d.ID, admin.UserID))
	require.Empty(t, f.repo.deliveries)
	require.Equal(t, orders.StatusPending, f.orders.orders[100].Status)
	require.Equal(t, riders.StatusAvailable, f.riders.riders[1].Status)
	require.Equal(t, "", f.orders.mirrors[100])

	// round trip: the order is dispatchable again
	f.seedRider(2, riders.StatusAvailable)
	_, err = f.manager.Create(ctx, createInput(100, 2), admin.UserID)
	require.NoError(t, err)
}

func TestDeleteUnknownDelivery(t *testing.T) {
	f := newFixture()
	err := f.manager.Delete(context.Background(), 404, admin.UserID)
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestAdminUpdatePatchesFields(t *testing.T) {
	f := newFixture()
	f.seedOrder(100, orders.StatusPending)
	f.seedRider(1, riders.StatusAvailable)
	ctx := context.Background()

	d, err := f.manager.Create(ctx, createInput(100, 1), admin.UserID)
	require.NoError(t, err)

	newDate := time.Date(2026, 9, 1, 14, 0, 0, 0, time.UTC)
	qty := 5.0
	notes := "leave at the gate"
	updated, err := f.manager.Update(ctx, d.ID, UpdateInput{DeliveryDate: &newDate, Quantity: &qty, Notes: &notes}, admin)
	require.NoError(t, err)
	require.Equal(t, newDate, updated.DeliveryDate)
	require.InDelta(t, 5.0, updated.Quantity, 0.0001)
	require.Equal(t, notes, updated.Notes)
	require.Equal(t, StatusAssigned, updated.Status)
}
