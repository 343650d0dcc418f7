package invoicing

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	orders     map[int64]OrderSummary
	orderLines map[int64][]InvoiceLine
	invoices   map[int64]*SalesInvoice
	lines      map[int64][]InvoiceLine
	nextID     int64

	failLineInsert bool
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		orders:     make(map[int64]OrderSummary),
		orderLines: make(map[int64][]InvoiceLine),
		invoices:   make(map[int64]*SalesInvoice),
		lines:      make(map[int64][]InvoiceLine),
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (*SalesInvoice, error) {
	inv, ok := r.invoices[id]
	if !ok {
		return nil, ErrInvoiceNotFound
	}
	clone := *inv
	return &clone, nil
}

func (r *memoryRepo) GetByOrderID(ctx context.Context, orderID int64) (*SalesInvoice, error) {
	for _, inv := range r.invoices {
		if inv.OrderID == orderID {
			clone := *inv
			return &clone, nil
		}
	}
	return nil, ErrInvoiceNotFound
}

func (r *memoryRepo) List(ctx context.Context, limit int) ([]SalesInvoice, error) {
	out := []SalesInvoice{}
	for _, inv := range r.invoices {
		out = append(out, *inv)
	}
	return out, nil
}

func (r *memoryRepo) Lines(ctx context.Context, invoiceID int64) ([]InvoiceLine, error) {
	return r.lines[invoiceID], nil
}

func (tx *memoryTx) GetOrderSummary(ctx context.Context, orderID int64) (OrderSummary, error) {
	sum, ok := tx.repo.orders[orderID]
	if !ok {
		return OrderSummary{}, ErrOrderNotFound
	}
	return sum, nil
}

func (tx *memoryTx) GetOrderLines(ctx context.Context, orderID int64) ([]InvoiceLine, error) {
	return tx.repo.orderLines[orderID], nil
}

func (tx *memoryTx) GetInvoiceForOrder(ctx context.Context, orderID int64) (*SalesInvoice, error) {
	return tx.repo.GetByOrderID(ctx, orderID)
}

func (tx *memoryTx) InsertInvoice(ctx context.Context, inv SalesInvoice) (int64, error) {
	for _, existing := range tx.repo.invoices {
		if existing.InvoiceNo == inv.InvoiceNo {
			return 0, ErrDuplicateNumber
		}
	}
	tx.repo.nextID++
	inv.ID = tx.repo.nextID
	tx.repo.invoices[inv.ID] = &inv
	return inv.ID, nil
}

func (tx *memoryTx) InsertLine(ctx context.Context, line InvoiceLine) error {
	if tx.repo.failLineInsert {
		return errors.New("boom")
	}
	tx.repo.lines[line.InvoiceID] = append(tx.repo.lines[line.InvoiceID], line)
	return nil
}

func (tx *memoryTx) DeleteInvoice(ctx context.Context, invoiceID int64) error {
	delete(tx.repo.invoices, invoiceID)
	delete(tx.repo.lines, invoiceID)
	return nil
}

func (tx *memoryTx) UpdateInvoiceStatus(ctx context.Context, invoiceID int64, status InvoiceStatus) error {
	inv, ok := tx.repo.invoices[invoiceID]
	if !ok {
		return ErrInvoiceNotFound
	}
	inv.Status = status
	return nil
}

func seedOrder(repo *memoryRepo, orderID int64, status string) {
	repo.orders[orderID] = OrderSummary{OrderID: orderID, Status: status, Subtotal: 100, TaxAmount: 10, TotalAmount: 110}
	repo.orderLines[orderID] = []InvoiceLine{
		{ProductID: 1, Description: "Widget", Qty: 2, UnitPrice: 50, LineTotal: 100},
	}
}

func TestSyncCreatesInvoiceLazily(t *testing.T) {
	repo := newMemoryRepo()
	seedOrder(repo, 100, "CONFIRMED")
	svc := NewSynthesizer(repo, nil)
	ctx := context.Background()

	require.NoError(t, svc.Sync(ctx, 100, 7))
	inv, err := svc.GetByOrder(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, StatusUnpaid, inv.Status)
	require.Regexp(t, regexp.MustCompile(`^INV-\d{8}-\d{4}$`), inv.InvoiceNo)
	require.InDelta(t, 110, inv.TotalAmount, 0.001)
	require.Len(t, repo.lines[inv.ID], 1)
}

func TestSyncIsIdempotent(t *testing.T) {
	repo := newMemoryRepo()
	seedOrder(repo, 100, "CONFIRMED")
	svc := NewSynthesizer(repo, nil)
	ctx := context.Background()

	require.NoError(t, svc.Sync(ctx, 100, 7))
	first, err := svc.GetByOrder(ctx, 100)
	require.NoError(t, err)

	require.NoError(t, svc.Sync(ctx, 100, 7))
	second, err := svc.GetByOrder(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, first.InvoiceNo, second.InvoiceNo)
	require.Len(t, repo.invoices, 1)
}

func TestSyncMarksPaidOnCompletion(t *testing.T) {
	repo := newMemoryRepo()
	seedOrder(repo, 100, "CONFIRMED")
	svc := NewSynthesizer(repo, nil)
	ctx := context.Background()

	require.NoError(t, svc.Sync(ctx, 100, 7))

	summary := repo.orders[100]
	summary.Status = "COMPLETED"
	repo.orders[100] = summary

	require.NoError(t, svc.Sync(ctx, 100, 7))
	inv, err := svc.GetByOrder(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, StatusPaid, inv.Status)
}

func TestSyncDeletesHeaderWhenLinesFail(t *testing.T) {
	repo := newMemoryRepo()
	seedOrder(repo, 100, "CONFIRMED")
	repo.failLineInsert = true
	svc := NewSynthesizer(repo, nil)

	require.Error(t, svc.Sync(context.Background(), 100, 7))
	require.Empty(t, repo.invoices)
	require.Empty(t, repo.lines)
}

func TestSyncUnknownOrder(t *testing.T) {
	svc := NewSynthesizer(newMemoryRepo(), nil)
	require.ErrorIs(t, svc.Sync(context.Background(), 404, 7), ErrOrderNotFound)
}

func TestInvoiceNumberFormat(t *testing.T) {
	no := NewInvoiceNumber(time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC))
	require.Regexp(t, regexp.MustCompile(`^INV-20260314-\d{4}$`), no)
}
