package invoicing

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists invoices in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the synthesizer.
type TxRepository interface {
	GetOrderSummary(ctx context.Context, orderID int64) (OrderSummary, error)
	GetOrderLines(ctx context.Context, orderID int64) ([]InvoiceLine, error)
	GetInvoiceForOrder(ctx context.Context, orderID int64) (*SalesInvoice, error)
	InsertInvoice(ctx context.Context, inv SalesInvoice) (int64, error)
	InsertLine(ctx context.Context, line InvoiceLine) error
	DeleteInvoice(ctx context.Context, invoiceID int64) error
	UpdateInvoiceStatus(ctx context.Context, invoiceID int64, status InvoiceStatus) error
}

type txRepository struct {
	tx pgx.Tx
}

// ErrDuplicateNumber indicates the generated invoice number already exists.
var ErrDuplicateNumber = errors.New("invoicing: duplicate invoice number")

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("invoicing repository not initialised")
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

const invoiceColumns = `id, invoice_no, order_id, status, subtotal, tax_amount, shipping_amount, total_amount, issued_at, created_at, updated_at`

func scanInvoice(row pgx.Row) (*SalesInvoice, error) {
	var inv SalesInvoice
	err := row.Scan(&inv.ID, &inv.InvoiceNo, &inv.OrderID, &inv.Status, &inv.Subtotal, &inv.TaxAmount,
		&inv.ShippingAmount, &inv.TotalAmount, &inv.IssuedAt, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}
	return &inv, nil
}

// Get fetches an invoice by id.
func (r *Repository) Get(ctx context.Context, id int64) (*SalesInvoice, error) {
	return scanInvoice(r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM sales_invoices WHERE id=$1`, id))
}

// GetByOrderID fetches the invoice attached to an order.
func (r *Repository) GetByOrderID(ctx context.Context, orderID int64) (*SalesInvoice, error) {
	return scanInvoice(r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM sales_invoices WHERE order_id=$1`, orderID))
}

// List returns invoices, newest first.
func (r *Repository) List(ctx context.Context, limit int) ([]SalesInvoice, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT `+invoiceColumns+` FROM sales_invoices ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	invoices := []SalesInvoice{}
	for rows.Next() {
		var inv SalesInvoice
		if err := rows.Scan(&inv.ID, &inv.InvoiceNo, &inv.OrderID, &inv.Status, &inv.Subtotal, &inv.TaxAmount,
			&inv.ShippingAmount, &inv.TotalAmount, &inv.IssuedAt, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

// Lines returns the lines of an invoice.
func (r *Repository) Lines(ctx context.Context, invoiceID int64) ([]InvoiceLine, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, invoice_id, product_id, description, qty, unit_price, line_total
FROM sales_invoice_lines WHERE invoice_id=$1 ORDER BY id`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	lines := []InvoiceLine{}
	for rows.Next() {
		var line InvoiceLine
		if err := rows.Scan(&line.ID, &line.InvoiceID, &line.ProductID, &line.Description, &line.Qty, &line.UnitPrice, &line.LineTotal); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (r *txRepository) GetOrderSummary(ctx context.Context, orderID int64) (OrderSummary, error) {
	var sum OrderSummary
	err := r.tx.QueryRow(ctx, `SELECT id, status, subtotal, tax_amount, shipping_amount, total_amount
FROM orders WHERE id=$1`, orderID).
		Scan(&sum.OrderID, &sum.Status, &sum.Subtotal, &sum.TaxAmount, &sum.ShippingAmount, &sum.TotalAmount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return OrderSummary{}, ErrOrderNotFound
		}
		return OrderSummary{}, err
	}
	return sum, nil
}

func (r *txRepository) GetOrderLines(ctx context.Context, orderID int64) ([]InvoiceLine, error) {
	rows, err := r.tx.Query(ctx, `SELECT oi.product_id, p.name, oi.qty, oi.unit_price, oi.qty * oi.unit_price
FROM order_items oi
JOIN products p ON p.id = oi.product_id
WHERE oi.order_id=$1
ORDER BY oi.id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	lines := []InvoiceLine{}
	for rows.Next() {
		var line InvoiceLine
		if err := rows.Scan(&line.ProductID, &line.Description, &line.Qty, &line.UnitPrice, &line.LineTotal); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (r *txRepository) GetInvoiceForOrder(ctx context.Context, orderID int64) (*SalesInvoice, error) {
	return scanInvoice(r.tx.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM sales_invoices WHERE order_id=$1 FOR UPDATE`, orderID))
}

func (r *txRepository) InsertInvoice(ctx context.Context, inv SalesInvoice) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO sales_invoices (invoice_no, order_id, status, subtotal, tax_amount, shipping_amount, total_amount, issued_at, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW(),NOW())
ON CONFLICT (invoice_no) DO NOTHING
RETURNING id`, inv.InvoiceNo, inv.OrderID, string(inv.Status), inv.Subtotal, inv.TaxAmount, inv.ShippingAmount, inv.TotalAmount, inv.IssuedAt).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrDuplicateNumber
	}
	return id, err
}

func (r *txRepository) InsertLine(ctx context.Context, line InvoiceLine) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO sales_invoice_lines (invoice_id, product_id, description, qty, unit_price, line_total)
VALUES ($1,$2,$3,$4,$5,$6)`, line.InvoiceID, line.ProductID, line.Description, line.Qty, line.UnitPrice, line.LineTotal)
	return err
}

func (r *txRepository) DeleteInvoice(ctx context.Context, invoiceID int64) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM sales_invoice_lines WHERE invoice_id=$1`, invoiceID); err != nil {
		return err
	}
	_, err := r.tx.Exec(ctx, `DELETE FROM sales_invoices WHERE id=$1`, invoiceID)
	return err
}

func (r *txRepository) UpdateInvoiceStatus(ctx context.Context, invoiceID int64, status InvoiceStatus) error {
	_, err := r.tx.Exec(ctx, `UPDATE sales_invoices SET status=$2, updated_at=NOW() WHERE id=$1`, invoiceID, string(status))
	return err
}

var _ TxRepository = (*txRepository)(nil)
