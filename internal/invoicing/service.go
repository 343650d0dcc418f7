package invoicing

import (
	"context"
	"errors"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the synthesizer.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (*SalesInvoice, error)
	GetByOrderID(ctx context.Context, orderID int64) (*SalesInvoice, error)
	List(ctx context.Context, limit int) ([]SalesInvoice, error)
	Lines(ctx context.Context, invoiceID int64) ([]InvoiceLine, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Synthesizer keeps each order's invoice in line with the order itself.
// Invoices are created lazily on the first sync and only their settlement
// status changes afterwards, so repeated syncs are safe.
type Synthesizer struct {
	repo  RepositoryPort
	audit AuditPort
	now   func() time.Time
}

// NewSynthesizer builds Synthesizer.
func NewSynthesizer(repo RepositoryPort, audit AuditPort) *Synthesizer {
	return &Synthesizer{repo: repo, audit: audit, now: time.Now}
}

const numberRetries = 5

// Sync creates the order's invoice if missing and aligns its status with the
// order. A line insert failure removes the just-created header before the
// error propagates, so no invoice is ever left without its lines.
func (s *Synthesizer) Sync(ctx context.Context, orderID, actorID int64) error {
	if orderID == 0 {
		return errors.New("invoicing: order id required")
	}

	var created bool
	var invoiceNo string
	sync := func(ctx context.Context, tx TxRepository) error {
		summary, err := tx.GetOrderSummary(ctx, orderID)
		if err != nil {
			return err
		}
		target := StatusForOrder(summary.Status)

		inv, err := tx.GetInvoiceForOrder(ctx, orderID)
		if err != nil && !errors.Is(err, ErrInvoiceNotFound) {
			return err
		}
		if inv != nil {
			if inv.Status != target {
				if err := tx.UpdateInvoiceStatus(ctx, inv.ID, target); err != nil {
					return err
				}
			}
			invoiceNo = inv.InvoiceNo
			return nil
		}

		lines, err := tx.GetOrderLines(ctx, orderID)
		if err != nil {
			return err
		}
		subtotal := summary.Subtotal
		if len(lines) > 0 {
			subtotal = 0
			for _, line := range lines {
				subtotal += line.LineTotal
			}
		}

		issued := s.now().UTC()
		header := SalesInvoice{
			OrderID:        orderID,
			Status:         target,
			Subtotal:       subtotal,
			TaxAmount:      summary.TaxAmount,
			ShippingAmount: summary.ShippingAmount,
			TotalAmount:    subtotal + summary.TaxAmount + summary.ShippingAmount,
			IssuedAt:       issued,
		}
		var invoiceID int64
		for attempt := 0; ; attempt++ {
			header.InvoiceNo = NewInvoiceNumber(issued)
			invoiceID, err = tx.InsertInvoice(ctx, header)
			if err == nil {
				break
			}
			if !errors.Is(err, ErrDuplicateNumber) || attempt >= numberRetries {
				return err
			}
		}

		for _, line := range lines {
			line.InvoiceID = invoiceID
			if err := tx.InsertLine(ctx, line); err != nil {
				_ = tx.DeleteInvoice(ctx, invoiceID)
				return err
			}
		}
		created = true
		invoiceNo = header.InvoiceNo
		return nil
	}

	if err := s.repo.WithTx(ctx, sync); err != nil {
		return err
	}
	if created && s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "invoicing:create",
			Entity:   "sales_invoice",
			EntityID: invoiceNo,
			Meta:     map[string]any{"order_id": orderID},
		})
	}
	return nil
}

// Get returns an invoice with its lines.
func (s *Synthesizer) Get(ctx context.Context, id int64) (*SalesInvoice, []InvoiceLine, error) {
	inv, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	lines, err := s.repo.Lines(ctx, inv.ID)
	if err != nil {
		return nil, nil, err
	}
	return inv, lines, nil
}

// GetByOrder returns the invoice attached to an order.
func (s *Synthesizer) GetByOrder(ctx context.Context, orderID int64) (*SalesInvoice, error) {
	return s.repo.GetByOrderID(ctx, orderID)
}

// List returns recent invoices.
func (s *Synthesizer) List(ctx context.Context, limit int) ([]SalesInvoice, error) {
	return s.repo.List(ctx, limit)
}
