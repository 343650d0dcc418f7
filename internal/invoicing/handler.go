package invoicing

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the invoicing module.
type Handler struct {
	logger  *slog.Logger
	service *Synthesizer
}

// NewHandler constructs an invoicing handler.
func NewHandler(logger *slog.Logger, service *Synthesizer) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers invoice routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
}

type invoiceResponse struct {
	ID             int64          `json:"id"`
	InvoiceNo      string         `json:"invoice_no"`
	OrderID        int64          `json:"order_id"`
	Status         string         `json:"status"`
	Subtotal       float64        `json:"subtotal"`
	TaxAmount      float64        `json:"tax_amount"`
	ShippingAmount float64        `json:"shipping_amount"`
	TotalAmount    float64        `json:"total_amount"`
	IssuedAt       time.Time      `json:"issued_at"`
	Lines          []lineResponse `json:"lines,omitempty"`
}

type lineResponse struct {
	ProductID   int64   `json:"product_id"`
	Description string  `json:"description"`
	Qty         float64 `json:"qty"`
	UnitPrice   float64 `json:"unit_price"`
	LineTotal   float64 `json:"line_total"`
}

func toResponse(inv SalesInvoice, lines []InvoiceLine) invoiceResponse {
	out := invoiceResponse{
		ID:             inv.ID,
		InvoiceNo:      inv.InvoiceNo,
		OrderID:        inv.OrderID,
		Status:         string(inv.Status),
		Subtotal:       inv.Subtotal,
		TaxAmount:      inv.TaxAmount,
		ShippingAmount: inv.ShippingAmount,
		TotalAmount:    inv.TotalAmount,
		IssuedAt:       inv.IssuedAt,
	}
	for _, line := range lines {
		out.Lines = append(out.Lines, lineResponse{
			ProductID:   line.ProductID,
			Description: line.Description,
			Qty:         line.Qty,
			UnitPrice:   line.UnitPrice,
			LineTotal:   line.LineTotal,
		})
	}
	return out
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	invoices, err := h.service.List(r.Context(), limit)
	if err != nil {
		h.logger.Error("list invoices", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]invoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, toResponse(inv, nil))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"invoices": out})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	inv, lines, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrInvoiceNotFound) {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		h.logger.Error("get invoice", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(*inv, lines))
}
