package orders

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/rbac"
)

// Handler wires HTTP endpoints for the orders module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs an orders handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Get("/{id}/history", h.history)
	r.Patch("/{id}/status", h.setStatus)
	r.Post("/{id}/confirm", h.confirm)
	r.Post("/{id}/cancel", h.cancel)
}

type orderResponse struct {
	ID              int64     `json:"id"`
	OrderNo         string    `json:"order_no"`
	Status          string    `json:"status"`
	DeliveryStatus  string    `json:"delivery_status,omitempty"`
	CustomerName    string    `json:"customer_name"`
	CustomerEmail   string    `json:"customer_email"`
	CustomerPhone   string    `json:"customer_phone"`
	ShippingAddress string    `json:"shipping_address"`
	Subtotal        float64   `json:"subtotal"`
	TaxAmount       float64   `json:"tax_amount"`
	ShippingAmount  float64   `json:"shipping_amount"`
	TotalAmount     float64   `json:"total_amount"`
	Notes           string    `json:"notes,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toResponse(o Order) orderResponse {
	return orderResponse{
		ID:              o.ID,
		OrderNo:         o.OrderNo,
		Status:          string(o.Status),
		DeliveryStatus:  o.DeliveryStatus,
		CustomerName:    o.CustomerName,
		CustomerEmail:   o.CustomerEmail,
		CustomerPhone:   o.CustomerPhone,
		ShippingAddress: o.ShippingAddress,
		Subtotal:        o.Subtotal,
		TaxAmount:       o.TaxAmount,
		ShippingAmount:  o.ShippingAmount,
		TotalAmount:     o.TotalAmount,
		Notes:           o.Notes,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	filter := ListFilter{
		Status: OrderStatus(q.Get("status")),
		Limit:  limit,
		Offset: offset,
	}
	orders, err := h.service.List(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toResponse(o))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"orders": out})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	order, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(*order))
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	history, err := h.service.StatusHistory(r.Context(), id)
	if err != nil {
		h.logger.Error("order history", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	type entry struct {
		From      string    `json:"from"`
		To        string    `json:"to"`
		ActorID   int64     `json:"actor_id"`
		Notes     string    `json:"notes,omitempty"`
		CreatedAt time.Time `json:"created_at"`
	}
	out := make([]entry, 0, len(history))
	for _, change := range history {
		out = append(out, entry{
			From:      string(change.FromStatus),
			To:        string(change.ToStatus),
			ActorID:   change.ActorID,
			Notes:     change.Notes,
			CreatedAt: change.CreatedAt,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"history": out})
}

type setStatusRequest struct {
	Status string `json:"status" validate:"required"`
	Notes  string `json:"notes" validate:"max=500"`
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	var req setStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	actor, ok := h.privilegedActor(w, r)
	if !ok {
		return
	}
	if err := h.service.SetStatus(r.Context(), id, OrderStatus(req.Status), actor.UserID, req.Notes); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.respondOrder(w, r, id)
}

type notesRequest struct {
	Notes string `json:"notes" validate:"max=500"`
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	var req notesRequest
	_ = httpx.DecodeJSON(r, &req)
	actor, ok := h.privilegedActor(w, r)
	if !ok {
		return
	}
	if err := h.service.Confirm(r.Context(), id, actor.UserID, req.Notes); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.respondOrder(w, r, id)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	var req notesRequest
	_ = httpx.DecodeJSON(r, &req)
	actor, ok := h.privilegedActor(w, r)
	if !ok {
		return
	}
	if err := h.service.Cancel(r.Context(), id, actor.UserID, req.Notes); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.respondOrder(w, r, id)
}

func (h *Handler) respondOrder(w http.ResponseWriter, r *http.Request, id int64) {
	order, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(*order))
}

func (h *Handler) privilegedActor(w http.ResponseWriter, r *http.Request) (rbac.Actor, bool) {
	actor, _ := rbac.ActorFromContext(r.Context())
	if !actor.Role.Privileged() {
		httpx.RespondError(w, httpx.ErrForbidden)
		return rbac.Actor{}, false
	}
	return actor, true
}

func (h *Handler) orderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return 0, false
	}
	return id, true
}
