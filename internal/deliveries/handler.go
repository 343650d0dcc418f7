package deliveries

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

// Handler wires HTTP endpoints for the deliveries module.
type Handler struct {
	logger   *slog.Logger
	service  *Manager
	validate *validator.Validate
}

// NewHandler constructs a deliveries handler.
func NewHandler(logger *slog.Logger, service *Manager) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers delivery routes. Role gates sit in the router; the
// status endpoint additionally checks per-status permissions in the service.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Patch("/{id}", h.update)
	r.Patch("/{id}/status", h.updateStatus)
	r.Delete("/{id}", h.remove)
}

type deliveryResponse struct {
	ID           int64     `json:"id"`
	OrderID      int64     `json:"order_id"`
	RiderID      int64     `json:"rider_id"`
	Status       string    `json:"status"`
	DeliveryDate time.Time `json:"delivery_date"`
	Quantity     float64   `json:"quantity"`
	Notes        string    `json:"notes,omitempty"`
}

func toResponse(d Delivery) deliveryResponse {
	return deliveryResponse{
		ID:           d.ID,
		OrderID:      d.OrderID,
		RiderID:      d.RiderID,
		Status:       string(d.Status),
		DeliveryDate: d.DeliveryDate,
		Quantity:     d.Quantity,
		Notes:        d.Notes,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	riderID, _ := strconv.ParseInt(q.Get("rider_id"), 10, 64)
	limit, _ := strconv.Atoi(q.Get("limit"))
	deliveries, err := h.service.List(r.Context(), riderID, limit)
	if err != nil {
		h.logger.Error("list deliveries", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]deliveryResponse, 0, len(deliveries))
	for _, d := range deliveries {
		out = append(out, toResponse(d))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deliveries": out})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.deliveryID(w, r)
	if !ok {
		return
	}
	delivery, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(*delivery))
}

type createRequest struct {
	OrderID      int64     `json:"order_id" validate:"required,gt=0"`
	RiderID      int64     `json:"rider_id" validate:"required,gt=0"`
	DeliveryDate time.Time `json:"delivery_date" validate:"required"`
	Quantity     float64   `json:"quantity" validate:"gte=0"`
	Notes        string    `json:"notes" validate:"max=500"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	actor, _ := rbac.ActorFromContext(r.Context())
	if !actor.Role.Privileged() {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}
	delivery, err := h.service.Create(r.Context(), CreateInput{
		OrderID:      req.OrderID,
		RiderID:      req.RiderID,
		DeliveryDate: req.DeliveryDate,
		Quantity:     req.Quantity,
		Notes:        req.Notes,
	}, actor.UserID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(*delivery))
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.deliveryID(w, r)
	if !ok {
		return
	}
	var req updateStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	actor, _ := rbac.ActorFromContext(r.Context())
	delivery, err := h.service.UpdateStatus(r.Context(), id, DeliveryStatus(req.Status), actor)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(*delivery))
}

type updateRequest struct {
	DeliveryDate *time.Time `json:"delivery_date"`
	Quantity     *float64   `json:"quantity" validate:"omitempty,gte=0"`
	Notes        *string    `json:"notes" validate:"omitempty,max=500"`
	Status       *string    `json:"status"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.deliveryID(w, r)
	if !ok {
		return
	}
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	input := UpdateInput{
		DeliveryDate: req.DeliveryDate,
		Quantity:     req.Quantity,
		Notes:        req.Notes,
	}
	if req.Status != nil {
		status := DeliveryStatus(*req.Status)
		input.Status = &status
	}
	actor, _ := rbac.ActorFromContext(r.Context())
	if !actor.Role.Privileged() {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}
	delivery, err := h.service.Update(r.Context(), id, input, actor)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(*delivery))
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := h.deliveryID(w, r)
	if !ok {
		return
	}
	actor, _ := rbac.ActorFromContext(r.Context())
	if !actor.Role.Privileged() {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}
	if err := h.service.Delete(r.Context(), id, actor.UserID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) deliveryID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return 0, false
	}
	return id, true
}
