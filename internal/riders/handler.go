package riders

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the riders module.
type Handler struct {
	logger  *slog.Logger
	service *Registry
}

// NewHandler constructs a riders handler.
func NewHandler(logger *slog.Logger, service *Registry) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers rider routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
}

type riderResponse struct {
	ID       int64  `json:"id"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Status   string `json:"status"`
}

func toResponse(rider Rider) riderResponse {
	return riderResponse{
		ID:       rider.ID,
		FullName: rider.FullName,
		Phone:    rider.Phone,
		Status:   string(rider.Status),
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	status := RiderStatus(r.URL.Query().Get("status"))
	riders, err := h.service.List(r.Context(), status)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	out := make([]riderResponse, 0, len(riders))
	for _, rider := range riders {
		out = append(out, toResponse(rider))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"riders": out})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	rider, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrRiderNotFound) {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		h.logger.Error("get rider", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(*rider))
}
