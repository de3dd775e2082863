package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/GonzaJCalderon/EatAndRun-Back/internal/auth"
	"github.com/GonzaJCalderon/EatAndRun-Back/internal/platform/httpx"
)

// TransitionRequest is the body of PUT /orders/{id}.
type TransitionRequest struct {
	Status Status `json:"status" validate:"required"`
	Motivo string `json:"motivo" validate:"max=500"`
}

// Handler exposes status endpoints on the orders router.
type Handler struct {
	logger  *slog.Logger
	service *Service
	auth    auth.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, authMW auth.Middleware) *Handler {
	return &Handler{logger: logger, service: service, auth: authMW}
}

// MountRoutes registers ledger routes on the orders router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{id}/history", h.history)

	r.Group(func(r chi.Router) {
		r.Use(h.auth.RequireRoles(auth.RoleAdmin, auth.RoleModerador, auth.RoleDelivery))
		r.Put("/{id}", h.transition)
	})
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	var req TransitionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	claims := auth.ClaimsFromContext(r.Context())
	entry, err := h.service.Transition(r.Context(), TransitionInput{
		OrderID:   orderID,
		Status:    req.Status,
		Reason:    req.Motivo,
		Actor:     claims.UserID,
		RequestID: middleware.GetReqID(r.Context()),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"message": "Estado actualizado",
		"entry":   entry,
	})
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	claims := auth.ClaimsFromContext(r.Context())
	entries, err := h.service.History(r.Context(), orderID, claims.UserID, claims.Role.IsStaff())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrForbidden):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrReasonTooShort):
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
	default:
		h.logger.Error("status request failed", slog.Any("error", err), slog.String("path", r.URL.Path))
		httpx.RespondError(w, err)
	}
}

func orderIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid order id")
		return 0, false
	}
	return id, true
}
