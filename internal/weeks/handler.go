package weeks

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/GonzaJCalderon/EatAndRun-Back/internal/auth"
	"github.com/GonzaJCalderon/EatAndRun-Back/internal/clock"
	"github.com/GonzaJCalderon/EatAndRun-Back/internal/platform/httpx"
)

// UpsertRequest creates or updates a week by its start date.
type UpsertRequest struct {
	FechaInicio string `json:"fecha_inicio" validate:"required,datetime=2006-01-02"`
	FechaFin    string `json:"fecha_fin" validate:"omitempty,datetime=2006-01-02"`
	Cierre      string `json:"cierre"`
}

// EnableRequest toggles a week.
type EnableRequest struct {
	ID         int64 `json:"id" validate:"required,gt=0"`
	Habilitado *bool `json:"habilitado" validate:"required"`
}

// CloseRequest moves the close instant of a week.
type CloseRequest struct {
	ID     int64  `json:"id" validate:"required,gt=0"`
	Cierre string `json:"cierre" validate:"required"`
}

// DaysRequest replaces the per-day flags of a week.
type DaysRequest struct {
	ID   *int64           `json:"id" validate:"omitempty,gt=0"`
	Dias clock.DayEnabled `json:"dias_habilitados" validate:"required"`
}

// Handler exposes week endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	auth    auth.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, authMW auth.Middleware) *Handler {
	return &Handler{logger: logger, service: service, auth: authMW}
}

// MountRoutes registers week routes. Callers mount it behind authentication.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/actual", h.current)
	r.Get("/proxima", h.next)
	r.Get("/activas", h.listActive)
	r.Get("/disponibles", h.listAvailable)

	r.Group(func(r chi.Router) {
		r.Use(h.auth.RequireRoles(auth.RoleAdmin, auth.RoleModerador))
		r.Put("/", h.upsert)
		r.Put("/habilitar", h.setEnabled)
		r.Put("/cierre", h.setCloseAt)
		r.Put("/dias", h.setDays)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.auth.RequireRoles(auth.RoleAdmin))
		r.Delete("/{id}", h.delete)
	})
}

func (h *Handler) current(w http.ResponseWriter, r *http.Request) {
	week, err := h.service.Current(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, week)
}

func (h *Handler) next(w http.ResponseWriter, r *http.Request) {
	week, err := h.service.Next(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, week)
}

func (h *Handler) listActive(w http.ResponseWriter, r *http.Request) {
	weeks, err := h.service.ListActive(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, weeks)
}

func (h *Handler) listAvailable(w http.ResponseWriter, r *http.Request) {
	weeks, err := h.service.ListAvailable(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, weeks)
}

func (h *Handler) upsert(w http.ResponseWriter, r *http.Request) {
	var req UpsertRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	in := UpsertInput{Start: clock.MustParseDate(req.FechaInicio)}
	if req.FechaFin != "" {
		in.End = clock.MustParseDate(req.FechaFin)
	}
	if req.Cierre != "" {
		closeAt, err := h.service.ParseCloseAt(req.Cierre)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
		in.CloseAt = &closeAt
	}
	week, err := h.service.Upsert(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, week)
}

func (h *Handler) setEnabled(w http.ResponseWriter, r *http.Request) {
	var req EnableRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	week, err := h.service.SetEnabled(r.Context(), req.ID, *req.Habilitado)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, week)
}

func (h *Handler) setCloseAt(w http.ResponseWriter, r *http.Request) {
	var req CloseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	closeAt, err := h.service.ParseCloseAt(req.Cierre)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	week, err := h.service.SetCloseAt(r.Context(), req.ID, closeAt)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, week)
}

func (h *Handler) setDays(w http.ResponseWriter, r *http.Request) {
	var req DaysRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	week, err := h.service.SetDays(r.Context(), req.ID, req.Dias)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, week)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid week id")
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrNoActiveWindow):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrWeekHasOrders):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrInvalidRange), errors.Is(err, ErrCloseOutsideWeek), errors.Is(err, clock.ErrUnsupportedDate):
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
	default:
		h.logger.Error("week request failed", slog.Any("error", err), slog.String("path", r.URL.Path))
		httpx.RespondError(w, err)
	}
}
