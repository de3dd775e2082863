package pricing

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/GonzaJCalderon/EatAndRun-Back/internal/auth"
	"github.com/GonzaJCalderon/EatAndRun-Back/internal/platform/httpx"
)

// Refresher queues a cache invalidation on the worker.
type Refresher interface {
	EnqueuePricingInvalidate(ctx context.Context, reason string) (*asynq.TaskInfo, error)
}

// Handler exposes the current price snapshot.
type Handler struct {
	logger    *slog.Logger
	store     *Store
	auth      auth.Middleware
	refresher Refresher
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, store *Store, authMW auth.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, store: store, auth: authMW}
}

// SetRefresher routes admin refreshes through the job queue.
func (h *Handler) SetRefresher(r Refresher) { h.refresher = r }

// MountRoutes registers pricing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.snapshot)
	r.Group(func(r chi.Router) {
		r.Use(h.auth.RequireRoles(auth.RoleAdmin))
		r.Post("/refresh", h.refresh)
	})
}

func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.store.Snapshot(r.Context())
	if err != nil {
		h.logger.Error("load prices", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "price configuration unavailable")
		return
	}
	httpx.JSON(w, http.StatusOK, cfg)
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	if h.refresher != nil {
		info, err := h.refresher.EnqueuePricingInvalidate(r.Context(), "admin refresh")
		if err == nil {
			httpx.JSON(w, http.StatusAccepted, map[string]string{"task_id": info.ID})
			return
		}
		h.logger.Warn("enqueue price refresh, invalidating inline", slog.Any("error", err))
	}
	if err := h.store.Invalidate(r.Context()); err != nil {
		h.logger.Error("invalidate prices", slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "price cache unavailable")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}
