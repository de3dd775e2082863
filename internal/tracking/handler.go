package tracking

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/GonzaJCalderon/EatAndRun-Back/internal/auth"
	"github.com/GonzaJCalderon/EatAndRun-Back/internal/platform/httpx"
)

// Authorizer decides whether a viewer may follow an order.
type Authorizer interface {
	Authorize(ctx context.Context, orderID, viewerID int64, staff bool) error
}

// Handler upgrades order tracking requests to websockets.
type Handler struct {
	hub        *Hub
	authorizer Authorizer
	logger     *slog.Logger
	upgrader   websocket.Upgrader
}

// NewHandler builds Handler instance. allowedOrigins empty accepts any origin.
func NewHandler(hub *Hub, authorizer Authorizer, logger *slog.Logger, allowedOrigins []string) *Handler {
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = struct{}{}
	}
	return &Handler{
		hub:        hub,
		authorizer: authorizer,
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if len(origins) == 0 || origin == "" {
					return true
				}
				_, ok := origins[origin]
				return ok
			},
		},
	}
}

// MountRoutes registers the websocket route on the orders router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{id}/ws", h.serveWS)
}

func (h *Handler) serveWS(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || orderID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid order id")
		return
	}
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "not authenticated")
		return
	}
	if err := h.authorizer.Authorize(r.Context(), orderID, claims.UserID, claims.Role.IsStaff()); err != nil {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "order not visible")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade", slog.Int64("order_id", orderID), slog.Any("error", err))
		return
	}
	client := &Client{
		hub:     h.hub,
		conn:    conn,
		orderID: orderID,
		send:    make(chan []byte, 16),
		logger:  h.logger,
	}
	if !h.hub.join(client) {
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
