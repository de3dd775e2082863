package orders

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/GonzaJCalderon/EatAndRun-Back/internal/auth"
	"github.com/GonzaJCalderon/EatAndRun-Back/internal/clock"
	"github.com/GonzaJCalderon/EatAndRun-Back/internal/platform/httpx"
	"github.com/GonzaJCalderon/EatAndRun-Back/internal/platform/idempotency"
	"github.com/GonzaJCalderon/EatAndRun-Back/internal/pricing"
	"github.com/GonzaJCalderon/EatAndRun-Back/internal/weeks"
)

// ItemRequest is one line of PlaceOrderRequest. Name and Day are the English
// spellings of ItemID (for tartas) and Dia.
type ItemRequest struct {
	ItemType string `json:"item_type"`
	ItemID   Ref    `json:"item_id"`
	Name     string `json:"name"`
	Quantity *int   `json:"quantity"`
	Dia      string `json:"dia"`
	Day      string `json:"day"`
}

func (it ItemRequest) input() ItemInput {
	ref := it.ItemID
	if ref == "" {
		ref = Ref(strings.TrimSpace(it.Name))
	}
	day := it.Dia
	if strings.TrimSpace(day) == "" {
		day = it.Day
	}
	return ItemInput{Type: it.ItemType, Ref: ref, Quantity: it.Quantity, Day: day}
}

// PlaceOrderRequest is the body of POST /orders. DeliveryDate is accepted
// when fecha_entrega is absent.
type PlaceOrderRequest struct {
	Items         []ItemRequest `json:"items"`
	FechaEntrega  string        `json:"fecha_entrega"`
	DeliveryDate  string        `json:"delivery_date"`
	Observaciones string        `json:"observaciones" validate:"max=1000"`
	MetodoPago    string        `json:"metodoPago" validate:"max=100"`
}

func (req PlaceOrderRequest) deliveryDate() string {
	if strings.TrimSpace(req.FechaEntrega) != "" {
		return req.FechaEntrega
	}
	return req.DeliveryDate
}

// Handler exposes order endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	auth    auth.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, authMW auth.Middleware) *Handler {
	return &Handler{logger: logger, service: service, auth: authMW}
}

// MountRoutes registers order routes. Callers mount it behind authentication.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listMine)
	r.Get("/{id}", h.get)

	r.Group(func(r chi.Router) {
		r.Use(h.auth.RequireRoles(auth.RoleUsuario, auth.RoleEmpresa, auth.RoleEmpleado))
		r.Post("/", h.place)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.auth.RequireRoles(auth.RoleAdmin, auth.RoleModerador))
		r.Get("/all", h.listAll)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.auth.RequireRoles(auth.RoleAdmin))
		r.Delete("/{id}", h.delete)
	})
}

func (h *Handler) place(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	claims := auth.ClaimsFromContext(r.Context())
	items := make([]ItemInput, len(req.Items))
	for i, it := range req.Items {
		items[i] = it.input()
	}
	res, err := h.service.PlaceOrder(r.Context(), PlaceOrderInput{
		UserID:         claims.UserID,
		Role:           claims.Role,
		Items:          items,
		DeliveryDate:   req.deliveryDate(),
		PaymentMethod:  req.MetodoPago,
		Observations:   req.Observaciones,
		IdempotencyKey: r.Header.Get(idempotency.HeaderName),
		RequestID:      middleware.GetReqID(r.Context()),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, res)
}

func (h *Handler) listMine(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	out, err := h.service.ListMine(r.Context(), claims.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) listAll(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.ListAll(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	claims := auth.ClaimsFromContext(r.Context())
	o, err := h.service.Get(r.Context(), id, claims.UserID, claims.Role.IsStaff())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, o)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "Pedido eliminado exitosamente"})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrMalformedItem),
		errors.Is(err, ErrNoItems),
		errors.Is(err, ErrDeliveryDateRequired),
		errors.Is(err, ErrInvalidDeliveryDate),
		errors.Is(err, ErrNothingToOrder),
		errors.Is(err, ErrDeliveryOutsideWeek),
		errors.Is(err, ErrDayClosed),
		errors.Is(err, clock.ErrUnsupportedDate),
		errors.Is(err, weeks.ErrWindowNotEnabled),
		errors.Is(err, weeks.ErrWindowClosed),
		errors.Is(err, weeks.ErrNoActiveWindow):
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrForbidden):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, ErrOrderLocked), errors.Is(err, idempotency.ErrConflict):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, pricing.ErrUnresolvedPriceReference):
		h.logger.Error("order pricing failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Unresolved Price Reference", err.Error())
	default:
		h.logger.Error("order request failed", slog.Any("error", err), slog.String("path", r.URL.Path))
		httpx.RespondError(w, err)
	}
}

func idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid order id")
		return 0, false
	}
	return id, true
}
