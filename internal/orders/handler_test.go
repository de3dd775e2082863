package orders

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GonzaJCalderon/EatAndRun-Back/internal/auth"
	"github.com/GonzaJCalderon/EatAndRun-Back/internal/platform/idempotency"
)

type routerHarness struct {
	*harness
	router http.Handler
	issuer *auth.Issuer
}

func newRouterHarness(t *testing.T, now string) *routerHarness {
	t.Helper()
	h := newHarness(t, now)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	issuer := auth.NewIssuer("orders-secret", time.Hour)
	mw := auth.Middleware{Issuer: issuer, Logger: logger}
	r := chi.NewRouter()
	r.Route("/orders", func(r chi.Router) {
		r.Use(mw.Authenticate)
		NewHandler(logger, h.svc, mw).MountRoutes(r)
	})
	return &routerHarness{harness: h, router: r, issuer: issuer}
}

func (h *routerHarness) do(t *testing.T, userID int64, role auth.Role, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	token, err := h.issuer.Issue(userID, role)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.router.ServeHTTP(rr, req)
	return rr
}

const scenarioBody = `{"fecha_entrega":"2025-08-15","observaciones":"sin sal","metodoPago":"transferencia",
	"items":[{"item_type":"daily","item_id":10,"quantity":2,"dia":"viernes"}]}`

func TestPlaceOrderEndpoint(t *testing.T) {
	h := newRouterHarness(t, "2025-08-12 10:00:00")

	rr := h.do(t, 7, auth.RoleUsuario, http.MethodPost, "/orders", scenarioBody, nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.EqualValues(t, 1, body["cantidadItems"])
	assert.Equal(t, "10800", body["total"])
	assert.NotEmpty(t, body["message"])

	saved := h.store.orders[int64(body["id"].(float64))]
	require.NotNil(t, saved)
	require.NotNil(t, saved.Observations)
	assert.Equal(t, "sin sal", *saved.Observations)
	assert.Equal(t, "10", saved.Items[0].Ref)
}

func TestPlaceOrderEndpointErrors(t *testing.T) {
	h := newRouterHarness(t, "2025-08-12 10:00:00")

	rr := h.do(t, 1, auth.RoleDelivery, http.MethodPost, "/orders", scenarioBody, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = h.do(t, 7, auth.RoleUsuario, http.MethodPost, "/orders",
		`{"fecha_entrega":"2025-08-15","items":[{"item_type":"daily","quantity":1}]}`, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "item 1")

	rr = h.do(t, 7, auth.RoleUsuario, http.MethodPost, "/orders",
		`{"fecha_entrega":"2025-08-15","items":[{"item_type":"extra","item_id":"7","quantity":1,"dia":"lunes"}]}`, nil)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	key := map[string]string{idempotency.HeaderName: "abc"}
	rr = h.do(t, 7, auth.RoleUsuario, http.MethodPost, "/orders", scenarioBody, key)
	require.Equal(t, http.StatusCreated, rr.Code)
	rr = h.do(t, 7, auth.RoleUsuario, http.MethodPost, "/orders", scenarioBody, key)
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestPlaceOrderEndpointEnglishKeys(t *testing.T) {
	h := newRouterHarness(t, "2025-08-12 10:00:00")

	rr := h.do(t, 7, auth.RoleUsuario, http.MethodPost, "/orders",
		`{"delivery_date":"2025-08-15","items":[{"item_type":"daily","item_id":10,"quantity":2,"day":"viernes"},`+
			`{"item_type":"tarta","name":"Tarta de jamon","quantity":1}]}`, nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.EqualValues(t, 2, body["cantidadItems"])
	// 2*5000 + 7000 + one delivery day (800)
	assert.Equal(t, "17800", body["total"])

	saved := h.store.orders[int64(body["id"].(float64))]
	require.Len(t, saved.Items, 2)
	assert.Equal(t, "2025-08-15", saved.Items[0].DayDate.String())
	assert.Equal(t, "Tarta de jamon", saved.Items[1].Name)

	rr = h.do(t, 7, auth.RoleUsuario, http.MethodPost, "/orders",
		`{"delivery_date":"2025-08-16","items":[{"item_type":"daily","item_id":10,"quantity":1,"day":"viernes"}]}`, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "fecha_entrega")
}

func TestPlaceOrderEndpointAfterClose(t *testing.T) {
	h := newRouterHarness(t, "2025-08-15 00:00:01")
	rr := h.do(t, 7, auth.RoleUsuario, http.MethodPost, "/orders", scenarioBody, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestOrderReadRoutes(t *testing.T) {
	h := newRouterHarness(t, "2025-08-12 10:00:00")
	rr := h.do(t, 7, auth.RoleUsuario, http.MethodPost, "/orders", scenarioBody, nil)
	require.Equal(t, http.StatusCreated, rr.Code)

	assert.Equal(t, http.StatusOK, h.do(t, 7, auth.RoleUsuario, http.MethodGet, "/orders/1", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, h.do(t, 8, auth.RoleUsuario, http.MethodGet, "/orders/1", "", nil).Code)
	assert.Equal(t, http.StatusOK, h.do(t, 8, auth.RoleModerador, http.MethodGet, "/orders/1", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(t, 7, auth.RoleUsuario, http.MethodGet, "/orders/99", "", nil).Code)

	assert.Equal(t, http.StatusForbidden, h.do(t, 7, auth.RoleUsuario, http.MethodGet, "/orders/all", "", nil).Code)
	all := h.do(t, 1, auth.RoleAdmin, http.MethodGet, "/orders/all", "", nil)
	require.Equal(t, http.StatusOK, all.Code)
	var list []Order
	require.NoError(t, json.Unmarshal(all.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	mine := h.do(t, 8, auth.RoleUsuario, http.MethodGet, "/orders", "", nil)
	require.Equal(t, http.StatusOK, mine.Code)
	assert.JSONEq(t, `[]`, mine.Body.String())

	assert.Equal(t, http.StatusForbidden, h.do(t, 2, auth.RoleModerador, http.MethodDelete, "/orders/1", "", nil).Code)
	assert.Equal(t, http.StatusOK, h.do(t, 1, auth.RoleAdmin, http.MethodDelete, "/orders/1", "", nil).Code)
	assert.Empty(t, h.store.orders)
}
