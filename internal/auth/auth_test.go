package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleTable(t *testing.T) {
	cases := map[Role]string{
		RoleUsuario:   "usuario",
		RoleEmpresa:   "empresa",
		RoleDelivery:  "delivery",
		RoleAdmin:     "admin",
		RoleModerador: "moderador",
		RoleEmpleado:  "empleado",
	}
	for role, name := range cases {
		assert.Equal(t, name, role.String())
		parsed, ok := ParseRole(name)
		require.True(t, ok)
		assert.Equal(t, role, parsed)
	}
	assert.False(t, Role(99).IsValid())
	assert.Equal(t, "empresa", RoleEmpleado.MenuType())
	assert.Equal(t, "usuario", RoleUsuario.MenuType())
	assert.True(t, RoleModerador.IsStaff())
	assert.False(t, RoleDelivery.IsStaff())
}

func TestIssueAndParse(t *testing.T) {
	issuer := NewIssuer("secret", time.Hour)
	token, err := issuer.Issue(42, RoleEmpresa)
	require.NoError(t, err)

	claims, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, RoleEmpresa, claims.Role)
	assert.NotEmpty(t, claims.ID)

	_, err = NewIssuer("other", time.Hour).Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = issuer.Issue(0, RoleAdmin)
	assert.Error(t, err)
}

func TestParseRejectsExpiredToken(t *testing.T) {
	issuer := NewIssuer("secret", time.Minute)
	issued := time.Date(2025, 8, 11, 9, 0, 0, 0, time.UTC)
	issuer.now = func() time.Time { return issued }
	token, err := issuer.Issue(7, RoleUsuario)
	require.NoError(t, err)

	issuer.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = issuer.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestMiddlewareAuthenticateAndRequireRoles(t *testing.T) {
	issuer := NewIssuer("secret", time.Hour)
	mw := Middleware{Issuer: issuer}
	var seen *Claims
	handler := mw.Authenticate(mw.RequireRoles(RoleAdmin, RoleModerador)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/weeks/habilitar", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	userToken, err := issuer.Issue(3, RoleUsuario)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPut, "/weeks/habilitar", nil)
	req.Header.Set("Authorization", "Bearer "+userToken)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	adminToken, err := issuer.Issue(1, RoleAdmin)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodPut, "/weeks/habilitar", nil)
	req.Header.Set("Authorization", "bearer "+adminToken)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	require.NotNil(t, seen)
	assert.Equal(t, int64(1), seen.UserID)
}

func TestBearerTokenFromWebsocketQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/orders/1/ws?token=abc", nil)
	assert.Equal(t, "", bearerToken(req))
	req.Header.Set("Upgrade", "websocket")
	assert.Equal(t, "abc", bearerToken(req))
}
