package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/GonzaJCalderon/EatAndRun-Back/internal/platform/httpx"
)

type claimsContextKey struct{}

// ContextWithClaims stores claims in context.
func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

// ClaimsFromContext extracts claims from context.
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsContextKey{}).(*Claims)
	return claims
}

// Middleware wires token verification and role checks for HTTP handlers.
type Middleware struct {
	Issuer *Issuer
	Logger *slog.Logger
}

// Authenticate requires a valid bearer token. Websocket upgrades may pass the
// token as the "token" query parameter instead.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing bearer token")
			return
		}
		claims, err := m.Issuer.Parse(raw)
		if err != nil {
			if m.Logger != nil {
				m.Logger.Debug("reject token", slog.Any("error", err), slog.String("path", r.URL.Path))
			}
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid or expired token")
			return
		}
		if !claims.Role.IsValid() {
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "unknown role")
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
	})
}

// RequireRoles allows the request through only for the listed roles.
func (m Middleware) RequireRoles(roles ...Role) func(http.Handler) http.Handler {
	allowed := make(map[Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "not authenticated")
				return
			}
			if _, ok := allowed[claims.Role]; !ok {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "role "+claims.Role.String()+" not allowed")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return r.URL.Query().Get("token")
	}
	return ""
}
