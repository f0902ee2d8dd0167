package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/heartmarshall/qms-backend/internal/auth"
	"github.com/heartmarshall/qms-backend/pkg/ctxutil"
)

type tokenValidator interface {
	ValidateToken(ctx context.Context, token string) (auth.Identity, error)
}

// Auth resolves the bearer token into an identity. Requests without a
// bearer token pass through anonymously; Tenant rejects them on routes that
// need a caller.
func Auth(validator tokenValidator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			id, err := validator.ValidateToken(r.Context(), token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Unauthorized", "unauthorized")
				return
			}
			ctx := ctxutil.WithUserID(r.Context(), id.ActorID)
			ctx = ctxutil.WithTenantID(ctx, id.TenantID)
			ctx = ctxutil.WithRole(ctx, id.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractBearerToken reads the Authorization header. Browsers cannot set
// headers on a websocket handshake, so upgrades may pass access_token in
// the query instead.
func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" && strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return r.URL.Query().Get("access_token")
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
