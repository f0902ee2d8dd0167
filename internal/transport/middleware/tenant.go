package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/heartmarshall/qms-backend/pkg/ctxutil"
)

// Tenant requires an authenticated caller and checks the organization
// header against the tenant carried by the token. A missing header means
// the token's tenant. Must run after Auth.
func Tenant(header string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := ctxutil.UserIDFromCtx(r.Context()); !ok {
				writeError(w, http.StatusUnauthorized, "Unauthorized", "unauthorized")
				return
			}
			tenantID, ok := ctxutil.TenantIDFromCtx(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "Unauthorized", "unauthorized")
				return
			}

			raw := strings.TrimSpace(r.Header.Get(header))
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}
			requested, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "BadRequest", "invalid organization id")
				return
			}
			if requested != tenantID {
				writeError(w, http.StatusForbidden, "Forbidden", "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
