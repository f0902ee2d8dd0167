package middleware

import (
	"context"
	"net/http"

	"github.com/heartmarshall/qms-backend/internal/domain"
	"github.com/heartmarshall/qms-backend/pkg/ctxutil"
)

// RequireAdmin returns domain.ErrForbidden if the context user is not admin.
// Use in REST handlers; AdminOnly is the route-level form.
func RequireAdmin(ctx context.Context) error {
	if !ctxutil.IsAdminCtx(ctx) {
		return domain.ErrForbidden
	}
	return nil
}

// AdminOnly rejects callers without the admin role.
func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := RequireAdmin(r.Context()); err != nil {
			writeError(w, http.StatusForbidden, "Forbidden", "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}
