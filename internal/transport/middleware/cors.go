package middleware

import (
	"net/http"
	"slices"
	"strconv"

	"github.com/heartmarshall/qms-backend/internal/config"
)

// CORS answers preflights for allowed origins and decorates their actual
// requests. Board clients read X-Request-Id to correlate rejected moves.
func CORS(cfg config.CORSConfig) Middleware {
	origins := cfg.Origins()
	allowed := func(origin string) bool {
		return slices.Contains(origins, "*") || slices.Contains(origins, origin)
	}
	maxAge := strconv.Itoa(cfg.MaxAge)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""

			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Add("Vary", "Origin")
			if !allowed(origin) {
				if preflight {
					writeError(w, http.StatusForbidden, "Forbidden", "origin not allowed")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Expose-Headers", "X-Request-Id")
			if cfg.AllowCredentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}

			if preflight {
				h.Set("Access-Control-Allow-Methods", cfg.AllowedMethods)
				h.Set("Access-Control-Allow-Headers", cfg.AllowedHeaders)
				h.Set("Access-Control-Max-Age", maxAge)
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
