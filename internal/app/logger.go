package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/heartmarshall/qms-backend/internal/config"
	"github.com/heartmarshall/qms-backend/pkg/ctxutil"
)

// NewLogger creates the process logger from LogConfig, writing to stderr,
// and installs it as the slog default.
//
// Format "json" is for production; "text" adds source locations for
// development. Records logged with a request context carry its request_id
// and tenant_id.
func NewLogger(cfg config.LogConfig) *slog.Logger {
	logger := newLogger(os.Stderr, cfg)
	slog.SetDefault(logger)
	return logger
}

func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     parseLevel(cfg.Level),
		AddSource: strings.EqualFold(cfg.Format, "text"),
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(contextHandler{handler}).With(slog.String("app", "qms"))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// contextHandler copies request-scoped ids from the context onto records
// that do not already carry them.
type contextHandler struct {
	slog.Handler
}

func (h contextHandler) Handle(ctx context.Context, r slog.Record) error {
	var hasRequest, hasTenant bool
	r.Attrs(func(a slog.Attr) bool {
		switch a.Key {
		case "request_id":
			hasRequest = true
		case "tenant_id":
			hasTenant = true
		}
		return true
	})

	if id := ctxutil.RequestIDFromCtx(ctx); id != "" && !hasRequest {
		r.AddAttrs(slog.String("request_id", id))
	}
	if id, ok := ctxutil.TenantIDFromCtx(ctx); ok && !hasTenant {
		r.AddAttrs(slog.String("tenant_id", id.String()))
	}
	return h.Handler.Handle(ctx, r)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{h.Handler.WithAttrs(attrs)}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{h.Handler.WithGroup(name)}
}
