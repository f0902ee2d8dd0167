package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/heartmarshall/qms-backend/internal/domain"
	"github.com/heartmarshall/qms-backend/pkg/ctxutil"
)

const maxBodyBytes = 1 << 20

// Reasons reported for failures that are not move rejections.
const (
	reasonValidation   = "ValidationError"
	reasonNotFound     = "NotFound"
	reasonForbidden    = "Forbidden"
	reasonUnauthorized = "Unauthorized"
	reasonTimeout      = "Timeout"
	reasonStorage      = "StorageError"
	reasonBadRequest   = "BadRequest"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	OK     bool                `json:"ok"`
	Reason string              `json:"reason,omitempty"`
	Error  string              `json:"error"`
	Fields []string            `json:"fields,omitempty"`
	Errors []domain.FieldError `json:"errors,omitempty"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Reason: reasonFor(status), Error: message})
}

func reasonFor(status int) string {
	switch status {
	case http.StatusBadRequest:
		return reasonBadRequest
	case http.StatusUnauthorized:
		return reasonUnauthorized
	case http.StatusForbidden:
		return reasonForbidden
	case http.StatusNotFound:
		return reasonNotFound
	case http.StatusConflict:
		return string(domain.ReasonConflict)
	case http.StatusUnprocessableEntity:
		return reasonValidation
	}
	return ""
}

// handleError maps a service error to a response. Absent and foreign-tenant
// entities share the not-found representation.
func handleError(log *slog.Logger, w http.ResponseWriter, r *http.Request, err error) {
	var (
		te *domain.TransitionError
		ve *domain.ValidationError
	)
	switch {
	case errors.As(err, &te):
		writeRejection(w, te)
	case errors.As(err, &ve):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Reason: reasonValidation,
			Error:  ve.Error(),
			Errors: ve.Errors,
		})
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		log.WarnContext(r.Context(), "request timed out", slog.String("error", err.Error()))
		writeJSON(w, http.StatusGatewayTimeout, ErrorResponse{Reason: reasonTimeout, Error: "outcome unknown, reload before retrying"})
	default:
		log.ErrorContext(r.Context(), "internal error", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Reason: reasonStorage, Error: "internal server error"})
	}
}

func writeRejection(w http.ResponseWriter, te *domain.TransitionError) {
	status := http.StatusUnprocessableEntity
	switch te.Reason {
	case domain.ReasonNoSuchRecord:
		writeError(w, http.StatusNotFound, "not found")
		return
	case domain.ReasonConflict:
		status = http.StatusConflict
	}
	writeJSON(w, status, ErrorResponse{
		Reason: string(te.Reason),
		Error:  te.Error(),
		Fields: te.Fields,
	})
}

// decodeJSON reads a single JSON object, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// pathID parses a uuid path value; a malformed id is reported as not found.
func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return uuid.Nil, false
	}
	return id, true
}

// caller returns the tenant and actor placed in the context by the auth
// middleware.
func caller(w http.ResponseWriter, r *http.Request) (tenantID, actorID uuid.UUID, ok bool) {
	tenantID, tok := ctxutil.TenantIDFromCtx(r.Context())
	actorID, aok := ctxutil.UserIDFromCtx(r.Context())
	if !tok || !aok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return uuid.Nil, uuid.Nil, false
	}
	return tenantID, actorID, true
}
