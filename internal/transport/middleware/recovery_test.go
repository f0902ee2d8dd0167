package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecovery_PassesThrough(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer

	h := Recovery(slog.New(slog.NewTextHandler(&buf, nil)))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/records", nil))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Zero(t, buf.Len())
}

func TestRecovery_PanicBecomesJSON500(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer

	h := Recovery(slog.New(slog.NewTextHandler(&buf, nil)))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("state index out of range")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/records/x/move", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.OK)
	assert.Equal(t, "Internal", body.Reason)

	assert.Contains(t, buf.String(), "panic recovered")
	assert.Contains(t, buf.String(), "state index out of range")
	assert.Contains(t, buf.String(), "/api/records/x/move")
}

func TestRecovery_RepanicsAbort(t *testing.T) {
	t.Parallel()

	h := Recovery(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/board", nil))
	})
}
