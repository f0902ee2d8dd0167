package rest

import (
	"net/http"

	"github.com/heartmarshall/qms-backend/internal/transport/middleware"
)

// Routes holds the handlers mounted by NewRouter.
type Routes struct {
	Health    *HealthHandler
	Processes *ProcessHandler
	Records   *RecordHandler
	Board     *BoardHandler

	// Metrics is served at MetricsPath when set.
	Metrics     http.Handler
	MetricsPath string

	// API wraps every /api route, typically tenant checks, rate limiting
	// and per-request loaders.
	API middleware.Middleware
}

// NewRouter registers all endpoints on a new mux.
func NewRouter(rt Routes) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /live", rt.Health.Live)
	mux.HandleFunc("GET /ready", rt.Health.Ready)
	mux.HandleFunc("GET /health", rt.Health.Health)
	if rt.Metrics != nil && rt.MetricsPath != "" {
		mux.Handle("GET "+rt.MetricsPath, rt.Metrics)
	}

	api := rt.API
	if api == nil {
		api = middleware.Chain()
	}
	handle := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, api(fn))
	}

	handle("GET /api/processes", rt.Processes.List)
	handle("POST /api/processes", rt.Processes.Create)
	handle("GET /api/processes/{id}", rt.Processes.Get)
	handle("POST /api/processes/{id}/deactivate", rt.Processes.Deactivate)
	handle("PATCH /api/processes/{id}/states/order", rt.Processes.ReorderStates)
	handle("POST /api/processes/{id}/states", rt.Processes.AddState)
	handle("PATCH /api/processes/{id}/states/{stateId}", rt.Processes.UpdateState)
	handle("DELETE /api/processes/{id}/states/{stateId}", rt.Processes.DeleteState)
	handle("PUT /api/processes/{id}/fields/{name}", rt.Processes.DefineField)
	handle("GET /api/processes/{id}/states/{stateId}/records", rt.Records.ListByState)
	handle("GET /api/processes/{id}/board", rt.Board.Board)
	handle("GET /api/processes/{id}/events", rt.Board.Events)

	handle("POST /api/records", rt.Records.Create)
	handle("GET /api/records/{id}", rt.Records.Get)
	handle("PATCH /api/records/{id}", rt.Records.Update)
	handle("DELETE /api/records/{id}", rt.Records.Archive)
	handle("PATCH /api/records/{id}/move", rt.Records.Move)
	handle("GET /api/records/{id}/children", rt.Records.Children)
	handle("GET /api/records/{id}/history", rt.Records.History)

	return mux
}
