// Package server exposes a read-only JSON view of a store and its metrics over HTTP.
package server

import (
	"net/http"

	"github.com/maruel/recdb/internal/metrics"
	"github.com/maruel/recdb/internal/server/handlers"
	"github.com/maruel/recdb/internal/store"
)

// NewRouter creates and configures the HTTP router. m may be nil.
func NewRouter(st *store.Store, m *metrics.Metrics) http.Handler {
	mux := http.NewServeMux()
	h := handlers.NewRecordHandler(st)

	mux.Handle("GET /api/health", Wrap(h.Health))
	mux.Handle("GET /api/sources", Wrap(h.ListSources))
	mux.Handle("GET /api/sources/{source}/records", Wrap(h.ListRecords))
	mux.Handle("GET /api/sources/{source}/records/{key}", Wrap(h.GetRecord))
	mux.Handle("GET /api/sources/{source}/schema", Wrap(h.Schema))
	mux.Handle("GET /api/sources/{source}/fields/{field}/options", Wrap(h.Options))
	mux.Handle("GET /api/sources/{source}/fields/{field}/resolve", Wrap(h.Resolve))
	mux.Handle("GET /api/dashboard", Wrap(h.Dashboard))
	if m != nil {
		mux.Handle("GET /metrics", m.Handler())
	}
	return LogRequests(mux)
}
