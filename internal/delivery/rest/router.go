// Path: internal/delivery/rest/router.go
package rest

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options are the parts the router is assembled from.
type Options struct {
	Sessions sessionService
	// UI serves the HTML pages under "/". Optional.
	UI http.Handler
	// WaitTimeout bounds how long a mutating API call waits for its fetch.
	WaitTimeout time.Duration
}

// NewRouter builds the HTTP handler: JSON API, HTML pages, metrics and health.
func NewRouter(opts Options) http.Handler {
	root := chi.NewRouter()
	root.Use(
		middleware.Recoverer,
		RequestID,
		Logging,
	)

	root.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	root.Handle("/metrics", promhttp.Handler())

	h := NewSessionHandlers(opts.Sessions, opts.WaitTimeout)
	root.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", h.CreateSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Delete("/", h.DeleteSession)
			r.Get("/rows", h.GetRows)
			r.Post("/keyword", h.SubmitKeyword)
			r.Post("/page-size", h.SetPageSize)
			r.Post("/sort", h.SetSort)
			r.Post("/exact-match", h.SetExactMatch)
			r.Post("/date-range", h.ApplyDateRange)
			r.Delete("/date-range", h.ClearDateRange)
			r.Post("/next", h.Next)
			r.Post("/prev", h.Prev)
			r.Post("/refresh", h.Refresh)
		})
	})

	if opts.UI != nil {
		root.Mount("/", opts.UI)
	}
	return root
}
