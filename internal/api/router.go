package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Listener names used as metric labels.
const (
	ListenerUpload = "upload"
	ListenerQuery  = "query"
)

func baseRouter(listener string) chi.Router {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(instrument(listener))
	return r
}

// UploadRouter builds the router of the upload listener.
func (h *Handler) UploadRouter() http.Handler {
	r := baseRouter(ListenerUpload)

	r.Get("/api/health", h.Health)

	r.Group(func(r chi.Router) {
		if h.cfg.RateLimit > 0 {
			r.Use(rateLimit(h.cfg.RateLimit))
		}
		if h.cfg.APIKey != "" {
			r.Use(requireAPIKey(h.cfg.APIKey))
		}
		r.Post("/api/call-upload", h.CallUpload)
	})

	return r
}

// QueryRouter builds the router of the dashboard listener.
func (h *Handler) QueryRouter() http.Handler {
	r := baseRouter(ListenerQuery)
	r.Use(corsHandler(h.cfg.CORSOrigins))

	r.Route("/api", func(r chi.Router) {
		r.Get("/stats", h.Stats)
		r.Get("/stats/hourly", h.Hourly)
		r.Get("/stats/talkgroups", h.Talkgroups)
		r.Get("/config", h.Config)
		r.Get("/health", h.Health)
	})

	r.Handle("/metrics", promhttp.Handler())

	if h.cfg.PublicDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(h.cfg.PublicDir)))
	}

	return r
}
