// Package api is the HTTP surface of the catalog: routing, JSON handlers and
// the translation of repository errors into status codes.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Skryldev/product-catalog/repo"
	"github.com/Skryldev/product-catalog/telemetry"
)

// maxBodyBytes caps product request bodies.
const maxBodyBytes = 1 << 20

// Options wires the router's dependencies.
type Options struct {
	Repo      repo.ProductRepository
	Readiness *Readiness
	Logger    *slog.Logger
	CORS      CORSOptions
}

// NewRouter builds the full handler tree:
//
//	POST   /products
//	GET    /products?search=
//	GET    /products/{id}
//	PUT    /products/{id}
//	DELETE /products/{id}
//	GET    /healthz  /readyz  /metrics
func NewRouter(opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Readiness == nil {
		opts.Readiness = NewReadiness()
	}
	if len(opts.CORS.AllowedOrigins) == 0 {
		opts.CORS = DefaultCORSOptions()
	}

	h := &Handler{repo: opts.Repo, ready: opts.Readiness}

	r := chi.NewRouter()
	r.Use(telemetry.Middleware())
	r.Use(RequestID)
	r.Use(Logger(opts.Logger))
	r.Use(Recovery)
	r.Use(CORS(opts.CORS))

	r.Get("/healthz", h.Health)
	r.Get("/readyz", h.Ready)
	r.Get("/metrics", telemetry.Handler())

	r.Route("/products", func(r chi.Router) {
		r.Use(RequireReady(opts.Readiness))

		r.With(RequireJSON).Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.With(RequireJSON).Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})

	return r
}
