package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"gamestore/internal/handlers"
	"gamestore/internal/metrics"
	"gamestore/internal/middleware"
)

const (
	requestTimeout = 15 * time.Second
	uploadTimeout  = 60 * time.Second
	maxJSONBody    = 64 * 1024
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Games  *handlers.GamesHandler
	SEO    *handlers.SEOHandler
	Admin  *handlers.AdminHandler
	Upload *handlers.UploadHandler
}

func SetupRouter(r *chi.Mux, baseLogger *zap.Logger, h Handlers) {
	r.Use(metrics.Middleware)

	// base middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)

	r.Use(middleware.LoggingContext(baseLogger))
	r.Use(middleware.Recoverer())

	// crawler documents
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))
		r.Get("/sitemap.xml", h.SEO.Sitemap)
		r.Get("/robots.txt", h.SEO.Robots)
		r.Get("/ads.txt", h.SEO.Ads)
	})

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))
			r.Use(middleware.MaxBodySize(maxJSONBody))

			r.Route("/games", func(r chi.Router) {
				r.Get("/", h.Games.List)
				r.Get("/popular", h.Games.Popular)
				r.Get("/latest", h.Games.Latest)
				r.Get("/search", h.Games.Search)
				r.Get("/stats", h.Games.Stats)
				r.Get("/{id}", h.Games.Detail)
				r.Post("/{id}/view", h.Games.RecordView)
			})
			r.Get("/categories", h.Games.Categories)

			r.Post("/admin-login", h.Admin.Login)
			r.Get("/admin-login", h.Admin.IsAdmin)

			r.Route("/admin", func(r chi.Router) {
				r.Use(h.Admin.RequireToken)
				r.Get("/cache", h.Admin.CacheStats)
				r.Delete("/cache", h.Admin.ClearCache)
				r.Post("/games/validate", h.Games.Validate)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(uploadTimeout))
			r.Use(middleware.MaxBodySize(handlers.MaxUploadBody))
			r.Use(h.Admin.RequireToken)
			r.Post("/upload-image", h.Upload.UploadImage)
		})
	})

	// health check
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Handle("/metrics", metrics.Handler())
}
