package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"aieditor/internal/http/handlers"
	"aieditor/internal/middleware"
)

// NewRouter mounts the editor API on a chi router.
func NewRouter(app *handlers.App) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
	)
	if app.Config != nil {
		r.Use(middleware.CORS(app.Config.CORSAllowedOrigins))
	}
	r.Use(middleware.I18N("en", app.CountryLookup))

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/openapi.json", app.OpenAPIJSON)
	r.Get("/v1/docs", app.OpenAPIDocs)
	if app.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", app.Metrics)
	}
	if fs := staticFiles(app); fs != nil {
		r.Handle("/static/*", http.StripPrefix("/static/", fs))
	}

	perMinute := 30
	if app.Config != nil && app.Config.RateLimitPerMin > 0 {
		perMinute = app.Config.RateLimitPerMin
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(perMinute))

		// The gate reports not_signed_in itself, so job routes admit anonymous callers.
		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuthJWT(app.JWTSecret))
			r.Use(chimw.Timeout(30 * time.Second))
			r.Post("/jobs/upscale", app.JobsUpscale)
			r.Post("/jobs/fill", app.JobsFill)
			r.Post("/jobs/expand", app.JobsExpand)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthJWT(app.JWTSecret))
			r.Get("/jobs/{id}", app.JobStatus)
			r.Delete("/jobs/{id}", app.JobAbandon)
			r.Get("/predictions/{id}", app.PredictionStatus)
			r.Post("/uploads", app.Upload)
			r.Get("/profile", app.ProfileGet)
			r.Post("/profile", app.ProfileCreate)
			r.Get("/images", app.ImagesList)
			r.Post("/images", app.ImagesRecord)
			r.Post("/transfers", app.TransferCreate)
			r.Get("/transfers/{token}", app.TransferClaim)
		})
	})

	return r
}

func staticFiles(app *handlers.App) http.Handler {
	if app.Config == nil || app.Config.StorageDriver != "filesystem" || strings.TrimSpace(app.Config.StoragePath) == "" {
		return nil
	}
	return http.FileServer(http.Dir(app.Config.StoragePath))
}
