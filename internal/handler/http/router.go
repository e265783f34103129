package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/slimsayari/woocommerce-typesense-search/internal/index"
	"github.com/slimsayari/woocommerce-typesense-search/internal/search"
	"github.com/slimsayari/woocommerce-typesense-search/pkg/health"
	"github.com/slimsayari/woocommerce-typesense-search/pkg/middleware"
)

// NewRouter creates a chi router with all search service routes registered.
func NewRouter(
	searchService *search.Service,
	indexer *index.Indexer,
	healthHandler *health.Handler,
	environment string,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.Environment = environment

	// Global middleware
	r.Use(middleware.CORS(corsCfg))
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("search"))
	r.Use(middleware.Tracing("search"))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	searchHandler := NewSearchHandler(searchService, logger)
	filterHandler := NewFilterHandler(searchService, logger)
	indexHandler := NewIndexHandler(indexer, logger)

	r.Route("/api/v1/search", func(r chi.Router) {
		r.Get("/", searchHandler.Search)
		r.With(middleware.CacheControl(30)).Get("/autocomplete", searchHandler.Autocomplete)
		r.Post("/filter", filterHandler.Filter)

		r.Group(func(r chi.Router) {
			r.Use(ContentTypeJSON)
			r.Post("/image", searchHandler.ImageSearch)
			r.Post("/intent", searchHandler.IntentSearch)
		})
	})

	r.Route("/api/v1/index", func(r chi.Router) {
		r.Post("/reindex", indexHandler.Reindex)
		r.Delete("/products/{id}", indexHandler.Delete)
		r.Post("/products/{id}", indexHandler.Upsert)

		r.Group(func(r chi.Router) {
			r.Use(ContentTypeJSON)
			r.Post("/bulk", indexHandler.Bulk)
		})
	})

	return r
}
