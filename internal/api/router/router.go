package router

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	gorillaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/wonny/stockanalyzer/internal/api/handlers"
	"github.com/wonny/stockanalyzer/internal/api/middleware"
	"github.com/wonny/stockanalyzer/internal/domain/stock"
)

// requestTimeout bounds a single handler
const requestTimeout = 60 * time.Second

// Config holds router configuration
type Config struct {
	Repository     stock.Repository
	Version        string
	AllowedOrigins []string
	AccessLogger   *zerolog.Logger
	Cache          handlers.CacheReporter // optional, shown on /health/detailed
}

// NewRouter creates the stocks service HTTP handler
func NewRouter(cfg Config) http.Handler {
	r := mux.NewRouter()
	r.UseEncodedPath()

	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logging(middleware.LoggingConfig{
		AccessLogger: cfg.AccessLogger,
		SkipPaths:    []string{"/health"},
	}))
	r.Use(middleware.Recovery)
	r.Use(chimw.Timeout(requestTimeout))

	health := handlers.NewHealthHandler(cfg.Version, cfg.Cache)
	r.HandleFunc("/health", health.Health).Methods(http.MethodGet)
	r.HandleFunc("/health/detailed", health.Detailed).Methods(http.MethodGet)

	stocks := handlers.NewStocksHandler(cfg.Repository)
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/stocks/{ticker}", stocks.GetByTicker).Methods(http.MethodGet)

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	return gorillaHandlers.CORS(
		gorillaHandlers.AllowedOrigins(origins),
		gorillaHandlers.AllowedMethods([]string{http.MethodGet, http.MethodOptions}),
		gorillaHandlers.AllowedHeaders([]string{"Accept", "Content-Type", middleware.RequestIDHeader}),
		gorillaHandlers.ExposedHeaders([]string{middleware.RequestIDHeader}),
	)(r)
}
