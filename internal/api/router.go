package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/indexforge/backend/internal/api/handlers"
	"github.com/indexforge/backend/pkg/logger"
)

// RouterConfig carries the handlers and options the router wires up.
type RouterConfig struct {
	Indexes    *handlers.IndexHandler
	Securities *handlers.SecurityHandler
	Metrics    http.Handler // optional; mounted at /metrics
}

// NewRouter creates and configures the HTTP router.
func NewRouter(cfg RouterConfig, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	api := r.PathPrefix("/api").Subrouter()

	// Index definition CRUD
	api.HandleFunc("/indexes", cfg.Indexes.List).Methods("GET")
	api.HandleFunc("/indexes", cfg.Indexes.Create).Methods("POST")
	api.HandleFunc("/indexes/{id:[0-9]+}", cfg.Indexes.Get).Methods("GET")
	api.HandleFunc("/indexes/{id:[0-9]+}", cfg.Indexes.Update).Methods("PUT")
	api.HandleFunc("/indexes/{id:[0-9]+}", cfg.Indexes.Delete).Methods("DELETE")

	// Engine operations
	api.HandleFunc("/indexes/{id:[0-9]+}/calculate", cfg.Indexes.Calculate).Methods("POST")
	api.HandleFunc("/indexes/{id:[0-9]+}/rebalance", cfg.Indexes.Rebalance).Methods("POST")
	api.HandleFunc("/indexes/{id:[0-9]+}/backtest", cfg.Indexes.Backtest).Methods("POST")

	// Read endpoints
	api.HandleFunc("/indexes/{id:[0-9]+}/performance", cfg.Indexes.Performance).Methods("GET")
	api.HandleFunc("/indexes/{id:[0-9]+}/values", cfg.Indexes.Values).Methods("GET")
	api.HandleFunc("/indexes/{id:[0-9]+}/constituents", cfg.Indexes.Constituents).Methods("GET")

	// Security catalog
	api.HandleFunc("/securities", cfg.Securities.List).Methods("GET")
	api.HandleFunc("/securities/{symbol}", cfg.Securities.Get).Methods("GET")

	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status.
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "indexforge-api",
	})
}

// MetricsHandler returns the default promhttp handler.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// loggingMiddleware logs HTTP requests.
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics.
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
