package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/labfolio/backend/internal/api/handlers"
	"github.com/wonny/labfolio/backend/pkg/logger"
)

// Pinger reports backing store liveness
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies maps a dependency name to its health check; a nil check reports "disabled"
type Dependencies map[string]Pinger

// Handlers groups the endpoint handlers mounted by NewRouter
type Handlers struct {
	Factors    *handlers.FactorHandler
	Portfolios *handlers.PortfolioHandler
	Analysis   *handlers.AnalysisHandler
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: routes are registered in this function only
func NewRouter(h Handlers, deps Dependencies, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler(deps)).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Factor library
	api.HandleFunc("/factors", h.Factors.List).Methods("GET")
	api.HandleFunc("/factors/{id}", h.Factors.Get).Methods("GET")

	// Portfolios
	api.HandleFunc("/portfolios", h.Portfolios.List).Methods("GET")
	api.HandleFunc("/portfolios/{id}/holdings", h.Portfolios.GetHoldings).Methods("GET")

	// Analysis
	api.HandleFunc("/analysis/validate", h.Analysis.Validate).Methods("POST")
	api.HandleFunc("/analysis/factor-model", h.Analysis.FactorModel).Methods("POST")
	api.HandleFunc("/models", h.Analysis.Models).Methods("GET")

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler pings every dependency; any failure degrades the service
func healthCheckHandler(deps Dependencies) http.HandlerFunc {
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status, code := "ok", http.StatusOK
		checks := make(map[string]string, len(names))
		for _, name := range names {
			check := deps[name]
			switch {
			case check == nil:
				checks[name] = "disabled"
			case check.Ping(ctx) != nil:
				checks[name] = "unreachable"
				status, code = "degraded", http.StatusServiceUnavailable
			default:
				checks[name] = "ok"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":       status,
			"service":      "labfolio-api",
			"dependencies": checks,
		})
	}
}

// loggingMiddleware logs HTTP requests
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

// recoveryMiddleware recovers from panics
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
