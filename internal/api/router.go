package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/vantage/backend/internal/api/handlers"
	"github.com/wonny/vantage/backend/pkg/logger"
)

// NewRouter creates and configures the HTTP router.
func NewRouter(scanHandler *handlers.ScanHandler, positionHandler *handlers.PositionHandler, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	// API v1
	api := r.PathPrefix("/api").Subrouter()

	// Scan endpoints
	api.HandleFunc("/scan", scanHandler.Submit).Methods("POST")
	api.HandleFunc("/scans", scanHandler.List).Methods("GET")
	api.HandleFunc("/scan/history/{ticker}", scanHandler.History).Methods("GET")
	api.HandleFunc("/scan/{id}", scanHandler.Poll).Methods("GET")
	api.HandleFunc("/scan/{id}", scanHandler.Cancel).Methods("DELETE")
	api.HandleFunc("/scan/{id}/stream", scanHandler.Stream).Methods("GET")

	// Position endpoints
	api.HandleFunc("/positions", positionHandler.List).Methods("GET")
	api.HandleFunc("/positions", positionHandler.Add).Methods("POST")
	api.HandleFunc("/positions/signals", positionHandler.RecentAssessments).Methods("GET")
	api.HandleFunc("/positions/check", positionHandler.CheckNow).Methods("POST")
	api.HandleFunc("/positions/{ticker}", positionHandler.Remove).Methods("DELETE")

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "vantage-api",
	})
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
