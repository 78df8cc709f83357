package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/trogers1052/portfolio-tracker/internal/logger"
)

// SetupRoutes configures all API routes
func SetupRoutes(handler *Handler, log zerolog.Logger) *mux.Router {
	r := mux.NewRouter()
	r.Use(requestLogger(log))

	// Health check
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()

	// Portfolio routes
	api.HandleFunc("/portfolios", handler.GetPortfolios).Methods("GET")
	api.HandleFunc("/portfolios", handler.CreatePortfolio).Methods("POST")
	api.HandleFunc("/portfolios/{id}", handler.GetPortfolio).Methods("GET")
	api.HandleFunc("/portfolios/{id}", handler.UpdatePortfolio).Methods("PUT")
	api.HandleFunc("/portfolios/{id}", handler.DeletePortfolio).Methods("DELETE")

	// Holding routes
	api.HandleFunc("/portfolios/{id}/holdings", handler.GetHoldings).Methods("GET")
	api.HandleFunc("/portfolios/{id}/holdings", handler.CreateHolding).Methods("POST")
	api.HandleFunc("/holdings/{id}", handler.GetHolding).Methods("GET")
	api.HandleFunc("/holdings/{id}", handler.UpdateHolding).Methods("PUT")
	api.HandleFunc("/holdings/{id}", handler.DeleteHolding).Methods("DELETE")

	// Transaction routes
	api.HandleFunc("/holdings/{id}/transactions", handler.GetTransactions).Methods("GET")
	api.HandleFunc("/holdings/{id}/transactions", handler.CreateTransaction).Methods("POST")
	api.HandleFunc("/transactions/{id}", handler.UpdateTransaction).Methods("PUT")
	api.HandleFunc("/transactions/{id}", handler.DeleteTransaction).Methods("DELETE")

	// Valuation and widget routes
	api.HandleFunc("/refresh", handler.Refresh).Methods("POST")
	api.HandleFunc("/widget/latest", handler.LatestSnapshot).Methods("GET")
	api.HandleFunc("/widget/top-holdings", handler.TopHoldings).Methods("GET")
	api.HandleFunc("/snapshots", handler.SnapshotRange).Methods("GET")
	api.HandleFunc("/snapshots/{date}", handler.SnapshotOn).Methods("GET")
	api.HandleFunc("/stats", handler.Stats).Methods("GET")
	api.HandleFunc("/quota", handler.Quota).Methods("GET")

	api.HandleFunc("/quotes", handler.PruneQuotes).Methods("DELETE")
	api.HandleFunc("/data", handler.ResetData).Methods("DELETE")

	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// requestLogger puts log on every request context and logs each response
func requestLogger(log zerolog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(logger.WithContext(r.Context(), log)))
			log.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rec.status).
				Dur("elapsed", time.Since(start)).
				Msg("request")
		})
	}
}
