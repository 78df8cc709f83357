package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/trogers1052/portfolio-tracker/internal/currency"
	"github.com/trogers1052/portfolio-tracker/internal/database"
	"github.com/trogers1052/portfolio-tracker/internal/ledger"
	"github.com/trogers1052/portfolio-tracker/internal/logger"
	"github.com/trogers1052/portfolio-tracker/internal/models"
	"github.com/trogers1052/portfolio-tracker/internal/quota"
	"github.com/trogers1052/portfolio-tracker/internal/refresh"
)

// Store is the persistence behind the API. The transaction writers check
// the holding's ledger and write in one atomic step, returning
// *ledger.NegativeQuantityError or ledger.ErrInvalidEntry on rejection.
type Store interface {
	Ping() error

	GetAllPortfolios() ([]*models.Portfolio, error)
	GetPortfolioByID(id int64) (*models.Portfolio, error)
	CreatePortfolio(p *models.Portfolio) error
	UpdatePortfolio(p *models.Portfolio) error
	DeletePortfolio(id int64) error
	LoadPortfolios() ([]models.Portfolio, error)

	GetHoldingsByPortfolio(portfolioID int64) ([]*models.Holding, error)
	GetHoldingByID(id int64) (*models.Holding, error)
	GetTopHoldings(limit int) ([]*models.Holding, error)
	CreateHolding(h *models.Holding) error
	UpdateHolding(h *models.Holding) error
	DeleteHolding(id int64) error

	GetTransactionsByHolding(holdingID int64) ([]*models.Transaction, error)
	GetTransactionByID(id int64) (*models.Transaction, error)
	CreateTransaction(t *models.Transaction) error
	UpdateTransaction(t *models.Transaction) error
	DeleteTransaction(id int64) error

	GetSnapshot(scope models.Scope, date time.Time) (*models.DailySnapshot, error)
	GetLatestSnapshot(scope models.Scope) (*models.DailySnapshot, error)
	GetSnapshotRange(scope models.Scope, from, to time.Time) ([]*models.DailySnapshot, error)

	DeleteQuotesOlderThan(date time.Time) (int64, error)
	ResetAllData() error
}

// Refresher runs the valuation pipeline
type Refresher interface {
	Refresh(ctx context.Context) (*refresh.Result, error)
	ReportingCurrency() string
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	store     Store
	refresher Refresher
	limits    quota.Limits
	now       func() time.Time
}

// NewHandler creates a new Handler
func NewHandler(store Store, refresher Refresher, limits quota.Limits) *Handler {
	return &Handler{
		store:     store,
		refresher: refresher,
		limits:    limits,
		now:       time.Now,
	}
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ResetData handles DELETE /data
func (h *Handler) ResetData(w http.ResponseWriter, r *http.Request) {
	if err := h.store.ResetAllData(); err != nil {
		respondError(w, r, err)
		return
	}
	log := logger.FromContext(r.Context())
	log.Warn().Msg("all data reset")
	w.WriteHeader(http.StatusNoContent)
}

// errorStatus maps domain errors onto HTTP status codes
func errorStatus(err error) int {
	switch {
	case database.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, models.ErrAccountTypeLocked),
		errors.Is(err, models.ErrBaseCurrencyLocked),
		errors.Is(err, models.ErrNISACurrency),
		database.IsUniqueViolation(err):
		return http.StatusConflict
	case errors.As(err, new(*ledger.NegativeQuantityError)):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrInvalidEntry),
		errors.Is(err, models.ErrUnknownEnum),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, currency.ErrMissingRate):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

var errBadRequest = errors.New("bad request")

func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	respondJSON(w, status, map[string]string{"error": err.Error()})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest("invalid request body: " + err.Error())
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("invalid " + name)
	}
	return id, nil
}

type requestError struct {
	msg string
}

func (e *requestError) Error() string        { return e.msg }
func (e *requestError) Is(target error) bool { return target == errBadRequest }

func badRequest(msg string) error {
	return &requestError{msg: msg}
}
