package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/trogers1052/portfolio-tracker/internal/currency"
	"github.com/trogers1052/portfolio-tracker/internal/logger"
	"github.com/trogers1052/portfolio-tracker/internal/models"
	"github.com/trogers1052/portfolio-tracker/internal/quota"
	"github.com/trogers1052/portfolio-tracker/internal/snapshot"
)

const (
	defaultTopHoldings = 5
	maxTopHoldings     = 50
)

// snapshotView is a stored snapshot with its breakdown decoded
type snapshotView struct {
	*models.DailySnapshot
	Breakdown []models.AssetBreakdown `json:"breakdown"`
}

func newSnapshotView(s *models.DailySnapshot) snapshotView {
	return snapshotView{DailySnapshot: s, Breakdown: snapshot.Breakdown(s)}
}

type latestResponse struct {
	Snapshot snapshotView      `json:"snapshot"`
	Display  map[string]string `json:"display"`
}

type topHolding struct {
	*models.Holding
	ReportingCurrency string `json:"reporting_currency"`
	Display           string `json:"display"`
}

// parseScope accepts "global" (or empty), "portfolio:<id>" or a bare id
func parseScope(s string) (models.Scope, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "global" {
		return models.GlobalScope, nil
	}
	s = strings.TrimPrefix(s, "portfolio:")
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return models.Scope{}, badRequest("invalid scope")
	}
	return models.PortfolioScope(id), nil
}

func parseDate(s string, fallback time.Time) (time.Time, error) {
	if s == "" {
		return models.Day(fallback), nil
	}
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		return time.Time{}, badRequest("dates must be YYYY-MM-DD")
	}
	return t, nil
}

// LatestSnapshot handles GET /widget/latest
func (h *Handler) LatestSnapshot(w http.ResponseWriter, r *http.Request) {
	scope, err := parseScope(r.URL.Query().Get("scope"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	snap, err := h.store.GetLatestSnapshot(scope)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, latestResponse{
		Snapshot: newSnapshotView(snap),
		Display: map[string]string{
			"total_value":    currency.Format(snap.TotalValue, snap.Currency),
			"total_cost":     currency.Format(snap.TotalCost, snap.Currency),
			"daily_pnl":      currency.Format(snap.DailyPnL, snap.Currency),
			"cumulative_pnl": currency.Format(snap.CumulativePnL, snap.Currency),
		},
	})
}

// SnapshotRange handles GET /snapshots?scope=&from=&to=. The range defaults
// to the 30 days ending today.
func (h *Handler) SnapshotRange(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	scope, err := parseScope(q.Get("scope"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	to, err := parseDate(q.Get("to"), h.now())
	if err != nil {
		respondError(w, r, err)
		return
	}
	from, err := parseDate(q.Get("from"), to.AddDate(0, 0, -29))
	if err != nil {
		respondError(w, r, err)
		return
	}
	if from.After(to) {
		respondError(w, r, badRequest("from must not be after to"))
		return
	}

	snaps, err := h.store.GetSnapshotRange(scope, from, to)
	if err != nil {
		respondError(w, r, err)
		return
	}
	views := make([]snapshotView, 0, len(snaps))
	for _, s := range snaps {
		views = append(views, newSnapshotView(s))
	}
	respondJSON(w, http.StatusOK, views)
}

// SnapshotOn handles GET /snapshots/{date}?scope=
func (h *Handler) SnapshotOn(w http.ResponseWriter, r *http.Request) {
	scope, err := parseScope(r.URL.Query().Get("scope"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	date, err := time.Parse(models.DateLayout, mux.Vars(r)["date"])
	if err != nil {
		respondError(w, r, badRequest("dates must be YYYY-MM-DD"))
		return
	}
	snap, err := h.store.GetSnapshot(scope, date)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newSnapshotView(snap))
}

// PruneQuotes handles DELETE /quotes?before=YYYY-MM-DD. Quotes dated on or
// after before are kept, so the latest quote of an active symbol survives.
func (h *Handler) PruneQuotes(w http.ResponseWriter, r *http.Request) {
	s := r.URL.Query().Get("before")
	if s == "" {
		respondError(w, r, badRequest("before is required"))
		return
	}
	before, err := time.Parse(models.DateLayout, s)
	if err != nil {
		respondError(w, r, badRequest("dates must be YYYY-MM-DD"))
		return
	}
	if !before.Before(models.Day(h.now())) {
		respondError(w, r, badRequest("before must be in the past"))
		return
	}
	n, err := h.store.DeleteQuotesOlderThan(before)
	if err != nil {
		respondError(w, r, err)
		return
	}
	log := logger.FromContext(r.Context())
	log.Info().Int64("deleted", n).Str("before", s).Msg("pruned quotes")
	respondJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

// TopHoldings handles GET /widget/top-holdings?limit=N
func (h *Handler) TopHoldings(w http.ResponseWriter, r *http.Request) {
	limit := defaultTopHoldings
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			respondError(w, r, badRequest("limit must be a positive integer"))
			return
		}
		limit = n
	}
	if limit > maxTopHoldings {
		limit = maxTopHoldings
	}

	holdings, err := h.store.GetTopHoldings(limit)
	if err != nil {
		respondError(w, r, err)
		return
	}
	reporting := h.refresher.ReportingCurrency()
	out := make([]topHolding, 0, len(holdings))
	for _, hd := range holdings {
		out = append(out, topHolding{
			Holding:           hd,
			ReportingCurrency: reporting,
			Display:           currency.Format(hd.ReportingValue, reporting),
		})
	}
	respondJSON(w, http.StatusOK, out)
}

// Stats handles GET /stats?scope=&period=&date=
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	scope, err := parseScope(q.Get("scope"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	period := snapshot.PeriodMonth
	if s := q.Get("period"); s != "" {
		if period, err = snapshot.ParsePeriod(s); err != nil {
			respondError(w, r, badRequest(err.Error()))
			return
		}
	}
	date, err := parseDate(q.Get("date"), h.now())
	if err != nil {
		respondError(w, r, err)
		return
	}

	from, to := period.Range(date)
	ptrs, err := h.store.GetSnapshotRange(scope, from, to)
	if err != nil {
		respondError(w, r, err)
		return
	}
	snaps := make([]models.DailySnapshot, len(ptrs))
	for i, s := range ptrs {
		snaps[i] = *s
	}

	respondJSON(w, http.StatusOK, struct {
		Scope  string         `json:"scope"`
		Period snapshot.Period `json:"period"`
		From   string         `json:"from"`
		To     string         `json:"to"`
		snapshot.Stats
	}{
		Scope:  scope.Key(),
		Period: period,
		From:   from.Format(models.DateLayout),
		To:     to.Format(models.DateLayout),
		Stats:  snapshot.Summarize(snaps),
	})
}

// Quota handles GET /quota?year=
func (h *Handler) Quota(w http.ResponseWriter, r *http.Request) {
	year := h.now().Year()
	if s := r.URL.Query().Get("year"); s != "" {
		y, err := strconv.Atoi(s)
		if err != nil || y < 1900 || y > 9999 {
			respondError(w, r, badRequest("invalid year"))
			return
		}
		year = y
	}
	portfolios, err := h.store.LoadPortfolios()
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, quota.Compute(portfolios, year, h.limits))
}

// Refresh handles POST /refresh
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	result, err := h.refresher.Refresh(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}
