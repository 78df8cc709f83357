package snapshot

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/portfolio-tracker/internal/models"
)

// Period is a calendar window for statistics
type Period string

const (
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

// ParsePeriod parses a period name
func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(s)); p {
	case PeriodWeek, PeriodMonth, PeriodYear:
		return p, nil
	}
	return "", fmt.Errorf("%w: period %q", models.ErrUnknownEnum, s)
}

// Range returns the first and last day of the period containing date
func (p Period) Range(date time.Time) (time.Time, time.Time) {
	switch p {
	case PeriodWeek:
		return WeekRange(date)
	case PeriodYear:
		return YearRange(date)
	default:
		return MonthRange(date)
	}
}

// WeekRange returns Monday through Sunday of the week containing date
func WeekRange(date time.Time) (time.Time, time.Time) {
	day := models.Day(date)
	offset := (int(day.Weekday()) + 6) % 7
	start := day.AddDate(0, 0, -offset)
	return start, start.AddDate(0, 0, 6)
}

// MonthRange returns the first and last day of the month containing date
func MonthRange(date time.Time) (time.Time, time.Time) {
	day := models.Day(date)
	start := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, -1)
}

// YearRange returns January 1st and December 31st of the year containing date
func YearRange(date time.Time) (time.Time, time.Time) {
	y := models.Day(date).Year()
	return time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC),
		time.Date(y, time.December, 31, 0, 0, 0, 0, time.UTC)
}

// Stats summarises a sequence of daily snapshots
type Stats struct {
	Days       int                   `json:"days"`
	ProfitDays int                   `json:"profit_days"`
	LossDays   int                   `json:"loss_days"`
	FlatDays   int                   `json:"flat_days"`
	WinRate    float64               `json:"win_rate"`
	TotalPnL   decimal.Decimal       `json:"total_pnl"`
	BestDay    *models.DailySnapshot `json:"best_day,omitempty"`
	WorstDay   *models.DailySnapshot `json:"worst_day,omitempty"`
}

// Summarize counts profit and loss days. Days with exactly zero P&L are
// flat and excluded from the win rate, which is 0 when no day moved.
func Summarize(snaps []models.DailySnapshot) Stats {
	st := Stats{TotalPnL: decimal.Zero}
	for i := range snaps {
		s := &snaps[i]
		st.Days++
		st.TotalPnL = st.TotalPnL.Add(s.DailyPnL)
		switch s.DailyPnL.Sign() {
		case 1:
			st.ProfitDays++
		case -1:
			st.LossDays++
		default:
			st.FlatDays++
		}
		if st.BestDay == nil || s.DailyPnL.GreaterThan(st.BestDay.DailyPnL) {
			st.BestDay = s
		}
		if st.WorstDay == nil || s.DailyPnL.LessThan(st.WorstDay.DailyPnL) {
			st.WorstDay = s
		}
	}
	if decided := st.ProfitDays + st.LossDays; decided > 0 {
		st.WinRate = float64(st.ProfitDays) / float64(decided)
	}
	return st
}

// Filter returns the snapshots dated within [from, to]
func Filter(snaps []models.DailySnapshot, from, to time.Time) []models.DailySnapshot {
	from, to = models.Day(from), models.Day(to)
	var out []models.DailySnapshot
	for _, s := range snaps {
		d := models.Day(s.Date)
		if d.Before(from) || d.After(to) {
			continue
		}
		out = append(out, s)
	}
	return out
}
