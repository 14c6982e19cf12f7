// Package stats derives dashboard figures from the locker and session sets.
// Nothing here is stored or cached; every figure is recomputed per read.
package stats

import (
	"context"
	"fmt"
	"time"

	"luggage-locker-backend/internal/apperr"
	"luggage-locker-backend/internal/model"
	"luggage-locker-backend/internal/query"
	"luggage-locker-backend/internal/store"
)

const (
	dateLayout = "2006-01-02"

	// maxRevenueDays bounds a revenue range request.
	maxRevenueDays = 366
)

// DayRevenue is one calendar day of the revenue series.
type DayRevenue struct {
	Date     string `json:"date"`
	Revenue  int64  `json:"revenue"`
	Sessions int    `json:"sessions"`
}

// DashboardStats is the dashboard summary at AsOf.
type DashboardStats struct {
	AsOf               time.Time                `json:"asOf"`
	TotalLockers       int                      `json:"totalLockers"`
	AvailableLockers   int                      `json:"availableLockers"`
	OccupiedLockers    int                      `json:"occupiedLockers"`
	MaintenanceLockers int                      `json:"maintenanceLockers"`
	LockersByType      map[model.LockerType]int `json:"lockersByType"`
	ActiveSessions     int                      `json:"activeSessions"`
	OverdueSessions    int                      `json:"overdueSessions"`
	UtilizationRate    float64                  `json:"utilizationRate"`
	TodayRevenue       int64                    `json:"todayRevenue"`
	TodayCheckIns      int                      `json:"todayCheckIns"`
	RevenueSeries      []DayRevenue             `json:"revenueSeries"`
}

// Options controls the calendar and thresholds used by Compute.
type Options struct {
	Location     *time.Location
	WindowDays   int
	OverdueGrace time.Duration
}

func (o Options) location() *time.Location {
	if o.Location == nil {
		return time.UTC
	}
	return o.Location
}

// Compute derives the dashboard from lockers and sessions as of asOf.
// Revenue is bucketed by the facility-local date of check-in.
func Compute(lockers []model.Locker, sessions []model.Session, asOf time.Time, opts Options) DashboardStats {
	loc := opts.location()
	st := DashboardStats{
		AsOf:          asOf,
		TotalLockers:  len(lockers),
		LockersByType: make(map[model.LockerType]int),
	}

	for _, l := range lockers {
		st.LockersByType[l.Type]++
		switch l.Status {
		case model.LockerAvailable:
			st.AvailableLockers++
		case model.LockerOccupied:
			st.OccupiedLockers++
		case model.LockerMaintenance:
			st.MaintenanceLockers++
		}
	}
	if st.TotalLockers > 0 {
		st.UtilizationRate = float64(st.OccupiedLockers) / float64(st.TotalLockers)
	}

	today := asOf.In(loc).Format(dateLayout)
	for _, s := range sessions {
		if s.Active() {
			st.ActiveSessions++
			if query.IsOverdue(s, asOf, opts.OverdueGrace) {
				st.OverdueSessions++
			}
		}
		if s.CheckInAt.In(loc).Format(dateLayout) == today {
			st.TodayRevenue += s.Fee
			st.TodayCheckIns++
		}
	}

	window := opts.WindowDays
	if window <= 0 {
		window = 7
	}
	end := startOfDay(asOf, loc)
	st.RevenueSeries = series(sessions, end.AddDate(0, 0, -(window - 1)), end, loc)
	return st
}

// Revenue sums fees per local calendar day from from's date through to's
// date, oldest first. Empty days are included with zero revenue.
func Revenue(sessions []model.Session, from, to time.Time, loc *time.Location) []DayRevenue {
	if loc == nil {
		loc = time.UTC
	}
	return series(sessions, startOfDay(from, loc), startOfDay(to, loc), loc)
}

func series(sessions []model.Session, first, last time.Time, loc *time.Location) []DayRevenue {
	var days []DayRevenue
	index := make(map[string]int)
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		key := d.Format(dateLayout)
		index[key] = len(days)
		days = append(days, DayRevenue{Date: key})
	}

	for _, s := range sessions {
		i, ok := index[s.CheckInAt.In(loc).Format(dateLayout)]
		if !ok {
			continue
		}
		days[i].Revenue += s.Fee
		days[i].Sessions++
	}
	return days
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// RevenueReport is a revenue series over an explicit date range.
type RevenueReport struct {
	From  string       `json:"from"`
	To    string       `json:"to"`
	Total int64        `json:"total"`
	Days  []DayRevenue `json:"days"`
}

// Service computes stats from a consistent store snapshot.
type Service struct {
	store store.Store
	now   func() time.Time
	opts  Options
}

// NewService creates a stats service reading from st.
func NewService(st store.Store, now func() time.Time, opts Options) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: st, now: now, opts: opts}
}

// Dashboard returns the stats as of now.
func (s *Service) Dashboard(ctx context.Context) (DashboardStats, error) {
	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return DashboardStats{}, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return Compute(snap.Lockers, snap.Sessions, s.now(), s.opts), nil
}

// RevenueRange reports revenue for the local dates from..to inclusive, given
// as YYYY-MM-DD. Empty bounds default to the trailing window ending today.
func (s *Service) RevenueRange(ctx context.Context, from, to string) (RevenueReport, error) {
	loc := s.opts.location()
	ve := apperr.NewValidationError()

	end := startOfDay(s.now(), loc)
	if to != "" {
		t, err := time.ParseInLocation(dateLayout, to, loc)
		if err != nil {
			ve.Add("to", "expected YYYY-MM-DD")
		}
		end = t
	}

	window := s.opts.WindowDays
	if window <= 0 {
		window = 7
	}
	start := end.AddDate(0, 0, -(window - 1))
	if from != "" {
		t, err := time.ParseInLocation(dateLayout, from, loc)
		if err != nil {
			ve.Add("from", "expected YYYY-MM-DD")
		}
		start = t
	}
	if err := ve.OrNil(); err != nil {
		return RevenueReport{}, err
	}

	if start.After(end) {
		ve.Add("from", "must not be after to")
	} else if end.Sub(start) > maxRevenueDays*24*time.Hour {
		ve.Add("to", fmt.Sprintf("range must not exceed %d days", maxRevenueDays))
	}
	if err := ve.OrNil(); err != nil {
		return RevenueReport{}, err
	}

	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return RevenueReport{}, fmt.Errorf("failed to read snapshot: %w", err)
	}

	report := RevenueReport{
		From: start.Format(dateLayout),
		To:   end.Format(dateLayout),
		Days: Revenue(snap.Sessions, start, end, loc),
	}
	for _, d := range report.Days {
		report.Total += d.Revenue
	}
	return report, nil
}
