package query

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"luggage-locker-backend/internal/apperr"
	"luggage-locker-backend/internal/model"
)

// LockerFilter narrows and orders a locker listing. Empty fields match all.
type LockerFilter struct {
	Search   string
	Types    []model.LockerType
	Statuses []model.LockerStatus
	Location string
	SortBy   string // number (default), type, status or location
}

// FilterLockers returns the lockers matching f in a stable, total order.
// Multi-value fields are OR within the field and AND across fields.
func FilterLockers(lockers []model.Locker, f LockerFilter) ([]model.Locker, error) {
	key, err := lockerSortKey(f.SortBy)
	if err != nil {
		return nil, err
	}

	search := strings.ToLower(strings.TrimSpace(f.Search))
	location := strings.TrimSpace(f.Location)

	out := make([]model.Locker, 0, len(lockers))
	for _, l := range lockers {
		if search != "" &&
			!strings.Contains(strings.ToLower(l.Number), search) &&
			!strings.Contains(strings.ToLower(l.Location), search) {
			continue
		}
		if len(f.Types) > 0 && !containsType(f.Types, l.Type) {
			continue
		}
		if len(f.Statuses) > 0 && !containsStatus(f.Statuses, l.Status) {
			continue
		}
		if location != "" && !strings.EqualFold(l.Location, location) {
			continue
		}
		out = append(out, l)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := key(out[i]), key(out[j])
		if a != b {
			return a < b
		}
		if out[i].Number != out[j].Number {
			return out[i].Number < out[j].Number
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func lockerSortKey(sortBy string) (func(model.Locker) string, error) {
	switch strings.ToLower(strings.TrimSpace(sortBy)) {
	case "", "number":
		return func(l model.Locker) string { return l.Number }, nil
	case "type":
		return func(l model.Locker) string { return string(l.Type) }, nil
	case "status":
		return func(l model.Locker) string { return string(l.Status) }, nil
	case "location":
		return func(l model.Locker) string { return l.Location }, nil
	}
	return nil, sortError(sortBy)
}

func containsType(types []model.LockerType, t model.LockerType) bool {
	for _, v := range types {
		if v == t {
			return true
		}
	}
	return false
}

func containsStatus(statuses []model.LockerStatus, s model.LockerStatus) bool {
	for _, v := range statuses {
		if v == s {
			return true
		}
	}
	return false
}

// SessionFilter narrows and orders a session listing. Statuses are display
// statuses; "stored" also matches overdue sessions.
type SessionFilter struct {
	Search   string
	Statuses []string
	LockerID int64
	Since    time.Time
	SortBy   string // checkIn (default, newest first), tag, owner or fee
}

// FilterSessions returns the sessions matching f. asOf and grace decide which
// stored sessions count as overdue.
func FilterSessions(sessions []model.Session, f SessionFilter, asOf time.Time, grace time.Duration) ([]model.Session, error) {
	less, err := sessionLess(f.SortBy)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(f.Statuses))
	for _, s := range f.Statuses {
		st, err := NormalizeStatus(s)
		if err != nil {
			return nil, err
		}
		wanted[st] = true
	}

	search := strings.ToLower(strings.TrimSpace(f.Search))

	out := make([]model.Session, 0, len(sessions))
	for _, s := range sessions {
		if f.LockerID != 0 && s.LockerID != f.LockerID {
			continue
		}
		if !f.Since.IsZero() && s.CheckInAt.Before(f.Since) {
			continue
		}
		if len(wanted) > 0 && !matchesStatus(wanted, DisplayStatus(s, asOf, grace)) {
			continue
		}
		if search != "" && !matchesSearch(s, search) {
			continue
		}
		out = append(out, s)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if c := less(out[i], out[j]); c != 0 {
			return c < 0
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// NormalizeStatus accepts the display statuses plus the underscore spelling
// of checked-out.
func NormalizeStatus(s string) (string, error) {
	st := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
	switch st {
	case StatusStored, StatusCheckedOut, StatusOverdue, StatusPending:
		return st, nil
	}
	ve := apperr.NewValidationError()
	ve.Add("status", fmt.Sprintf("unknown status %q", s))
	return "", ve
}

func matchesStatus(wanted map[string]bool, display string) bool {
	if wanted[display] {
		return true
	}
	return display == StatusOverdue && wanted[StatusStored]
}

func matchesSearch(s model.Session, search string) bool {
	for _, field := range []string{
		s.TagNumber, s.OwnerName, s.OwnerPhone, s.OwnerEmail, s.Description, s.StorageLocation,
	} {
		if strings.Contains(strings.ToLower(field), search) {
			return true
		}
	}
	return false
}

func sessionLess(sortBy string) (func(a, b model.Session) int, error) {
	switch strings.ToLower(strings.TrimSpace(sortBy)) {
	case "", "checkin":
		return func(a, b model.Session) int {
			switch {
			case a.CheckInAt.After(b.CheckInAt):
				return -1
			case a.CheckInAt.Before(b.CheckInAt):
				return 1
			}
			return 0
		}, nil
	case "tag":
		return func(a, b model.Session) int { return strings.Compare(a.TagNumber, b.TagNumber) }, nil
	case "owner":
		return func(a, b model.Session) int {
			return strings.Compare(strings.ToLower(a.OwnerName), strings.ToLower(b.OwnerName))
		}, nil
	case "fee":
		return func(a, b model.Session) int {
			switch {
			case a.Fee < b.Fee:
				return -1
			case a.Fee > b.Fee:
				return 1
			}
			return 0
		}, nil
	}
	return nil, sortError(sortBy)
}

func sortError(sortBy string) error {
	ve := apperr.NewValidationError()
	ve.Add("sortBy", fmt.Sprintf("unknown sort key %q", sortBy))
	return ve
}

// SinceFor turns a date filter period into the earliest check-in time it
// admits. "today" starts at local midnight; "week" and "month" reach back 7
// and 30 days from asOf. An empty or "all" period returns the zero time.
func SinceFor(period string, asOf time.Time, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	switch strings.ToLower(strings.TrimSpace(period)) {
	case "", "all":
		return time.Time{}, nil
	case "today":
		local := asOf.In(loc)
		return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc), nil
	case "week":
		return asOf.Add(-7 * 24 * time.Hour), nil
	case "month":
		return asOf.Add(-30 * 24 * time.Hour), nil
	}
	ve := apperr.NewValidationError()
	ve.Add("since", fmt.Sprintf("unknown period %q", period))
	return time.Time{}, ve
}
