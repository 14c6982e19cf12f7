package query

import (
	"math"
	"time"

	"luggage-locker-backend/internal/model"
)

// Display statuses. Overdue and pending are derived and never stored.
const (
	StatusStored     = "stored"
	StatusCheckedOut = "checked-out"
	StatusOverdue    = "overdue"
	StatusPending    = "pending"
)

// IsOverdue reports whether a stored session has run past its estimate by
// more than grace at asOf.
func IsOverdue(s model.Session, asOf time.Time, grace time.Duration) bool {
	if !s.Active() {
		return false
	}
	hours := s.EstimatedHours * float64(time.Hour)
	if math.IsNaN(hours) || hours >= math.MaxInt64 {
		// An estimate past the Duration range never elapses.
		return false
	}
	estimate := time.Duration(hours)
	return asOf.Sub(s.CheckInAt) > estimate+grace
}

// DisplayStatus is the status shown to operators. The core never produces
// pending.
func DisplayStatus(s model.Session, asOf time.Time, grace time.Duration) string {
	switch {
	case IsOverdue(s, asOf, grace):
		return StatusOverdue
	case s.Active():
		return StatusStored
	default:
		return StatusCheckedOut
	}
}
