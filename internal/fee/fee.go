package fee

import (
	"fmt"
	"math"
	"time"

	"luggage-locker-backend/internal/apperr"
)

// Tier is one step of the published schedule. UpToHours is an inclusive
// upper bound; zero means unbounded.
type Tier struct {
	UpToHours float64 `json:"upToHours"`
	Amount    int64   `json:"amount"`
}

// Schedule is the published fee table, ordered by bound. The last tier is the
// flat daily ceiling and applies to any longer duration.
var Schedule = []Tier{
	{UpToHours: 1, Amount: 100},
	{UpToHours: 3, Amount: 200},
	{UpToHours: 6, Amount: 300},
	{UpToHours: 0, Amount: 500},
}

// Compute maps a storage duration in hours to its fee.
func Compute(durationHours float64) (int64, error) {
	if math.IsNaN(durationHours) || math.IsInf(durationHours, 0) || durationHours <= 0 {
		return 0, fmt.Errorf("duration %v hours: %w", durationHours, apperr.ErrInvalidDuration)
	}
	for _, t := range Schedule {
		if t.UpToHours == 0 || durationHours <= t.UpToHours {
			return t.Amount, nil
		}
	}
	// Unreachable while the schedule ends with an unbounded tier.
	return Schedule[len(Schedule)-1].Amount, nil
}

// BillableHours is the elapsed time between check-in and check-out rounded up
// to the next whole hour, never less than one.
func BillableHours(checkIn, checkOut time.Time) int {
	elapsed := checkOut.Sub(checkIn)
	if elapsed <= 0 {
		return 1
	}
	hours := int(math.Ceil(elapsed.Hours()))
	if hours < 1 {
		hours = 1
	}
	return hours
}
