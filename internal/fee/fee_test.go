package fee

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"luggage-locker-backend/internal/apperr"
)

func TestCompute(t *testing.T) {
	testCases := []struct {
		name     string
		hours    float64
		expected int64
	}{
		{name: "Fraction of an hour", hours: 0.25, expected: 100},
		{name: "Exactly one hour", hours: 1, expected: 100},
		{name: "Just over one hour", hours: 1.01, expected: 200},
		{name: "Exactly three hours", hours: 3, expected: 200},
		{name: "Four hours", hours: 4, expected: 300},
		{name: "Exactly six hours", hours: 6, expected: 300},
		{name: "Seven hours", hours: 7, expected: 500},
		{name: "Multiple days stay flat", hours: 72, expected: 500},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			amount, err := Compute(tc.hours)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, amount)
		})
	}
}

func TestCompute_InvalidDuration(t *testing.T) {
	for _, hours := range []float64{0, -1, math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := Compute(hours)
		assert.ErrorIs(t, err, apperr.ErrInvalidDuration, "hours=%v", hours)
	}
}

func TestCompute_Monotonic(t *testing.T) {
	prev := int64(0)
	for h := 0.1; h <= 48; h += 0.1 {
		amount, err := Compute(h)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, amount, prev, "fee dropped at %.1f hours", h)
		prev = amount
	}
}

func TestBillableHours(t *testing.T) {
	in := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, 1, BillableHours(in, in.Add(time.Millisecond)))
	assert.Equal(t, 1, BillableHours(in, in.Add(time.Hour)))
	assert.Equal(t, 2, BillableHours(in, in.Add(time.Hour+time.Second)))
	assert.Equal(t, 2, BillableHours(in, in.Add(2*time.Hour)))
	assert.Equal(t, 25, BillableHours(in, in.Add(24*time.Hour+time.Minute)))
	assert.Equal(t, 1, BillableHours(in, in), "zero elapsed still bills the first hour")
	assert.Equal(t, 1, BillableHours(in, in.Add(-time.Minute)))
}
