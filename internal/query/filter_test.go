package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"luggage-locker-backend/internal/apperr"
	"luggage-locker-backend/internal/model"
)

var asOf = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

func testLockers() []model.Locker {
	return []model.Locker{
		{ID: 1, Number: "101", Location: "Floor 1", Type: model.LockerSmall, Status: model.LockerAvailable},
		{ID: 2, Number: "102", Location: "Floor 1", Type: model.LockerMedium, Status: model.LockerOccupied},
		{ID: 3, Number: "103", Location: "Floor 1", Type: model.LockerLarge, Status: model.LockerAvailable},
		{ID: 4, Number: "201", Location: "Floor 2", Type: model.LockerSmall, Status: model.LockerMaintenance},
		{ID: 5, Number: "202", Location: "Floor 2", Type: model.LockerMedium, Status: model.LockerAvailable},
	}
}

func numbers(lockers []model.Locker) []string {
	out := make([]string, 0, len(lockers))
	for _, l := range lockers {
		out = append(out, l.Number)
	}
	return out
}

func TestFilterLockers(t *testing.T) {
	testCases := []struct {
		name     string
		filter   LockerFilter
		expected []string
	}{
		{name: "No filter keeps number order", filter: LockerFilter{}, expected: []string{"101", "102", "103", "201", "202"}},
		{name: "Search matches number", filter: LockerFilter{Search: "20"}, expected: []string{"201", "202"}},
		{name: "Search matches location case-insensitively", filter: LockerFilter{Search: "floor 2"}, expected: []string{"201", "202"}},
		{
			name:     "Types are OR within the field",
			filter:   LockerFilter{Types: []model.LockerType{model.LockerSmall, model.LockerLarge}},
			expected: []string{"101", "103", "201"},
		},
		{
			name: "Fields are AND across",
			filter: LockerFilter{
				Types:    []model.LockerType{model.LockerSmall, model.LockerMedium},
				Statuses: []model.LockerStatus{model.LockerAvailable},
			},
			expected: []string{"101", "202"},
		},
		{name: "Location is exact", filter: LockerFilter{Location: "floor 1"}, expected: []string{"101", "102", "103"}},
		{name: "Sort by type breaks ties by number", filter: LockerFilter{SortBy: "type"}, expected: []string{"103", "102", "202", "101", "201"}},
		{name: "Sort by status", filter: LockerFilter{SortBy: "status"}, expected: []string{"101", "103", "202", "201", "102"}},
		{name: "Sort by location", filter: LockerFilter{SortBy: "location"}, expected: []string{"101", "102", "103", "201", "202"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := FilterLockers(testLockers(), tc.filter)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, numbers(got))
		})
	}
}

func TestFilterLockers_UnknownSort(t *testing.T) {
	_, err := FilterLockers(testLockers(), LockerFilter{SortBy: "size"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func testSessions() []model.Session {
	out := asOf.Add(-time.Hour)
	return []model.Session{
		{ID: "a", TagNumber: "LUG-AAA", OwnerName: "Asha Rao", OwnerPhone: "+91 98765", OwnerEmail: "asha@example.com",
			Description: "Blue suitcase", StorageLocation: "A-01", LockerID: 1, Status: model.SessionStored,
			EstimatedHours: 1, Fee: 100, CheckInAt: asOf.Add(-30 * time.Minute)},
		{ID: "b", TagNumber: "LUG-BBB", OwnerName: "ben Okafor", OwnerPhone: "555-0100", OwnerEmail: "ben@example.org",
			Description: "Backpack", StorageLocation: "B-02", LockerID: 2, Status: model.SessionStored,
			EstimatedHours: 1, Fee: 100, CheckInAt: asOf.Add(-3 * time.Hour)},
		{ID: "c", TagNumber: "LUG-CCC", OwnerName: "Chen Li", OwnerPhone: "555-0199", OwnerEmail: "chen@example.net",
			Description: "Golf bag", StorageLocation: "C-01", LockerID: 1, Status: model.SessionCheckedOut,
			EstimatedHours: 6, Fee: 300, CheckInAt: asOf.Add(-10 * 24 * time.Hour), CheckOutAt: &out},
	}
}

func ids(sessions []model.Session) []string {
	out := make([]string, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.ID)
	}
	return out
}

func TestFilterSessions(t *testing.T) {
	grace := 30 * time.Minute

	testCases := []struct {
		name     string
		filter   SessionFilter
		expected []string
	}{
		{name: "Default newest first", filter: SessionFilter{}, expected: []string{"a", "b", "c"}},
		{name: "Search tag", filter: SessionFilter{Search: "lug-b"}, expected: []string{"b"}},
		{name: "Search phone", filter: SessionFilter{Search: "0199"}, expected: []string{"c"}},
		{name: "Search storage location", filter: SessionFilter{Search: "a-01"}, expected: []string{"a"}},
		{name: "Stored includes overdue", filter: SessionFilter{Statuses: []string{"stored"}}, expected: []string{"a", "b"}},
		{name: "Overdue only", filter: SessionFilter{Statuses: []string{"overdue"}}, expected: []string{"b"}},
		{name: "Underscore checked out", filter: SessionFilter{Statuses: []string{"checked_out"}}, expected: []string{"c"}},
		{name: "Pending is never produced", filter: SessionFilter{Statuses: []string{"pending"}}, expected: []string{}},
		{name: "By locker", filter: SessionFilter{LockerID: 1}, expected: []string{"a", "c"}},
		{name: "Since", filter: SessionFilter{Since: asOf.Add(-24 * time.Hour)}, expected: []string{"a", "b"}},
		{name: "Sort by owner ignores case", filter: SessionFilter{SortBy: "owner"}, expected: []string{"a", "b", "c"}},
		{name: "Sort by fee ties by id", filter: SessionFilter{SortBy: "fee"}, expected: []string{"a", "b", "c"}},
		{name: "Sort by tag", filter: SessionFilter{SortBy: "tag"}, expected: []string{"a", "b", "c"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := FilterSessions(testSessions(), tc.filter, asOf, grace)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, ids(got))
		})
	}
}

func TestFilterSessions_InvalidInput(t *testing.T) {
	_, err := FilterSessions(testSessions(), SessionFilter{Statuses: []string{"lost"}}, asOf, 0)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = FilterSessions(testSessions(), SessionFilter{SortBy: "weight"}, asOf, 0)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestDisplayStatus(t *testing.T) {
	s := model.Session{Status: model.SessionStored, EstimatedHours: 1, CheckInAt: asOf.Add(-90 * time.Minute)}

	assert.Equal(t, StatusStored, DisplayStatus(s, asOf, 30*time.Minute), "exactly at the grace edge is not overdue")
	assert.Equal(t, StatusOverdue, DisplayStatus(s, asOf.Add(time.Second), 30*time.Minute))

	s.Status = model.SessionCheckedOut
	assert.Equal(t, StatusCheckedOut, DisplayStatus(s, asOf.Add(24*time.Hour), 0))
}

func TestIsOverdue_HugeEstimate(t *testing.T) {
	testCases := []struct {
		name  string
		hours float64
	}{
		{name: "Beyond the duration range", hours: 1e7},
		{name: "Far beyond the duration range", hours: 1e300},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := model.Session{Status: model.SessionStored, EstimatedHours: tc.hours, CheckInAt: asOf}
			assert.False(t, IsOverdue(s, asOf.Add(time.Minute), 30*time.Minute))
			assert.Equal(t, StatusStored, DisplayStatus(s, asOf.Add(24*time.Hour), 30*time.Minute))
		})
	}
}

func TestSinceFor(t *testing.T) {
	ist, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	today, err := SinceFor("today", asOf, ist)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 5, 10, 0, 0, 0, 0, ist), today)

	week, err := SinceFor("week", asOf, ist)
	require.NoError(t, err)
	assert.Equal(t, asOf.Add(-7*24*time.Hour), week)

	all, err := SinceFor("all", asOf, nil)
	require.NoError(t, err)
	assert.True(t, all.IsZero())

	_, err = SinceFor("year", asOf, nil)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
