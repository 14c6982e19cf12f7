package facility

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"luggage-locker-backend/internal/apperr"
	"luggage-locker-backend/internal/events"
	"luggage-locker-backend/internal/model"
	"luggage-locker-backend/internal/query"
	"luggage-locker-backend/internal/store"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) handle(e events.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) kinds() []events.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Kind, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Kind)
	}
	return out
}

func (r *recorder) last() events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

type harness struct {
	fac   *Facility
	store *store.MemoryStore
	clock *fakeClock
	rec   *recorder
}

func newHarness(t *testing.T, seeds ...LockerInput) *harness {
	t.Helper()

	clock := &fakeClock{t: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}
	st := store.NewMemoryStore()
	bus := events.NewBus()
	rec := &recorder{}
	bus.Subscribe(rec.handle)

	var tagSeq int
	var tagMu sync.Mutex
	fac := New(st, bus, Options{
		Now: clock.Now,
		NewTag: func() string {
			tagMu.Lock()
			defer tagMu.Unlock()
			tagSeq++
			return fmt.Sprintf("LUG-%06d", tagSeq)
		},
		OverdueGrace: 30 * time.Minute,
	})

	_, err := fac.Lockers.Provision(context.Background(), seeds)
	require.NoError(t, err)
	rec.events = nil

	return &harness{fac: fac, store: st, clock: clock, rec: rec}
}

func validRequest() CheckInRequest {
	return CheckInRequest{
		OwnerName:      "Priya Sharma",
		OwnerPhone:     "+91 98765 43210",
		OwnerEmail:     "priya@example.com",
		Description:    "Red hard-shell suitcase",
		Weight:         5,
		EstimatedHours: 1,
	}
}

func stockLockers() []LockerInput {
	return []LockerInput{
		{Number: "101", Location: "Floor 1", Type: model.LockerSmall},
		{Number: "102", Location: "Floor 1", Type: model.LockerMedium},
		{Number: "103", Location: "Floor 1", Type: model.LockerLarge},
		{Number: "201", Location: "Floor 2", Type: model.LockerSmall},
		{Number: "202", Location: "Floor 2", Type: model.LockerMedium},
	}
}

func lockerByNumber(t *testing.T, h *harness, number string) model.Locker {
	t.Helper()
	l, err := h.store.GetLockerByNumber(context.Background(), number)
	require.NoError(t, err)
	return l
}

// assertConsistent checks that occupied lockers and stored sessions pair up
// one to one.
func assertConsistent(t *testing.T, h *harness) {
	t.Helper()
	snap, err := h.store.Snapshot(context.Background())
	require.NoError(t, err)

	active := make(map[int64]int)
	for _, s := range snap.Sessions {
		if s.Active() {
			active[s.LockerID]++
		}
	}
	for _, l := range snap.Lockers {
		if l.Status == model.LockerOccupied {
			assert.Equal(t, 1, active[l.ID], "occupied locker %s must hold exactly one session", l.Number)
		} else {
			assert.Zero(t, active[l.ID], "%s locker %s must hold no session", l.Status, l.Number)
		}
	}
}

func TestCheckInThenCheckOut_RecomputesFee(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, LockerInput{Number: "L1", Location: "Hall", Type: model.LockerSmall})
	l1 := lockerByNumber(t, h, "L1")

	req := validRequest()
	req.LockerID = l1.ID
	session, err := h.fac.Sessions.CheckIn(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, int64(100), session.Fee)
	assert.Equal(t, int64(100), session.QuotedFee)
	assert.Equal(t, model.SessionStored, session.Status)
	assert.Equal(t, "LUG-000001", session.TagNumber)
	assert.Equal(t, "Hall", session.StorageLocation, "storage location defaults to the locker's")
	assert.Equal(t, model.LockerOccupied, lockerByNumber(t, h, "L1").Status)
	assertConsistent(t, h)

	h.clock.Advance(2 * time.Hour)

	final, err := h.fac.Sessions.CheckOut(ctx, session.TagNumber)
	require.NoError(t, err)
	assert.Equal(t, int64(200), final.Fee)
	assert.Equal(t, int64(100), final.QuotedFee)
	assert.Equal(t, 2, final.BilledHours)
	assert.Equal(t, model.SessionCheckedOut, final.Status)
	require.NotNil(t, final.CheckOutAt)
	assert.True(t, final.CheckOutAt.After(final.CheckInAt))
	assert.Equal(t, model.LockerAvailable, lockerByNumber(t, h, "L1").Status)
	assertConsistent(t, h)

	last := h.rec.last()
	assert.Equal(t, events.SessionCheckedOut, last.Kind)
	require.NotNil(t, last.Session)
	assert.Equal(t, final, *last.Session)

	_, err = h.fac.Sessions.CheckOut(ctx, session.TagNumber)
	assert.ErrorIs(t, err, apperr.ErrAlreadyCheckedOut)
	_, err = h.fac.Sessions.CheckOut(ctx, session.ID)
	assert.ErrorIs(t, err, apperr.ErrAlreadyCheckedOut, "lookup by id fails the same way")
}

func TestCheckOut_ImmediateBillsFirstTier(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, stockLockers()...)

	req := validRequest()
	req.EstimatedHours = 12
	session, err := h.fac.Sessions.CheckIn(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, int64(500), session.QuotedFee)

	final, err := h.fac.Sessions.CheckOut(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), final.Fee)
	assert.Equal(t, 1, final.BilledHours)
	assert.True(t, final.CheckOutAt.After(final.CheckInAt), "checkout is strictly after check-in even on a frozen clock")
}

func TestCheckIn_OccupiedLockerLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, stockLockers()...)
	l := lockerByNumber(t, h, "102")

	req := validRequest()
	req.LockerID = l.ID
	_, err := h.fac.Sessions.CheckIn(ctx, req)
	require.NoError(t, err)

	before, err := h.store.Snapshot(ctx)
	require.NoError(t, err)
	eventsBefore := len(h.rec.kinds())

	_, err = h.fac.Sessions.CheckIn(ctx, req)
	assert.ErrorIs(t, err, apperr.ErrLockerUnavailable)

	after, err := h.store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Len(t, h.rec.kinds(), eventsBefore, "a failed check-in publishes nothing")
}

func TestCheckIn_MaintenanceLockerIsUnavailable(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, stockLockers()...)
	l := lockerByNumber(t, h, "103")

	_, err := h.fac.Lockers.SetStatus(ctx, l.ID, model.LockerMaintenance, Override{Reason: "door jammed"})
	require.NoError(t, err)

	req := validRequest()
	req.LockerID = l.ID
	_, err = h.fac.Sessions.CheckIn(ctx, req)
	assert.ErrorIs(t, err, apperr.ErrLockerUnavailable)

	req.LockerID = 0
	req.LockerType = model.LockerLarge
	_, err = h.fac.Sessions.CheckIn(ctx, req)
	assert.ErrorIs(t, err, apperr.ErrNoAvailableLocker, "the only large locker is under maintenance")
}

func TestCheckIn_ConcurrentSameLocker(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, LockerInput{Number: "101", Type: model.LockerSmall})
	l := lockerByNumber(t, h, "101")

	const attempts = 16
	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		succeeded   int
		unavailable int
	)
	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			req := validRequest()
			req.LockerID = l.ID
			_, err := h.fac.Sessions.CheckIn(ctx, req)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case assert.ErrorIs(t, err, apperr.ErrLockerUnavailable):
				unavailable++
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, attempts-1, unavailable)
	assertConsistent(t, h)
}

func TestCheckIn_AutoAssign(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, stockLockers()...)

	req := validRequest()
	req.LockerType = model.LockerSmall

	first, err := h.fac.Sessions.CheckIn(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, lockerByNumber(t, h, "101").ID, first.LockerID, "first available by number")

	second, err := h.fac.Sessions.CheckIn(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, lockerByNumber(t, h, "201").ID, second.LockerID)

	_, err = h.fac.Sessions.CheckIn(ctx, req)
	assert.ErrorIs(t, err, apperr.ErrNoAvailableLocker)

	req.LockerType = ""
	anyType, err := h.fac.Sessions.CheckIn(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, lockerByNumber(t, h, "102").ID, anyType.LockerID)
	assertConsistent(t, h)
}

func TestCheckIn_AutoAssignByLocation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, stockLockers()...)

	req := validRequest()
	req.LockerType = model.LockerMedium
	req.Location = "floor 2"

	session, err := h.fac.Sessions.CheckIn(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, lockerByNumber(t, h, "202").ID, session.LockerID)
	assert.Equal(t, "Floor 2", session.StorageLocation)

	_, err = h.fac.Sessions.CheckIn(ctx, req)
	assert.ErrorIs(t, err, apperr.ErrNoAvailableLocker)
}

func TestReceipt(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, stockLockers()...)

	req := validRequest()
	req.LockerID = lockerByNumber(t, h, "103").ID
	session, err := h.fac.Sessions.CheckIn(ctx, req)
	require.NoError(t, err)

	slip, err := h.fac.Sessions.Receipt(ctx, session.TagNumber)
	require.NoError(t, err)
	assert.False(t, slip.Final)
	assert.Equal(t, "103", slip.LockerNumber)

	h.clock.Advance(5 * time.Hour)
	_, err = h.fac.Sessions.CheckOut(ctx, session.ID)
	require.NoError(t, err)

	final, err := h.fac.Sessions.Receipt(ctx, session.ID)
	require.NoError(t, err)
	assert.True(t, final.Final)
	assert.Equal(t, int64(300), final.Fee)

	_, err = h.fac.Sessions.Receipt(ctx, "LUG-MISSING")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCheckIn_Validation(t *testing.T) {
	h := newHarness(t, stockLockers()...)

	req := CheckInRequest{
		OwnerPhone:     "call me",
		OwnerEmail:     "not-an-email",
		EmergencyPhone: "abc",
		Weight:         0,
		HasValuables:   true,
		EstimatedHours: -2,
		LockerType:     "huge",
	}
	_, err := h.fac.Sessions.CheckIn(context.Background(), req)
	require.ErrorIs(t, err, apperr.ErrValidation)

	var ve *apperr.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.ElementsMatch(t, []string{
		"ownerName", "ownerPhone", "ownerEmail", "emergencyPhone", "description",
		"weight", "valuablesDescription", "estimatedHours", "lockerType",
	}, keys(ve.Fields))

	snap, err := h.store.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Sessions)
}

func TestCheckIn_EstimateBounds(t *testing.T) {
	testCases := []struct {
		name    string
		hours   float64
		invalid bool
	}{
		{name: "At the cap", hours: MaxEstimatedHours},
		{name: "Just over the cap", hours: MaxEstimatedHours + 0.5, invalid: true},
		{name: "Past the duration range", hours: 1e7, invalid: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, stockLockers()...)
			req := validRequest()
			req.EstimatedHours = tc.hours

			session, err := h.fac.Sessions.CheckIn(context.Background(), req)
			if !tc.invalid {
				require.NoError(t, err)
				assert.False(t, query.IsOverdue(session, h.clock.Now().Add(time.Minute), 30*time.Minute))
				return
			}

			var ve *apperr.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, ve.Fields["estimatedHours"], "at most 720 hours")
		})
	}
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestCheckIn_UnknownLocker(t *testing.T) {
	h := newHarness(t, stockLockers()...)
	req := validRequest()
	req.LockerID = 999
	_, err := h.fac.Sessions.CheckIn(context.Background(), req)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCheckOut_UnknownRef(t *testing.T) {
	h := newHarness(t, stockLockers()...)
	_, err := h.fac.Sessions.CheckOut(context.Background(), "LUG-NOPE")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSetStatus_Transitions(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, stockLockers()...)
	free := lockerByNumber(t, h, "101")
	busy := lockerByNumber(t, h, "102")

	req := validRequest()
	req.LockerID = busy.ID
	session, err := h.fac.Sessions.CheckIn(ctx, req)
	require.NoError(t, err)

	t.Run("Available to maintenance and back", func(t *testing.T) {
		l, err := h.fac.Lockers.SetStatus(ctx, free.ID, model.LockerMaintenance, Override{})
		require.NoError(t, err)
		assert.Equal(t, model.LockerMaintenance, l.Status)

		l, err = h.fac.Lockers.SetStatus(ctx, free.ID, model.LockerAvailable, Override{})
		require.NoError(t, err)
		assert.Equal(t, model.LockerAvailable, l.Status)
	})

	t.Run("Same status is a no-op", func(t *testing.T) {
		n := len(h.rec.kinds())
		l, err := h.fac.Lockers.SetStatus(ctx, free.ID, model.LockerAvailable, Override{})
		require.NoError(t, err)
		assert.Equal(t, model.LockerAvailable, l.Status)
		assert.Len(t, h.rec.kinds(), n)
	})

	t.Run("Occupied cannot be set directly", func(t *testing.T) {
		_, err := h.fac.Lockers.SetStatus(ctx, free.ID, model.LockerOccupied, Override{Force: true})
		assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
	})

	t.Run("Occupied cannot become available", func(t *testing.T) {
		_, err := h.fac.Lockers.SetStatus(ctx, busy.ID, model.LockerAvailable, Override{Force: true})
		assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
	})

	t.Run("Occupied to maintenance needs force", func(t *testing.T) {
		_, err := h.fac.Lockers.SetStatus(ctx, busy.ID, model.LockerMaintenance, Override{})
		assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
		assert.Equal(t, model.LockerOccupied, lockerByNumber(t, h, "102").Status)
	})

	t.Run("Unknown status", func(t *testing.T) {
		_, err := h.fac.Lockers.SetStatus(ctx, free.ID, "broken", Override{})
		assert.ErrorIs(t, err, apperr.ErrValidation)
	})

	t.Run("Forced maintenance releases the session", func(t *testing.T) {
		h.clock.Advance(4 * time.Hour)
		h.rec.events = nil

		l, err := h.fac.Lockers.SetStatus(ctx, busy.ID, model.LockerMaintenance, Override{Force: true, Reason: "water leak"})
		require.NoError(t, err)
		assert.Equal(t, model.LockerMaintenance, l.Status)

		released, err := h.fac.Sessions.Get(ctx, session.TagNumber)
		require.NoError(t, err)
		assert.Equal(t, model.SessionCheckedOut, released.Status)
		assert.Equal(t, int64(300), released.Fee)

		assert.Equal(t, []events.Kind{events.SessionCheckedOut, events.LockerStatusChanged}, h.rec.kinds())
		assertConsistent(t, h)
	})
}

func TestCreateUpdateDelete(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, stockLockers()...)

	created, err := h.fac.Lockers.Create(ctx, LockerInput{Number: " 301 ", Type: "Large"})
	require.NoError(t, err)
	assert.Equal(t, "301", created.Number)
	assert.Equal(t, "Floor 3", created.Location)
	assert.Equal(t, model.LockerLarge, created.Type)
	assert.Equal(t, model.LockerAvailable, created.Status)

	_, err = h.fac.Lockers.Create(ctx, LockerInput{Number: "301", Type: model.LockerSmall})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = h.fac.Lockers.Create(ctx, LockerInput{Number: "", Type: "giant"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	dup := "101"
	_, err = h.fac.Lockers.Update(ctx, created.ID, LockerUpdate{Number: &dup})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	loc := "Annex"
	special := model.LockerSpecial
	updated, err := h.fac.Lockers.Update(ctx, created.ID, LockerUpdate{Location: &loc, Type: &special})
	require.NoError(t, err)
	assert.Equal(t, "Annex", updated.Location)
	assert.Equal(t, model.LockerSpecial, updated.Type)
	assert.Equal(t, "301", updated.Number)

	req := validRequest()
	req.LockerID = created.ID
	_, err = h.fac.Sessions.CheckIn(ctx, req)
	require.NoError(t, err)

	err = h.fac.Lockers.Delete(ctx, created.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	free := lockerByNumber(t, h, "202")
	require.NoError(t, h.fac.Lockers.Delete(ctx, free.ID))
	_, err = h.fac.Lockers.Get(ctx, free.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	assert.ErrorIs(t, h.fac.Lockers.Delete(ctx, free.ID), apperr.ErrNotFound)
}

func TestProvision_SkipsExisting(t *testing.T) {
	h := newHarness(t, stockLockers()...)
	added, err := h.fac.Lockers.Provision(context.Background(), append(stockLockers(), LockerInput{Number: "A-01", Type: model.LockerSpecial}))
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.Equal(t, "Section A", lockerByNumber(t, h, "A-01").Location)
}

func TestActiveSessionAndHistory(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, stockLockers()...)
	l := lockerByNumber(t, h, "201")

	_, err := h.fac.Lockers.ActiveSession(ctx, l.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	req := validRequest()
	req.LockerID = l.ID
	first, err := h.fac.Sessions.CheckIn(ctx, req)
	require.NoError(t, err)
	h.clock.Advance(time.Hour)
	_, err = h.fac.Sessions.CheckOut(ctx, first.TagNumber)
	require.NoError(t, err)

	h.clock.Advance(time.Hour)
	second, err := h.fac.Sessions.CheckIn(ctx, req)
	require.NoError(t, err)

	active, err := h.fac.Lockers.ActiveSession(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)

	history, err := h.fac.Lockers.History(ctx, l.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, second.ID, history[0].ID)
	assert.Equal(t, first.ID, history[1].ID)

	_, err = h.fac.Lockers.History(ctx, 999, 0)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestLifecycleKeepsLockersAndSessionsPaired(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, stockLockers()...)

	var stored []string
	for round := 0; round < 30; round++ {
		h.clock.Advance(17 * time.Minute)
		if round%3 == 2 && len(stored) > 0 {
			ref := stored[0]
			stored = stored[1:]
			_, err := h.fac.Sessions.CheckOut(ctx, ref)
			require.NoError(t, err)
		} else {
			s, err := h.fac.Sessions.CheckIn(ctx, validRequest())
			if err != nil {
				require.ErrorIs(t, err, apperr.ErrNoAvailableLocker)
				continue
			}
			stored = append(stored, s.TagNumber)
		}
		assertConsistent(t, h)
	}
}
