// Package facility implements the locker registry and the session state
// machine on top of a store.Store.
package facility

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"luggage-locker-backend/internal/apperr"
	"luggage-locker-backend/internal/events"
	"luggage-locker-backend/internal/fee"
	"luggage-locker-backend/internal/model"
	"luggage-locker-backend/internal/store"
)

// maxTagAttempts bounds retries when a generated tag is already taken.
const maxTagAttempts = 5

// Options holds the collaborators injected into the core.
type Options struct {
	Now          func() time.Time
	NewTag       func() string
	NewID        func() string
	TagPrefix    string
	Location     *time.Location
	OverdueGrace time.Duration
}

// Facility groups the two halves of the core. They share a store, event bus
// and per-locker lock set.
type Facility struct {
	Lockers  *Registry
	Sessions *Manager
}

type core struct {
	store store.Store
	bus   *events.Bus
	locks *lockSet

	now          func() time.Time
	newTag       func() string
	newID        func() string
	loc          *time.Location
	overdueGrace time.Duration
}

// New wires a registry and a session manager over st.
func New(st store.Store, bus *events.Bus, opts Options) *Facility {
	c := &core{
		store:        st,
		bus:          bus,
		locks:        newLockSet(),
		now:          opts.Now,
		newTag:       opts.NewTag,
		newID:        opts.NewID,
		loc:          opts.Location,
		overdueGrace: opts.OverdueGrace,
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.newTag == nil {
		c.newTag = TagGenerator(opts.TagPrefix)
	}
	if c.newID == nil {
		c.newID = uuid.NewString
	}
	if c.loc == nil {
		c.loc = time.UTC
	}
	return &Facility{Lockers: &Registry{c}, Sessions: &Manager{c}}
}

// TagGenerator returns a generator of tags such as LUG-3F2A9C1B.
func TagGenerator(prefix string) func() string {
	if prefix == "" {
		prefix = "LUG"
	}
	return func() string {
		id := uuid.New()
		return fmt.Sprintf("%s-%s", prefix, strings.ToUpper(fmt.Sprintf("%x", id[:4])))
	}
}

func (c *core) publish(kind events.Kind, locker *model.Locker, session *model.Session, reason string) {
	c.bus.Publish(events.Event{
		Kind:    kind,
		At:      c.now(),
		Locker:  locker,
		Session: session,
		Reason:  reason,
	})
}

// uniqueTag draws tags until one is unused in tx.
func (c *core) uniqueTag(ctx context.Context, tx store.Store) (string, error) {
	for i := 0; i < maxTagAttempts; i++ {
		tag := c.newTag()
		_, err := tx.GetSessionByTag(ctx, tag)
		if errors.Is(err, apperr.ErrNotFound) {
			return tag, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("no unique tag after %d attempts: %w", maxTagAttempts, apperr.ErrConflict)
}

// release finalizes session at the current clock and moves its locker from
// occupied to the given status, both through tx. The caller holds the locker
// lock.
func (c *core) release(ctx context.Context, tx store.Store, session model.Session, to model.LockerStatus) (model.Session, model.Locker, error) {
	if !session.Active() {
		return model.Session{}, model.Locker{}, fmt.Errorf("session %s: %w", session.TagNumber, apperr.ErrAlreadyCheckedOut)
	}

	out := c.now()
	if !out.After(session.CheckInAt) {
		out = session.CheckInAt.Add(time.Second)
	}
	hours := fee.BillableHours(session.CheckInAt, out)
	amount, err := fee.Compute(float64(hours))
	if err != nil {
		return model.Session{}, model.Locker{}, err
	}

	session.CheckOutAt = &out
	session.BilledHours = hours
	session.Fee = amount
	session.Status = model.SessionCheckedOut
	if err := tx.PutSession(ctx, &session); err != nil {
		return model.Session{}, model.Locker{}, err
	}

	if err := tx.SwapLockerStatus(ctx, session.LockerID, model.LockerOccupied, to); err != nil {
		if errors.Is(err, store.ErrStatusChanged) {
			return model.Session{}, model.Locker{}, fmt.Errorf("locker %d holds session %s but is not occupied: %w",
				session.LockerID, session.TagNumber, apperr.ErrConflict)
		}
		return model.Session{}, model.Locker{}, err
	}

	locker, err := tx.GetLocker(ctx, session.LockerID)
	if err != nil {
		return model.Session{}, model.Locker{}, err
	}
	return session, locker, nil
}
