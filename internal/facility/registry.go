package facility

import (
	"context"
	"errors"
	"fmt"
	"log"

	"luggage-locker-backend/internal/apperr"
	"luggage-locker-backend/internal/events"
	"luggage-locker-backend/internal/model"
	"luggage-locker-backend/internal/parse"
	"luggage-locker-backend/internal/query"
	"luggage-locker-backend/internal/store"
)

// defaultHistoryLimit caps History when the caller passes no limit.
const defaultHistoryLimit = 50

// Registry owns the locker set and the operator-driven status changes.
type Registry struct {
	*core
}

// LockerInput describes a locker to create. Location defaults to the floor or
// section implied by the number.
type LockerInput struct {
	Number   string           `json:"number"`
	Location string           `json:"location"`
	Type     model.LockerType `json:"type"`
}

// LockerUpdate changes static attributes. Nil fields are left as they are.
type LockerUpdate struct {
	Number   *string           `json:"number"`
	Location *string           `json:"location"`
	Type     *model.LockerType `json:"type"`
}

// Override lets an operator push a status change the state machine would
// otherwise refuse. Every use is logged.
type Override struct {
	Force  bool   `json:"force"`
	Reason string `json:"reason"`
}

// List returns the lockers matching f.
func (r *Registry) List(ctx context.Context, f query.LockerFilter) ([]model.Locker, error) {
	lockers, err := r.store.ListLockers(ctx)
	if err != nil {
		return nil, err
	}
	return query.FilterLockers(lockers, f)
}

// Get returns one locker.
func (r *Registry) Get(ctx context.Context, id int64) (model.Locker, error) {
	return r.store.GetLocker(ctx, id)
}

// Create adds a new available locker.
func (r *Registry) Create(ctx context.Context, in LockerInput) (model.Locker, error) {
	in.normalize()
	if err := in.validate(); err != nil {
		return model.Locker{}, err
	}
	if in.Location == "" {
		in.Location = defaultLocation(in.Number)
	}

	locker := model.Locker{
		Number:   in.Number,
		Location: in.Location,
		Type:     in.Type,
		Status:   model.LockerAvailable,
	}
	err := r.store.Atomically(ctx, func(tx store.Store) error {
		if err := ensureNumberFree(ctx, tx, in.Number, 0); err != nil {
			return err
		}
		return tx.PutLocker(ctx, &locker)
	})
	if err != nil {
		return model.Locker{}, err
	}

	r.publish(events.LockerCreated, &locker, nil, "")
	return locker, nil
}

// Update changes a locker's number, location or type. Status is not touched
// here; see SetStatus.
func (r *Registry) Update(ctx context.Context, id int64, upd LockerUpdate) (model.Locker, error) {
	unlock := r.locks.Lock(id)
	defer unlock()

	var locker model.Locker
	err := r.store.Atomically(ctx, func(tx store.Store) error {
		var err error
		if locker, err = tx.GetLocker(ctx, id); err != nil {
			return err
		}

		in := LockerInput{Number: locker.Number, Location: locker.Location, Type: locker.Type}
		if upd.Number != nil {
			in.Number = *upd.Number
		}
		if upd.Location != nil {
			in.Location = *upd.Location
		}
		if upd.Type != nil {
			in.Type = *upd.Type
		}
		in.normalize()
		if err := in.validate(); err != nil {
			return err
		}
		if in.Location == "" {
			in.Location = defaultLocation(in.Number)
		}
		if in.Number != locker.Number {
			if err := ensureNumberFree(ctx, tx, in.Number, id); err != nil {
				return err
			}
		}

		locker.Number, locker.Location, locker.Type = in.Number, in.Location, in.Type
		return tx.PutLocker(ctx, &locker)
	})
	if err != nil {
		return model.Locker{}, err
	}

	r.publish(events.LockerUpdated, &locker, nil, "")
	return locker, nil
}

// Delete removes a locker. Occupied lockers are refused with ErrConflict.
func (r *Registry) Delete(ctx context.Context, id int64) error {
	unlock := r.locks.Lock(id)
	defer unlock()

	var locker model.Locker
	err := r.store.Atomically(ctx, func(tx store.Store) error {
		var err error
		if locker, err = tx.GetLocker(ctx, id); err != nil {
			return err
		}
		if locker.Status == model.LockerOccupied {
			return fmt.Errorf("locker %s is occupied: %w", locker.Number, apperr.ErrConflict)
		}
		if err := noActiveSession(ctx, tx, id); err != nil {
			return err
		}
		return tx.DeleteLocker(ctx, id)
	})
	if err != nil {
		return err
	}

	r.publish(events.LockerDeleted, &locker, nil, "")
	return nil
}

// SetStatus applies an operator status change. Only maintenance toggling is
// externally allowed: occupied is reachable only through check-in, and an
// occupied locker becomes available only through check-out. Forcing an
// occupied locker into maintenance releases its session on the spot.
func (r *Registry) SetStatus(ctx context.Context, id int64, to model.LockerStatus, ov Override) (model.Locker, error) {
	if !to.Valid() {
		ve := apperr.NewValidationError()
		ve.Add("status", fmt.Sprintf("unknown status %q", to))
		return model.Locker{}, ve
	}

	unlock := r.locks.Lock(id)
	defer unlock()

	var (
		locker   model.Locker
		released *model.Session
		changed  bool
	)
	err := r.store.Atomically(ctx, func(tx store.Store) error {
		current, err := tx.GetLocker(ctx, id)
		if err != nil {
			return err
		}
		locker = current
		if current.Status == to {
			return nil
		}

		switch {
		case to == model.LockerOccupied:
			return fmt.Errorf("locker %s: occupied is set by check-in only: %w", current.Number, apperr.ErrInvalidTransition)

		case current.Status == model.LockerOccupied && to == model.LockerAvailable:
			return fmt.Errorf("locker %s still holds a session: %w", current.Number, apperr.ErrInvalidTransition)

		case current.Status == model.LockerOccupied && to == model.LockerMaintenance:
			if !ov.Force {
				return fmt.Errorf("locker %s is occupied, maintenance needs a forced override: %w",
					current.Number, apperr.ErrInvalidTransition)
			}
			session, err := tx.ActiveSessionForLocker(ctx, id)
			if err != nil {
				return err
			}
			log.Printf("Forced maintenance on occupied locker %s (reason: %q), releasing session %s",
				current.Number, ov.Reason, session.TagNumber)
			final, updated, err := r.release(ctx, tx, session, model.LockerMaintenance)
			if err != nil {
				return err
			}
			released, locker, changed = &final, updated, true
			return nil
		}

		// available <-> maintenance
		if err := noActiveSession(ctx, tx, id); err != nil {
			return err
		}
		if err := tx.SwapLockerStatus(ctx, id, current.Status, to); err != nil {
			if errors.Is(err, store.ErrStatusChanged) {
				return fmt.Errorf("locker %s changed concurrently: %w", current.Number, apperr.ErrConflict)
			}
			return err
		}
		if locker, err = tx.GetLocker(ctx, id); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return model.Locker{}, err
	}

	if released != nil {
		r.publish(events.SessionCheckedOut, &locker, released, "emergency release: "+ov.Reason)
	}
	if changed {
		r.publish(events.LockerStatusChanged, &locker, nil, ov.Reason)
	}
	return locker, nil
}

// Provision creates the lockers in seeds whose numbers do not exist yet and
// returns how many were added.
func (r *Registry) Provision(ctx context.Context, seeds []LockerInput) (int, error) {
	added := 0
	for _, seed := range seeds {
		in := seed
		in.normalize()
		if _, err := r.store.GetLockerByNumber(ctx, in.Number); err == nil {
			continue
		} else if !errors.Is(err, apperr.ErrNotFound) {
			return added, err
		}
		if _, err := r.Create(ctx, in); err != nil {
			return added, fmt.Errorf("failed to provision locker %q: %w", seed.Number, err)
		}
		added++
	}
	return added, nil
}

// ActiveSession returns the stored session holding the locker.
func (r *Registry) ActiveSession(ctx context.Context, id int64) (model.Session, error) {
	if _, err := r.store.GetLocker(ctx, id); err != nil {
		return model.Session{}, err
	}
	return r.store.ActiveSessionForLocker(ctx, id)
}

// History returns the locker's sessions, newest first.
func (r *Registry) History(ctx context.Context, id int64, limit int) ([]model.Session, error) {
	if _, err := r.store.GetLocker(ctx, id); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return r.store.ListLockerSessions(ctx, id, limit)
}

func ensureNumberFree(ctx context.Context, tx store.Store, number string, self int64) error {
	existing, err := tx.GetLockerByNumber(ctx, number)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return nil
	case err != nil:
		return err
	case existing.ID != self:
		return fmt.Errorf("locker number %q already exists: %w", number, apperr.ErrConflict)
	}
	return nil
}

func noActiveSession(ctx context.Context, tx store.Store, lockerID int64) error {
	session, err := tx.ActiveSessionForLocker(ctx, lockerID)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return nil
	case err != nil:
		return err
	}
	return fmt.Errorf("locker %d holds session %s: %w", lockerID, session.TagNumber, apperr.ErrConflict)
}

func defaultLocation(number string) string {
	parsed, err := parse.ParseNumber(number)
	if err != nil {
		return "Unassigned"
	}
	return parsed.Location()
}
