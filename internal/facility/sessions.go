package facility

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"luggage-locker-backend/internal/apperr"
	"luggage-locker-backend/internal/events"
	"luggage-locker-backend/internal/fee"
	"luggage-locker-backend/internal/model"
	"luggage-locker-backend/internal/query"
	"luggage-locker-backend/internal/receipt"
	"luggage-locker-backend/internal/store"
)

// Manager drives the session lifecycle: check-in moves a locker to occupied
// together with a new stored session, check-out reverses it.
type Manager struct {
	*core
}

// CheckInRequest carries the owner and luggage fields captured at the desk.
// LockerID picks a specific locker; when zero the first available locker of
// LockerType (any type if empty), optionally at Location, is assigned.
type CheckInRequest struct {
	LockerID             int64            `json:"lockerId"`
	LockerType           model.LockerType `json:"lockerType"`
	Location             string           `json:"location"`
	OwnerName            string           `json:"ownerName"`
	OwnerPhone           string           `json:"ownerPhone"`
	OwnerEmail           string           `json:"ownerEmail"`
	EmergencyPhone       string           `json:"emergencyPhone"`
	Description          string           `json:"description"`
	Weight               float64          `json:"weight"`
	HasValuables         bool             `json:"hasValuables"`
	ValuablesDescription string           `json:"valuablesDescription"`
	SpecialInstructions  string           `json:"specialInstructions"`
	StorageLocation      string           `json:"storageLocation"`
	EstimatedHours       float64          `json:"estimatedHours"`
}

// CheckIn registers luggage against a locker and returns the stored session.
func (m *Manager) CheckIn(ctx context.Context, req CheckInRequest) (model.Session, error) {
	req.normalize()
	if err := req.validate(); err != nil {
		return model.Session{}, err
	}

	quoted, err := fee.Compute(req.EstimatedHours)
	if err != nil {
		return model.Session{}, err
	}

	if req.LockerID != 0 {
		return m.claim(ctx, req.LockerID, req, quoted)
	}

	candidates, err := m.store.ListLockers(ctx)
	if err != nil {
		return model.Session{}, err
	}
	for _, l := range candidates {
		if l.Status != model.LockerAvailable {
			continue
		}
		if req.LockerType != "" && l.Type != req.LockerType {
			continue
		}
		if req.Location != "" && !strings.EqualFold(l.Location, req.Location) {
			continue
		}
		session, err := m.claim(ctx, l.ID, req, quoted)
		if errors.Is(err, apperr.ErrLockerUnavailable) || errors.Is(err, apperr.ErrNotFound) {
			// Taken or removed since the listing; try the next one.
			continue
		}
		return session, err
	}

	if req.LockerType != "" {
		return model.Session{}, fmt.Errorf("no %s locker free: %w", req.LockerType, apperr.ErrNoAvailableLocker)
	}
	return model.Session{}, apperr.ErrNoAvailableLocker
}

// claim occupies one locker and stores the session in a single unit.
func (m *Manager) claim(ctx context.Context, lockerID int64, req CheckInRequest, quoted int64) (model.Session, error) {
	unlock := m.locks.Lock(lockerID)
	defer unlock()

	var (
		locker  model.Locker
		session model.Session
	)
	err := m.store.Atomically(ctx, func(tx store.Store) error {
		var err error
		if locker, err = tx.GetLocker(ctx, lockerID); err != nil {
			return err
		}
		if locker.Status != model.LockerAvailable {
			return fmt.Errorf("locker %s is %s: %w", locker.Number, locker.Status, apperr.ErrLockerUnavailable)
		}
		if err := noActiveSession(ctx, tx, lockerID); err != nil {
			if errors.Is(err, apperr.ErrConflict) {
				return fmt.Errorf("locker %s already holds a session: %w", locker.Number, apperr.ErrLockerUnavailable)
			}
			return err
		}

		if err := tx.SwapLockerStatus(ctx, lockerID, model.LockerAvailable, model.LockerOccupied); err != nil {
			if errors.Is(err, store.ErrStatusChanged) {
				return fmt.Errorf("locker %s was taken: %w", locker.Number, apperr.ErrLockerUnavailable)
			}
			return err
		}

		tag, err := m.uniqueTag(ctx, tx)
		if err != nil {
			return err
		}

		location := req.StorageLocation
		if location == "" {
			location = locker.Location
		}

		session = model.Session{
			ID:                   m.newID(),
			TagNumber:            tag,
			LockerID:             lockerID,
			OwnerName:            req.OwnerName,
			OwnerPhone:           req.OwnerPhone,
			OwnerEmail:           req.OwnerEmail,
			EmergencyPhone:       req.EmergencyPhone,
			Description:          req.Description,
			Weight:               req.Weight,
			HasValuables:         req.HasValuables,
			ValuablesDescription: req.ValuablesDescription,
			SpecialInstructions:  req.SpecialInstructions,
			StorageLocation:      location,
			EstimatedHours:       req.EstimatedHours,
			QuotedFee:            quoted,
			Fee:                  quoted,
			Status:               model.SessionStored,
			CheckInAt:            m.now(),
		}
		if err := tx.PutSession(ctx, &session); err != nil {
			return err
		}

		locker, err = tx.GetLocker(ctx, lockerID)
		return err
	})
	if err != nil {
		return model.Session{}, err
	}

	log.Printf("Checked in %s to locker %s (quoted %d)", session.TagNumber, locker.Number, session.QuotedFee)
	m.publish(events.SessionCheckedIn, &locker, &session, "")
	return session, nil
}

// CheckOut finalizes the session identified by ref (tag number or id),
// recomputing the fee from the actual elapsed time, and frees its locker.
func (m *Manager) CheckOut(ctx context.Context, ref string) (model.Session, error) {
	found, err := m.Get(ctx, ref)
	if err != nil {
		return model.Session{}, err
	}
	if !found.Active() {
		return model.Session{}, fmt.Errorf("session %s: %w", found.TagNumber, apperr.ErrAlreadyCheckedOut)
	}

	unlock := m.locks.Lock(found.LockerID)
	defer unlock()

	var (
		final  model.Session
		locker model.Locker
	)
	err = m.store.Atomically(ctx, func(tx store.Store) error {
		current, err := tx.GetSession(ctx, found.ID)
		if err != nil {
			return err
		}
		final, locker, err = m.release(ctx, tx, current, model.LockerAvailable)
		return err
	})
	if err != nil {
		return model.Session{}, err
	}

	log.Printf("Checked out %s from locker %s after %dh (fee %d, quoted %d)",
		final.TagNumber, locker.Number, final.BilledHours, final.Fee, final.QuotedFee)
	m.publish(events.SessionCheckedOut, &locker, &final, "")
	return final, nil
}

// Get resolves a session by tag number first, then by id.
func (m *Manager) Get(ctx context.Context, ref string) (model.Session, error) {
	session, err := m.store.GetSessionByTag(ctx, ref)
	if err == nil || !errors.Is(err, apperr.ErrNotFound) {
		return session, err
	}
	return m.store.GetSession(ctx, ref)
}

// List returns the sessions matching f, with overdue judged at the current
// clock.
func (m *Manager) List(ctx context.Context, f query.SessionFilter) ([]model.Session, error) {
	sessions, err := m.store.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	return query.FilterSessions(sessions, f, m.now(), m.overdueGrace)
}

// DisplayStatus is the status of s as operators should see it now.
func (m *Manager) DisplayStatus(s model.Session) string {
	return query.DisplayStatus(s, m.now(), m.overdueGrace)
}

// Quote prices an estimated stay.
func (m *Manager) Quote(hours float64) (int64, error) {
	return fee.Compute(hours)
}

// Receipt builds the receipt for the session identified by ref. A stored
// session yields a provisional claim slip priced at the quote.
func (m *Manager) Receipt(ctx context.Context, ref string) (receipt.Receipt, error) {
	session, err := m.Get(ctx, ref)
	if err != nil {
		return receipt.Receipt{}, err
	}
	locker, err := m.store.GetLocker(ctx, session.LockerID)
	if err != nil {
		return receipt.Receipt{}, err
	}
	return receipt.Build(session, locker, m.loc, m.now()), nil
}
