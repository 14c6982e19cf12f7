package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"luggage-locker-backend/internal/apperr"
	"luggage-locker-backend/internal/model"
)

// memoryData is the unlocked state behind a MemoryStore.
type memoryData struct {
	lockers      map[int64]model.Locker
	sessions     map[string]model.Session
	nextLockerID int64
}

func (d *memoryData) clone() *memoryData {
	c := &memoryData{
		lockers:      make(map[int64]model.Locker, len(d.lockers)),
		sessions:     make(map[string]model.Session, len(d.sessions)),
		nextLockerID: d.nextLockerID,
	}
	for k, v := range d.lockers {
		c.lockers[k] = v
	}
	for k, v := range d.sessions {
		c.sessions[k] = v
	}
	return c
}

// MemoryStore is an in-process Store. Atomically works on a copy that
// replaces the live data only when fn succeeds, so readers never observe a
// half-applied unit.
type MemoryStore struct {
	mu   sync.RWMutex
	data *memoryData
	now  func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: &memoryData{
			lockers:  make(map[int64]model.Locker),
			sessions: make(map[string]model.Session),
		},
		now: time.Now,
	}
}

func (m *MemoryStore) DB() *gorm.DB { return nil }

func (m *MemoryStore) read(fn func(d *memoryData)) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fn(m.data)
}

func (m *MemoryStore) write(ctx context.Context, fn func(tx Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	staged := m.data.clone()
	if err := fn(&memoryTx{data: staged, now: m.now}); err != nil {
		return err
	}
	m.data = staged
	return nil
}

func (m *MemoryStore) GetLocker(ctx context.Context, id int64) (l model.Locker, err error) {
	m.read(func(d *memoryData) { l, err = d.getLocker(id) })
	return
}

func (m *MemoryStore) GetLockerByNumber(ctx context.Context, number string) (l model.Locker, err error) {
	m.read(func(d *memoryData) { l, err = d.getLockerByNumber(number) })
	return
}

func (m *MemoryStore) ListLockers(ctx context.Context) (out []model.Locker, err error) {
	m.read(func(d *memoryData) { out = d.listLockers() })
	return
}

func (m *MemoryStore) PutLocker(ctx context.Context, locker *model.Locker) error {
	return m.write(ctx, func(tx Store) error { return tx.PutLocker(ctx, locker) })
}

func (m *MemoryStore) DeleteLocker(ctx context.Context, id int64) error {
	return m.write(ctx, func(tx Store) error { return tx.DeleteLocker(ctx, id) })
}

func (m *MemoryStore) SwapLockerStatus(ctx context.Context, id int64, from, to model.LockerStatus) error {
	return m.write(ctx, func(tx Store) error { return tx.SwapLockerStatus(ctx, id, from, to) })
}

func (m *MemoryStore) GetSession(ctx context.Context, id string) (s model.Session, err error) {
	m.read(func(d *memoryData) { s, err = d.getSession(id) })
	return
}

func (m *MemoryStore) GetSessionByTag(ctx context.Context, tag string) (s model.Session, err error) {
	m.read(func(d *memoryData) { s, err = d.getSessionByTag(tag) })
	return
}

func (m *MemoryStore) ActiveSessionForLocker(ctx context.Context, lockerID int64) (s model.Session, err error) {
	m.read(func(d *memoryData) { s, err = d.activeSessionForLocker(lockerID) })
	return
}

func (m *MemoryStore) ListSessions(ctx context.Context) (out []model.Session, err error) {
	m.read(func(d *memoryData) { out = d.listSessions(0, 0) })
	return
}

func (m *MemoryStore) ListLockerSessions(ctx context.Context, lockerID int64, limit int) (out []model.Session, err error) {
	m.read(func(d *memoryData) { out = d.listSessions(lockerID, limit) })
	return
}

func (m *MemoryStore) PutSession(ctx context.Context, session *model.Session) error {
	return m.write(ctx, func(tx Store) error { return tx.PutSession(ctx, session) })
}

func (m *MemoryStore) Atomically(ctx context.Context, fn func(tx Store) error) error {
	return m.write(ctx, fn)
}

func (m *MemoryStore) Snapshot(ctx context.Context) (snap Snapshot, err error) {
	m.read(func(d *memoryData) {
		snap.Lockers = d.listLockers()
		snap.Sessions = d.listSessions(0, 0)
	})
	return
}

// memoryTx is the Store handed to Atomically callbacks. The caller already
// holds the write lock.
type memoryTx struct {
	data *memoryData
	now  func() time.Time
}

func (t *memoryTx) DB() *gorm.DB { return nil }

func (t *memoryTx) GetLocker(ctx context.Context, id int64) (model.Locker, error) {
	return t.data.getLocker(id)
}

func (t *memoryTx) GetLockerByNumber(ctx context.Context, number string) (model.Locker, error) {
	return t.data.getLockerByNumber(number)
}

func (t *memoryTx) ListLockers(ctx context.Context) ([]model.Locker, error) {
	return t.data.listLockers(), nil
}

func (t *memoryTx) PutLocker(ctx context.Context, locker *model.Locker) error {
	for id, other := range t.data.lockers {
		if id != locker.ID && other.Number == locker.Number {
			return fmt.Errorf("locker number %q: %w", locker.Number, apperr.ErrConflict)
		}
	}

	now := t.now().UTC()
	if existing, ok := t.data.lockers[locker.ID]; ok {
		locker.Status = existing.Status
		locker.CreatedAt = existing.CreatedAt
	}
	if locker.ID == 0 {
		t.data.nextLockerID++
		locker.ID = t.data.nextLockerID
	} else if locker.ID > t.data.nextLockerID {
		t.data.nextLockerID = locker.ID
	}
	if locker.CreatedAt.IsZero() {
		locker.CreatedAt = now
	}
	locker.UpdatedAt = now
	t.data.lockers[locker.ID] = *locker
	return nil
}

func (t *memoryTx) DeleteLocker(ctx context.Context, id int64) error {
	if _, ok := t.data.lockers[id]; !ok {
		return fmt.Errorf("locker %d: %w", id, apperr.ErrNotFound)
	}
	delete(t.data.lockers, id)
	return nil
}

func (t *memoryTx) SwapLockerStatus(ctx context.Context, id int64, from, to model.LockerStatus) error {
	locker, ok := t.data.lockers[id]
	if !ok || locker.Status != from {
		return fmt.Errorf("locker %d not %s: %w", id, from, ErrStatusChanged)
	}
	locker.Status = to
	locker.UpdatedAt = t.now().UTC()
	t.data.lockers[id] = locker
	return nil
}

func (t *memoryTx) GetSession(ctx context.Context, id string) (model.Session, error) {
	return t.data.getSession(id)
}

func (t *memoryTx) GetSessionByTag(ctx context.Context, tag string) (model.Session, error) {
	return t.data.getSessionByTag(tag)
}

func (t *memoryTx) ActiveSessionForLocker(ctx context.Context, lockerID int64) (model.Session, error) {
	return t.data.activeSessionForLocker(lockerID)
}

func (t *memoryTx) ListSessions(ctx context.Context) ([]model.Session, error) {
	return t.data.listSessions(0, 0), nil
}

func (t *memoryTx) ListLockerSessions(ctx context.Context, lockerID int64, limit int) ([]model.Session, error) {
	return t.data.listSessions(lockerID, limit), nil
}

func (t *memoryTx) PutSession(ctx context.Context, session *model.Session) error {
	for id, other := range t.data.sessions {
		if id != session.ID && other.TagNumber == session.TagNumber {
			return fmt.Errorf("tag %q: %w", session.TagNumber, apperr.ErrConflict)
		}
	}
	now := t.now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now
	t.data.sessions[session.ID] = *session
	return nil
}

func (t *memoryTx) Atomically(ctx context.Context, fn func(tx Store) error) error {
	return fn(t)
}

func (t *memoryTx) Snapshot(ctx context.Context) (Snapshot, error) {
	return Snapshot{Lockers: t.data.listLockers(), Sessions: t.data.listSessions(0, 0)}, nil
}

func (d *memoryData) getLocker(id int64) (model.Locker, error) {
	l, ok := d.lockers[id]
	if !ok {
		return model.Locker{}, fmt.Errorf("locker %d: %w", id, apperr.ErrNotFound)
	}
	return l, nil
}

func (d *memoryData) getLockerByNumber(number string) (model.Locker, error) {
	for _, l := range d.lockers {
		if l.Number == number {
			return l, nil
		}
	}
	return model.Locker{}, fmt.Errorf("locker number %q: %w", number, apperr.ErrNotFound)
}

func (d *memoryData) listLockers() []model.Locker {
	out := make([]model.Locker, 0, len(d.lockers))
	for _, l := range d.lockers {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Number != out[j].Number {
			return out[i].Number < out[j].Number
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (d *memoryData) getSession(id string) (model.Session, error) {
	s, ok := d.sessions[id]
	if !ok {
		return model.Session{}, fmt.Errorf("session %q: %w", id, apperr.ErrNotFound)
	}
	return s, nil
}

func (d *memoryData) getSessionByTag(tag string) (model.Session, error) {
	for _, s := range d.sessions {
		if s.TagNumber == tag {
			return s, nil
		}
	}
	return model.Session{}, fmt.Errorf("tag %q: %w", tag, apperr.ErrNotFound)
}

func (d *memoryData) activeSessionForLocker(lockerID int64) (model.Session, error) {
	for _, s := range d.sessions {
		if s.LockerID == lockerID && s.Active() {
			return s, nil
		}
	}
	return model.Session{}, fmt.Errorf("active session for locker %d: %w", lockerID, apperr.ErrNotFound)
}

// listSessions returns sessions newest first; lockerID 0 means all lockers.
func (d *memoryData) listSessions(lockerID int64, limit int) []model.Session {
	out := make([]model.Session, 0, len(d.sessions))
	for _, s := range d.sessions {
		if lockerID == 0 || s.LockerID == lockerID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CheckInAt.Equal(out[j].CheckInAt) {
			return out[i].CheckInAt.After(out[j].CheckInAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
