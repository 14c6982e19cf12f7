package events

import (
	"sync"
	"time"

	"luggage-locker-backend/internal/model"
)

// Kind names a change to lockers or sessions.
type Kind string

const (
	LockerCreated       Kind = "locker_created"
	LockerUpdated       Kind = "locker_updated"
	LockerDeleted       Kind = "locker_deleted"
	LockerStatusChanged Kind = "locker_status_changed"
	SessionCheckedIn    Kind = "checked_in"
	SessionCheckedOut   Kind = "checked_out"
	SessionOverdue      Kind = "overdue"
)

// Event is published after a change is committed. Session is the full record
// after the change; for checkouts it is the finalized receipt record.
type Event struct {
	Kind    Kind           `json:"kind"`
	At      time.Time      `json:"at"`
	Locker  *model.Locker  `json:"locker,omitempty"`
	Session *model.Session `json:"session,omitempty"`
	Reason  string         `json:"reason,omitempty"`
}

// Handler receives published events. Handlers run on the publisher's
// goroutine and must not block.
type Handler func(Event)

// Bus fans events out to subscribers.
type Bus struct {
	mu   sync.RWMutex
	next int
	subs map[int]Handler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]Handler)}
}

// Subscribe registers h and returns a function that removes it.
func (b *Bus) Subscribe(h Handler) (unsubscribe func()) {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = h
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Publish delivers e to every subscriber before returning, so anything a
// subscriber invalidates is gone by the time the mutating call returns.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs))
	for _, h := range b.subs {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(e)
	}
}
