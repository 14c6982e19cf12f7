package facility

import "sync"

// lockSet hands out one mutex per locker id. Entries are dropped once no
// goroutine holds or waits on them.
type lockSet struct {
	mu    sync.Mutex
	locks map[int64]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newLockSet() *lockSet {
	return &lockSet{locks: make(map[int64]*lockEntry)}
}

// Lock blocks until the locker is exclusively held and returns its release.
func (s *lockSet) Lock(id int64) (unlock func()) {
	s.mu.Lock()
	e, ok := s.locks[id]
	if !ok {
		e = &lockEntry{}
		s.locks[id] = e
	}
	e.refs++
	s.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		s.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(s.locks, id)
		}
		s.mu.Unlock()
	}
}
