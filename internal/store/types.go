package store

import (
	"errors"

	"luggage-locker-backend/internal/model"
)

// ErrStatusChanged is returned by SwapLockerStatus when the locker was not in
// the expected status, i.e. another writer got there first.
var ErrStatusChanged = errors.New("locker status changed concurrently")

// Snapshot is a consistent view of every locker and session at one instant.
type Snapshot struct {
	Lockers  []model.Locker
	Sessions []model.Session
}
