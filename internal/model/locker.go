package model

import "time"

// LockerType is the size class of a locker.
type LockerType string

const (
	LockerSmall   LockerType = "small"
	LockerMedium  LockerType = "medium"
	LockerLarge   LockerType = "large"
	LockerSpecial LockerType = "special"
)

// Valid reports whether t is one of the known locker types.
func (t LockerType) Valid() bool {
	switch t {
	case LockerSmall, LockerMedium, LockerLarge, LockerSpecial:
		return true
	}
	return false
}

// LockerStatus is the occupancy state of a locker.
type LockerStatus string

const (
	LockerAvailable   LockerStatus = "available"
	LockerOccupied    LockerStatus = "occupied"
	LockerMaintenance LockerStatus = "maintenance"
)

// Valid reports whether s is one of the known locker statuses.
func (s LockerStatus) Valid() bool {
	switch s {
	case LockerAvailable, LockerOccupied, LockerMaintenance:
		return true
	}
	return false
}

// Locker represents a physical storage unit.
type Locker struct {
	ID        int64        `gorm:"primaryKey" json:"id"`
	Number    string       `gorm:"uniqueIndex;size:32;not null" json:"number"`
	Location  string       `gorm:"size:128;not null" json:"location"`
	Type      LockerType   `gorm:"size:16;not null;index" json:"type"`
	Status    LockerStatus `gorm:"size:16;not null;index" json:"status"`
	CreatedAt time.Time    `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time    `gorm:"not null" json:"updatedAt"`
}
