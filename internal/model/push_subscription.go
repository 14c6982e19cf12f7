package model

import "time"

// PushSubscription holds a staff terminal's browser push subscription and
// the lockers it wants "now available" alerts for.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`

	// Associations
	Lockers []*Locker `gorm:"many2many:subscription_locker_mapping;"`
}
