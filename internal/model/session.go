package model

import "time"

// SessionStatus is the persisted lifecycle state of a storage session.
type SessionStatus string

const (
	SessionStored     SessionStatus = "stored"
	SessionCheckedOut SessionStatus = "checked-out"
)

// Session is one luggage check-in/check-out record. Sessions are never
// deleted; checked-out sessions stay as receipt history.
type Session struct {
	ID                   string        `gorm:"primaryKey;size:36" json:"id"`
	TagNumber            string        `gorm:"uniqueIndex;size:32;not null" json:"tagNumber"`
	LockerID             int64         `gorm:"index;not null" json:"lockerId"`
	OwnerName            string        `gorm:"size:128;not null" json:"ownerName"`
	OwnerPhone           string        `gorm:"size:32;not null" json:"ownerPhone"`
	OwnerEmail           string        `gorm:"size:256;not null" json:"ownerEmail"`
	EmergencyPhone       string        `gorm:"size:32" json:"emergencyPhone,omitempty"`
	Description          string        `gorm:"size:1024;not null" json:"description"`
	Weight               float64       `gorm:"not null" json:"weight"`
	HasValuables         bool          `gorm:"not null" json:"hasValuables"`
	ValuablesDescription string        `gorm:"size:1024" json:"valuablesDescription,omitempty"`
	SpecialInstructions  string        `gorm:"size:1024" json:"specialInstructions,omitempty"`
	StorageLocation      string        `gorm:"size:128;not null" json:"storageLocation"`
	EstimatedHours       float64       `gorm:"not null" json:"estimatedHours"`
	QuotedFee            int64         `gorm:"not null" json:"quotedFee"`
	Fee                  int64         `gorm:"not null" json:"fee"`
	BilledHours          int           `json:"billedHours,omitempty"`
	Status               SessionStatus `gorm:"size:16;not null;index" json:"status"`
	CheckInAt            time.Time     `gorm:"not null;index" json:"checkInAt"`
	CheckOutAt           *time.Time    `json:"checkOutAt,omitempty"`
	CreatedAt            time.Time     `gorm:"not null" json:"createdAt"`
	UpdatedAt            time.Time     `gorm:"not null" json:"updatedAt"`
}

// Active reports whether the session still holds its locker.
func (s Session) Active() bool {
	return s.Status == SessionStored
}
