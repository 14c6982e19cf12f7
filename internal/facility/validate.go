package facility

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"luggage-locker-backend/internal/apperr"
	"luggage-locker-backend/internal/model"
)

// MaxEstimatedHours caps the duration a customer may declare at check-in.
const MaxEstimatedHours = 720

var (
	phoneRe = regexp.MustCompile(`^\+?[\d\s\-\(\)]+$`)
	emailRe = regexp.MustCompile(`^\S+@\S+\.\S+$`)
)

// normalize trims the free-text fields in place.
func (r *CheckInRequest) normalize() {
	for _, f := range []*string{
		&r.OwnerName, &r.OwnerPhone, &r.OwnerEmail, &r.EmergencyPhone, &r.Description,
		&r.ValuablesDescription, &r.SpecialInstructions, &r.StorageLocation, &r.Location,
	} {
		*f = strings.TrimSpace(*f)
	}
	r.LockerType = model.LockerType(strings.ToLower(strings.TrimSpace(string(r.LockerType))))
}

// validate reports every malformed or missing field at once.
func (r *CheckInRequest) validate() error {
	ve := apperr.NewValidationError()

	if r.OwnerName == "" {
		ve.Add("ownerName", "owner name is required")
	}

	switch {
	case r.OwnerPhone == "":
		ve.Add("ownerPhone", "phone number is required")
	case !phoneRe.MatchString(r.OwnerPhone):
		ve.Add("ownerPhone", "phone number is invalid")
	}

	switch {
	case r.OwnerEmail == "":
		ve.Add("ownerEmail", "email is required")
	case !emailRe.MatchString(r.OwnerEmail):
		ve.Add("ownerEmail", "email is invalid")
	}

	if r.EmergencyPhone != "" && !phoneRe.MatchString(r.EmergencyPhone) {
		ve.Add("emergencyPhone", "emergency phone number is invalid")
	}

	if r.Description == "" {
		ve.Add("description", "luggage description is required")
	}

	if math.IsNaN(r.Weight) || math.IsInf(r.Weight, 0) || r.Weight <= 0 {
		ve.Add("weight", "weight must be greater than zero")
	}

	if r.HasValuables && r.ValuablesDescription == "" {
		ve.Add("valuablesDescription", "describe the valuables")
	}

	switch {
	case math.IsNaN(r.EstimatedHours) || math.IsInf(r.EstimatedHours, 0) || r.EstimatedHours <= 0:
		ve.Add("estimatedHours", "estimated duration must be a positive number of hours")
	case r.EstimatedHours > MaxEstimatedHours:
		ve.Add("estimatedHours", fmt.Sprintf("estimated duration must be at most %d hours", MaxEstimatedHours))
	}

	if r.LockerType != "" && !r.LockerType.Valid() {
		ve.Add("lockerType", "unknown locker type")
	}

	if r.LockerID < 0 {
		ve.Add("lockerId", "locker id is invalid")
	}

	return ve.OrNil()
}

// normalize trims the locker input and lowercases its type.
func (in *LockerInput) normalize() {
	in.Number = strings.TrimSpace(in.Number)
	in.Location = strings.TrimSpace(in.Location)
	in.Type = model.LockerType(strings.ToLower(strings.TrimSpace(string(in.Type))))
}

func (in *LockerInput) validate() error {
	ve := apperr.NewValidationError()
	if in.Number == "" {
		ve.Add("number", "locker number is required")
	}
	if !in.Type.Valid() {
		ve.Add("type", "unknown locker type")
	}
	return ve.OrNil()
}
