// Package receipt turns a finalized session into the customer receipt, as
// JSON, plain text and PDF, and emails it after checkout.
package receipt

import (
	"fmt"
	"strings"
	"time"

	"luggage-locker-backend/internal/model"
)

// Currency is the ISO code printed next to amounts.
const Currency = "INR"

const timeLayout = "02 Jan 2006 15:04 MST"

// Receipt is the customer-facing record of one session. For a session that
// is still stored it is a provisional receipt showing the quoted fee.
type Receipt struct {
	TagNumber            string     `json:"tagNumber"`
	SessionID            string     `json:"sessionId"`
	Final                bool       `json:"final"`
	IssuedAt             time.Time  `json:"issuedAt"`
	LockerNumber         string     `json:"lockerNumber"`
	LockerLocation       string     `json:"lockerLocation"`
	StorageLocation      string     `json:"storageLocation"`
	OwnerName            string     `json:"ownerName"`
	OwnerPhone           string     `json:"ownerPhone"`
	OwnerEmail           string     `json:"ownerEmail"`
	Description          string     `json:"description"`
	Weight               float64    `json:"weight"`
	HasValuables         bool       `json:"hasValuables"`
	ValuablesDescription string     `json:"valuablesDescription,omitempty"`
	CheckInAt            time.Time  `json:"checkInAt"`
	CheckOutAt           *time.Time `json:"checkOutAt,omitempty"`
	EstimatedHours       float64    `json:"estimatedHours"`
	BilledHours          int        `json:"billedHours,omitempty"`
	QuotedFee            int64      `json:"quotedFee"`
	Fee                  int64      `json:"fee"`
	Currency             string     `json:"currency"`
}

// Build assembles the receipt for s stored in l. Times are shown in loc.
func Build(s model.Session, l model.Locker, loc *time.Location, issuedAt time.Time) Receipt {
	if loc == nil {
		loc = time.UTC
	}
	r := Receipt{
		TagNumber:            s.TagNumber,
		SessionID:            s.ID,
		Final:                s.Status == model.SessionCheckedOut,
		IssuedAt:             issuedAt.In(loc),
		LockerNumber:         l.Number,
		LockerLocation:       l.Location,
		StorageLocation:      s.StorageLocation,
		OwnerName:            s.OwnerName,
		OwnerPhone:           s.OwnerPhone,
		OwnerEmail:           s.OwnerEmail,
		Description:          s.Description,
		Weight:               s.Weight,
		HasValuables:         s.HasValuables,
		ValuablesDescription: s.ValuablesDescription,
		CheckInAt:            s.CheckInAt.In(loc),
		EstimatedHours:       s.EstimatedHours,
		BilledHours:          s.BilledHours,
		QuotedFee:            s.QuotedFee,
		Fee:                  s.Fee,
		Currency:             Currency,
	}
	if s.CheckOutAt != nil {
		out := s.CheckOutAt.In(loc)
		r.CheckOutAt = &out
	}
	return r
}

// Lines returns the receipt body as label/value pairs in print order.
func (r Receipt) Lines() [][2]string {
	lines := [][2]string{
		{"Tag number", r.TagNumber},
		{"Locker", fmt.Sprintf("%s (%s)", r.LockerNumber, r.LockerLocation)},
		{"Storage location", r.StorageLocation},
		{"Owner", r.OwnerName},
		{"Phone", r.OwnerPhone},
		{"Email", r.OwnerEmail},
		{"Luggage", r.Description},
		{"Weight", fmt.Sprintf("%g kg", r.Weight)},
	}
	if r.HasValuables {
		lines = append(lines, [2]string{"Valuables", r.ValuablesDescription})
	}
	lines = append(lines,
		[2]string{"Checked in", r.CheckInAt.Format(timeLayout)},
		[2]string{"Estimated stay", fmt.Sprintf("%g h", r.EstimatedHours)},
	)
	if r.CheckOutAt != nil {
		lines = append(lines,
			[2]string{"Checked out", r.CheckOutAt.Format(timeLayout)},
			[2]string{"Billed duration", fmt.Sprintf("%d h", r.BilledHours)},
		)
	}
	lines = append(lines, [2]string{"Quoted fee", formatAmount(r.QuotedFee)})
	if r.Final {
		lines = append(lines, [2]string{"Total paid", formatAmount(r.Fee)})
	}
	return lines
}

// Text renders the receipt as plain text.
func (r Receipt) Text() string {
	var b strings.Builder
	if r.Final {
		b.WriteString("Luggage storage receipt\n\n")
	} else {
		b.WriteString("Luggage storage claim slip\n\n")
	}
	for _, l := range r.Lines() {
		fmt.Fprintf(&b, "%-17s %s\n", l[0]+":", l[1])
	}
	return b.String()
}

func formatAmount(amount int64) string {
	return fmt.Sprintf("%s %d", Currency, amount)
}
