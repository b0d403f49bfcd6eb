package model

import (
	"time"

	"github.com/google/uuid"
)

// BookingStatus moves confirmed -> cancelled or confirmed -> completed, never
// backward.
type BookingStatus string

const (
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
)

// BookingSource records where a booking came from.
type BookingSource string

const (
	SourceInstagram BookingSource = "instagram"
	SourceWeb       BookingSource = "web"
	SourceReferral  BookingSource = "referral"
	SourceWaitlist  BookingSource = "waitlist"
)

// BookingAddOn is an accepted upsell recorded on a booking.
type BookingAddOn struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// Booking is a confirmed appointment. FinalPrice starts equal to
// OriginalPrice and only ever grows, one accepted add-on at a time.
type Booking struct {
	ID            uuid.UUID      `json:"id"`
	StudioID      uuid.UUID      `json:"studio_id"`
	LeadID        uuid.UUID      `json:"lead_id"`
	Service       string         `json:"service"`
	AddOns        []BookingAddOn `json:"add_ons"`
	OriginalPrice float64        `json:"original_price"`
	FinalPrice    float64        `json:"final_price"`
	ScheduledAt   time.Time      `json:"scheduled_at"`
	Status        BookingStatus  `json:"status"`
	Source        BookingSource  `json:"source"`
	CreatedAt     time.Time      `json:"created_at"`
}

// HasAddOn reports whether the named add-on was already accepted.
func (b Booking) HasAddOn(name string) bool {
	for _, a := range b.AddOns {
		if a.Name == name {
			return true
		}
	}
	return false
}

// WaitlistEntry is a lead waiting for a slot to open on a service. Notified
// flips to true before the offer message is sent so that a replayed
// cancellation never offers the same slot twice; Consumed removes the entry
// from future consideration once it accepted a slot.
type WaitlistEntry struct {
	ID          uuid.UUID `json:"id"`
	StudioID    uuid.UUID `json:"studio_id"`
	LeadID      uuid.UUID `json:"lead_id"`
	Service     string    `json:"service"`
	PreferredAt time.Time `json:"preferred_at"`
	Notified    bool      `json:"notified"`
	Consumed    bool      `json:"consumed"`
	CreatedAt   time.Time `json:"created_at"`
}
