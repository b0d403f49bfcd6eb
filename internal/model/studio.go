package model

import (
	"time"

	"github.com/google/uuid"
)

// BrandVoice selects the tone preset used when drafting client-facing text.
type BrandVoice string

const (
	VoiceProfessionalChill BrandVoice = "professional_chill"
	VoiceWarmBubbly        BrandVoice = "warm_bubbly"
	VoiceLuxuryExclusive   BrandVoice = "luxury_exclusive"
)

// DefaultVibeThreshold is the minimum screening score for approval when a
// studio has not configured its own.
const DefaultVibeThreshold = 0.7

// Studio is the tenant. Every other record in the store carries its ID, and
// no read or write may cross studio boundaries.
type Studio struct {
	ID                uuid.UUID  `json:"id"`
	Slug              string     `json:"slug"`
	APIKey            string     `json:"-"`
	Name              string     `json:"name"`
	OwnerName         string     `json:"owner_name"`
	ContactEmail      string     `json:"-"` // Plaintext (transient, not stored in DB)
	EncryptedEmail    []byte     `json:"-"` // Stored in DB
	EmailNonce        []byte     `json:"-"` // Stored in DB
	BrandVoice        BrandVoice `json:"brand_voice"`
	DepositAmount     float64    `json:"deposit_amount"`
	LateFee           float64    `json:"late_fee"`
	CancelWindowHours int        `json:"cancel_window_hours"`
	BookingURL        string     `json:"booking_url"`
	VibeThreshold     float64    `json:"vibe_threshold"`
	CreatedAt         time.Time  `json:"created_at"`
}

// RequiresDeposit reports whether approved leads must confirm the deposit
// policy before receiving the booking link.
func (s Studio) RequiresDeposit() bool { return s.DepositAmount > 0 }

// Threshold returns the studio's screening threshold, falling back to the
// default when unset.
func (s Studio) Threshold() float64 {
	if s.VibeThreshold <= 0 {
		return DefaultVibeThreshold
	}
	return s.VibeThreshold
}

// Service is one bookable offering in a studio's catalog.
type Service struct {
	ID          uuid.UUID `json:"id"`
	StudioID    uuid.UUID `json:"studio_id"`
	Name        string    `json:"name"`
	Price       float64   `json:"price"`
	DurationMin int       `json:"duration_min"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

// AddOn is an optional extra attached to a service, pitched by the upsell
// drafter.
type AddOn struct {
	ID          uuid.UUID `json:"id"`
	ServiceID   uuid.UUID `json:"service_id"`
	StudioID    uuid.UUID `json:"studio_id"`
	Name        string    `json:"name"`
	Price       float64   `json:"price"`
	DurationMin int       `json:"duration_min"`
	Pitch       string    `json:"pitch"`
	CreatedAt   time.Time `json:"created_at"`
}
