package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/glowstack/studio-automation/internal/model"
)

var (
	// ErrStudioNotFound means the tenant identity did not resolve. Fatal to
	// the trigger, never retried.
	ErrStudioNotFound = errors.New("studio not found")

	// ErrNotFound is returned for missing rows inside a resolved studio.
	ErrNotFound = errors.New("record not found")

	// ErrConflict is the optimistic-concurrency failure: the row's state
	// changed between read and write. The router retries the whole
	// decide-and-commit once before surfacing it.
	ErrConflict = errors.New("concurrent modification")
)

// Store is the tenant-partitioned persistence layer. Every method is scoped
// by studio ID; implementations must never let one studio's rows leak into
// another's results. Commit applies a decision's transitions and events in a
// single transaction, or not at all.
type Store interface {
	CreateStudio(ctx context.Context, studio *model.Studio) error
	UpdateStudio(ctx context.Context, studio *model.Studio) error
	StudioByID(ctx context.Context, id uuid.UUID) (*model.Studio, error)
	StudioBySlug(ctx context.Context, slug string) (*model.Studio, error)
	StudioByAPIKey(ctx context.Context, apiKey string) (*model.Studio, error)
	ListStudios(ctx context.Context) ([]model.Studio, error)

	CreateService(ctx context.Context, svc *model.Service) error
	CreateAddOn(ctx context.Context, addon *model.AddOn) error
	ServicesForStudio(ctx context.Context, studioID uuid.UUID) ([]model.Service, error)
	AddOnsForService(ctx context.Context, studioID, serviceID uuid.UUID) ([]model.AddOn, error)
	AddOnsForStudio(ctx context.Context, studioID uuid.UUID) ([]model.AddOn, error)

	LeadByID(ctx context.Context, studioID, id uuid.UUID) (*model.Lead, error)
	PendingLeadByContact(ctx context.Context, studioID uuid.UUID, phone, instagram string) (*model.Lead, error)
	BookingByID(ctx context.Context, studioID, id uuid.UUID) (*model.Booking, error)
	// UpsellCandidates returns confirmed bookings scheduled within the window
	// that have no upsell_sent event yet. The event ledger, not a flag on the
	// booking, is the idempotency authority.
	UpsellCandidates(ctx context.Context, studioID uuid.UUID, now time.Time, window time.Duration) ([]model.Booking, error)

	AddWaitlistEntry(ctx context.Context, entry *model.WaitlistEntry) error
	WaitlistEntryByID(ctx context.Context, studioID, id uuid.UUID) (*model.WaitlistEntry, error)
	// PendingWaitlist returns un-notified, un-consumed entries for a service,
	// earliest preferred time first, entry creation order as tiebreak.
	PendingWaitlist(ctx context.Context, studioID uuid.UUID, service string) ([]model.WaitlistEntry, error)

	AppendEvent(ctx context.Context, event *model.AgentEvent) error
	RecentEvents(ctx context.Context, studioID uuid.UUID, limit int) ([]model.AgentEvent, error)
	// HasEvent reports whether an event with the given action exists whose
	// metadata key equals the given value.
	HasEvent(ctx context.Context, studioID uuid.UUID, action, metaKey, metaValue string) (bool, error)

	Dashboard(ctx context.Context, studioID uuid.UUID) (*model.Dashboard, error)

	Commit(ctx context.Context, studioID uuid.UUID, transitions []Transition, events []model.AgentEvent) error
	Close() error
}

// Transition is one atomic state change proposed by an agent. The set is
// closed: the store knows how to apply each kind with the guard that keeps
// its lifecycle invariant.
type Transition interface{ isTransition() }

// CreateLead inserts a new pending lead.
type CreateLead struct{ Lead model.Lead }

// ScreenLead settles a pending lead. Guard: the lead must still be pending,
// so the score and status land exactly once.
type ScreenLead struct {
	LeadID       uuid.UUID
	Status       model.IntakeStatus
	Score        float64
	Reasoning    string
	Confirmation model.Confirmation
}

// ConfirmLead resolves the deposit sub-state of an approved lead.
// Guard: confirmation must still be awaiting.
type ConfirmLead struct{ LeadID uuid.UUID }

// AcceptAddOn appends an accepted upsell and raises the final price.
// Guard: booking still confirmed and final_price unchanged since read.
type AcceptAddOn struct {
	BookingID  uuid.UUID
	AddOn      model.BookingAddOn
	PriorPrice float64
}

// CancelBooking moves a confirmed booking to cancelled. A booking that is
// already cancelled is left alone (webhook redelivery), but a completed one
// conflicts.
type CancelBooking struct{ BookingID uuid.UUID }

// MarkNotified flips a waitlist entry's notified flag. Guard: it must not be
// notified yet; committing this before the send is what makes offer retries
// safe.
type MarkNotified struct{ EntryID uuid.UUID }

// ConsumeEntry removes a waitlist entry from future consideration.
type ConsumeEntry struct{ EntryID uuid.UUID }

// CreateBooking inserts a new confirmed booking.
type CreateBooking struct{ Booking model.Booking }

func (CreateLead) isTransition()    {}
func (ScreenLead) isTransition()    {}
func (ConfirmLead) isTransition()   {}
func (AcceptAddOn) isTransition()   {}
func (CancelBooking) isTransition() {}
func (MarkNotified) isTransition()  {}
func (ConsumeEntry) isTransition()  {}
func (CreateBooking) isTransition() {}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify turns "Nails by Nina" into "nails-by-nina".
func Slugify(name string) string {
	slug := strings.Trim(slugPattern.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if slug == "" {
		return "studio"
	}
	return slug
}

// NewAPIKey returns a random hex key for a freshly created studio.
func NewAPIKey() string {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		panic(err) // crypto/rand failure is not recoverable
	}
	return hex.EncodeToString(buf)
}

func slugSuffix() string {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}
