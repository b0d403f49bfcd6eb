package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/glowstack/studio-automation/internal/model"
)

// MemoryStore is an in-memory Store with the same guard semantics as the
// Postgres one. It backs the test suites and local development without a
// database.
type MemoryStore struct {
	mu       sync.Mutex
	studios  map[uuid.UUID]*model.Studio
	services map[uuid.UUID]*model.Service
	addons   map[uuid.UUID]*model.AddOn
	leads    map[uuid.UUID]*model.Lead
	bookings map[uuid.UUID]*model.Booking
	waitlist map[uuid.UUID]*model.WaitlistEntry
	events   []model.AgentEvent
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		studios:  make(map[uuid.UUID]*model.Studio),
		services: make(map[uuid.UUID]*model.Service),
		addons:   make(map[uuid.UUID]*model.AddOn),
		leads:    make(map[uuid.UUID]*model.Lead),
		bookings: make(map[uuid.UUID]*model.Booking),
		waitlist: make(map[uuid.UUID]*model.WaitlistEntry),
	}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) CreateStudio(_ context.Context, studio *model.Studio) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	studio.ID = uuid.New()
	studio.CreatedAt = time.Now().UTC()
	if studio.APIKey == "" {
		studio.APIKey = NewAPIKey()
	}
	if studio.BrandVoice == "" {
		studio.BrandVoice = model.VoiceProfessionalChill
	}
	slug := Slugify(studio.Name)
	for _, other := range s.studios {
		if other.Slug == slug {
			slug = slug + "-" + slugSuffix()
			break
		}
	}
	studio.Slug = slug

	clone := *studio
	s.studios[studio.ID] = &clone
	return nil
}

func (s *MemoryStore) UpdateStudio(_ context.Context, studio *model.Studio) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.studios[studio.ID]
	if !ok {
		return ErrStudioNotFound
	}
	clone := *studio
	clone.Slug = existing.Slug
	clone.APIKey = existing.APIKey
	clone.CreatedAt = existing.CreatedAt
	s.studios[studio.ID] = &clone
	return nil
}

func (s *MemoryStore) StudioByID(_ context.Context, id uuid.UUID) (*model.Studio, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	studio, ok := s.studios[id]
	if !ok {
		return nil, ErrStudioNotFound
	}
	clone := *studio
	return &clone, nil
}

func (s *MemoryStore) StudioBySlug(_ context.Context, slug string) (*model.Studio, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, studio := range s.studios {
		if studio.Slug == slug {
			clone := *studio
			return &clone, nil
		}
	}
	return nil, ErrStudioNotFound
}

func (s *MemoryStore) StudioByAPIKey(_ context.Context, apiKey string) (*model.Studio, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, studio := range s.studios {
		if studio.APIKey == apiKey {
			clone := *studio
			return &clone, nil
		}
	}
	return nil, ErrStudioNotFound
}

func (s *MemoryStore) ListStudios(_ context.Context) ([]model.Studio, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	studios := make([]model.Studio, 0, len(s.studios))
	for _, studio := range s.studios {
		studios = append(studios, *studio)
	}
	sort.Slice(studios, func(i, j int) bool {
		return studios[i].CreatedAt.Before(studios[j].CreatedAt)
	})
	return studios, nil
}

func (s *MemoryStore) CreateService(_ context.Context, svc *model.Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc.ID = uuid.New()
	svc.Active = true
	svc.CreatedAt = time.Now().UTC()
	clone := *svc
	s.services[svc.ID] = &clone
	return nil
}

func (s *MemoryStore) CreateAddOn(_ context.Context, addon *model.AddOn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	addon.ID = uuid.New()
	addon.CreatedAt = time.Now().UTC()
	clone := *addon
	s.addons[addon.ID] = &clone
	return nil
}

func (s *MemoryStore) ServicesForStudio(_ context.Context, studioID uuid.UUID) ([]model.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var services []model.Service
	for _, svc := range s.services {
		if svc.StudioID == studioID && svc.Active {
			services = append(services, *svc)
		}
	}
	sort.Slice(services, func(i, j int) bool {
		return services[i].CreatedAt.Before(services[j].CreatedAt)
	})
	return services, nil
}

func (s *MemoryStore) addOnsWhere(studioID uuid.UUID, match func(*model.AddOn) bool) []model.AddOn {
	var addons []model.AddOn
	for _, a := range s.addons {
		if a.StudioID == studioID && match(a) {
			addons = append(addons, *a)
		}
	}
	sort.Slice(addons, func(i, j int) bool {
		if addons[i].Price != addons[j].Price {
			return addons[i].Price > addons[j].Price
		}
		return addons[i].CreatedAt.Before(addons[j].CreatedAt)
	})
	return addons
}

func (s *MemoryStore) AddOnsForService(_ context.Context, studioID, serviceID uuid.UUID) ([]model.AddOn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addOnsWhere(studioID, func(a *model.AddOn) bool { return a.ServiceID == serviceID }), nil
}

func (s *MemoryStore) AddOnsForStudio(_ context.Context, studioID uuid.UUID) ([]model.AddOn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addOnsWhere(studioID, func(*model.AddOn) bool { return true }), nil
}

func (s *MemoryStore) LeadByID(_ context.Context, studioID, id uuid.UUID) (*model.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.leads[id]
	if !ok || lead.StudioID != studioID {
		return nil, ErrNotFound
	}
	clone := *lead
	return &clone, nil
}

func (s *MemoryStore) PendingLeadByContact(_ context.Context, studioID uuid.UUID, phone, instagram string) (*model.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var newest *model.Lead
	for _, lead := range s.leads {
		if lead.StudioID != studioID || lead.IntakeStatus != model.IntakePending {
			continue
		}
		phoneMatch := phone != "" && lead.Phone == phone
		handleMatch := instagram != "" && lead.Instagram == instagram
		if !phoneMatch && !handleMatch {
			continue
		}
		if newest == nil || lead.CreatedAt.After(newest.CreatedAt) {
			newest = lead
		}
	}
	if newest == nil {
		return nil, ErrNotFound
	}
	clone := *newest
	return &clone, nil
}

func (s *MemoryStore) BookingByID(_ context.Context, studioID, id uuid.UUID) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	booking, ok := s.bookings[id]
	if !ok || booking.StudioID != studioID {
		return nil, ErrNotFound
	}
	return cloneBooking(booking), nil
}

func cloneBooking(b *model.Booking) *model.Booking {
	clone := *b
	clone.AddOns = append([]model.BookingAddOn(nil), b.AddOns...)
	return &clone
}

func (s *MemoryStore) UpsellCandidates(_ context.Context, studioID uuid.UUID, now time.Time, window time.Duration) ([]model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var bookings []model.Booking
	for _, b := range s.bookings {
		if b.StudioID != studioID || b.Status != model.BookingConfirmed {
			continue
		}
		if b.ScheduledAt.Before(now) || b.ScheduledAt.After(now.Add(window)) {
			continue
		}
		if s.hasEventLocked(studioID, model.ActionUpsellSent, "booking_id", b.ID.String()) {
			continue
		}
		bookings = append(bookings, *cloneBooking(b))
	}
	sort.Slice(bookings, func(i, j int) bool {
		return bookings[i].ScheduledAt.Before(bookings[j].ScheduledAt)
	})
	return bookings, nil
}

func (s *MemoryStore) AddWaitlistEntry(_ context.Context, entry *model.WaitlistEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = uuid.New()
	entry.CreatedAt = time.Now().UTC()
	entry.Notified = false
	entry.Consumed = false
	clone := *entry
	s.waitlist[entry.ID] = &clone
	return nil
}

func (s *MemoryStore) WaitlistEntryByID(_ context.Context, studioID, id uuid.UUID) (*model.WaitlistEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.waitlist[id]
	if !ok || entry.StudioID != studioID {
		return nil, ErrNotFound
	}
	clone := *entry
	return &clone, nil
}

func (s *MemoryStore) PendingWaitlist(_ context.Context, studioID uuid.UUID, service string) ([]model.WaitlistEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var entries []model.WaitlistEntry
	for _, e := range s.waitlist {
		if e.StudioID == studioID && e.Service == service && !e.Notified && !e.Consumed {
			entries = append(entries, *e)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].PreferredAt.Equal(entries[j].PreferredAt) {
			return entries[i].PreferredAt.Before(entries[j].PreferredAt)
		}
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	return entries, nil
}

func (s *MemoryStore) AppendEvent(_ context.Context, event *model.AgentEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendEventLocked(event)
	return nil
}

func (s *MemoryStore) appendEventLocked(event *model.AgentEvent) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	s.events = append(s.events, *event)
}

func (s *MemoryStore) RecentEvents(_ context.Context, studioID uuid.UUID, limit int) ([]model.AgentEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var events []model.AgentEvent
	for i := len(s.events) - 1; i >= 0 && len(events) < limit; i-- {
		if s.events[i].StudioID == studioID {
			events = append(events, s.events[i])
		}
	}
	return events, nil
}

func (s *MemoryStore) hasEventLocked(studioID uuid.UUID, action, metaKey, metaValue string) bool {
	for i := range s.events {
		e := &s.events[i]
		if e.StudioID != studioID || e.Action != action {
			continue
		}
		if v, ok := e.Metadata[metaKey]; ok && fmt.Sprintf("%v", v) == metaValue {
			return true
		}
	}
	return false
}

func (s *MemoryStore) HasEvent(_ context.Context, studioID uuid.UUID, action, metaKey, metaValue string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasEventLocked(studioID, action, metaKey, metaValue), nil
}

func (s *MemoryStore) Dashboard(_ context.Context, studioID uuid.UUID) (*model.Dashboard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := &model.Dashboard{}
	for _, b := range s.bookings {
		if b.StudioID == studioID {
			d.FoundMoney += b.FinalPrice - b.OriginalPrice
		}
	}
	for _, l := range s.leads {
		if l.StudioID != studioID {
			continue
		}
		switch l.IntakeStatus {
		case model.IntakeApproved:
			d.LeadsApproved++
		case model.IntakeDeclined:
			d.LeadsFiltered++
		}
	}
	for i := range s.events {
		e := &s.events[i]
		if e.StudioID != studioID {
			continue
		}
		switch e.Action {
		case model.ActionLeadScreened:
			d.Screens++
		case model.ActionUpsellSent:
			d.UpsellsSent++
		case model.ActionUpsellAccepted:
			d.UpsellsWon++
		case model.ActionSlotFilled:
			d.GapFills++
		}
	}
	if settled := d.LeadsApproved + d.LeadsFiltered; settled > 0 {
		d.ConversionRate = float64(d.LeadsApproved) / float64(settled)
	}
	return d, nil
}

// Commit applies all transitions under one lock acquisition and rolls back
// every mutation on the first guard miss, mirroring the database transaction.
func (s *MemoryStore) Commit(_ context.Context, studioID uuid.UUID, transitions []Transition, events []model.AgentEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	undo := s.snapshotLocked()
	for _, t := range transitions {
		if err := s.applyLocked(studioID, t); err != nil {
			s.restoreLocked(undo)
			return err
		}
	}
	for i := range events {
		events[i].StudioID = studioID
		s.appendEventLocked(&events[i])
	}
	return nil
}

type memorySnapshot struct {
	leads    map[uuid.UUID]*model.Lead
	bookings map[uuid.UUID]*model.Booking
	waitlist map[uuid.UUID]*model.WaitlistEntry
	events   int
}

func (s *MemoryStore) snapshotLocked() memorySnapshot {
	snap := memorySnapshot{
		leads:    make(map[uuid.UUID]*model.Lead, len(s.leads)),
		bookings: make(map[uuid.UUID]*model.Booking, len(s.bookings)),
		waitlist: make(map[uuid.UUID]*model.WaitlistEntry, len(s.waitlist)),
		events:   len(s.events),
	}
	for id, l := range s.leads {
		clone := *l
		snap.leads[id] = &clone
	}
	for id, b := range s.bookings {
		snap.bookings[id] = cloneBooking(b)
	}
	for id, e := range s.waitlist {
		clone := *e
		snap.waitlist[id] = &clone
	}
	return snap
}

func (s *MemoryStore) restoreLocked(snap memorySnapshot) {
	s.leads = snap.leads
	s.bookings = snap.bookings
	s.waitlist = snap.waitlist
	s.events = s.events[:snap.events]
}

func (s *MemoryStore) applyLocked(studioID uuid.UUID, t Transition) error {
	switch tr := t.(type) {
	case CreateLead:
		lead := tr.Lead
		if lead.ID == uuid.Nil {
			lead.ID = uuid.New()
		}
		lead.StudioID = studioID
		if lead.IntakeStatus == "" {
			lead.IntakeStatus = model.IntakePending
		}
		if lead.Confirmation == "" {
			lead.Confirmation = model.ConfirmationNone
		}
		if lead.CreatedAt.IsZero() {
			lead.CreatedAt = time.Now().UTC()
		}
		lead.Version = 1
		s.leads[lead.ID] = &lead
		return nil

	case ScreenLead:
		lead, ok := s.leads[tr.LeadID]
		if !ok || lead.StudioID != studioID || lead.IntakeStatus != model.IntakePending {
			return ErrConflict
		}
		lead.IntakeStatus = tr.Status
		lead.VibeScore = tr.Score
		lead.Reasoning = tr.Reasoning
		lead.Confirmation = tr.Confirmation
		lead.Version++
		return nil

	case ConfirmLead:
		lead, ok := s.leads[tr.LeadID]
		if !ok || lead.StudioID != studioID ||
			lead.IntakeStatus != model.IntakeApproved ||
			lead.Confirmation != model.ConfirmationAwaiting {
			return ErrConflict
		}
		lead.Confirmation = model.ConfirmationDone
		lead.Version++
		return nil

	case AcceptAddOn:
		booking, ok := s.bookings[tr.BookingID]
		if !ok || booking.StudioID != studioID ||
			booking.Status != model.BookingConfirmed ||
			booking.FinalPrice != tr.PriorPrice {
			return ErrConflict
		}
		booking.AddOns = append(booking.AddOns, tr.AddOn)
		booking.FinalPrice += tr.AddOn.Price
		return nil

	case CancelBooking:
		booking, ok := s.bookings[tr.BookingID]
		if !ok || booking.StudioID != studioID {
			return ErrNotFound
		}
		switch booking.Status {
		case model.BookingConfirmed:
			booking.Status = model.BookingCancelled
			return nil
		case model.BookingCancelled:
			return nil
		default:
			return ErrConflict
		}

	case MarkNotified:
		entry, ok := s.waitlist[tr.EntryID]
		if !ok || entry.StudioID != studioID || entry.Notified {
			return ErrConflict
		}
		entry.Notified = true
		return nil

	case ConsumeEntry:
		if entry, ok := s.waitlist[tr.EntryID]; ok && entry.StudioID == studioID {
			entry.Consumed = true
		}
		return nil

	case CreateBooking:
		booking := tr.Booking
		if booking.ID == uuid.Nil {
			booking.ID = uuid.New()
		}
		booking.StudioID = studioID
		if booking.Status == "" {
			booking.Status = model.BookingConfirmed
		}
		if booking.CreatedAt.IsZero() {
			booking.CreatedAt = time.Now().UTC()
		}
		s.bookings[booking.ID] = cloneBooking(&booking)
		return nil

	default:
		return fmt.Errorf("unknown transition %T", t)
	}
}
