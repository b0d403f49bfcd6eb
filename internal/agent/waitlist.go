package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/glowstack/studio-automation/internal/gateway"
	"github.com/glowstack/studio-automation/internal/model"
	"github.com/glowstack/studio-automation/internal/store"
)

// Waitlist turns cancellations into filled slots. An offer is marked on the
// entry before the message goes out, so a replayed cancellation webhook can
// never offer the same slot twice.
type Waitlist struct {
	store store.Store
	text  TextCapability
}

func NewWaitlist(s store.Store, text TextCapability) *Waitlist {
	return &Waitlist{store: s, text: text}
}

func (a *Waitlist) Name() model.AgentTag { return model.AgentWaitlist }

func (a *Waitlist) Decide(ctx context.Context, studio *model.Studio, trig Trigger) (*Decision, error) {
	if trig.Kind == TriggerCancellation {
		return a.cancellation(ctx, studio, trig)
	}
	return a.reply(ctx, studio, trig)
}

func (a *Waitlist) cancellation(ctx context.Context, studio *model.Studio, trig Trigger) (*Decision, error) {
	booking, err := a.store.BookingByID(ctx, studio.ID, trig.BookingID)
	if err != nil {
		return nil, err
	}

	offered, err := a.store.HasEvent(ctx, studio.ID, model.ActionWaitlistNotified, "booking_id", booking.ID.String())
	if err != nil {
		return nil, err
	}
	if offered {
		// Replayed webhook and the offer is already out. Nothing to do.
		return &Decision{Agent: model.AgentWaitlist}, nil
	}

	detected, err := a.store.HasEvent(ctx, studio.ID, model.ActionCancellation, "booking_id", booking.ID.String())
	if err != nil {
		return nil, err
	}

	decision := &Decision{
		Agent:       model.AgentWaitlist,
		Transitions: []store.Transition{store.CancelBooking{BookingID: booking.ID}},
	}
	if !detected {
		cancelled := *booking
		cancelled.Status = model.BookingCancelled
		decision.Events = append(decision.Events, model.AgentEvent{
			Agent:    model.AgentWaitlist,
			Action:   model.ActionCancellation,
			Metadata: map[string]any{"booking_id": booking.ID.String(), "service": booking.Service},
		})
		decision.SideEffects = append(decision.SideEffects, SyncBooking{Booking: &cancelled})
	}

	if err := a.offerNext(ctx, studio, booking, decision); err != nil {
		return nil, err
	}
	return decision, nil
}

// offerNext appends the offer to the earliest pending entry. An exhausted
// list is terminal: one gap_unfilled per slot goes in the ledger, whether
// the list was empty at cancellation or ran out through declines.
func (a *Waitlist) offerNext(ctx context.Context, studio *model.Studio, booking *model.Booking, decision *Decision) error {
	entries, err := a.store.PendingWaitlist(ctx, studio.ID, booking.Service)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		unfilled, err := a.store.HasEvent(ctx, studio.ID, model.ActionGapUnfilled, "booking_id", booking.ID.String())
		if err != nil {
			return err
		}
		if !unfilled {
			decision.Events = append(decision.Events, model.AgentEvent{
				Agent:    model.AgentWaitlist,
				Action:   model.ActionGapUnfilled,
				Metadata: map[string]any{"booking_id": booking.ID.String(), "service": booking.Service},
			})
		}
		return nil
	}

	entry := entries[0]
	lead, err := a.store.LeadByID(ctx, studio.ID, entry.LeadID)
	if err != nil {
		return err
	}

	body, err := a.text.Draft(ctx, draftSystemPrompt(studio), offerPrompt(booking, lead))
	if errors.Is(err, gateway.ErrUnavailable) {
		// A slot offer is time-critical. Fall back to plain copy rather
		// than sit on the gap until the drafter comes back.
		body = offerFallback(studio, booking)
		log.Warn().Str("entry_id", entry.ID.String()).Msg("Drafter unavailable, using fallback offer copy")
	} else if err != nil {
		return err
	}

	decision.Transitions = append(decision.Transitions, store.MarkNotified{EntryID: entry.ID})
	decision.Events = append(decision.Events, model.AgentEvent{
		Agent:  model.AgentWaitlist,
		Action: model.ActionWaitlistNotified,
		Metadata: map[string]any{
			"entry_id":   entry.ID.String(),
			"booking_id": booking.ID.String(),
			"service":    booking.Service,
		},
	})
	decision.SideEffects = append(decision.SideEffects, SendMessage{
		To:       lead.Phone,
		Body:     body,
		Action:   model.ActionMessageSent,
		Metadata: map[string]any{"entry_id": entry.ID.String(), "kind": "waitlist_offer"},
	})
	return nil
}

func (a *Waitlist) reply(ctx context.Context, studio *model.Studio, trig Trigger) (*Decision, error) {
	entry, err := a.store.WaitlistEntryByID(ctx, studio.ID, trig.EntryID)
	if err != nil {
		return nil, err
	}
	booking, err := a.store.BookingByID(ctx, studio.ID, trig.BookingID)
	if err != nil {
		return nil, err
	}

	filled, err := a.store.HasEvent(ctx, studio.ID, model.ActionSlotFilled, "booking_id", booking.ID.String())
	if err != nil {
		return nil, err
	}
	if filled {
		claimed, err := a.store.HasEvent(ctx, studio.ID, model.ActionSlotFilled, "entry_id", entry.ID.String())
		if err != nil {
			return nil, err
		}
		if claimed {
			// Replayed acceptance. Same answer, no second booking.
			return &Decision{
				Agent: model.AgentWaitlist,
				Reply: fmt.Sprintf("You're booked for %s on %s. See you then!",
					booking.Service, booking.ScheduledAt.Format("Mon Jan 2 at 3:04 PM")),
			}, nil
		}
		// Someone further down the line already claimed the slot. A late
		// YES must never book it twice.
		return &Decision{
			Agent: model.AgentWaitlist,
			Reply: fmt.Sprintf("So sorry, that %s slot was just taken! We'll keep you on the list for the next opening.",
				booking.Service),
		}, nil
	}

	switch ParseReply(trig.Message) {
	case ReplyYes:
		newBooking := model.Booking{
			LeadID:        entry.LeadID,
			Service:       booking.Service,
			OriginalPrice: a.slotPrice(ctx, studio, booking),
			ScheduledAt:   booking.ScheduledAt,
			Source:        model.SourceWaitlist,
		}
		newBooking.FinalPrice = newBooking.OriginalPrice
		return &Decision{
			Agent: model.AgentWaitlist,
			Transitions: []store.Transition{
				store.CreateBooking{Booking: newBooking},
				store.ConsumeEntry{EntryID: entry.ID},
			},
			Events: []model.AgentEvent{{
				Agent:  model.AgentWaitlist,
				Action: model.ActionSlotFilled,
				Metadata: map[string]any{
					"entry_id":   entry.ID.String(),
					"booking_id": booking.ID.String(),
					"service":    booking.Service,
				},
			}},
			SideEffects: []SideEffect{SyncBooking{Booking: &newBooking}},
			Reply: fmt.Sprintf("Amazing, the %s slot on %s is yours!",
				booking.Service, booking.ScheduledAt.Format("Mon Jan 2 at 3:04 PM")),
		}, nil

	case ReplyNo:
		decision := &Decision{
			Agent: model.AgentWaitlist,
			Events: []model.AgentEvent{{
				Agent:  model.AgentWaitlist,
				Action: model.ActionWaitlistDeclined,
				Metadata: map[string]any{
					"entry_id":   entry.ID.String(),
					"booking_id": booking.ID.String(),
				},
			}},
			Reply: "No worries, we'll keep you on the list for the next opening!",
		}
		// The slot is still open. Move straight down the line.
		if err := a.offerNext(ctx, studio, booking, decision); err != nil {
			return nil, err
		}
		return decision, nil

	default:
		return &Decision{
			Agent: model.AgentWaitlist,
			Events: []model.AgentEvent{{
				Agent:    model.AgentWaitlist,
				Action:   model.ActionAmbiguousReply,
				Metadata: map[string]any{"entry_id": entry.ID.String(), "message": trig.Message},
			}},
			Reply: fmt.Sprintf("A %s slot just opened on %s. Want it? Reply YES or NO.",
				booking.Service, booking.ScheduledAt.Format("Mon Jan 2 at 3:04 PM")),
		}, nil
	}
}

// slotPrice resolves the catalog price for the slot's service, falling back
// to what the cancelled booking was sold at.
func (a *Waitlist) slotPrice(ctx context.Context, studio *model.Studio, booking *model.Booking) float64 {
	services, err := a.store.ServicesForStudio(ctx, studio.ID)
	if err == nil {
		for _, svc := range services {
			if strings.EqualFold(svc.Name, booking.Service) {
				return svc.Price
			}
		}
	}
	return booking.OriginalPrice
}

func offerPrompt(booking *model.Booking, lead *model.Lead) string {
	return fmt.Sprintf(
		"%s is on the waitlist for %s. A slot just opened on %s. "+
			"Tell them the slot is theirs if they want it and ask them to reply YES to grab it or NO to pass.",
		lead.Name, booking.Service, booking.ScheduledAt.Format("Monday Jan 2 at 3:04 PM"))
}

func offerFallback(studio *model.Studio, booking *model.Booking) string {
	return fmt.Sprintf("Good news from %s! A %s slot just opened on %s. Reply YES to grab it or NO to pass.",
		studio.Name, booking.Service, booking.ScheduledAt.Format("Mon Jan 2 at 3:04 PM"))
}
