package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/glowstack/studio-automation/internal/gateway"
	"github.com/glowstack/studio-automation/internal/model"
	"github.com/glowstack/studio-automation/internal/store"
)

// UpsellWindow is how far ahead of the appointment the drafter pitches.
const UpsellWindow = 24 * time.Hour

// Upsell pitches one add-on to clients with an appointment inside the
// window, then books the add-on when they say yes. The event ledger is the
// only record of which bookings were already pitched.
type Upsell struct {
	store store.Store
	text  TextCapability
}

func NewUpsell(s store.Store, text TextCapability) *Upsell {
	return &Upsell{store: s, text: text}
}

func (a *Upsell) Name() model.AgentTag { return model.AgentUpsell }

func (a *Upsell) Decide(ctx context.Context, studio *model.Studio, trig Trigger) (*Decision, error) {
	if trig.Kind == TriggerTick {
		return a.sweep(ctx, studio, trig)
	}
	return a.reply(ctx, studio, trig)
}

func (a *Upsell) sweep(ctx context.Context, studio *model.Studio, trig Trigger) (*Decision, error) {
	candidates, err := a.store.UpsellCandidates(ctx, studio.ID, trig.Now, UpsellWindow)
	if err != nil {
		return nil, err
	}

	decision := &Decision{Agent: model.AgentUpsell}
	for i := range candidates {
		booking := &candidates[i]
		addon, err := a.pickAddOn(ctx, studio, booking)
		if err != nil {
			return nil, err
		}
		if addon == nil {
			continue
		}

		lead, err := a.store.LeadByID(ctx, studio.ID, booking.LeadID)
		if err != nil {
			log.Warn().Err(err).Str("booking_id", booking.ID.String()).Msg("Skipping upsell, lead unavailable")
			continue
		}

		pitch, err := a.text.Draft(ctx, draftSystemPrompt(studio), upsellPrompt(studio, booking, addon, lead))
		if errors.Is(err, gateway.ErrUnavailable) {
			// Unpitched bookings stay candidates; the next tick picks them up.
			decision.Events = append(decision.Events, model.AgentEvent{
				Agent:    model.AgentUpsell,
				Action:   model.ActionAgentUnavailable,
				Metadata: map[string]any{"booking_id": booking.ID.String(), "reason": err.Error()},
			})
			return decision, nil
		}
		if err != nil {
			return nil, err
		}

		decision.Events = append(decision.Events, model.AgentEvent{
			Agent:  model.AgentUpsell,
			Action: model.ActionUpsellSent,
			Metadata: map[string]any{
				"booking_id": booking.ID.String(),
				"addon":      addon.Name,
				"price":      addon.Price,
			},
		})
		decision.SideEffects = append(decision.SideEffects, SendMessage{
			To:       lead.Phone,
			Body:     pitch,
			Action:   model.ActionMessageSent,
			Metadata: map[string]any{"booking_id": booking.ID.String(), "kind": "upsell_pitch"},
		})
	}
	return decision, nil
}

func (a *Upsell) reply(ctx context.Context, studio *model.Studio, trig Trigger) (*Decision, error) {
	booking, err := a.store.BookingByID(ctx, studio.ID, trig.BookingID)
	if err != nil {
		return nil, err
	}

	accepted, err := a.store.HasEvent(ctx, studio.ID, model.ActionUpsellAccepted, "booking_id", booking.ID.String())
	if err != nil {
		return nil, err
	}
	if accepted {
		// Replayed yes. Same answer, no second charge.
		return &Decision{
			Agent: model.AgentUpsell,
			Reply: fmt.Sprintf("You're all set! Your updated total is $%.0f.", booking.FinalPrice),
		}, nil
	}

	addon, err := a.pickAddOn(ctx, studio, booking)
	if err != nil {
		return nil, err
	}
	if addon == nil {
		return &Decision{
			Agent: model.AgentUpsell,
			Reply: "You're all set for your appointment! See you soon.",
		}, nil
	}

	switch ParseReply(trig.Message) {
	case ReplyYes:
		updated := *booking
		updated.AddOns = append(append([]model.BookingAddOn(nil), booking.AddOns...),
			model.BookingAddOn{Name: addon.Name, Price: addon.Price})
		updated.FinalPrice += addon.Price
		return &Decision{
			Agent: model.AgentUpsell,
			Transitions: []store.Transition{store.AcceptAddOn{
				BookingID:  booking.ID,
				AddOn:      model.BookingAddOn{Name: addon.Name, Price: addon.Price},
				PriorPrice: booking.FinalPrice,
			}},
			Events: []model.AgentEvent{{
				Agent:  model.AgentUpsell,
				Action: model.ActionUpsellAccepted,
				Metadata: map[string]any{
					"booking_id": booking.ID.String(),
					"addon":      addon.Name,
					"price":      addon.Price,
				},
			}},
			SideEffects: []SideEffect{SyncBooking{Booking: &updated}},
			Reply:       fmt.Sprintf("Love it! %s added. Your new total is $%.0f. See you soon!", addon.Name, updated.FinalPrice),
		}, nil
	case ReplyNo:
		return &Decision{
			Agent: model.AgentUpsell,
			Events: []model.AgentEvent{{
				Agent:    model.AgentUpsell,
				Action:   model.ActionUpsellDeclined,
				Metadata: map[string]any{"booking_id": booking.ID.String(), "addon": addon.Name},
			}},
			Reply: "No problem at all! Everything's set for your appointment.",
		}, nil
	default:
		return &Decision{
			Agent: model.AgentUpsell,
			Events: []model.AgentEvent{{
				Agent:    model.AgentUpsell,
				Action:   model.ActionAmbiguousReply,
				Metadata: map[string]any{"booking_id": booking.ID.String(), "message": trig.Message},
			}},
			Reply: fmt.Sprintf("Quick check: want to add %s for $%.0f? Reply YES or NO.", addon.Name, addon.Price),
		}, nil
	}
}

// pickAddOn returns the highest-priced add-on for the booking's service that
// isn't already on it. Deterministic, so the reply flow resolves the same
// offer the sweep pitched.
func (a *Upsell) pickAddOn(ctx context.Context, studio *model.Studio, booking *model.Booking) (*model.AddOn, error) {
	services, err := a.store.ServicesForStudio(ctx, studio.ID)
	if err != nil {
		return nil, err
	}
	for _, svc := range services {
		if !strings.EqualFold(svc.Name, booking.Service) {
			continue
		}
		addons, err := a.store.AddOnsForService(ctx, studio.ID, svc.ID)
		if err != nil {
			return nil, err
		}
		for i := range addons {
			if !booking.HasAddOn(addons[i].Name) {
				return &addons[i], nil
			}
		}
		return nil, nil
	}
	return nil, nil
}

func draftSystemPrompt(studio *model.Studio) string {
	preset := studio.BrandVoice.Preset()
	var sb strings.Builder
	sb.WriteString("You write SMS messages for ")
	sb.WriteString(studio.Name)
	sb.WriteString(", a beauty studio.\nPersonality: ")
	sb.WriteString(preset.Personality)
	sb.WriteString("\nTone: ")
	sb.WriteString(preset.SMSTone)
	sb.WriteString(". Use ")
	sb.WriteString(preset.EmojiLimit)
	sb.WriteString(". Respond with the SMS text only, no quotes or preamble.")
	return sb.String()
}

func upsellPrompt(studio *model.Studio, booking *model.Booking, addon *model.AddOn, lead *model.Lead) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s has a %s appointment at %s tomorrow.\n",
		lead.Name, booking.Service, booking.ScheduledAt.Format("3:04 PM"))
	fmt.Fprintf(&sb, "Offer to add %s for $%.0f.", addon.Name, addon.Price)
	if addon.Pitch != "" {
		fmt.Fprintf(&sb, " Angle: %s.", addon.Pitch)
	}
	sb.WriteString("\nEnd by asking them to reply YES to add it.")
	return sb.String()
}
