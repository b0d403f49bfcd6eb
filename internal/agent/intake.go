package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/glowstack/studio-automation/internal/gateway"
	"github.com/glowstack/studio-automation/internal/model"
	"github.com/glowstack/studio-automation/internal/store"
)

// TextCapability is the slice of the gateway the drafting agents need.
type TextCapability interface {
	Evaluate(ctx context.Context, system, prompt string) (*gateway.Evaluation, error)
	Draft(ctx context.Context, system, prompt string) (string, error)
}

// Intake screens fresh leads for brand fit and walks approved ones through
// the deposit policy before handing out the booking link.
type Intake struct {
	store store.Store
	text  TextCapability
}

func NewIntake(s store.Store, text TextCapability) *Intake {
	return &Intake{store: s, text: text}
}

func (a *Intake) Name() model.AgentTag { return model.AgentIntake }

func (a *Intake) Decide(ctx context.Context, studio *model.Studio, trig Trigger) (*Decision, error) {
	if trig.LeadID != uuid.Nil {
		return a.confirm(ctx, studio, trig)
	}
	return a.screen(ctx, studio, trig)
}

func (a *Intake) screen(ctx context.Context, studio *model.Studio, trig Trigger) (*Decision, error) {
	if trig.LeadPhone != "" || trig.Instagram != "" {
		// A redelivered webhook lands here with no lead id. Settle the
		// pending row for this contact instead of minting a duplicate.
		existing, err := a.store.PendingLeadByContact(ctx, studio.ID, trig.LeadPhone, trig.Instagram)
		if err == nil {
			return a.rescreen(ctx, studio, existing, trig)
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}

	lead := model.Lead{
		ID:        uuid.New(),
		StudioID:  studio.ID,
		Name:      trig.LeadName,
		Phone:     trig.LeadPhone,
		Instagram: trig.Instagram,
	}

	services, err := a.store.ServicesForStudio(ctx, studio.ID)
	if err != nil {
		return nil, err
	}

	eval, err := a.text.Evaluate(ctx, screeningSystemPrompt(studio), screeningPrompt(studio, services, trig))
	if errors.Is(err, gateway.ErrUnavailable) {
		// The screener being down must never cost the studio a lead. Park it
		// pending; the next inbound message or a manual review settles it.
		return &Decision{
			Agent:       model.AgentIntake,
			Transitions: []store.Transition{store.CreateLead{Lead: lead}},
			Events: []model.AgentEvent{{
				Agent:  model.AgentIntake,
				Action: model.ActionAgentUnavailable,
				Metadata: map[string]any{
					"lead_id": lead.ID.String(),
					"reason":  err.Error(),
				},
			}},
			Reply: "Thanks for reaching out! Give us a moment and we'll get right back to you.",
		}, nil
	}
	if err != nil {
		return nil, err
	}

	status := model.IntakeDeclined
	confirmation := model.ConfirmationNone
	if eval.Score >= studio.Threshold() {
		status = model.IntakeApproved
		if studio.RequiresDeposit() {
			confirmation = model.ConfirmationAwaiting
		}
	}

	reply := eval.Reply
	if status == model.IntakeApproved && confirmation == model.ConfirmationNone {
		reply = bookingLinkReply(studio, reply)
	}

	return &Decision{
		Agent: model.AgentIntake,
		Transitions: []store.Transition{
			store.CreateLead{Lead: lead},
			store.ScreenLead{
				LeadID:       lead.ID,
				Status:       status,
				Score:        eval.Score,
				Reasoning:    eval.Reasoning,
				Confirmation: confirmation,
			},
		},
		Events: []model.AgentEvent{{
			Agent:  model.AgentIntake,
			Action: model.ActionLeadScreened,
			Metadata: map[string]any{
				"lead_id":    lead.ID.String(),
				"vibe_score": eval.Score,
				"status":     string(status),
			},
		}},
		Reply: reply,
	}, nil
}

func (a *Intake) confirm(ctx context.Context, studio *model.Studio, trig Trigger) (*Decision, error) {
	lead, err := a.store.LeadByID(ctx, studio.ID, trig.LeadID)
	if err != nil {
		return nil, err
	}
	if lead.IntakeStatus == model.IntakePending {
		// The screener was down when this lead arrived. This message is the
		// retry that settles it.
		return a.rescreen(ctx, studio, lead, trig)
	}
	if lead.IntakeStatus == model.IntakeDeclined {
		// Already settled. Never re-score, never re-litigate.
		return &Decision{
			Agent: model.AgentIntake,
			Reply: "Thanks for reaching out! We're fully booked at the moment.",
		}, nil
	}
	if lead.Confirmation != model.ConfirmationAwaiting {
		// Nothing left to confirm: either already confirmed or the studio
		// takes no deposit. Answer the same way, change nothing.
		return &Decision{
			Agent: model.AgentIntake,
			Reply: bookingLinkReply(studio, "You're all set!"),
		}, nil
	}

	switch ParseReply(trig.Message) {
	case ReplyYes:
		return &Decision{
			Agent:       model.AgentIntake,
			Transitions: []store.Transition{store.ConfirmLead{LeadID: lead.ID}},
			Events: []model.AgentEvent{{
				Agent:    model.AgentIntake,
				Action:   model.ActionPolicyConfirmed,
				Metadata: map[string]any{"lead_id": lead.ID.String()},
			}},
			Reply: bookingLinkReply(studio, "Perfect, you're confirmed!"),
		}, nil
	case ReplyNo:
		return &Decision{
			Agent: model.AgentIntake,
			Events: []model.AgentEvent{{
				Agent:    model.AgentIntake,
				Action:   model.ActionPolicyNotConfirmed,
				Metadata: map[string]any{"lead_id": lead.ID.String()},
			}},
			Reply: "No worries at all! If you change your mind, just reply YES and we'll get you booked.",
		}, nil
	default:
		return &Decision{
			Agent: model.AgentIntake,
			Events: []model.AgentEvent{{
				Agent:    model.AgentIntake,
				Action:   model.ActionAmbiguousReply,
				Metadata: map[string]any{"lead_id": lead.ID.String(), "message": trig.Message},
			}},
			Reply: fmt.Sprintf("Just to confirm, our deposit is $%.0f and it goes toward your service. Reply YES to lock it in or NO if now isn't the right time.", studio.DepositAmount),
		}, nil
	}
}

// rescreen scores a lead that was parked pending during a screener outage.
// It reuses the follow-up message as the screening input and only settles
// the existing lead; no new lead row is created.
func (a *Intake) rescreen(ctx context.Context, studio *model.Studio, lead *model.Lead, trig Trigger) (*Decision, error) {
	services, err := a.store.ServicesForStudio(ctx, studio.ID)
	if err != nil {
		return nil, err
	}

	if trig.LeadName == "" {
		trig.LeadName = lead.Name
	}
	eval, err := a.text.Evaluate(ctx, screeningSystemPrompt(studio), screeningPrompt(studio, services, trig))
	if errors.Is(err, gateway.ErrUnavailable) {
		return &Decision{
			Agent: model.AgentIntake,
			Events: []model.AgentEvent{{
				Agent:  model.AgentIntake,
				Action: model.ActionAgentUnavailable,
				Metadata: map[string]any{
					"lead_id": lead.ID.String(),
					"reason":  err.Error(),
				},
			}},
			Reply: "Thanks for your patience! We'll be right with you.",
		}, nil
	}
	if err != nil {
		return nil, err
	}

	status := model.IntakeDeclined
	confirmation := model.ConfirmationNone
	if eval.Score >= studio.Threshold() {
		status = model.IntakeApproved
		if studio.RequiresDeposit() {
			confirmation = model.ConfirmationAwaiting
		}
	}

	reply := eval.Reply
	if status == model.IntakeApproved && confirmation == model.ConfirmationNone {
		reply = bookingLinkReply(studio, reply)
	}

	return &Decision{
		Agent: model.AgentIntake,
		Transitions: []store.Transition{store.ScreenLead{
			LeadID:       lead.ID,
			Status:       status,
			Score:        eval.Score,
			Reasoning:    eval.Reasoning,
			Confirmation: confirmation,
		}},
		Events: []model.AgentEvent{{
			Agent:  model.AgentIntake,
			Action: model.ActionLeadScreened,
			Metadata: map[string]any{
				"lead_id":    lead.ID.String(),
				"vibe_score": eval.Score,
				"status":     string(status),
			},
		}},
		Reply: reply,
	}, nil
}

func bookingLinkReply(studio *model.Studio, lede string) string {
	if studio.BookingURL == "" {
		return lede
	}
	return strings.TrimSpace(lede) + " Book here: " + studio.BookingURL
}

func screeningSystemPrompt(studio *model.Studio) string {
	preset := studio.BrandVoice.Preset()
	var sb strings.Builder
	sb.WriteString("You screen inbound messages for ")
	sb.WriteString(studio.Name)
	sb.WriteString(", a beauty studio.\n")
	sb.WriteString("Studio personality: ")
	sb.WriteString(preset.Personality)
	sb.WriteString("\n\nScore how well this potential client fits the studio on a 0.0-1.0 scale. ")
	sb.WriteString("High scores: polite, specific about what they want, respectful of pricing. ")
	sb.WriteString("Low scores: hagglers, no-show energy, rude or demanding tone, fishing for free work.\n")
	sb.WriteString("Respond with JSON only: {\"vibe_score\": <0.0-1.0>, \"reasoning\": \"<one sentence>\", \"reply\": \"<SMS reply in the studio's voice, ")
	sb.WriteString(preset.SMSTone)
	sb.WriteString(", ")
	sb.WriteString(preset.EmojiLimit)
	sb.WriteString(">\"}")
	return sb.String()
}

func screeningPrompt(studio *model.Studio, services []model.Service, trig Trigger) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "New inquiry from %s", trig.LeadName)
	if trig.Instagram != "" {
		fmt.Fprintf(&sb, " (IG %s)", trig.Instagram)
	}
	sb.WriteString(":\n")
	sb.WriteString(trig.Message)
	sb.WriteString("\n\nServices offered:\n")
	for _, svc := range services {
		fmt.Fprintf(&sb, "- %s: $%.0f (%d min)\n", svc.Name, svc.Price, svc.DurationMin)
	}
	if studio.RequiresDeposit() {
		fmt.Fprintf(&sb, "\nPolicies: $%.0f deposit required to book", studio.DepositAmount)
		if studio.CancelWindowHours > 0 {
			fmt.Fprintf(&sb, ", %dh cancellation window", studio.CancelWindowHours)
		}
		if studio.LateFee > 0 {
			fmt.Fprintf(&sb, ", $%.0f late fee", studio.LateFee)
		}
		sb.WriteString(".\nIf you approve them, your reply must state the deposit policy and ask them to reply YES to accept it.")
	}
	return sb.String()
}
