// Package router is the only writer in the system. It classifies each
// trigger to exactly one agent, commits the agent's decision atomically, and
// runs side effects strictly after the commit.
package router

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/glowstack/studio-automation/internal/agent"
	"github.com/glowstack/studio-automation/internal/gateway"
	"github.com/glowstack/studio-automation/internal/model"
	"github.com/glowstack/studio-automation/internal/monitoring"
	"github.com/glowstack/studio-automation/internal/store"
)

// ErrUnroutable means no agent claims the trigger. The trigger is recorded
// and dropped, never guessed at.
var ErrUnroutable = errors.New("unroutable trigger")

// Effector is the slice of the gateway the router needs to run side effects.
type Effector interface {
	Send(ctx context.Context, to, body string) error
	Sync(ctx context.Context, booking *model.Booking) error
}

type Router struct {
	store    store.Store
	effector Effector
	agents   map[model.AgentTag]agent.Agent
	now      func() time.Time
}

func New(s store.Store, effector Effector, text agent.TextCapability) *Router {
	agents := map[model.AgentTag]agent.Agent{
		model.AgentIntake:   agent.NewIntake(s, text),
		model.AgentUpsell:   agent.NewUpsell(s, text),
		model.AgentWaitlist: agent.NewWaitlist(s, text),
		model.AgentMetrics:  agent.NewMetrics(s),
	}
	return &Router{store: s, effector: effector, agents: agents, now: time.Now}
}

// WithClock overrides the router's clock. Tests only.
func (r *Router) WithClock(now func() time.Time) *Router {
	r.now = now
	return r
}

// classify maps a trigger to its one owning agent. Inbound messages are
// routed by their reply context: a waitlist entry reference beats a booking
// reference, and a message with neither is a fresh lead for intake.
func (r *Router) classify(trig agent.Trigger) (agent.Agent, error) {
	switch trig.Kind {
	case agent.TriggerTick:
		return r.agents[model.AgentUpsell], nil
	case agent.TriggerCancellation:
		return r.agents[model.AgentWaitlist], nil
	case agent.TriggerDashboard:
		return r.agents[model.AgentMetrics], nil
	case agent.TriggerInbound:
		switch {
		case trig.EntryID != uuid.Nil:
			return r.agents[model.AgentWaitlist], nil
		case trig.BookingID != uuid.Nil:
			return r.agents[model.AgentUpsell], nil
		default:
			return r.agents[model.AgentIntake], nil
		}
	default:
		return nil, ErrUnroutable
	}
}

// Route runs one trigger end to end: classify, decide, commit, side effects.
// On a commit conflict the whole decide-and-commit runs once more against
// fresh state before the conflict is surfaced.
func (r *Router) Route(ctx context.Context, studio *model.Studio, trig agent.Trigger) (*agent.Decision, error) {
	if trig.Now.IsZero() {
		trig.Now = r.now()
	}

	ag, err := r.classify(trig)
	if err != nil {
		r.appendOutcome(ctx, studio, model.AgentSystem, model.ActionUnroutable,
			map[string]any{"kind": string(trig.Kind)})
		return nil, err
	}

	start := r.now()
	decision, err := r.routeOnce(ctx, studio, ag, trig)
	monitoring.DecisionDuration.WithLabelValues(string(ag.Name())).Observe(r.now().Sub(start).Seconds())

	switch {
	case err == nil:
		monitoring.DecisionsCommitted.WithLabelValues(string(ag.Name()), "committed").Inc()
	case errors.Is(err, store.ErrConflict):
		monitoring.DecisionsCommitted.WithLabelValues(string(ag.Name()), "conflict").Inc()
		r.appendOutcome(ctx, studio, ag.Name(), model.ActionConflict, triggerMeta(trig))
	case errors.Is(err, gateway.ErrUnavailable):
		monitoring.DecisionsCommitted.WithLabelValues(string(ag.Name()), "unavailable").Inc()
		monitoring.MockAlert("capability exhausted retries", map[string]string{
			"studio": studio.Slug,
			"agent":  string(ag.Name()),
		})
		r.appendOutcome(ctx, studio, ag.Name(), model.ActionAgentUnavailable, triggerMeta(trig))
	default:
		monitoring.DecisionsCommitted.WithLabelValues(string(ag.Name()), "error").Inc()
	}
	if err != nil {
		return nil, err
	}

	r.runSideEffects(ctx, studio, decision)
	return decision, nil
}

func (r *Router) routeOnce(ctx context.Context, studio *model.Studio, ag agent.Agent, trig agent.Trigger) (*agent.Decision, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		decision, err := ag.Decide(ctx, studio, trig)
		if err == nil {
			if len(decision.Transitions) == 0 && len(decision.Events) == 0 {
				return decision, nil
			}
			err = r.store.Commit(ctx, studio.ID, decision.Transitions, decision.Events)
			if err == nil {
				return decision, nil
			}
		}
		if !errors.Is(err, store.ErrConflict) {
			return nil, err
		}
		lastErr = err
		monitoring.CommitConflicts.Inc()
		log.Warn().Str("agent", string(ag.Name())).Int("attempt", attempt+1).
			Msg("Commit conflict, re-deciding against fresh state")
	}
	return nil, lastErr
}

// runSideEffects happens only after the decision committed. Failures are
// recorded and left for a later trigger; committed state is never rolled
// back because a message did not go out.
func (r *Router) runSideEffects(ctx context.Context, studio *model.Studio, decision *agent.Decision) {
	for _, effect := range decision.SideEffects {
		switch e := effect.(type) {
		case agent.SendMessage:
			if err := r.effector.Send(ctx, e.To, e.Body); err != nil {
				monitoring.SideEffects.WithLabelValues("send_message", "failed").Inc()
				r.appendOutcome(ctx, studio, decision.Agent, model.ActionSideEffectFailed,
					mergeMeta(e.Metadata, map[string]any{"kind": "send_message", "reason": err.Error()}))
				continue
			}
			monitoring.SideEffects.WithLabelValues("send_message", "ok").Inc()
			r.appendOutcome(ctx, studio, decision.Agent, e.Action, e.Metadata)
		case agent.SyncBooking:
			if err := r.effector.Sync(ctx, e.Booking); err != nil {
				monitoring.SideEffects.WithLabelValues("sync_booking", "failed").Inc()
				r.appendOutcome(ctx, studio, decision.Agent, model.ActionSideEffectFailed,
					map[string]any{"kind": "sync_booking", "booking_id": e.Booking.ID.String(), "reason": err.Error()})
				continue
			}
			monitoring.SideEffects.WithLabelValues("sync_booking", "ok").Inc()
		}
	}
}

// appendOutcome appends an outcome event outside any transaction. Best
// effort: losing an audit row must not fail the caller.
func (r *Router) appendOutcome(ctx context.Context, studio *model.Studio, ag model.AgentTag, action string, meta map[string]any) {
	event := &model.AgentEvent{
		StudioID: studio.ID,
		Agent:    ag,
		Action:   action,
		Metadata: meta,
	}
	if err := r.store.AppendEvent(ctx, event); err != nil {
		log.Error().Err(err).Str("action", action).Msg("Failed to append outcome event")
	}
}

func triggerMeta(trig agent.Trigger) map[string]any {
	meta := map[string]any{"kind": string(trig.Kind)}
	if trig.LeadID != uuid.Nil {
		meta["lead_id"] = trig.LeadID.String()
	}
	if trig.BookingID != uuid.Nil {
		meta["booking_id"] = trig.BookingID.String()
	}
	if trig.EntryID != uuid.Nil {
		meta["entry_id"] = trig.EntryID.String()
	}
	return meta
}

func mergeMeta(base, extra map[string]any) map[string]any {
	merged := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}
