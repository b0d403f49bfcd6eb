// Package agent holds the four decision units. An agent reads state, calls
// capabilities through the gateway, and proposes a Decision; it never writes
// the store itself. The router commits the decision atomically and runs the
// side effects afterwards.
package agent

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/glowstack/studio-automation/internal/model"
	"github.com/glowstack/studio-automation/internal/store"
)

// TriggerKind classifies an inbound stimulus.
type TriggerKind string

const (
	TriggerInbound      TriggerKind = "inbound_message"
	TriggerTick         TriggerKind = "scheduled_tick"
	TriggerCancellation TriggerKind = "cancellation"
	TriggerDashboard    TriggerKind = "dashboard_read"
)

// Trigger is one stimulus addressed to a single studio. Reply context fields
// (LeadID, BookingID, EntryID) tell the router which conversation an inbound
// message belongs to; a plain inbound message with none set is a fresh lead.
type Trigger struct {
	Kind      TriggerKind
	Now       time.Time
	Message   string
	LeadName  string
	LeadPhone string
	Instagram string
	LeadID    uuid.UUID
	BookingID uuid.UUID
	EntryID   uuid.UUID
}

// SideEffect is an outbound action to run only after the decision committed.
type SideEffect interface{ isSideEffect() }

// SendMessage delivers an SMS. Action and Metadata describe the outcome
// event appended once the send succeeds.
type SendMessage struct {
	To       string
	Body     string
	Action   string
	Metadata map[string]any
}

// SyncBooking mirrors a booking's committed state to the booking platform.
type SyncBooking struct {
	Booking *model.Booking
}

func (SendMessage) isSideEffect() {}
func (SyncBooking) isSideEffect() {}

// Decision is an agent's proposed outcome: state transitions plus the events
// that record them, committed in one transaction, and side effects to run
// after. Reply is the synchronous answer for the caller; Payload carries
// read-only results such as dashboard data.
type Decision struct {
	Agent       model.AgentTag
	Transitions []store.Transition
	Events      []model.AgentEvent
	SideEffects []SideEffect
	Reply       string
	Payload     any
}

// Agent is one decision unit. Decide must be side-effect free: all writes go
// through the returned Decision.
type Agent interface {
	Name() model.AgentTag
	Decide(ctx context.Context, studio *model.Studio, trig Trigger) (*Decision, error)
}
