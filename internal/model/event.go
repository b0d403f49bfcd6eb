package model

import (
	"time"

	"github.com/google/uuid"
)

// AgentTag identifies which decision unit produced an event.
type AgentTag string

const (
	AgentIntake   AgentTag = "intake"
	AgentUpsell   AgentTag = "upsell"
	AgentWaitlist AgentTag = "waitlist"
	AgentMetrics  AgentTag = "metrics"
	AgentSystem   AgentTag = "system"
)

// Event actions. The ledger is queried by action, so the set is fixed here
// rather than scattered across call sites.
const (
	ActionLeadScreened       = "lead_screened"
	ActionPolicyConfirmed    = "policy_confirmed"
	ActionPolicyNotConfirmed = "policy_not_confirmed"
	ActionUpsellSent         = "upsell_sent"
	ActionUpsellAccepted     = "upsell_accepted"
	ActionUpsellDeclined     = "upsell_declined"
	ActionAmbiguousReply     = "ambiguous_reply"
	ActionCancellation       = "cancellation_detected"
	ActionWaitlistNotified   = "waitlist_notified"
	ActionWaitlistDeclined   = "waitlist_declined"
	ActionSlotFilled         = "slot_filled"
	ActionGapUnfilled        = "gap_unfilled"
	ActionAgentUnavailable   = "agent_unavailable"
	ActionConflict           = "concurrent_modification"
	ActionUnroutable         = "unroutable_trigger"
	ActionMessageSent        = "message_sent"
	ActionSideEffectFailed   = "side_effect_failed"
)

// AgentEvent is one append-only audit record. Events are never updated or
// deleted; a committed decision produces exactly one, no matter how many
// retries preceded it, and the ledger doubles as the idempotency check for
// outbound offers.
type AgentEvent struct {
	ID        uuid.UUID      `json:"id"`
	StudioID  uuid.UUID      `json:"studio_id"`
	Agent     AgentTag       `json:"agent"`
	Action    string         `json:"action"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt time.Time      `json:"created_at"`
}

// Dashboard is the per-studio aggregation served to the owner dashboard.
type Dashboard struct {
	FoundMoney     float64 `json:"found_money"`
	Screens        int     `json:"screens"`
	LeadsApproved  int     `json:"leads_approved"`
	LeadsFiltered  int     `json:"leads_filtered"`
	ConversionRate float64 `json:"conversion_rate"`
	UpsellsSent    int     `json:"upsells_sent"`
	UpsellsWon     int     `json:"upsells_won"`
	GapFills       int     `json:"gap_fills"`
}
