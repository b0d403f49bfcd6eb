package model

import (
	"time"

	"github.com/google/uuid"
)

// IntakeStatus is the screening lifecycle of a lead. It moves from pending to
// exactly one of approved or declined and never reverts.
type IntakeStatus string

const (
	IntakePending  IntakeStatus = "pending"
	IntakeApproved IntakeStatus = "approved"
	IntakeDeclined IntakeStatus = "declined"
)

// Confirmation is the deposit-policy sub-state of an approved lead.
type Confirmation string

const (
	ConfirmationNone     Confirmation = "none"
	ConfirmationAwaiting Confirmation = "awaiting"
	ConfirmationDone     Confirmation = "confirmed"
)

// Lead is an inbound contact being screened for brand fit. VibeScore and
// Reasoning are written exactly once, atomically with the status decision.
// Version backs the optimistic-concurrency check on status transitions.
type Lead struct {
	ID           uuid.UUID    `json:"id"`
	StudioID     uuid.UUID    `json:"studio_id"`
	Name         string       `json:"name"`
	Phone        string       `json:"phone"`
	Instagram    string       `json:"instagram_handle"`
	IntakeStatus IntakeStatus `json:"intake_status"`
	VibeScore    float64      `json:"vibe_score"`
	Reasoning    string       `json:"intake_reasoning"`
	Confirmation Confirmation `json:"confirmation"`
	Version      int64        `json:"-"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Settled reports whether the lead already received its screening decision.
func (l Lead) Settled() bool { return l.IntakeStatus != IntakePending }
