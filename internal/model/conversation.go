// Package model defines data structures for the referral intake service.
package model

import (
	"time"
)

// Stage is the single source of truth for where a conversation sits in the
// intake flow. Valid transitions:
//
//	awaiting_symptoms        -> awaiting_location | ready
//	awaiting_location        -> awaiting_location_confirmation | ready
//	awaiting_location_conf.  -> awaiting_location | ready
//	ready                    -> referral_sent (atomic compare-and-swap)
//	referral_sent            -> awaiting_repeat_decision
//	awaiting_repeat_decision -> awaiting_symptoms (repeat round) | referral_sent
//
// A full reset returns any stage to awaiting_symptoms.
type Stage string

const (
	StageAwaitingSymptoms       Stage = "awaiting_symptoms"
	StageAwaitingLocation       Stage = "awaiting_location"
	StageAwaitingConfirmation   Stage = "awaiting_location_confirmation"
	StageReady                  Stage = "ready"
	StageReferralSent           Stage = "referral_sent"
	StageAwaitingRepeatDecision Stage = "awaiting_repeat_decision"
)

// Location is a coordinate pair with a human-readable description. A non-nil
// Location always carries both coordinates.
type Location struct {
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Description string  `json:"text_description"`
}

// TranscriptMessage is one stored inbound message, kept for the confirmation
// flow and the dashboard.
type TranscriptMessage struct {
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Conversation is the per-patient intake record, keyed by the sender ID of
// the messaging channel.
type Conversation struct {
	SenderID string `json:"sender_id"`
	Stage    Stage  `json:"stage"`

	Symptoms []string `json:"symptoms"`
	Language string   `json:"language,omitempty"`

	Location        *Location `json:"location,omitempty"`
	PendingLocation *Location `json:"pending_location_confirmation,omitempty"`

	// ConfirmationAttempts counts rejected or failed location confirmations.
	// At two the intake accepts GPS only.
	ConfirmationAttempts int `json:"location_confirmation_attempts"`

	Recommendation string `json:"recommendation,omitempty"`
	ReferralCount  int    `json:"referral_count"`

	Messages []TranscriptMessage `json:"messages,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasSymptoms reports whether at least one symptom has been captured.
func (c *Conversation) HasSymptoms() bool {
	return len(c.Symptoms) > 0
}

// LocationResolved reports whether a confirmed coordinate pair is on file.
func (c *Conversation) LocationResolved() bool {
	return c.Location != nil
}

// ReferralProvided reports whether a referral has already been dispatched in
// the current round.
func (c *Conversation) ReferralProvided() bool {
	return c.Stage == StageReferralSent || c.Stage == StageAwaitingRepeatDecision
}

// Clone returns a deep copy so callers can hold a snapshot without racing
// store mutations.
func (c *Conversation) Clone() *Conversation {
	out := *c
	out.Symptoms = append([]string(nil), c.Symptoms...)
	out.Messages = append([]TranscriptMessage(nil), c.Messages...)
	if c.Location != nil {
		loc := *c.Location
		out.Location = &loc
	}
	if c.PendingLocation != nil {
		loc := *c.PendingLocation
		out.PendingLocation = &loc
	}
	return &out
}
