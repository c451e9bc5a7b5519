package model

import (
	"time"
)

// EventType identifies a domain event published to the event stream.
type EventType string

const (
	EventReferralDispatched EventType = "referral_dispatched"
	EventRoundArchived      EventType = "round_archived"
	EventConversationReset  EventType = "conversation_reset"
)

// Event is a domain event consumed by the dashboard and downstream jobs.
type Event struct {
	ID        string         `json:"id"`
	SenderID  string         `json:"sender_id"`
	Type      EventType      `json:"type"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	Sequence  uint64         `json:"sequence,omitempty"`
}
