package model

import (
	"time"
)

// ReferralStatus tracks the lifecycle of a dispatched referral. This service
// only ever writes "sent"; terminal statuses are set by the follow-up process.
type ReferralStatus string

const (
	ReferralStatusSent      ReferralStatus = "sent"
	ReferralStatusCompleted ReferralStatus = "completed"
	ReferralStatusExpired   ReferralStatus = "expired"
)

// Referral is an immutable, append-only fact linking a patient to a matched
// partner at a point in time. One record per (patient, partner, round).
type Referral struct {
	ID       string `json:"id"`
	SenderID string `json:"sender_id"`
	Round    int    `json:"round"`

	PartnerID   string `json:"partner_id"`
	PartnerName string `json:"partner_name"`
	Address     string `json:"address"`

	Symptoms          []string `json:"symptoms"`
	DistanceKM        float64  `json:"distance_km"`
	SymptomSimilarity float64  `json:"symptom_similarity"`
	ServiceSimilarity float64  `json:"service_similarity"`
	Score             float64  `json:"score"`

	Status    ReferralStatus `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
}

// ArchivedRound is a timestamped snapshot of a conversation taken immediately
// before a repeat-round reset. Append-only.
type ArchivedRound struct {
	ID         string       `json:"id"`
	SenderID   string       `json:"sender_id"`
	Snapshot   Conversation `json:"snapshot"`
	ArchivedAt time.Time    `json:"archived_at"`
}

// Patient is the cross-round profile upserted on every referral dispatch.
type Patient struct {
	PhoneNumber string    `json:"phone_number"`
	Symptoms    []string  `json:"symptoms"`
	Location    *Location `json:"location,omitempty"`
	Language    string    `json:"language,omitempty"`
	CountryName string    `json:"country_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
