// Package store provides typed access to the document store. Every mutation
// maps to an atomic field-level update scoped to a single record key; there
// are no multi-record transactions.
package store

import (
	"context"
	"errors"

	"github.com/smart-directory/referral-service/internal/model"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrUnknownCollection is returned by the admin browser for collections this
// service does not own.
var ErrUnknownCollection = errors.New("unknown collection")

// ConversationStore is the single-writer accessor for per-patient intake
// records. It carries no business logic; sequencing decisions belong to the
// orchestrator.
type ConversationStore interface {
	// Get returns a snapshot of the conversation for senderID.
	Get(ctx context.Context, senderID string) (*model.Conversation, error)

	// GetOrCreate loads the conversation for senderID, creating an empty one
	// on first contact. The second result reports whether a record was created.
	GetOrCreate(ctx context.Context, senderID string) (*model.Conversation, bool, error)

	// AppendMessage appends one inbound message to the transcript.
	AppendMessage(ctx context.Context, senderID string, msg model.TranscriptMessage) error

	// AddSymptoms merges symptoms into the record as a set union.
	AddSymptoms(ctx context.Context, senderID string, symptoms []string) error

	SetLanguage(ctx context.Context, senderID, language string) error
	SetLocation(ctx context.Context, senderID string, loc model.Location) error
	SetPendingLocation(ctx context.Context, senderID string, loc model.Location) error
	ClearPendingLocation(ctx context.Context, senderID string) error

	// IncConfirmationAttempts increments the rejected-confirmation counter and
	// returns the new value.
	IncConfirmationAttempts(ctx context.Context, senderID string) (int, error)
	ResetConfirmationAttempts(ctx context.Context, senderID string) error

	SetStage(ctx context.Context, senderID string, stage model.Stage) error

	// CompareAndSwapStage atomically moves the conversation from one stage to
	// another. It returns false without error when the current stage differs
	// from the expected one. Referral dispatch uses this as its idempotency
	// gate.
	CompareAndSwapStage(ctx context.Context, senderID string, from, to model.Stage) (bool, error)

	// IncReferralCount increments the lifetime referral counter and returns
	// the new value.
	IncReferralCount(ctx context.Context, senderID string) (int, error)

	SetRecommendation(ctx context.Context, senderID, text string) error

	// Reset returns the record to its initial state: no symptoms, no location,
	// no language, all flags and counters zeroed.
	Reset(ctx context.Context, senderID string) error

	// ResetForNewRound clears only the symptom and referral axes so a repeat
	// round can start. Location, language and the referral counter survive.
	ResetForNewRound(ctx context.Context, senderID string) error
}

// PartnerStore exposes partner records. Partners are owned by the onboarding
// process; this service reads them for matching and writes only through the
// admin API.
type PartnerStore interface {
	List(ctx context.Context) ([]model.Partner, error)
	Upsert(ctx context.Context, p model.Partner) error
}

// ReferralStore appends immutable referral facts.
type ReferralStore interface {
	Append(ctx context.Context, r model.Referral) error
	ListBySender(ctx context.Context, senderID string) ([]model.Referral, error)
}

// ArchiveStore appends round snapshots taken before a repeat-round reset.
type ArchiveStore interface {
	ArchiveRound(ctx context.Context, senderID string, snapshot model.Conversation) (*model.ArchivedRound, error)
	ListArchived(ctx context.Context, senderID string) ([]model.ArchivedRound, error)
}

// PatientStore upserts the cross-round patient profile.
type PatientStore interface {
	UpsertPatient(ctx context.Context, p model.Patient) error
}
