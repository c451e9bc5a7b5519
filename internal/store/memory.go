package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smart-directory/referral-service/internal/model"
	"github.com/smart-directory/referral-service/pkg/metrics"
)

// Collection names exposed through the admin data browser.
const (
	CollectionConversations = "ongoing_conversations"
	CollectionPartners      = "partners"
	CollectionReferrals     = "referrals"
	CollectionArchive       = "historical_conversations"
	CollectionPatients      = "patients"
)

// Collections lists the browsable collections in a stable order.
func Collections() []string {
	return []string{
		CollectionConversations,
		CollectionPartners,
		CollectionReferrals,
		CollectionArchive,
		CollectionPatients,
	}
}

// Memory is an in-memory document store (would be replaced with a hosted
// document database in production). Every exported method is one critical
// section, which is what gives the field-level updates their atomicity.
type Memory struct {
	mu sync.RWMutex

	conversations map[string]*model.Conversation
	partners      map[string]*model.Partner
	referrals     []model.Referral
	archive       map[string][]model.ArchivedRound
	patients      map[string]*model.Patient
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		conversations: make(map[string]*model.Conversation),
		partners:      make(map[string]*model.Partner),
		archive:       make(map[string][]model.ArchivedRound),
		patients:      make(map[string]*model.Patient),
	}
}

var _ ConversationStore = (*Memory)(nil)
var _ PartnerStore = (*Memory)(nil)
var _ ReferralStore = (*Memory)(nil)
var _ ArchiveStore = (*Memory)(nil)
var _ PatientStore = (*Memory)(nil)

// Get returns a snapshot of the conversation for senderID.
func (m *Memory) Get(ctx context.Context, senderID string) (*model.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conv, ok := m.conversations[senderID]
	if !ok {
		return nil, ErrNotFound
	}
	return conv.Clone(), nil
}

// GetOrCreate loads or creates the conversation for senderID.
func (m *Memory) GetOrCreate(ctx context.Context, senderID string) (*model.Conversation, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if conv, ok := m.conversations[senderID]; ok {
		return conv.Clone(), false, nil
	}

	now := time.Now()
	conv := &model.Conversation{
		SenderID:  senderID,
		Stage:     model.StageAwaitingSymptoms,
		Symptoms:  []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.conversations[senderID] = conv
	metrics.ActiveConversations.Set(float64(len(m.conversations)))

	return conv.Clone(), true, nil
}

func (m *Memory) AppendMessage(ctx context.Context, senderID string, msg model.TranscriptMessage) error {
	return m.update(senderID, func(c *model.Conversation) {
		c.Messages = append(c.Messages, msg)
	})
}

func (m *Memory) AddSymptoms(ctx context.Context, senderID string, symptoms []string) error {
	return m.update(senderID, func(c *model.Conversation) {
		for _, s := range symptoms {
			s = strings.TrimSpace(s)
			if s == "" || containsFold(c.Symptoms, s) {
				continue
			}
			c.Symptoms = append(c.Symptoms, s)
		}
	})
}

func (m *Memory) SetLanguage(ctx context.Context, senderID, language string) error {
	return m.update(senderID, func(c *model.Conversation) {
		c.Language = language
	})
}

func (m *Memory) SetLocation(ctx context.Context, senderID string, loc model.Location) error {
	return m.update(senderID, func(c *model.Conversation) {
		c.Location = &loc
	})
}

func (m *Memory) SetPendingLocation(ctx context.Context, senderID string, loc model.Location) error {
	return m.update(senderID, func(c *model.Conversation) {
		c.PendingLocation = &loc
	})
}

func (m *Memory) ClearPendingLocation(ctx context.Context, senderID string) error {
	return m.update(senderID, func(c *model.Conversation) {
		c.PendingLocation = nil
	})
}

func (m *Memory) IncConfirmationAttempts(ctx context.Context, senderID string) (int, error) {
	var attempts int
	err := m.update(senderID, func(c *model.Conversation) {
		c.ConfirmationAttempts++
		attempts = c.ConfirmationAttempts
	})
	return attempts, err
}

func (m *Memory) ResetConfirmationAttempts(ctx context.Context, senderID string) error {
	return m.update(senderID, func(c *model.Conversation) {
		c.ConfirmationAttempts = 0
	})
}

func (m *Memory) SetStage(ctx context.Context, senderID string, stage model.Stage) error {
	return m.update(senderID, func(c *model.Conversation) {
		c.Stage = stage
	})
}

// CompareAndSwapStage atomically transitions the stage, reporting whether the
// swap happened.
func (m *Memory) CompareAndSwapStage(ctx context.Context, senderID string, from, to model.Stage) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[senderID]
	if !ok {
		return false, ErrNotFound
	}
	if conv.Stage != from {
		return false, nil
	}
	conv.Stage = to
	conv.UpdatedAt = time.Now()
	return true, nil
}

func (m *Memory) IncReferralCount(ctx context.Context, senderID string) (int, error) {
	var count int
	err := m.update(senderID, func(c *model.Conversation) {
		c.ReferralCount++
		count = c.ReferralCount
	})
	return count, err
}

func (m *Memory) SetRecommendation(ctx context.Context, senderID, text string) error {
	return m.update(senderID, func(c *model.Conversation) {
		c.Recommendation = text
	})
}

// Reset returns the record to its initial state.
func (m *Memory) Reset(ctx context.Context, senderID string) error {
	return m.update(senderID, func(c *model.Conversation) {
		c.Stage = model.StageAwaitingSymptoms
		c.Symptoms = []string{}
		c.Language = ""
		c.Location = nil
		c.PendingLocation = nil
		c.ConfirmationAttempts = 0
		c.Recommendation = ""
		c.ReferralCount = 0
		c.Messages = nil
	})
}

// ResetForNewRound clears the symptom and referral axes only.
func (m *Memory) ResetForNewRound(ctx context.Context, senderID string) error {
	return m.update(senderID, func(c *model.Conversation) {
		c.Stage = model.StageAwaitingSymptoms
		c.Symptoms = []string{}
		c.Recommendation = ""
	})
}

func (m *Memory) update(senderID string, fn func(*model.Conversation)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[senderID]
	if !ok {
		return ErrNotFound
	}
	fn(conv)
	conv.UpdatedAt = time.Now()
	return nil
}

// List returns all partners in stable ID order.
func (m *Memory) List(ctx context.Context) ([]model.Partner, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Partner, 0, len(m.partners))
	for _, p := range m.partners {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Upsert inserts or replaces a partner record.
func (m *Memory) Upsert(ctx context.Context, p model.Partner) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if existing, ok := m.partners[p.ID]; ok {
		p.CreatedAt = existing.CreatedAt
	} else {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	m.partners[p.ID] = &p
	return nil
}

// Append stores an immutable referral fact.
func (m *Memory) Append(ctx context.Context, r model.Referral) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.referrals = append(m.referrals, r)
	return nil
}

func (m *Memory) ListBySender(ctx context.Context, senderID string) ([]model.Referral, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.Referral
	for _, r := range m.referrals {
		if r.SenderID == senderID {
			out = append(out, r)
		}
	}
	return out, nil
}

// ArchiveRound appends one round snapshot for senderID.
func (m *Memory) ArchiveRound(ctx context.Context, senderID string, snapshot model.Conversation) (*model.ArchivedRound, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	round := model.ArchivedRound{
		ID:         uuid.Must(uuid.NewV7()).String(),
		SenderID:   senderID,
		Snapshot:   snapshot,
		ArchivedAt: time.Now(),
	}
	m.archive[senderID] = append(m.archive[senderID], round)
	return &round, nil
}

// ListArchived returns the archived rounds for senderID in archival order.
func (m *Memory) ListArchived(ctx context.Context, senderID string) ([]model.ArchivedRound, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]model.ArchivedRound(nil), m.archive[senderID]...), nil
}

// UpsertPatient inserts or updates the patient profile.
func (m *Memory) UpsertPatient(ctx context.Context, p model.Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if existing, ok := m.patients[p.PhoneNumber]; ok {
		p.CreatedAt = existing.CreatedAt
	} else {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	m.patients[p.PhoneNumber] = &p
	return nil
}

// Browse returns up to limit documents from a collection, newest first,
// skipping skip documents. Used by the admin data browser.
func (m *Memory) Browse(ctx context.Context, collection string, limit, skip int) ([]any, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var docs []any
	switch collection {
	case CollectionConversations:
		for _, c := range m.conversations {
			docs = append(docs, c.Clone())
		}
		sort.Slice(docs, func(i, j int) bool {
			return docs[i].(*model.Conversation).UpdatedAt.After(docs[j].(*model.Conversation).UpdatedAt)
		})
	case CollectionPartners:
		for _, p := range m.partners {
			partner := *p
			docs = append(docs, partner)
		}
		sort.Slice(docs, func(i, j int) bool {
			return docs[i].(model.Partner).ID < docs[j].(model.Partner).ID
		})
	case CollectionReferrals:
		for i := len(m.referrals) - 1; i >= 0; i-- {
			docs = append(docs, m.referrals[i])
		}
	case CollectionArchive:
		for _, rounds := range m.archive {
			for _, r := range rounds {
				docs = append(docs, r)
			}
		}
		sort.Slice(docs, func(i, j int) bool {
			return docs[i].(model.ArchivedRound).ArchivedAt.After(docs[j].(model.ArchivedRound).ArchivedAt)
		})
	case CollectionPatients:
		for _, p := range m.patients {
			patient := *p
			docs = append(docs, patient)
		}
		sort.Slice(docs, func(i, j int) bool {
			return docs[i].(model.Patient).PhoneNumber < docs[j].(model.Patient).PhoneNumber
		})
	default:
		return nil, 0, ErrUnknownCollection
	}

	total := len(docs)
	if skip > total {
		skip = total
	}
	end := skip + limit
	if end > total {
		end = total
	}
	return docs[skip:end], total, nil
}

// GetDocument returns one document by its natural key: sender ID for
// conversations and patients, record ID for partners, referrals and archived
// rounds.
func (m *Memory) GetDocument(ctx context.Context, collection, id string) (any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	switch collection {
	case CollectionConversations:
		if c, ok := m.conversations[id]; ok {
			return c.Clone(), nil
		}
	case CollectionPartners:
		if p, ok := m.partners[id]; ok {
			partner := *p
			return partner, nil
		}
	case CollectionReferrals:
		for _, r := range m.referrals {
			if r.ID == id {
				return r, nil
			}
		}
	case CollectionArchive:
		for _, rounds := range m.archive {
			for _, r := range rounds {
				if r.ID == id {
					return r, nil
				}
			}
		}
	case CollectionPatients:
		if p, ok := m.patients[id]; ok {
			patient := *p
			return patient, nil
		}
	default:
		return nil, ErrUnknownCollection
	}
	return nil, ErrNotFound
}

// DeleteDocument removes one document by its natural key.
func (m *Memory) DeleteDocument(ctx context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch collection {
	case CollectionConversations:
		if _, ok := m.conversations[id]; !ok {
			return ErrNotFound
		}
		delete(m.conversations, id)
		metrics.ActiveConversations.Set(float64(len(m.conversations)))
		return nil
	case CollectionPartners:
		if _, ok := m.partners[id]; !ok {
			return ErrNotFound
		}
		delete(m.partners, id)
		return nil
	case CollectionReferrals:
		for i, r := range m.referrals {
			if r.ID == id {
				m.referrals = append(m.referrals[:i], m.referrals[i+1:]...)
				return nil
			}
		}
		return ErrNotFound
	case CollectionArchive:
		for sender, rounds := range m.archive {
			for i, r := range rounds {
				if r.ID == id {
					m.archive[sender] = append(rounds[:i], rounds[i+1:]...)
					return nil
				}
			}
		}
		return ErrNotFound
	case CollectionPatients:
		if _, ok := m.patients[id]; !ok {
			return ErrNotFound
		}
		delete(m.patients, id)
		return nil
	default:
		return ErrUnknownCollection
	}
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
