// Package orchestrator implements the per-conversation intake state machine:
// it sequences symptom, location and language capture across message turns,
// decides when a referral can be produced and dispatches it exactly once per
// round.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smart-directory/referral-service/internal/channel"
	"github.com/smart-directory/referral-service/internal/extract"
	"github.com/smart-directory/referral-service/internal/geocode"
	"github.com/smart-directory/referral-service/internal/match"
	"github.com/smart-directory/referral-service/internal/model"
	"github.com/smart-directory/referral-service/internal/store"
	"github.com/smart-directory/referral-service/pkg/logger"
	"github.com/smart-directory/referral-service/pkg/metrics"
)

// resetCommand is the sentinel text command that wipes a conversation. It is
// interpreted before any other processing.
const resetCommand = "/reset"

// Matcher ranks partners for a symptom set and location.
type Matcher interface {
	Match(ctx context.Context, symptoms []string, loc model.Location) ([]match.Match, error)
}

// Extractor pulls structured intake data out of free text.
type Extractor interface {
	Extract(ctx context.Context, text string) (*extract.Extraction, error)
}

// ConfirmationDetector interprets a reply to a yes/no question.
type ConfirmationDetector interface {
	Detect(ctx context.Context, text string) (extract.Confirmation, error)
}

// Translator renders outbound copy in the patient's language.
type Translator interface {
	Translate(ctx context.Context, text, targetLanguage string) (string, error)
}

// EventPublisher publishes domain events. Optional.
type EventPublisher interface {
	Publish(ctx context.Context, event *model.Event) (uint64, error)
}

// Deps are the injected collaborators of the orchestrator.
type Deps struct {
	Conversations store.ConversationStore
	Referrals     store.ReferralStore
	Archive       store.ArchiveStore
	Patients      store.PatientStore
	Matcher       Matcher
	Extractor     Extractor
	Confirmer     ConfirmationDetector
	Translator    Translator
	Geocoder      geocode.Client
	Channel       channel.Channel
	Events        EventPublisher // may be nil
	Logger        *logger.Logger
	CountryName   string
}

// Orchestrator is the top-level intake state machine. One instance serves all
// conversations; all per-patient state lives in the conversation store.
type Orchestrator struct {
	conversations store.ConversationStore
	referrals     store.ReferralStore
	archive       store.ArchiveStore
	patients      store.PatientStore
	matcher       Matcher
	extractor     Extractor
	confirmer     ConfirmationDetector
	translator    Translator
	geocoder      geocode.Client
	channel       channel.Channel
	events        EventPublisher
	logger        *logger.Logger
	country       string
}

// New creates the orchestrator.
func New(deps Deps) *Orchestrator {
	return &Orchestrator{
		conversations: deps.Conversations,
		referrals:     deps.Referrals,
		archive:       deps.Archive,
		patients:      deps.Patients,
		matcher:       deps.Matcher,
		extractor:     deps.Extractor,
		confirmer:     deps.Confirmer,
		translator:    deps.Translator,
		geocoder:      deps.Geocoder,
		channel:       deps.Channel,
		events:        deps.Events,
		logger:        deps.Logger,
		country:       deps.CountryName,
	}
}

// HandleInbound processes one inbound message for senderID. Every path
// terminates in either an outbound message or a log entry; the conversation
// can always continue on the next message. The returned error covers only
// state-critical persistence failures.
func (o *Orchestrator) HandleInbound(ctx context.Context, senderID string, msg model.Inbound) error {
	log := o.logger.WithSender(senderID)

	conv, created, err := o.conversations.GetOrCreate(ctx, senderID)
	if err != nil {
		return fmt.Errorf("failed to load conversation: %w", err)
	}
	if created {
		log.Info("new conversation created")
	}

	if text, ok := msg.(model.TextMessage); ok && isResetCommand(text.Body) {
		return o.resetConversation(ctx, conv)
	}

	if conv.Stage == model.StageAwaitingRepeatDecision {
		return o.handleRepeatDecision(ctx, conv, msg)
	}

	switch m := msg.(type) {
	case model.TextMessage:
		metrics.InboundMessagesTotal.WithLabelValues("text").Inc()
		if err := o.handleText(ctx, conv, m.Body); err != nil {
			return err
		}
	case model.LocationMessage:
		metrics.InboundMessagesTotal.WithLabelValues("location").Inc()
		if err := o.handleGPS(ctx, conv, m.Lat, m.Lon); err != nil {
			return err
		}
	case model.InteractiveReply:
		metrics.InboundMessagesTotal.WithLabelValues("interactive").Inc()
		o.handleInteractive(ctx, conv, m)
	}

	// Re-read the consolidated record before deciding the next step.
	updated, err := o.conversations.Get(ctx, senderID)
	if err != nil {
		return fmt.Errorf("failed to re-read conversation: %w", err)
	}

	if !updated.ReferralProvided() && updated.HasSymptoms() && updated.LocationResolved() {
		return o.dispatchReferral(ctx, updated)
	}

	return o.requestMissingData(ctx, updated)
}

// handleText extracts language, symptoms and a location reference from one
// text message. Language is resolved first so any prompt sent later this
// turn is already phrased in the patient's language.
func (o *Orchestrator) handleText(ctx context.Context, conv *model.Conversation, body string) error {
	log := o.logger.WithSender(conv.SenderID)

	if err := o.conversations.AppendMessage(ctx, conv.SenderID, model.TranscriptMessage{
		Sender:    conv.SenderID,
		Text:      body,
		CreatedAt: time.Now(),
	}); err != nil {
		log.Warn("failed to append transcript message", zap.Error(err))
	}

	extraction, err := o.extractor.Extract(ctx, body)
	if err != nil {
		// Extraction failure degrades to "no data extracted".
		log.Warn("extraction failed", zap.Error(err))
		extraction = &extract.Extraction{}
	}

	if conv.Language == "" && extraction.Language != "" {
		if err := o.conversations.SetLanguage(ctx, conv.SenderID, extraction.Language); err != nil {
			return fmt.Errorf("failed to set language: %w", err)
		}
		conv.Language = extraction.Language
		log.Info("language recorded", zap.String("language", extraction.Language))
	}

	if len(extraction.Symptoms) > 0 {
		if err := o.conversations.AddSymptoms(ctx, conv.SenderID, extraction.Symptoms); err != nil {
			return fmt.Errorf("failed to add symptoms: %w", err)
		}
		log.Info("symptoms recorded", zap.Strings("symptoms", extraction.Symptoms))
	}

	return o.routeLocationText(ctx, conv, extraction.Location, body)
}

// handleInteractive handles a tap on an interactive element. The only
// interactive surface this flow sends is the location request, so a reply
// while location is unresolved gets a reminder.
func (o *Orchestrator) handleInteractive(ctx context.Context, conv *model.Conversation, reply model.InteractiveReply) {
	o.logger.WithSender(conv.SenderID).Debug("interactive reply received",
		zap.String("reply_id", reply.ID),
		zap.String("title", reply.Title),
	)

	if !conv.LocationResolved() && conv.PendingLocation == nil {
		o.sendLocationRequest(ctx, conv)
	}
}

// requestMissingData asks for the single most relevant missing input,
// symptoms taking priority. A pending location confirmation blocks any
// further prompting.
func (o *Orchestrator) requestMissingData(ctx context.Context, conv *model.Conversation) error {
	if conv.PendingLocation != nil {
		return nil
	}

	switch {
	case !conv.HasSymptoms():
		if err := o.conversations.SetStage(ctx, conv.SenderID, model.StageAwaitingSymptoms); err != nil {
			return err
		}
		o.sendText(ctx, conv, msgRequestSymptoms)
	case !conv.LocationResolved():
		if err := o.conversations.SetStage(ctx, conv.SenderID, model.StageAwaitingLocation); err != nil {
			return err
		}
		o.sendLocationRequest(ctx, conv)
	}
	return nil
}

// resetConversation performs the full reset triggered by the sentinel
// command. The message is not otherwise processed.
func (o *Orchestrator) resetConversation(ctx context.Context, conv *model.Conversation) error {
	if err := o.conversations.Reset(ctx, conv.SenderID); err != nil {
		return fmt.Errorf("failed to reset conversation: %w", err)
	}
	o.logger.WithSender(conv.SenderID).Info("conversation reset")

	o.publishEvent(ctx, conv.SenderID, model.EventConversationReset, nil)

	// Language was just cleared, so the acknowledgment goes out untranslated.
	if err := o.channel.SendText(ctx, conv.SenderID, msgResetDone); err != nil {
		o.logger.WithSender(conv.SenderID).Error("failed to send reset acknowledgment", zap.Error(err))
	}
	return nil
}

func isResetCommand(text string) bool {
	return strings.EqualFold(strings.TrimSpace(text), resetCommand)
}

// sendText translates body to the conversation language and delivers it.
// Delivery failures are logged, never fatal.
func (o *Orchestrator) sendText(ctx context.Context, conv *model.Conversation, body string) {
	translated, err := o.translator.Translate(ctx, body, conv.Language)
	if err != nil {
		translated = body
	}
	if err := o.channel.SendText(ctx, conv.SenderID, translated); err != nil {
		o.logger.WithSender(conv.SenderID).Error("failed to send text message", zap.Error(err))
	}
}

// sendLocationRequest delivers the interactive GPS request.
func (o *Orchestrator) sendLocationRequest(ctx context.Context, conv *model.Conversation) {
	translated, err := o.translator.Translate(ctx, msgRequestLocation, conv.Language)
	if err != nil {
		translated = msgRequestLocation
	}
	if err := o.channel.SendLocationRequest(ctx, conv.SenderID, translated); err != nil {
		o.logger.WithSender(conv.SenderID).Error("failed to send location request", zap.Error(err))
	}
}

// publishEvent publishes a domain event when an event stream is configured.
func (o *Orchestrator) publishEvent(ctx context.Context, senderID string, eventType model.EventType, payload map[string]any) {
	if o.events == nil {
		return
	}
	_, err := o.events.Publish(ctx, &model.Event{
		ID:        uuid.Must(uuid.NewV7()).String(),
		SenderID:  senderID,
		Type:      eventType,
		Payload:   payload,
		CreatedAt: time.Now(),
	})
	if err != nil {
		o.logger.WithSender(senderID).Warn("failed to publish event",
			zap.String("event_type", string(eventType)),
			zap.Error(err),
		)
	}
}
