package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smart-directory/referral-service/internal/match"
	"github.com/smart-directory/referral-service/internal/model"
	"github.com/smart-directory/referral-service/pkg/metrics"
)

// dispatchReferral runs matching and, when partners are found, sends the
// referral exactly once for the current round. The stage swap is the
// idempotency gate: it happens only after matching succeeds, so an empty
// result or a matching failure leaves the round open for the next message.
func (o *Orchestrator) dispatchReferral(ctx context.Context, conv *model.Conversation) error {
	log := o.logger.WithSender(conv.SenderID)

	matches, err := o.matcher.Match(ctx, conv.Symptoms, *conv.Location)
	if err != nil {
		log.Error("partner matching failed", zap.Error(err))
		o.sendText(ctx, conv, msgNoPartners)
		return nil
	}
	if len(matches) == 0 {
		log.Info("no partners matched", zap.Strings("symptoms", conv.Symptoms))
		o.sendText(ctx, conv, msgNoPartners)
		return nil
	}

	swapped, err := o.conversations.CompareAndSwapStage(ctx, conv.SenderID, conv.Stage, model.StageReferralSent)
	if err != nil {
		return fmt.Errorf("referral stage swap failed: %w", err)
	}
	if !swapped {
		log.Warn("referral already dispatched for this round, skipping")
		return nil
	}

	round, err := o.conversations.IncReferralCount(ctx, conv.SenderID)
	if err != nil {
		return fmt.Errorf("failed to increment referral count: %w", err)
	}

	for _, m := range matches {
		referral := model.Referral{
			ID:                uuid.Must(uuid.NewV7()).String(),
			SenderID:          conv.SenderID,
			Round:             round,
			PartnerID:         m.Partner.ID,
			PartnerName:       m.Partner.Name,
			Address:           m.Address,
			Symptoms:          conv.Symptoms,
			DistanceKM:        m.DistanceKM,
			SymptomSimilarity: m.SymptomSimilarity,
			ServiceSimilarity: m.ServiceSimilarity,
			Score:             m.Score,
			Status:            model.ReferralStatusSent,
			CreatedAt:         time.Now(),
		}
		if err := o.referrals.Append(ctx, referral); err != nil {
			// The referral flag is already set; losing the record is an audit
			// gap, not a reason to re-dispatch.
			log.Error("failed to append referral record",
				zap.String("partner_id", m.Partner.ID),
				zap.Error(err),
			)
		}
	}

	body := formatReferralMessage(matches)
	if err := o.conversations.SetRecommendation(ctx, conv.SenderID, body); err != nil {
		log.Warn("failed to store recommendation", zap.Error(err))
	}
	o.sendText(ctx, conv, body)
	metrics.ReferralsDispatchedTotal.Inc()
	log.Info("referral dispatched",
		zap.Int("round", round),
		zap.Int("partners", len(matches)),
	)

	o.upsertPatient(ctx, conv)
	o.publishEvent(ctx, conv.SenderID, model.EventReferralDispatched, map[string]any{
		"round":    round,
		"partners": len(matches),
		"symptoms": conv.Symptoms,
	})

	o.sendText(ctx, conv, msgAskAnother)
	if err := o.conversations.SetStage(ctx, conv.SenderID, model.StageAwaitingRepeatDecision); err != nil {
		return fmt.Errorf("failed to enter repeat decision stage: %w", err)
	}
	return nil
}

// handleRepeatDecision resolves the "would you like another referral?"
// question. Yes archives the finished round and opens a fresh one that keeps
// location and language; no closes the conversation; anything else re-asks.
func (o *Orchestrator) handleRepeatDecision(ctx context.Context, conv *model.Conversation, msg model.Inbound) error {
	log := o.logger.WithSender(conv.SenderID)

	var reply string
	switch m := msg.(type) {
	case model.TextMessage:
		reply = m.Body
	case model.InteractiveReply:
		reply = m.Title
		if reply == "" {
			reply = m.ID
		}
	default:
		o.sendText(ctx, conv, msgAskAnother)
		return nil
	}

	conf, err := o.confirmer.Detect(ctx, reply)
	if err != nil {
		log.Warn("repeat decision detection failed", zap.Error(err))
		o.sendText(ctx, conv, msgAskAnother)
		return nil
	}
	if !conf.IsConfirmation {
		o.sendText(ctx, conv, msgAskAnother)
		return nil
	}

	if !conf.Confirmed {
		if err := o.conversations.SetStage(ctx, conv.SenderID, model.StageReferralSent); err != nil {
			return err
		}
		o.sendText(ctx, conv, msgGoodbye)
		return nil
	}

	archived, err := o.archive.ArchiveRound(ctx, conv.SenderID, *conv.Clone())
	if err != nil {
		return fmt.Errorf("failed to archive round: %w", err)
	}
	if err := o.conversations.ResetForNewRound(ctx, conv.SenderID); err != nil {
		return fmt.Errorf("failed to reset for new round: %w", err)
	}
	log.Info("round archived, new round opened",
		zap.String("archive_id", archived.ID),
		zap.Int("referral_count", conv.ReferralCount),
	)

	o.publishEvent(ctx, conv.SenderID, model.EventRoundArchived, map[string]any{
		"archive_id": archived.ID,
		"round":      conv.ReferralCount,
	})

	o.sendText(ctx, conv, msgNewRound)
	return nil
}

// upsertPatient refreshes the cross-round patient profile after a dispatch.
func (o *Orchestrator) upsertPatient(ctx context.Context, conv *model.Conversation) {
	patient := model.Patient{
		PhoneNumber: conv.SenderID,
		Symptoms:    conv.Symptoms,
		Location:    conv.Location,
		Language:    conv.Language,
		CountryName: countryFromPhone(conv.SenderID),
		UpdatedAt:   time.Now(),
	}
	if err := o.patients.UpsertPatient(ctx, patient); err != nil {
		o.logger.WithSender(conv.SenderID).Warn("failed to upsert patient profile", zap.Error(err))
	}
}

// countryCallingCodes maps phone prefixes to country names for the patient
// profile. Longest prefix wins.
var countryCallingCodes = map[string]string{
	"502": "Guatemala",
	"503": "El Salvador",
	"504": "Honduras",
	"505": "Nicaragua",
	"506": "Costa Rica",
	"507": "Panama",
	"52":  "Mexico",
	"1":   "United States",
}

func countryFromPhone(phone string) string {
	phone = strings.TrimPrefix(phone, "+")
	for _, width := range []int{3, 2, 1} {
		if len(phone) < width {
			continue
		}
		if name, ok := countryCallingCodes[phone[:width]]; ok {
			return name
		}
	}
	return ""
}

// formatReferralMessage renders the ranked matches as the referral message.
func formatReferralMessage(matches []match.Match) string {
	var b strings.Builder
	b.WriteString(msgReferralHeader)
	for i, m := range matches {
		fmt.Fprintf(&b, "\n\n%d. %s", i+1, m.Partner.Name)
		if m.Address != "" {
			fmt.Fprintf(&b, "\n   %s", m.Address)
		}
		fmt.Fprintf(&b, "\n   About %.1f km from you", m.DistanceKM)
		if m.Partner.Phone != "" {
			fmt.Fprintf(&b, "\n   Phone: %s", m.Partner.Phone)
		}
	}
	b.WriteString("\n\n")
	b.WriteString(msgReferralFooter)
	return b.String()
}
