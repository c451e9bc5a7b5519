package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/smart-directory/referral-service/internal/geocode"
	"github.com/smart-directory/referral-service/internal/model"
)

// maxConfirmationAttempts caps the geocode-and-confirm loop. Once a patient
// has rejected (or failed to geocode) this many candidates, only GPS sharing
// can resolve their location.
const maxConfirmationAttempts = 2

// routeLocationText routes the location-relevant part of a text turn. The
// pending confirmation, if any, wins: a fresh location reference while a
// candidate awaits confirmation re-asks the question instead of geocoding
// again.
func (o *Orchestrator) routeLocationText(ctx context.Context, conv *model.Conversation, locationRef, body string) error {
	if conv.LocationResolved() {
		return nil
	}

	if conv.PendingLocation != nil {
		if locationRef != "" {
			o.askLocationConfirmation(ctx, conv, *conv.PendingLocation)
			return nil
		}
		return o.handleConfirmationReply(ctx, conv, body)
	}

	if locationRef != "" {
		return o.processLocationReference(ctx, conv, locationRef)
	}
	return nil
}

// processLocationReference geocodes a textual location reference and stages
// the result for confirmation. After the attempt cap is reached the geocoder
// is not called again; the patient is steered to GPS sharing.
func (o *Orchestrator) processLocationReference(ctx context.Context, conv *model.Conversation, ref string) error {
	log := o.logger.WithSender(conv.SenderID)

	if conv.ConfirmationAttempts >= maxConfirmationAttempts {
		o.sendText(ctx, conv, msgGPSOnly)
		o.sendLocationRequest(ctx, conv)
		return nil
	}

	res, err := o.geocoder.Geocode(ctx, ref)
	switch {
	case errors.Is(err, geocode.ErrNotFound):
		log.Info("location reference not found", zap.String("reference", ref))
		if _, err := o.conversations.IncConfirmationAttempts(ctx, conv.SenderID); err != nil {
			return fmt.Errorf("failed to record geocode miss: %w", err)
		}
		o.sendText(ctx, conv, fmt.Sprintf(msgLocationNotFound, o.country))
		o.sendLocationRequest(ctx, conv)
		return nil
	case err != nil:
		// Service failures read like a miss to the patient but do not consume
		// an attempt.
		log.Error("geocoding failed", zap.String("reference", ref), zap.Error(err))
		o.sendText(ctx, conv, fmt.Sprintf(msgLocationNotFound, o.country))
		o.sendLocationRequest(ctx, conv)
		return nil
	}

	pending := model.Location{Lat: res.Lat, Lon: res.Lon, Description: res.Address}
	if err := o.conversations.SetPendingLocation(ctx, conv.SenderID, pending); err != nil {
		return fmt.Errorf("failed to stage pending location: %w", err)
	}
	if err := o.conversations.SetStage(ctx, conv.SenderID, model.StageAwaitingConfirmation); err != nil {
		return err
	}

	o.askLocationConfirmation(ctx, conv, pending)
	return nil
}

// handleConfirmationReply resolves a reply to the pending location question.
func (o *Orchestrator) handleConfirmationReply(ctx context.Context, conv *model.Conversation, body string) error {
	log := o.logger.WithSender(conv.SenderID)

	conf, err := o.confirmer.Detect(ctx, body)
	if err != nil {
		log.Warn("confirmation detection failed", zap.Error(err))
		o.askLocationConfirmation(ctx, conv, *conv.PendingLocation)
		return nil
	}
	if !conf.IsConfirmation {
		o.askLocationConfirmation(ctx, conv, *conv.PendingLocation)
		return nil
	}

	if conf.Confirmed {
		return o.acceptLocation(ctx, conv, *conv.PendingLocation, msgLocationSaved)
	}

	if err := o.conversations.ClearPendingLocation(ctx, conv.SenderID); err != nil {
		return fmt.Errorf("failed to clear pending location: %w", err)
	}
	attempts, err := o.conversations.IncConfirmationAttempts(ctx, conv.SenderID)
	if err != nil {
		return fmt.Errorf("failed to record rejected confirmation: %w", err)
	}
	if err := o.conversations.SetStage(ctx, conv.SenderID, model.StageAwaitingLocation); err != nil {
		return err
	}

	if attempts >= maxConfirmationAttempts {
		o.sendText(ctx, conv, msgGPSOnly)
	} else {
		o.sendText(ctx, conv, msgLocationRetry)
	}
	o.sendLocationRequest(ctx, conv)
	return nil
}

// handleGPS records shared GPS coordinates directly, with no confirmation
// round trip. GPS always wins over any pending candidate.
func (o *Orchestrator) handleGPS(ctx context.Context, conv *model.Conversation, lat, lon float64) error {
	o.logger.WithSender(conv.SenderID).Info("GPS location received",
		zap.Float64("lat", lat),
		zap.Float64("lon", lon),
	)

	if err := o.conversations.AppendMessage(ctx, conv.SenderID, model.TranscriptMessage{
		Sender:    conv.SenderID,
		Text:      fmt.Sprintf("[shared GPS location %.5f, %.5f]", lat, lon),
		CreatedAt: time.Now(),
	}); err != nil {
		o.logger.WithSender(conv.SenderID).Warn("failed to append transcript message", zap.Error(err))
	}

	loc := model.Location{
		Lat:         lat,
		Lon:         lon,
		Description: fmt.Sprintf("GPS coordinates %.5f, %.5f", lat, lon),
	}
	return o.acceptLocation(ctx, conv, loc, msgGPSSaved)
}

// acceptLocation commits loc as the resolved patient location and clears the
// confirmation machinery.
func (o *Orchestrator) acceptLocation(ctx context.Context, conv *model.Conversation, loc model.Location, ackFormat string) error {
	if err := o.conversations.SetLocation(ctx, conv.SenderID, loc); err != nil {
		return fmt.Errorf("failed to set location: %w", err)
	}
	if err := o.conversations.ClearPendingLocation(ctx, conv.SenderID); err != nil {
		return fmt.Errorf("failed to clear pending location: %w", err)
	}
	if err := o.conversations.ResetConfirmationAttempts(ctx, conv.SenderID); err != nil {
		return fmt.Errorf("failed to reset confirmation attempts: %w", err)
	}

	next := model.StageAwaitingSymptoms
	if conv.HasSymptoms() {
		next = model.StageReady
	}
	if err := o.conversations.SetStage(ctx, conv.SenderID, next); err != nil {
		return err
	}

	o.sendText(ctx, conv, fmt.Sprintf(ackFormat, loc.Description))
	return nil
}

// askLocationConfirmation sends the yes/no question for a geocoded candidate.
func (o *Orchestrator) askLocationConfirmation(ctx context.Context, conv *model.Conversation, pending model.Location) {
	o.sendText(ctx, conv, fmt.Sprintf(msgConfirmLocation, pending.Description))
}
