package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smart-directory/referral-service/internal/extract"
	"github.com/smart-directory/referral-service/internal/geocode"
	"github.com/smart-directory/referral-service/internal/match"
	"github.com/smart-directory/referral-service/internal/model"
	"github.com/smart-directory/referral-service/internal/store"
	"github.com/smart-directory/referral-service/pkg/logger"
)

const sender = "50212345678"

// fakeExtractor maps exact message bodies to canned extractions. Unknown
// bodies extract nothing.
type fakeExtractor struct {
	byText map[string]*extract.Extraction
	err    error
}

func (f *fakeExtractor) Extract(ctx context.Context, text string) (*extract.Extraction, error) {
	if f.err != nil {
		return nil, f.err
	}
	if out, ok := f.byText[text]; ok {
		return out, nil
	}
	return &extract.Extraction{}, nil
}

// fakeConfirmer reuses the production fast path; everything it cannot match
// is a non-answer.
type fakeConfirmer struct{ err error }

func (f *fakeConfirmer) Detect(ctx context.Context, text string) (extract.Confirmation, error) {
	if f.err != nil {
		return extract.Confirmation{}, f.err
	}
	if conf, ok := extract.FastConfirmation(text); ok {
		return conf, nil
	}
	return extract.Confirmation{}, nil
}

// identityTranslator records requested target languages and returns text
// unchanged.
type identityTranslator struct{ targets []string }

func (f *identityTranslator) Translate(ctx context.Context, text, targetLanguage string) (string, error) {
	f.targets = append(f.targets, targetLanguage)
	return text, nil
}

type fakeGeocoder struct {
	results map[string]*geocode.Result
	err     error
	calls   int
}

func (f *fakeGeocoder) Geocode(ctx context.Context, text string) (*geocode.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if res, ok := f.results[text]; ok {
		return res, nil
	}
	return nil, geocode.ErrNotFound
}

type fakeMatcher struct {
	matches []match.Match
	err     error
	calls   int
}

func (f *fakeMatcher) Match(ctx context.Context, symptoms []string, loc model.Location) ([]match.Match, error) {
	f.calls++
	return f.matches, f.err
}

// fakeChannel records every outbound message.
type fakeChannel struct {
	texts            []string
	locationRequests int
}

func (f *fakeChannel) SendText(ctx context.Context, to, body string) error {
	f.texts = append(f.texts, body)
	return nil
}

func (f *fakeChannel) SendLocationRequest(ctx context.Context, to, body string) error {
	f.locationRequests++
	return nil
}

func (f *fakeChannel) SendTemplate(ctx context.Context, to, name string, params []string) error {
	return nil
}

func (f *fakeChannel) lastText() string {
	if len(f.texts) == 0 {
		return ""
	}
	return f.texts[len(f.texts)-1]
}

type harness struct {
	orch       *Orchestrator
	data       *store.Memory
	extractor  *fakeExtractor
	confirmer  *fakeConfirmer
	translator *identityTranslator
	geocoder   *fakeGeocoder
	matcher    *fakeMatcher
	channel    *fakeChannel
}

func newHarness() *harness {
	h := &harness{
		data:       store.NewMemory(),
		extractor:  &fakeExtractor{byText: map[string]*extract.Extraction{}},
		confirmer:  &fakeConfirmer{},
		translator: &identityTranslator{},
		geocoder:   &fakeGeocoder{results: map[string]*geocode.Result{}},
		matcher:    &fakeMatcher{},
		channel:    &fakeChannel{},
	}
	h.orch = New(Deps{
		Conversations: h.data,
		Referrals:     h.data,
		Archive:       h.data,
		Patients:      h.data,
		Matcher:       h.matcher,
		Extractor:     h.extractor,
		Confirmer:     h.confirmer,
		Translator:    h.translator,
		Geocoder:      h.geocoder,
		Channel:       h.channel,
		Logger:        logger.Nop(),
		CountryName:   "Guatemala",
	})
	return h
}

func (h *harness) text(t *testing.T, body string) {
	t.Helper()
	require.NoError(t, h.orch.HandleInbound(context.Background(), sender, model.TextMessage{Body: body}))
}

func (h *harness) gps(t *testing.T, lat, lon float64) {
	t.Helper()
	require.NoError(t, h.orch.HandleInbound(context.Background(), sender, model.LocationMessage{Lat: lat, Lon: lon}))
}

func (h *harness) conversation(t *testing.T) *model.Conversation {
	t.Helper()
	conv, err := h.data.Get(context.Background(), sender)
	require.NoError(t, err)
	return conv
}

func countOccurrences(list []string, s string) int {
	n := 0
	for _, v := range list {
		if v == s {
			n++
		}
	}
	return n
}

func someMatches() []match.Match {
	return []match.Match{
		{
			Partner:    model.Partner{ID: "p1", Name: "Clinic Uno", Phone: "+50222220000"},
			Score:      0.8,
			DistanceKM: 3.2,
			Address:    "Zone 1, Guatemala City",
		},
		{
			Partner:    model.Partner{ID: "p2", Name: "Clinic Dos"},
			Score:      0.6,
			DistanceKM: 7.9,
			Address:    "Zone 10, Guatemala City",
		},
	}
}

func TestFirstMessageWithoutDataAsksForSymptoms(t *testing.T) {
	h := newHarness()

	h.text(t, "hello")

	conv := h.conversation(t)
	assert.Equal(t, model.StageAwaitingSymptoms, conv.Stage)
	assert.Equal(t, msgRequestSymptoms, h.channel.lastText())
}

func TestSymptomsOnlyRequestsLocation(t *testing.T) {
	h := newHarness()
	h.extractor.byText["I have a fever"] = &extract.Extraction{
		Symptoms: []string{"fever"},
		Language: "English",
	}

	h.text(t, "I have a fever")

	conv := h.conversation(t)
	assert.Equal(t, []string{"fever"}, conv.Symptoms)
	assert.Equal(t, "English", conv.Language)
	assert.Equal(t, model.StageAwaitingLocation, conv.Stage)
	assert.Equal(t, 1, h.channel.locationRequests)
	assert.Zero(t, h.matcher.calls)
}

func TestGPSAfterSymptomsDispatchesReferral(t *testing.T) {
	h := newHarness()
	h.extractor.byText["I have a fever"] = &extract.Extraction{Symptoms: []string{"fever"}}
	h.matcher.matches = someMatches()

	h.text(t, "I have a fever")
	h.gps(t, 14.6349, -90.5069)

	conv := h.conversation(t)
	assert.Equal(t, model.StageAwaitingRepeatDecision, conv.Stage)
	assert.True(t, conv.ReferralProvided())
	assert.Equal(t, 1, conv.ReferralCount)
	assert.NotEmpty(t, conv.Recommendation)
	assert.Contains(t, conv.Recommendation, "Clinic Uno")

	referrals, err := h.data.ListBySender(context.Background(), sender)
	require.NoError(t, err)
	require.Len(t, referrals, 2)
	assert.Equal(t, 1, referrals[0].Round)
	assert.Equal(t, model.ReferralStatusSent, referrals[0].Status)

	// Last outbound message is the repeat question, preceded by the referral.
	assert.Equal(t, msgAskAnother, h.channel.lastText())
	assert.Contains(t, h.channel.texts[len(h.channel.texts)-2], "Clinic Uno")
}

func TestReferralDispatchedOncePerRound(t *testing.T) {
	h := newHarness()
	h.extractor.byText["I have a fever"] = &extract.Extraction{Symptoms: []string{"fever"}}
	h.matcher.matches = someMatches()

	h.text(t, "I have a fever")
	h.gps(t, 14.6349, -90.5069)
	require.Equal(t, 1, h.matcher.calls)

	// Follow-up messages in the same round never re-run matching.
	h.text(t, "thank you")
	h.text(t, "maybe")

	conv := h.conversation(t)
	assert.Equal(t, 1, h.matcher.calls)
	assert.Equal(t, 1, conv.ReferralCount)

	referrals, _ := h.data.ListBySender(context.Background(), sender)
	assert.Len(t, referrals, 2)
}

func TestTextLocationConfirmedYes(t *testing.T) {
	h := newHarness()
	h.extractor.byText["I have a fever, I live in Antigua"] = &extract.Extraction{
		Symptoms: []string{"fever"},
		Location: "Antigua",
	}
	h.geocoder.results["Antigua"] = &geocode.Result{
		Lat: 14.5586, Lon: -90.7295, Address: "Antigua Guatemala, Guatemala",
	}
	h.matcher.matches = someMatches()

	h.text(t, "I have a fever, I live in Antigua")

	conv := h.conversation(t)
	require.NotNil(t, conv.PendingLocation)
	assert.Nil(t, conv.Location)
	assert.Equal(t, model.StageAwaitingConfirmation, conv.Stage)
	assert.Contains(t, h.channel.lastText(), "Antigua Guatemala")
	assert.Zero(t, h.matcher.calls)

	h.text(t, "yes")

	conv = h.conversation(t)
	require.NotNil(t, conv.Location)
	assert.Equal(t, "Antigua Guatemala, Guatemala", conv.Location.Description)
	assert.Nil(t, conv.PendingLocation)
	assert.Zero(t, conv.ConfirmationAttempts)
	assert.Equal(t, 1, h.matcher.calls)
	assert.True(t, conv.ReferralProvided())
}

func TestTextLocationRejectedThenGPSOnly(t *testing.T) {
	h := newHarness()
	h.extractor.byText["in Antigua"] = &extract.Extraction{Location: "Antigua"}
	h.geocoder.results["Antigua"] = &geocode.Result{
		Lat: 14.5586, Lon: -90.7295, Address: "Antigua Guatemala, Guatemala",
	}

	h.text(t, "in Antigua")
	h.text(t, "no")

	conv := h.conversation(t)
	assert.Nil(t, conv.PendingLocation)
	assert.Equal(t, 1, conv.ConfirmationAttempts)
	assert.Equal(t, model.StageAwaitingLocation, conv.Stage)
	assert.Contains(t, h.channel.texts, msgLocationRetry)

	h.text(t, "in Antigua")
	h.text(t, "no")

	conv = h.conversation(t)
	assert.Equal(t, 2, conv.ConfirmationAttempts)
	assert.Contains(t, h.channel.texts, msgGPSOnly)

	// The cap is reached: further text references never hit the geocoder.
	geocodeCalls := h.geocoder.calls
	gpsOnlyCount := countOccurrences(h.channel.texts, msgGPSOnly)
	h.text(t, "in Antigua")
	assert.Equal(t, geocodeCalls, h.geocoder.calls)
	assert.Equal(t, gpsOnlyCount+1, countOccurrences(h.channel.texts, msgGPSOnly))
}

func TestGeocodeMissIncrementsAttempts(t *testing.T) {
	h := newHarness()
	h.extractor.byText["in Xyzzy"] = &extract.Extraction{Location: "Xyzzy"}

	h.text(t, "in Xyzzy")

	conv := h.conversation(t)
	assert.Equal(t, 1, conv.ConfirmationAttempts)
	assert.Nil(t, conv.PendingLocation)
	assert.Contains(t, strings.Join(h.channel.texts, "\n"), "Guatemala")
}

func TestGeocodeServiceErrorDoesNotConsumeAttempt(t *testing.T) {
	h := newHarness()
	h.extractor.byText["in Antigua"] = &extract.Extraction{Location: "Antigua"}
	h.geocoder.err = errors.New("service unavailable")

	h.text(t, "in Antigua")

	conv := h.conversation(t)
	assert.Zero(t, conv.ConfirmationAttempts)
	assert.Nil(t, conv.PendingLocation)
}

func TestNewReferenceWhilePendingReasksWithoutGeocoding(t *testing.T) {
	h := newHarness()
	h.extractor.byText["in Antigua"] = &extract.Extraction{Location: "Antigua"}
	h.extractor.byText["actually in Escuintla"] = &extract.Extraction{Location: "Escuintla"}
	h.geocoder.results["Antigua"] = &geocode.Result{
		Lat: 14.5586, Lon: -90.7295, Address: "Antigua Guatemala, Guatemala",
	}

	h.text(t, "in Antigua")
	require.Equal(t, 1, h.geocoder.calls)

	h.text(t, "actually in Escuintla")

	// The pending candidate still stands and the question is re-asked.
	assert.Equal(t, 1, h.geocoder.calls)
	conv := h.conversation(t)
	require.NotNil(t, conv.PendingLocation)
	assert.Contains(t, h.channel.lastText(), "Antigua Guatemala")
}

func TestGPSOverridesPendingCandidate(t *testing.T) {
	h := newHarness()
	h.extractor.byText["in Antigua"] = &extract.Extraction{Location: "Antigua"}
	h.geocoder.results["Antigua"] = &geocode.Result{
		Lat: 14.5586, Lon: -90.7295, Address: "Antigua Guatemala, Guatemala",
	}

	h.text(t, "in Antigua")
	h.gps(t, 14.6349, -90.5069)

	conv := h.conversation(t)
	require.NotNil(t, conv.Location)
	assert.InDelta(t, 14.6349, conv.Location.Lat, 1e-9)
	assert.Nil(t, conv.PendingLocation)
	assert.Zero(t, conv.ConfirmationAttempts)
}

func TestEmptyMatchLeavesRoundOpen(t *testing.T) {
	h := newHarness()
	h.extractor.byText["I have a fever"] = &extract.Extraction{Symptoms: []string{"fever"}}
	h.matcher.matches = nil

	h.text(t, "I have a fever")
	h.gps(t, 14.6349, -90.5069)

	conv := h.conversation(t)
	assert.False(t, conv.ReferralProvided())
	assert.Zero(t, conv.ReferralCount)
	assert.Contains(t, h.channel.texts, msgNoPartners)

	referrals, _ := h.data.ListBySender(context.Background(), sender)
	assert.Empty(t, referrals)

	// Partners appear later: the next message dispatches.
	h.matcher.matches = someMatches()
	h.text(t, "hello again")

	conv = h.conversation(t)
	assert.True(t, conv.ReferralProvided())
	assert.Equal(t, 1, conv.ReferralCount)
}

func TestMatcherErrorLeavesRoundOpen(t *testing.T) {
	h := newHarness()
	h.extractor.byText["I have a fever"] = &extract.Extraction{Symptoms: []string{"fever"}}
	h.matcher.err = errors.New("embedding provider down")

	h.text(t, "I have a fever")
	h.gps(t, 14.6349, -90.5069)

	conv := h.conversation(t)
	assert.False(t, conv.ReferralProvided())
	assert.Contains(t, h.channel.texts, msgNoPartners)
}

func TestRepeatDecisionYesOpensNewRound(t *testing.T) {
	h := newHarness()
	h.extractor.byText["I have a fever"] = &extract.Extraction{Symptoms: []string{"fever"}}
	h.matcher.matches = someMatches()

	h.text(t, "I have a fever")
	h.gps(t, 14.6349, -90.5069)
	h.text(t, "yes")

	conv := h.conversation(t)
	assert.Equal(t, model.StageAwaitingSymptoms, conv.Stage)
	assert.Empty(t, conv.Symptoms)
	assert.Empty(t, conv.Recommendation)
	assert.Equal(t, 1, conv.ReferralCount)
	require.NotNil(t, conv.Location)
	assert.Equal(t, msgNewRound, h.channel.lastText())

	archived, err := h.data.ListArchived(context.Background(), sender)
	require.NoError(t, err)
	require.Len(t, archived, 1)
	assert.Equal(t, []string{"fever"}, archived[0].Snapshot.Symptoms)

	// Second round reuses the retained location and bumps the round number.
	h.extractor.byText["now my tooth hurts"] = &extract.Extraction{Symptoms: []string{"toothache"}}
	h.text(t, "now my tooth hurts")

	conv = h.conversation(t)
	assert.True(t, conv.ReferralProvided())
	assert.Equal(t, 2, conv.ReferralCount)

	referrals, _ := h.data.ListBySender(context.Background(), sender)
	require.Len(t, referrals, 4)
	assert.Equal(t, 2, referrals[2].Round)
	assert.Equal(t, []string{"toothache"}, referrals[2].Symptoms)
}

func TestRepeatDecisionNoClosesConversation(t *testing.T) {
	h := newHarness()
	h.extractor.byText["I have a fever"] = &extract.Extraction{Symptoms: []string{"fever"}}
	h.matcher.matches = someMatches()

	h.text(t, "I have a fever")
	h.gps(t, 14.6349, -90.5069)
	h.text(t, "no")

	conv := h.conversation(t)
	assert.Equal(t, model.StageReferralSent, conv.Stage)
	assert.Equal(t, msgGoodbye, h.channel.lastText())

	archived, _ := h.data.ListArchived(context.Background(), sender)
	assert.Empty(t, archived)
}

func TestRepeatDecisionAmbiguousReasks(t *testing.T) {
	h := newHarness()
	h.extractor.byText["I have a fever"] = &extract.Extraction{Symptoms: []string{"fever"}}
	h.matcher.matches = someMatches()

	h.text(t, "I have a fever")
	h.gps(t, 14.6349, -90.5069)
	h.text(t, "what do you mean")

	conv := h.conversation(t)
	assert.Equal(t, model.StageAwaitingRepeatDecision, conv.Stage)
	assert.Equal(t, msgAskAnother, h.channel.lastText())
}

func TestResetCommand(t *testing.T) {
	h := newHarness()
	h.extractor.byText["I have a fever"] = &extract.Extraction{
		Symptoms: []string{"fever"},
		Language: "Spanish",
	}
	h.matcher.matches = someMatches()

	h.text(t, "I have a fever")
	h.gps(t, 14.6349, -90.5069)
	h.text(t, "/reset")

	conv := h.conversation(t)
	assert.Equal(t, model.StageAwaitingSymptoms, conv.Stage)
	assert.Empty(t, conv.Symptoms)
	assert.Empty(t, conv.Language)
	assert.Nil(t, conv.Location)
	assert.Zero(t, conv.ReferralCount)
	assert.Equal(t, msgResetDone, h.channel.lastText())
}

func TestLanguageFirstWriterWins(t *testing.T) {
	h := newHarness()
	h.extractor.byText["tengo fiebre"] = &extract.Extraction{
		Symptoms: []string{"fever"},
		Language: "Spanish",
	}
	h.extractor.byText["and also a cough"] = &extract.Extraction{
		Symptoms: []string{"cough"},
		Language: "English",
	}

	h.text(t, "tengo fiebre")
	h.text(t, "and also a cough")

	conv := h.conversation(t)
	assert.Equal(t, "Spanish", conv.Language)
	assert.Equal(t, []string{"fever", "cough"}, conv.Symptoms)

	// Outbound copy after the first turn is translated to the recorded
	// language.
	assert.Contains(t, h.translator.targets, "Spanish")
	assert.NotContains(t, h.translator.targets, "English")
}

func TestExtractionFailureStillPrompts(t *testing.T) {
	h := newHarness()
	h.extractor.err = errors.New("provider down")

	h.text(t, "hello")

	conv := h.conversation(t)
	assert.Equal(t, model.StageAwaitingSymptoms, conv.Stage)
	assert.Equal(t, msgRequestSymptoms, h.channel.lastText())
}

func TestInteractiveReplyRemindsAboutLocation(t *testing.T) {
	h := newHarness()
	h.extractor.byText["I have a fever"] = &extract.Extraction{Symptoms: []string{"fever"}}

	h.text(t, "I have a fever")
	requests := h.channel.locationRequests

	require.NoError(t, h.orch.HandleInbound(context.Background(), sender,
		model.InteractiveReply{ID: "btn", Title: "Share location"}))

	assert.Greater(t, h.channel.locationRequests, requests)
}

func TestCountryFromPhone(t *testing.T) {
	assert.Equal(t, "Guatemala", countryFromPhone("50212345678"))
	assert.Equal(t, "Guatemala", countryFromPhone("+50212345678"))
	assert.Equal(t, "Mexico", countryFromPhone("5215512345678"))
	assert.Equal(t, "United States", countryFromPhone("14155551234"))
	assert.Equal(t, "", countryFromPhone(""))
}

func TestFormatReferralMessage(t *testing.T) {
	msg := formatReferralMessage(someMatches())

	assert.Contains(t, msg, msgReferralHeader)
	assert.Contains(t, msg, "1. Clinic Uno")
	assert.Contains(t, msg, "2. Clinic Dos")
	assert.Contains(t, msg, "Zone 1, Guatemala City")
	assert.Contains(t, msg, "3.2 km")
	assert.Contains(t, msg, "+50222220000")
	assert.Contains(t, msg, msgReferralFooter)
}
