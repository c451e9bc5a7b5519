package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smart-directory/referral-service/internal/model"
	"github.com/smart-directory/referral-service/pkg/logger"
)

func newVerifyHandler() *WebhookHandler {
	return NewWebhookHandler(nil, "secret-token", 0, logger.Nop())
}

func TestVerifyEchoesChallenge(t *testing.T) {
	h := newVerifyHandler()

	req := httptest.NewRequest(http.MethodGet,
		"/webhook?hub.mode=subscribe&hub.verify_token=secret-token&hub.challenge=12345", nil)
	rec := httptest.NewRecorder()

	h.Verify(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "12345", rec.Body.String())
	assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
}

func TestVerifyRejectsWrongToken(t *testing.T) {
	h := newVerifyHandler()

	req := httptest.NewRequest(http.MethodGet,
		"/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", nil)
	rec := httptest.NewRecorder()

	h.Verify(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.NotContains(t, rec.Body.String(), "12345")
}

func TestVerifyRejectsWrongMode(t *testing.T) {
	h := newVerifyHandler()

	req := httptest.NewRequest(http.MethodGet,
		"/webhook?hub.mode=unsubscribe&hub.verify_token=secret-token&hub.challenge=12345", nil)
	rec := httptest.NewRecorder()

	h.Verify(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestReceiveRejectsMalformedJSON(t *testing.T) {
	h := newVerifyHandler()

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()

	h.Receive(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReceiveAcksStatusOnlyCallback(t *testing.T) {
	h := newVerifyHandler()

	// Delivery-status callbacks carry no messages array; they are acked and
	// otherwise ignored.
	body := `{"entry":[{"changes":[{"value":{"statuses":[{"id":"wamid.x","status":"delivered"}]}}]}]}`
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.Receive(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestToInboundText(t *testing.T) {
	msg := webhookMessage{From: "50212345678", Type: "text"}
	msg.Text = &struct {
		Body string `json:"body"`
	}{Body: "hello"}

	inbound, ok := toInbound(msg)
	require.True(t, ok)
	text, ok := inbound.(model.TextMessage)
	require.True(t, ok)
	assert.Equal(t, "hello", text.Body)
}

func TestToInboundLocation(t *testing.T) {
	msg := webhookMessage{From: "50212345678", Type: "location"}
	msg.Location = &struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	}{Latitude: 14.6349, Longitude: -90.5069}

	inbound, ok := toInbound(msg)
	require.True(t, ok)
	loc, ok := inbound.(model.LocationMessage)
	require.True(t, ok)
	assert.InDelta(t, 14.6349, loc.Lat, 1e-9)
	assert.InDelta(t, -90.5069, loc.Lon, 1e-9)
}

func TestToInboundInteractive(t *testing.T) {
	msg := webhookMessage{From: "50212345678", Type: "interactive"}
	msg.Interactive = &struct {
		Type        string            `json:"type"`
		ButtonReply *interactiveReply `json:"button_reply,omitempty"`
		ListReply   *interactiveReply `json:"list_reply,omitempty"`
	}{
		Type:        "button_reply",
		ButtonReply: &interactiveReply{ID: "yes-btn", Title: "Yes"},
	}

	inbound, ok := toInbound(msg)
	require.True(t, ok)
	reply, ok := inbound.(model.InteractiveReply)
	require.True(t, ok)
	assert.Equal(t, "yes-btn", reply.ID)
	assert.Equal(t, "Yes", reply.Title)
}

func TestToInboundUnsupportedType(t *testing.T) {
	_, ok := toInbound(webhookMessage{From: "50212345678", Type: "sticker"})
	assert.False(t, ok)

	// Declared type without the matching payload is dropped too.
	_, ok = toInbound(webhookMessage{From: "50212345678", Type: "text"})
	assert.False(t, ok)
}
