// Package handler implements the HTTP surface: the messaging webhook, health
// probes and the admin data browser.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/smart-directory/referral-service/internal/middleware"
	"github.com/smart-directory/referral-service/internal/model"
	"github.com/smart-directory/referral-service/internal/orchestrator"
	"github.com/smart-directory/referral-service/pkg/logger"
)

// WebhookHandler receives the messaging channel's webhook callbacks. The
// webhook is acknowledged immediately; orchestration happens off the request
// goroutine so channel retries never pile up behind LLM latency.
type WebhookHandler struct {
	orch          *orchestrator.Orchestrator
	verifyToken   string
	handleTimeout time.Duration
	logger        *logger.Logger
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(orch *orchestrator.Orchestrator, verifyToken string, handleTimeout time.Duration, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		orch:          orch,
		verifyToken:   verifyToken,
		handleTimeout: handleTimeout,
		logger:        log,
	}
}

// Verify handles GET /webhook, the channel's subscription handshake. The
// challenge is echoed back as plain text on a token match.
func (h *WebhookHandler) Verify(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode == "subscribe" && token == h.verifyToken {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(challenge))
		return
	}

	h.logger.Warn("webhook verification failed", zap.String("mode", mode))
	writeError(w, http.StatusForbidden, "verification failed")
}

// webhookPayload mirrors the channel's webhook envelope down to the message
// list. Everything else in the envelope is ignored.
type webhookPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []webhookMessage `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type webhookMessage struct {
	From string `json:"from"`
	Type string `json:"type"`

	Text *struct {
		Body string `json:"body"`
	} `json:"text,omitempty"`

	Location *struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"location,omitempty"`

	Interactive *struct {
		Type        string            `json:"type"`
		ButtonReply *interactiveReply `json:"button_reply,omitempty"`
		ListReply   *interactiveReply `json:"list_reply,omitempty"`
	} `json:"interactive,omitempty"`
}

type interactiveReply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Receive handles POST /webhook. It always acknowledges with 200 once the
// envelope parses; per-message processing runs in the background with its own
// timeout.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	var payload webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				h.process(msg)
			}
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
}

// process validates one webhook message and hands it to the orchestrator in
// the background. Status-only callbacks and unsupported message types are
// dropped silently.
func (h *WebhookHandler) process(msg webhookMessage) {
	if err := middleware.ValidateSenderID(msg.From); err != nil {
		h.logger.Warn("dropping message with invalid sender", zap.Error(err))
		return
	}

	inbound, ok := toInbound(msg)
	if !ok {
		h.logger.Debug("ignoring unsupported message type", zap.String("type", msg.Type))
		return
	}

	go func() {
		// Detached from the request context: the webhook response must not
		// wait for orchestration.
		ctx, cancel := context.WithTimeout(context.Background(), h.handleTimeout)
		defer cancel()

		if err := h.orch.HandleInbound(ctx, msg.From, inbound); err != nil {
			h.logger.WithSender(msg.From).Error("failed to handle inbound message", zap.Error(err))
		}
	}()
}

// toInbound maps a webhook message onto the closed inbound message type set.
func toInbound(msg webhookMessage) (model.Inbound, bool) {
	switch msg.Type {
	case "text":
		if msg.Text == nil {
			return nil, false
		}
		if err := middleware.ValidateMessageBody(msg.Text.Body); err != nil {
			return nil, false
		}
		return model.TextMessage{Body: msg.Text.Body}, true
	case "location":
		if msg.Location == nil {
			return nil, false
		}
		return model.LocationMessage{Lat: msg.Location.Latitude, Lon: msg.Location.Longitude}, true
	case "interactive":
		if msg.Interactive == nil {
			return nil, false
		}
		reply := msg.Interactive.ButtonReply
		if reply == nil {
			reply = msg.Interactive.ListReply
		}
		if reply == nil {
			return nil, false
		}
		return model.InteractiveReply{ID: reply.ID, Title: reply.Title}, true
	default:
		return nil, false
	}
}
