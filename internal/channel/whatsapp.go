package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/smart-directory/referral-service/pkg/logger"
	"github.com/smart-directory/referral-service/pkg/metrics"
)

// WhatsApp sends messages through the WhatsApp Cloud API.
type WhatsApp struct {
	http   *http.Client
	apiURL string
	token  string
	logger *logger.Logger
}

// NewWhatsApp creates a WhatsApp Cloud API client. apiBase is the Graph API
// root (version included), phoneNumberID the sending number.
func NewWhatsApp(apiBase, phoneNumberID, accessToken string, log *logger.Logger) *WhatsApp {
	return &WhatsApp{
		http:   &http.Client{Timeout: 15 * time.Second},
		apiURL: fmt.Sprintf("%s/%s/messages", apiBase, phoneNumberID),
		token:  accessToken,
		logger: log,
	}
}

// SendText delivers a plain text message.
func (w *WhatsApp) SendText(ctx context.Context, to, body string) error {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "text",
		"text":              map[string]string{"body": body},
	}
	return w.post(ctx, "text", payload)
}

// SendLocationRequest delivers the interactive location_request_message so
// the patient can share GPS coordinates with one tap.
func (w *WhatsApp) SendLocationRequest(ctx context.Context, to, body string) error {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "interactive",
		"interactive": map[string]any{
			"type":   "location_request_message",
			"body":   map[string]string{"text": body},
			"action": map[string]string{"name": "send_location"},
		},
	}
	return w.post(ctx, "location_request", payload)
}

// SendTemplate delivers a pre-approved template message.
func (w *WhatsApp) SendTemplate(ctx context.Context, to, name string, params []string) error {
	parameters := make([]map[string]string, len(params))
	for i, p := range params {
		parameters[i] = map[string]string{"type": "text", "text": p}
	}

	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "template",
		"template": map[string]any{
			"name":     name,
			"language": map[string]string{"code": "es"},
			"components": []map[string]any{
				{"type": "body", "parameters": parameters},
			},
		},
	}
	return w.post(ctx, "template", payload)
}

func (w *WhatsApp) post(ctx context.Context, kind string, payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		metrics.OutboundMessagesTotal.WithLabelValues(kind, "error").Inc()
		return fmt.Errorf("failed to marshal %s payload: %w", kind, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.apiURL, bytes.NewReader(data))
	if err != nil {
		metrics.OutboundMessagesTotal.WithLabelValues(kind, "error").Inc()
		return fmt.Errorf("failed to build %s request: %w", kind, err)
	}
	req.Header.Set("Authorization", "Bearer "+w.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.http.Do(req)
	if err != nil {
		metrics.OutboundMessagesTotal.WithLabelValues(kind, "error").Inc()
		return fmt.Errorf("failed to send %s message: %w", kind, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		metrics.OutboundMessagesTotal.WithLabelValues(kind, "error").Inc()
		w.logger.Error("channel rejected message",
			zap.String("kind", kind),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", body),
		)
		return fmt.Errorf("channel returned status %d", resp.StatusCode)
	}

	metrics.OutboundMessagesTotal.WithLabelValues(kind, "success").Inc()
	return nil
}
