// Package extract wraps the LLM provider with the narrow language tasks the
// intake flow needs: structured data extraction, confirmation-intent
// detection and outbound message translation.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/smart-directory/referral-service/internal/llm"
	"github.com/smart-directory/referral-service/pkg/logger"
)

const extractionSystemPrompt = `You extract structured intake data from patient messages for a health referral service.

Respond with a single JSON object and nothing else:
{"location": string or null, "symptoms": array of strings or null, "language": string or null}

Rules:
- "location": a place reference mentioned in the message (city, town, neighborhood), null if none.
- "symptoms": each distinct symptom as a short phrase, spelling-corrected and translated to English, null if none.
- "language": the full English name of the language the message is written in ("Spanish", "English", ...), null if undeterminable.
- Yes/no answers, greetings and questions carry no symptoms and no location.`

// Extraction is the structured result of one text message.
type Extraction struct {
	Location string   `json:"location"`
	Symptoms []string `json:"symptoms"`
	Language string   `json:"language"`
}

// Extractor pulls location, symptoms and language out of free text.
type Extractor struct {
	llm    llm.Client
	logger *logger.Logger
}

// NewExtractor creates a new extractor on top of an LLM client.
func NewExtractor(client llm.Client, log *logger.Logger) *Extractor {
	return &Extractor{llm: client, logger: log}
}

// Extract runs the extraction prompt over text. A provider error or malformed
// output is returned as an error; callers treat it as "no data extracted".
func (e *Extractor) Extract(ctx context.Context, text string) (*Extraction, error) {
	resp, err := e.llm.Complete(ctx, &llm.CompletionRequest{
		System:      extractionSystemPrompt,
		Messages:    []llm.Message{{Role: "user", Content: text}},
		Temperature: 0,
		MaxTokens:   512,
	})
	if err != nil {
		return nil, fmt.Errorf("extraction call failed: %w", err)
	}

	var out Extraction
	if err := json.Unmarshal([]byte(stripFences(resp.Content)), &out); err != nil {
		return nil, fmt.Errorf("malformed extraction output: %w", err)
	}
	return &out, nil
}

// stripFences removes a markdown code fence the model sometimes wraps JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
