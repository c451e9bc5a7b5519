package extract

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/smart-directory/referral-service/internal/llm"
	"github.com/smart-directory/referral-service/pkg/logger"
)

const translationSystemPrompt = `You are a professional medical translator. Translate the user's healthcare message to %TARGET%.

Rules:
- Maintain the exact meaning and tone
- Keep medical terminology accurate
- Preserve formatting (line breaks, numbering)
- If the message is already in %TARGET%, return it unchanged
- Return ONLY the translated text, no commentary`

// Translator renders outbound copy in the patient's language.
type Translator struct {
	llm    llm.Client
	logger *logger.Logger
}

// NewTranslator creates a new translator.
func NewTranslator(client llm.Client, log *logger.Logger) *Translator {
	return &Translator{llm: client, logger: log}
}

// Translate returns text in targetLanguage. It is the identity function when
// the target is empty or English, and falls back to the original text when
// the provider call fails so an outbound message is never lost.
func (t *Translator) Translate(ctx context.Context, text, targetLanguage string) (string, error) {
	if isBaseLanguage(targetLanguage) {
		return text, nil
	}

	system := strings.ReplaceAll(translationSystemPrompt, "%TARGET%", targetLanguage)
	resp, err := t.llm.Complete(ctx, &llm.CompletionRequest{
		System:      system,
		Messages:    []llm.Message{{Role: "user", Content: text}},
		Temperature: 0,
		MaxTokens:   1024,
	})
	if err != nil {
		t.logger.Warn("translation failed, sending original text",
			zap.String("target_language", targetLanguage),
			zap.Error(err),
		)
		return text, nil
	}

	translated := strings.TrimSpace(resp.Content)
	if translated == "" {
		return text, nil
	}
	return translated, nil
}

func isBaseLanguage(language string) bool {
	switch strings.ToLower(language) {
	case "", "english", "en":
		return true
	}
	return false
}
