package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/smart-directory/referral-service/internal/llm"
)

// Confirmation is the interpreted intent of a yes/no reply.
type Confirmation struct {
	IsConfirmation bool `json:"is_confirmation"`
	Confirmed      bool `json:"confirmed"`
}

// Fast-path vocabulary, English and Spanish. Matched as a whole message or as
// a whitespace-bounded token.
var (
	yesTokens = []string{"yes", "yeah", "yep", "sure", "ok", "okay", "correct", "si", "sí", "claro", "correcto", "dale", "exacto"}
	noTokens  = []string{"no", "nope", "nah", "incorrect", "incorrecto", "negativo"}
)

// FastConfirmation matches the fixed yes/no vocabulary without calling the
// classifier. The second result reports whether the fast path applied; a
// message containing both a yes and a no token is ambiguous and falls through.
func FastConfirmation(text string) (Confirmation, bool) {
	fields := strings.Fields(strings.ToLower(text))
	if len(fields) == 0 {
		return Confirmation{}, false
	}

	var sawYes, sawNo bool
	for _, f := range fields {
		f = strings.Trim(f, ".,!?¡¿:;")
		if containsToken(yesTokens, f) {
			sawYes = true
		}
		if containsToken(noTokens, f) {
			sawNo = true
		}
	}

	if sawYes == sawNo {
		return Confirmation{}, false
	}
	return Confirmation{IsConfirmation: true, Confirmed: sawYes}, true
}

func containsToken(tokens []string, s string) bool {
	for _, t := range tokens {
		if s == t {
			return true
		}
	}
	return false
}

const confirmationSystemPrompt = `You classify whether a patient message answers a yes/no confirmation question.

Respond with a single JSON object and nothing else:
{"is_confirmation": bool, "confirmed": bool}

"is_confirmation" is true only when the message clearly answers the question.
"confirmed" is true for an affirmative answer, false otherwise. The message may be in any language.`

// Classifier resolves confirmation intent for replies the fast path cannot.
type Classifier struct {
	llm llm.Client
}

// NewClassifier creates a new confirmation classifier.
func NewClassifier(client llm.Client) *Classifier {
	return &Classifier{llm: client}
}

// Detect classifies text, trying the fast path first.
func (c *Classifier) Detect(ctx context.Context, text string) (Confirmation, error) {
	if conf, ok := FastConfirmation(text); ok {
		return conf, nil
	}

	resp, err := c.llm.Complete(ctx, &llm.CompletionRequest{
		System:      confirmationSystemPrompt,
		Messages:    []llm.Message{{Role: "user", Content: text}},
		Temperature: 0,
		MaxTokens:   64,
	})
	if err != nil {
		return Confirmation{}, fmt.Errorf("confirmation call failed: %w", err)
	}

	var out Confirmation
	if err := json.Unmarshal([]byte(stripFences(resp.Content)), &out); err != nil {
		return Confirmation{}, fmt.Errorf("malformed confirmation output: %w", err)
	}
	return out, nil
}
