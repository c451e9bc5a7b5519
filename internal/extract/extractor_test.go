package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smart-directory/referral-service/internal/llm"
	"github.com/smart-directory/referral-service/pkg/logger"
)

// scriptedClient returns canned completions in order.
type scriptedClient struct {
	responses []string
	err       error
	calls     int
}

func (s *scriptedClient) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	content := s.responses[0]
	if len(s.responses) > 1 {
		s.responses = s.responses[1:]
	}
	return &llm.CompletionResponse{Content: content}, nil
}

func (s *scriptedClient) Name() string { return "scripted" }

func TestExtract(t *testing.T) {
	client := &scriptedClient{responses: []string{
		`{"location": "Antigua", "symptoms": ["fever", "headache"], "language": "Spanish"}`,
	}}
	e := NewExtractor(client, logger.Nop())

	out, err := e.Extract(context.Background(), "tengo fiebre y dolor de cabeza, estoy en Antigua")
	require.NoError(t, err)
	assert.Equal(t, "Antigua", out.Location)
	assert.Equal(t, []string{"fever", "headache"}, out.Symptoms)
	assert.Equal(t, "Spanish", out.Language)
}

func TestExtractFencedOutput(t *testing.T) {
	client := &scriptedClient{responses: []string{
		"```json\n{\"location\": null, \"symptoms\": [\"cough\"], \"language\": \"English\"}\n```",
	}}
	e := NewExtractor(client, logger.Nop())

	out, err := e.Extract(context.Background(), "I have a cough")
	require.NoError(t, err)
	assert.Empty(t, out.Location)
	assert.Equal(t, []string{"cough"}, out.Symptoms)
}

func TestExtractMalformedOutput(t *testing.T) {
	client := &scriptedClient{responses: []string{"sorry, I cannot help with that"}}
	e := NewExtractor(client, logger.Nop())

	_, err := e.Extract(context.Background(), "hello")
	assert.Error(t, err)
}

func TestExtractProviderError(t *testing.T) {
	client := &scriptedClient{err: errors.New("rate limited")}
	e := NewExtractor(client, logger.Nop())

	_, err := e.Extract(context.Background(), "hello")
	assert.Error(t, err)
}

func TestClassifierFastPathSkipsProvider(t *testing.T) {
	client := &scriptedClient{responses: []string{`{"is_confirmation": true, "confirmed": false}`}}
	c := NewClassifier(client)

	conf, err := c.Detect(context.Background(), "yes")
	require.NoError(t, err)
	assert.True(t, conf.IsConfirmation)
	assert.True(t, conf.Confirmed)
	assert.Zero(t, client.calls)
}

func TestClassifierFallsBackToProvider(t *testing.T) {
	client := &scriptedClient{responses: []string{`{"is_confirmation": true, "confirmed": true}`}}
	c := NewClassifier(client)

	conf, err := c.Detect(context.Background(), "that is exactly where I live")
	require.NoError(t, err)
	assert.True(t, conf.IsConfirmation)
	assert.True(t, conf.Confirmed)
	assert.Equal(t, 1, client.calls)
}

func TestTranslateIdentityForEnglish(t *testing.T) {
	client := &scriptedClient{responses: []string{"should never be used"}}
	tr := NewTranslator(client, logger.Nop())

	for _, lang := range []string{"", "english", "English", "en"} {
		out, err := tr.Translate(context.Background(), "hello", lang)
		require.NoError(t, err)
		assert.Equal(t, "hello", out)
	}
	assert.Zero(t, client.calls)
}

func TestTranslate(t *testing.T) {
	client := &scriptedClient{responses: []string{"hola"}}
	tr := NewTranslator(client, logger.Nop())

	out, err := tr.Translate(context.Background(), "hello", "Spanish")
	require.NoError(t, err)
	assert.Equal(t, "hola", out)
}

func TestTranslateFallsBackOnProviderError(t *testing.T) {
	client := &scriptedClient{err: errors.New("provider down")}
	tr := NewTranslator(client, logger.Nop())

	out, err := tr.Translate(context.Background(), "hello", "Spanish")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}
