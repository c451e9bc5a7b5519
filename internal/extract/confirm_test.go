package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFastConfirmationYes(t *testing.T) {
	for _, text := range []string{
		"yes",
		"Yes!",
		"yeah that's right",
		"ok",
		"sí",
		"si claro",
		"Correcto.",
		"dale",
	} {
		conf, ok := FastConfirmation(text)
		assert.True(t, ok, "expected fast path for %q", text)
		assert.True(t, conf.IsConfirmation, "expected confirmation for %q", text)
		assert.True(t, conf.Confirmed, "expected yes for %q", text)
	}
}

func TestFastConfirmationNo(t *testing.T) {
	for _, text := range []string{
		"no",
		"No.",
		"nope",
		"incorrecto",
		"nah that's wrong",
	} {
		conf, ok := FastConfirmation(text)
		assert.True(t, ok, "expected fast path for %q", text)
		assert.True(t, conf.IsConfirmation, "expected confirmation for %q", text)
		assert.False(t, conf.Confirmed, "expected no for %q", text)
	}
}

func TestFastConfirmationAmbiguous(t *testing.T) {
	for _, text := range []string{
		"",
		"   ",
		"I live near the market",
		"well yes and no",
		"maybe",
		// Tokens must be whitespace-bounded, not substrings.
		"notation",
		"yesterday I felt sick",
	} {
		_, ok := FastConfirmation(text)
		assert.False(t, ok, "expected fall-through for %q", text)
	}
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences(`{"a":1}`))
}
