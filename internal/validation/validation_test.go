package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stepPayload struct {
	Step  string `json:"step" validate:"notblank,maxwords=150"`
	Email string `json:"email" validate:"omitempty,email"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	Configure(v)
	return v
}

func TestMaxWords(t *testing.T) {
	v := newValidator()

	ok := stepPayload{Step: strings.Repeat("word ", 150)}
	require.NoError(t, v.Struct(ok))

	tooLong := stepPayload{Step: strings.Repeat("word ", 151)}
	err := v.Struct(tooLong)
	require.Error(t, err)
	assert.Equal(t, "step must be at most 150 words", Message(err))
}

func TestNotBlank(t *testing.T) {
	v := newValidator()
	err := v.Struct(stepPayload{Step: "   "})
	require.Error(t, err)
	assert.Equal(t, "step is required", Message(err))
}

func TestMessageUsesJSONNames(t *testing.T) {
	v := newValidator()
	err := v.Struct(stepPayload{Step: "solder", Email: "nope"})
	require.Error(t, err)
	assert.Equal(t, "email must be a valid email", Message(err))
}

func TestMessageFallback(t *testing.T) {
	assert.Equal(t, "Invalid request body", Message(errors.New("unexpected EOF")))
}

func TestWordCount(t *testing.T) {
	assert.Equal(t, 0, WordCount("  "))
	assert.Equal(t, 3, WordCount("place\tthe  parts\n"))
}
