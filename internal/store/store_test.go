package store

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExactFoldEscapesAndAnchors(t *testing.T) {
	re := ExactFold("Acme (USA) Inc.")

	assert.Equal(t, "i", re.Options)
	compiled := regexp.MustCompile("(?i)" + re.Pattern)
	assert.True(t, compiled.MatchString("ACME (usa) inc."))
	assert.False(t, compiled.MatchString("Acme (USA) Inc.x"))
	assert.False(t, compiled.MatchString("Acme xUSAx Inc."))
}
