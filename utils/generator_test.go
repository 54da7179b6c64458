package utils

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRandomCodeAlphabet(t *testing.T) {
	code := RandomCode(32)

	assert.Len(t, code, 32)
	assert.Regexp(t, regexp.MustCompile(`^[A-Z0-9]+$`), code)
}

func TestNewReferenceFormat(t *testing.T) {
	ref := NewReference("sub")

	assert.Regexp(t, regexp.MustCompile(`^SUB-\d{14}-[A-Z0-9]{8}$`), ref)
}
