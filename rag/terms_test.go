package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuestionTerms(t *testing.T) {
	terms := questionTerms("What is the relation between Microsoft and OpenAI?")
	assert.Contains(t, terms, "microsoft")
	assert.Contains(t, terms, "openai")
	assert.Contains(t, terms, "relation")
	assert.NotContains(t, terms, "the")
	assert.NotContains(t, terms, "is")
}

func TestNormalizeLabel(t *testing.T) {
	assert.Equal(t, "openai", NormalizeLabel("  OpenAI "))
	assert.Equal(t, NormalizeLabel("Sam Altman"), NormalizeLabel("SAM ALTMAN"))
}
