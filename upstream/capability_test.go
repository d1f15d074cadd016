package upstream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSupportsFunctionCallingDefaultsTrue(t *testing.T) {
	assert.True(t, SupportsFunctionCalling("openai/gpt-4o"))
	assert.True(t, SupportsFunctionCalling("anthropic/claude-3-opus"))
	assert.True(t, SupportsFunctionCalling("nvidia_nim/meta/llama3-405b"))
}

func TestSupportsFunctionCallingExcludesKnownModels(t *testing.T) {
	assert.False(t, SupportsFunctionCalling("nvidia_nim/meta/llama3-8b"))
	assert.False(t, SupportsFunctionCalling("nvidia_nim/meta/llama3-70b"))
}
