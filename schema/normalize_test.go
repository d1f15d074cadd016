package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	aliases := Aliases{
		BigModel:   "gpt-4o",
		SmallModel: "gpt-4o-mini",
		Preferred:  "openai",
		Extra:      map[string]string{"my-local-model": "llama3-70b"},
	}

	tests := []struct {
		name  string
		model string
		want  string
	}{
		{"empty_passes_through", "", ""},
		{"explicit_openai_tag_passes_through", "openai/gpt-4o", "openai/gpt-4o"},
		{"explicit_anthropic_tag_passes_through", "anthropic/claude-3-opus", "anthropic/claude-3-opus"},
		{"haiku_substring_maps_to_small_model", "claude-3-5-haiku-20241022", "openai/gpt-4o-mini"},
		{"sonnet_substring_maps_to_big_model", "claude-3-5-sonnet-20241022", "openai/gpt-4o"},
		{"opus_substring_maps_to_big_model", "claude-3-opus-20240229", "openai/gpt-4o"},
		{"case_insensitive_haiku_match", "Claude-3-HAIKU", "openai/gpt-4o-mini"},
		{"extra_alias_applies", "my-local-model", "openai/llama3-70b"},
		{"unmatched_model_gets_preferred_tag", "some-custom-model", "openai/some-custom-model"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.model, aliases)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	aliases := Aliases{BigModel: "gpt-4o", SmallModel: "gpt-4o-mini", Preferred: "anthropic"}

	inputs := []string{
		"claude-3-5-sonnet-20241022",
		"claude-3-5-haiku-20241022",
		"gpt-4o",
		"openai/gpt-4o",
	}
	for _, in := range inputs {
		once := Normalize(in, aliases)
		twice := Normalize(once, aliases)
		assert.Equal(t, once, twice, "normalizing %q twice should be stable", in)
	}
}

func TestNormalizePreferredProviderTag(t *testing.T) {
	aliases := Aliases{BigModel: "claude-opus-4", SmallModel: "claude-haiku-4", Preferred: "anthropic"}
	assert.Equal(t, "anthropic/claude-opus-4", Normalize("claude-3-opus", aliases))

	aliases.Preferred = "nvidia"
	assert.Equal(t, "nvidia_nim/claude-opus-4", Normalize("claude-3-opus", aliases))
}
