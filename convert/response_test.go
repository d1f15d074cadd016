package convert

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klam-proxy/anthropic-openai-gateway/schema"
)

func TestFromIntermediateBuildsToolUseBlock(t *testing.T) {
	resp := &schema.IntermediateResponse{
		Choices: []schema.IntermediateChoice{
			{
				Message: schema.IntermediateResponseMessage{
					ToolCalls: []schema.IntermediateResponseToolCall{
						{ID: "call_1", Function: schema.IntermediateFunctionCall{Name: "get_weather", Arguments: `{"city":"ny"}`}},
					},
				},
				FinishReason: "tool_calls",
			},
		},
	}

	out, err := FromIntermediate(resp, "openai/gpt-4o")
	require.NoError(t, err)
	require.Len(t, out.Content, 1)
	assert.Equal(t, schema.BlockToolUse, out.Content[0].Type)
	assert.Equal(t, "call_1", out.Content[0].ToolUseID)
	assert.Equal(t, schema.StopToolUse, out.StopReason)
}

func TestFromIntermediateMintsToolUseIDWhenMissing(t *testing.T) {
	resp := &schema.IntermediateResponse{
		Choices: []schema.IntermediateChoice{
			{
				Message: schema.IntermediateResponseMessage{
					ToolCalls: []schema.IntermediateResponseToolCall{
						{Function: schema.IntermediateFunctionCall{Name: "get_weather", Arguments: "{}"}},
					},
				},
			},
		},
	}

	out, err := FromIntermediate(resp, "openai/gpt-4o")
	require.NoError(t, err)
	require.Len(t, out.Content, 1)
	assert.Contains(t, out.Content[0].ToolUseID, "toolu_")
}

func TestFromIntermediateErrorsOnNoChoices(t *testing.T) {
	_, err := FromIntermediate(&schema.IntermediateResponse{}, "openai/gpt-4o")
	assert.Error(t, err)
}

func TestParseToolArgumentsWrapsInvalidJSON(t *testing.T) {
	raw := ParseToolArguments("not json")
	var decoded map[string]string
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "not json", decoded["raw"])
}

func TestParseToolArgumentsPassesThroughValidJSON(t *testing.T) {
	raw := ParseToolArguments(`{"city":"ny"}`)
	assert.JSONEq(t, `{"city":"ny"}`, string(raw))
}

func TestParseToolArgumentsDefaultsEmptyToObject(t *testing.T) {
	raw := ParseToolArguments("")
	assert.Equal(t, "{}", string(raw))
}

func TestMapFinishReason(t *testing.T) {
	tests := []struct {
		name         string
		reason       string
		hasToolCalls bool
		want         schema.StopReason
	}{
		{"tool_calls_reason", "tool_calls", false, schema.StopToolUse},
		{"tool_calls_flag_wins_over_stop_reason", "stop", true, schema.StopToolUse},
		{"length_maps_to_max_tokens", "length", false, schema.StopMaxTokens},
		{"stop_maps_to_end_turn", "stop", false, schema.StopEndTurn},
		{"content_filter_maps_to_end_turn", "content_filter", false, schema.StopEndTurn},
		{"unknown_defaults_to_end_turn", "something_else", false, schema.StopEndTurn},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MapFinishReason(tt.reason, tt.hasToolCalls))
		})
	}
}
