package upstream

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klam-proxy/anthropic-openai-gateway/schema"
)

func TestToWireRequestCarriesToolCallsAndChoice(t *testing.T) {
	req := &schema.IntermediateRequest{
		Model:     "gpt-4o",
		MaxTokens: 100,
		Messages: []schema.IntermediateMessage{
			{Role: schema.RoleUser, Content: "hi"},
		},
		Tools: []schema.IntermediateTool{
			{Type: "function", Function: schema.IntermediateFunctionDef{Name: "get_weather", Parameters: json.RawMessage(`{}`)}},
		},
		ToolChoice: &schema.IntermediateToolChoice{String: "auto"},
	}

	w := toWireRequest(req)
	assert.Equal(t, "gpt-4o", w.Model)
	require.Len(t, w.Tools, 1)
	assert.Equal(t, "get_weather", w.Tools[0].Function.Name)
	assert.Equal(t, "auto", w.ToolChoice)
}

func TestFromWireResponseMapsToolCalls(t *testing.T) {
	data := []byte(`{
		"choices": [{
			"message": {"content": "", "tool_calls": [{"id": "call_1", "type": "function", "function": {"name": "get_weather", "arguments": "{}"}}]},
			"finish_reason": "tool_calls"
		}],
		"usage": {"prompt_tokens": 10, "completion_tokens": 5}
	}`)
	var w wireResponse
	require.NoError(t, json.Unmarshal(data, &w))

	resp := fromWireResponse(&w)
	require.Len(t, resp.Choices, 1)
	require.Len(t, resp.Choices[0].Message.ToolCalls, 1)
	assert.Equal(t, "get_weather", resp.Choices[0].Message.ToolCalls[0].Function.Name)
	assert.Equal(t, 10, resp.Usage.PromptTokens)
}

func TestFromWireChunkMapsDeltaToolCalls(t *testing.T) {
	data := []byte(`{
		"choices": [{
			"delta": {"tool_calls": [{"index": 0, "id": "call_1", "function": {"name": "get_weather", "arguments": "{\"ci"}}]},
			"finish_reason": ""
		}]
	}`)
	var w wireChunk
	require.NoError(t, json.Unmarshal(data, &w))

	chunk := fromWireChunk(&w)
	require.Len(t, chunk.Choices, 1)
	require.Len(t, chunk.Choices[0].Delta.ToolCalls, 1)
	assert.Equal(t, 0, chunk.Choices[0].Delta.ToolCalls[0].Index)
	assert.Equal(t, `{"ci`, chunk.Choices[0].Delta.ToolCalls[0].Function.Arguments)
}
