package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMessageRequestSimpleTextTurn(t *testing.T) {
	body := []byte(`{
		"model": "claude-3-5-sonnet-20241022",
		"max_tokens": 256,
		"messages": [{"role": "user", "content": "hello"}]
	}`)

	req, err := ParseMessageRequest(body)
	require.NoError(t, err)
	assert.Equal(t, "claude-3-5-sonnet-20241022", req.Model)
	assert.Equal(t, req.Model, req.OriginalModel)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, "hello", req.Messages[0].Text)
	assert.False(t, req.Messages[0].IsBlocks)
}

func TestParseMessageRequestBlockContentAndToolUse(t *testing.T) {
	body := []byte(`{
		"model": "claude-3-5-sonnet-20241022",
		"max_tokens": 256,
		"messages": [
			{"role": "assistant", "content": [
				{"type": "text", "text": "checking weather"},
				{"type": "tool_use", "id": "toolu_1", "name": "get_weather", "input": {"city": "ny"}}
			]}
		]
	}`)

	req, err := ParseMessageRequest(body)
	require.NoError(t, err)
	require.Len(t, req.Messages, 1)
	turn := req.Messages[0]
	require.True(t, turn.IsBlocks)
	require.Len(t, turn.Blocks, 2)
	assert.Equal(t, BlockText, turn.Blocks[0].Type)
	assert.Equal(t, BlockToolUse, turn.Blocks[1].Type)
	assert.Equal(t, "get_weather", turn.Blocks[1].ToolName)
}

func TestParseMessageRequestUnknownBlockPreservesRaw(t *testing.T) {
	body := []byte(`{
		"model": "claude-3-5-sonnet-20241022",
		"max_tokens": 256,
		"messages": [{"role": "user", "content": [{"type": "mystery_block", "foo": "bar"}]}]
	}`)

	req, err := ParseMessageRequest(body)
	require.NoError(t, err)
	require.Len(t, req.Messages[0].Blocks, 1)
	block := req.Messages[0].Blocks[0]
	assert.Equal(t, BlockUnknown, block.Type)
	assert.NotEmpty(t, block.Raw)
}

func TestParseMessageRequestSystemAsSegments(t *testing.T) {
	body := []byte(`{
		"model": "claude-3-5-sonnet-20241022",
		"max_tokens": 256,
		"system": [{"type": "text", "text": "be nice"}, {"type": "text", "text": "be brief"}],
		"messages": [{"role": "user", "content": "hi"}]
	}`)

	req, err := ParseMessageRequest(body)
	require.NoError(t, err)
	require.NotNil(t, req.System)
	assert.True(t, req.System.IsSegments)
	assert.Equal(t, []string{"be nice", "be brief"}, req.System.Segments)
}

func TestParseMessageRequestToolChoiceBareStringAndObject(t *testing.T) {
	body := []byte(`{
		"model": "claude-3-5-sonnet-20241022",
		"max_tokens": 256,
		"tool_choice": "auto",
		"messages": [{"role": "user", "content": "hi"}]
	}`)
	req, err := ParseMessageRequest(body)
	require.NoError(t, err)
	require.NotNil(t, req.ToolChoice)
	assert.Equal(t, ToolChoiceAuto, req.ToolChoice.Kind)

	body2 := []byte(`{
		"model": "claude-3-5-sonnet-20241022",
		"max_tokens": 256,
		"tool_choice": {"type": "tool", "name": "get_weather"},
		"messages": [{"role": "user", "content": "hi"}]
	}`)
	req2, err := ParseMessageRequest(body2)
	require.NoError(t, err)
	require.NotNil(t, req2.ToolChoice)
	assert.Equal(t, ToolChoiceTool, req2.ToolChoice.Kind)
	assert.Equal(t, "get_weather", req2.ToolChoice.Name)
}

func TestMessageResponseMarshalJSONShape(t *testing.T) {
	resp := &MessageResponse{
		ID:         "msg_abc",
		Type:       "message",
		Role:       RoleAssistant,
		Model:      "openai/gpt-4o",
		StopReason: StopEndTurn,
		Content: []ResponseBlock{
			{Type: BlockText, Text: "hello"},
			{Type: BlockToolUse, ToolUseID: "toolu_1", ToolName: "get_weather"},
		},
	}

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "message", decoded["type"])
	assert.Equal(t, "assistant", decoded["role"])

	content := decoded["content"].([]any)
	require.Len(t, content, 2)
	toolBlock := content[1].(map[string]any)
	assert.Equal(t, "tool_use", toolBlock["type"])
	assert.Equal(t, map[string]any{}, toolBlock["input"])
}
