package convert

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/klam-proxy/anthropic-openai-gateway/schema"
)

// FromIntermediate converts a non-streaming intermediate response into the
// Anthropic-shaped MessageResponse (C⁻¹).
func FromIntermediate(resp *schema.IntermediateResponse, model string) (*schema.MessageResponse, error) {
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("intermediate response has no choices")
	}
	choice := resp.Choices[0]

	var blocks []schema.ResponseBlock
	if choice.Message.Content != "" {
		blocks = append(blocks, schema.ResponseBlock{Type: schema.BlockText, Text: choice.Message.Content})
	}

	for _, tc := range choice.Message.ToolCalls {
		id := tc.ID
		if id == "" {
			id = "toolu_" + uuid.NewString()
		}
		input := ParseToolArguments(tc.Function.Arguments)
		blocks = append(blocks, schema.ResponseBlock{
			Type:      schema.BlockToolUse,
			ToolUseID: id,
			ToolName:  tc.Function.Name,
			ToolInput: input,
		})
	}

	return &schema.MessageResponse{
		ID:         "msg_" + uuid.NewString(),
		Type:       "message",
		Role:       schema.RoleAssistant,
		Model:      model,
		Content:    blocks,
		StopReason: MapFinishReason(choice.FinishReason, len(choice.Message.ToolCalls) > 0),
		Usage: schema.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}

// ParseToolArguments parses a tool call's JSON-stringified arguments. If
// parsing fails, the raw string is preserved under a "raw" key rather than
// failing the whole response.
func ParseToolArguments(args string) json.RawMessage {
	if args == "" {
		return json.RawMessage("{}")
	}
	var probe json.RawMessage
	if err := json.Unmarshal([]byte(args), &probe); err == nil {
		return probe
	}
	wrapped, err := json.Marshal(map[string]string{"raw": args})
	if err != nil {
		return json.RawMessage("{}")
	}
	return wrapped
}

// MapFinishReason maps an OpenAI-compatible finish_reason to an Anthropic
// stop_reason. hasToolCalls forces "tool_use" even when finish_reason
// doesn't literally say "tool_calls", matching providers that report "stop"
// alongside emitted tool calls.
func MapFinishReason(reason string, hasToolCalls bool) schema.StopReason {
	if hasToolCalls || reason == "tool_calls" {
		return schema.StopToolUse
	}
	switch reason {
	case "length":
		return schema.StopMaxTokens
	case "stop":
		return schema.StopEndTurn
	case "content_filter":
		return schema.StopEndTurn
	default:
		return schema.StopEndTurn
	}
}
