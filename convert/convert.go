// Package convert implements the bidirectional translation between the
// Anthropic message shape and the OpenAI-compatible intermediate shape, plus
// the content flattener for models that reject structured content.
package convert

import (
	"fmt"
	"strings"

	"github.com/klam-proxy/anthropic-openai-gateway/schema"
)

// Capability reports what the effective model can accept, so the converter
// can apply the capability gate and decide whether flattening is required.
type Capability struct {
	SupportsFunctionCalling bool
	// OpenAIFamily is true when the effective provider tag is "openai" or
	// "nvidia_nim" — both are OpenAI-compatible wire formats that reject
	// structured multi-part content the way Anthropic-native doesn't.
	OpenAIFamily bool
}

// ToIntermediate converts a validated Anthropic request into the flat,
// OpenAI-compatible message list, applying the capability gate and the
// content flattener as needed.
func ToIntermediate(req *schema.MessageRequest, cap Capability) (*schema.IntermediateRequest, error) {
	flatten := cap.OpenAIFamily || !cap.SupportsFunctionCalling

	out := &schema.IntermediateRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		TopK:        req.TopK,
		Stop:        req.StopSequences,
		MaxTokens:   req.MaxTokens,
		Stream:      req.Stream,
	}

	if req.System != nil {
		out.Messages = append(out.Messages, schema.IntermediateMessage{
			Role:    schema.Role("system"),
			Content: systemText(req.System),
		})
	}

	for _, turn := range req.Messages {
		msgs, err := convertTurn(turn, flatten)
		if err != nil {
			return nil, err
		}
		out.Messages = append(out.Messages, msgs...)
	}

	if len(req.Tools) > 0 {
		for _, t := range req.Tools {
			out.Tools = append(out.Tools, schema.IntermediateTool{
				Type: "function",
				Function: schema.IntermediateFunctionDef{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.InputSchema,
				},
			})
		}
	}
	if req.ToolChoice != nil {
		out.ToolChoice = convertToolChoice(req.ToolChoice)
	}

	// Capability gate: a model that cannot call functions never receives
	// a tool catalog or choice, regardless of what was requested.
	if !cap.SupportsFunctionCalling {
		out.Tools = nil
		out.ToolChoice = nil
	}

	if cap.OpenAIFamily && out.MaxTokens > maxTokensCeilingOpenAIFamily {
		out.MaxTokens = maxTokensCeilingOpenAIFamily
	}

	return out, nil
}

func systemText(s *schema.SystemPrompt) string {
	if s.IsSegments {
		return strings.Join(s.Segments, "\n")
	}
	return s.Text
}

func convertToolChoice(tc *schema.ToolChoice) *schema.IntermediateToolChoice {
	switch tc.Kind {
	case schema.ToolChoiceAuto:
		return &schema.IntermediateToolChoice{String: "auto"}
	case schema.ToolChoiceAny:
		return &schema.IntermediateToolChoice{String: "required"}
	case schema.ToolChoiceTool:
		named := &schema.IntermediateNamedToolChoice{Type: "function"}
		named.Function.Name = tc.Name
		return &schema.IntermediateToolChoice{Named: named}
	default:
		return nil
	}
}

// convertTurn expands one Anthropic turn into zero or more intermediate
// messages: a user turn may split into a multi-part user message plus one
// tool message per tool_result block; an assistant turn with tool_use
// blocks becomes a single assistant message carrying tool_calls.
func convertTurn(turn schema.Turn, flatten bool) ([]schema.IntermediateMessage, error) {
	if !turn.IsBlocks {
		return []schema.IntermediateMessage{{Role: turn.Role, Content: turn.Text}}, nil
	}

	if turn.Role == schema.RoleAssistant {
		return convertAssistantBlocks(turn.Blocks)
	}
	return convertUserBlocks(turn.Blocks, flatten)
}

func convertAssistantBlocks(blocks []schema.Content) ([]schema.IntermediateMessage, error) {
	var textParts []string
	var toolCalls []schema.IntermediateToolCall

	for _, b := range blocks {
		switch b.Type {
		case schema.BlockText:
			if b.Text != "" {
				textParts = append(textParts, b.Text)
			}
		case schema.BlockToolUse:
			args := "{}"
			if len(b.ToolInput) > 0 {
				args = string(b.ToolInput)
			}
			toolCalls = append(toolCalls, schema.IntermediateToolCall{
				ID:   b.ToolUseID,
				Type: "function",
				Function: schema.IntermediateFunctionCall{
					Name:      b.ToolName,
					Arguments: args,
				},
			})
		}
	}

	if len(toolCalls) > 0 {
		return []schema.IntermediateMessage{{
			Role:      schema.RoleAssistant,
			Content:   strings.Join(textParts, ""),
			ToolCalls: toolCalls,
		}}, nil
	}
	return []schema.IntermediateMessage{{
		Role:    schema.RoleAssistant,
		Content: strings.Join(textParts, ""),
	}}, nil
}

// toolRole is the intermediate role used for tool_result messages; OpenAI
// names it "tool".
const toolRole schema.Role = "tool"

func convertUserBlocks(blocks []schema.Content, flatten bool) ([]schema.IntermediateMessage, error) {
	var out []schema.IntermediateMessage
	var run []schema.Content

	flushRun := func() {
		if len(run) == 0 {
			return
		}
		if flatten {
			out = append(out, schema.IntermediateMessage{
				Role:    schema.RoleUser,
				Content: Flatten(run),
			})
		} else {
			out = append(out, schema.IntermediateMessage{
				Role:    schema.RoleUser,
				Content: toParts(run),
			})
		}
		run = nil
	}

	for _, b := range blocks {
		switch b.Type {
		case schema.BlockText, schema.BlockImage:
			run = append(run, b)
		case schema.BlockToolResult:
			flushRun()
			text := toolResultText(b.ToolResultContent, flatten)
			out = append(out, schema.IntermediateMessage{
				Role:       toolRole,
				Content:    text,
				ToolCallID: b.ToolResultToolUseID,
			})
		}
	}
	flushRun()

	return out, nil
}

func toolResultText(c schema.ToolResultContent, flatten bool) string {
	var text string
	if c.IsBlocks {
		text = strings.Join(c.TextBlocks, "\n")
	} else {
		text = c.Text
	}
	if flatten {
		return "Tool Result: " + text
	}
	return text
}

func toParts(blocks []schema.Content) []schema.IntermediateContentPart {
	parts := make([]schema.IntermediateContentPart, 0, len(blocks))
	for _, b := range blocks {
		switch b.Type {
		case schema.BlockText:
			parts = append(parts, schema.IntermediateContentPart{Type: "text", Text: b.Text})
		case schema.BlockImage:
			parts = append(parts, schema.IntermediateContentPart{
				Type: "image_url",
				ImageURL: &schema.IntermediateImage{
					URL: fmt.Sprintf("data:%s;base64,%s", b.Source.MediaType, b.Source.Data),
				},
			})
		}
	}
	return parts
}
