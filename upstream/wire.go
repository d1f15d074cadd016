package upstream

import (
	"encoding/json"

	"github.com/klam-proxy/anthropic-openai-gateway/schema"
)

// wireRequest is the OpenAI-compatible chat-completions request body.
type wireRequest struct {
	Model       string          `json:"model"`
	Messages    []wireMessage   `json:"messages"`
	Tools       []wireTool      `json:"tools,omitempty"`
	ToolChoice  any             `json:"tool_choice,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
	TopP        *float64        `json:"top_p,omitempty"`
	Stop        []string        `json:"stop,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Stream      bool            `json:"stream,omitempty"`
}

type wireMessage struct {
	Role       schema.Role `json:"role"`
	Content    any         `json:"content,omitempty"`
	ToolCallID string      `json:"tool_call_id,omitempty"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
}

type wireTool struct {
	Type     string       `json:"type"`
	Function wireFunction `json:"function"`
}

type wireFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type wireToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function wireFunctionCall `json:"function"`
}

type wireFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

func toWireRequest(req *schema.IntermediateRequest) wireRequest {
	w := wireRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stop:        req.Stop,
		MaxTokens:   req.MaxTokens,
		Stream:      req.Stream,
	}
	for _, m := range req.Messages {
		wm := wireMessage{Role: m.Role, Content: m.Content, ToolCallID: m.ToolCallID}
		for _, tc := range m.ToolCalls {
			wm.ToolCalls = append(wm.ToolCalls, wireToolCall{
				ID:   tc.ID,
				Type: tc.Type,
				Function: wireFunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}
		w.Messages = append(w.Messages, wm)
	}
	for _, t := range req.Tools {
		w.Tools = append(w.Tools, wireTool{
			Type: t.Type,
			Function: wireFunction{
				Name:        t.Function.Name,
				Description: t.Function.Description,
				Parameters:  t.Function.Parameters,
			},
		})
	}
	if req.ToolChoice != nil {
		if req.ToolChoice.Named != nil {
			w.ToolChoice = map[string]any{
				"type":     req.ToolChoice.Named.Type,
				"function": map[string]string{"name": req.ToolChoice.Named.Function.Name},
			}
		} else {
			w.ToolChoice = req.ToolChoice.String
		}
	}
	return w
}

// wireResponse is a non-streaming chat-completions reply.
type wireResponse struct {
	Choices []wireChoice `json:"choices"`
	Usage   wireUsage    `json:"usage"`
}

type wireChoice struct {
	Message      wireRespMessage `json:"message"`
	FinishReason string          `json:"finish_reason"`
}

type wireRespMessage struct {
	Content   string         `json:"content"`
	ToolCalls []wireToolCall `json:"tool_calls,omitempty"`
}

type wireUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

func fromWireResponse(w *wireResponse) *schema.IntermediateResponse {
	resp := &schema.IntermediateResponse{
		Usage: schema.IntermediateUsage{
			PromptTokens:     w.Usage.PromptTokens,
			CompletionTokens: w.Usage.CompletionTokens,
		},
	}
	for _, c := range w.Choices {
		choice := schema.IntermediateChoice{
			FinishReason: c.FinishReason,
			Message: schema.IntermediateResponseMessage{
				Content: c.Message.Content,
			},
		}
		for _, tc := range c.Message.ToolCalls {
			choice.Message.ToolCalls = append(choice.Message.ToolCalls, schema.IntermediateResponseToolCall{
				ID:   tc.ID,
				Type: tc.Type,
				Function: schema.IntermediateFunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}
		resp.Choices = append(resp.Choices, choice)
	}
	return resp
}

// wireChunk is one SSE data payload of a streaming chat-completions reply.
type wireChunk struct {
	Choices []wireChunkChoice `json:"choices"`
	Usage   *wireUsage        `json:"usage,omitempty"`
}

type wireChunkChoice struct {
	Delta        wireDelta `json:"delta"`
	FinishReason string    `json:"finish_reason"`
}

type wireDelta struct {
	Content   string             `json:"content"`
	ToolCalls []wireDeltaToolCall `json:"tool_calls,omitempty"`
}

type wireDeltaToolCall struct {
	Index    int                   `json:"index"`
	ID       string                `json:"id"`
	Type     string                `json:"type"`
	Function wireDeltaFunctionCall `json:"function"`
}

type wireDeltaFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

func fromWireChunk(w *wireChunk) schema.IntermediateChunk {
	chunk := schema.IntermediateChunk{}
	if w.Usage != nil {
		chunk.Usage = &schema.IntermediateUsage{
			PromptTokens:     w.Usage.PromptTokens,
			CompletionTokens: w.Usage.CompletionTokens,
		}
	}
	for _, c := range w.Choices {
		cc := schema.IntermediateChunkChoice{
			FinishReason: c.FinishReason,
			Delta:        schema.IntermediateDelta{Content: c.Delta.Content},
		}
		for _, tc := range c.Delta.ToolCalls {
			cc.Delta.ToolCalls = append(cc.Delta.ToolCalls, schema.IntermediateDeltaToolCall{
				Index: tc.Index,
				ID:    tc.ID,
				Type:  tc.Type,
				Function: schema.IntermediateDeltaFunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}
		chunk.Choices = append(chunk.Choices, cc)
	}
	return chunk
}
