package upstream

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/klam-proxy/anthropic-openai-gateway/internal/apierror"
	"github.com/klam-proxy/anthropic-openai-gateway/internal/metrics"
	"github.com/klam-proxy/anthropic-openai-gateway/schema"
)

// AnthropicClient is the Anthropic-native passthrough provider: it speaks
// the real Messages API via the official SDK rather than a hand-rolled HTTP
// call, and adapts the intermediate (OpenAI-shaped) request/response into
// the SDK's own param and event types.
type AnthropicClient struct {
	sdk    anthropic.Client
	health *Health
}

// NewAnthropicClient builds a passthrough client against baseURL (empty
// uses the SDK's default) with apiKey.
func NewAnthropicClient(baseURL, apiKey string, health *Health) *AnthropicClient {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &AnthropicClient{sdk: anthropic.NewClient(opts...), health: health}
}

func (c *AnthropicClient) recordOutcome(ok bool) {
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	metrics.UpstreamRequestsTotal.WithLabelValues("anthropic", outcome).Inc()
	if c.health != nil {
		if ok {
			c.health.RecordSuccess("anthropic", "native")
		} else {
			c.health.RecordFailure("anthropic", "native")
		}
	}
}

func buildParams(req *schema.IntermediateRequest) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(strings.TrimPrefix(req.Model, "anthropic/")),
		MaxTokens: int64(req.MaxTokens),
	}

	for _, m := range req.Messages {
		switch m.Role {
		case schema.Role("system"):
			if text, ok := m.Content.(string); ok && text != "" {
				params.System = append(params.System, anthropic.TextBlockParam{Text: text})
			}
			continue
		case schema.RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if text, ok := m.Content.(string); ok && text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(text))
			}
			for _, tc := range m.ToolCalls {
				var input any
				_ = json.Unmarshal([]byte(tc.Function.Arguments), &input)
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Function.Name))
			}
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(blocks...))
		case schema.Role("tool"):
			text, _ := m.Content.(string)
			params.Messages = append(params.Messages, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(m.ToolCallID, text, false),
			))
		default: // user
			if text, ok := m.Content.(string); ok {
				params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(text)))
				continue
			}
			if parts, ok := m.Content.([]schema.IntermediateContentPart); ok {
				var blocks []anthropic.ContentBlockParamUnion
				for _, p := range parts {
					if p.Type == "text" {
						blocks = append(blocks, anthropic.NewTextBlock(p.Text))
					}
				}
				params.Messages = append(params.Messages, anthropic.NewUserMessage(blocks...))
			}
		}
	}

	for _, t := range req.Tools {
		params.Tools = append(params.Tools, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Function.Name,
				Description: anthropic.String(t.Function.Description),
			},
		})
	}

	return params
}

// Complete performs one non-streaming call against the real Anthropic API.
func (c *AnthropicClient) Complete(ctx context.Context, req *schema.IntermediateRequest) (*schema.IntermediateResponse, error) {
	params := buildParams(req)
	msg, err := c.sdk.Messages.New(ctx, params)
	if err != nil {
		c.recordOutcome(false)
		return nil, apierror.Wrap(apierror.KindAPI, "anthropic upstream request failed", err)
	}
	c.recordOutcome(true)
	return fromAnthropicMessage(msg), nil
}

func fromAnthropicMessage(msg *anthropic.Message) *schema.IntermediateResponse {
	var text strings.Builder
	var toolCalls []schema.IntermediateResponseToolCall
	for _, block := range msg.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(variant.Text)
		case anthropic.ToolUseBlock:
			args, _ := json.Marshal(variant.Input)
			toolCalls = append(toolCalls, schema.IntermediateResponseToolCall{
				ID:   variant.ID,
				Type: "function",
				Function: schema.IntermediateFunctionCall{
					Name:      variant.Name,
					Arguments: string(args),
				},
			})
		}
	}

	finishReason := "stop"
	switch msg.StopReason {
	case anthropic.StopReasonMaxTokens:
		finishReason = "length"
	case anthropic.StopReasonToolUse:
		finishReason = "tool_calls"
	}

	return &schema.IntermediateResponse{
		Choices: []schema.IntermediateChoice{{
			FinishReason: finishReason,
			Message: schema.IntermediateResponseMessage{
				Content:   text.String(),
				ToolCalls: toolCalls,
			},
		}},
		Usage: schema.IntermediateUsage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
		},
	}
}

// CompleteStream performs one streaming call and adapts the SDK's
// MessageStreamEventUnion sequence into intermediate chunks.
func (c *AnthropicClient) CompleteStream(ctx context.Context, req *schema.IntermediateRequest) (ChunkIterator, error) {
	params := buildParams(req)
	stream := c.sdk.Messages.NewStreaming(ctx, params)
	c.recordOutcome(true)
	return &anthropicIterator{stream: stream}, nil
}

// anthropicIterator adapts the SDK's ssestream.Stream into ChunkIterator,
// translating Anthropic's own block-structured events back into the
// OpenAI-shaped delta/tool_calls chunks the rest of the proxy understands —
// the mirror image of the streaming translator (T) it otherwise feeds.
type anthropicIterator struct {
	stream interface {
		Next() bool
		Current() anthropic.MessageStreamEventUnion
		Err() error
		Close() error
	}
	toolIndex map[int64]int
	nextTool  int
}

func (it *anthropicIterator) Next() (schema.IntermediateChunk, bool) {
	if it.toolIndex == nil {
		it.toolIndex = make(map[int64]int)
	}
	if !it.stream.Next() {
		return schema.IntermediateChunk{}, false
	}
	event := it.stream.Current()

	switch variant := event.AsAny().(type) {
	case anthropic.ContentBlockDeltaEvent:
		switch delta := variant.Delta.AsAny().(type) {
		case anthropic.TextDelta:
			return schema.IntermediateChunk{Choices: []schema.IntermediateChunkChoice{{
				Delta: schema.IntermediateDelta{Content: delta.Text},
			}}}, true
		case anthropic.InputJSONDelta:
			idx, ok := it.toolIndex[variant.Index]
			if !ok {
				idx = it.nextTool
				it.toolIndex[variant.Index] = idx
				it.nextTool++
			}
			return schema.IntermediateChunk{Choices: []schema.IntermediateChunkChoice{{
				Delta: schema.IntermediateDelta{ToolCalls: []schema.IntermediateDeltaToolCall{{
					Index:    idx,
					Function: schema.IntermediateDeltaFunctionCall{Arguments: delta.PartialJSON},
				}}},
			}}}, true
		}
	case anthropic.ContentBlockStartEvent:
		if tb, ok := variant.ContentBlock.AsAny().(anthropic.ToolUseBlock); ok {
			idx := it.nextTool
			it.toolIndex[variant.Index] = idx
			it.nextTool++
			return schema.IntermediateChunk{Choices: []schema.IntermediateChunkChoice{{
				Delta: schema.IntermediateDelta{ToolCalls: []schema.IntermediateDeltaToolCall{{
					Index:    idx,
					ID:       tb.ID,
					Type:     "function",
					Function: schema.IntermediateDeltaFunctionCall{Name: tb.Name},
				}}},
			}}}, true
		}
	case anthropic.MessageDeltaEvent:
		finish := ""
		switch variant.Delta.StopReason {
		case anthropic.StopReasonMaxTokens:
			finish = "length"
		case anthropic.StopReasonToolUse:
			finish = "tool_calls"
		case anthropic.StopReasonEndTurn, anthropic.StopReasonStopSequence:
			finish = "stop"
		}
		return schema.IntermediateChunk{
			Choices: []schema.IntermediateChunkChoice{{FinishReason: finish}},
			Usage: &schema.IntermediateUsage{
				CompletionTokens: int(variant.Usage.OutputTokens),
			},
		}, true
	}

	return schema.IntermediateChunk{}, true
}

func (it *anthropicIterator) Err() error {
	return it.stream.Err()
}

func (it *anthropicIterator) Close() error {
	return it.stream.Close()
}
