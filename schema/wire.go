package schema

import (
	"encoding/json"
	"fmt"
)

// wireRequest is the on-wire JSON shape of an Anthropic MessageRequest, as
// sent by clients such as Anthropic's coding CLI.
type wireRequest struct {
	Model         string          `json:"model"`
	MaxTokens     int             `json:"max_tokens"`
	Messages      []wireMessage   `json:"messages"`
	System        json.RawMessage `json:"system,omitempty"`
	Tools         []wireTool      `json:"tools,omitempty"`
	ToolChoice    json.RawMessage `json:"tool_choice,omitempty"`
	Temperature   *float64        `json:"temperature,omitempty"`
	TopP          *float64        `json:"top_p,omitempty"`
	TopK          *int            `json:"top_k,omitempty"`
	StopSequences []string        `json:"stop_sequences,omitempty"`
	Stream        bool            `json:"stream,omitempty"`
}

type wireMessage struct {
	Role    Role            `json:"role"`
	Content json.RawMessage `json:"content"`
}

type wireTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

type wireContentBlock struct {
	Type string `json:"type"`

	Text string `json:"text,omitempty"`

	Source *ImageSource `json:"source,omitempty"`

	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
}

// ParseMessageRequest decodes raw Anthropic request JSON into a
// MessageRequest without applying normalization or validation; callers
// invoke Normalize and Validate afterward.
func ParseMessageRequest(data []byte) (*MessageRequest, error) {
	var w wireRequest
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decoding message request: %w", err)
	}

	req := &MessageRequest{
		Model:         w.Model,
		OriginalModel: w.Model,
		MaxTokens:     w.MaxTokens,
		Temperature:   w.Temperature,
		TopP:          w.TopP,
		TopK:          w.TopK,
		StopSequences: w.StopSequences,
		Stream:        w.Stream,
	}

	for _, m := range w.Messages {
		turn, err := parseTurn(m)
		if err != nil {
			return nil, err
		}
		req.Messages = append(req.Messages, turn)
	}

	if len(w.System) > 0 {
		sys, err := parseSystemPrompt(w.System)
		if err != nil {
			return nil, err
		}
		req.System = sys
	}

	for _, t := range w.Tools {
		req.Tools = append(req.Tools, ToolDefinition{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}

	if len(w.ToolChoice) > 0 {
		tc, err := parseToolChoice(w.ToolChoice)
		if err != nil {
			return nil, err
		}
		req.ToolChoice = tc
	}

	return req, nil
}

func parseSystemPrompt(raw json.RawMessage) (*SystemPrompt, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return &SystemPrompt{Text: s}, nil
	}

	var blocks []wireContentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return nil, fmt.Errorf("decoding system prompt: %w", err)
	}
	segs := make([]string, 0, len(blocks))
	for _, b := range blocks {
		segs = append(segs, b.Text)
	}
	return &SystemPrompt{Segments: segs, IsSegments: true}, nil
}

func parseTurn(m wireMessage) (Turn, error) {
	turn := Turn{Role: m.Role}

	var s string
	if err := json.Unmarshal(m.Content, &s); err == nil {
		turn.Text = s
		return turn, nil
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(m.Content, &raws); err != nil {
		return Turn{}, fmt.Errorf("decoding message content: %w", err)
	}
	turn.IsBlocks = true
	for _, raw := range raws {
		var b wireContentBlock
		if err := json.Unmarshal(raw, &b); err != nil {
			return Turn{}, fmt.Errorf("decoding message content: %w", err)
		}
		content, err := parseContentBlock(b)
		if err != nil {
			return Turn{}, err
		}
		if content.Type == BlockUnknown {
			content.Raw = raw
		}
		turn.Blocks = append(turn.Blocks, content)
	}
	return turn, nil
}

func parseContentBlock(b wireContentBlock) (Content, error) {
	switch b.Type {
	case string(BlockText):
		return Content{Type: BlockText, Text: b.Text}, nil
	case string(BlockImage):
		if b.Source == nil {
			return Content{}, fmt.Errorf("image block missing source")
		}
		return Content{Type: BlockImage, Source: b.Source}, nil
	case string(BlockToolUse):
		return Content{
			Type:      BlockToolUse,
			ToolUseID: b.ID,
			ToolName:  b.Name,
			ToolInput: b.Input,
		}, nil
	case string(BlockToolResult):
		trc, err := parseToolResultContent(b.Content)
		if err != nil {
			return Content{}, err
		}
		return Content{
			Type:                BlockToolResult,
			ToolResultToolUseID: b.ToolUseID,
			ToolResultContent:   trc,
		}, nil
	default:
		raw, _ := json.Marshal(b)
		return Content{Type: BlockUnknown, Raw: raw}, nil
	}
}

func parseToolResultContent(raw json.RawMessage) (ToolResultContent, error) {
	if len(raw) == 0 {
		return ToolResultContent{}, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return ToolResultContent{Text: s}, nil
	}
	var blocks []wireContentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return ToolResultContent{}, fmt.Errorf("decoding tool_result content: %w", err)
	}
	texts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		texts = append(texts, b.Text)
	}
	return ToolResultContent{TextBlocks: texts, IsBlocks: true}, nil
}

func parseToolChoice(raw json.RawMessage) (*ToolChoice, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		switch s {
		case "auto":
			return &ToolChoice{Kind: ToolChoiceAuto}, nil
		case "any":
			return &ToolChoice{Kind: ToolChoiceAny}, nil
		default:
			return nil, fmt.Errorf("unknown tool_choice %q", s)
		}
	}

	var obj struct {
		Type string `json:"type"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("decoding tool_choice: %w", err)
	}
	switch obj.Type {
	case "auto":
		return &ToolChoice{Kind: ToolChoiceAuto}, nil
	case "any":
		return &ToolChoice{Kind: ToolChoiceAny}, nil
	case "tool":
		return &ToolChoice{Kind: ToolChoiceTool, Name: obj.Name}, nil
	default:
		return nil, fmt.Errorf("unknown tool_choice type %q", obj.Type)
	}
}

// MarshalJSON renders a MessageResponse in the Anthropic wire shape.
func (r *MessageResponse) MarshalJSON() ([]byte, error) {
	type wireBlock struct {
		Type  string          `json:"type"`
		Text  string          `json:"text,omitempty"`
		ID    string          `json:"id,omitempty"`
		Name  string          `json:"name,omitempty"`
		Input json.RawMessage `json:"input,omitempty"`
	}
	blocks := make([]wireBlock, 0, len(r.Content))
	for _, b := range r.Content {
		switch b.Type {
		case BlockText:
			blocks = append(blocks, wireBlock{Type: "text", Text: b.Text})
		case BlockToolUse:
			input := b.ToolInput
			if len(input) == 0 {
				input = json.RawMessage("{}")
			}
			blocks = append(blocks, wireBlock{
				Type:  "tool_use",
				ID:    b.ToolUseID,
				Name:  b.ToolName,
				Input: input,
			})
		}
	}

	out := struct {
		ID           string          `json:"id"`
		Type         string          `json:"type"`
		Role         Role            `json:"role"`
		Model        string          `json:"model"`
		Content      []wireBlock     `json:"content"`
		StopReason   StopReason      `json:"stop_reason"`
		StopSequence *string         `json:"stop_sequence"`
		Usage        Usage           `json:"usage"`
	}{
		ID:           r.ID,
		Type:         "message",
		Role:         RoleAssistant,
		Model:        r.Model,
		Content:      blocks,
		StopReason:   r.StopReason,
		StopSequence: r.StopSequence,
		Usage:        r.Usage,
	}
	return json.Marshal(out)
}
