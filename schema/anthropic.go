// Package schema holds the typed, validating representations of the
// Anthropic request/response wire shapes and of the OpenAI-compatible
// intermediate shape, plus model-name normalization.
package schema

import "encoding/json"

// Role is a conversation turn's speaker.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// StopReason is the terminal reason a MessageResponse stopped generating.
type StopReason string

const (
	StopEndTurn      StopReason = "end_turn"
	StopMaxTokens    StopReason = "max_tokens"
	StopSequenceHit  StopReason = "stop_sequence"
	StopToolUse      StopReason = "tool_use"
)

// ImageSource is the base64-embedded payload of an image content block.
type ImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// ContentBlockType tags the variant a Content value holds.
type ContentBlockType string

const (
	BlockText       ContentBlockType = "text"
	BlockImage      ContentBlockType = "image"
	BlockToolUse    ContentBlockType = "tool_use"
	BlockToolResult ContentBlockType = "tool_result"
	BlockUnknown    ContentBlockType = "unknown"
)

// Content is a tagged-variant content block. Only the fields relevant to
// Type are populated; Raw preserves the original bytes for the Unknown case
// and for any round-trip that needs the source representation.
type Content struct {
	Type ContentBlockType

	// text
	Text string

	// image
	Source *ImageSource

	// tool_use
	ToolUseID   string
	ToolName    string
	ToolInput   json.RawMessage

	// tool_result
	ToolResultToolUseID string
	ToolResultContent   ToolResultContent

	// unknown
	Raw json.RawMessage
}

// ToolResultContent is either a plain string or a sequence of text blocks,
// per the tool_result.content union.
type ToolResultContent struct {
	Text      string
	TextBlocks []string
	IsBlocks  bool
}

// Turn pairs a role with either plain string content or a block sequence.
type Turn struct {
	Role    Role
	Text    string
	Blocks  []Content
	IsBlocks bool
}

// SystemPrompt is either a single string or an ordered sequence of text
// segments, joined with newlines during conversion.
type SystemPrompt struct {
	Text     string
	Segments []string
	IsSegments bool
}

// ToolDefinition describes one callable tool.
type ToolDefinition struct {
	Name        string `validate:"required"`
	Description string
	InputSchema json.RawMessage
}

// ToolChoiceKind tags the Tool choice variant.
type ToolChoiceKind string

const (
	ToolChoiceAuto ToolChoiceKind = "auto"
	ToolChoiceAny  ToolChoiceKind = "any"
	ToolChoiceTool ToolChoiceKind = "tool"
)

// ToolChoice selects how the model may invoke tools.
type ToolChoice struct {
	Kind ToolChoiceKind
	Name string // set when Kind == ToolChoiceTool
}

// MessageRequest is the validated, normalized Anthropic-shaped request.
type MessageRequest struct {
	Model         string `validate:"required"`
	OriginalModel string
	MaxTokens     int `validate:"gt=0"`
	Messages      []Turn
	System        *SystemPrompt
	Tools         []ToolDefinition `validate:"dive"`
	ToolChoice    *ToolChoice
	Temperature   *float64
	TopP          *float64
	TopK          *int
	StopSequences []string
	Stream        bool
}

// Usage carries token accounting.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ResponseBlock is a text or tool_use block in a MessageResponse.
type ResponseBlock struct {
	Type ContentBlockType // BlockText or BlockToolUse

	Text string

	ToolUseID string
	ToolName  string
	ToolInput json.RawMessage
}

// MessageResponse is the Anthropic-shaped non-streaming reply.
type MessageResponse struct {
	ID           string
	Type         string
	Role         Role
	Model        string
	Content      []ResponseBlock
	StopReason   StopReason
	StopSequence *string
	Usage        Usage
}
