// Package stream implements the streaming translator: a state machine that
// consumes intermediate chat-completion chunks and emits the Anthropic SSE
// event sequence, owning block ordering, delta accumulation, tool-call
// assembly, and stop-reason mapping.
//
// State is a value type. Every transition is a pure function
// (State, chunk) -> (State, []Event); nothing here holds a writer or does
// I/O, so the whole machine is trivial to drive in a test without a socket.
package stream

import (
	"github.com/google/uuid"

	"github.com/klam-proxy/anthropic-openai-gateway/convert"
	"github.com/klam-proxy/anthropic-openai-gateway/schema"
)

// Event is one named SSE event with its JSON payload, ready for framing. An
// Event with an empty Name and non-nil Raw is the literal "[DONE]" frame,
// which carries no event: line and an unquoted data: payload.
type Event struct {
	Name string
	Data any
	Raw  []byte
}

// Done is the terminal SSE frame: a bare "data: [DONE]" line with no
// event: line, per the SSE framing rules.
var Done = Event{Raw: []byte("[DONE]")}

// toolBlock tracks one tool_use block being assembled from chunks.
type toolBlock struct {
	index int
	id    string
	name  string
}

// State is the streaming translator's state. It is never mutated in place;
// every method returns the next State plus the events produced.
type State struct {
	messageID string
	model     string

	textIndex      int // -1 when no text block is open
	nextBlockIndex int

	// toolSlots maps the upstream tool-call index to its assembled block.
	toolSlots map[int]*toolBlock
	// toolOrder preserves emission order for closing blocks at termination.
	toolOrder []int

	outputTokens int
	inputTokens  int

	toolOpened bool
	terminated bool
}

// New builds the initial state for one response stream. messageID should be
// minted by the caller (e.g. "msg_" + a fresh UUID) so it is stable across
// the whole stream.
func New(messageID, model string) State {
	return State{
		messageID:      messageID,
		model:          model,
		textIndex:      -1,
		nextBlockIndex: 0,
		toolSlots:      make(map[int]*toolBlock),
	}
}

// NewMessageID mints a response ID in Anthropic's "msg_..." shape.
func NewMessageID() string {
	return "msg_" + uuid.NewString()
}

// Start emits message_start followed by a single ping.
func (s State) Start() (State, []Event) {
	events := []Event{
		{Name: "message_start", Data: map[string]any{
			"type": "message_start",
			"message": map[string]any{
				"id":            s.messageID,
				"type":          "message",
				"role":          "assistant",
				"model":         s.model,
				"content":       []any{},
				"stop_reason":   nil,
				"stop_sequence": nil,
				"usage": map[string]any{
					"input_tokens":  0,
					"output_tokens": 0,
				},
			},
		}},
		{Name: "ping", Data: map[string]any{"type": "ping"}},
	}
	return s, events
}

// Apply feeds one intermediate chunk through the machine, returning the
// updated state and any events the chunk produced. It does not handle
// termination; call Terminate when the upstream stream ends.
func (s State) Apply(chunk schema.IntermediateChunk) (State, []Event) {
	if chunk.Usage != nil {
		s.inputTokens = chunk.Usage.PromptTokens
		s.outputTokens = chunk.Usage.CompletionTokens
	}
	if len(chunk.Choices) == 0 {
		return s, nil
	}

	choice := chunk.Choices[0]
	var events []Event

	if choice.Delta.Content != "" {
		// A chunk with both text and tool_calls only opens a text block if
		// no tool block has opened yet in this message; Anthropic forbids
		// text-after-tool inside one message, so late text is dropped.
		if !s.toolOpened {
			if s.textIndex == -1 {
				s.textIndex = s.nextBlockIndex
				s.nextBlockIndex++
				events = append(events, Event{Name: "content_block_start", Data: map[string]any{
					"type":  "content_block_start",
					"index": s.textIndex,
					"content_block": map[string]any{
						"type": "text",
						"text": "",
					},
				}})
			}
			events = append(events, Event{Name: "content_block_delta", Data: map[string]any{
				"type":  "content_block_delta",
				"index": s.textIndex,
				"delta": map[string]any{
					"type": "text_delta",
					"text": choice.Delta.Content,
				},
			}})
		}
	}

	if len(choice.Delta.ToolCalls) > 0 {
		// Copy the tool bookkeeping before changing it, so the State this
		// method was called on keeps its own view.
		slots := make(map[int]*toolBlock, len(s.toolSlots)+len(choice.Delta.ToolCalls))
		for k, v := range s.toolSlots {
			cp := *v
			slots[k] = &cp
		}
		s.toolSlots = slots
		s.toolOrder = append([]int(nil), s.toolOrder...)
	}

	for _, tc := range choice.Delta.ToolCalls {
		if s.textIndex != -1 {
			events = append(events, Event{Name: "content_block_stop", Data: map[string]any{
				"type":  "content_block_stop",
				"index": s.textIndex,
			}})
			s.textIndex = -1
		}
		s.toolOpened = true

		block, exists := s.toolSlots[tc.Index]
		if !exists {
			id := tc.ID
			if id == "" {
				id = "toolu_" + uuid.NewString()
			}
			block = &toolBlock{
				index: s.nextBlockIndex,
				id:    id,
				name:  tc.Function.Name,
			}
			s.nextBlockIndex++
			s.toolSlots[tc.Index] = block
			s.toolOrder = append(s.toolOrder, tc.Index)

			events = append(events, Event{Name: "content_block_start", Data: map[string]any{
				"type":  "content_block_start",
				"index": block.index,
				"content_block": map[string]any{
					"type":  "tool_use",
					"id":    block.id,
					"name":  block.name,
					"input": map[string]any{},
				},
			}})
		} else if tc.Function.Name != "" && block.name == "" {
			// Late-arriving name fragment: recorded for the final message
			// but the already-emitted start is not re-sent.
			block.name = tc.Function.Name
		}

		if tc.Function.Arguments != "" {
			events = append(events, Event{Name: "content_block_delta", Data: map[string]any{
				"type":  "content_block_delta",
				"index": block.index,
				"delta": map[string]any{
					"type":         "input_json_delta",
					"partial_json": tc.Function.Arguments,
				},
			}})
		}
	}

	return s, events
}

// Terminate closes any open blocks and emits message_delta, message_stop,
// and the literal [DONE] line. finishReason is the upstream's
// finish_reason, or "" if the stream simply ended. Calling Terminate or
// TerminateError on a State returned by either of them is a no-op (returns
// no events).
func (s State) Terminate(finishReason string) (State, []Event) {
	if s.terminated {
		return s, nil
	}
	s.terminated = true

	var events []Event
	if s.textIndex != -1 {
		events = append(events, closeBlock(s.textIndex))
		s.textIndex = -1
	}
	for _, slot := range s.toolOrder {
		events = append(events, closeBlock(s.toolSlots[slot].index))
	}

	stopReason := convert.MapFinishReason(finishReason, s.toolOpened)
	events = append(events, Event{Name: "message_delta", Data: map[string]any{
		"type": "message_delta",
		"delta": map[string]any{
			"stop_reason":   stopReason,
			"stop_sequence": nil,
		},
		"usage": map[string]any{
			"output_tokens": s.outputTokens,
		},
	}})
	events = append(events, Event{Name: "message_stop", Data: map[string]any{
		"type": "message_stop",
	}})
	events = append(events, Done)

	return s, events
}

// TerminateError closes any open blocks and emits a best-effort terminal
// sequence after a mid-stream upstream error, without propagating the
// error to the HTTP writer. The caller is responsible for logging err
// out-of-band.
func (s State) TerminateError(err error) (State, []Event) {
	if s.terminated {
		return s, nil
	}
	s.terminated = true

	var events []Event
	if s.textIndex != -1 {
		events = append(events, closeBlock(s.textIndex))
		s.textIndex = -1
	}
	for _, slot := range s.toolOrder {
		events = append(events, closeBlock(s.toolSlots[slot].index))
	}

	events = append(events, Event{Name: "message_delta", Data: map[string]any{
		"type": "message_delta",
		"delta": map[string]any{
			"stop_reason":   schema.StopEndTurn,
			"stop_sequence": nil,
		},
		"usage": map[string]any{
			"output_tokens": s.outputTokens,
		},
	}})
	events = append(events, Event{Name: "message_stop", Data: map[string]any{
		"type": "message_stop",
	}})
	events = append(events, Done)

	return s, events
}

func closeBlock(index int) Event {
	return Event{Name: "content_block_stop", Data: map[string]any{
		"type":  "content_block_stop",
		"index": index,
	}}
}
