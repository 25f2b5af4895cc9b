// Package models defines the typed message stream emitted by an agent
// engine during an evaluation session, plus the tool-server configuration
// shared between the config layer and the engines.
package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// MessageKind identifies the variant of a Message.
type MessageKind string

const (
	KindSystem    MessageKind = "system"
	KindAssistant MessageKind = "assistant"
	KindUser      MessageKind = "user"
	KindResult    MessageKind = "result"

	// KindUnknown is the catch-all for message shapes this harness does not
	// recognize. The raw payload is preserved so nothing is lost.
	KindUnknown MessageKind = "unknown"
)

// Message is one unit emitted by an agent engine. Exactly one of the variant
// pointers matching Kind is populated; Raw always holds the complete decoded
// payload so the transcript can render every field, known or not.
type Message struct {
	Kind MessageKind

	System    *SystemMessage
	Assistant *AssistantMessage
	User      *UserMessage
	Result    *ResultMessage

	Raw map[string]any
}

// SystemMessage carries engine bookkeeping (session init, tool inventory).
type SystemMessage struct {
	Subtype   string `mapstructure:"subtype"`
	SessionID string `mapstructure:"session_id"`
	Model     string `mapstructure:"model"`
	CWD       string `mapstructure:"cwd"`
}

// AssistantMessage is one assistant turn, made of content blocks.
type AssistantMessage struct {
	Model     string
	SessionID string
	Content   []ContentBlock
}

// UserMessage is a turn injected back into the conversation, typically
// carrying tool results.
type UserMessage struct {
	SessionID string
	Content   []ContentBlock
}

// ResultMessage is the engine's final verdict for a session.
type ResultMessage struct {
	Subtype    string  `mapstructure:"subtype"`
	IsError    bool    `mapstructure:"is_error"`
	Result     string  `mapstructure:"result"`
	NumTurns   int     `mapstructure:"num_turns"`
	DurationMs int64   `mapstructure:"duration_ms"`
	CostUSD    float64 `mapstructure:"total_cost_usd"`
	SessionID  string  `mapstructure:"session_id"`
}

// ContentBlock is one element of an assistant or user turn. ToolUseID is
// populated for tool invocations and tool results; plain prose has only
// Type and Text set. Raw preserves the full block payload.
type ContentBlock struct {
	Type      string
	Text      string
	ToolUseID string
	ToolName  string
	Raw       map[string]any
}

// IsText reports whether the block is prose rather than a tool invocation
// or a tool result.
func (b ContentBlock) IsText() bool {
	return b.Text != "" && b.ToolUseID == ""
}

// ResultText returns the trimmed result field, or "" when this message does
// not carry one.
func (m Message) ResultText() string {
	if m.Result == nil {
		return ""
	}
	return strings.TrimSpace(m.Result.Result)
}

// ContentBlocks returns the message's content blocks, if any.
func (m Message) ContentBlocks() []ContentBlock {
	switch {
	case m.Assistant != nil:
		return m.Assistant.Content
	case m.User != nil:
		return m.User.Content
	default:
		return nil
	}
}

// DecodeMessage parses one stream-json line into a Message. Unrecognized
// "type" values decode into the unknown variant; malformed JSON is an error
// because the stream contract promises one JSON object per line.
func DecodeMessage(line []byte) (Message, error) {
	var raw map[string]any
	if err := json.Unmarshal(line, &raw); err != nil {
		return Message{}, fmt.Errorf("malformed stream-json line: %w", err)
	}

	kind, _ := raw["type"].(string)
	msg := Message{Raw: raw}

	switch MessageKind(kind) {
	case KindSystem:
		var sys SystemMessage
		if err := mapstructure.Decode(raw, &sys); err != nil {
			return Message{}, fmt.Errorf("decoding system message: %w", err)
		}
		msg.Kind = KindSystem
		msg.System = &sys

	case KindAssistant:
		turn, err := decodeTurn(raw)
		if err != nil {
			return Message{}, fmt.Errorf("decoding assistant message: %w", err)
		}
		msg.Kind = KindAssistant
		msg.Assistant = &AssistantMessage{
			Model:     turn.Message.Model,
			SessionID: turn.SessionID,
			Content:   decodeBlocks(turn.Message.Content),
		}

	case KindUser:
		turn, err := decodeTurn(raw)
		if err != nil {
			return Message{}, fmt.Errorf("decoding user message: %w", err)
		}
		msg.Kind = KindUser
		msg.User = &UserMessage{
			SessionID: turn.SessionID,
			Content:   decodeBlocks(turn.Message.Content),
		}

	case KindResult:
		var res ResultMessage
		if err := mapstructure.Decode(raw, &res); err != nil {
			return Message{}, fmt.Errorf("decoding result message: %w", err)
		}
		msg.Kind = KindResult
		msg.Result = &res

	default:
		msg.Kind = KindUnknown
	}

	return msg, nil
}

// turnEnvelope is the nested wire shape shared by assistant and user lines:
// the conversational payload sits under a "message" key.
type turnEnvelope struct {
	SessionID string `mapstructure:"session_id"`
	Message   struct {
		Model   string           `mapstructure:"model"`
		Content []map[string]any `mapstructure:"content"`
	} `mapstructure:"message"`
}

func decodeTurn(raw map[string]any) (*turnEnvelope, error) {
	var turn turnEnvelope
	if err := mapstructure.Decode(raw, &turn); err != nil {
		return nil, err
	}
	return &turn, nil
}

func decodeBlocks(rawBlocks []map[string]any) []ContentBlock {
	var blocks []ContentBlock
	for _, rb := range rawBlocks {
		block := ContentBlock{Raw: rb}
		block.Type, _ = rb["type"].(string)
		block.Text, _ = rb["text"].(string)
		block.ToolName, _ = rb["name"].(string)

		// Tool invocations carry "id"; tool results refer back via
		// "tool_use_id".
		if id, ok := rb["id"].(string); ok {
			block.ToolUseID = id
		} else if id, ok := rb["tool_use_id"].(string); ok {
			block.ToolUseID = id
		}

		blocks = append(blocks, block)
	}
	return blocks
}
