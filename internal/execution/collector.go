package execution

import (
	"strings"

	"github.com/akulkarni/0perator-eval/internal/models"
)

// NoContentSentinel is the final text of a session whose stream produced
// neither a result field nor any prose content.
const NoContentSentinel = "-- No content generated --"

// MessageCollector derives a session's final answer text from its message
// stream. Precedence: the most recent non-empty result field wins; otherwise
// the prose content blocks are concatenated in arrival order; otherwise the
// sentinel. Order-preserving, never reorders or batches.
type MessageCollector struct {
	count      int
	lastResult string
	parts      []string
}

// NewMessageCollector returns an empty collector.
func NewMessageCollector() *MessageCollector {
	return &MessageCollector{}
}

// OnMessage consumes one message. Intended to be wired into
// SessionRequest.OnMessage.
func (c *MessageCollector) OnMessage(msg models.Message) {
	c.count++

	if result := msg.ResultText(); result != "" {
		c.lastResult = result
		return
	}

	for _, block := range msg.ContentBlocks() {
		if !block.IsText() {
			continue
		}
		if text := strings.TrimSpace(block.Text); text != "" {
			c.parts = append(c.parts, text)
		}
	}
}

// Count returns how many messages were observed.
func (c *MessageCollector) Count() int {
	return c.count
}

// FinalText returns the derived final answer.
func (c *MessageCollector) FinalText() string {
	if c.lastResult != "" {
		return c.lastResult
	}
	if len(c.parts) > 0 {
		return strings.Join(c.parts, "\n")
	}
	return NoContentSentinel
}
