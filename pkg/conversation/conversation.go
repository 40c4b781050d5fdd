package conversation

import (
	"errors"
	"fmt"
)

var (
	// ErrNilMessage is returned when appending a nil message.
	ErrNilMessage = errors.New("message is nil")
	// ErrInvalidToolCall is returned for assistant messages with empty or duplicate call IDs.
	ErrInvalidToolCall = errors.New("invalid tool call")
	// ErrOrphanToolResult is returned for a tool result that does not answer the next pending call.
	ErrOrphanToolResult = errors.New("tool result does not answer a pending tool call")
	// ErrUnansweredToolCalls is returned when a non-tool message follows unanswered tool calls.
	ErrUnansweredToolCalls = errors.New("previous tool calls are not answered")
)

// Conversation is an append-only message history. It is not safe for concurrent use;
// one control loop run owns it at a time.
type Conversation struct {
	messages []Message
	// pending holds the calls of the last assistant message that still lack a result, in order.
	pending []ToolCall
}

// New builds a conversation by appending msgs in order.
func New(msgs ...Message) (*Conversation, error) {
	c := &Conversation{}
	for i, msg := range msgs {
		if err := c.Append(msg); err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
	}
	return c, nil
}

// Append adds msg to the end of the conversation after checking the tool-call invariants.
func (c *Conversation) Append(msg Message) error {
	msg = clone(msg)
	if msg == nil {
		return ErrNilMessage
	}

	switch m := msg.(type) {
	case ToolResult:
		if len(c.pending) == 0 {
			return fmt.Errorf("%w: %q", ErrOrphanToolResult, m.CallID)
		}
		next := c.pending[0]
		if m.CallID != next.ID {
			return fmt.Errorf("%w: got %q, want %q", ErrOrphanToolResult, m.CallID, next.ID)
		}
		if m.Name == "" {
			m.Name = next.Name
		}
		c.pending = c.pending[1:]
		c.messages = append(c.messages, m)
		return nil
	case Assistant:
		if len(c.pending) > 0 {
			return fmt.Errorf("%w: %d remaining", ErrUnansweredToolCalls, len(c.pending))
		}
		if err := checkToolCalls(m.ToolCalls); err != nil {
			return err
		}
		c.messages = append(c.messages, m)
		c.pending = append([]ToolCall(nil), m.ToolCalls...)
		return nil
	case System, User:
		if len(c.pending) > 0 {
			return fmt.Errorf("%w: %d remaining", ErrUnansweredToolCalls, len(c.pending))
		}
		c.messages = append(c.messages, m)
		return nil
	default:
		return fmt.Errorf("unsupported message type %T", msg)
	}
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	if c == nil {
		return 0
	}
	return len(c.messages)
}

// Messages returns a copy of the history.
func (c *Conversation) Messages() []Message {
	if c == nil {
		return nil
	}
	out := make([]Message, len(c.messages))
	for i, msg := range c.messages {
		out[i] = clone(msg)
	}
	return out
}

// Last returns the trailing message.
func (c *Conversation) Last() (Message, bool) {
	if c.Len() == 0 {
		return nil, false
	}
	return clone(c.messages[len(c.messages)-1]), true
}

// Pending returns the tool calls of the last assistant message that have no result yet.
func (c *Conversation) Pending() []ToolCall {
	if c == nil || len(c.pending) == 0 {
		return nil
	}
	return append([]ToolCall(nil), c.pending...)
}

// Prefix returns a new conversation holding the first n messages.
func (c *Conversation) Prefix(n int) (*Conversation, error) {
	if n < 0 || n > c.Len() {
		return nil, fmt.Errorf("prefix length %d out of range [0, %d]", n, c.Len())
	}
	if c == nil {
		return &Conversation{}, nil
	}
	return New(c.messages[:n]...)
}

// FinalContent returns the text of the trailing assistant message when it requests no tools.
func (c *Conversation) FinalContent() string {
	last, ok := c.Last()
	if !ok {
		return ""
	}
	assistant, ok := last.(Assistant)
	if !ok || assistant.HasToolCalls() {
		return ""
	}
	return assistant.Content
}

// Count returns how many messages carry the given role.
func (c *Conversation) Count(role Role) int {
	if c == nil {
		return 0
	}
	n := 0
	for _, msg := range c.messages {
		if msg.Role() == role {
			n++
		}
	}
	return n
}

// Validate reports whether msgs form a valid conversation.
func Validate(msgs []Message) error {
	_, err := New(msgs...)
	return err
}

func checkToolCalls(calls []ToolCall) error {
	seen := make(map[string]struct{}, len(calls))
	for i, call := range calls {
		if call.ID == "" {
			return fmt.Errorf("%w: call %d has no id", ErrInvalidToolCall, i)
		}
		if _, dup := seen[call.ID]; dup {
			return fmt.Errorf("%w: duplicate id %s", ErrInvalidToolCall, call.ID)
		}
		seen[call.ID] = struct{}{}
	}
	return nil
}
