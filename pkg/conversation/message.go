// Package conversation models the ordered message history shared by the user, the model and tools.
package conversation

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry of a conversation. The set of implementations is closed:
// System, User, Assistant and ToolResult.
type Message interface {
	Role() Role
	isMessage()
}

// System carries the policy prompt.
type System struct {
	Content string
}

// User carries a request typed by the end user.
type User struct {
	Content string
}

// Assistant is one model response. Content may be empty when only tool calls are present.
type Assistant struct {
	Content   string
	ToolCalls []ToolCall
}

// ToolResult answers the tool call identified by CallID.
type ToolResult struct {
	CallID  string
	Name    string
	Content string
	IsError bool
}

func (System) Role() Role     { return RoleSystem }
func (User) Role() Role       { return RoleUser }
func (Assistant) Role() Role  { return RoleAssistant }
func (ToolResult) Role() Role { return RoleTool }

func (System) isMessage()     {}
func (User) isMessage()       {}
func (Assistant) isMessage()  {}
func (ToolResult) isMessage() {}

// HasToolCalls reports whether the response requests at least one tool invocation.
func (a Assistant) HasToolCalls() bool {
	return len(a.ToolCalls) > 0
}

// ToolCall is a model-issued request to run a named tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Args decodes the JSON arguments into a map. Blank arguments decode to an empty map.
func (c ToolCall) Args() (map[string]any, error) {
	text := strings.TrimSpace(c.Arguments)
	if text == "" || text == "null" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(text), &args); err != nil {
		return nil, fmt.Errorf("decode arguments for %s: %w", c.Name, err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

// Content returns the text of any message kind.
func Content(m Message) string {
	switch msg := clone(m).(type) {
	case System:
		return msg.Content
	case User:
		return msg.Content
	case Assistant:
		return msg.Content
	case ToolResult:
		return msg.Content
	default:
		return ""
	}
}

// clone returns a copy that shares no mutable state with m.
func clone(m Message) Message {
	switch msg := m.(type) {
	case *System:
		if msg == nil {
			return nil
		}
		return *msg
	case *User:
		if msg == nil {
			return nil
		}
		return *msg
	case *Assistant:
		if msg == nil {
			return nil
		}
		return clone(*msg)
	case *ToolResult:
		if msg == nil {
			return nil
		}
		return *msg
	case Assistant:
		if len(msg.ToolCalls) > 0 {
			calls := make([]ToolCall, len(msg.ToolCalls))
			copy(calls, msg.ToolCalls)
			msg.ToolCalls = calls
		}
		return msg
	default:
		return m
	}
}
