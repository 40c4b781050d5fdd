// Package transcript writes a conversation to YAML for later inspection.
package transcript

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/minhyannv/mcp-agent-go/pkg/conversation"
)

// Entry is one message as it appears in a transcript file.
type Entry struct {
	Role      string     `yaml:"role"`
	Content   string     `yaml:"content,omitempty"`
	ToolCalls []CallInfo `yaml:"tool_calls,omitempty"`
	CallID    string     `yaml:"tool_call_id,omitempty"`
	Name      string     `yaml:"name,omitempty"`
	IsError   bool       `yaml:"is_error,omitempty"`
}

// CallInfo is a tool call requested by the assistant.
type CallInfo struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	Arguments string `yaml:"arguments"`
}

type document struct {
	Messages []Entry `yaml:"messages"`
}

// Entries converts messages into transcript entries.
func Entries(msgs []conversation.Message) []Entry {
	entries := make([]Entry, 0, len(msgs))
	for _, msg := range msgs {
		entry := Entry{Role: string(msg.Role()), Content: conversation.Content(msg)}
		switch m := msg.(type) {
		case conversation.Assistant:
			for _, call := range m.ToolCalls {
				entry.ToolCalls = append(entry.ToolCalls, CallInfo{ID: call.ID, Name: call.Name, Arguments: call.Arguments})
			}
		case conversation.ToolResult:
			entry.CallID = m.CallID
			entry.Name = m.Name
			entry.IsError = m.IsError
		}
		entries = append(entries, entry)
	}
	return entries
}

// Write encodes msgs as a YAML document.
func Write(w io.Writer, msgs []conversation.Message) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(document{Messages: Entries(msgs)}); err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}
	return enc.Close()
}

// Save writes the conversation to path, creating parent directories as needed.
func Save(path string, c *conversation.Conversation) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, c.Messages()); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
