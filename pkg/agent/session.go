package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/minhyannv/mcp-agent-go/pkg/conversation"
)

// Session keeps one conversation across several user inputs in a single process.
type Session struct {
	loop         *Loop
	systemPrompt string
	conv         *conversation.Conversation
}

// NewSession starts a conversation seeded with systemPrompt.
func NewSession(loop *Loop, systemPrompt string) (*Session, error) {
	if loop == nil {
		return nil, errors.New("loop is required")
	}
	systemPrompt = strings.TrimSpace(systemPrompt)
	if systemPrompt == "" {
		return nil, errors.New("system prompt is empty")
	}
	s := &Session{loop: loop, systemPrompt: systemPrompt}
	s.Reset()
	return s, nil
}

// Send appends a user message, runs the loop and returns the final reply.
// On error the conversation is restored to what it was before the call.
func (s *Session) Send(ctx context.Context, input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", errors.New("user input is required")
	}

	previousLen := s.conv.Len()
	if err := s.conv.Append(conversation.User{Content: input}); err != nil {
		return "", fmt.Errorf("append user message: %w", err)
	}

	final, err := s.loop.Run(ctx, s.conv)
	if err != nil {
		if restored, prefixErr := s.conv.Prefix(previousLen); prefixErr == nil {
			s.conv = restored
		}
		return "", err
	}
	s.conv = final
	return final.FinalContent(), nil
}

// Reset drops the history and keeps only the system prompt.
func (s *Session) Reset() {
	conv, _ := conversation.New(conversation.System{Content: s.systemPrompt})
	s.conv = conv
}

// Conversation returns a snapshot of the current history.
func (s *Session) Conversation() *conversation.Conversation {
	snapshot, err := s.conv.Prefix(s.conv.Len())
	if err != nil {
		return s.conv
	}
	return snapshot
}
