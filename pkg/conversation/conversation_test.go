package conversation

import (
	"errors"
	"testing"
)

func seed(t *testing.T) *Conversation {
	t.Helper()
	c, err := New(System{Content: "policy"}, User{Content: "send an email"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

// TestAppendToolResultsInOrder verifies results must follow the request order.
func TestAppendToolResultsInOrder(t *testing.T) {
	c := seed(t)
	if err := c.Append(Assistant{ToolCalls: []ToolCall{
		{ID: "a", Name: "send_email"},
		{ID: "b", Name: "send_email"},
	}}); err != nil {
		t.Fatalf("append assistant: %v", err)
	}
	if got := len(c.Pending()); got != 2 {
		t.Fatalf("expected 2 pending calls, got %d", got)
	}

	err := c.Append(ToolResult{CallID: "b", Content: "out of order"})
	if !errors.Is(err, ErrOrphanToolResult) {
		t.Fatalf("expected ErrOrphanToolResult, got %v", err)
	}
	if err := c.Append(ToolResult{CallID: "a", Content: "ok"}); err != nil {
		t.Fatalf("append a: %v", err)
	}
	if err := c.Append(ToolResult{CallID: "b", Content: "ok"}); err != nil {
		t.Fatalf("append b: %v", err)
	}
	if len(c.Pending()) != 0 {
		t.Fatalf("expected no pending calls, got %v", c.Pending())
	}

	last, _ := c.Last()
	result, ok := last.(ToolResult)
	if !ok {
		t.Fatalf("expected ToolResult tail, got %T", last)
	}
	if result.Name != "send_email" {
		t.Fatalf("expected name filled from the call, got %q", result.Name)
	}
}

// TestAppendRejectsOrphanAndUnanswered covers both halves of the back-reference invariant.
func TestAppendRejectsOrphanAndUnanswered(t *testing.T) {
	c := seed(t)
	if err := c.Append(ToolResult{CallID: "x"}); !errors.Is(err, ErrOrphanToolResult) {
		t.Fatalf("expected orphan error, got %v", err)
	}

	if err := c.Append(Assistant{ToolCalls: []ToolCall{{ID: "x", Name: "send_email"}}}); err != nil {
		t.Fatalf("append assistant: %v", err)
	}
	if err := c.Append(User{Content: "again"}); !errors.Is(err, ErrUnansweredToolCalls) {
		t.Fatalf("expected unanswered error for user, got %v", err)
	}
	if err := c.Append(Assistant{Content: "done"}); !errors.Is(err, ErrUnansweredToolCalls) {
		t.Fatalf("expected unanswered error for assistant, got %v", err)
	}
	if c.Len() != 3 {
		t.Fatalf("rejected messages must not be stored, len=%d", c.Len())
	}
}

// TestAppendRejectsBadCallIDs checks empty and duplicate identifiers.
func TestAppendRejectsBadCallIDs(t *testing.T) {
	cases := map[string][]ToolCall{
		"empty":     {{ID: "", Name: "send_email"}},
		"duplicate": {{ID: "a", Name: "send_email"}, {ID: "a", Name: "send_email"}},
	}
	for name, calls := range cases {
		t.Run(name, func(t *testing.T) {
			c := seed(t)
			if err := c.Append(Assistant{ToolCalls: calls}); !errors.Is(err, ErrInvalidToolCall) {
				t.Fatalf("expected ErrInvalidToolCall, got %v", err)
			}
		})
	}
}

// TestMessagesReturnsCopies ensures callers cannot mutate stored history.
func TestMessagesReturnsCopies(t *testing.T) {
	calls := []ToolCall{{ID: "a", Name: "send_email", Arguments: `{"to":"x@example.com"}`}}
	c := seed(t)
	if err := c.Append(&Assistant{ToolCalls: calls}); err != nil {
		t.Fatalf("append: %v", err)
	}
	calls[0].Name = "mutated"

	msgs := c.Messages()
	stored := msgs[2].(Assistant)
	if stored.ToolCalls[0].Name != "send_email" {
		t.Fatalf("stored call changed through caller slice: %q", stored.ToolCalls[0].Name)
	}
	stored.ToolCalls[0].Name = "mutated-again"
	again := c.Messages()[2].(Assistant)
	if again.ToolCalls[0].Name != "send_email" {
		t.Fatalf("stored call changed through Messages copy: %q", again.ToolCalls[0].Name)
	}
}

// TestPrefixAndFinalContent covers rollback and reply extraction.
func TestPrefixAndFinalContent(t *testing.T) {
	c := seed(t)
	if err := c.Append(Assistant{Content: "Your email was sent successfully."}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if got := c.FinalContent(); got != "Your email was sent successfully." {
		t.Fatalf("FinalContent = %q", got)
	}

	p, err := c.Prefix(2)
	if err != nil {
		t.Fatalf("Prefix: %v", err)
	}
	if p.Len() != 2 || c.Len() != 3 {
		t.Fatalf("unexpected lengths prefix=%d original=%d", p.Len(), c.Len())
	}
	if p.FinalContent() != "" {
		t.Fatalf("prefix ends with a user message, FinalContent should be empty")
	}
	if _, err := c.Prefix(4); err == nil {
		t.Fatal("expected out of range error")
	}
	if c.Count(RoleAssistant) != 1 || c.Count(RoleSystem) != 1 {
		t.Fatalf("unexpected role counts")
	}
}

// TestToolCallArgs decodes object, blank and invalid argument text.
func TestToolCallArgs(t *testing.T) {
	args, err := ToolCall{Name: "send_email", Arguments: `{"to":"x@example.com","subject":"S"}`}.Args()
	if err != nil {
		t.Fatalf("Args: %v", err)
	}
	if args["to"] != "x@example.com" || args["subject"] != "S" {
		t.Fatalf("unexpected args: %v", args)
	}

	empty, err := ToolCall{Name: "ping"}.Args()
	if err != nil || len(empty) != 0 {
		t.Fatalf("blank arguments should decode to empty map, got %v %v", empty, err)
	}

	if _, err := (ToolCall{Name: "send_email", Arguments: `["x"]`}).Args(); err == nil {
		t.Fatal("expected error for non-object arguments")
	}
}

func TestValidate(t *testing.T) {
	good := []Message{
		System{Content: "p"},
		User{Content: "u"},
		Assistant{ToolCalls: []ToolCall{{ID: "1", Name: "t"}}},
		ToolResult{CallID: "1", Content: "r"},
		Assistant{Content: "done"},
	}
	if err := Validate(good); err != nil {
		t.Fatalf("expected valid conversation: %v", err)
	}
	bad := []Message{System{Content: "p"}, ToolResult{CallID: "1"}}
	if err := Validate(bad); !errors.Is(err, ErrOrphanToolResult) {
		t.Fatalf("expected orphan error, got %v", err)
	}
	if err := Validate([]Message{nil}); !errors.Is(err, ErrNilMessage) {
		t.Fatalf("expected nil message error, got %v", err)
	}
}
