package agent

import (
	"testing"

	"github.com/minhyannv/mcp-agent-go/pkg/conversation"
)

func TestRoute(t *testing.T) {
	call := conversation.ToolCall{ID: "1", Name: "send_email", Arguments: "{}"}
	second := conversation.ToolCall{ID: "2", Name: "send_email", Arguments: "{}"}
	seed := []conversation.Message{conversation.System{Content: "policy"}, conversation.User{Content: "hi"}}

	cases := []struct {
		name string
		msgs []conversation.Message
		want State
	}{
		{name: "empty", want: AwaitModel},
		{name: "user tail", msgs: seed, want: AwaitModel},
		{name: "assistant with calls", msgs: append(append([]conversation.Message{}, seed...),
			conversation.Assistant{ToolCalls: []conversation.ToolCall{call}}), want: ExecuteTools},
		{name: "assistant reply", msgs: append(append([]conversation.Message{}, seed...),
			conversation.Assistant{Content: "hello"}), want: Done},
		{name: "all results in", msgs: append(append([]conversation.Message{}, seed...),
			conversation.Assistant{ToolCalls: []conversation.ToolCall{call}},
			conversation.ToolResult{CallID: "1", Content: "ok"}), want: AwaitModel},
		{name: "results still pending", msgs: append(append([]conversation.Message{}, seed...),
			conversation.Assistant{ToolCalls: []conversation.ToolCall{call, second}},
			conversation.ToolResult{CallID: "1", Content: "ok"}), want: ExecuteTools},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := conversation.New(tc.msgs...)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if got := Route(c); got != tc.want {
				t.Fatalf("Route = %s, want %s", got, tc.want)
			}
			if got := Route(c); got != tc.want {
				t.Fatalf("Route is not stable: %s", got)
			}
		})
	}
}

func TestStateString(t *testing.T) {
	if AwaitModel.String() != "AWAIT_MODEL" || ExecuteTools.String() != "EXECUTE_TOOLS" || Done.String() != "DONE" {
		t.Fatal("unexpected state names")
	}
	if State(42).String() != "UNKNOWN" {
		t.Fatal("unknown state should print UNKNOWN")
	}
}

func TestNormalizeCallIDs(t *testing.T) {
	in := []conversation.ToolCall{
		{ID: "a", Name: "x"},
		{ID: "", Name: "y"},
		{ID: "a", Name: "z"},
		{ID: "call_2_3", Name: "w"},
	}
	out := normalizeCallIDs(in, 2)

	want := []string{"a", "call_2_1", "call_2_2", "call_2_3"}
	for i, call := range out {
		if call.ID != want[i] {
			t.Fatalf("call %d id = %q, want %q", i, call.ID, want[i])
		}
	}
	if in[1].ID != "" {
		t.Fatal("input slice must not be modified")
	}
	if normalizeCallIDs(nil, 1) != nil {
		t.Fatal("nil stays nil")
	}

	clash := normalizeCallIDs([]conversation.ToolCall{{ID: "call_1_1"}, {ID: ""}}, 1)
	if clash[1].ID != "call_1_1_1" {
		t.Fatalf("expected suffix on clash, got %q", clash[1].ID)
	}
}
