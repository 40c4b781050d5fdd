package transcript

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/minhyannv/mcp-agent-go/pkg/conversation"
)

func sampleConversation(t *testing.T) *conversation.Conversation {
	t.Helper()
	c, err := conversation.New(
		conversation.System{Content: "policy"},
		conversation.User{Content: "send it"},
		conversation.Assistant{ToolCalls: []conversation.ToolCall{{ID: "call_1", Name: "send_email", Arguments: `{"to":"x@example.com"}`}}},
		conversation.ToolResult{CallID: "call_1", Content: "Email sent successfully. Message ID: 1"},
		conversation.Assistant{Content: "Your email was sent successfully."},
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, sampleConversation(t).Messages()); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var doc document
	if err := yaml.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("output is not yaml: %v\n%s", err, buf.String())
	}
	if len(doc.Messages) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(doc.Messages))
	}
	call := doc.Messages[2]
	if call.Role != "assistant" || len(call.ToolCalls) != 1 || call.ToolCalls[0].Arguments != `{"to":"x@example.com"}` {
		t.Fatalf("unexpected assistant entry: %+v", call)
	}
	result := doc.Messages[3]
	if result.Role != "tool" || result.CallID != "call_1" || result.Name != "send_email" {
		t.Fatalf("unexpected tool entry: %+v", result)
	}
}

func TestSaveCreatesDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs", "latest.yaml")
	if err := Save(path, sampleConversation(t)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read transcript: %v", err)
	}
	if !bytes.Contains(data, []byte("Your email was sent successfully.")) {
		t.Fatalf("transcript misses final reply:\n%s", data)
	}
}
