package mailserver

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (s *recordingSender) Send(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

var fixedTime = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

// connect serves NewServer over in-memory transports and returns a client session.
func connect(t *testing.T, sender Sender) *mcpsdk.ClientSession {
	t.Helper()
	server, err := NewServer(sender, "Agent <agent@example.com>",
		WithClock(func() time.Time { return fixedTime }),
		WithIDGenerator(func() string { return "0000-test" }),
	)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	serverTransport, clientTransport := mcpsdk.NewInMemoryTransports()
	ctx := context.Background()
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("server connect: %v", err)
	}
	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test-client", Version: "test"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() {
		_ = session.Close()
		_ = serverSession.Wait()
	})
	return session
}

func callText(t *testing.T, res *mcpsdk.CallToolResult) string {
	t.Helper()
	if len(res.Content) != 1 {
		t.Fatalf("expected one content item, got %d", len(res.Content))
	}
	text, ok := res.Content[0].(*mcpsdk.TextContent)
	if !ok {
		t.Fatalf("content is %T, want *TextContent", res.Content[0])
	}
	return text.Text
}

func TestSendEmailDelivers(t *testing.T) {
	sender := &recordingSender{}
	session := connect(t, sender)
	ctx := context.Background()

	var names []string
	for tool, err := range session.Tools(ctx, nil) {
		if err != nil {
			t.Fatalf("list tools: %v", err)
		}
		names = append(names, tool.Name)
	}
	if len(names) != 1 || names[0] != ToolName {
		t.Fatalf("unexpected tools: %v", names)
	}

	res, err := session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name: ToolName,
		Arguments: map[string]any{
			"to":      "x@example.com, Y <y@example.com>",
			"subject": "S",
			"body":    "B",
			"cc":      []any{"c@example.com"},
		},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", callText(t, res))
	}
	if got := callText(t, res); got != "Email sent successfully. Message ID: 0000-test" {
		t.Fatalf("unexpected result text %q", got)
	}

	if len(sender.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(sender.sent))
	}
	msg := sender.sent[0]
	if msg.From != "agent@example.com" || strings.Join(msg.To, ",") != "x@example.com,y@example.com" {
		t.Fatalf("unexpected addresses: from=%s to=%v", msg.From, msg.To)
	}
	if len(msg.Cc) != 1 || msg.Cc[0] != "c@example.com" || !msg.Date.Equal(fixedTime) {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestSendEmailReportsErrorsAsResults(t *testing.T) {
	cases := []struct {
		name   string
		args   map[string]any
		sender *recordingSender
		want   string
	}{
		{name: "missing args", args: map[string]any{}, sender: &recordingSender{}, want: "required"},
		{name: "bad address", args: map[string]any{"to": "not-an-address", "subject": "S", "body": "B"}, sender: &recordingSender{}, want: "invalid address"},
		{name: "empty subject", args: map[string]any{"to": "x@example.com", "subject": " ", "body": "B"}, sender: &recordingSender{}, want: "subject is required"},
		{name: "header injection", args: map[string]any{"to": "x@example.com", "subject": "S\nBcc: z@example.com", "body": "B"}, sender: &recordingSender{}, want: "single line"},
		{name: "delivery failure", args: map[string]any{"to": "x@example.com", "subject": "S", "body": "B"}, sender: &recordingSender{err: errors.New("535 auth failed")}, want: "failed to send email: 535 auth failed"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			session := connect(t, tc.sender)
			res, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{Name: ToolName, Arguments: tc.args})
			if err != nil {
				t.Fatalf("tool errors must be results, got protocol error %v", err)
			}
			if !res.IsError {
				t.Fatal("expected IsError result")
			}
			if got := callText(t, res); !strings.Contains(got, tc.want) {
				t.Fatalf("result %q should contain %q", got, tc.want)
			}
			if len(tc.sender.sent) != 0 {
				t.Fatal("nothing should be sent")
			}
		})
	}
}

func TestNewServerValidation(t *testing.T) {
	if _, err := NewServer(nil, "a@example.com"); err == nil {
		t.Fatal("expected error for nil sender")
	}
	if _, err := NewServer(&recordingSender{}, "nobody"); err == nil {
		t.Fatal("expected error for invalid from")
	}
}

func TestDecodeArgsAcceptsListsAndStrings(t *testing.T) {
	args, err := decodeArgs(map[string]any{
		"to":      []any{"a@example.com", "b@example.com"},
		"subject": "S",
		"body":    "B",
		"cc":      nil,
		"bcc":     `"Doe, John" <j@example.com>, d@example.com`,
	})
	if err != nil {
		t.Fatalf("decodeArgs: %v", err)
	}
	if len(args.To) != 2 || len(args.Bcc) != 1 || args.Cc != nil {
		t.Fatalf("unexpected decode: %+v", args)
	}
	bcc, err := parseAddresses("bcc", args.Bcc)
	if err != nil {
		t.Fatalf("parseAddresses: %v", err)
	}
	if strings.Join(bcc, ",") != "j@example.com,d@example.com" {
		t.Fatalf("quoted names must survive address splitting, got %v", bcc)
	}
}

func TestSendEmailAcceptsQuotedNamesAndNullCopies(t *testing.T) {
	sender := &recordingSender{}
	session := connect(t, sender)

	res, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name: ToolName,
		Arguments: map[string]any{
			"to":      `"Doe, John" <j@example.com>`,
			"subject": "S",
			"body":    "B",
			"cc":      "y@example.com",
			"bcc":     nil,
		},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", callText(t, res))
	}
	msg := sender.sent[0]
	if strings.Join(msg.To, ",") != "j@example.com" || strings.Join(msg.Cc, ",") != "y@example.com" || len(msg.Bcc) != 0 {
		t.Fatalf("unexpected recipients: %+v", msg)
	}
}
