package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/minhyannv/mcp-agent-go/pkg/errorsx"
)

func setupTestClient(t *testing.T, callCounter *atomic.Int32) *Client {
	t.Helper()
	server := mcpsdk.NewServer(&mcpsdk.Implementation{Name: "test-server", Version: "test"}, nil)
	registerTestTools(server)

	serverTransport, clientTransport := mcpsdk.NewInMemoryTransports()
	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan error, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		session, err := server.Connect(ctx, serverTransport, nil)
		if err != nil {
			ready <- err
			return
		}
		ready <- nil
		<-ctx.Done()
		_ = session.Close()
	}()

	originalBuilder := transportBuilder
	transportBuilder = func(ServerConfig) (mcpsdk.Transport, error) {
		if callCounter != nil {
			callCounter.Add(1)
		}
		return clientTransport, nil
	}

	client := NewClient(ServerConfig{Name: "mail", Transport: TransportStdio, Command: "unused"})
	t.Cleanup(func() {
		transportBuilder = originalBuilder
		_ = client.Close()
		cancel()
		<-done
		if err := <-ready; err != nil {
			t.Fatalf("server connect failed: %v", err)
		}
	})
	return client
}

func registerTestTools(server *mcpsdk.Server) {
	server.AddTool(&mcpsdk.Tool{
		Name:        "send_email",
		Description: "Send an email",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"to":      map[string]any{"type": "string"},
				"subject": map[string]any{"type": "string"},
				"body":    map[string]any{"type": "string"},
			},
			"required": []any{"to", "subject", "body"},
		},
	}, func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		var payload map[string]string
		if err := json.Unmarshal(req.Params.Arguments, &payload); err != nil {
			return nil, err
		}
		if payload["to"] == "bounce@example.com" {
			return &mcpsdk.CallToolResult{
				IsError: true,
				Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: "mailbox unavailable"}},
			}, nil
		}
		return &mcpsdk.CallToolResult{
			Content: []mcpsdk.Content{
				&mcpsdk.TextContent{Text: "Email sent successfully."},
				&mcpsdk.TextContent{Text: "Message ID: 123"},
			},
		}, nil
	})
}

// TestClientListToolsAndCall exercises discovery and invocation over an in-memory session.
func TestClientListToolsAndCall(t *testing.T) {
	var connects atomic.Int32
	client := setupTestClient(t, &connects)
	ctx := context.Background()

	schemas, err := client.ListTools(ctx)
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	if len(schemas) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(schemas))
	}
	schema := schemas[0]
	if schema.Name != "send_email" || schema.Server != "mail" {
		t.Fatalf("unexpected schema: %+v", schema)
	}
	if schema.Parameters["type"] != "object" {
		t.Fatalf("expected object schema, got %v", schema.Parameters)
	}

	out, err := client.CallTool(ctx, "send_email", map[string]any{
		"to": "x@example.com", "subject": "S", "body": "B",
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if out != "Email sent successfully.\nMessage ID: 123" {
		t.Fatalf("unexpected output: %q", out)
	}
	if connects.Load() != 1 {
		t.Fatalf("expected a single connect, got %d", connects.Load())
	}
}

// TestClientToolErrorResult maps IsError results to ToolExecutionError.
func TestClientToolErrorResult(t *testing.T) {
	client := setupTestClient(t, nil)

	_, err := client.CallTool(context.Background(), "send_email", map[string]any{
		"to": "bounce@example.com", "subject": "S", "body": "B",
	})
	var execErr *errorsx.ToolExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected ToolExecutionError, got %v", err)
	}
	if !strings.Contains(err.Error(), "mailbox unavailable") {
		t.Fatalf("error should carry tool text: %v", err)
	}

	if _, err := client.CallTool(context.Background(), "missing", nil); err == nil {
		t.Fatal("expected error for unknown tool")
	}
}

// TestClientConnectErrorCached ensures a failed connect is not retried per call.
func TestClientConnectErrorCached(t *testing.T) {
	originalBuilder := transportBuilder
	defer func() { transportBuilder = originalBuilder }()

	var calls atomic.Int32
	transportBuilder = func(ServerConfig) (mcpsdk.Transport, error) {
		calls.Add(1)
		return nil, errors.New("boom")
	}

	client := NewClient(ServerConfig{Name: "broken"})
	if _, err := client.ListTools(context.Background()); err == nil {
		t.Fatal("expected connection error")
	}
	if _, err := client.CallTool(context.Background(), "send_email", nil); err == nil {
		t.Fatal("expected cached connection error")
	}
	if calls.Load() != 1 {
		t.Fatalf("transport should be built once, got %d", calls.Load())
	}
	if err := client.Close(); err != nil {
		t.Fatalf("Close without session should be nil: %v", err)
	}
}

// TestBuildTransport covers each transport kind and its required fields.
func TestBuildTransport(t *testing.T) {
	tr, err := buildTransport(ServerConfig{
		Name:    "mail",
		Command: "mail-server",
		Args:    []string{"--creds-file-path", "credentials.env"},
		Env:     map[string]string{"SMTP_HOST": "smtp.example.com"},
	})
	if err != nil {
		t.Fatalf("stdio: %v", err)
	}
	cmdTr, ok := tr.(*mcpsdk.CommandTransport)
	if !ok {
		t.Fatalf("transport is %T, want *CommandTransport", tr)
	}
	wantArgs := []string{"mail-server", "--creds-file-path", "credentials.env"}
	if strings.Join(cmdTr.Command.Args, " ") != strings.Join(wantArgs, " ") {
		t.Fatalf("args = %v, want %v", cmdTr.Command.Args, wantArgs)
	}
	if cmdTr.Command.Env[len(cmdTr.Command.Env)-1] != "SMTP_HOST=smtp.example.com" {
		t.Fatalf("env overlay missing: %v", cmdTr.Command.Env)
	}

	sse, err := buildTransport(ServerConfig{Name: "remote", Transport: "SSE", URL: "https://mcp.example/sse"})
	if err != nil {
		t.Fatalf("sse: %v", err)
	}
	if got := sse.(*mcpsdk.SSEClientTransport).Endpoint; got != "https://mcp.example/sse" {
		t.Fatalf("unexpected sse endpoint %q", got)
	}
	httpTr, err := buildTransport(ServerConfig{Name: "remote", Transport: "http", URL: "https://mcp.example/mcp"})
	if err != nil {
		t.Fatalf("http: %v", err)
	}
	if _, ok := httpTr.(*mcpsdk.StreamableClientTransport); !ok {
		t.Fatalf("transport is %T, want *StreamableClientTransport", httpTr)
	}

	for _, bad := range []ServerConfig{
		{Name: "a", Transport: "stdio"},
		{Name: "b", Transport: "sse"},
		{Name: "c", Transport: "http"},
		{Name: "d", Transport: "carrier-pigeon"},
	} {
		if _, err := buildTransport(bad); err == nil {
			t.Fatalf("expected error for %+v", bad)
		}
	}
}

func TestMergeEnvOverrides(t *testing.T) {
	got := mergeEnv([]string{"PATH=/bin", "SMTP_HOST=old"}, map[string]string{"SMTP_HOST": "new", "A": "1"})
	want := []string{"PATH=/bin", "A=1", "SMTP_HOST=new"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("mergeEnv = %v, want %v", got, want)
	}
}
