// Package mcp connects to Model Context Protocol tool servers and exposes them as tools.Server.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/minhyannv/mcp-agent-go/pkg/errorsx"
	loggerpkg "github.com/minhyannv/mcp-agent-go/pkg/logger"
	"github.com/minhyannv/mcp-agent-go/pkg/tools"
)

const (
	TransportStdio = "stdio"
	TransportSSE   = "sse"
	TransportHTTP  = "http"
)

// ServerConfig describes how to reach one tool server.
type ServerConfig struct {
	Name      string
	Transport string
	Command   string
	Args      []string
	Env       map[string]string
	URL       string
}

// transportBuilder is overridden in tests to stub the transport factory.
var transportBuilder = buildTransport

// Option configures a Client.
type Option func(*Client)

// WithLogger injects a logger dependency.
func WithLogger(l loggerpkg.Logger) Option {
	return func(c *Client) {
		c.logger = loggerpkg.OrNop(l)
	}
}

// WithVerbose enables debug logging.
func WithVerbose(v bool) Option {
	return func(c *Client) {
		c.verbose = v
	}
}

// Client is a lazily connected MCP client session for a single server.
type Client struct {
	cfg  ServerConfig
	impl *mcpsdk.Client

	once       sync.Once
	mu         sync.Mutex
	session    *mcpsdk.ClientSession
	connectErr error

	logger  loggerpkg.Logger
	verbose bool
}

// NewClient builds a client for cfg. No process is started until the first call.
func NewClient(cfg ServerConfig, opts ...Option) *Client {
	c := &Client{
		cfg:    cfg,
		impl:   mcpsdk.NewClient(&mcpsdk.Implementation{Name: "mcp-agent-go", Version: "dev"}, nil),
		logger: loggerpkg.NopLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Name returns the configured server name.
func (c *Client) Name() string {
	return c.cfg.Name
}

func (c *Client) ensureConnected(ctx context.Context) (*mcpsdk.ClientSession, error) {
	c.once.Do(func() {
		if c.impl == nil {
			c.connectErr = errors.New("mcp: nil client implementation")
			return
		}
		transport, err := transportBuilder(c.cfg)
		if err != nil {
			c.connectErr = fmt.Errorf("build transport: %w", err)
			return
		}
		loggerpkg.Debug(c.verbose, c.logger, "connecting to tool server", map[string]any{
			"server":    c.cfg.Name,
			"transport": c.cfg.Transport,
			"command":   c.cfg.Command,
			"url":       c.cfg.URL,
		})
		session, err := c.impl.Connect(ctx, transport, nil)
		if err != nil {
			c.connectErr = fmt.Errorf("connect %s: %w", c.cfg.Name, err)
			return
		}
		c.mu.Lock()
		c.session = session
		c.mu.Unlock()
	})
	if c.connectErr != nil {
		return nil, c.connectErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil, fmt.Errorf("mcp: session for %s is closed", c.cfg.Name)
	}
	return c.session, nil
}

// ListTools fetches every tool the server advertises.
func (c *Client) ListTools(ctx context.Context) ([]tools.Schema, error) {
	session, err := c.ensureConnected(ctx)
	if err != nil {
		return nil, err
	}
	var out []tools.Schema
	for tool, err := range session.Tools(ctx, nil) {
		if err != nil {
			return nil, fmt.Errorf("list tools: %w", err)
		}
		schema, err := toSchema(tool)
		if err != nil {
			return nil, err
		}
		schema.Server = c.cfg.Name
		out = append(out, schema)
	}
	return out, nil
}

// CallTool invokes name and flattens the result content into text. A result
// flagged as an error by the server is returned as *errorsx.ToolExecutionError.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	session, err := c.ensureConnected(ctx)
	if err != nil {
		return "", err
	}
	if args == nil {
		args = map[string]any{}
	}
	res, err := session.CallTool(ctx, &mcpsdk.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return "", fmt.Errorf("call %s on %s: %w", name, c.cfg.Name, err)
	}
	text, err := resultText(res)
	if err != nil {
		return "", err
	}
	if res.IsError {
		if strings.TrimSpace(text) == "" {
			text = "tool reported an error"
		}
		return "", &errorsx.ToolExecutionError{Tool: name, Err: errors.New(text)}
	}
	return text, nil
}

// Close shuts down the session and, for stdio servers, the subprocess.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	session := c.session
	c.session = nil
	c.mu.Unlock()
	if session == nil {
		return nil
	}
	return session.Close()
}

func toSchema(tool *mcpsdk.Tool) (tools.Schema, error) {
	if tool == nil {
		return tools.Schema{}, nil
	}
	schema := tools.Schema{Name: tool.Name, Description: tool.Description}
	if tool.InputSchema == nil {
		return schema, nil
	}
	raw, err := json.Marshal(tool.InputSchema)
	if err != nil {
		return tools.Schema{}, fmt.Errorf("encode input schema of %s: %w", tool.Name, err)
	}
	if err := json.Unmarshal(raw, &schema.Parameters); err != nil {
		return tools.Schema{}, fmt.Errorf("decode input schema of %s: %w", tool.Name, err)
	}
	return schema, nil
}

func resultText(res *mcpsdk.CallToolResult) (string, error) {
	if res == nil {
		return "", nil
	}
	parts := make([]string, 0, len(res.Content))
	for _, content := range res.Content {
		if text, ok := content.(*mcpsdk.TextContent); ok {
			parts = append(parts, text.Text)
			continue
		}
		raw, err := json.Marshal(content)
		if err != nil {
			return "", fmt.Errorf("encode tool content: %w", err)
		}
		parts = append(parts, string(raw))
	}
	if len(parts) == 0 && res.StructuredContent != nil {
		raw, err := json.Marshal(res.StructuredContent)
		if err != nil {
			return "", fmt.Errorf("encode structured content: %w", err)
		}
		parts = append(parts, string(raw))
	}
	return strings.Join(parts, "\n"), nil
}

func buildTransport(cfg ServerConfig) (mcpsdk.Transport, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Transport)) {
	case "", TransportStdio:
		return buildStdioTransport(cfg)
	case TransportSSE:
		if strings.TrimSpace(cfg.URL) == "" {
			return nil, fmt.Errorf("mcp: server %s: sse transport requires url", cfg.Name)
		}
		return &mcpsdk.SSEClientTransport{Endpoint: strings.TrimSpace(cfg.URL)}, nil
	case TransportHTTP:
		if strings.TrimSpace(cfg.URL) == "" {
			return nil, fmt.Errorf("mcp: server %s: http transport requires url", cfg.Name)
		}
		return &mcpsdk.StreamableClientTransport{Endpoint: strings.TrimSpace(cfg.URL)}, nil
	default:
		return nil, fmt.Errorf("mcp: server %s: unsupported transport %q", cfg.Name, cfg.Transport)
	}
}

// buildStdioTransport starts the server as a subprocess speaking JSON-RPC over
// stdin/stdout. The process outlives individual call contexts and ends on Close.
func buildStdioTransport(cfg ServerConfig) (mcpsdk.Transport, error) {
	command := strings.TrimSpace(cfg.Command)
	if command == "" {
		return nil, fmt.Errorf("mcp: server %s: stdio command is empty", cfg.Name)
	}
	// #nosec G204 -- command comes from the operator's server configuration
	cmd := exec.Command(command, cfg.Args...)
	cmd.Env = mergeEnv(os.Environ(), cfg.Env)
	cmd.Stderr = os.Stderr
	return &mcpsdk.CommandTransport{Command: cmd}, nil
}

func mergeEnv(base []string, overlay map[string]string) []string {
	if len(overlay) == 0 {
		return base
	}
	keys := make([]string, 0, len(overlay))
	for k := range overlay {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(base)+len(keys))
	for _, kv := range base {
		name, _, _ := strings.Cut(kv, "=")
		if _, replaced := overlay[name]; replaced {
			continue
		}
		out = append(out, kv)
	}
	for _, k := range keys {
		out = append(out, k+"="+overlay[k])
	}
	return out
}
