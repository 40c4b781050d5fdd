package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/minhyannv/mcp-agent-go/pkg/errorsx"
	loggerpkg "github.com/minhyannv/mcp-agent-go/pkg/logger"
)

// Server is a source of tools, usually an MCP server running as a subprocess.
type Server interface {
	Name() string
	ListTools(ctx context.Context) ([]Schema, error)
	CallTool(ctx context.Context, name string, args map[string]any) (string, error)
	Close() error
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger injects a logger dependency.
func WithLogger(l loggerpkg.Logger) Option {
	return func(r *Registry) {
		r.logger = loggerpkg.OrNop(l)
	}
}

// WithVerbose enables debug logging of discovery and calls.
func WithVerbose(v bool) Option {
	return func(r *Registry) {
		r.verbose = v
	}
}

// WithValidator swaps the argument validator. A nil validator disables validation.
func WithValidator(v Validator) Option {
	return func(r *Registry) {
		r.validator = v
	}
}

type entry struct {
	schema Schema
	parsed *JSONSchema
	server Server
}

// Registry discovers tools from one or more servers and dispatches calls by tool name.
type Registry struct {
	refreshMu sync.Mutex

	mu        sync.RWMutex
	servers   []Server
	entries   map[string]entry
	loaded    bool
	validator Validator

	logger  loggerpkg.Logger
	verbose bool
}

// NewRegistry builds an empty registry backed by the default validator.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		entries:   make(map[string]entry),
		validator: DefaultValidator{},
		logger:    loggerpkg.NopLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// AddServer registers a tool server. Tools are discovered on the next Refresh or ListTools.
func (r *Registry) AddServer(s Server) {
	if s == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.servers = append(r.servers, s)
	r.loaded = false
}

// Refresh queries every server for its tools. When two servers expose the same
// tool name, the server added first wins.
func (r *Registry) Refresh(ctx context.Context) error {
	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()

	r.mu.RLock()
	servers := append([]Server(nil), r.servers...)
	r.mu.RUnlock()

	entries := make(map[string]entry)
	for _, server := range servers {
		schemas, err := server.ListTools(ctx)
		if err != nil {
			return fmt.Errorf("list tools from %s: %w", server.Name(), err)
		}
		for _, schema := range schemas {
			name := strings.TrimSpace(schema.Name)
			if name == "" {
				loggerpkg.Warn(r.logger, "skipping tool without name", map[string]any{"server": server.Name()})
				continue
			}
			if existing, dup := entries[name]; dup {
				loggerpkg.Warn(r.logger, "duplicate tool name", map[string]any{
					"tool":    name,
					"kept":    existing.server.Name(),
					"ignored": server.Name(),
				})
				continue
			}
			parsed, err := ParseJSONSchema(schema.Parameters)
			if err != nil {
				return fmt.Errorf("tool %s from %s: %w", name, server.Name(), err)
			}
			schema.Name = name
			schema.Server = server.Name()
			entries[name] = entry{schema: schema, parsed: parsed, server: server}
			loggerpkg.Debugf(r.verbose, r.logger, "[verbose] registered tool: %s (server=%s)", name, server.Name())
		}
	}

	r.mu.Lock()
	r.entries = entries
	r.loaded = true
	r.mu.Unlock()
	return nil
}

func (r *Registry) ensureLoaded(ctx context.Context) error {
	r.mu.RLock()
	loaded := r.loaded
	r.mu.RUnlock()
	if loaded {
		return nil
	}
	return r.Refresh(ctx)
}

// ListTools returns the schemas of every known tool sorted by name.
func (r *Registry) ListTools(ctx context.Context) ([]Schema, error) {
	if err := r.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Schema, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.schema)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Invoke validates args and runs the named tool. Unknown tools and invalid
// arguments yield *errorsx.MalformedToolCallError; server failures yield
// *errorsx.ToolExecutionError.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &errorsx.ToolExecutionError{Tool: name, Err: err}
	}
	if err := r.ensureLoaded(ctx); err != nil {
		return "", &errorsx.ToolExecutionError{Tool: name, Err: err}
	}

	r.mu.RLock()
	e, ok := r.entries[name]
	validator := r.validator
	r.mu.RUnlock()
	if !ok {
		return "", &errorsx.MalformedToolCallError{Tool: name, Reason: "unknown tool"}
	}

	if validator != nil {
		if err := validator.Validate(args, e.parsed); err != nil {
			return "", &errorsx.MalformedToolCallError{Tool: name, Reason: err.Error()}
		}
	}

	loggerpkg.Debugf(r.verbose, r.logger, "[verbose] calling tool %s on %s", name, e.server.Name())
	output, err := e.server.CallTool(ctx, name, args)
	if err != nil {
		var (
			execErr      *errorsx.ToolExecutionError
			malformedErr *errorsx.MalformedToolCallError
		)
		if errors.As(err, &execErr) || errors.As(err, &malformedErr) {
			return "", err
		}
		return "", &errorsx.ToolExecutionError{Tool: name, Err: err}
	}
	return output, nil
}

// Close closes every server and returns the joined errors.
func (r *Registry) Close() error {
	r.mu.Lock()
	servers := r.servers
	r.servers = nil
	r.entries = make(map[string]entry)
	r.loaded = false
	r.mu.Unlock()

	var errs []error
	for _, s := range servers {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}
