package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// LocalTool is a tool implemented in-process.
type LocalTool struct {
	Name        string
	Description string
	Parameters  map[string]any
	Handler     func(ctx context.Context, args map[string]any) (string, error)
}

// LocalServer exposes LocalTools through the Server interface without a subprocess.
type LocalServer struct {
	name string

	mu    sync.RWMutex
	tools map[string]LocalTool
}

// NewLocalServer builds a server named name holding tools.
func NewLocalServer(name string, tools ...LocalTool) *LocalServer {
	s := &LocalServer{name: name, tools: make(map[string]LocalTool)}
	for _, t := range tools {
		s.Register(t)
	}
	return s
}

// Register adds or replaces a tool.
func (s *LocalServer) Register(t LocalTool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tools[t.Name] = t
}

func (s *LocalServer) Name() string {
	return s.name
}

func (s *LocalServer) ListTools(context.Context) ([]Schema, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Schema, 0, len(s.tools))
	for _, t := range s.tools {
		out = append(out, Schema{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
			Server:      s.name,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *LocalServer) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	s.mu.RLock()
	t, ok := s.tools[name]
	s.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("unknown tool: %s", name)
	}
	if t.Handler == nil {
		return "", fmt.Errorf("tool %s has no handler", name)
	}
	return t.Handler(ctx, args)
}

func (s *LocalServer) Close() error {
	return nil
}
