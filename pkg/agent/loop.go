// Package agent runs the tool-calling control loop between a model client and a tool registry.
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/iter"

	"github.com/minhyannv/mcp-agent-go/pkg/conversation"
	"github.com/minhyannv/mcp-agent-go/pkg/errorsx"
	loggerpkg "github.com/minhyannv/mcp-agent-go/pkg/logger"
	"github.com/minhyannv/mcp-agent-go/pkg/tools"
)

// ErrInvalidSeed is returned when a run starts without a system and a user message.
var ErrInvalidSeed = errors.New("conversation must contain a system message and a user message")

// ModelClient produces the next assistant message for a conversation.
type ModelClient interface {
	Complete(ctx context.Context, msgs []conversation.Message, schemas []tools.Schema) (conversation.Assistant, error)
}

// ToolRegistry lists and invokes tools.
type ToolRegistry interface {
	ListTools(ctx context.Context) ([]tools.Schema, error)
	Invoke(ctx context.Context, name string, args map[string]any) (string, error)
}

// Loop alternates between model calls and tool execution until the model replies without tool calls.
type Loop struct {
	model    ModelClient
	registry ToolRegistry
	settings loopSettings
}

// New builds a Loop over the given collaborators.
func New(model ModelClient, registry ToolRegistry, opts ...AgentOption) (*Loop, error) {
	if model == nil {
		return nil, errors.New("model client is required")
	}
	if registry == nil {
		return nil, errors.New("tool registry is required")
	}
	settings := defaultSettings()
	for _, opt := range opts {
		if opt != nil {
			opt(&settings)
		}
	}
	return &Loop{model: model, registry: registry, settings: settings}, nil
}

// Run drives c to the DONE state and returns it. c is appended to in place and
// must not be used by anyone else while Run executes. On a fatal error the
// conversation holds every message appended before the failure and never a
// partial assistant message.
func (l *Loop) Run(ctx context.Context, c *conversation.Conversation) (*conversation.Conversation, error) {
	if c == nil || c.Count(conversation.RoleSystem) == 0 || c.Count(conversation.RoleUser) == 0 {
		return c, ErrInvalidSeed
	}

	schemas, err := l.registry.ListTools(ctx)
	if err != nil {
		return c, fmt.Errorf("list tools: %w", err)
	}

	modelCalls := 0
	state := Route(c)
	for {
		l.debugf("[verbose] state=%s messages=%d model_calls=%d", state, c.Len(), modelCalls)
		switch state {
		case AwaitModel:
			if modelCalls >= l.settings.maxTurns {
				loggerpkg.Warn(l.settings.logger, "turn ceiling reached", map[string]any{"max_turns": l.settings.maxTurns})
				return c, &errorsx.UnboundedToolLoopError{Limit: l.settings.maxTurns}
			}
			modelCalls++
			reply, err := l.complete(ctx, c, schemas)
			if err != nil {
				return c, err
			}
			reply.ToolCalls = normalizeCallIDs(reply.ToolCalls, modelCalls)
			if err := c.Append(reply); err != nil {
				return c, fmt.Errorf("append assistant message: %w", err)
			}
			state = Route(c)

		case ExecuteTools:
			results, err := l.executeTools(ctx, c.Pending())
			if err != nil {
				return c, err
			}
			for _, result := range results {
				if err := c.Append(result); err != nil {
					return c, fmt.Errorf("append tool result: %w", err)
				}
			}
			state = AwaitModel

		case Done:
			l.debugf("[verbose] run finished after %d model call(s)", modelCalls)
			return c, nil

		default:
			return c, fmt.Errorf("unknown state %d", state)
		}
	}
}

func (l *Loop) complete(ctx context.Context, c *conversation.Conversation, schemas []tools.Schema) (conversation.Assistant, error) {
	msgs := c.Messages()
	l.dumpMessages(msgs)

	callCtx, cancel := withTimeout(ctx, l.settings.modelTimeout)
	defer cancel()

	reply, err := l.model.Complete(callCtx, msgs, schemas)
	if err == nil {
		l.debugf("[verbose] model replied: content_bytes=%d tool_calls=%d", len(reply.Content), len(reply.ToolCalls))
		return reply, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return conversation.Assistant{}, ctxErr
	}
	loggerpkg.Error(l.settings.logger, "model call failed", map[string]any{"error": err.Error()})
	var modelErr *errorsx.ModelUnavailableError
	if errors.As(err, &modelErr) {
		return conversation.Assistant{}, err
	}
	return conversation.Assistant{}, &errorsx.ModelUnavailableError{Err: err}
}

// executeTools runs calls and returns their results in request order.
func (l *Loop) executeTools(ctx context.Context, calls []conversation.ToolCall) ([]conversation.ToolResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.debugf("[verbose] executing %d tool call(s), concurrency=%d", len(calls), l.settings.toolConcurrency)

	mapper := iter.Mapper[conversation.ToolCall, conversation.ToolResult]{MaxGoroutines: l.settings.toolConcurrency}
	results := mapper.Map(calls, func(call *conversation.ToolCall) conversation.ToolResult {
		return l.invoke(ctx, *call)
	})

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// invoke runs a single call. Failures are encoded in the result, never returned.
func (l *Loop) invoke(ctx context.Context, call conversation.ToolCall) conversation.ToolResult {
	result := conversation.ToolResult{CallID: call.ID, Name: call.Name}

	args, err := call.Args()
	if err != nil {
		return l.failed(result, &errorsx.MalformedToolCallError{Tool: call.Name, Reason: err.Error()})
	}

	callCtx, cancel := withTimeout(ctx, l.settings.toolTimeout)
	defer cancel()

	start := time.Now()
	output, err := l.registry.Invoke(callCtx, call.Name, args)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = &errorsx.ToolExecutionError{Tool: call.Name, Err: fmt.Errorf("timed out after %s: %w", l.settings.toolTimeout, err)}
		}
		return l.failed(result, err)
	}
	l.debugf("[verbose] tool %s (id=%s) succeeded in %s, output_bytes=%d", call.Name, call.ID, time.Since(start).Round(time.Millisecond), len(output))
	result.Content = output
	return result
}

func (l *Loop) failed(result conversation.ToolResult, err error) conversation.ToolResult {
	loggerpkg.Warn(l.settings.logger, "tool call failed", map[string]any{
		"tool":   result.Name,
		"id":     result.CallID,
		"reason": errorsx.Reason(err),
		"error":  err.Error(),
	})
	result.Content = tools.ErrorResult(result.Name, err)
	result.IsError = true
	return result
}

func (l *Loop) dumpMessages(msgs []conversation.Message) {
	if !l.settings.verbose {
		return
	}
	for i, msg := range msgs {
		fields := map[string]any{"index": i, "role": msg.Role(), "content": conversation.Content(msg)}
		switch m := msg.(type) {
		case conversation.Assistant:
			if m.HasToolCalls() {
				fields["tool_calls"] = len(m.ToolCalls)
			}
		case conversation.ToolResult:
			fields["tool_call_id"] = m.CallID
		}
		l.settings.logger.Debug("message passed to model", fields)
	}
}

func (l *Loop) debugf(format string, args ...any) {
	loggerpkg.Debugf(l.settings.verbose, l.settings.logger, format, args...)
}

// normalizeCallIDs gives calls with a missing or repeated ID a deterministic one.
func normalizeCallIDs(calls []conversation.ToolCall, turn int) []conversation.ToolCall {
	if len(calls) == 0 {
		return calls
	}
	out := make([]conversation.ToolCall, len(calls))
	seen := make(map[string]struct{}, len(calls))
	for i, call := range calls {
		if _, dup := seen[call.ID]; call.ID == "" || dup {
			call.ID = fmt.Sprintf("call_%d_%d", turn, i)
			for n := 1; ; n++ {
				if _, taken := seen[call.ID]; !taken {
					break
				}
				call.ID = fmt.Sprintf("call_%d_%d_%d", turn, i, n)
			}
		}
		seen[call.ID] = struct{}{}
		out[i] = call
	}
	return out
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
