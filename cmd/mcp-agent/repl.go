package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minhyannv/mcp-agent-go/pkg/agent"
	"github.com/minhyannv/mcp-agent-go/pkg/conversation"
	loggerpkg "github.com/minhyannv/mcp-agent-go/pkg/logger"
	"github.com/minhyannv/mcp-agent-go/pkg/tools"
)

// replOptions configures REPL behavior.
type replOptions struct {
	Verbose bool
	Logger  loggerpkg.Logger
	Tools   []tools.Schema
}

// runREPL starts an interactive REPL session.
func runREPL(ctx context.Context, session *agent.Session, opts replOptions, in io.Reader, out io.Writer) error {
	if session == nil {
		return fmt.Errorf("session is required")
	}
	if in == nil {
		return fmt.Errorf("input reader is required")
	}
	if out == nil {
		out = io.Discard
	}

	loggerpkg.Debug(opts.Verbose, opts.Logger, "repl start", map[string]any{"tools": len(opts.Tools)})

	scanner := bufio.NewScanner(in)
	printWelcome(out, opts.Tools)

	for {
		if ctx.Err() != nil {
			break
		}
		_, _ = fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			handled, shouldQuit := handleCommand(input, session, out)
			if shouldQuit {
				break
			}
			if handled {
				continue
			}
		}

		reply, err := session.Send(ctx, input)
		if err != nil {
			_, _ = fmt.Fprintf(out, "Error: %v\n\n", err)
			continue
		}
		_, _ = fmt.Fprintf(out, "%s\n\n", reply)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	return nil
}

func printWelcome(out io.Writer, schemas []tools.Schema) {
	_, _ = fmt.Fprintln(out, "=== MCP Agent - Interactive Mode ===")
	if len(schemas) > 0 {
		names := make([]string, 0, len(schemas))
		for _, schema := range schemas {
			names = append(names, schema.Name)
		}
		_, _ = fmt.Fprintf(out, "Tools: %s\n", strings.Join(names, ", "))
	}
	_, _ = fmt.Fprintln(out, "Type your message and press Enter.")
	printHelp(out)
}

func handleCommand(
	input string,
	session *agent.Session,
	out io.Writer,
) (bool, bool) {
	cmd := strings.ToLower(input)
	switch cmd {
	case "/help", "/h":
		printHelp(out)
		return true, false
	case "/clear", "/c":
		session.Reset()
		_, _ = fmt.Fprintln(out, "Conversation history cleared.")
		_, _ = fmt.Fprintln(out)
		return true, false
	case "/history":
		printHistory(out, session.Conversation().Messages())
		return true, false
	case "/quit", "/exit", "/q":
		_, _ = fmt.Fprintln(out, "Goodbye!")
		return true, true
	default:
		_, _ = fmt.Fprintf(out, "Unknown command: %s. Type /help for available commands.\n\n", input)
		return true, false
	}
}

func printHistory(out io.Writer, msgs []conversation.Message) {
	for i, msg := range msgs {
		line := conversation.Content(msg)
		switch m := msg.(type) {
		case conversation.System:
			line = "(system prompt)"
		case conversation.Assistant:
			for _, call := range m.ToolCalls {
				line = strings.TrimSpace(line + fmt.Sprintf(" [call %s %s]", call.Name, call.Arguments))
			}
		case conversation.ToolResult:
			line = fmt.Sprintf("%s -> %s", m.Name, line)
		}
		_, _ = fmt.Fprintf(out, "%2d %-9s %s\n", i, msg.Role(), line)
	}
	_, _ = fmt.Fprintln(out)
}

func printHelp(out io.Writer) {
	_, _ = fmt.Fprintln(out, "Commands:")
	_, _ = fmt.Fprintln(out, "  /help    - Show this help message")
	_, _ = fmt.Fprintln(out, "  /clear   - Clear conversation history")
	_, _ = fmt.Fprintln(out, "  /history - Show the conversation so far")
	_, _ = fmt.Fprintln(out, "  /quit    - Exit the program")
	_, _ = fmt.Fprintln(out, "  /exit    - Exit the program")
	_, _ = fmt.Fprintln(out)
}
