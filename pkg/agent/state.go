package agent

import "github.com/minhyannv/mcp-agent-go/pkg/conversation"

// State is a control loop state.
type State int

const (
	AwaitModel State = iota
	ExecuteTools
	Done
)

func (s State) String() string {
	switch s {
	case AwaitModel:
		return "AWAIT_MODEL"
	case ExecuteTools:
		return "EXECUTE_TOOLS"
	case Done:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// Route decides the next state from the conversation tail. It has no side effects.
func Route(c *conversation.Conversation) State {
	last, ok := c.Last()
	if !ok {
		return AwaitModel
	}
	switch m := last.(type) {
	case conversation.Assistant:
		if m.HasToolCalls() {
			return ExecuteTools
		}
		return Done
	case conversation.ToolResult:
		if len(c.Pending()) > 0 {
			return ExecuteTools
		}
		return AwaitModel
	default:
		return AwaitModel
	}
}
